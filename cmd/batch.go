package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/lehigh-university-libraries/retoucher/internal/config"
	"github.com/lehigh-university-libraries/retoucher/internal/images"
	"github.com/lehigh-university-libraries/retoucher/internal/models"
	"github.com/lehigh-university-libraries/retoucher/internal/report"
	"github.com/lehigh-university-libraries/retoucher/internal/session"
	"github.com/spf13/cobra"
)

func newBatchCmd(opts *globalOptions) *cobra.Command {
	var mode string
	var prompt string
	var outputDir string

	cmd := &cobra.Command{
		Use:   "batch <image files or URLs...>",
		Short: "Apply the same edit to many images",
		Long: `Runs one prompt over every image, one at a time.

A failing image does not stop the run. Press Ctrl+C to stop after the image
in progress. Results are written to --output-dir together with a YAML and a
Parquet report of every item.`,
		Example: `  # Sepia-tone a folder
  retoucher batch scans/*.jpg --mode filter --prompt "sepia, aged paper"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tab := session.Tab(mode)
			switch tab {
			case session.TabRetouch, session.TabAdjust, session.TabFilter:
			default:
				return fmt.Errorf("mode %q cannot be batched", mode)
			}
			if strings.TrimSpace(prompt) == "" {
				return session.ErrPromptRequired
			}

			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			eng, err := newEngine(cfg)
			if err != nil {
				return err
			}

			fetcher := images.NewFetcher()
			sources := make([]*models.Snapshot, 0, len(args))
			for _, arg := range args {
				src, err := loadSource(cmd.Context(), fetcher, arg)
				if err != nil {
					return fmt.Errorf("%s: %w", arg, err)
				}
				sources = append(sources, src)
			}

			s := session.New(eng)
			if err := s.SetTab(tab); err != nil {
				return err
			}
			if _, err := s.LoadBatch(sources); err != nil {
				return err
			}

			// Ctrl+C stops the loop; the item in flight still finishes.
			runCtx := context.WithoutCancel(cmd.Context())
			done, err := s.StartBatch(runCtx, prompt)
			if err != nil {
				return err
			}
			select {
			case err = <-done:
			case <-cmd.Context().Done():
				slog.Info("Cancelling batch after the current item")
				s.CancelBatch()
				err = <-done
			}
			if err != nil {
				return err
			}

			state := s.Batch()
			items := s.BatchPipeline().Items()
			outputs, err := writeResults(outputDir, items)
			if err != nil {
				return err
			}
			rep := report.New(report.RunConfig{
				Provider:  eng.provider,
				Model:     eng.model,
				Operation: mode,
				Prompt:    prompt,
				Cancelled: state.Cancelled,
			}, items, outputs)
			if _, err := rep.SaveYAML(outputDir); err != nil {
				return err
			}
			if _, err := rep.SaveParquet(outputDir); err != nil {
				return err
			}

			fmt.Printf("Done: %d  Failed: %d  Pending: %d\n", rep.Progress.Done, rep.Progress.Failed, rep.Progress.Pending)
			return nil
		},
	}

	cmd.Flags().StringVarP(&mode, "mode", "m", string(session.TabAdjust), "Edit mode (retouch, adjust, filter)")
	cmd.Flags().StringVarP(&prompt, "prompt", "p", "", "Describe the change")
	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "results", "Directory for results and reports")

	return cmd
}

// writeResults saves every finished item and maps item ids to their files.
func writeResults(dir string, items []models.BatchItem) (map[string]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	outputs := make(map[string]string)
	for i, item := range items {
		if item.Result == nil {
			continue
		}
		name := strings.TrimSuffix(item.Source.Name(), filepath.Ext(item.Source.Name()))
		path := filepath.Join(dir, fmt.Sprintf("%03d-%s.png", i+1, name))
		if err := os.WriteFile(path, item.Result.Bytes(), 0644); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", path, err)
		}
		outputs[item.ID] = path
	}
	return outputs, nil
}
