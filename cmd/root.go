package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gogpu/gg"
	"github.com/joho/godotenv"
	"github.com/lehigh-university-libraries/retoucher/internal/config"
	"github.com/lehigh-university-libraries/retoucher/internal/editing"
	"github.com/lehigh-university-libraries/retoucher/internal/images"
	"github.com/lehigh-university-libraries/retoucher/internal/models"
	"github.com/spf13/cobra"
)

// globalOptions holds the persistent flags shared by every subcommand.
type globalOptions struct {
	configPath string
	verbose    bool
}

func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "retoucher",
		Short: "Non-destructive image editing backed by generative image models",
		Long: `Retoucher edits images by describing the change in plain language.

Every edit produces a new snapshot; undo, redo and reset move through the
history without losing work. Edits can be limited to a selected rectangle or
a painted mask, and whole folders can be processed as a batch.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()

			setupLogging(opts.verbose)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to a retoucher.yaml config file")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose logging")

	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newEditCmd(opts))
	cmd.AddCommand(newBatchCmd(opts))
	cmd.AddCommand(newReportCmd())

	return cmd
}

// setupLogging installs the default slog logger. Verbose mode also turns on
// the rasteriser's diagnostics, which are silent otherwise.
func setupLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	if verbose {
		gg.SetLogger(slog.Default())
	} else {
		gg.SetLogger(nil)
	}
}

// engine is an edit service together with the names it was built from.
type engine struct {
	*editing.Service
	provider string
	model    string
}

func newEngine(cfg config.Config) (*engine, error) {
	provider, err := editing.ProviderFromEnv(cfg.Provider)
	if err != nil {
		return nil, err
	}
	name := editing.ProviderName(cfg.Provider)
	model := cfg.Model
	if model == "" {
		model = editing.DefaultModel(name)
	}
	svc := editing.NewService(provider,
		editing.WithModel(model),
		editing.WithTemperature(cfg.Temperature),
		editing.WithMaxSide(cfg.MaxSide),
	)
	slog.Debug("Edit service ready", "provider", name, "model", model, "max_side", cfg.MaxSide)
	return &engine{Service: svc, provider: name, model: model}, nil
}

// loadSource reads a local file or downloads an http(s) URL.
func loadSource(ctx context.Context, fetcher *images.Fetcher, arg string) (*models.Snapshot, error) {
	if strings.HasPrefix(arg, "http://") || strings.HasPrefix(arg, "https://") {
		return fetcher.Fetch(ctx, arg)
	}
	data, err := os.ReadFile(arg)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if len(data) > images.MaxUploadBytes {
		return nil, fmt.Errorf("%s is larger than %d bytes", arg, images.MaxUploadBytes)
	}
	return images.NewSnapshot(filepath.Base(arg), data)
}
