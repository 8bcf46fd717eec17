package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/lehigh-university-libraries/retoucher/internal/config"
	"github.com/lehigh-university-libraries/retoucher/internal/images"
	"github.com/lehigh-university-libraries/retoucher/internal/session"
	"github.com/lehigh-university-libraries/retoucher/internal/viewport"
	"github.com/spf13/cobra"
)

func newEditCmd(opts *globalOptions) *cobra.Command {
	var mode string
	var prompt string
	var region string
	var dpr float64
	var width, height int
	var output string

	cmd := &cobra.Command{
		Use:   "edit <image file or URL>",
		Short: "Apply one edit to an image",
		Long: `Applies a single edit and writes the result as PNG.

Modes:
  retouch  change the area given by --region
  adjust   change the whole image, e.g. lighting or colour
  filter   apply a style to the whole image
  expand   grow the canvas to --width x --height and fill the new area
  crop     cut out --region, scaled by --dpr

Regions are x,y,width,height in image pixels.`,
		Example: `  # Warm up a photo
  retoucher edit photo.jpg --mode adjust --prompt "warmer lighting"

  # Remove something from a region
  retoucher edit photo.jpg --mode retouch --region 120,80,200,150 --prompt "remove the sign"

  # Outpaint to a wider canvas
  retoucher edit photo.jpg --mode expand --width 1600 --height 900`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			tab := session.Tab(mode)
			if !tab.Valid() {
				return fmt.Errorf("unknown mode %q", mode)
			}

			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			eng, err := newEngine(cfg)
			if err != nil {
				return err
			}

			src, err := loadSource(ctx, images.NewFetcher(), args[0])
			if err != nil {
				return err
			}

			s := session.New(eng)
			if err := s.Open(src); err != nil {
				return err
			}
			if err := s.SetTab(tab); err != nil {
				return err
			}
			s.SetPrompt(prompt)
			if region != "" {
				rect, err := parseRegion(region)
				if err != nil {
					return err
				}
				s.SetSelection(&rect)
			}

			switch tab {
			case session.TabCrop:
				_, err = s.ApplyCrop(dpr)
			case session.TabExpand:
				_, err = s.Expand(ctx, width, height)
			default:
				_, err = s.Submit(ctx)
			}
			if err != nil {
				return err
			}

			out := s.Current()
			if output == "" {
				base := strings.TrimSuffix(src.Name(), filepath.Ext(src.Name()))
				output = fmt.Sprintf("%s-%s.png", base, mode)
			}
			if err := os.WriteFile(output, out.Bytes(), 0644); err != nil {
				return fmt.Errorf("failed to write result: %w", err)
			}
			slog.Info("Edit saved", "path", output, "width", out.Width(), "height", out.Height())
			return nil
		},
	}

	cmd.Flags().StringVarP(&mode, "mode", "m", string(session.TabAdjust), "Edit mode (retouch, adjust, filter, expand, crop)")
	cmd.Flags().StringVarP(&prompt, "prompt", "p", "", "Describe the change")
	cmd.Flags().StringVar(&region, "region", "", "Area to retouch or crop as x,y,width,height")
	cmd.Flags().Float64Var(&dpr, "dpr", 1, "Output pixels per image pixel when cropping")
	cmd.Flags().IntVar(&width, "width", 0, "Canvas width when expanding")
	cmd.Flags().IntVar(&height, "height", 0, "Canvas height when expanding")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (defaults to <name>-<mode>.png)")

	return cmd
}

// parseRegion reads x,y,width,height. With the display at native size the
// rectangle maps one to one onto image pixels.
func parseRegion(s string) (viewport.Rect, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return viewport.Rect{}, fmt.Errorf("invalid region %q: want x,y,width,height", s)
	}
	var v [4]float64
	for i, p := range parts {
		n, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return viewport.Rect{}, fmt.Errorf("invalid region %q: %w", s, err)
		}
		v[i] = n
	}
	r := viewport.Rect{X: v[0], Y: v[1], Width: v[2], Height: v[3]}
	if r.Empty() {
		return viewport.Rect{}, fmt.Errorf("invalid region %q: empty", s)
	}
	return r, nil
}
