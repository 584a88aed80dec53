package main

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"screendeck/internal/convert"
	"screendeck/internal/emit"
	"screendeck/internal/gateway/app"
	"screendeck/internal/logging"
)

type convertOptions struct {
	images   []string
	mode     string
	provider string
	refine   bool
	out      string
	username string
	jobs     int
}

func newConvertCmd(root *rootOptions) *cobra.Command {
	opts := &convertOptions{}
	cmd := &cobra.Command{
		Use:   "convert --image shot.png [--image other.png]",
		Short: "Convert screenshots to decks without the gateway",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if len(opts.images) == 0 {
				return errors.New("at least one --image is required")
			}
			if _, err := convert.ParseMode(opts.mode); err != nil {
				return err
			}
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			setupLogging(cfg, cmd)
			if err := os.MkdirAll(opts.out, 0o755); err != nil {
				return fmt.Errorf("create output dir: %w", err)
			}

			c, err := app.Build(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer c.Close()

			var refine *bool
			if cmd.Flags().Changed("refine") {
				refine = &opts.refine
			}
			return runConvert(cmd, c.Pipeline, opts, refine)
		},
	}
	f := cmd.Flags()
	f.StringArrayVarP(&opts.images, "image", "i", nil, "screenshot to convert (repeatable)")
	f.StringVarP(&opts.mode, "mode", "m", string(convert.ModeScript), "script, macro or ocr")
	f.StringVar(&opts.provider, "provider", "", "model provider, defaults to LLM_PROVIDER")
	f.BoolVar(&opts.refine, "refine", false, "run the refinement pass")
	f.StringVarP(&opts.out, "out", "o", ".", "output directory")
	f.StringVarP(&opts.username, "username", "u", "", "owner recorded in history")
	f.IntVarP(&opts.jobs, "jobs", "j", 2, "conversions to run at once")
	return cmd
}

func runConvert(cmd *cobra.Command, p *convert.Pipeline, opts *convertOptions, refine *bool) error {
	ctx := cmd.Context()
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.jobs, 1))

	var mu sync.Mutex
	stdout := cmd.OutOrStdout()
	for _, path := range opts.images {
		g.Go(func() error {
			raw, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			log := logging.Component("cli").WithField("image", path)
			out, err := p.Convert(ctx, convert.Request{
				Image:    base64.StdEncoding.EncodeToString(raw),
				Username: opts.username,
				Mode:     opts.mode,
				Provider: opts.provider,
				Refine:   refine,
				Observe: func(ev convert.Event) {
					log.WithFields(logrus.Fields{"type": ev.Type, "stage": ev.Stage, "status": ev.Status}).Debug("progress")
				},
			})
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			dest := filepath.Join(opts.out, outputName(path, out.Format))
			if err := os.WriteFile(dest, out.Data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", dest, err)
			}
			mu.Lock()
			fmt.Fprintf(stdout, "%s -> %s (%d bytes)\n", path, dest, len(out.Data))
			mu.Unlock()
			return nil
		})
	}
	return g.Wait()
}

// outputName keeps the input stem so a batch does not collide on timestamps.
func outputName(input string, f emit.Format) string {
	stem := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	return emit.Sanitize(stem) + "." + string(f)
}
