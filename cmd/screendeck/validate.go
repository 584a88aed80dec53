package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"screendeck/internal/emit"
	"screendeck/internal/sandbox"
)

type validateOptions struct {
	script string
	image  string
	out    string
	check  bool
}

func newValidateCmd(root *rootOptions) *cobra.Command {
	opts := &validateOptions{}
	cmd := &cobra.Command{
		Use:   "validate --script deck.py",
		Short: "Check and run a builder script locally",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.script == "" {
				return errors.New("--script is required")
			}
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			setupLogging(cfg, cmd)
			box := sandbox.New(sandbox.Config{Timeout: cfg.Sandbox.Timeout, MaxSteps: cfg.Sandbox.MaxSteps})
			return runValidate(cmd, box, opts)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&opts.script, "script", "s", "", "script defining create_slide()")
	f.StringVarP(&opts.image, "image", "i", "", "image bound as SOURCE_IMAGE")
	f.StringVarP(&opts.out, "out", "o", ".", "output directory")
	f.BoolVar(&opts.check, "check", false, "validate only, do not execute")
	return cmd
}

func runValidate(cmd *cobra.Command, box *sandbox.Sandbox, opts *validateOptions) error {
	code, err := os.ReadFile(opts.script)
	if err != nil {
		return err
	}
	stdout := cmd.OutOrStdout()

	if opts.check {
		rep, err := box.Check(string(code))
		if err != nil {
			return err
		}
		printReport(cmd, rep)
		fmt.Fprintln(stdout, "ok")
		return nil
	}

	var image []byte
	if opts.image != "" {
		if image, err = os.ReadFile(opts.image); err != nil {
			return err
		}
	}
	res, err := box.Run(cmd.Context(), string(code), sandbox.Options{Image: image})
	if err != nil {
		return err
	}
	printReport(cmd, res.Report)
	for _, line := range res.Output {
		fmt.Fprintln(stdout, line)
	}

	out, err := emit.New().Emit(cmd.Context(), res.Document, "")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(opts.out, 0o755); err != nil {
		return err
	}
	dest := filepath.Join(opts.out, outputName(opts.script, out.Format))
	if err := os.WriteFile(dest, out.Data, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "wrote %s (%d slides, %d steps)\n", dest, out.Slides, res.Steps)
	return nil
}

func printReport(cmd *cobra.Command, rep sandbox.Report) {
	w := cmd.ErrOrStderr()
	for _, r := range rep.Rewrites {
		fmt.Fprintf(w, "rewrite: %s\n", r)
	}
	for _, r := range rep.Repairs {
		fmt.Fprintf(w, "repair: %s\n", r)
	}
}
