// Package automation drives an office-automation host that can run VBA
// macros and save the resulting deck.
package automation

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"screendeck/internal/apperr"
	"screendeck/internal/logging"
)

const (
	// ModuleName is the standard module the macro is injected as.
	ModuleName = "MyModule"
	// Procedure is the Sub every macro must define.
	Procedure = "CreatePresentation"
	// FormatMacroEnabled is the host save format for .pptm.
	FormatMacroEnabled = 25
)

// Host is one automation session. Calls are made in the order used by
// RunMacro.
type Host interface {
	Start(ctx context.Context) error
	NewDocument(ctx context.Context) error
	InjectModule(ctx context.Context, name, source string) error
	RunProcedure(ctx context.Context, qualified string) error
	SaveAs(ctx context.Context, name string, format int) ([]byte, error)
	Close(ctx context.Context) error
	Quit(ctx context.Context) error
}

// MacroError is a failure the host attributes to the macro itself, such as a
// compile or runtime error inside VBA.
type MacroError struct {
	Message string
}

func (e *MacroError) Error() string { return "macro error: " + e.Message }

var entryPoint = regexp.MustCompile(`(?im)^\s*(Public\s+|Private\s+)?Sub\s+` + Procedure + `\s*\(`)

// RunMacro injects source, runs it and returns the saved macro-enabled
// document. Close and Quit always run once Start has succeeded.
func RunMacro(ctx context.Context, host Host, name, source string) (out []byte, err error) {
	if !entryPoint.MatchString(source) {
		return nil, apperr.New(apperr.Validation, "macro does not define Sub %s()", Procedure)
	}
	log := logging.From(ctx).WithField("component", "automation")

	if err := host.Start(ctx); err != nil {
		return nil, classify("start host", err)
	}
	defer func() {
		// cleanup must outlive request cancellation
		cctx := context.WithoutCancel(ctx)
		if cerr := host.Close(cctx); cerr != nil {
			log.WithError(cerr).Warn("close document failed")
		}
		if qerr := host.Quit(cctx); qerr != nil {
			log.WithError(qerr).Warn("quit host failed")
		}
	}()

	if err := host.NewDocument(ctx); err != nil {
		return nil, classify("new document", err)
	}
	if err := host.InjectModule(ctx, ModuleName, source); err != nil {
		return nil, classify("inject module", err)
	}
	log.Debug("running macro")
	if err := host.RunProcedure(ctx, ModuleName+"."+Procedure); err != nil {
		return nil, classify("run macro", err)
	}
	data, err := host.SaveAs(ctx, name, FormatMacroEnabled)
	if err != nil {
		return nil, classify("save document", err)
	}
	if len(data) == 0 {
		return nil, apperr.New(apperr.Host, "automation host returned an empty document")
	}
	return data, nil
}

func classify(step string, err error) error {
	var me *MacroError
	if errors.As(err, &me) {
		return apperr.Wrap(apperr.Execution, err, "%s", apperr.Truncate("Execution error: "+me.Message))
	}
	return apperr.Wrap(apperr.Host, fmt.Errorf("%s: %w", step, err), "automation host failure")
}
