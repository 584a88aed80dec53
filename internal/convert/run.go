package convert

import (
	"context"
	"time"

	"screendeck/internal/apperr"
	"screendeck/internal/automation"
	"screendeck/internal/codegen"
	"screendeck/internal/emit"
	"screendeck/internal/gateway/repository/history"
	"screendeck/internal/imageio"
	"screendeck/internal/layout"
	"screendeck/internal/sandbox"
)

// run is the per-request state of one conversion.
type run struct {
	p       *Pipeline
	observe Observer
}

func (r *run) emit(ev Event) {
	if ev.Type == EventDone || ev.Type == EventError {
		ev.Done = true
	}
	if r.observe != nil {
		r.observe(ev)
	}
}

func (r *run) stage(s Stage, fn func() error) error {
	r.emit(Event{Type: EventStage, Stage: string(s), Status: "started"})
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)
	r.p.metrics.ObserveStage(string(s), elapsed)
	ev := Event{Type: EventStage, Stage: string(s), Status: "finished", ElapsedMs: elapsed.Milliseconds()}
	if err != nil {
		ev.Status = "failed"
		ev.Error = apperr.PublicMessage(err)
	}
	r.emit(ev)
	return err
}

func (r *run) ocr(ctx context.Context, payload *imageio.Payload, username string) (emit.Output, error) {
	if r.p.ocr == nil {
		return emit.Output{}, apperr.New(apperr.Host, "OCR engine is not configured")
	}
	var elements []layout.Element
	if err := r.stage(StageOCR, func() error {
		var err error
		elements, err = r.p.ocr.Extract(ctx, payload.Image)
		if err != nil && apperr.KindOf(err) == apperr.Internal {
			return apperr.Wrap(apperr.Host, err, "OCR engine failure")
		}
		return err
	}); err != nil {
		return emit.Output{}, err
	}
	var out emit.Output
	err := r.stage(StageEmit, func() error {
		var err error
		out, err = r.p.emitter.Emit(ctx, layout.BuildDeck(elements), username)
		return err
	})
	return out, err
}

func (r *run) generated(ctx context.Context, in codegen.Input, username string, rec *history.Record) (emit.Output, error) {
	var script *codegen.Script
	if err := r.stage(StageGenerate, func() error {
		var err error
		script, err = r.p.gen.Generate(ctx, in)
		return err
	}); err != nil {
		return emit.Output{}, err
	}
	rec.Provider = script.Provider

	if in.Mode == codegen.ModeMacro {
		return r.macro(ctx, script, username)
	}

	m := sandbox.NewMachine(func(t sandbox.Transition) { r.emit(lifecycleEvent(t)) })
	if err := m.Advance(sandbox.StageExtracted); err != nil {
		return emit.Output{}, apperr.Wrap(apperr.Internal, err, "stage transition failed")
	}
	var res *sandbox.Result
	if err := r.stage(StageExecute, func() error {
		var err error
		res, err = r.p.box.Run(ctx, script.Code, sandbox.Options{Image: in.Image, Machine: m})
		return err
	}); err != nil {
		r.p.gen.Discard(script)
		return emit.Output{}, err
	}

	var out emit.Output
	err := r.stage(StageEmit, func() error {
		var err error
		if out, err = r.p.emitter.Emit(ctx, res.Document, username); err != nil {
			m.Fail(err.Error())
			return err
		}
		return m.Advance(sandbox.StageSerialized)
	})
	return out, err
}

func (r *run) macro(ctx context.Context, script *codegen.Script, username string) (emit.Output, error) {
	if r.p.newHost == nil {
		var out emit.Output
		err := r.stage(StageEmit, func() error {
			var err error
			out, err = r.p.emitter.EmitBytes(ctx, emit.FormatBAS, []byte(script.Code+"\n"), username)
			return err
		})
		return out, err
	}

	var data []byte
	if err := r.stage(StageAutomation, func() error {
		var err error
		data, err = automation.RunMacro(ctx, r.p.newHost(), emit.FileName(username, emit.FormatPPTM, time.Now(), emit.NewTag()), script.Code)
		return err
	}); err != nil {
		r.p.gen.Discard(script)
		return emit.Output{}, err
	}
	var out emit.Output
	err := r.stage(StageEmit, func() error {
		var err error
		out, err = r.p.emitter.EmitBytes(ctx, emit.FormatPPTM, data, username)
		return err
	})
	return out, err
}
