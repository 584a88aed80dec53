// Package logging configures the process logger and carries request-scoped
// fields through a context.
package logging

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

var log = logrus.New()

// Setup applies level and format ("json" or "text") to the process logger.
func Setup(level, format string, out io.Writer) {
	if out == nil {
		out = os.Stderr
	}
	log.SetOutput(out)
	lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)
	if strings.EqualFold(strings.TrimSpace(format), "text") {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		return
	}
	log.SetFormatter(&logrus.JSONFormatter{})
}

// Logger returns the process logger.
func Logger() *logrus.Logger { return log }

type ctxKey struct{}

// WithFields stores fields on ctx, merged with any already there.
func WithFields(ctx context.Context, fields logrus.Fields) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	merged := logrus.Fields{}
	if cur, ok := ctx.Value(ctxKey{}).(logrus.Fields); ok {
		for k, v := range cur {
			merged[k] = v
		}
	}
	for k, v := range fields {
		merged[k] = v
	}
	return context.WithValue(ctx, ctxKey{}, merged)
}

// From returns an entry carrying the fields stored on ctx.
func From(ctx context.Context) *logrus.Entry {
	if ctx == nil {
		return logrus.NewEntry(log)
	}
	fields, _ := ctx.Value(ctxKey{}).(logrus.Fields)
	return log.WithFields(fields)
}

// Component returns an entry tagged with a component name.
func Component(name string) *logrus.Entry {
	return log.WithField("component", name)
}
