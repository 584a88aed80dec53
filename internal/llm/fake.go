package llm

import (
	"context"
	"sync"
)

// FakeReply is one scripted answer.
type FakeReply struct {
	Text string
	Err  error
}

// FakeModel returns scripted replies in order for offline runs and tests.
// Once the script is exhausted the last reply repeats. Requests are recorded.
type FakeModel struct {
	name string

	mu       sync.Mutex
	replies  []FakeReply
	requests []Request
	closed   bool
}

func NewFakeModel(name string, replies ...FakeReply) *FakeModel {
	if name == "" {
		name = "fake"
	}
	return &FakeModel{name: name, replies: replies}
}

// FakeText is shorthand for a model answering each call with texts in turn.
func FakeText(name string, texts ...string) *FakeModel {
	replies := make([]FakeReply, len(texts))
	for i, t := range texts {
		replies[i] = FakeReply{Text: t}
	}
	return NewFakeModel(name, replies...)
}

func (f *FakeModel) Name() string { return f.name }

func (f *FakeModel) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *FakeModel) Complete(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	i := len(f.requests)
	f.requests = append(f.requests, req)
	if len(f.replies) == 0 {
		return "", ErrEmptyResponse
	}
	if i >= len(f.replies) {
		i = len(f.replies) - 1
	}
	r := f.replies[i]
	return r.Text, r.Err
}

// Requests returns a copy of the requests seen so far.
func (f *FakeModel) Requests() []Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Request(nil), f.requests...)
}

// Calls reports how many times Complete ran.
func (f *FakeModel) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *FakeModel) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
