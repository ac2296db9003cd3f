package llm

import (
	"context"
	"strings"
	"sync"
)

// FakeStep is one scripted reply of a Fake
type FakeStep struct {
	Text       string
	StopReason string
	Err        error
}

// Fake replays scripted responses in order, repeating the last one once the
// script is exhausted. It records every request it receives.
type Fake struct {
	mu       sync.Mutex
	steps    []FakeStep
	requests []PromptRequest
}

// NewFake scripts one successful reply per text
func NewFake(texts ...string) *Fake {
	f := &Fake{}
	for _, t := range texts {
		f.steps = append(f.steps, FakeStep{Text: t, StopReason: "end_turn"})
	}
	return f
}

// NewFakeSteps scripts replies that may include errors
func NewFakeSteps(steps ...FakeStep) *Fake {
	return &Fake{steps: steps}
}

// Invoke returns the next scripted step
func (f *Fake) Invoke(ctx context.Context, req PromptRequest) (ModelResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, req)
	if err := ctx.Err(); err != nil {
		return ModelResponse{}, transportErr("fake", err)
	}
	if len(f.steps) == 0 {
		return ModelResponse{}, &EmptyResponseError{Provider: "fake"}
	}

	idx := len(f.requests) - 1
	if idx >= len(f.steps) {
		idx = len(f.steps) - 1
	}
	step := f.steps[idx]

	if step.Err != nil {
		return ModelResponse{}, step.Err
	}
	if strings.TrimSpace(step.Text) == "" {
		return ModelResponse{}, &EmptyResponseError{Provider: "fake", StopReason: step.StopReason}
	}
	return ModelResponse{Text: step.Text, StopReason: step.StopReason, Model: modelFor(req, "fake")}, nil
}

// Requests returns a copy of the requests received so far
func (f *Fake) Requests() []PromptRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]PromptRequest(nil), f.requests...)
}

// Calls returns how many times Invoke ran
func (f *Fake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}
