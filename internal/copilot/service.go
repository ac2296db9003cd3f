// Package copilot runs prompts through the GitHub Copilot SDK.
package copilot

import (
	"context"
	"fmt"
	"strings"
	"sync"

	copilot "github.com/github/copilot-sdk/go"

	"codebrew/internal/llm"
)

// DefaultModel is used when no model is configured
const DefaultModel = "gpt-5-mini"

// Service owns one Copilot client process. Every Invoke opens a fresh
// session so prompts never share conversation history.
type Service struct {
	client *copilot.Client
	model  string

	mu       sync.Mutex
	running  bool
	inflight sync.WaitGroup
}

func NewService(model string) *Service {
	if model == "" {
		model = DefaultModel
	}
	return &Service{client: copilot.NewClient(nil), model: model}
}

// Start launches the client. Calling it twice is a no-op.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	if err := s.client.Start(); err != nil {
		return fmt.Errorf("failed to start copilot client: %w", err)
	}
	s.running = true
	return nil
}

// Stop refuses new prompts, waits for in-flight ones, then stops the client
func (s *Service) Stop() error {
	s.mu.Lock()
	wasRunning := s.running
	s.running = false
	s.mu.Unlock()
	if !wasRunning {
		return nil
	}

	s.inflight.Wait()
	s.client.Stop()
	return nil
}

// acquire registers a prompt; the caller must call inflight.Done
func (s *Service) acquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return false
	}
	s.inflight.Add(1)
	return true
}

type outcome struct {
	text string
	err  error
}

// Invoke implements llm.Invoker. The SDK call takes no context, so a
// cancelled ctx returns immediately and leaves the session to finish on its
// own; Stop still waits for it.
func (s *Service) Invoke(ctx context.Context, req llm.PromptRequest) (llm.ModelResponse, error) {
	if !s.acquire() {
		return llm.ModelResponse{}, &llm.TransportError{Provider: "copilot", Cause: fmt.Errorf("copilot service not started")}
	}

	model := req.Model
	if model == "" {
		model = s.model
	}

	done := make(chan outcome, 1)
	go func() {
		defer s.inflight.Done()
		text, err := s.complete(model, req.Prompt)
		done <- outcome{text: text, err: err}
	}()

	var out outcome
	select {
	case <-ctx.Done():
		return llm.ModelResponse{}, &llm.TransportError{Provider: "copilot", Cause: ctx.Err()}
	case out = <-done:
	}

	switch {
	case out.err != nil:
		return llm.ModelResponse{}, &llm.TransportError{Provider: "copilot", Cause: out.err}
	case out.text == "":
		return llm.ModelResponse{}, &llm.EmptyResponseError{Provider: "copilot"}
	}
	return llm.ModelResponse{Text: out.text, StopReason: "idle", Model: model}, nil
}

// deltas accumulates streamed message chunks
type deltas struct {
	mu sync.Mutex
	sb strings.Builder
}

func (d *deltas) on(event copilot.SessionEvent) {
	if event.Type != "assistant.message_delta" || event.Data.DeltaContent == nil {
		return
	}
	d.mu.Lock()
	d.sb.WriteString(*event.Data.DeltaContent)
	d.mu.Unlock()
}

func (d *deltas) text() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return strings.TrimSpace(d.sb.String())
}

func (s *Service) complete(model, prompt string) (string, error) {
	session, err := s.client.CreateSession(&copilot.SessionConfig{Model: model, Streaming: true})
	if err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}

	var d deltas
	session.On(d.on)
	if _, err := session.SendAndWait(copilot.MessageOptions{Prompt: prompt}, 0); err != nil {
		return "", fmt.Errorf("failed to send prompt: %w", err)
	}
	return d.text(), nil
}
