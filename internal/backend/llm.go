package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms"
)

// LLM adapts a langchaingo model to the Backend interface.
type LLM struct {
	model    llms.Model
	provider string
	name     string
	timeout  time.Duration
}

// NewLLM wraps model. name is passed as the call-level model when set.
// A positive timeout bounds each call.
func NewLLM(model llms.Model, provider, name string, timeout time.Duration) *LLM {
	return &LLM{
		model:    model,
		provider: provider,
		name:     name,
		timeout:  timeout,
	}
}

// Generate sends prompt as a single human message. A blank reply is returned
// as is; it is a valid answer and grading falls back on it.
func (l *LLM) Generate(ctx context.Context, prompt string, temperature float64) (string, error) {
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	opts := []llms.CallOption{llms.WithTemperature(temperature)}
	if l.name != "" {
		opts = append(opts, llms.WithModel(l.name))
	}

	text, err := llms.GenerateFromSinglePrompt(ctx, l.model, prompt, opts...)
	if err != nil {
		return "", &Error{Provider: l.provider, Op: OperationFromContext(ctx), Err: err}
	}
	return text, nil
}

// Provider returns the provider name.
func (l *LLM) Provider() string {
	return l.provider
}

// Model returns the configured model name.
func (l *LLM) Model() string {
	return l.name
}

func (l *LLM) String() string {
	return fmt.Sprintf("%s/%s", l.provider, l.name)
}
