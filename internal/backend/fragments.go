package backend

import (
	"context"
	"strings"
)

const (
	fragmentIntro  = "\n\nThe user has asked that the following documents be considered:\n\nThey may or may not be relevant.\n\n"
	fragmentLabel  = "DOCUMENT FRAGMENT:\n"
	userPromptHead = "\n\nUSER PROMPT:\n"
)

// WithContext prepends the document-fragment preamble to prompt. With no
// fragments the prompt is returned unchanged.
func WithContext(fragments []string, prompt string) string {
	if len(fragments) == 0 {
		return prompt
	}

	var sb strings.Builder
	sb.WriteString(fragmentIntro)
	for i, f := range fragments {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(fragmentLabel)
		sb.WriteString(f)
	}
	sb.WriteString(userPromptHead)
	sb.WriteString(prompt)
	return sb.String()
}

type fragmentBackend struct {
	next      Backend
	fragments []string
}

// WithFragments returns a backend that prepends the fragment preamble to
// every prompt. It returns b unchanged when fragments is empty.
func WithFragments(b Backend, fragments []string) Backend {
	if len(fragments) == 0 {
		return b
	}
	return &fragmentBackend{next: b, fragments: append([]string(nil), fragments...)}
}

func (f *fragmentBackend) Generate(ctx context.Context, prompt string, temperature float64) (string, error) {
	return f.next.Generate(ctx, WithContext(f.fragments, prompt), temperature)
}

func (f *fragmentBackend) Provider() string {
	return ProviderOf(f.next)
}
