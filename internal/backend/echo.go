package backend

import "context"

// EchoPrefix prefixes every Echo reply.
const EchoPrefix = "[echo] "

// Echo is a deterministic offline backend that returns the prompt it was given.
type Echo struct{}

// Generate returns "[echo] " + prompt.
func (Echo) Generate(ctx context.Context, prompt string, _ float64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return EchoPrefix + prompt, nil
}

// Provider returns "echo".
func (Echo) Provider() string {
	return "echo"
}
