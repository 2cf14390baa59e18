package out

import "context"

// TextGenerator is a single-shot text completion service.
// Implementations keep no conversation state between calls.
type TextGenerator interface {
	Complete(ctx context.Context, prompt string) (string, error)
}
