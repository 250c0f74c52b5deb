package ai

import (
	"context"

	"converse/pkg/domain"
)

// ChatGenerator produces the model's next turn for an ordered history, a
// new user message, and a persona system instruction.
type ChatGenerator interface {
	GenerateChat(ctx context.Context, history []domain.Turn, message, systemInstruction string) (string, error)
}

// ImageStylizer transforms an input image according to a text prompt and
// returns the rendered PNG bytes.
type ImageStylizer interface {
	StylizeImage(ctx context.Context, prompt string, image []byte, mimeType string) ([]byte, error)
}
