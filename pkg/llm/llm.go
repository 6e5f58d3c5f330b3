// Package llm is the boundary to the external reasoning engine. The
// daemon only ever sees free text back; everything downstream
// (operations extraction, validation) lives elsewhere.
package llm

import "context"

// Engine produces a free-text response for a rendered prompt. The
// response may embed an operations block; that is the codec's concern,
// not this package's.
type Engine interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
