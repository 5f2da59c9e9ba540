// Package translate defines the boundary to the translation collaborator.
// Provider selection and fallback chains live outside the pipeline.
package translate

import "context"

// Translator converts text into the target language.
type Translator interface {
	Translate(ctx context.Context, text, target string) (string, error)
}

// Func adapts an ordinary function to the Translator interface.
type Func func(ctx context.Context, text, target string) (string, error)

// Translate implements Translator.
func (f Func) Translate(ctx context.Context, text, target string) (string, error) {
	return f(ctx, text, target)
}

// Noop returns the input unchanged. Used when translation is disabled.
type Noop struct{}

// Translate implements Translator.
func (Noop) Translate(_ context.Context, text, _ string) (string, error) {
	return text, nil
}
