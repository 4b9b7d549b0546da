// Package language provides language detection for patent abstracts.
package language

import "context"

// Detector returns a best-guess ISO 639-1 language code for text, or
// "unknown" when no language can be determined. Implementations never fail
// on undetectable text; an error means the capability itself broke.
type Detector interface {
	Detect(ctx context.Context, text string) (string, error)
}

// StaticDetector is a test detector with fixed answers per text and a
// default for everything else.
type StaticDetector struct {
	ByText  map[string]string
	Default string
}

// Detect returns the configured language for text, or the default.
func (d *StaticDetector) Detect(ctx context.Context, text string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if lang, ok := d.ByText[text]; ok {
		return lang, nil
	}
	if d.Default != "" {
		return d.Default, nil
	}
	return "unknown", nil
}
