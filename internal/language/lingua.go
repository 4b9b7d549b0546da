package language

import (
	"context"
	"strings"

	"github.com/pemistahl/lingua-go"

	"github.com/hyperjump/tokkyo/internal/models"
)

// LinguaDetector detects languages with the lingua statistical models.
// Detection is CPU-bound and deterministic; ambiguous or too-short text
// yields "unknown" rather than a low-confidence guess.
type LinguaDetector struct {
	detector lingua.LanguageDetector
}

// NewLinguaDetector builds a detector over all supported languages.
// Model loading is deferred until the first detection.
func NewLinguaDetector() *LinguaDetector {
	return &LinguaDetector{
		detector: lingua.NewLanguageDetectorBuilder().
			FromAllLanguages().
			Build(),
	}
}

// Detect returns the ISO 639-1 code for text, or "unknown" when lingua has
// no confident answer.
func (d *LinguaDetector) Detect(ctx context.Context, text string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	lang, ok := d.detector.DetectLanguageOf(text)
	if !ok {
		return models.LanguageUnknown, nil
	}
	return strings.ToLower(lang.IsoCode639_1().String()), nil
}
