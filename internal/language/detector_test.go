package language

import (
	"context"
	"testing"
)

func TestStaticDetector(t *testing.T) {
	d := &StaticDetector{
		ByText:  map[string]string{"hallo wereld": "nl"},
		Default: "en",
	}
	ctx := context.Background()
	if lang, _ := d.Detect(ctx, "hallo wereld"); lang != "nl" {
		t.Errorf("expected nl, got %s", lang)
	}
	if lang, _ := d.Detect(ctx, "anything else"); lang != "en" {
		t.Errorf("expected default en, got %s", lang)
	}
}

func TestStaticDetector_CancelledContext(t *testing.T) {
	d := &StaticDetector{Default: "en"}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := d.Detect(ctx, "text"); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestLinguaDetector_Languages(t *testing.T) {
	if testing.Short() {
		t.Skip("lingua model loading is slow")
	}
	d := NewLinguaDetector()
	ctx := context.Background()
	tests := []struct {
		text string
		want string
	}{
		{"A method and apparatus for the wireless transmission of electrical power between coils.", "en"},
		{"Verfahren und Vorrichtung zur drahtlosen Übertragung elektrischer Energie zwischen Spulen.", "de"},
		{"Werkwijze en inrichting voor de draadloze overdracht van elektrische energie tussen spoelen.", "nl"},
	}
	for _, tt := range tests {
		got, err := d.Detect(ctx, tt.text)
		if err != nil {
			t.Fatalf("Detect(%q): %v", tt.text, err)
		}
		if got != tt.want {
			t.Errorf("Detect(%q) = %s, want %s", tt.text, got, tt.want)
		}
	}
}
