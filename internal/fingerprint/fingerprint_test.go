package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateDeterministic(t *testing.T) {
	s := Signals{
		UserAgent:             "Mozilla/5.0 (X11; Linux x86_64)",
		Language:              "en-US",
		Platform:              "Linux x86_64",
		ScreenWidth:           1920,
		ScreenHeight:          1080,
		TimezoneOffsetMinutes: -120,
		CanvasSignature:       "a1b2c3",
	}

	first := Generate(s)
	second := Generate(s)

	assert.Equal(t, first, second, "same signals must map to the same fingerprint")
	assert.Len(t, first, 32)
}

func TestGenerateDistinguishesEnvironments(t *testing.T) {
	base := Signals{UserAgent: "agent", Language: "en-US", ScreenWidth: 1920, ScreenHeight: 1080}
	other := base
	other.Language = "de-DE"

	assert.NotEqual(t, Generate(base), Generate(other))
}

func TestGenerateDegradesOnMissingSignals(t *testing.T) {
	// An entirely empty environment still yields a stable, non-empty value.
	empty := Generate(Signals{})

	assert.NotEmpty(t, empty)
	assert.Equal(t, empty, Generate(Signals{}))
	// Whitespace-only signals collapse to the same placeholder.
	assert.Equal(t, empty, Generate(Signals{UserAgent: "   "}))
}
