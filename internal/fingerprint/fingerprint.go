// Package fingerprint derives a semi-stable pseudo-identifier for a browser
// client from the environment signals it reports. The identifier keys daily
// usage quotas; it is a best-effort abuse deterrent, not an identity.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

const unknownSignal = "unknown"

// Signals are the environment values the browser collects and sends along
// with each request. Every field is optional.
type Signals struct {
	UserAgent             string `json:"user_agent"`
	Language              string `json:"language"`
	Platform              string `json:"platform"`
	ScreenWidth           int    `json:"screen_width"`
	ScreenHeight          int    `json:"screen_height"`
	TimezoneOffsetMinutes int    `json:"timezone_offset_minutes"`
	CanvasSignature       string `json:"canvas_signature"`
}

// Generate derives the fingerprint for a set of client signals. It is a pure
// function: identical signals always produce the same value, and a missing
// signal degrades to a fixed placeholder instead of failing. Collisions are
// acceptable.
func Generate(s Signals) string {
	parts := []string{
		orUnknown(s.UserAgent),
		orUnknown(s.Language),
		orUnknown(s.Platform),
		fmt.Sprintf("%dx%d", s.ScreenWidth, s.ScreenHeight),
		fmt.Sprintf("tz%d", s.TimezoneOffsetMinutes),
		orUnknown(s.CanvasSignature),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])[:32]
}

func orUnknown(v string) string {
	if strings.TrimSpace(v) == "" {
		return unknownSignal
	}
	return v
}
