// Package validation provides input validation and sanitization for
// network messages.
package validation

import (
	"encoding/json"
	"fmt"
	"html"
	"math"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/opd-ai/go-orbit/pkg/engine"
)

// Message size and content limits.
const (
	MaxMessageSize    = 64 * 1024
	MaxPlayerNameLen  = 32
	MaxCommandsPerMin = 600
)

// Player names allow alphanumerics, spaces, and light punctuation. This
// blocks most characters that cause trouble downstream while leaving room
// for reasonable callsigns.
var validPlayerNameChars = regexp.MustCompile(`^[a-zA-Z0-9\s\-_.<>()]+$`)

// commandKinds is the closed set of accepted wire commands.
var commandKinds = map[engine.CommandKind]bool{
	engine.ThrustStart:    true,
	engine.ThrustStop:     true,
	engine.SetAngle:       true,
	engine.TurnLeftStart:  true,
	engine.TurnLeftStop:   true,
	engine.TurnRightStart: true,
	engine.TurnRightStop:  true,
}

// MessageValidator validates inbound messages with per-client rate
// limiting.
type MessageValidator struct {
	rateLimiter *RateLimiter
}

// NewMessageValidator creates a message validator. The rate budget covers
// toggle commands at interactive frequency with ample headroom.
func NewMessageValidator() *MessageValidator {
	return &MessageValidator{
		rateLimiter: NewRateLimiter(MaxCommandsPerMin, time.Minute),
	}
}

// Close releases the validator's resources.
func (v *MessageValidator) Close() {
	if v.rateLimiter != nil {
		v.rateLimiter.Close()
	}
}

// ValidateMessage checks a raw message against size, format, and rate
// constraints.
func (v *MessageValidator) ValidateMessage(data []byte, clientID string) error {
	if len(data) > MaxMessageSize {
		return fmt.Errorf("message too large: %d bytes (max %d)", len(data), MaxMessageSize)
	}

	if !json.Valid(data) {
		return fmt.Errorf("invalid JSON format")
	}

	if !v.rateLimiter.Allow(clientID) {
		return fmt.Errorf("rate limit exceeded: max %d messages per minute", MaxCommandsPerMin)
	}

	return nil
}

// ValidatePlayerName validates and sanitizes a player name.
func ValidatePlayerName(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("player name cannot be empty")
	}

	if len(name) > MaxPlayerNameLen {
		return "", fmt.Errorf("player name too long: %d characters (max %d)", len(name), MaxPlayerNameLen)
	}

	if !utf8.ValidString(name) {
		return "", fmt.Errorf("player name contains invalid UTF-8 characters")
	}

	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", fmt.Errorf("player name cannot be only whitespace")
	}

	for _, r := range trimmed {
		if unicode.IsControl(r) {
			return "", fmt.Errorf("player name contains control characters")
		}
	}

	if !validPlayerNameChars.MatchString(trimmed) {
		return "", fmt.Errorf("player name contains invalid characters (only alphanumeric, spaces, hyphens, underscores, and basic punctuation allowed)")
	}

	// Escape HTML so names render safely in web spectator views.
	return html.EscapeString(trimmed), nil
}

// ValidateCommand checks a decoded command: the kind must be in the wire
// enum, and a set_angle must carry a finite value. Toggle commands must not
// carry a value at all.
func ValidateCommand(cmd engine.Command) error {
	if !commandKinds[cmd.Input] {
		return fmt.Errorf("unknown command kind: %q", cmd.Input)
	}

	if cmd.Input == engine.SetAngle {
		if cmd.Value == nil {
			return fmt.Errorf("set_angle requires a value")
		}
		if math.IsNaN(*cmd.Value) || math.IsInf(*cmd.Value, 0) {
			return fmt.Errorf("set_angle value must be finite")
		}
		return nil
	}

	if cmd.Value != nil {
		return fmt.Errorf("command %q does not take a value", cmd.Input)
	}
	return nil
}
