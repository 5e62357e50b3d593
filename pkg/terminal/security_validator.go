package terminal

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/antibyte/retroturtle/pkg/auth"
	"github.com/antibyte/retroturtle/pkg/configuration"
)

// Validation errors returned by SecurityValidator.
var (
	ErrInvalidSessionID   = errors.New("invalid session id")
	ErrProgramTooLarge    = errors.New("program too large")
	ErrTooManyLines       = errors.New("program has too many lines")
	ErrInvalidEncoding    = errors.New("program is not valid UTF-8")
	ErrControlCharacter   = errors.New("program contains control characters")
	ErrUnknownRequestType = errors.New("unknown request type")
)

// SecurityValidator checks session ids and submitted programs before they
// reach an interpreter.
type SecurityValidator struct {
	maxBytes      int
	maxLines      int
	rejectControl bool
}

// NewSecurityValidator reads its limits from [Interpreter] and [Security].
func NewSecurityValidator() *SecurityValidator {
	return &SecurityValidator{
		maxBytes:      configuration.GetInt("Interpreter", "max_program_kb", 32) * 1024,
		maxLines:      configuration.GetInt("Security", "max_program_lines", 2000),
		rejectControl: configuration.GetBool("Security", "reject_control_char", true),
	}
}

// ValidateSessionID accepts only ids in the form the server issues.
func (sv *SecurityValidator) ValidateSessionID(sessionID string) error {
	if !auth.IsValidSessionID(sessionID) {
		return fmt.Errorf("%w: %q", ErrInvalidSessionID, truncate(sessionID, 64))
	}
	return nil
}

// ValidateProgram enforces size, line and charset limits on program text.
func (sv *SecurityValidator) ValidateProgram(program string) error {
	if sv.maxBytes > 0 && len(program) > sv.maxBytes {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrProgramTooLarge, len(program), sv.maxBytes)
	}
	if sv.maxLines > 0 {
		if lines := strings.Count(program, "\n") + 1; lines > sv.maxLines {
			return fmt.Errorf("%w: %d, limit %d", ErrTooManyLines, lines, sv.maxLines)
		}
	}
	if !utf8.ValidString(program) {
		return ErrInvalidEncoding
	}
	if sv.rejectControl {
		for i, r := range program {
			if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
				return fmt.Errorf("%w: %U at offset %d", ErrControlCharacter, r, i)
			}
		}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
