// Package message defines agent position messages and the admission rules a
// message must satisfy before its number is appended to the action log.
package message

import (
	"errors"
	"fmt"
	"strings"
)

// Admission bounds for non-privileged agents.
const (
	// BypassAgentID is the privileged agent whose messages skip every rule.
	BypassAgentID uint64 = 0
	MaxAgentID    uint64 = 3000
	MaxX          uint64 = 15000
	MinY          uint64 = 5000
	MaxY          uint64 = 20000
)

// Field names reported in violations.
const (
	FieldAgentID  = "agent_id"
	FieldX        = "x"
	FieldY        = "y"
	FieldChecksum = "checksum"
)

// ErrInvalidMessage matches every validation failure.
var ErrInvalidMessage = errors.New("message not valid")

// Message is one agent position report. Only MessageNum survives admission;
// the remaining fields exist to be checked.
type Message struct {
	MessageNum uint64
	AgentID    uint64
	X          uint64
	Y          uint64
	Checksum   uint64
}

// Violation describes one failed admission rule.
type Violation struct {
	Field       string
	Description string
}

// ValidationError lists every rule a message failed.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.Field+": "+v.Description)
	}
	return ErrInvalidMessage.Error() + ": " + strings.Join(parts, "; ")
}

// Is makes errors.Is(err, ErrInvalidMessage) hold.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidMessage
}

// Validate reports whether msg may be admitted. Messages from BypassAgentID
// are always admitted.
//
// Range rules run first; the checksum sum is only computed once every
// operand is known to be bounded, so it cannot wrap.
func Validate(msg Message) error {
	if msg.AgentID == BypassAgentID {
		return nil
	}

	var violations []Violation
	if msg.AgentID > MaxAgentID {
		violations = append(violations, Violation{
			Field:       FieldAgentID,
			Description: fmt.Sprintf("must be at most %d, got %d", MaxAgentID, msg.AgentID),
		})
	}
	if msg.X > MaxX {
		violations = append(violations, Violation{
			Field:       FieldX,
			Description: fmt.Sprintf("must be at most %d, got %d", MaxX, msg.X),
		})
	}
	if msg.Y < MinY || msg.Y > MaxY {
		violations = append(violations, Violation{
			Field:       FieldY,
			Description: fmt.Sprintf("must be within [%d, %d], got %d", MinY, MaxY, msg.Y),
		})
	}
	if msg.Y <= msg.X {
		violations = append(violations, Violation{
			Field:       FieldY,
			Description: fmt.Sprintf("must be greater than x (%d), got %d", msg.X, msg.Y),
		})
	}

	if len(violations) == 0 {
		if sum := msg.AgentID + msg.X + msg.Y; msg.Checksum != sum {
			violations = append(violations, Violation{
				Field:       FieldChecksum,
				Description: fmt.Sprintf("must equal agent_id+x+y (%d), got %d", sum, msg.Checksum),
			})
		}
	}

	if len(violations) > 0 {
		return &ValidationError{Violations: violations}
	}
	return nil
}
