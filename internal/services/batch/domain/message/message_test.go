package message

import (
	"errors"
	"math"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		msg       Message
		wantErr   bool
		wantField string
	}{
		{
			name: "valid message",
			msg:  Message{MessageNum: 10, AgentID: 1, X: 1000, Y: 5000, Checksum: 6001},
		},
		{
			name:      "checksum mismatch",
			msg:       Message{MessageNum: 10, AgentID: 1, X: 1000, Y: 5000, Checksum: 6003},
			wantErr:   true,
			wantField: FieldChecksum,
		},
		{
			name:      "y below x and below min",
			msg:       Message{MessageNum: 10, AgentID: 1, X: 5000, Y: 1000, Checksum: 6001},
			wantErr:   true,
			wantField: FieldY,
		},
		{
			name: "bypass agent admits invalid fields",
			msg:  Message{MessageNum: 10, AgentID: 0, X: 5000, Y: 1000, Checksum: 0},
		},
		{
			name:      "y below min but above x",
			msg:       Message{MessageNum: 10, AgentID: 1, X: 100, Y: 4999, Checksum: 5100},
			wantErr:   true,
			wantField: FieldY,
		},
		{
			name: "bounds inclusive",
			msg:  Message{AgentID: 3000, X: 15000, Y: 20000, Checksum: 38000},
		},
		{
			name:      "agent id above max",
			msg:       Message{AgentID: 3001, X: 1000, Y: 5000, Checksum: 9001},
			wantErr:   true,
			wantField: FieldAgentID,
		},
		{
			name:      "x above max",
			msg:       Message{AgentID: 1, X: 15001, Y: 20000, Checksum: 35002},
			wantErr:   true,
			wantField: FieldX,
		},
		{
			name:      "y above max",
			msg:       Message{AgentID: 1, X: 1000, Y: 20001, Checksum: 21002},
			wantErr:   true,
			wantField: FieldY,
		},
		{
			name:      "y equal x",
			msg:       Message{AgentID: 1, X: 6000, Y: 6000, Checksum: 12001},
			wantErr:   true,
			wantField: FieldY,
		},
		{
			name:      "sum would wrap",
			msg:       Message{AgentID: 1, X: math.MaxUint64, Y: 5000, Checksum: 5000},
			wantErr:   true,
			wantField: FieldX,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.msg)
			if !tc.wantErr {
				if err != nil {
					t.Fatalf("validate: %v", err)
				}
				return
			}
			if !errors.Is(err, ErrInvalidMessage) {
				t.Fatalf("expected ErrInvalidMessage, got %v", err)
			}
			var validationErr *ValidationError
			if !errors.As(err, &validationErr) {
				t.Fatalf("expected *ValidationError, got %T", err)
			}
			if validationErr.Violations[0].Field != tc.wantField {
				t.Fatalf("first violation field = %q, want %q", validationErr.Violations[0].Field, tc.wantField)
			}
		})
	}
}

func TestValidateReportsEveryViolatedRange(t *testing.T) {
	err := Validate(Message{AgentID: 4000, X: 16000, Y: 30000, Checksum: 0})
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	if len(validationErr.Violations) != 3 {
		t.Fatalf("violations = %v, want 3", validationErr.Violations)
	}
}

func TestValidationErrorMessage(t *testing.T) {
	err := Validate(Message{AgentID: 1, X: 1000, Y: 5000, Checksum: 6003})
	want := "message not valid: checksum: must equal agent_id+x+y (6001), got 6003"
	if err == nil || err.Error() != want {
		t.Fatalf("error = %v, want %q", err, want)
	}
}
