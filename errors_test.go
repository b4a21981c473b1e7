package kvstore

import (
	"errors"
	"fmt"
	"testing"
)

func TestStructuredError(t *testing.T) {
	err := NewError("SET", ErrCodeCapacityExceeded, "keyspace is full")

	if err.Op != "SET" {
		t.Errorf("Op = %s, want SET", err.Op)
	}
	if err.Code != ErrCodeCapacityExceeded {
		t.Errorf("Code = %s, want %s", err.Code, ErrCodeCapacityExceeded)
	}

	expected := "kvstore: keyspace is full (op=SET)"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestErrorFallsBackToCodeWhenMsgEmpty(t *testing.T) {
	err := NewError("DISPATCH", ErrCodeUnknownCommand, "")
	if err.WireMessage() != string(ErrCodeUnknownCommand) {
		t.Errorf("WireMessage() = %q, want %q", err.WireMessage(), ErrCodeUnknownCommand)
	}
}

func TestWrapErrorPreservesCode(t *testing.T) {
	inner := NewError("LOAD_SNAPSHOT", ErrCodeFatalStartup, "truncated header")
	wrapped := WrapError("BOOT", inner)

	if wrapped.Code != ErrCodeFatalStartup {
		t.Errorf("wrapped.Code = %s, want %s", wrapped.Code, ErrCodeFatalStartup)
	}
	if wrapped.Op != "BOOT" {
		t.Errorf("wrapped.Op = %s, want BOOT", wrapped.Op)
	}
}

func TestWrapErrorOnPlainError(t *testing.T) {
	inner := fmt.Errorf("disk full")
	wrapped := WrapError("LOAD_SNAPSHOT", inner)

	if wrapped.Code != ErrCodeFatalStartup {
		t.Errorf("wrapped.Code = %s, want %s", wrapped.Code, ErrCodeFatalStartup)
	}
	if !errors.Is(wrapped, inner) {
		t.Error("expected wrapped error to satisfy errors.Is for the inner error")
	}
}

func TestWrapErrorOnNilIsNil(t *testing.T) {
	if WrapError("SET", nil) != nil {
		t.Error("WrapError(op, nil) should return nil")
	}
}

func TestIsCode(t *testing.T) {
	err := NewError("REPLCONF", ErrCodeRoleViolation, "ACK from non-replica")

	if !IsCode(err, ErrCodeRoleViolation) {
		t.Error("IsCode should return true for matching code")
	}
	if IsCode(err, ErrCodeProtocol) {
		t.Error("IsCode should return false for non-matching code")
	}
	if IsCode(nil, ErrCodeRoleViolation) {
		t.Error("IsCode should return false for nil error")
	}
}

func TestErrorIsMatchesByCodeNotIdentity(t *testing.T) {
	a := &Error{Code: ErrCodeWrongArity, Msg: "SET needs 2 or 4 arguments"}
	b := &Error{Code: ErrCodeWrongArity, Msg: "GET needs exactly 1 argument"}

	if !errors.Is(a, b) {
		t.Error("two *Error values with the same Code should match via errors.Is")
	}
}
