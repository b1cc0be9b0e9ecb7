package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestErrorKinds(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
	}{
		{"not found", &NotFoundError{Resource: "account", ID: "x"}, ErrNotFound},
		{"invalid state", &InvalidStateError{EntryID: "e", Status: EntryStatusReversed, Action: "post"}, ErrInvalidState},
		{"conflict", &ConflictError{Resource: "account", ID: "x", Reason: "has postings"}, ErrConflict},
		{"duplicate code", &ValidationError{Field: "code", Err: ErrDuplicateCode}, ErrDuplicateCode},
		{"duplicate code is validation", &ValidationError{Field: "code", Err: ErrDuplicateCode}, ErrValidation},
		{"persistence", &PersistenceError{Op: "commit", Err: context.DeadlineExceeded}, ErrPersistence},
		{"persistence keeps cause", &PersistenceError{Op: "commit", Err: context.DeadlineExceeded}, context.DeadlineExceeded},
		{"wrapped", fmt.Errorf("posting: %w", &NotFoundError{Resource: "journal entry", ID: "e"}), ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.target) {
				t.Errorf("errors.Is(%v, %v) = false", tt.err, tt.target)
			}
			if !IsClassified(tt.err) {
				t.Errorf("IsClassified(%v) = false", tt.err)
			}
		})
	}

	if IsClassified(errors.New("connection reset")) {
		t.Error("plain error should not be classified")
	}
}
