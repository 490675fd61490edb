package errors_test

import (
	"errors"
	"fmt"
	"testing"

	. "swfdiff/pkg/errors"
)

func TestErrorCode_Message(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want string
	}{
		{Success, "Success"},
		{GenerationExhausted, "Generation retries exhausted"},
		{LaunchFailed, "Interpreter launch failed"},
		{DisplayFailed, "Virtual display unavailable"},
		{ErrorCode(99999), "Unknown error"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.code.Message(); got != tt.want {
				t.Errorf("Message() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestErrorCode_HTTPStatus(t *testing.T) {
	tests := []struct {
		code       ErrorCode
		wantStatus int
	}{
		{Success, 200},
		{InvalidParams, 400},
		{ConfigInvalid, 400},
		{FailureNotFound, 404},
		{StorageError, 500},
	}

	for _, tt := range tests {
		t.Run(tt.code.Message(), func(t *testing.T) {
			if got := tt.code.HTTPStatus(); got != tt.wantStatus {
				t.Errorf("HTTPStatus() = %v, want %v", got, tt.wantStatus)
			}
		})
	}
}

func TestWrapKeepsFirstCode(t *testing.T) {
	inner := New(DisplayFailed)
	outer := Wrap(fmt.Errorf("lane 3: %w", inner), StorageError)

	if outer.Code != DisplayFailed {
		t.Fatalf("Wrap() code = %v, want %v", outer.Code, DisplayFailed)
	}
}

func TestIsWalksChain(t *testing.T) {
	base := errors.New("connection refused")
	err := Wrapf(Wrap(base, StorageError), LaunchFailed, "start oracle")

	if !Is(err, LaunchFailed) {
		t.Error("expected LaunchFailed in chain")
	}
	if !Is(err, StorageError) {
		t.Error("expected StorageError in chain")
	}
	if Is(err, DisplayFailed) {
		t.Error("unexpected DisplayFailed in chain")
	}
	if !errors.Is(err, base) {
		t.Error("expected std errors.Is to reach the base error")
	}
}

func TestGetCode(t *testing.T) {
	if got := GetCode(nil); got != Success {
		t.Errorf("GetCode(nil) = %v, want Success", got)
	}
	if got := GetCode(errors.New("plain")); got != InternalServerError {
		t.Errorf("GetCode(plain) = %v, want InternalServerError", got)
	}
	wrapped := fmt.Errorf("cycle: %w", New(GenerationExhausted))
	if got := GetCode(wrapped); got != GenerationExhausted {
		t.Errorf("GetCode(wrapped) = %v, want GenerationExhausted", got)
	}
}

func TestErrorStringIncludesCause(t *testing.T) {
	err := Wrapf(errors.New("no such file"), LaunchFailed, "start projector")
	if got := err.Error(); got != "start projector: no such file" {
		t.Errorf("Error() = %q", got)
	}
}

func TestValidationError(t *testing.T) {
	err := ValidationError("lanes", "must be positive")
	if err.Code != ValidationFailed {
		t.Fatalf("code = %v", err.Code)
	}
	if err.Details["field"] != "lanes" {
		t.Errorf("field detail = %v", err.Details["field"])
	}
}

func TestIsInfrastructure(t *testing.T) {
	if !DisplayFailed.IsInfrastructure() {
		t.Error("DisplayFailed should be infrastructure")
	}
	if GenerationExhausted.IsInfrastructure() {
		t.Error("GenerationExhausted is a cycle-level error")
	}
}
