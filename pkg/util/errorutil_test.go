package util

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func TestToDomainError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantCode   string
		wantStatus int
	}{
		{"domain error passes through", NewValidationError("bad", nil), "VALIDATION_FAILED", http.StatusBadRequest},
		{"wrapped domain error", fmt.Errorf("handler: %w", NewNotFound("ticket", nil)), "NOT_FOUND", http.StatusNotFound},
		{"fiber route miss", fiber.ErrNotFound, "NOT_FOUND", http.StatusNotFound},
		{"deadline", fmt.Errorf("list tickets: %w", context.DeadlineExceeded), "TIMEOUT", http.StatusGatewayTimeout},
		{"unknown", errors.New("boom"), "INTERNAL_ERROR", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToDomainError(tt.err)
			if got.Code != tt.wantCode || got.HTTPStatus != tt.wantStatus {
				t.Fatalf("ToDomainError = %s/%d, want %s/%d", got.Code, got.HTTPStatus, tt.wantCode, tt.wantStatus)
			}
		})
	}
	if ToDomainError(nil) != nil {
		t.Fatal("ToDomainError(nil) should be nil")
	}
}

func TestInternalErrorKeepsCause(t *testing.T) {
	cause := errors.New("pool closed")
	if err := ToDomainError(cause); !errors.Is(err, cause) {
		t.Fatalf("errors.Is(%v, cause) = false", err)
	}
}
