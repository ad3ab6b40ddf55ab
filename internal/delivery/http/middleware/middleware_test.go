package middleware

import (
	"errors"
	"testing"

	"github.com/gofiber/fiber/v3"
)

func TestBearerTokenFromHeader(t *testing.T) {
	cases := map[string]struct {
		token string
		ok    bool
	}{
		"":                  {"", false},
		"Bearer":            {"", false},
		"Basic abc":         {"", false},
		"Bearer   ":         {"", false},
		"bearer abc.def":    {"abc.def", true},
		"  Bearer  xyz  ":   {"xyz", true},
		"Bearer a b":        {"a b", true},
	}
	for header, want := range cases {
		got, ok := bearerTokenFromHeader(header)
		if got != want.token || ok != want.ok {
			t.Fatalf("%q: expected (%q, %v), got (%q, %v)", header, want.token, want.ok, got, ok)
		}
	}
}

func TestNormalizeError(t *testing.T) {
	cause := errors.New("pq: connection reset")

	status, msg, data := normalizeError(NewAppError(fiber.StatusConflict, "", map[string]int{"id": 1}, nil))
	if status != fiber.StatusConflict || msg == "" || data == nil {
		t.Fatalf("expected conflict with data, got %d %q %v", status, msg, data)
	}

	status, msg, _ = normalizeError(NewAppError(fiber.StatusBadGateway, "upstream said no", nil, cause))
	if status != fiber.StatusInternalServerError || msg == "upstream said no" {
		t.Fatalf("expected 5xx hidden, got %d %q", status, msg)
	}

	status, msg, _ = normalizeError(NewAppError(fiber.StatusServiceUnavailable, "Session closed, retry", nil, cause))
	if status != fiber.StatusServiceUnavailable || msg != "Session closed, retry" {
		t.Fatalf("expected 503 passed through, got %d %q", status, msg)
	}

	status, _, _ = normalizeError(fiber.ErrNotFound)
	if status != fiber.StatusNotFound {
		t.Fatalf("expected fiber 404 kept, got %d", status)
	}

	status, _, _ = normalizeError(cause)
	if status != fiber.StatusInternalServerError {
		t.Fatalf("expected 500 for plain errors, got %d", status)
	}
}
