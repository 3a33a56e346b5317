package util

import (
	"errors"
	"strings"
	"testing"
)

func TestParseID(t *testing.T) {
	id := NewID()
	got, err := ParseID("  " + strings.ToUpper(id) + " ")
	if err != nil {
		t.Fatalf("ParseID() error = %v", err)
	}
	if got != id {
		t.Fatalf("ParseID() = %q, want %q", got, id)
	}

	for _, raw := range []string{"", "   ", "not-an-id", "1234"} {
		if _, err := ParseID(raw); !errors.Is(err, ErrMalformedID) {
			t.Fatalf("ParseID(%q) error = %v, want ErrMalformedID", raw, err)
		}
	}
}

func TestNewToken(t *testing.T) {
	token := NewToken("rft", 16)
	if !strings.HasPrefix(token, "rft_") || len(token) != len("rft_")+32 {
		t.Fatalf("unexpected token %q", token)
	}
	if NewToken("", 8) == NewToken("", 8) {
		t.Fatal("expected distinct tokens")
	}
}
