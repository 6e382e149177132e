package id

import (
	"encoding/base32"
	"strings"
	"testing"
)

func decodeID(t *testing.T, value string) []byte {
	t.Helper()
	decoded, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(strings.ToUpper(value))
	if err != nil {
		t.Fatalf("decode id: %v", err)
	}
	return decoded
}

func TestNewIDFormat(t *testing.T) {
	value, err := NewID()
	if err != nil {
		t.Fatalf("new id: %v", err)
	}
	if len(value) != 26 {
		t.Fatalf("expected 26-character id, got %d", len(value))
	}
	for _, r := range value {
		if (r < 'a' || r > 'z') && (r < '2' || r > '7') {
			t.Fatalf("unexpected character %q in id", r)
		}
	}

	decoded := decodeID(t, value)
	if len(decoded) != 16 {
		t.Fatalf("expected 16 decoded bytes, got %d", len(decoded))
	}
	if version := decoded[6] >> 4; version != 4 {
		t.Fatalf("expected UUID version 4, got %d", version)
	}
	if variant := decoded[8] & 0xC0; variant != 0x80 {
		t.Fatalf("expected UUID variant 0x80, got 0x%X", variant)
	}
}

func TestNewPrefixed(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
		want   string
	}{
		{name: "monster prefix", prefix: "mon", want: "mon_"},
		{name: "blank prefix falls back to bare id", prefix: "  ", want: ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			value, err := NewPrefixed(tc.prefix)
			if err != nil {
				t.Fatalf("new prefixed id: %v", err)
			}
			if !strings.HasPrefix(value, tc.want) {
				t.Fatalf("expected prefix %q, got %q", tc.want, value)
			}
			bare := strings.TrimPrefix(value, tc.want)
			if len(bare) != 26 {
				t.Fatalf("expected 26-character suffix, got %d", len(bare))
			}
		})
	}
}
