package cursor

import (
	"strings"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	for _, seq := range []uint64{0, 1, 42, 1 << 40} {
		token := Encode(seq)
		got, err := Decode(token)
		if err != nil {
			t.Fatalf("Decode(Encode(%d)) error = %v", seq, err)
		}
		if got != seq {
			t.Errorf("Decode(Encode(%d)) = %d", seq, got)
		}
	}
}

func TestDecodeEmptyStartsAtZero(t *testing.T) {
	seq, err := Decode("")
	if err != nil || seq != 0 {
		t.Errorf("Decode(\"\") = %d, %v", seq, err)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := Decode("not base64!!"); err == nil {
		t.Error("Decode(garbage) succeeded")
	}

	// Flip a character inside a valid token.
	token := Encode(7)
	tampered := strings.Replace(token, token[4:5], "A", 1)
	if tampered == token {
		tampered = strings.Replace(token, token[4:5], "B", 1)
	}
	if _, err := Decode(tampered); err == nil {
		t.Error("Decode(tampered) succeeded")
	}
}
