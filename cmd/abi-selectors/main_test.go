package main

import (
	"bytes"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
)

func TestPrintSelectors(t *testing.T) {
	var out bytes.Buffer
	if err := printSelectors(&out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	text := out.String()
	wantSelector := crypto.Keccak256([]byte("batchCounter()"))[:4]
	if !strings.Contains(text, "function batchCounter(): 0x"+hex.EncodeToString(wantSelector)) {
		t.Fatalf("missing batchCounter selector in:\n%s", text)
	}
	for _, name := range []string{"OrderPlaced", "OrderCompleted", "OrderCancelled", "BatchCreated", "BatchDeleted"} {
		if !strings.Contains(text, "event "+name+"(") {
			t.Fatalf("missing event %s in:\n%s", name, text)
		}
	}

	lines := strings.Split(strings.TrimSpace(text), "\n")
	if !strings.HasPrefix(lines[0], "function ") || !strings.HasPrefix(lines[len(lines)-1], "event ") {
		t.Fatalf("expected functions before events:\n%s", text)
	}
}
