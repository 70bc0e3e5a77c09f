package receiptno

import (
	"sort"
	"strings"
	"testing"
)

func TestNewToken_UniqueAndSorted(t *testing.T) {
	const n = 1000
	tokens := make([]string, n)
	seen := make(map[string]bool, n)

	for i := 0; i < n; i++ {
		tok := NewToken("RCP")
		if seen[tok] {
			t.Fatalf("duplicate token %s", tok)
		}
		seen[tok] = true
		tokens[i] = tok
	}

	// Tokens generated in sequence must already be in lexical order.
	sorted := append([]string(nil), tokens...)
	sort.Strings(sorted)
	for i := range tokens {
		if tokens[i] != sorted[i] {
			t.Fatalf("tokens not sortable by generation order at %d: %s vs %s", i, tokens[i], sorted[i])
		}
	}
}

func TestNewToken_Prefix(t *testing.T) {
	tok := NewToken("RCP")
	if !strings.HasPrefix(tok, "RCP-") {
		t.Errorf("expected RCP- prefix, got %s", tok)
	}
	if len(strings.Split(tok, "-")) != 3 {
		t.Errorf("expected three segments, got %s", tok)
	}
}
