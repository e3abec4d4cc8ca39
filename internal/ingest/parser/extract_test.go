package parser

import (
	"context"
	"strings"
	"testing"

	"github.com/tracevine/tracevine-backend/internal/types"
)

func testLimits() Limits {
	return Limits{MaxNodeBytes: 10_000, MaxRegexNodes: 20, WholeFileCap: 5_000}
}

func TestRegexExtract_BalancedBodies(t *testing.T) {
	src := []byte(`
function handleLogin(user) {
	if (user) {
		return audit(user);
	}
	return null;
}

class SessionStore {
	constructor() {}
}
`)
	cands := regexExtract(src, 20)
	if len(cands) != 2 {
		t.Fatalf("candidates = %d, want 2: %+v", len(cands), cands)
	}
	byName := map[string]Candidate{}
	for _, c := range cands {
		byName[c.Name] = c
	}
	login, ok := byName["handleLogin"]
	if !ok {
		t.Fatalf("missing handleLogin in %+v", cands)
	}
	if login.Kind != types.NodeKindFunction {
		t.Fatalf("handleLogin kind = %q", login.Kind)
	}
	if !strings.Contains(login.Text, "return audit(user);") || !strings.HasSuffix(strings.TrimSpace(login.Text), "}") {
		t.Fatalf("body not balanced:\n%s", login.Text)
	}
	if store := byName["SessionStore"]; store.Kind != types.NodeKindClass {
		t.Fatalf("SessionStore kind = %q", store.Kind)
	}
}

func TestRegexExtract_CapsCandidates(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 40; i++ {
		b.WriteString("function fn")
		b.WriteByte(byte('a' + i%26))
		b.WriteString(strings.Repeat("x", i/26))
		b.WriteString("() { return 1; }\n")
	}
	cands := regexExtract([]byte(b.String()), 20)
	if len(cands) > 20 {
		t.Fatalf("cap exceeded: %d candidates", len(cands))
	}
}

func TestExtract_WholeFileFallback(t *testing.T) {
	content := []byte("just prose, no declarations at all\nsecond line\n")
	cands := Extract(context.Background(), NewRegistry(), "notes/readme.txt", content, testLimits())
	if len(cands) != 1 {
		t.Fatalf("candidates = %d, want 1 whole-file node", len(cands))
	}
	c := cands[0]
	if c.Kind != types.NodeKindFile {
		t.Fatalf("kind = %q, want file", c.Kind)
	}
	if c.NodePath != "file:readme.txt" {
		t.Fatalf("node path = %q", c.NodePath)
	}
	if c.Text != string(content) {
		t.Fatalf("whole-file text mismatch")
	}
}

func TestExtract_WholeFileCapApplies(t *testing.T) {
	content := []byte(strings.Repeat("a", 6000))
	cands := Extract(context.Background(), NewRegistry(), "big.txt", content, testLimits())
	if len(cands) != 1 {
		t.Fatalf("candidates = %d, want 1", len(cands))
	}
	if len(cands[0].Text) != 5000 {
		t.Fatalf("whole-file text = %d bytes, want capped at 5000", len(cands[0].Text))
	}
}

func TestExtract_EmptyInputYieldsNothing(t *testing.T) {
	if cands := Extract(context.Background(), NewRegistry(), "empty.txt", []byte("  \n\t"), testLimits()); len(cands) != 0 {
		t.Fatalf("whitespace-only input produced %d candidates", len(cands))
	}
}

func TestExtract_NodeByteCap(t *testing.T) {
	big := "function huge() {" + strings.Repeat("x();", 4000) + "}"
	small := "function tiny() { return 1; }"
	content := []byte(big + "\n" + small + "\n")
	lim := testLimits()
	lim.MaxNodeBytes = 1000
	cands := Extract(context.Background(), NewRegistry(), "mixed.js2", content, lim)
	for _, c := range cands {
		if len(c.Text) > lim.MaxNodeBytes {
			t.Fatalf("oversized candidate kept: %d bytes (%s)", len(c.Text), c.NodePath)
		}
	}
}

func TestUniqueNodePaths(t *testing.T) {
	cands := uniqueNodePaths([]Candidate{
		{NodePath: "function:init"},
		{NodePath: "function:init"},
		{NodePath: "function:init"},
		{NodePath: "class:App"},
	})
	want := []string{"function:init", "function:init#2", "function:init#3", "class:App"}
	for i, c := range cands {
		if c.NodePath != want[i] {
			t.Fatalf("node path[%d] = %q, want %q", i, c.NodePath, want[i])
		}
	}
}
