package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRepositoryQueriesAreMarked(t *testing.T) {
	violations, err := lint([]string{"../../sqlinline"})
	if err != nil {
		t.Fatalf("lint() error: %v", err)
	}
	for _, v := range violations {
		t.Errorf("%s", v)
	}
}

func TestLintReportsProblems(t *testing.T) {
	dir := t.TempDir()
	src := "package q\n\n" +
		"const QOk = `--sql 11111111-2222-3333-4444-555555555555\nselect 1;\n`\n\n" +
		"const QDup = `--sql 11111111-2222-3333-4444-555555555555\nselect 2;\n`\n\n" +
		"const QBare = `select 3;`\n\n" +
		"const QBadMarker = `--sql not-a-uuid\nupdate t set x = 1;\n`\n\n" +
		"const Greeting = \"hello\"\n"
	if err := os.WriteFile(filepath.Join(dir, "q.go"), []byte(src), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	violations, err := lint([]string{dir})
	if err != nil {
		t.Fatalf("lint() error: %v", err)
	}
	got := map[string]string{}
	for _, v := range violations {
		got[v.name] = v.message
	}
	if len(got) != 3 {
		t.Fatalf("violations = %v, want 3", violations)
	}
	if !strings.Contains(got["QDup"], "already used by QOk") {
		t.Fatalf("QDup message = %q", got["QDup"])
	}
	for _, name := range []string{"QBare", "QBadMarker"} {
		if !strings.Contains(got[name], "missing or invalid") {
			t.Fatalf("%s message = %q", name, got[name])
		}
	}
}
