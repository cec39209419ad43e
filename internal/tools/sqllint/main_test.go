package main

import (
	"strings"
	"testing"
)

const lintSample = "package sample\n\n" +
	"const QGood = `--sql 11111111-2222-4333-8444-555555555555\nselect 1;\n`\n\n" +
	"const QMissing = `select id from generation_jobs;`\n\n" +
	"const QDuplicate = `--sql 11111111-2222-4333-8444-555555555555\nupdate generation_jobs set status = 'failed';\n`\n\n" +
	"const notSQL = \"plain words\"\n"

func TestCheckReportsMissingAndDuplicateMarkers(t *testing.T) {
	stmts, err := collectFile("sample.go", lintSample)
	if err != nil {
		t.Fatalf("collectFile() error: %v", err)
	}
	if len(stmts) != 3 {
		t.Fatalf("collected %d statements, want 3", len(stmts))
	}
	violations := check(stmts)
	if len(violations) != 2 {
		t.Fatalf("got %d violations, want 2: %+v", len(violations), violations)
	}
	if violations[0].name != "QMissing" || !strings.Contains(violations[0].message, "missing") {
		t.Fatalf("unexpected first violation: %+v", violations[0])
	}
	if violations[1].name != "QDuplicate" || !strings.Contains(violations[1].message, "QGood") {
		t.Fatalf("unexpected second violation: %+v", violations[1])
	}
}

func TestFirstLineSkipsLeadingWhitespace(t *testing.T) {
	if got := firstLine("\n  --sql abc  \nselect 1"); got != "--sql abc" {
		t.Fatalf("firstLine() = %q", got)
	}
}

func TestSQLInlineStatementsAreMarked(t *testing.T) {
	stmts, err := collectTarget("../../sqlinline")
	if err != nil {
		t.Fatalf("collectTarget() error: %v", err)
	}
	if len(stmts) == 0 {
		t.Fatalf("no statements found")
	}
	if v := check(stmts); len(v) != 0 {
		t.Fatalf("violations: %+v", v)
	}
}
