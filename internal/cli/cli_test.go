package cli

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/lazypower/degrade/internal/counter"
	"github.com/lazypower/degrade/internal/store"
)

// run executes the root command against a scratch SQLite database in dir.
func run(t *testing.T, dir string, args ...string) string {
	t.Helper()
	color.NoColor = true
	t.Setenv("DEGRADE_DB", filepath.Join(dir, "degrade.db"))
	t.Setenv("DEGRADE_BACKEND", "")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	full := append([]string{"--config", filepath.Join(dir, "config.yaml"), "--server", ""}, args...)
	rootCmd.SetArgs(full)
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("degrade %s: %v\n%s", strings.Join(args, " "), err, out.String())
	}
	return strings.TrimSpace(out.String())
}

func TestCounterCommands(t *testing.T) {
	dir := t.TempDir()

	if got := run(t, dir, "incr", "k", "--amount", "5", "--rate", "1", "--interval", "1min"); got != "5" {
		t.Errorf("incr = %q, want 5", got)
	}
	if got := run(t, dir, "peek", "k"); got != "5" {
		t.Errorf("peek = %q, want 5", got)
	}
	if got := run(t, dir, "decr", "k", "2"); got != "3" {
		t.Errorf("decr = %q, want 3", got)
	}
	if got := run(t, dir, "decr", "k", "3"); got != "0" {
		t.Errorf("decr to zero = %q, want 0", got)
	}
	if got := run(t, dir, "peek", "k"); got != "(nil)" {
		t.Errorf("peek after delete = %q, want (nil)", got)
	}
}

func TestIncrBadInterval(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DEGRADE_DB", filepath.Join(dir, "degrade.db"))

	rootCmd.SetArgs([]string{"--config", filepath.Join(dir, "config.yaml"), "--server", "",
		"incr", "k", "--amount", "1", "--rate", "1", "--interval", "5hours"})
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	if err := rootCmd.Execute(); err == nil {
		t.Fatal("expected error for bad interval")
	}
	// Reset so later tests see the default.
	incrInterval = "1sec"
}

func TestSaveLoad(t *testing.T) {
	dir := t.TempDir()
	snap := filepath.Join(dir, "snap.dgrd")

	run(t, dir, "incr", "a", "--amount", "4", "--rate", "1", "--interval", "1min")
	run(t, dir, "incr", "b", "--amount", "2", "--rate", "1", "--interval", "1min")
	if got := run(t, dir, "save", snap); !strings.Contains(got, "saved 2 keys") {
		t.Errorf("save output = %q", got)
	}

	run(t, dir, "decr", "a", "4")
	if got := run(t, dir, "load", snap); !strings.Contains(got, "loaded 2 keys") {
		t.Errorf("load output = %q", got)
	}
	if got := run(t, dir, "peek", "a"); got != "4" {
		t.Errorf("peek a after load = %q, want 4", got)
	}

	// load rewrites the journal to one increment per live counter.
	lines := strings.Split(run(t, dir, "journal"), "\n")
	if len(lines) != 2 {
		t.Fatalf("journal after load has %d lines, want 2: %q", len(lines), lines)
	}
	if !strings.HasPrefix(lines[0], `["DC.INCR","a","AMOUNT","4"`) {
		t.Errorf("journal[0] = %s", lines[0])
	}
}

func TestReplay(t *testing.T) {
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	now := int64(1_700_000_000_000)
	ctrl := counter.New(db, counter.NewType(), counter.WithClock(func() int64 { return now }))

	input := strings.Join([]string{
		`["DC.INCR","k","AMOUNT","10","DEGRADE_RATE","1","INTERVAL","1sec"]`,
		``,
		`["dc.decr","k","4"]`,
		`["DC.INCR","gone","AMOUNT","1","DEGRADE_RATE","1","INTERVAL","1sec"]`,
		`["DEL","gone"]`,
	}, "\n")
	n, err := replay(context.Background(), ctrl, bufio.NewScanner(strings.NewReader(input)))
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if n != 4 {
		t.Errorf("replayed %d commands, want 4", n)
	}

	v, ok, err := ctrl.Peek(context.Background(), "k")
	if err != nil || !ok || v != 6 {
		t.Errorf("Peek(k) = %v, %v, %v; want 6, true, nil", v, ok, err)
	}
	if _, ok, _ := ctrl.Peek(context.Background(), "gone"); ok {
		t.Error("deleted key still present after replay")
	}
}

func TestReplayStopsOnBadLine(t *testing.T) {
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	ctrl := counter.New(db, counter.NewType())

	input := "[\"DC.PEEK\",\"k\"]\nnot json\n"
	n, err := replay(context.Background(), ctrl, bufio.NewScanner(strings.NewReader(input)))
	if err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Fatalf("replay error = %v, want line 2 failure", err)
	}
	if n != 1 {
		t.Errorf("replayed %d commands before failure, want 1", n)
	}
}

func TestReplayCommand(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "journal.jsonl")
	data := `["DC.INCR","r","AMOUNT","3","DEGRADE_RATE","1","INTERVAL","1min"]` + "\n"
	if err := os.WriteFile(file, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	if got := run(t, dir, "replay", file); got != "replayed 1 commands" {
		t.Errorf("replay output = %q", got)
	}
	if got := run(t, dir, "peek", "r"); got != "3" {
		t.Errorf("peek r = %q, want 3", got)
	}
}
