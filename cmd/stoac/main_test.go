package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/pbrown/stoac/internal/editor"
)

// fakeEditor records the pre-filled text and answers with a canned result
type fakeEditor struct {
	calls   int
	initial string
	result  *string // nil = accept initial unchanged
	err     error
}

func (f *fakeEditor) Edit(ctx context.Context, prompt, initial string) (string, error) {
	f.calls++
	f.initial = initial
	if f.err != nil {
		return "", f.err
	}
	if f.result != nil {
		return *f.result, nil
	}
	return initial, nil
}

// fakeExecutor records what would have been run
type fakeExecutor struct {
	ran  []string
	code int
}

func (f *fakeExecutor) Run(ctx context.Context, text string) (int, error) {
	f.ran = append(f.ran, text)
	return f.code, nil
}

type testApp struct {
	*App
	stdout *bytes.Buffer
	stderr *bytes.Buffer
	editor *fakeEditor
	exec   *fakeExecutor
	home   string
}

// newTestApp creates an App on a temp database and temp history directory
func newTestApp(t *testing.T) *testApp {
	t.Helper()
	dir := t.TempDir()
	home := filepath.Join(dir, "home")
	if err := os.MkdirAll(home, 0755); err != nil {
		t.Fatalf("failed to create home: %v", err)
	}

	var stdout, stderr bytes.Buffer
	ed := &fakeEditor{}
	ex := &fakeExecutor{}

	app := NewApp()
	app.stdin = strings.NewReader("")
	app.stdout = &stdout
	app.stderr = &stderr
	app.dbPath = filepath.Join(dir, "config", "stoac", "stoac-db")
	app.historyDir = home
	app.editor = ed
	app.executor = ex

	return &testApp{App: app, stdout: &stdout, stderr: &stderr, editor: ed, exec: ex, home: home}
}

func (ta *testApp) run(args ...string) int {
	ta.stdout.Reset()
	ta.stderr.Reset()
	return ta.Run(append([]string{"stoac"}, args...))
}

func (ta *testApp) writeHistory(t *testing.T, name string, lines ...string) {
	t.Helper()
	content := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(filepath.Join(ta.home, name), []byte(content), 0600); err != nil {
		t.Fatalf("failed to write history: %v", err)
	}
}

func strPtr(s string) *string { return &s }

func Test_StoreThenLoad_RoundTrip(t *testing.T) {
	app := newTestApp(t)

	if code := app.run("--store", "pods", "--text-store", "kubectl get pods -A"); code != 0 {
		t.Fatalf("store: expected exit code 0, got %d (stderr: %s)", code, app.stderr.String())
	}
	if !strings.Contains(app.stdout.String(), `Stored "pods": kubectl get pods -A`) {
		t.Errorf("unexpected store output: %q", app.stdout.String())
	}

	if code := app.run("-l", "pods", "-p"); code != 0 {
		t.Fatalf("load: expected exit code 0, got %d (stderr: %s)", code, app.stderr.String())
	}
	if app.stdout.String() != "kubectl get pods -A\n" {
		t.Errorf("expected stored text, got %q", app.stdout.String())
	}
	if len(app.exec.ran) != 0 {
		t.Errorf("--print-output should not execute, ran %v", app.exec.ran)
	}
}

func Test_Store_Overwrites(t *testing.T) {
	app := newTestApp(t)
	app.run("-s", "b", "-t", "make")
	app.run("-s", "b", "-t", "go build ./...")

	app.run("-l", "b", "-p")
	if app.stdout.String() != "go build ./...\n" {
		t.Errorf("expected overwritten text, got %q", app.stdout.String())
	}
}

func Test_Load_EditsThenExecutes(t *testing.T) {
	app := newTestApp(t)
	app.run("-s", "logs", "-t", "docker logs api")
	app.editor.result = strPtr("docker logs -f api")

	if code := app.run("-l", "logs"); code != 0 {
		t.Fatalf("expected exit code 0, got %d (stderr: %s)", code, app.stderr.String())
	}

	if app.editor.initial != "docker logs api" {
		t.Errorf("editor should be pre-filled with stored text, got %q", app.editor.initial)
	}
	if diff := cmp.Diff([]string{"docker logs -f api"}, app.exec.ran); diff != "" {
		t.Errorf("executed commands mismatch (-want +got):\n%s", diff)
	}
}

func Test_Load_PropagatesExitCode(t *testing.T) {
	app := newTestApp(t)
	app.run("-s", "fail", "-t", "false")
	app.exec.code = 3

	if code := app.run("-l", "fail"); code != 3 {
		t.Errorf("expected child exit code 3, got %d", code)
	}
	if app.stderr.Len() != 0 {
		t.Errorf("expected no stderr for child failure, got %q", app.stderr.String())
	}
}

func Test_Load_EditCanceled(t *testing.T) {
	app := newTestApp(t)
	app.run("-s", "rm", "-t", "rm -rf build")
	app.editor.err = editor.ErrCanceled

	if code := app.run("-l", "rm"); code != 130 {
		t.Errorf("expected exit code 130, got %d", code)
	}
	if len(app.exec.ran) != 0 {
		t.Errorf("canceled edit must not execute, ran %v", app.exec.ran)
	}
}

func Test_Load_EditedToEmpty_Fails(t *testing.T) {
	app := newTestApp(t)
	app.run("-s", "ls", "-t", "ls -la")
	app.editor.result = strPtr("   ")

	if code := app.run("-l", "ls"); code != 1 {
		t.Errorf("expected exit code 1, got %d", code)
	}
	if len(app.exec.ran) != 0 {
		t.Errorf("empty command must not execute, ran %v", app.exec.ran)
	}
}

func Test_Load_NotFound_SuggestsPrefixMatches(t *testing.T) {
	app := newTestApp(t)
	app.run("-s", "git-a", "-t", "git add -A")
	app.run("-s", "git-b", "-t", "git branch -vv")

	code := app.run("-l", "git")
	if code == 0 {
		t.Fatal("expected non-zero exit code for missing tag")
	}

	stderr := app.stderr.String()
	if !strings.Contains(stderr, `command not found for tag "git"`) {
		t.Errorf("expected not-found message, got %q", stderr)
	}
	if !strings.Contains(stderr, "did you mean: git-a, git-b") {
		t.Errorf("expected suggestions, got %q", stderr)
	}
}

func Test_Load_NotFound_NoSuggestions(t *testing.T) {
	app := newTestApp(t)

	if code := app.run("-l", "nothing"); code != 1 {
		t.Errorf("expected exit code 1, got %d", code)
	}
	if strings.Contains(app.stderr.String(), "did you mean") {
		t.Errorf("expected no suggestions, got %q", app.stderr.String())
	}
}

func Test_DeleteThenLoad_NotFound(t *testing.T) {
	app := newTestApp(t)
	app.run("-s", "tmp", "-t", "cd /tmp")

	if code := app.run("-d", "tmp"); code != 0 {
		t.Fatalf("delete: expected exit code 0, got %d (stderr: %s)", code, app.stderr.String())
	}
	if !strings.Contains(app.stdout.String(), `Deleted "tmp"`) {
		t.Errorf("unexpected delete output: %q", app.stdout.String())
	}

	if code := app.run("-l", "tmp"); code == 0 {
		t.Fatal("expected load after delete to fail")
	}
	if !strings.Contains(app.stderr.String(), "not found") {
		t.Errorf("expected not-found report, got %q", app.stderr.String())
	}
}

func Test_Delete_Missing(t *testing.T) {
	app := newTestApp(t)

	if code := app.run("--delete", "ghost"); code != 1 {
		t.Errorf("expected exit code 1, got %d", code)
	}
	if !strings.Contains(app.stderr.String(), `no command stored under tag "ghost"`) {
		t.Errorf("unexpected stderr: %q", app.stderr.String())
	}
}

func Test_Print_ListsInTagOrder(t *testing.T) {
	app := newTestApp(t)
	app.run("-s", "zeta", "-t", "echo z")
	app.run("-s", "alpha", "-t", "echo a")
	app.run("-s", "mid", "-t", "echo m | wc -c")

	if code := app.run("--print"); code != 0 {
		t.Fatalf("expected exit code 0, got %d (stderr: %s)", code, app.stderr.String())
	}

	want := "alpha: echo a\nmid: echo m | wc -c\nzeta: echo z\n"
	if diff := cmp.Diff(want, app.stdout.String()); diff != "" {
		t.Errorf("print output mismatch (-want +got):\n%s", diff)
	}
}

func Test_Print_Empty(t *testing.T) {
	app := newTestApp(t)

	if code := app.run("--print"); code != 0 {
		t.Fatalf("expected exit code 0, got %d", code)
	}
	if app.stdout.String() != "No commands stored.\n" {
		t.Errorf("unexpected output: %q", app.stdout.String())
	}
}

func Test_StoreIndex_Bash_RawLine(t *testing.T) {
	app := newTestApp(t)
	app.writeHistory(t, ".bash_history", "cd src", "make test", "git push")

	if code := app.run("-s", "test", "-x", "2", "--shell", "bash"); code != 0 {
		t.Fatalf("expected exit code 0, got %d (stderr: %s)", code, app.stderr.String())
	}

	app.run("-l", "test", "-p")
	if app.stdout.String() != "make test\n" {
		t.Errorf("expected history line, got %q", app.stdout.String())
	}
}

func Test_StoreIndex_Zsh_StripsTimestamp(t *testing.T) {
	app := newTestApp(t)
	app.writeHistory(t, ".zsh_history", ": 1700000000:0;cd src", "123:0;ls -la")

	if code := app.run("-s", "ll", "--index-store", "2", "--shell", "zsh"); code != 0 {
		t.Fatalf("expected exit code 0, got %d (stderr: %s)", code, app.stderr.String())
	}

	app.run("-l", "ll", "-p")
	if app.stdout.String() != "ls -la\n" {
		t.Errorf("expected stripped zsh line, got %q", app.stdout.String())
	}
}

func Test_StoreIndex_DefaultShellAndLastEntry(t *testing.T) {
	app := newTestApp(t)
	app.shell = "zsh"
	app.writeHistory(t, ".zsh_history", ": 1:0;first", ": 2:0;last one")

	if code := app.run("-s", "last", "-x", "-1"); code != 0 {
		t.Fatalf("expected exit code 0, got %d (stderr: %s)", code, app.stderr.String())
	}

	app.run("-l", "last", "-p")
	if app.stdout.String() != "last one\n" {
		t.Errorf("expected last zsh entry, got %q", app.stdout.String())
	}
}

func Test_StoreIndex_OutOfRange(t *testing.T) {
	app := newTestApp(t)
	app.writeHistory(t, ".bash_history", "only")

	if code := app.run("-s", "x", "-x", "5", "--shell", "bash"); code == 0 {
		t.Fatal("expected non-zero exit code for out-of-range index")
	}
	if !strings.Contains(app.stderr.String(), "out of range") {
		t.Errorf("unexpected stderr: %q", app.stderr.String())
	}

	app.run("--print")
	if app.stdout.String() != "No commands stored.\n" {
		t.Errorf("nothing should have been stored, got %q", app.stdout.String())
	}
}

func Test_StoreIndex_UnsupportedShell(t *testing.T) {
	app := newTestApp(t)

	if code := app.run("-s", "x", "-x", "1", "--shell", "fish"); code != 1 {
		t.Errorf("expected exit code 1, got %d", code)
	}
	if !strings.Contains(app.stderr.String(), "unsupported shell") {
		t.Errorf("unexpected stderr: %q", app.stderr.String())
	}
}

func Test_StoreText_UnsupportedShellRejected(t *testing.T) {
	app := newTestApp(t)

	if code := app.run("-s", "x", "-t", "ls", "--shell", "fish"); code != 1 {
		t.Errorf("expected exit code 1, got %d", code)
	}
	if !strings.Contains(app.stderr.String(), "unsupported shell") {
		t.Errorf("unexpected stderr: %q", app.stderr.String())
	}
	if code := app.run("-l", "x", "-p"); code != 1 {
		t.Errorf("expected nothing stored, got exit code %d (stdout: %q)", code, app.stdout.String())
	}
}

func Test_StoreIndex_MissingHistoryFile(t *testing.T) {
	app := newTestApp(t)

	if code := app.run("-s", "x", "-x", "1", "--shell", "bash"); code != 1 {
		t.Errorf("expected exit code 1, got %d", code)
	}
}

func Test_StoreInteractive_PrefillsExisting(t *testing.T) {
	app := newTestApp(t)
	app.run("-s", "up", "-t", "docker compose up")
	app.editor.result = strPtr("docker compose up -d")

	if code := app.run("-s", "up", "-i"); code != 0 {
		t.Fatalf("expected exit code 0, got %d (stderr: %s)", code, app.stderr.String())
	}
	if app.editor.initial != "docker compose up" {
		t.Errorf("expected editor pre-filled with current command, got %q", app.editor.initial)
	}

	app.run("-l", "up", "-p")
	if app.stdout.String() != "docker compose up -d\n" {
		t.Errorf("expected edited text stored, got %q", app.stdout.String())
	}
}

func Test_StoreInteractive_NewTagStartsEmpty(t *testing.T) {
	app := newTestApp(t)
	app.editor.result = strPtr("htop")

	if code := app.run("-s", "top", "--interactive-store"); code != 0 {
		t.Fatalf("expected exit code 0, got %d (stderr: %s)", code, app.stderr.String())
	}
	if app.editor.initial != "" {
		t.Errorf("expected empty pre-fill for new tag, got %q", app.editor.initial)
	}
}

func Test_StoreInteractive_WithHistoryPrefill(t *testing.T) {
	app := newTestApp(t)
	app.writeHistory(t, ".bash_history", "ssh prod-1")

	if code := app.run("-s", "prod", "-i", "-x", "1", "--shell", "bash"); code != 0 {
		t.Fatalf("expected exit code 0, got %d (stderr: %s)", code, app.stderr.String())
	}
	if app.editor.initial != "ssh prod-1" {
		t.Errorf("expected history line as pre-fill, got %q", app.editor.initial)
	}
}

func Test_StoreInteractive_Canceled(t *testing.T) {
	app := newTestApp(t)
	app.editor.err = editor.ErrCanceled

	if code := app.run("-s", "x", "-i"); code != 130 {
		t.Errorf("expected exit code 130, got %d", code)
	}
}

func Test_Store_InvalidTag(t *testing.T) {
	app := newTestApp(t)

	if code := app.run("-s", "two words", "-t", "ls"); code != 1 {
		t.Errorf("expected exit code 1, got %d", code)
	}
}

func Test_FlagValidation(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no operation", nil},
		{"two operations", []string{"-l", "a", "-d", "a"}},
		{"text without store", []string{"-l", "a", "-t", "ls"}},
		{"store without source", []string{"-s", "a"}},
		{"text and index together", []string{"-s", "a", "-t", "ls", "-x", "1"}},
		{"print-output without load", []string{"--print", "-p"}},
		{"unknown flag", []string{"--bogus"}},
		{"positional argument", []string{"-l", "a", "extra"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(t)
			if code := app.run(tt.args...); code == 0 {
				t.Errorf("expected non-zero exit code for %v", tt.args)
			}
			if !strings.HasPrefix(app.stderr.String(), "error: ") {
				t.Errorf("expected error on stderr, got %q", app.stderr.String())
			}
		})
	}
}

func Test_Help(t *testing.T) {
	app := newTestApp(t)

	if code := app.run("--help"); code != 0 {
		t.Fatalf("expected exit code 0, got %d", code)
	}
	if !strings.Contains(app.stdout.String(), "--index-store") {
		t.Errorf("expected flag list in help output, got %q", app.stdout.String())
	}
}

func Test_Load_RealShell(t *testing.T) {
	app := newTestApp(t)
	app.executor = nil // initPaths wires a sh -c executor on the app's streams

	app.run("-s", "greet", "-t", "echo hello | tr a-z A-Z")
	if code := app.run("-l", "greet"); code != 0 {
		t.Fatalf("expected exit code 0, got %d (stderr: %s)", code, app.stderr.String())
	}
	if app.stdout.String() != "HELLO\n" {
		t.Errorf("expected command output, got %q", app.stdout.String())
	}
}

func Test_Run_UsesConfigFromEnv(t *testing.T) {
	xdg := t.TempDir()
	home := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	t.Setenv("HOME", home)
	t.Setenv("STOAC_DB", "")
	t.Setenv("STOAC_DEBUG", "")

	var stdout, stderr bytes.Buffer
	app := NewApp()
	app.stdout = &stdout
	app.stderr = &stderr

	if code := app.Run([]string{"stoac", "-s", "ll", "-t", "ls -la"}); code != 0 {
		t.Fatalf("expected exit code 0, got %d (stderr: %s)", code, stderr.String())
	}
	if _, err := os.Stat(filepath.Join(xdg, "stoac", "stoac-db")); err != nil {
		t.Errorf("expected database under XDG_CONFIG_HOME: %v", err)
	}
}

func Test_Run_NoHome(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("HOME", "")

	var stderr bytes.Buffer
	app := NewApp()
	app.stdout = &bytes.Buffer{}
	app.stderr = &stderr

	if code := app.Run([]string{"stoac", "--print"}); code != 1 {
		t.Errorf("expected exit code 1, got %d", code)
	}
	if !strings.Contains(stderr.String(), "HOME") {
		t.Errorf("expected missing-home error, got %q", stderr.String())
	}
}

func Test_HelpAndVersion_NoHome(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("HOME", "")

	for _, flag := range []string{"--help", "--version"} {
		t.Run(flag, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			app := NewApp()
			app.stdout = &stdout
			app.stderr = &stderr

			if code := app.Run([]string{"stoac", flag}); code != 0 {
				t.Fatalf("expected exit code 0, got %d (stderr: %s)", code, stderr.String())
			}
			if stdout.Len() == 0 {
				t.Errorf("expected %s output on stdout", flag)
			}
		})
	}
}
