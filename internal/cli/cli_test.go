package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	apperrors "github.com/go-axe/axe/pkg/errors"
)

// runCLI executes the root command with args, resetting flag-bound package
// state first: cobra only reassigns a flag's bound variable when that flag
// is present in args, so a value set by an earlier test (e.g. --dir) would
// otherwise leak into a later one that omits it.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	testDir = ""
	testWorkers = 0
	testHistoryDB = ""
	testReport = ""
	testGlobalClock = false
	testIgnoreTimestamps = false
	checkGlobalClock = false
	checkIgnoreTimestamps = false
	historyDB = defaultHistoryDB
	historyLimit = 20
	otlpEndpoint = ""
	configPath = ""
	appConfig = nil
	testCmd.Flags().Lookup("workers").Changed = false
	testCmd.Flags().Lookup("history-db").Changed = false

	buf := &bytes.Buffer{}
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestCheckCmd_SingleThreadAccepted(t *testing.T) {
	trace := writeTempFile(t, "trivial.trace", "0 : M[0] := 1\n0 : M[0] == 1\n")
	out, err := runCLI(t, "check", "SC", trace)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if strings.TrimSpace(out) != "OK" {
		t.Fatalf("output = %q, want OK", out)
	}
}

func TestCheckCmd_StoreBufferingRejectedUnderSC(t *testing.T) {
	trace := writeTempFile(t, "sb.trace", `
0 : M[0] := 1
0 : M[1] == 0
1 : M[1] := 1
1 : M[0] == 0
`)
	out, err := runCLI(t, "check", "SC", trace)
	if err != nil {
		t.Fatalf("check should exit 0 even on a NO verdict: %v", err)
	}
	if strings.TrimSpace(out) != "NO" {
		t.Fatalf("output = %q, want NO", out)
	}
}

func TestCheckCmd_UnknownModel(t *testing.T) {
	trace := writeTempFile(t, "t.trace", "0 : M[0] := 1\n")
	_, err := runCLI(t, "check", "XYZ", trace)
	if err == nil {
		t.Fatal("expected an error for an unknown model")
	}
	if code := apperrors.GetErrorCode(err); code != apperrors.CodeInvalidInput {
		t.Errorf("GetErrorCode(err) = %s, want %s", code, apperrors.CodeInvalidInput)
	}
}

func TestCheckCmd_MissingFile(t *testing.T) {
	_, err := runCLI(t, "check", "SC", filepath.Join(t.TempDir(), "nope.trace"))
	if err == nil {
		t.Fatal("expected an error for a missing trace file")
	}
	if code := apperrors.GetErrorCode(err); code != apperrors.CodeNotFound {
		t.Errorf("GetErrorCode(err) = %s, want %s", code, apperrors.CodeNotFound)
	}
}

func TestTestCmd_SingleFilePass(t *testing.T) {
	trace := writeTempFile(t, "sb.trace", `
0 : M[0] := 1
0 : M[1] == 0
1 : M[1] := 1
1 : M[0] == 0
`)
	answer := writeTempFile(t, "sb.ans", "N\n")
	out, err := runCLI(t, "test", "SC", trace, answer)
	if err != nil {
		t.Fatalf("test: %v", err)
	}
	if !strings.Contains(out, "O 0: pass") {
		t.Fatalf("output = %q, want a pass line", out)
	}
}

func TestTestCmd_SingleFileFail(t *testing.T) {
	trace := writeTempFile(t, "sb.trace", `
0 : M[0] := 1
0 : M[1] == 0
1 : M[1] := 1
1 : M[0] == 0
`)
	answer := writeTempFile(t, "sb.ans", "O\n")
	if _, err := runCLI(t, "test", "SC", trace, answer); err == nil {
		t.Fatal("expected a non-nil error when the verdict doesn't match the answer")
	}
}

func TestTestCmd_DirMode(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "trivial.trace"), []byte("0 : M[0] := 1\n0 : M[0] == 1\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "trivial.ans"), []byte("O\n"), 0644); err != nil {
		t.Fatal(err)
	}
	out, err := runCLI(t, "test", "SC", "--dir", dir)
	if err != nil {
		t.Fatalf("test --dir: %v", err)
	}
	if !strings.Contains(out, "1/1 passed") {
		t.Fatalf("output = %q, want a 1/1 passed summary", out)
	}
}

func TestTestCmd_DirMode_ConfigDefaults(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "trivial.trace"), []byte("0 : M[0] := 1\n0 : M[0] == 1\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "trivial.ans"), []byte("O\n"), 0644); err != nil {
		t.Fatal(err)
	}

	historyPath := filepath.Join(t.TempDir(), "history.db")
	configFile := writeTempFile(t, "axe.yaml", `
database:
  host: localhost
  type: postgres
storage:
  type: local
checker:
  workers: 2
  history_db_path: `+historyPath+`
`)

	out, err := runCLI(t, "--config", configFile, "test", "SC", "--dir", dir)
	if err != nil {
		t.Fatalf("test --dir with --config: %v", err)
	}
	if !strings.Contains(out, "1/1 passed") {
		t.Fatalf("output = %q, want a 1/1 passed summary", out)
	}
	if _, statErr := os.Stat(historyPath); statErr != nil {
		t.Fatalf("expected history DB at %s created from config default, got: %v", historyPath, statErr)
	}
}

func TestHistoryCmd_Empty(t *testing.T) {
	db := filepath.Join(t.TempDir(), "history.db")
	out, err := runCLI(t, "history", "--history-db", db)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if !strings.Contains(out, "no history recorded") {
		t.Fatalf("output = %q, want empty-history message", out)
	}
}

func TestVersionCmd(t *testing.T) {
	out, err := runCLI(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out, "version") {
		t.Fatalf("output = %q, want version info", out)
	}
}
