package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/petal-labs/integrald"
	"github.com/petal-labs/integrald/config"
)

// newTestRoot creates a fresh cobra root command wired to all subcommands.
// Each test gets an isolated command tree and an empty home directory so a
// developer's own config never leaks in.
func newTestRoot(t *testing.T) *cobra.Command {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv(config.SQLitePathEnv, "")

	root := &cobra.Command{
		Use:          "integrald",
		SilenceUsage: true,
	}
	AddPersistentFlags(root)
	AddCommands(root)
	return root
}

// executeCommand runs a cobra command with the given args and captures stdout/stderr.
func executeCommand(root *cobra.Command, args ...string) (stdout, stderr string, err error) {
	var outBuf, errBuf bytes.Buffer
	root.SetOut(&outBuf)
	root.SetErr(&errBuf)
	root.SetArgs(args)
	err = root.Execute()
	return outBuf.String(), errBuf.String(), err
}

// writeTestFile creates a temporary file with the given content and returns its path.
func writeTestFile(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func exitCode(t *testing.T, err error) int {
	t.Helper()
	if err == nil {
		return exitSuccess
	}
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("error %v (%T) is not an *ExitError", err, err)
	}
	return exitErr.Code
}

func TestIntegrate_Text(t *testing.T) {
	tests := []struct {
		args []string
		want float64
	}{
		{[]string{"integrate", "x**2", "0", "3"}, 9},
		{[]string{"integrate", "sin(x)", "0", "pi"}, 2},
		{[]string{"integrate", "--", "exp(-x^2)", "-3", "3"}, math.Sqrt(math.Pi) * math.Erf(3)},
		{[]string{"integrate", "--", "x", "-pi", "pi"}, 0},
		{[]string{"integrate", "1/x", "1", "e"}, 1},
	}

	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			stdout, _, err := executeCommand(newTestRoot(t), tt.args...)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			got, err := strconv.ParseFloat(strings.TrimSpace(stdout), 64)
			if err != nil {
				t.Fatalf("output %q is not a number", stdout)
			}
			if math.Abs(got-tt.want) > 1e-8 {
				t.Fatalf("area = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIntegrate_ExitCodes(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		code    int
		message string
	}{
		{"inverted bounds", []string{"integrate", "x", "5", "1"}, exitInput, "The lower limit must be less than the upper limit."},
		{"equal bounds", []string{"integrate", "x", "2", "2"}, exitInput, "The lower limit must be less than the upper limit."},
		{"syntax", []string{"integrate", "x**2 +++ sin(x", "0", "1"}, exitExpression, ""},
		{"unknown function", []string{"integrate", "eval(x)", "0", "1"}, exitExpression, ""},
		{"divergent", []string{"integrate", "--", "1/x", "-1", "1"}, exitIntegration, ""},
		{"bad bound", []string{"integrate", "x", "zero", "1"}, exitInput, ""},
		{"bad format", []string{"integrate", "x", "0", "1", "--format", "xml"}, exitInput, ""},
		{"missing config", []string{"integrate", "x", "0", "1", "--config", "/nonexistent/integrald.yaml"}, exitConfig, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := executeCommand(newTestRoot(t), tt.args...)
			if got := exitCode(t, err); got != tt.code {
				t.Fatalf("exit code = %d, want %d (err %v)", got, tt.code, err)
			}
			if tt.message != "" && err.Error() != tt.message {
				t.Fatalf("message = %q, want %q", err.Error(), tt.message)
			}
		})
	}
}

func TestIntegrate_ExitErrorWrapsSolveError(t *testing.T) {
	_, _, err := executeCommand(newTestRoot(t), "integrate", "x", "5", "1")
	if !errors.Is(err, integrald.ErrBounds) {
		t.Fatalf("error = %v, want it to wrap integrald.ErrBounds", err)
	}
	if got := integrald.Categorize(err); got != integrald.CategoryInput {
		t.Fatalf("category = %q, want input", got)
	}
}

func TestIntegrate_JSON(t *testing.T) {
	stdout, _, err := executeCommand(newTestRoot(t), "integrate", "sqrt(x)", "0", "1", "--format", "json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var out integrateOutput
	if err := json.Unmarshal([]byte(stdout), &out); err != nil {
		t.Fatalf("invalid JSON %q: %v", stdout, err)
	}
	if out.Area == nil || math.Abs(*out.Area-2.0/3.0) > 1e-8 {
		t.Fatalf("area = %v", out.Area)
	}
	if out.Error != nil {
		t.Fatalf("error = %q, want null", *out.Error)
	}
	if out.Evaluations == 0 || out.Intervals < 2 || out.Canonical != "sqrt(x)" {
		t.Fatalf("diagnostics = %+v", out)
	}
}

func TestIntegrate_JSONFailure(t *testing.T) {
	stdout, _, err := executeCommand(newTestRoot(t), "integrate", "y", "0", "1", "--format", "json")
	if exitCode(t, err) != exitExpression {
		t.Fatalf("exit code = %d, want %d", exitCode(t, err), exitExpression)
	}

	var out integrateOutput
	if err := json.Unmarshal([]byte(stdout), &out); err != nil {
		t.Fatalf("invalid JSON %q: %v", stdout, err)
	}
	if out.Area != nil || out.Error == nil || out.Category != "expression" {
		t.Fatalf("output = %s", stdout)
	}
}

func TestIntegrate_ConfigAndFlags(t *testing.T) {
	path := writeTestFile(t, "integrald.yaml", "quadrature:\n  max_depth: 1\n")

	_, _, err := executeCommand(newTestRoot(t), "integrate", "sqrt(x)", "0", "1", "--config", path)
	if got := exitCode(t, err); got != exitIntegration {
		t.Fatalf("with max_depth 1: exit code = %d, want %d (err %v)", got, exitIntegration, err)
	}

	_, _, err = executeCommand(newTestRoot(t), "integrate", "sqrt(x)", "0", "1", "--config", path, "--max-depth", "50")
	if err != nil {
		t.Fatalf("flag should override config: %v", err)
	}
}

func TestCheck(t *testing.T) {
	stdout, _, err := executeCommand(newTestRoot(t), "check", "x^2 + sin(x)")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(stdout, "ok: ") {
		t.Fatalf("stdout = %q", stdout)
	}

	stdout, _, err = executeCommand(newTestRoot(t), "check", "sqrt(-1 - x^2)")
	if err != nil {
		t.Fatalf("probe failure should only warn: %v", err)
	}
	if !strings.Contains(stdout, "warning: ") {
		t.Fatalf("stdout = %q, want a warning", stdout)
	}

	stdout, _, err = executeCommand(newTestRoot(t), "check", "x +* 2", "--format", "json")
	if exitCode(t, err) != exitExpression {
		t.Fatalf("exit code = %d, want %d", exitCode(t, err), exitExpression)
	}
	var out checkOutput
	if err := json.Unmarshal([]byte(stdout), &out); err != nil {
		t.Fatalf("invalid JSON %q: %v", stdout, err)
	}
	if out.Valid || out.Error == "" || out.Position == nil || *out.Position != 3 {
		t.Fatalf("output = %s", stdout)
	}
}

func TestSample_Text(t *testing.T) {
	stdout, _, err := executeCommand(newTestRoot(t), "sample", "--points", "3", "--", "1/x", "-1", "1")
	if err != nil {
		t.Fatalf("sample error: %v", err)
	}
	want := "-1\t-1\n0\tnull\n1\t1\n"
	if stdout != want {
		t.Fatalf("stdout = %q, want %q", stdout, want)
	}
}

func TestSample_JSON(t *testing.T) {
	stdout, _, err := executeCommand(newTestRoot(t), "sample", "x", "0", "1", "--format", "json")
	if err != nil {
		t.Fatalf("sample error: %v", err)
	}
	var out struct {
		Points []struct {
			X float64  `json:"x"`
			Y *float64 `json:"y"`
		} `json:"points"`
	}
	if err := json.Unmarshal([]byte(stdout), &out); err != nil {
		t.Fatalf("unmarshal %q: %v", stdout, err)
	}
	if len(out.Points) != 101 {
		t.Fatalf("points = %d, want 101", len(out.Points))
	}
}

func TestSample_ExitCodes(t *testing.T) {
	tests := []struct {
		name string
		args []string
		code int
	}{
		{"not whitelisted", []string{"sample", "eval(x)", "0", "1"}, exitExpression},
		{"inverted bounds", []string{"sample", "x", "1", "0"}, exitInput},
		{"too few points", []string{"sample", "x", "0", "1", "--points", "1"}, exitInput},
		{"zero points", []string{"sample", "x", "0", "1", "--points", "0"}, exitInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := executeCommand(newTestRoot(t), tt.args...)
			if got := exitCode(t, err); got != tt.code {
				t.Fatalf("exit code = %d, want %d (err %v)", got, tt.code, err)
			}
		})
	}
}

func TestFunctions(t *testing.T) {
	stdout, _, err := executeCommand(newTestRoot(t), "functions")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, name := range []string{"sin(x)", "cos(x)", "tan(x)", "sqrt(x)", "exp(x)", "log(x)", "abs(x)", "pi", "e"} {
		if !strings.Contains(stdout, name) {
			t.Fatalf("functions output missing %q:\n%s", name, stdout)
		}
	}

	stdout, _, err = executeCommand(newTestRoot(t), "functions", "--format", "json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var out struct {
		Variable string          `json:"variable"`
		Builtins []builtinOutput `json:"builtins"`
	}
	if err := json.Unmarshal([]byte(stdout), &out); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if out.Variable != "x" || len(out.Builtins) != 9 {
		t.Fatalf("output = %+v", out)
	}
}

func TestParseBound(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"0", 0, false},
		{"-2.5", -2.5, false},
		{"1e3", 1000, false},
		{"pi", math.Pi, false},
		{"-pi", -math.Pi, false},
		{"+e", math.E, false},
		{"inf", math.Inf(1), false},
		{"nan", 0, true},
		{"sin", 0, true},
		{"x", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := parseBound(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("parseBound(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if !tt.wantErr && got != tt.want {
			t.Fatalf("parseBound(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewLogger_Levels(t *testing.T) {
	root := newTestRoot(t)
	if err := root.ParseFlags([]string{"--verbose"}); err != nil {
		t.Fatal(err)
	}
	if !NewLogger(root).Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("--verbose should enable debug")
	}

	root = newTestRoot(t)
	if err := root.ParseFlags([]string{"--quiet"}); err != nil {
		t.Fatal(err)
	}
	if NewLogger(root).Enabled(context.Background(), slog.LevelWarn) {
		t.Fatal("--quiet should suppress warnings")
	}
}

func TestApplyServeFlags(t *testing.T) {
	cmd := NewServeCmd()
	if err := cmd.ParseFlags([]string{"--port", "9001", "--cors-origin", "https://a.example", "--cors-origin", "https://b.example", "--sqlite-path", "/tmp/h.db"}); err != nil {
		t.Fatal(err)
	}
	cfg := config.Default()
	applyServeFlags(cmd, &cfg)

	if cfg.Server.Port != 9001 {
		t.Fatalf("port = %d", cfg.Server.Port)
	}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[1] != "https://b.example" {
		t.Fatalf("cors origins = %v", cfg.Server.CORSOrigins)
	}
	if cfg.History.Driver != config.DriverSQLite || cfg.History.Path != "/tmp/h.db" {
		t.Fatalf("history = %+v", cfg.History)
	}
	if cfg.Server.Host != config.Default().Server.Host {
		t.Fatalf("unchanged host overwritten: %q", cfg.Server.Host)
	}
}

func TestServeRuntime(t *testing.T) {
	tests := []struct {
		name   string
		driver string
	}{
		{"memory", config.DriverMemory},
		{"sqlite", config.DriverSQLite},
		{"none", config.DriverNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.History.Driver = tt.driver
			cfg.History.Path = filepath.Join(t.TempDir(), "nested", "history.db")

			logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
			rt, err := newServeRuntime(context.Background(), cfg, logger)
			if err != nil {
				t.Fatalf("newServeRuntime: %v", err)
			}
			defer func() {
				if err := rt.Close(context.Background()); err != nil {
					t.Fatalf("Close: %v", err)
				}
			}()

			r := httptest.NewRequest(http.MethodPost, "/integrate", strings.NewReader(`{"expression": "x**2", "lower_limit": 0, "upper_limit": 3}`))
			w := httptest.NewRecorder()
			rt.Handler.ServeHTTP(w, r)
			if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"error":null`) {
				t.Fatalf("status %d body %s", w.Code, w.Body.String())
			}

			r = httptest.NewRequest(http.MethodGet, "/api/history", nil)
			w = httptest.NewRecorder()
			rt.Handler.ServeHTTP(w, r)
			wantStatus := http.StatusOK
			if tt.driver == config.DriverNone {
				wantStatus = http.StatusNotFound
			}
			if w.Code != wantStatus {
				t.Fatalf("history status %d, want %d", w.Code, wantStatus)
			}
		})
	}
}

func TestServeRuntime_BadRetention(t *testing.T) {
	cfg := config.Default()
	cfg.History.Retention = "not a cron"

	_, err := newServeRuntime(context.Background(), cfg, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	if err == nil {
		t.Fatal("expected retention schedule error")
	}
}
