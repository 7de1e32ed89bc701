package toolexec

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"clipdeck/internal/metrics"
)

func shell(t *testing.T) Tool {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	return Tool{Name: "sh", Binary: "sh", VersionArgs: []string{"-c", "echo sh 1.0; echo extra"}}
}

func TestRunCapturesStreams(t *testing.T) {
	e := NewExec(zerolog.Nop(), metrics.New(), 0)

	res, err := e.Run(context.Background(), shell(t), "-c", "echo out; echo err >&2")
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if res.Stdout != "out\n" {
		t.Errorf("stdout = %q, want %q", res.Stdout, "out\n")
	}
	if res.Stderr != "err\n" {
		t.Errorf("stderr = %q, want %q", res.Stderr, "err\n")
	}
	if res.ExitCode != 0 {
		t.Errorf("exit code = %d, want 0", res.ExitCode)
	}
}

func TestRunNonZeroExit(t *testing.T) {
	e := NewExec(zerolog.Nop(), nil, 0)

	res, err := e.Run(context.Background(), shell(t), "-c", "echo 'ERROR: Unsupported URL' >&2; exit 3")

	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected *ExitError, got %v", err)
	}
	if exitErr.Code != 3 {
		t.Errorf("code = %d, want 3", exitErr.Code)
	}
	if !strings.Contains(exitErr.Error(), "ERROR: Unsupported URL") {
		t.Errorf("error %q should carry stderr", exitErr.Error())
	}
	if res == nil || res.ExitCode != 3 {
		t.Errorf("result should be returned with exit code 3, got %+v", res)
	}
}

func TestRunMissingBinary(t *testing.T) {
	e := NewExec(zerolog.Nop(), nil, 0)
	tool := Tool{Name: "ghost", Binary: "clipdeck-no-such-binary"}

	_, err := e.Run(context.Background(), tool)
	if err == nil {
		t.Fatal("expected error for missing binary")
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		t.Error("missing binary should not be reported as an exit error")
	}
}

func TestRunTimeout(t *testing.T) {
	e := NewExec(zerolog.Nop(), nil, 50*time.Millisecond)

	_, err := e.Run(context.Background(), shell(t), "-c", "exec sleep 5")
	if err == nil {
		t.Fatal("expected timeout to kill the tool")
	}
}

func TestProbe(t *testing.T) {
	e := NewExec(zerolog.Nop(), nil, 0)

	version, err := e.Probe(context.Background(), shell(t))
	if err != nil {
		t.Fatalf("Probe() error: %v", err)
	}
	if version != "sh 1.0" {
		t.Errorf("version = %q, want first line only", version)
	}
}

func TestProbeUnavailable(t *testing.T) {
	e := NewExec(zerolog.Nop(), nil, 0)
	tool := YtDlp("clipdeck-no-such-yt-dlp")

	_, err := e.Probe(context.Background(), tool)

	var unavailable *UnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected *UnavailableError, got %v", err)
	}
	if !strings.Contains(err.Error(), "pip install yt-dlp") {
		t.Errorf("error %q should carry install guidance", err.Error())
	}
}

func TestLineBuffer(t *testing.T) {
	var lines []string
	b := &lineBuffer{onLine: func(l string) { lines = append(lines, l) }}

	b.Write([]byte("[download]  12.5% of 10MiB\r[download]  50"))
	b.Write([]byte(".0% of 10MiB\n\npartial"))

	if len(lines) != 2 {
		t.Fatalf("expected 2 complete lines, got %d: %q", len(lines), lines)
	}
	if lines[1] != "[download]  50.0% of 10MiB" {
		t.Errorf("line[1] = %q", lines[1])
	}
	if !strings.HasSuffix(b.String(), "partial") {
		t.Errorf("buffer should keep everything written, got %q", b.String())
	}
}

func TestDefaultTools(t *testing.T) {
	if got := YtDlp("").Binary; got != "yt-dlp" {
		t.Errorf("YtDlp default binary = %q", got)
	}
	if got := FFmpeg("/opt/ffmpeg").Binary; got != "/opt/ffmpeg" {
		t.Errorf("FFmpeg binary = %q", got)
	}
	if !strings.Contains(FFmpeg("").InstallHint, "brew install ffmpeg") {
		t.Error("ffmpeg hint should include install guidance")
	}
}
