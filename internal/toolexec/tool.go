// Package toolexec starts external command-line tools as child processes.
// Every invocation uses exec.CommandContext with an explicit argument slice,
// so nothing is interpreted by a shell.
package toolexec

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Tool describes an external binary and how to check that it is installed.
type Tool struct {
	Name        string   // display name, e.g. "yt-dlp"
	Binary      string   // executable name or absolute path
	VersionArgs []string // lightweight probe, e.g. --version
	InstallHint string   // shown to the operator when the tool is missing
}

// YtDlp returns the video-download tool descriptor.
func YtDlp(binary string) Tool {
	if binary == "" {
		binary = "yt-dlp"
	}
	return Tool{
		Name:        "yt-dlp",
		Binary:      binary,
		VersionArgs: []string{"--version"},
		InstallHint: "yt-dlp not found. Please install it: pip install yt-dlp",
	}
}

// FFmpeg returns the transcoding tool descriptor.
func FFmpeg(binary string) Tool {
	if binary == "" {
		binary = "ffmpeg"
	}
	return Tool{
		Name:        "ffmpeg",
		Binary:      binary,
		VersionArgs: []string{"-version"},
		InstallHint: "ffmpeg is required for segment downloads. Please install it: brew install ffmpeg",
	}
}

// Result is everything a finished child process produced.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Runner runs a tool to completion.
type Runner interface {
	// Run starts the tool with args and waits for it to exit.
	// A non-zero exit returns the Result together with an *ExitError.
	Run(ctx context.Context, tool Tool, args ...string) (*Result, error)

	// Probe checks that the tool is installed and returns its version line.
	// A missing or broken tool yields an *UnavailableError.
	Probe(ctx context.Context, tool Tool) (string, error)
}

// ExitError reports a tool that exited with a non-zero status.
type ExitError struct {
	Tool   string
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		return fmt.Sprintf("%s exited with status %d", e.Tool, e.Code)
	}
	return fmt.Sprintf("%s error: %s", e.Tool, msg)
}

// UnavailableError reports a tool that is not on the execution path or
// failed its version probe.
type UnavailableError struct {
	Tool string
	Hint string
	Err  error
}

func (e *UnavailableError) Error() string {
	if e.Hint != "" {
		return e.Hint
	}
	return fmt.Sprintf("%s is not available: %v", e.Tool, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }
