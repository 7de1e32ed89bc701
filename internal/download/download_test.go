package download

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"clipdeck/internal/media"
	"clipdeck/internal/toolexec"
	"clipdeck/internal/toolexec/mocks"
)

func offset(n int) *media.Offset {
	o := media.Offset(n)
	return &o
}

func newOrchestrator(t *testing.T, r *mocks.Runner, opts ...Option) *Orchestrator {
	t.Helper()
	return New(t.TempDir(), r, toolexec.YtDlp(""), toolexec.FFmpeg(""), zerolog.Nop(), opts...)
}

// writes simulates yt-dlp producing a file inside the output directory.
func writes(t *testing.T, dir, name string) func(mock.Arguments) {
	return func(mock.Arguments) {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("data"), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestSegmentLabel(t *testing.T) {
	tests := []struct {
		seconds int
		want    string
	}{
		{0, "0m00s"},
		{10, "0m10s"},
		{90, "1m30s"},
		{3599, "59m59s"},
		{3600, "1h00m00s"},
		{3725, "1h02m05s"},
	}
	for _, tt := range tests {
		if got := SegmentLabel(tt.seconds); got != tt.want {
			t.Errorf("SegmentLabel(%d) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}

func TestOutputTemplate(t *testing.T) {
	tests := []struct {
		name      string
		base      string
		formatID  string
		start     int
		end       int
		segmented bool
		want      string
	}{
		{"plain", "video", "18", 0, 0, false, "video_18.%(ext)s"},
		{"segment", "My Clip", "22", 30, 90, true, "My Clip_0m30s-1m30s_22.%(ext)s"},
		{"long segment", "talk", "137+140", 3600, 3725, true, "talk_1h00m00s-1h02m05s_137+140.%(ext)s"},
		{"slash in selector", "video", "22/18", 0, 0, false, "video_22_18.%(ext)s"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := OutputTemplate(tt.base, tt.formatID, tt.start, tt.end, tt.segmented)
			if got != tt.want {
				t.Errorf("OutputTemplate() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuildArgs(t *testing.T) {
	req := media.DownloadRequest{URL: "https://youtu.be/abc", FormatID: "18"}
	args := BuildArgs(req, "/out/video_18.%(ext)s", "")

	assert.Equal(t, []string{
		"-f", "18",
		"-o", "/out/video_18.%(ext)s",
		"--no-warnings",
		"--print", "after_move:filepath", "--no-simulate",
		"https://youtu.be/abc",
	}, args)
	assert.NotContains(t, args, "--download-sections")

	req.StartTime, req.EndTime = offset(30), offset(90)
	args = BuildArgs(req, "/out/x", "/opt/ffmpeg/bin/ffmpeg")
	assert.Contains(t, strings.Join(args, " "), "--download-sections *30-90")
	assert.Contains(t, strings.Join(args, " "), "--ffmpeg-location /opt/ffmpeg/bin/ffmpeg")
	assert.Equal(t, "https://youtu.be/abc", args[len(args)-1], "URL must be the last argument")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     media.DownloadRequest
		wantErr bool
	}{
		{"valid", media.DownloadRequest{URL: "https://youtu.be/a", FormatID: "18"}, false},
		{"valid segment", media.DownloadRequest{URL: "https://youtu.be/a", FormatID: "18", StartTime: offset(10), EndTime: offset(30)}, false},
		{"missing url", media.DownloadRequest{FormatID: "18"}, true},
		{"missing format", media.DownloadRequest{URL: "https://youtu.be/a"}, true},
		{"bad url", media.DownloadRequest{URL: "not-a-url", FormatID: "18"}, true},
		{"flag format", media.DownloadRequest{URL: "https://youtu.be/a", FormatID: "--exec"}, true},
		{"end before start", media.DownloadRequest{URL: "https://youtu.be/a", FormatID: "18", StartTime: offset(30), EndTime: offset(10)}, true},
		{"end equals start", media.DownloadRequest{URL: "https://youtu.be/a", FormatID: "18", StartTime: offset(30), EndTime: offset(30)}, true},
		{"zero start", media.DownloadRequest{URL: "https://youtu.be/a", FormatID: "18", StartTime: offset(0), EndTime: offset(30)}, true},
		{"negative start", media.DownloadRequest{URL: "https://youtu.be/a", FormatID: "18", StartTime: offset(-5), EndTime: offset(30)}, true},
		{"only start is not a segment", media.DownloadRequest{URL: "https://youtu.be/a", FormatID: "18", StartTime: offset(0)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.req)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				var verr *media.ValidationError
				assert.True(t, errors.As(err, &verr), "expected validation error")
			}
		})
	}
}

func TestDownloadRejectsBeforeInvocation(t *testing.T) {
	r := &mocks.Runner{}
	o := newOrchestrator(t, r)

	_, err := o.Download(context.Background(), media.DownloadRequest{
		URL: "https://youtu.be/a", FormatID: "18", StartTime: offset(30), EndTime: offset(10),
	})

	var verr *media.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "End time must be greater than start time", verr.Msg)
	r.AssertNotCalled(t, "Probe", mock.Anything, mock.Anything)
	r.AssertNotCalled(t, "Run", mock.Anything, mock.Anything, mock.Anything)
}

func TestDownloadFullUsesReportedPath(t *testing.T) {
	r := &mocks.Runner{}
	o := newOrchestrator(t, r)
	final := filepath.Join(o.Dir(), "video_18.mp4")

	r.On("Run", mock.Anything, mocks.ToolNamed("yt-dlp"), mock.MatchedBy(func(args []string) bool {
		for _, a := range args {
			if a == "--download-sections" {
				return false
			}
		}
		return args[1] == "18"
	})).Run(writes(t, o.Dir(), "video_18.mp4")).
		Return(&toolexec.Result{Stdout: final + "\n"}, nil)

	res, err := o.Download(context.Background(), media.DownloadRequest{URL: "https://youtu.be/a", FormatID: "18"})
	require.NoError(t, err)

	assert.Equal(t, "video_18.mp4", res.Filename)
	assert.Equal(t, "/downloads/video_18.mp4", res.DownloadPath)
	assert.False(t, res.Segmented)
	assert.NotEmpty(t, res.ID)
	r.AssertNotCalled(t, "Probe", mock.Anything, mock.Anything)
	r.AssertExpectations(t)
}

func TestDownloadPathIsURLEscaped(t *testing.T) {
	r := &mocks.Runner{}
	o := newOrchestrator(t, r)
	final := filepath.Join(o.Dir(), "C# talk?_18.mp4")

	r.On("Run", mock.Anything, mocks.ToolNamed("yt-dlp"), mock.Anything).
		Run(writes(t, o.Dir(), "C# talk?_18.mp4")).
		Return(&toolexec.Result{Stdout: final + "\n"}, nil)

	res, err := o.Download(context.Background(), media.DownloadRequest{URL: "https://youtu.be/a", FormatID: "18"})
	require.NoError(t, err)

	assert.Equal(t, "C# talk?_18.mp4", res.Filename)
	assert.Equal(t, "/downloads/C%23%20talk%3F_18.mp4", res.DownloadPath)
	r.AssertExpectations(t)
}

func TestDownloadFallsBackToNewestMatch(t *testing.T) {
	r := &mocks.Runner{}
	o := newOrchestrator(t, r)

	older := filepath.Join(o.Dir(), "Talk_22.mp4")
	require.NoError(t, os.WriteFile(older, []byte("old"), 0644))
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(older, past, past))
	require.NoError(t, os.WriteFile(filepath.Join(o.Dir(), "unrelated.mp4"), nil, 0644))

	r.On("Run", mock.Anything, mock.Anything, mock.Anything).
		Run(writes(t, o.Dir(), "Talk_18.webm")).
		Return(&toolexec.Result{Stdout: "[download] 100% of 1.00MiB\n"}, nil)

	res, err := o.Download(context.Background(), media.DownloadRequest{URL: "https://youtu.be/a", FormatID: "18", Title: "Talk"})
	require.NoError(t, err)
	assert.Equal(t, "Talk_18.webm", res.Filename)
}

func TestDownloadSegment(t *testing.T) {
	r := &mocks.Runner{}
	o := newOrchestrator(t, r)

	r.On("Probe", mock.Anything, mocks.ToolNamed("ffmpeg")).Return("ffmpeg version 7.0", nil)
	r.On("Run", mock.Anything, mocks.ToolNamed("yt-dlp"), mocks.HasArg("*30-90")).
		Run(writes(t, o.Dir(), "clip_0m30s-1m30s_22.mp4")).
		Return(&toolexec.Result{}, nil)

	res, err := o.Download(context.Background(), media.DownloadRequest{
		URL: "https://youtu.be/a", FormatID: "22", Title: "clip", StartTime: offset(30), EndTime: offset(90),
	})
	require.NoError(t, err)
	assert.Equal(t, "clip_0m30s-1m30s_22.mp4", res.Filename)
	assert.True(t, res.Segmented)
	r.AssertExpectations(t)
}

func TestDownloadSegmentNeedsFFmpeg(t *testing.T) {
	r := &mocks.Runner{}
	o := newOrchestrator(t, r)
	r.On("Probe", mock.Anything, mocks.ToolNamed("ffmpeg")).
		Return("", &toolexec.UnavailableError{Tool: "ffmpeg", Hint: toolexec.FFmpeg("").InstallHint})

	_, err := o.Download(context.Background(), media.DownloadRequest{
		URL: "https://youtu.be/a", FormatID: "22", StartTime: offset(30), EndTime: offset(90),
	})

	var unavailable *toolexec.UnavailableError
	require.True(t, errors.As(err, &unavailable))
	assert.Contains(t, err.Error(), "brew install ffmpeg")
	r.AssertNotCalled(t, "Run", mock.Anything, mock.Anything, mock.Anything)
}

func TestDownloadToolFailure(t *testing.T) {
	r := &mocks.Runner{}
	o := newOrchestrator(t, r)
	r.On("Run", mock.Anything, mock.Anything, mock.Anything).
		Return(&toolexec.Result{ExitCode: 1}, &toolexec.ExitError{Tool: "yt-dlp", Code: 1, Stderr: "ERROR: Requested format is not available"})

	_, err := o.Download(context.Background(), media.DownloadRequest{URL: "https://youtu.be/a", FormatID: "999"})
	assert.ErrorIs(t, err, ErrDownloadFailed)
}

func TestDownloadNoOutput(t *testing.T) {
	r := &mocks.Runner{}
	o := newOrchestrator(t, r)
	r.On("Run", mock.Anything, mock.Anything, mock.Anything).Return(&toolexec.Result{}, nil)

	_, err := o.Download(context.Background(), media.DownloadRequest{URL: "https://youtu.be/a", FormatID: "18"})
	assert.ErrorIs(t, err, ErrNoOutput)
}

type recorderFunc func(ctx context.Context, req media.DownloadRequest, res *media.DownloadResult) error

func (f recorderFunc) Record(ctx context.Context, req media.DownloadRequest, res *media.DownloadResult) error {
	return f(ctx, req, res)
}

type uploaderFunc func(ctx context.Context, path string) error

func (f uploaderFunc) Upload(ctx context.Context, path string) error { return f(ctx, path) }

func TestDownloadNotifiesRecorderAndUploader(t *testing.T) {
	r := &mocks.Runner{}
	var recorded *media.DownloadResult
	var uploaded string

	o := newOrchestrator(t, r,
		WithRecorder(recorderFunc(func(_ context.Context, _ media.DownloadRequest, res *media.DownloadResult) error {
			recorded = res
			return nil
		})),
		WithUploader(uploaderFunc(func(_ context.Context, path string) error {
			uploaded = path
			return errors.New("bucket unreachable")
		})),
	)
	r.On("Run", mock.Anything, mock.Anything, mock.Anything).
		Run(writes(t, o.Dir(), "video_18.mp4")).
		Return(&toolexec.Result{}, nil)

	res, err := o.Download(context.Background(), media.DownloadRequest{URL: "https://youtu.be/a", FormatID: "18"})
	require.NoError(t, err, "mirror failures must not fail the download")
	assert.Same(t, res, recorded)
	assert.Equal(t, filepath.Join(o.Dir(), "video_18.mp4"), uploaded)
}

func TestLatestMatchSkipsPartials(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "video_18.mp4"), nil, 0644))
	past := time.Now().Add(-time.Minute)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "video_18.mp4"), past, past))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "video_22.mp4.part"), nil, 0644))

	name, err := LatestMatch(dir, "video")
	require.NoError(t, err)
	assert.Equal(t, "video_18.mp4", name)

	_, err = LatestMatch(filepath.Join(dir, "missing"), "video")
	assert.Error(t, err)
}
