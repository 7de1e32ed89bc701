package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"clipdeck/internal/media"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "data", "history.db"))
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndRecent(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := base
	s.now = func() time.Time { return clock }

	start, end := media.Offset(30), media.Offset(90)
	reqs := []struct {
		req media.DownloadRequest
		res media.DownloadResult
	}{
		{
			media.DownloadRequest{URL: "https://youtu.be/a", FormatID: "18", Title: "First"},
			media.DownloadResult{ID: "id-1", Filename: "First_18.mp4"},
		},
		{
			media.DownloadRequest{URL: "https://youtu.be/b", FormatID: "22", Title: "Second", StartTime: &start, EndTime: &end},
			media.DownloadResult{ID: "id-2", Filename: "Second_0m30s-1m30s_22.mp4"},
		},
	}
	for i, r := range reqs {
		clock = base.Add(time.Duration(i) * time.Minute)
		res := r.res
		if err := s.Record(ctx, r.req, &res); err != nil {
			t.Fatalf("Record() error: %v", err)
		}
	}

	entries, err := s.Recent(ctx, 0)
	if err != nil {
		t.Fatalf("Recent() error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	got := entries[0]
	if got.ID != "id-2" {
		t.Errorf("newest entry = %q, want id-2", got.ID)
	}
	if got.SegmentStart == nil || *got.SegmentStart != 30 || got.SegmentEnd == nil || *got.SegmentEnd != 90 {
		t.Errorf("segment = %v-%v, want 30-90", got.SegmentStart, got.SegmentEnd)
	}
	if !got.CreatedAt.Equal(base.Add(time.Minute)) {
		t.Errorf("created_at = %v", got.CreatedAt)
	}
	if entries[1].SegmentStart != nil {
		t.Error("full download should have no segment")
	}

	limited, err := s.Recent(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 1 || limited[0].ID != "id-2" {
		t.Errorf("Recent(1) = %+v", limited)
	}
}

func TestRecordDuplicateID(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	req := media.DownloadRequest{URL: "https://youtu.be/a", FormatID: "18"}
	res := &media.DownloadResult{ID: "same", Filename: "a.mp4"}

	if err := s.Record(ctx, req, res); err != nil {
		t.Fatal(err)
	}
	if err := s.Record(ctx, req, res); err == nil {
		t.Error("duplicate id should fail")
	}
}

func TestRecentEmpty(t *testing.T) {
	entries, err := openTest(t).Recent(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if entries == nil || len(entries) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", entries)
	}
}
