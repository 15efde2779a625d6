//go:build integration

package itest

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/forPelevin/vidoc/internal/ports/adapters/ffmpeg"
)

// repoRoot is two levels above this file.
func repoRoot(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatalf("cannot locate itest sources")
	}
	return filepath.Clean(filepath.Join(filepath.Dir(file), "..", ".."))
}

// testVideo renders a numbered test card with a sine tone and returns its
// path with the duration the ffmpeg adapter reads back.
func testVideo(t *testing.T, dir string, length time.Duration) (string, time.Duration) {
	t.Helper()
	out := filepath.Join(dir, "input.mp4")
	secs := fmt.Sprintf("%d", int(length.Seconds()))
	ff := exec.Command("ffmpeg", "-y",
		"-f", "lavfi", "-i", "testsrc=size=1280x720:rate=25:duration="+secs,
		"-f", "lavfi", "-i", "sine=frequency=440:duration="+secs,
		"-shortest",
		"-c:v", "libx264", "-pix_fmt", "yuv420p",
		"-c:a", "aac",
		out,
	)
	if b, err := ff.CombinedOutput(); err != nil {
		t.Fatalf("render test video: %v\n%s", err, b)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	d, err := ffmpeg.New("ffmpeg", "ffprobe", zaptest.NewLogger(t)).ProbeDuration(ctx, out)
	if err != nil {
		t.Fatalf("measure test video: %v", err)
	}
	return out, d
}
