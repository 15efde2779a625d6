package ffmpeg

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

type Adapter struct {
	ffmpeg  string
	ffprobe string
	log     *zap.Logger
}

func New(ffmpegPath, ffprobePath string, log *zap.Logger) *Adapter {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Adapter{ffmpeg: ffmpegPath, ffprobe: ffprobePath, log: log}
}

func (a *Adapter) ProbeDuration(ctx context.Context, in string) (time.Duration, error) {
	cmd := exec.CommandContext(ctx, a.ffprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		in,
	)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("ffprobe duration: %w\n%s", err, string(b))
	}
	s := strings.TrimSpace(string(b))
	sec, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", s, err)
	}
	return time.Duration(sec * float64(time.Second)), nil
}

// Split cuts in into stream-copied parts of at most segment length when its
// duration reaches threshold. Shorter inputs come back unchanged as the only element.
func (a *Adapter) Split(ctx context.Context, in, outDir string, threshold, segment time.Duration) ([]string, error) {
	d, err := a.ProbeDuration(ctx, in)
	if err != nil {
		return nil, err
	}
	starts := splitPlan(d, threshold, segment)
	if len(starts) == 0 {
		return []string{in}, nil
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, err
	}

	ext := strings.TrimPrefix(filepath.Ext(in), ".")
	if ext == "" {
		ext = "mp4"
	}
	stem := strings.TrimSuffix(filepath.Base(in), filepath.Ext(in))
	if stem == "" {
		stem = "video"
	}

	out := make([]string, 0, len(starts))
	for i, st := range starts {
		part := filepath.Join(outDir, fmt.Sprintf("%s_part_%03d.%s", stem, i+1, ext))
		a.log.Info("splitting video",
			zap.String("input", in),
			zap.Int("part", i+1),
			zap.Int("parts", len(starts)),
			zap.Duration("start", st),
		)
		cmd := exec.CommandContext(ctx, a.ffmpeg,
			"-y",
			"-i", in,
			"-ss", fmtSeconds(st),
			"-t", fmtSeconds(segment),
			"-c", "copy",
			"-avoid_negative_ts", "make_zero",
			part,
		)
		b, err := cmd.CombinedOutput()
		if err != nil {
			return nil, fmt.Errorf("ffmpeg split part %d: %w\n%s", i+1, err, string(b))
		}
		out = append(out, part)
	}
	return out, nil
}

// splitPlan returns the start offset of each part, or nil when no split is needed.
func splitPlan(d, threshold, segment time.Duration) []time.Duration {
	if d < threshold || segment <= 0 {
		return nil
	}
	n := int(math.Ceil(float64(d) / float64(segment)))
	starts := make([]time.Duration, 0, n)
	for i := 0; i < n; i++ {
		starts = append(starts, time.Duration(i)*segment)
	}
	return starts
}

// Encode re-encodes in to an H.264/AAC mp4 no taller than 720p.
// onProgress gets values in [0,100] parsed from ffmpeg's -progress stream.
func (a *Adapter) Encode(ctx context.Context, in, out string, onProgress func(percent float64)) error {
	total, err := a.ProbeDuration(ctx, in)
	if err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, a.ffmpeg,
		"-y",
		"-i", in,
		"-vf", "scale=-2:'min(720,ih)'",
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-crf", "28",
		"-c:a", "aac",
		"-b:a", "128k",
		"-movflags", "+faststart",
		"-progress", "pipe:1",
		"-nostats",
		out,
	)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg encode stdout pipe: %w", err)
	}
	var stderr strings.Builder
	cmd.Stderr = &stderr

	a.log.Info("encoding video", zap.String("input", in), zap.String("output", out))
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("ffmpeg encode start: %w", err)
	}

	if err := readProgress(stdout, total, onProgress); err != nil {
		a.log.Warn("encode progress unreadable", zap.String("input", in), zap.Error(err))
	}

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("ffmpeg encode: %w\n%s", err, stderr.String())
	}
	return nil
}

// readProgress consumes r to EOF so ffmpeg never blocks on a full pipe,
// even after a line the scanner cannot handle.
func readProgress(r io.Reader, total time.Duration, onProgress func(float64)) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		pct, ok := parseProgressLine(sc.Text(), total)
		if ok && onProgress != nil {
			onProgress(pct)
		}
	}
	if err := sc.Err(); err != nil {
		_, _ = io.Copy(io.Discard, r)
		return fmt.Errorf("read progress: %w", err)
	}
	return nil
}

// parseProgressLine understands the key=value lines of `-progress`.
// out_time_us and out_time_ms both carry microseconds.
func parseProgressLine(line string, total time.Duration) (float64, bool) {
	k, v, ok := strings.Cut(strings.TrimSpace(line), "=")
	if !ok {
		return 0, false
	}
	switch k {
	case "progress":
		if v == "end" {
			return 100, true
		}
		return 0, false
	case "out_time_us", "out_time_ms":
		if total <= 0 {
			return 0, false
		}
		us, err := strconv.ParseInt(v, 10, 64)
		if err != nil || us < 0 {
			return 0, false
		}
		pct := float64(time.Duration(us)*time.Microsecond) / float64(total) * 100
		if pct > 100 {
			pct = 100
		}
		return pct, true
	default:
		return 0, false
	}
}

func (a *Adapter) ExtractFrame(ctx context.Context, in string, at time.Duration, outPNG string) error {
	if err := os.MkdirAll(filepath.Dir(outPNG), 0o755); err != nil {
		return err
	}
	cmd := exec.CommandContext(ctx, a.ffmpeg,
		"-y",
		"-ss", fmtSeconds(at),
		"-i", in,
		"-frames:v", "1",
		"-q:v", "2",
		outPNG,
	)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg extract frame: %w\n%s", err, string(b))
	}
	// Seeking past the end exits 0 without writing anything.
	st, err := os.Stat(outPNG)
	if err != nil {
		return fmt.Errorf("ffmpeg extract frame at %s: no output", fmtSeconds(at))
	}
	if st.Size() == 0 {
		_ = os.Remove(outPNG)
		return fmt.Errorf("ffmpeg extract frame at %s: empty output", fmtSeconds(at))
	}
	return nil
}

var commonDirs = []string{
	"/opt/homebrew/bin",
	"/usr/local/bin",
	"/usr/bin",
	"/bin",
	"/opt/local/bin",
	"/sw/bin",
	"/usr/local/opt/ffmpeg/bin",
	"/opt/homebrew/opt/ffmpeg/bin",
}

var ErrNotFound = errors.New("executable not found")

// Locate finds name on PATH, then in the usual package-manager install dirs.
// GUI launchers often start with a stripped PATH, hence the second pass.
func Locate(name string) (string, error) {
	return locateIn(name, commonDirs)
}

func locateIn(name string, dirs []string) (string, error) {
	if p, err := exec.LookPath(name); err == nil {
		return p, nil
	}
	for _, d := range dirs {
		p := filepath.Join(d, name)
		st, err := os.Stat(p)
		if err != nil || st.IsDir() {
			continue
		}
		if st.Mode()&0o111 == 0 {
			continue
		}
		return p, nil
	}
	return "", fmt.Errorf("%w: %s (searched PATH and %s)", ErrNotFound, name, strings.Join(dirs, ", "))
}

func fmtSeconds(d time.Duration) string {
	sec := float64(d) / float64(time.Second)
	return strconv.FormatFloat(sec, 'f', 3, 64)
}
