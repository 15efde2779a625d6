package screenshots

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/forPelevin/vidoc/internal/types"
)

// ImagesDir is relative to the document; links in the output use "./images/...".
const ImagesDir = "images"

var markerRE = regexp.MustCompile(`\[Screenshot:\s*(\d{1,2}:\d{2}(?:\.\d+)?|\d+(?:\.\d+)?)\s*s\]`)

type Marker struct {
	Text    string
	Seconds float64
}

func (m Marker) At() time.Duration {
	return time.Duration(m.Seconds * float64(time.Second))
}

// FindMarkers returns the distinct markers of doc in order of first appearance.
func FindMarkers(doc string) []Marker {
	var out []Marker
	seen := map[string]struct{}{}
	for _, m := range markerRE.FindAllStringSubmatch(doc, -1) {
		if _, ok := seen[m[0]]; ok {
			continue
		}
		seen[m[0]] = struct{}{}
		out = append(out, Marker{Text: m[0], Seconds: ParseTimestamp(m[1])})
	}
	return out
}

// ParseTimestamp reads "MM:SS", "MM:SS.ss" or plain seconds. Anything else is 0.
func ParseTimestamp(s string) float64 {
	s = strings.TrimSpace(s)
	if mm, ss, ok := strings.Cut(s, ":"); ok {
		if strings.Contains(ss, ":") {
			return 0
		}
		m, err1 := strconv.ParseFloat(mm, 64)
		sec, err2 := strconv.ParseFloat(ss, 64)
		if err1 != nil {
			m = 0
		}
		if err2 != nil {
			sec = 0
		}
		return m*60 + sec
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

type FrameSource interface {
	ProbeDuration(ctx context.Context, in string) (time.Duration, error)
	ExtractFrame(ctx context.Context, in string, at time.Duration, outPNG string) error
}

type Input struct {
	Document string
	// Videos are local files in upload order; image names use their 1-based index.
	Videos []string
	OutDir string
	Logf   func(format string, args ...any)
}

type Result struct {
	Document string
	Images   []types.ManifestImage
}

// Embed swaps each marker for a markdown image of the frame at that time.
// Videos long enough to contain the timestamp are tried first (all videos if
// none is); a marker no video can serve is removed.
func Embed(ctx context.Context, src FrameSource, in Input) (Result, error) {
	logf := in.Logf
	if logf == nil {
		logf = func(string, ...any) {}
	}

	markers := FindMarkers(in.Document)
	logf("found %d screenshot references", len(markers))
	if len(markers) == 0 {
		return Result{Document: in.Document}, nil
	}

	imagesDir := filepath.Join(in.OutDir, ImagesDir)
	if err := os.MkdirAll(imagesDir, 0o755); err != nil {
		return Result{}, err
	}

	durations := make([]time.Duration, len(in.Videos))
	for i, v := range in.Videos {
		d, err := src.ProbeDuration(ctx, v)
		if err != nil {
			logf("duration of %s unknown: %v", v, err)
			d = time.Duration(math.MaxInt64)
		}
		durations[i] = d
	}

	doc := in.Document
	res := Result{}
	counter := 1
	for _, m := range markers {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		img := types.ManifestImage{Marker: m.Text, TimestampSec: m.Seconds}
		replacement := ""
		for _, idx := range candidates(durations, m.At()) {
			name := imageName(idx+1, m.Seconds)
			out := filepath.Join(imagesDir, name)
			if err := src.ExtractFrame(ctx, in.Videos[idx], m.At(), out); err != nil {
				logf("frame at %ss from video %d failed: %v", formatSeconds(m.Seconds), idx+1, err)
				continue
			}
			replacement = fmt.Sprintf("![Screenshot %d](./%s/%s)", counter, ImagesDir, name)
			img.File = filepath.ToSlash(filepath.Join(ImagesDir, name))
			img.Video = idx + 1
			counter++
			break
		}
		if replacement == "" {
			logf("no video could provide a frame at %ss; removing reference", formatSeconds(m.Seconds))
		}
		doc = strings.ReplaceAll(doc, m.Text, replacement)
		res.Images = append(res.Images, img)
	}
	res.Document = doc
	return res, nil
}

func candidates(durations []time.Duration, at time.Duration) []int {
	var out []int
	for i, d := range durations {
		if at <= d {
			out = append(out, i)
		}
	}
	if len(out) == 0 {
		for i := range durations {
			out = append(out, i)
		}
	}
	return out
}

func imageName(videoNo int, sec float64) string {
	return fmt.Sprintf("image-%d-%ss.png", videoNo, strings.ReplaceAll(formatSeconds(sec), ".", "_"))
}

func formatSeconds(sec float64) string {
	return strconv.FormatFloat(sec, 'f', -1, 64)
}
