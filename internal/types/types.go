package types

import (
	"net/url"
	"strings"
	"time"
)

type Source struct {
	Path string
	URL  string
}

// IsRemote reports whether the source is a URL the model reads directly
// (YouTube) instead of a local file that has to be uploaded.
func (s Source) IsRemote() bool { return s.URL != "" }

func (s Source) String() string {
	if s.IsRemote() {
		return s.URL
	}
	return s.Path
}

// ParseSource classifies a CLI argument as a YouTube URL or a local path.
func ParseSource(arg string) Source {
	arg = strings.TrimSpace(arg)
	if IsYouTubeURL(arg) {
		return Source{URL: arg}
	}
	return Source{Path: arg}
}

func IsYouTubeURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return false
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	switch host {
	case "youtube.com", "m.youtube.com", "music.youtube.com":
		return u.Query().Get("v") != "" || strings.HasPrefix(u.Path, "/shorts/") || strings.HasPrefix(u.Path, "/live/")
	case "youtu.be":
		return strings.Trim(u.Path, "/") != ""
	}
	return false
}

// Segment is one file that gets uploaded on its own: either a whole input
// or a part produced by splitting a long input.
type Segment struct {
	// Path is the local part on the source timeline; frames are taken from it.
	Path string
	// UploadPath is what gets uploaded: Path, or its re-encoded copy.
	UploadPath string
	URL        string
	Source     int
	Index      int
	Offset     time.Duration
}

func (s Segment) Remote() bool { return s.URL != "" }

type UploadedFile struct {
	Name     string
	URI      string
	MIMEType string
	Segment  Segment
}

type Progress struct {
	Step    int    `json:"step"`
	Total   int    `json:"total_steps"`
	Message string `json:"message"`
}

type EmbedFrequency string

const (
	EmbedMinimal  EmbedFrequency = "minimal"
	EmbedModerate EmbedFrequency = "moderate"
	EmbedDetailed EmbedFrequency = "detailed"
)

func (f EmbedFrequency) Valid() bool {
	switch f {
	case EmbedMinimal, EmbedModerate, EmbedDetailed:
		return true
	default:
		return false
	}
}

type Manifest struct {
	RunID     string             `json:"run_id"`
	Inputs    []string           `json:"inputs"`
	Model     string             `json:"model"`
	Language  string             `json:"language"`
	Segments  []ManifestSegment  `json:"segments"`
	Document  string             `json:"document"`
	HTML      string             `json:"html,omitempty"`
	Images    []ManifestImage    `json:"images,omitempty"`
	Started   time.Time          `json:"started_at"`
	Finished  time.Time          `json:"finished_at"`
	StepTimes map[string]float64 `json:"step_seconds,omitempty"`
}

type ManifestSegment struct {
	Source    int     `json:"source"`
	Index     int     `json:"index"`
	File      string  `json:"file,omitempty"`
	URL       string  `json:"url,omitempty"`
	OffsetSec float64 `json:"offset_sec"`
	Remote    string  `json:"remote_name,omitempty"`
	URI       string  `json:"uri"`
	Chars     int     `json:"document_chars"`
}

type ManifestImage struct {
	Marker       string  `json:"marker"`
	TimestampSec float64 `json:"timestamp_sec"`
	File         string  `json:"file,omitempty"`
	Video        int     `json:"video,omitempty"`
}
