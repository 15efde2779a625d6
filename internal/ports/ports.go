package ports

import (
	"context"
	"time"

	"github.com/forPelevin/vidoc/internal/types"
)

type VideoTool interface {
	ProbeDuration(ctx context.Context, in string) (time.Duration, error)
	Split(ctx context.Context, in, outDir string, threshold, segment time.Duration) ([]string, error)
	Encode(ctx context.Context, in, out string, onProgress func(percent float64)) error
	ExtractFrame(ctx context.Context, in string, at time.Duration, outPNG string) error
}

// FileStore uploads local media to the model provider and removes it again.
// onStatus receives human-readable updates while the provider processes the file.
type FileStore interface {
	Upload(ctx context.Context, path string, onStatus func(msg string)) (types.UploadedFile, error)
	Delete(ctx context.Context, name string) error
}

type Generator interface {
	Generate(ctx context.Context, prompt string, files []types.UploadedFile) (string, error)
}

type ProgressSink interface {
	OnProgress(p types.Progress)
}
