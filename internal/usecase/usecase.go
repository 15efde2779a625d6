package usecase

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/forPelevin/vidoc/internal/document"
	"github.com/forPelevin/vidoc/internal/domain/prompt"
	"github.com/forPelevin/vidoc/internal/domain/screenshots"
	"github.com/forPelevin/vidoc/internal/ports"
	"github.com/forPelevin/vidoc/internal/types"
)

type Deps struct {
	Video    ports.VideoTool
	Files    ports.FileStore
	LLM      ports.Generator
	Progress ports.ProgressSink
}

type Usecase struct{ d Deps }

func New(d Deps) Usecase { return Usecase{d: d} }

type Input struct {
	Sources []types.Source
	// WorkDir holds split parts and re-encoded copies.
	WorkDir string
	OutDir  string
	DocName string

	Language     string
	CustomPrompt string
	EmbedImages  bool
	Frequency    types.EmbedFrequency

	Encode         bool
	SplitThreshold time.Duration
	Segment        time.Duration

	KeepRemote bool
	HTML       bool

	Logf func(format string, args ...any)
}

type Result struct {
	Manifest types.Manifest
	Document string
}

// Run executes prepare → upload → generate → integrate → embed → write in
// order and stops at the first error.
func (u Usecase) Run(ctx context.Context, in Input) (Result, error) {
	logf := in.Logf
	if logf == nil {
		logf = func(string, ...any) {}
	}
	pr := newProgress(u.d.Progress)
	times := map[string]float64{}
	track := func(phase string, started time.Time) {
		times[phase] += time.Since(started).Seconds()
	}

	local := 0
	for _, s := range in.Sources {
		if !s.IsRemote() {
			local++
		}
	}
	pr.plan(local, local, len(in.Sources), in.EmbedImages)
	pr.emit("starting document generation")

	// prepare
	started := time.Now()
	var segs []types.Segment
	for i, src := range in.Sources {
		if src.IsRemote() {
			segs = append(segs, types.Segment{URL: src.URL, Source: i, Index: 0})
			continue
		}
		pr.next(fmt.Sprintf("processing file (%d/%d): %s", i+1, len(in.Sources), filepath.Base(src.Path)))
		parts, err := u.prepare(ctx, in, i, src.Path, pr)
		if err != nil {
			return Result{}, fmt.Errorf("failed to process file %s: %w", filepath.Base(src.Path), err)
		}
		if len(parts) > 1 {
			logf("%s split into %d segments", filepath.Base(src.Path), len(parts))
		}
		segs = append(segs, parts...)
	}
	track("prepare", started)

	uploads := 0
	for _, s := range segs {
		if !s.Remote() {
			uploads++
		}
	}
	pr.plan(local, uploads, len(segs), in.EmbedImages)

	// upload
	started = time.Now()
	files := make([]types.UploadedFile, 0, len(segs))
	var remoteNames []string
	defer func() {
		if in.KeepRemote || len(remoteNames) == 0 {
			return
		}
		u.cleanup(ctx, remoteNames, logf)
	}()
	for _, s := range segs {
		if s.Remote() {
			files = append(files, types.UploadedFile{URI: s.URL, Segment: s})
			continue
		}
		pr.next(fmt.Sprintf("uploading file (%d/%d): %s", len(remoteNames)+1, uploads, filepath.Base(s.UploadPath)))
		f, err := u.d.Files.Upload(ctx, s.UploadPath, pr.detail)
		if err != nil {
			return Result{}, fmt.Errorf("failed to upload file %s: %w", s.UploadPath, err)
		}
		f.Segment = s
		remoteNames = append(remoteNames, f.Name)
		files = append(files, f)
		logf("uploaded %s as %s", filepath.Base(s.UploadPath), f.Name)
	}
	track("upload", started)

	// generate
	started = time.Now()
	docPrompt := prompt.Document(prompt.Options{
		Language:    in.Language,
		Custom:      in.CustomPrompt,
		EmbedImages: in.EmbedImages,
		Frequency:   in.Frequency,
	})
	docs := make([]string, 0, len(files))
	for i, f := range files {
		pr.next(fmt.Sprintf("generating document (%d/%d)", i+1, len(files)))
		doc, err := u.d.LLM.Generate(ctx, docPrompt, []types.UploadedFile{f})
		if err != nil {
			return Result{}, fmt.Errorf("failed to generate document for %s: %w", describe(f.Segment), err)
		}
		pr.detail(fmt.Sprintf("document generated (%d chars)", len(doc)))
		docs = append(docs, doc)
	}
	track("generate", started)

	// integrate
	final := ""
	switch {
	case len(docs) > 1:
		started = time.Now()
		pr.next(fmt.Sprintf("integrating %d documents", len(docs)))
		merged, err := u.d.LLM.Generate(ctx, prompt.Integration(in.Language, in.CustomPrompt, in.EmbedImages, docs), nil)
		if err != nil {
			return Result{}, fmt.Errorf("failed to integrate documents: %w", err)
		}
		final = merged
		track("integrate", started)
	case len(docs) == 1:
		final = docs[0]
	}

	m := types.Manifest{}
	for i, f := range files {
		m.Segments = append(m.Segments, types.ManifestSegment{
			Source:    f.Segment.Source,
			Index:     f.Segment.Index,
			File:      f.Segment.Path,
			URL:       f.Segment.URL,
			OffsetSec: f.Segment.Offset.Seconds(),
			Remote:    f.Name,
			URI:       f.URI,
			Chars:     len(docs[i]),
		})
	}

	// embed
	if in.EmbedImages {
		started = time.Now()
		pr.next("embedding screenshots")
		var videos []string
		for _, s := range segs {
			if !s.Remote() {
				videos = append(videos, s.Path)
			}
		}
		emb, err := screenshots.Embed(ctx, u.d.Video, screenshots.Input{
			Document: final,
			Videos:   videos,
			OutDir:   in.OutDir,
			Logf:     logf,
		})
		if err != nil {
			return Result{}, fmt.Errorf("failed to embed screenshots: %w", err)
		}
		final = emb.Document
		m.Images = emb.Images
		track("embed", started)
	}

	// write
	pr.detail("writing document")
	name := in.DocName
	if name == "" {
		name = "document"
	}
	w, err := document.Write(in.OutDir, name, final, in.HTML)
	if err != nil {
		return Result{}, err
	}
	m.Document = filepath.ToSlash(filepath.Base(w.Markdown))
	if w.HTML != "" {
		m.HTML = filepath.ToSlash(filepath.Base(w.HTML))
	}
	m.StepTimes = times

	pr.done("document generation complete")
	logf("document written (%d chars): %s", len(final), w.Markdown)
	return Result{Manifest: m, Document: final}, nil
}

func (u Usecase) prepare(ctx context.Context, in Input, srcIdx int, path string, pr *progress) ([]types.Segment, error) {
	partsDir := filepath.Join(in.WorkDir, "parts", fmt.Sprintf("%02d", srcIdx+1))
	parts, err := u.d.Video.Split(ctx, path, partsDir, in.SplitThreshold, in.Segment)
	if err != nil {
		return nil, err
	}

	segs := make([]types.Segment, 0, len(parts))
	for j, p := range parts {
		s := types.Segment{Path: p, UploadPath: p, Source: srcIdx, Index: j}
		if len(parts) > 1 {
			s.Offset = time.Duration(j) * in.Segment
		}
		if in.Encode {
			out := filepath.Join(in.WorkDir, "encoded", fmt.Sprintf("%02d-%03d.mp4", srcIdx+1, j+1))
			last := -1
			err := u.d.Video.Encode(ctx, p, out, func(pct float64) {
				bucket := int(pct) / 10
				if bucket == last {
					return
				}
				last = bucket
				pr.detail(fmt.Sprintf("encoding %s: %d%%", filepath.Base(p), int(pct)))
			})
			if err != nil {
				return nil, err
			}
			s.UploadPath = out
		}
		segs = append(segs, s)
	}
	return segs, nil
}

func (u Usecase) cleanup(ctx context.Context, names []string, logf func(string, ...any)) {
	// The run context may already be cancelled; deletion still deserves a try.
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	for _, n := range names {
		if err := u.d.Files.Delete(cctx, n); err != nil {
			logf("could not delete uploaded file %s: %v", n, err)
			continue
		}
		logf("deleted uploaded file %s", n)
	}
}

func describe(s types.Segment) string {
	if s.Remote() {
		return s.URL
	}
	return filepath.Base(s.UploadPath)
}
