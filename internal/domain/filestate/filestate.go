// Package filestate waits for a remotely uploaded file to become usable.
//
// Providers accept an upload and then process it asynchronously. A file is
// only usable once it reports ACTIVE with a URI; Wait polls until that
// happens, the provider reports a failure, or the attempt budget runs out.
package filestate

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	StateProcessing = "PROCESSING"
	StateActive     = "ACTIVE"
	StateFailed     = "FAILED"
)

var (
	ErrProcessingFailed  = errors.New("file processing failed on the server")
	ErrProcessingTimeout = errors.New("file processing timeout")
	ErrMissingURI        = errors.New("file is ACTIVE but URI is missing")
	ErrUnknownState      = errors.New("unknown file state")
)

type Status struct {
	Name     string
	URI      string
	MIMEType string
	// State is empty when the provider omitted it.
	State string
}

type Policy struct {
	MaxAttempts int
	// ProcessingWait applies after a PROCESSING answer, UnknownWait after an
	// answer without any state.
	ProcessingWait time.Duration
	UnknownWait    time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    60,
		ProcessingWait: 10 * time.Second,
		UnknownWait:    5 * time.Second,
	}
}

type FetchFunc func(ctx context.Context) (Status, error)

// Wait polls fetch until the file is ACTIVE. onStatus may be nil.
func Wait(ctx context.Context, p Policy, fetch FetchFunc, onStatus func(msg string)) (Status, error) {
	if onStatus == nil {
		onStatus = func(string) {}
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultPolicy().MaxAttempts
	}

	for attempt := 1; ; attempt++ {
		onStatus(fmt.Sprintf("checking file status (%d/%d)", attempt, p.MaxAttempts))

		st, err := fetch(ctx)
		if err != nil {
			return Status{}, err
		}

		var wait time.Duration
		switch st.State {
		case StateActive:
			if st.URI == "" {
				return st, ErrMissingURI
			}
			onStatus("file processing complete")
			return st, nil
		case StateFailed:
			return st, ErrProcessingFailed
		case StateProcessing:
			wait = p.ProcessingWait
			onStatus(fmt.Sprintf("file still processing, retrying in %s (%d/%d)", wait, attempt, p.MaxAttempts))
		case "":
			wait = p.UnknownWait
			onStatus(fmt.Sprintf("no state reported, assuming processing (%d/%d)", attempt, p.MaxAttempts))
		default:
			return st, fmt.Errorf("%w: %s", ErrUnknownState, st.State)
		}

		if attempt >= p.MaxAttempts {
			return st, fmt.Errorf("%w after %d attempts", ErrProcessingTimeout, attempt)
		}
		if err := sleep(ctx, wait); err != nil {
			return st, err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
