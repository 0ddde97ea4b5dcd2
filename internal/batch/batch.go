// Package batch grades a set of exam documents concurrently against one
// grading session.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pavelanni/autograder/internal/answers"
	"github.com/pavelanni/autograder/internal/extract"
	"github.com/pavelanni/autograder/internal/grading"
)

// MaxDocuments is the largest batch accepted.
const MaxDocuments = 30

// ErrTooManyDocuments is returned when a batch exceeds MaxDocuments.
var ErrTooManyDocuments = fmt.Errorf("at most %d documents per batch", MaxDocuments)

// ProgressFunc is called after each document finishes, possibly from
// several goroutines at once.
type ProgressFunc func(done, total int)

// Runner extracts answers from documents in parallel and grades them.
type Runner struct {
	extractor   extract.Extractor
	strategy    string
	concurrency int
	retries     int
	backoff     time.Duration
}

// Option configures a Runner.
type Option func(*Runner)

// WithConcurrency sets how many documents are processed at once.
func WithConcurrency(n int) Option { return func(r *Runner) { r.concurrency = n } }

// WithRetries sets how many times a failed extraction is retried.
func WithRetries(n int) Option { return func(r *Runner) { r.retries = n } }

// WithBackoff sets the delay before the first retry; it doubles on each retry.
func WithBackoff(d time.Duration) Option { return func(r *Runner) { r.backoff = d } }

// WithStrategy records the strategy name on every graded sheet.
func WithStrategy(name string) Option { return func(r *Runner) { r.strategy = name } }

// New creates a Runner around an extractor.
func New(ex extract.Extractor, opts ...Option) *Runner {
	r := &Runner{
		extractor:   ex,
		concurrency: 4,
		retries:     2,
		backoff:     500 * time.Millisecond,
	}
	for _, o := range opts {
		o(r)
	}
	if r.concurrency < 1 {
		r.concurrency = 1
	}
	if r.retries < 0 {
		r.retries = 0
	}
	return r
}

// Run extracts and grades every document, recording the sheets in the session
// in input order. A document whose extraction fails is graded with no answers
// and carries the error text; Run itself fails only when ctx is done.
func (r *Runner) Run(ctx context.Context, s *grading.Session, docs []extract.Document, progress ProgressFunc) ([]grading.Sheet, error) {
	if len(docs) > MaxDocuments {
		return nil, ErrTooManyDocuments
	}

	sheets := make([]grading.Sheet, len(docs))
	var done atomic.Int32

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, doc := range docs {
		g.Go(func() error {
			sheet := grading.Sheet{Name: doc.Name, Size: doc.Size(), Strategy: r.strategy}

			raw, err := r.extract(gctx, doc)
			switch {
			case err != nil && gctx.Err() != nil:
				return gctx.Err()
			case err != nil:
				slog.Warn("extraction failed", "name", doc.Name, "error", err)
				sheet.Error = err.Error()
				sheet.Answers = answers.Mapping{}
			default:
				sheet.Answers = answers.ParseOracleResponse(raw)
			}
			sheet.Result = grading.Grade(sheet.Answers, s.Key, s.TotalQuestions)
			sheets[i] = sheet

			n := int(done.Add(1))
			slog.Info("graded document", "name", doc.Name, "score", sheet.Result.Score,
				"correct", sheet.Result.Correct, "done", n, "total", len(docs))
			if progress != nil {
				progress(n, len(docs))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, sh := range sheets {
		s.Add(sh)
	}
	return sheets, nil
}

func (r *Runner) extract(ctx context.Context, doc extract.Document) (string, error) {
	delay := r.backoff
	var err error
	for attempt := 0; attempt <= r.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
			slog.Debug("retrying extraction", "name", doc.Name, "attempt", attempt)
		}
		var raw string
		raw, err = r.extractor.Extract(ctx, doc)
		if err == nil {
			return raw, nil
		}
		if !retryable(err) || ctx.Err() != nil {
			break
		}
	}
	return "", err
}

// Errors that describe the document itself will not change on retry.
func retryable(err error) bool {
	return !errors.Is(err, extract.ErrNoText) &&
		!errors.Is(err, extract.ErrUnsupported) &&
		!errors.Is(err, extract.ErrOCRUnavailable)
}
