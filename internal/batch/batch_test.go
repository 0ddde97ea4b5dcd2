package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelanni/autograder/internal/extract"
	"github.com/pavelanni/autograder/internal/grading"
)

func docs(n int) []extract.Document {
	out := make([]extract.Document, n)
	for i := range out {
		out[i] = extract.Document{Name: fmt.Sprintf("sheet%02d.pdf", i), ContentType: extract.TypePDF, Data: []byte{byte(i)}}
	}
	return out
}

func TestRunGradesInInputOrder(t *testing.T) {
	// Later documents finish first.
	ex := extract.Func(func(_ context.Context, d extract.Document) (string, error) {
		time.Sleep(time.Duration(10-int(d.Data[0])) * time.Millisecond)
		if d.Data[0]%2 == 0 {
			return `{"1":"a","2":"b"}`, nil
		}
		return "1:a, 2:c", nil
	})

	s := grading.NewSession(grading.Course{Name: "Chem"}, "1:a, 2:b", 0, 0)
	var calls atomic.Int32
	sheets, err := New(ex, WithConcurrency(3), WithStrategy("auto")).Run(context.Background(), s, docs(6), func(done, total int) {
		calls.Add(1)
		assert.Equal(t, 6, total)
	})
	require.NoError(t, err)
	require.Len(t, sheets, 6)
	assert.Equal(t, int32(6), calls.Load())

	for i, sh := range sheets {
		assert.Equal(t, fmt.Sprintf("sheet%02d.pdf", i), sh.Name)
		assert.Equal(t, "auto", sh.Strategy)
		if i%2 == 0 {
			assert.Equal(t, 20.0, sh.Result.Score)
		} else {
			assert.Equal(t, 10.0, sh.Result.Score)
		}
	}
	assert.Equal(t, sheets, s.Sheets())
	assert.Equal(t, 3, s.Summary().Passed)
}

func TestRunRecordsExtractionFailure(t *testing.T) {
	ex := extract.Func(func(context.Context, extract.Document) (string, error) {
		return "", fmt.Errorf("blank.pdf: %w", extract.ErrNoText)
	})
	s := grading.NewSession(grading.Course{}, "1:a", 0, 0)

	sheets, err := New(ex, WithBackoff(time.Millisecond)).Run(context.Background(), s, docs(1), nil)
	require.NoError(t, err)
	require.Len(t, sheets, 1)
	assert.Contains(t, sheets[0].Error, "no text extracted")
	assert.NotNil(t, sheets[0].Answers)
	assert.Equal(t, grading.Result{Score: 0, Correct: 0, Incorrect: 1, Total: 1}, sheets[0].Result)
}

func TestRunRetriesTransientErrors(t *testing.T) {
	var mu sync.Mutex
	attempts := 0
	ex := extract.Func(func(context.Context, extract.Document) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if attempts < 3 {
			return "", errors.New("503 service unavailable")
		}
		return "1:a", nil
	})
	s := grading.NewSession(grading.Course{}, "1:a", 0, 0)

	sheets, err := New(ex, WithRetries(2), WithBackoff(time.Millisecond)).Run(context.Background(), s, docs(1), nil)
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Empty(t, sheets[0].Error)
	assert.Equal(t, 20.0, sheets[0].Result.Score)
}

func TestRunDoesNotRetryPermanentErrors(t *testing.T) {
	var attempts atomic.Int32
	ex := extract.Func(func(context.Context, extract.Document) (string, error) {
		attempts.Add(1)
		return "", extract.ErrUnsupported
	})
	s := grading.NewSession(grading.Course{}, "1:a", 0, 0)

	_, err := New(ex, WithRetries(5), WithBackoff(time.Millisecond)).Run(context.Background(), s, docs(1), nil)
	require.NoError(t, err)
	assert.Equal(t, int32(1), attempts.Load())
}

func TestRunTooManyDocuments(t *testing.T) {
	s := grading.NewSession(grading.Course{}, "1:a", 0, 0)
	_, err := New(extract.Func(nil)).Run(context.Background(), s, docs(MaxDocuments+1), nil)
	assert.ErrorIs(t, err, ErrTooManyDocuments)
	assert.Empty(t, s.Sheets())
}

func TestRunCancelled(t *testing.T) {
	ex := extract.Func(func(ctx context.Context, _ extract.Document) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	s := grading.NewSession(grading.Course{}, "1:a", 0, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(ex).Run(ctx, s, docs(3), nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, s.Sheets())
}

func TestRunEmptyBatch(t *testing.T) {
	s := grading.NewSession(grading.Course{}, "1:a", 0, 0)
	sheets, err := New(extract.Func(nil)).Run(context.Background(), s, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, sheets)
}
