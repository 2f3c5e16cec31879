// internal/session/runner_test.go
package session

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwiater/aiplay/internal/capability"
	"github.com/mwiater/aiplay/internal/providers/mock"
)

func newSession(t *testing.T, p *scriptedProvider) *Session {
	t.Helper()
	m := NewManager(p, StaticBinder(testTarget), capability.Summarizer)
	sess, err := m.Create(context.Background(), capability.Config{}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return sess
}

func TestStreamingMatchesBatch(t *testing.T) {
	cases := map[string]*scriptedProvider{
		"incremental": {mode: capability.Incremental, chunks: []string{"The ", "quick ", "fox"}},
		"cumulative":  {mode: capability.Cumulative, chunks: []string{"The ", "The quick ", "The quick fox"}},
	}
	for name, p := range cases {
		t.Run(name, func(t *testing.T) {
			sess := newSession(t, p)
			r := NewRunner()
			ctx := context.Background()

			batch, err := r.Invoke(ctx, sess, "in", Batch, capability.InvokeOptions{}, nil)
			require.NoError(t, err)

			var updates []string
			stream, err := r.Invoke(ctx, sess, "in", Streaming, capability.InvokeOptions{}, func(text string) {
				updates = append(updates, text)
			})
			require.NoError(t, err)

			assert.Equal(t, StatusCompleted, stream.Status)
			assert.Equal(t, "The quick fox", batch.Text)
			assert.Equal(t, batch.Text, stream.Text)
			assert.Equal(t, []string{"The ", "The quick ", "The quick fox"}, updates)
			assert.Equal(t, 3, stream.Chunks)
		})
	}
}

func TestMockStreamingMatchesBatch(t *testing.T) {
	p := mock.New(mock.Options{})
	m := NewManager(p, StaticBinder(testTarget), capability.Summarizer)
	ctx := context.Background()
	sess, err := m.Create(ctx, capability.Defaults(capability.Summarizer), nil)
	require.NoError(t, err)
	defer m.Close()

	input := "Alpha is first. Beta is second. Gamma is third."
	r := NewRunner()
	batch, err := r.Invoke(ctx, sess, input, Batch, capability.InvokeOptions{}, nil)
	require.NoError(t, err)
	stream, err := r.Invoke(ctx, sess, input, Streaming, capability.InvokeOptions{}, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, batch.Text)
	assert.Equal(t, batch.Text, stream.Text)
}

func TestCancelStopsUpdates(t *testing.T) {
	p := &scriptedProvider{mode: capability.Incremental, chunks: []string{"a", "b", "c", "d"}, hold: make(chan struct{}), started: make(chan struct{})}
	sess := newSession(t, p)
	r := NewRunner()

	var mu sync.Mutex
	var updates []string
	first := make(chan struct{})
	done := make(chan Result, 1)
	go func() {
		res, err := r.Invoke(context.Background(), sess, "x", Streaming, capability.InvokeOptions{}, func(text string) {
			mu.Lock()
			updates = append(updates, text)
			n := len(updates)
			mu.Unlock()
			if n == 1 {
				close(first)
			}
		})
		if err != nil {
			res.Status = StatusFailed
		}
		done <- res
	}()

	<-p.started
	p.hold <- struct{}{}
	<-first
	r.Cancel()
	close(p.hold)

	res := <-done
	assert.Equal(t, StatusCancelled, res.Status)
	assert.Equal(t, "a", res.Text)
	mu.Lock()
	assert.Equal(t, []string{"a"}, updates)
	mu.Unlock()
}

func TestNewInvocationSupersedesOld(t *testing.T) {
	p := &scriptedProvider{mode: capability.Incremental, chunks: []string{"x", "y"}, hold: make(chan struct{}), started: make(chan struct{})}
	sess := newSession(t, p)
	r := NewRunner()

	old := make(chan Result, 1)
	go func() {
		res, _ := r.Invoke(context.Background(), sess, "first", Streaming, capability.InvokeOptions{}, nil)
		old <- res
	}()
	<-p.started

	res, err := r.Invoke(context.Background(), sess, "second", Streaming, capability.InvokeOptions{}, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, res.Status)
	assert.Equal(t, "xy", res.Text)
	assert.Equal(t, StatusCancelled, (<-old).Status)
}

func TestFailureKeepsPartial(t *testing.T) {
	boom := errors.New("host went away")
	p := &scriptedProvider{mode: capability.Incremental, chunks: []string{"par", "tial", "!"}, failErr: boom, failAfter: 2}
	sess := newSession(t, p)

	res, err := NewRunner().Invoke(context.Background(), sess, "x", Streaming, capability.InvokeOptions{}, nil)
	var ie *InvocationError
	require.ErrorAs(t, err, &ie)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, "partial", res.Text)
	assert.Equal(t, "partial", ie.Partial)
}

func TestDeadlineIsFailure(t *testing.T) {
	p := &scriptedProvider{mode: capability.Incremental, chunks: []string{"a"}, failErr: context.DeadlineExceeded}
	sess := newSession(t, p)
	res, err := NewRunner().Invoke(context.Background(), sess, "x", Batch, capability.InvokeOptions{}, nil)
	assert.Equal(t, StatusFailed, res.Status)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestInvokeAfterDispose(t *testing.T) {
	sess := newSession(t, &scriptedProvider{chunks: []string{"a"}})
	require.NoError(t, sess.Dispose())
	_, err := NewRunner().Invoke(context.Background(), sess, "x", Batch, capability.InvokeOptions{}, nil)
	assert.ErrorIs(t, err, ErrSessionDisposed)
}

func TestEstimate(t *testing.T) {
	p := &scriptedProvider{chunks: []string{"a"}}
	sess := newSession(t, p)
	r := NewRunner()

	n, err := r.Estimate(context.Background(), sess, "three little words")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	p.countErr = errors.New("tokenizer offline")
	_, err = r.Estimate(context.Background(), sess, "x")
	assert.Error(t, err)
}

func TestDetectUnsupported(t *testing.T) {
	sess := newSession(t, &scriptedProvider{chunks: []string{"a"}})
	_, err := NewRunner().Detect(context.Background(), sess, "bonjour")
	assert.Error(t, err)
}
