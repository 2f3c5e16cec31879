// internal/session/feature_test.go
package session

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwiater/aiplay/internal/capability"
	"github.com/mwiater/aiplay/internal/providers/mock"
)

func TestTranslateScenario(t *testing.T) {
	p := mock.New(mock.Options{})
	f := NewFeature(Options{Provider: p, Bind: StaticBinder(testTarget), Capability: capability.Translator, Mode: Streaming})
	defer f.Unmount()
	ctx := context.Background()

	require.Equal(t, capability.Available, f.Mount(ctx))
	assert.Equal(t, "zh", f.Config().TargetLanguage)

	res, err := f.Run(ctx, "Hello world", capability.InvokeOptions{})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, res.Status)
	assert.NotEmpty(t, res.Text)
	assert.Equal(t, StateCompleted, f.Snapshot().State)

	cfg := f.Config()
	cfg.TargetLanguage = "en"
	got, avail, err := f.Reconfigure(ctx, cfg)
	require.NoError(t, err)
	assert.Equal(t, "en", got.SourceLanguage)
	assert.NotEqual(t, "en", got.TargetLanguage)
	assert.Equal(t, capability.Available, avail)
}

func TestUnavailableNeverCreates(t *testing.T) {
	p := mock.New(mock.Options{Availability: map[capability.Name]capability.Availability{capability.Writer: capability.Unavailable}})
	f := NewFeature(Options{Provider: p, Bind: StaticBinder(testTarget), Capability: capability.Writer, Mode: Streaming, FreshSessionPerCall: true})
	defer f.Unmount()
	ctx := context.Background()

	assert.Equal(t, capability.Unavailable, f.Mount(ctx))
	snap := f.Snapshot()
	assert.Equal(t, StateUnavailable, snap.State)
	assert.False(t, snap.CanRun())

	_, err := f.Run(ctx, "write something", capability.InvokeOptions{})
	assert.ErrorIs(t, err, ErrCapabilityUnavailable)
	assert.Equal(t, 0, p.Created())
}

func TestStreamingSummaryGrowsMonotonically(t *testing.T) {
	p := mock.New(mock.Options{})
	rec := &recorder{}
	f := NewFeature(Options{
		Provider:   p,
		Bind:       StaticBinder(testTarget),
		Capability: capability.Summarizer,
		Config:     capability.Config{Type: "tldr", Length: "short"},
		Mode:       Streaming,
		Observer:   rec.observe,
	})
	defer f.Unmount()
	ctx := context.Background()
	f.Mount(ctx)

	sentence := strings.Repeat("word ", 24) + "ends here. "
	input := strings.Repeat(sentence, 20)
	res, err := f.Run(ctx, input, capability.InvokeOptions{})
	require.NoError(t, err)

	outputs := rec.outputs()
	require.NotEmpty(t, outputs)
	for i := 1; i < len(outputs); i++ {
		assert.True(t, strings.HasPrefix(outputs[i], outputs[i-1]), "chunk %d does not extend previous output", i)
		assert.Greater(t, len(outputs[i]), len(outputs[i-1]))
	}
	assert.Equal(t, outputs[len(outputs)-1], res.Text)
	assert.Equal(t, res.Text, f.Snapshot().Output)
	assert.Equal(t, StateCompleted, f.Snapshot().State)

	states := rec.states()
	assert.Equal(t, []State{StateProbing, StateReady, StateSessionCreating, StateSessionReady, StateInvoking, StateStreamingPartial, StateCompleted}, states)
}

func TestEmptyInputSetsMessage(t *testing.T) {
	f := NewFeature(Options{Provider: mock.New(mock.Options{}), Bind: StaticBinder(testTarget), Capability: capability.Rewriter})
	defer f.Unmount()
	f.Mount(context.Background())

	_, err := f.Run(context.Background(), "   ", capability.InvokeOptions{})
	assert.ErrorIs(t, err, ErrEmptyInput)
	assert.Equal(t, "Please enter some text to rewrite.", f.Snapshot().Err)
}

func TestFreshSessionPerCallDisposes(t *testing.T) {
	p := mock.New(mock.Options{})
	f := NewFeature(Options{Provider: p, Bind: StaticBinder(testTarget), Capability: capability.Writer, Mode: Batch, FreshSessionPerCall: true})
	defer f.Unmount()
	ctx := context.Background()
	f.Mount(ctx)

	for i := 0; i < 2; i++ {
		_, err := f.Run(ctx, "a poem", capability.InvokeOptions{Context: "for kids"})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, p.Created())
	assert.Equal(t, 2, p.Destroyed())
	assert.Contains(t, f.Snapshot().Output, "for kids")
}

func TestEagerSessionEstimateAndUnmount(t *testing.T) {
	p := mock.New(mock.Options{})
	f := NewFeature(Options{Provider: p, Bind: StaticBinder(testTarget), Capability: capability.LanguageModel, Mode: Streaming, EagerSession: true})
	ctx := context.Background()

	f.Mount(ctx)
	snap := f.Snapshot()
	assert.Equal(t, StateReady, snap.State)
	assert.NotEmpty(t, snap.SessionID)
	assert.Equal(t, 1, p.Created())

	n, err := f.Estimate(ctx, "how many tokens")
	require.NoError(t, err)
	assert.Equal(t, mock.CountTokens("how many tokens"), n)
	assert.Equal(t, n, f.Snapshot().Tokens)

	_, err = f.Run(ctx, "hi", capability.InvokeOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, p.Created(), "session is reused across runs")

	f.Unmount()
	assert.Equal(t, StateDisposed, f.Snapshot().State)
	assert.Equal(t, 1, p.Destroyed())
	_, err = f.Run(ctx, "hi", capability.InvokeOptions{})
	assert.ErrorIs(t, err, ErrSessionDisposed)
	_, err = f.Estimate(ctx, "hi")
	assert.ErrorIs(t, err, ErrSessionDisposed)
}

func TestReconfigureDisposesSession(t *testing.T) {
	p := mock.New(mock.Options{})
	f := NewFeature(Options{Provider: p, Bind: StaticBinder(testTarget), Capability: capability.Summarizer, Mode: Batch})
	defer f.Unmount()
	ctx := context.Background()
	f.Mount(ctx)

	_, err := f.Run(ctx, "One. Two.", capability.InvokeOptions{})
	require.NoError(t, err)

	cfg := f.Config()
	cfg.Length = "long"
	_, _, err = f.Reconfigure(ctx, cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Destroyed())

	cfg.Type = "bogus"
	_, _, err = f.Reconfigure(ctx, cfg)
	assert.Error(t, err)
	assert.Equal(t, "long", f.Config().Length)
	assert.Equal(t, "key-points", f.Config().Type)
}

func TestCancelKeepsPartialWithoutError(t *testing.T) {
	p := &scriptedProvider{avail: capability.Available, mode: capability.Incremental, chunks: []string{"one ", "two ", "three"}, hold: make(chan struct{}), started: make(chan struct{})}
	f := NewFeature(Options{Provider: p, Bind: StaticBinder(testTarget), Capability: capability.Writer, Mode: Streaming})
	defer f.Unmount()
	ctx := context.Background()
	f.Mount(ctx)

	done := make(chan Result, 1)
	errs := make(chan error, 1)
	go func() {
		res, err := f.Run(ctx, "go", capability.InvokeOptions{})
		errs <- err
		done <- res
	}()
	<-p.started
	p.hold <- struct{}{}
	require.Eventually(t, func() bool { return f.Snapshot().Output == "one " }, timeout, tick)

	f.Cancel()
	close(p.hold)
	require.NoError(t, <-errs)
	assert.Equal(t, StatusCancelled, (<-done).Status)

	snap := f.Snapshot()
	assert.Equal(t, StateCancelled, snap.State)
	assert.Equal(t, "one ", snap.Output)
	assert.Empty(t, snap.Err)
}

func TestFailureSurfacesMessage(t *testing.T) {
	p := mock.New(mock.Options{InvokeErr: assert.AnError, FailAfter: 1, Reply: "half done"})
	f := NewFeature(Options{Provider: p, Bind: StaticBinder(testTarget), Capability: capability.Rewriter, Mode: Streaming})
	defer f.Unmount()
	ctx := context.Background()
	f.Mount(ctx)

	_, err := f.Run(ctx, "text", capability.InvokeOptions{})
	var ie *InvocationError
	require.ErrorAs(t, err, &ie)
	snap := f.Snapshot()
	assert.Equal(t, StateErrored, snap.State)
	assert.Equal(t, "half ", snap.Output)
	assert.Equal(t, capability.FailureMessage(capability.Rewriter), snap.Err)

	f.Clear()
	snap = f.Snapshot()
	assert.Equal(t, StateReady, snap.State)
	assert.Empty(t, snap.Output)
	assert.Empty(t, snap.Err)
}

func TestDetectFeature(t *testing.T) {
	f := NewFeature(Options{Provider: mock.New(mock.Options{}), Bind: StaticBinder(testTarget), Capability: capability.LanguageDetector})
	defer f.Unmount()
	ctx := context.Background()
	f.Mount(ctx)

	res, err := f.Detect(ctx, "Bonjour, je suis le chat")
	require.NoError(t, err)
	require.NotEmpty(t, res.Detections)
	assert.Equal(t, "fr", res.Detections[0].Language)
	assert.Equal(t, "fr", f.Snapshot().Detections[0].Language)

	_, err = f.Detect(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, f.Snapshot().Detections)
}

func TestForCapabilityPresets(t *testing.T) {
	writer := ForCapability(capability.Writer, Options{Mode: Streaming})
	assert.True(t, writer.FreshSessionPerCall)
	assert.Equal(t, Streaming, writer.Mode)

	prompt := ForCapability(capability.LanguageModel, Options{})
	assert.True(t, prompt.EagerSession)
	assert.False(t, prompt.FreshSessionPerCall)

	detector := ForCapability(capability.LanguageDetector, Options{Mode: Streaming})
	assert.Equal(t, Batch, detector.Mode)
	assert.Equal(t, capability.LanguageDetector, detector.Capability)
}

func TestSetModeSwitchesToBatch(t *testing.T) {
	rec := &recorder{}
	f := NewFeature(Options{Provider: mock.New(mock.Options{}), Bind: StaticBinder(testTarget), Capability: capability.Writer, Mode: Streaming, Observer: rec.observe})
	defer f.Unmount()
	ctx := context.Background()
	f.Mount(ctx)

	f.SetMode(Batch)
	assert.Equal(t, Batch, f.Snapshot().Mode)
	res, err := f.Run(ctx, "a short note", capability.InvokeOptions{})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Text)
	assert.Empty(t, rec.outputs(), "batch runs do not stream partial output")
}
