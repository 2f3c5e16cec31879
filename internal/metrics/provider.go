// internal/metrics/provider.go
package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/mwiater/aiplay/internal/capability"
	"github.com/mwiater/aiplay/internal/logging"
	"github.com/mwiater/aiplay/internal/providers"
)

// Provider is a decorator that wraps a providers.Provider to record metrics.
type Provider struct {
	wrapped    providers.Provider
	aggregator *Aggregator
}

// NewProvider creates a new metrics-enabled provider that wraps an existing Provider.
func NewProvider(wrapped providers.Provider, aggregator *Aggregator) *Provider {
	logging.LogEvent("[METRICS] Wrapping provider with metrics provider")
	return &Provider{wrapped: wrapped, aggregator: aggregator}
}

// Availability passes the call through to the wrapped provider.
func (p *Provider) Availability(ctx context.Context, req providers.Request) (capability.Availability, error) {
	return p.wrapped.Availability(ctx, req)
}

// Create records how long session creation takes and wraps the session.
func (p *Provider) Create(ctx context.Context, req providers.Request, progress providers.ProgressFunc) (providers.Session, error) {
	start := time.Now()
	sess, err := p.wrapped.Create(ctx, req, progress)
	if err != nil {
		return nil, err
	}
	if p.aggregator != nil {
		p.aggregator.RecordCreate(string(req.Capability), req.Target.Host.Name, req.Target.Model, time.Since(start))
	}
	return &session{wrapped: sess, req: req, aggregator: p.aggregator}, nil
}

// Close closes the wrapped provider and flushes the aggregator.
func (p *Provider) Close() error {
	err := p.wrapped.Close()
	if p.aggregator != nil {
		if saveErr := p.aggregator.Close(); err == nil {
			err = saveErr
		}
	}
	return err
}

type session struct {
	wrapped    providers.Session
	req        providers.Request
	aggregator *Aggregator
}

func (s *session) record(sample Sample, err error) {
	if s.aggregator == nil {
		return
	}
	sample.Capability = string(s.req.Capability)
	sample.Host = s.req.Target.Host.Name
	sample.Model = s.req.Target.Model
	sample.Outcome = outcome(err)
	s.aggregator.Record(sample)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeCompleted
	case errors.Is(err, context.Canceled):
		return OutcomeCancelled
	default:
		return OutcomeFailed
	}
}

func (s *session) Invoke(ctx context.Context, input string, opts capability.InvokeOptions) (string, error) {
	start := time.Now()
	out, err := s.wrapped.Invoke(ctx, input, opts)
	s.record(Sample{InputChars: len(input), OutputChars: len(out), Latency: time.Since(start)}, err)
	return out, err
}

// InvokeStreaming intercepts chunks to measure time to first chunk and output size.
func (s *session) InvokeStreaming(ctx context.Context, input string, opts capability.InvokeOptions, onChunk func(string) error) error {
	start := time.Now()
	var ttfc time.Duration
	chunks, size := 0, 0
	cumulative := s.wrapped.ChunkMode() == capability.Cumulative

	err := s.wrapped.InvokeStreaming(ctx, input, opts, func(chunk string) error {
		if chunks == 0 {
			ttfc = time.Since(start)
		}
		chunks++
		if cumulative {
			size = len(chunk)
		} else {
			size += len(chunk)
		}
		if onChunk != nil {
			return onChunk(chunk)
		}
		return nil
	})
	s.record(Sample{InputChars: len(input), OutputChars: size, Chunks: chunks, TTFC: ttfc, Latency: time.Since(start)}, err)
	return err
}

func (s *session) ChunkMode() capability.ChunkMode {
	return s.wrapped.ChunkMode()
}

func (s *session) CountTokens(ctx context.Context, input string) (int, error) {
	counter, ok := s.wrapped.(providers.TokenCounter)
	if !ok {
		return 0, providers.ErrUnsupported
	}
	return counter.CountTokens(ctx, input)
}

func (s *session) Detect(ctx context.Context, input string) ([]capability.Detection, error) {
	detector, ok := s.wrapped.(providers.Detector)
	if !ok {
		return nil, providers.ErrUnsupported
	}
	start := time.Now()
	results, err := detector.Detect(ctx, input)
	s.record(Sample{InputChars: len(input), OutputChars: len(results), Latency: time.Since(start)}, err)
	return results, err
}

func (s *session) Destroy() error {
	return s.wrapped.Destroy()
}
