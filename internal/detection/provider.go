package detection

import (
	"context"
	"errors"
	"time"

	"tumourscan/internal/model"
)

var (
	// ErrInferenceTimeout is returned when a provider does not answer within its budget.
	ErrInferenceTimeout = errors.New("inference timed out")
	// ErrProviderUnavailable is returned while the remote provider is considered unhealthy.
	ErrProviderUnavailable = errors.New("inference provider unavailable")
)

// Provider runs tumour and biomarker detection. Implementations must honour ctx
// and report an exceeded time budget as ErrInferenceTimeout.
type Provider interface {
	DetectTumour(ctx context.Context, image *model.MRIImage) (*TumourResult, error)
	DetectBiomarkers(ctx context.Context, analysis *model.TumourAnalysis) ([]model.Biomarker, error)
}

// SimulatedConfig tunes the simulated provider.
type SimulatedConfig struct {
	TumourDelay    time.Duration
	BiomarkerDelay time.Duration
	Timeout        time.Duration
}

// Simulated stands in for a real model: it waits a fixed delay and then samples the generator.
type Simulated struct {
	gen *Generator
	cfg SimulatedConfig
}

var _ Provider = (*Simulated)(nil)

func NewSimulated(gen *Generator, cfg SimulatedConfig) *Simulated {
	return &Simulated{gen: gen, cfg: cfg}
}

func (s *Simulated) DetectTumour(ctx context.Context, _ *model.MRIImage) (*TumourResult, error) {
	if err := s.wait(ctx, s.cfg.TumourDelay); err != nil {
		return nil, err
	}
	res := s.gen.Tumour()
	return &res, nil
}

// DetectBiomarkers ignores the analysis content; only its existence matters to callers.
func (s *Simulated) DetectBiomarkers(ctx context.Context, _ *model.TumourAnalysis) ([]model.Biomarker, error) {
	if err := s.wait(ctx, s.cfg.BiomarkerDelay); err != nil {
		return nil, err
	}
	return s.gen.Biomarkers(), nil
}

func (s *Simulated) wait(ctx context.Context, d time.Duration) error {
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}
	if d <= 0 {
		return ctxErr(ctx.Err())
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctxErr(ctx.Err())
	}
}

// ctxErr maps a deadline to ErrInferenceTimeout and leaves cancellation as is.
func ctxErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrInferenceTimeout
	}
	return err
}
