package detection

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"tumourscan/internal/model"
)

// RemoteConfig configures the HTTP inference provider and its circuit breaker.
type RemoteConfig struct {
	BaseURL         string
	Timeout         time.Duration
	MaxRequests     uint32
	Interval        time.Duration
	OpenTimeout     time.Duration
	FailureRatio    float64
	MinimumRequests uint32
}

// Remote forwards detection requests to an external inference service.
// Calls go through a circuit breaker so a failing service is not hammered.
type Remote struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

var _ Provider = (*Remote)(nil)

type tumourRequest struct {
	ImageID  string         `json:"imageId"`
	ImageURL string         `json:"imageUrl"`
	ScanType model.ScanType `json:"scanType"`
}

type biomarkerRequest struct {
	AnalysisID     string `json:"analysisId"`
	TumourDetected bool   `json:"tumourDetected"`
}

type biomarkerResponse struct {
	Biomarkers []model.Biomarker `json:"biomarkers"`
}

// NewRemote builds a Remote provider. client may be nil, in which case an
// OpenTelemetry-instrumented client is used.
func NewRemote(cfg RemoteConfig, client *http.Client, log logrus.FieldLogger) (*Remote, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("inference base url is required")
	}
	if client == nil {
		client = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}

	minReq := cfg.MinimumRequests
	ratio := cfg.FailureRatio
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "inference",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests == 0 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= minReq && failureRatio >= ratio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.WithFields(logrus.Fields{
				"component": "inference",
				"breaker":   name,
				"from":      from.String(),
				"to":        to.String(),
			}).Warn("circuit_breaker_state_changed")
		},
	})

	return &Remote{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		timeout: cfg.Timeout,
		client:  client,
		breaker: breaker,
	}, nil
}

func (r *Remote) DetectTumour(ctx context.Context, image *model.MRIImage) (*TumourResult, error) {
	var out TumourResult
	err := r.call(ctx, "/tumour-detection", tumourRequest{
		ImageID:  image.ID,
		ImageURL: image.ImageURL,
		ScanType: image.ScanType,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *Remote) DetectBiomarkers(ctx context.Context, analysis *model.TumourAnalysis) ([]model.Biomarker, error) {
	var out biomarkerResponse
	err := r.call(ctx, "/biomarker-detection", biomarkerRequest{
		AnalysisID:     analysis.ID,
		TumourDetected: analysis.DetectionResults.TumourDetected,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.Biomarkers, nil
}

func (r *Remote) call(ctx context.Context, path string, in, out any) error {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	_, err := r.breaker.Execute(func() (interface{}, error) {
		return nil, r.post(ctx, path, in, out)
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	case errors.Is(err, context.DeadlineExceeded):
		return ErrInferenceTimeout
	default:
		return err
	}
}

func (r *Remote) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("inference request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("inference returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
