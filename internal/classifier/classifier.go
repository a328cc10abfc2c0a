// Package classifier decides whether a stored video is safe or flagged.
//
// The classifier is a black box to the pipeline. Simulated reproduces the
// reference behaviour (a fixed delay, then a random verdict with a configured
// flag ratio); HTTPClient calls an external moderation service.
package classifier

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"mediaflow/internal/config"
	"mediaflow/internal/jobs"
)

// Request identifies the media to classify.
type Request struct {
	JobID    string `json:"jobId"`
	Ref      string `json:"reference"`
	URL      string `json:"url,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
}

// Classifier returns a sensitivity verdict for stored media.
type Classifier interface {
	Classify(ctx context.Context, req Request) (jobs.Sensitivity, error)
}

// New builds the classifier selected by the configuration.
func New(cfg *config.Config) (Classifier, error) {
	switch cfg.Classifier.Mode {
	case config.ClassifierHTTP:
		return NewHTTPClient(cfg.Classifier.URL, cfg.Classifier.APIKey, time.Duration(cfg.Classifier.TimeoutSeconds)*time.Second), nil
	case config.ClassifierSimulated, "":
		return NewSimulated(time.Duration(cfg.Classifier.DelayMillis)*time.Millisecond, cfg.Classifier.FlagRatio), nil
	default:
		return nil, fmt.Errorf("classifier: unsupported mode %q", cfg.Classifier.Mode)
	}
}

// Simulated waits for Delay and flags roughly FlagRatio of requests.
type Simulated struct {
	Delay     time.Duration
	FlagRatio float64
	roll      func() float64
}

// NewSimulated constructs a simulated classifier.
func NewSimulated(delay time.Duration, flagRatio float64) *Simulated {
	return &Simulated{Delay: delay, FlagRatio: flagRatio, roll: rand.Float64}
}

// Classify implements Classifier.
func (s *Simulated) Classify(ctx context.Context, _ Request) (jobs.Sensitivity, error) {
	if s.Delay > 0 {
		timer := time.NewTimer(s.Delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	roll := s.roll
	if roll == nil {
		roll = rand.Float64
	}
	if roll() < s.FlagRatio {
		return jobs.SensitivityFlagged, nil
	}
	return jobs.SensitivitySafe, nil
}

// Func adapts a function to the Classifier interface.
type Func func(ctx context.Context, req Request) (jobs.Sensitivity, error)

// Classify implements Classifier.
func (f Func) Classify(ctx context.Context, req Request) (jobs.Sensitivity, error) {
	return f(ctx, req)
}
