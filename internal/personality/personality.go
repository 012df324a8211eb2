// Package personality turns a listening snapshot into a short, playful
// description of the listener using a generative text model.
package personality

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/justestif/go-music-personality/internal/listening"
)

// FallbackText is used when the model returns no text.
const FallbackText = "Couldn't generate a description right now."

// ErrNothingToAnalyze is returned when a snapshot has no artists and no tracks.
var ErrNothingToAnalyze = errors.New("no top artists or tracks to analyze")

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Model() string
}

// Reading is one generated description.
type Reading struct {
	ID          uuid.UUID
	Text        string
	Model       string
	GeneratedAt time.Time
}

// Service generates readings, pacing calls to the model.
type Service struct {
	gen     Generator
	limiter *rate.Limiter
	logger  *zap.Logger
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithRateLimit caps model calls at rps per second. Zero or negative
// disables pacing.
func WithRateLimit(rps float64) Option {
	return func(s *Service) {
		if rps <= 0 {
			s.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		s.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService creates a Service. By default calls are not paced.
func NewService(gen Generator, opts ...Option) *Service {
	s := &Service{
		gen:     gen,
		limiter: rate.NewLimiter(rate.Inf, 1),
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Describe generates a reading for snap. Blocks until the rate limiter
// admits the call or ctx is done.
func (s *Service) Describe(ctx context.Context, snap *listening.Snapshot) (*Reading, error) {
	if snap.Empty() {
		return nil, ErrNothingToAnalyze
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for rate limiter: %w", err)
	}

	start := s.now()
	text, err := s.gen.Generate(ctx, BuildPrompt(snap))
	if err != nil {
		s.logger.Error("generation failed",
			zap.String("model", s.gen.Model()),
			zap.Error(err),
		)
		return nil, fmt.Errorf("generating description: %w", err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		s.logger.Warn("model returned no text", zap.String("model", s.gen.Model()))
		text = FallbackText
	}

	reading := &Reading{
		ID:          uuid.New(),
		Text:        text,
		Model:       s.gen.Model(),
		GeneratedAt: s.now(),
	}

	s.logger.Info("generated description",
		zap.String("reading_id", reading.ID.String()),
		zap.String("model", reading.Model),
		zap.Int("artists", len(snap.Artists)),
		zap.Int("tracks", len(snap.Tracks)),
		zap.Int("chars", len(text)),
		zap.Duration("duration", reading.GeneratedAt.Sub(start)),
	)
	return reading, nil
}
