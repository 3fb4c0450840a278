package triage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var ErrValidation = errors.New("validation failed")

type Service struct {
	corpus      *Corpus
	prioritizer *Prioritizer
	cache       KVStore
	cacheTTL    time.Duration
	logger      zerolog.Logger
}

type Option func(*Service)

// WithCache memoizes analyses in the given store for ttl.
func WithCache(store KVStore, ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = store
		s.cacheTTL = ttl
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func NewService(corpus *Corpus, prioritizer *Prioritizer, opts ...Option) *Service {
	s := &Service{
		corpus:      corpus,
		prioritizer: prioritizer,
		logger:      zerolog.Nop(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Analyze recommends and explains a triage query. Cache failures are logged
// and never fail the request.
func (s *Service) Analyze(ctx context.Context, q Query) (*Analysis, error) {
	if s.cache == nil {
		a := s.corpus.Analyze(q)
		return &a, nil
	}

	key := cacheKey(q)
	if raw, err := s.cache.Get(ctx, key); err == nil {
		var a Analysis
		if err := json.Unmarshal([]byte(raw), &a); err == nil {
			return &a, nil
		}
		s.logger.Warn().Str("key", key).Msg("discarding undecodable cached analysis")
	} else if !errors.Is(err, ErrCacheMiss) {
		s.logger.Warn().Err(err).Msg("triage cache read failed")
	}

	a := s.corpus.Analyze(q)
	if raw, err := json.Marshal(a); err == nil {
		if err := s.cache.Set(ctx, key, string(raw), s.cacheTTL); err != nil {
			s.logger.Warn().Err(err).Msg("triage cache write failed")
		}
	}
	return &a, nil
}

// Prioritize classifies free-text symptoms into a queue priority.
func (s *Service) Prioritize(symptomText string, age int, history string) (Priority, error) {
	if strings.TrimSpace(symptomText) == "" {
		return 0, fmt.Errorf("%w: symptom text is required", ErrValidation)
	}
	return s.prioritizer.Prioritize(symptomText, age, history), nil
}

// Cases lists the reference corpus.
func (s *Service) Cases() []ReferenceCase {
	return s.corpus.Cases()
}
