package directory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/iabalyuk/advisorbot/model"
	"github.com/rs/zerolog"
)

// Backend is a source of advisor records. Search returns every advisor whose
// name or research field contains predicate case-insensitively, or the whole
// directory when predicate is empty.
type Backend interface {
	Search(ctx context.Context, predicate string) ([]model.Advisor, error)
}

// Observer receives the outcome of each backend lookup.
type Observer interface {
	ObserveLookup(backend, outcome string, seconds float64)
}

// Service is the query facade used by the conversation layer. Every method
// issues exactly one backend lookup and never caches results.
type Service struct {
	backend  Backend
	name     string
	log      zerolog.Logger
	observer Observer
}

// NewService wraps backend. name labels the backend in logs and metrics.
func NewService(backend Backend, name string, log zerolog.Logger, observer Observer) *Service {
	return &Service{
		backend:  backend,
		name:     name,
		log:      log.With().Str("component", "directory").Str("backend", name).Logger(),
		observer: observer,
	}
}

// Lookup runs a free-text search; an empty predicate returns the full directory.
// Zero matches is a non-nil empty slice and a nil error. Backend failures come
// back as *model.LookupError, malformed responses as *model.DataError. Records
// that fail validation are logged and left out.
func (s *Service) Lookup(ctx context.Context, predicate string) ([]model.Advisor, error) {
	advisors, _, err := s.lookup(ctx, predicate)
	return advisors, err
}

// lookup splits the backend result into valid records and the ones that
// failed validation.
func (s *Service) lookup(ctx context.Context, predicate string) (valid, invalid []model.Advisor, err error) {
	predicate = strings.TrimSpace(predicate)
	start := time.Now()

	advisors, err := s.backend.Search(ctx, predicate)
	elapsed := time.Since(start)
	var dataErr *model.DataError
	if errors.As(err, &dataErr) {
		s.observe("data_error", elapsed)
		s.log.Error().Err(err).Str("key", dataErr.Key).Msg("Directory holds a malformed record")
		return nil, nil, err
	}
	if err != nil {
		s.observe("lookup_failure", elapsed)
		s.log.Error().Err(err).Str("predicate", predicate).Dur("elapsed", elapsed).Msg("Directory lookup failed")
		return nil, nil, &model.LookupError{Op: "search", Err: err}
	}

	valid = make([]model.Advisor, 0, len(advisors))
	for _, a := range advisors {
		if err := a.Validate(); err != nil {
			s.log.Error().Err(err).Str("advisor_id", string(a.ID)).Msg("Skipping invalid directory record")
			invalid = append(invalid, a)
			continue
		}
		valid = append(valid, a)
	}

	outcome := "ok"
	if len(invalid) > 0 {
		outcome = "data_error"
	}
	s.observe(outcome, elapsed)
	s.log.Debug().Str("predicate", predicate).Int("count", len(valid)).Int("skipped", len(invalid)).Dur("elapsed", elapsed).Msg("Directory lookup")
	return valid, invalid, nil
}

// Fields returns the sorted distinct research fields of the whole directory.
// Fields differing only in case are one field, spelled as first seen.
func (s *Service) Fields(ctx context.Context) ([]string, error) {
	advisors, err := s.Lookup(ctx, "")
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	fields := []string{}
	for _, a := range advisors {
		field := strings.TrimSpace(a.ResearchField)
		key := strings.ToLower(field)
		if field == "" || seen[key] {
			continue
		}
		seen[key] = true
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields, nil
}

// ByField returns the advisors whose research field is field, ignoring case.
// The backend search narrows by substring; the exact match is applied here so
// that "Физика" does not also list "Биофизика".
func (s *Service) ByField(ctx context.Context, field string) ([]model.Advisor, error) {
	advisors, err := s.Lookup(ctx, field)
	if err != nil {
		return nil, err
	}
	matched := []model.Advisor{}
	for _, a := range advisors {
		if strings.EqualFold(strings.TrimSpace(a.ResearchField), strings.TrimSpace(field)) {
			matched = append(matched, a)
		}
	}
	return matched, nil
}

// Advisor fetches the directory and returns the advisor with the given id,
// model.ErrNotFound, or a *model.DataError when that advisor's record is invalid.
func (s *Service) Advisor(ctx context.Context, id model.AdvisorID) (model.Advisor, error) {
	valid, invalid, err := s.lookup(ctx, "")
	if err != nil {
		return model.Advisor{}, err
	}
	for _, a := range valid {
		if a.ID == id {
			return a, nil
		}
	}
	for _, a := range invalid {
		if a.ID == id {
			return model.Advisor{}, a.Validate()
		}
	}
	return model.Advisor{}, model.ErrNotFound
}

func (s *Service) observe(outcome string, elapsed time.Duration) {
	if s.observer == nil {
		return
	}
	s.observer.ObserveLookup(s.name, outcome, elapsed.Seconds())
}
