package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"NewsPulse/internal/domain/models"
)

// fakeSource is an in-memory event store. Update mutates the stored copy so
// re-reads observe the written state, matching the real store's semantics.
type fakeSource struct {
	mu         sync.Mutex
	events     map[string]*models.RawEvent
	fetchErr   map[models.SymbolClass]error
	updateErr  error
	updates    []updateCall
	fetchCalls int
}

type updateCall struct {
	id  string
	upd *models.EventUpdate
}

func newFakeSource(events ...*models.RawEvent) *fakeSource {
	s := &fakeSource{
		events:   make(map[string]*models.RawEvent),
		fetchErr: make(map[models.SymbolClass]error),
	}
	for _, ev := range events {
		s.events[ev.ID] = ev
	}
	return s
}

func (s *fakeSource) Fetch(_ context.Context, class models.SymbolClass, start, end time.Time) ([]*models.RawEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetchCalls++
	if err := s.fetchErr[class]; err != nil {
		return nil, err
	}
	var out []*models.RawEvent
	for _, ev := range s.events {
		if ev.Class != class {
			continue
		}
		if ev.OccurredAt.Before(start) || ev.OccurredAt.After(end) {
			continue
		}
		clone := *ev
		out = append(out, &clone)
	}
	return out, nil
}

func (s *fakeSource) Update(_ context.Context, id string, upd *models.EventUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	s.updates = append(s.updates, updateCall{id: id, upd: upd})
	if ev, ok := s.events[id]; ok {
		if upd.Tag != nil {
			ev.Tag = *upd.Tag
		}
		if upd.Summary != "" {
			ev.Summary = upd.Summary
		}
		if upd.AnalysisRaw != "" {
			ev.AnalysisRaw = upd.AnalysisRaw
		}
		if upd.Content != "" {
			ev.Content = upd.Content
		}
	}
	return nil
}

func (s *fakeSource) updateCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.updates)
}

func (s *fakeSource) lastUpdate() updateCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updates[len(s.updates)-1]
}

func (s *fakeSource) stored(id string) *models.RawEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events[id]
}

type fakeFilter struct {
	verdict  *models.Verdict
	err      error
	failures int // fail this many calls before succeeding
	calls    int
	lastText string
}

func (f *fakeFilter) Filter(_ context.Context, content, _ string) (*models.Verdict, error) {
	f.calls++
	f.lastText = content
	if f.failures > 0 && f.calls <= f.failures {
		return nil, errors.New("filter upstream down")
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.verdict == nil {
		return &models.Verdict{Relevant: true}, nil
	}
	return f.verdict, nil
}

type fakeScorer struct {
	score    *models.Score
	err      error
	panics   bool
	calls    int
	lastText string
}

func (f *fakeScorer) Score(_ context.Context, content, _ string) (*models.Score, error) {
	f.calls++
	f.lastText = content
	if f.panics {
		panic("scorer blew up")
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.score == nil {
		return &models.Score{Summary: "summary", Direction: models.DirectionBullish, Impact: models.ImpactHigh, Magnitude: 0.8}, nil
	}
	return f.score, nil
}

type fakeEnricher struct {
	text string
	err  error
}

func (f *fakeEnricher) Enrich(_ context.Context, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

type fakePrices struct {
	bars []*models.PriceBar
	err  error
}

func (f *fakePrices) Klines(_ context.Context, _, _ string, _ int) ([]*models.PriceBar, error) {
	return f.bars, f.err
}

type fakePredictor struct {
	sig     *models.Signal
	err     error
	calls   int
	lastReq *models.PredictionRequest
}

func (f *fakePredictor) Predict(_ context.Context, req *models.PredictionRequest) (*models.Signal, error) {
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.sig, nil
}

type fakeArchive struct {
	mu        sync.Mutex
	events    int
	signals   int
	backtests int
	err       error
}

func (f *fakeArchive) ArchiveEvent(_ context.Context, _ *models.RawEvent, _ *models.Score) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events++
	return f.err
}

func (f *fakeArchive) ArchiveSignal(_ context.Context, _ string, _ *models.Signal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signals++
	return f.err
}

func (f *fakeArchive) ArchiveBacktest(_ context.Context, _ string, _ *models.BacktestRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.backtests++
	return f.err
}

func (f *fakeArchive) Close() error { return nil }

type fakeBus struct {
	mu        sync.Mutex
	published []*models.Signal
	err       error
}

func (f *fakeBus) PublishSignal(_ context.Context, _ string, sig *models.Signal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, sig)
	return nil
}

func (f *fakeBus) Close() error { return nil }

type fakeMetrics struct {
	mu       sync.Mutex
	outcomes map[string]int
	errs     map[string]int
	signals  map[string]int
	accuracy map[string]float64
	latency  map[string]int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{
		outcomes: make(map[string]int),
		errs:     make(map[string]int),
		signals:  make(map[string]int),
		accuracy: make(map[string]float64),
		latency:  make(map[string]int),
	}
}

func (m *fakeMetrics) RecordOutcome(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes[outcome]++
}

func (m *fakeMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[kind]++
}

func (m *fakeMetrics) RecordLatency(op string, _ float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latency[op]++
}

func (m *fakeMetrics) RecordCycle(string) {}

func (m *fakeMetrics) RecordSignal(horizon string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signals[horizon]++
}

func (m *fakeMetrics) SetAccuracy(symbol string, accuracy float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accuracy[symbol] = accuracy
}
