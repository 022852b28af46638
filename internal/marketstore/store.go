package marketstore

import (
	"fmt"
	"sync"
	"time"

	"wavechart/internal/model"
)

// View is an immutable copy of the store's latest snapshot.
type View struct {
	Price     model.PriceSnapshot       `json:"price"`
	Analyses  []model.TimeframeAnalysis `json:"analyses"`
	Source    model.Source              `json:"source"`
	AppliedAt time.Time                 `json:"appliedAt"`
	Version   uint64                    `json:"version"`
}

// MarketDataStore holds the latest authoritative price snapshot and analysis batch.
// Apply replaces both together; readers always get deep copies.
type MarketDataStore struct {
	mu         sync.RWMutex
	timeframes []model.Timeframe
	ready      bool
	price      model.PriceSnapshot
	analyses   []model.TimeframeAnalysis
	index      map[model.Timeframe]int
	source     model.Source
	appliedAt  time.Time
	version    uint64
	now        func() time.Time
}

// New creates a store tracking the given timeframe set. Batches must cover exactly that set.
func New(timeframes []model.Timeframe) *MarketDataStore {
	tfs := make([]model.Timeframe, len(timeframes))
	copy(tfs, timeframes)
	return &MarketDataStore{
		timeframes: tfs,
		now:        time.Now,
	}
}

// Apply validates u and atomically replaces the snapshot with it.
// On error the previous snapshot is kept unchanged.
func (s *MarketDataStore) Apply(u model.Update) error {
	if u.Price == nil && u.Analyses == nil {
		return &model.InconsistentSnapshotError{Reason: "update carries neither price nor analyses"}
	}
	if u.Price == nil {
		return &model.InconsistentSnapshotError{Reason: "analyses without price"}
	}
	if u.Analyses == nil {
		return &model.InconsistentSnapshotError{Reason: "price without analyses"}
	}

	analyses, index, err := s.normalize(u.Analyses)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ready && u.Price.Timestamp.Before(s.price.Timestamp) {
		return fmt.Errorf("%w: %s < %s", model.ErrStaleUpdate,
			u.Price.Timestamp.Format(time.RFC3339Nano), s.price.Timestamp.Format(time.RFC3339Nano))
	}

	s.price = *u.Price
	s.analyses = analyses
	s.index = index
	s.source = u.Source
	s.appliedAt = s.now()
	s.version++
	s.ready = true
	return nil
}

// normalize checks the batch against the tracked set and orders it by the tracked order.
func (s *MarketDataStore) normalize(in []model.TimeframeAnalysis) ([]model.TimeframeAnalysis, map[model.Timeframe]int, error) {
	byTF := make(map[model.Timeframe]model.TimeframeAnalysis, len(in))
	for _, a := range in {
		if _, dup := byTF[a.Timeframe]; dup {
			return nil, nil, &model.InconsistentSnapshotError{Reason: fmt.Sprintf("duplicate timeframe %s", a.Timeframe)}
		}
		if a.Signal != nil && a.Signal.Action == "" {
			return nil, nil, &model.InconsistentSnapshotError{Reason: fmt.Sprintf("signal without action on %s", a.Timeframe)}
		}
		byTF[a.Timeframe] = a
	}
	if len(byTF) != len(s.timeframes) {
		return nil, nil, &model.InconsistentSnapshotError{
			Reason: fmt.Sprintf("batch has %d timeframes, want %d", len(byTF), len(s.timeframes)),
		}
	}

	out := make([]model.TimeframeAnalysis, 0, len(s.timeframes))
	index := make(map[model.Timeframe]int, len(s.timeframes))
	for _, tf := range s.timeframes {
		a, ok := byTF[tf]
		if !ok {
			return nil, nil, &model.InconsistentSnapshotError{Reason: fmt.Sprintf("batch missing timeframe %s", tf)}
		}
		index[tf] = len(out)
		out = append(out, a.Clone())
	}
	return out, index, nil
}

// CurrentPrice returns the last applied price snapshot.
func (s *MarketDataStore) CurrentPrice() (model.PriceSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.ready {
		return model.PriceSnapshot{}, model.ErrNotReady
	}
	return s.price, nil
}

// AnalysisFor returns the last applied analysis of tf.
func (s *MarketDataStore) AnalysisFor(tf model.Timeframe) (model.TimeframeAnalysis, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.ready {
		return model.TimeframeAnalysis{}, model.ErrNotReady
	}
	i, ok := s.index[tf]
	if !ok {
		return model.TimeframeAnalysis{}, fmt.Errorf("untracked timeframe %q", tf)
	}
	return s.analyses[i].Clone(), nil
}

// Analyses returns the full last applied batch in tracked order.
func (s *MarketDataStore) Analyses() ([]model.TimeframeAnalysis, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.ready {
		return nil, model.ErrNotReady
	}
	return model.CloneAnalyses(s.analyses), nil
}

// View returns a copy of the whole snapshot.
func (s *MarketDataStore) View() (View, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.ready {
		return View{}, model.ErrNotReady
	}
	return View{
		Price:     s.price,
		Analyses:  model.CloneAnalyses(s.analyses),
		Source:    s.source,
		AppliedAt: s.appliedAt,
		Version:   s.version,
	}, nil
}

// Version returns the number of applied snapshots.
func (s *MarketDataStore) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}
