// Package segment persists per-step ride-quality measurements with
// time-based freshness decay.
package segment

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ridewise/navcore/internal/config"
	"github.com/ridewise/navcore/internal/lib/route"
)

// Record is one step's stored quality measurement.
type Record struct {
	// Quality is the scored ride quality in [0,1].
	Quality float64 `json:"quality"`
	// Roughness is the measured RMS vibration, >= 0.
	Roughness float64 `json:"roughness"`
	// UpdatedAt is when the record was last written.
	UpdatedAt time.Time `json:"updated_at"`
	// Freshness is the trust score as of DecayedAt, in [0,1]. Reads
	// return the decay-adjusted value; see Store.Read.
	Freshness float64 `json:"freshness"`
	// DecayedAt anchors the Freshness value in time so that lazily
	// materialized decay never double-counts. Zero means UpdatedAt.
	DecayedAt time.Time `json:"decayed_at,omitempty"`
}

// Backend provides atomic get/set of the store's backing bytes. The durable
// storage collaborator boundary: format round-trips opaquely.
type Backend interface {
	// Load returns the stored payload, or ok=false when nothing has been
	// stored yet.
	Load() (data []byte, ok bool, err error)
	// Save atomically replaces the stored payload.
	Save(data []byte) error
}

// Store is a durable map from step identifier to Record. All mutations are
// serialized; reads observe consistent snapshots. Persistence is best-effort
// and asynchronous: a failed save leaves in-memory state authoritative and
// is retried on the next mutation.
type Store struct {
	cfg    config.SegmentConfig
	logger *zap.SugaredLogger
	clock  func() time.Time

	mu      sync.RWMutex
	records map[string]Record

	backend Backend
	saveMu  sync.Mutex
}

// NewStore creates a Store over the given backend, loading any persisted
// records. backend may be nil for a memory-only store; clock may be nil for
// wall time. A corrupt or unreadable payload starts the store empty rather
// than failing the session.
func NewStore(backend Backend, cfg config.SegmentConfig, logger *zap.SugaredLogger, clock func() time.Time) *Store {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if clock == nil {
		clock = time.Now
	}
	if cfg.DecayGraceWindow <= 0 {
		cfg = config.DefaultConfig().Segment
	}

	s := &Store{
		cfg:     cfg,
		logger:  logger,
		clock:   clock,
		records: make(map[string]Record),
		backend: backend,
	}

	if backend != nil {
		data, ok, err := backend.Load()
		switch {
		case err != nil:
			logger.Warnw("segment store load failed, starting empty", "error", err)
		case ok:
			var loaded map[string]Record
			if err := json.Unmarshal(data, &loaded); err != nil {
				logger.Warnw("segment store payload corrupt, starting empty", "error", err)
			} else {
				s.records = loaded
				logger.Infow("segment store loaded", "records", len(loaded))
			}
		}
	}

	return s
}

// Write records a fresh quality and roughness measurement for a step,
// resetting freshness to full.
func (s *Store) Write(id route.StepID, quality, roughness float64) {
	now := s.clock()
	s.mu.Lock()
	s.records[id.String()] = Record{
		Quality:   clamp01(quality),
		Roughness: max0(roughness),
		UpdatedAt: now,
		Freshness: 1,
		DecayedAt: now,
	}
	s.mu.Unlock()

	s.persistAsync()
}

// Read returns the record for a step with its freshness decayed to now.
// ok is false when no record exists.
func (s *Store) Read(id route.StepID) (Record, bool) {
	s.mu.RLock()
	rec, ok := s.records[id.String()]
	s.mu.RUnlock()

	if !ok {
		return Record{}, false
	}
	rec.Freshness = s.decayedFreshness(rec)
	return rec, true
}

// UpdateRoughness records a new roughness measurement while preserving the
// step's existing quality. Creates the record if absent.
func (s *Store) UpdateRoughness(id route.StepID, roughness float64) {
	now := s.clock()
	s.mu.Lock()
	rec, ok := s.records[id.String()]
	if !ok {
		rec = Record{Quality: 0}
	}
	rec.Roughness = max0(roughness)
	rec.UpdatedAt = now
	rec.Freshness = 1
	rec.DecayedAt = now
	s.records[id.String()] = rec
	s.mu.Unlock()

	s.persistAsync()
}

// AdjustFreshness overrides a record's freshness, clamped to [0,1]. No-op
// for unknown steps.
func (s *Store) AdjustFreshness(id route.StepID, freshness float64) {
	s.mu.Lock()
	rec, ok := s.records[id.String()]
	if ok {
		// Measurement time is preserved; only the trust score moves.
		rec.Freshness = clamp01(freshness)
		rec.DecayedAt = s.clock()
		s.records[id.String()] = rec
	}
	s.mu.Unlock()

	if ok {
		s.persistAsync()
	}
}

// ClearAll removes every record.
func (s *Store) ClearAll() {
	s.mu.Lock()
	s.records = make(map[string]Record)
	s.mu.Unlock()

	s.persistAsync()
}

// Sweep materializes decay for records whose freshness has changed and
// persists the result. Returns the number of records updated.
func (s *Store) Sweep() int {
	now := s.clock()
	updated := 0

	s.mu.Lock()
	for key, rec := range s.records {
		decayed := s.decayedFreshnessAt(rec, now)
		if decayed != rec.Freshness {
			rec.Freshness = decayed
			rec.DecayedAt = now
			s.records[key] = rec
			updated++
		}
	}
	s.mu.Unlock()

	if updated > 0 {
		s.persistAsync()
	}
	return updated
}

// IDs returns the identifiers of every stored record, in no particular
// order. Keys that fail to parse are skipped.
func (s *Store) IDs() []route.StepID {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]route.StepID, 0, len(s.records))
	for key := range s.records {
		id, err := route.ParseStepID(key)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// RouteRoughness returns the freshness-weighted mean roughness across a
// route's steps, from past rides. ok is false when no step of the route has
// a usable measurement.
func (s *Store) RouteRoughness(g route.Geometry) (float64, bool) {
	fingerprint := g.Fingerprint()

	s.mu.RLock()
	defer s.mu.RUnlock()

	weighted := 0.0
	weight := 0.0
	for i := range g.Steps {
		id := route.StepID{RouteFingerprint: fingerprint, Index: i}
		rec, ok := s.records[id.String()]
		if !ok {
			continue
		}
		f := s.decayedFreshness(rec)
		if f <= 0 {
			continue
		}
		weighted += rec.Roughness * f
		weight += f
	}

	if weight == 0 {
		return 0, false
	}
	return weighted / weight, true
}

// decayedFreshness applies the decay policy: full freshness through the
// grace window, then DecayPerDay lost per day beyond it, floored at zero.
func (s *Store) decayedFreshness(rec Record) float64 {
	return s.decayedFreshnessAt(rec, s.clock())
}

func (s *Store) decayedFreshnessAt(rec Record, now time.Time) float64 {
	graceEnd := rec.UpdatedAt.Add(s.cfg.DecayGraceWindow)
	if !now.After(graceEnd) {
		return rec.Freshness
	}
	// Decay starts where the last materialization left off, never inside
	// the grace window.
	start := rec.DecayedAt
	if start.Before(graceEnd) {
		start = graceEnd
	}
	if !now.After(start) {
		return rec.Freshness
	}
	extraDays := now.Sub(start).Hours() / 24
	return max0(rec.Freshness - s.cfg.DecayPerDay*extraDays)
}

// persistAsync hands the current store contents to the backend without
// blocking the caller. Saves are serialized, and the snapshot is taken only
// after saveMu is held: the mutation that spawned this goroutine is already
// committed, so whichever save runs last durably holds the newest state and
// concurrent mutations cannot persist out of order.
func (s *Store) persistAsync() {
	if s.backend == nil {
		return
	}

	go func() {
		s.saveMu.Lock()
		defer s.saveMu.Unlock()

		s.mu.RLock()
		snapshot := make(map[string]Record, len(s.records))
		for k, v := range s.records {
			snapshot[k] = v
		}
		s.mu.RUnlock()

		data, err := json.Marshal(snapshot)
		if err != nil {
			s.logger.Errorw("segment store marshal failed", "error", err)
			return
		}
		if err := s.backend.Save(data); err != nil {
			s.logger.Errorw("segment store save failed", "error", err, "records", len(snapshot))
		}
	}()
}

// Flush synchronously persists the current contents. Intended for shutdown
// paths and tests; normal writes persist asynchronously.
func (s *Store) Flush() error {
	if s.backend == nil {
		return nil
	}

	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.RLock()
	snapshot := make(map[string]Record, len(s.records))
	for k, v := range s.records {
		snapshot[k] = v
	}
	s.mu.RUnlock()

	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal segment records: %w", err)
	}
	if err := s.backend.Save(data); err != nil {
		return fmt.Errorf("failed to save segment records: %w", err)
	}
	return nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func max0(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
