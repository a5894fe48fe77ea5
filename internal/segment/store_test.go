package segment

import (
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ridewise/navcore/internal/config"
	"github.com/ridewise/navcore/internal/lib/geo"
	"github.com/ridewise/navcore/internal/lib/route"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func testStepID(index int) route.StepID {
	return route.StepID{RouteFingerprint: 0xabcdef0123456789, Index: index}
}

func newMemoryStore(t *testing.T) (*Store, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	return NewStore(nil, config.DefaultConfig().Segment, nil, clock.Now), clock
}

func TestWriteReadRoundTrip(t *testing.T) {
	s, clock := newMemoryStore(t)
	id := testStepID(0)

	s.Write(id, 0.8, 1.2)

	rec, ok := s.Read(id)
	require.True(t, ok)
	assert.Equal(t, 0.8, rec.Quality)
	assert.Equal(t, 1.2, rec.Roughness)
	assert.Equal(t, clock.now, rec.UpdatedAt)
	assert.Equal(t, 1.0, rec.Freshness)

	_, ok = s.Read(testStepID(99))
	assert.False(t, ok)
}

func TestWriteClampsInputs(t *testing.T) {
	s, _ := newMemoryStore(t)
	id := testStepID(0)

	s.Write(id, 1.5, -2)
	rec, ok := s.Read(id)
	require.True(t, ok)
	assert.Equal(t, 1.0, rec.Quality)
	assert.Equal(t, 0.0, rec.Roughness)
}

func TestFreshnessDecay(t *testing.T) {
	s, clock := newMemoryStore(t)
	id := testStepID(0)

	s.Write(id, 0.9, 0.5)

	// Within the 7-day grace window freshness holds at full.
	clock.Advance(6 * 24 * time.Hour)
	rec, _ := s.Read(id)
	assert.Equal(t, 1.0, rec.Freshness)

	// Ten days out is three days past the window: exactly 0.3 lost.
	clock.Advance(4 * 24 * time.Hour)
	rec, _ = s.Read(id)
	assert.InDelta(t, 0.7, rec.Freshness, 1e-9)

	// Decay floors at zero.
	clock.Advance(100 * 24 * time.Hour)
	rec, _ = s.Read(id)
	assert.Equal(t, 0.0, rec.Freshness)

	// Quality and roughness are untouched by decay.
	assert.Equal(t, 0.9, rec.Quality)
	assert.Equal(t, 0.5, rec.Roughness)
}

func TestDecayIndependentOfReadOrdering(t *testing.T) {
	// Two stores see the same writes; one is swept mid-way, one is not.
	// Reads at the same instant must agree.
	swept, sweptClock := newMemoryStore(t)
	plain, plainClock := newMemoryStore(t)
	id := testStepID(3)

	swept.Write(id, 0.5, 1.0)
	plain.Write(id, 0.5, 1.0)

	sweptClock.Advance(10 * 24 * time.Hour)
	plainClock.Advance(10 * 24 * time.Hour)
	updated := swept.Sweep()
	assert.Equal(t, 1, updated)

	sweptClock.Advance(24 * time.Hour)
	plainClock.Advance(24 * time.Hour)

	a, _ := swept.Read(id)
	b, _ := plain.Read(id)
	assert.InDelta(t, b.Freshness, a.Freshness, 1e-9)
	assert.InDelta(t, 0.6, a.Freshness, 1e-9)
}

func TestUpdateRoughnessPreservesQuality(t *testing.T) {
	s, clock := newMemoryStore(t)
	id := testStepID(1)

	s.Write(id, 0.75, 1.0)
	clock.Advance(time.Hour)
	s.UpdateRoughness(id, 2.5)

	rec, ok := s.Read(id)
	require.True(t, ok)
	assert.Equal(t, 0.75, rec.Quality)
	assert.Equal(t, 2.5, rec.Roughness)
	assert.Equal(t, clock.now, rec.UpdatedAt)
	assert.Equal(t, 1.0, rec.Freshness)

	// Creates the record when absent.
	other := testStepID(2)
	s.UpdateRoughness(other, 1.1)
	rec, ok = s.Read(other)
	require.True(t, ok)
	assert.Equal(t, 0.0, rec.Quality)
	assert.Equal(t, 1.1, rec.Roughness)
}

func TestAdjustFreshness(t *testing.T) {
	s, _ := newMemoryStore(t)
	id := testStepID(0)

	s.Write(id, 0.8, 1.0)
	s.AdjustFreshness(id, 0.4)

	rec, _ := s.Read(id)
	assert.Equal(t, 0.4, rec.Freshness)

	// Clamped to [0,1].
	s.AdjustFreshness(id, 3)
	rec, _ = s.Read(id)
	assert.Equal(t, 1.0, rec.Freshness)

	// Unknown ids are a no-op.
	s.AdjustFreshness(testStepID(42), 0.5)
	_, ok := s.Read(testStepID(42))
	assert.False(t, ok)
}

func TestClearAll(t *testing.T) {
	s, _ := newMemoryStore(t)

	s.Write(testStepID(0), 0.5, 1)
	s.Write(testStepID(1), 0.6, 1)
	require.Equal(t, 2, s.Len())

	s.ClearAll()
	assert.Equal(t, 0, s.Len())
	_, ok := s.Read(testStepID(0))
	assert.False(t, ok)
}

// recordingBackend captures every saved payload and signals completions so
// tests can wait for asynchronous saves without sleeping.
type recordingBackend struct {
	mu    sync.Mutex
	saves [][]byte
	saved chan struct{}
}

func newRecordingBackend() *recordingBackend {
	return &recordingBackend{saved: make(chan struct{}, 16)}
}

func (b *recordingBackend) Load() ([]byte, bool, error) { return nil, false, nil }

func (b *recordingBackend) Save(data []byte) error {
	b.mu.Lock()
	b.saves = append(b.saves, append([]byte(nil), data...))
	b.mu.Unlock()
	b.saved <- struct{}{}
	return nil
}

func (b *recordingBackend) awaitSaves(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-b.saved:
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for save %d of %d", i+1, n)
		}
	}
}

func (b *recordingBackend) lastPayload(t *testing.T) map[string]Record {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	require.NotEmpty(t, b.saves)

	var records map[string]Record
	require.NoError(t, json.Unmarshal(b.saves[len(b.saves)-1], &records))
	return records
}

func TestAsyncSavesPersistLatestState(t *testing.T) {
	backend := newRecordingBackend()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	s := NewStore(backend, config.DefaultConfig().Segment, nil, clock.Now)
	id := testStepID(0)

	// Two back-to-back writes to the same step race their async saves.
	// Whichever save runs last must durably hold the second write.
	s.Write(id, 0.1, 1)
	s.Write(id, 0.9, 2)
	backend.awaitSaves(t, 2)

	rec, ok := backend.lastPayload(t)[id.String()]
	require.True(t, ok)
	assert.Equal(t, 0.9, rec.Quality)
	assert.Equal(t, 2.0, rec.Roughness)
}

func TestFlushAfterAsyncSaves(t *testing.T) {
	backend := newRecordingBackend()
	s := NewStore(backend, config.DefaultConfig().Segment, nil, nil)
	id := testStepID(1)

	s.Write(id, 0.3, 1)
	s.Write(id, 0.7, 2)
	require.NoError(t, s.Flush())
	backend.awaitSaves(t, 2)

	rec, ok := backend.lastPayload(t)[id.String()]
	require.True(t, ok)
	assert.Equal(t, 0.7, rec.Quality)
}

func TestIDsRoundTrip(t *testing.T) {
	s, _ := newMemoryStore(t)

	s.Write(testStepID(0), 0.5, 1)
	s.Write(testStepID(4), 0.5, 1)

	ids := s.IDs()
	require.Len(t, ids, 2)
	assert.ElementsMatch(t, []route.StepID{testStepID(0), testStepID(4)}, ids)
}

func TestFileBackendPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "segments", "store.json")
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	cfg := config.DefaultConfig().Segment

	s := NewStore(NewFileBackend(path), cfg, nil, clock.Now)
	s.Write(testStepID(7), 0.66, 1.4)
	require.NoError(t, s.Flush())

	// A fresh store over the same backend sees the same record.
	reloaded := NewStore(NewFileBackend(path), cfg, nil, clock.Now)
	rec, ok := reloaded.Read(testStepID(7))
	require.True(t, ok)
	assert.Equal(t, 0.66, rec.Quality)
	assert.Equal(t, 1.4, rec.Roughness)
	assert.Equal(t, clock.now, rec.UpdatedAt)
}

func TestFileBackendMissingFile(t *testing.T) {
	b := NewFileBackend(filepath.Join(t.TempDir(), "absent.json"))
	_, ok, err := b.Load()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCorruptPayloadStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	b := NewFileBackend(path)
	require.NoError(t, b.Save([]byte("not json")))

	s := NewStore(b, config.DefaultConfig().Segment, nil, nil)
	assert.Equal(t, 0, s.Len())
}

func TestSQLiteBackendPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "segments.db")

	b, err := NewSQLiteBackend(path)
	require.NoError(t, err)
	defer b.Close()

	_, ok, err := b.Load()
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, b.Save([]byte(`{"a":1}`)))
	require.NoError(t, b.Save([]byte(`{"a":2}`)))

	data, ok, err := b.Load()
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"a":2}`, string(data))
}

func TestRouteRoughness(t *testing.T) {
	s, clock := newMemoryStore(t)

	g := route.Geometry{Steps: []route.Step{
		{Polyline: []geo.Point{{Latitude: 0, Longitude: 0}, {Latitude: 0.001, Longitude: 0}}, Distance: 111},
		{Polyline: []geo.Point{{Latitude: 0.001, Longitude: 0}, {Latitude: 0.002, Longitude: 0}}, Distance: 111},
	}}

	// No measurements yet.
	_, ok := s.RouteRoughness(g)
	assert.False(t, ok)

	s.Write(route.StepIDFor(g, 0), 0.8, 1.0)
	s.Write(route.StepIDFor(g, 1), 0.8, 3.0)

	rms, ok := s.RouteRoughness(g)
	require.True(t, ok)
	// Equal freshness weights: plain average.
	assert.InDelta(t, 2.0, rms, 1e-9)

	// Fully stale measurements stop counting.
	clock.Advance(30 * 24 * time.Hour)
	_, ok = s.RouteRoughness(g)
	assert.False(t, ok)
}
