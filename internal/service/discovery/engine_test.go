package discovery

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/askhat-b/taxi-dispatch/config"
	"github.com/askhat-b/taxi-dispatch/internal/domain/models"
	"github.com/askhat-b/taxi-dispatch/internal/domain/types"
	"github.com/askhat-b/taxi-dispatch/pkg/logger"
	"github.com/askhat-b/taxi-dispatch/pkg/uuid"
)

/* ======================= in-memory fakes ======================= */

type memStore struct {
	mu     sync.Mutex
	rides  map[uuid.UUID]*models.Ride
	offers map[uuid.UUID]*models.Offer
	events []models.AuditEvent
}

func newMemStore() *memStore {
	return &memStore{
		rides:  make(map[uuid.UUID]*models.Ride),
		offers: make(map[uuid.UUID]*models.Offer),
	}
}

func (m *memStore) GetForUpdate(_ context.Context, rideID uuid.UUID) (*models.Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rides[rideID]
	if !ok {
		return nil, types.ErrRideNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memStore) UpdateState(_ context.Context, rideID uuid.UUID, from, to types.RideState, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rides[rideID]
	if !ok {
		return types.ErrRideNotFound
	}
	if r.State != from {
		return types.ErrConflict
	}
	r.State = to
	return nil
}

func (m *memStore) SetWave(_ context.Context, rideID uuid.UUID, wave int, deadline time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rides[rideID]
	if !ok {
		return types.ErrRideNotFound
	}
	r.Wave = wave
	r.WaveDeadline = &deadline
	return nil
}

func (m *memStore) SetSelectedOffer(_ context.Context, rideID uuid.UUID, offerID *uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rides[rideID]
	if !ok {
		return types.ErrRideNotFound
	}
	r.SelectedOfferID = offerID
	return nil
}

func (m *memStore) ListUnsettled(_ context.Context) ([]models.Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Ride
	for _, r := range m.rides {
		if r.State == types.StateDiscovery || r.State == types.StateHold {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *memStore) GetOfferForUpdate(_ context.Context, offerID uuid.UUID) (*models.Offer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.offers[offerID]
	if !ok {
		return nil, types.ErrOfferNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memStore) UpdateStatus(_ context.Context, offerID uuid.UUID, from, to types.OfferStatus, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.offers[offerID]
	if !ok {
		return types.ErrOfferNotFound
	}
	if o.Status != from {
		return types.ErrConflict
	}
	o.Status = to
	o.RespondedAt = &at
	return nil
}

func (m *memStore) ExpirePending(_ context.Context, rideID uuid.UUID, at time.Time) ([]models.Offer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Offer
	for _, o := range m.offers {
		if o.RideID == rideID && o.Status == types.OfferPending {
			o.Status = types.OfferExpired
			o.RespondedAt = &at
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *memStore) RespondedDriverIDs(_ context.Context, rideID uuid.UUID) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []uuid.UUID
	for _, o := range m.offers {
		if o.RideID == rideID && o.Status.Terminal() && o.Status != types.OfferAccepted {
			out = append(out, o.DriverID)
		}
	}
	return out, nil
}

func (m *memStore) Append(_ context.Context, event *models.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, *event)
	return nil
}

func (m *memStore) eventTypes() []types.RideEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.RideEvent, len(m.events))
	for i := range m.events {
		out[i] = m.events[i].Type
	}
	return out
}

type offerRepoAdapter struct{ *memStore }

func (a offerRepoAdapter) GetForUpdate(ctx context.Context, offerID uuid.UUID) (*models.Offer, error) {
	return a.memStore.GetOfferForUpdate(ctx, offerID)
}

type fakeFavorites struct{ drivers []uuid.UUID }

func (f fakeFavorites) ListDriverIDs(context.Context, uuid.UUID) ([]uuid.UUID, error) {
	return f.drivers, nil
}

type fakeGeo struct{ drivers []uuid.UUID }

func (f fakeGeo) Nearby(context.Context, float64, float64, float64, int) ([]uuid.UUID, error) {
	return f.drivers, nil
}

func (f fakeGeo) Region(context.Context, int) ([]uuid.UUID, error) {
	return f.drivers, nil
}

type fakeBroker struct {
	mu         sync.Mutex
	broadcasts []models.WaveBroadcastMessage
	statuses   []models.RideStatusMessage
}

func (f *fakeBroker) PublishWaveBroadcast(_ context.Context, msg models.WaveBroadcastMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.broadcasts = append(f.broadcasts, msg)
	return nil
}

func (f *fakeBroker) PublishRideStatus(_ context.Context, msg models.RideStatusMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, msg)
	return nil
}

func (f *fakeBroker) lastBroadcast() (models.WaveBroadcastMessage, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.broadcasts) == 0 {
		return models.WaveBroadcastMessage{}, false
	}
	return f.broadcasts[len(f.broadcasts)-1], true
}

type nopNotifier struct{}

func (nopNotifier) NotifyDriver(context.Context, uuid.UUID, any) {}
func (nopNotifier) NotifyRider(context.Context, uuid.UUID, any)  {}

type fakeTRM struct{ mu sync.Mutex }

func (f *fakeTRM) Do(_ context.Context, fn func(ctx context.Context) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fn(context.Background())
}

/* ======================= helpers ======================= */

func fastConfig() config.DispatchConfig {
	return config.DispatchConfig{
		Wave1Timeout:         10 * time.Millisecond,
		Wave2Timeout:         10 * time.Millisecond,
		Wave3Timeout:         10 * time.Millisecond,
		Wave1RadiusKm:        2,
		Wave2RadiusKm:        6,
		MaxCandidatesPerWave: 50,
		HoldTTL:              15 * time.Millisecond,
	}
}

func newTestEngine(t *testing.T, cfg config.DispatchConfig, store *memStore, geo GeoIndex, broker *fakeBroker) *Engine {
	t.Helper()
	e := NewEngine(
		cfg,
		store,
		offerRepoAdapter{store},
		store,
		fakeFavorites{},
		geo,
		broker,
		nopNotifier{},
		&fakeTRM{},
		logger.NewNop(),
	)
	t.Cleanup(e.Stop)
	return e
}

func seedRide(store *memStore, state types.RideState) *models.Ride {
	ride := &models.Ride{
		ID:            uuid.MustNew(),
		RideNumber:    "RIDE_20260829_001",
		State:         state,
		RiderID:       uuid.MustNew(),
		ReferenceFare: 1000,
		CreatedAt:     time.Now(),
	}
	store.rides[ride.ID] = ride
	return ride
}

func waitForState(t *testing.T, store *memStore, rideID uuid.UUID, want types.RideState) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		store.mu.Lock()
		state := store.rides[rideID].State
		store.mu.Unlock()
		if state == want {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	store.mu.Lock()
	state := store.rides[rideID].State
	store.mu.Unlock()
	t.Fatalf("ride never reached %s, still %s", want, state)
}

/* ======================= tests ======================= */

func TestStart_EntersWaveOne(t *testing.T) {
	store := newMemStore()
	broker := &fakeBroker{}
	driver := uuid.MustNew()
	e := newTestEngine(t, config.DispatchConfig{
		Wave1Timeout: time.Hour, Wave2Timeout: time.Hour, Wave3Timeout: time.Hour,
		Wave1RadiusKm: 2, Wave2RadiusKm: 6, MaxCandidatesPerWave: 50, HoldTTL: time.Hour,
	}, store, fakeGeo{drivers: []uuid.UUID{driver}}, broker)

	ride := seedRide(store, types.StateCreated)

	updated, err := e.Start(context.Background(), ride.ID, models.Actor{ID: ride.RiderID, Role: types.RoleRider})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if updated.State != types.StateDiscovery || updated.Wave != 1 {
		t.Fatalf("state=%s wave=%d, want discovery wave 1", updated.State, updated.Wave)
	}

	msg, ok := broker.lastBroadcast()
	if !ok {
		t.Fatalf("no wave broadcast published")
	}
	if msg.Wave != 1 || len(msg.CandidateDriverIDs) != 1 || msg.CandidateDriverIDs[0] != driver {
		t.Fatalf("unexpected broadcast: %+v", msg)
	}

	// Starting discovery twice is an invalid transition, not a silent no-op.
	if _, err := e.Start(context.Background(), ride.ID, models.SystemActor()); err == nil {
		t.Fatalf("expected invalid transition on second start")
	}
}

func TestThreeEmptyWavesExpireRide(t *testing.T) {
	store := newMemStore()
	broker := &fakeBroker{}
	e := newTestEngine(t, fastConfig(), store, fakeGeo{}, broker)

	ride := seedRide(store, types.StateCreated)
	if _, err := e.Start(context.Background(), ride.ID, models.SystemActor()); err != nil {
		t.Fatalf("start: %v", err)
	}

	waitForState(t, store, ride.ID, types.StateExpired)

	store.mu.Lock()
	wave := store.rides[ride.ID].Wave
	store.mu.Unlock()
	if wave != lastWave {
		t.Fatalf("final wave = %d, want %d", wave, lastWave)
	}

	var escalations, expirations int
	for _, et := range store.eventTypes() {
		switch et {
		case types.EventWaveEscalated:
			escalations++
		case types.EventRideExpired:
			expirations++
		}
	}
	if escalations != 2 {
		t.Fatalf("wave escalation events = %d, want 2", escalations)
	}
	if expirations != 1 {
		t.Fatalf("ride expired events = %d, want 1", expirations)
	}
}

func TestCancellationMakesWaveTimerNoop(t *testing.T) {
	store := newMemStore()
	broker := &fakeBroker{}
	e := newTestEngine(t, fastConfig(), store, fakeGeo{}, broker)

	ride := seedRide(store, types.StateCreated)
	if _, err := e.Start(context.Background(), ride.ID, models.SystemActor()); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Rider cancels before the wave-1 timer fires.
	if err := store.UpdateState(context.Background(), ride.ID, types.StateDiscovery, types.StateCanceled, time.Now()); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	time.Sleep(60 * time.Millisecond)

	store.mu.Lock()
	state := store.rides[ride.ID].State
	store.mu.Unlock()
	if state != types.StateCanceled {
		t.Fatalf("state = %s, want canceled", state)
	}
	for _, et := range store.eventTypes() {
		if et == types.EventWaveEscalated || et == types.EventRideExpired {
			t.Fatalf("timer acted on a canceled ride: %s", et)
		}
	}
}

func TestStaleWaveTimerIsNoop(t *testing.T) {
	store := newMemStore()
	broker := &fakeBroker{}
	e := newTestEngine(t, fastConfig(), store, fakeGeo{}, broker)

	past := time.Now().Add(-time.Second)
	ride := seedRide(store, types.StateDiscovery)
	store.rides[ride.ID].Wave = 2
	store.rides[ride.ID].WaveDeadline = &past

	// A leftover wave-1 timer fires after the ride already escalated.
	e.HandleWaveTimeout(ride.ID, 1)

	store.mu.Lock()
	wave := store.rides[ride.ID].Wave
	store.mu.Unlock()
	if wave != 2 {
		t.Fatalf("stale timer escalated the wave: %d", wave)
	}
	if got := len(store.eventTypes()); got != 0 {
		t.Fatalf("stale timer appended %d events", got)
	}
}

func TestHoldTimeoutReentersDiscoveryExcludingDriver(t *testing.T) {
	store := newMemStore()
	broker := &fakeBroker{}

	rejectedDriver := uuid.MustNew()
	otherDriver := uuid.MustNew()
	cfg := config.DispatchConfig{
		Wave1Timeout: time.Hour, Wave2Timeout: time.Hour, Wave3Timeout: time.Hour,
		Wave1RadiusKm: 2, Wave2RadiusKm: 6, MaxCandidatesPerWave: 50,
		HoldTTL: 15 * time.Millisecond,
	}
	e := newTestEngine(t, cfg, store, fakeGeo{drivers: []uuid.UUID{rejectedDriver, otherDriver}}, broker)

	ride := seedRide(store, types.StateHold)
	offer := &models.Offer{
		ID:       uuid.MustNew(),
		RideID:   ride.ID,
		DriverID: rejectedDriver,
		Wave:     2,
		Status:   types.OfferAccepted,
	}
	store.offers[offer.ID] = offer
	store.rides[ride.ID].Wave = 2
	store.rides[ride.ID].SelectedOfferID = &offer.ID

	e.ScheduleHoldTimeout(ride.ID)

	waitForState(t, store, ride.ID, types.StateDiscovery)

	store.mu.Lock()
	r := *store.rides[ride.ID]
	offerStatus := store.offers[offer.ID].Status
	store.mu.Unlock()

	if r.SelectedOfferID != nil {
		t.Fatalf("selected offer not cleared")
	}
	if r.Wave != 2 {
		t.Fatalf("wave = %d, want re-entry at 2", r.Wave)
	}
	if offerStatus != types.OfferRejected {
		t.Fatalf("selected offer status = %s, want rejected", offerStatus)
	}

	var holdExpired bool
	for _, et := range store.eventTypes() {
		if et == types.EventHoldExpired {
			holdExpired = true
		}
	}
	if !holdExpired {
		t.Fatalf("no HOLD_EXPIRED event appended")
	}

	msg, ok := broker.lastBroadcast()
	if !ok {
		t.Fatalf("no re-broadcast after hold fallback")
	}
	for _, id := range msg.CandidateDriverIDs {
		if id == rejectedDriver {
			t.Fatalf("rejected driver re-solicited")
		}
	}
	if len(msg.CandidateDriverIDs) != 1 || msg.CandidateDriverIDs[0] != otherDriver {
		t.Fatalf("unexpected candidates: %v", msg.CandidateDriverIDs)
	}
}

func TestConfirmedHoldIgnoresHoldTimer(t *testing.T) {
	store := newMemStore()
	broker := &fakeBroker{}
	e := newTestEngine(t, fastConfig(), store, fakeGeo{}, broker)

	ride := seedRide(store, types.StateConfirmed)

	e.HandleHoldTimeout(ride.ID)

	store.mu.Lock()
	state := store.rides[ride.ID].State
	store.mu.Unlock()
	if state != types.StateConfirmed {
		t.Fatalf("state = %s, want confirmed", state)
	}
	if got := len(store.eventTypes()); got != 0 {
		t.Fatalf("hold timer appended %d events on confirmed ride", got)
	}
}
