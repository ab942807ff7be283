package offer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/askhat-b/taxi-dispatch/internal/domain/models"
	"github.com/askhat-b/taxi-dispatch/internal/domain/types"
	"github.com/askhat-b/taxi-dispatch/internal/service/pricing"
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

func (m *memStore) Create(_ context.Context, offer *models.Offer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *offer
	m.offers[offer.ID] = &cp
	return nil
}

func (m *memStore) offerForUpdate(offerID uuid.UUID) (*models.Offer, error) {
	o, ok := m.offers[offerID]
	if !ok {
		return nil, types.ErrOfferNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memStore) GetOfferForUpdate(ctx context.Context, offerID uuid.UUID) (*models.Offer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.offerForUpdate(offerID)
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

func (m *memStore) RejectOtherPending(_ context.Context, rideID, keep uuid.UUID, at time.Time) ([]models.Offer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var rejected []models.Offer
	for _, o := range m.offers {
		if o.RideID == rideID && o.ID != keep && o.Status == types.OfferPending {
			o.Status = types.OfferRejected
			o.RespondedAt = &at
			rejected = append(rejected, *o)
		}
	}
	return rejected, nil
}

func (m *memStore) ListByRide(_ context.Context, rideID uuid.UUID) ([]models.Offer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Offer
	for _, o := range m.offers {
		if o.RideID == rideID {
			out = append(out, *o)
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

// offerRepoAdapter renames GetOfferForUpdate to the OfferRepo method name so
// one memStore can back both repo interfaces.
type offerRepoAdapter struct{ *memStore }

func (a offerRepoAdapter) GetForUpdate(ctx context.Context, offerID uuid.UUID) (*models.Offer, error) {
	return a.memStore.GetOfferForUpdate(ctx, offerID)
}

// fakeTRM serializes "transactions" with a mutex, standing in for the row
// locks the real store takes.
type fakeTRM struct{ mu sync.Mutex }

func (f *fakeTRM) Do(_ context.Context, fn func(ctx context.Context) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fn(context.Background())
}

type fakeHolds struct {
	mu    sync.Mutex
	rides []uuid.UUID
}

func (f *fakeHolds) ScheduleHoldTimeout(rideID uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rides = append(f.rides, rideID)
}

type nopNotifier struct{}

func (nopNotifier) NotifyDriver(context.Context, uuid.UUID, any) {}
func (nopNotifier) NotifyRider(context.Context, uuid.UUID, any)  {}

/* ======================= helpers ======================= */

func newTestService(store *memStore) (*Service, *fakeHolds) {
	holds := &fakeHolds{}
	svc := NewService(
		store,
		offerRepoAdapter{store},
		store,
		pricing.NewClassifier(0.90, 1.10),
		holds,
		nopNotifier{},
		&fakeTRM{},
		logger.NewNop(),
	)
	return svc, holds
}

func seedRide(store *memStore, state types.RideState) *models.Ride {
	ride := &models.Ride{
		ID:            uuid.MustNew(),
		State:         state,
		RiderID:       uuid.MustNew(),
		ReferenceFare: 1000,
		Wave:          1,
		CreatedAt:     time.Now(),
	}
	store.rides[ride.ID] = ride
	return ride
}

/* ======================= tests ======================= */

func TestSubmit_RideNotDiscoverable(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestService(store)
	ride := seedRide(store, types.StateCreated)

	_, err := svc.Submit(context.Background(), ride.ID, uuid.MustNew(), models.FareQuote{Amount: 900, Version: "v1"})
	if !errors.Is(err, types.ErrRideNotDiscoverable) {
		t.Fatalf("expected ErrRideNotDiscoverable, got %v", err)
	}
}

func TestSubmit_DerivesPriceLabel(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestService(store)
	ride := seedRide(store, types.StateDiscovery)

	offer, err := svc.Submit(context.Background(), ride.ID, uuid.MustNew(), models.FareQuote{Amount: 850, Version: "v1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if offer.Status != types.OfferPending {
		t.Fatalf("status = %v, want pending", offer.Status)
	}
	if offer.PriceLabel != types.LabelGoodDeal {
		t.Fatalf("price label = %v, want good_deal", offer.PriceLabel)
	}
	if offer.Wave != ride.Wave {
		t.Fatalf("wave = %d, want %d", offer.Wave, ride.Wave)
	}
}

func TestSelect_SingleWinnerRejectsRest(t *testing.T) {
	store := newMemStore()
	svc, holds := newTestService(store)
	ride := seedRide(store, types.StateDiscovery)
	rider := models.Actor{ID: ride.RiderID, Role: types.RoleRider}

	ctx := context.Background()
	o1, err := svc.Submit(ctx, ride.ID, uuid.MustNew(), models.FareQuote{Amount: 950, Version: "v1"})
	if err != nil {
		t.Fatalf("submit o1: %v", err)
	}
	o2, err := svc.Submit(ctx, ride.ID, uuid.MustNew(), models.FareQuote{Amount: 1000, Version: "v1"})
	if err != nil {
		t.Fatalf("submit o2: %v", err)
	}

	updated, err := svc.Select(ctx, ride.ID, o1.ID, rider)
	if err != nil {
		t.Fatalf("select o1: %v", err)
	}
	if updated.State != types.StateHold {
		t.Fatalf("state = %v, want hold", updated.State)
	}
	if updated.SelectedOfferID == nil || *updated.SelectedOfferID != o1.ID {
		t.Fatalf("selected offer = %v, want %v", updated.SelectedOfferID, o1.ID)
	}

	if got := store.offers[o1.ID].Status; got != types.OfferAccepted {
		t.Fatalf("o1 status = %v, want accepted", got)
	}
	if got := store.offers[o2.ID].Status; got != types.OfferRejected {
		t.Fatalf("o2 status = %v, want rejected", got)
	}

	if len(holds.rides) != 1 || holds.rides[0] != ride.ID {
		t.Fatalf("hold timeout not scheduled: %v", holds.rides)
	}

	// The losing offer can no longer be selected.
	_, err = svc.Select(ctx, ride.ID, o2.ID, rider)
	if !errors.Is(err, types.ErrConflict) && !errors.Is(err, types.ErrOfferNotPending) {
		t.Fatalf("second select: expected Conflict or OfferNotPending, got %v", err)
	}
}

func TestSelect_Forbidden(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestService(store)
	ride := seedRide(store, types.StateDiscovery)

	offer, err := svc.Submit(context.Background(), ride.ID, uuid.MustNew(), models.FareQuote{Amount: 1000, Version: "v1"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	stranger := models.Actor{ID: uuid.MustNew(), Role: types.RoleRider}
	_, err = svc.Select(context.Background(), ride.ID, offer.ID, stranger)
	if !errors.Is(err, types.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	if store.rides[ride.ID].State != types.StateDiscovery {
		t.Fatalf("ride state changed on forbidden select")
	}
}

func TestSelect_ConcurrentExactlyOneWinner(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestService(store)
	ride := seedRide(store, types.StateDiscovery)
	rider := models.Actor{ID: ride.RiderID, Role: types.RoleRider}

	ctx := context.Background()
	const n = 8
	offerIDs := make([]uuid.UUID, n)
	for i := range offerIDs {
		o, err := svc.Submit(ctx, ride.ID, uuid.MustNew(), models.FareQuote{Amount: 1000, Version: "v1"})
		if err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
		offerIDs[i] = o.ID
	}

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := range offerIDs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Select(ctx, ride.ID, offerIDs[i], rider)
		}(i)
	}
	wg.Wait()

	var wins int
	for _, err := range errs {
		if err == nil {
			wins++
		} else if !errors.Is(err, types.ErrConflict) && !errors.Is(err, types.ErrOfferNotPending) {
			t.Fatalf("loser got unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("winners = %d, want exactly 1", wins)
	}

	var accepted int
	for _, o := range store.offers {
		if o.Status == types.OfferAccepted {
			accepted++
		}
	}
	if accepted != 1 {
		t.Fatalf("accepted offers = %d, want 1", accepted)
	}
}

func TestReject_OnlyOwnOffer(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestService(store)
	ride := seedRide(store, types.StateDiscovery)

	driverID := uuid.MustNew()
	offer, err := svc.Submit(context.Background(), ride.ID, driverID, models.FareQuote{Amount: 1000, Version: "v1"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	other := models.Actor{ID: uuid.MustNew(), Role: types.RoleDriver}
	if _, err := svc.Reject(context.Background(), ride.ID, offer.ID, other); !errors.Is(err, types.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	owner := models.Actor{ID: driverID, Role: types.RoleDriver}
	rejected, err := svc.Reject(context.Background(), ride.ID, offer.ID, owner)
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.Status != types.OfferRejected {
		t.Fatalf("status = %v, want rejected", rejected.Status)
	}

	// Rejecting twice fails.
	if _, err := svc.Reject(context.Background(), ride.ID, offer.ID, owner); !errors.Is(err, types.ErrOfferNotPending) {
		t.Fatalf("expected ErrOfferNotPending, got %v", err)
	}
}

func TestSelect_AuditEventRecordsEdge(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestService(store)
	ride := seedRide(store, types.StateDiscovery)
	rider := models.Actor{ID: ride.RiderID, Role: types.RoleRider}

	offer, err := svc.Submit(context.Background(), ride.ID, uuid.MustNew(), models.FareQuote{Amount: 1000, Version: "v1"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := svc.Select(context.Background(), ride.ID, offer.ID, rider); err != nil {
		t.Fatalf("select: %v", err)
	}

	var selected *models.AuditEvent
	for i := range store.events {
		if store.events[i].Type == types.EventOfferSelected {
			selected = &store.events[i]
		}
	}
	if selected == nil {
		t.Fatalf("no OFFER_SELECTED event appended")
	}
	if selected.PreviousState != types.StateDiscovery || selected.NewState != types.StateHold {
		t.Fatalf("event edge = %s -> %s, want discovery -> hold", selected.PreviousState, selected.NewState)
	}
	if !selected.PreviousState.CanTransitionTo(selected.NewState) {
		t.Fatalf("audit event records an illegal edge")
	}
}
