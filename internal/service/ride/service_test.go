package ride

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/askhat-b/taxi-dispatch/internal/domain/models"
	"github.com/askhat-b/taxi-dispatch/internal/domain/types"
	"github.com/askhat-b/taxi-dispatch/internal/service/pricing"
	"github.com/askhat-b/taxi-dispatch/pkg/hasher"
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

type fakeRides struct{ s *memStore }

func (f fakeRides) Create(_ context.Context, ride *models.Ride) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	cp := *ride
	// The rides table stores only guest_token_hash.
	cp.GuestToken = ""
	f.s.rides[ride.ID] = &cp
	return nil
}

func (f fakeRides) Get(_ context.Context, rideID uuid.UUID) (*models.Ride, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	r, ok := f.s.rides[rideID]
	if !ok {
		return nil, types.ErrRideNotFound
	}
	cp := *r
	return &cp, nil
}

func (f fakeRides) GetForUpdate(ctx context.Context, rideID uuid.UUID) (*models.Ride, error) {
	return f.Get(ctx, rideID)
}

func (f fakeRides) UpdateState(_ context.Context, rideID uuid.UUID, from, to types.RideState, _ time.Time) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	r, ok := f.s.rides[rideID]
	if !ok {
		return types.ErrRideNotFound
	}
	if r.State != from {
		return types.ErrConflict
	}
	r.State = to
	return nil
}

func (f fakeRides) SetCancellation(_ context.Context, rideID uuid.UUID, reason string) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	r, ok := f.s.rides[rideID]
	if !ok {
		return types.ErrRideNotFound
	}
	r.CancellationReason = &reason
	return nil
}

func (f fakeRides) CountByDate(_ context.Context, _ time.Time) (int, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	return len(f.s.rides), nil
}

type fakeOffers struct{ s *memStore }

func (f fakeOffers) Get(_ context.Context, offerID uuid.UUID) (*models.Offer, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	o, ok := f.s.offers[offerID]
	if !ok {
		return nil, types.ErrOfferNotFound
	}
	cp := *o
	return &cp, nil
}

func (f fakeOffers) RejectPending(_ context.Context, rideID uuid.UUID, at time.Time) ([]models.Offer, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var out []models.Offer
	for _, o := range f.s.offers {
		if o.RideID == rideID && o.Status == types.OfferPending {
			o.Status = types.OfferRejected
			o.RespondedAt = &at
			out = append(out, *o)
		}
	}
	return out, nil
}

func (f fakeOffers) ListByRide(_ context.Context, rideID uuid.UUID) ([]models.Offer, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var out []models.Offer
	for _, o := range f.s.offers {
		if o.RideID == rideID {
			out = append(out, *o)
		}
	}
	return out, nil
}

type fakeEvents struct{ s *memStore }

func (f fakeEvents) Append(_ context.Context, event *models.AuditEvent) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	f.s.events = append(f.s.events, *event)
	return nil
}

func (f fakeEvents) ListByRide(_ context.Context, rideID uuid.UUID) ([]models.AuditEvent, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var out []models.AuditEvent
	for i := range f.s.events {
		if f.s.events[i].RideID == rideID {
			out = append(out, f.s.events[i])
		}
	}
	return out, nil
}

// fakeDiscovery performs the created -> discovery transition the way the
// real engine does, without timers.
type fakeDiscovery struct{ s *memStore }

func (f fakeDiscovery) Start(ctx context.Context, rideID uuid.UUID, _ models.Actor) (*models.Ride, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	r, ok := f.s.rides[rideID]
	if !ok {
		return nil, types.ErrRideNotFound
	}
	if err := types.ValidateTransition(r.State, types.StateDiscovery); err != nil {
		return nil, err
	}
	now := time.Now()
	deadline := now.Add(time.Minute)
	r.State = types.StateDiscovery
	r.Wave = 1
	r.WaveDeadline = &deadline
	r.DiscoveryStartedAt = &now
	cp := *r
	return &cp, nil
}

type fixedEstimator struct{}

func (fixedEstimator) Estimate(context.Context, models.Location, models.Location) (pricing.Estimate, error) {
	return pricing.Estimate{
		DistanceKm:  12.5,
		DurationMin: 25,
		Quote:       models.FareQuote{Amount: 1000, Version: "tariff-v1"},
	}, nil
}

type nopBroker struct{}

func (nopBroker) PublishRideStatus(context.Context, models.RideStatusMessage) error { return nil }

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

func newTestService(store *memStore) *Service {
	return NewService(
		fakeRides{store},
		fakeOffers{store},
		fakeEvents{store},
		fakeDiscovery{store},
		fixedEstimator{},
		nopBroker{},
		nopNotifier{},
		&fakeTRM{},
		logger.NewNop(),
	)
}

func seedRide(store *memStore, state types.RideState) *models.Ride {
	ride := &models.Ride{
		ID:        uuid.MustNew(),
		State:     state,
		RiderID:   uuid.MustNew(),
		CreatedAt: time.Now(),
	}
	store.rides[ride.ID] = ride
	return ride
}

func seedAcceptedOffer(store *memStore, ride *models.Ride) *models.Offer {
	offer := &models.Offer{
		ID:       uuid.MustNew(),
		RideID:   ride.ID,
		DriverID: uuid.MustNew(),
		Status:   types.OfferAccepted,
	}
	store.offers[offer.ID] = offer
	store.rides[ride.ID].SelectedOfferID = &offer.ID
	return offer
}

func assertValidAuditEdges(t *testing.T, store *memStore) {
	t.Helper()
	for _, ev := range store.events {
		if ev.PreviousState == ev.NewState {
			continue // non-transition events record the current state twice
		}
		if !ev.PreviousState.CanTransitionTo(ev.NewState) {
			t.Fatalf("audit event %s records illegal edge %s -> %s", ev.Type, ev.PreviousState, ev.NewState)
		}
	}
}

/* ======================= tests ======================= */

func TestCreate_RiderRide(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)

	riderID := uuid.MustNew()
	ride, err := svc.Create(context.Background(), CreateInput{
		Origin:      models.Location{Latitude: 43.23, Longitude: 76.88, Address: "Abay 1"},
		Destination: models.Location{Latitude: 43.35, Longitude: 77.04, Address: "Airport"},
		RequestType: "standard",
		Actor:       models.Actor{ID: riderID, Role: types.RoleRider},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if ride.State != types.StateCreated {
		t.Fatalf("state = %s, want created", ride.State)
	}
	if ride.RiderID != riderID || ride.GuestTokenHash != nil {
		t.Fatalf("ownership not bound to rider")
	}
	if !strings.HasPrefix(ride.RideNumber, "RIDE_") {
		t.Fatalf("ride number = %q", ride.RideNumber)
	}
	if ride.ReferenceFare != 1000 || ride.FareVersion != "tariff-v1" {
		t.Fatalf("reference fare not taken from quote: %+v", ride)
	}
}

func TestCreate_GuestGetsOwnershipToken(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)

	ride, err := svc.Create(context.Background(), CreateInput{
		Origin:      models.Location{Latitude: 43.23, Longitude: 76.88},
		Destination: models.Location{Latitude: 43.35, Longitude: 77.04},
		RequestType: "standard",
		Actor:       models.AnonymousActor(),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if ride.GuestToken == "" {
		t.Fatalf("guest ride has no token")
	}
	if ride.ActorType != types.RoleGuest {
		t.Fatalf("actor type = %s, want guest", ride.ActorType)
	}

	// Only the hash of the token is stored.
	if ride.GuestTokenHash == nil || *ride.GuestTokenHash == "" {
		t.Fatalf("guest ride has no token hash")
	}
	if *ride.GuestTokenHash == ride.GuestToken {
		t.Fatalf("plaintext token stored as hash")
	}
	if !hasher.Verify(ride.GuestToken, *ride.GuestTokenHash) {
		t.Fatalf("stored hash does not match issued token")
	}
	if stored := store.rides[ride.ID]; stored.GuestToken != "" {
		t.Fatalf("plaintext token persisted")
	}

	// The token is the guest's only proof of ownership.
	guest := models.Actor{Role: types.RoleGuest, GuestToken: ride.GuestToken}
	if _, err := svc.Cancel(context.Background(), ride.ID, guest, "changed my mind"); err != nil {
		t.Fatalf("guest cancel with own token: %v", err)
	}

	other := models.Actor{Role: types.RoleGuest, GuestToken: "not-the-token"}
	ride2, err := svc.Create(context.Background(), CreateInput{
		RequestType: "standard",
		Actor:       models.AnonymousActor(),
	})
	if err != nil {
		t.Fatalf("create second: %v", err)
	}
	if _, err := svc.Cancel(context.Background(), ride2.ID, other, "nope"); !errors.Is(err, types.ErrForbidden) {
		t.Fatalf("wrong token cancel: expected ErrForbidden, got %v", err)
	}
}

func TestCancel_ByStrangerForbidden(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	ride := seedRide(store, types.StateDiscovery)

	stranger := models.Actor{ID: uuid.MustNew(), Role: types.RoleRider}
	_, err := svc.Cancel(context.Background(), ride.ID, stranger, "not mine")
	if !errors.Is(err, types.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	if store.rides[ride.ID].State != types.StateDiscovery {
		t.Fatalf("ride state changed on forbidden cancel")
	}
	if len(store.events) != 0 {
		t.Fatalf("forbidden cancel appended %d events", len(store.events))
	}
}

func TestCancel_TerminalStateFailsLoudly(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	ride := seedRide(store, types.StateCompleted)
	rider := models.Actor{ID: ride.RiderID, Role: types.RoleRider}

	_, err := svc.Cancel(context.Background(), ride.ID, rider, "too late")
	if !errors.Is(err, types.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}

	var detail *types.InvalidTransitionError
	if !errors.As(err, &detail) {
		t.Fatalf("error does not carry transition detail: %v", err)
	}
	if detail.From != types.StateCompleted || detail.To != types.StateCanceled {
		t.Fatalf("detail edge = %s -> %s", detail.From, detail.To)
	}
}

func TestCancel_ConcurrentExactlyOneWinner(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	ride := seedRide(store, types.StateHold)
	rider := models.Actor{ID: ride.RiderID, Role: types.RoleRider}

	const n = 6
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Cancel(context.Background(), ride.ID, rider, "race")
		}(i)
	}
	wg.Wait()

	var wins int
	for _, err := range errs {
		if err == nil {
			wins++
		} else if !errors.Is(err, types.ErrInvalidTransition) {
			t.Fatalf("loser got unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("winners = %d, want exactly 1", wins)
	}

	var cancelEvents int
	for _, ev := range store.events {
		if ev.Type == types.EventRideCancelled {
			cancelEvents++
		}
	}
	if cancelEvents != 1 {
		t.Fatalf("cancellation events = %d, want 1", cancelEvents)
	}
}

func TestConfirm_OnlySelectedDriver(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	ride := seedRide(store, types.StateHold)
	offer := seedAcceptedOffer(store, ride)

	wrongDriver := models.Actor{ID: uuid.MustNew(), Role: types.RoleDriver}
	if _, err := svc.Confirm(context.Background(), ride.ID, wrongDriver); !errors.Is(err, types.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	driver := models.Actor{ID: offer.DriverID, Role: types.RoleDriver}
	updated, err := svc.Confirm(context.Background(), ride.ID, driver)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if updated.State != types.StateActive {
		t.Fatalf("state = %s, want active", updated.State)
	}

	var confirmed, activated bool
	for _, ev := range store.events {
		switch ev.Type {
		case types.EventRideConfirmed:
			confirmed = true
		case types.EventRideActivated:
			activated = true
		}
	}
	if !confirmed || !activated {
		t.Fatalf("confirm did not append both lifecycle events")
	}
	assertValidAuditEdges(t, store)
}

func TestConfirm_FromDiscoveryInvalid(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	ride := seedRide(store, types.StateDiscovery)

	_, err := svc.Confirm(context.Background(), ride.ID, models.SystemActor())
	if !errors.Is(err, types.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestComplete_FullLifecycleAuditIsValidWalk(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)

	rider := models.Actor{ID: uuid.MustNew(), Role: types.RoleRider}
	ride, err := svc.Create(context.Background(), CreateInput{
		RequestType: "standard",
		Actor:       rider,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := svc.StartDiscovery(context.Background(), ride.ID, rider); err != nil {
		t.Fatalf("start discovery: %v", err)
	}

	// Offer selection is the ledger's job; emulate its outcome.
	store.mu.Lock()
	store.rides[ride.ID].State = types.StateHold
	store.mu.Unlock()
	offer := seedAcceptedOffer(store, ride)

	driver := models.Actor{ID: offer.DriverID, Role: types.RoleDriver}
	if _, err := svc.Confirm(context.Background(), ride.ID, driver); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	updated, err := svc.Complete(context.Background(), ride.ID, driver)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if updated.State != types.StateCompleted {
		t.Fatalf("state = %s, want completed", updated.State)
	}

	// A completed ride can no longer be cancelled.
	if _, err := svc.Cancel(context.Background(), ride.ID, rider, "too late"); !errors.Is(err, types.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition after completion, got %v", err)
	}

	assertValidAuditEdges(t, store)
}

func TestCancel_NotifiesSelectedDriverAndRejectsPending(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	ride := seedRide(store, types.StateHold)
	seedAcceptedOffer(store, ride)

	pending := &models.Offer{
		ID:       uuid.MustNew(),
		RideID:   ride.ID,
		DriverID: uuid.MustNew(),
		Status:   types.OfferPending,
	}
	store.offers[pending.ID] = pending

	rider := models.Actor{ID: ride.RiderID, Role: types.RoleRider}
	updated, err := svc.Cancel(context.Background(), ride.ID, rider, "plans changed")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if updated.CancellationReason == nil || *updated.CancellationReason != "plans changed" {
		t.Fatalf("cancellation reason not stored")
	}

	if store.offers[pending.ID].Status != types.OfferRejected {
		t.Fatalf("pending offer not rejected on cancel")
	}
}
