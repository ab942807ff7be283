package offer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/askhat-b/taxi-dispatch/internal/domain/models"
	"github.com/askhat-b/taxi-dispatch/internal/domain/types"
	"github.com/askhat-b/taxi-dispatch/internal/service/pricing"
	"github.com/askhat-b/taxi-dispatch/pkg/logger"
	wrap "github.com/askhat-b/taxi-dispatch/pkg/logger/wrapper"
	"github.com/askhat-b/taxi-dispatch/pkg/metrics"
	"github.com/askhat-b/taxi-dispatch/pkg/trm"
	"github.com/askhat-b/taxi-dispatch/pkg/uuid"
)

const serviceName = "dispatch"

// Service is the offer ledger: it records driver responses to discovery
// waves and enforces single-winner selection.
type Service struct {
	rides      RideRepo
	offers     OfferRepo
	events     EventRepo
	classifier *pricing.Classifier
	holds      HoldScheduler
	notifier   Notifier
	trm        trm.TxManager
	logger     logger.Logger
}

func NewService(
	rides RideRepo,
	offers OfferRepo,
	events EventRepo,
	classifier *pricing.Classifier,
	holds HoldScheduler,
	notifier Notifier,
	trm trm.TxManager,
	logger logger.Logger,
) *Service {
	return &Service{
		rides:      rides,
		offers:     offers,
		events:     events,
		classifier: classifier,
		holds:      holds,
		notifier:   notifier,
		trm:        trm,
		logger:     logger,
	}
}

// Submit records a driver's fare offer for a ride in discovery.
func (s *Service) Submit(ctx context.Context, rideID, driverID uuid.UUID, fare models.FareQuote) (*models.Offer, error) {
	ctx = wrap.WithAction(ctx, "submit_offer")
	ctx = wrap.WithRideID(ctx, rideID.String())
	ctx = wrap.WithDriverID(ctx, driverID.String())

	var (
		created *models.Offer
		riderID uuid.UUID
	)

	err := s.trm.Do(ctx, func(ctx context.Context) error {
		ride, err := s.rides.GetForUpdate(ctx, rideID)
		if err != nil {
			return wrap.Error(ctx, err)
		}

		if ride.State != types.StateDiscovery {
			return wrap.Error(ctx, fmt.Errorf("ride %s is in state %s: %w", rideID, ride.State, types.ErrRideNotDiscoverable))
		}

		offer := &models.Offer{
			ID:          uuid.MustNew(),
			RideID:      rideID,
			DriverID:    driverID,
			Wave:        ride.Wave,
			Status:      types.OfferPending,
			FareAmount:  fare.Amount,
			FareVersion: fare.Version,
			PriceLabel:  s.classifier.Label(fare.Amount, ride.ReferenceFare),
			CreatedAt:   time.Now(),
		}

		if err := s.offers.Create(ctx, offer); err != nil {
			return wrap.Error(ctx, fmt.Errorf("could not create offer: %w", err))
		}

		if err := s.appendEvent(ctx, ride.ID, types.EventOfferSubmitted, ride.State, ride.State, models.Actor{ID: driverID, Role: types.RoleDriver}, map[string]any{
			"offer_id":    offer.ID,
			"driver_id":   driverID,
			"wave":        offer.Wave,
			"fare_amount": offer.FareAmount,
			"price_label": offer.PriceLabel,
		}); err != nil {
			return wrap.Error(ctx, err)
		}

		created = offer
		riderID = ride.RiderID
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordOffer(serviceName, types.OfferPending.String())
	s.logger.Info(ctx, "offer submitted", "offer_id", created.ID.String(), "price_label", created.PriceLabel.String())

	// Rider sees new offers as they come in.
	if !riderID.IsZero() {
		s.notifier.NotifyRider(ctx, riderID, models.RiderUpdateMessage{
			Type:   "offer_received",
			RideID: rideID,
			State:  types.StateDiscovery,
			Offer: &models.OfferSummary{
				OfferID:    created.ID,
				DriverID:   created.DriverID,
				FareAmount: created.FareAmount,
				PriceLabel: created.PriceLabel,
				Status:     created.Status,
				Wave:       created.Wave,
			},
		})
	}

	return created, nil
}

// Select accepts one offer and atomically rejects every other pending offer,
// moving the ride from discovery to hold. A concurrent Select for the same
// ride loses with types.ErrConflict.
func (s *Service) Select(ctx context.Context, rideID, offerID uuid.UUID, actor models.Actor) (*models.Ride, error) {
	ctx = wrap.WithAction(ctx, "select_offer")
	ctx = wrap.WithRideID(ctx, rideID.String())
	ctx = wrap.WithOfferID(ctx, offerID.String())
	ctx = wrap.WithActorID(ctx, actor.String())

	var (
		updated  *models.Ride
		accepted *models.Offer
		rejected []models.Offer
	)

	err := s.trm.Do(ctx, func(ctx context.Context) error {
		ride, err := s.rides.GetForUpdate(ctx, rideID)
		if err != nil {
			return wrap.Error(ctx, err)
		}

		if !ride.OwnedBy(actor) {
			return wrap.Error(ctx, types.ErrForbidden)
		}

		// The loser of a concurrent select finds the ride already in hold.
		if ride.State != types.StateDiscovery {
			return wrap.Error(ctx, fmt.Errorf("ride %s is in state %s: %w", rideID, ride.State, types.ErrConflict))
		}
		if err := types.ValidateTransition(ride.State, types.StateHold); err != nil {
			return wrap.Error(ctx, err)
		}

		offer, err := s.offers.GetForUpdate(ctx, offerID)
		if err != nil {
			return wrap.Error(ctx, err)
		}
		if offer.RideID != rideID {
			return wrap.Error(ctx, types.ErrOfferNotFound)
		}
		if offer.Status != types.OfferPending {
			return wrap.Error(ctx, fmt.Errorf("offer %s is %s: %w", offerID, offer.Status, types.ErrOfferNotPending))
		}

		now := time.Now()

		if err := s.offers.UpdateStatus(ctx, offerID, types.OfferPending, types.OfferAccepted, now); err != nil {
			return wrap.Error(ctx, err)
		}

		rejected, err = s.offers.RejectOtherPending(ctx, rideID, offerID, now)
		if err != nil {
			return wrap.Error(ctx, err)
		}

		if err := s.rides.SetSelectedOffer(ctx, rideID, &offerID); err != nil {
			return wrap.Error(ctx, err)
		}
		if err := s.rides.UpdateState(ctx, rideID, types.StateDiscovery, types.StateHold, now); err != nil {
			return wrap.Error(ctx, err)
		}

		if err := s.appendEvent(ctx, rideID, types.EventOfferSelected, types.StateDiscovery, types.StateHold, actor, map[string]any{
			"offer_id":       offerID,
			"driver_id":      offer.DriverID,
			"rejected_count": len(rejected),
		}); err != nil {
			return wrap.Error(ctx, err)
		}

		offer.Status = types.OfferAccepted
		offer.RespondedAt = &now

		ride.State = types.StateHold
		ride.SelectedOfferID = &offerID
		ride.HeldAt = &now

		updated = ride
		accepted = offer
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordRideTransition(serviceName, types.StateHold.String())
	metrics.RidesInDiscoveryGauge.WithLabelValues(serviceName).Dec()
	metrics.RecordOffer(serviceName, types.OfferAccepted.String())
	s.logger.Info(ctx, "offer selected", "driver_id", accepted.DriverID.String(), "rejected", len(rejected))

	// The hold is time-boxed; the engine falls the ride back to discovery
	// if the driver never shows.
	s.holds.ScheduleHoldTimeout(rideID)

	s.notifier.NotifyDriver(ctx, accepted.DriverID, models.DriverUpdateMessage{
		Type:    "offer_accepted",
		RideID:  rideID,
		OfferID: &accepted.ID,
		State:   types.StateHold,
	})
	for i := range rejected {
		metrics.RecordOffer(serviceName, types.OfferRejected.String())
		s.notifier.NotifyDriver(ctx, rejected[i].DriverID, models.DriverUpdateMessage{
			Type:    "offer_rejected",
			RideID:  rideID,
			OfferID: &rejected[i].ID,
		})
	}

	return updated, nil
}

// Reject withdraws a pending offer. Drivers may only withdraw their own.
// The ride itself is untouched; hold fallback is the discovery engine's job.
func (s *Service) Reject(ctx context.Context, rideID, offerID uuid.UUID, actor models.Actor) (*models.Offer, error) {
	ctx = wrap.WithAction(ctx, "reject_offer")
	ctx = wrap.WithRideID(ctx, rideID.String())
	ctx = wrap.WithOfferID(ctx, offerID.String())

	var updated *models.Offer

	err := s.trm.Do(ctx, func(ctx context.Context) error {
		ride, err := s.rides.GetForUpdate(ctx, rideID)
		if err != nil {
			return wrap.Error(ctx, err)
		}

		offer, err := s.offers.GetForUpdate(ctx, offerID)
		if err != nil {
			return wrap.Error(ctx, err)
		}
		if offer.RideID != rideID {
			return wrap.Error(ctx, types.ErrOfferNotFound)
		}
		if actor.Role == types.RoleDriver && actor.ID != offer.DriverID {
			return wrap.Error(ctx, types.ErrForbidden)
		}
		if offer.Status != types.OfferPending {
			return wrap.Error(ctx, fmt.Errorf("offer %s is %s: %w", offerID, offer.Status, types.ErrOfferNotPending))
		}

		now := time.Now()
		if err := s.offers.UpdateStatus(ctx, offerID, types.OfferPending, types.OfferRejected, now); err != nil {
			return wrap.Error(ctx, err)
		}

		if err := s.appendEvent(ctx, rideID, types.EventOfferRejected, ride.State, ride.State, actor, map[string]any{
			"offer_id":  offerID,
			"driver_id": offer.DriverID,
		}); err != nil {
			return wrap.Error(ctx, err)
		}

		offer.Status = types.OfferRejected
		offer.RespondedAt = &now
		updated = offer
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordOffer(serviceName, types.OfferRejected.String())
	return updated, nil
}

// ListByRide returns every offer of the ride, newest first.
func (s *Service) ListByRide(ctx context.Context, rideID uuid.UUID) ([]models.Offer, error) {
	ctx = wrap.WithAction(ctx, "list_offers")
	ctx = wrap.WithRideID(ctx, rideID.String())

	offers, err := s.offers.ListByRide(ctx, rideID)
	if err != nil {
		return nil, wrap.Error(ctx, err)
	}
	return offers, nil
}

func (s *Service) appendEvent(ctx context.Context, rideID uuid.UUID, eventType types.RideEvent, prev, next types.RideState, actor models.Actor, payload any) error {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("could not marshal event payload: %w", err)
		}
		raw = b
	}

	return s.events.Append(ctx, &models.AuditEvent{
		ID:            uuid.MustNew(),
		RideID:        rideID,
		Type:          eventType,
		PreviousState: prev,
		NewState:      next,
		Actor:         actor.String(),
		Payload:       raw,
		CreatedAt:     time.Now(),
	})
}
