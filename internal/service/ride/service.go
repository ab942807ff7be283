package ride

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/askhat-b/taxi-dispatch/internal/domain/models"
	"github.com/askhat-b/taxi-dispatch/internal/domain/types"
	"github.com/askhat-b/taxi-dispatch/pkg/hasher"
	"github.com/askhat-b/taxi-dispatch/pkg/logger"
	wrap "github.com/askhat-b/taxi-dispatch/pkg/logger/wrapper"
	"github.com/askhat-b/taxi-dispatch/pkg/metrics"
	"github.com/askhat-b/taxi-dispatch/pkg/trm"
	"github.com/askhat-b/taxi-dispatch/pkg/uuid"
)

const serviceName = "dispatch"

// Service is the ride orchestrator: the top-level use cases that sequence
// creation, discovery, hold, confirmation, and the terminal transitions.
type Service struct {
	rides     RideRepo
	offers    OfferRepo
	events    EventRepo
	discovery DiscoveryStarter
	estimator Estimator
	broker    Broker
	notifier  Notifier
	trm       trm.TxManager
	logger    logger.Logger
}

func NewService(
	rides RideRepo,
	offers OfferRepo,
	events EventRepo,
	discovery DiscoveryStarter,
	estimator Estimator,
	broker Broker,
	notifier Notifier,
	trm trm.TxManager,
	logger logger.Logger,
) *Service {
	return &Service{
		rides:     rides,
		offers:    offers,
		events:    events,
		discovery: discovery,
		estimator: estimator,
		broker:    broker,
		notifier:  notifier,
		trm:       trm,
		logger:    logger,
	}
}

type CreateInput struct {
	Origin      models.Location
	Destination models.Location
	RequestType string
	Actor       models.Actor
}

// Create quotes the route and registers the ride in the created state.
// Anonymous callers get a guest ride whose ownership token is returned on
// the ride itself; the client must keep it to cancel later.
func (s *Service) Create(ctx context.Context, input CreateInput) (*models.Ride, error) {
	ctx = wrap.WithAction(ctx, "create_ride")
	ctx = wrap.WithActorID(ctx, input.Actor.String())

	// Pricing is an external collaborator; keep it out of the transaction.
	est, err := s.estimator.Estimate(ctx, input.Origin, input.Destination)
	if err != nil {
		return nil, wrap.Error(ctx, err)
	}

	ride := &models.Ride{
		ID:                   uuid.MustNew(),
		State:                types.StateCreated,
		RequestType:          input.RequestType,
		Origin:               input.Origin,
		Destination:          input.Destination,
		ReferenceFare:        est.Quote.Amount,
		FareVersion:          est.Quote.Version,
		EstimatedDistanceKm:  est.DistanceKm,
		EstimatedDurationMin: est.DurationMin,
		CreatedAt:            time.Now(),
	}

	actor := input.Actor
	switch {
	case actor.Role == types.RoleRider && !actor.ID.IsZero():
		ride.RiderID = actor.ID
		ride.ActorType = types.RoleRider
	default:
		token, err := hasher.NewToken()
		if err != nil {
			return nil, wrap.Error(ctx, fmt.Errorf("could not issue guest token: %w", err))
		}
		hash := hasher.Hash(token)
		ride.GuestTokenHash = &hash
		ride.GuestToken = token
		ride.ActorType = types.RoleGuest
		actor = models.Actor{Role: types.RoleGuest, GuestToken: token}
	}

	err = s.trm.Do(ctx, func(ctx context.Context) error {
		rideNumber, err := s.generateRideNumber(ctx)
		if err != nil {
			return wrap.Error(ctx, fmt.Errorf("could not generate ride number: %w", err))
		}
		ride.RideNumber = rideNumber

		if err := s.rides.Create(ctx, ride); err != nil {
			return wrap.Error(ctx, fmt.Errorf("could not create ride: %w", err))
		}

		return s.appendEvent(ctx, ride.ID, types.EventRideCreated, types.StateCreated, types.StateCreated, actor, map[string]any{
			"ride_number":    ride.RideNumber,
			"request_type":   ride.RequestType,
			"reference_fare": ride.ReferenceFare,
			"fare_version":   ride.FareVersion,
		})
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordRideTransition(serviceName, types.StateCreated.String())
	s.logger.Info(ctx, "ride created", "ride_id", ride.ID.String(), "ride_number", ride.RideNumber)

	return ride, nil
}

// StartDiscovery checks ownership and hands the ride to the discovery
// engine.
func (s *Service) StartDiscovery(ctx context.Context, rideID uuid.UUID, actor models.Actor) (*models.Ride, error) {
	ctx = wrap.WithAction(ctx, "start_discovery")
	ctx = wrap.WithRideID(ctx, rideID.String())

	ride, err := s.rides.Get(ctx, rideID)
	if err != nil {
		return nil, wrap.Error(ctx, err)
	}
	if !ride.OwnedBy(actor) {
		return nil, wrap.Error(ctx, types.ErrForbidden)
	}

	updated, err := s.discovery.Start(ctx, rideID, actor)
	if err != nil {
		return nil, err
	}

	s.publishStatus(ctx, updated, types.StateCreated)
	s.notifyRider(ctx, updated, "searching for a driver")
	return updated, nil
}

// Cancel moves a non-terminal ride to canceled. Only the ride's rider, a
// holder of its guest token, or the system may cancel; a terminal ride
// fails with InvalidTransition, never silently.
func (s *Service) Cancel(ctx context.Context, rideID uuid.UUID, actor models.Actor, reason string) (*models.Ride, error) {
	ctx = wrap.WithAction(ctx, "cancel_ride")
	ctx = wrap.WithRideID(ctx, rideID.String())
	ctx = wrap.WithActorID(ctx, actor.String())

	var (
		updated        *models.Ride
		previous       types.RideState
		selectedDriver *models.Offer
		rejected       []models.Offer
	)

	err := s.trm.Do(ctx, func(ctx context.Context) error {
		ride, err := s.rides.GetForUpdate(ctx, rideID)
		if err != nil {
			return wrap.Error(ctx, err)
		}

		if !ride.OwnedBy(actor) {
			return wrap.Error(ctx, types.ErrForbidden)
		}
		if err := types.ValidateTransition(ride.State, types.StateCanceled); err != nil {
			return wrap.Error(ctx, err)
		}

		now := time.Now()
		previous = ride.State

		if err := s.rides.UpdateState(ctx, rideID, previous, types.StateCanceled, now); err != nil {
			return wrap.Error(ctx, err)
		}
		if err := s.rides.SetCancellation(ctx, rideID, reason); err != nil {
			return wrap.Error(ctx, err)
		}

		rejected, err = s.offers.RejectPending(ctx, rideID, now)
		if err != nil {
			return wrap.Error(ctx, err)
		}

		if ride.SelectedOfferID != nil {
			selectedDriver, err = s.offers.Get(ctx, *ride.SelectedOfferID)
			if err != nil {
				return wrap.Error(ctx, err)
			}
		}

		if err := s.appendEvent(ctx, rideID, types.EventRideCancelled, previous, types.StateCanceled, actor, map[string]any{
			"reason":          reason,
			"rejected_offers": len(rejected),
		}); err != nil {
			return wrap.Error(ctx, err)
		}

		ride.State = types.StateCanceled
		ride.CancellationReason = &reason
		ride.CanceledAt = &now
		updated = ride
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordRideTransition(serviceName, types.StateCanceled.String())
	if previous == types.StateDiscovery {
		metrics.RidesInDiscoveryGauge.WithLabelValues(serviceName).Dec()
	}
	s.logger.Info(ctx, "ride canceled", "previous_state", previous.String(), "reason", reason)

	// Best-effort notifications; a delivery failure never unwinds the
	// cancellation.
	if selectedDriver != nil {
		s.notifier.NotifyDriver(ctx, selectedDriver.DriverID, models.DriverUpdateMessage{
			Type:    "ride_cancelled",
			RideID:  rideID,
			OfferID: &selectedDriver.ID,
			State:   types.StateCanceled,
			Message: reason,
		})
	}
	for i := range rejected {
		metrics.RecordOffer(serviceName, types.OfferRejected.String())
		s.notifier.NotifyDriver(ctx, rejected[i].DriverID, models.DriverUpdateMessage{
			Type:    "offer_rejected",
			RideID:  rideID,
			OfferID: &rejected[i].ID,
		})
	}
	s.publishStatus(ctx, updated, previous)

	return updated, nil
}

// Confirm is the in-person handoff: the selected driver confirms the hold
// and the ride goes straight to active.
func (s *Service) Confirm(ctx context.Context, rideID uuid.UUID, actor models.Actor) (*models.Ride, error) {
	ctx = wrap.WithAction(ctx, "confirm_ride")
	ctx = wrap.WithRideID(ctx, rideID.String())

	var updated *models.Ride

	err := s.trm.Do(ctx, func(ctx context.Context) error {
		ride, err := s.rides.GetForUpdate(ctx, rideID)
		if err != nil {
			return wrap.Error(ctx, err)
		}

		if err := types.ValidateTransition(ride.State, types.StateConfirmed); err != nil {
			return wrap.Error(ctx, err)
		}
		if ride.SelectedOfferID == nil {
			return wrap.Error(ctx, fmt.Errorf("ride %s has no selected offer: %w", rideID, types.ErrConflict))
		}

		offer, err := s.offers.Get(ctx, *ride.SelectedOfferID)
		if err != nil {
			return wrap.Error(ctx, err)
		}
		// Only the driver whose offer won may confirm.
		if actor.Role != types.RoleSystem && (actor.Role != types.RoleDriver || actor.ID != offer.DriverID) {
			return wrap.Error(ctx, types.ErrForbidden)
		}

		now := time.Now()

		if err := s.rides.UpdateState(ctx, rideID, types.StateHold, types.StateConfirmed, now); err != nil {
			return wrap.Error(ctx, err)
		}
		if err := s.appendEvent(ctx, rideID, types.EventRideConfirmed, types.StateHold, types.StateConfirmed, actor, map[string]any{
			"offer_id":  offer.ID,
			"driver_id": offer.DriverID,
		}); err != nil {
			return wrap.Error(ctx, err)
		}

		if err := s.rides.UpdateState(ctx, rideID, types.StateConfirmed, types.StateActive, now); err != nil {
			return wrap.Error(ctx, err)
		}
		if err := s.appendEvent(ctx, rideID, types.EventRideActivated, types.StateConfirmed, types.StateActive, actor, nil); err != nil {
			return wrap.Error(ctx, err)
		}

		ride.State = types.StateActive
		ride.ConfirmedAt = &now
		ride.ActivatedAt = &now
		updated = ride
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordRideTransition(serviceName, types.StateConfirmed.String())
	metrics.RecordRideTransition(serviceName, types.StateActive.String())
	s.logger.Info(ctx, "ride confirmed and activated")

	s.notifyRider(ctx, updated, "driver confirmed, ride started")
	s.publishStatus(ctx, updated, types.StateHold)

	return updated, nil
}

// Complete moves an active ride to completed.
func (s *Service) Complete(ctx context.Context, rideID uuid.UUID, actor models.Actor) (*models.Ride, error) {
	ctx = wrap.WithAction(ctx, "complete_ride")
	ctx = wrap.WithRideID(ctx, rideID.String())

	var updated *models.Ride

	err := s.trm.Do(ctx, func(ctx context.Context) error {
		ride, err := s.rides.GetForUpdate(ctx, rideID)
		if err != nil {
			return wrap.Error(ctx, err)
		}

		if err := types.ValidateTransition(ride.State, types.StateCompleted); err != nil {
			return wrap.Error(ctx, err)
		}

		allowed := actor.Role == types.RoleSystem || ride.OwnedBy(actor)
		if !allowed && ride.SelectedOfferID != nil {
			offer, err := s.offers.Get(ctx, *ride.SelectedOfferID)
			if err != nil {
				return wrap.Error(ctx, err)
			}
			allowed = actor.Role == types.RoleDriver && actor.ID == offer.DriverID
		}
		if !allowed {
			return wrap.Error(ctx, types.ErrForbidden)
		}

		now := time.Now()
		if err := s.rides.UpdateState(ctx, rideID, types.StateActive, types.StateCompleted, now); err != nil {
			return wrap.Error(ctx, err)
		}
		if err := s.appendEvent(ctx, rideID, types.EventRideCompleted, types.StateActive, types.StateCompleted, actor, map[string]any{
			"completed_by": actor.String(),
		}); err != nil {
			return wrap.Error(ctx, err)
		}

		ride.State = types.StateCompleted
		ride.CompletedAt = &now
		updated = ride
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordRideTransition(serviceName, types.StateCompleted.String())
	s.logger.Info(ctx, "ride completed")

	s.notifyRider(ctx, updated, "ride completed")
	s.publishStatus(ctx, updated, types.StateActive)

	return updated, nil
}

// Get returns a ride with its offers. Visible to the ride's owner and to
// the selected driver.
func (s *Service) Get(ctx context.Context, rideID uuid.UUID, actor models.Actor) (*models.Ride, []models.Offer, error) {
	ctx = wrap.WithAction(ctx, "get_ride")
	ctx = wrap.WithRideID(ctx, rideID.String())

	ride, err := s.rides.Get(ctx, rideID)
	if err != nil {
		return nil, nil, wrap.Error(ctx, err)
	}

	offers, err := s.offers.ListByRide(ctx, rideID)
	if err != nil {
		return nil, nil, wrap.Error(ctx, err)
	}

	if !ride.OwnedBy(actor) && !driverInvolved(actor, offers) {
		return nil, nil, wrap.Error(ctx, types.ErrForbidden)
	}

	return ride, offers, nil
}

// History returns the append-only audit log of a ride.
func (s *Service) History(ctx context.Context, rideID uuid.UUID, actor models.Actor) ([]models.AuditEvent, error) {
	ctx = wrap.WithAction(ctx, "ride_history")
	ctx = wrap.WithRideID(ctx, rideID.String())

	ride, err := s.rides.Get(ctx, rideID)
	if err != nil {
		return nil, wrap.Error(ctx, err)
	}
	if !ride.OwnedBy(actor) {
		return nil, wrap.Error(ctx, types.ErrForbidden)
	}

	events, err := s.events.ListByRide(ctx, rideID)
	if err != nil {
		return nil, wrap.Error(ctx, err)
	}
	return events, nil
}

func driverInvolved(actor models.Actor, offers []models.Offer) bool {
	if actor.Role != types.RoleDriver {
		return false
	}
	for i := range offers {
		if offers[i].DriverID == actor.ID {
			return true
		}
	}
	return false
}

func (s *Service) notifyRider(ctx context.Context, ride *models.Ride, message string) {
	if ride.RiderID.IsZero() {
		return
	}
	s.notifier.NotifyRider(ctx, ride.RiderID, models.RiderUpdateMessage{
		Type:    "ride_update",
		RideID:  ride.ID,
		State:   ride.State,
		Message: message,
	})
}

func (s *Service) publishStatus(ctx context.Context, ride *models.Ride, previous types.RideState) {
	var driverID *uuid.UUID
	if ride.SelectedOfferID != nil {
		if offer, err := s.offers.Get(ctx, *ride.SelectedOfferID); err == nil {
			driverID = &offer.DriverID
		}
	}

	msg := models.RideStatusMessage{
		RideID:        ride.ID,
		PreviousState: previous,
		State:         ride.State,
		Timestamp:     time.Now(),
		DriverID:      driverID,
		CorrelationID: wrap.GetRequestID(ctx),
	}
	if err := s.broker.PublishRideStatus(ctx, msg); err != nil {
		s.logger.Warn(ctx, "failed to publish ride status", "error", err.Error())
	}
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
