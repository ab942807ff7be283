package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/askhat-b/taxi-dispatch/config"
	"github.com/askhat-b/taxi-dispatch/internal/domain/models"
	"github.com/askhat-b/taxi-dispatch/internal/domain/types"
	"github.com/askhat-b/taxi-dispatch/pkg/logger"
	wrap "github.com/askhat-b/taxi-dispatch/pkg/logger/wrapper"
	"github.com/askhat-b/taxi-dispatch/pkg/metrics"
	"github.com/askhat-b/taxi-dispatch/pkg/trm"
	"github.com/askhat-b/taxi-dispatch/pkg/uuid"
)

const (
	serviceName = "dispatch"
	lastWave    = 3
)

// Engine runs the three escalating discovery waves for a ride and owns every
// timer-driven transition: wave escalation, discovery expiry, and the hold
// fallback. All its timeout handlers re-read ride state inside a transaction
// and no-op when the ride has moved on, so stale timers are safe.
type Engine struct {
	cfg       config.DispatchConfig
	rides     RideRepo
	offers    OfferRepo
	events    EventRepo
	favorites FavoriteRepo
	geo       GeoIndex
	broker    Broker
	notifier  Notifier
	trm       trm.TxManager
	logger    logger.Logger
	sched     *scheduler
}

func NewEngine(
	cfg config.DispatchConfig,
	rides RideRepo,
	offers OfferRepo,
	events EventRepo,
	favorites FavoriteRepo,
	geo GeoIndex,
	broker Broker,
	notifier Notifier,
	trm trm.TxManager,
	logger logger.Logger,
) *Engine {
	return &Engine{
		cfg:       cfg,
		rides:     rides,
		offers:    offers,
		events:    events,
		favorites: favorites,
		geo:       geo,
		broker:    broker,
		notifier:  notifier,
		trm:       trm,
		logger:    logger,
		sched:     newScheduler(),
	}
}

// Start moves a created ride into discovery at wave 1 and arms the wave
// timer.
func (e *Engine) Start(ctx context.Context, rideID uuid.UUID, actor models.Actor) (*models.Ride, error) {
	ctx = wrap.WithAction(ctx, "start_discovery")
	ctx = wrap.WithRideID(ctx, rideID.String())

	var updated *models.Ride

	err := e.trm.Do(ctx, func(ctx context.Context) error {
		ride, err := e.rides.GetForUpdate(ctx, rideID)
		if err != nil {
			return wrap.Error(ctx, err)
		}

		if err := types.ValidateTransition(ride.State, types.StateDiscovery); err != nil {
			return wrap.Error(ctx, err)
		}

		now := time.Now()
		deadline := now.Add(e.cfg.WaveTimeout(1))

		if err := e.rides.UpdateState(ctx, rideID, ride.State, types.StateDiscovery, now); err != nil {
			return wrap.Error(ctx, err)
		}
		if err := e.rides.SetWave(ctx, rideID, 1, deadline); err != nil {
			return wrap.Error(ctx, err)
		}

		if err := e.appendEvent(ctx, rideID, types.EventDiscoveryStarted, ride.State, types.StateDiscovery, actor, map[string]any{
			"wave":     1,
			"deadline": deadline,
		}); err != nil {
			return wrap.Error(ctx, err)
		}

		ride.State = types.StateDiscovery
		ride.Wave = 1
		ride.WaveDeadline = &deadline
		ride.DiscoveryStartedAt = &now
		updated = ride
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordRideTransition(serviceName, types.StateDiscovery.String())
	metrics.RidesInDiscoveryGauge.WithLabelValues(serviceName).Inc()

	e.broadcastWave(ctx, updated, 1, *updated.WaveDeadline)
	e.scheduleWaveTimeout(rideID, 1, e.cfg.WaveTimeout(1))

	return updated, nil
}

// Resume re-arms timers for rides that were mid-discovery or on hold when
// the process last stopped. Deadlines already in the past fire immediately.
func (e *Engine) Resume(ctx context.Context) error {
	ctx = wrap.WithAction(ctx, "resume_discovery")

	rides, err := e.rides.ListUnsettled(ctx)
	if err != nil {
		return wrap.Error(ctx, fmt.Errorf("could not list unsettled rides: %w", err))
	}

	for i := range rides {
		ride := rides[i]

		var remaining time.Duration
		if ride.WaveDeadline != nil {
			remaining = time.Until(*ride.WaveDeadline)
		}
		if remaining < 0 {
			remaining = 0
		}

		switch ride.State {
		case types.StateDiscovery:
			e.scheduleWaveTimeout(ride.ID, ride.Wave, remaining)
		case types.StateHold:
			// The original hold deadline is not persisted; grant a full TTL.
			e.ScheduleHoldTimeout(ride.ID)
		}
	}

	e.logger.Info(ctx, "discovery timers resumed", "rides", len(rides))
	return nil
}

// Stop cancels all pending timers. Unsettled rides are picked up by Resume
// on the next start.
func (e *Engine) Stop() {
	e.sched.stop()
}

// ScheduleHoldTimeout arms the hold fallback timer for a ride that just
// entered hold.
func (e *Engine) ScheduleHoldTimeout(rideID uuid.UUID) {
	e.sched.schedule(timerKey{kind: kindHold, rideID: rideID}, e.cfg.HoldTTL, func() {
		e.HandleHoldTimeout(rideID)
	})
}

func (e *Engine) scheduleWaveTimeout(rideID uuid.UUID, wave int, d time.Duration) {
	e.sched.schedule(timerKey{kind: kindWave, rideID: rideID, wave: wave}, d, func() {
		e.HandleWaveTimeout(rideID, wave)
	})
}

// HandleWaveTimeout advances a ride to the next wave, or expires it after
// the last one. It is idempotent: if the ride already left discovery or
// moved past this wave, nothing happens.
func (e *Engine) HandleWaveTimeout(rideID uuid.UUID, wave int) {
	ctx := wrap.WithAction(context.Background(), types.ActionWaveTimeoutFired)
	ctx = wrap.WithRideID(ctx, rideID.String())

	var (
		updated *models.Ride
		expired []models.Offer
	)

	err := e.trm.Do(ctx, func(ctx context.Context) error {
		ride, err := e.rides.GetForUpdate(ctx, rideID)
		if err != nil {
			return wrap.Error(ctx, err)
		}

		// Stale-timer checks: manual cancellation, selection, or a hold
		// fallback may each have invalidated this timer.
		if ride.State != types.StateDiscovery || ride.Wave != wave {
			return nil
		}
		if ride.WaveDeadline != nil && time.Now().Before(*ride.WaveDeadline) {
			return nil
		}

		now := time.Now()

		if wave < lastWave {
			next := wave + 1
			deadline := now.Add(e.cfg.WaveTimeout(next))

			if err := e.rides.SetWave(ctx, rideID, next, deadline); err != nil {
				return wrap.Error(ctx, err)
			}
			if err := e.appendEvent(ctx, rideID, types.EventWaveEscalated, types.StateDiscovery, types.StateDiscovery, models.SystemActor(), map[string]any{
				"from_wave": wave,
				"to_wave":   next,
				"deadline":  deadline,
			}); err != nil {
				return wrap.Error(ctx, err)
			}

			ride.Wave = next
			ride.WaveDeadline = &deadline
			updated = ride
			return nil
		}

		// Wave 3 ran out: the ride expires. An empty discovery is the
		// normal outcome here, not a failure.
		if err := types.ValidateTransition(ride.State, types.StateExpired); err != nil {
			return wrap.Error(ctx, err)
		}
		if err := e.rides.UpdateState(ctx, rideID, types.StateDiscovery, types.StateExpired, now); err != nil {
			return wrap.Error(ctx, err)
		}

		expired, err = e.offers.ExpirePending(ctx, rideID, now)
		if err != nil {
			return wrap.Error(ctx, err)
		}

		if err := e.appendEvent(ctx, rideID, types.EventRideExpired, types.StateDiscovery, types.StateExpired, models.SystemActor(), map[string]any{
			"expired_offers": len(expired),
		}); err != nil {
			return wrap.Error(ctx, err)
		}

		ride.State = types.StateExpired
		ride.ExpiredAt = &now
		updated = ride
		return nil
	})
	if err != nil {
		e.logger.Error(ctx, "wave timeout handling failed", err, "wave", wave)
		return
	}
	if updated == nil {
		e.logger.Debug(ctx, "stale wave timer ignored", "wave", wave)
		return
	}

	if updated.State == types.StateDiscovery {
		metrics.RecordWaveEscalation(serviceName, updated.Wave)
		e.logger.Info(ctx, "wave escalated", "wave", updated.Wave)

		e.broadcastWave(ctx, updated, updated.Wave, *updated.WaveDeadline)
		e.scheduleWaveTimeout(rideID, updated.Wave, e.cfg.WaveTimeout(updated.Wave))
		return
	}

	// Expired.
	metrics.RecordRideTransition(serviceName, types.StateExpired.String())
	metrics.RidesInDiscoveryGauge.WithLabelValues(serviceName).Dec()
	for i := range expired {
		metrics.RecordOffer(serviceName, types.OfferExpired.String())
		e.notifier.NotifyDriver(ctx, expired[i].DriverID, models.DriverUpdateMessage{
			Type:    "offer_expired",
			RideID:  rideID,
			OfferID: &expired[i].ID,
		})
	}
	e.notifyRiderState(ctx, updated, "no driver found")
	e.publishStatus(ctx, updated, types.StateDiscovery)
}

// HandleHoldTimeout rejects the selected offer of a ride whose rider-side
// hold ran out and sends the ride back into discovery at its current wave,
// with the rejected driver excluded from re-solicitation.
func (e *Engine) HandleHoldTimeout(rideID uuid.UUID) {
	ctx := wrap.WithAction(context.Background(), types.ActionHoldTimeoutFired)
	ctx = wrap.WithRideID(ctx, rideID.String())

	var (
		updated        *models.Ride
		rejectedOffer  *models.Offer
	)

	err := e.trm.Do(ctx, func(ctx context.Context) error {
		ride, err := e.rides.GetForUpdate(ctx, rideID)
		if err != nil {
			return wrap.Error(ctx, err)
		}

		// Confirmation or cancellation beat the timer.
		if ride.State != types.StateHold {
			return nil
		}
		if err := types.ValidateTransition(ride.State, types.StateDiscovery); err != nil {
			return wrap.Error(ctx, err)
		}

		now := time.Now()

		if ride.SelectedOfferID != nil {
			offer, err := e.offers.GetForUpdate(ctx, *ride.SelectedOfferID)
			if err != nil {
				return wrap.Error(ctx, err)
			}
			if err := e.offers.UpdateStatus(ctx, offer.ID, types.OfferAccepted, types.OfferRejected, now); err != nil {
				return wrap.Error(ctx, err)
			}
			offer.Status = types.OfferRejected
			offer.RespondedAt = &now
			rejectedOffer = offer
		}

		deadline := now.Add(e.cfg.WaveTimeout(ride.Wave))

		if err := e.rides.SetSelectedOffer(ctx, rideID, nil); err != nil {
			return wrap.Error(ctx, err)
		}
		if err := e.rides.SetWave(ctx, rideID, ride.Wave, deadline); err != nil {
			return wrap.Error(ctx, err)
		}
		if err := e.rides.UpdateState(ctx, rideID, types.StateHold, types.StateDiscovery, now); err != nil {
			return wrap.Error(ctx, err)
		}

		payload := map[string]any{"wave": ride.Wave}
		if rejectedOffer != nil {
			payload["offer_id"] = rejectedOffer.ID
			payload["driver_id"] = rejectedOffer.DriverID
		}
		if err := e.appendEvent(ctx, rideID, types.EventHoldExpired, types.StateHold, types.StateDiscovery, models.SystemActor(), payload); err != nil {
			return wrap.Error(ctx, err)
		}

		ride.State = types.StateDiscovery
		ride.SelectedOfferID = nil
		ride.WaveDeadline = &deadline
		updated = ride
		return nil
	})
	if err != nil {
		e.logger.Error(ctx, "hold timeout handling failed", err)
		return
	}
	if updated == nil {
		e.logger.Debug(ctx, "stale hold timer ignored")
		return
	}

	metrics.RecordRideTransition(serviceName, types.StateDiscovery.String())
	metrics.RidesInDiscoveryGauge.WithLabelValues(serviceName).Inc()
	e.logger.Info(ctx, "hold expired, ride re-entered discovery", "wave", updated.Wave)

	if rejectedOffer != nil {
		metrics.RecordOffer(serviceName, types.OfferRejected.String())
		e.notifier.NotifyDriver(ctx, rejectedOffer.DriverID, models.DriverUpdateMessage{
			Type:    "offer_rejected",
			RideID:  rideID,
			OfferID: &rejectedOffer.ID,
			Message: "hold expired",
		})
	}
	e.notifyRiderState(ctx, updated, "driver did not confirm, searching again")

	e.broadcastWave(ctx, updated, updated.Wave, *updated.WaveDeadline)
	e.scheduleWaveTimeout(rideID, updated.Wave, e.cfg.WaveTimeout(updated.Wave))
}

// broadcastWave builds the candidate pool for the wave and fans the request
// out. Candidate lookup failures and an empty pool are absorbed: the wave
// simply runs to its timeout.
func (e *Engine) broadcastWave(ctx context.Context, ride *models.Ride, wave int, deadline time.Time) {
	candidates := e.candidates(ctx, ride, wave)
	if len(candidates) == 0 {
		e.logger.Info(ctx, "wave has no candidates", "wave", wave)
		return
	}

	msg := models.WaveBroadcastMessage{
		RideID:     ride.ID,
		RideNumber: ride.RideNumber,
		Wave:       wave,
		OriginLocation: models.LocationMessage{
			Lat:     ride.Origin.Latitude,
			Lng:     ride.Origin.Longitude,
			Address: ride.Origin.Address,
		},
		DestinationLocation: models.LocationMessage{
			Lat:     ride.Destination.Latitude,
			Lng:     ride.Destination.Longitude,
			Address: ride.Destination.Address,
		},
		ReferenceFare:      ride.ReferenceFare,
		CandidateDriverIDs: candidates,
		ExpiresAt:          deadline,
		CorrelationID:      wrap.GetRequestID(ctx),
	}

	if err := e.broker.PublishWaveBroadcast(ctx, msg); err != nil {
		// The wave still reaches connected drivers over websocket; the
		// timer escalates regardless.
		e.logger.Error(ctx, "failed to publish wave broadcast", err, "wave", wave)
	}

	push := models.OfferPushMessage{
		Type:                "ride_request",
		RideID:              ride.ID,
		RideNumber:          ride.RideNumber,
		Wave:                wave,
		OriginLocation:      msg.OriginLocation,
		DestinationLocation: msg.DestinationLocation,
		ReferenceFare:       ride.ReferenceFare,
		ExpiresAt:           deadline,
	}
	for _, driverID := range candidates {
		e.notifier.NotifyDriver(ctx, driverID, push)
	}

	e.logger.Info(ctx, "wave broadcast sent", "wave", wave, "candidates", len(candidates))
}

// candidates assembles the wave's driver pool: favorites plus a small radius
// for wave 1, a wider radius for wave 2, the whole region for wave 3.
// Drivers who already responded to this ride are excluded.
func (e *Engine) candidates(ctx context.Context, ride *models.Ride, wave int) []uuid.UUID {
	limit := e.cfg.MaxCandidatesPerWave

	var pool []uuid.UUID

	if wave == 1 && !ride.RiderID.IsZero() {
		favorites, err := e.favorites.ListDriverIDs(ctx, ride.RiderID)
		if err != nil {
			e.logger.Warn(ctx, "favorite lookup failed", "error", err.Error())
		} else {
			pool = append(pool, favorites...)
		}
	}

	var (
		nearby []uuid.UUID
		err    error
	)
	if radius := e.cfg.WaveRadiusKm(wave); radius > 0 {
		nearby, err = e.geo.Nearby(ctx, ride.Origin.Latitude, ride.Origin.Longitude, radius, limit)
	} else {
		nearby, err = e.geo.Region(ctx, limit)
	}
	if err != nil {
		e.logger.Warn(ctx, "geo lookup failed", "error", err.Error(), "wave", wave)
	}
	pool = append(pool, nearby...)

	excluded := make(map[uuid.UUID]struct{})
	responded, err := e.offers.RespondedDriverIDs(ctx, ride.ID)
	if err != nil {
		e.logger.Warn(ctx, "responded driver lookup failed", "error", err.Error())
	}
	for _, id := range responded {
		excluded[id] = struct{}{}
	}

	seen := make(map[uuid.UUID]struct{}, len(pool))
	out := make([]uuid.UUID, 0, len(pool))
	for _, id := range pool {
		if _, ok := excluded[id]; ok {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
		if len(out) >= limit {
			break
		}
	}
	return out
}

func (e *Engine) notifyRiderState(ctx context.Context, ride *models.Ride, message string) {
	if ride.RiderID.IsZero() {
		return
	}
	e.notifier.NotifyRider(ctx, ride.RiderID, models.RiderUpdateMessage{
		Type:    "ride_update",
		RideID:  ride.ID,
		State:   ride.State,
		Message: message,
	})
}

func (e *Engine) publishStatus(ctx context.Context, ride *models.Ride, previous types.RideState) {
	msg := models.RideStatusMessage{
		RideID:        ride.ID,
		PreviousState: previous,
		State:         ride.State,
		Timestamp:     time.Now(),
		CorrelationID: wrap.GetRequestID(ctx),
	}
	if err := e.broker.PublishRideStatus(ctx, msg); err != nil {
		e.logger.Warn(ctx, "failed to publish ride status", "error", err.Error())
	}
}

func (e *Engine) appendEvent(ctx context.Context, rideID uuid.UUID, eventType types.RideEvent, prev, next types.RideState, actor models.Actor, payload any) error {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("could not marshal event payload: %w", err)
		}
		raw = b
	}

	return e.events.Append(ctx, &models.AuditEvent{
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
