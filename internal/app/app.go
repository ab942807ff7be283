package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/askhat-b/taxi-dispatch/config"
	"github.com/askhat-b/taxi-dispatch/internal/adapter/http/handler"
	"github.com/askhat-b/taxi-dispatch/internal/adapter/http/server"
	repo "github.com/askhat-b/taxi-dispatch/internal/adapter/postgres"
	brokeradapter "github.com/askhat-b/taxi-dispatch/internal/adapter/rabbit"
	"github.com/askhat-b/taxi-dispatch/internal/adapter/redisgeo"
	"github.com/askhat-b/taxi-dispatch/internal/domain/models"
	"github.com/askhat-b/taxi-dispatch/internal/notify"
	"github.com/askhat-b/taxi-dispatch/internal/service/discovery"
	"github.com/askhat-b/taxi-dispatch/internal/service/driver"
	"github.com/askhat-b/taxi-dispatch/internal/service/offer"
	"github.com/askhat-b/taxi-dispatch/internal/service/pricing"
	"github.com/askhat-b/taxi-dispatch/internal/service/ride"
	"github.com/askhat-b/taxi-dispatch/pkg/logger"
	"github.com/askhat-b/taxi-dispatch/pkg/postgres"
	"github.com/askhat-b/taxi-dispatch/pkg/rabbit"
	"github.com/askhat-b/taxi-dispatch/pkg/trm"
	ws "github.com/askhat-b/taxi-dispatch/pkg/wsHub"
)

// App owns every adapter and service of the dispatch process and knows how
// to start and stop them in the right order.
type App struct {
	postgresDB *postgres.PostgreDB
	geoIndex   *redisgeo.Index
	rabbitMQ   *rabbit.RabbitMQ
	broker     *brokeradapter.DispatchBroker
	driverHub  *ws.ConnectionHub
	riderHub   *ws.ConnectionHub
	engine     *discovery.Engine
	offers     *offer.Service
	httpServer *server.API

	cfg config.Config
	log logger.Logger
}

func NewApplication(ctx context.Context, cfg config.Config, log logger.Logger) (*App, error) {
	postgresDB, err := postgres.New(ctx, cfg.Database)
	if err != nil {
		log.Error(ctx, "failed to setup database", err)
		return nil, err
	}

	geoIndex, err := redisgeo.New(ctx, cfg.Redis)
	if err != nil {
		log.Error(ctx, "failed to setup redis geo index", err)
		return nil, err
	}

	rabbitMQ, err := rabbit.New(ctx, cfg.RabbitMQ.GetDSN(), log)
	if err != nil {
		log.Error(ctx, "failed to setup rabbitmq", err)
		return nil, err
	}

	broker, err := brokeradapter.NewDispatchBroker(ctx, rabbitMQ, log)
	if err != nil {
		log.Error(ctx, "failed to setup dispatch broker", err)
		return nil, err
	}

	txManager := trm.New(postgresDB.Pool)

	rideRepo := repo.NewRideRepo(postgresDB.Pool)
	offerRepo := repo.NewOfferRepo(postgresDB.Pool)
	eventRepo := repo.NewEventRepo(postgresDB.Pool)
	favoriteRepo := repo.NewFavoriteRepo(postgresDB.Pool)

	driverHub := ws.NewConnHub(log)
	riderHub := ws.NewConnHub(log)
	notifier := notify.New(driverHub, riderHub, log)

	estimator := pricing.New(cfg.Pricing, pricing.NewQuoter(cfg.Pricing))
	classifier := pricing.NewClassifier(cfg.Pricing.GoodDealMaxRatio, cfg.Pricing.PricierMinRatio)

	engine := discovery.NewEngine(cfg.Dispatch, rideRepo, offerRepo, eventRepo, favoriteRepo, geoIndex, broker, notifier, txManager, log)
	offerService := offer.NewService(rideRepo, offerRepo, eventRepo, classifier, engine, notifier, txManager, log)
	rideService := ride.NewService(rideRepo, offerRepo, eventRepo, engine, estimator, broker, notifier, txManager, log)
	driverService := driver.NewService(geoIndex, favoriteRepo, log)

	wsHandler := handler.NewWS(driverHub, riderHub, driverService, log)

	httpServer, err := server.New(cfg, rideService, offerService, driverService, wsHandler, log)
	if err != nil {
		log.Error(ctx, "failed to setup http server", err)
		return nil, err
	}

	return &App{
		postgresDB: postgresDB,
		geoIndex:   geoIndex,
		rabbitMQ:   rabbitMQ,
		broker:     broker,
		driverHub:  driverHub,
		riderHub:   riderHub,
		engine:     engine,
		offers:     offerService,
		httpServer: httpServer,
		cfg:        cfg,
		log:        log,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	consumerCtx, stopConsumer := context.WithCancel(ctx)
	defer stopConsumer()

	a.httpServer.Run(ctx, errCh)

	// Offers may also arrive over the bus from partner gateways.
	go func() {
		if err := a.broker.ConsumeDriverOffers(consumerCtx, a.handleDriverOffer); err != nil {
			errCh <- err
		}
	}()

	// Re-arm discovery timers for rides that were in flight when the
	// previous process stopped.
	if err := a.engine.Resume(ctx); err != nil {
		a.log.Error(ctx, "failed to resume discovery timers", err)
		return err
	}

	defer func() {
		a.close(ctx)
		a.log.Info(ctx, "dispatch service closed")
	}()

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	a.log.Info(ctx, "dispatch service started")

	select {
	case errRun := <-errCh:
		return errRun
	case sig := <-shutdownCh:
		a.log.Info(ctx, "shutting down application", "signal", sig.String())
		return nil
	}
}

func (a *App) handleDriverOffer(ctx context.Context, msg models.DriverOfferMessage) error {
	_, err := a.offers.Submit(ctx, msg.RideID, msg.DriverID, models.FareQuote{
		Amount:  msg.FareAmount,
		Version: msg.FareVersion,
	})
	return err
}

func (a *App) close(ctx context.Context) {
	a.engine.Stop()

	if a.httpServer != nil {
		if err := a.httpServer.Stop(ctx); err != nil {
			a.log.Warn(ctx, "failed to gracefully close http server", "error", err.Error())
		}
	}

	if a.driverHub != nil {
		a.driverHub.Close()
	}
	if a.riderHub != nil {
		a.riderHub.Close()
	}

	if a.rabbitMQ != nil {
		if err := a.rabbitMQ.Close(ctx); err != nil {
			a.log.Warn(ctx, "failed to gracefully close rabbitmq", "error", err.Error())
		}
	}

	if a.geoIndex != nil {
		if err := a.geoIndex.Close(); err != nil {
			a.log.Warn(ctx, "failed to close redis client", "error", err.Error())
		}
	}

	if a.postgresDB != nil && a.postgresDB.Pool != nil {
		a.postgresDB.Pool.Close()
	}
}
