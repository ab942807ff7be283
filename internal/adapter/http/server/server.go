package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/askhat-b/taxi-dispatch/config"
	"github.com/askhat-b/taxi-dispatch/internal/adapter/http/handler"
	"github.com/askhat-b/taxi-dispatch/internal/adapter/http/middleware"
	"github.com/askhat-b/taxi-dispatch/pkg/logger"
	wrap "github.com/askhat-b/taxi-dispatch/pkg/logger/wrapper"
)

const serverIPAddress = "%s:%s"

type API struct {
	mux    *http.ServeMux
	server *http.Server
	routes *handlers
	m      *middleware.Middleware

	addr string
	cfg  config.Config
	log  logger.Logger
}

type handlers struct {
	ride   *handler.Ride
	offer  *handler.Offer
	driver *handler.Driver
	ws     *handler.WS
	health *handler.Health
}

func New(
	cfg config.Config,
	rideService handler.RideService,
	offerService handler.OfferService,
	driverService handler.DriverService,
	wsHandler *handler.WS,
	log logger.Logger,
) (*API, error) {
	if rideService == nil || offerService == nil || driverService == nil {
		return nil, errors.New("ride, offer and driver services are required")
	}

	routes := &handlers{
		ride:   handler.NewRide(rideService, log),
		offer:  handler.NewOffer(offerService, log),
		driver: handler.NewDriver(driverService, log),
		ws:     wsHandler,
		health: handler.NewHealth(cfg.ServiceName, log),
	}

	mid := middleware.NewMiddleware(cfg.Auth, log)

	api := &API{
		mux:    http.NewServeMux(),
		routes: routes,
		m:      mid,
		addr:   fmt.Sprintf(serverIPAddress, "0.0.0.0", cfg.HTTP.Port),
		cfg:    cfg,
		log:    log,
	}

	api.server = &http.Server{
		Addr:    api.addr,
		Handler: api.withMiddleware(),
	}

	api.setupRoutes()

	return api, nil
}

func (a *API) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	ctx = wrap.WithAction(ctx, "http_server_stop")

	a.log.Debug(ctx, "shutting down HTTP server...", "address", a.addr)
	if err := a.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("error shutting down server: %w", err)
	}
	a.log.Debug(ctx, "shutting down HTTP server completed")

	return nil
}

func (a *API) Run(ctx context.Context, errCh chan<- error) {
	go func() {
		ctx = wrap.WithAction(ctx, "http_server_start")
		a.log.Info(ctx, "started http server", "address", a.addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("failed to start HTTP server: %w", err)
			return
		}
	}()
}

// withMiddleware applies middlewares to the mux
func (a *API) withMiddleware() http.Handler {
	metrics := a.m.Metrics(a.cfg.ServiceName)
	return a.m.Recover(a.m.RequestID(a.m.Logging(metrics(a.m.Auth(a.mux)))))
}
