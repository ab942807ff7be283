package server

import (
	"github.com/askhat-b/taxi-dispatch/internal/domain/types"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
)

// setupRoutes - setups http routes
func (a *API) setupRoutes() {
	// System health
	a.mux.HandleFunc("/health", a.routes.health.HealthCheck)

	a.setupSwaggerRoutes()
	a.setupMetricsRoute()

	// Ride lifecycle. Creation and the rider-side operations stay open to
	// guests; ownership is enforced by the ride service against the guest
	// token resolved by the auth middleware.
	a.mux.HandleFunc("POST /rides", a.routes.ride.Create)
	a.mux.HandleFunc("POST /rides/{ride_id}/discovery", a.routes.ride.StartDiscovery)
	a.mux.HandleFunc("POST /rides/{ride_id}/cancel", a.routes.ride.Cancel)
	a.mux.Handle("POST /rides/{ride_id}/confirm", a.m.RequireRoles(a.routes.ride.Confirm, types.RoleDriver))
	a.mux.HandleFunc("POST /rides/{ride_id}/complete", a.routes.ride.Complete)
	a.mux.HandleFunc("GET /rides/{ride_id}", a.routes.ride.Get)
	a.mux.HandleFunc("GET /rides/{ride_id}/history", a.routes.ride.History)

	// Offers
	a.mux.Handle("POST /rides/{ride_id}/offers", a.m.RequireRoles(a.routes.offer.Submit, types.RoleDriver))
	a.mux.HandleFunc("POST /rides/{ride_id}/offers/{offer_id}/select", a.routes.offer.Select)
	a.mux.Handle("POST /rides/{ride_id}/offers/{offer_id}/reject", a.m.RequireRoles(a.routes.offer.Reject, types.RoleDriver))
	a.mux.HandleFunc("GET /rides/{ride_id}/offers", a.routes.offer.List)

	// Driver availability
	a.mux.Handle("POST /drivers/{driver_id}/online", a.m.RequireRoles(a.routes.driver.GoOnline, types.RoleDriver))
	a.mux.Handle("POST /drivers/{driver_id}/offline", a.m.RequireRoles(a.routes.driver.GoOffline, types.RoleDriver))
	a.mux.Handle("POST /drivers/{driver_id}/location", a.m.RequireRoles(a.routes.driver.UpdateLocation, types.RoleDriver))

	// Rider favorites
	a.mux.Handle("POST /riders/favorites", a.m.RequireRoles(a.routes.driver.AddFavorite, types.RoleRider))
	a.mux.Handle("GET /riders/favorites", a.m.RequireRoles(a.routes.driver.ListFavorites, types.RoleRider))
	a.mux.Handle("DELETE /riders/favorites/{driver_id}", a.m.RequireRoles(a.routes.driver.RemoveFavorite, types.RoleRider))

	// WebSocket
	a.mux.HandleFunc("GET /ws/drivers/{driver_id}", a.routes.ws.HandleDriver)
	a.mux.HandleFunc("GET /ws/riders/{rider_id}", a.routes.ws.HandleRider)
}

// setupSwaggerRoutes configures the Swagger UI endpoint
func (a *API) setupSwaggerRoutes() {
	swaggerURL := httpSwagger.InstanceName("dispatch")
	a.mux.HandleFunc("/swagger/", httpSwagger.Handler(swaggerURL))
}

// setupMetricsRoute configures the Prometheus metrics endpoint
func (a *API) setupMetricsRoute() {
	a.mux.Handle("/metrics", promhttp.Handler())
}
