package api

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/eventdeck/server/internal/api/envelope"
	"github.com/eventdeck/server/internal/api/handlers"
	"github.com/eventdeck/server/internal/api/middleware"
	"github.com/eventdeck/server/internal/auth"
	"github.com/eventdeck/server/internal/config"
	"github.com/eventdeck/server/internal/domain/events"
	"github.com/eventdeck/server/internal/metrics"
)

// APIPrefix is where the REST surface is mounted.
const APIPrefix = "/V1/api"

// Deps are the collaborators the router wires into handlers.
type Deps struct {
	Config  config.Config
	Logger  zerolog.Logger
	Service *events.Service
	// JWT is optional; without it every caller is anonymous.
	JWT   *auth.JWTManager
	Build BuildInfo
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	eventsHandler := handlers.NewEventsHandler(deps.Service)
	modulesHandler := handlers.NewModulesHandler(deps.Service.Catalog())
	health := handlers.NewHealthChecker(deps.Service, deps.Service.Catalog(), cfg.Storage.Driver, deps.Build.Version, deps.Build.GitCommit)

	mux := http.NewServeMux()
	mux.Handle("GET /{$}", handlers.Root(cfg.Server.Port))
	mux.Handle("GET /health", health.Health())
	mux.Handle("GET /healthz", handlers.Healthz())
	mux.Handle("GET /readyz", health.Readyz())
	mux.Handle("GET /version", VersionHandler(deps.Build))
	mux.Handle("GET /metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	mux.Handle("GET "+APIPrefix+"/openapi.json", OpenAPIHandler())

	route := func(pattern string, h http.HandlerFunc) {
		method, path, _ := strings.Cut(pattern, " ")
		mux.Handle(method+" "+APIPrefix+path, h)
	}
	route("POST /events", eventsHandler.Create)
	route("GET /events", eventsHandler.List)
	route("GET /events/{id}", eventsHandler.Get)
	route("PUT /events/{id}", eventsHandler.Update)
	route("DELETE /events/{id}", eventsHandler.Delete)
	route("POST /events/{id}/publish", eventsHandler.Publish)
	route("GET /modules", modulesHandler.List)
	route("POST /events/{eventId}/modules", eventsHandler.AttachModule)
	route("PUT /events/{eventId}/modules/{moduleId}", eventsHandler.UpdateModuleConfig)
	route("DELETE /events/{eventId}/modules/{moduleId}", eventsHandler.DetachModule)
	route("GET /events/{eventId}/preview", eventsHandler.Preview)

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		envelope.Fail(w, r, http.StatusNotFound, "Route not found", nil, nil)
	})

	// metrics.HTTPMiddleware reads r.Pattern, which the mux sets only on the
	// request it was handed, so it must wrap the mux directly.
	var handler http.Handler = metrics.HTTPMiddleware(mux)
	handler = middleware.RequestSizeMB(cfg.Server.RequestSizeLimitMB)(handler)
	handler = middleware.Identity(deps.JWT)(handler)
	handler = middleware.RateLimit(cfg.RateLimit)(handler)
	handler = middleware.CORS(cfg.CORS, deps.Logger)(handler)
	handler = middleware.SecurityHeaders(cfg.Environment == "production")(handler)
	handler = middleware.RequestLogging(deps.Logger)(handler)
	handler = middleware.Tracing(handler)
	handler = middleware.Recover(handler)
	handler = middleware.CorrelationID(deps.Logger)(handler)
	return handler
}
