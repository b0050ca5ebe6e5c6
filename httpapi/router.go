package httpapi

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	forwarder "github.com/goliatone/go-forwarder"
	"github.com/goliatone/go-forwarder/core"
	glog "github.com/goliatone/go-logger/glog"
)

const (
	defaultBasePath     = "/api"
	defaultMaxBodyBytes = 1 << 20
)

type Option func(*Router)

func WithLogger(logger core.Logger) Option {
	return func(r *Router) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithRequestLogging toggles the chi access log middleware.
func WithRequestLogging(enabled bool) Option {
	return func(r *Router) {
		r.requestLogging = enabled
	}
}

func WithBasePath(path string) Option {
	return func(r *Router) {
		if path != "" {
			r.basePath = path
		}
	}
}

func WithMaxBodyBytes(limit int64) Option {
	return func(r *Router) {
		if limit > 0 {
			r.maxBodyBytes = limit
		}
	}
}

// Router exposes the forwarder commands and queries over HTTP. Every request
// goes through the same go-command handlers used by in-process callers.
type Router struct {
	mux            *chi.Mux
	commands       forwarder.Commands
	queries        forwarder.Queries
	logger         core.Logger
	basePath       string
	maxBodyBytes   int64
	requestLogging bool
}

func NewRouter(facade *forwarder.Facade, opts ...Option) (*Router, error) {
	if facade == nil {
		return nil, fmt.Errorf("httpapi: facade is required")
	}
	r := &Router{
		mux:            chi.NewRouter(),
		commands:       facade.Commands(),
		queries:        facade.Queries(),
		logger:         glog.Nop(),
		basePath:       defaultBasePath,
		maxBodyBytes:   defaultMaxBodyBytes,
		requestLogging: true,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}

	r.mux.Use(middleware.RequestID)
	r.mux.Use(middleware.RealIP)
	if r.requestLogging {
		r.mux.Use(middleware.Logger)
	}
	r.mux.Use(middleware.Recoverer)
	r.mux.Route(r.basePath, r.routes)
	return r, nil
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

func (r *Router) routes(api chi.Router) {
	api.Post("/fragments", r.handleIngestFragment)

	api.Route("/rules", func(rules chi.Router) {
		rules.Get("/", r.handleListRules)
		rules.Post("/", r.handleCreateRule)
		rules.Post("/test", r.handleTestDelivery)
		rules.Get("/{id}", r.handleGetRule)
		rules.Put("/{id}", r.handleUpdateRule)
		rules.Delete("/{id}", r.handleDeleteRule)
		rules.Post("/{id}/enabled", r.handleSetRuleEnabled)
	})

	api.Route("/messages", func(messages chi.Router) {
		messages.Get("/", r.handleListMessages)
		messages.Delete("/", r.handleClearMessages)
		messages.Get("/{id}", r.handleGetMessage)
		messages.Get("/{id}/jobs", r.handleListJobsForMessage)
	})

	api.Route("/jobs", func(jobs chi.Router) {
		jobs.Get("/", r.handleListJobsByStatus)
		jobs.Post("/cancel-retrying", r.handleCancelAllRetrying)
		jobs.Get("/{id}", r.handleGetJob)
		jobs.Post("/{id}/retry", r.handleRetryJob)
		jobs.Post("/{id}/cancel", r.handleCancelJob)
	})

	api.Get("/settings", r.handleGetSettings)
	api.Put("/settings", r.handleUpdateSettings)

	api.Get("/backup", r.handleExportBackup)
	api.Post("/backup", r.handleImportBackup)

	api.Get("/logs", r.handleListLogs)
	api.Delete("/logs", r.handleClearLogs)
}
