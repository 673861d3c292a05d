package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"canvas-engine/interfaces/http/rest/handlers"
	"canvas-engine/interfaces/http/rest/middleware"
	pkgerrors "canvas-engine/pkg/errors"
	"canvas-engine/pkg/observability"
)

// RouterConfig holds the optional parts of the router.
type RouterConfig struct {
	AllowedOrigins []string
	EnableCORS     bool
	Debug          bool
	Metrics        *observability.Collector
}

// Router creates and configures the HTTP router
type Router struct {
	sessions handlers.Sessions
	logger   *zap.Logger
	cfg      RouterConfig
}

// NewRouter creates a new router instance
func NewRouter(sessions handlers.Sessions, logger *zap.Logger, cfg RouterConfig) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{sessions: sessions, logger: logger, cfg: cfg}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	errs := pkgerrors.NewErrorHandler(rt.logger, rt.cfg.Debug)

	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(middleware.RequestIDHeader)
	router.Use(chimiddleware.RealIP)
	router.Use(errs.Middleware)
	router.Use(middleware.Logger(rt.logger))
	router.Use(middleware.Metrics(rt.cfg.Metrics))

	if rt.cfg.EnableCORS {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins: rt.cfg.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
			ExposedHeaders: []string{"X-Request-ID"},
			MaxAge:         300,
		}))
	}

	router.Get("/health", rt.healthCheck)
	if rt.cfg.Metrics != nil {
		router.Method(http.MethodGet, "/metrics", rt.cfg.Metrics.Handler())
	}

	documents := handlers.NewDocumentHandler(rt.sessions, errs, rt.logger)
	nodes := handlers.NewNodeHandler(rt.sessions, errs, rt.logger)
	edges := handlers.NewEdgeHandler(rt.sessions, errs, rt.logger)
	input := handlers.NewInputHandler(rt.sessions, errs, rt.logger)
	exports := handlers.NewExportHandler(rt.sessions, errs, rt.logger)

	router.Route("/api/v1/documents/{docID}", func(r chi.Router) {
		r.Post("/open", documents.Open)
		r.Post("/close", documents.Close)
		r.Get("/", documents.GetGraph)
		r.Patch("/", documents.Update)

		r.Post("/undo", documents.Undo)
		r.Post("/redo", documents.Redo)
		r.Post("/keys/{shortcut}", documents.Key)
		r.Delete("/selection", documents.ClearSelection)

		r.Post("/save", documents.Save)
		r.Post("/blur", documents.Blur)
		r.Get("/status", documents.Status)

		r.Route("/nodes", func(r chi.Router) {
			r.Post("/", nodes.CreateNode)
			r.Patch("/{nodeID}", nodes.UpdateNode)
			r.Delete("/{nodeID}", nodes.DeleteNode)
			r.Post("/{nodeID}/label", nodes.ChangeLabel)
			r.Post("/{nodeID}/color", nodes.ChangeColor)
			r.Post("/{nodeID}/duplicate", nodes.Duplicate)
			r.Post("/{nodeID}/drag-end", nodes.DragEnd)
			r.Post("/{nodeID}/select", nodes.Select)
		})

		r.Route("/edges", func(r chi.Router) {
			r.Post("/", edges.CreateEdge)
			r.Delete("/{edgeID}", edges.DeleteEdge)
		})

		r.Post("/pointer/{phase}", input.Pointer)
		r.Put("/tool", input.SetTool)
		r.Put("/viewport", input.SetViewport)

		r.Get("/export/interchange", exports.Interchange)
		r.Get("/export/image", exports.Image)
	})

	return router
}

// healthCheck handles health check requests
func (rt *Router) healthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy"}`))
}
