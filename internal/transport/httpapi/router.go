// Package httpapi отдаёт ядро персонализации фронтенду витрины в виде JSON API.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/service/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/service/storefront"
)

const (
	// ProfileCookie хранит id браузерного профиля (постоянная область посетителя).
	ProfileCookie = "sf_bid"
	// SessionCookie хранит id сессии просмотра; живёт до закрытия браузера.
	SessionCookie = "sf_sid"

	profileCookieMaxAge = 365 * 24 * time.Hour
)

// Catalog описывает, что API нужно от каталога.
type Catalog interface {
	View(ctx context.Context, opts catalog.ViewOptions) (catalog.GroupedView, error)
	Search(ctx context.Context, query string, opts catalog.ViewOptions) (catalog.GroupedView, error)
}

// Server — HTTP-обработчики витрины.
type Server struct {
	sessions     *storefront.Registry
	catalog      Catalog
	logger       *log.Entry
	cookieSecure bool
	newID        func() string
}

// Option настраивает Server.
type Option func(*Server)

func WithLogger(logger *log.Entry) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSecureCookies выставляет флаг Secure у cookie.
func WithSecureCookies(secure bool) Option {
	return func(s *Server) { s.cookieSecure = secure }
}

// WithIDGenerator подменяет генератор id cookie.
func WithIDGenerator(gen func() string) Option {
	return func(s *Server) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// NewServer создаёт обработчики поверх реестра сессий и каталога.
func NewServer(sessions *storefront.Registry, catalogSvc Catalog, opts ...Option) *Server {
	s := &Server{
		sessions: sessions,
		catalog:  catalogSvc,
		logger:   log.New().WithField("component", "httpapi"),
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes собирает chi-роутер.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(chimiddleware.Recoverer)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.sessionMiddleware)

		r.Get("/visitor", s.getVisitor)
		r.Put("/visitor/profile", s.putProfile)
		r.Delete("/visitor/profile", s.deleteProfile)

		r.Get("/catalog", s.getCatalog)
		r.Get("/recommendations/{surface}", s.getRecommendations)
	})
	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.WithFields(log.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      ww.Status(),
			"duration_ms": time.Since(started).Milliseconds(),
			"request_id":  chimiddleware.GetReqID(r.Context()),
		}).Debug("http request")
	})
}
