package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/service/storefront"
)

const maxProfileBytes = 64 << 10

type visitorResponse struct {
	VisitorKey    domain.VisitorKey `json:"visitor_key"`
	Authenticated bool              `json:"authenticated"`
}

type errorResponse struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable"`
}

type recommendationResponse struct {
	Surface     string           `json:"surface"`
	Tier        domain.Tier      `json:"tier"`
	Products    []domain.Product `json:"products"`
	Fingerprint string           `json:"fingerprint,omitempty"`
	FromCache   bool             `json:"from_cache"`
	Fallback    bool             `json:"fallback"`
}

func (s *Server) getVisitor(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())
	writeJSON(w, http.StatusOK, visitorResponse{
		VisitorKey:    session.VisitorKey(r.Context()),
		Authenticated: session.Authenticated(r.Context()),
	})
}

func (s *Server) putProfile(w http.ResponseWriter, r *http.Request) {
	var profile domain.Profile
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxProfileBytes)).Decode(&profile); err != nil {
		writeError(w, http.StatusBadRequest, "invalid profile payload", false)
		return
	}

	key, err := sessionFrom(r.Context()).SignIn(r.Context(), profile)
	if err != nil {
		if errors.Is(err, domain.ErrProfileInvalid) {
			writeError(w, http.StatusBadRequest, err.Error(), false)
			return
		}
		s.logger.WithError(err).Error("sign in failed")
		writeError(w, http.StatusInternalServerError, "sign in failed", true)
		return
	}
	writeJSON(w, http.StatusOK, visitorResponse{VisitorKey: key, Authenticated: true})
}

func (s *Server) deleteProfile(w http.ResponseWriter, r *http.Request) {
	key, err := sessionFrom(r.Context()).SignOut(r.Context())
	if err != nil {
		s.logger.WithError(err).Error("sign out failed")
		writeError(w, http.StatusInternalServerError, "sign out failed", true)
		return
	}
	writeJSON(w, http.StatusOK, visitorResponse{VisitorKey: key, Authenticated: false})
}

func (s *Server) getCatalog(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())
	query := r.URL.Query()
	opts := catalog.ViewOptions{
		Category:   strings.TrimSpace(query.Get("category")),
		VisitorKey: session.VisitorKey(r.Context()),
	}

	view, err := s.catalog.Search(r.Context(), query.Get("q"), opts)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "catalog is unavailable", domain.IsRetryable(err))
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) getRecommendations(w http.ResponseWriter, r *http.Request) {
	surface := storefront.SurfaceName(chi.URLParam(r, "surface"))
	query := r.URL.Query()

	result, applied, err := sessionFrom(r.Context()).Recommend(r.Context(), surface, splitIDs(query.Get("cart")), query.Get("focus"))
	if errors.Is(err, storefront.ErrUnknownSurface) {
		writeError(w, http.StatusNotFound, err.Error(), false)
		return
	}
	if err != nil || !applied {
		// Ответ вытеснен более новым запросом той же поверхности.
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSON(w, http.StatusOK, recommendationResponse{
		Surface:     string(surface),
		Tier:        result.Tier,
		Products:    domain.CloneProducts(result.Products),
		Fingerprint: result.Fingerprint,
		FromCache:   result.FromCache,
		Fallback:    result.Fallback,
	})
}

func splitIDs(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return strings.Split(raw, ",")
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string, retryable bool) {
	writeJSON(w, status, errorResponse{Error: message, Retryable: retryable})
}
