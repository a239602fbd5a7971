package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/basel-ax/fitroom/internal/domain"
	"github.com/basel-ax/fitroom/internal/logger"
)

// Relayer runs one try-on job to completion
type Relayer interface {
	Relay(ctx context.Context, req domain.SynthesisRequest) (*domain.RelayResult, error)
}

// Pinger reports backend health; *sql.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Options carries the collaborators of a Server. Images and DB may be nil.
type Options struct {
	Relay     Relayer
	Garments  domain.GarmentStore
	Favorites domain.FavoriteStore
	History   domain.HistoryStore
	Images    domain.ImageStore
	DB        Pinger
	JWTSecret string
	Logger    *slog.Logger

	Recommendations domain.RecommendationStore
}

// Server exposes the relay and the catalog over HTTP
type Server struct {
	relay     Relayer
	garments  domain.GarmentStore
	favorites domain.FavoriteStore
	history   domain.HistoryStore
	images    domain.ImageStore
	db        Pinger
	auth      *authenticator
	logger    *slog.Logger

	recommendations domain.RecommendationStore
}

func NewServer(opts Options) *Server {
	l := opts.Logger
	if l == nil {
		l = logger.Discard()
	}
	return &Server{
		relay:     opts.Relay,
		garments:  opts.Garments,
		favorites: opts.Favorites,
		history:   opts.History,
		images:    opts.Images,
		db:        opts.DB,
		auth:      newAuthenticator(opts.JWTSecret),
		logger:    l,

		recommendations: opts.Recommendations,
	}
}

// Handler returns the routed handler wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	auth := s.auth.middleware
	r.Handle("/functions/v1/virtual-tryon", auth(http.HandlerFunc(s.handleTryOn))).Methods(http.MethodPost)
	r.Handle("/api/tryon", auth(http.HandlerFunc(s.handleTryOn))).Methods(http.MethodPost)

	r.Handle("/api/sessions", auth(http.HandlerFunc(s.handleCreateSession))).Methods(http.MethodPost)
	r.Handle("/api/sessions/{sessionID}/history", auth(http.HandlerFunc(s.handleListHistory))).Methods(http.MethodGet)
	r.Handle("/api/sessions/{sessionID}/favorites", auth(http.HandlerFunc(s.handleListFavorites))).Methods(http.MethodGet)
	r.Handle("/api/sessions/{sessionID}/favorites/{garmentID}", auth(http.HandlerFunc(s.handleAddFavorite))).Methods(http.MethodPut)
	r.Handle("/api/sessions/{sessionID}/favorites/{garmentID}", auth(http.HandlerFunc(s.handleRemoveFavorite))).Methods(http.MethodDelete)

	r.Handle("/api/garments", auth(http.HandlerFunc(s.handleListGarments))).Methods(http.MethodGet)
	r.Handle("/api/garments/categories", auth(http.HandlerFunc(s.handleListCategories))).Methods(http.MethodGet)
	r.Handle("/api/garments/{garmentID}/recommendations", auth(http.HandlerFunc(s.handleListRecommendations))).Methods(http.MethodGet)

	r.Handle("/api/uploads", auth(http.HandlerFunc(s.handleUpload))).Methods(http.MethodPost)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	return withCORS(s.withLogging(withTracing(r)))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.PingContext(r.Context()); err != nil {
			s.logger.Error("health.db_unreachable", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
