// Package api открывает хуки сущностей по HTTP и WebSocket.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/UkralStul/carreras-sync/internal/blob"
	"github.com/UkralStul/carreras-sync/internal/dataloader"
	"github.com/UkralStul/carreras-sync/internal/events"
	"github.com/UkralStul/carreras-sync/internal/hooks"
	"github.com/UkralStul/carreras-sync/internal/identity"
	"github.com/UkralStul/carreras-sync/internal/logging"
	"github.com/UkralStul/carreras-sync/internal/notify"
	"github.com/UkralStul/carreras-sync/internal/storage"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Options - зависимости шлюза.
type Options struct {
	Store     storage.Store
	Blobs     blob.Store
	Bus       *events.Bus
	Relay     *events.Relay
	JWTSecret string
	Logger    *slog.Logger
	// BlobDir раздаётся по /storage, если задан (драйвер fs).
	BlobDir string
}

// Server держит общие зависимости; хуки создаются на каждый запрос.
type Server struct {
	opts Options
	log  *slog.Logger
}

func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Relay == nil {
		opts.Relay = events.NewRelay(opts.Logger)
	}
	return &Server{opts: opts, log: opts.Logger}
}

// Router собирает все маршруты.
func (s *Server) Router() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	router.Handle("/metrics", promhttp.Handler())
	router.Handle("/ws/events", s.opts.Relay)
	router.Get("/ws/changes", s.streamChanges)
	if s.opts.BlobDir != "" {
		router.Handle("/storage/*", http.StripPrefix("/storage/", http.FileServer(http.Dir(s.opts.BlobDir))))
	}

	router.Route("/api", func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler { return dataloader.Middleware(s.opts.Store, next) })
		r.Use(s.authenticate)
		s.routes(r)
	})
	return router
}

type sessionKey struct{}

// authenticate читает "Authorization: Bearer <jwt>". Без заголовка запрос анонимный,
// неверный токен - 401.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session := identity.Anonymous()
		if header := r.Header.Get("Authorization"); header != "" {
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok {
				writeJSON(w, http.StatusUnauthorized, envelope{Error: "malformed authorization header"})
				return
			}
			var err error
			session, err = identity.FromToken(s.opts.JWTSecret, token)
			if err != nil {
				writeJSON(w, http.StatusUnauthorized, envelope{Error: "invalid token"})
				return
			}
		}
		ctx := context.WithValue(r.Context(), sessionKey{}, session)
		if userID, ok := session.UserID(); ok {
			ctx = logging.WithUserID(ctx, userID)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// request - зависимости хуков одного запроса и записанные уведомления.
type request struct {
	deps   hooks.Deps
	toasts *notify.Recorder
}

func (s *Server) request(r *http.Request) request {
	session, ok := r.Context().Value(sessionKey{}).(*identity.Session)
	if !ok {
		session = identity.Anonymous()
	}
	rec := &notify.Recorder{}
	return request{
		toasts: rec,
		deps: hooks.Deps{
			Store:    s.opts.Store,
			Identity: session,
			Notifier: notify.Multi{rec, notify.Slog{Logger: s.log}},
			Blobs:    s.opts.Blobs,
			Profiles: dataloader.For(r.Context()),
			Bus:      s.opts.Bus,
			Logger:   s.log,
		},
	}
}

// envelope - общий формат ответа: данные или ошибка плюс уведомления.
type envelope struct {
	Data   any            `json:"data,omitempty"`
	Error  string         `json:"error,omitempty"`
	Toasts []notify.Toast `json:"toasts,omitempty"`
}

func (q request) reply(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Data: data, Toasts: q.toasts.Toasts()})
}

func (q request) fail(w http.ResponseWriter, err error) {
	writeJSON(w, statusOf(err), envelope{Error: err.Error(), Toasts: q.toasts.Toasts()})
}

// respond отвечает данными или ошибкой хука.
func (q request) respond(w http.ResponseWriter, status int, data any, err error) {
	if err != nil {
		q.fail(w, err)
		return
	}
	q.reply(w, status, data)
}

func statusOf(err error) int {
	var upload *hooks.UploadError
	switch {
	case errors.Is(err, hooks.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, hooks.ErrInvalidInput), errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, hooks.ErrNoOwnerMatch):
		return http.StatusForbidden
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &upload):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

var (
	errBadRequest  = errors.New("bad request")
	errMissingFile = errors.New("file is required")
)

func badRequest(err error) error { return errors.Join(errBadRequest, err) }

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return badRequest(err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
