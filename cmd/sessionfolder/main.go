// Command sessionfolder serves sessions from the folder store over HTTP.
// The "sid" cookie identifies the session; GET /session/folder?user=alice
// provisions alice's directory.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/dmitrymomot/sessionfolder/file"
	"github.com/dmitrymomot/sessionfolder/pkg/config"
	"github.com/dmitrymomot/sessionfolder/pkg/httpserver"
	"github.com/dmitrymomot/sessionfolder/pkg/logger"
	"github.com/dmitrymomot/sessionfolder/pkg/redis"
	"github.com/dmitrymomot/sessionfolder/pkg/session"
)

const cookieName = "sid"

// appConfig selects S3 storage when a bucket is configured and the Redis
// index when a Redis URL is configured.
type appConfig struct {
	MaxAge time.Duration `env:"SESSION_MAX_AGE" envDefault:"24h" yaml:"max_age"`

	Log     logger.Config     `yaml:"log"`
	HTTP    httpserver.Config `yaml:"http"`
	Session session.Config    `yaml:"session"`
	Redis   redis.Config      `yaml:"redis"`
	S3      file.S3Config     `yaml:"s3"`
}

func main() {
	configPath := flag.String("config", "", "optional YAML config file, applied over the environment")
	envFile := flag.String("env", "", "optional .env file loaded before the environment is parsed")
	flag.Parse()

	if err := run(*configPath, *envFile); err != nil {
		slog.Error("sessionfolder stopped", logger.Error(err))
		os.Exit(1)
	}
}

func run(configPath, envFile string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if envFile != "" {
		if err := config.LoadEnv(envFile); err != nil {
			return err
		}
	}

	var cfg appConfig
	if configPath != "" {
		if err := config.LoadFile(configPath, &cfg); err != nil {
			return err
		}
	} else if err := config.Load(&cfg); err != nil {
		return err
	}

	log := logger.NewFromConfig(cfg.Log, logger.WithContextExtractors(
		logger.SessionIDExtractor(),
		logger.StringExtractor("request_id", middleware.GetReqID),
	))
	logger.SetAsDefault(log)

	storage, err := newStorage(ctx, cfg)
	if err != nil {
		return err
	}

	opts := []session.Option{session.WithLogger(log)}
	checks := []httpserver.Check{}
	if cfg.Redis.ConnectionURL != "" {
		client, err := redis.Connect(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer client.Close()
		idx := redis.NewIndexFromConfig(client, cfg.Redis)
		opts = append(opts, session.WithIndex(idx))
		checks = append(checks, idx.Healthcheck)
	}

	store, err := session.NewFolderStore(storage, append([]session.Option{session.WithConfig(cfg.Session)}, opts...)...)
	if err != nil {
		return err
	}

	events := store.Subscribe(ctx)
	go func() {
		for ev := range events {
			if ev.Err != nil {
				log.Error("session store event", logger.Event(string(ev.Type)), logger.Error(ev.Err))
				continue
			}
			log.Info("session store event", logger.Event(string(ev.Type)))
		}
	}()

	if err := store.Open(ctx); err != nil {
		return err
	}
	defer func() {
		closeCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
		defer done()
		if err := store.Close(closeCtx); err != nil {
			log.Error("failed to close session store", logger.Error(err))
		}
	}()

	checks = append(checks, store.Healthcheck)
	h := &handler{store: store, maxAge: cfg.MaxAge, log: log}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer)
	r.Get("/health/live", httpserver.LivenessHandler())
	r.Get("/health/ready", httpserver.ReadinessHandler(log, store.Ready(), checks...))
	r.Route("/session", func(r chi.Router) {
		r.Use(h.sessionCookie)
		r.Get("/", h.get)
		r.Put("/", h.set)
		r.Delete("/", h.destroy)
		r.Get("/folder", h.folder)
		r.Get("/files", h.files)
		r.Post("/sweep", h.sweep)
	})

	srv := httpserver.NewFromConfig(cfg.HTTP,
		httpserver.WithLogger(log),
		httpserver.WithReadyGate(store.Ready()),
	)
	return srv.Run(ctx, r)
}

func newStorage(ctx context.Context, cfg appConfig) (file.Storage, error) {
	if cfg.S3.Bucket != "" {
		if cfg.S3.FileName == "" {
			cfg.S3.FileName = cfg.Session.FileName
		}
		return file.NewS3Storage(ctx, cfg.S3)
	}

	mode, err := cfg.Session.DirMode()
	if err != nil {
		return nil, err
	}
	return file.NewLocalStorage(cfg.Session.Root(),
		file.WithFileName(cfg.Session.FileName),
		file.WithDirMode(mode),
	)
}

type handler struct {
	store  *session.FolderStore
	maxAge time.Duration
	log    *slog.Logger
}

// sessionCookie reads the "sid" cookie, issuing a new one when missing.
func (h *handler) sessionCookie(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sid := ""
		if c, err := r.Cookie(cookieName); err == nil {
			sid = c.Value
		}
		if sid == "" {
			sid = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     cookieName,
				Value:    sid,
				Path:     "/",
				MaxAge:   int(h.maxAge.Seconds()),
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}
		next.ServeHTTP(w, r.WithContext(logger.WithSessionID(r.Context(), sid)))
	})
}

func sessionID(r *http.Request) string {
	sid, _ := logger.SessionIDFromContext(r.Context())
	return sid
}

func (h *handler) get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.store.Get(r.Context(), sessionID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *handler) set(w http.ResponseWriter, r *http.Request) {
	var rec session.Record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil || rec == nil {
		http.Error(w, "body must be a JSON object", http.StatusBadRequest)
		return
	}
	if _, ok := rec[session.FieldCookie]; !ok {
		rec[session.FieldCookie] = map[string]any{
			"maxAge":  h.maxAge.Milliseconds(),
			"expires": time.Now().Add(h.maxAge).UTC().Format(time.RFC3339Nano),
		}
	}

	if err := h.store.Set(r.Context(), sessionID(r), rec); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) destroy(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Destroy(r.Context(), sessionID(r)); err != nil {
		h.fail(w, r, err)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: cookieName, Path: "/", MaxAge: -1})
	w.WriteHeader(http.StatusNoContent)
}

// folder provisions the directory of the user given in the query.
func (h *handler) folder(w http.ResponseWriter, r *http.Request) {
	key, err := h.store.CheckExists(r.Context(), session.ProvisionParams{
		SessionID: sessionID(r),
		Owner:     r.URL.Query().Get("user"),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"folder": key})
}

func (h *handler) files(w http.ResponseWriter, r *http.Request) {
	entries, err := h.store.Files(r.Context(), sessionID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *handler) sweep(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.Reaper().SweepNow(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound), errors.Is(err, file.ErrDirectoryNotFound):
		http.Error(w, "no session", http.StatusNotFound)
	case errors.Is(err, session.ErrMissingIdentity), errors.Is(err, session.ErrInvalidSession):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, session.ErrSweepInProgress):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		h.log.ErrorContext(r.Context(), "request failed", logger.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
