package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	"google.golang.org/api/idtoken"

	"tourrooms/config"
	"tourrooms/logger"
	"tourrooms/session"
	"tourrooms/store"
)

type server struct {
	cfg      config.Config
	store    *store.Store
	sessions *session.Store
	log      *zap.Logger
	validate func(ctx context.Context, token, audience string) (*idtoken.Payload, error)
}

func main() {
	configFile := flag.String("config", "", "optional config file (yaml, json or toml)")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat, "tourrooms")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}

	db, err := sql.Open("postgres", cfg.PGConn)
	if err != nil {
		log.Fatal("failed to open database", zap.Error(err))
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	log.Info("connected to database")

	st := store.New(db, log)
	if err := st.Migrate(ctx); err != nil {
		log.Fatal("failed to migrate", zap.Error(err))
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}

	s := &server{
		cfg:      cfg,
		store:    st,
		sessions: session.New(rdb, cfg.SessionTTL),
		log:      log,
		validate: idtoken.Validate,
	}

	log.Info("listening", zap.String("addr", cfg.Addr))
	if err := http.ListenAndServe(cfg.Addr, s.routes()); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func (s *server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/google/callback", s.handleGoogleCallback)
	mux.HandleFunc("GET /api/admin/check", s.handleAdminCheck)
	mux.HandleFunc("GET /api/tours/{tourID}/travelers", s.handleListTravelers)
	mux.HandleFunc("GET /api/tours/{tourID}/room-configs", s.handleGetRoomConfigs)
	mux.HandleFunc("PUT /api/tours/{tourID}/room-configs", s.handlePutRoomConfigs)
	mux.HandleFunc("POST /api/tours/{tourID}/assignments", s.handleCreateAssignments)
	mux.HandleFunc("GET /api/tours/{tourID}/assignments/{gender}", s.handleSavedAssignment)
	mux.HandleFunc("GET /api/sessions/{sessionID}", s.handleGetSession)
	mux.HandleFunc("DELETE /api/sessions/{sessionID}", s.handleDeleteSession)
	mux.HandleFunc("POST /api/sessions/{sessionID}/move", s.handleMove)
	mux.HandleFunc("POST /api/sessions/{sessionID}/remove", s.handleRemove)
	mux.HandleFunc("POST /api/sessions/{sessionID}/save", s.handleSave)
	mux.HandleFunc("GET /api/sessions/{sessionID}/export", s.handleExport)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := s.store.Ping(r.Context()); err != nil {
			http.Error(w, "db unhealthy", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprintln(w, "ok")
	})
	return mux
}
