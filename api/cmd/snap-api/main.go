package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver

	"snap-solve/api/internal/config"
	"snap-solve/api/internal/handle"
	"snap-solve/api/internal/pipeline"
	"snap-solve/api/internal/recognition"
	"snap-solve/api/internal/recognition/gemini"
	"snap-solve/api/internal/solver"
	"snap-solve/api/internal/store"
)

func main() {
	cfg := config.Load()

	st, db := openStore(cfg)
	if db != nil {
		defer db.Close()
	}
	if pg, ok := st.(*store.PGStore); ok {
		go runPurge(pg)
	}

	llm := solver.NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	orch := solver.New(llm, st)
	pipe := pipeline.New(func() recognition.Engine {
		return gemini.New(cfg.GeminiAPIKey, cfg.GeminiModel)
	}, orch)

	h := handle.New(pipe, orch, st)
	mux := handle.NewMux(h)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte("db: not ok\n" + err.Error()))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	addr := ":" + cfg.Port
	log.Printf("snap-api listening on %s", addr)
	log.Fatal(http.ListenAndServe(addr, mux))
}

const (
	purgeInterval  = 24 * time.Hour
	purgeRetention = 30 * 24 * time.Hour
)

// runPurge drops unsaved questions older than the retention window once a day.
func runPurge(pg *store.PGStore) {
	t := time.NewTicker(purgeInterval)
	defer t.Stop()
	for range t.C {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		n, err := pg.PurgeOlderThan(ctx, purgeRetention)
		cancel()
		if err != nil {
			log.Printf("purge: %v", err)
			continue
		}
		if n > 0 {
			log.Printf("purged %d old questions", n)
		}
	}
}

// openStore returns the Postgres store when a DSN is configured, otherwise
// the in-memory store. The returned *sql.DB is nil in the in-memory case.
func openStore(cfg *config.Config) (store.QuestionStore, *sql.DB) {
	if cfg.DatabaseURL == "" {
		log.Printf("no database configured, using in-memory store")
		return store.NewMemStore(), nil
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("sql.Open: %v", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(1 * time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("db.Ping: %v", err)
	}

	pg := store.NewPGStore(db)
	if err := pg.Init(ctx); err != nil {
		log.Fatalf("db schema: %v", err)
	}
	log.Printf("db connected")
	return pg, db
}
