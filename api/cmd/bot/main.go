package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	"golang.org/x/sync/errgroup"

	"snap-solve/api/internal/config"
	"snap-solve/api/internal/pipeline"
	"snap-solve/api/internal/recognition"
	"snap-solve/api/internal/recognition/gemini"
	"snap-solve/api/internal/solver"
	"snap-solve/api/internal/store"
	"snap-solve/api/internal/telegram"
)

func main() {
	cfg := config.Load()

	if cfg.TelegramBotToken == "" {
		log.Fatal("TELEGRAM_BOT_TOKEN is required for the bot")
	}

	st, db := openStore(cfg)
	if db != nil {
		defer db.Close()
	}
	if pg, ok := st.(*store.PGStore); ok {
		go runPurge(pg)
	}

	bot, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		log.Fatal(err)
	}
	bot.Debug = false

	llm := solver.NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	orch := solver.New(llm, st)
	pipe := pipeline.New(func() recognition.Engine {
		return gemini.New(cfg.GeminiAPIKey, cfg.GeminiModel)
	}, orch)

	r := &telegram.Router{Bot: bot, Pipe: pipe, Store: st}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if db != nil {
			ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
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

	addr := "0.0.0.0:" + cfg.Port

	if whURL := strings.TrimSpace(cfg.WebhookURL); whURL != "" {
		startWebhookMode(addr, bot, r, whURL, mux)
		return
	}
	startPollingMode(addr, bot, r, mux)
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

// ---------------- Modes -----------------

func startWebhookMode(addr string, bot *tgbotapi.BotAPI, r *telegram.Router, baseURL string, mux *http.ServeMux) {
	path := "/webhook/" + shortHash(bot.Token)
	public := strings.TrimRight(baseURL, "/") + path

	wh, err := tgbotapi.NewWebhook(public)
	if err != nil {
		log.Fatal(err)
	}
	wh.DropPendingUpdates = true
	if _, err := bot.Request(wh); err != nil {
		log.Fatal(err)
	}

	// ListenForWebhook registers on the default mux; route it through ours.
	updates := bot.ListenForWebhook(path)
	mux.Handle(path, http.DefaultServeMux)

	var g errgroup.Group
	g.Go(func() error {
		for upd := range updates {
			r.HandleUpdate(upd)
		}
		return errors.New("webhook updates channel closed")
	})
	g.Go(func() error {
		log.Printf("webhook listening on %s%s", addr, path)
		return http.ListenAndServe(addr, mux)
	})
	log.Fatal(g.Wait())
}

func startPollingMode(addr string, bot *tgbotapi.BotAPI, r *telegram.Router, mux *http.ServeMux) {
	var g errgroup.Group
	g.Go(func() error {
		log.Printf("health server listening on %s/healthz", addr)
		return http.ListenAndServe(addr, mux)
	})
	g.Go(func() error {
		runPolling(context.Background(), bot, r.HandleUpdate)
		return nil
	})
	log.Fatal(g.Wait())
}

// ---------------- Polling loop -----------------

var reRetryAfter = regexp.MustCompile(`(?i)retry after\s+(\d+)`)

func retryDelayFromError(err error) time.Duration {
	if err == nil {
		return 0
	}
	s := strings.ToLower(err.Error())
	if strings.Contains(s, "too many requests") { // HTTP 429 from Telegram
		if m := reRetryAfter.FindStringSubmatch(s); len(m) == 2 {
			if n, _ := strconv.Atoi(m[1]); n > 0 {
				return time.Duration(n) * time.Second
			}
		}
		return 3 * time.Second
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return 2 * time.Second
	}
	return 1 * time.Second
}

func runPolling(ctx context.Context, bot *tgbotapi.BotAPI, handle func(tgbotapi.Update)) {
	offset := 0
	baseDelay := 1 * time.Second
	maxDelay := 15 * time.Second

	for {
		select {
		case <-ctx.Done():
			log.Printf("polling: context cancelled")
			return
		default:
		}

		u := tgbotapi.NewUpdate(offset)
		u.Timeout = 30 // long polling timeout (sec)

		updates, err := bot.GetUpdates(u)
		if err != nil {
			d := retryDelayFromError(err)
			if d < baseDelay {
				d = baseDelay
			}
			if d > maxDelay {
				d = maxDelay
			}
			log.Printf("polling error: %v; retry in %v", err, d)
			time.Sleep(d)
			continue
		}

		for _, upd := range updates {
			if upd.UpdateID >= offset {
				offset = upd.UpdateID + 1
			}
			handle(upd)
		}

		if len(updates) == 0 {
			time.Sleep(200 * time.Millisecond)
		}
	}
}

// shortHash derives a stable non-crypto path segment from the bot token.
func shortHash(s string) string {
	h := uint64(1469598103934665603)
	const prime = 1099511628211
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= prime
	}
	const hexdigits = "0123456789abcdef"
	out := make([]byte, 16)
	for i := 15; i >= 0; i-- {
		out[i] = hexdigits[h&0xF]
		h >>= 4
	}
	return string(out)
}
