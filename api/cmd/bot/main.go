package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"regexp"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"workflow-architect/api/internal/analysis"
	"workflow-architect/api/internal/config"
	"workflow-architect/api/internal/engine"
	"workflow-architect/api/internal/httpserver"
	"workflow-architect/api/internal/logger"
	"workflow-architect/api/internal/session"
	"workflow-architect/api/internal/telegram"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New("info").Fatal("load config", "error", err)
	}
	log := logger.New(cfg.LogLevel)
	if strings.TrimSpace(cfg.TelegramBotToken) == "" {
		log.Fatal("TELEGRAM_BOT_TOKEN is required")
	}

	bot, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		log.Fatal("telegram login", "error", err)
	}
	bot.Debug = false

	engines := engine.FromConfig(cfg)
	r := &telegram.Router{
		Bot:          bot,
		Sessions:     session.NewStore(),
		EngManager:   engine.NewManager(engines.Default(cfg.LLMEngine)),
		Engines:      engines,
		Service:      analysis.NewService(analysis.NewBuilder(cfg.WorkflowDomain), log),
		Log:          log,
		MaxFileBytes: cfg.MaxUploadBytes,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mux := chi.NewRouter()
	mux.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	srv := &http.Server{Addr: "0.0.0.0:" + cfg.Port, Handler: mux, ReadHeaderTimeout: 15 * time.Second}

	var done <-chan struct{}
	if webhookURL := strings.TrimSpace(cfg.WebhookURL); webhookURL != "" {
		done = startWebhookMode(ctx, bot, r, mux, webhookURL, log)
	} else {
		ch := make(chan struct{})
		go func() {
			defer close(ch)
			runPolling(ctx, bot, r.HandleUpdate, log)
		}()
		done = ch
	}

	if err := httpserver.Serve(ctx, srv, log); err != nil {
		log.Fatal("http server", "error", err)
	}
	// no update is dispatched after done, so no analysis starts during Wait
	<-done
	r.Wait()
	log.Info("bot stopped")
}

// ---------------- Modes -----------------

// startWebhookMode registers the webhook and dispatches its updates until ctx
// is done. The returned channel is closed once dispatch has stopped.
func startWebhookMode(ctx context.Context, bot *tgbotapi.BotAPI, r *telegram.Router, mux chi.Router, baseURL string, log *logger.Logger) <-chan struct{} {
	// secret webhook path
	path := "/webhook/" + shortHash(bot.Token)
	public := strings.TrimRight(baseURL, "/") + path

	wh, err := tgbotapi.NewWebhook(public)
	if err != nil {
		log.Fatal("webhook config", "error", err)
	}
	wh.DropPendingUpdates = true
	if _, err := bot.Request(wh); err != nil {
		log.Fatal("set webhook", "error", err)
	}

	updates := make(chan tgbotapi.Update, bot.Buffer)
	mux.Post(path, func(w http.ResponseWriter, req *http.Request) {
		upd, err := bot.HandleUpdate(req)
		if err != nil {
			log.Warn("bad webhook update", "error", err)
			http.Error(w, "bad update", http.StatusBadRequest)
			return
		}
		select {
		case updates <- *upd:
		case <-req.Context().Done():
		}
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case upd := <-updates:
				if ctx.Err() != nil {
					return
				}
				r.HandleUpdate(upd)
			}
		}
	}()
	log.Info("webhook mode", "path", path)
	return done
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
	return time.Second
}

type updateSource interface {
	GetUpdates(tgbotapi.UpdateConfig) ([]tgbotapi.Update, error)
}

// runPolling long-polls src until ctx is done. It returns only after the
// last handle call has returned.
func runPolling(ctx context.Context, src updateSource, handle func(tgbotapi.Update), log *logger.Logger) {
	offset := 0
	const (
		baseDelay = time.Second
		maxDelay  = 15 * time.Second
	)
	log.Info("polling mode")

	for {
		if ctx.Err() != nil {
			log.Info("polling stopped")
			return
		}

		u := tgbotapi.NewUpdate(offset)
		u.Timeout = 30 // long polling, seconds

		updates, err := src.GetUpdates(u)
		if err != nil {
			d := min(max(retryDelayFromError(err), baseDelay), maxDelay)
			log.Warn("polling error", "error", err, "retry_in", d)
			sleep(ctx, d)
			continue
		}

		for _, upd := range updates {
			if ctx.Err() != nil {
				break
			}
			if upd.UpdateID >= offset {
				offset = upd.UpdateID + 1
			}
			handle(upd)
		}
		if len(updates) == 0 {
			sleep(ctx, 200*time.Millisecond)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// shortHash is an FNV-1a hex digest of the token, stable across restarts.
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
