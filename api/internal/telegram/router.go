package telegram

import (
	"net/http"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"workflow-architect/api/internal/analysis"
	"workflow-architect/api/internal/engine"
	"workflow-architect/api/internal/logger"
	"workflow-architect/api/internal/session"
)

// Bot is the part of *tgbotapi.BotAPI the router uses.
type Bot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

type Router struct {
	Bot        Bot
	Sessions   *session.Store
	EngManager *engine.Manager
	Engines    engine.Engines
	Service    *analysis.Service
	Log        *logger.Logger

	// MaxFileBytes caps downloaded photos and documents; 0 means no cap.
	MaxFileBytes int64
	HTTPClient   *http.Client

	wg sync.WaitGroup
}

// HandleUpdate dispatches one update. Analyses run in their own goroutine,
// so the caller's update loop is never blocked by an inference call.
func (r *Router) HandleUpdate(upd tgbotapi.Update) {
	if upd.CallbackQuery != nil {
		r.handleCallback(*upd.CallbackQuery)
		return
	}
	if upd.Message == nil {
		return
	}
	msg := upd.Message
	switch {
	case msg.IsCommand():
		r.HandleCommand(msg)
	case len(msg.Photo) > 0:
		r.acceptPhoto(msg)
	case msg.Document != nil:
		r.acceptDocument(msg)
	case strings.TrimSpace(msg.Text) != "":
		r.acceptText(msg.Chat.ID, msg.Text)
	}
}

func (r *Router) HandleCommand(msg *tgbotapi.Message) {
	cid := msg.Chat.ID
	args := strings.TrimSpace(msg.CommandArguments())
	switch msg.Command() {
	case "start":
		r.send(cid, textStart)
	case "help":
		r.send(cid, textHelp)
	case "health":
		r.send(cid, "✅ OK")
	case "analyze":
		r.onAnalyze(cid, args)
	case "reset":
		r.onStartOver(cid)
	case "new":
		if err := r.Sessions.Get(cid).Reset(); err != nil {
			r.replyErr(cid, err)
			return
		}
		r.EngManager.Reset(cid)
		r.send(cid, textNew)
	case "engine":
		r.handleEngineCommand(cid, args)
	default:
		r.send(cid, "Lệnh không xác định. Gõ /help để xem danh sách lệnh.")
	}
}

// handleEngineCommand switches the engine for this chat.
//
//	/engine
//	/engine gemini [model]
//	/engine gpt [model]
func (r *Router) handleEngineCommand(chatID int64, args string) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		cur := r.EngManager.Get(chatID)
		name := "chưa cấu hình"
		if cur != nil {
			name = cur.Name() + " (" + cur.GetModel() + ")"
		}
		r.send(chatID, "Engine hiện tại: "+name+"\nCách dùng: /engine {gemini|gpt} [model]")
		return
	}
	gen, err := r.Engines.GetEngine(fields[0])
	if err != nil {
		r.send(chatID, "❌ "+err.Error())
		return
	}
	if len(fields) > 1 {
		var ok bool
		if gen, ok = engine.WithModel(gen, fields[1]); !ok {
			r.send(chatID, "⚠️ Engine này không hỗ trợ đổi model, dùng model mặc định.")
		}
	}
	r.EngManager.Set(chatID, gen)
	r.send(chatID, "✅ Engine: "+gen.Name()+" ("+gen.GetModel()+").")
}

// Wait blocks until every running analysis has been settled.
func (r *Router) Wait() { r.wg.Wait() }

func (r *Router) httpClient() *http.Client {
	if r.HTTPClient != nil {
		return r.HTTPClient
	}
	return &http.Client{Timeout: 60 * time.Second}
}

func (r *Router) log() *logger.Logger {
	if r.Log == nil {
		return logger.Discard()
	}
	return r.Log
}
