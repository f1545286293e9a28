package telegram

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	cbAnalyze    = "analyze"
	cbRefine     = "refine"
	cbDropRef    = "drop_ref"
	cbStartOver  = "start_over"
	cbClearImage = "clear_image"
)

func (r *Router) handleCallback(cb tgbotapi.CallbackQuery) {
	if cb.Message == nil {
		return
	}
	cid := cb.Message.Chat.ID
	_, _ = r.Bot.Request(tgbotapi.NewCallback(cb.ID, "")) // ack

	switch cb.Data {
	case cbAnalyze:
		r.removeKeyboard(cid, cb.Message.MessageID)
		r.onAnalyze(cid, "")
	case cbRefine:
		r.onAnalyze(cid, "")
	case cbDropRef:
		r.onDropReference(cid)
	case cbStartOver:
		r.removeKeyboard(cid, cb.Message.MessageID)
		r.onStartOver(cid)
	case cbClearImage:
		r.removeKeyboard(cid, cb.Message.MessageID)
		r.onClearImage(cid)
	}
}

func (r *Router) removeKeyboard(chatID int64, msgID int) {
	edit := tgbotapi.NewEditMessageReplyMarkup(chatID, msgID, tgbotapi.InlineKeyboardMarkup{
		InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{},
	})
	_, _ = r.Bot.Send(edit)
}
