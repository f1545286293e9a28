package telegram

import (
	"fmt"
	"html"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"workflow-architect/api/internal/analysis"
	"workflow-architect/api/internal/session"
	"workflow-architect/api/internal/util"
)

const maxMessageLen = 4096

const (
	textStart = "👋 Xin chào! Gửi ảnh sơ đồ quy trình nghiệp vụ (workflow) để bắt đầu.\n" +
		"Sau khi nhận ảnh, bạn có thể gửi thêm hướng dẫn rồi bấm «Phân tích ngay».\n/help để xem các lệnh."
	textHelp = "Các lệnh:\n" +
		"/analyze [hướng dẫn] – phân tích ảnh, hoặc gửi yêu cầu chỉnh sửa khi đã có kết quả\n" +
		"/reset – xoá kết quả, giữ lại ảnh\n" +
		"/new – bắt đầu với ảnh mới\n" +
		"/engine {gemini|gpt} [model] – chọn engine\n" +
		"/health – kiểm tra bot\n\n" +
		"Khi đã có kết quả: gửi văn bản để yêu cầu chỉnh sửa, gửi ảnh / PDF / .txt để đính kèm tài liệu tham khảo."
	textNew               = "🆕 Đã xoá phiên làm việc và engine về mặc định. Gửi ảnh sơ đồ mới."
	textNeedImage         = "Hãy gửi ảnh sơ đồ quy trình trước."
	textNeedAnalysis      = "Chưa có kết quả. Bấm «Phân tích ngay» để phân tích ảnh."
	textUseButtons        = "Dùng các nút bên dưới kết quả để chỉnh sửa hoặc bắt đầu lại."
	textImageLoaded       = "🖼 Đã nhận ảnh sơ đồ. Gửi thêm hướng dẫn (tuỳ chọn) hoặc bấm «Phân tích ngay»."
	textImageCleared      = "Đã xoá ảnh. Gửi ảnh sơ đồ khác khi sẵn sàng."
	textInstructionsSaved = "✍️ Đã lưu hướng dẫn. Bấm «Phân tích ngay» khi sẵn sàng."
	textRefineSaved       = "✍️ Đã lưu yêu cầu chỉnh sửa. Bấm «Gửi yêu cầu chỉnh sửa» khi sẵn sàng."
	textReferenceAttached = "📎 Đã đính kèm tài liệu tham khảo: %s"
	textReferenceDropped  = "Đã bỏ tệp đính kèm."
	textStartOver         = "Đã xoá kết quả. Ảnh vẫn được giữ, bấm «Phân tích ngay» để phân tích lại."
	textAnalyzing         = "⏳ Đang phân tích sơ đồ…"
	textRefining          = "⏳ Đang cập nhật phân tích theo yêu cầu…"
	textBusy              = "⏳ Đang phân tích, vui lòng đợi kết quả."
	textNothingToRefine   = "Hãy nhập yêu cầu chỉnh sửa hoặc đính kèm tệp tham khảo trước."
	textReadPending       = "Đang tải tệp trước đó, vui lòng đợi."
	textNotImage          = "Tệp chính phải là ảnh (PNG, JPEG…)."
	textUnsupportedFile   = "Chỉ chấp nhận ảnh, PDF hoặc tệp văn bản (.txt)."
	textTooLarge          = "Tệp quá lớn."
	textDownloadFailed    = "Không tải được tệp từ Telegram. Vui lòng gửi lại."
	textAnalysisFailed    = "Đã có lỗi xảy ra trong quá trình phân tích. Vui lòng thử lại."
)

func imageKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("🔍 Phân tích ngay", cbAnalyze),
		tgbotapi.NewInlineKeyboardButtonData("🗑 Xoá ảnh", cbClearImage),
	))
}

func resultKeyboard(snap session.Snapshot) tgbotapi.InlineKeyboardMarkup {
	rows := [][]tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("✏️ Gửi yêu cầu chỉnh sửa", cbRefine)),
	}
	if snap.Reference != nil {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📎 Bỏ tệp đính kèm", cbDropRef)))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("↩️ Bắt đầu lại", cbStartOver)))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func (r *Router) send(chatID int64, text string) {
	_, _ = r.Bot.Send(tgbotapi.NewMessage(chatID, text))
}

func (r *Router) sendWithKeyboard(chatID int64, text string, kb tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = kb
	_, _ = r.Bot.Send(msg)
}

// sendResult posts the rendered result as HTML, split to the message limit;
// the keyboard goes on the last chunk.
func (r *Router) sendResult(chatID int64, res *analysis.AnalysisResult, snap session.Snapshot) {
	chunks := util.SplitChunks(renderResult(res), maxMessageLen)
	for i, c := range chunks {
		msg := tgbotapi.NewMessage(chatID, c)
		msg.ParseMode = tgbotapi.ModeHTML
		msg.DisableWebPagePreview = true
		if i == len(chunks)-1 {
			msg.ReplyMarkup = resultKeyboard(snap)
		}
		if _, err := r.Bot.Send(msg); err != nil {
			r.log().Error("send result", "chat_id", chatID, "chunk", i, "error", err)
		}
	}
}

var stepIcons = map[analysis.StepType]string{
	analysis.StepStart:    "▶️",
	analysis.StepProcess:  "⚙️",
	analysis.StepDecision: "🔀",
	analysis.StepEnd:      "🏁",
}

// maxLineLen bounds a rendered line so that chunking never has to cut one.
// Short fields are truncated in runes; an escaped rune is at most six bytes.
const maxLineLen = maxMessageLen - 128

// renderResult formats a result as Telegram HTML. Every line is closed on its
// own and shorter than maxLineLen, so the text can be split on line boundaries.
func renderResult(res *analysis.AnalysisResult) string {
	var b strings.Builder
	esc := html.EscapeString

	b.WriteString("<b>📋 Tóm tắt quy trình</b>\n")
	for _, line := range escapeLines(strings.TrimSpace(res.WorkflowSummary), maxLineLen) {
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("\n")

	b.WriteString("<b>🔢 Các bước</b>\n")
	for i, st := range res.Steps {
		fmt.Fprintf(&b, "%d. %s <b>%s</b>", i+1, stepMarker(st.Type), esc(util.Truncate(flat(st.Title), 100)))
		if d := strings.TrimSpace(st.Description); d != "" {
			b.WriteString(": ")
			b.WriteString(esc(util.Truncate(flat(d), 500)))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n<b>🗄 Lược đồ CSDL đề xuất</b>\n")
	for _, t := range res.DatabaseSchema {
		fmt.Fprintf(&b, "\n<b>%s</b>\n", esc(util.Truncate(flat(t.TableName), 100)))
		for _, f := range t.Fields {
			fmt.Fprintf(&b, "• <code>%s</code> %s", esc(util.Truncate(flat(f.Name), 100)), esc(util.Truncate(flat(f.Type), 60)))
			if f.IsPrimaryKey {
				b.WriteString(" 🔑PK")
			}
			if f.IsForeignKey {
				b.WriteString(" 🔗FK")
			}
			if d := strings.TrimSpace(f.Description); d != "" {
				b.WriteString(": ")
				b.WriteString(esc(util.Truncate(flat(d), 300)))
			}
			b.WriteString("\n")
		}
		if rs := strings.TrimSpace(t.Reasoning); rs != "" {
			fmt.Fprintf(&b, "<i>%s</i>\n", esc(util.Truncate(flat(rs), 600)))
		}
	}

	if len(res.OptimizationTips) > 0 {
		b.WriteString("\n<b>💡 Gợi ý tối ưu</b>\n")
		for _, tip := range res.OptimizationTips {
			b.WriteString("• ")
			b.WriteString(esc(util.Truncate(flat(tip), 600)))
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// stepMarker shows an unknown step type literally, marked so it is not
// mistaken for one of the four known kinds.
func stepMarker(t analysis.StepType) string {
	if t.Known() {
		return stepIcons[analysis.StepType(strings.ToLower(strings.TrimSpace(string(t))))]
	}
	return "❓<i>" + html.EscapeString(util.Truncate(flat(string(t)), 40)) + "</i>"
}

// flat joins s onto one line so a tag around it never spans a chunk cut.
func flat(s string) string { return strings.Join(strings.Fields(s), " ") }

// escapeLines escapes s line by line, breaking any line whose escaped form
// exceeds max bytes between runes so no entity is ever split.
func escapeLines(s string, max int) []string {
	var out []string
	var cur strings.Builder
	for _, line := range strings.Split(s, "\n") {
		for _, r := range line {
			e := html.EscapeString(string(r))
			if cur.Len()+len(e) > max {
				out = append(out, cur.String())
				cur.Reset()
			}
			cur.WriteString(e)
		}
		out = append(out, cur.String())
		cur.Reset()
	}
	return out
}
