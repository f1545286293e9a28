package telegram

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"workflow-architect/api/internal/analysis"
	"workflow-architect/api/internal/session"
	"workflow-architect/api/internal/util"
)

var errTooLarge = errors.New("file too large")

// acceptPhoto loads the diagram, or attaches the photo as a reference once a
// result is shown.
func (r *Router) acceptPhoto(msg *tgbotapi.Message) {
	ph := msg.Photo[len(msg.Photo)-1] // largest size
	if r.tooLarge(int(ph.FileSize)) {
		r.send(msg.Chat.ID, textTooLarge)
		return
	}
	r.acceptFile(msg.Chat.ID, ph.FileID, "", "photo.jpg")
}

func (r *Router) acceptDocument(msg *tgbotapi.Message) {
	doc := msg.Document
	if r.tooLarge(int(doc.FileSize)) {
		r.send(msg.Chat.ID, textTooLarge)
		return
	}
	r.acceptFile(msg.Chat.ID, doc.FileID, doc.MimeType, doc.FileName)
}

func (r *Router) acceptFile(chatID int64, fileID, mime, name string) {
	sess := r.Sessions.Get(chatID)
	slot := session.SlotImage
	if sess.State() == session.ResultShown {
		slot = session.SlotReference
	}
	if err := sess.BeginRead(slot); err != nil {
		r.replyErr(chatID, err)
		return
	}
	data, err := r.download(fileID)
	sess.EndRead(slot)
	if err != nil {
		r.log().Error("download file", "chat_id", chatID, "slot", slot.String(), "error", err)
		if errors.Is(err, errTooLarge) {
			r.send(chatID, textTooLarge)
		} else {
			r.send(chatID, textDownloadFailed)
		}
		return
	}
	if util.BaseMIME(mime) == "application/octet-stream" {
		mime = ""
	}
	mime = util.PickMIME(mime, "", data)

	if slot == session.SlotImage {
		if err := sess.LoadImage(data, mime); err != nil {
			r.replyErr(chatID, err)
			return
		}
		r.sendWithKeyboard(chatID, textImageLoaded, imageKeyboard())
		return
	}
	ref := analysis.ReferenceFile{Data: data, MIMEType: mime, Name: name}
	if err := sess.AttachReference(ref); err != nil {
		r.replyErr(chatID, err)
		return
	}
	r.sendWithKeyboard(chatID, fmt.Sprintf(textReferenceAttached, displayName(name, mime)), resultKeyboard(sess.Snapshot()))
}

func (r *Router) download(fileID string) ([]byte, error) {
	url, err := r.Bot.GetFileDirectURL(fileID)
	if err != nil {
		return nil, err
	}
	resp, err := r.httpClient().Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(b))
	}
	if r.MaxFileBytes <= 0 {
		return io.ReadAll(resp.Body)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, r.MaxFileBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > r.MaxFileBytes {
		return nil, errTooLarge
	}
	return data, nil
}

func (r *Router) tooLarge(size int) bool {
	return r.MaxFileBytes > 0 && int64(size) > r.MaxFileBytes
}

func displayName(name, mime string) string {
	if name != "" {
		return name
	}
	return mime
}
