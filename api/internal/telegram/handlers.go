package telegram

import (
	"context"
	"errors"

	"workflow-architect/api/internal/analysis"
	"workflow-architect/api/internal/session"
)

// acceptText routes free text by state: instructions before the first
// analysis, refinement request once a result is shown.
func (r *Router) acceptText(chatID int64, text string) {
	sess := r.Sessions.Get(chatID)
	st := sess.State()
	switch st {
	case session.Empty:
		r.send(chatID, textNeedImage)
	case session.ImageLoaded, session.ResultShown:
		if err := stageText(sess, st, text); err != nil {
			r.replyErr(chatID, err)
			return
		}
		if st == session.ImageLoaded {
			r.sendWithKeyboard(chatID, textInstructionsSaved, imageKeyboard())
		} else {
			r.sendWithKeyboard(chatID, textRefineSaved, resultKeyboard(sess.Snapshot()))
		}
	default:
		r.send(chatID, textBusy)
	}
}

// stageText stores text as instructions or as a refinement request, picked
// by st. The session rechecks the state, so a change since st was read comes
// back as an error.
func stageText(sess *session.Session, st session.State, text string) error {
	switch st {
	case session.ImageLoaded:
		return sess.SetInstructions(text)
	case session.ResultShown:
		return sess.SetRefineText(text)
	}
	return nil
}

// onAnalyze handles /analyze [text] and the analyze/refine buttons.
func (r *Router) onAnalyze(chatID int64, text string) {
	sess := r.Sessions.Get(chatID)
	st := sess.State()
	switch st {
	case session.Empty:
		r.send(chatID, textNeedImage)
	case session.ImageLoaded, session.ResultShown:
		if text != "" {
			if err := stageText(sess, st, text); err != nil {
				r.replyErr(chatID, err)
				return
			}
		}
		r.startAnalysis(chatID, st == session.ResultShown)
	default:
		r.send(chatID, textBusy)
	}
}

func (r *Router) onStartOver(chatID int64) {
	if err := r.Sessions.Get(chatID).StartOver(); err != nil {
		r.replyErr(chatID, err)
		return
	}
	r.sendWithKeyboard(chatID, textStartOver, imageKeyboard())
}

func (r *Router) onDropReference(chatID int64) {
	sess := r.Sessions.Get(chatID)
	if err := sess.DropReference(); err != nil {
		r.replyErr(chatID, err)
		return
	}
	r.sendWithKeyboard(chatID, textReferenceDropped, resultKeyboard(sess.Snapshot()))
}

func (r *Router) onClearImage(chatID int64) {
	if err := r.Sessions.Get(chatID).ClearImage(); err != nil {
		r.replyErr(chatID, err)
		return
	}
	r.send(chatID, textImageCleared)
}

// startAnalysis runs one request in the background. The session rejects a
// second one with ErrBusy until this one settles.
func (r *Router) startAnalysis(chatID int64, refine bool) {
	sess := r.Sessions.Get(chatID)
	gen := r.EngManager.Get(chatID)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		res, err := sess.Run(context.Background(), func(ctx context.Context, in analysis.Input) (*analysis.AnalysisResult, error) {
			if refine {
				r.send(chatID, textRefining)
			} else {
				r.send(chatID, textAnalyzing)
			}
			return r.Service.Analyze(ctx, gen, in)
		}, refine)
		if err != nil {
			r.replyErr(chatID, err)
			return
		}
		r.sendResult(chatID, res, sess.Snapshot())
	}()
}

// replyErr maps session and analysis errors to user messages. All three
// analysis failures collapse into one generic message.
func (r *Router) replyErr(chatID int64, err error) {
	var (
		te *session.TransitionError
		ie *analysis.InvalidInputError
		tr *analysis.TransportError
		pe *analysis.ResultParseError
	)
	switch {
	case errors.Is(err, session.ErrBusy):
		r.send(chatID, textBusy)
	case errors.Is(err, session.ErrNothingToRefine):
		r.send(chatID, textNothingToRefine)
	case errors.Is(err, session.ErrReadPending):
		r.send(chatID, textReadPending)
	case errors.Is(err, session.ErrNotImage):
		r.send(chatID, textNotImage)
	case errors.Is(err, session.ErrUnsupportedFile):
		r.send(chatID, textUnsupportedFile)
	case errors.Is(err, errTooLarge):
		r.send(chatID, textTooLarge)
	case errors.As(err, &ie), errors.As(err, &tr), errors.As(err, &pe):
		r.send(chatID, textAnalysisFailed)
	case errors.As(err, &te):
		r.send(chatID, stateHint(te.From))
	default:
		r.log().Error("telegram", "chat_id", chatID, "error", err)
		r.send(chatID, textAnalysisFailed)
	}
}

func stateHint(st session.State) string {
	switch st {
	case session.Empty:
		return textNeedImage
	case session.ImageLoaded:
		return textNeedAnalysis
	default:
		return textUseButtons
	}
}
