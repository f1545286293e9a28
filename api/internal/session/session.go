package session

import (
	"context"
	"errors"
	"strings"
	"sync"

	"workflow-architect/api/internal/analysis"
	"workflow-architect/api/internal/util"
)

var errNoResult = errors.New("analyzer returned no result")

// AnalyzeFunc performs one inference round trip for the given input.
type AnalyzeFunc func(ctx context.Context, in analysis.Input) (*analysis.AnalysisResult, error)

// Session is the per-user state machine. It owns the primary image and the
// current result; it is the only guard against overlapping requests.
type Session struct {
	mu sync.Mutex

	state        State
	image        []byte
	imageMIME    string
	instructions string
	refineText   string
	reference    *analysis.ReferenceFile
	result       *analysis.AnalysisResult
	lastErr      error
	reading      map[Slot]bool
}

func New() *Session {
	return &Session{reading: make(map[Slot]bool)}
}

// ReferenceInfo describes the pending attachment without exposing its bytes.
type ReferenceInfo struct {
	Name     string
	MIMEType string
	Size     int
}

// Snapshot is a read-only view for rendering.
type Snapshot struct {
	State        State
	HasImage     bool
	ImageMIME    string
	Instructions string
	RefineText   string
	Reference    *ReferenceInfo
	Result       *analysis.AnalysisResult
	Err          error
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		State:        s.state,
		HasImage:     len(s.image) > 0,
		ImageMIME:    s.imageMIME,
		Instructions: s.instructions,
		RefineText:   s.refineText,
		Result:       s.result,
		Err:          s.lastErr,
	}
	if s.reference != nil {
		snap.Reference = &ReferenceInfo{
			Name:     s.reference.Name,
			MIMEType: s.reference.MIMEType,
			Size:     len(s.reference.Data),
		}
	}
	return snap
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LoadImage selects a new primary image and fully resets the session.
func (s *Session) LoadImage(data []byte, mime string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.InFlight() {
		return ErrBusy
	}
	mime = util.PickMIME(mime, "", data)
	if len(data) == 0 || !util.IsImageMIME(mime) {
		return ErrNotImage
	}
	s.image = data
	s.imageMIME = mime
	s.instructions = ""
	s.refineText = ""
	s.reference = nil
	s.result = nil
	s.lastErr = nil
	s.state = ImageLoaded
	return nil
}

// ClearImage drops the image before any analysis: ImageLoaded → Empty.
func (s *Session) ClearImage() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != ImageLoaded {
		return s.deny("clear image")
	}
	s.image = nil
	s.imageMIME = ""
	s.instructions = ""
	s.lastErr = nil
	s.state = Empty
	return nil
}

// SetInstructions edits the pre-analysis instructions.
func (s *Session) SetInstructions(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != ImageLoaded {
		return s.deny("set instructions")
	}
	s.instructions = text
	return nil
}

func (s *Session) SetRefineText(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != ResultShown {
		return s.deny("set refinement text")
	}
	s.refineText = text
	return nil
}

// AttachReference replaces the pending refinement attachment.
func (s *Session) AttachReference(ref analysis.ReferenceFile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != ResultShown {
		return s.deny("attach reference")
	}
	ref.MIMEType = util.PickMIME(ref.MIMEType, "", ref.Data)
	if len(ref.Data) == 0 || !util.IsReferenceMIME(ref.MIMEType) {
		return ErrUnsupportedFile
	}
	s.reference = &ref
	return nil
}

func (s *Session) DropReference() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != ResultShown {
		return s.deny("drop reference")
	}
	s.reference = nil
	return nil
}

// StartOver discards the current result: ResultShown → ImageLoaded.
// The image and the pre-analysis instructions are kept.
func (s *Session) StartOver() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != ResultShown {
		return s.deny("start over")
	}
	s.result = nil
	s.refineText = ""
	s.reference = nil
	s.lastErr = nil
	s.state = ImageLoaded
	return nil
}

// Reset returns to Empty from any idle state, dropping the image too.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.InFlight() {
		return ErrBusy
	}
	s.image = nil
	s.imageMIME = ""
	s.instructions = ""
	s.refineText = ""
	s.reference = nil
	s.result = nil
	s.lastErr = nil
	s.state = Empty
	return nil
}

// BeginAnalysis moves ImageLoaded → Analyzing and returns the request input.
func (s *Session) BeginAnalysis() (analysis.Input, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.InFlight() {
		return analysis.Input{}, ErrBusy
	}
	if s.state != ImageLoaded {
		return analysis.Input{}, s.deny("analyze")
	}
	s.lastErr = nil
	s.state = Analyzing
	return analysis.Input{
		Image:        s.image,
		ImageMIME:    s.imageMIME,
		Instructions: s.instructions,
	}, nil
}

// BeginRefinement moves ResultShown → Refining. It fails with
// ErrNothingToRefine, without changing state, when there is neither text nor
// an attachment.
func (s *Session) BeginRefinement() (analysis.Input, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.InFlight() {
		return analysis.Input{}, ErrBusy
	}
	if s.state != ResultShown {
		return analysis.Input{}, s.deny("refine")
	}
	text := strings.TrimSpace(s.refineText)
	if text == "" && s.reference == nil {
		return analysis.Input{}, ErrNothingToRefine
	}
	if text == "" {
		// attachment only: fall back to the pre-analysis instructions
		text = s.instructions
	}
	s.lastErr = nil
	s.state = Refining
	in := analysis.Input{
		Image:        s.image,
		ImageMIME:    s.imageMIME,
		Instructions: text,
		IsRefinement: true,
	}
	if s.reference != nil {
		ref := *s.reference
		in.Reference = &ref
	}
	return in, nil
}

// Settle completes the in-flight request. A successful result replaces the
// previous one wholesale.
func (s *Session) Settle(res *analysis.AnalysisResult, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil && res == nil {
		err = &analysis.ResultParseError{Err: errNoResult}
	}
	switch s.state {
	case Analyzing:
		if err != nil {
			s.lastErr = err
			s.state = ImageLoaded
			return nil
		}
		s.result = res
		s.state = ResultShown
	case Refining:
		if err != nil {
			// keep the old result and the unsent refinement input
			s.lastErr = err
			s.state = ResultShown
			return nil
		}
		s.result = res
		s.refineText = ""
		s.reference = nil
		s.state = ResultShown
	default:
		return ErrNotInFlight
	}
	s.lastErr = nil
	return nil
}

// Run performs Begin → analyze → Settle. analyze runs without the lock held.
func (s *Session) Run(ctx context.Context, analyze AnalyzeFunc, refine bool) (*analysis.AnalysisResult, error) {
	var (
		in  analysis.Input
		err error
	)
	if refine {
		in, err = s.BeginRefinement()
	} else {
		in, err = s.BeginAnalysis()
	}
	if err != nil {
		return nil, err
	}
	res, err := analyze(ctx, in)
	if err != nil {
		res = nil
	}
	if serr := s.Settle(res, err); serr != nil && err == nil {
		return nil, serr
	}
	return res, err
}

// BeginRead marks a file read into slot as pending. A second read into the
// same slot is rejected until EndRead.
func (s *Session) BeginRead(slot Slot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.InFlight() {
		return ErrBusy
	}
	if s.reading[slot] {
		return ErrReadPending
	}
	if s.reading == nil {
		s.reading = make(map[Slot]bool)
	}
	s.reading[slot] = true
	return nil
}

func (s *Session) EndRead(slot Slot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.reading, slot)
}

func (s *Session) deny(op string) error {
	if s.state.InFlight() {
		return ErrBusy
	}
	return &TransitionError{Op: op, From: s.state}
}
