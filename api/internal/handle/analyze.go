package handle

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"workflow-architect/api/internal/analysis"
	"workflow-architect/api/internal/util"
)

// failedMessage is the one message shown for any failed analysis.
const failedMessage = "Đã có lỗi xảy ra trong quá trình phân tích. Vui lòng thử lại."

type ReferenceFileJSON struct {
	Data     string `json:"data"` // base64 or data URL
	MIMEType string `json:"mime_type,omitempty"`
	Name     string `json:"name,omitempty"`
}

type AnalyzeRequest struct {
	LLMName       string             `json:"llm_name,omitempty"`
	Image         string             `json:"image"` // base64 or data URL
	ImageMIME     string             `json:"image_mime,omitempty"`
	Instructions  string             `json:"instructions,omitempty"`
	IsRefinement  bool               `json:"is_refinement,omitempty"`
	ReferenceFile *ReferenceFileJSON `json:"reference_file,omitempty"`
}

// Analyze handles POST /v1/workflow/analyze. It is stateless: the caller
// holds the session and sends everything needed for one round trip.
func (h *Handle) Analyze(w http.ResponseWriter, r *http.Request) {
	if h.maxBytes > 0 {
		// two base64 files plus JSON framing
		r.Body = http.MaxBytesReader(w, r.Body, 3*h.maxBytes+1<<16)
	}
	var req AnalyzeRequest
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&req); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "bad json: "+err.Error())
		return
	}

	in, ok := h.decodeInput(w, req)
	if !ok {
		return
	}

	name := strings.TrimSpace(req.LLMName)
	if name == "" {
		name = h.def
	}
	gen, err := h.engs.GetEngine(name)
	if err != nil {
		h.log.Warn("engine lookup", "llm_name", name, "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.svc.Analyze(r.Context(), gen, in)
	if err != nil {
		var ie *analysis.InvalidInputError
		if errors.As(err, &ie) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid input", Field: ie.Field, Reason: ie.Reason})
			return
		}
		h.log.Error("analyze failed", "engine", gen.Name(), "model", gen.GetModel(), "error", err)
		writeError(w, http.StatusBadGateway, failedMessage)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handle) decodeInput(w http.ResponseWriter, req AnalyzeRequest) (analysis.Input, bool) {
	bad := func(field, reason string) (analysis.Input, bool) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid input", Field: field, Reason: reason})
		return analysis.Input{}, false
	}

	if strings.TrimSpace(req.Image) == "" {
		return bad("image", "primary image is required")
	}
	img, hint, err := util.DecodeBase64MaybeDataURL(req.Image)
	if err != nil {
		return bad("image", "bad base64")
	}
	if h.tooLarge(img) {
		return bad("image", "file too large")
	}
	in := analysis.Input{
		Image:        img,
		ImageMIME:    util.PickMIME(req.ImageMIME, hint, img),
		Instructions: req.Instructions,
		IsRefinement: req.IsRefinement,
	}

	if rf := req.ReferenceFile; rf != nil {
		data, hint, err := util.DecodeBase64MaybeDataURL(rf.Data)
		if err != nil {
			return bad("reference_file", "bad base64")
		}
		if h.tooLarge(data) {
			return bad("reference_file", "file too large")
		}
		in.Reference = &analysis.ReferenceFile{
			Data:     data,
			MIMEType: util.PickMIME(rf.MIMEType, hint, data),
			Name:     rf.Name,
		}
	}

	if in.IsRefinement && strings.TrimSpace(in.Instructions) == "" && in.Reference == nil {
		return bad("instructions", "refinement needs text or a reference file")
	}
	return in, true
}

func (h *Handle) tooLarge(b []byte) bool {
	return h.maxBytes > 0 && int64(len(b)) > h.maxBytes
}
