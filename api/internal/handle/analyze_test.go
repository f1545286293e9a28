package handle

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"workflow-architect/api/internal/analysis"
	"workflow-architect/api/internal/engine"
	"workflow-architect/api/internal/logger"
)

const validPayload = `{"workflowSummary":"s",
 "steps":[{"title":"a","description":"b","type":"start"}],
 "databaseSchema":[{"tableName":"NhaThau","reasoning":"r","fields":[
   {"name":"fMaNhaThau","type":"int","isPrimaryKey":true,"isForeignKey":false,"description":"d"}]}],
 "optimizationTips":["t"]}`

var pngB64 = base64.StdEncoding.EncodeToString([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"))

type fakeGen struct {
	raw  string
	err  error
	reqs []analysis.Request
}

func (g *fakeGen) Name() string     { return "fake" }
func (g *fakeGen) GetModel() string { return "fake-1" }
func (g *fakeGen) Generate(_ context.Context, req analysis.Request) (string, error) {
	g.reqs = append(g.reqs, req)
	return g.raw, g.err
}

func newHandle(gen analysis.Generator, maxBytes int64) *Handle {
	return New(&engine.Engines{Gemini: gen}, analysis.NewService(nil, nil), "gemini", maxBytes, nil)
}

func post(h *Handle, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/workflow/analyze", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Analyze(rec, req)
	return rec
}

func TestAnalyzeOK(t *testing.T) {
	gen := &fakeGen{raw: validPayload}
	rec := post(newHandle(gen, 1<<20), `{"image":"data:image/png;base64,`+pngB64+`","instructions":"thêm bảng"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	var got analysis.AnalysisResult
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.DatabaseSchema[0].Fields[0].Name != "fMaNhaThau" {
		t.Errorf("result = %+v", got)
	}
	if len(gen.reqs) != 1 || gen.reqs[0].Parts[0].MIMEType != "image/png" {
		t.Errorf("request parts = %+v", gen.reqs)
	}
}

func TestAnalyzeRejectsBadInput(t *testing.T) {
	cases := []struct {
		name string
		body string
		code int
	}{
		{"bad json", `{`, http.StatusBadRequest},
		{"no image", `{}`, http.StatusBadRequest},
		{"bad base64", `{"image":"***"}`, http.StatusBadRequest},
		{"not an image", `{"image":"` + base64.StdEncoding.EncodeToString([]byte("%PDF-1.4")) + `"}`, http.StatusBadRequest},
		{"empty refinement", `{"image":"` + pngB64 + `","is_refinement":true,"instructions":"  "}`, http.StatusBadRequest},
		{"unsupported reference", `{"image":"` + pngB64 + `","reference_file":{"data":"UEsDBA==","mime_type":"application/zip"}}`, http.StatusBadRequest},
		{"unknown engine", `{"image":"` + pngB64 + `","llm_name":"yandex"}`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gen := &fakeGen{raw: validPayload}
			rec := post(newHandle(gen, 1<<20), tc.body)
			if rec.Code != tc.code {
				t.Errorf("status = %d, want %d: %s", rec.Code, tc.code, rec.Body)
			}
			if len(gen.reqs) != 0 {
				t.Errorf("engine called for bad input")
			}
		})
	}
}

func TestAnalyzeUpstreamFailuresAreGeneric(t *testing.T) {
	for name, gen := range map[string]*fakeGen{
		"transport": {err: errors.New("dial tcp: refused")},
		"parse":     {raw: `{"workflowSummary":"s"}`},
	} {
		t.Run(name, func(t *testing.T) {
			rec := post(newHandle(gen, 1<<20), `{"image":"`+pngB64+`"}`)
			if rec.Code != http.StatusBadGateway {
				t.Fatalf("status = %d", rec.Code)
			}
			var e errorResponse
			_ = json.Unmarshal(rec.Body.Bytes(), &e)
			if e.Error != failedMessage {
				t.Errorf("error = %q", e.Error)
			}
			if strings.Contains(rec.Body.String(), "refused") {
				t.Error("upstream detail leaked")
			}
		})
	}
}

func TestAnalyzeFailureIsLogged(t *testing.T) {
	var buf bytes.Buffer
	gen := &fakeGen{err: errors.New("dial tcp: refused")}
	h := New(&engine.Engines{Gemini: gen}, analysis.NewService(nil, nil), "gemini", 1<<20, logger.NewWriter(&buf, "info"))
	if rec := post(h, `{"image":"`+pngB64+`"}`); rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", rec.Code)
	}
	out := buf.String()
	if !strings.Contains(out, `"msg":"analyze failed"`) || !strings.Contains(out, "refused") {
		t.Errorf("log = %s", out)
	}
}

func TestAnalyzeSizeLimits(t *testing.T) {
	gen := &fakeGen{raw: validPayload}
	rec := post(newHandle(gen, 8), `{"image":"`+pngB64+`"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("oversized image status = %d", rec.Code)
	}
	big := strings.Repeat("A", 200000)
	rec = post(newHandle(gen, 16), `{"image":"`+big+`"}`)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("oversized body status = %d", rec.Code)
	}
}
