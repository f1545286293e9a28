package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sashabaranov/go-openai"

	"workflow-architect/api/internal/analysis"
)

func testRequest(t *testing.T, ref *analysis.ReferenceFile) analysis.Request {
	t.Helper()
	req, err := analysis.NewBuilder("").Build(analysis.Input{
		Image:        []byte("\x89PNG\r\n\x1a\n\x00\x00"),
		Instructions: "thêm bảng",
		IsRefinement: ref != nil,
		Reference:    ref,
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return req
}

func TestMessagePartsOrder(t *testing.T) {
	req := testRequest(t, &analysis.ReferenceFile{Data: []byte("ghi chú bổ sung"), MIMEType: "text/plain"})
	parts, err := messageParts(req.Parts)
	if err != nil {
		t.Fatal(err)
	}
	if len(parts) != 3 {
		t.Fatalf("len = %d", len(parts))
	}
	if parts[0].Type != openai.ChatMessagePartTypeImageURL ||
		!strings.HasPrefix(parts[0].ImageURL.URL, "data:image/png;base64,") {
		t.Errorf("part 0 = %+v", parts[0])
	}
	if parts[1].Type != openai.ChatMessagePartTypeText || parts[1].Text != req.Prompt {
		t.Errorf("part 1 is not the prompt")
	}
	if !strings.Contains(parts[2].Text, "ghi chú bổ sung") {
		t.Errorf("part 2 = %q", parts[2].Text)
	}
}

func TestMessagePartsImageReference(t *testing.T) {
	req := testRequest(t, &analysis.ReferenceFile{Data: []byte{0xFF, 0xD8, 0xFF}, MIMEType: "image/jpeg"})
	parts, err := messageParts(req.Parts)
	if err != nil {
		t.Fatal(err)
	}
	if parts[2].ImageURL == nil || !strings.HasPrefix(parts[2].ImageURL.URL, "data:image/jpeg;base64,") {
		t.Errorf("reference part = %+v", parts[2])
	}
}

func TestStrictSchemaDoesNotMutate(t *testing.T) {
	src := analysis.ResponseSchema()
	raw, err := strictSchema(src)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := src["additionalProperties"]; ok {
		t.Error("source schema mutated")
	}
	var got map[string]any
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatal(err)
	}
	if got["additionalProperties"] != false {
		t.Errorf("additionalProperties = %v", got["additionalProperties"])
	}
}

func TestChatRequestMaxTokens(t *testing.T) {
	req := testRequest(t, nil)
	c, err := New("k", "o3-mini", "").chatRequest(req)
	if err != nil {
		t.Fatal(err)
	}
	if c.MaxCompletionTokens != maxTokens || c.MaxTokens != 0 {
		t.Errorf("reasoning model tokens = %d/%d", c.MaxCompletionTokens, c.MaxTokens)
	}
	c, _ = New("k", "", "").chatRequest(req)
	if c.Model != DefaultModel || c.MaxTokens != maxTokens {
		t.Errorf("default model request = %s/%d", c.Model, c.MaxTokens)
	}
	if c.ResponseFormat == nil || c.ResponseFormat.JSONSchema == nil || !c.ResponseFormat.JSONSchema.Strict {
		t.Errorf("response format = %+v", c.ResponseFormat)
	}
}

func TestGenerateRoundTrip(t *testing.T) {
	var seen map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("auth header = %q", got)
		}
		_ = json.NewDecoder(r.Body).Decode(&seen)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "x",
			"object": "chat.completion",
			"choices": []any{map[string]any{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": "```json\n{\"ok\":true}\n```"},
			}},
		})
	}))
	defer srv.Close()

	e := New("test-key", "gpt-4o", srv.URL+"/v1")

	out, err := e.Generate(context.Background(), testRequest(t, nil))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != `{"ok":true}` {
		t.Errorf("out = %q", out)
	}
	rf, _ := seen["response_format"].(map[string]any)
	if rf["type"] != "json_schema" {
		t.Errorf("response_format = %v", seen["response_format"])
	}
	if seen["model"] != "gpt-4o" {
		t.Errorf("model = %v", seen["model"])
	}
}

func TestGenerateHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"message":"quota","type":"rate_limit"}}`)
	}))
	defer srv.Close()

	if _, err := New("k", "", srv.URL+"/v1/").Generate(context.Background(), testRequest(t, nil)); err == nil {
		t.Error("expected error")
	}
}
