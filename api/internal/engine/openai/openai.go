package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"workflow-architect/api/internal/analysis"
	"workflow-architect/api/internal/extract"
	"workflow-architect/api/internal/util"
)

const (
	DefaultModel = "gpt-4o-mini"
	maxTokens    = 8192
	schemaName   = "analysis_result"
)

type Engine struct {
	APIKey string
	Model  string
	client *openai.Client
}

// New builds an engine; baseURL is optional and points at an
// OpenAI-compatible endpoint.
func New(apiKey, model, baseURL string) *Engine {
	apiKey = strings.TrimSpace(apiKey)
	model = strings.TrimSpace(model)
	if model == "" {
		model = DefaultModel
	}
	cfg := openai.DefaultConfig(apiKey)
	if u := strings.TrimSpace(baseURL); u != "" {
		cfg.BaseURL = strings.TrimRight(u, "/")
	}
	return &Engine{
		APIKey: apiKey,
		Model:  model,
		client: openai.NewClientWithConfig(cfg),
	}
}

func (e *Engine) Name() string     { return "gpt" }
func (e *Engine) GetModel() string { return e.Model }

func (e *Engine) WithModel(model string) *Engine {
	c := *e
	if m := strings.TrimSpace(model); m != "" {
		c.Model = m
	}
	return &c
}

func (e *Engine) Generate(ctx context.Context, req analysis.Request) (string, error) {
	if e.APIKey == "" {
		return "", errors.New("OPENAI_API_KEY is empty")
	}
	chat, err := e.chatRequest(req)
	if err != nil {
		return "", err
	}
	resp, err := e.client.CreateChatCompletion(ctx, chat)
	if err != nil {
		return "", fmt.Errorf("create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: empty response")
	}
	out := strings.TrimSpace(resp.Choices[0].Message.Content)
	if out == "" {
		return "", fmt.Errorf("openai: empty content (finish_reason=%s)", resp.Choices[0].FinishReason)
	}
	return util.StripCodeFences(out), nil
}

func (e *Engine) chatRequest(req analysis.Request) (openai.ChatCompletionRequest, error) {
	content, err := messageParts(req.Parts)
	if err != nil {
		return openai.ChatCompletionRequest{}, err
	}
	chat := openai.ChatCompletionRequest{
		Model: e.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, MultiContent: content},
		},
	}
	if req.Schema != nil {
		schema, err := strictSchema(req.Schema)
		if err != nil {
			return openai.ChatCompletionRequest{}, err
		}
		chat.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   schemaName,
				Schema: schema,
				Strict: true,
			},
		}
	}
	// reasoning models (o1/o3/o4/gpt-5*) reject max_tokens
	if isReasoningModel(e.Model) {
		chat.MaxCompletionTokens = maxTokens
	} else {
		chat.MaxTokens = maxTokens
	}
	return chat, nil
}

// messageParts maps parts one to one, in order. Images go as data URLs;
// PDF and text references are sent as their extracted text.
func messageParts(parts []analysis.Part) ([]openai.ChatMessagePart, error) {
	out := make([]openai.ChatMessagePart, 0, len(parts))
	for _, p := range parts {
		if p.IsText() {
			out = append(out, openai.ChatMessagePart{Type: openai.ChatMessagePartTypeText, Text: p.Text})
			continue
		}
		mime := util.BaseMIME(p.MIMEType)
		if util.IsImageMIME(mime) {
			url := util.MakeDataURL(mime, base64.StdEncoding.EncodeToString(p.Data))
			out = append(out, openai.ChatMessagePart{
				Type:     openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{URL: url, Detail: openai.ImageURLDetailHigh},
			})
			continue
		}
		text, err := extract.Reference(p.Data, mime)
		if err != nil {
			return nil, fmt.Errorf("openai: reference file: %w", err)
		}
		out = append(out, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeText,
			Text: "Reference file (" + mime + "):\n" + text,
		})
	}
	return out, nil
}

func strictSchema(schema map[string]any) (json.RawMessage, error) {
	b, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	// work on a copy: the caller's map stays untouched
	var cp map[string]any
	if err := json.Unmarshal(b, &cp); err != nil {
		return nil, err
	}
	util.FixJSONSchemaStrict(cp)
	return json.Marshal(cp)
}

func isReasoningModel(model string) bool {
	for _, p := range []string{"o1", "o3", "o4", "gpt-5"} {
		if strings.HasPrefix(model, p) {
			return true
		}
	}
	return false
}
