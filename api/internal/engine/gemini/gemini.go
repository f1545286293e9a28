package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"workflow-architect/api/internal/analysis"
	"workflow-architect/api/internal/util"
)

const DefaultModel = "gemini-2.5-flash"

type Engine struct {
	APIKey string
	Model  string
	opts   []option.ClientOption
}

func New(apiKey, model string, opts ...option.ClientOption) *Engine {
	model = strings.TrimSpace(model)
	if model == "" {
		model = DefaultModel
	}
	return &Engine{
		APIKey: strings.TrimSpace(apiKey),
		Model:  model,
		opts:   opts,
	}
}

func (e *Engine) Name() string     { return "gemini" }
func (e *Engine) GetModel() string { return e.Model }

// WithModel returns a copy bound to another model.
func (e *Engine) WithModel(model string) *Engine {
	c := *e
	if m := strings.TrimSpace(model); m != "" {
		c.Model = m
	}
	return &c
}

// Generate sends one request and returns the first text candidate. No retries.
func (e *Engine) Generate(ctx context.Context, req analysis.Request) (string, error) {
	if e.APIKey == "" {
		return "", errors.New("GEMINI_API_KEY is empty")
	}
	schema, err := toSchema(req.Schema)
	if err != nil {
		return "", fmt.Errorf("gemini: response schema: %w", err)
	}

	opts := append([]option.ClientOption{option.WithAPIKey(e.APIKey)}, e.opts...)
	cl, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return "", err
	}
	defer cl.Close()

	m := cl.GenerativeModel(e.Model)
	if m == nil {
		return "", fmt.Errorf("gemini: model is nil")
	}
	m.GenerationConfig = genai.GenerationConfig{
		Temperature:      ptrFloat32(0),
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema,
	}

	resp, err := m.GenerateContent(ctx, toParts(req.Parts)...)
	if err != nil {
		return "", err
	}
	txt := firstText(resp)
	if txt == "" {
		return "", fmt.Errorf("gemini: empty response")
	}
	return util.StripCodeFences(strings.TrimSpace(txt)), nil
}

// toParts keeps the request order: image, prompt, reference.
func toParts(parts []analysis.Part) []genai.Part {
	out := make([]genai.Part, 0, len(parts))
	for _, p := range parts {
		if p.IsText() {
			out = append(out, genai.Text(p.Text))
			continue
		}
		out = append(out, &genai.Blob{MIMEType: util.BaseMIME(p.MIMEType), Data: p.Data})
	}
	return out
}

// toSchema converts the JSON-schema map into genai's schema subset.
func toSchema(node map[string]any) (*genai.Schema, error) {
	if node == nil {
		return nil, nil
	}
	s := &genai.Schema{}
	switch t, _ := node["type"].(string); t {
	case "object":
		s.Type = genai.TypeObject
	case "array":
		s.Type = genai.TypeArray
	case "string":
		s.Type = genai.TypeString
	case "boolean":
		s.Type = genai.TypeBoolean
	case "integer":
		s.Type = genai.TypeInteger
	case "number":
		s.Type = genai.TypeNumber
	default:
		return nil, fmt.Errorf("unsupported type %q", t)
	}
	if d, ok := node["description"].(string); ok {
		s.Description = d
	}
	if enum, ok := node["enum"].([]any); ok {
		for _, v := range enum {
			if str, ok := v.(string); ok {
				s.Enum = append(s.Enum, str)
			}
		}
	}
	if props, ok := node["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, raw := range props {
			child, ok := raw.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("property %s: not an object", name)
			}
			cs, err := toSchema(child)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			s.Properties[name] = cs
		}
	}
	if req, ok := node["required"].([]any); ok {
		for _, v := range req {
			if str, ok := v.(string); ok {
				s.Required = append(s.Required, str)
			}
		}
	}
	if items, ok := node["items"].(map[string]any); ok {
		is, err := toSchema(items)
		if err != nil {
			return nil, fmt.Errorf("items: %w", err)
		}
		s.Items = is
	}
	return s, nil
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				return string(t)
			}
		}
	}
	return ""
}

func ptrFloat32(v float32) *float32 { return &v }
