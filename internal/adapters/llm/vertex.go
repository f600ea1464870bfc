package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/PabloGalante/farum-chat/internal/domain"
)

// VertexConfig selects the Gemini backend. With an APIKey the Gemini API is
// used; otherwise Vertex AI with Project and Location.
type VertexConfig struct {
	Project   string
	Location  string
	APIKey    string
	ModelName string

	Temperature     float32
	MaxOutputTokens int32
}

type VertexClient struct {
	client    *genai.Client
	modelName string
	temp      float32
	maxTokens int32
}

// NewVertexClient creates a ModelClient based on Gemini (Vertex AI or Gemini API).
func NewVertexClient(ctx context.Context, cfg VertexConfig) (*VertexClient, error) {
	cc := &genai.ClientConfig{}
	switch {
	case cfg.APIKey != "":
		cc.APIKey = cfg.APIKey
		cc.Backend = genai.BackendGeminiAPI
	case cfg.Project != "" && cfg.Location != "":
		cc.Project = cfg.Project
		cc.Location = cfg.Location
		cc.Backend = genai.BackendVertexAI
	default:
		return nil, fmt.Errorf("either an API key or project and location must be set")
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	modelName := cfg.ModelName
	if modelName == "" {
		modelName = "gemini-2.5-flash"
	}
	maxTokens := cfg.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = 8192
	}

	return &VertexClient{
		client:    client,
		modelName: modelName,
		temp:      cfg.Temperature,
		maxTokens: maxTokens,
	}, nil
}

// Complete implements domain.ModelClient using Gemini.
func (v *VertexClient) Complete(ctx context.Context, req domain.ModelRequest) (*domain.ModelResponse, error) {
	// 1) History + this turn's input as conversation
	var contents []*genai.Content
	for _, m := range req.History {
		if c := toContent(m); c != nil {
			contents = append(contents, c)
		}
	}
	for _, m := range req.Input {
		if c := toContent(m); c != nil {
			contents = append(contents, c)
		}
	}

	// 2) Model config
	temp := v.temp
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(BuildSystemPrompt(req.Tools), genai.RoleUser),
		Temperature:       &temp,
		MaxOutputTokens:   v.maxTokens,
	}
	if len(req.Tools) > 0 {
		cfg.Tools = []*genai.Tool{toTool(req.Tools)}
	}

	// 3) Call to Gemini
	res, err := v.client.Models.GenerateContent(ctx, v.modelName, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("vertex generate content: %w", err)
	}

	msg, ok := fromResponse(res)
	if !ok {
		return nil, fmt.Errorf("vertex returned neither text nor tool calls")
	}
	return &domain.ModelResponse{Messages: []domain.Message{msg}}, nil
}

func toContent(m domain.Message) *genai.Content {
	role := genai.RoleUser
	if m.Role == domain.RoleAssistant {
		role = genai.RoleModel
	}

	var parts []*genai.Part
	hasText := false
	for _, c := range m.Contents {
		switch c.Type {
		case domain.ContentText:
			if c.Text != "" {
				parts = append(parts, genai.NewPartFromText(c.Text))
				hasText = true
			}
		case domain.ContentData:
			if len(c.Data) > 0 {
				parts = append(parts, genai.NewPartFromBytes(c.Data, c.MIMEType))
			}
		case domain.ContentToolCall:
			parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{
				ID:   c.ToolCallID,
				Name: c.ToolName,
				Args: c.Arguments,
			}})
		case domain.ContentToolResult:
			parts = append(parts, &genai.Part{FunctionResponse: &genai.FunctionResponse{
				ID:       c.ToolCallID,
				Name:     c.ToolName,
				Response: c.Result,
			}})
		}
	}
	if !hasText && strings.TrimSpace(m.Text) != "" {
		parts = append([]*genai.Part{genai.NewPartFromText(m.Text)}, parts...)
	}
	if len(parts) == 0 {
		return nil
	}
	return &genai.Content{Role: string(role), Parts: parts}
}

func toTool(specs []domain.ToolSpec) *genai.Tool {
	decls := make([]*genai.FunctionDeclaration, 0, len(specs))
	for _, s := range specs {
		decl := &genai.FunctionDeclaration{
			Name:        s.Name,
			Description: s.Description,
		}
		if s.Parameters != nil {
			decl.ParametersJsonSchema = s.Parameters
		}
		decls = append(decls, decl)
	}
	return &genai.Tool{FunctionDeclarations: decls}
}

func fromResponse(res *genai.GenerateContentResponse) (domain.Message, bool) {
	msg := domain.Message{Role: domain.RoleAssistant}
	if res == nil || len(res.Candidates) == 0 || res.Candidates[0].Content == nil {
		return msg, false
	}

	var text strings.Builder
	for i, p := range res.Candidates[0].Content.Parts {
		switch {
		case p == nil || p.Thought:
			continue
		case p.FunctionCall != nil:
			id := p.FunctionCall.ID
			if id == "" {
				id = fmt.Sprintf("%s-%d", p.FunctionCall.Name, i)
			}
			msg.Contents = append(msg.Contents, domain.Content{
				Type:       domain.ContentToolCall,
				ToolCallID: id,
				ToolName:   p.FunctionCall.Name,
				Arguments:  p.FunctionCall.Args,
			})
		case p.Text != "":
			text.WriteString(p.Text)
		}
	}

	msg.Text = text.String()
	if msg.Text != "" {
		msg.Contents = append([]domain.Content{{Type: domain.ContentText, Text: msg.Text}}, msg.Contents...)
	}
	return msg, len(msg.Contents) > 0
}
