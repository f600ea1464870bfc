package llm

import (
	"context"
	"fmt"

	"github.com/PabloGalante/farum-chat/internal/domain"
)

// MockLLM answers without calling any model. Useful for local mode and tests.
type MockLLM struct{}

func NewMockLLM() *MockLLM {
	return &MockLLM{}
}

func (m *MockLLM) Complete(ctx context.Context, req domain.ModelRequest) (*domain.ModelResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var last string
	for i := len(req.Input) - 1; i >= 0; i-- {
		if req.Input[i].Role == domain.RoleUser {
			last = req.Input[i].Text
			break
		}
	}

	reply := fmt.Sprintf("I hear you. You said %q (%d earlier messages, %d tools available).",
		last, len(req.History), len(req.Tools))
	return &domain.ModelResponse{
		Messages: []domain.Message{domain.NewTextMessage(domain.RoleAssistant, reply)},
	}, nil
}
