package model

import (
	"slices"
	"time"
)

type (
	Role string

	OptimizationMode string

	// HistoryTurn is a prior [role, content] pair sent by the client.
	HistoryTurn struct {
		Role    Role
		Content string
	}

	ModelRef struct {
		ProviderID string `json:"providerId" validate:"required"`
		Key        string `json:"key" validate:"required"`
	}

	Chat struct {
		ID        string
		UserID    string
		Title     string
		FocusMode string
		Files     []string
		CreatedAt time.Time
	}

	Message struct {
		ChatID    string
		MessageID string
		Role      Role
		Content   string
		Sources   []Citation
		CreatedAt time.Time
	}

	// FocusModes is the set of agent handlers a chat or search may target.
	FocusModes []string
)

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSource    Role = "source"

	OptimizationSpeed    OptimizationMode = "speed"
	OptimizationBalanced OptimizationMode = "balanced"
	OptimizationQuality  OptimizationMode = "quality"
)

// NormalizeRole maps the client's history roles onto stored roles.
func NormalizeRole(role string) Role {
	switch role {
	case "human", "user":
		return RoleUser
	case "assistant", "ai":
		return RoleAssistant
	default:
		return Role(role)
	}
}

func (f FocusModes) Has(mode string) bool {
	return slices.Contains(f, mode)
}

// GenerationRequest is what the answer agent needs to produce a response.
type GenerationRequest struct {
	Query              string           `json:"query"`
	FocusMode          string           `json:"focusMode"`
	OptimizationMode   OptimizationMode `json:"optimizationMode"`
	History            [][2]string      `json:"history"`
	Files              []string         `json:"files,omitempty"`
	ChatModel          ModelRef         `json:"chatModel"`
	EmbeddingModel     ModelRef         `json:"embeddingModel"`
	SystemInstructions string           `json:"systemInstructions,omitempty"`
}
