package agent

import (
	"log"

	"github.com/Nex2i/Polygloss/internal/config"
)

// NewGateway creates a Gateway based on the configured agent mode.
func NewGateway(cfg *config.Config, history HistoryReader) Gateway {
	switch cfg.AgentMode {
	case config.AgentModeMock:
		log.Println("AGENT_MODE=mock, using mock agent gateway")
		return NewMockClient()
	case config.AgentModeOpenAI:
		return NewOpenAIClient(cfg.OpenAIBaseURL, cfg.AgentAPIKey, cfg.AgentModel, history)
	default:
		return NewClient(cfg.AgentURL, cfg.AgentTimeout, history)
	}
}
