package llm

import (
	"fmt"

	"z-writer-ai-api/internal/config"
	"z-writer-ai-api/internal/workflow/port"
)

// NewEngine 按默认 provider 的驱动创建生成引擎
func NewEngine(cfg *config.Config, factory *EinoFactory) (port.Engine, error) {
	name := cfg.LLM.DefaultProvider
	p, ok := cfg.LLM.Providers[name]
	if !ok {
		return nil, fmt.Errorf("default provider %q not configured", name)
	}

	switch d := driverOf(p); d {
	case DriverEino:
		return NewEinoEngine(factory, name, p.Model), nil
	case DriverOpenAI:
		return NewOpenAIEngine(name, p)
	default:
		return nil, fmt.Errorf("provider %s: unknown driver %q", name, d)
	}
}
