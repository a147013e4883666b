// Package prompt assembles the agent's system prompt from the local environment.
package prompt

import (
	"strings"

	"go.uber.org/zap"
)

// Retriever collects one section of environment context for the system prompt.
type Retriever interface {
	// Name identifies the retriever in logs.
	Name() string

	// GetContext returns the section text, ready to be concatenated.
	GetContext() (string, error)
}

// Provider runs retrievers in order and joins their sections.
type Provider struct {
	retrievers []Retriever
	logger     *zap.Logger
}

func NewProvider(logger *zap.Logger, retrievers ...Retriever) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		retrievers: retrievers,
		logger:     logger,
	}
}

func (p *Provider) AddRetriever(r Retriever) {
	p.retrievers = append(p.retrievers, r)
}

// GetContext concatenates every section. A failing retriever is logged and left out.
func (p *Provider) GetContext() string {
	var sb strings.Builder
	for _, r := range p.retrievers {
		section, err := r.GetContext()
		if err != nil {
			p.logger.Debug("context retriever failed", zap.String("retriever", r.Name()), zap.Error(err))
			continue
		}
		sb.WriteString(section)
	}
	return sb.String()
}
