package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ragchat/internal/domain"
	"ragchat/internal/logger"
)

type AnswerOptions struct {
	Persona       Persona
	TopK          int
	MaxPromptSize int
	HistoryTurns  int
}

// Answerer is the question answering pipeline: retrieve, build the prompt,
// generate. It holds no per-conversation state.
type Answerer struct {
	retriever domain.Retriever
	generator domain.Generator
	opts      AnswerOptions
}

var _ domain.Answerer = (*Answerer)(nil)

func NewAnswerer(retriever domain.Retriever, generator domain.Generator, opts AnswerOptions) *Answerer {
	return &Answerer{retriever: retriever, generator: generator, opts: opts}
}

func (a *Answerer) Answer(ctx context.Context, question string, history []domain.Turn) (domain.Answer, error) {
	start := time.Now()
	matches, err := a.retriever.Retrieve(ctx, question, a.opts.TopK)
	if err != nil {
		return domain.Answer{}, err
	}
	prompt, used, err := BuildPrompt(PromptInput{
		Persona:      a.opts.Persona,
		History:      history,
		Passages:     matches,
		Question:     question,
		MaxSize:      a.opts.MaxPromptSize,
		HistoryTurns: a.opts.HistoryTurns,
	})
	if err != nil {
		return domain.Answer{}, err
	}
	if len(used) < len(matches) {
		logger.Debug("prompt budget dropped %d of %d passages", len(matches)-len(used), len(matches))
	}
	text, err := a.generator.Generate(ctx, prompt)
	if err != nil {
		if ctx.Err() != nil {
			return domain.Answer{}, ctx.Err()
		}
		if !errors.Is(err, domain.ErrGenerationService) {
			err = fmt.Errorf("%w: %v", domain.ErrGenerationService, err)
		}
		return domain.Answer{}, fmt.Errorf("generate with %s: %w", a.generator.Name(), err)
	}
	logger.Debug("answered in %s using %d passages", time.Since(start).Round(time.Millisecond), len(used))
	return domain.Answer{Text: text, Sources: used}, nil
}
