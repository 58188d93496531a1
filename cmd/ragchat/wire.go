package main

import (
	"context"
	"fmt"
	"time"

	"ragchat/internal/chunker"
	"ragchat/internal/config"
	"ragchat/internal/domain"
	"ragchat/internal/embedding"
	"ragchat/internal/embedding/lexical"
	embedopenai "ragchat/internal/embedding/openai"
	"ragchat/internal/generation/anthropic"
	genopenai "ragchat/internal/generation/openai"
	"ragchat/internal/retriever"
	"ragchat/internal/service"
	"ragchat/internal/summarizer"
	"ragchat/internal/vectorstore/bolt"
	"ragchat/internal/vectorstore/memory"
	"ragchat/internal/vectorstore/qdrant"
)

func buildEmbedder(cfg *config.AppConfig) (*embedding.Service, error) {
	var provider embedding.Provider
	switch cfg.Embedder.Type {
	case "lexical":
		provider = lexical.NewEmbedder(cfg.Embedder.Lexical.Dimension)
	case "openai":
		client, err := embedopenai.NewClient(embedopenai.Config{
			BaseURL:   cfg.Embedder.OpenAI.BaseURL,
			APIKeyEnv: cfg.Embedder.OpenAI.APIKeyEnv,
			Model:     cfg.Embedder.OpenAI.Model,
			Timeout:   time.Duration(cfg.Embedder.OpenAI.TimeoutSecs) * time.Second,
		})
		if err != nil {
			return nil, err
		}
		provider = client
	default:
		return nil, fmt.Errorf("%w: unknown embedder: %s", domain.ErrConfiguration, cfg.Embedder.Type)
	}
	return embedding.NewService(provider, embedding.Options{
		BatchSize:         cfg.Embedder.BatchSize,
		Concurrency:       cfg.Embedder.Concurrency,
		RequestsPerSecond: cfg.Embedder.RequestsPerSecond,
	}), nil
}

func openIndex(ctx context.Context, cfg *config.AppConfig) (domain.VectorIndex, error) {
	switch cfg.VectorStore.Type {
	case "memory":
		return memory.NewStorage(), nil
	case "bolt":
		s, err := bolt.Open(config.ExpandHome(cfg.VectorStore.Bolt.Path))
		if err != nil {
			return nil, err
		}
		return s, nil
	case "qdrant":
		q := cfg.VectorStore.Qdrant
		s, err := qdrant.Dial(ctx, qdrant.Config{
			Addr:       q.Addr,
			APIKey:     q.APIKey,
			Collection: q.Collection,
			Timeout:    time.Duration(q.TimeoutSecs) * time.Second,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("%w: unknown vector store: %s", domain.ErrConfiguration, cfg.VectorStore.Type)
}

func buildGenerator(cfg *config.AppConfig) (domain.Generator, error) {
	g := cfg.Generator
	switch g.Type {
	case "openai":
		gen, err := genopenai.New(genopenai.Config{
			BaseURL:     g.OpenAI.BaseURL,
			APIKeyEnv:   g.OpenAI.APIKeyEnv,
			Model:       g.OpenAI.Model,
			Temperature: float32(g.Temperature),
			MaxTokens:   g.MaxTokens,
			Timeout:     time.Duration(g.OpenAI.TimeoutSecs) * time.Second,
		})
		if err != nil {
			return nil, err
		}
		return gen, nil
	case "anthropic":
		gen, err := anthropic.New(anthropic.Config{
			APIKeyEnv:   g.Anthropic.APIKeyEnv,
			Model:       g.Anthropic.Model,
			Temperature: g.Temperature,
			MaxTokens:   g.MaxTokens,
			MaxRetries:  2,
		})
		if err != nil {
			return nil, err
		}
		return gen, nil
	}
	return nil, fmt.Errorf("%w: unknown generator: %s", domain.ErrConfiguration, g.Type)
}

func buildIndexer(cfg *config.AppConfig, emb domain.Embedder, index domain.VectorIndex) (*service.Indexer, error) {
	ch, err := chunker.New(cfg.Chunker.MaxSize, cfg.Chunker.Overlap)
	if err != nil {
		return nil, err
	}
	return service.NewIndexer(ch, emb, index, summarizer.NewFrequencySummarizer(), service.IndexOptions{
		MaxRetries:          cfg.Embedder.MaxRetries,
		SummaryMaxSentences: cfg.Summarizer.MaxSentences,
	}), nil
}

// buildGeneration resolves the persona and the generator. Commands call it
// before prepareIndex so a bad persona or missing key fails before any
// embedding work touches the index.
func buildGeneration(cfg *config.AppConfig, persona string) (service.Persona, domain.Generator, error) {
	if persona == "" {
		persona = cfg.Prompt.Persona
	}
	p, err := service.LookupPersona(persona)
	if err != nil {
		return service.Persona{}, nil, err
	}
	gen, err := buildGenerator(cfg)
	if err != nil {
		return service.Persona{}, nil, err
	}
	return p, gen, nil
}

func buildAnswerer(cfg *config.AppConfig, p service.Persona, gen domain.Generator, emb domain.Embedder, index domain.VectorIndex) *service.Answerer {
	var opts []retriever.Option
	if cfg.Retrieval.MinScore > 0 {
		opts = append(opts, retriever.WithMinScore(cfg.Retrieval.MinScore))
	}
	r := retriever.New(emb, index, cfg.Retrieval.K, opts...)
	return service.NewAnswerer(r, gen, service.AnswerOptions{
		Persona:       p,
		TopK:          cfg.Retrieval.K,
		MaxPromptSize: cfg.Prompt.MaxSize,
		HistoryTurns:  cfg.Prompt.HistoryTurns,
	})
}

// prepareIndex opens the configured index and, when doc is set, rebuilds it from that file.
func prepareIndex(ctx context.Context, cfg *config.AppConfig, doc string) (domain.VectorIndex, *embedding.Service, *service.IndexReport, error) {
	emb, err := buildEmbedder(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	index, err := openIndex(ctx, cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	if doc == "" {
		return index, emb, nil, nil
	}
	ix, err := buildIndexer(cfg, emb, index)
	if err != nil {
		index.Close()
		return nil, nil, nil, err
	}
	report, err := ix.IndexFile(ctx, doc)
	if err != nil {
		index.Close()
		return nil, nil, nil, err
	}
	return index, emb, &report, nil
}
