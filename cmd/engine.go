package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/engramkit/engram/pkg/embedding"
	"github.com/engramkit/engram/pkg/memory"
	"github.com/engramkit/engram/pkg/semantic"
	"github.com/engramkit/engram/pkg/vectorstore"
)

// engine bundles the memory store with its retrieval stack.
type engine struct {
	store   *memory.Store
	vectors vectorstore.Store
}

func (e *engine) Close() error {
	return e.vectors.Close()
}

// openEngine wires embedder, vector backend, semantic search, and the
// record store from config. Backends: file (default), chromem, qdrant.
func openEngine(ctx context.Context) (*engine, error) {
	dataDir := viper.GetString("data_dir")
	if dataDir == "" {
		dataDir = "engram-data"
	}

	dim := viper.GetInt("embedding.dim")
	embedder := embedding.NewTFIDF(dim)

	var (
		vectors vectorstore.Store
		err     error
	)
	switch backend := viper.GetString("vector.backend"); backend {
	case "", "file":
		vectors, err = vectorstore.NewFileStore(filepath.Join(dataDir, "vectors.json"), slog.Default())
	case "chromem":
		vectors, err = vectorstore.NewChromemStore(filepath.Join(dataDir, "chromem"))
	case "qdrant":
		vectors, err = vectorstore.NewQdrantStore(ctx, vectorstore.QdrantConfig{
			Host:       viper.GetString("vector.qdrant.host"),
			Port:       viper.GetInt("vector.qdrant.port"),
			Collection: viper.GetString("vector.qdrant.collection"),
			Dim:        embedder.Dim(),
		})
	default:
		return nil, fmt.Errorf("unknown vector backend %q", backend)
	}
	if err != nil {
		return nil, fmt.Errorf("open vector backend: %w", err)
	}

	sem := semantic.New(embedder, vectors, viper.GetFloat64("search.threshold"))

	store, err := memory.NewStore(filepath.Join(dataDir, "memory.json"), memory.Options{
		Semantic:      sem,
		Extractor:     memory.NewExtractor(),
		DecayRate:     viper.GetFloat64("forget.decay_rate"),
		MinImportance: viper.GetFloat64("forget.min_importance"),
		Logger:        slog.Default(),
	})
	if err != nil {
		_ = vectors.Close()
		return nil, fmt.Errorf("open memory store: %w", err)
	}

	return &engine{store: store, vectors: vectors}, nil
}

// userID resolves the acting user from the --user flag, defaulting in
// the store when empty.
func userID() string {
	return viper.GetString("user")
}

func init() {
	viper.SetDefault("embedding.dim", embedding.DefaultDim)
	viper.SetDefault("search.threshold", semantic.DefaultSimilarityThreshold)
	viper.SetDefault("vector.backend", "file")
	viper.SetDefault("memory.index", false)
	viper.SetDefault("memory.auto_learn", true)
	viper.SetDefault("vector.qdrant.host", "localhost")
	viper.SetDefault("vector.qdrant.port", 6334)
	viper.SetDefault("vector.qdrant.collection", "memories")
}
