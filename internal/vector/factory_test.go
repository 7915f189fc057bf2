package vector

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/concierge/internal/config"
	"github.com/hyperjump/concierge/internal/models"
)

func TestNewVectorIndex_Memory(t *testing.T) {
	idx, err := NewVectorIndex(config.VectorConfig{Type: "memory", Metric: "cosine"}, 3, zap.NewNop())
	if err != nil {
		t.Fatalf("NewVectorIndex(memory): %v", err)
	}
	defer idx.Close()

	ctx := context.Background()
	if err := idx.Upsert(ctx, []models.IndexRecord{{ID: "a", Vector: []float32{1, 0, 0}}}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if n, _ := idx.Size(ctx); n != 1 {
		t.Errorf("Size=%d, want 1", n)
	}
}

func TestNewVectorIndex_Empty(t *testing.T) {
	idx, err := NewVectorIndex(config.VectorConfig{}, 3, zap.NewNop())
	if err != nil {
		t.Fatalf("NewVectorIndex(''): %v", err)
	}
	defer idx.Close()
	if _, ok := idx.(*MemoryIndex); !ok {
		t.Errorf("empty type should default to memory, got %T", idx)
	}
}

func TestNewVectorIndex_Pinecone(t *testing.T) {
	idx, err := NewVectorIndex(config.VectorConfig{Type: "pinecone", APIKey: "k", IndexName: "faq-index"}, 384, zap.NewNop())
	if err != nil {
		t.Fatalf("NewVectorIndex(pinecone): %v", err)
	}
	if _, ok := idx.(*PineconeIndex); !ok {
		t.Errorf("got %T", idx)
	}
}

func TestNewVectorIndex_Unknown(t *testing.T) {
	if _, err := NewVectorIndex(config.VectorConfig{Type: "faiss"}, 3, zap.NewNop()); err == nil {
		t.Error("expected error for unknown index type")
	}
}

func TestNewVectorIndex_InvalidDimension(t *testing.T) {
	if _, err := NewVectorIndex(config.VectorConfig{Type: "memory"}, 0, zap.NewNop()); err == nil {
		t.Error("expected error for zero dimension")
	}
}
