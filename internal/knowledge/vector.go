package knowledge

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/TobiSchelling/MindCare/internal/database"
	"github.com/TobiSchelling/MindCare/internal/llm"
)

// VectorIndex is a Retriever that embeds texts with an llm.Embedder, keeps
// the vectors in SQLite and ranks by cosine distance.
type VectorIndex struct {
	db       *database.DB
	embedder llm.Embedder
}

// NewVectorIndex creates a vector index.
func NewVectorIndex(db *database.DB, embedder llm.Embedder) *VectorIndex {
	return &VectorIndex{db: db, embedder: embedder}
}

// Index embeds and stores a document.
func (v *VectorIndex) Index(ctx context.Context, doc Document) error {
	embedding, err := v.embedOne(ctx, doc.Content)
	if err != nil {
		return err
	}

	var owner *string
	if doc.Partition.Scope == database.ScopePrivate {
		owner = &doc.Partition.OwnerID
	}
	_, err = v.db.InsertVector(database.KnowledgeVector{
		KnowledgeID: doc.KnowledgeID,
		Scope:       doc.Partition.Scope,
		OwnerID:     owner,
		Title:       doc.Title,
		Content:     doc.Content,
		Embedding:   embedding,
	})
	if err != nil {
		return fmt.Errorf("storing vector: %w", err)
	}
	return nil
}

// SimilaritySearch returns the k vectors in the partition closest to query.
func (v *VectorIndex) SimilaritySearch(ctx context.Context, query string, p Partition, k int) ([]Hit, error) {
	queryVec, err := v.embedOne(ctx, query)
	if err != nil {
		return nil, err
	}

	var vectors []database.KnowledgeVector
	if p.Scope == database.ScopeShared {
		vectors, err = v.db.GetSharedVectors()
	} else {
		vectors, err = v.db.GetPrivateVectors(p.OwnerID)
	}
	if err != nil {
		return nil, fmt.Errorf("loading vectors: %w", err)
	}

	hits := make([]Hit, 0, len(vectors))
	for _, vec := range vectors {
		d, ok := cosineDistance(queryVec, vec.Embedding)
		if !ok {
			continue
		}
		hits = append(hits, Hit{Title: vec.Title, Content: vec.Content, Scope: vec.Scope, Distance: d})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (v *VectorIndex) embedOne(ctx context.Context, text string) ([]float64, error) {
	if v.embedder == nil {
		return nil, fmt.Errorf("no embedder configured")
	}
	embeddings, err := v.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embedding: %w", err)
	}
	if len(embeddings) == 0 || len(embeddings[0]) == 0 {
		return nil, fmt.Errorf("embedding: empty vector")
	}
	return embeddings[0], nil
}

// cosineDistance returns 1 - cos(a, b). Vectors of different length or zero
// norm are not comparable.
func cosineDistance(a, b []float64) (float64, bool) {
	if len(a) != len(b) || len(a) == 0 {
		return 0, false
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0, false
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb)), true
}
