// Package knowledge stores reference texts in a shared and a per-owner
// partition and retrieves them by similarity.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/TobiSchelling/MindCare/internal/database"
)

// DefaultTopK is the number of neighbours requested from each partition.
const DefaultTopK = 5

var (
	ErrNotFound  = errors.New("knowledge item not found")
	ErrForbidden = errors.New("knowledge item belongs to another owner")
	ErrEmpty     = errors.New("title and content are required")
)

// Partition selects the shared partition or one owner's private partition.
type Partition struct {
	Scope   string
	OwnerID string
}

// SharedPartition is visible to every owner.
func SharedPartition() Partition {
	return Partition{Scope: database.ScopeShared}
}

// PrivatePartition is visible only to ownerID.
func PrivatePartition(ownerID string) Partition {
	return Partition{Scope: database.ScopePrivate, OwnerID: ownerID}
}

// Document is a text handed to the retrieval index.
type Document struct {
	KnowledgeID *int64
	Partition   Partition
	Title       string
	Content     string
}

// Hit is one retrieval result. Smaller distances are better matches.
type Hit struct {
	Title    string  `json:"title"`
	Content  string  `json:"content"`
	Scope    string  `json:"type"`
	Distance float64 `json:"distance"`
}

// Retriever is the similarity search collaborator.
type Retriever interface {
	SimilaritySearch(ctx context.Context, query string, p Partition, k int) ([]Hit, error)
	Index(ctx context.Context, doc Document) error
}

// Fusion merges retrieval over both partitions and keeps the durable
// knowledge records in step with the index.
type Fusion struct {
	db        *database.DB
	retriever Retriever
}

// NewFusion creates a Fusion. retriever may be nil, in which case search
// always returns no results.
func NewFusion(db *database.DB, retriever Retriever) *Fusion {
	return &Fusion{db: db, retriever: retriever}
}

// Search queries the shared partition and the owner's private partition for
// up to k neighbours each, and returns at most 2k distinct results ordered
// by ascending distance. Retrieval failures yield fewer or no results,
// never an error.
func (f *Fusion) Search(ctx context.Context, ownerID, query string, k int) []Hit {
	if f.retriever == nil || strings.TrimSpace(query) == "" {
		return []Hit{}
	}
	if k <= 0 {
		k = DefaultTopK
	}

	shared, err := f.retriever.SimilaritySearch(ctx, query, SharedPartition(), k)
	if err != nil {
		log.Printf("Knowledge search (shared) failed for %s: %v", ownerID, err)
		shared = nil
	}
	private, err := f.retriever.SimilaritySearch(ctx, query, PrivatePartition(ownerID), k)
	if err != nil {
		log.Printf("Knowledge search (private) failed for %s: %v", ownerID, err)
		private = nil
	}

	return fuse(shared, private, 2*k)
}

// fuse sorts both lists together by distance, drops repeated content keeping
// the best-ranked copy, and truncates to limit.
func fuse(shared, private []Hit, limit int) []Hit {
	all := make([]Hit, 0, len(shared)+len(private))
	all = append(all, shared...)
	all = append(all, private...)
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Distance < all[j].Distance
	})

	seen := make(map[string]struct{}, len(all))
	out := make([]Hit, 0, min(len(all), limit))
	for _, h := range all {
		if len(out) >= limit {
			break
		}
		if _, dup := seen[h.Content]; dup {
			continue
		}
		seen[h.Content] = struct{}{}
		out = append(out, h)
	}
	return out
}

// ContextText joins hit contents into the reference block used in prompts.
func ContextText(hits []Hit) string {
	parts := make([]string, len(hits))
	for i, h := range hits {
		parts[i] = h.Content
	}
	return strings.Join(parts, "\n")
}

// AddShared stores an entry visible to every owner.
func (f *Fusion) AddShared(ctx context.Context, title, content string) (*database.KnowledgeItem, error) {
	return f.add(ctx, SharedPartition(), title, content)
}

// AddPrivate stores an entry visible only to ownerID.
func (f *Fusion) AddPrivate(ctx context.Context, ownerID, title, content string) (*database.KnowledgeItem, error) {
	return f.add(ctx, PrivatePartition(ownerID), title, content)
}

// add writes the durable record, then the index entry. A failed index
// write is logged and the stored record is still returned. Nothing is
// indexed without a stored record, since Remove finds vectors by record id.
func (f *Fusion) add(ctx context.Context, p Partition, title, content string) (*database.KnowledgeItem, error) {
	title = strings.TrimSpace(title)
	content = strings.TrimSpace(content)
	if title == "" || content == "" {
		return nil, ErrEmpty
	}

	var owner *string
	if p.Scope == database.ScopePrivate {
		owner = &p.OwnerID
	}

	id, err := f.db.InsertKnowledge(p.Scope, owner, title, content)
	if err != nil {
		log.Printf("Failed to store knowledge %q: %v", title, err)
		return nil, fmt.Errorf("storing knowledge: %w", err)
	}

	if f.retriever != nil {
		doc := Document{Partition: p, Title: title, Content: content, KnowledgeID: &id}
		if err := f.retriever.Index(ctx, doc); err != nil {
			log.Printf("Failed to index knowledge %d %q: %v", id, title, err)
		}
	}

	return f.db.GetKnowledge(id)
}

// List returns the shared entries and the owner's private entries, newest first.
func (f *Fusion) List(ownerID string) ([]database.KnowledgeItem, error) {
	return f.db.GetVisibleKnowledge(ownerID)
}

// Get returns an entry visible to ownerID.
func (f *Fusion) Get(ownerID string, id int64) (*database.KnowledgeItem, error) {
	item, err := f.db.GetKnowledge(id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrNotFound
	}
	if item.Scope == database.ScopePrivate && (item.OwnerID == nil || *item.OwnerID != ownerID) {
		return nil, ErrForbidden
	}
	return item, nil
}

// Remove deletes one of the owner's private entries together with its
// index entry. Shared and foreign entries report ErrNotFound.
func (f *Fusion) Remove(ownerID string, id int64) error {
	deleted, err := f.db.DeletePrivateKnowledge(ownerID, id)
	if err != nil {
		return fmt.Errorf("deleting knowledge: %w", err)
	}
	if !deleted {
		return ErrNotFound
	}
	return nil
}
