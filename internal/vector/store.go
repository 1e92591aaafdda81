// Package vector stores embeddings with their metadata on top of a durable
// cache and ranks them by cosine similarity.
package vector

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/mnemo/internal/cache"
)

// ErrLengthMismatch is returned by AddVectors when the two slices differ in length.
var ErrLengthMismatch = errors.New("embeddings and metadata length mismatch")

// ErrNonFinite is returned when a vector holds a NaN or infinite component.
// Such vectors cannot be encoded or ranked.
var ErrNonFinite = errors.New("vector has a non-finite component")

// Metadata is the part of an entry that filters see.
type Metadata struct {
	Content   string     `json:"content"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
	UserID    string     `json:"userId,omitempty"`
}

// Entry is one stored memory. Magnitude is always the Euclidean norm of
// Embedding.
type Entry struct {
	ID string `json:"id"`
	Metadata
	Embedding []float32 `json:"vector"`
	Magnitude float64   `json:"magnitude"`
}

// Filter selects entries by their metadata. A nil Filter matches everything.
type Filter func(Metadata) bool

// Store is a persistent collection of entries keyed by id.
type Store struct {
	entries *cache.Cache[Entry]
	now     func() time.Time
}

// NewStore opens or creates the store backed by path. Options are passed to
// the underlying cache.
func NewStore(path string, opts ...cache.Option) (*Store, error) {
	c, err := cache.Open[Entry](path, cache.JSONCodec[Entry]{}, opts...)
	if err != nil {
		return nil, fmt.Errorf("open vector store: %w", err)
	}
	return &Store{entries: c, now: time.Now}, nil
}

// AddVector stores embedding with md under a fresh id and returns the id.
// CreatedAt is set to the current time when md leaves it zero.
func (s *Store) AddVector(embedding []float32, md Metadata) string {
	id := uuid.NewString()
	if md.CreatedAt.IsZero() {
		md.CreatedAt = s.now()
	}
	vec := make([]float32, len(embedding))
	copy(vec, embedding)

	s.entries.Set(id, Entry{
		ID:        id,
		Metadata:  md,
		Embedding: vec,
		Magnitude: Magnitude(vec),
	})
	return id
}

// AddVectors stores embeddings[i] with metadatas[i] for every i. Every
// embedding must be finite; nothing is stored otherwise.
func (s *Store) AddVectors(embeddings [][]float32, metadatas []Metadata) ([]string, error) {
	if len(embeddings) != len(metadatas) {
		return nil, fmt.Errorf("%w: %d embeddings, %d metadata", ErrLengthMismatch, len(embeddings), len(metadatas))
	}
	for i, vec := range embeddings {
		if err := CheckFinite(vec); err != nil {
			return nil, fmt.Errorf("embedding %d: %w", i, err)
		}
	}
	ids := make([]string, 0, len(embeddings))
	for i := range embeddings {
		ids = append(ids, s.AddVector(embeddings[i], metadatas[i]))
	}
	return ids, nil
}

// Restore puts e back under its own id, replacing any entry with that id.
// Magnitude is recomputed from the embedding.
func (s *Store) Restore(e Entry) error {
	if e.ID == "" {
		return errors.New("restore: entry has no id")
	}
	if err := CheckFinite(e.Embedding); err != nil {
		return fmt.Errorf("restore %s: %w", e.ID, err)
	}
	vec := make([]float32, len(e.Embedding))
	copy(vec, e.Embedding)
	e.Embedding = vec
	e.Magnitude = Magnitude(vec)
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}
	s.entries.Set(e.ID, e)
	return nil
}

// Get returns the entry stored under id.
func (s *Store) Get(id string) (Entry, bool) {
	return s.entries.Get(id)
}

// GetAll returns every entry in insertion order.
func (s *Store) GetAll() []Entry {
	return s.entries.Values()
}

// Len reports the number of entries.
func (s *Store) Len() int {
	return s.entries.Len()
}

// Delete removes id. Missing ids are ignored.
func (s *Store) Delete(id string) {
	s.entries.Remove(id)
}

// Update replaces the embedding and content of id and stamps UpdatedAt.
// CreatedAt and UserID are kept. It reports whether id existed.
func (s *Store) Update(id string, embedding []float32, content string) bool {
	vec := make([]float32, len(embedding))
	copy(vec, embedding)
	mag := Magnitude(vec)
	now := s.now()

	return s.entries.Update(id, func(e Entry) Entry {
		e.Content = content
		e.Embedding = vec
		e.Magnitude = mag
		e.UpdatedAt = &now
		return e
	})
}

// Clear removes every entry and writes the empty store to disk before
// returning, whatever the commit policy.
func (s *Store) Clear() error {
	s.entries.Clear()
	return s.entries.Commit()
}

// Filter returns the entries whose metadata satisfies f, in insertion order.
func (s *Store) Filter(f Filter) []Entry {
	all := s.entries.Values()
	if f == nil {
		return all
	}
	out := make([]Entry, 0, len(all))
	for _, e := range all {
		if f(e.Metadata) {
			out = append(out, e)
		}
	}
	return out
}

// SetAutoSave switches the commit policy of the backing cache.
func (s *Store) SetAutoSave(interval time.Duration) {
	s.entries.SetAutoSave(interval)
}

// Commit flushes pending writes.
func (s *Store) Commit() error {
	return s.entries.Commit()
}

// Close flushes pending writes and stops the autosave timer.
func (s *Store) Close() error {
	return s.entries.Close()
}

// Path returns the backing file.
func (s *Store) Path() string {
	return s.entries.Path()
}
