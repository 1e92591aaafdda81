// Package memory is the text-level entry point to long-term memory. It turns
// text into embeddings and delegates storage and ranking to the vector store.
package memory

import (
	"context"
	"fmt"

	"github.com/bmatcuk/doublestar/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/felixgeelhaar/mnemo/internal/events"
	"github.com/felixgeelhaar/mnemo/internal/observe"
	"github.com/felixgeelhaar/mnemo/internal/vector"
)

// Embedder turns text into a vector. Failures are returned to the caller
// of the operation that needed the embedding.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Item is a search hit.
type Item struct {
	ID         string
	Content    string
	UserID     string
	Similarity float64
}

// Memory wraps a vector store with an embedder.
type Memory struct {
	store    *vector.Store
	embedder Embedder
	obs      *observe.Observer
	bus      *events.Bus
}

// Option configures a Memory.
type Option func(*Memory)

// WithObserver sets the logger and tracer.
func WithObserver(o *observe.Observer) Option {
	return func(m *Memory) { m.obs = o }
}

// WithEvents publishes lifecycle events to bus.
func WithEvents(bus *events.Bus) Option {
	return func(m *Memory) { m.bus = bus }
}

// New creates a Memory over store using embedder for every text it sees.
func New(store *vector.Store, embedder Embedder, opts ...Option) *Memory {
	m := &Memory{store: store, embedder: embedder}
	for _, opt := range opts {
		opt(m)
	}
	if m.obs == nil {
		m.obs = observe.Nop()
	}
	return m
}

// ForUser matches entries owned by userID.
func ForUser(userID string) vector.Filter {
	return func(md vector.Metadata) bool { return md.UserID == userID }
}

// MatchUser matches entries whose user id satisfies a doublestar glob such
// as "discord:*".
func MatchUser(pattern string) (vector.Filter, error) {
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid user pattern %q", pattern)
	}
	return func(md vector.Metadata) bool {
		ok, _ := doublestar.Match(pattern, md.UserID)
		return ok
	}, nil
}

// AddText embeds content and stores it for userID, which may be empty.
func (m *Memory) AddText(ctx context.Context, content, userID string) (string, error) {
	ctx, span := m.obs.StartSpan(ctx, "memory.add")
	defer span.End()

	vec, err := m.embedder.Embed(ctx, content)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "embed failed")
		return "", fmt.Errorf("embed content: %w", err)
	}
	if err := vector.CheckFinite(vec); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid embedding")
		return "", fmt.Errorf("embed content: %w", err)
	}

	id := m.store.AddVector(vec, vector.Metadata{Content: content, UserID: userID})
	span.SetAttributes(attribute.String("memory.id", id), attribute.Int("memory.dims", len(vec)))
	m.obs.Log().Info().Str("id", id).Str("user", userID).Int("dims", len(vec)).Msg("memory added")
	m.bus.PublishEntry(events.MemoryAdded, id, userID)
	return id, nil
}

// SearchWithScore returns up to limit entries most similar to query, best
// first. A nil filter searches everything.
func (m *Memory) SearchWithScore(ctx context.Context, query string, limit int, f vector.Filter) ([]Item, error) {
	ctx, span := m.obs.StartSpan(ctx, "memory.search")
	defer span.End()

	vec, err := m.embedder.Embed(ctx, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "embed failed")
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if err := vector.CheckFinite(vec); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid embedding")
		return nil, fmt.Errorf("embed query: %w", err)
	}

	hits := m.store.SimilaritySearchWithScore(vec, limit, f)
	items := make([]Item, len(hits))
	for i, h := range hits {
		items[i] = Item{
			ID:         h.Entry.ID,
			Content:    h.Entry.Content,
			UserID:     h.Entry.UserID,
			Similarity: h.Score,
		}
	}

	span.SetAttributes(attribute.Int("memory.limit", limit), attribute.Int("memory.results", len(items)))
	m.bus.PublishWithData(events.MemorySearched, map[string]any{"query": query, "results": len(items)})
	return items, nil
}

// Search is SearchWithScore reduced to the matching contents.
func (m *Memory) Search(ctx context.Context, query string, limit int, f vector.Filter) ([]string, error) {
	items, err := m.SearchWithScore(ctx, query, limit, f)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Content
	}
	return out, nil
}

// GetUserMemory returns the contents stored for userID in insertion order.
func (m *Memory) GetUserMemory(userID string) []string {
	return m.FilterMemory(ForUser(userID))
}

// FilterMemory returns the contents of entries matching f in insertion order.
func (m *Memory) FilterMemory(f vector.Filter) []string {
	entries := m.store.Filter(f)
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Content
	}
	return out
}

// Get returns the entry stored under id.
func (m *Memory) Get(id string) (vector.Entry, bool) {
	return m.store.Get(id)
}

// GetAll returns every entry in insertion order.
func (m *Memory) GetAll() []vector.Entry {
	return m.store.GetAll()
}

// Delete removes id. Missing ids are ignored.
func (m *Memory) Delete(id string) {
	e, ok := m.store.Get(id)
	if !ok {
		return
	}
	m.store.Delete(id)
	m.bus.PublishEntry(events.MemoryDeleted, id, e.UserID)
}

// Update re-embeds content and replaces the entry under id. It reports
// whether id existed; the embedder is not called for a missing id.
func (m *Memory) Update(ctx context.Context, id, content string) (bool, error) {
	e, ok := m.store.Get(id)
	if !ok {
		return false, nil
	}

	ctx, span := m.obs.StartSpan(ctx, "memory.update")
	defer span.End()

	vec, err := m.embedder.Embed(ctx, content)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "embed failed")
		return false, fmt.Errorf("embed content: %w", err)
	}
	if err := vector.CheckFinite(vec); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid embedding")
		return false, fmt.Errorf("embed content: %w", err)
	}
	if !m.store.Update(id, vec, content) {
		// Deleted while the embedding was computed.
		return false, nil
	}
	m.bus.PublishEntry(events.MemoryUpdated, id, e.UserID)
	return true, nil
}

// Import restores previously exported entries under their original ids
// and returns how many were written. Entries already present are replaced.
func (m *Memory) Import(entries []vector.Entry) (int, error) {
	for i, e := range entries {
		if err := m.store.Restore(e); err != nil {
			return i, fmt.Errorf("import entry %d: %w", i, err)
		}
		m.bus.PublishEntry(events.MemoryAdded, e.ID, e.UserID)
	}
	if err := m.store.Commit(); err != nil {
		return len(entries), fmt.Errorf("commit import: %w", err)
	}
	m.obs.Log().Info().Int("entries", len(entries)).Msg("memory imported")
	return len(entries), nil
}

// Clear wipes every entry and persists the empty store immediately.
func (m *Memory) Clear() error {
	if err := m.store.Clear(); err != nil {
		return fmt.Errorf("clear memory: %w", err)
	}
	m.obs.Log().Info().Str("path", m.store.Path()).Msg("memory cleared")
	m.bus.Publish(events.Event{Type: events.MemoryCleared})
	return nil
}

// Len reports the number of stored entries.
func (m *Memory) Len() int {
	return m.store.Len()
}

// Commit flushes pending writes.
func (m *Memory) Commit() error {
	return m.store.Commit()
}

// Close flushes pending writes. Hosts must call it on shutdown.
func (m *Memory) Close() error {
	return m.store.Close()
}
