package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/felixgeelhaar/mnemo/internal/memory"
	"github.com/felixgeelhaar/mnemo/internal/vector"
)

// constEmbedder maps every text to the same vector, so every memory scores 1.
type constEmbedder struct{}

func (constEmbedder) Embed(context.Context, string) ([]float32, error) {
	return []float32{1, 1}, nil
}

func newArchival(t *testing.T) (*Registry, *memory.Memory) {
	t.Helper()
	store, err := vector.NewStore(filepath.Join(t.TempDir(), "memory.bin"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	m := memory.New(store, constEmbedder{})
	t.Cleanup(func() { m.Close() })

	r := NewRegistry()
	if err := RegisterArchival(r, m); err != nil {
		t.Fatalf("RegisterArchival: %v", err)
	}
	return r, m
}

func TestArchival_Insert(t *testing.T) {
	r, m := newArchival(t)
	ctx := context.Background()

	id, err := r.Execute(ctx, Call{Name: InsertArchivalMemory, Args: map[string]interface{}{
		"content": "likes green tea",
		"user_id": "u1",
	}})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	e, ok := m.Get(id)
	if !ok || e.Content != "likes green tea" || e.UserID != "u1" {
		t.Errorf("unexpected entry %+v", e)
	}

	testCases := []struct {
		name string
		args map[string]interface{}
	}{
		{"missing content", map[string]interface{}{}},
		{"blank content", map[string]interface{}{"content": "  "}},
		{"wrong type", map[string]interface{}{"content": 3}},
		{"unknown argument", map[string]interface{}{"content": "x", "extra": true}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := r.Execute(ctx, Call{Name: InsertArchivalMemory, Args: tc.args}); !errors.Is(err, ErrInvalidArgs) {
				t.Errorf("expected ErrInvalidArgs, got %v", err)
			}
		})
	}
	if m.Len() != 1 {
		t.Errorf("invalid calls must not insert, have %d", m.Len())
	}
}

func TestArchival_SearchPaging(t *testing.T) {
	r, m := newArchival(t)
	ctx := context.Background()
	for i := 0; i < 12; i++ {
		m.AddText(ctx, fmt.Sprintf("memory %02d", i), "")
	}

	testCases := []struct {
		name      string
		args      map[string]interface{}
		wantFirst string
		wantLines int
	}{
		{"first page", map[string]interface{}{}, "1. ", 5},
		{"second page", map[string]interface{}{"page": float64(1)}, "6. ", 5},
		{"last page", map[string]interface{}{"page": 2}, "11. ", 2},
		{"start offset", map[string]interface{}{"start": 3}, "4. ", 5},
		{"page and start", map[string]interface{}{"page": json.Number("1"), "start": 4}, "10. ", 3},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tc.args["query"] = "memory"
			out, err := r.Execute(ctx, Call{Name: SearchArchivalMemory, Args: tc.args})
			if err != nil {
				t.Fatalf("search: %v", err)
			}
			lines := strings.Split(out, "\n")
			if len(lines) != tc.wantLines {
				t.Errorf("got %d lines, want %d:\n%s", len(lines), tc.wantLines, out)
			}
			if !strings.HasPrefix(lines[0], tc.wantFirst) {
				t.Errorf("first line %q, want prefix %q", lines[0], tc.wantFirst)
			}
		})
	}

	out, err := r.Execute(ctx, Call{Name: SearchArchivalMemory, Args: map[string]interface{}{"query": "memory", "page": 3}})
	if err != nil || out != noResults {
		t.Errorf("past the end: %q, %v", out, err)
	}
}

func TestArchival_SearchByUser(t *testing.T) {
	r, m := newArchival(t)
	ctx := context.Background()
	m.AddText(ctx, "alice memory", "alice")
	m.AddText(ctx, "bob memory", "bob")

	out, err := r.Execute(ctx, Call{Name: SearchArchivalMemory, Args: map[string]interface{}{"query": "memory", "user_id": "bob"}})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if !strings.Contains(out, "bob memory") || strings.Contains(out, "alice") {
		t.Errorf("unexpected output %q", out)
	}

	out, _ = r.Execute(ctx, Call{Name: SearchArchivalMemory, Args: map[string]interface{}{"query": "memory", "user_id": "carol"}})
	if out != noResults {
		t.Errorf("expected no results, got %q", out)
	}
}

func TestArchival_SearchRejectsBadArgs(t *testing.T) {
	r, _ := newArchival(t)
	ctx := context.Background()

	testCases := []struct {
		name string
		args map[string]interface{}
	}{
		{"missing query", map[string]interface{}{}},
		{"negative page", map[string]interface{}{"query": "q", "page": -1}},
		{"fractional start", map[string]interface{}{"query": "q", "start": 1.5}},
		{"non-numeric page", map[string]interface{}{"query": "q", "page": "two"}},
		{"blank query", map[string]interface{}{"query": " "}},
		{"page overflows offset", map[string]interface{}{"query": "q", "page": int64(1844674407370955162)}},
		{"page past max offset", map[string]interface{}{"query": "q", "page": MaxOffset/PageSize + 1}},
		{"start past max offset", map[string]interface{}{"query": "q", "start": MaxOffset + 1}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := r.Execute(ctx, Call{Name: SearchArchivalMemory, Args: tc.args}); !errors.Is(err, ErrInvalidArgs) {
				t.Errorf("expected ErrInvalidArgs, got %v", err)
			}
		})
	}
}

func TestArchival_SearchAtMaxOffset(t *testing.T) {
	r, m := newArchival(t)
	ctx := context.Background()
	m.AddText(ctx, "only memory", "")

	out, err := r.Execute(ctx, Call{Name: SearchArchivalMemory, Args: map[string]interface{}{
		"query": "q",
		"page":  MaxOffset / PageSize,
	}})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if out != noResults {
		t.Errorf("expected %q, got %q", noResults, out)
	}
}

func TestArchival_Schemas(t *testing.T) {
	r, _ := newArchival(t)

	def, ok := r.Get(SearchArchivalMemory)
	if !ok || def.Parameters == nil {
		t.Fatal("search tool should carry a parameter schema")
	}
	if def.Parameters.Type != "object" {
		t.Errorf("unexpected schema type %q", def.Parameters.Type)
	}
	if len(def.Parameters.Required) != 1 || def.Parameters.Required[0] != "query" {
		t.Errorf("only query should be required, got %v", def.Parameters.Required)
	}
	if p := def.Parameters.Properties["page"]; p == nil || p.Type != "integer" {
		t.Errorf("page should be an integer, got %+v", p)
	}

	raw, err := json.Marshal(r.GetToolsForProvider())
	if err != nil {
		t.Fatalf("marshal provider tools: %v", err)
	}
	if !strings.Contains(string(raw), `"String to search for."`) {
		t.Errorf("descriptions missing from provider schema: %s", raw)
	}
}
