package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/felixgeelhaar/mnemo/internal/memory"
	"github.com/felixgeelhaar/mnemo/internal/vector"
)

const (
	InsertArchivalMemory = "insert_archival_memory"
	SearchArchivalMemory = "search_archival_memory"

	// PageSize is the number of results per search page.
	PageSize = 5

	// MaxOffset bounds start + page*PageSize.
	MaxOffset = 1 << 20

	noResults = "No results found."
)

type insertArgs struct {
	Content string `json:"content" jsonschema:"Content to write to the memory."`
	UserID  string `json:"user_id,omitempty" jsonschema:"Owner of the memory. Optional."`
}

type searchArgs struct {
	Query  string `json:"query" jsonschema:"String to search for."`
	Page   int    `json:"page,omitempty" jsonschema:"Allows you to page through results. Only use on a follow-up query. Defaults to 0 (first page)."`
	Start  int    `json:"start,omitempty" jsonschema:"Starting index for the search results. Defaults to 0."`
	UserID string `json:"user_id,omitempty" jsonschema:"Only search memories of this user. Optional."`
}

// RegisterArchival adds the archival memory tools backed by m.
func RegisterArchival(r *Registry, m *memory.Memory) error {
	insertSchema, err := jsonschema.For[insertArgs](nil)
	if err != nil {
		return err
	}
	searchSchema, err := jsonschema.For[searchArgs](nil)
	if err != nil {
		return err
	}

	insert := Definition{
		Name:        InsertArchivalMemory,
		Description: "Add to archival memory. Make sure to phrase the memory contents such that it can be easily queried later.",
		Parameters:  insertSchema,
	}
	search := Definition{
		Name:        SearchArchivalMemory,
		Description: "Search archival memory using semantic (embedding-based) search.",
		Parameters:  searchSchema,
	}

	if err := r.Register(insert, insertExecutor(m)); err != nil {
		return err
	}
	return r.Register(search, searchExecutor(m))
}

func insertExecutor(m *memory.Memory) Executor {
	return func(ctx context.Context, call Call) (string, error) {
		var args insertArgs
		if err := DecodeArgs(call.Args, &args); err != nil {
			return "", err
		}
		if strings.TrimSpace(args.Content) == "" {
			return "", fmt.Errorf("%w: content must not be empty", ErrInvalidArgs)
		}
		return m.AddText(ctx, args.Content, args.UserID)
	}
}

func searchExecutor(m *memory.Memory) Executor {
	return func(ctx context.Context, call Call) (string, error) {
		var args searchArgs
		if err := DecodeArgs(call.Args, &args); err != nil {
			return "", err
		}
		if strings.TrimSpace(args.Query) == "" {
			return "", fmt.Errorf("%w: query must not be empty", ErrInvalidArgs)
		}
		if args.Page < 0 || args.Start < 0 {
			return "", fmt.Errorf("%w: page and start must not be negative", ErrInvalidArgs)
		}
		if args.Page > (MaxOffset-args.Start)/PageSize {
			return "", fmt.Errorf("%w: page and start select past offset %d", ErrInvalidArgs, MaxOffset)
		}

		var f vector.Filter
		if args.UserID != "" {
			f = memory.ForUser(args.UserID)
		}

		offset := args.Start + args.Page*PageSize
		items, err := m.SearchWithScore(ctx, args.Query, offset+PageSize, f)
		if err != nil {
			return "", err
		}
		if offset >= len(items) {
			return noResults, nil
		}

		var b strings.Builder
		for i, it := range items[offset:] {
			fmt.Fprintf(&b, "%d. [%.3f] %s (id: %s)\n", offset+i+1, it.Similarity, it.Content, it.ID)
		}
		return strings.TrimRight(b.String(), "\n"), nil
	}
}
