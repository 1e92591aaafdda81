package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/mnemo/internal/memory"
	"github.com/felixgeelhaar/mnemo/internal/vector"
)

// entryView is the JSON shape of an entry; vectors are left out.
type entryView struct {
	ID        string     `json:"id"`
	Content   string     `json:"content"`
	UserID    string     `json:"userId,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
	Dims      int        `json:"dims"`
}

func viewOf(e vector.Entry) entryView {
	return entryView{
		ID:        e.ID,
		Content:   e.Content,
		UserID:    e.UserID,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
		Dims:      len(e.Embedding),
	}
}

func newMemoryCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "memory",
		Aliases: []string{"mem"},
		Short:   "Add, search and manage memories",
	}
	cmd.AddCommand(
		newMemoryAddCmd(opts),
		newMemorySearchCmd(opts),
		newMemoryGetCmd(opts),
		newMemoryUserCmd(opts),
		newMemoryListCmd(opts),
		newMemoryUpdateCmd(opts),
		newMemoryDeleteCmd(opts),
		newMemoryClearCmd(opts),
		newMemoryExportCmd(opts),
		newMemoryImportCmd(opts),
		newMemorySnapshotsCmd(opts),
	)
	return cmd
}

func newMemoryAddCmd(opts *options) *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "add [content...]",
		Short: "Store a memory",
		Args:  cobra.MinimumNArgs(1),
		RunE: withApp(opts, func(cmd *cobra.Command, a *app, args []string) error {
			m, err := a.openMemory()
			if err != nil {
				return err
			}
			stop := a.spin("embedding")
			id, err := m.AddText(cmd.Context(), strings.Join(args, " "), userID)
			stop()
			if err != nil {
				return err
			}
			if a.jsonOut {
				return a.printJSON(map[string]string{"id": id})
			}
			a.printf("%s\n", id)
			return nil
		}),
	}
	cmd.Flags().StringVarP(&userID, "user", "u", "", "Owner of the memory")
	return cmd
}

func newMemorySearchCmd(opts *options) *cobra.Command {
	var (
		limit    int
		userID   string
		userGlob string
		scores   bool
	)
	cmd := &cobra.Command{
		Use:   "search [query...]",
		Short: "Find the memories most similar to a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: withApp(opts, func(cmd *cobra.Command, a *app, args []string) error {
			f, err := userFilter(userID, userGlob)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("limit") {
				limit = a.cfg.Search.DefaultLimit
			}
			m, err := a.openMemory()
			if err != nil {
				return err
			}
			stop := a.spin("searching")
			items, err := m.SearchWithScore(cmd.Context(), strings.Join(args, " "), limit, f)
			stop()
			if err != nil {
				return err
			}

			if a.jsonOut {
				return a.printJSON(items)
			}
			if len(items) == 0 {
				a.printf("No results found.\n")
				return nil
			}
			for _, it := range items {
				if scores {
					a.printf("%.4f\t%s\n", it.Similarity, it.Content)
				} else {
					a.printf("%s\n", it.Content)
				}
			}
			return nil
		}),
	}
	cmd.Flags().IntVarP(&limit, "limit", "k", 5, "Maximum number of results (default from config)")
	cmd.Flags().StringVarP(&userID, "user", "u", "", "Only search memories of this user")
	cmd.Flags().StringVar(&userGlob, "user-glob", "", "Only search users matching a glob, e.g. 'discord:*'")
	cmd.Flags().BoolVar(&scores, "scores", false, "Print similarity scores")
	return cmd
}

func newMemoryGetCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "get [id]",
		Short: "Show one memory",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(opts, func(cmd *cobra.Command, a *app, args []string) error {
			m, err := a.openMemory()
			if err != nil {
				return err
			}
			e, ok := m.Get(args[0])
			if !ok {
				return fmt.Errorf("memory %s not found", args[0])
			}
			if a.jsonOut {
				return a.printJSON(viewOf(e))
			}
			a.printf("id:      %s\n", e.ID)
			a.printf("user:    %s\n", e.UserID)
			a.printf("created: %s\n", e.CreatedAt.Format(time.RFC3339))
			if e.UpdatedAt != nil {
				a.printf("updated: %s\n", e.UpdatedAt.Format(time.RFC3339))
			}
			a.printf("dims:    %d\n", len(e.Embedding))
			a.printf("content: %s\n", e.Content)
			return nil
		}),
	}
}

func newMemoryUserCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "user [userId]",
		Short: "List the memories of one user in insertion order",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(opts, func(cmd *cobra.Command, a *app, args []string) error {
			m, err := a.openMemory()
			if err != nil {
				return err
			}
			contents := m.GetUserMemory(args[0])
			if a.jsonOut {
				return a.printJSON(contents)
			}
			for _, c := range contents {
				a.printf("%s\n", c)
			}
			return nil
		}),
	}
}

func newMemoryListCmd(opts *options) *cobra.Command {
	var userGlob string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all memories",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, func(cmd *cobra.Command, a *app, args []string) error {
			f, err := userFilter("", userGlob)
			if err != nil {
				return err
			}
			m, err := a.openMemory()
			if err != nil {
				return err
			}
			entries := m.GetAll()
			if f != nil {
				filtered := entries[:0]
				for _, e := range entries {
					if f(e.Metadata) {
						filtered = append(filtered, e)
					}
				}
				entries = filtered
			}

			if a.jsonOut {
				views := make([]entryView, len(entries))
				for i, e := range entries {
					views[i] = viewOf(e)
				}
				return a.printJSON(views)
			}
			for _, e := range entries {
				a.printf("%s\t%s\t%s\n", e.ID, e.UserID, e.Content)
			}
			return nil
		}),
	}
	cmd.Flags().StringVar(&userGlob, "user-glob", "", "Only list users matching a glob")
	return cmd
}

func newMemoryUpdateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "update [id] [content...]",
		Short: "Replace the content of a memory",
		Args:  cobra.MinimumNArgs(2),
		RunE: withApp(opts, func(cmd *cobra.Command, a *app, args []string) error {
			m, err := a.openMemory()
			if err != nil {
				return err
			}
			stop := a.spin("embedding")
			ok, err := m.Update(cmd.Context(), args[0], strings.Join(args[1:], " "))
			stop()
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("memory %s not found", args[0])
			}
			a.printf("Updated %s\n", args[0])
			return nil
		}),
	}
}

func newMemoryDeleteCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete a memory",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(opts, func(cmd *cobra.Command, a *app, args []string) error {
			m, err := a.openMemory()
			if err != nil {
				return err
			}
			if _, ok := m.Get(args[0]); !ok {
				return fmt.Errorf("memory %s not found", args[0])
			}
			m.Delete(args[0])
			a.printf("Deleted %s\n", args[0])
			return nil
		}),
	}
}

func newMemoryClearCmd(opts *options) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every memory",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, func(cmd *cobra.Command, a *app, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to clear memory without --yes")
			}
			m, err := a.openMemory()
			if err != nil {
				return err
			}
			n := m.Len()
			if err := m.Clear(); err != nil {
				return err
			}
			a.printf("Cleared %d memories\n", n)
			return nil
		}),
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm clearing all memories")
	return cmd
}

func newMemoryExportCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "export [snapshot]",
		Short: "Save all memories into a named snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(opts, func(cmd *cobra.Command, a *app, args []string) error {
			m, err := a.openMemory()
			if err != nil {
				return err
			}
			entries := m.GetAll()
			if err := a.store.SaveSnapshot(args[0], entries); err != nil {
				return err
			}
			a.printf("Exported %d memories to %s\n", len(entries), args[0])
			return nil
		}),
	}
}

func newMemoryImportCmd(opts *options) *cobra.Command {
	var replace bool
	cmd := &cobra.Command{
		Use:   "import [snapshot]",
		Short: "Restore memories from a named snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(opts, func(cmd *cobra.Command, a *app, args []string) error {
			entries, err := a.store.LoadSnapshot(args[0])
			if err != nil {
				return err
			}
			m, err := a.openMemory()
			if err != nil {
				return err
			}
			if replace {
				if err := m.Clear(); err != nil {
					return err
				}
			}
			n, err := m.Import(entries)
			if err != nil {
				return err
			}
			a.printf("Imported %d memories from %s\n", n, args[0])
			return nil
		}),
	}
	cmd.Flags().BoolVar(&replace, "replace", false, "Clear memory before importing")
	return cmd
}

func newMemorySnapshotsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "snapshots",
		Short: "List saved snapshots",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, func(cmd *cobra.Command, a *app, args []string) error {
			names, err := a.store.ListSnapshots()
			if err != nil {
				return err
			}
			if a.jsonOut {
				if names == nil {
					names = []string{}
				}
				return a.printJSON(names)
			}
			for _, n := range names {
				a.printf("%s\n", n)
			}
			return nil
		}),
	}
}

func userFilter(userID, userGlob string) (vector.Filter, error) {
	switch {
	case userID != "" && userGlob != "":
		return nil, fmt.Errorf("--user and --user-glob are mutually exclusive")
	case userID != "":
		return memory.ForUser(userID), nil
	case userGlob != "":
		return memory.MatchUser(userGlob)
	}
	return nil, nil
}
