package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/felixgeelhaar/mnemo/internal/events"
	"github.com/felixgeelhaar/mnemo/internal/vector"
)

type fakeSource struct {
	entries []vector.Entry
	deleted []string
}

func (f *fakeSource) GetAll() []vector.Entry {
	out := make([]vector.Entry, len(f.entries))
	copy(out, f.entries)
	return out
}

func (f *fakeSource) Delete(id string) {
	f.deleted = append(f.deleted, id)
	for i, e := range f.entries {
		if e.ID == id {
			f.entries = append(f.entries[:i], f.entries[i+1:]...)
			return
		}
	}
}

func newSource() *fakeSource {
	created := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	return &fakeSource{entries: []vector.Entry{
		{ID: "aaaaaaaa-1111", Metadata: vector.Metadata{Content: "likes tea", UserID: "alice", CreatedAt: created}},
		{ID: "bbbbbbbb-2222", Metadata: vector.Metadata{Content: "plays chess", CreatedAt: created}},
	}}
}

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestModel_LoadsEntries(t *testing.T) {
	m := NewModel(newSource())

	rows := m.Table.Rows()
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "aaaaaaaa" || rows[0][1] != "alice" || rows[0][3] != "likes tea" {
		t.Errorf("unexpected row %v", rows[0])
	}
	if rows[1][1] != "-" {
		t.Errorf("empty user should render as '-', got %q", rows[1][1])
	}
	if m.SelectedID() != "aaaaaaaa-1111" {
		t.Errorf("unexpected selection %q", m.SelectedID())
	}

	view := m.View()
	if !strings.Contains(view, "2 memories") || !strings.Contains(view, "likes tea") {
		t.Errorf("unexpected view:\n%s", view)
	}
}

func TestModel_DeleteSelected(t *testing.T) {
	src := newSource()
	var model tea.Model = NewModel(src)

	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyDown})
	model, _ = model.Update(key("d"))

	m := model.(Model)
	if len(src.deleted) != 1 || src.deleted[0] != "bbbbbbbb-2222" {
		t.Fatalf("expected second entry deleted, got %v", src.deleted)
	}
	if len(m.Table.Rows()) != 1 {
		t.Errorf("expected 1 row after delete, got %d", len(m.Table.Rows()))
	}
	if m.SelectedID() != "aaaaaaaa-1111" {
		t.Errorf("cursor should clamp to remaining row, got %q", m.SelectedID())
	}
	if !strings.Contains(m.Status, "deleted bbbbbbbb") {
		t.Errorf("unexpected status %q", m.Status)
	}
}

func TestModel_DeleteOnEmpty(t *testing.T) {
	src := &fakeSource{}
	var model tea.Model = NewModel(src)
	model, _ = model.Update(key("d"))
	if len(src.deleted) != 0 {
		t.Errorf("nothing should be deleted, got %v", src.deleted)
	}
	if !strings.Contains(model.View(), "No memories stored.") {
		t.Errorf("unexpected view:\n%s", model.View())
	}
}

func TestModel_ReloadAndEvents(t *testing.T) {
	src := newSource()
	var model tea.Model = NewModel(src)

	src.entries = append(src.entries, vector.Entry{ID: "cccccccc-3333", Metadata: vector.Metadata{Content: "new"}})
	model, _ = model.Update(key("r"))
	if n := len(model.(Model).Table.Rows()); n != 3 {
		t.Errorf("expected 3 rows after reload, got %d", n)
	}

	src.entries = src.entries[:1]
	model, _ = model.Update(EventMsg(events.Event{Type: events.MemoryDeleted, EntryID: "bbbbbbbb-2222"}))
	m := model.(Model)
	if len(m.Table.Rows()) != 1 {
		t.Errorf("expected 1 row after event, got %d", len(m.Table.Rows()))
	}
	if !strings.Contains(m.Status, "bbbbbbbb") {
		t.Errorf("unexpected status %q", m.Status)
	}
}

func TestModel_Quit(t *testing.T) {
	var model tea.Model = NewModel(newSource())
	model, cmd := model.Update(key("q"))
	if !model.(Model).Quitting {
		t.Error("expected quitting state")
	}
	if cmd == nil {
		t.Error("expected quit command")
	}
}

func TestModel_WindowSize(t *testing.T) {
	var model tea.Model = NewModel(newSource())
	model, _ = model.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	m := model.(Model)
	if m.Width != 120 || m.Height != 40 {
		t.Errorf("size not recorded: %dx%d", m.Width, m.Height)
	}
	cols := m.Table.Columns()
	if cols[3].Width != 120-8-16-18-10 {
		t.Errorf("unexpected content width %d", cols[3].Width)
	}
}
