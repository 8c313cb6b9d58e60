// internal/layout/layout_test.go
package layout

import (
	"testing"

	"github.com/douju/douju-editor/internal/models"
	"github.com/douju/douju-editor/internal/store"
)

func TestResolveDefaultLayout(t *testing.T) {
	node := &models.StoryNode{ID: "a"}
	l := Resolve(node)

	if l.Text.Custom || l.Options.Custom {
		t.Fatal("node without overrides must use the default layout")
	}
	if l.Text.Left != 10 || l.Text.Bottom != 10 || l.Text.Width != 60 {
		t.Fatalf("wrong default text region: %+v", l.Text)
	}
	if l.Options.Right != 10 || l.Options.Bottom != 10 || l.Options.Width != 30 {
		t.Fatalf("wrong default options region: %+v", l.Options)
	}
}

func TestResolveCustomLayout(t *testing.T) {
	node := &models.StoryNode{
		ID:         "a",
		TextPos:    &models.ElementPosition{X: 20, Y: 30},
		OptionsPos: &models.ElementPosition{X: 70, Y: 65},
	}
	l := Resolve(node)

	if !l.Text.Custom || !l.Options.Custom {
		t.Fatal("overrides must yield custom regions")
	}
	if l.Text.Left != 20 || l.Text.Top != 30 || l.Text.Width != 40 {
		t.Fatalf("wrong custom text region: %+v", l.Text)
	}
	if l.Options.Left != 70 || l.Options.Top != 65 || l.Options.Width != 30 {
		t.Fatalf("wrong custom options region: %+v", l.Options)
	}
}

func TestResolveClampsOutOfRangeOverrides(t *testing.T) {
	node := &models.StoryNode{
		ID:      "a",
		TextPos: &models.ElementPosition{X: -5, Y: 130},
	}
	l := Resolve(node)
	if l.Text.Left != 0 || l.Text.Top != 100 {
		t.Fatalf("override not clamped: %+v", l.Text)
	}
}

func TestEditorDragClampsToSurface(t *testing.T) {
	node := &models.StoryNode{ID: "a"}
	e := NewEditor(node)

	cases := []struct {
		name         string
		px, py       float64
		wantX, wantY float64
	}{
		{"center", 800, 450, 50, 50},
		{"past right-bottom", 2000, 1200, 100, 100},
		{"past left-top", -50, -50, 0, 0},
		{"on edge", 1600, 0, 100, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e.BeginDrag(BlockText)
			e.Drag(tc.px, tc.py, 1600, 900)
			e.EndDrag()
			text, _ := e.Positions()
			if text.X != tc.wantX || text.Y != tc.wantY {
				t.Fatalf("got (%v,%v) want (%v,%v)", text.X, text.Y, tc.wantX, tc.wantY)
			}
		})
	}
}

func TestEditorDefaultsAndSeeds(t *testing.T) {
	e := NewEditor(&models.StoryNode{ID: "a"})
	text, opts := e.Positions()
	if text != (models.ElementPosition{X: 5, Y: 60}) || opts != (models.ElementPosition{X: 5, Y: 80}) {
		t.Fatalf("wrong defaults: text=%+v opts=%+v", text, opts)
	}

	e = NewEditor(&models.StoryNode{
		ID:         "b",
		TextPos:    &models.ElementPosition{X: 11, Y: 22},
		OptionsPos: &models.ElementPosition{X: 33, Y: 44},
	})
	text, opts = e.Positions()
	if text.X != 11 || opts.Y != 44 {
		t.Fatalf("existing overrides not seeded: text=%+v opts=%+v", text, opts)
	}
}

func TestEditorCommitsOnlyOnSave(t *testing.T) {
	s := store.NewGraphStore()
	s.Create(&models.StoryNode{ID: "a", Type: models.NodeScene})

	node, _ := s.Get("a")
	e := NewEditor(node)
	e.BeginDrag(BlockText)
	e.Drag(400, 300, 800, 600)
	e.EndDrag()
	e.BeginDrag(BlockOptions)
	e.Drag(600, 450, 800, 600)
	e.EndDrag()

	if got, _ := s.Get("a"); got.TextPos != nil {
		t.Fatal("drag state must stay local until commit")
	}

	e.Commit(s)

	got, _ := s.Get("a")
	if got.TextPos == nil || got.OptionsPos == nil {
		t.Fatal("commit should persist both positions")
	}
	if got.TextPos.X != 50 || got.TextPos.Y != 50 {
		t.Fatalf("wrong committed text position: %+v", got.TextPos)
	}
	if got.OptionsPos.X != 75 || got.OptionsPos.Y != 75 {
		t.Fatalf("wrong committed options position: %+v", got.OptionsPos)
	}
}

func TestDragWithoutBeginIsNoop(t *testing.T) {
	e := NewEditor(&models.StoryNode{ID: "a"})
	e.Drag(100, 100, 200, 200)
	text, _ := e.Positions()
	if text != (models.ElementPosition{X: 5, Y: 60}) {
		t.Fatalf("drag without an active block moved something: %+v", text)
	}
}
