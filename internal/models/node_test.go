// internal/models/node_test.go
package models

import "testing"

func TestHasCustomLayout(t *testing.T) {
	cases := []struct {
		name string
		node StoryNode
		want bool
	}{
		{"no overrides", StoryNode{ID: "a"}, false},
		{"text only", StoryNode{ID: "a", TextPos: &ElementPosition{X: 10, Y: 20}}, true},
		{"options only", StoryNode{ID: "a", OptionsPos: &ElementPosition{X: 70, Y: 80}}, true},
		{"both", StoryNode{ID: "a", TextPos: &ElementPosition{}, OptionsPos: &ElementPosition{}}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.node.HasCustomLayout(); got != tc.want {
				t.Fatalf("got %v want %v", got, tc.want)
			}
		})
	}
}

func TestCloneIsDeep(t *testing.T) {
	n := &StoryNode{
		ID:      "a",
		Options: []StoryOption{{ID: "o1", Label: "go", TargetID: "b"}},
		TextPos: &ElementPosition{X: 10, Y: 20},
	}
	c := n.Clone()
	c.Options[0].Label = "stay"
	c.TextPos.X = 99

	if n.Options[0].Label != "go" {
		t.Fatal("clone shares the options slice")
	}
	if n.TextPos.X != 10 {
		t.Fatal("clone shares the text position")
	}
}
