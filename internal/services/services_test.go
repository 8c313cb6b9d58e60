// internal/services/services_test.go
package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	apperrors "github.com/douju/douju-editor/internal/errors"
	"github.com/douju/douju-editor/internal/gen"
	"github.com/douju/douju-editor/internal/models"
	"github.com/douju/douju-editor/internal/storage"
	"github.com/douju/douju-editor/internal/store"
)

type fakeProvider struct {
	choices    []gen.BranchChoice
	choicesErr error
	polished   string
	imageSrc   string
	imageErr   error
	audioSrc   string
	audioErr   error
	graph      map[string]*models.StoryNode
	graphErr   error
}

func (f *fakeProvider) Initialize(map[string]string) error { return nil }
func (f *fakeProvider) GetName() string                    { return "fake" }
func (f *fakeProvider) GenerateStoryGraph(ctx context.Context, theme, style string, topology gen.Topology) (map[string]*models.StoryNode, error) {
	return f.graph, f.graphErr
}
func (f *fakeProvider) GenerateImage(ctx context.Context, sceneText, style string) (string, error) {
	return f.imageSrc, f.imageErr
}
func (f *fakeProvider) GenerateAvatar(ctx context.Context, name, description, style string) (string, error) {
	return f.imageSrc, f.imageErr
}
func (f *fakeProvider) GenerateVideo(ctx context.Context, sceneText, style string) (string, error) {
	return f.imageSrc, f.imageErr
}
func (f *fakeProvider) GenerateAudio(ctx context.Context, sceneText string, kind gen.AudioKind) (string, error) {
	return f.audioSrc, f.audioErr
}
func (f *fakeProvider) PolishText(ctx context.Context, text, style string) string {
	if f.polished == "" {
		return text
	}
	return f.polished
}
func (f *fakeProvider) GenerateBranchChoices(ctx context.Context, sceneText, style string) ([]gen.BranchChoice, error) {
	return f.choices, f.choicesErr
}

func newProjectService(t *testing.T) *ProjectService {
	t.Helper()
	fs, err := storage.NewFileStorage(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return NewProjectService(store.NewGraphStore(), fs)
}

func TestNewProjectSeedsDemoStory(t *testing.T) {
	svc := newProjectService(t)
	svc.NewProject()

	start, ok := svc.Store.Get("start")
	if !ok {
		t.Fatal("seed project must contain a start node")
	}
	if len(start.Options) != 2 || start.Options[0].TargetID != "n2" || start.Options[1].TargetID != "n3" {
		t.Fatalf("wrong seed wiring: %+v", start.Options)
	}
	if svc.Store.Viewport().Zoom != 1 {
		t.Fatalf("seed viewport zoom should be 1, got %v", svc.Store.Viewport().Zoom)
	}
}

func TestImportInvalidJSONLeavesProjectUntouched(t *testing.T) {
	svc := newProjectService(t)
	svc.NewProject()
	before := svc.Store.Revision()

	if err := svc.Import([]byte("{not json")); err == nil {
		t.Fatal("expected a validation error")
	} else if !apperrors.IsValidationError(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if svc.Store.Revision() != before {
		t.Fatal("failed import must not mutate the store")
	}
	if _, ok := svc.Store.Get("start"); !ok {
		t.Fatal("previous project lost after failed import")
	}
}

func TestImportStructurallyInvalidLeavesProjectUntouched(t *testing.T) {
	svc := newProjectService(t)
	svc.NewProject()

	// Key and node id disagree.
	bad := []byte(`{"nodes": {"a": {"id": "b", "type": "scene", "options": []}}, "characters": {}, "viewport": {"x":0,"y":0,"zoom":1}}`)
	if err := svc.Import(bad); err == nil {
		t.Fatal("expected a validation error")
	}
	if _, ok := svc.Store.Get("start"); !ok {
		t.Fatal("previous project lost after failed import")
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	svc := newProjectService(t)
	svc.NewProject()
	svc.Store.SetViewport(models.Viewport{X: 12, Y: -7, Zoom: 1.5})
	svc.Store.UpsertCharacter(&models.Character{ID: "c1", Name: "队长"})

	data, err := svc.Export()
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	other := newProjectService(t)
	if err := other.Import(data); err != nil {
		t.Fatalf("import: %v", err)
	}

	a := svc.Store.Snapshot()
	b := other.Store.Snapshot()
	aj, _ := json.Marshal(a)
	bj, _ := json.Marshal(b)
	if string(aj) != string(bj) {
		t.Fatalf("round trip mismatch:\n%s\n%s", aj, bj)
	}
}

func TestSaveLoadListDelete(t *testing.T) {
	svc := newProjectService(t)
	svc.NewProject()

	if err := svc.Save("demo"); err != nil {
		t.Fatalf("save: %v", err)
	}
	names, err := svc.List()
	if err != nil || len(names) != 1 || names[0] != "demo" {
		t.Fatalf("list: %v %v", names, err)
	}

	svc.Store.Delete("start")
	if err := svc.Load("demo"); err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, ok := svc.Store.Get("start"); !ok {
		t.Fatal("load did not restore the saved project")
	}

	if err := svc.Delete("demo"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := svc.Load("demo"); !apperrors.IsNotFoundError(err) {
		t.Fatalf("expected not-found after delete, got %v", err)
	}
}

func TestProjectNameValidation(t *testing.T) {
	svc := newProjectService(t)
	for _, name := range []string{"", "../evil", "a/b", `a\b`, "dots.inside"} {
		if err := svc.Save(name); !apperrors.IsValidationError(err) {
			t.Fatalf("name %q should be rejected, got %v", name, err)
		}
	}
}

func newEditorService(t *testing.T, p gen.Provider) *EditorService {
	t.Helper()
	svc := NewEditorService(store.NewGraphStore(), p)
	svc.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return svc
}

func TestAutoBranchFansNodesAroundParent(t *testing.T) {
	p := &fakeProvider{choices: []gen.BranchChoice{
		{Label: "战斗", Content: "你拔出了武器。"},
		{Label: "逃跑", Content: "你转身冲向出口。"},
		{Label: "谈判", Content: "你举起双手。"},
	}}
	svc := newEditorService(t, p)
	svc.Store.Create(&models.StoryNode{ID: "a", Type: models.NodeScene, X: 100, Y: 500, Options: []models.StoryOption{}})

	var bulks int
	svc.Store.Subscribe(func(c store.Change) {
		if c.Kind == store.ChangeBulk {
			bulks++
		}
	})

	created, err := svc.AutoBranch(context.Background(), "a", "cinematic")
	if err != nil {
		t.Fatalf("auto branch: %v", err)
	}
	if len(created) != 3 {
		t.Fatalf("expected 3 branches, got %d", len(created))
	}
	if bulks != 1 {
		t.Fatalf("branch creation must be one observable change, got %d", bulks)
	}

	// Column to the right, fanned vertically, centered on the parent.
	wantY := []float64{300, 500, 700}
	for i, n := range created {
		if n.X != 450 {
			t.Fatalf("branch %d x = %v, want 450", i, n.X)
		}
		if n.Y != wantY[i] {
			t.Fatalf("branch %d y = %v, want %v", i, n.Y, wantY[i])
		}
	}

	parent, _ := svc.Store.Get("a")
	if len(parent.Options) != 3 {
		t.Fatalf("parent should gain one option per branch, got %d", len(parent.Options))
	}
	for i, opt := range parent.Options {
		if opt.TargetID != created[i].ID || opt.Label != p.choices[i].Label {
			t.Fatalf("option %d not wired to its branch: %+v", i, opt)
		}
	}
}

func TestAutoBranchFailureLeavesGraphUnchanged(t *testing.T) {
	svc := newEditorService(t, &fakeProvider{choicesErr: errors.New("quota exceeded")})
	svc.Store.Create(&models.StoryNode{ID: "a", Type: models.NodeScene})
	before := svc.Store.Revision()

	if _, err := svc.AutoBranch(context.Background(), "a", "s"); err == nil {
		t.Fatal("expected an error")
	}
	if svc.Store.Revision() != before || svc.Store.Len() != 1 {
		t.Fatal("failed generation must not mutate the graph")
	}
}

func TestPolishContentUpdatesNode(t *testing.T) {
	svc := newEditorService(t, &fakeProvider{polished: "更好的文本"})
	svc.Store.Create(&models.StoryNode{ID: "a", Type: models.NodeScene, Content: "原文"})

	got, err := svc.PolishContent(context.Background(), "a", "cinematic")
	if err != nil {
		t.Fatalf("polish: %v", err)
	}
	if got != "更好的文本" {
		t.Fatalf("wrong polish result: %q", got)
	}
	node, _ := svc.Store.Get("a")
	if node.Content != "更好的文本" {
		t.Fatalf("content not persisted: %q", node.Content)
	}
}

func TestGenerateImageFailureLeavesNodeUnchanged(t *testing.T) {
	svc := newEditorService(t, &fakeProvider{imageErr: errors.New("network down")})
	svc.Store.Create(&models.StoryNode{ID: "a", Type: models.NodeScene, MediaType: models.MediaNone})

	if err := svc.GenerateImage(context.Background(), "a", "s"); err == nil {
		t.Fatal("expected an error")
	}
	node, _ := svc.Store.Get("a")
	if node.MediaType != models.MediaNone || node.MediaSrc != "" {
		t.Fatalf("media fields changed on failure: %+v", node)
	}
}

func TestGenerateAudioAttachesSource(t *testing.T) {
	svc := newEditorService(t, &fakeProvider{audioSrc: "data:audio/pcm;base64,AAAA"})
	svc.Store.Create(&models.StoryNode{ID: "a", Type: models.NodeScene, Content: "风声"})

	if err := svc.GenerateAudio(context.Background(), "a", gen.AudioBGM); err != nil {
		t.Fatalf("generate audio: %v", err)
	}
	node, _ := svc.Store.Get("a")
	if node.AudioSrc != "data:audio/pcm;base64,AAAA" {
		t.Fatalf("audio source not attached: %q", node.AudioSrc)
	}
}

func TestGenerateProjectReplacesGraphOnlyOnSuccess(t *testing.T) {
	svc := newEditorService(t, &fakeProvider{graphErr: errors.New("auth failed")})
	svc.Store.Create(&models.StoryNode{ID: "keep", Type: models.NodeScene})

	if err := svc.GenerateProject(context.Background(), "太空", "cinematic", gen.TopologyLinear); err == nil {
		t.Fatal("expected an error")
	}
	if !svc.Store.Has("keep") {
		t.Fatal("failed generation must not replace the graph")
	}

	svc.Provider = &fakeProvider{graph: map[string]*models.StoryNode{
		"start": {ID: "start", Type: models.NodeScene, Options: []models.StoryOption{}},
	}}
	if err := svc.GenerateProject(context.Background(), "太空", "cinematic", gen.TopologyWeb); err != nil {
		t.Fatalf("generate project: %v", err)
	}
	if svc.Store.Has("keep") || !svc.Store.Has("start") {
		t.Fatal("successful generation should replace the graph")
	}
}

func TestFlutterExportEmbedsSnapshot(t *testing.T) {
	fs, err := storage.NewFileStorage(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	s := store.NewGraphStore()
	s.Create(&models.StoryNode{ID: "start", Title: "序章", Type: models.NodeScene, Options: []models.StoryOption{}})
	svc := NewExportService(s, fs)

	code, err := svc.BuildFlutterPlayer("start")
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	out := string(code)
	for _, want := range []string{
		"void main() => runApp(const MovieApp());",
		`"startId": "start"`,
		"序章",
		"currentId = project['startId'];",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("export missing %q", want)
		}
	}

	path, err := svc.SaveFlutterPlayer("start")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if path == "" {
		t.Fatal("save should return the stored path")
	}
}
