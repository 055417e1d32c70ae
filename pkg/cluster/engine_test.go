package cluster

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/LohithReddy3/ai-daily/internal/store"
)

type fixture struct {
	store *store.SQLStore
	src   *store.Source
	now   time.Time
	seq   int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s, err := store.Open(context.Background(), "sqlite", filepath.Join(t.TempDir(), "cluster.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	src := &store.Source{Name: "feed", Type: store.SourceNews}
	if err := s.UpsertSource(context.Background(), src); err != nil {
		t.Fatalf("upsert source: %v", err)
	}
	return &fixture{store: s, src: src, now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (f *fixture) addItem(t *testing.T, title string) *store.Item {
	t.Helper()
	f.seq++
	it := &store.Item{
		SourceID:    f.src.ID,
		Title:       title,
		URL:         fmt.Sprintf("https://news/%d", f.seq),
		PublishedAt: f.now.Add(time.Duration(f.seq) * time.Minute),
		ContentType: store.SourceNews,
		Hash:        fmt.Sprintf("hash-%d", f.seq),
	}
	if _, err := f.store.InsertItem(context.Background(), it); err != nil {
		t.Fatalf("insert item: %v", err)
	}
	return it
}

func (f *fixture) engine(opts ...Option) *Engine {
	opts = append([]Option{WithClock(func() time.Time { return f.now })}, opts...)
	return NewEngine(f.store, nil, opts...)
}

func (f *fixture) stories(t *testing.T) []store.Story {
	t.Helper()
	st, err := f.store.ListStoriesSince(context.Background(), time.Time{})
	if err != nil {
		t.Fatalf("list stories: %v", err)
	}
	return st
}

func TestClusterAttachesSimilarTitles(t *testing.T) {
	f := newFixture(t)
	a := f.addItem(t, "OpenAI releases GPT-5")
	b := f.addItem(t, "OpenAI Releases GPT-5 model")
	f.addItem(t, "Court rules on AI copyright case")

	res, err := f.engine().ClusterUnassigned(context.Background())
	if err != nil {
		t.Fatalf("ClusterUnassigned: %v", err)
	}
	if res.Created != 2 || res.Attached != 1 || res.Failed != 0 {
		t.Fatalf("result = %+v", res)
	}

	stories := f.stories(t)
	if len(stories) != 2 {
		t.Fatalf("stories = %d, want 2", len(stories))
	}
	var gpt *store.Story
	for i := range stories {
		if stories[i].CanonicalTitle == a.Title {
			gpt = &stories[i]
		}
	}
	if gpt == nil {
		t.Fatalf("no story titled %q", a.Title)
	}
	items, err := f.store.StoryItems(context.Background(), gpt.ID, 0)
	if err != nil {
		t.Fatalf("story items: %v", err)
	}
	if len(items) != 2 || items[0].ID != b.ID {
		t.Fatalf("story items = %d", len(items))
	}
}

func TestClusterRerunIsNoop(t *testing.T) {
	f := newFixture(t)
	f.addItem(t, "Anthropic ships new model")
	eng := f.engine()
	ctx := context.Background()

	if _, err := eng.ClusterUnassigned(ctx); err != nil {
		t.Fatalf("first run: %v", err)
	}
	res, err := eng.ClusterUnassigned(ctx)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if res.Created+res.Attached+res.Failed != 0 {
		t.Fatalf("rerun changed state: %+v", res)
	}
	if n := len(f.stories(t)); n != 1 {
		t.Fatalf("stories = %d", n)
	}
}

func TestClusterLaterRunAttachesToExistingStory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addItem(t, "Gemini 3 launches with agent mode")
	if _, err := f.engine().ClusterUnassigned(ctx); err != nil {
		t.Fatal(err)
	}

	f.now = f.now.Add(24 * time.Hour)
	f.addItem(t, "Gemini 3 launches with new agent mode")
	res, err := f.engine().ClusterUnassigned(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res.Attached != 1 || res.Created != 0 {
		t.Fatalf("result = %+v", res)
	}
}

func TestClusterIgnoresStoriesOutsideWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addItem(t, "Same headline")
	if _, err := f.engine().ClusterUnassigned(ctx); err != nil {
		t.Fatal(err)
	}

	f.now = f.now.Add(73 * time.Hour)
	f.addItem(t, "Same headline")
	res, err := f.engine().ClusterUnassigned(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res.Created != 1 || res.Attached != 0 {
		t.Fatalf("stale story should not be a candidate: %+v", res)
	}

	f.now = f.now.Add(time.Hour)
	f.addItem(t, "Same headline")
	res, err = f.engine(WithWindow(time.Hour)).ClusterUnassigned(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res.Attached != 1 {
		t.Fatalf("story inside window should match: %+v", res)
	}
}

func TestClusterEmptyTitlesStaySingletons(t *testing.T) {
	f := newFixture(t)
	f.addItem(t, "")
	f.addItem(t, "   ")

	res, err := f.engine().ClusterUnassigned(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Created != 2 || res.Attached != 0 {
		t.Fatalf("result = %+v", res)
	}
}

func TestClusterThresholdIsInclusive(t *testing.T) {
	f := newFixture(t)
	f.addItem(t, "first")
	f.addItem(t, "second")
	f.addItem(t, "third")

	fixed := func(a, b string) float64 { return 0.5 }
	res, err := f.engine(WithSimilarity(fixed), WithThreshold(0.5)).ClusterUnassigned(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Created != 1 || res.Attached != 2 {
		t.Fatalf("result = %+v", res)
	}
}

func TestClusterBelowThresholdCreates(t *testing.T) {
	f := newFixture(t)
	f.addItem(t, "first")
	f.addItem(t, "second")

	fixed := func(a, b string) float64 { return 0.64 }
	res, err := f.engine(WithSimilarity(fixed)).ClusterUnassigned(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Created != 2 {
		t.Fatalf("result = %+v", res)
	}
}
