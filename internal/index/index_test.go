package index

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"vidqa/internal/domain"
	"vidqa/internal/infra"
	"vidqa/internal/storage"
)

// fakeEmbedder produces deterministic vectors derived from text length,
// with optional per-text failure scripts.
type fakeEmbedder struct {
	dim       int
	transient map[string]int // text -> transient failures before success
	permanent map[string]bool
	calls     int
}

func (f *fakeEmbedder) Provider() string { return "fake" }

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	if f.permanent[text] {
		return nil, fmt.Errorf("rejected input")
	}
	if f.transient != nil && f.transient[text] > 0 {
		f.transient[text]--
		return nil, fmt.Errorf("backend busy: %w", errTransientEmbed)
	}
	dim := f.dim
	if dim == 0 {
		dim = 4
	}
	vec := make([]float32, dim)
	vec[0] = float32(len(text))
	vec[1] = 1
	return vec, nil
}

func testTranscript(texts ...string) domain.Transcript {
	segs := make([]domain.Segment, len(texts))
	for i, text := range texts {
		segs[i] = domain.Segment{StartSec: float64(i), EndSec: float64(i + 1), Text: text}
	}
	return domain.Transcript{VideoID: "vid1", Segments: segs}
}

func newTestBuilder(embedder Embedder) *Builder {
	return NewBuilder(BuilderOptions{
		Embedder:          embedder,
		Logger:            infra.NewLogger("test"),
		Split:             SplitConfig{TargetChars: 10, OverlapChars: 0},
		RetriesPerPassage: 3,
		BaseDelay:         time.Millisecond,
	})
}

func TestBuildEmbedsEveryPassage(t *testing.T) {
	emb := &fakeEmbedder{}
	ix, err := newTestBuilder(emb).Build(context.Background(), testTranscript("aaaa", "bbbb", "cccc", "dddd"))
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	for i, p := range ix.Passages {
		if !p.Embedded {
			t.Fatalf("passage %d not embedded", i)
		}
		if len(p.Vector) != ix.Dimension {
			t.Fatalf("passage %d vector dimension %d, want %d", i, len(p.Vector), ix.Dimension)
		}
	}
}

func TestBuildRetriesTransientEmbedFailures(t *testing.T) {
	emb := &fakeEmbedder{transient: map[string]int{"aaaa bbbb": 2}}
	ix, err := newTestBuilder(emb).Build(context.Background(), testTranscript("aaaa", "bbbb"))
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	if !ix.Passages[0].Embedded {
		t.Fatalf("passage should have embedded after retries")
	}
}

func TestBuildToleratesPartialEmbedFailure(t *testing.T) {
	emb := &fakeEmbedder{permanent: map[string]bool{"bad1 bad2": true}}
	ix, err := newTestBuilder(emb).Build(context.Background(), testTranscript("bad1", "bad2", "good", "text"))
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	embedded := 0
	for _, p := range ix.Passages {
		if p.Embedded {
			embedded++
		}
	}
	if embedded == 0 || embedded == len(ix.Passages) {
		t.Fatalf("expected a mix of embedded and unembedded, got %d/%d", embedded, len(ix.Passages))
	}
}

func TestBuildFailsWhenNothingEmbeds(t *testing.T) {
	emb := &fakeEmbedder{permanent: map[string]bool{"aaaa bbbb": true, "cccc dddd": true}}
	_, err := newTestBuilder(emb).Build(context.Background(), testTranscript("aaaa", "bbbb", "cccc", "dddd"))
	var buildErr *domain.IndexBuildError
	if !errors.As(err, &buildErr) {
		t.Fatalf("expected IndexBuildError, got %v", err)
	}
}

func TestBuildFailsOnEmptyTranscript(t *testing.T) {
	_, err := newTestBuilder(&fakeEmbedder{}).Build(context.Background(), domain.Transcript{VideoID: "vid1"})
	var buildErr *domain.IndexBuildError
	if !errors.As(err, &buildErr) {
		t.Fatalf("expected IndexBuildError, got %v", err)
	}
}

func embeddedPassage(ordinal int, vec []float32) domain.Passage {
	return domain.Passage{
		ID:       fmt.Sprintf("p%d", ordinal),
		Ordinal:  ordinal,
		Text:     fmt.Sprintf("passage %d", ordinal),
		StartSec: float64(ordinal),
		EndSec:   float64(ordinal + 1),
		Embedded: true,
		Vector:   vec,
	}
}

func TestSearchRanksBySimilarity(t *testing.T) {
	ix := &PassageIndex{
		VideoID:   "vid1",
		Dimension: 2,
		Passages: []domain.Passage{
			embeddedPassage(0, []float32{0, 1}),
			embeddedPassage(1, []float32{1, 0}),
			embeddedPassage(2, []float32{0.7071, 0.7071}),
		},
	}
	got := ix.Search([]float32{1, 0}, 2)
	if len(got) != 2 {
		t.Fatalf("expected 2 results, got %d", len(got))
	}
	if got[0].Passage.Ordinal != 1 || got[1].Passage.Ordinal != 2 {
		t.Fatalf("unexpected ranking: %d then %d", got[0].Passage.Ordinal, got[1].Passage.Ordinal)
	}
	if got[0].Score < got[1].Score {
		t.Fatalf("scores out of order: %v then %v", got[0].Score, got[1].Score)
	}
}

func TestSearchBreaksTiesByOrdinal(t *testing.T) {
	same := []float32{1, 0}
	ix := &PassageIndex{
		VideoID:   "vid1",
		Dimension: 2,
		Passages: []domain.Passage{
			embeddedPassage(2, same),
			embeddedPassage(0, same),
			embeddedPassage(1, same),
		},
	}
	for run := 0; run < 5; run++ {
		got := ix.Search([]float32{1, 0}, 3)
		for i, sp := range got {
			if sp.Passage.Ordinal != i {
				t.Fatalf("run %d: position %d holds ordinal %d", run, i, sp.Passage.Ordinal)
			}
		}
	}
}

func TestSearchSkipsUnembeddedPassages(t *testing.T) {
	ix := &PassageIndex{
		VideoID:   "vid1",
		Dimension: 2,
		Passages: []domain.Passage{
			embeddedPassage(0, []float32{1, 0}),
			{ID: "p1", Ordinal: 1, Text: "never embedded"},
		},
	}
	got := ix.Search([]float32{1, 0}, 5)
	if len(got) != 1 {
		t.Fatalf("expected 1 result, got %d", len(got))
	}
	if got[0].Passage.Ordinal != 0 {
		t.Fatalf("unexpected passage: %+v", got[0].Passage)
	}
}

func TestSearchRejectsDimensionMismatch(t *testing.T) {
	ix := &PassageIndex{VideoID: "vid1", Dimension: 4,
		Passages: []domain.Passage{embeddedPassage(0, []float32{1, 0, 0, 0})}}
	if got := ix.Search([]float32{1, 0}, 3); got != nil {
		t.Fatalf("expected nil for mismatched query, got %v", got)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	ix := &PassageIndex{
		VideoID:   "vid1",
		Provider:  "fake",
		Dimension: 3,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
		Passages: []domain.Passage{
			embeddedPassage(0, []float32{1, 0, 0}),
			{ID: "p1", Ordinal: 1, Text: "unembedded"},
			embeddedPassage(2, []float32{0, 0, 1}),
		},
	}
	if err := Save(store, ix); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(store, "vid1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Provider != "fake" || loaded.Dimension != 3 {
		t.Fatalf("manifest mismatch: %+v", loaded)
	}
	if len(loaded.Passages) != 3 {
		t.Fatalf("expected 3 passages, got %d", len(loaded.Passages))
	}
	if loaded.Passages[1].Embedded || loaded.Passages[1].Vector != nil {
		t.Fatalf("unembedded passage grew a vector: %+v", loaded.Passages[1])
	}
	if loaded.Passages[2].Vector[2] != 1 {
		t.Fatalf("vector content lost: %v", loaded.Passages[2].Vector)
	}

	got := loaded.Search([]float32{0, 0, 1}, 1)
	if len(got) != 1 || got[0].Passage.Ordinal != 2 {
		t.Fatalf("search over loaded index failed: %+v", got)
	}
}

func TestSaveReplacesPreviousIndex(t *testing.T) {
	store, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	first := &PassageIndex{VideoID: "vid1", Provider: "fake", Dimension: 2,
		Passages: []domain.Passage{embeddedPassage(0, []float32{1, 0})}}
	if err := Save(store, first); err != nil {
		t.Fatalf("Save first: %v", err)
	}
	second := &PassageIndex{VideoID: "vid1", Provider: "fake", Dimension: 2,
		Passages: []domain.Passage{
			embeddedPassage(0, []float32{0, 1}),
			embeddedPassage(1, []float32{1, 0}),
		}}
	if err := Save(store, second); err != nil {
		t.Fatalf("Save second: %v", err)
	}

	loaded, err := Load(store, "vid1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded.Passages) != 2 {
		t.Fatalf("old index survived: %d passages", len(loaded.Passages))
	}
}

func TestLoadMissingIndexReturnsNotFound(t *testing.T) {
	store, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if _, err := Load(store, "ghost"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// generationIndex builds a complete index whose passages all carry the
// same marker text, so a reader can tell which generation it observed.
func generationIndex(marker string, passages int) *PassageIndex {
	ix := &PassageIndex{VideoID: "vid1", Provider: "fake", Dimension: 2}
	for i := 0; i < passages; i++ {
		p := embeddedPassage(i, []float32{1, 0})
		p.Text = marker
		ix.Passages = append(ix.Passages, p)
	}
	return ix
}

func TestRegistryReadersNeverSeeMixedGenerations(t *testing.T) {
	store, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	reg := NewRegistry(store)

	genA := generationIndex("generation-a", 3)
	genB := generationIndex("generation-b", 5)
	reg.Swap(genA)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	errCh := make(chan error, 4)

	for reader := 0; reader < 4; reader++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				ix, err := reg.Get("vid1")
				if err != nil {
					errCh <- fmt.Errorf("Get: %w", err)
					return
				}
				got := ix.Search([]float32{1, 0}, 10)
				if len(got) != 3 && len(got) != 5 {
					errCh <- fmt.Errorf("result size %d belongs to no generation", len(got))
					return
				}
				marker := got[0].Passage.Text
				for _, sp := range got {
					if sp.Passage.Text != marker {
						errCh <- fmt.Errorf("mixed generations in one read: %q and %q", marker, sp.Passage.Text)
						return
					}
				}
				if marker == "generation-a" && len(got) != 3 {
					errCh <- fmt.Errorf("generation-a read returned %d passages", len(got))
					return
				}
				if marker == "generation-b" && len(got) != 5 {
					errCh <- fmt.Errorf("generation-b read returned %d passages", len(got))
					return
				}
			}
		}()
	}

	for i := 0; i < 200; i++ {
		if i%2 == 0 {
			reg.Swap(genB)
		} else {
			reg.Swap(genA)
		}
	}
	close(stop)
	wg.Wait()

	select {
	case err := <-errCh:
		t.Fatal(err)
	default:
	}
}

func TestRegistrySwapAndFallbackToDisk(t *testing.T) {
	store, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	ix := &PassageIndex{VideoID: "vid1", Provider: "fake", Dimension: 2,
		Passages: []domain.Passage{embeddedPassage(0, []float32{1, 0})}}
	if err := Save(store, ix); err != nil {
		t.Fatalf("Save: %v", err)
	}

	reg := NewRegistry(store)
	loaded, err := reg.Get("vid1")
	if err != nil {
		t.Fatalf("Get from disk: %v", err)
	}
	if loaded.VideoID != "vid1" {
		t.Fatalf("unexpected index: %+v", loaded)
	}

	rebuilt := &PassageIndex{VideoID: "vid1", Provider: "fake", Dimension: 2,
		Passages: []domain.Passage{
			embeddedPassage(0, []float32{1, 0}),
			embeddedPassage(1, []float32{0, 1}),
		}}
	reg.Swap(rebuilt)
	got, err := reg.Get("vid1")
	if err != nil {
		t.Fatalf("Get after swap: %v", err)
	}
	if len(got.Passages) != 2 {
		t.Fatalf("swap not observed: %d passages", len(got.Passages))
	}

	reg.Drop("vid1")
	refetched, err := reg.Get("vid1")
	if err != nil {
		t.Fatalf("Get after drop: %v", err)
	}
	if len(refetched.Passages) != 1 {
		t.Fatalf("drop should fall back to persisted index, got %d passages", len(refetched.Passages))
	}
}
