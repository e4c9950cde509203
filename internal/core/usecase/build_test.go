package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/assessment-recommender/internal/core/domain"
	"github.com/kirillkom/assessment-recommender/internal/infrastructure/index/tfidf"
)

type catalogSourceFake struct {
	records []domain.CatalogRecord
	err     error
}

func (f *catalogSourceFake) LoadRecords(context.Context) ([]domain.CatalogRecord, error) {
	return f.records, f.err
}

type artifactStoreFake struct {
	saved   *domain.ArtifactBundle
	saveErr error
}

func (f *artifactStoreFake) Save(_ context.Context, bundle *domain.ArtifactBundle) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = bundle
	return nil
}

func (f *artifactStoreFake) Load(context.Context) (*domain.ArtifactBundle, error) {
	if f.saved == nil {
		return nil, domain.ErrNotFound
	}
	return f.saved, nil
}

type embeddingCacheFake struct {
	items map[string][]float32
	puts  int
}

func (f *embeddingCacheFake) Get(_ context.Context, model, text string) ([]float32, bool, error) {
	v, ok := f.items[model+"|"+text]
	return v, ok, nil
}

func (f *embeddingCacheFake) Put(_ context.Context, model, text string, vector []float32) error {
	if f.items == nil {
		f.items = map[string][]float32{}
	}
	f.items[model+"|"+text] = vector
	f.puts++
	return nil
}

type batchingEmbedderFake struct {
	embedderFake
	batches [][]string
}

func (f *batchingEmbedderFake) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.batches = append(f.batches, texts)
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(len(texts[i])), 1}
	}
	return out, nil
}

type buildObserverFake struct {
	stats []BuildStats
}

func (f *buildObserverFake) ObserveBuild(stats BuildStats) {
	f.stats = append(f.stats, stats)
}

var buildRecords = []domain.CatalogRecord{
	{Name: " Java ", URL: "/java", Description: "coding test", RemoteTesting: "yes", TestTypes: []string{"Knowledge & Skills"}},
	{Name: "Python", URL: "/python", Description: "coding test"},
	{Name: "Leadership", URL: "/leadership", Description: "personality survey"},
}

func TestBuildProducesAlignedBundle(t *testing.T) {
	store := &artifactStoreFake{}
	embedder := &batchingEmbedderFake{}
	observer := &buildObserverFake{}
	uc := NewBuildIndexUseCase(
		&catalogSourceFake{records: buildRecords},
		tfidf.NewVectorizer(0),
		embedder,
		store,
		WithEmbedBatchSize(2),
		WithBuildObserver(observer),
	)

	manifest, err := uc.Build(context.Background())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if manifest.RecordCount != 3 || manifest.EmbeddingDim != 2 || manifest.EncoderModel != "fake-encoder" {
		t.Fatalf("unexpected manifest %+v", manifest)
	}
	if manifest.BuildID == "" || manifest.CreatedAt.IsZero() {
		t.Fatalf("expected build id and timestamp, got %+v", manifest)
	}
	if store.saved == nil {
		t.Fatalf("expected bundle to be saved")
	}
	if err := store.saved.CheckAlignment(); err != nil {
		t.Fatalf("saved bundle misaligned: %v", err)
	}
	if store.saved.Records[0].Name != "Java" || store.saved.Records[0].RemoteTesting != domain.Yes {
		t.Fatalf("expected normalized records, got %+v", store.saved.Records[0])
	}
	if store.saved.Records[0].PrimaryType != "Knowledge & Skills" {
		t.Fatalf("expected primary type derived from test types")
	}
	if len(embedder.batches) != 2 || len(embedder.batches[0]) != 2 || len(embedder.batches[1]) != 1 {
		t.Fatalf("unexpected batches %v", embedder.batches)
	}
	if len(observer.stats) != 1 || observer.stats[0].Records != 3 || observer.stats[0].Err != nil {
		t.Fatalf("unexpected stats %+v", observer.stats)
	}
}

func TestBuildReusesCachedEmbeddings(t *testing.T) {
	cache := &embeddingCacheFake{}
	store := &artifactStoreFake{}
	first := &batchingEmbedderFake{}
	uc := NewBuildIndexUseCase(&catalogSourceFake{records: buildRecords}, tfidf.NewVectorizer(0), first, store, WithEmbeddingCache(cache))
	if _, err := uc.Build(context.Background()); err != nil {
		t.Fatalf("first Build() error = %v", err)
	}
	if cache.puts != 3 {
		t.Fatalf("expected 3 cache writes, got %d", cache.puts)
	}

	second := &batchingEmbedderFake{}
	observer := &buildObserverFake{}
	uc = NewBuildIndexUseCase(&catalogSourceFake{records: buildRecords}, tfidf.NewVectorizer(0), second, store,
		WithEmbeddingCache(cache), WithBuildObserver(observer))
	if _, err := uc.Build(context.Background()); err != nil {
		t.Fatalf("second Build() error = %v", err)
	}
	if len(second.batches) != 0 {
		t.Fatalf("expected no encoder calls on warm cache, got %v", second.batches)
	}
	if observer.stats[0].Cached != 3 {
		t.Fatalf("expected 3 cached rows, got %d", observer.stats[0].Cached)
	}
}

func TestBuildRejectsEmptyCatalog(t *testing.T) {
	uc := NewBuildIndexUseCase(&catalogSourceFake{}, tfidf.NewVectorizer(0), &batchingEmbedderFake{}, &artifactStoreFake{})
	_, err := uc.Build(context.Background())
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestBuildRejectsRecordWithoutURL(t *testing.T) {
	records := []domain.CatalogRecord{{Name: "Java"}}
	store := &artifactStoreFake{}
	uc := NewBuildIndexUseCase(&catalogSourceFake{records: records}, tfidf.NewVectorizer(0), &batchingEmbedderFake{}, store)
	if _, err := uc.Build(context.Background()); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if store.saved != nil {
		t.Fatalf("expected nothing saved")
	}
}

func TestBuildPropagatesStoreFailure(t *testing.T) {
	observer := &buildObserverFake{}
	uc := NewBuildIndexUseCase(
		&catalogSourceFake{records: buildRecords},
		tfidf.NewVectorizer(0),
		&batchingEmbedderFake{},
		&artifactStoreFake{saveErr: errors.New("disk full")},
		WithBuildObserver(observer),
	)
	if _, err := uc.Build(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
	if len(observer.stats) != 1 || observer.stats[0].Err == nil {
		t.Fatalf("expected failed build to be observed")
	}
}
