package lookup

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/DarkSmileee/BlockShelf/internal/appconfig"
	"github.com/DarkSmileee/BlockShelf/internal/catalog"
	"github.com/DarkSmileee/BlockShelf/pkg/config"
	"github.com/DarkSmileee/BlockShelf/pkg/db/models"
	pkgerrors "github.com/DarkSmileee/BlockShelf/pkg/errors"
	"github.com/DarkSmileee/BlockShelf/pkg/logger"
)

func setupLookupDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	ddl := `
CREATE TABLE IF NOT EXISTS parts (
  part_num TEXT PRIMARY KEY,
  name TEXT NOT NULL DEFAULT '',
  part_cat_id INTEGER,
  image_url TEXT NOT NULL DEFAULT '',
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS colors (
  id INTEGER PRIMARY KEY,
  name TEXT NOT NULL DEFAULT '',
  rgb TEXT NOT NULL DEFAULT '',
  is_trans INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS elements (
  element_id TEXT PRIMARY KEY,
  part_num TEXT NOT NULL,
  color_id INTEGER NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`
	for _, stmt := range strings.Split(ddl, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

type fakeLookupCache struct {
	data map[string]string
	sets int
}

func newFakeLookupCache() *fakeLookupCache {
	return &fakeLookupCache{data: map[string]string{}}
}

func (f *fakeLookupCache) Get(_ context.Context, key string) (string, error) {
	value, ok := f.data[key]
	if !ok {
		return "", redis.Nil
	}
	return value, nil
}

func (f *fakeLookupCache) Set(_ context.Context, key string, value any, _ time.Duration) error {
	f.sets++
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	case string:
		f.data[key] = v
	}
	return nil
}

func (f *fakeLookupCache) LookupCacheKey(kind, raw string) string {
	return "bs:lookup:" + kind + ":" + raw
}

type stubRateLimiter struct {
	allow bool
	calls int
}

func (s *stubRateLimiter) Allow(context.Context, string, string) (bool, error) {
	s.calls++
	return s.allow, nil
}

type fakeRebrickable struct {
	parts     map[string]*RebrickablePart
	elements  map[string]*RebrickableElement
	partCalls []string
	elemCalls []string
	elemErr   error
}

func (f *fakeRebrickable) GetPart(_ context.Context, _ string, partNum string) (*RebrickablePart, error) {
	f.partCalls = append(f.partCalls, partNum)
	return f.parts[partNum], nil
}

func (f *fakeRebrickable) GetElement(_ context.Context, _ string, elementID string) (*RebrickableElement, error) {
	f.elemCalls = append(f.elemCalls, elementID)
	if f.elemErr != nil {
		return nil, f.elemErr
	}
	return f.elements[elementID], nil
}

type fakeScraper struct {
	enabled bool
	names   map[string]string
	calls   []string
}

func (f *fakeScraper) Enabled() bool { return f.enabled }

func (f *fakeScraper) FetchName(_ context.Context, token string) (string, error) {
	f.calls = append(f.calls, token)
	return f.names[token], nil
}

type stubPrefs struct{ key string }

func (s stubPrefs) GetPreference(context.Context, uuid.UUID) (*models.UserPreference, error) {
	if s.key == "" {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "preference not found")
	}
	key := s.key
	return &models.UserPreference{RebrickableAPIKey: &key}, nil
}

type stubSiteConfig struct{ key string }

func (s stubSiteConfig) Effective(context.Context) (appconfig.Effective, error) {
	return appconfig.Effective{RebrickableAPIKey: s.key}, nil
}

type pipelineFixture struct {
	svc     Service
	repo    *catalog.Repository
	cache   *fakeLookupCache
	limiter *stubRateLimiter
	api     *fakeRebrickable
	scraper *fakeScraper
}

func newPipeline(t *testing.T, mutate func(*ServiceParams)) *pipelineFixture {
	t.Helper()

	fixture := &pipelineFixture{
		repo:    catalog.NewRepository(setupLookupDB(t)),
		cache:   newFakeLookupCache(),
		limiter: &stubRateLimiter{allow: true},
		api: &fakeRebrickable{
			parts:    map[string]*RebrickablePart{},
			elements: map[string]*RebrickableElement{},
		},
		scraper: &fakeScraper{names: map[string]string{}},
	}

	params := ServiceParams{
		Catalog:    fixture.repo,
		Cache:      fixture.cache,
		Limiter:    fixture.limiter,
		API:        fixture.api,
		Scraper:    fixture.scraper,
		Prefs:      stubPrefs{key: "user-api-key"},
		SiteConfig: stubSiteConfig{},
		Config:     config.LookupConfig{HitTTL: 24 * time.Hour, MissTTL: 5 * time.Minute},
		Logger:     logger.New(logger.Options{ServiceName: "test"}),
	}
	if mutate != nil {
		mutate(&params)
	}

	svc, err := NewService(params)
	require.NoError(t, err)
	fixture.svc = svc
	return fixture
}

func TestNewServiceValidatesDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{})
	require.Error(t, err)
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestLookupRequiresIdentifier(t *testing.T) {
	fixture := newPipeline(t, nil)

	_, err := fixture.svc.Lookup(context.Background(), uuid.New(), "", "   ")
	require.Error(t, err)
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestLookupAmbiguousIdentifierIsTerminalMiss(t *testing.T) {
	fixture := newPipeline(t, nil)

	result, err := fixture.svc.Lookup(context.Background(), uuid.New(), "", "3001 & 3002")
	require.NoError(t, err)
	require.False(t, result.Found)
	require.Equal(t, "3001 & 3002", result.PartID)

	// no budget spent, and the miss is cached
	require.Zero(t, fixture.limiter.calls)
	require.Empty(t, fixture.api.partCalls)
	require.Contains(t, fixture.cache.data, "bs:lookup:part:3001 & 3002")
}

func TestLookupServesFromCache(t *testing.T) {
	fixture := newPipeline(t, nil)
	cached, err := json.Marshal(Result{Found: true, Resolved: KindPart, Name: "Brick 2 x 4", PartID: "3001"})
	require.NoError(t, err)
	fixture.cache.data["bs:lookup:part:3001"] = string(cached)

	result, err := fixture.svc.Lookup(context.Background(), uuid.New(), "", "3001")
	require.NoError(t, err)
	require.True(t, result.Found)
	require.Equal(t, "Brick 2 x 4", result.Name)
	require.Zero(t, fixture.limiter.calls)
	require.Empty(t, fixture.api.partCalls)
}

func TestLookupLocalCatalogHitSkipsExternalTiers(t *testing.T) {
	fixture := newPipeline(t, nil)
	ctx := context.Background()
	require.NoError(t, fixture.repo.UpsertPart(ctx, models.Part{
		PartNum:  "3001",
		Name:     "Brick 2 x 4",
		ImageURL: "https://cdn.example.com/3001.png",
	}))

	result, err := fixture.svc.Lookup(ctx, uuid.New(), "", "3001")
	require.NoError(t, err)
	require.True(t, result.Found)
	require.Equal(t, "Brick 2 x 4", result.Name)
	require.Equal(t, "https://cdn.example.com/3001.png", result.ImageURL)
	require.Zero(t, fixture.limiter.calls)
	require.Empty(t, fixture.api.partCalls)

	// second call is answered from the cache write
	_, err = fixture.svc.Lookup(ctx, uuid.New(), "", "3001")
	require.NoError(t, err)
	require.Equal(t, 1, fixture.cache.sets)
}

func TestLookupSuffixVariantFallsBackToBasePart(t *testing.T) {
	fixture := newPipeline(t, nil)
	ctx := context.Background()
	require.NoError(t, fixture.repo.UpsertPart(ctx, models.Part{
		PartNum:  "3684",
		Name:     "Slope 75 2 x 2 x 3",
		ImageURL: "https://cdn.example.com/3684.png",
	}))

	result, err := fixture.svc.Lookup(ctx, uuid.New(), "", "3684c")
	require.NoError(t, err)
	require.True(t, result.Found)
	require.Equal(t, "3684c", result.PartID)
	require.Equal(t, "Slope 75 2 x 2 x 3", result.Name)
	require.Empty(t, fixture.api.partCalls)
}

func TestLookupPlaceholderNameCountsAsMissing(t *testing.T) {
	fixture := newPipeline(t, nil)
	ctx := context.Background()
	require.NoError(t, fixture.repo.UpsertPart(ctx, models.Part{PartNum: "3001", Name: "unknown"}))
	fixture.api.parts["3001"] = &RebrickablePart{
		PartNum:    "3001",
		Name:       "Brick 2 x 4",
		PartImgURL: "https://cdn.example.com/3001.png",
	}

	result, err := fixture.svc.Lookup(ctx, uuid.New(), "", "3001")
	require.NoError(t, err)
	require.True(t, result.Found)
	require.Equal(t, "Brick 2 x 4", result.Name)
	require.Equal(t, []string{"3001"}, fixture.api.partCalls)

	part, err := fixture.repo.GetPart(ctx, "3001")
	require.NoError(t, err)
	require.Equal(t, "Brick 2 x 4", part.Name)
}

func TestLookupPartAPIStripsDigitsOnSecondAttempt(t *testing.T) {
	fixture := newPipeline(t, nil)
	ctx := context.Background()
	fixture.api.parts["3684"] = &RebrickablePart{
		PartNum:    "3684",
		Name:       "Slope 75 2 x 2 x 3",
		PartImgURL: "https://cdn.example.com/3684.png",
	}

	result, err := fixture.svc.Lookup(ctx, uuid.New(), "", "3684c")
	require.NoError(t, err)
	require.True(t, result.Found)
	require.Equal(t, "Slope 75 2 x 2 x 3", result.Name)
	require.Equal(t, []string{"3684c", "3684"}, fixture.api.partCalls)

	// the hit lands in the catalog under the number that resolved
	part, err := fixture.repo.GetPart(ctx, "3684")
	require.NoError(t, err)
	require.Equal(t, "Slope 75 2 x 2 x 3", part.Name)
}

func TestLookupScrapeFallbackIsNameOnly(t *testing.T) {
	fixture := newPipeline(t, func(params *ServiceParams) {
		params.Prefs = stubPrefs{}
	})
	fixture.scraper.enabled = true
	fixture.scraper.names["3684"] = "Slope 75 2 x 2 x 3"
	ctx := context.Background()

	result, err := fixture.svc.Lookup(ctx, uuid.New(), "", "3684c")
	require.NoError(t, err)
	require.True(t, result.Found)
	require.Equal(t, "Slope 75 2 x 2 x 3", result.Name)
	require.Empty(t, result.ImageURL)

	// no API key anywhere, so the API tier never ran
	require.Empty(t, fixture.api.partCalls)
	require.Equal(t, []string{"3684c", "3684"}, fixture.scraper.calls)

	part, err := fixture.repo.GetPart(ctx, "3684c")
	require.NoError(t, err)
	require.Equal(t, "Slope 75 2 x 2 x 3", part.Name)
}

func TestLookupRateLimitedWithNothingLocal(t *testing.T) {
	fixture := newPipeline(t, nil)
	fixture.limiter.allow = false

	_, err := fixture.svc.Lookup(context.Background(), uuid.New(), "203.0.113.9", "3001")
	require.Error(t, err)
	require.Equal(t, pkgerrors.CodeRateLimit, pkgerrors.As(err).Code())
	require.Empty(t, fixture.api.partCalls)
}

func TestLookupRateLimitedStillServesLocalPartial(t *testing.T) {
	fixture := newPipeline(t, nil)
	fixture.limiter.allow = false
	ctx := context.Background()
	require.NoError(t, fixture.repo.UpsertPart(ctx, models.Part{PartNum: "3001", Name: "Brick 2 x 4"}))

	result, err := fixture.svc.Lookup(ctx, uuid.New(), "", "3001")
	require.NoError(t, err)
	require.True(t, result.Found)
	require.Equal(t, "Brick 2 x 4", result.Name)
	require.Empty(t, result.ImageURL)
}

func TestLookupCachesNegativeResult(t *testing.T) {
	fixture := newPipeline(t, nil)
	ctx := context.Background()

	result, err := fixture.svc.Lookup(ctx, uuid.New(), "", "9999b")
	require.NoError(t, err)
	require.False(t, result.Found)
	require.Len(t, fixture.api.partCalls, 2)

	// the miss is cached, the external tiers are not re-spent
	result, err = fixture.svc.Lookup(ctx, uuid.New(), "", "9999b")
	require.NoError(t, err)
	require.False(t, result.Found)
	require.Len(t, fixture.api.partCalls, 2)
}

func TestLookupElementResolvesLocally(t *testing.T) {
	fixture := newPipeline(t, nil)
	ctx := context.Background()
	require.NoError(t, fixture.repo.UpsertPart(ctx, models.Part{
		PartNum:  "3001",
		Name:     "Brick 2 x 4",
		ImageURL: "https://cdn.example.com/3001.png",
	}))
	require.NoError(t, fixture.repo.UpsertColor(ctx, models.Color{ID: 4, Name: "Red", RGB: "C91A09"}))
	require.NoError(t, fixture.repo.UpsertElement(ctx, "300126", "3001", 4))

	result, err := fixture.svc.Lookup(ctx, uuid.New(), "", "300126")
	require.NoError(t, err)
	require.True(t, result.Found)
	require.Equal(t, KindElement, result.Resolved)
	require.Equal(t, "3001", result.PartID)
	require.Equal(t, "Brick 2 x 4", result.Name)
	require.Equal(t, "Red", result.Color)
	require.Equal(t, "https://cdn.example.com/3001.png", result.ImageURL)
	require.Empty(t, fixture.api.elemCalls)
	require.Empty(t, fixture.api.partCalls)
}

func TestLookupElementMissWithoutKeyStaysLocal(t *testing.T) {
	fixture := newPipeline(t, func(params *ServiceParams) {
		params.Prefs = stubPrefs{}
	})

	result, err := fixture.svc.Lookup(context.Background(), uuid.New(), "", "300126")
	require.NoError(t, err)
	require.False(t, result.Found)
	require.Equal(t, "300126", result.ElementID)
	require.Zero(t, fixture.limiter.calls)
	require.Empty(t, fixture.api.elemCalls)
}

func TestLookupElementAPIPopulatesCatalog(t *testing.T) {
	fixture := newPipeline(t, nil)
	ctx := context.Background()
	element := &RebrickableElement{ElementID: "300126"}
	element.Part.PartNum = "3001"
	element.Part.Name = "Brick 2 x 4"
	element.Part.PartImgURL = "https://cdn.example.com/3001.png"
	element.Color.ID = 4
	element.Color.Name = "Red"
	element.Color.RGB = "C91A09"
	fixture.api.elements["300126"] = element

	result, err := fixture.svc.Lookup(ctx, uuid.New(), "", "300126")
	require.NoError(t, err)
	require.True(t, result.Found)
	require.Equal(t, "3001", result.PartID)
	require.Equal(t, "Red", result.Color)

	detail, err := fixture.repo.GetElement(ctx, "300126")
	require.NoError(t, err)
	require.Equal(t, "Brick 2 x 4", detail.PartName)
	require.Equal(t, "Red", detail.ColorName)

	// next lookup resolves without another API call
	_, err = fixture.svc.Lookup(ctx, uuid.New(), "", "300126")
	require.NoError(t, err)
	require.Len(t, fixture.api.elemCalls, 1)
}

func TestLookupElementUpstreamFailure(t *testing.T) {
	fixture := newPipeline(t, nil)
	fixture.api.elemErr = errors.New("rebrickable returned 500")

	_, err := fixture.svc.Lookup(context.Background(), uuid.New(), "", "300126")
	require.Error(t, err)
	require.Equal(t, pkgerrors.CodeDependency, pkgerrors.As(err).Code())
}

func TestLookupElementRateLimited(t *testing.T) {
	fixture := newPipeline(t, nil)
	fixture.limiter.allow = false

	_, err := fixture.svc.Lookup(context.Background(), uuid.New(), "", "300126")
	require.Error(t, err)
	require.Equal(t, pkgerrors.CodeRateLimit, pkgerrors.As(err).Code())
	require.Empty(t, fixture.api.elemCalls)
}

func TestEnrichResolveSkipsCacheOnRateLimitedMiss(t *testing.T) {
	fixture := newPipeline(t, nil)
	fixture.limiter.allow = false

	outcome, err := fixture.svc.EnrichResolve(context.Background(), uuid.New(), "3001")
	require.NoError(t, err)
	require.True(t, outcome.RateLimited)
	require.False(t, outcome.Result.Found)
	require.Zero(t, fixture.cache.sets)

	// with budget back, the same token resolves and gets cached
	fixture.limiter.allow = true
	fixture.api.parts["3001"] = &RebrickablePart{PartNum: "3001", Name: "Brick 2 x 4"}
	outcome, err = fixture.svc.EnrichResolve(context.Background(), uuid.New(), "3001")
	require.NoError(t, err)
	require.True(t, outcome.Result.Found)
	require.Equal(t, 1, fixture.cache.sets)
}

func TestEnrichResolveNonPartTokenIsMiss(t *testing.T) {
	fixture := newPipeline(t, nil)

	outcome, err := fixture.svc.EnrichResolve(context.Background(), uuid.New(), "300126")
	require.NoError(t, err)
	require.False(t, outcome.Result.Found)
	require.Zero(t, fixture.limiter.calls)
}

func TestEnrichResolveCountsAPICalls(t *testing.T) {
	fixture := newPipeline(t, nil)
	fixture.api.parts["3684"] = &RebrickablePart{
		PartNum:    "3684",
		Name:       "Slope 75 2 x 2 x 3",
		PartImgURL: "https://cdn.example.com/3684.png",
	}

	outcome, err := fixture.svc.EnrichResolve(context.Background(), uuid.New(), "3684c")
	require.NoError(t, err)
	require.True(t, outcome.Result.Found)
	require.Equal(t, 2, outcome.APICalls)
	require.False(t, outcome.RateLimited)
}
