package lookup

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/DarkSmileee/BlockShelf/internal/appconfig"
	"github.com/DarkSmileee/BlockShelf/internal/catalog"
	"github.com/DarkSmileee/BlockShelf/pkg/config"
	"github.com/DarkSmileee/BlockShelf/pkg/db/models"
	pkgerrors "github.com/DarkSmileee/BlockShelf/pkg/errors"
	"github.com/DarkSmileee/BlockShelf/pkg/logger"
	"github.com/DarkSmileee/BlockShelf/pkg/metrics"
	pkgredis "github.com/DarkSmileee/BlockShelf/pkg/redis"
	"github.com/DarkSmileee/BlockShelf/pkg/sanitize"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const placeholderName = "unknown"

// Service resolves raw part and element identifiers through the tiered
// pipeline: cache, local catalog, external API, scrape fallback.
type Service interface {
	// Lookup serves the direct endpoint. Rate-limit exhaustion surfaces
	// as an error here; the element path reports upstream failure.
	Lookup(ctx context.Context, userID uuid.UUID, ip, raw string) (Result, error)
	// EnrichResolve serves the bulk batcher: part tokens only, and a
	// spent rate budget silently skips the external tiers instead of
	// failing the item.
	EnrichResolve(ctx context.Context, userID uuid.UUID, token string) (EnrichOutcome, error)
}

type cacheStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	LookupCacheKey(kind, raw string) string
}

type rateLimiter interface {
	Allow(ctx context.Context, userID, ip string) (bool, error)
}

type partAPI interface {
	GetPart(ctx context.Context, apiKey, partNum string) (*RebrickablePart, error)
	GetElement(ctx context.Context, apiKey, elementID string) (*RebrickableElement, error)
}

type nameScraper interface {
	Enabled() bool
	FetchName(ctx context.Context, token string) (string, error)
}

type prefStore interface {
	GetPreference(ctx context.Context, userID uuid.UUID) (*models.UserPreference, error)
}

type siteConfig interface {
	Effective(ctx context.Context) (appconfig.Effective, error)
}

// ServiceParams bundles the dependencies for NewService.
type ServiceParams struct {
	Catalog     *catalog.Repository
	Cache       cacheStore
	Limiter     rateLimiter
	API         partAPI
	Scraper     nameScraper
	Prefs       prefStore
	SiteConfig  siteConfig
	Config      config.LookupConfig
	Metrics     *metrics.LookupMetrics
	Logger      *logger.Logger
}

type service struct {
	catalog *catalog.Repository
	cache   cacheStore
	limiter rateLimiter
	api     partAPI
	scraper nameScraper
	prefs   prefStore
	siteCfg siteConfig
	cfg     config.LookupConfig
	metrics *metrics.LookupMetrics
	logger  *logger.Logger
}

// NewService validates the dependency set and returns the pipeline.
func NewService(params ServiceParams) (Service, error) {
	if params.Catalog == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "lookup catalog repo is required")
	}
	if params.Cache == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "lookup cache is required")
	}
	if params.Limiter == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "lookup limiter is required")
	}
	if params.API == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "lookup api client is required")
	}
	if params.Scraper == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "lookup scraper is required")
	}
	if params.Prefs == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "lookup preference store is required")
	}
	if params.SiteConfig == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "lookup site config is required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "lookup logger is required")
	}
	return &service{
		catalog: params.Catalog,
		cache:   params.Cache,
		limiter: params.Limiter,
		api:     params.API,
		scraper: params.Scraper,
		prefs:   params.Prefs,
		siteCfg: params.SiteConfig,
		cfg:     params.Config,
		metrics: params.Metrics,
		logger:  params.Logger,
	}, nil
}

func (s *service) Lookup(ctx context.Context, userID uuid.UUID, ip, raw string) (Result, error) {
	if strings.TrimSpace(raw) == "" {
		return Result{}, pkgerrors.New(pkgerrors.CodeValidation, "part_id is required")
	}

	kind, token, ok := Classify(raw)
	if !ok {
		// ambiguous identifiers are a terminal miss and spend no budget
		result := Result{Found: false, PartID: token}
		s.writeCache(ctx, s.cache.LookupCacheKey(KindPart, token), result)
		s.metrics.IncResolution(metrics.TierMiss)
		return result, nil
	}

	cacheKey := s.cache.LookupCacheKey(kind, token)
	if cached, hit := s.readCache(ctx, cacheKey); hit {
		s.metrics.IncResolution(metrics.TierCache)
		return cached, nil
	}

	apiKey := s.resolveAPIKey(ctx, userID)

	var (
		result Result
		err    error
	)
	if kind == KindElement {
		result, err = s.resolveElement(ctx, userID, ip, token, apiKey)
	} else {
		var outcome resolveOutcome
		outcome, err = s.resolvePart(ctx, userID, ip, token, apiKey, false)
		if err == nil && outcome.rateLimited && !outcome.result.Found {
			s.metrics.IncRateLimited()
			return Result{}, pkgerrors.New(pkgerrors.CodeRateLimit, "lookup rate limit exceeded")
		}
		result = outcome.result
	}
	if err != nil {
		return Result{}, err
	}

	s.writeCache(ctx, cacheKey, result)
	return result, nil
}

func (s *service) EnrichResolve(ctx context.Context, userID uuid.UUID, token string) (EnrichOutcome, error) {
	kind, token, ok := Classify(token)
	if !ok || kind != KindPart {
		return EnrichOutcome{Result: Result{Found: false, PartID: token}}, nil
	}

	cacheKey := s.cache.LookupCacheKey(KindPart, token)
	if cached, hit := s.readCache(ctx, cacheKey); hit {
		s.metrics.IncResolution(metrics.TierCache)
		return EnrichOutcome{Result: cached}, nil
	}

	apiKey := s.resolveAPIKey(ctx, userID)
	outcome, err := s.resolvePart(ctx, userID, "", token, apiKey, true)
	if err != nil {
		return EnrichOutcome{}, err
	}

	// a rate-limited miss is not a real miss; leave it uncached so a
	// later batch run can retry the external tiers
	if !outcome.rateLimited || outcome.result.Found {
		s.writeCache(ctx, cacheKey, outcome.result)
	}
	return EnrichOutcome{
		Result:      outcome.result,
		APICalls:    outcome.apiCalls,
		RateLimited: outcome.rateLimited,
	}, nil
}

type resolveOutcome struct {
	result      Result
	apiCalls    int
	rateLimited bool
}

// resolvePart runs the part branch: local catalog with a suffix-stripped
// retry, then the API with both token variants, then the name-only
// scrape. External failures are soft; each tier only runs while required
// fields are still missing.
func (s *service) resolvePart(ctx context.Context, userID uuid.UUID, ip, token, apiKey string, silent bool) (resolveOutcome, error) {
	out := resolveOutcome{result: Result{Resolved: KindPart, PartID: token}}
	tier := ""

	name, image := s.localPart(ctx, token)
	if name != "" || image != "" {
		tier = metrics.TierLocal
	}

	if name == "" || image == "" {
		allowed, err := s.allowExternal(ctx, userID, ip)
		if err != nil {
			return resolveOutcome{}, err
		}
		if !allowed {
			out.rateLimited = true
		}

		if allowed && apiKey != "" {
			apiName, apiImage, calls := s.partFromAPI(ctx, apiKey, token)
			out.apiCalls += calls
			if apiName != "" && name == "" {
				name = apiName
				tier = metrics.TierAPI
			}
			if apiImage != "" && image == "" {
				image = apiImage
				if tier == "" {
					tier = metrics.TierAPI
				}
			}
		}

		if allowed && name == "" && s.scraper.Enabled() {
			if scraped := s.scrapeName(ctx, token); scraped != "" {
				name = scraped
				tier = metrics.TierScrape
				out.apiCalls++
				// keep the catalog converging even from the scrape tier
				if err := s.catalog.UpsertPart(ctx, models.Part{PartNum: token, Name: scraped}); err != nil {
					s.logger.Error(ctx, "scraped name upsert failed", err)
				}
			}
		}
	}

	out.result.Name = sanitize.Text(name)
	out.result.ImageURL = sanitize.URL(image)
	out.result.Found = out.result.Name != ""
	if !out.result.Found {
		tier = metrics.TierMiss
	}
	if !silent || tier != "" {
		s.metrics.IncResolution(tier)
	}
	return out, nil
}

// resolveElement runs the element branch. A local hit may still spend one
// API call to backfill a missing part image; a local miss needs the
// elements endpoint, whose failure is the one upstream error this
// pipeline surfaces.
func (s *service) resolveElement(ctx context.Context, userID uuid.UUID, ip, token, apiKey string) (Result, error) {
	result := Result{Resolved: KindElement, ElementID: token}

	detail, err := s.catalog.GetElement(ctx, token)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load element")
	}

	if detail != nil {
		result.Found = true
		result.PartID = detail.PartNum
		result.Name = sanitize.Text(detail.PartName)
		result.Color = sanitize.Text(detail.ColorName)
		result.ImageURL = sanitize.URL(detail.ImageURL)
		s.metrics.IncResolution(metrics.TierLocal)

		if result.ImageURL == "" && apiKey != "" {
			if allowed, err := s.allowExternal(ctx, userID, ip); err == nil && allowed {
				s.metrics.IncUpstreamCall("rebrickable")
				if part, apiErr := s.api.GetPart(ctx, apiKey, detail.PartNum); apiErr == nil && part != nil {
					image := sanitize.URL(part.PartImgURL)
					if image != "" {
						result.ImageURL = image
						if err := s.catalog.UpsertPart(ctx, models.Part{
							PartNum:  detail.PartNum,
							Name:     sanitize.Text(part.Name),
							ImageURL: image,
						}); err != nil {
							s.logger.Error(ctx, "element image backfill upsert failed", err)
						}
					}
				}
			}
		}
		return result, nil
	}

	if apiKey == "" {
		return result, nil
	}
	allowed, err := s.allowExternal(ctx, userID, ip)
	if err != nil {
		return Result{}, err
	}
	if !allowed {
		s.metrics.IncRateLimited()
		return Result{}, pkgerrors.New(pkgerrors.CodeRateLimit, "lookup rate limit exceeded")
	}

	s.metrics.IncUpstreamCall("rebrickable")
	element, err := s.api.GetElement(ctx, apiKey, token)
	if err != nil {
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "element lookup upstream failure")
	}
	if element == nil {
		s.metrics.IncResolution(metrics.TierMiss)
		return result, nil
	}

	name := sanitize.Text(element.Part.Name)
	image := sanitize.URL(element.Part.PartImgURL)
	colorName := sanitize.Text(element.Color.Name)

	if err := s.catalog.UpsertPart(ctx, models.Part{
		PartNum:  element.Part.PartNum,
		Name:     name,
		ImageURL: image,
	}); err != nil {
		s.logger.Error(ctx, "element part upsert failed", err)
	}
	if err := s.catalog.UpsertColor(ctx, models.Color{
		ID:      element.Color.ID,
		Name:    colorName,
		RGB:     element.Color.RGB,
		IsTrans: element.Color.IsTrans,
	}); err != nil {
		s.logger.Error(ctx, "element color upsert failed", err)
	}
	if err := s.catalog.UpsertElement(ctx, token, element.Part.PartNum, element.Color.ID); err != nil {
		s.logger.Error(ctx, "element upsert failed", err)
	}

	result.Found = true
	result.PartID = element.Part.PartNum
	result.Name = name
	result.Color = colorName
	result.ImageURL = image
	s.metrics.IncResolution(metrics.TierAPI)
	return result, nil
}

// localPart reads the catalog with the exact token, then once more with
// the letter suffix stripped. The placeholder name counts as missing.
func (s *service) localPart(ctx context.Context, token string) (name, image string) {
	part, err := s.catalog.GetPart(ctx, token)
	if err != nil && errors.Is(err, gorm.ErrRecordNotFound) {
		if stripped := StripSuffix(token); stripped != "" {
			part, err = s.catalog.GetPart(ctx, stripped)
		}
	}
	if err != nil || part == nil {
		return "", ""
	}
	if !strings.EqualFold(strings.TrimSpace(part.Name), placeholderName) {
		name = part.Name
	}
	return name, part.ImageURL
}

// partFromAPI tries the original token, then the digit-stripped variant.
func (s *service) partFromAPI(ctx context.Context, apiKey, token string) (name, image string, calls int) {
	attempts := []string{token}
	if stripped := StripSuffix(token); stripped != "" {
		attempts = append(attempts, stripped)
	}
	for _, attempt := range attempts {
		calls++
		s.metrics.IncUpstreamCall("rebrickable")
		part, err := s.api.GetPart(ctx, apiKey, attempt)
		if err != nil {
			s.logger.Error(ctx, "rebrickable part fetch failed", err)
			continue
		}
		if part == nil {
			continue
		}
		if err := s.catalog.UpsertPart(ctx, models.Part{
			PartNum:  attempt,
			Name:     sanitize.Text(part.Name),
			ImageURL: sanitize.URL(part.PartImgURL),
		}); err != nil {
			s.logger.Error(ctx, "api part upsert failed", err)
		}
		return part.Name, part.PartImgURL, calls
	}
	return "", "", calls
}

func (s *service) scrapeName(ctx context.Context, token string) string {
	attempts := []string{token}
	if stripped := StripSuffix(token); stripped != "" {
		attempts = append(attempts, stripped)
	}
	for _, attempt := range attempts {
		s.metrics.IncUpstreamCall("bricklink")
		name, err := s.scraper.FetchName(ctx, attempt)
		if err != nil {
			s.logger.Error(ctx, "bricklink scrape failed", err)
			continue
		}
		if name = sanitize.Text(name); name != "" {
			return name
		}
	}
	return ""
}

func (s *service) allowExternal(ctx context.Context, userID uuid.UUID, ip string) (bool, error) {
	return s.limiter.Allow(ctx, userID.String(), ip)
}

// resolveAPIKey prefers the user's own key over the site-wide one.
func (s *service) resolveAPIKey(ctx context.Context, userID uuid.UUID) string {
	if userID != uuid.Nil {
		if pref, err := s.prefs.GetPreference(ctx, userID); err == nil &&
			pref.RebrickableAPIKey != nil && strings.TrimSpace(*pref.RebrickableAPIKey) != "" {
			return strings.TrimSpace(*pref.RebrickableAPIKey)
		}
	}
	if eff, err := s.siteCfg.Effective(ctx); err == nil {
		return eff.RebrickableAPIKey
	}
	return ""
}

func (s *service) readCache(ctx context.Context, key string) (Result, bool) {
	raw, err := s.cache.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNil(err) {
			s.logger.Error(ctx, "lookup cache read failed", err)
		}
		return Result{}, false
	}
	var result Result
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return Result{}, false
	}
	return result, true
}

func (s *service) writeCache(ctx context.Context, key string, result Result) {
	ttl := s.cfg.HitTTL
	if !result.Found {
		ttl = s.cfg.MissTTL
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, payload, ttl); err != nil {
		s.logger.Error(ctx, "lookup cache write failed", err)
	}
}
