package metrics

import "github.com/prometheus/client_golang/prometheus"

// LookupMetrics tracks where part lookups resolve and what they cost.
type LookupMetrics struct {
	resolutions *prometheus.CounterVec
	apiCalls    *prometheus.CounterVec
	rateLimited prometheus.Counter
}

// Resolution tiers reported per lookup.
const (
	TierCache  = "cache"
	TierLocal  = "local"
	TierAPI    = "api"
	TierScrape = "scrape"
	TierMiss   = "miss"
)

// NewLookupMetrics registers the lookup pipeline metrics on the provided registerer.
func NewLookupMetrics(reg prometheus.Registerer) *LookupMetrics {
	if reg == nil {
		return &LookupMetrics{}
	}
	resolutions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lookup_resolutions_total",
		Help: "Part lookups by resolution tier.",
	}, []string{"tier"})
	apiCalls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lookup_upstream_calls_total",
		Help: "Calls to external part data sources.",
	}, []string{"source"})
	rateLimited := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lookup_rate_limited_total",
		Help: "Lookups rejected by the fixed-window limiter.",
	})
	reg.MustRegister(resolutions, apiCalls, rateLimited)
	return &LookupMetrics{
		resolutions: resolutions,
		apiCalls:    apiCalls,
		rateLimited: rateLimited,
	}
}

// IncResolution counts one lookup resolved at the given tier.
func (l *LookupMetrics) IncResolution(tier string) {
	if l == nil || l.resolutions == nil {
		return
	}
	l.resolutions.WithLabelValues(normalizeLabel(tier)).Inc()
}

// IncUpstreamCall counts one call to the named external source.
func (l *LookupMetrics) IncUpstreamCall(source string) {
	if l == nil || l.apiCalls == nil {
		return
	}
	l.apiCalls.WithLabelValues(normalizeLabel(source)).Inc()
}

// IncRateLimited counts one rejected lookup.
func (l *LookupMetrics) IncRateLimited() {
	if l == nil || l.rateLimited == nil {
		return
	}
	l.rateLimited.Inc()
}

// Empty label values would register as blank series.
func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
