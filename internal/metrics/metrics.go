// Package metrics exposes application counters. Recording before Init is
// a no-op, so packages can instrument themselves unconditionally and
// tests never touch the global registry.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	initOnce sync.Once

	relayQueries   *prometheus.CounterVec
	relayPublishes *prometheus.CounterVec
	cacheLookups   *prometheus.CounterVec
	resolutions    *prometheus.CounterVec
	pageSaves      *prometheus.CounterVec
	linkRedirects  *prometheus.CounterVec
)

// Init registers the application collectors. Must be called once at startup.
func Init() {
	initOnce.Do(func() {
		relayQueries = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "linkpage_relay_queries_total",
			Help: "Relay query fan-outs by outcome",
		}, []string{"outcome"})
		relayPublishes = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "linkpage_relay_publishes_total",
			Help: "Relay publish fan-outs by outcome",
		}, []string{"outcome"})
		cacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "linkpage_cache_lookups_total",
			Help: "Cache lookups by cache name and outcome",
		}, []string{"cache", "outcome"})
		resolutions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "linkpage_resolutions_total",
			Help: "Identifier resolutions by scheme and outcome",
		}, []string{"scheme", "outcome"})
		pageSaves = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "linkpage_page_saves_total",
			Help: "Page save attempts by outcome",
		}, []string{"outcome"})
		linkRedirects = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "linkpage_link_redirects_total",
			Help: "Link redirect lookups by outcome",
		}, []string{"outcome"})

		prometheus.MustRegister(
			relayQueries,
			relayPublishes,
			cacheLookups,
			resolutions,
			pageSaves,
			linkRedirects,
		)
	})
}

// RecordRelayQuery counts one query fan-out.
func RecordRelayQuery(outcome string) {
	if relayQueries == nil {
		return
	}
	relayQueries.WithLabelValues(outcome).Inc()
}

// RecordRelayPublish counts one publish fan-out.
func RecordRelayPublish(outcome string) {
	if relayPublishes == nil {
		return
	}
	relayPublishes.WithLabelValues(outcome).Inc()
}

// RecordCacheLookup counts a hit or miss against a named cache.
func RecordCacheLookup(cache, outcome string) {
	if cacheLookups == nil {
		return
	}
	cacheLookups.WithLabelValues(cache, outcome).Inc()
}

// RecordResolution counts an identifier resolution by scheme.
func RecordResolution(scheme, outcome string) {
	if resolutions == nil {
		return
	}
	resolutions.WithLabelValues(scheme, outcome).Inc()
}

// RecordPageSave counts a page save attempt.
func RecordPageSave(outcome string) {
	if pageSaves == nil {
		return
	}
	pageSaves.WithLabelValues(outcome).Inc()
}

// RecordLinkRedirect counts a redirect lookup.
func RecordLinkRedirect(outcome string) {
	if linkRedirects == nil {
		return
	}
	linkRedirects.WithLabelValues(outcome).Inc()
}
