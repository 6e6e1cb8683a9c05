package cache

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// LookupsTotal counts translation lookups by store label and result (hit, miss).
	LookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "translation_cache_lookups_total",
			Help: "Translation cache lookups by result.",
		},
		[]string{"store", "result"},
	)

	// EvictionsTotal counts translations a store dropped on its own.
	EvictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "translation_cache_evictions_total",
			Help: "Translations evicted from the cache.",
		},
		[]string{"store"},
	)

	// WriteErrorsTotal counts writes that did not reach storage.
	WriteErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "translation_cache_write_errors_total",
			Help: "Translation cache writes that failed.",
		},
		[]string{"store"},
	)
)

func init() {
	prometheus.MustRegister(LookupsTotal, EvictionsTotal, WriteErrorsTotal)
}

// entriesCollector reads the size of one store when scraped.
type entriesCollector struct {
	desc *prometheus.Desc
	size func() int
}

func (c *entriesCollector) Describe(ch chan<- *prometheus.Desc) { ch <- c.desc }

func (c *entriesCollector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.desc, prometheus.GaugeValue, float64(c.size()))
}

var (
	entriesMu sync.Mutex
	entries   = make(map[string]*entriesCollector)
	// entriesRegisterer is swapped for an isolated registry in tests.
	entriesRegisterer prometheus.Registerer = prometheus.DefaultRegisterer
)

// trackEntries exports the size of the store labelled label, replacing a
// previous store with the same label.
func trackEntries(label string, size func() int) {
	c := &entriesCollector{
		desc: prometheus.NewDesc("translation_cache_entries", "Translations currently stored.",
			nil, prometheus.Labels{"store": label}),
		size: size,
	}

	entriesMu.Lock()
	defer entriesMu.Unlock()
	if old, ok := entries[label]; ok {
		entriesRegisterer.Unregister(old)
	}
	entries[label] = c
	_ = entriesRegisterer.Register(c)
}

func untrackEntries(label string) {
	entriesMu.Lock()
	defer entriesMu.Unlock()
	if c, ok := entries[label]; ok {
		entriesRegisterer.Unregister(c)
		delete(entries, label)
	}
}
