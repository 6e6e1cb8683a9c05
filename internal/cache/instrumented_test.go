package cache

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(cv *prometheus.CounterVec, labels ...string) float64 {
	c, err := cv.GetMetricWithLabelValues(labels...)
	if err != nil {
		return 0
	}
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}

// isolateEntries points the entries collectors at a fresh registry for the test.
func isolateEntries(t *testing.T) *prometheus.Registry {
	t.Helper()
	reg := prometheus.NewRegistry()
	orig := entriesRegisterer
	entriesRegisterer = reg
	t.Cleanup(func() { entriesRegisterer = orig })
	return reg
}

func openLabelled(t *testing.T, label string, opts Options) Store {
	t.Helper()
	opts.MetricsLabel = label
	return openStore(t, KindMemory, opts)
}

func TestInstrumentedStore_Lookups(t *testing.T) {
	isolateEntries(t)
	s := openLabelled(t, "test-lookups", Options{})
	_ = s.Set("a", "1")
	_ = s.Set("b", "2")

	hits := counterValue(LookupsTotal, "test-lookups", "hit")
	misses := counterValue(LookupsTotal, "test-lookups", "miss")

	_, _ = s.Get("a")
	_, _ = s.Get("absent")
	_ = s.GetMany([]string{"a", "b", "x", "y", "z"})

	if got := counterValue(LookupsTotal, "test-lookups", "hit") - hits; got != 3 {
		t.Errorf("hits grew by %.0f, want 3", got)
	}
	if got := counterValue(LookupsTotal, "test-lookups", "miss") - misses; got != 4 {
		t.Errorf("misses grew by %.0f, want 4", got)
	}
}

func TestInstrumentedStore_Evictions(t *testing.T) {
	isolateEntries(t)
	var evicted []string
	s := openLabelled(t, "test-evict", Options{MaxEntries: 2, OnEvict: func(key string) {
		evicted = append(evicted, key)
	}})
	before := counterValue(EvictionsTotal, "test-evict")

	_ = s.Set("a", "1")
	_ = s.Set("b", "2")
	_ = s.Set("c", "3")

	if got := counterValue(EvictionsTotal, "test-evict") - before; got != 1 {
		t.Errorf("evictions grew by %.0f, want 1", got)
	}
	if len(evicted) != 1 || evicted[0] != "a" {
		t.Errorf("caller OnEvict saw %v, want [a]", evicted)
	}
}

func TestInstrumentedStore_Entries(t *testing.T) {
	reg := isolateEntries(t)
	s := openLabelled(t, "test-entries", Options{})

	gather := func() float64 {
		mfs, _ := reg.Gather()
		for _, mf := range mfs {
			if mf.GetName() != "translation_cache_entries" {
				continue
			}
			for _, m := range mf.GetMetric() {
				for _, lp := range m.GetLabel() {
					if lp.GetName() == "store" && lp.GetValue() == "test-entries" {
						return m.GetGauge().GetValue()
					}
				}
			}
		}
		return -1
	}

	if v := gather(); v != 0 {
		t.Fatalf("entries before Set = %.0f, want 0", v)
	}
	_ = s.Set("x", "1")
	_ = s.Set("y", "2")
	if v := gather(); v != 2 {
		t.Errorf("entries after two Sets = %.0f, want 2", v)
	}

	_ = s.Close()
	if v := gather(); v != -1 {
		t.Errorf("entries still exported after Close: %.0f", v)
	}
}

type failingStore struct{ Store }

func (failingStore) Set(string, string) error { return errors.New("disk full") }

func TestInstrumentedStore_WriteErrors(t *testing.T) {
	isolateEntries(t)
	inner, err := Open(KindMemory, Options{})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	s := newInstrumentedStore(failingStore{inner}, "test-write-errors")
	t.Cleanup(func() { _ = s.Close() })

	before := counterValue(WriteErrorsTotal, "test-write-errors")
	if err := s.Set("k", "v"); err == nil {
		t.Fatal("Set() error was swallowed")
	}
	if got := counterValue(WriteErrorsTotal, "test-write-errors") - before; got != 1 {
		t.Errorf("write errors grew by %.0f, want 1", got)
	}
}
