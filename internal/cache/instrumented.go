package cache

// instrumentedStore exports lookups, write failures and the entry count of
// the wrapped store under one label.
type instrumentedStore struct {
	Store
	label string
}

func newInstrumentedStore(inner Store, label string) *instrumentedStore {
	trackEntries(label, inner.Len)
	return &instrumentedStore{Store: inner, label: label}
}

func (s *instrumentedStore) countLookups(hits, total int) {
	if hits > 0 {
		LookupsTotal.WithLabelValues(s.label, "hit").Add(float64(hits))
	}
	if misses := total - hits; misses > 0 {
		LookupsTotal.WithLabelValues(s.label, "miss").Add(float64(misses))
	}
}

func (s *instrumentedStore) Get(key string) (string, bool) {
	value, ok := s.Store.Get(key)
	hits := 0
	if ok {
		hits = 1
	}
	s.countLookups(hits, 1)
	return value, ok
}

func (s *instrumentedStore) GetMany(keys []string) map[string]string {
	found := s.Store.GetMany(keys)
	s.countLookups(len(found), len(keys))
	return found
}

func (s *instrumentedStore) Set(key, value string) error {
	if err := s.Store.Set(key, value); err != nil {
		WriteErrorsTotal.WithLabelValues(s.label).Inc()
		return err
	}
	return nil
}

func (s *instrumentedStore) Close() error {
	untrackEntries(s.label)
	return s.Store.Close()
}
