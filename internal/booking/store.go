package booking

import "sync"

// DataStore owns the Data aggregate for one session. All mutation goes
// through Update so subscribers (the controller) see every change. There is
// a single logical writer; the mutex only guards against duplicate
// programmatic calls, not real contention.
type DataStore struct {
	mu   sync.Mutex
	data Data
	subs []func(Data)
}

// NewDataStore creates a store with a fresh aggregate.
func NewDataStore() *DataStore {
	return &DataStore{data: NewData()}
}

// RestoreDataStore creates a store seeded from a session snapshot.
func RestoreDataStore(d Data) *DataStore {
	return &DataStore{data: d}
}

// Get returns the current snapshot.
func (s *DataStore) Get() Data {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data
}

// Update merges p into the aggregate, notifies subscribers, and returns the
// new snapshot. No validation happens here; gating is the Gate's job.
func (s *DataStore) Update(p Partial) Data {
	s.mu.Lock()
	s.data = s.data.Apply(p)
	snapshot := s.data
	subs := s.subs
	s.mu.Unlock()

	for _, fn := range subs {
		fn(snapshot)
	}
	return snapshot
}

// Subscribe registers a callback invoked with the new snapshot after every
// Update. Callbacks run synchronously on the updating goroutine.
func (s *DataStore) Subscribe(fn func(Data)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}
