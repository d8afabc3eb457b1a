package catalog

import (
	"sort"
	"sync"
)

// Store is a thread-safe in-memory catalog keyed by record ID.
// Mutating calls assign IDs to new records (ID == 0) as max existing + 1.
type Store struct {
	mu          sync.RWMutex
	stations    map[int]Station
	models      map[int]InstrumentModel
	instruments map[int]Instrument
	parameters  map[int]Parameter
	alerts      map[int]AlertDef
	contacts    map[int]Contact
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		stations:    make(map[int]Station),
		models:      make(map[int]InstrumentModel),
		instruments: make(map[int]Instrument),
		parameters:  make(map[int]Parameter),
		alerts:      make(map[int]AlertDef),
		contacts:    make(map[int]Contact),
	}
}

// nextID returns max key + 1, starting at 1 for an empty map.
func nextID[T any](m map[int]T) int {
	next := 1
	for id := range m {
		if id >= next {
			next = id + 1
		}
	}
	return next
}

// sortedByID returns the map's values ordered by their key.
func sortedByID[T any](m map[int]T) []T {
	ids := make([]int, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]T, 0, len(m))
	for _, id := range ids {
		out = append(out, m[id])
	}
	return out
}

// --- stations ---------------------------------------------------------------

// Stations returns all stations ordered by ID.
func (s *Store) Stations() []Station {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedByID(s.stations)
}

// Station returns the station with the given ID.
func (s *Store) Station(id int) (Station, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.stations[id]
	return st, ok
}

// PutStation inserts or replaces a station, assigning an ID when zero.
func (s *Store) PutStation(st Station) Station {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st.ID == 0 {
		st.ID = nextID(s.stations)
	}
	s.stations[st.ID] = st
	return st
}

// DeleteStation removes a station. It reports whether the ID existed.
func (s *Store) DeleteStation(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.stations[id]
	delete(s.stations, id)
	return ok
}

// --- instrument models ------------------------------------------------------

// Models returns all instrument models ordered by ID.
func (s *Store) Models() []InstrumentModel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedByID(s.models)
}

// Model returns the instrument model with the given ID.
func (s *Store) Model(id int) (InstrumentModel, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.models[id]
	return m, ok
}

// PutModel inserts or replaces an instrument model, assigning an ID when zero.
func (s *Store) PutModel(m InstrumentModel) InstrumentModel {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ID == 0 {
		m.ID = nextID(s.models)
	}
	s.models[m.ID] = m
	return m
}

// DeleteModel removes an instrument model. It reports whether the ID existed.
func (s *Store) DeleteModel(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.models[id]
	delete(s.models, id)
	return ok
}

// --- instruments ------------------------------------------------------------

// Instruments returns all instruments ordered by ID.
func (s *Store) Instruments() []Instrument {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedByID(s.instruments)
}

// Instrument returns the instrument with the given ID.
func (s *Store) Instrument(id int) (Instrument, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	in, ok := s.instruments[id]
	return in, ok
}

// PutInstrument inserts or replaces an instrument, assigning an ID when zero.
func (s *Store) PutInstrument(in Instrument) Instrument {
	s.mu.Lock()
	defer s.mu.Unlock()
	if in.ID == 0 {
		in.ID = nextID(s.instruments)
	}
	s.instruments[in.ID] = in
	return in
}

// DeleteInstrument removes an instrument. It reports whether the ID existed.
func (s *Store) DeleteInstrument(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.instruments[id]
	delete(s.instruments, id)
	return ok
}

// --- parameters -------------------------------------------------------------

// Parameters returns all parameters ordered by ID.
func (s *Store) Parameters() []Parameter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedByID(s.parameters)
}

// Parameter returns the parameter with the given ID.
func (s *Store) Parameter(id int) (Parameter, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.parameters[id]
	return p, ok
}

// PutParameter inserts or replaces a parameter, assigning an ID when zero.
func (s *Store) PutParameter(p Parameter) Parameter {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == 0 {
		p.ID = nextID(s.parameters)
	}
	s.parameters[p.ID] = p
	return p
}

// DeleteParameter removes a parameter. It reports whether the ID existed.
func (s *Store) DeleteParameter(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.parameters[id]
	delete(s.parameters, id)
	return ok
}

// --- alert definitions ------------------------------------------------------

// Alerts returns all alert definitions ordered by ID.
func (s *Store) Alerts() []AlertDef {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedByID(s.alerts)
}

// Alert returns the alert definition with the given ID.
func (s *Store) Alert(id int) (AlertDef, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.alerts[id]
	return a, ok
}

// PutAlert validates then inserts or replaces an alert definition, assigning
// an ID when zero.
func (s *Store) PutAlert(a AlertDef) (AlertDef, error) {
	if err := a.Validate(); err != nil {
		return AlertDef{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == 0 {
		a.ID = nextID(s.alerts)
	}
	s.alerts[a.ID] = a
	return a, nil
}

// DeleteAlert removes an alert definition. It reports whether the ID existed.
func (s *Store) DeleteAlert(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.alerts[id]
	delete(s.alerts, id)
	return ok
}

// --- contacts ---------------------------------------------------------------

// Contacts returns all contacts ordered by ID.
func (s *Store) Contacts() []Contact {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedByID(s.contacts)
}

// Contact returns the contact with the given ID.
func (s *Store) Contact(id int) (Contact, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.contacts[id]
	return c, ok
}

// PutContact inserts or replaces a contact, assigning an ID when zero.
func (s *Store) PutContact(c Contact) Contact {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == 0 {
		c.ID = nextID(s.contacts)
	}
	s.contacts[c.ID] = c
	return c
}

// DeleteContact removes a contact. It reports whether the ID existed.
func (s *Store) DeleteContact(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.contacts[id]
	delete(s.contacts, id)
	return ok
}

// --- snapshot ---------------------------------------------------------------

// Snapshot returns an immutable, ID-ordered copy of the whole catalog.
func (s *Store) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &Snapshot{
		Stations:    sortedByID(s.stations),
		Models:      sortedByID(s.models),
		Instruments: sortedByID(s.instruments),
		Parameters:  sortedByID(s.parameters),
		Alerts:      sortedByID(s.alerts),
		Contacts:    sortedByID(s.contacts),
	}
}

// Replace swaps the whole catalog content for snap's records. Used when the
// catalog file is (re)loaded from disk.
func (s *Store) Replace(snap *Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stations = make(map[int]Station, len(snap.Stations))
	for _, st := range snap.Stations {
		s.stations[st.ID] = st
	}
	s.models = make(map[int]InstrumentModel, len(snap.Models))
	for _, m := range snap.Models {
		s.models[m.ID] = m
	}
	s.instruments = make(map[int]Instrument, len(snap.Instruments))
	for _, in := range snap.Instruments {
		s.instruments[in.ID] = in
	}
	s.parameters = make(map[int]Parameter, len(snap.Parameters))
	for _, p := range snap.Parameters {
		s.parameters[p.ID] = p
	}
	s.alerts = make(map[int]AlertDef, len(snap.Alerts))
	for _, a := range snap.Alerts {
		s.alerts[a.ID] = a
	}
	s.contacts = make(map[int]Contact, len(snap.Contacts))
	for _, c := range snap.Contacts {
		s.contacts[c.ID] = c
	}
}

// Counts returns the number of records per category, for health reporting.
func (s *Store) Counts() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string]int{
		"stations":          len(s.stations),
		"instrument_models": len(s.models),
		"instruments":       len(s.instruments),
		"parameters":        len(s.parameters),
		"alerts":            len(s.alerts),
		"contacts":          len(s.contacts),
	}
}
