package grid

import (
	"curation-grid/internal/domain/job"
)

// RowStore holds the records of the page currently shown, in display order.
// Ids are unique. Callers get clones; the store is mutated only through its
// methods.
type RowStore struct {
	order []job.ID
	byID  map[job.ID]*job.Record
}

func NewRowStore() *RowStore {
	return &RowStore{byID: map[job.ID]*job.Record{}}
}

// ReplaceAll swaps the whole contents. Later duplicates of an id are dropped.
func (s *RowStore) ReplaceAll(records []job.Record) {
	s.order = make([]job.ID, 0, len(records))
	s.byID = make(map[job.ID]*job.Record, len(records))
	for i := range records {
		r := records[i].Clone()
		if _, dup := s.byID[r.ID]; dup {
			continue
		}
		s.order = append(s.order, r.ID)
		s.byID[r.ID] = &r
	}
}

// Patch sets the curator override of one field. It returns ErrRecordNotFound
// when the id is not resident; callers treat that as stale and reload.
func (s *RowStore) Patch(id job.ID, field job.Field, value string) error {
	r, ok := s.byID[id]
	if !ok {
		return ErrRecordNotFound
	}
	if r.Overrides == nil {
		r.Overrides = map[job.Field]string{}
	}
	r.Overrides[field] = value
	return nil
}

func (s *RowStore) Get(id job.ID) (job.Record, bool) {
	r, ok := s.byID[id]
	if !ok {
		return job.Record{}, false
	}
	return r.Clone(), true
}

func (s *RowStore) Has(id job.ID) bool {
	_, ok := s.byID[id]
	return ok
}

func (s *RowStore) Update(id job.ID, fn func(r *job.Record)) error {
	r, ok := s.byID[id]
	if !ok {
		return ErrRecordNotFound
	}
	fn(r)
	r.ID = id
	return nil
}

// Remove deletes the record and reports the index it occupied.
func (s *RowStore) Remove(id job.ID) (job.Record, int, bool) {
	r, ok := s.byID[id]
	if !ok {
		return job.Record{}, -1, false
	}
	idx := s.Index(id)
	s.order = append(s.order[:idx], s.order[idx+1:]...)
	delete(s.byID, id)
	return *r, idx, true
}

// Insert places rec at index, clamped to the current bounds.
func (s *RowStore) Insert(index int, rec job.Record) error {
	if _, ok := s.byID[rec.ID]; ok {
		return ErrDuplicateRecord
	}
	if index < 0 {
		index = 0
	}
	if index > len(s.order) {
		index = len(s.order)
	}
	r := rec.Clone()
	s.order = append(s.order, 0)
	copy(s.order[index+1:], s.order[index:])
	s.order[index] = r.ID
	s.byID[r.ID] = &r
	return nil
}

func (s *RowStore) Index(id job.ID) int {
	for i, v := range s.order {
		if v == id {
			return i
		}
	}
	return -1
}

func (s *RowStore) Len() int { return len(s.order) }

func (s *RowStore) IDs() []job.ID {
	out := make([]job.ID, len(s.order))
	copy(out, s.order)
	return out
}

// Slice returns clones of the records in [start, end).
func (s *RowStore) Slice(start, end int) []job.Record {
	if start < 0 {
		start = 0
	}
	if end > len(s.order) {
		end = len(s.order)
	}
	if start >= end {
		return nil
	}
	out := make([]job.Record, 0, end-start)
	for _, id := range s.order[start:end] {
		out = append(out, s.byID[id].Clone())
	}
	return out
}
