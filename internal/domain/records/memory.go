package records

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MemoryRepository is an in-process Repository and Transactor. WithinTx
// snapshots the table and restores it when fn fails.
type MemoryRepository struct {
	mu      sync.Mutex
	records map[int64]*PatientRecord
	writes  []int64

	// FailMarkVerified, when set, makes MarkVerified fail for that id.
	FailMarkVerified map[int64]error
}

func NewMemoryRepository(recs ...*PatientRecord) *MemoryRepository {
	m := &MemoryRepository{records: make(map[int64]*PatientRecord)}
	for _, r := range recs {
		m.Put(r)
	}
	return m
}

// Put stores a copy of rec.
func (m *MemoryRepository) Put(rec *PatientRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	m.records[rec.ID] = &cp
}

// Writes returns the ids passed to successful MarkVerified calls, in order.
func (m *MemoryRepository) Writes() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int64, len(m.writes))
	copy(out, m.writes)
	return out
}

func (m *MemoryRepository) GetByID(_ context.Context, id int64) (*PatientRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, fmt.Errorf("record %d: %w", id, ErrNotFound)
	}
	cp := *rec
	return &cp, nil
}

func (m *MemoryRepository) FindVerifiedByUniqueID(_ context.Context, clinicID int64, kind Kind, uniqueID string, excludeID int64) (*PatientRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	uniqueID = strings.TrimSpace(uniqueID)
	var match *PatientRecord
	for _, rec := range m.records {
		if rec.ID == excludeID || rec.ClinicID != clinicID || rec.Kind != kind {
			continue
		}
		if rec.UniqueIDValue() != uniqueID || !rec.Verified || !rec.IsEditable() {
			continue
		}
		if match == nil || rec.ID < match.ID {
			match = rec
		}
	}
	if match == nil {
		return nil, ErrNotFound
	}
	cp := *match
	return &cp, nil
}

func (m *MemoryRepository) MarkVerified(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.FailMarkVerified[id]; err != nil {
		return fmt.Errorf("mark record %d verified: %w", id, err)
	}
	rec, ok := m.records[id]
	if !ok {
		return fmt.Errorf("mark record %d verified: %w", id, ErrNotFound)
	}
	editable := true
	rec.Verified = true
	rec.Editable = &editable
	m.writes = append(m.writes, id)
	return nil
}

func (m *MemoryRepository) List(_ context.Context, f ListFilter, limit, offset int) ([]*PatientRecord, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	clinics := make(map[int64]bool, len(f.ClinicIDs))
	for _, id := range f.ClinicIDs {
		clinics[id] = true
	}
	var all []*PatientRecord
	for _, rec := range m.records {
		if len(clinics) > 0 && !clinics[rec.ClinicID] {
			continue
		}
		if f.PatientID > 0 && rec.PatientID != f.PatientID {
			continue
		}
		if f.VisitID > 0 && rec.VisitID != f.VisitID {
			continue
		}
		if f.Kind != "" && rec.Kind != f.Kind {
			continue
		}
		cp := *rec
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAtEpoch != all[j].CreatedAtEpoch {
			return all[i].CreatedAtEpoch > all[j].CreatedAtEpoch
		}
		return all[i].ID > all[j].ID
	})

	total := len(all)
	if offset >= total {
		return []*PatientRecord{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (m *MemoryRepository) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	snapshot := make(map[int64]*PatientRecord, len(m.records))
	for id, rec := range m.records {
		cp := *rec
		snapshot[id] = &cp
	}
	writes := len(m.writes)
	m.mu.Unlock()

	if err := fn(ctx); err != nil {
		m.mu.Lock()
		m.records = snapshot
		m.writes = m.writes[:writes]
		m.mu.Unlock()
		return err
	}
	return nil
}
