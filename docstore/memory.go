package docstore

import (
	"context"
	"sort"
	"sync"

	"github.com/invisicipher/secure-image-backend/interfaces"
)

// MemoryIdentityStore is an in-memory IdentityStore for tests and
// single-process setups.
type MemoryIdentityStore struct {
	mu       sync.RWMutex
	profiles map[interfaces.WalletAddress]interfaces.Profile
}

func NewMemoryIdentityStore() *MemoryIdentityStore {
	return &MemoryIdentityStore{profiles: make(map[interfaces.WalletAddress]interfaces.Profile)}
}

func (s *MemoryIdentityStore) Create(ctx context.Context, profile interfaces.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[profile.Address]; ok {
		return interfaces.ErrProfileExists
	}
	s.profiles[profile.Address] = profile
	return nil
}

func (s *MemoryIdentityStore) Get(ctx context.Context, address interfaces.WalletAddress) (interfaces.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	profile, ok := s.profiles[address]
	if !ok {
		return interfaces.Profile{}, interfaces.ErrProfileNotFound
	}
	return profile, nil
}

// MemoryRecordIndex is an in-memory RecordIndex for tests.
type MemoryRecordIndex struct {
	mu      sync.RWMutex
	records map[interfaces.CID]interfaces.PipelineRecord
}

func NewMemoryRecordIndex() *MemoryRecordIndex {
	return &MemoryRecordIndex{records: make(map[interfaces.CID]interfaces.PipelineRecord)}
}

func (s *MemoryRecordIndex) Insert(ctx context.Context, record interfaces.PipelineRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.CID] = record
	return nil
}

func (s *MemoryRecordIndex) ByPatient(ctx context.Context, patient interfaces.WalletAddress) ([]interfaces.PipelineRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var records []interfaces.PipelineRecord
	for _, record := range s.records {
		if record.PatientAddress.Equal(patient) {
			records = append(records, record)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, nil
}

func (s *MemoryRecordIndex) ByCID(ctx context.Context, cid interfaces.CID) (interfaces.PipelineRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[cid]
	return record, ok, nil
}
