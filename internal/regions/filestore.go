package regions

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/go-playground/validator/v10"

	"climarisk/internal/types"
)

// FileStore is a JSON-file-backed region store. The file holds an array of
// region objects (name, polygon, vulnerability, population). Definitions are
// loaded once at construction and held in memory; the listing order is the
// file order, giving batch runs a stable region sequence.
type FileStore struct {
	mu      sync.RWMutex
	regions []types.Region
	byName  map[string]*types.Region
}

// NewFileStore loads region definitions from the given JSON file.
// Each region is validated: a name is required and polygons need at least
// three vertices with in-range coordinates.
func NewFileStore(path string) (*FileStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalStore,
			fmt.Sprintf("reading region file %s", path), err)
	}

	var regions []types.Region
	if err := json.Unmarshal(data, &regions); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalStore,
			fmt.Sprintf("parsing region file %s", path), err)
	}

	validate := validator.New()
	byName := make(map[string]*types.Region, len(regions))
	for i := range regions {
		if err := validate.Struct(&regions[i]); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalStore,
				fmt.Sprintf("invalid region %q", regions[i].Name), err)
		}
		if _, dup := byName[regions[i].Name]; dup {
			return nil, types.NewAppError(types.ErrCodeInternalStore,
				fmt.Sprintf("duplicate region name %q", regions[i].Name), nil)
		}
		byName[regions[i].Name] = &regions[i]
	}

	return &FileStore{regions: regions, byName: byName}, nil
}

// NewMemoryStore wraps an in-memory region slice in the store interface.
// Intended for tests and programmatic setups.
func NewMemoryStore(regions []types.Region) *FileStore {
	byName := make(map[string]*types.Region, len(regions))
	for i := range regions {
		byName[regions[i].Name] = &regions[i]
	}
	return &FileStore{regions: regions, byName: byName}
}

// ListRegions returns all regions in file order. The returned slice is a
// copy; callers may not mutate store state through it.
func (s *FileStore) ListRegions(_ context.Context) ([]types.Region, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.Region, len(s.regions))
	copy(out, s.regions)
	return out, nil
}

// GetRegion returns the region with the given name.
func (s *FileStore) GetRegion(_ context.Context, name string) (*types.Region, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.byName[name]
	if !ok {
		return nil, types.NewAppError(types.ErrCodeNotFoundRegion,
			fmt.Sprintf("region %q not found", name), nil)
	}
	cp := *r
	return &cp, nil
}
