package watchlist

// StorageKey is the key the favorites list is persisted under.
const StorageKey = "favorites"

// Store persists the ordered favorites list.
type Store interface {
	// Load returns the stored list. found is false when nothing was ever saved.
	Load() (symbols []string, found bool, err error)
	Save(symbols []string) error
	Close() error
}

// MemoryStore keeps the list in process memory. Used when no backend is configured.
type MemoryStore struct {
	symbols []string
	saved   bool
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (m *MemoryStore) Load() ([]string, bool, error) {
	return append([]string(nil), m.symbols...), m.saved, nil
}

func (m *MemoryStore) Save(symbols []string) error {
	m.symbols = append([]string(nil), symbols...)
	m.saved = true
	return nil
}

func (m *MemoryStore) Close() error { return nil }
