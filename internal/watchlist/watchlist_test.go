package watchlist

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingStore struct{ MemoryStore }

func (f *failingStore) Save([]string) error { return errors.New("disk full") }

func stores(t *testing.T) map[string]func() Store {
	dir := t.TempDir()
	return map[string]func() Store{
		"memory": func() Store { return NewMemoryStore() },
		"file":   func() Store { return NewFileStore(filepath.Join(dir, "watchlist.json")) },
		"sqlite": func() Store {
			s, err := NewSQLiteStore(filepath.Join(dir, "terminal.db"))
			require.NoError(t, err)
			return s
		},
	}
}

func TestManager_DefaultsAndOrdering(t *testing.T) {
	m, err := NewManager(NewMemoryStore())
	require.NoError(t, err)
	assert.Equal(t, DefaultSymbols, m.List())

	added, err := m.Add(" amd ")
	require.NoError(t, err)
	assert.True(t, added)
	added, err = m.Add("AAPL")
	require.NoError(t, err)
	assert.False(t, added)

	removed, err := m.Remove("tsla")
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = m.Remove("TSLA")
	require.NoError(t, err)
	assert.False(t, removed)

	assert.Equal(t, []string{"AAPL", "NVDA", "MSFT", "GOOGL", "AMD"}, m.List())
	assert.True(t, m.Contains("amd"))
	assert.False(t, m.Contains("TSLA"))
}

func TestManager_RejectsInvalidSymbols(t *testing.T) {
	m, err := NewManager(nil)
	require.NoError(t, err)
	for _, s := range []string{"", "   ", "BRK B", "WAYTOOLONGSYMBOL", "A,B"} {
		_, err := m.Add(s)
		assert.True(t, errors.Is(err, ErrInvalidSymbol), "symbol %q", s)
	}
	_, err = m.Add("BRK.B")
	assert.NoError(t, err)
	_, err = m.Add("^GSPC")
	assert.NoError(t, err)
}

func TestManager_PersistsThroughEachStore(t *testing.T) {
	for name, open := range stores(t) {
		t.Run(name, func(t *testing.T) {
			store := open()
			m, err := NewManager(store)
			require.NoError(t, err)
			_, err = m.Add("AMD")
			require.NoError(t, err)
			_, err = m.Remove("AAPL")
			require.NoError(t, err)
			want := m.List()

			if name == "memory" {
				symbols, found, err := store.Load()
				require.NoError(t, err)
				assert.True(t, found)
				assert.Equal(t, want, symbols)
				return
			}
			require.NoError(t, m.Close())

			reopened, err := NewManager(open())
			require.NoError(t, err)
			defer reopened.Close()
			assert.Equal(t, want, reopened.List())
		})
	}
}

func TestManager_EmptyListIsNotReseeded(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "w.json"))
	m, err := NewManager(store)
	require.NoError(t, err)
	for _, s := range DefaultSymbols {
		_, err := m.Remove(s)
		require.NoError(t, err)
	}
	again, err := NewManager(store)
	require.NoError(t, err)
	assert.Empty(t, again.List())
}

func TestManager_SaveFailureKeepsState(t *testing.T) {
	store := &failingStore{}
	store.symbols = []string{"AAPL"}
	store.saved = true
	m, err := NewManager(store)
	require.NoError(t, err)

	_, err = m.Add("AMD")
	assert.Error(t, err)
	_, err = m.Remove("AAPL")
	assert.Error(t, err)
	assert.Equal(t, []string{"AAPL"}, m.List())
}

func TestFileStore_MissingAndCorrupt(t *testing.T) {
	dir := t.TempDir()
	_, found, err := NewFileStore(filepath.Join(dir, "none.json")).Load()
	require.NoError(t, err)
	assert.False(t, found)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0o644))
	_, _, err = NewFileStore(bad).Load()
	assert.Error(t, err)
}

func TestNewManager_NormalizesStoredList(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Save([]string{"aapl", "AAPL", " msft ", "bad sym"}))
	m, err := NewManager(store)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT"}, m.List())
}
