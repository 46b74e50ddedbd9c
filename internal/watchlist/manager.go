package watchlist

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/ZA27101977/stocktrader/internal/model"
)

// ErrInvalidSymbol is returned for empty or malformed tickers.
var ErrInvalidSymbol = errors.New("invalid symbol")

// DefaultSymbols seeds a watchlist that was never saved.
var DefaultSymbols = []string{"AAPL", "TSLA", "NVDA", "MSFT", "GOOGL"}

// Manager keeps the ordered, duplicate-free favorites list and writes it through to a Store.
type Manager struct {
	mu       sync.Mutex
	store    Store
	symbols  []string
	validate *validator.Validate
}

// NewManager loads the list from store, seeding DefaultSymbols when nothing was saved.
func NewManager(store Store) (*Manager, error) {
	if store == nil {
		store = NewMemoryStore()
	}
	symbols, found, err := store.Load()
	if err != nil {
		return nil, err
	}
	m := &Manager{store: store, validate: validator.New()}
	if !found {
		m.symbols = slices.Clone(DefaultSymbols)
		if err := store.Save(m.symbols); err != nil {
			return nil, err
		}
		return m, nil
	}
	for _, s := range symbols {
		s = model.NormalizeSymbol(s)
		if m.check(s) == nil && !slices.Contains(m.symbols, s) {
			m.symbols = append(m.symbols, s)
		}
	}
	return m, nil
}

// List returns the symbols in insertion order.
func (m *Manager) List() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.symbols)
}

// Contains reports whether symbol is on the list.
func (m *Manager) Contains(symbol string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Contains(m.symbols, model.NormalizeSymbol(symbol))
}

// Add appends symbol. It reports false when it was already present.
func (m *Manager) Add(symbol string) (bool, error) {
	symbol = model.NormalizeSymbol(symbol)
	if err := m.check(symbol); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if slices.Contains(m.symbols, symbol) {
		return false, nil
	}
	next := append(slices.Clone(m.symbols), symbol)
	if err := m.store.Save(next); err != nil {
		return false, fmt.Errorf("save watchlist: %w", err)
	}
	m.symbols = next
	log.Info().Str("symbol", symbol).Int("size", len(next)).Msg("watchlist add")
	return true, nil
}

// Remove deletes symbol. It reports false when it was not present.
func (m *Manager) Remove(symbol string) (bool, error) {
	symbol = model.NormalizeSymbol(symbol)
	m.mu.Lock()
	defer m.mu.Unlock()
	i := slices.Index(m.symbols, symbol)
	if i < 0 {
		return false, nil
	}
	next := slices.Delete(slices.Clone(m.symbols), i, i+1)
	if err := m.store.Save(next); err != nil {
		return false, fmt.Errorf("save watchlist: %w", err)
	}
	m.symbols = next
	log.Info().Str("symbol", symbol).Int("size", len(next)).Msg("watchlist remove")
	return true, nil
}

// Close closes the underlying store.
func (m *Manager) Close() error {
	return m.store.Close()
}

// check accepts 1-12 characters of letters, digits and . - ^ =.
func (m *Manager) check(symbol string) error {
	if err := m.validate.Var(symbol, "required,max=12"); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidSymbol, symbol)
	}
	for _, r := range symbol {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '^', r == '=':
		default:
			return fmt.Errorf("%w: %q", ErrInvalidSymbol, symbol)
		}
	}
	return nil
}
