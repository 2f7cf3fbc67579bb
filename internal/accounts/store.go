// Package accounts implements the account store: an in-memory, capacity
// bounded list of pseudo/password-hash records with a pluggable persist
// hook, grounded on the reference implementation's player.c (register_player,
// login_player, load_accounts/save_accounts) but with a real password hash
// (see DESIGN.md) and a pluggable Persister in place of hard-coded file I/O.
package accounts

import (
	"fmt"
	"sync"

	"github.com/hactazia/quiznet/internal/apperr"
	"golang.org/x/crypto/bcrypt"
)

// Account is one registered player.
type Account struct {
	Pseudo       string
	PasswordHash string
}

// Record is the flat pseudo;hash representation persisted by a Persister.
type Record struct {
	Pseudo string
	Hash   string
}

// Persister is the account store's persist-on-write collaborator. Load is
// called once at startup; Save is called synchronously, under the store's
// lock, after every successful registration.
type Persister interface {
	Load() ([]Record, error)
	Save(records []Record) error
}

// DefaultCapacity bounds the account table at the same order of magnitude
// as the client connection table, a behavior supplemented from the
// reference implementation (which reuses MAX_CLIENTS for both) — kept here
// as its own named constant since the two bounds are conceptually distinct.
const DefaultCapacity = 100

// Store is the in-memory, capacity-bounded account table.
type Store struct {
	mu        sync.Mutex
	byPseudo  map[string]*Account
	order     []string // pseudos in registration order, for stable persistence
	capacity  int
	persister Persister
}

// New constructs an empty store. If persister is non-nil, New loads any
// existing records from it immediately.
func New(capacity int, persister Persister) (*Store, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	s := &Store{
		byPseudo:  make(map[string]*Account),
		capacity:  capacity,
		persister: persister,
	}
	if persister != nil {
		records, err := persister.Load()
		if err != nil {
			return nil, fmt.Errorf("accounts: load: %w", err)
		}
		for _, r := range records {
			s.byPseudo[r.Pseudo] = &Account{Pseudo: r.Pseudo, PasswordHash: r.Hash}
			s.order = append(s.order, r.Pseudo)
		}
	}
	return s, nil
}

// Register creates a new account. Returns apperr.ErrConflict if pseudo is
// already taken (case-sensitive match) and apperr.ErrCapacity if the store
// is full. The account is persisted synchronously, while the lock is still
// held, closing the mutate/persist race the reference implementation
// leaves open (see DESIGN.md).
func (s *Store) Register(pseudo, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byPseudo[pseudo]; exists {
		return apperr.ErrConflict
	}
	if len(s.order) >= s.capacity {
		return apperr.ErrCapacity
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("accounts: hash password: %w", err)
	}

	s.byPseudo[pseudo] = &Account{Pseudo: pseudo, PasswordHash: string(hash)}
	s.order = append(s.order, pseudo)

	if s.persister != nil {
		if err := s.persister.Save(s.snapshotLocked()); err != nil {
			// Roll back so the in-memory and persisted views stay consistent.
			delete(s.byPseudo, pseudo)
			s.order = s.order[:len(s.order)-1]
			return fmt.Errorf("accounts: persist: %w", err)
		}
	}
	return nil
}

// Login validates credentials with a constant-time comparison (via
// bcrypt's own digest comparison). Returns apperr.ErrUnauthorized for
// either an unknown pseudo or a wrong password — the two are not
// distinguished on the wire, matching spec.md §7's combined 401 bucket.
func (s *Store) Login(pseudo, password string) error {
	s.mu.Lock()
	acc, ok := s.byPseudo[pseudo]
	s.mu.Unlock()

	if !ok {
		return apperr.ErrUnauthorized
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)); err != nil {
		return apperr.ErrUnauthorized
	}
	return nil
}

// Find looks up an account by pseudo.
func (s *Store) Find(pseudo string) (Account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.byPseudo[pseudo]
	if !ok {
		return Account{}, false
	}
	return *acc, true
}

// Size returns the number of registered accounts.
func (s *Store) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

func (s *Store) snapshotLocked() []Record {
	records := make([]Record, 0, len(s.order))
	for _, pseudo := range s.order {
		acc := s.byPseudo[pseudo]
		records = append(records, Record{Pseudo: acc.Pseudo, Hash: acc.PasswordHash})
	}
	return records
}
