// Package disposalstest provides an in-memory disposals.Store for tests.
package disposalstest

import (
	"context"
	"sort"
	"sync"

	"github.com/Vitor-Giannaccini/ecoponto-plus-app/internal/domain/disposals"
)

// Store keeps balances and records in memory. Transactions are serialized
// and applied only when fn returns nil.
type Store struct {
	mu       sync.Mutex
	balances map[string]int64
	records  map[string]disposals.Record
	order    []string

	// FailWith, when set, is returned by the next Transactionally call.
	FailWith error
	// Commits counts successful transactions.
	Commits int
}

func New() *Store {
	return &Store{
		balances: make(map[string]int64),
		records:  make(map[string]disposals.Record),
	}
}

// AddAccount registers userID with an opening balance.
func (s *Store) AddAccount(userID string, balance int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[userID] = balance
}

func (s *Store) Balance(ctx context.Context, userID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.balances[userID]
	if !ok {
		return 0, disposals.ErrAccountNotFound
	}
	return b, nil
}

func (s *Store) Transactionally(ctx context.Context, fn func(tx disposals.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.FailWith; err != nil {
		s.FailWith = nil
		return err
	}

	tx := &memTx{
		s:        s,
		balances: make(map[string]int64),
		inserted: make(map[string]disposals.Record),
	}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	for id, b := range tx.balances {
		s.balances[id] = b
	}
	for _, id := range tx.order {
		s.records[id] = tx.inserted[id]
		s.order = append(s.order, id)
	}
	s.Commits++
	return nil
}

// Records returns every committed record for userID, oldest first.
func (s *Store) Records(userID string) []disposals.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []disposals.Record
	for _, id := range s.order {
		if r := s.records[id]; r.UserID == userID {
			out = append(out, r)
		}
	}
	return out
}

// ListByUser mirrors the Postgres repo: newest first, limit <= 0 means all.
func (s *Store) ListByUser(ctx context.Context, userID string, limit int) ([]disposals.Record, error) {
	recs := s.Records(userID)
	sort.SliceStable(recs, func(i, j int) bool { return recs[i].CreatedAt.After(recs[j].CreatedAt) })
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, nil
}

func (s *Store) CountByUser(ctx context.Context, userID string) (int64, error) {
	return int64(len(s.Records(userID))), nil
}

type memTx struct {
	s        *Store
	balances map[string]int64
	inserted map[string]disposals.Record
	order    []string
}

func (t *memTx) LockBalance(_ context.Context, userID string) (int64, error) {
	if b, ok := t.balances[userID]; ok {
		return b, nil
	}
	b, ok := t.s.balances[userID]
	if !ok {
		return 0, disposals.ErrAccountNotFound
	}
	return b, nil
}

func (t *memTx) Find(_ context.Context, id string) (*disposals.Record, error) {
	if r, ok := t.inserted[id]; ok {
		return &r, nil
	}
	if r, ok := t.s.records[id]; ok {
		return &r, nil
	}
	return nil, nil
}

func (t *memTx) Insert(_ context.Context, rec disposals.Record) error {
	if _, ok := t.s.records[rec.ID]; ok {
		return disposals.ErrDuplicate
	}
	if _, ok := t.inserted[rec.ID]; ok {
		return disposals.ErrDuplicate
	}
	if _, ok := t.s.balances[rec.UserID]; !ok {
		return disposals.ErrAccountNotFound
	}
	t.inserted[rec.ID] = rec
	t.order = append(t.order, rec.ID)
	return nil
}

func (t *memTx) SetBalance(_ context.Context, userID string, balance int64) error {
	if _, ok := t.s.balances[userID]; !ok {
		return disposals.ErrAccountNotFound
	}
	t.balances[userID] = balance
	return nil
}
