package disposals

import (
	"context"
	"errors"
)

var (
	ErrAccountNotFound = errors.New("disposals: account not found")
	ErrDuplicate       = errors.New("disposals: record already exists")
)

// Store is the account/ledger store the award transaction runs against.
type Store interface {
	Balance(ctx context.Context, userID string) (int64, error)
	// Transactionally runs fn in one transaction; a non-nil return rolls back.
	Transactionally(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the set of operations available inside Transactionally.
type Tx interface {
	// LockBalance reads the balance and holds it until commit.
	LockBalance(ctx context.Context, userID string) (int64, error)
	// Find returns nil when no record has the id.
	Find(ctx context.Context, id string) (*Record, error)
	Insert(ctx context.Context, rec Record) error
	SetBalance(ctx context.Context, userID string, balance int64) error
}
