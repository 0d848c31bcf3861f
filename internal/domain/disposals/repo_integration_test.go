package disposals_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Vitor-Giannaccini/ecoponto-plus-app/internal/domain/disposals"
	"github.com/Vitor-Giannaccini/ecoponto-plus-app/internal/infra/db"
)

// Runs only with INTEGRATION_TESTS=1 and APP_POSTGRES_DSN pointing at a
// disposable database.
func setupPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if os.Getenv("INTEGRATION_TESTS") == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run")
	}
	dsn := os.Getenv("APP_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("APP_POSTGRES_DSN is not set")
	}
	if err := db.Migrate(dsn, "../../../migrations"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pool, err := db.Connect(ctx, dsn, 8)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

func newUser(t *testing.T, pool *pgxpool.Pool) string {
	t.Helper()
	id := uuid.NewString()
	_, err := pool.Exec(context.Background(),
		`INSERT INTO users (id, telegram_id, first_name) VALUES ($1, $2, 'it')`,
		id, time.Now().UnixNano())
	if err != nil {
		t.Fatalf("insert user: %v", err)
	}
	return id
}

func TestRepo_AwardIsAtomic(t *testing.T) {
	pool := setupPool(t)
	repo := disposals.NewRepo(pool)
	ctx := context.Background()
	userID := newUser(t, pool)

	mass := 2.5
	rec := disposals.Record{
		ID: uuid.NewString(), UserID: userID, SiteID: "ECO-001",
		MaterialID: "Plásticos", Category: "Recicláveis Comuns",
		PointsAwarded: 38, Mass: &mass, Status: disposals.StatusPendingValidation,
		CreatedAt: time.Now().UTC(),
	}
	err := repo.Transactionally(ctx, func(tx disposals.Tx) error {
		cur, err := tx.LockBalance(ctx, userID)
		if err != nil {
			return err
		}
		if err := tx.Insert(ctx, rec); err != nil {
			return err
		}
		return tx.SetBalance(ctx, userID, cur+rec.PointsAwarded)
	})
	if err != nil {
		t.Fatalf("award: %v", err)
	}

	bal, err := repo.Balance(ctx, userID)
	if err != nil || bal != 38 {
		t.Fatalf("balance = %d, %v; want 38", bal, err)
	}

	// a failing transaction leaves nothing behind
	boom := errors.New("boom")
	err = repo.Transactionally(ctx, func(tx disposals.Tx) error {
		second := rec
		second.ID = uuid.NewString()
		if err := tx.Insert(ctx, second); err != nil {
			return err
		}
		if err := tx.SetBalance(ctx, userID, 999); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	n, _ := repo.CountByUser(ctx, userID)
	bal, _ = repo.Balance(ctx, userID)
	if n != 1 || bal != 38 {
		t.Fatalf("after rollback: count=%d balance=%d", n, bal)
	}

	err = repo.Transactionally(ctx, func(tx disposals.Tx) error {
		return tx.Insert(ctx, rec)
	})
	if !errors.Is(err, disposals.ErrDuplicate) {
		t.Fatalf("duplicate insert err = %v", err)
	}

	got, err := repo.ListByUser(ctx, userID, 10)
	if err != nil || len(got) != 1 || got[0].ID != rec.ID || got[0].Mass == nil || *got[0].Mass != 2.5 {
		t.Fatalf("ListByUser = %+v, %v", got, err)
	}
}

func TestRepo_ConcurrentAwardsDoNotLoseUpdates(t *testing.T) {
	pool := setupPool(t)
	repo := disposals.NewRepo(pool)
	ctx := context.Background()
	userID := newUser(t, pool)

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			count := int64(1)
			errs <- repo.Transactionally(ctx, func(tx disposals.Tx) error {
				cur, err := tx.LockBalance(ctx, userID)
				if err != nil {
					return err
				}
				err = tx.Insert(ctx, disposals.Record{
					ID: uuid.NewString(), UserID: userID, SiteID: "ECO-001",
					MaterialID: "Móveis", Category: "Móveis e Eletrodomésticos",
					PointsAwarded: 50, Count: &count, Status: disposals.StatusPendingValidation,
					CreatedAt: time.Now().UTC(),
				})
				if err != nil {
					return err
				}
				return tx.SetBalance(ctx, userID, cur+50)
			})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("award: %v", err)
		}
	}

	bal, err := repo.Balance(ctx, userID)
	if err != nil || bal != n*50 {
		t.Fatalf("balance = %d, %v; want %d", bal, err, n*50)
	}
}

func TestRepo_UnknownAccount(t *testing.T) {
	pool := setupPool(t)
	repo := disposals.NewRepo(pool)
	ctx := context.Background()

	if _, err := repo.Balance(ctx, uuid.NewString()); !errors.Is(err, disposals.ErrAccountNotFound) {
		t.Fatalf("Balance err = %v", err)
	}
	err := repo.Transactionally(ctx, func(tx disposals.Tx) error {
		_, err := tx.LockBalance(ctx, uuid.NewString())
		return err
	})
	if !errors.Is(err, disposals.ErrAccountNotFound) {
		t.Fatalf("LockBalance err = %v", err)
	}
}
