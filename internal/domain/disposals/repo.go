package disposals

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

type Repo struct{ pool *pgxpool.Pool }

func NewRepo(pool *pgxpool.Pool) *Repo { return &Repo{pool: pool} }

func (r *Repo) Balance(ctx context.Context, userID string) (int64, error) {
	var total int64
	err := r.pool.QueryRow(ctx, `SELECT total_points FROM users WHERE id = $1`, userID).Scan(&total)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrAccountNotFound
		}
		return 0, err
	}
	return total, nil
}

// Transactionally runs fn inside a READ COMMITTED transaction. The balance row
// lock taken by LockBalance is what serializes concurrent awards per user.
func (r *Repo) Transactionally(ctx context.Context, fn func(tx Tx) error) error {
	return pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(&pgTx{tx: tx})
	})
}

// ListByUser returns the newest disposals first.
func (r *Repo) ListByUser(ctx context.Context, userID string, limit int) ([]Record, error) {
	q := `
		SELECT id::text, user_id::text, site_id, material_id, category, points_awarded,
		       mass_kg, unit_count, status, created_at
		FROM disposals
		WHERE user_id = $1
		ORDER BY created_at DESC, id`
	args := []any{userID}
	if limit > 0 {
		q += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *Repo) CountByUser(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM disposals WHERE user_id = $1`, userID).Scan(&n)
	return n, err
}

type pgTx struct{ tx pgx.Tx }

func (t *pgTx) LockBalance(ctx context.Context, userID string) (int64, error) {
	var total int64
	err := t.tx.QueryRow(ctx, `SELECT total_points FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&total)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrAccountNotFound
		}
		return 0, fmt.Errorf("lock balance: %w", err)
	}
	return total, nil
}

func (t *pgTx) Find(ctx context.Context, id string) (*Record, error) {
	row := t.tx.QueryRow(ctx, `
		SELECT id::text, user_id::text, site_id, material_id, category, points_awarded,
		       mass_kg, unit_count, status, created_at
		FROM disposals
		WHERE id = $1
	`, id)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find disposal: %w", err)
	}
	return &rec, nil
}

func (t *pgTx) Insert(ctx context.Context, rec Record) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO disposals
		(id, user_id, site_id, material_id, category, points_awarded, mass_kg, unit_count, status, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, rec.ID, rec.UserID, rec.SiteID, rec.MaterialID, rec.Category, rec.PointsAwarded,
		rec.Mass, rec.Count, string(rec.Status), rec.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicate
		}
		return fmt.Errorf("insert disposal: %w", err)
	}
	return nil
}

func (t *pgTx) SetBalance(ctx context.Context, userID string, balance int64) error {
	tag, err := t.tx.Exec(ctx, `UPDATE users SET total_points = $2, updated_at = now() WHERE id = $1`, userID, balance)
	if err != nil {
		return fmt.Errorf("set balance: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return ErrAccountNotFound
	}
	return nil
}

func scanRecord(row pgx.Row) (Record, error) {
	var (
		rec    Record
		status string
	)
	if err := row.Scan(
		&rec.ID,
		&rec.UserID,
		&rec.SiteID,
		&rec.MaterialID,
		&rec.Category,
		&rec.PointsAwarded,
		&rec.Mass,
		&rec.Count,
		&status,
		&rec.CreatedAt,
	); err != nil {
		return Record{}, err
	}
	rec.Status = Status(status)
	return rec, nil
}
