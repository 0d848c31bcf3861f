package users

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo { return &Repo{pool: pool} }

const selectUser = `
	SELECT id::text, telegram_id, COALESCE(username, ''), COALESCE(first_name, ''), COALESCE(last_name, ''),
	       total_points, created_at, updated_at
	FROM users`

// GetByTelegramID returns nil when the Telegram account has no user yet.
func (r *Repo) GetByTelegramID(ctx context.Context, tgID int64) (*User, error) {
	return r.getOne(ctx, selectUser+` WHERE telegram_id = $1`, tgID)
}

func (r *Repo) GetByID(ctx context.Context, id string) (*User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	return r.getOne(ctx, selectUser+` WHERE id = $1`, id)
}

// UpsertFromTelegram creates the user on first contact and refreshes the
// profile afterwards. The point balance is never touched here.
func (r *Repo) UpsertFromTelegram(ctx context.Context, tg Telegram) (*User, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO users (id, telegram_id, username, first_name, last_name)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (telegram_id)
		DO UPDATE SET
			username   = EXCLUDED.username,
			first_name = EXCLUDED.first_name,
			last_name  = EXCLUDED.last_name,
			updated_at = now()
		RETURNING id::text, telegram_id, COALESCE(username, ''), COALESCE(first_name, ''), COALESCE(last_name, ''),
		          total_points, created_at, updated_at
	`, uuid.NewString(), tg.ID, tg.Username, tg.FirstName, tg.LastName)

	u, err := scanUser(row)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *Repo) getOne(ctx context.Context, q string, arg any) (*User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, q, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.TelegramID, &u.Username, &u.FirstName, &u.LastName, &u.TotalPoints, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}
