package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Guiziweb/VideoAiStudio/internal/model"
)

var ErrAccountNotFound = errors.New("account not found")

func (r *Repository) GetAccount(ctx context.Context, id int64) (*model.Account, error) {
	var account model.Account
	err := r.db.GetContext(ctx, &account, "SELECT * FROM accounts WHERE id = $1", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// UpsertAccount creates the account or refreshes its profile fields. It
// reports whether the row was newly inserted.
func (r *Repository) UpsertAccount(ctx context.Context, account *model.Account) (bool, error) {
	query := `
		INSERT INTO accounts (id, username, first_name, last_name, language_code)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			username = EXCLUDED.username,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			language_code = EXCLUDED.language_code,
			updated_at = NOW()
		RETURNING created_at, updated_at, (xmax = 0) AS inserted`

	var inserted bool
	err := r.db.QueryRowContext(ctx, query,
		account.ID,
		account.Username,
		account.FirstName,
		account.LastName,
		account.LanguageCode,
	).Scan(&account.CreatedAt, &account.UpdatedAt, &inserted)
	return inserted, err
}
