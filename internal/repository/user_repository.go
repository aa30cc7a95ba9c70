package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/study-room-booking/internal/apperror"
	"github.com/iliyamo/study-room-booking/internal/model"
	"github.com/iliyamo/study-room-booking/internal/utils"
)

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// ErrEmailExists is returned by Create for an email already registered.
var ErrEmailExists = apperror.Conflict("email already exists")

const userColumns = `id, email, password_hash, role, status, created_at, approved_at, rejected_at, auto_cancelled`

func scanUser(row interface{ Scan(...any) error }) (model.User, error) {
	var (
		u                      model.User
		role, status           string
		approvedAt, rejectedAt sql.NullTime
	)
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &role, &status, &u.CreatedAt, &approvedAt, &rejectedAt, &u.AutoCancelled); err != nil {
		return model.User{}, err
	}
	u.Role = model.Role(role)
	u.Status = model.AccountStatus(status)
	u.ApprovedAt = nullTime(approvedAt)
	u.RejectedAt = nullTime(rejectedAt)
	return u, nil
}

// Create hashes password and inserts the account, returning its ID.
func (r *UserRepo) Create(ctx context.Context, email, password string, role model.Role, status model.AccountStatus, cost int) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	res, err := conn(ctx, r.DB).ExecContext(ctx,
		"INSERT INTO users (email, password_hash, role, status) VALUES (?,?,?,?)",
		email, hash, string(role), string(status))
	if err != nil {
		if isDuplicate(err) {
			return 0, ErrEmailExists
		}
		return 0, apperror.StoreWrite("create user", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, apperror.StoreWrite("create user", err)
	}
	return uint64(id), nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := scanUser(conn(ctx, r.DB).QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email))
	if err != nil {
		return model.User{}, readErr("get user", "user not found", err)
	}
	return u, nil
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	u, err := scanUser(conn(ctx, r.DB).QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
	if err != nil {
		return model.User{}, readErr("get user", "user not found", err)
	}
	return u, nil
}

// Query lists accounts matching f, oldest first.
func (r *UserRepo) Query(ctx context.Context, f model.UserFilter) ([]model.User, error) {
	q := "SELECT " + userColumns + " FROM users"
	var (
		where []string
		args  []any
	)
	if f.Role != "" {
		where = append(where, "role = ?")
		args = append(args, string(f.Role))
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at ASC, id ASC"

	rows, err := conn(ctx, r.DB).QueryContext(ctx, q, args...)
	if err != nil {
		return nil, apperror.StoreRead("query users", err)
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, apperror.StoreRead("scan user", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.StoreRead("query users", err)
	}
	return users, nil
}

// BatchUpdate applies every account patch in one transaction.  Missing
// rows are skipped.
func (r *UserRepo) BatchUpdate(ctx context.Context, patches []model.UserPatch) error {
	pending := make([]model.UserPatch, 0, len(patches))
	for _, p := range patches {
		if !p.Empty() {
			pending = append(pending, p)
		}
	}
	if len(pending) == 0 {
		return nil
	}
	return withTx(ctx, r.DB, func(ctx context.Context) error {
		for _, p := range pending {
			var (
				sets []string
				args []any
			)
			if p.Status != nil {
				sets = append(sets, "status = ?")
				args = append(args, string(*p.Status))
			}
			if p.ApprovedAt != nil {
				sets = append(sets, "approved_at = ?")
				args = append(args, p.ApprovedAt.UTC())
			}
			if p.RejectedAt != nil {
				sets = append(sets, "rejected_at = ?")
				args = append(args, p.RejectedAt.UTC())
			}
			if p.AutoCancelled != nil {
				sets = append(sets, "auto_cancelled = ?")
				args = append(args, *p.AutoCancelled)
			}
			args = append(args, p.ID)
			q := "UPDATE users SET " + strings.Join(sets, ", ") + " WHERE id = ?"
			if _, err := conn(ctx, r.DB).ExecContext(ctx, q, args...); err != nil {
				return apperror.StoreWrite("update user", err)
			}
		}
		return nil
	})
}

// WithTx runs fn in a transaction shared through the context.
func (r *UserRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.DB, fn)
}
