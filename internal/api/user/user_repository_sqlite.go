package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	database "github.com/FACorreiaa/go-user-identity/app/db"
	"github.com/FACorreiaa/go-user-identity/internal/types"
)

var _ UserRepo = (*SQLiteUserRepo)(nil)

const sqliteSelectUser = `SELECT id, username, password_hash, refresh_token, created_at, updated_at FROM users`

// SQLiteUserRepo stores users in a SQLite database file. Uniqueness of id and
// username is enforced by the table constraints.
type SQLiteUserRepo struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenSQLiteUserRepo opens (creating if needed) the database at path and
// brings it to the latest migration. ":memory:" gives a private in-memory database.
func OpenSQLiteUserRepo(path string, logger *slog.Logger) (*SQLiteUserRepo, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	dsn := ":memory:"
	if path != ":memory:" {
		dsn = filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// A single connection serializes writers and keeps ":memory:" databases alive.
	db.SetMaxOpenConns(1)

	if err := database.RunSQLiteMigrations(db, logger); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate sqlite db: %w", err)
	}
	return &SQLiteUserRepo{db: db, logger: logger}, nil
}

func (r *SQLiteUserRepo) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}

func isSQLiteUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return false
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteUser(row rowScanner) (*types.User, error) {
	var (
		u                types.User
		id               string
		refresh          sql.NullString
		created, updated int64
	)
	if err := row.Scan(&id, &u.Username, &u.PasswordHash, &refresh, &created, &updated); err != nil {
		return nil, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("corrupt user id %q: %w", id, err)
	}
	u.ID = parsed
	if refresh.Valid {
		u.RefreshToken = &refresh.String
	}
	u.CreatedAt = fromMillis(created)
	u.UpdatedAt = fromMillis(updated)
	return &u, nil
}

func (r *SQLiteUserRepo) findOne(ctx context.Context, where string, arg any) (*types.User, error) {
	u, err := scanSQLiteUser(r.db.QueryRowContext(ctx, sqliteSelectUser+" WHERE "+where, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, types.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Failed to query user", slog.Any("error", err))
		return nil, fmt.Errorf("sqlite error fetching user: %w", err)
	}
	return u, nil
}

func (r *SQLiteUserRepo) FindByID(ctx context.Context, id uuid.UUID) (*types.User, error) {
	return r.findOne(ctx, "id = ?", id.String())
}

func (r *SQLiteUserRepo) FindByUsername(ctx context.Context, username string) (*types.User, error) {
	return r.findOne(ctx, "username = ?", username)
}

func (r *SQLiteUserRepo) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM users WHERE username = ?)", username).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("sqlite error checking username: %w", err)
	}
	return exists, nil
}

func nullable(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func (r *SQLiteUserRepo) Insert(ctx context.Context, user *types.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, username, password_hash, refresh_token, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		user.ID.String(), user.Username, user.PasswordHash, nullable(user.RefreshToken),
		toMillis(user.CreatedAt), toMillis(user.UpdatedAt))
	if err != nil {
		if isSQLiteUniqueViolation(err) {
			return fmt.Errorf("user %q already exists: %w", user.Username, types.ErrConflict)
		}
		r.logger.ErrorContext(ctx, "Failed to insert user", slog.Any("error", err))
		return fmt.Errorf("sqlite error creating user: %w", err)
	}
	return nil
}

func (r *SQLiteUserRepo) Update(ctx context.Context, user *types.User) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET username = ?, password_hash = ?, refresh_token = ?, updated_at = ? WHERE id = ?`,
		user.Username, user.PasswordHash, nullable(user.RefreshToken), toMillis(user.UpdatedAt), user.ID.String())
	if err != nil {
		if isSQLiteUniqueViolation(err) {
			return fmt.Errorf("username %q is taken: %w", user.Username, types.ErrConflict)
		}
		r.logger.ErrorContext(ctx, "Failed to update user", slog.Any("error", err))
		return fmt.Errorf("sqlite error updating user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite error reading affected rows: %w", err)
	}
	if n == 0 {
		return types.ErrNotFound
	}
	return nil
}

func (r *SQLiteUserRepo) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id.String())
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to delete user", slog.Any("error", err))
		return fmt.Errorf("sqlite error deleting user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite error reading affected rows: %w", err)
	}
	if n == 0 {
		return types.ErrNotFound
	}
	return nil
}

func (r *SQLiteUserRepo) ListAll(ctx context.Context) ([]types.User, error) {
	rows, err := r.db.QueryContext(ctx, sqliteSelectUser+" ORDER BY seq")
	if err != nil {
		return nil, fmt.Errorf("sqlite error listing users: %w", err)
	}
	defer rows.Close()

	users := []types.User{}
	for rows.Next() {
		u, err := scanSQLiteUser(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite error scanning user row: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite error iterating users: %w", err)
	}
	return users, nil
}
