package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/go-user-identity/app/observability/metrics"
	"github.com/FACorreiaa/go-user-identity/internal/types"
)

var _ UserRepo = (*PostgresUserRepo)(nil)

// UserRepo defines the contract for user data persistence.
// Every call is atomic for the single record it touches.
type UserRepo interface {
	// FindByID returns types.ErrNotFound when no user has the id.
	FindByID(ctx context.Context, id uuid.UUID) (*types.User, error)
	// FindByUsername matches the username exactly (case-sensitive).
	// Returns types.ErrNotFound when nobody has it.
	FindByUsername(ctx context.Context, username string) (*types.User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	// Insert stores a new user. A duplicate id or username returns
	// types.ErrConflict; this is the authoritative uniqueness check.
	Insert(ctx context.Context, user *types.User) error
	// Update overwrites the mutable fields of an existing user.
	// Returns types.ErrNotFound or types.ErrConflict (username taken).
	Update(ctx context.Context, user *types.User) error
	Delete(ctx context.Context, id uuid.UUID) error
	// ListAll returns every user in insertion order.
	ListAll(ctx context.Context) ([]types.User, error)
}

// DBTX is the subset of pgxpool.Pool the repository needs. pgxmock pools satisfy it too.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	pgUniqueViolation = "23505"

	selectUserColumns = `SELECT id, username, password_hash, refresh_token, created_at, updated_at FROM users`
)

type PostgresUserRepo struct {
	logger *slog.Logger
	pgpool DBTX
}

func NewPostgresUserRepo(pgpool DBTX, logger *slog.Logger) *PostgresUserRepo {
	return &PostgresUserRepo{
		logger: logger,
		pgpool: pgpool,
	}
}

func (r *PostgresUserRepo) startSpan(ctx context.Context, name, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs,
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", operation),
		attribute.String("db.sql.table", "users"),
	)
	return otel.Tracer("UserRepo").Start(ctx, name, trace.WithAttributes(attrs...))
}

// observe records query latency, and counts errors other than the expected
// not-found and conflict outcomes.
func observe(ctx context.Context, op string, start time.Time, err error) {
	m := metrics.Get()
	attrs := metric.WithAttributes(attribute.String("db.operation", op), attribute.String("db.sql.table", "users"))
	m.DbQueryDurationSeconds.Record(ctx, time.Since(start).Seconds(), attrs)
	if err != nil && !errors.Is(err, types.ErrNotFound) && !errors.Is(err, types.ErrConflict) {
		m.DbQueryErrorsTotal.Add(ctx, 1, attrs)
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func scanUser(row pgx.Row) (*types.User, error) {
	var u types.User
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.RefreshToken, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *PostgresUserRepo) findOne(ctx context.Context, spanName, where string, arg any) (u *types.User, err error) {
	ctx, span := r.startSpan(ctx, spanName, "SELECT")
	defer span.End()
	defer func(start time.Time) { observe(ctx, "SELECT", start, err) }(time.Now())

	u, err = scanUser(r.pgpool.QueryRow(ctx, selectUserColumns+" WHERE "+where, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "User not found")
			return nil, types.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Failed to query user", slog.String("method", spanName), slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB SELECT failed")
		return nil, fmt.Errorf("database error fetching user: %w", err)
	}
	span.SetStatus(codes.Ok, "User found")
	return u, nil
}

// FindByID implements UserRepo.
func (r *PostgresUserRepo) FindByID(ctx context.Context, id uuid.UUID) (*types.User, error) {
	return r.findOne(ctx, "FindByID", "id = $1", id)
}

// FindByUsername implements UserRepo.
func (r *PostgresUserRepo) FindByUsername(ctx context.Context, username string) (*types.User, error) {
	return r.findOne(ctx, "FindByUsername", "username = $1", username)
}

// ExistsByUsername implements UserRepo.
func (r *PostgresUserRepo) ExistsByUsername(ctx context.Context, username string) (exists bool, err error) {
	ctx, span := r.startSpan(ctx, "ExistsByUsername", "SELECT")
	defer span.End()
	defer func(start time.Time) { observe(ctx, "SELECT", start, err) }(time.Now())

	err = r.pgpool.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)", username).Scan(&exists)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to check username", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB SELECT failed")
		return false, fmt.Errorf("database error checking username: %w", err)
	}
	return exists, nil
}

// Insert implements UserRepo.
func (r *PostgresUserRepo) Insert(ctx context.Context, user *types.User) (err error) {
	ctx, span := r.startSpan(ctx, "Insert", "INSERT", attribute.String("db.user.id", user.ID.String()))
	defer span.End()
	defer func(start time.Time) { observe(ctx, "INSERT", start, err) }(time.Now())

	_, err = r.pgpool.Exec(ctx,
		`INSERT INTO users (id, username, password_hash, refresh_token, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		user.ID, user.Username, user.PasswordHash, user.RefreshToken, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			r.logger.WarnContext(ctx, "Attempted to insert duplicate user", slog.String("userID", user.ID.String()))
			span.SetStatus(codes.Error, "Duplicate user")
			return fmt.Errorf("user %q already exists: %w", user.Username, types.ErrConflict)
		}
		r.logger.ErrorContext(ctx, "Failed to insert user", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB INSERT failed")
		return fmt.Errorf("database error creating user: %w", err)
	}
	span.SetStatus(codes.Ok, "User created")
	return nil
}

// Update implements UserRepo.
func (r *PostgresUserRepo) Update(ctx context.Context, user *types.User) (err error) {
	ctx, span := r.startSpan(ctx, "Update", "UPDATE", attribute.String("db.user.id", user.ID.String()))
	defer span.End()
	defer func(start time.Time) { observe(ctx, "UPDATE", start, err) }(time.Now())

	tag, err := r.pgpool.Exec(ctx,
		`UPDATE users SET username = $2, password_hash = $3, refresh_token = $4, updated_at = $5
		 WHERE id = $1`,
		user.ID, user.Username, user.PasswordHash, user.RefreshToken, user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			span.SetStatus(codes.Error, "Duplicate username")
			return fmt.Errorf("username %q is taken: %w", user.Username, types.ErrConflict)
		}
		r.logger.ErrorContext(ctx, "Failed to update user", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB UPDATE failed")
		return fmt.Errorf("database error updating user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		span.SetStatus(codes.Error, "User not found")
		return types.ErrNotFound
	}
	span.SetStatus(codes.Ok, "User updated")
	return nil
}

// Delete implements UserRepo.
func (r *PostgresUserRepo) Delete(ctx context.Context, id uuid.UUID) (err error) {
	ctx, span := r.startSpan(ctx, "Delete", "DELETE", attribute.String("db.user.id", id.String()))
	defer span.End()
	defer func(start time.Time) { observe(ctx, "DELETE", start, err) }(time.Now())

	tag, err := r.pgpool.Exec(ctx, "DELETE FROM users WHERE id = $1", id)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to delete user", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB DELETE failed")
		return fmt.Errorf("database error deleting user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		span.SetStatus(codes.Error, "User not found")
		return types.ErrNotFound
	}
	span.SetStatus(codes.Ok, "User deleted")
	return nil
}

// ListAll implements UserRepo.
func (r *PostgresUserRepo) ListAll(ctx context.Context) (users []types.User, err error) {
	ctx, span := r.startSpan(ctx, "ListAll", "SELECT")
	defer span.End()
	defer func(start time.Time) { observe(ctx, "SELECT", start, err) }(time.Now())

	rows, err := r.pgpool.Query(ctx, selectUserColumns+" ORDER BY seq")
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to list users", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB SELECT failed")
		return nil, fmt.Errorf("database error listing users: %w", err)
	}
	defer rows.Close()

	users = []types.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("database error scanning user row: %w", err)
		}
		users = append(users, *u)
	}
	if err = rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Row iteration failed")
		return nil, fmt.Errorf("database error iterating users: %w", err)
	}

	span.SetAttributes(attribute.Int("db.rows_returned", len(users)))
	span.SetStatus(codes.Ok, "Users listed")
	return users, nil
}
