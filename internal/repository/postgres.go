package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AminElhag/Liyaqa-sub035/internal/domain"
	"github.com/AminElhag/Liyaqa-sub035/internal/tenant"
)

// Compile-time interface assertions.
var (
	_ UserRepository         = (*PostgresUserRepo)(nil)
	_ PermissionRepository   = (*PostgresPermissionRepo)(nil)
	_ RefreshTokenRepository = (*PostgresRefreshTokenRepo)(nil)
	_ RateLimitRepository    = (*PostgresRateLimitRepo)(nil)
)

// PostgresUserRepo implements UserRepository over pgx. Every query is scoped
// to the tenant on the context.
type PostgresUserRepo struct {
	db *pgxpool.Pool
}

func NewPostgresUserRepo(db *pgxpool.Pool) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

const selectUserColumns = `id, tenant_id, email, password_hash, display_name, role, status,
failed_login_attempts, locked_until, last_login_at, created_at, updated_at`

func (r *PostgresUserRepo) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	tenantID, err := tenant.MustFromContext(ctx)
	if err != nil {
		return domain.User{}, fmt.Errorf("get user by email: %w", err)
	}
	query := `SELECT ` + selectUserColumns + ` FROM users WHERE tenant_id = $1 AND email = $2`
	user, err := scanUser(r.db.QueryRow(ctx, query, tenantID, email))
	if err != nil {
		return domain.User{}, fmt.Errorf("get user by email: %w", mapErr(err))
	}
	return user, nil
}

func (r *PostgresUserRepo) GetByID(ctx context.Context, userID uuid.UUID) (domain.User, error) {
	tenantID, err := tenant.MustFromContext(ctx)
	if err != nil {
		return domain.User{}, fmt.Errorf("get user by id: %w", err)
	}
	query := `SELECT ` + selectUserColumns + ` FROM users WHERE tenant_id = $1 AND id = $2`
	user, err := scanUser(r.db.QueryRow(ctx, query, tenantID, userID))
	if err != nil {
		return domain.User{}, fmt.Errorf("get user by id: %w", mapErr(err))
	}
	return user, nil
}

func (r *PostgresUserRepo) Create(ctx context.Context, user domain.User) (domain.User, error) {
	query := `INSERT INTO users (id, tenant_id, email, password_hash, display_name, role, status)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + selectUserColumns
	created, err := scanUser(r.db.QueryRow(ctx, query,
		user.ID, user.TenantID, user.Email, user.PasswordHash, user.DisplayName, user.Role, user.Status))
	if err != nil {
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	return created, nil
}

func (r *PostgresUserRepo) Update(ctx context.Context, user domain.User) error {
	query := `UPDATE users
SET email = $3, password_hash = $4, display_name = $5, role = $6, status = $7,
    failed_login_attempts = $8, locked_until = $9, last_login_at = $10, updated_at = now()
WHERE tenant_id = $1 AND id = $2`
	tag, err := r.db.Exec(ctx, query,
		user.TenantID, user.ID, user.Email, user.PasswordHash, user.DisplayName,
		user.Role, user.Status, user.FailedLoginAttempts, user.LockedUntil, user.LastLoginAt)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update user: %w", ErrNotFound)
	}
	return nil
}

func scanUser(row pgx.Row) (domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.TenantID, &u.Email, &u.PasswordHash, &u.DisplayName,
		&u.Role, &u.Status, &u.FailedLoginAttempts, &u.LockedUntil, &u.LastLoginAt,
		&u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// PostgresPermissionRepo implements PermissionRepository.
type PostgresPermissionRepo struct {
	db *pgxpool.Pool
}

func NewPostgresPermissionRepo(db *pgxpool.Pool) *PostgresPermissionRepo {
	return &PostgresPermissionRepo{db: db}
}

func (r *PostgresPermissionRepo) ListAll(ctx context.Context) ([]domain.Permission, error) {
	rows, err := r.db.Query(ctx, `SELECT id, code, module, description, created_at FROM permissions ORDER BY module, code`)
	if err != nil {
		return nil, fmt.Errorf("list permissions: %w", err)
	}
	defer rows.Close()

	var permissions []domain.Permission
	for rows.Next() {
		var p domain.Permission
		if err := rows.Scan(&p.ID, &p.Code, &p.Module, &p.Description, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan permission: %w", err)
		}
		permissions = append(permissions, p)
	}
	return permissions, rows.Err()
}

func (r *PostgresPermissionRepo) GetByCode(ctx context.Context, code string) (domain.Permission, error) {
	var p domain.Permission
	err := r.db.QueryRow(ctx,
		`SELECT id, code, module, description, created_at FROM permissions WHERE code = $1`, code).
		Scan(&p.ID, &p.Code, &p.Module, &p.Description, &p.CreatedAt)
	if err != nil {
		return domain.Permission{}, fmt.Errorf("get permission: %w", mapErr(err))
	}
	return p, nil
}

func (r *PostgresPermissionRepo) ListCodesForRole(ctx context.Context, role domain.Role) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT p.code
FROM role_default_permissions rdp
JOIN permissions p ON p.id = rdp.permission_id
WHERE rdp.role = $1`, role)
	if err != nil {
		return nil, fmt.Errorf("list role defaults: %w", err)
	}
	defer rows.Close()
	return scanCodes(rows)
}

func (r *PostgresPermissionRepo) ListCodesForUser(ctx context.Context, userID uuid.UUID) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT p.code
FROM user_permissions up
JOIN permissions p ON p.id = up.permission_id
WHERE up.user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("list user grants: %w", err)
	}
	defer rows.Close()
	return scanCodes(rows)
}

func (r *PostgresPermissionRepo) GrantToUser(ctx context.Context, grant domain.UserPermission) error {
	_, err := r.db.Exec(ctx, `INSERT INTO user_permissions (user_id, permission_id, granted_by)
VALUES ($1, $2, $3)
ON CONFLICT (user_id, permission_id) DO NOTHING`,
		grant.UserID, grant.PermissionID, grant.GrantedBy)
	if err != nil {
		return fmt.Errorf("grant permission: %w", err)
	}
	return nil
}

func (r *PostgresPermissionRepo) RevokeFromUser(ctx context.Context, userID, permissionID uuid.UUID) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM user_permissions WHERE user_id = $1 AND permission_id = $2`, userID, permissionID)
	if err != nil {
		return fmt.Errorf("revoke permission: %w", err)
	}
	return nil
}

func scanCodes(rows pgx.Rows) ([]string, error) {
	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("scan code: %w", err)
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}

// PostgresRefreshTokenRepo implements RefreshTokenRepository.
type PostgresRefreshTokenRepo struct {
	db   *pgxpool.Pool
	node *snowflake.Node
}

func NewPostgresRefreshTokenRepo(db *pgxpool.Pool, node *snowflake.Node) *PostgresRefreshTokenRepo {
	return &PostgresRefreshTokenRepo{db: db, node: node}
}

const selectRefreshColumns = `id, user_id, tenant_id, token_hash, device_info, expires_at, created_at`

func (r *PostgresRefreshTokenRepo) Save(ctx context.Context, token domain.RefreshToken) error {
	if token.ID == 0 {
		token.ID = r.node.Generate().Int64()
	}
	_, err := r.db.Exec(ctx, `INSERT INTO refresh_tokens (id, user_id, tenant_id, token_hash, device_info, expires_at)
VALUES ($1, $2, $3, $4, $5, $6)`,
		token.ID, token.UserID, token.TenantID, token.TokenHash, token.DeviceInfo, token.ExpiresAt)
	if err != nil {
		return fmt.Errorf("save refresh token: %w", err)
	}
	return nil
}

func (r *PostgresRefreshTokenRepo) FindActiveByHash(ctx context.Context, hash string) (domain.RefreshToken, error) {
	query := `SELECT ` + selectRefreshColumns + ` FROM refresh_tokens WHERE token_hash = $1 AND expires_at > now()`
	token, err := scanRefreshToken(r.db.QueryRow(ctx, query, hash))
	if err != nil {
		return domain.RefreshToken{}, fmt.Errorf("find refresh token: %w", mapErr(err))
	}
	return token, nil
}

// Consume deletes the row and returns it in one statement. Under concurrent
// refreshes with the same token exactly one caller gets the row; the rest see
// ErrNotFound.
func (r *PostgresRefreshTokenRepo) Consume(ctx context.Context, hash string) (domain.RefreshToken, error) {
	query := `DELETE FROM refresh_tokens WHERE token_hash = $1 AND expires_at > now()
RETURNING ` + selectRefreshColumns
	token, err := scanRefreshToken(r.db.QueryRow(ctx, query, hash))
	if err != nil {
		return domain.RefreshToken{}, fmt.Errorf("consume refresh token: %w", mapErr(err))
	}
	return token, nil
}

func (r *PostgresRefreshTokenRepo) Revoke(ctx context.Context, hash string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM refresh_tokens WHERE token_hash = $1`, hash); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

func (r *PostgresRefreshTokenRepo) RevokeAllByUser(ctx context.Context, userID uuid.UUID) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM refresh_tokens WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("revoke user refresh tokens: %w", err)
	}
	return nil
}

func (r *PostgresRefreshTokenRepo) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM refresh_tokens WHERE expires_at <= $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete expired refresh tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanRefreshToken(row pgx.Row) (domain.RefreshToken, error) {
	var t domain.RefreshToken
	err := row.Scan(&t.ID, &t.UserID, &t.TenantID, &t.TokenHash, &t.DeviceInfo, &t.ExpiresAt, &t.CreatedAt)
	return t, err
}

// PostgresRateLimitRepo implements RateLimitRepository.
type PostgresRateLimitRepo struct {
	db   *pgxpool.Pool
	node *snowflake.Node
}

func NewPostgresRateLimitRepo(db *pgxpool.Pool, node *snowflake.Node) *PostgresRateLimitRepo {
	return &PostgresRateLimitRepo{db: db, node: node}
}

// CheckAndIncrement performs the counting in one upsert: the first hit of a
// window inserts count=1, later hits increment only while below the limit.
// When the conditional update fires nothing back, the request is over budget.
func (r *PostgresRateLimitRepo) CheckAndIncrement(ctx context.Context, clientKey, tier string, windowStart time.Time, limit int) (int, bool, error) {
	query := `INSERT INTO rate_limits (id, client_key, tier, window_start, request_count)
VALUES ($1, $2, $3, $4, 1)
ON CONFLICT (client_key, tier, window_start) DO UPDATE
SET request_count = rate_limits.request_count + 1
WHERE rate_limits.request_count < $5
RETURNING request_count`

	var count int
	err := r.db.QueryRow(ctx, query, r.node.Generate().Int64(), clientKey, tier, windowStart, limit).Scan(&count)
	if err == nil {
		return count, count <= limit, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, false, fmt.Errorf("rate limit increment: %w", err)
	}

	// Denied: read the standing count for response headers.
	err = r.db.QueryRow(ctx,
		`SELECT request_count FROM rate_limits WHERE client_key = $1 AND tier = $2 AND window_start = $3`,
		clientKey, tier, windowStart).Scan(&count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return limit, false, nil
		}
		return 0, false, fmt.Errorf("rate limit read: %w", err)
	}
	return count, false, nil
}

func (r *PostgresRateLimitRepo) DeleteWindowsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM rate_limits WHERE window_start < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete stale rate limit windows: %w", err)
	}
	return tag.RowsAffected(), nil
}

func mapErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
