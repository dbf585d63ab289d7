package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/darigo/apiserver/types"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

const userColumns = `id, name, email, phone, role, password_hash, is_active, is_verified,
	agency_info, profile_image, location, last_login_at, created_at, updated_at`

// UserRepository handles persistence for users.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func scanUser(row rowScanner) (types.User, error) {
	var (
		user                types.User
		agencyJSON, locJSON []byte
		lastLogin           sql.NullTime
	)
	if err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.Phone,
		&user.Role,
		&user.PasswordHash,
		&user.IsActive,
		&user.IsVerified,
		&agencyJSON,
		&user.ProfileImage,
		&locJSON,
		&lastLogin,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return types.User{}, err
	}

	agency, err := decodeOptionalJSON[types.AgencyInfo](agencyJSON)
	if err != nil {
		return types.User{}, fmt.Errorf("decode agency info: %w", err)
	}
	location, err := decodeOptionalJSON[types.UserLocation](locJSON)
	if err != nil {
		return types.User{}, fmt.Errorf("decode location: %w", err)
	}
	user.AgencyInfo = agency
	user.Location = location
	if lastLogin.Valid {
		at := lastLogin.Time
		user.LastLoginAt = &at
	}
	return user, nil
}

func (r *UserRepository) queryOne(ctx context.Context, query string, args ...any) (types.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	return user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (types.User, error) {
	if !validID(id) {
		return types.User{}, ErrNotFound
	}
	return r.queryOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *UserRepository) GetByIDs(ctx context.Context, ids []string) (map[string]types.User, error) {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if validID(id) {
			valid = append(valid, id)
		}
	}
	out := make(map[string]types.User, len(valid))
	if len(valid) == 0 {
		return out, nil
	}

	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ANY($1::uuid[])`, pq.Array(valid))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out[user.ID] = user
	}
	return out, rows.Err()
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	return r.queryOne(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = $1`, types.NormalizeEmail(email))
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	now := time.Now().UTC()
	user.ID = uuid.NewString()
	user.Email = types.NormalizeEmail(user.Email)
	user.CreatedAt = now
	user.UpdatedAt = now

	agencyJSON, err := nullableJSON(user.AgencyInfo)
	if err != nil {
		return types.User{}, err
	}
	locJSON, err := nullableJSON(user.Location)
	if err != nil {
		return types.User{}, err
	}

	const query = `
		INSERT INTO users (id, name, email, phone, role, password_hash, is_active, is_verified,
			agency_info, profile_image, location, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::jsonb, $10, $11::jsonb, $12, $13)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		user.ID,
		user.Name,
		user.Email,
		user.Phone,
		user.Role,
		user.PasswordHash,
		user.IsActive,
		user.IsVerified,
		agencyJSON,
		user.ProfileImage,
		locJSON,
		user.CreatedAt,
		user.UpdatedAt,
	); err != nil {
		return types.User{}, mapWriteErr(err)
	}
	return user, nil
}

func (r *UserRepository) UpdateProfile(ctx context.Context, id string, update types.ProfileUpdate) (types.User, error) {
	if !validID(id) {
		return types.User{}, ErrNotFound
	}
	agencyJSON, err := nullableJSON(update.AgencyInfo)
	if err != nil {
		return types.User{}, err
	}
	locJSON, err := nullableJSON(update.Location)
	if err != nil {
		return types.User{}, err
	}

	query := `
		UPDATE users
		SET name = COALESCE($2, name),
			phone = COALESCE($3, phone),
			profile_image = COALESCE($4, profile_image),
			location = COALESCE($5::jsonb, location),
			agency_info = COALESCE($6::jsonb, agency_info),
			password_hash = COALESCE($7, password_hash),
			updated_at = $8
		WHERE id = $1
		RETURNING ` + userColumns
	return r.queryOne(
		ctx,
		query,
		id,
		nullable(update.Name),
		nullable(update.Phone),
		nullable(update.ProfileImage),
		locJSON,
		agencyJSON,
		nullable(update.PasswordHash),
		time.Now().UTC(),
	)
}

func (r *UserRepository) SetRole(ctx context.Context, id string, role types.Role) (types.User, error) {
	if !validID(id) {
		return types.User{}, ErrNotFound
	}
	query := `
		UPDATE users
		SET role = $2, is_active = TRUE, updated_at = $3
		WHERE id = $1
		RETURNING ` + userColumns
	return r.queryOne(ctx, query, id, role, time.Now().UTC())
}

func (r *UserRepository) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	if !validID(id) {
		return ErrNotFound
	}
	result, err := r.db.ExecContext(ctx, `UPDATE users SET last_login_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return err
	}
	return expectAffected(result)
}

// ToggleActive flips is_active in place so concurrent toggles never lose an
// update.
func (r *UserRepository) ToggleActive(ctx context.Context, id string) (types.User, error) {
	if !validID(id) {
		return types.User{}, ErrNotFound
	}
	query := `
		UPDATE users
		SET is_active = NOT is_active, updated_at = $2
		WHERE id = $1
		RETURNING ` + userColumns
	return r.queryOne(ctx, query, id, time.Now().UTC())
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return ErrNotFound
	}
	result, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectAffected(result)
}

func (r *UserRepository) Search(ctx context.Context, filter types.UserFilter, offset, limit int) ([]types.User, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 20
	}

	var (
		conds []string
		args  []any
	)
	if filter.ActiveOnly {
		conds = append(conds, "is_active")
	}
	if filter.Role != "" {
		args = append(args, filter.Role)
		conds = append(conds, fmt.Sprintf("role = $%d", len(args)))
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		args = append(args, "%"+escapeLike(q)+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf("(name ILIKE $%d OR email ILIKE $%d OR agency_info->>'agencyName' ILIKE $%d)", n, n, n))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM users`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, offset, limit)
	listQuery := fmt.Sprintf(`SELECT %s FROM users%s ORDER BY created_at DESC, id OFFSET $%d LIMIT $%d`,
		userColumns, where, len(args)-1, len(args))
	rows, err := r.db.QueryContext(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	users := make([]types.User, 0, limit)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (r *UserRepository) Counts(ctx context.Context) (types.UserCounts, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT role, is_active, COUNT(1) FROM users GROUP BY role, is_active`)
	if err != nil {
		return types.UserCounts{}, err
	}
	defer rows.Close()

	counts := types.UserCounts{ByRole: make(map[types.Role]int)}
	for rows.Next() {
		var (
			role   types.Role
			active bool
			n      int
		)
		if err := rows.Scan(&role, &active, &n); err != nil {
			return types.UserCounts{}, err
		}
		counts.Total += n
		counts.ByRole[role] += n
		if active {
			counts.Active += n
		} else {
			counts.Inactive += n
		}
	}
	return counts, rows.Err()
}

func expectAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
