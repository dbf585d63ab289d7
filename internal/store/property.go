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

const propertyColumns = `id, title, description, type, category, price, area, rooms, bathrooms,
	location, features, additional_features, images, videos, owner_id, status, is_published,
	published_at, featured, views, contacts, favorites, shares, daily_rent_info, farm_info,
	reviews, average_rating, total_reviews, expiry_date, sold_at, sold_to, tags, created_at, updated_at`

// publicCondition is the visibility rule of public listings.
const publicCondition = "status = 'approved' AND is_published"

var propertySortColumns = map[string]string{
	types.SortCreatedAt: "created_at",
	types.SortPrice:     "price",
	types.SortArea:      "area",
	types.SortViews:     "views",
}

// PropertyRepository handles persistence for properties. Every write is a
// single statement; owner-scoped writes carry the owner in their WHERE
// clause.
type PropertyRepository struct {
	db *sql.DB
}

func NewPropertyRepository(db *sql.DB) *PropertyRepository {
	return &PropertyRepository{db: db}
}

func scanProperty(row rowScanner) (types.Property, error) {
	var (
		p                                types.Property
		locJSON, imagesJSON, videosJSON  []byte
		dailyJSON, farmJSON, reviewsJSON []byte
		publishedAt, expiryDate, soldAt  sql.NullTime
	)
	if err := row.Scan(
		&p.ID,
		&p.Title,
		&p.Description,
		&p.Type,
		&p.Category,
		&p.Price,
		&p.Area,
		&p.Rooms,
		&p.Bathrooms,
		&locJSON,
		pq.Array(&p.Features),
		&p.AdditionalFeatures,
		&imagesJSON,
		&videosJSON,
		&p.OwnerID,
		&p.Status,
		&p.IsPublished,
		&publishedAt,
		&p.Featured,
		&p.Stats.Views,
		&p.Stats.Contacts,
		&p.Stats.Favorites,
		&p.Stats.Shares,
		&dailyJSON,
		&farmJSON,
		&reviewsJSON,
		&p.AverageRating,
		&p.TotalReviews,
		&expiryDate,
		&soldAt,
		&p.SoldTo,
		pq.Array(&p.Tags),
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return types.Property{}, err
	}

	if err := decodeJSON(locJSON, &p.Location); err != nil {
		return types.Property{}, fmt.Errorf("decode location: %w", err)
	}
	if err := decodeJSON(imagesJSON, &p.Images); err != nil {
		return types.Property{}, fmt.Errorf("decode images: %w", err)
	}
	if err := decodeJSON(videosJSON, &p.Videos); err != nil {
		return types.Property{}, fmt.Errorf("decode videos: %w", err)
	}
	if err := decodeJSON(reviewsJSON, &p.Reviews); err != nil {
		return types.Property{}, fmt.Errorf("decode reviews: %w", err)
	}
	var err error
	if p.DailyRentInfo, err = decodeOptionalJSON[types.DailyRentInfo](dailyJSON); err != nil {
		return types.Property{}, fmt.Errorf("decode daily rent info: %w", err)
	}
	if p.FarmInfo, err = decodeOptionalJSON[types.FarmInfo](farmJSON); err != nil {
		return types.Property{}, fmt.Errorf("decode farm info: %w", err)
	}
	p.PublishedAt = nullTimePtr(publishedAt)
	p.ExpiryDate = nullTimePtr(expiryDate)
	p.SoldAt = nullTimePtr(soldAt)

	if p.Features == nil {
		p.Features = []string{}
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	if p.Images == nil {
		p.Images = []types.Media{}
	}
	if p.Videos == nil {
		p.Videos = []types.Media{}
	}
	if p.Reviews == nil {
		p.Reviews = []types.Review{}
	}
	return p, nil
}

func nullTimePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func (r *PropertyRepository) queryOne(ctx context.Context, query string, args ...any) (types.Property, error) {
	p, err := scanProperty(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Property{}, ErrNotFound
		}
		return types.Property{}, err
	}
	return p, nil
}

// whereClause renders filter as SQL conditions and their arguments.
func whereClause(filter types.PropertyFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(format string, value any) {
		args = append(args, value)
		conds = append(conds, fmt.Sprintf(format, len(args)))
	}

	if filter.PublicOnly {
		conds = append(conds, publicCondition)
	} else if filter.Status != "" {
		add("status = $%d", filter.Status)
	}
	if filter.OwnerID != "" {
		add("owner_id::text = $%d", filter.OwnerID)
	}
	if filter.Type != "" {
		add("type = $%d", filter.Type)
	}
	if filter.Category != "" {
		add("category = $%d", filter.Category)
	}
	if filter.City != "" {
		add("lower(city) = lower($%d)", filter.City)
	}
	if filter.District != "" {
		add("lower(district) = lower($%d)", filter.District)
	}
	if filter.MinPrice != nil {
		add("price >= $%d", *filter.MinPrice)
	}
	if filter.MaxPrice != nil {
		add("price <= $%d", *filter.MaxPrice)
	}
	if filter.MinArea != nil {
		add("area >= $%d", *filter.MinArea)
	}
	if filter.MaxArea != nil {
		add("area <= $%d", *filter.MaxArea)
	}
	if filter.Rooms != nil {
		add("rooms = $%d", *filter.Rooms)
	}
	if filter.Bathrooms != nil {
		add("bathrooms = $%d", *filter.Bathrooms)
	}
	if len(filter.Features) > 0 {
		add("features && $%d::text[]", pq.Array(filter.Features))
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		args = append(args, "%"+escapeLike(q)+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf("(title ILIKE $%d OR description ILIKE $%d)", n, n))
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func orderClause(sortBy string, asc bool) string {
	column, ok := propertySortColumns[sortBy]
	if !ok {
		column = "created_at"
	}
	dir := "DESC"
	if asc {
		dir = "ASC"
	}
	return fmt.Sprintf(" ORDER BY %s %s, id", column, dir)
}

func (r *PropertyRepository) List(ctx context.Context, filter types.PropertyFilter, offset, limit int) ([]types.Property, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 20
	}

	where, args := whereClause(filter)

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM properties`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, offset, limit)
	listQuery := fmt.Sprintf(`SELECT %s FROM properties%s%s OFFSET $%d LIMIT $%d`,
		propertyColumns, where, orderClause(filter.SortBy, filter.SortAsc), len(args)-1, len(args))
	rows, err := r.db.QueryContext(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	properties := make([]types.Property, 0, limit)
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, 0, err
		}
		properties = append(properties, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return properties, total, nil
}

func (r *PropertyRepository) Get(ctx context.Context, id string) (types.Property, error) {
	if !validID(id) {
		return types.Property{}, ErrNotFound
	}
	return r.queryOne(ctx, `SELECT `+propertyColumns+` FROM properties WHERE id = $1`, id)
}

func (r *PropertyRepository) Create(ctx context.Context, p types.Property) (types.Property, error) {
	if !validID(p.OwnerID) {
		return types.Property{}, ErrNotFound
	}
	p.ID = uuid.NewString()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}
	p.Owner = nil

	var params [6]any
	var err error
	for i, v := range []any{p.Location, p.Images, p.Videos, p.Reviews} {
		if params[i], err = jsonParam(v); err != nil {
			return types.Property{}, err
		}
	}
	if params[4], err = nullableJSON(p.DailyRentInfo); err != nil {
		return types.Property{}, err
	}
	if params[5], err = nullableJSON(p.FarmInfo); err != nil {
		return types.Property{}, err
	}

	const query = `
		INSERT INTO properties (id, title, description, type, category, price, area, rooms, bathrooms,
			city, district, location, features, additional_features, images, videos, owner_id, status,
			is_published, published_at, featured, daily_rent_info, farm_info, reviews, expiry_date,
			tags, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12::jsonb, $13, $14, $15::jsonb, $16::jsonb,
			$17, $18, $19, $20, $21, $22::jsonb, $23::jsonb, $24::jsonb, $25, $26, $27, $28)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		p.ID,
		p.Title,
		p.Description,
		p.Type,
		p.Category,
		p.Price,
		p.Area,
		p.Rooms,
		p.Bathrooms,
		p.Location.City,
		p.Location.District,
		params[0],
		pq.Array(nonNilStrings(p.Features)),
		p.AdditionalFeatures,
		params[1],
		params[2],
		p.OwnerID,
		p.Status,
		p.IsPublished,
		p.PublishedAt,
		p.Featured,
		params[4],
		params[5],
		params[3],
		p.ExpiryDate,
		pq.Array(nonNilStrings(p.Tags)),
		p.CreatedAt,
		p.UpdatedAt,
	); err != nil {
		return types.Property{}, mapWriteErr(err)
	}
	return p, nil
}

// UpdateOwned applies patch when ownerID owns the row. The status and
// publish columns are not part of the statement.
func (r *PropertyRepository) UpdateOwned(ctx context.Context, id, ownerID string, patch types.PropertyPatch) (types.Property, error) {
	if !validID(id) || !validID(ownerID) {
		return types.Property{}, ErrNotFound
	}
	locJSON, err := nullableJSON(patch.Location)
	if err != nil {
		return types.Property{}, err
	}
	dailyJSON, err := nullableJSON(patch.DailyRentInfo)
	if err != nil {
		return types.Property{}, err
	}
	farmJSON, err := nullableJSON(patch.FarmInfo)
	if err != nil {
		return types.Property{}, err
	}
	var city, district any
	if patch.Location != nil {
		city, district = patch.Location.City, patch.Location.District
	}

	query := `
		UPDATE properties
		SET title = COALESCE($3, title),
			description = COALESCE($4, description),
			type = COALESCE($5, type),
			category = COALESCE($6, category),
			price = COALESCE($7, price),
			area = COALESCE($8, area),
			rooms = COALESCE($9, rooms),
			bathrooms = COALESCE($10, bathrooms),
			location = COALESCE($11::jsonb, location),
			city = COALESCE($12, city),
			district = COALESCE($13, district),
			features = COALESCE($14::text[], features),
			additional_features = COALESCE($15, additional_features),
			daily_rent_info = COALESCE($16::jsonb, daily_rent_info),
			farm_info = COALESCE($17::jsonb, farm_info),
			expiry_date = COALESCE($18, expiry_date),
			tags = COALESCE($19::text[], tags),
			updated_at = $20
		WHERE id = $1 AND owner_id = $2
		RETURNING ` + propertyColumns
	return r.queryOne(
		ctx,
		query,
		id,
		ownerID,
		nullable(patch.Title),
		nullable(patch.Description),
		nullable(patch.Type),
		nullable(patch.Category),
		nullable(patch.Price),
		nullable(patch.Area),
		nullable(patch.Rooms),
		nullable(patch.Bathrooms),
		locJSON,
		city,
		district,
		nullableArray(patch.Features),
		nullable(patch.AdditionalFeatures),
		dailyJSON,
		farmJSON,
		nullable(patch.ExpiryDate),
		nullableArray(patch.Tags),
		time.Now().UTC(),
	)
}

// UpdateState writes status, publish flag and their timestamps in one
// statement. An empty ownerID matches any owner.
func (r *PropertyRepository) UpdateState(ctx context.Context, id, ownerID string, state types.PropertyState) (types.Property, error) {
	if !validID(id) || (ownerID != "" && !validID(ownerID)) {
		return types.Property{}, ErrNotFound
	}
	query := `
		UPDATE properties
		SET status = $3,
			is_published = $4,
			published_at = $5,
			sold_at = $6,
			sold_to = $7,
			updated_at = $8
		WHERE id = $1 AND ($2 = '' OR owner_id::text = $2)
		RETURNING ` + propertyColumns
	return r.queryOne(
		ctx,
		query,
		id,
		ownerID,
		state.Status,
		state.IsPublished,
		state.PublishedAt,
		state.SoldAt,
		state.SoldTo,
		state.UpdatedAt,
	)
}

func (r *PropertyRepository) DeleteOwned(ctx context.Context, id, ownerID string) (types.Property, error) {
	if !validID(id) || !validID(ownerID) {
		return types.Property{}, ErrNotFound
	}
	return r.queryOne(ctx, `DELETE FROM properties WHERE id = $1 AND owner_id = $2 RETURNING `+propertyColumns, id, ownerID)
}

func (r *PropertyRepository) Delete(ctx context.Context, id string) (types.Property, error) {
	if !validID(id) {
		return types.Property{}, ErrNotFound
	}
	return r.queryOne(ctx, `DELETE FROM properties WHERE id = $1 RETURNING `+propertyColumns, id)
}

func (r *PropertyRepository) DeleteByOwner(ctx context.Context, ownerID string) (int, error) {
	if !validID(ownerID) {
		return 0, nil
	}
	result, err := r.db.ExecContext(ctx, `DELETE FROM properties WHERE owner_id = $1`, ownerID)
	if err != nil {
		return 0, err
	}
	affected, err := result.RowsAffected()
	return int(affected), err
}

// AddReview appends review and folds its rating into the running average.
// Only publicly visible listings accept reviews.
func (r *PropertyRepository) AddReview(ctx context.Context, id string, review types.Review) (types.Property, error) {
	if !validID(id) {
		return types.Property{}, ErrNotFound
	}
	reviewJSON, err := jsonParam(review)
	if err != nil {
		return types.Property{}, err
	}
	query := `
		UPDATE properties
		SET reviews = reviews || jsonb_build_array($2::jsonb),
			average_rating = (average_rating * total_reviews + $3) / (total_reviews + 1),
			total_reviews = total_reviews + 1,
			updated_at = $4
		WHERE id = $1 AND ` + publicCondition + `
		RETURNING ` + propertyColumns
	return r.queryOne(ctx, query, id, reviewJSON, float64(review.Rating), time.Now().UTC())
}

func (r *PropertyRepository) AddMedia(ctx context.Context, id, ownerID string, kind types.MediaKind, media types.Media) (types.Property, error) {
	if !validID(id) || !validID(ownerID) {
		return types.Property{}, ErrNotFound
	}
	column := "images"
	if kind == types.MediaVideo {
		column = "videos"
	}
	mediaJSON, err := jsonParam(media)
	if err != nil {
		return types.Property{}, err
	}
	query := fmt.Sprintf(`
		UPDATE properties
		SET %[1]s = %[1]s || jsonb_build_array($3::jsonb),
			updated_at = $4
		WHERE id = $1 AND owner_id = $2
		RETURNING %[2]s`, column, propertyColumns)
	return r.queryOne(ctx, query, id, ownerID, mediaJSON, time.Now().UTC())
}

func (r *PropertyRepository) IncrementViews(ctx context.Context, id string) error {
	if !validID(id) {
		return ErrNotFound
	}
	result, err := r.db.ExecContext(ctx, `UPDATE properties SET views = views + 1 WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectAffected(result)
}

func (r *PropertyRepository) Counts(ctx context.Context, ownerID string) (types.PropertyCounts, error) {
	counts := types.PropertyCounts{ByType: make(map[types.ListingType]int)}
	if ownerID != "" && !validID(ownerID) {
		return counts, nil
	}

	const totalsQuery = `
		SELECT COUNT(1),
			COUNT(1) FILTER (WHERE ` + publicCondition + `),
			COUNT(1) FILTER (WHERE status = 'pending'),
			COUNT(1) FILTER (WHERE status = 'approved'),
			COUNT(1) FILTER (WHERE status = 'rejected'),
			COALESCE(SUM(views), 0)
		FROM properties
		WHERE $1 = '' OR owner_id::text = $1`
	if err := r.db.QueryRowContext(ctx, totalsQuery, ownerID).Scan(
		&counts.Total,
		&counts.Published,
		&counts.Pending,
		&counts.Approved,
		&counts.Rejected,
		&counts.Views,
	); err != nil {
		return types.PropertyCounts{}, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT type, COUNT(1)
		FROM properties
		WHERE $1 = '' OR owner_id::text = $1
		GROUP BY type`, ownerID)
	if err != nil {
		return types.PropertyCounts{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			listingType types.ListingType
			n           int
		)
		if err := rows.Scan(&listingType, &n); err != nil {
			return types.PropertyCounts{}, err
		}
		counts.ByType[listingType] = n
	}
	return counts, rows.Err()
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
