package mongostore

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/darigo/apiserver/internal/store"
	"github.com/darigo/apiserver/types"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const propertiesCollection = "properties"

var propertySortFields = map[string]string{
	types.SortCreatedAt: "createdAt",
	types.SortPrice:     "price",
	types.SortArea:      "area",
	types.SortViews:     "stats.views",
}

// PropertyRepository handles persistence for properties. Owner-scoped
// writes match _id and owner in the same filter.
type PropertyRepository struct {
	collection *mongo.Collection
}

func NewPropertyRepository(db *mongo.Database) *PropertyRepository {
	return &PropertyRepository{collection: db.Collection(propertiesCollection)}
}

func publicFilter() bson.M {
	return bson.M{"status": types.StatusApproved, "isPublished": true}
}

func buildFilter(f types.PropertyFilter) (bson.M, bool) {
	query := bson.M{}
	if f.PublicOnly {
		query = publicFilter()
	} else if f.Status != "" {
		query["status"] = f.Status
	}
	if f.OwnerID != "" {
		oid, ok := objectID(f.OwnerID)
		if !ok {
			return nil, false
		}
		query["owner"] = oid
	}
	if f.Type != "" {
		query["type"] = f.Type
	}
	if f.Category != "" {
		query["category"] = f.Category
	}
	if f.City != "" {
		query["location.city"] = exactFold(f.City)
	}
	if f.District != "" {
		query["location.district"] = exactFold(f.District)
	}
	if r := numberRange(f.MinPrice, f.MaxPrice); r != nil {
		query["price"] = r
	}
	if r := numberRange(f.MinArea, f.MaxArea); r != nil {
		query["area"] = r
	}
	if f.Rooms != nil {
		query["rooms"] = *f.Rooms
	}
	if f.Bathrooms != nil {
		query["bathrooms"] = *f.Bathrooms
	}
	if len(f.Features) > 0 {
		query["features"] = bson.M{"$in": f.Features}
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(q), Options: "i"}
		query["$or"] = bson.A{
			bson.M{"title": pattern},
			bson.M{"description": pattern},
		}
	}
	return query, true
}

func exactFold(value string) primitive.Regex {
	return primitive.Regex{Pattern: "^" + regexp.QuoteMeta(value) + "$", Options: "i"}
}

func numberRange(min, max *float64) bson.M {
	if min == nil && max == nil {
		return nil
	}
	r := bson.M{}
	if min != nil {
		r["$gte"] = *min
	}
	if max != nil {
		r["$lte"] = *max
	}
	return r
}

func (r *PropertyRepository) List(ctx context.Context, filter types.PropertyFilter, offset, limit int) ([]types.Property, int, error) {
	query, ok := buildFilter(filter)
	if !ok {
		return []types.Property{}, 0, nil
	}
	total, err := r.collection.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, err
	}

	field, ok := propertySortFields[filter.SortBy]
	if !ok {
		field = "createdAt"
	}
	dir := -1
	if filter.SortAsc {
		dir = 1
	}
	opts := options.Find().
		SetSort(bson.D{{Key: field, Value: dir}, {Key: "_id", Value: 1}}).
		SetSkip(int64(max(offset, 0))).
		SetLimit(int64(max(limit, 1)))
	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, err
	}
	var docs []propertyDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, 0, err
	}
	out := make([]types.Property, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.toDomain())
	}
	return out, int(total), nil
}

func (r *PropertyRepository) Get(ctx context.Context, id string) (types.Property, error) {
	oid, ok := objectID(id)
	if !ok {
		return types.Property{}, store.ErrNotFound
	}
	var doc propertyDocument
	if err := r.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		return types.Property{}, mapErr(err)
	}
	return doc.toDomain(), nil
}

func (r *PropertyRepository) Create(ctx context.Context, p types.Property) (types.Property, error) {
	owner, ok := objectID(p.OwnerID)
	if !ok {
		return types.Property{}, store.ErrNotFound
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}
	doc := toPropertyDocument(p, owner)
	doc.ID = primitive.NewObjectID()
	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		return types.Property{}, mapErr(err)
	}
	return doc.toDomain(), nil
}

// findAndUpdate applies update to the document matching filter and returns
// the updated document.
func (r *PropertyRepository) findAndUpdate(ctx context.Context, filter bson.M, update any) (types.Property, error) {
	var doc propertyDocument
	err := r.collection.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&doc)
	if err != nil {
		return types.Property{}, mapErr(err)
	}
	return doc.toDomain(), nil
}

func ownedFilter(id, ownerID string) (bson.M, bool) {
	oid, ok := objectID(id)
	if !ok {
		return nil, false
	}
	filter := bson.M{"_id": oid}
	if ownerID != "" {
		owner, ok := objectID(ownerID)
		if !ok {
			return nil, false
		}
		filter["owner"] = owner
	}
	return filter, true
}

func (r *PropertyRepository) UpdateOwned(ctx context.Context, id, ownerID string, patch types.PropertyPatch) (types.Property, error) {
	if ownerID == "" {
		return types.Property{}, store.ErrNotFound
	}
	filter, ok := ownedFilter(id, ownerID)
	if !ok {
		return types.Property{}, store.ErrNotFound
	}
	return r.findAndUpdate(ctx, filter, bson.M{"$set": patchSet(patch, time.Now().UTC())})
}

// UpdateState sets the moderation fields in one $set.
func (r *PropertyRepository) UpdateState(ctx context.Context, id, ownerID string, state types.PropertyState) (types.Property, error) {
	filter, ok := ownedFilter(id, ownerID)
	if !ok {
		return types.Property{}, store.ErrNotFound
	}
	return r.findAndUpdate(ctx, filter, bson.M{"$set": stateSet(state)})
}

// patchSet maps the non-nil fields of patch to their document paths.
func patchSet(patch types.PropertyPatch, now time.Time) bson.M {
	set := bson.M{"updatedAt": now}
	if patch.Title != nil {
		set["title"] = *patch.Title
	}
	if patch.Description != nil {
		set["description"] = *patch.Description
	}
	if patch.Type != nil {
		set["type"] = *patch.Type
	}
	if patch.Category != nil {
		set["category"] = *patch.Category
	}
	if patch.Price != nil {
		set["price"] = *patch.Price
	}
	if patch.Area != nil {
		set["area"] = *patch.Area
	}
	if patch.Rooms != nil {
		set["rooms"] = *patch.Rooms
	}
	if patch.Bathrooms != nil {
		set["bathrooms"] = *patch.Bathrooms
	}
	if patch.Location != nil {
		set["location"] = *patch.Location
	}
	if patch.Features != nil {
		set["features"] = nonNil(*patch.Features)
	}
	if patch.AdditionalFeatures != nil {
		set["additionalFeatures"] = *patch.AdditionalFeatures
	}
	if patch.DailyRentInfo != nil {
		set["dailyRentInfo"] = patch.DailyRentInfo
	}
	if patch.FarmInfo != nil {
		set["farmInfo"] = patch.FarmInfo
	}
	if patch.ExpiryDate != nil {
		set["expiryDate"] = *patch.ExpiryDate
	}
	if patch.Tags != nil {
		set["tags"] = nonNil(*patch.Tags)
	}
	return set
}

func stateSet(state types.PropertyState) bson.M {
	return bson.M{
		"status":      state.Status,
		"isPublished": state.IsPublished,
		"publishedAt": state.PublishedAt,
		"soldDate":    state.SoldAt,
		"soldTo":      state.SoldTo,
		"updatedAt":   state.UpdatedAt,
	}
}

func (r *PropertyRepository) findAndDelete(ctx context.Context, filter bson.M) (types.Property, error) {
	var doc propertyDocument
	if err := r.collection.FindOneAndDelete(ctx, filter).Decode(&doc); err != nil {
		return types.Property{}, mapErr(err)
	}
	return doc.toDomain(), nil
}

func (r *PropertyRepository) DeleteOwned(ctx context.Context, id, ownerID string) (types.Property, error) {
	if ownerID == "" {
		return types.Property{}, store.ErrNotFound
	}
	filter, ok := ownedFilter(id, ownerID)
	if !ok {
		return types.Property{}, store.ErrNotFound
	}
	return r.findAndDelete(ctx, filter)
}

func (r *PropertyRepository) Delete(ctx context.Context, id string) (types.Property, error) {
	filter, ok := ownedFilter(id, "")
	if !ok {
		return types.Property{}, store.ErrNotFound
	}
	return r.findAndDelete(ctx, filter)
}

func (r *PropertyRepository) DeleteByOwner(ctx context.Context, ownerID string) (int, error) {
	owner, ok := objectID(ownerID)
	if !ok {
		return 0, nil
	}
	result, err := r.collection.DeleteMany(ctx, bson.M{"owner": owner})
	if err != nil {
		return 0, err
	}
	return int(result.DeletedCount), nil
}

// AddReview appends the review and recomputes the average in one pipeline
// update, on visible listings only.
func (r *PropertyRepository) AddReview(ctx context.Context, id string, review types.Review) (types.Property, error) {
	filter, ok := ownedFilter(id, "")
	if !ok {
		return types.Property{}, store.ErrNotFound
	}
	for k, v := range publicFilter() {
		filter[k] = v
	}
	return r.findAndUpdate(ctx, filter, mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"reviews": bson.M{"$concatArrays": bson.A{
				bson.M{"$ifNull": bson.A{"$reviews", bson.A{}}},
				bson.A{bson.M{"$literal": review}},
			}},
			"averageRating": bson.M{"$divide": bson.A{
				bson.M{"$add": bson.A{
					bson.M{"$multiply": bson.A{"$averageRating", "$totalReviews"}},
					review.Rating,
				}},
				bson.M{"$add": bson.A{"$totalReviews", 1}},
			}},
			"totalReviews": bson.M{"$add": bson.A{"$totalReviews", 1}},
			"updatedAt":    time.Now().UTC(),
		}}},
	})
}

func (r *PropertyRepository) AddMedia(ctx context.Context, id, ownerID string, kind types.MediaKind, media types.Media) (types.Property, error) {
	if ownerID == "" {
		return types.Property{}, store.ErrNotFound
	}
	filter, ok := ownedFilter(id, ownerID)
	if !ok {
		return types.Property{}, store.ErrNotFound
	}
	field := "images"
	if kind == types.MediaVideo {
		field = "videos"
	}
	return r.findAndUpdate(ctx, filter, bson.M{
		"$push": bson.M{field: media},
		"$set":  bson.M{"updatedAt": time.Now().UTC()},
	})
}

func (r *PropertyRepository) IncrementViews(ctx context.Context, id string) error {
	oid, ok := objectID(id)
	if !ok {
		return store.ErrNotFound
	}
	result, err := r.collection.UpdateByID(ctx, oid, bson.M{"$inc": bson.M{"stats.views": 1}})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *PropertyRepository) Counts(ctx context.Context, ownerID string) (types.PropertyCounts, error) {
	counts := types.PropertyCounts{ByType: make(map[types.ListingType]int)}
	match := bson.M{}
	if ownerID != "" {
		owner, ok := objectID(ownerID)
		if !ok {
			return counts, nil
		}
		match["owner"] = owner
	}

	countIf := func(cond any) bson.M {
		return bson.M{"$sum": bson.M{"$cond": bson.A{cond, 1, 0}}}
	}
	statusIs := func(status types.PropertyStatus) bson.M {
		return bson.M{"$eq": bson.A{"$status", status}}
	}
	cursor, err := r.collection.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$facet", Value: bson.M{
			"totals": bson.A{bson.M{"$group": bson.M{
				"_id":       nil,
				"total":     bson.M{"$sum": 1},
				"published": countIf(bson.M{"$and": bson.A{statusIs(types.StatusApproved), "$isPublished"}}),
				"pending":   countIf(statusIs(types.StatusPending)),
				"approved":  countIf(statusIs(types.StatusApproved)),
				"rejected":  countIf(statusIs(types.StatusRejected)),
				"views":     bson.M{"$sum": "$stats.views"},
			}}},
			"byType": bson.A{bson.M{"$group": bson.M{
				"_id":   "$type",
				"count": bson.M{"$sum": 1},
			}}},
		}}},
	})
	if err != nil {
		return types.PropertyCounts{}, err
	}

	var result []struct {
		Totals []struct {
			Total     int   `bson:"total"`
			Published int   `bson:"published"`
			Pending   int   `bson:"pending"`
			Approved  int   `bson:"approved"`
			Rejected  int   `bson:"rejected"`
			Views     int64 `bson:"views"`
		} `bson:"totals"`
		ByType []struct {
			Type  types.ListingType `bson:"_id"`
			Count int               `bson:"count"`
		} `bson:"byType"`
	}
	if err := cursor.All(ctx, &result); err != nil {
		return types.PropertyCounts{}, err
	}
	if len(result) == 0 {
		return counts, nil
	}
	if len(result[0].Totals) > 0 {
		t := result[0].Totals[0]
		counts.Total = t.Total
		counts.Published = t.Published
		counts.Pending = t.Pending
		counts.Approved = t.Approved
		counts.Rejected = t.Rejected
		counts.Views = t.Views
	}
	for _, row := range result[0].ByType {
		counts.ByType[row.Type] = row.Count
	}
	return counts, nil
}
