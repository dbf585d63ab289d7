// Package mongostore implements the repositories on MongoDB, the document
// store the listing data historically lived in.
package mongostore

import (
	"context"
	"errors"
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

const usersCollection = "users"

// UserRepository handles persistence for users.
type UserRepository struct {
	collection *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{collection: db.Collection(usersCollection)}
}

func (r *UserRepository) findOne(ctx context.Context, filter any) (types.User, error) {
	var doc userDocument
	if err := r.collection.FindOne(ctx, filter).Decode(&doc); err != nil {
		return types.User{}, mapErr(err)
	}
	return doc.toDomain(), nil
}

func (r *UserRepository) updateOne(ctx context.Context, id string, update any) (types.User, error) {
	oid, ok := objectID(id)
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	var doc userDocument
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": oid}, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&doc)
	if err != nil {
		return types.User{}, mapErr(err)
	}
	return doc.toDomain(), nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (types.User, error) {
	oid, ok := objectID(id)
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *UserRepository) GetByIDs(ctx context.Context, ids []string) (map[string]types.User, error) {
	oids := objectIDs(ids)
	out := make(map[string]types.User, len(oids))
	if len(oids) == 0 {
		return out, nil
	}
	cursor, err := r.collection.Find(ctx, bson.M{"_id": bson.M{"$in": oids}})
	if err != nil {
		return nil, err
	}
	var docs []userDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	for _, doc := range docs {
		user := doc.toDomain()
		out[user.ID] = user
	}
	return out, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	return r.findOne(ctx, bson.M{"email": types.NormalizeEmail(email)})
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	now := time.Now().UTC()
	user.Email = types.NormalizeEmail(user.Email)
	user.CreatedAt = now
	user.UpdatedAt = now

	doc := toUserDocument(user)
	doc.ID = primitive.NewObjectID()
	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		return types.User{}, mapErr(err)
	}
	user.ID = doc.ID.Hex()
	return user, nil
}

func (r *UserRepository) UpdateProfile(ctx context.Context, id string, update types.ProfileUpdate) (types.User, error) {
	set := bson.M{"updatedAt": time.Now().UTC()}
	if update.Name != nil {
		set["name"] = *update.Name
	}
	if update.Phone != nil {
		set["phone"] = *update.Phone
	}
	if update.ProfileImage != nil {
		set["profileImage"] = *update.ProfileImage
	}
	if update.Location != nil {
		set["location"] = update.Location
	}
	if update.AgencyInfo != nil {
		set["agencyInfo"] = update.AgencyInfo
	}
	if update.PasswordHash != nil {
		set["password"] = *update.PasswordHash
	}
	return r.updateOne(ctx, id, bson.M{"$set": set})
}

func (r *UserRepository) SetRole(ctx context.Context, id string, role types.Role) (types.User, error) {
	return r.updateOne(ctx, id, bson.M{"$set": bson.M{
		"userType":  role,
		"isActive":  true,
		"updatedAt": time.Now().UTC(),
	}})
}

func (r *UserRepository) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	oid, ok := objectID(id)
	if !ok {
		return store.ErrNotFound
	}
	result, err := r.collection.UpdateByID(ctx, oid, bson.M{"$set": bson.M{"lastLogin": at}})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ToggleActive negates isActive server side with an update pipeline.
func (r *UserRepository) ToggleActive(ctx context.Context, id string) (types.User, error) {
	return r.updateOne(ctx, id, mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"isActive":  bson.M{"$not": bson.A{"$isActive"}},
			"updatedAt": time.Now().UTC(),
		}}},
	})
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	oid, ok := objectID(id)
	if !ok {
		return store.ErrNotFound
	}
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *UserRepository) Search(ctx context.Context, filter types.UserFilter, offset, limit int) ([]types.User, int, error) {
	query := bson.M{}
	if filter.ActiveOnly {
		query["isActive"] = true
	}
	if filter.Role != "" {
		query["userType"] = filter.Role
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(q), Options: "i"}
		query["$or"] = bson.A{
			bson.M{"name": pattern},
			bson.M{"email": pattern},
			bson.M{"agencyInfo.agencyname": pattern},
		}
	}

	total, err := r.collection.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, err
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}}).
		SetSkip(int64(max(offset, 0))).
		SetLimit(int64(max(limit, 1)))
	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, err
	}
	var docs []userDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, 0, err
	}
	users := make([]types.User, 0, len(docs))
	for _, doc := range docs {
		users = append(users, doc.toDomain())
	}
	return users, int(total), nil
}

func (r *UserRepository) Counts(ctx context.Context) (types.UserCounts, error) {
	cursor, err := r.collection.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id":   bson.M{"role": "$userType", "active": "$isActive"},
			"count": bson.M{"$sum": 1},
		}}},
	})
	if err != nil {
		return types.UserCounts{}, err
	}
	var rows []struct {
		ID struct {
			Role   types.Role `bson:"role"`
			Active bool       `bson:"active"`
		} `bson:"_id"`
		Count int `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return types.UserCounts{}, err
	}

	counts := types.UserCounts{ByRole: make(map[types.Role]int)}
	for _, row := range rows {
		counts.Total += row.Count
		counts.ByRole[row.ID.Role] += row.Count
		if row.ID.Active {
			counts.Active += row.Count
		} else {
			counts.Inactive += row.Count
		}
	}
	return counts, nil
}

func objectID(id string) (primitive.ObjectID, bool) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, false
	}
	return oid, true
}

func objectIDs(ids []string) []primitive.ObjectID {
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if oid, ok := objectID(id); ok {
			out = append(out, oid)
		}
	}
	return out
}

func mapErr(err error) error {
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return store.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return store.ErrConflict
	}
	return err
}
