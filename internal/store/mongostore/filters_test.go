package mongostore

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/darigo/apiserver/internal/store"
	"github.com/darigo/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func ptr[T any](v T) *T { return &v }

// documentFields returns the top-level bson names of v's struct type.
func documentFields(t *testing.T, v any) map[string]struct{} {
	t.Helper()
	typ := reflect.TypeOf(v)
	out := make(map[string]struct{}, typ.NumField())
	for i := range typ.NumField() {
		name, _, _ := strings.Cut(typ.Field(i).Tag.Get("bson"), ",")
		require.NotEmpty(t, name, typ.Field(i).Name)
		out[name] = struct{}{}
	}
	return out
}

func TestBuildFilterPublic(t *testing.T) {
	query, ok := buildFilter(types.PropertyFilter{PublicOnly: true, Status: types.StatusPending})
	require.True(t, ok)
	assert.Equal(t, bson.M{"status": types.StatusApproved, "isPublished": true}, query)

	query, ok = buildFilter(types.PropertyFilter{Status: types.StatusRejected})
	require.True(t, ok)
	assert.Equal(t, bson.M{"status": types.StatusRejected}, query)
}

func TestBuildFilterFields(t *testing.T) {
	owner := primitive.NewObjectID()
	query, ok := buildFilter(types.PropertyFilter{
		OwnerID:   owner.Hex(),
		Type:      types.ListingRent,
		Category:  types.CategoryApartment,
		City:      "Baghdad",
		District:  "Al.Mansour",
		MinPrice:  ptr(100.0),
		MinArea:   ptr(50.0),
		MaxArea:   ptr(200.0),
		Rooms:     ptr(3),
		Bathrooms: ptr(2),
		Features:  []string{"garden", "pool"},
		Query:     " villa (new) ",
	})
	require.True(t, ok)

	assert.Equal(t, owner, query["owner"])
	assert.Equal(t, types.ListingRent, query["type"])
	assert.Equal(t, types.CategoryApartment, query["category"])
	assert.Equal(t, primitive.Regex{Pattern: "^Baghdad$", Options: "i"}, query["location.city"])
	assert.Equal(t, primitive.Regex{Pattern: `^Al\.Mansour$`, Options: "i"}, query["location.district"])
	assert.Equal(t, bson.M{"$gte": 100.0}, query["price"])
	assert.Equal(t, bson.M{"$gte": 50.0, "$lte": 200.0}, query["area"])
	assert.Equal(t, 3, query["rooms"])
	assert.Equal(t, 2, query["bathrooms"])
	assert.Equal(t, bson.M{"$in": []string{"garden", "pool"}}, query["features"])

	pattern := primitive.Regex{Pattern: `villa \(new\)`, Options: "i"}
	assert.Equal(t, bson.A{bson.M{"title": pattern}, bson.M{"description": pattern}}, query["$or"])
	assert.NotContains(t, query, "status")
}

func TestBuildFilterPathsExist(t *testing.T) {
	fields := documentFields(t, propertyDocument{})
	query, ok := buildFilter(types.PropertyFilter{
		Status:    types.StatusPending,
		OwnerID:   primitive.NewObjectID().Hex(),
		Type:      types.ListingSale,
		Category:  types.CategoryHouse,
		City:      "Erbil",
		District:  "Ankawa",
		MinPrice:  ptr(1.0),
		MaxArea:   ptr(2.0),
		Rooms:     ptr(1),
		Bathrooms: ptr(1),
		Features:  []string{"garage"},
	})
	require.True(t, ok)
	for key := range query {
		root, _, _ := strings.Cut(key, ".")
		assert.Contains(t, fields, root, key)
	}
	for _, path := range propertySortFields {
		root, _, _ := strings.Cut(path, ".")
		assert.Contains(t, fields, root, path)
	}
}

func TestBuildFilterInvalidOwner(t *testing.T) {
	_, ok := buildFilter(types.PropertyFilter{OwnerID: "not-an-object-id"})
	assert.False(t, ok)
}

func TestOwnedFilter(t *testing.T) {
	id := primitive.NewObjectID()
	owner := primitive.NewObjectID()

	filter, ok := ownedFilter(id.Hex(), "")
	require.True(t, ok)
	assert.Equal(t, bson.M{"_id": id}, filter)

	filter, ok = ownedFilter(id.Hex(), owner.Hex())
	require.True(t, ok)
	assert.Equal(t, bson.M{"_id": id, "owner": owner}, filter)

	_, ok = ownedFilter("bad", owner.Hex())
	assert.False(t, ok)
	_, ok = ownedFilter(id.Hex(), "bad")
	assert.False(t, ok, "a malformed owner must not widen the filter")
}

func TestPatchSetUsesDocumentFields(t *testing.T) {
	now := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)
	patch := types.PropertyPatch{
		Title:              ptr("Flat"),
		Description:        ptr("Two rooms"),
		Type:               ptr(types.ListingRent),
		Category:           ptr(types.CategoryApartment),
		Price:              ptr(500.0),
		Area:               ptr(90.0),
		Rooms:              ptr(2),
		Bathrooms:          ptr(1),
		Location:           &types.PropertyLocation{City: "Basra"},
		Features:           &[]string{},
		AdditionalFeatures: ptr("balcony"),
		DailyRentInfo:      &types.DailyRentInfo{},
		FarmInfo:           &types.FarmInfo{},
		ExpiryDate:         &now,
		Tags:               &[]string{"sea"},
	}
	set := patchSet(patch, now)

	assert.Len(t, set, reflect.TypeOf(patch).NumField()+1, "every patch field is mapped")
	fields := documentFields(t, propertyDocument{})
	for key := range set {
		assert.Contains(t, fields, key)
	}
	assert.Equal(t, now, set["updatedAt"])
	assert.Equal(t, "Flat", set["title"])
	assert.Equal(t, []string{}, set["features"])

	assert.Equal(t, bson.M{"updatedAt": now}, patchSet(types.PropertyPatch{}, now))
}

func TestStateSetUsesDocumentFields(t *testing.T) {
	now := time.Now().UTC()
	set := stateSet(types.PropertyState{Status: types.StatusSold, SoldAt: &now, SoldTo: "buyer", UpdatedAt: now})

	fields := documentFields(t, propertyDocument{})
	for key := range set {
		assert.Contains(t, fields, key)
	}
	assert.Equal(t, types.StatusSold, set["status"])
	assert.Equal(t, false, set["isPublished"])
	assert.Equal(t, &now, set["soldDate"])
}

func TestMapErr(t *testing.T) {
	assert.ErrorIs(t, mapErr(mongo.ErrNoDocuments), store.ErrNotFound)

	dup := mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: 11000, Message: "E11000 duplicate key error"}}}
	assert.ErrorIs(t, mapErr(dup), store.ErrConflict)

	other := errors.New("connection reset")
	assert.Equal(t, other, mapErr(other))
}
