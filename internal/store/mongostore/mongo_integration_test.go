//go:build integration

package mongostore_test

import (
	"context"
	"testing"
	"time"

	"github.com/darigo/apiserver/config"
	"github.com/darigo/apiserver/internal/db"
	"github.com/darigo/apiserver/internal/store"
	"github.com/darigo/apiserver/internal/store/mongostore"
	"github.com/darigo/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func openTestDatabase(t *testing.T) *mongo.Database {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	container, err := mongodb.Run(ctx, "mongo:7")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	client, err := db.OpenMongo(ctx, config.MongoConfig{
		URI:            uri,
		Database:       "darigo_test",
		ConnectTimeout: 30 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })

	database := client.Database("darigo_test")
	require.NoError(t, mongostore.EnsureIndexes(ctx, database))
	return database
}

func TestMongoRepositories(t *testing.T) {
	database := openTestDatabase(t)
	ctx := context.Background()
	users := mongostore.NewUserRepository(database)
	properties := mongostore.NewPropertyRepository(database)

	owner, err := users.Create(ctx, types.User{
		Name:         "Owner",
		Email:        "owner@example.com",
		Phone:        "+9647701234567",
		Role:         types.RoleIndividual,
		PasswordHash: "hash",
		IsActive:     true,
	})
	require.NoError(t, err)

	_, err = users.Create(ctx, types.User{
		Name:         "Duplicate",
		Email:        "OWNER@example.com",
		Role:         types.RoleIndividual,
		PasswordHash: "hash",
		IsActive:     true,
	})
	assert.ErrorIs(t, err, store.ErrConflict)

	reviewer, err := users.Create(ctx, types.User{
		Name:         "Reviewer",
		Email:        "reviewer@example.com",
		Role:         types.RoleAgency,
		PasswordHash: "hash",
		IsActive:     true,
		AgencyInfo:   &types.AgencyInfo{AgencyName: "Tigris Homes"},
	})
	require.NoError(t, err)

	found, total, err := users.Search(ctx, types.UserFilter{Query: "tigris"}, 0, 10)
	require.NoError(t, err)
	require.Equal(t, 1, total)
	assert.Equal(t, reviewer.ID, found[0].ID)

	t.Run("owner scoped writes", func(t *testing.T) {
		created, err := properties.Create(ctx, types.Property{
			Title:    "Flat in Mansour",
			Type:     types.ListingRent,
			Category: types.CategoryApartment,
			Price:    650,
			Location: types.PropertyLocation{City: "Baghdad", District: "Mansour"},
			OwnerID:  owner.ID,
			Status:   types.StatusPending,
		})
		require.NoError(t, err)

		title := "Stolen"
		_, err = properties.UpdateOwned(ctx, created.ID, primitive.NewObjectID().Hex(), types.PropertyPatch{Title: &title})
		assert.ErrorIs(t, err, store.ErrNotFound)

		rename := "Flat in Al-Mansour"
		price := 700.0
		tags := []string{"furnished"}
		updated, err := properties.UpdateOwned(ctx, created.ID, owner.ID, types.PropertyPatch{
			Title: &rename,
			Price: &price,
			Tags:  &tags,
		})
		require.NoError(t, err)
		assert.Equal(t, rename, updated.Title)
		assert.InDelta(t, 700.0, updated.Price, 0.001)
		assert.Equal(t, tags, updated.Tags)
		assert.Equal(t, "Mansour", updated.Location.District)
		assert.Equal(t, types.StatusPending, updated.Status)

		_, err = properties.Get(ctx, "not-an-object-id")
		assert.ErrorIs(t, err, store.ErrNotFound)

		_, err = properties.DeleteOwned(ctx, created.ID, reviewer.ID)
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("state, listing and reviews", func(t *testing.T) {
		created, err := properties.Create(ctx, types.Property{
			Title:    "House in Karrada",
			Type:     types.ListingSale,
			Category: types.CategoryHouse,
			Price:    150000,
			Location: types.PropertyLocation{City: "Baghdad"},
			OwnerID:  owner.ID,
			Status:   types.StatusPending,
		})
		require.NoError(t, err)

		_, err = properties.AddReview(ctx, created.ID, types.Review{UserID: reviewer.ID, Rating: 5})
		assert.ErrorIs(t, err, store.ErrNotFound, "hidden listings take no reviews")

		now := time.Now().UTC().Truncate(time.Millisecond)
		approved, err := properties.UpdateState(ctx, created.ID, "", types.PropertyState{
			Status:      types.StatusApproved,
			IsPublished: true,
			PublishedAt: &now,
			UpdatedAt:   now,
		})
		require.NoError(t, err)
		assert.True(t, approved.Visible())
		require.NotNil(t, approved.PublishedAt)
		assert.True(t, now.Equal(*approved.PublishedAt))

		list, total, err := properties.List(ctx, types.PropertyFilter{PublicOnly: true, City: "baghdad"}, 0, 10)
		require.NoError(t, err)
		require.Equal(t, 1, total)
		assert.Equal(t, created.ID, list[0].ID)

		_, total, err = properties.List(ctx, types.PropertyFilter{PublicOnly: true, City: "bagh"}, 0, 10)
		require.NoError(t, err)
		assert.Zero(t, total, "city matches whole values only")

		first, err := properties.AddReview(ctx, created.ID, types.Review{UserID: reviewer.ID, Rating: 5, Comment: "great", CreatedAt: now})
		require.NoError(t, err)
		assert.Equal(t, 1, first.TotalReviews)
		assert.InDelta(t, 5.0, first.AverageRating, 0.001)

		second, err := properties.AddReview(ctx, created.ID, types.Review{UserID: owner.ID, Rating: 2, CreatedAt: now})
		require.NoError(t, err)
		assert.Equal(t, 2, second.TotalReviews)
		assert.InDelta(t, 3.5, second.AverageRating, 0.001)
		require.Len(t, second.Reviews, 2)
		assert.Equal(t, reviewer.ID, second.Reviews[0].UserID)
		assert.Equal(t, "great", second.Reviews[0].Comment)

		require.NoError(t, properties.IncrementViews(ctx, created.ID))

		closed, err := properties.UpdateState(ctx, created.ID, owner.ID, types.PropertyState{
			Status:    types.StatusSold,
			SoldAt:    &now,
			SoldTo:    reviewer.ID,
			UpdatedAt: now,
		})
		require.NoError(t, err)
		assert.False(t, closed.IsPublished)
		assert.Equal(t, reviewer.ID, closed.SoldTo)
		assert.Equal(t, int64(1), closed.Stats.Views)
	})

	t.Run("counts", func(t *testing.T) {
		counts, err := properties.Counts(ctx, owner.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, counts.Total)
		assert.Equal(t, 1, counts.Pending)
		assert.Zero(t, counts.Published)
		assert.Equal(t, 1, counts.ByType[types.ListingRent])
		assert.Equal(t, 1, counts.ByType[types.ListingSale])
		assert.Equal(t, int64(1), counts.Views)

		empty, err := properties.Counts(ctx, reviewer.ID)
		require.NoError(t, err)
		assert.Zero(t, empty.Total)
	})

	t.Run("toggle, role and delete", func(t *testing.T) {
		toggled, err := users.ToggleActive(ctx, owner.ID)
		require.NoError(t, err)
		assert.False(t, toggled.IsActive)

		promoted, err := users.SetRole(ctx, owner.ID, types.RoleAdmin)
		require.NoError(t, err)
		assert.Equal(t, types.RoleAdmin, promoted.Role)
		assert.True(t, promoted.IsActive)

		counts, err := users.Counts(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, counts.Total)
		assert.Equal(t, 1, counts.ByRole[types.RoleAdmin])

		removed, err := properties.DeleteByOwner(ctx, owner.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, removed)
		require.NoError(t, users.Delete(ctx, owner.ID))
		assert.ErrorIs(t, users.Delete(ctx, owner.ID), store.ErrNotFound)
	})
}
