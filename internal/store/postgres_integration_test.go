//go:build integration

package store_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/darigo/apiserver/internal/db"
	"github.com/darigo/apiserver/internal/store"
	"github.com/darigo/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("darigo_test"),
		postgres.WithUsername("darigo"),
		postgres.WithPassword("darigo"),
		postgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, db.MigrateUp(dsn))

	conn, err := db.OpenURL(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestPostgresRepositories(t *testing.T) {
	conn := openTestDB(t)
	ctx := context.Background()
	users := store.NewUserRepository(conn)
	properties := store.NewPropertyRepository(conn)

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
		_, err = properties.UpdateOwned(ctx, created.ID, "00000000-0000-0000-0000-000000000000", types.PropertyPatch{Title: &title})
		assert.ErrorIs(t, err, store.ErrNotFound)

		got, err := properties.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "Flat in Mansour", got.Title)

		_, err = properties.Get(ctx, "not-a-uuid")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("state is written atomically and checked", func(t *testing.T) {
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

		now := time.Now().UTC()
		_, err = properties.UpdateState(ctx, created.ID, "", types.PropertyState{
			Status:      types.StatusPending,
			IsPublished: true,
			UpdatedAt:   now,
		})
		assert.Error(t, err)

		approved, err := properties.UpdateState(ctx, created.ID, "", types.PropertyState{
			Status:      types.StatusApproved,
			IsPublished: true,
			PublishedAt: &now,
			UpdatedAt:   now,
		})
		require.NoError(t, err)
		assert.True(t, approved.Visible())

		list, total, err := properties.List(ctx, types.PropertyFilter{PublicOnly: true, City: "baghdad"}, 0, 10)
		require.NoError(t, err)
		require.Equal(t, 1, total)
		assert.Equal(t, created.ID, list[0].ID)

		reviewed, err := properties.AddReview(ctx, created.ID, types.Review{UserID: owner.ID, Rating: 4, CreatedAt: now})
		require.NoError(t, err)
		assert.Equal(t, 1, reviewed.TotalReviews)
		assert.InDelta(t, 4.0, reviewed.AverageRating, 0.001)
	})

	t.Run("toggle and role", func(t *testing.T) {
		toggled, err := users.ToggleActive(ctx, owner.ID)
		require.NoError(t, err)
		assert.False(t, toggled.IsActive)

		promoted, err := users.SetRole(ctx, owner.ID, types.RoleAdmin)
		require.NoError(t, err)
		assert.Equal(t, types.RoleAdmin, promoted.Role)
		assert.True(t, promoted.IsActive)

		counts, err := users.Counts(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, counts.Total)
	})
}
