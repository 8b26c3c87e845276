//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/geocoder89/inventoryhub/internal/db"
	"github.com/geocoder89/inventoryhub/internal/domain/category"
	"github.com/geocoder89/inventoryhub/internal/domain/inventory"
	"github.com/geocoder89/inventoryhub/internal/domain/role"
	"github.com/geocoder89/inventoryhub/internal/domain/thing"
	"github.com/geocoder89/inventoryhub/internal/domain/user"
	"github.com/geocoder89/inventoryhub/internal/jobs"
	"github.com/geocoder89/inventoryhub/internal/membership"
	"github.com/geocoder89/inventoryhub/internal/notifications"
	"github.com/geocoder89/inventoryhub/internal/repo/postgres"
)

func setupPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:15-alpine",
		tcpostgres.WithDatabase("inventoryhub_test"),
		tcpostgres.WithUsername("inventoryhub"),
		tcpostgres.WithPassword("inventoryhub"),
		tcpostgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, container)
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := db.NewPool(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, db.Migrate(ctx, pool))
	return pool
}

func createUsers(t *testing.T, repo *postgres.UsersRepo, emails ...string) []int64 {
	t.Helper()
	ids := make([]int64, 0, len(emails))
	for _, e := range emails {
		u, err := repo.Create(context.Background(), user.User{Email: e, Name: e, PasswordHash: "x"})
		require.NoError(t, err)
		ids = append(ids, u.ID)
	}
	return ids
}

func TestPostgres(t *testing.T) {
	pool := setupPool(t)
	ctx := context.Background()

	users := postgres.NewUsersRepo(pool, nil)
	inventories := postgres.NewInventoriesRepo(pool, nil)
	categories := postgres.NewCategoriesRepo(pool, nil)
	things := postgres.NewThingsRepo(pool, nil)
	jobsRepo := postgres.NewJobsRepo(pool, nil)
	deliveries := postgres.NewNotificationDeliveriesRepo(pool, nil)
	manager := membership.NewManager(inventories, users, nil)

	ids := createUsers(t, users, "owner@example.com", "bob@example.com", "carol@example.com")
	owner, bob, carol := ids[0], ids[1], ids[2]

	t.Run("users", func(t *testing.T) {
		_, err := users.Create(ctx, user.User{Email: "owner@example.com", Name: "dup", PasswordHash: "x"})
		assert.ErrorIs(t, err, user.ErrEmailTaken)

		missing, err := users.MissingUsers(ctx, []int64{owner, 424242})
		require.NoError(t, err)
		assert.Equal(t, []int64{424242}, missing)

		secret, url := "SECRET", "otpauth://totp/x"
		require.NoError(t, users.SetTwoFactor(ctx, bob, &secret, &url, true))
		u, err := users.GetByEmail(ctx, "bob@example.com")
		require.NoError(t, err)
		assert.True(t, u.TFAEnabled)
		assert.Equal(t, "SECRET", *u.TFASecret)

		first, err := users.EnrollTwoFactor(ctx, carol, "FIRST", "otpauth://totp/first")
		require.NoError(t, err)
		assert.Equal(t, "FIRST", *first.TFASecret)

		second, err := users.EnrollTwoFactor(ctx, carol, "SECOND", "otpauth://totp/second")
		require.NoError(t, err)
		assert.Equal(t, "FIRST", *second.TFASecret)
		assert.Equal(t, "otpauth://totp/first", *second.TFAURL)

		_, err = users.EnrollTwoFactor(ctx, 424242, "X", "Y")
		assert.ErrorIs(t, err, user.ErrNotFound)
	})

	var invID int64

	t.Run("membership set", func(t *testing.T) {
		inv, err := manager.Create(ctx, owner, "Pantry", []int64{bob}, nil, []int64{carol})
		require.NoError(t, err)
		invID = inv.ID

		m, err := inventories.GetMembership(ctx, carol, invID)
		require.NoError(t, err)
		assert.Equal(t, role.Read, m.Role)

		// duplicate is rejected and the stored set is untouched
		_, err = manager.Replace(ctx, invID, "Pantry", owner, []int64{bob}, []int64{bob}, nil)
		assert.ErrorIs(t, err, inventory.ErrDuplicateMember)

		got, err := inventories.GetInventory(ctx, invID)
		require.NoError(t, err)
		assert.Len(t, got.Members, 3)

		_, err = manager.Replace(ctx, invID, "Kitchen", owner, nil, []int64{carol}, nil)
		require.NoError(t, err)

		got, err = inventories.GetInventory(ctx, invID)
		require.NoError(t, err)
		assert.Equal(t, "Kitchen", got.Name)
		assert.Len(t, got.Members, 2)

		_, err = inventories.GetMembership(ctx, bob, invID)
		assert.ErrorIs(t, err, inventory.ErrMembershipNotFound)

		list, err := inventories.ListForUser(ctx, carol)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, role.Write, list[0].Role)
	})

	t.Run("outbox and deliveries", func(t *testing.T) {
		// create granted owner, bob, carol; the replace granted carol write
		seen := map[int64]int{}
		for {
			j, err := jobsRepo.ClaimNext(ctx, "test")
			if errors.Is(err, jobs.ErrJobNotFound) {
				break
			}
			require.NoError(t, err)
			assert.Equal(t, jobs.TypeAccessGranted, j.Type)

			decoded, err := jobs.DecodePayload(j)
			require.NoError(t, err)
			seen[decoded.(jobs.AccessGrantedPayload).UserID]++

			require.NoError(t, jobsRepo.MarkDone(ctx, j.ID))
		}
		assert.Equal(t, map[int64]int{owner: 1, bob: 1, carol: 2}, seen)

		require.NoError(t, deliveries.TryStart(ctx, notifications.KindAccessGranted, "job:x", "x", "a@b.c"))
		assert.ErrorIs(t, deliveries.TryStart(ctx, notifications.KindAccessGranted, "job:x", "x", "a@b.c"), notifications.ErrInProgress)
		require.NoError(t, deliveries.MarkSent(ctx, notifications.KindAccessGranted, "job:x"))
		assert.ErrorIs(t, deliveries.TryStart(ctx, notifications.KindAccessGranted, "job:x", "x", "a@b.c"), notifications.ErrAlreadySent)
	})

	t.Run("job retry bookkeeping", func(t *testing.T) {
		req, err := jobs.NewAccessGranted(jobs.AccessGrantedPayload{InventoryID: invID, InventoryName: "Kitchen", UserID: bob, Role: role.Read})
		require.NoError(t, err)
		created, err := jobsRepo.Create(ctx, req)
		require.NoError(t, err)

		j, err := jobsRepo.ClaimNext(ctx, "test")
		require.NoError(t, err)
		assert.Equal(t, created.ID, j.ID)

		require.NoError(t, jobsRepo.Reschedule(ctx, j.ID, time.Now().Add(time.Hour), "smtp down"))
		_, err = jobsRepo.ClaimNext(ctx, "test")
		assert.ErrorIs(t, err, jobs.ErrJobNotFound)

		got, err := jobsRepo.GetByID(ctx, j.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, got.Attempts)
		assert.Equal(t, jobs.StatusPending, got.Status)
	})

	t.Run("concurrent claims are distinct", func(t *testing.T) {
		for _, uid := range []int64{owner, carol} {
			req, err := jobs.NewAccessGranted(jobs.AccessGrantedPayload{InventoryID: invID, InventoryName: "Kitchen", UserID: uid, Role: role.Read})
			require.NoError(t, err)
			_, err = jobsRepo.Create(ctx, req)
			require.NoError(t, err)
		}

		var wg sync.WaitGroup
		claimed := make([]string, 2)
		errs := make([]error, 2)
		for i := range 2 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				j, err := jobsRepo.ClaimNext(ctx, fmt.Sprintf("w%d", i))
				claimed[i], errs[i] = j.ID, err
			}()
		}
		wg.Wait()

		require.NoError(t, errs[0])
		require.NoError(t, errs[1])
		assert.NotEqual(t, claimed[0], claimed[1])
	})

	t.Run("categories", func(t *testing.T) {
		_, err := categories.CreateCategory(ctx, category.Category{InventoryID: invID, Number: 1, Name: "Food"})
		require.NoError(t, err)
		one := int64(1)
		_, err = categories.CreateCategory(ctx, category.Category{InventoryID: invID, Number: 2, Name: "Dairy", Parent: &one})
		require.NoError(t, err)

		_, err = categories.CreateCategory(ctx, category.Category{InventoryID: invID, Number: 1, Name: "Again"})
		assert.ErrorIs(t, err, category.ErrExists)

		two := int64(2)
		_, err = categories.UpdateCategory(ctx, category.Category{InventoryID: invID, Number: 1, Name: "Food", Parent: &two, Children: []int64{2}})
		assert.ErrorIs(t, err, category.ErrCycle)

		c, err := categories.GetCategory(ctx, invID, 1)
		require.NoError(t, err)
		assert.Equal(t, []int64{2}, c.Children)

		require.NoError(t, categories.DeleteCategory(ctx, invID, 1))
		c, err = categories.GetCategory(ctx, invID, 2)
		require.NoError(t, err)
		assert.Nil(t, c.Parent)
	})

	t.Run("things and stocks", func(t *testing.T) {
		_, err := things.CreateThing(ctx, thing.Thing{InventoryID: invID, Name: "Ghost", Categories: []int64{99}})
		assert.ErrorIs(t, err, thing.ErrUnknownCategory)

		th, err := things.CreateThing(ctx, thing.Thing{InventoryID: invID, Name: "Milk", Categories: []int64{2}})
		require.NoError(t, err)
		assert.Equal(t, int64(1), th.Number)

		for _, q := range []int64{2, 3} {
			_, err := things.CreateStock(ctx, thing.Stock{InventoryID: invID, ThingNumber: th.Number, Quantity: q, PercentLeft: 100})
			require.NoError(t, err)
		}

		got, err := things.GetThing(ctx, invID, th.Number)
		require.NoError(t, err)
		assert.Equal(t, int64(5), got.TotalQuantity)
		assert.Equal(t, []int64{2}, got.Categories)

		_, err = things.GetStock(ctx, invID, th.Number, 42)
		assert.ErrorIs(t, err, thing.ErrStockNotFound)
	})

	t.Run("delete inventory cascades", func(t *testing.T) {
		require.NoError(t, inventories.DeleteInventory(ctx, invID))

		_, err := inventories.GetInventory(ctx, invID)
		assert.ErrorIs(t, err, inventory.ErrNotFound)

		list, err := things.ListThings(ctx, invID)
		require.NoError(t, err)
		assert.Empty(t, list)
	})
}
