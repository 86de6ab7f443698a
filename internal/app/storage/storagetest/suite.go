// Package storagetest holds the behavioural suite every storage.Store
// implementation must pass.
package storagetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/kozak_economy/internal/app/domain/access"
	"github.com/R3E-Network/kozak_economy/internal/app/domain/address"
	"github.com/R3E-Network/kozak_economy/internal/app/domain/item"
	"github.com/R3E-Network/kozak_economy/internal/app/domain/market"
	"github.com/R3E-Network/kozak_economy/internal/app/domain/resource"
	"github.com/R3E-Network/kozak_economy/internal/app/storage"
)

var (
	alice = address.Derive("alice")
	bob   = address.Derive("bob")
)

var errBoom = errors.New("boom")

// Run executes the suite against stores produced by factory. Each subtest
// gets a fresh store.
func Run(t *testing.T, factory func(t *testing.T) storage.Store) {
	t.Run("ResourcesCommit", func(t *testing.T) { testResourcesCommit(t, factory(t)) })
	t.Run("RollbackDiscardsEverything", func(t *testing.T) { testRollback(t, factory(t)) })
	t.Run("ViewIsReadOnly", func(t *testing.T) { testViewReadOnly(t, factory(t)) })
	t.Run("Items", func(t *testing.T) { testItems(t, factory(t)) })
	t.Run("Currency", func(t *testing.T) { testCurrency(t, factory(t)) })
	t.Run("Listings", func(t *testing.T) { testListings(t, factory(t)) })
	t.Run("Grants", func(t *testing.T) { testGrants(t, factory(t)) })
}

func testResourcesCommit(t *testing.T, s storage.Store) {
	ctx := context.Background()
	require.NoError(t, s.Update(ctx, func(ctx context.Context, tx storage.Tx) error {
		if err := tx.SetResourceBalance(ctx, alice, resource.Iron, 3); err != nil {
			return err
		}
		if err := tx.SetResourceBalance(ctx, bob, resource.Iron, 2); err != nil {
			return err
		}
		got, err := tx.ResourceBalance(ctx, alice, resource.Iron)
		require.NoError(t, err)
		assert.Equal(t, uint64(3), got, "writes must be visible inside the transaction")
		return tx.SetResourceBalance(ctx, alice, resource.Wood, 1)
	}))

	require.NoError(t, s.View(ctx, func(ctx context.Context, tx storage.Tx) error {
		balances, err := tx.ResourceBalances(ctx, alice)
		require.NoError(t, err)
		assert.Equal(t, map[resource.Type]uint64{resource.Iron: 3, resource.Wood: 1}, balances)

		supply, err := tx.ResourceSupply(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(5), supply[resource.Iron])
		assert.Equal(t, uint64(1), supply[resource.Wood])

		zero, err := tx.ResourceBalance(ctx, bob, resource.Gold)
		require.NoError(t, err)
		assert.Zero(t, zero)
		return nil
	}))
}

func testRollback(t *testing.T, s storage.Store) {
	ctx := context.Background()
	require.NoError(t, s.Update(ctx, func(ctx context.Context, tx storage.Tx) error {
		return tx.SetCurrencyBalance(ctx, alice, 50)
	}))

	err := s.Update(ctx, func(ctx context.Context, tx storage.Tx) error {
		require.NoError(t, tx.SetCurrencyBalance(ctx, alice, 10))
		require.NoError(t, tx.SetResourceBalance(ctx, alice, resource.Stone, 7))
		_, err := tx.CreateItem(ctx, item.Item{Type: 1, Owner: alice, CreatedAt: time.Now().UTC()})
		require.NoError(t, err)
		require.NoError(t, tx.PutGrant(ctx, access.Grant{Ledger: access.LedgerItems, Principal: bob, Ops: access.ContractOps}))
		return errBoom
	})
	require.ErrorIs(t, err, errBoom)

	require.NoError(t, s.View(ctx, func(ctx context.Context, tx storage.Tx) error {
		bal, err := tx.CurrencyBalance(ctx, alice)
		require.NoError(t, err)
		assert.Equal(t, uint64(50), bal)

		stone, err := tx.ResourceBalance(ctx, alice, resource.Stone)
		require.NoError(t, err)
		assert.Zero(t, stone)

		n, err := tx.CountItems(ctx, alice)
		require.NoError(t, err)
		assert.Zero(t, n)

		ops, err := tx.Grants(ctx, access.LedgerItems, bob)
		require.NoError(t, err)
		assert.Zero(t, ops)
		return nil
	}))
}

func testViewReadOnly(t *testing.T, s storage.Store) {
	ctx := context.Background()
	err := s.View(ctx, func(ctx context.Context, tx storage.Tx) error {
		return tx.SetCurrencyBalance(ctx, alice, 1)
	})
	require.Error(t, err)
}

func testItems(t *testing.T, s storage.Store) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)
	var first, second item.Item
	require.NoError(t, s.Update(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		first, err = tx.CreateItem(ctx, item.Item{Type: 0, Owner: alice, CreatedAt: now})
		require.NoError(t, err)
		second, err = tx.CreateItem(ctx, item.Item{Type: 2, Owner: alice, CreatedAt: now})
		return err
	}))
	assert.NotZero(t, first.ID)
	assert.Greater(t, second.ID, first.ID)

	require.NoError(t, s.Update(ctx, func(ctx context.Context, tx storage.Tx) error {
		return tx.UpdateItemOwner(ctx, second.ID, bob)
	}))

	require.NoError(t, s.View(ctx, func(ctx context.Context, tx storage.Tx) error {
		got, err := tx.GetItem(ctx, second.ID)
		require.NoError(t, err)
		assert.Equal(t, bob, got.Owner)
		assert.Equal(t, item.Type(2), got.Type)

		aliceItems, err := tx.ListItems(ctx, alice)
		require.NoError(t, err)
		require.Len(t, aliceItems, 1)
		assert.Equal(t, first.ID, aliceItems[0].ID)

		n, err := tx.CountItems(ctx, bob)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), n)

		supply, err := tx.ItemSupply(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(2), supply)

		_, err = tx.GetItem(ctx, 9999)
		assert.ErrorIs(t, err, storage.ErrNotFound)
		return nil
	}))
}

func testCurrency(t *testing.T, s storage.Store) {
	ctx := context.Background()
	require.NoError(t, s.Update(ctx, func(ctx context.Context, tx storage.Tx) error {
		require.NoError(t, tx.SetCurrencyBalance(ctx, alice, 100))
		require.NoError(t, tx.SetCurrencyBalance(ctx, bob, 25))
		return tx.SetCurrencyBalance(ctx, alice, 90)
	}))
	require.NoError(t, s.View(ctx, func(ctx context.Context, tx storage.Tx) error {
		bal, err := tx.CurrencyBalance(ctx, alice)
		require.NoError(t, err)
		assert.Equal(t, uint64(90), bal)
		supply, err := tx.CurrencySupply(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(115), supply)
		return nil
	}))
}

func testListings(t *testing.T, s storage.Store) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)
	var created market.Listing
	require.NoError(t, s.Update(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		created, err = tx.CreateListing(ctx, market.Listing{
			ItemID: 5, Seller: alice, Price: 100, Status: market.StatusActive, CreatedAt: now, UpdatedAt: now,
		})
		return err
	}))
	assert.NotZero(t, created.ID)

	require.NoError(t, s.View(ctx, func(ctx context.Context, tx storage.Tx) error {
		active, err := tx.ActiveListingForItem(ctx, 5)
		require.NoError(t, err)
		assert.Equal(t, created.ID, active.ID)
		_, err = tx.ActiveListingForItem(ctx, 6)
		assert.ErrorIs(t, err, storage.ErrNotFound)
		return nil
	}))

	require.NoError(t, s.Update(ctx, func(ctx context.Context, tx storage.Tx) error {
		l, err := tx.GetListing(ctx, created.ID)
		require.NoError(t, err)
		require.NoError(t, l.Apply(market.EventBuy, now))
		l.Buyer = bob
		l.Fee = 2
		_, err = tx.UpdateListing(ctx, l)
		return err
	}))

	require.NoError(t, s.View(ctx, func(ctx context.Context, tx storage.Tx) error {
		got, err := tx.GetListing(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, market.StatusSold, got.Status)
		assert.Equal(t, bob, got.Buyer)
		assert.Equal(t, uint64(2), got.Fee)

		_, err = tx.ActiveListingForItem(ctx, 5)
		assert.ErrorIs(t, err, storage.ErrNotFound)

		sold, err := tx.ListListings(ctx, market.Filter{Status: market.StatusSold, Seller: alice})
		require.NoError(t, err)
		assert.Len(t, sold, 1)

		_, err = tx.GetListing(ctx, 12345)
		assert.ErrorIs(t, err, storage.ErrNotFound)
		return nil
	}))

	err := s.Update(ctx, func(ctx context.Context, tx storage.Tx) error {
		_, err := tx.UpdateListing(ctx, market.Listing{ID: 777, Status: market.StatusActive})
		return err
	})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testGrants(t *testing.T, s storage.Store) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, s.Update(ctx, func(ctx context.Context, tx storage.Tx) error {
		require.NoError(t, tx.PutGrant(ctx, access.Grant{Ledger: access.LedgerResources, Principal: alice, Ops: access.ContractOps, UpdatedAt: now}))
		return tx.PutGrant(ctx, access.Grant{Ledger: access.LedgerResources, Principal: bob, Ops: access.OpSet(access.OpMint), UpdatedAt: now})
	}))

	require.NoError(t, s.View(ctx, func(ctx context.Context, tx storage.Tx) error {
		ops, err := tx.Grants(ctx, access.LedgerResources, alice)
		require.NoError(t, err)
		assert.Equal(t, access.ContractOps, ops)

		other, err := tx.Grants(ctx, access.LedgerItems, alice)
		require.NoError(t, err)
		assert.Zero(t, other)

		list, err := tx.ListGrants(ctx, access.LedgerResources)
		require.NoError(t, err)
		assert.Len(t, list, 2)
		return nil
	}))

	require.NoError(t, s.Update(ctx, func(ctx context.Context, tx storage.Tx) error {
		return tx.PutGrant(ctx, access.Grant{Ledger: access.LedgerResources, Principal: bob, UpdatedAt: now})
	}))

	require.NoError(t, s.View(ctx, func(ctx context.Context, tx storage.Tx) error {
		list, err := tx.ListGrants(ctx, access.LedgerResources)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, alice, list[0].Principal)
		return nil
	}))
}
