package market

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/kozak_economy/internal/app/access"
	accessdomain "github.com/R3E-Network/kozak_economy/internal/app/domain/access"
	"github.com/R3E-Network/kozak_economy/internal/app/domain/address"
	domain "github.com/R3E-Network/kozak_economy/internal/app/domain/market"
	"github.com/R3E-Network/kozak_economy/internal/app/events"
	"github.com/R3E-Network/kozak_economy/internal/app/ledger"
	"github.com/R3E-Network/kozak_economy/internal/app/storage"
	"github.com/R3E-Network/kozak_economy/internal/app/storage/memory"
	"github.com/R3E-Network/kozak_economy/pkg/logger"
)

var (
	owner  = address.Derive("owner")
	minter = address.Derive("minter")
	seller = address.Derive("seller")
	buyerA = address.Derive("buyer-a")
	buyerB = address.Derive("buyer-b")
)

type fixture struct {
	store   storage.Store
	ledgers *ledger.Set
	svc     *Service
	events  *events.Recorder
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	guard, err := access.NewGuard(access.UniformOwners(owner))
	require.NoError(t, err)
	store := memory.New()
	ledgers := ledger.New(guard, nil)
	rec := &events.Recorder{}
	svc, err := New(store, ledgers, logger.NewNop(), append([]Option{WithPublisher(rec)}, opts...)...)
	require.NoError(t, err)
	require.NoError(t, store.Update(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		for _, l := range []accessdomain.Ledger{accessdomain.LedgerItems, accessdomain.LedgerCurrency} {
			if err := tx.PutGrant(ctx, accessdomain.Grant{Ledger: l, Principal: minter, Ops: accessdomain.ContractOps}); err != nil {
				return err
			}
		}
		return nil
	}))
	return &fixture{store: store, ledgers: ledgers, svc: svc, events: rec}
}

func (f *fixture) authorizeMarket(t *testing.T) {
	t.Helper()
	require.NoError(t, f.store.Update(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		return tx.PutGrant(ctx, accessdomain.Grant{Ledger: accessdomain.LedgerCurrency, Principal: f.svc.Principal(), Ops: accessdomain.ContractOps})
	}))
}

// mintItems gives n fresh items to holder and returns the last id.
func (f *fixture) mintItems(t *testing.T, holder address.Address, n int) uint64 {
	t.Helper()
	var last uint64
	require.NoError(t, f.store.Update(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		for i := 0; i < n; i++ {
			it, err := f.ledgers.Items.Mint(ctx, tx, minter, holder, 0)
			if err != nil {
				return err
			}
			last = it.ID
		}
		return nil
	}))
	return last
}

func (f *fixture) fund(t *testing.T, who address.Address, amount uint64) {
	t.Helper()
	require.NoError(t, f.store.Update(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		return f.ledgers.Currency.Mint(ctx, tx, minter, who, amount)
	}))
}

func (f *fixture) cash(t *testing.T, who address.Address) uint64 {
	t.Helper()
	var bal uint64
	require.NoError(t, f.store.View(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		var err error
		bal, err = tx.CurrencyBalance(ctx, who)
		return err
	}))
	return bal
}

func (f *fixture) holder(t *testing.T, id uint64) address.Address {
	t.Helper()
	var who address.Address
	require.NoError(t, f.store.View(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		var err error
		who, err = f.ledgers.Items.OwnerOf(ctx, tx, id)
		return err
	}))
	return who
}

func TestTwoBuyersOneItem(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	itemID := f.mintItems(t, seller, 5)
	require.EqualValues(t, 5, itemID)
	f.fund(t, buyerA, 100)
	f.fund(t, buyerB, 100)

	listing, err := f.svc.List(ctx, seller, itemID, 100)
	require.NoError(t, err)
	assert.Equal(t, f.svc.Principal(), f.holder(t, itemID), "listed item sits in escrow")

	sold, err := f.svc.Buy(ctx, buyerA, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSold, sold.Status)
	assert.Equal(t, buyerA, sold.Buyer)

	_, err = f.svc.Buy(ctx, buyerB, listing.ID)
	require.ErrorIs(t, err, ErrNotActive)

	assert.Equal(t, buyerA, f.holder(t, itemID))
	assert.Zero(t, f.cash(t, buyerA))
	assert.Equal(t, uint64(100), f.cash(t, buyerB))
	assert.Equal(t, uint64(100), f.cash(t, seller))
	assert.Equal(t, []events.Kind{events.KindListingCreated, events.KindListingSold}, f.events.Kinds())
}

func TestConcurrentBuyersOnlyOneWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	itemID := f.mintItems(t, seller, 1)
	listing, err := f.svc.List(ctx, seller, itemID, 10)
	require.NoError(t, err)

	const buyers = 16
	addrs := make([]address.Address, buyers)
	for i := range addrs {
		addrs[i] = address.Derive("racer-" + string(rune('a'+i)))
		f.fund(t, addrs[i], 10)
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []address.Address
		losses  int
	)
	for _, b := range addrs {
		wg.Add(1)
		go func(b address.Address) {
			defer wg.Done()
			_, err := f.svc.Buy(ctx, b, listing.ID)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				winners = append(winners, b)
				return
			}
			assert.ErrorIs(t, err, ErrNotActive)
			losses++
		}(b)
	}
	wg.Wait()

	require.Len(t, winners, 1)
	assert.Equal(t, buyers-1, losses)
	assert.Equal(t, winners[0], f.holder(t, itemID))
	assert.Equal(t, uint64(10), f.cash(t, seller))

	var spent uint64
	for _, b := range addrs {
		spent += 10 - f.cash(t, b)
	}
	assert.Equal(t, uint64(10), spent, "exactly one buyer paid")
}

func TestCancelReturnsCustody(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	itemID := f.mintItems(t, seller, 1)
	listing, err := f.svc.List(ctx, seller, itemID, 7)
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, buyerA, listing.ID)
	require.ErrorIs(t, err, ErrNotSeller)

	cancelled, err := f.svc.Cancel(ctx, seller, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, cancelled.Status)
	assert.Equal(t, seller, f.holder(t, itemID))

	_, err = f.svc.Cancel(ctx, seller, listing.ID)
	require.ErrorIs(t, err, ErrNotActive)

	f.fund(t, buyerA, 7)
	_, err = f.svc.Buy(ctx, buyerA, listing.ID)
	require.ErrorIs(t, err, ErrNotActive)

	relisted, err := f.svc.List(ctx, seller, itemID, 9)
	require.NoError(t, err, "a cancelled item can be listed again")
	assert.NotEqual(t, listing.ID, relisted.ID)
}

func TestListValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	itemID := f.mintItems(t, seller, 1)

	_, err := f.svc.List(ctx, seller, itemID, 0)
	assert.ErrorIs(t, err, ErrInvalidPrice)

	_, err = f.svc.List(ctx, buyerA, itemID, 5)
	assert.ErrorIs(t, err, ErrNotOwner)

	_, err = f.svc.List(ctx, seller, 999, 5)
	assert.ErrorIs(t, err, ledger.ErrItemNotFound)

	_, err = f.svc.List(ctx, seller, itemID, 5)
	require.NoError(t, err)
	_, err = f.svc.List(ctx, seller, itemID, 6)
	assert.ErrorIs(t, err, ErrAlreadyListed)
	_, err = f.svc.List(ctx, buyerA, itemID, 6)
	assert.ErrorIs(t, err, ErrNotOwner)

	active, err := f.svc.Listings(ctx, domain.Filter{Status: domain.StatusActive})
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestBuyValidationLeavesStateUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	itemID := f.mintItems(t, seller, 1)
	listing, err := f.svc.List(ctx, seller, itemID, 50)
	require.NoError(t, err)

	_, err = f.svc.Buy(ctx, buyerA, 404)
	assert.ErrorIs(t, err, ErrListingNotFound)

	_, err = f.svc.Buy(ctx, seller, listing.ID)
	assert.ErrorIs(t, err, ErrInvalidBuyer)

	f.fund(t, buyerA, 49)
	_, err = f.svc.Buy(ctx, buyerA, listing.ID)
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)

	assert.Equal(t, uint64(49), f.cash(t, buyerA))
	assert.Zero(t, f.cash(t, seller))
	assert.Equal(t, f.svc.Principal(), f.holder(t, itemID))
	got, err := f.svc.Listing(ctx, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, got.Status)
}

func TestFeeSplit(t *testing.T) {
	treasury := address.Derive("treasury")
	f := newFixture(t, WithFee(250, treasury))
	ctx := context.Background()
	itemID := f.mintItems(t, seller, 1)
	f.fund(t, buyerA, 100)
	listing, err := f.svc.List(ctx, seller, itemID, 100)
	require.NoError(t, err)

	sold, err := f.svc.Buy(ctx, buyerA, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), sold.Fee)
	assert.Equal(t, uint64(98), f.cash(t, seller))
	assert.Equal(t, uint64(2), f.cash(t, treasury))
	assert.Zero(t, f.cash(t, buyerA))
}

func TestFeeOptions(t *testing.T) {
	guard, err := access.NewGuard(access.UniformOwners(owner))
	require.NoError(t, err)
	ls := ledger.New(guard, nil)
	_, err = New(memory.New(), ls, nil, WithFee(MaxFeeBps+1, owner))
	assert.Error(t, err)
	_, err = New(memory.New(), ls, nil, WithFee(100, address.Zero))
	assert.Error(t, err)

	assert.Equal(t, uint64(0), Fee(100, 0))
	assert.Equal(t, uint64(2), Fee(100, 250))
	assert.Equal(t, uint64(100), Fee(100, MaxFeeBps))
	assert.Equal(t, ^uint64(0)/2, Fee(^uint64(0), 5000), "no overflow on large prices")
}

func TestSaleRewardRequiresMarketAuthorization(t *testing.T) {
	f := newFixture(t, WithSaleReward(5))
	ctx := context.Background()
	itemID := f.mintItems(t, seller, 1)
	f.fund(t, buyerA, 20)
	listing, err := f.svc.List(ctx, seller, itemID, 20)
	require.NoError(t, err)

	_, err = f.svc.Buy(ctx, buyerA, listing.ID)
	require.ErrorIs(t, err, ledger.ErrNotAuthorized)
	assert.Equal(t, uint64(20), f.cash(t, buyerA), "failed reward mint rolls back the payment")
	assert.Equal(t, f.svc.Principal(), f.holder(t, itemID))

	f.authorizeMarket(t)
	_, err = f.svc.Buy(ctx, buyerA, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(25), f.cash(t, seller))
}
