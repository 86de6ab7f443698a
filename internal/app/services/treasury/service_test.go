package treasury

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/kozak_economy/internal/app/access"
	domain "github.com/R3E-Network/kozak_economy/internal/app/domain/access"
	"github.com/R3E-Network/kozak_economy/internal/app/domain/address"
	"github.com/R3E-Network/kozak_economy/internal/app/domain/resource"
	"github.com/R3E-Network/kozak_economy/internal/app/events"
	"github.com/R3E-Network/kozak_economy/internal/app/ledger"
	"github.com/R3E-Network/kozak_economy/internal/app/storage"
	"github.com/R3E-Network/kozak_economy/internal/app/storage/memory"
	"github.com/R3E-Network/kozak_economy/pkg/logger"
)

func TestOperatorMintRequiresAuthorization(t *testing.T) {
	ctx := context.Background()
	owner := address.Derive("owner")
	operator := address.Derive("operator")
	player := address.Derive("player")

	guard, err := access.NewGuard(access.UniformOwners(owner))
	require.NoError(t, err)
	store := memory.New()
	rec := &events.Recorder{}
	svc := New(store, ledger.New(guard, nil), rec, logger.NewNop())

	err = svc.MintResources(ctx, operator, player, resource.Iron, 3)
	require.ErrorIs(t, err, ledger.ErrNotAuthorized)

	require.NoError(t, store.Update(ctx, func(ctx context.Context, tx storage.Tx) error {
		if err := tx.PutGrant(ctx, domain.Grant{Ledger: domain.LedgerResources, Principal: operator, Ops: domain.ContractOps}); err != nil {
			return err
		}
		return tx.PutGrant(ctx, domain.Grant{Ledger: domain.LedgerCurrency, Principal: operator, Ops: domain.ContractOps})
	}))

	require.NoError(t, svc.MintResources(ctx, operator, player, resource.Iron, 3))
	require.NoError(t, svc.MintCurrency(ctx, operator, player, 250))

	balances, err := svc.Resources(ctx, player)
	require.NoError(t, err)
	assert.Len(t, balances, resource.Count)
	assert.Equal(t, uint64(3), balances[resource.Iron])
	assert.Zero(t, balances[resource.Wood])

	cash, err := svc.Currency(ctx, player)
	require.NoError(t, err)
	assert.Equal(t, uint64(250), cash)

	supply, err := svc.Supply(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), supply.Resources[resource.Iron])
	assert.Equal(t, uint64(250), supply.Currency)
	assert.Zero(t, supply.Items)

	assert.Equal(t, []events.Kind{events.KindResourcesMinted, events.KindCurrencyMinted}, rec.Kinds())
}
