package supply

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/kozak_economy/internal/app/domain/resource"
	"github.com/R3E-Network/kozak_economy/internal/app/services/treasury"
	"github.com/R3E-Network/kozak_economy/pkg/logger"
)

type fakeSource struct {
	snap treasury.Supply
	err  error
}

func (f fakeSource) Supply(context.Context) (treasury.Supply, error) { return f.snap, f.err }

func TestNewRejectsBadSchedule(t *testing.T) {
	_, err := New(fakeSource{}, "every now and then", logger.NewNop())
	assert.Error(t, err)
}

func TestStartRefreshesImmediately(t *testing.T) {
	src := fakeSource{snap: treasury.Supply{
		Resources: map[resource.Type]uint64{resource.Wood: 4},
		Items:     2,
		Currency:  100,
	}}
	r, err := New(src, "@every 1h", logger.NewNop())
	require.NoError(t, err)
	require.NoError(t, r.Start(context.Background()))
	defer r.Stop(context.Background())

	last, err := r.Last()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), last.Items)
	require.NoError(t, r.Start(context.Background()), "second start is a no-op")
}

func TestRefreshKeepsLastGoodSnapshot(t *testing.T) {
	r, err := New(fakeSource{snap: treasury.Supply{Currency: 9}}, "", logger.NewNop())
	require.NoError(t, err)
	r.Refresh(context.Background())

	r.source = fakeSource{err: errors.New("db down")}
	r.Refresh(context.Background())
	last, err := r.Last()
	assert.Error(t, err)
	assert.Equal(t, uint64(9), last.Currency)
	assert.NoError(t, r.Stop(context.Background()), "stopping a stopped refresher is a no-op")
}
