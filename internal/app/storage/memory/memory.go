// Package memory provides the in-process store. Transactions are serialized
// behind a single lock and stage their writes in a journal that is applied to
// the shared state only when the transaction body returns nil.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/R3E-Network/kozak_economy/internal/app/domain/access"
	"github.com/R3E-Network/kozak_economy/internal/app/domain/address"
	"github.com/R3E-Network/kozak_economy/internal/app/domain/item"
	"github.com/R3E-Network/kozak_economy/internal/app/domain/market"
	"github.com/R3E-Network/kozak_economy/internal/app/domain/resource"
	"github.com/R3E-Network/kozak_economy/internal/app/storage"
)

type resKey struct {
	owner address.Address
	rt    resource.Type
}

type grantKey struct {
	ledger    access.Ledger
	principal address.Address
}

type state struct {
	resources     map[resKey]uint64
	items         map[uint64]item.Item
	nextItemID    uint64
	currency      map[address.Address]uint64
	listings      map[uint64]market.Listing
	nextListingID uint64
	grants        map[grantKey]access.Grant
}

// Store is a thread-safe in-memory implementation of storage.Store.
type Store struct {
	mu sync.RWMutex
	st *state
}

var _ storage.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{st: &state{
		resources: make(map[resKey]uint64),
		items:     make(map[uint64]item.Item),
		currency:  make(map[address.Address]uint64),
		listings:  make(map[uint64]market.Listing),
		grants:    make(map[grantKey]access.Grant),
	}}
}

// Update runs fn exclusively and commits its journal when fn succeeds.
func (s *Store) Update(ctx context.Context, fn storage.TxFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := newJournal(s.st, false)
	if err := fn(ctx, tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

// View runs fn against the committed state. Writes fail with ErrReadOnly.
func (s *Store) View(ctx context.Context, fn storage.TxFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(ctx, newJournal(s.st, true))
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

// journal is the transaction view: reads fall through to the committed
// state, writes stay local until commit.
type journal struct {
	base     *state
	readOnly bool

	resources     map[resKey]uint64
	items         map[uint64]item.Item
	nextItemID    uint64
	currency      map[address.Address]uint64
	listings      map[uint64]market.Listing
	nextListingID uint64
	grants        map[grantKey]access.Grant
}

func newJournal(base *state, readOnly bool) *journal {
	return &journal{
		base:          base,
		readOnly:      readOnly,
		resources:     make(map[resKey]uint64),
		items:         make(map[uint64]item.Item),
		nextItemID:    base.nextItemID,
		currency:      make(map[address.Address]uint64),
		listings:      make(map[uint64]market.Listing),
		nextListingID: base.nextListingID,
		grants:        make(map[grantKey]access.Grant),
	}
}

func (j *journal) commit() {
	for k, v := range j.resources {
		if v == 0 {
			delete(j.base.resources, k)
		} else {
			j.base.resources[k] = v
		}
	}
	for id, it := range j.items {
		j.base.items[id] = it
	}
	for k, v := range j.currency {
		if v == 0 {
			delete(j.base.currency, k)
		} else {
			j.base.currency[k] = v
		}
	}
	for id, l := range j.listings {
		j.base.listings[id] = l
	}
	for k, g := range j.grants {
		if g.Ops == 0 {
			delete(j.base.grants, k)
		} else {
			j.base.grants[k] = g
		}
	}
	j.base.nextItemID = j.nextItemID
	j.base.nextListingID = j.nextListingID
}

func (j *journal) writable() error {
	if j.readOnly {
		return storage.ErrReadOnly
	}
	return nil
}

func merged[K comparable, V any](base, overlay map[K]V) map[K]V {
	out := make(map[K]V, len(base)+len(overlay))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overlay {
		out[k] = v
	}
	return out
}

// ResourceStore ---------------------------------------------------------------

func (j *journal) ResourceBalance(_ context.Context, owner address.Address, rt resource.Type) (uint64, error) {
	k := resKey{owner: owner, rt: rt}
	if v, ok := j.resources[k]; ok {
		return v, nil
	}
	return j.base.resources[k], nil
}

func (j *journal) SetResourceBalance(_ context.Context, owner address.Address, rt resource.Type, amount uint64) error {
	if err := j.writable(); err != nil {
		return err
	}
	j.resources[resKey{owner: owner, rt: rt}] = amount
	return nil
}

func (j *journal) ResourceBalances(ctx context.Context, owner address.Address) (map[resource.Type]uint64, error) {
	out := make(map[resource.Type]uint64)
	for _, rt := range resource.All() {
		v, _ := j.ResourceBalance(ctx, owner, rt)
		if v > 0 {
			out[rt] = v
		}
	}
	return out, nil
}

func (j *journal) ResourceSupply(context.Context) (map[resource.Type]uint64, error) {
	out := make(map[resource.Type]uint64)
	for k, v := range merged(j.base.resources, j.resources) {
		if v > 0 {
			out[k.rt] += v
		}
	}
	return out, nil
}

// ItemStore -------------------------------------------------------------------

func (j *journal) CreateItem(_ context.Context, it item.Item) (item.Item, error) {
	if err := j.writable(); err != nil {
		return item.Item{}, err
	}
	j.nextItemID++
	it.ID = j.nextItemID
	j.items[it.ID] = it
	return it, nil
}

func (j *journal) GetItem(_ context.Context, id uint64) (item.Item, error) {
	if it, ok := j.items[id]; ok {
		return it, nil
	}
	if it, ok := j.base.items[id]; ok {
		return it, nil
	}
	return item.Item{}, fmt.Errorf("item %d: %w", id, storage.ErrNotFound)
}

func (j *journal) UpdateItemOwner(ctx context.Context, id uint64, owner address.Address) error {
	if err := j.writable(); err != nil {
		return err
	}
	it, err := j.GetItem(ctx, id)
	if err != nil {
		return err
	}
	it.Owner = owner
	j.items[id] = it
	return nil
}

func (j *journal) ListItems(_ context.Context, owner address.Address) ([]item.Item, error) {
	var out []item.Item
	for _, it := range merged(j.base.items, j.items) {
		if it.Owner == owner {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out, nil
}

func (j *journal) CountItems(ctx context.Context, owner address.Address) (uint64, error) {
	items, err := j.ListItems(ctx, owner)
	return uint64(len(items)), err
}

func (j *journal) ItemSupply(context.Context) (uint64, error) {
	return uint64(len(j.base.items) + countNew(j.base.items, j.items)), nil
}

func countNew[K comparable, V any](base, overlay map[K]V) int {
	n := 0
	for k := range overlay {
		if _, ok := base[k]; !ok {
			n++
		}
	}
	return n
}

// CurrencyStore ---------------------------------------------------------------

func (j *journal) CurrencyBalance(_ context.Context, owner address.Address) (uint64, error) {
	if v, ok := j.currency[owner]; ok {
		return v, nil
	}
	return j.base.currency[owner], nil
}

func (j *journal) SetCurrencyBalance(_ context.Context, owner address.Address, amount uint64) error {
	if err := j.writable(); err != nil {
		return err
	}
	j.currency[owner] = amount
	return nil
}

func (j *journal) CurrencySupply(context.Context) (uint64, error) {
	var total uint64
	for _, v := range merged(j.base.currency, j.currency) {
		total += v
	}
	return total, nil
}

// ListingStore ----------------------------------------------------------------

func (j *journal) CreateListing(_ context.Context, l market.Listing) (market.Listing, error) {
	if err := j.writable(); err != nil {
		return market.Listing{}, err
	}
	j.nextListingID++
	l.ID = j.nextListingID
	j.listings[l.ID] = l
	return l, nil
}

func (j *journal) UpdateListing(ctx context.Context, l market.Listing) (market.Listing, error) {
	if err := j.writable(); err != nil {
		return market.Listing{}, err
	}
	if _, err := j.GetListing(ctx, l.ID); err != nil {
		return market.Listing{}, err
	}
	j.listings[l.ID] = l
	return l, nil
}

func (j *journal) GetListing(_ context.Context, id uint64) (market.Listing, error) {
	if l, ok := j.listings[id]; ok {
		return l, nil
	}
	if l, ok := j.base.listings[id]; ok {
		return l, nil
	}
	return market.Listing{}, fmt.Errorf("listing %d: %w", id, storage.ErrNotFound)
}

func (j *journal) ActiveListingForItem(ctx context.Context, itemID uint64) (market.Listing, error) {
	found, err := j.ListListings(ctx, market.Filter{Status: market.StatusActive, ItemID: itemID, Limit: 1})
	if err != nil {
		return market.Listing{}, err
	}
	if len(found) == 0 {
		return market.Listing{}, fmt.Errorf("active listing for item %d: %w", itemID, storage.ErrNotFound)
	}
	return found[0], nil
}

func (j *journal) ListListings(_ context.Context, filter market.Filter) ([]market.Listing, error) {
	var out []market.Listing
	for _, l := range merged(j.base.listings, j.listings) {
		if filter.Match(l) {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// GrantStore ------------------------------------------------------------------

func (j *journal) Grants(_ context.Context, ledger access.Ledger, principal address.Address) (access.OpSet, error) {
	k := grantKey{ledger: ledger, principal: principal}
	if g, ok := j.grants[k]; ok {
		return g.Ops, nil
	}
	return j.base.grants[k].Ops, nil
}

func (j *journal) PutGrant(_ context.Context, g access.Grant) error {
	if err := j.writable(); err != nil {
		return err
	}
	j.grants[grantKey{ledger: g.Ledger, principal: g.Principal}] = g
	return nil
}

func (j *journal) ListGrants(_ context.Context, ledger access.Ledger) ([]access.Grant, error) {
	var out []access.Grant
	for k, g := range merged(j.base.grants, j.grants) {
		if k.ledger == ledger && g.Ops != 0 {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Principal < out[b].Principal })
	return out, nil
}
