package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/R3E-Network/kozak_economy/internal/app/domain/access"
	"github.com/R3E-Network/kozak_economy/internal/app/domain/address"
	"github.com/R3E-Network/kozak_economy/internal/app/domain/item"
	"github.com/R3E-Network/kozak_economy/internal/app/domain/market"
	"github.com/R3E-Network/kozak_economy/internal/app/domain/resource"
	"github.com/R3E-Network/kozak_economy/internal/app/storage"
)

// errRange is returned for values the BIGINT columns cannot hold.
var errRange = errors.New("value exceeds storage range")

type txn struct {
	tx       *sqlx.Tx
	readOnly bool
}

var _ storage.Tx = (*txn)(nil)

func (t *txn) writable() error {
	if t.readOnly {
		return storage.ErrReadOnly
	}
	return nil
}

func (t *txn) get(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return t.tx.GetContext(ctx, dest, t.tx.Rebind(query), args...)
}

func (t *txn) sel(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return t.tx.SelectContext(ctx, dest, t.tx.Rebind(query), args...)
}

func (t *txn) exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return t.tx.ExecContext(ctx, t.tx.Rebind(query), args...)
}

func i64(v uint64) (int64, error) {
	if v > math.MaxInt64 {
		return 0, fmt.Errorf("%w: %d", errRange, v)
	}
	return int64(v), nil
}

func u64(v int64) uint64 {
	if v < 0 {
		return 0
	}
	return uint64(v)
}

func utc(t time.Time) time.Time { return t.UTC() }

func (t *txn) nextID(ctx context.Context, name string) (uint64, error) {
	var next int64
	err := t.get(ctx, &next, `SELECT next_value FROM kozak_sequences WHERE name = ?`, name)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := t.exec(ctx, `INSERT INTO kozak_sequences (name, next_value) VALUES (?, ?)`, name, 2); err != nil {
			return 0, err
		}
		return 1, nil
	case err != nil:
		return 0, err
	}
	if _, err := t.exec(ctx, `UPDATE kozak_sequences SET next_value = ? WHERE name = ?`, next+1, name); err != nil {
		return 0, err
	}
	return u64(next), nil
}

// --- ResourceStore -----------------------------------------------------------

func (t *txn) ResourceBalance(ctx context.Context, owner address.Address, rt resource.Type) (uint64, error) {
	var amount int64
	err := t.get(ctx, &amount, `SELECT amount FROM kozak_resource_balances WHERE owner = ? AND resource = ?`, owner.String(), int(rt))
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return u64(amount), err
}

func (t *txn) SetResourceBalance(ctx context.Context, owner address.Address, rt resource.Type, amount uint64) error {
	if err := t.writable(); err != nil {
		return err
	}
	if amount == 0 {
		_, err := t.exec(ctx, `DELETE FROM kozak_resource_balances WHERE owner = ? AND resource = ?`, owner.String(), int(rt))
		return err
	}
	v, err := i64(amount)
	if err != nil {
		return err
	}
	_, err = t.exec(ctx, `
		INSERT INTO kozak_resource_balances (owner, resource, amount) VALUES (?, ?, ?)
		ON CONFLICT (owner, resource) DO UPDATE SET amount = excluded.amount
	`, owner.String(), int(rt), v)
	return err
}

type resourceRow struct {
	Resource int   `db:"resource"`
	Amount   int64 `db:"amount"`
}

func (t *txn) ResourceBalances(ctx context.Context, owner address.Address) (map[resource.Type]uint64, error) {
	var rows []resourceRow
	if err := t.sel(ctx, &rows, `SELECT resource, amount FROM kozak_resource_balances WHERE owner = ?`, owner.String()); err != nil {
		return nil, err
	}
	out := make(map[resource.Type]uint64, len(rows))
	for _, r := range rows {
		out[resource.Type(r.Resource)] = u64(r.Amount)
	}
	return out, nil
}

func (t *txn) ResourceSupply(ctx context.Context) (map[resource.Type]uint64, error) {
	var rows []resourceRow
	if err := t.sel(ctx, &rows, `SELECT resource, SUM(amount) AS amount FROM kozak_resource_balances GROUP BY resource`); err != nil {
		return nil, err
	}
	out := make(map[resource.Type]uint64, len(rows))
	for _, r := range rows {
		out[resource.Type(r.Resource)] = u64(r.Amount)
	}
	return out, nil
}

// --- ItemStore ---------------------------------------------------------------

type itemRow struct {
	ID        int64     `db:"id"`
	Type      int64     `db:"item_type"`
	Owner     string    `db:"owner"`
	CreatedAt time.Time `db:"created_at"`
}

func (r itemRow) model() item.Item {
	return item.Item{ID: u64(r.ID), Type: item.Type(r.Type), Owner: address.Address(r.Owner), CreatedAt: utc(r.CreatedAt)}
}

const itemColumns = `id, item_type, owner, created_at`

func (t *txn) CreateItem(ctx context.Context, it item.Item) (item.Item, error) {
	if err := t.writable(); err != nil {
		return item.Item{}, err
	}
	id, err := t.nextID(ctx, "item")
	if err != nil {
		return item.Item{}, err
	}
	it.ID = id
	it.CreatedAt = utc(it.CreatedAt)
	_, err = t.exec(ctx, `INSERT INTO kozak_items (`+itemColumns+`) VALUES (?, ?, ?, ?)`,
		int64(it.ID), int64(it.Type), it.Owner.String(), it.CreatedAt)
	if err != nil {
		return item.Item{}, err
	}
	return it, nil
}

func (t *txn) GetItem(ctx context.Context, id uint64) (item.Item, error) {
	var row itemRow
	err := t.get(ctx, &row, `SELECT `+itemColumns+` FROM kozak_items WHERE id = ?`, int64(id))
	if errors.Is(err, sql.ErrNoRows) {
		return item.Item{}, storage.ErrNotFound
	}
	if err != nil {
		return item.Item{}, err
	}
	return row.model(), nil
}

func (t *txn) UpdateItemOwner(ctx context.Context, id uint64, owner address.Address) error {
	if err := t.writable(); err != nil {
		return err
	}
	res, err := t.exec(ctx, `UPDATE kozak_items SET owner = ? WHERE id = ?`, owner.String(), int64(id))
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (t *txn) ListItems(ctx context.Context, owner address.Address) ([]item.Item, error) {
	var rows []itemRow
	if err := t.sel(ctx, &rows, `SELECT `+itemColumns+` FROM kozak_items WHERE owner = ? ORDER BY id`, owner.String()); err != nil {
		return nil, err
	}
	out := make([]item.Item, len(rows))
	for i, r := range rows {
		out[i] = r.model()
	}
	return out, nil
}

func (t *txn) CountItems(ctx context.Context, owner address.Address) (uint64, error) {
	var n int64
	err := t.get(ctx, &n, `SELECT COUNT(*) FROM kozak_items WHERE owner = ?`, owner.String())
	return u64(n), err
}

func (t *txn) ItemSupply(ctx context.Context) (uint64, error) {
	var n int64
	err := t.get(ctx, &n, `SELECT COUNT(*) FROM kozak_items`)
	return u64(n), err
}

// --- CurrencyStore -----------------------------------------------------------

func (t *txn) CurrencyBalance(ctx context.Context, owner address.Address) (uint64, error) {
	var amount int64
	err := t.get(ctx, &amount, `SELECT amount FROM kozak_currency_balances WHERE owner = ?`, owner.String())
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return u64(amount), err
}

func (t *txn) SetCurrencyBalance(ctx context.Context, owner address.Address, amount uint64) error {
	if err := t.writable(); err != nil {
		return err
	}
	if amount == 0 {
		_, err := t.exec(ctx, `DELETE FROM kozak_currency_balances WHERE owner = ?`, owner.String())
		return err
	}
	v, err := i64(amount)
	if err != nil {
		return err
	}
	_, err = t.exec(ctx, `
		INSERT INTO kozak_currency_balances (owner, amount) VALUES (?, ?)
		ON CONFLICT (owner) DO UPDATE SET amount = excluded.amount
	`, owner.String(), v)
	return err
}

func (t *txn) CurrencySupply(ctx context.Context) (uint64, error) {
	var total sql.NullInt64
	err := t.get(ctx, &total, `SELECT SUM(amount) FROM kozak_currency_balances`)
	return u64(total.Int64), err
}

// --- ListingStore ------------------------------------------------------------

type listingRow struct {
	ID        int64     `db:"id"`
	ItemID    int64     `db:"item_id"`
	Seller    string    `db:"seller"`
	Price     int64     `db:"price"`
	Status    string    `db:"status"`
	Buyer     string    `db:"buyer"`
	Fee       int64     `db:"fee"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r listingRow) model() market.Listing {
	return market.Listing{
		ID:        u64(r.ID),
		ItemID:    u64(r.ItemID),
		Seller:    address.Address(r.Seller),
		Price:     u64(r.Price),
		Status:    market.Status(r.Status),
		Buyer:     address.Address(r.Buyer),
		Fee:       u64(r.Fee),
		CreatedAt: utc(r.CreatedAt),
		UpdatedAt: utc(r.UpdatedAt),
	}
}

const listingColumns = `id, item_id, seller, price, status, buyer, fee, created_at, updated_at`

func (t *txn) CreateListing(ctx context.Context, l market.Listing) (market.Listing, error) {
	if err := t.writable(); err != nil {
		return market.Listing{}, err
	}
	price, err := i64(l.Price)
	if err != nil {
		return market.Listing{}, err
	}
	id, err := t.nextID(ctx, "listing")
	if err != nil {
		return market.Listing{}, err
	}
	l.ID = id
	l.CreatedAt, l.UpdatedAt = utc(l.CreatedAt), utc(l.UpdatedAt)
	_, err = t.exec(ctx, `INSERT INTO kozak_listings (`+listingColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		int64(l.ID), int64(l.ItemID), l.Seller.String(), price, string(l.Status), l.Buyer.String(), int64(l.Fee), l.CreatedAt, l.UpdatedAt)
	if err != nil {
		return market.Listing{}, err
	}
	return l, nil
}

func (t *txn) UpdateListing(ctx context.Context, l market.Listing) (market.Listing, error) {
	if err := t.writable(); err != nil {
		return market.Listing{}, err
	}
	fee, err := i64(l.Fee)
	if err != nil {
		return market.Listing{}, err
	}
	l.UpdatedAt = utc(l.UpdatedAt)
	res, err := t.exec(ctx, `UPDATE kozak_listings SET status = ?, buyer = ?, fee = ?, updated_at = ? WHERE id = ?`,
		string(l.Status), l.Buyer.String(), fee, l.UpdatedAt, int64(l.ID))
	if err != nil {
		return market.Listing{}, err
	}
	if err := requireRow(res); err != nil {
		return market.Listing{}, err
	}
	return t.GetListing(ctx, l.ID)
}

func (t *txn) GetListing(ctx context.Context, id uint64) (market.Listing, error) {
	var row listingRow
	err := t.get(ctx, &row, `SELECT `+listingColumns+` FROM kozak_listings WHERE id = ?`, int64(id))
	if errors.Is(err, sql.ErrNoRows) {
		return market.Listing{}, storage.ErrNotFound
	}
	if err != nil {
		return market.Listing{}, err
	}
	return row.model(), nil
}

func (t *txn) ActiveListingForItem(ctx context.Context, itemID uint64) (market.Listing, error) {
	var row listingRow
	err := t.get(ctx, &row, `SELECT `+listingColumns+` FROM kozak_listings WHERE item_id = ? AND status = ?`,
		int64(itemID), string(market.StatusActive))
	if errors.Is(err, sql.ErrNoRows) {
		return market.Listing{}, storage.ErrNotFound
	}
	if err != nil {
		return market.Listing{}, err
	}
	return row.model(), nil
}

func (t *txn) ListListings(ctx context.Context, filter market.Filter) ([]market.Listing, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Seller != "" {
		where = append(where, "seller = ?")
		args = append(args, filter.Seller.String())
	}
	if filter.ItemID != 0 {
		where = append(where, "item_id = ?")
		args = append(args, int64(filter.ItemID))
	}
	query := `SELECT ` + listingColumns + ` FROM kozak_listings`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY id`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	var rows []listingRow
	if err := t.sel(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	out := make([]market.Listing, len(rows))
	for i, r := range rows {
		out[i] = r.model()
	}
	return out, nil
}

// --- GrantStore --------------------------------------------------------------

type grantRow struct {
	Ledger    string    `db:"ledger"`
	Principal string    `db:"principal"`
	Ops       int       `db:"ops"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (t *txn) Grants(ctx context.Context, ledger access.Ledger, principal address.Address) (access.OpSet, error) {
	var ops int
	err := t.get(ctx, &ops, `SELECT ops FROM kozak_grants WHERE ledger = ? AND principal = ?`, string(ledger), principal.String())
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return access.OpSet(ops), err
}

func (t *txn) PutGrant(ctx context.Context, g access.Grant) error {
	if err := t.writable(); err != nil {
		return err
	}
	if g.Ops == 0 {
		_, err := t.exec(ctx, `DELETE FROM kozak_grants WHERE ledger = ? AND principal = ?`, string(g.Ledger), g.Principal.String())
		return err
	}
	updated := g.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	_, err := t.exec(ctx, `
		INSERT INTO kozak_grants (ledger, principal, ops, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (ledger, principal) DO UPDATE SET ops = excluded.ops, updated_at = excluded.updated_at
	`, string(g.Ledger), g.Principal.String(), int(g.Ops), utc(updated))
	return err
}

func (t *txn) ListGrants(ctx context.Context, ledger access.Ledger) ([]access.Grant, error) {
	var rows []grantRow
	if err := t.sel(ctx, &rows, `SELECT ledger, principal, ops, updated_at FROM kozak_grants WHERE ledger = ? ORDER BY principal`, string(ledger)); err != nil {
		return nil, err
	}
	out := make([]access.Grant, len(rows))
	for i, r := range rows {
		out[i] = access.Grant{
			Ledger:    access.Ledger(r.Ledger),
			Principal: address.Address(r.Principal),
			Ops:       access.OpSet(r.Ops),
			UpdatedAt: utc(r.UpdatedAt),
		}
	}
	return out, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}
