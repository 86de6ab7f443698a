package market

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/R3E-Network/kozak_economy/internal/app/domain/address"
	domain "github.com/R3E-Network/kozak_economy/internal/app/domain/market"
	"github.com/R3E-Network/kozak_economy/internal/app/events"
	"github.com/R3E-Network/kozak_economy/internal/app/ledger"
	"github.com/R3E-Network/kozak_economy/internal/app/storage"
)

// List moves the seller's item into escrow and opens a listing for it.
func (s *Service) List(ctx context.Context, seller address.Address, itemID, price uint64) (listing domain.Listing, err error) {
	start := time.Now()
	defer func() { observe("list", start, err) }()

	if price == 0 {
		return domain.Listing{}, ErrInvalidPrice
	}
	err = s.store.Update(ctx, func(ctx context.Context, tx storage.Tx) error {
		active, err := tx.ActiveListingForItem(ctx, itemID)
		switch {
		case err == nil:
			if active.Seller.Equal(seller) {
				return fmt.Errorf("%w: item %d in listing %d", ErrAlreadyListed, itemID, active.ID)
			}
			return fmt.Errorf("%w: item %d", ErrNotOwner, itemID)
		case !errors.Is(err, storage.ErrNotFound):
			return err
		}

		holder, err := s.ledgers.Items.OwnerOf(ctx, tx, itemID)
		if err != nil {
			return err
		}
		if !holder.Equal(seller) {
			return fmt.Errorf("%w: item %d", ErrNotOwner, itemID)
		}
		if err := s.ledgers.Items.Transfer(ctx, tx, seller, seller, s.self, itemID); err != nil {
			return err
		}
		now := s.now()
		listing, err = tx.CreateListing(ctx, domain.Listing{
			ItemID:    itemID,
			Seller:    seller,
			Price:     price,
			Status:    domain.StatusActive,
			CreatedAt: now,
			UpdatedAt: now,
		})
		return err
	})
	if err != nil {
		return domain.Listing{}, err
	}

	s.log.WithField("listing_id", listing.ID).
		WithField("item_id", itemID).
		WithField("seller", seller.String()).
		Infof("listed for %d", price)
	events.Emit(ctx, s.pub, s.log, events.New(events.KindListingCreated, seller, map[string]interface{}{
		"listing_id": listing.ID,
		"item_id":    itemID,
		"price":      price,
	}))
	return listing, nil
}

// Cancel closes an active listing and returns the item to its seller.
func (s *Service) Cancel(ctx context.Context, caller address.Address, listingID uint64) (listing domain.Listing, err error) {
	start := time.Now()
	defer func() { observe("cancel", start, err) }()

	err = s.store.Update(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		listing, err = s.load(ctx, tx, listingID)
		if err != nil {
			return err
		}
		if !listing.Seller.Equal(caller) {
			return fmt.Errorf("%w: listing %d", ErrNotSeller, listingID)
		}
		if err := s.advance(&listing, domain.EventCancel); err != nil {
			return err
		}
		if err := s.ledgers.Items.Transfer(ctx, tx, s.self, s.self, listing.Seller, listing.ItemID); err != nil {
			return err
		}
		listing, err = tx.UpdateListing(ctx, listing)
		return err
	})
	if err != nil {
		return domain.Listing{}, err
	}

	s.log.WithField("listing_id", listingID).Info("listing cancelled")
	events.Emit(ctx, s.pub, s.log, events.New(events.KindListingCancelled, caller, map[string]interface{}{
		"listing_id": listingID,
		"item_id":    listing.ItemID,
	}))
	return listing, nil
}

// Buy settles an active listing: the buyer pays the price (less the fee to
// the seller, the fee to the fee recipient) and receives the item from
// escrow. Concurrent buyers are ordered by the store; only the first wins.
func (s *Service) Buy(ctx context.Context, buyer address.Address, listingID uint64) (listing domain.Listing, err error) {
	start := time.Now()
	defer func() { observe("buy", start, err) }()

	err = s.store.Update(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		listing, err = s.load(ctx, tx, listingID)
		if err != nil {
			return err
		}
		if listing.Status != domain.StatusActive {
			return fmt.Errorf("%w: listing %d is %s", ErrNotActive, listingID, listing.Status)
		}
		if listing.Seller.Equal(buyer) {
			return fmt.Errorf("%w: listing %d", ErrInvalidBuyer, listingID)
		}
		funds, err := s.ledgers.Currency.BalanceOf(ctx, tx, buyer)
		if err != nil {
			return err
		}
		if funds < listing.Price {
			return fmt.Errorf("%w: price %d, balance %d", ledger.ErrInsufficientFunds, listing.Price, funds)
		}

		fee := Fee(listing.Price, s.feeBps)
		if proceeds := listing.Price - fee; proceeds > 0 {
			if err := s.ledgers.Currency.Transfer(ctx, tx, buyer, buyer, listing.Seller, proceeds); err != nil {
				return err
			}
		}
		if fee > 0 {
			if err := s.ledgers.Currency.Transfer(ctx, tx, buyer, buyer, s.feeRecipient, fee); err != nil {
				return err
			}
		}
		if err := s.ledgers.Items.Transfer(ctx, tx, s.self, s.self, buyer, listing.ItemID); err != nil {
			return err
		}
		if s.reward > 0 {
			if err := s.ledgers.Currency.Mint(ctx, tx, s.self, listing.Seller, s.reward); err != nil {
				return err
			}
		}

		if err := s.advance(&listing, domain.EventBuy); err != nil {
			return err
		}
		listing.Buyer = buyer
		listing.Fee = fee
		listing, err = tx.UpdateListing(ctx, listing)
		return err
	})
	if err != nil {
		return domain.Listing{}, err
	}

	s.log.WithField("listing_id", listingID).
		WithField("buyer", buyer.String()).
		Infof("listing sold for %d (fee %d)", listing.Price, listing.Fee)
	events.Emit(ctx, s.pub, s.log, events.New(events.KindListingSold, buyer, map[string]interface{}{
		"listing_id": listingID,
		"item_id":    listing.ItemID,
		"seller":     listing.Seller.String(),
		"price":      listing.Price,
		"fee":        listing.Fee,
	}))
	return listing, nil
}

// Listing returns one listing.
func (s *Service) Listing(ctx context.Context, id uint64) (domain.Listing, error) {
	var out domain.Listing
	err := s.store.View(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		out, err = s.load(ctx, tx, id)
		return err
	})
	return out, err
}

// Listings returns the listings matching filter, ordered by id.
func (s *Service) Listings(ctx context.Context, filter domain.Filter) ([]domain.Listing, error) {
	var out []domain.Listing
	err := s.store.View(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		out, err = tx.ListListings(ctx, filter)
		return err
	})
	return out, err
}

func (s *Service) load(ctx context.Context, tx storage.ListingStore, id uint64) (domain.Listing, error) {
	l, err := tx.GetListing(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return domain.Listing{}, fmt.Errorf("%w: %d", ErrListingNotFound, id)
	}
	return l, err
}

func (s *Service) advance(l *domain.Listing, ev domain.Event) error {
	if err := l.Apply(ev, s.now()); err != nil {
		if errors.Is(err, domain.ErrIllegalTransition) {
			return fmt.Errorf("%w: listing %d is %s", ErrNotActive, l.ID, l.Status)
		}
		return err
	}
	return nil
}
