package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/openequity/Settlement-Backend/internal/apperrors"
	"github.com/openequity/Settlement-Backend/internal/model"
	"github.com/openequity/Settlement-Backend/internal/money"
)

type TenderRepository struct {
	db *sql.DB
}

func NewTenderRepository(db *sql.DB) *TenderRepository {
	return &TenderRepository{db: db}
}

// CreateOffer inserts a tender offer.
func (r *TenderRepository) CreateOffer(o model.TenderOffer) error {
	query := `
		INSERT INTO tender_offer
		(id, company_id, buyback_type, starts_at, ends_at, minimum_valuation_cents,
		total_amount_cents, accepted_price_cents, starting_price_per_share_cents, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Exec(query,
		o.ID,
		o.CompanyID,
		o.BuybackType,
		FormatTime(o.StartsAt),
		FormatTime(o.EndsAt),
		o.MinimumValuation.Cents(),
		o.TotalAmount.Cents(),
		o.AcceptedPriceCents.Cents(),
		o.StartingPricePerShareCents.Cents(),
		FormatTime(o.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert tender_offer: %w", err)
	}
	return nil
}

// GetOffer retrieves one offer by id.
func (r *TenderRepository) GetOffer(id string) (model.TenderOffer, error) {
	query := `
		SELECT id, company_id, buyback_type, starts_at, ends_at, minimum_valuation_cents,
		total_amount_cents, accepted_price_cents, starting_price_per_share_cents, cleared_at, created_at
		FROM tender_offer
		WHERE id = ?
	`
	var o model.TenderOffer
	var minValuation, total, accepted, starting int64
	var startsStr, endsStr, createdStr string
	var clearedStr sql.NullString

	err := r.db.QueryRow(query, id).Scan(
		&o.ID,
		&o.CompanyID,
		&o.BuybackType,
		&startsStr,
		&endsStr,
		&minValuation,
		&total,
		&accepted,
		&starting,
		&clearedStr,
		&createdStr,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return model.TenderOffer{}, apperrors.ErrTenderOfferNotFound
	}
	if err != nil {
		return model.TenderOffer{}, fmt.Errorf("failed to scan tender_offer results: %w", err)
	}

	o.MinimumValuation = money.FromCents(minValuation)
	o.TotalAmount = money.FromCents(total)
	o.AcceptedPriceCents = money.FromCents(accepted)
	o.StartingPricePerShareCents = money.FromCents(starting)

	if o.StartsAt, err = ParseTime(startsStr); err != nil {
		return model.TenderOffer{}, err
	}
	if o.EndsAt, err = ParseTime(endsStr); err != nil {
		return model.TenderOffer{}, err
	}
	if o.CreatedAt, err = ParseTime(createdStr); err != nil {
		return model.TenderOffer{}, err
	}
	if clearedStr.Valid && clearedStr.String != "" {
		if o.ClearedAt, err = ParseTime(clearedStr.String); err != nil {
			return model.TenderOffer{}, err
		}
	}
	return o, nil
}

// SetAcceptedPrice records the clearing outcome. The accepted price is set
// once: the update only matches an offer that has not cleared yet, so a
// recomputation attempt affects zero rows.
func (r *TenderRepository) SetAcceptedPrice(offerID string, price money.Money, clearedAt string) error {
	res, err := r.db.Exec(
		`UPDATE tender_offer SET accepted_price_cents = ?, cleared_at = ? WHERE id = ? AND cleared_at IS NULL`,
		price.Cents(), clearedAt, offerID,
	)
	if err != nil {
		return fmt.Errorf("failed to set accepted price: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read accepted price row count: %w", err)
	}
	if affected == 0 {
		return apperrors.ErrOfferCleared
	}
	return nil
}

// CreateBid inserts a bid.
func (r *TenderRepository) CreateBid(b model.TenderOfferBid) error {
	query := `
		INSERT INTO tender_offer_bid
		(id, tender_offer_id, investor_id, number_of_shares, share_price_cents, share_class, accepted_shares, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Exec(query,
		b.ID,
		b.TenderOfferID,
		b.InvestorID,
		b.NumberOfShares,
		b.SharePriceCents.Cents(),
		b.ShareClass,
		b.AcceptedShares,
		FormatTime(b.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert tender_offer_bid: %w", err)
	}
	return nil
}

// GetBid retrieves one bid by id.
func (r *TenderRepository) GetBid(id string) (model.TenderOfferBid, error) {
	query := `
		SELECT id, tender_offer_id, investor_id, number_of_shares, share_price_cents,
		share_class, accepted_shares, created_at
		FROM tender_offer_bid
		WHERE id = ?
	`
	row := r.db.QueryRow(query, id)
	b, err := scanBid(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.TenderOfferBid{}, apperrors.ErrBidNotFound
	}
	return b, err
}

// GetBidsForOffer retrieves an offer's bids in creation order.
func (r *TenderRepository) GetBidsForOffer(offerID string) ([]model.TenderOfferBid, error) {
	query := `
		SELECT id, tender_offer_id, investor_id, number_of_shares, share_price_cents,
		share_class, accepted_shares, created_at
		FROM tender_offer_bid
		WHERE tender_offer_id = ?
		ORDER BY created_at ASC, id ASC
	`
	rows, err := r.db.Query(query, offerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tender_offer_bid table: %w", err)
	}
	defer rows.Close()

	var bids []model.TenderOfferBid
	for rows.Next() {
		b, err := scanBid(rows)
		if err != nil {
			return nil, err
		}
		bids = append(bids, b)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tender_offer_bid table: %w", err)
	}
	return bids, nil
}

func scanBid(s scanner) (model.TenderOfferBid, error) {
	var b model.TenderOfferBid
	var price int64
	var createdStr string

	err := s.Scan(&b.ID, &b.TenderOfferID, &b.InvestorID, &b.NumberOfShares, &price, &b.ShareClass, &b.AcceptedShares, &createdStr)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.TenderOfferBid{}, err
		}
		return model.TenderOfferBid{}, fmt.Errorf("failed to scan tender_offer_bid results: %w", err)
	}

	b.SharePriceCents = money.FromCents(price)
	b.CreatedAt, err = ParseTime(createdStr)
	if err != nil {
		return model.TenderOfferBid{}, err
	}
	return b, nil
}

// SetAcceptedShares records the cleared share count for one bid.
func (r *TenderRepository) SetAcceptedShares(bidID string, shares int64) error {
	_, err := r.db.Exec(`UPDATE tender_offer_bid SET accepted_shares = ? WHERE id = ?`, shares, bidID)
	if err != nil {
		return fmt.Errorf("failed to set accepted shares: %w", err)
	}
	return nil
}

// DeleteBid removes a withdrawn bid. Withdrawal validity (offer open,
// clearing not run) is the service layer's check.
func (r *TenderRepository) DeleteBid(bidID string) error {
	res, err := r.db.Exec(`DELETE FROM tender_offer_bid WHERE id = ?`, bidID)
	if err != nil {
		return fmt.Errorf("failed to delete tender_offer_bid: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read bid delete row count: %w", err)
	}
	if affected == 0 {
		return apperrors.ErrBidNotFound
	}
	return nil
}
