package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/GTDGit/gtd_bundle/internal/models"
	"github.com/GTDGit/gtd_bundle/internal/utils"
)

// CheckoutRepository handles data access for the bundle checkout audit log.
type CheckoutRepository struct {
	db *sqlx.DB
}

// NewCheckoutRepository creates a new CheckoutRepository.
func NewCheckoutRepository(db *sqlx.DB) *CheckoutRepository {
	return &CheckoutRepository{db: db}
}

// Create inserts a checkout row and fills in its id and creation time.
func (r *CheckoutRepository) Create(ctx context.Context, c *models.BundleCheckout) error {
	const q = `
        INSERT INTO bundle_checkouts (
            group_id, session_id, bundle_title, status, lines, bundle_quantity,
            total_original, final_price, supplemental_percent, voucher_code,
            discount_applied, failed_reason, created_at
        ) VALUES (
            $1,$2,$3,$4,$5,$6,
            $7,$8,$9,$10,
            $11,$12,NOW()
        ) RETURNING id, created_at`

	lines := []byte(c.Lines)
	if len(lines) == 0 {
		lines = []byte("[]")
	}
	return r.db.QueryRowxContext(ctx, q,
		c.GroupID, c.SessionID, c.BundleTitle, c.Status, lines, c.BundleQuantity,
		c.TotalOriginal, c.FinalPrice, c.SupplementalPercent, c.VoucherCode,
		c.DiscountApplied, c.FailedReason,
	).Scan(&c.ID, &c.CreatedAt)
}

// GetByGroupID returns every attempt recorded for a bundle group, oldest
// first. It returns utils.ErrCheckoutNotFound when there is none.
func (r *CheckoutRepository) GetByGroupID(ctx context.Context, groupID string) ([]models.BundleCheckout, error) {
	const q = `SELECT * FROM bundle_checkouts WHERE group_id = $1 ORDER BY id ASC`
	var out []models.BundleCheckout
	if err := r.db.SelectContext(ctx, &out, q, groupID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, utils.ErrCheckoutNotFound
		}
		return nil, err
	}
	if len(out) == 0 {
		return nil, utils.ErrCheckoutNotFound
	}
	return out, nil
}

// ListRecent returns the newest checkouts, at most limit rows (50 when
// unset, capped at 200).
func (r *CheckoutRepository) ListRecent(ctx context.Context, limit int) ([]models.BundleCheckout, error) {
	switch {
	case limit <= 0:
		limit = 50
	case limit > 200:
		limit = 200
	}
	const q = `SELECT * FROM bundle_checkouts ORDER BY created_at DESC, id DESC LIMIT $1`
	var out []models.BundleCheckout
	if err := r.db.SelectContext(ctx, &out, q, limit); err != nil {
		return nil, err
	}
	return out, nil
}
