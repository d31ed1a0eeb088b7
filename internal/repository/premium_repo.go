package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/oggyb/matchbot/internal/db"
)

// PremiumRepository stores premium grants and Stars payments.
type PremiumRepository struct {
	db *gorm.DB
}

func NewPremiumRepository(database *gorm.DB) *PremiumRepository {
	return &PremiumRepository{db: database}
}

// WithTx returns a copy of the repository that runs on tx.
func (r *PremiumRepository) WithTx(tx *gorm.DB) *PremiumRepository {
	return &PremiumRepository{db: tx}
}

func (r *PremiumRepository) CreateGrant(ctx context.Context, g *db.PremiumGrant) error {
	return r.db.WithContext(ctx).Create(g).Error
}

// ActiveGrant returns the latest active grant that has not expired at now,
// or nil when the user has none.
func (r *PremiumRepository) ActiveGrant(ctx context.Context, userID uint64, now time.Time) (*db.PremiumGrant, error) {
	var g db.PremiumGrant
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND active = ? AND expires_at > ?", userID, true, now).
		Order("expires_at DESC, id DESC").
		First(&g).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (r *PremiumRepository) ListGrants(ctx context.Context, userID uint64) ([]db.PremiumGrant, error) {
	var grants []db.PremiumGrant
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("id").Find(&grants).Error
	return grants, err
}

func (r *PremiumRepository) CreatePayment(ctx context.Context, p *db.StarPayment) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *PremiumRepository) PaymentByPayload(ctx context.Context, payload string) (*db.StarPayment, error) {
	var p db.StarPayment
	if err := r.db.WithContext(ctx).Where("payload = ?", payload).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// CompletePayment moves a pending payment to completed. Only the first
// caller gets true, so a redelivered update cannot grant twice.
func (r *PremiumRepository) CompletePayment(ctx context.Context, payload, telegramChargeID, providerChargeID string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&db.StarPayment{}).
		Where("payload = ? AND status = ?", payload, db.PaymentPending).
		Updates(map[string]any{
			"status":             db.PaymentCompleted,
			"telegram_charge_id": telegramChargeID,
			"provider_charge_id": providerChargeID,
		})
	return res.RowsAffected == 1, res.Error
}
