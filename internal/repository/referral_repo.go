package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oggyb/matchbot/internal/db"
)

// ReferralRepository stores invite codes, referral links and reward claims.
type ReferralRepository struct {
	db *gorm.DB
}

func NewReferralRepository(database *gorm.DB) *ReferralRepository {
	return &ReferralRepository{db: database}
}

// WithTx returns a copy of the repository that runs on tx.
func (r *ReferralRepository) WithTx(tx *gorm.DB) *ReferralRepository {
	return &ReferralRepository{db: tx}
}

func (r *ReferralRepository) CodeByUser(ctx context.Context, userID uint64) (*db.ReferralCode, error) {
	var c db.ReferralCode
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *ReferralRepository) CodeByValue(ctx context.Context, code string) (*db.ReferralCode, error) {
	var c db.ReferralCode
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateCode inserts a code. Collisions on either unique key surface as errors.
func (r *ReferralRepository) CreateCode(ctx context.Context, c *db.ReferralCode) error {
	return r.db.WithContext(ctx).Create(c).Error
}

// IncrementUses bumps the informational use counter of the referrer's code.
func (r *ReferralRepository) IncrementUses(ctx context.Context, referrerID uint64) error {
	return r.db.WithContext(ctx).
		Model(&db.ReferralCode{}).
		Where("user_id = ?", referrerID).
		UpdateColumn("uses", gorm.Expr("uses + 1")).Error
}

// Insert links referred to referrer. First writer wins: it reports false
// when the referred user already has a referral row.
func (r *ReferralRepository) Insert(ctx context.Context, referrerID, referredID uint64) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "referred_id"}}, DoNothing: true}).
		Create(&db.Referral{ReferrerID: referrerID, ReferredID: referredID})
	return res.RowsAffected == 1, res.Error
}

// ByReferred returns the referral row crediting a user, if any.
func (r *ReferralRepository) ByReferred(ctx context.Context, referredID uint64) (*db.Referral, error) {
	var ref db.Referral
	if err := r.db.WithContext(ctx).Where("referred_id = ?", referredID).First(&ref).Error; err != nil {
		return nil, err
	}
	return &ref, nil
}

// MarkCompleted flips completed on the row for referred. It reports false
// when there is no such row or it was already completed.
func (r *ReferralRepository) MarkCompleted(ctx context.Context, referredID uint64) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&db.Referral{}).
		Where("referred_id = ? AND completed = ?", referredID, false).
		Update("completed", true)
	return res.RowsAffected == 1, res.Error
}

func (r *ReferralRepository) CountCompleted(ctx context.Context, referrerID uint64) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&db.Referral{}).
		Where("referrer_id = ? AND completed = ?", referrerID, true).
		Count(&n).Error
	return n, err
}

func (r *ReferralRepository) CountTotal(ctx context.Context, referrerID uint64) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&db.Referral{}).Where("referrer_id = ?", referrerID).Count(&n).Error
	return n, err
}

// ClaimReward inserts the referrer's reward claim. Exactly one caller ever
// gets true; every later attempt is a no-op.
func (r *ReferralRepository) ClaimReward(ctx context.Context, referrerID uint64) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "referrer_id"}}, DoNothing: true}).
		Create(&db.ReferralReward{ReferrerID: referrerID})
	return res.RowsAffected == 1, res.Error
}

// AttachGrant records which premium grant paid out the claim.
func (r *ReferralRepository) AttachGrant(ctx context.Context, referrerID, grantID uint64) error {
	return r.db.WithContext(ctx).
		Model(&db.ReferralReward{}).
		Where("referrer_id = ?", referrerID).
		Update("grant_id", grantID).Error
}

func (r *ReferralRepository) HasReward(ctx context.Context, referrerID uint64) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&db.ReferralReward{}).Where("referrer_id = ?", referrerID).Count(&n).Error
	return n > 0, err
}

// MarkRewardClaimed flags all of a referrer's completed rows.
func (r *ReferralRepository) MarkRewardClaimed(ctx context.Context, referrerID uint64) error {
	return r.db.WithContext(ctx).
		Model(&db.Referral{}).
		Where("referrer_id = ? AND completed = ?", referrerID, true).
		Update("reward_claimed", true).Error
}
