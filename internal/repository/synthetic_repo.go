package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oggyb/matchbot/internal/db"
)

// SyntheticRepository manages the scheduler settings of operator-controlled profiles.
type SyntheticRepository struct {
	db *gorm.DB
}

func NewSyntheticRepository(database *gorm.DB) *SyntheticRepository {
	return &SyntheticRepository{db: database}
}

// SyntheticActor is an active synthetic profile as the scheduler sees it.
type SyntheticActor struct {
	ProfileID    uint64
	UserID       uint64
	Name         string
	LikeInterval int
	LastRunAt    *time.Time
}

// Mark turns an existing profile into a synthetic one, or updates its settings.
func (r *SyntheticRepository) Mark(ctx context.Context, profileID uint64, likeInterval int, active bool) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&db.Profile{}).Where("id = ?", profileID).Update("synthetic", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "profile_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"active", "like_interval"}),
		}).Create(&db.SyntheticProfile{
			ProfileID:    profileID,
			Active:       active,
			LikeInterval: likeInterval,
		}).Error
	})
}

// SetActive toggles a synthetic profile's participation in auto-liking.
func (r *SyntheticRepository) SetActive(ctx context.Context, profileID uint64, active bool) error {
	res := r.db.WithContext(ctx).
		Model(&db.SyntheticProfile{}).
		Where("profile_id = ?", profileID).
		Update("active", active)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListActive returns synthetic profiles that are toggled on and whose
// profile is active, in id order.
func (r *SyntheticRepository) ListActive(ctx context.Context) ([]SyntheticActor, error) {
	var rows []SyntheticActor
	err := r.db.WithContext(ctx).
		Table("synthetic_profiles s").
		Joins("JOIN profiles p ON p.id = s.profile_id").
		Where("s.active = ? AND p.active = ? AND p.synthetic = ?", true, true, true).
		Select("s.profile_id AS profile_id, p.user_id AS user_id, p.name AS name, s.like_interval AS like_interval, s.last_run_at AS last_run_at").
		Order("s.profile_id").
		Scan(&rows).Error
	return rows, err
}

// TouchRun records when the scheduler last processed a synthetic profile.
func (r *SyntheticRepository) TouchRun(ctx context.Context, profileID uint64, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&db.SyntheticProfile{}).
		Where("profile_id = ?", profileID).
		Update("last_run_at", at).Error
}
