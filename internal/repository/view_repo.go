package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oggyb/matchbot/internal/db"
)

// ViewRepository records which profiles a viewer has already been shown.
type ViewRepository struct {
	db *gorm.DB
}

func NewViewRepository(database *gorm.DB) *ViewRepository {
	return &ViewRepository{db: database}
}

// Record stores a view. A repeated view of the same profile is a no-op.
func (r *ViewRepository) Record(ctx context.Context, viewerUserID, profileID uint64) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "viewer_user_id"}, {Name: "profile_id"}},
			DoNothing: true,
		}).
		Create(&db.View{ViewerUserID: viewerUserID, ProfileID: profileID}).Error
}

// Reset forgets a viewer's history so exhausted pools refill.
func (r *ViewRepository) Reset(ctx context.Context, viewerUserID uint64) error {
	return r.db.WithContext(ctx).Where("viewer_user_id = ?", viewerUserID).Delete(&db.View{}).Error
}
