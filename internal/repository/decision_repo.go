package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oggyb/matchbot/internal/db"
)

// DecisionRepository provides data access methods for the Decision model.
// It encapsulates all queries related to likes/dislikes between users and profiles.
type DecisionRepository struct {
	db *gorm.DB
}

// NewDecisionRepository creates a new repository bound to the given DB connection.
func NewDecisionRepository(database *gorm.DB) *DecisionRepository {
	return &DecisionRepository{db: database}
}

// WithTx returns a copy of the repository that runs on tx.
func (r *DecisionRepository) WithTx(tx *gorm.DB) *DecisionRepository {
	return &DecisionRepository{db: tx}
}

// Upsert inserts or updates the decision made by actor on target.
//
// Behavior:
//   - If (actor_user_id, target_profile_id) exists → type, mutual and
//     updated_at are overwritten; created_at is kept.
//   - If it doesn't exist → a new row is inserted.
//   - Composite PK ensures overwrite guarantee.
//
// Example:
//
//	repo.Upsert(ctx, 1, 2, db.DecisionLike, false) // user 1 liked profile 2
func (r *DecisionRepository) Upsert(
	ctx context.Context,
	actorUserID, targetProfileID uint64,
	decisionType string,
	mutual bool,
) error {
	decision := db.Decision{
		ActorUserID:     actorUserID,
		TargetProfileID: targetProfileID,
		Type:            decisionType,
		Mutual:          mutual,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "actor_user_id"}, {Name: "target_profile_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"type", "mutual", "updated_at"}),
		}).
		Create(&decision).Error
}

// InsertIfAbsent records a decision only when the pair has none yet.
// It reports whether a row was inserted.
func (r *DecisionRepository) InsertIfAbsent(
	ctx context.Context,
	actorUserID, targetProfileID uint64,
	decisionType string,
) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "actor_user_id"}, {Name: "target_profile_id"}},
			DoNothing: true,
		}).
		Create(&db.Decision{
			ActorUserID:     actorUserID,
			TargetProfileID: targetProfileID,
			Type:            decisionType,
		})
	return res.RowsAffected == 1, res.Error
}

// SetMutual flips the mutual flag on an existing decision.
func (r *DecisionRepository) SetMutual(ctx context.Context, actorUserID, targetProfileID uint64, mutual bool) error {
	return r.db.WithContext(ctx).
		Model(&db.Decision{}).
		Where("actor_user_id = ? AND target_profile_id = ?", actorUserID, targetProfileID).
		Updates(map[string]any{"mutual": mutual, "updated_at": time.Now().UTC()}).Error
}

// Get returns the decision for a pair, or gorm.ErrRecordNotFound.
func (r *DecisionRepository) Get(ctx context.Context, actorUserID, targetProfileID uint64) (*db.Decision, error) {
	var d db.Decision
	err := r.db.WithContext(ctx).
		Where("actor_user_id = ? AND target_profile_id = ?", actorUserID, targetProfileID).
		First(&d).Error
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// Delete removes the decision for a pair and reports whether one existed.
func (r *DecisionRepository) Delete(ctx context.Context, actorUserID, targetProfileID uint64) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("actor_user_id = ? AND target_profile_id = ?", actorUserID, targetProfileID).
		Delete(&db.Decision{})
	return res.RowsAffected > 0, res.Error
}

// HasLiked checks whether a user has liked a profile.
//
// Behavior:
//   - Returns true if there exists a decision row where actor_user_id = X,
//     target_profile_id = Y, and type = like.
//   - Used for mutual like detection in Decide.
func (r *DecisionRepository) HasLiked(
	ctx context.Context,
	actorUserID, targetProfileID uint64,
) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.Decision{}).
		Where("actor_user_id = ? AND target_profile_id = ? AND type = ?", actorUserID, targetProfileID, db.DecisionLike).
		Count(&count).Error
	return count > 0, err
}

// PendingLiker is one row of a pending-likes listing.
type PendingLiker struct {
	FromUserID uint64
	ProfileID  uint64
	TelegramID int64
	Name       string
	Age        int
	City       string
	LikedAt    time.Time
}

// pendingLikes is the shared base of the pending listing and count: likes
// on the target that are not mutual and whose liker's profile the viewer
// has not decided on.
func (r *DecisionRepository) pendingLikes(ctx context.Context, targetProfileID, viewerUserID uint64) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("decisions d").
		Joins("JOIN profiles p ON p.user_id = d.actor_user_id").
		Where("d.target_profile_id = ? AND d.type = ? AND d.mutual = ?", targetProfileID, db.DecisionLike, false).
		Where(`
			NOT EXISTS (
				SELECT 1 FROM decisions d2
				WHERE d2.actor_user_id = ?
				  AND d2.target_profile_id = p.id
			)`, viewerUserID)
}

// ListPendingLikers returns real users waiting for the viewer's response,
// oldest first. Synthetic likers are never listed.
//
// Example:
//
//	repo.ListPendingLikers(ctx, 42, 7) // likes on profile 42, owned by user 7
func (r *DecisionRepository) ListPendingLikers(ctx context.Context, targetProfileID, viewerUserID uint64) ([]PendingLiker, error) {
	var rows []PendingLiker
	err := r.pendingLikes(ctx, targetProfileID, viewerUserID).
		Joins("JOIN users u ON u.id = d.actor_user_id").
		Where("p.synthetic = ?", false).
		Select(`d.actor_user_id AS from_user_id, p.id AS profile_id, u.telegram_id AS telegram_id,
			p.name AS name, p.age AS age, p.city AS city, d.created_at AS liked_at`).
		Order("d.created_at ASC, d.actor_user_id ASC").
		Scan(&rows).Error
	return rows, err
}

// CountPendingLikers counts unanswered likes on a profile, synthetic ones included.
func (r *DecisionRepository) CountPendingLikers(ctx context.Context, targetProfileID, viewerUserID uint64) (int64, error) {
	var count int64
	err := r.pendingLikes(ctx, targetProfileID, viewerUserID).Count(&count).Error
	return count, err
}

// IsPending reports whether likerUserID's like on the target still awaits
// the viewer's answer, using the same rule as ListPendingLikers.
func (r *DecisionRepository) IsPending(ctx context.Context, likerUserID, targetProfileID, viewerUserID uint64) (bool, error) {
	var count int64
	err := r.pendingLikes(ctx, targetProfileID, viewerUserID).
		Where("d.actor_user_id = ?", likerUserID).
		Count(&count).Error
	return count > 0, err
}

// SyntheticLiker identifies a synthetic profile that liked a target.
type SyntheticLiker struct {
	UserID    uint64
	ProfileID uint64
}

// ListSyntheticLikers returns unanswered likes on a target from synthetic profiles.
func (r *DecisionRepository) ListSyntheticLikers(ctx context.Context, targetProfileID, viewerUserID uint64) ([]SyntheticLiker, error) {
	var rows []SyntheticLiker
	err := r.pendingLikes(ctx, targetProfileID, viewerUserID).
		Where("p.synthetic = ?", true).
		Select("d.actor_user_id AS user_id, p.id AS profile_id").
		Scan(&rows).Error
	return rows, err
}

// Match is a mutual like seen from one side.
type Match struct {
	ProfileID  uint64
	UserID     uint64
	TelegramID int64
	Username   string
	Name       string
	Age        int
	City       string
	MatchedAt  time.Time
}

// ListMatches returns the profiles the user is mutually matched with, newest first.
func (r *DecisionRepository) ListMatches(ctx context.Context, userID uint64) ([]Match, error) {
	var rows []Match
	err := r.db.WithContext(ctx).
		Table("decisions d").
		Joins("JOIN profiles p ON p.id = d.target_profile_id").
		Joins("JOIN users u ON u.id = p.user_id").
		Where("d.actor_user_id = ? AND d.type = ? AND d.mutual = ?", userID, db.DecisionLike, true).
		Select(`p.id AS profile_id, p.user_id AS user_id, u.telegram_id AS telegram_id, u.username AS username,
			p.name AS name, p.age AS age, p.city AS city, d.updated_at AS matched_at`).
		Order("d.updated_at DESC").
		Scan(&rows).Error
	return rows, err
}

// Counts returns the total number of decisions and mutual pairs.
func (r *DecisionRepository) Counts(ctx context.Context) (decisions, matches int64, err error) {
	if err = r.db.WithContext(ctx).Model(&db.Decision{}).Count(&decisions).Error; err != nil {
		return
	}
	err = r.db.WithContext(ctx).Model(&db.Decision{}).Where("mutual = ?", true).Count(&matches).Error
	matches /= 2
	return
}
