package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oggyb/matchbot/internal/db"
)

// ProfileRepository provides data access for users, profiles, photos and
// interests, plus the candidate queries used by discovery and the scheduler.
type ProfileRepository struct {
	db *gorm.DB
}

// NewProfileRepository creates a new repository bound to the given DB connection.
func NewProfileRepository(database *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: database}
}

// WithTx returns a copy of the repository that runs on tx.
func (r *ProfileRepository) WithTx(tx *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: tx}
}

// EnsureUser returns the user for a Telegram account, creating it on first
// contact. created reports whether this call inserted the row.
//
// Behavior:
//   - Concurrent first contacts race on the unique telegram_id; the loser
//     re-reads the winner's row.
//   - A changed username is refreshed.
func (r *ProfileRepository) EnsureUser(ctx context.Context, telegramID int64, username string) (*db.User, bool, error) {
	user := db.User{TelegramID: telegramID, Username: username}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "telegram_id"}}, DoNothing: true}).
		Create(&user)
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected == 1 {
		return &user, true, nil
	}

	existing, err := r.GetUserByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, false, err
	}
	if username != "" && existing.Username != username {
		if err := r.db.WithContext(ctx).Model(existing).Update("username", username).Error; err != nil {
			return nil, false, err
		}
	}
	return existing, false, nil
}

func (r *ProfileRepository) GetUser(ctx context.Context, userID uint64) (*db.User, error) {
	var u db.User
	if err := r.db.WithContext(ctx).First(&u, userID).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *ProfileRepository) GetUserByTelegramID(ctx context.Context, telegramID int64) (*db.User, error) {
	var u db.User
	if err := r.db.WithContext(ctx).Where("telegram_id = ?", telegramID).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// Create inserts the profile with its photos and interests.
func (r *ProfileRepository) Create(ctx context.Context, p *db.Profile) error {
	return r.db.WithContext(ctx).Create(p).Error
}

// GetByID loads a profile with photos (by position) and interests.
func (r *ProfileRepository) GetByID(ctx context.Context, profileID uint64) (*db.Profile, error) {
	var p db.Profile
	err := r.preloaded(ctx).First(&p, profileID).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetByUserID loads the profile owned by a user.
func (r *ProfileRepository) GetByUserID(ctx context.Context, userID uint64) (*db.Profile, error) {
	var p db.Profile
	err := r.preloaded(ctx).Where("user_id = ?", userID).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ProfileRepository) preloaded(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Photos", func(tx *gorm.DB) *gorm.DB { return tx.Order("position") }).
		Preload("Interests", func(tx *gorm.DB) *gorm.DB { return tx.Order("name") })
}

// Update writes the given columns on a profile.
func (r *ProfileRepository) Update(ctx context.Context, profileID uint64, fields map[string]any) error {
	res := r.db.WithContext(ctx).Model(&db.Profile{}).Where("id = ?", profileID).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ReplaceInterests swaps the interest set of a profile.
func (r *ProfileRepository) ReplaceInterests(ctx context.Context, profileID uint64, names []string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("profile_id = ?", profileID).Delete(&db.ProfileInterest{}).Error; err != nil {
			return err
		}
		if len(names) == 0 {
			return nil
		}
		rows := make([]db.ProfileInterest, 0, len(names))
		for _, n := range names {
			rows = append(rows, db.ProfileInterest{ProfileID: profileID, Name: n})
		}
		return tx.Create(&rows).Error
	})
}

// ReplacePhotos swaps all photos of a profile, keeping slice order as position.
func (r *ProfileRepository) ReplacePhotos(ctx context.Context, profileID uint64, photos []db.Photo) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("profile_id = ?", profileID).Delete(&db.Photo{}).Error; err != nil {
			return err
		}
		for i := range photos {
			photos[i].ID = 0
			photos[i].ProfileID = profileID
			photos[i].Position = i
		}
		if len(photos) == 0 {
			return nil
		}
		return tx.Create(&photos).Error
	})
}

// ErrPhotoSlotsFull is returned by AddPhoto when all slots are taken.
var ErrPhotoSlotsFull = errors.New("photo slots full")

// AddPhoto appends a photo into the next free slot.
func (r *ProfileRepository) AddPhoto(ctx context.Context, profileID uint64, photo *db.Photo) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&db.Photo{}).Where("profile_id = ?", profileID).Count(&count).Error; err != nil {
			return err
		}
		if count >= db.MaxPhotos {
			return ErrPhotoSlotsFull
		}
		photo.ProfileID = profileID
		photo.Position = int(count)
		return tx.Create(photo).Error
	})
}

// Delete removes a profile and everything hanging off it.
//
// Behavior:
//   - Removes interests, photos and its synthetic marker, plus views in both
//     directions: views of the profile and views made by its owner.
//   - Removes decisions targeting the profile AND decisions made by its owner,
//     so no orphaned likes keep surfacing in other users' queues.
//   - Reports about the profile are kept for moderation history.
func (r *ProfileRepository) Delete(ctx context.Context, p *db.Profile) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		steps := []struct {
			model any
			where string
			arg   uint64
		}{
			{&db.ProfileInterest{}, "profile_id = ?", p.ID},
			{&db.Photo{}, "profile_id = ?", p.ID},
			{&db.View{}, "profile_id = ?", p.ID},
			{&db.View{}, "viewer_user_id = ?", p.UserID},
			{&db.Decision{}, "target_profile_id = ?", p.ID},
			{&db.Decision{}, "actor_user_id = ?", p.UserID},
			{&db.SyntheticProfile{}, "profile_id = ?", p.ID},
		}
		for _, s := range steps {
			if err := tx.Where(s.where, s.arg).Delete(s.model).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&db.Profile{}, p.ID).Error
	})
}

// CandidateFilter narrows the discovery pool.
type CandidateFilter struct {
	ViewerUserID uint64
	Genders      []string // candidate gender must be one of these
	Seeking      []string // candidate seeking must be one of these
	MinAge       int
	MaxAge       int
	City         string // empty means any city
	Offset       int
	Limit        int
}

// candidates selects active, non-synthetic profiles matching f that the
// viewer neither owns, has seen, nor has decided on.
func (r *ProfileRepository) candidates(ctx context.Context, f CandidateFilter) *gorm.DB {
	q := r.db.WithContext(ctx).
		Model(&db.Profile{}).
		Where("profiles.active = ? AND profiles.synthetic = ?", true, false).
		Where("profiles.user_id <> ?", f.ViewerUserID).
		Where("profiles.gender IN ?", f.Genders).
		Where("profiles.seeking IN ?", f.Seeking).
		Where("profiles.age BETWEEN ? AND ?", f.MinAge, f.MaxAge).
		Where(`NOT EXISTS (
			SELECT 1 FROM views v
			WHERE v.viewer_user_id = ? AND v.profile_id = profiles.id)`, f.ViewerUserID).
		Where(`NOT EXISTS (
			SELECT 1 FROM decisions d
			WHERE d.actor_user_id = ? AND d.target_profile_id = profiles.id)`, f.ViewerUserID)

	if city := normalizeCity(f.City); city != "" {
		q = q.Where("LOWER(TRIM(profiles.city)) = ?", city)
	}
	return q
}

// CountCandidates returns the size of the pool CandidateIDs pages through.
func (r *ProfileRepository) CountCandidates(ctx context.Context, f CandidateFilter) (int64, error) {
	var n int64
	err := r.candidates(ctx, f).Count(&n).Error
	return n, err
}

// CandidateIDs returns candidate ids in id order, windowed by f.Offset and
// f.Limit.
//
// Example:
//
//	repo.CandidateIDs(ctx, repository.CandidateFilter{ViewerUserID: 1, Genders: []string{"female"}, ...})
func (r *ProfileRepository) CandidateIDs(ctx context.Context, f CandidateFilter) ([]uint64, error) {
	q := r.candidates(ctx, f).Order("profiles.id")
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var ids []uint64
	if err := q.Pluck("profiles.id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// UndecidedRealProfileIDs returns active, non-synthetic profiles the actor
// has not decided on yet. Used by the auto-like scheduler.
func (r *ProfileRepository) UndecidedRealProfileIDs(ctx context.Context, actorUserID uint64, limit int) ([]uint64, error) {
	var ids []uint64
	err := r.db.WithContext(ctx).
		Model(&db.Profile{}).
		Where("profiles.active = ? AND profiles.synthetic = ?", true, false).
		Where("profiles.user_id <> ?", actorUserID).
		Where(`NOT EXISTS (
			SELECT 1 FROM decisions d
			WHERE d.actor_user_id = ? AND d.target_profile_id = profiles.id)`, actorUserID).
		Order("profiles.id").
		Limit(limit).
		Pluck("profiles.id", &ids).Error
	return ids, err
}

// CountProfiles returns the number of real and synthetic profiles.
func (r *ProfileRepository) CountProfiles(ctx context.Context) (real, synthetic int64, err error) {
	if err = r.db.WithContext(ctx).Model(&db.Profile{}).Where("synthetic = ?", false).Count(&real).Error; err != nil {
		return
	}
	err = r.db.WithContext(ctx).Model(&db.Profile{}).Where("synthetic = ?", true).Count(&synthetic).Error
	return
}

func normalizeCity(c string) string {
	return strings.ToLower(strings.TrimSpace(c))
}
