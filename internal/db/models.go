package db

import (
	"time"
)

// Profile enums.
const (
	GenderMale   = "male"
	GenderFemale = "female"
	GenderOther  = "other"

	SeekingMale   = "male"
	SeekingFemale = "female"
	SeekingEither = "either"
)

// Decision types.
const (
	DecisionLike    = "like"
	DecisionDislike = "dislike"
)

// Report statuses.
const (
	ReportPending  = "pending"
	ReportReviewed = "reviewed"
	ReportClosed   = "closed"
)

// Star payment statuses.
const (
	PaymentPending   = "pending"
	PaymentCompleted = "completed"
)

const (
	// MaxPhotos is the number of photo slots a profile has.
	MaxPhotos = 3
	// MinProfileAge is the youngest age a profile may have.
	MinProfileAge = 18
)

// User is the Telegram account behind a profile.
type User struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement"`
	TelegramID int64     `gorm:"uniqueIndex;not null"`
	Username   string    `gorm:"size:64"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`
}

// Profile is a user's dating-facing persona. One per user.
//
// Synthetic marks operator-controlled profiles. Discovery, pending-like
// listings and referral accounting filter on this column directly.
type Profile struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	UserID    uint64 `gorm:"uniqueIndex;not null"`
	Name      string `gorm:"size:64;not null"`
	Age       int    `gorm:"not null;index:idx_profile_discovery,priority:3"`
	Gender    string `gorm:"size:16;not null;index:idx_profile_discovery,priority:2"`
	Seeking   string `gorm:"size:16;not null"`
	City      string `gorm:"size:128;not null"`
	Bio       string `gorm:"size:2048"`
	Active    bool   `gorm:"not null;index:idx_profile_discovery,priority:1"`
	Synthetic bool   `gorm:"not null;index"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Photos    []Photo           `gorm:"foreignKey:ProfileID"`
	Interests []ProfileInterest `gorm:"foreignKey:ProfileID"`
}

// Photo is a Telegram file reference in one of the profile's slots.
type Photo struct {
	ID           uint64 `gorm:"primaryKey;autoIncrement"`
	ProfileID    uint64 `gorm:"not null;index"`
	FileID       string `gorm:"size:255;not null"`
	FileUniqueID string `gorm:"size:128"`
	Position     int    `gorm:"not null"`
}

// ProfileInterest tags a profile with an entry of the interest vocabulary.
type ProfileInterest struct {
	ProfileID uint64 `gorm:"primaryKey"`
	Name      string `gorm:"primaryKey;size:64"`
}

// Decision is a like/dislike from a user on a target profile.
//
// Composite PK: (ActorUserID, TargetProfileID)
//   - Ensures a single row per pair; a later decision overwrites the type.
//
// Indexes:
//   - idx_target_type_mutual(target_profile_id, type, mutual, created_at)
//     Serves pending-like listings and counts.
//
// Mutual is true exactly when both directions are likes.
type Decision struct {
	ActorUserID     uint64    `gorm:"primaryKey"`
	TargetProfileID uint64    `gorm:"primaryKey;index:idx_target_type_mutual,priority:1"`
	Type            string    `gorm:"size:16;not null;index:idx_target_type_mutual,priority:2"`
	Mutual          bool      `gorm:"not null;index:idx_target_type_mutual,priority:3"`
	CreatedAt       time.Time `gorm:"autoCreateTime;index:idx_target_type_mutual,priority:4"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime"`
}

// View records that a profile has been shown to a viewer once.
type View struct {
	ViewerUserID uint64    `gorm:"primaryKey"`
	ProfileID    uint64    `gorm:"primaryKey;index"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
}

// ReferralCode is the invite code a user shares. Uses is informational.
type ReferralCode struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	UserID    uint64    `gorm:"uniqueIndex;not null"`
	Code      string    `gorm:"uniqueIndex;size:16;not null"`
	Uses      int       `gorm:"not null"`
	MaxUses   int       `gorm:"not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// Referral credits a referred user to exactly one referrer.
type Referral struct {
	ID            uint64    `gorm:"primaryKey;autoIncrement"`
	ReferrerID    uint64    `gorm:"not null;index"`
	ReferredID    uint64    `gorm:"uniqueIndex;not null"`
	Completed     bool      `gorm:"not null"`
	RewardClaimed bool      `gorm:"not null"`
	CreatedAt     time.Time `gorm:"autoCreateTime"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime"`
}

// ReferralReward is the claim row for a referrer's one-time reward. The
// primary key makes the claim a compare-and-set: only one insert wins.
type ReferralReward struct {
	ReferrerID uint64    `gorm:"primaryKey;autoIncrement:false"`
	GrantID    uint64    `gorm:"not null"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`
}

// PremiumGrant is one period of premium access.
type PremiumGrant struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement"`
	UserID      uint64    `gorm:"not null;index:idx_grant_user_expiry,priority:1"`
	Plan        string    `gorm:"size:32;not null"`
	StarsAmount int       `gorm:"not null"`
	StartsAt    time.Time `gorm:"not null"`
	ExpiresAt   time.Time `gorm:"not null;index:idx_grant_user_expiry,priority:2"`
	Active      bool      `gorm:"not null"`
	PaymentRef  string    `gorm:"size:128"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
}

// StarPayment tracks a Telegram Stars invoice from creation to settlement.
type StarPayment struct {
	ID               uint64    `gorm:"primaryKey;autoIncrement"`
	UserID           uint64    `gorm:"not null;index"`
	Plan             string    `gorm:"size:32;not null"`
	StarsAmount      int       `gorm:"not null"`
	Days             int       `gorm:"not null"`
	Payload          string    `gorm:"uniqueIndex;size:64;not null"`
	Status           string    `gorm:"size:16;not null"`
	TelegramChargeID string    `gorm:"size:255"`
	ProviderChargeID string    `gorm:"size:255"`
	CreatedAt        time.Time `gorm:"autoCreateTime"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime"`
}

// SyntheticProfile carries scheduler settings for an operator-controlled
// profile. LikeInterval is in seconds.
type SyntheticProfile struct {
	ProfileID    uint64 `gorm:"primaryKey;autoIncrement:false"`
	Active       bool   `gorm:"not null"`
	LikeInterval int    `gorm:"not null"`
	LastRunAt    *time.Time
	CreatedAt    time.Time `gorm:"autoCreateTime"`
}

// Report is a moderation record raised against a profile.
type Report struct {
	ID             uint64    `gorm:"primaryKey;autoIncrement"`
	ReporterUserID uint64    `gorm:"not null;index"`
	ProfileID      uint64    `gorm:"not null;index"`
	Reason         string    `gorm:"size:32;not null"`
	Status         string    `gorm:"size:16;not null;index"`
	AdminNotes     string    `gorm:"size:1024"`
	ActionTaken    string    `gorm:"size:32"`
	CreatedAt      time.Time `gorm:"autoCreateTime"`
	ReviewedAt     *time.Time
}

// Models lists every table for AutoMigrate.
func Models() []any {
	return []any{
		&User{}, &Profile{}, &Photo{}, &ProfileInterest{},
		&Decision{}, &View{},
		&ReferralCode{}, &Referral{}, &ReferralReward{},
		&PremiumGrant{}, &StarPayment{},
		&SyntheticProfile{}, &Report{},
	}
}
