package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/oggyb/matchbot/internal/app"
	"github.com/oggyb/matchbot/internal/db"
	svcErr "github.com/oggyb/matchbot/internal/errors"
	"github.com/oggyb/matchbot/internal/repository"
)

// Interests is the fixed tag vocabulary.
var Interests = []string{
	"intimacy", "relationship", "friendship", "games",
	"casual", "walks", "movies", "sports",
	"travel", "music", "art", "cooking",
	"science", "technology", "reading", "photography",
}

const (
	MinAge     = db.MinProfileAge
	MaxAge     = 100
	MaxBioLen  = 500
	minNameLen = 2
	maxNameLen = 64
)

// CompletionRecorder is told when a user finishes their first profile.
type CompletionRecorder interface {
	MarkProfileCreated(ctx context.Context, userID uint64) error
}

// Input is a complete profile as submitted by the user.
type Input struct {
	Name      string
	Age       int
	Gender    string
	Seeking   string
	City      string
	Bio       string
	Interests []string
	Photos    []db.Photo
}

// Service owns user and profile lifecycle.
type Service struct {
	appCtx    *app.AppContext
	log       *slog.Logger
	repo      *repository.ProfileRepository
	referrals CompletionRecorder
}

// NewService creates the profile service. referrals may be nil.
func NewService(appCtx *app.AppContext, referrals CompletionRecorder) *Service {
	return &Service{
		appCtx:    appCtx,
		log:       appCtx.Logger.With("service", "profile"),
		repo:      repository.NewProfileRepository(appCtx.DB),
		referrals: referrals,
	}
}

// EnsureUser registers a Telegram account on first contact.
func (s *Service) EnsureUser(ctx context.Context, telegramID int64, username string) (*db.User, bool, error) {
	if telegramID == 0 {
		return nil, false, fmt.Errorf("telegram id is required: %w", svcErr.ErrInvalidInput)
	}
	return s.repo.EnsureUser(ctx, telegramID, username)
}

func (s *Service) UserByTelegramID(ctx context.Context, telegramID int64) (*db.User, error) {
	u, err := s.repo.GetUserByTelegramID(ctx, telegramID)
	return u, svcErr.NotFound(err)
}

func (s *Service) User(ctx context.Context, userID uint64) (*db.User, error) {
	u, err := s.repo.GetUser(ctx, userID)
	return u, svcErr.NotFound(err)
}

// Create validates and stores a user's profile with its photos and
// interests, then reports the completion to the referral ledger.
//
// Behavior:
//   - One profile per user; a second one is ErrConflict.
//   - The profile starts active.
//   - Referral bookkeeping failures are logged, never returned.
func (s *Service) Create(ctx context.Context, userID uint64, in Input) (*db.Profile, error) {
	s.log.Debug("Create called", "user", userID)

	if err := validate(in); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetUser(ctx, userID); err != nil {
		return nil, fmt.Errorf("user %d: %w", userID, svcErr.NotFound(err))
	}
	if _, err := s.repo.GetByUserID(ctx, userID); err == nil {
		return nil, fmt.Errorf("user %d already has a profile: %w", userID, svcErr.ErrConflict)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	p := &db.Profile{
		UserID:  userID,
		Name:    strings.TrimSpace(in.Name),
		Age:     in.Age,
		Gender:  in.Gender,
		Seeking: in.Seeking,
		City:    strings.TrimSpace(in.City),
		Bio:     strings.TrimSpace(in.Bio),
		Active:  true,
	}
	for i, ph := range in.Photos {
		p.Photos = append(p.Photos, db.Photo{FileID: ph.FileID, FileUniqueID: ph.FileUniqueID, Position: i})
	}
	for _, name := range dedupe(in.Interests) {
		p.Interests = append(p.Interests, db.ProfileInterest{Name: name})
	}

	if err := s.repo.Create(ctx, p); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("user %d already has a profile: %w", userID, svcErr.ErrConflict)
		}
		return nil, err
	}

	if s.referrals != nil {
		if err := s.referrals.MarkProfileCreated(ctx, userID); err != nil {
			s.log.Error("referral completion failed", "user", userID, "err", err)
		}
	}

	s.log.Info("profile created", "user", userID, "profile", p.ID)
	return p, nil
}

func (s *Service) Get(ctx context.Context, profileID uint64) (*db.Profile, error) {
	p, err := s.repo.GetByID(ctx, profileID)
	return p, svcErr.NotFound(err)
}

func (s *Service) GetByUser(ctx context.Context, userID uint64) (*db.Profile, error) {
	p, err := s.repo.GetByUserID(ctx, userID)
	return p, svcErr.NotFound(err)
}

// Update changes one editable field. value is parsed per field.
func (s *Service) Update(ctx context.Context, profileID uint64, field, value string) error {
	value = strings.TrimSpace(value)
	var column string
	var v any

	switch field {
	case "name":
		if err := validateName(value); err != nil {
			return err
		}
		column, v = "name", value
	case "age":
		age, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("age %q: %w", value, svcErr.ErrInvalidInput)
		}
		if err := validateAge(age); err != nil {
			return err
		}
		column, v = "age", age
	case "gender":
		if !validGender(value) {
			return fmt.Errorf("gender %q: %w", value, svcErr.ErrInvalidInput)
		}
		column, v = "gender", value
	case "seeking":
		if !validSeeking(value) {
			return fmt.Errorf("seeking %q: %w", value, svcErr.ErrInvalidInput)
		}
		column, v = "seeking", value
	case "city":
		if value == "" {
			return fmt.Errorf("city is required: %w", svcErr.ErrInvalidInput)
		}
		column, v = "city", value
	case "bio":
		if utf8.RuneCountInString(value) > MaxBioLen {
			return fmt.Errorf("bio longer than %d: %w", MaxBioLen, svcErr.ErrInvalidInput)
		}
		column, v = "bio", value
	default:
		return fmt.Errorf("field %q is not editable: %w", field, svcErr.ErrInvalidInput)
	}

	return svcErr.NotFound(s.repo.Update(ctx, profileID, map[string]any{column: v}))
}

// SetActive hides or shows a profile in discovery.
func (s *Service) SetActive(ctx context.Context, profileID uint64, active bool) error {
	return svcErr.NotFound(s.repo.Update(ctx, profileID, map[string]any{"active": active}))
}

// SetInterests replaces the profile's interests.
func (s *Service) SetInterests(ctx context.Context, profileID uint64, names []string) error {
	if err := validateInterests(names); err != nil {
		return err
	}
	return s.repo.ReplaceInterests(ctx, profileID, dedupe(names))
}

// ReplacePhotos swaps the whole photo set.
func (s *Service) ReplacePhotos(ctx context.Context, profileID uint64, photos []db.Photo) error {
	if len(photos) > db.MaxPhotos {
		return fmt.Errorf("at most %d photos: %w", db.MaxPhotos, svcErr.ErrInvalidInput)
	}
	return s.repo.ReplacePhotos(ctx, profileID, photos)
}

// AddPhoto fills the next photo slot.
func (s *Service) AddPhoto(ctx context.Context, profileID uint64, fileID, fileUniqueID string) error {
	if fileID == "" {
		return fmt.Errorf("file id is required: %w", svcErr.ErrInvalidInput)
	}
	err := s.repo.AddPhoto(ctx, profileID, &db.Photo{FileID: fileID, FileUniqueID: fileUniqueID})
	if errors.Is(err, repository.ErrPhotoSlotsFull) {
		return fmt.Errorf("at most %d photos: %w", db.MaxPhotos, svcErr.ErrInvalidInput)
	}
	return err
}

// Delete removes the user's profile and its history.
func (s *Service) Delete(ctx context.Context, userID uint64) error {
	p, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return svcErr.NotFound(err)
	}
	if err := s.repo.Delete(ctx, p); err != nil {
		return err
	}
	s.log.Info("profile deleted", "user", userID, "profile", p.ID)
	return nil
}

// --- validation ---

func validate(in Input) error {
	if err := validateName(strings.TrimSpace(in.Name)); err != nil {
		return err
	}
	if err := validateAge(in.Age); err != nil {
		return err
	}
	if !validGender(in.Gender) {
		return fmt.Errorf("gender %q: %w", in.Gender, svcErr.ErrInvalidInput)
	}
	if !validSeeking(in.Seeking) {
		return fmt.Errorf("seeking %q: %w", in.Seeking, svcErr.ErrInvalidInput)
	}
	if strings.TrimSpace(in.City) == "" {
		return fmt.Errorf("city is required: %w", svcErr.ErrInvalidInput)
	}
	if utf8.RuneCountInString(strings.TrimSpace(in.Bio)) > MaxBioLen {
		return fmt.Errorf("bio longer than %d: %w", MaxBioLen, svcErr.ErrInvalidInput)
	}
	if len(in.Photos) > db.MaxPhotos {
		return fmt.Errorf("at most %d photos: %w", db.MaxPhotos, svcErr.ErrInvalidInput)
	}
	return validateInterests(in.Interests)
}

func validateName(name string) error {
	n := utf8.RuneCountInString(name)
	if n < minNameLen || n > maxNameLen {
		return fmt.Errorf("name must be %d-%d characters: %w", minNameLen, maxNameLen, svcErr.ErrInvalidInput)
	}
	return nil
}

func validateAge(age int) error {
	if age < MinAge || age > MaxAge {
		return fmt.Errorf("age %d outside %d-%d: %w", age, MinAge, MaxAge, svcErr.ErrInvalidInput)
	}
	return nil
}

func validateInterests(names []string) error {
	for _, n := range names {
		if !slices.Contains(Interests, n) {
			return fmt.Errorf("unknown interest %q: %w", n, svcErr.ErrInvalidInput)
		}
	}
	return nil
}

func validGender(g string) bool {
	return g == db.GenderMale || g == db.GenderFemale || g == db.GenderOther
}

func validSeeking(s string) bool {
	return s == db.SeekingMale || s == db.SeekingFemale || s == db.SeekingEither
}

func dedupe(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}
