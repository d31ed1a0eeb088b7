package db

import (
	"fmt"
	"io"
	"math/rand"
	"os"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SeedSet is the YAML document loaded by LoadSeed.
//
//	profiles:
//	  - telegram_id: 900001
//	    name: Anna
//	    age: 27
//	    gender: female
//	    seeking: male
//	    city: Berlin
//	    interests: [music, travel]
//	    photos: [https://picsum.photos/seed/anna/600/800]
//	    synthetic: {like_interval: 600}
//	likes:
//	  - {from: 900002, to: 900001}
type SeedSet struct {
	Profiles []SeedProfile `yaml:"profiles"`
	Likes    []SeedLike    `yaml:"likes"`
}

type SeedProfile struct {
	TelegramID int64          `yaml:"telegram_id"`
	Username   string         `yaml:"username"`
	Name       string         `yaml:"name"`
	Age        int            `yaml:"age"`
	Gender     string         `yaml:"gender"`
	Seeking    string         `yaml:"seeking"`
	City       string         `yaml:"city"`
	Bio        string         `yaml:"bio"`
	Interests  []string       `yaml:"interests"`
	// Photos are Telegram file ids or public URLs; sendPhoto accepts both.
	Photos     []string       `yaml:"photos"`
	Hidden     bool           `yaml:"hidden"`
	Synthetic  *SeedSynthetic `yaml:"synthetic"`
}

type SeedSynthetic struct {
	LikeInterval int  `yaml:"like_interval"`
	Paused       bool `yaml:"paused"`
}

// SeedLike is a like between two seeded profiles, by Telegram ID.
type SeedLike struct {
	From int64 `yaml:"from"`
	To   int64 `yaml:"to"`
}

// SeedResult counts what Seed wrote.
type SeedResult struct {
	Profiles int
	Likes    int
	Matches  int
}

// LoadSeed reads a SeedSet from a YAML file.
func LoadSeed(path string) (*SeedSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()
	return DecodeSeed(f)
}

func DecodeSeed(r io.Reader) (*SeedSet, error) {
	var set SeedSet
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&set); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode seed: %w", err)
	}
	return &set, nil
}

// Seed writes a SeedSet in one transaction. Users and profiles are upserted
// by Telegram ID so running it twice is harmless. With reset, every table is
// emptied first.
func Seed(gdb *gorm.DB, set *SeedSet, reset bool) (SeedResult, error) {
	var res SeedResult
	err := gdb.Transaction(func(tx *gorm.DB) error {
		if reset {
			if err := clearAll(tx); err != nil {
				return err
			}
		}

		profileByTG := make(map[int64]Profile, len(set.Profiles))
		for _, sp := range set.Profiles {
			p, err := seedProfile(tx, sp)
			if err != nil {
				return fmt.Errorf("seed profile %d: %w", sp.TelegramID, err)
			}
			profileByTG[sp.TelegramID] = p
			res.Profiles++
		}

		for _, l := range set.Likes {
			from, ok := profileByTG[l.From]
			to, ok2 := profileByTG[l.To]
			if !ok || !ok2 || l.From == l.To {
				return fmt.Errorf("seed like %d -> %d: unknown or identical profiles", l.From, l.To)
			}
			mutual, err := seedLike(tx, from, to)
			if err != nil {
				return fmt.Errorf("seed like %d -> %d: %w", l.From, l.To, err)
			}
			res.Likes++
			if mutual {
				res.Matches++
			}
		}
		return nil
	})
	return res, err
}

func seedProfile(tx *gorm.DB, sp SeedProfile) (Profile, error) {
	user := User{TelegramID: sp.TelegramID, Username: sp.Username}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "telegram_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"username"}),
	}).Create(&user).Error; err != nil {
		return Profile{}, err
	}
	// Upsert ids are not reliable across dialects; read the row back.
	user = User{}
	if err := tx.Where("telegram_id = ?", sp.TelegramID).First(&user).Error; err != nil {
		return Profile{}, err
	}

	p := Profile{
		UserID:    user.ID,
		Name:      sp.Name,
		Age:       sp.Age,
		Gender:    sp.Gender,
		Seeking:   sp.Seeking,
		City:      sp.City,
		Bio:       sp.Bio,
		Active:    !sp.Hidden,
		Synthetic: sp.Synthetic != nil,
	}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "age", "gender", "seeking", "city", "bio", "active", "synthetic", "updated_at"}),
	}).Create(&p).Error; err != nil {
		return Profile{}, err
	}
	p = Profile{}
	if err := tx.Where("user_id = ?", user.ID).First(&p).Error; err != nil {
		return Profile{}, err
	}

	if err := tx.Where("profile_id = ?", p.ID).Delete(&ProfileInterest{}).Error; err != nil {
		return Profile{}, err
	}
	for _, name := range sp.Interests {
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&ProfileInterest{ProfileID: p.ID, Name: name}).Error; err != nil {
			return Profile{}, err
		}
	}

	if len(sp.Photos) > MaxPhotos {
		return Profile{}, fmt.Errorf("%d photos, at most %d", len(sp.Photos), MaxPhotos)
	}
	if err := tx.Where("profile_id = ?", p.ID).Delete(&Photo{}).Error; err != nil {
		return Profile{}, err
	}
	for i, ref := range sp.Photos {
		if err := tx.Create(&Photo{ProfileID: p.ID, FileID: ref, Position: i}).Error; err != nil {
			return Profile{}, err
		}
	}

	if sp.Synthetic != nil {
		interval := sp.Synthetic.LikeInterval
		if interval <= 0 {
			interval = 3600
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "profile_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"active", "like_interval"}),
		}).Create(&SyntheticProfile{
			ProfileID:    p.ID,
			Active:       !sp.Synthetic.Paused,
			LikeInterval: interval,
		}).Error; err != nil {
			return Profile{}, err
		}
	}
	return p, nil
}

// seedLike stores from's like on to and reports whether it completed a match.
func seedLike(tx *gorm.DB, from, to Profile) (bool, error) {
	var back Decision
	err := tx.Where("actor_user_id = ? AND target_profile_id = ? AND type = ?", to.UserID, from.ID, DecisionLike).
		Limit(1).Find(&back).Error
	if err != nil {
		return false, err
	}
	mutual := back.ActorUserID != 0

	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "actor_user_id"}, {Name: "target_profile_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"type", "mutual", "updated_at"}),
	}).Create(&Decision{
		ActorUserID:     from.UserID,
		TargetProfileID: to.ID,
		Type:            DecisionLike,
		Mutual:          mutual,
	}).Error; err != nil {
		return false, err
	}
	if mutual {
		if err := tx.Model(&Decision{}).
			Where("actor_user_id = ? AND target_profile_id = ?", to.UserID, from.ID).
			Update("mutual", true).Error; err != nil {
			return false, err
		}
	}
	return mutual, nil
}

// clearAll empties every table, children first.
func clearAll(tx *gorm.DB) error {
	models := Models()
	for i := len(models) - 1; i >= 0; i-- {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(models[i]).Error; err != nil {
			return fmt.Errorf("clear %T: %w", models[i], err)
		}
	}

	// Restart ids so seeded fixtures are stable between runs.
	switch tx.Dialector.Name() {
	case "mysql":
		for _, t := range []string{"users", "profiles", "reports"} {
			tx.Exec("ALTER TABLE " + t + " AUTO_INCREMENT = 1")
		}
	case "sqlite":
		tx.Exec("DELETE FROM sqlite_sequence")
	}
	return nil
}

var (
	demoFemale = []string{"Anna", "Mia", "Lena", "Sofia", "Emma", "Clara", "Nina", "Lea", "Julia", "Marie"}
	demoMale   = []string{"Lukas", "Jonas", "Felix", "Paul", "Leon", "Max", "Noah", "Elias", "Ben", "Tom"}
	demoCities = []string{"Berlin", "Hamburg", "Munich"}
	demoTags   = []string{"music", "travel", "sports", "reading", "cooking", "movies", "games", "art"}
)

// demoTelegramBase keeps demo accounts clear of real Telegram IDs.
const demoTelegramBase = int64(9_000_000_000)

// DemoSeed builds a random SeedSet of n profiles, half female and half male,
// with every fourth one synthetic. Roughly 70% of cross-gender pairs visited
// get a like, and every third like is returned to form a match.
func DemoSeed(r *rand.Rand, n int) *SeedSet {
	set := &SeedSet{}
	for i := 0; i < n; i++ {
		gender, seeking, names := GenderFemale, SeekingMale, demoFemale
		if i%2 == 1 {
			gender, seeking, names = GenderMale, SeekingFemale, demoMale
		}
		sp := SeedProfile{
			TelegramID: demoTelegramBase + int64(i) + 1,
			Username:   fmt.Sprintf("demo%d", i+1),
			Name:       names[r.Intn(len(names))],
			Age:        MinProfileAge + 2 + r.Intn(20),
			Gender:     gender,
			Seeking:    seeking,
			City:       demoCities[r.Intn(len(demoCities))],
			Interests:  pickTags(r, 1+r.Intn(3)),
			Photos:     []string{fmt.Sprintf("https://picsum.photos/seed/matchbot-demo-%d/600/800", i+1)},
		}
		if i%4 == 3 {
			sp.Synthetic = &SeedSynthetic{LikeInterval: 600 + r.Intn(3000)}
		}
		set.Profiles = append(set.Profiles, sp)
	}

	seen := map[[2]int64]bool{}
	counter := 0
	for i, actor := range set.Profiles {
		for j := 0; j < 6; j++ {
			k := r.Intn(n)
			target := set.Profiles[k]
			if k == i || actor.Gender == target.Gender || r.Intn(100) >= 70 {
				continue
			}
			pair := [2]int64{actor.TelegramID, target.TelegramID}
			if seen[pair] {
				continue
			}
			seen[pair] = true
			set.Likes = append(set.Likes, SeedLike{From: actor.TelegramID, To: target.TelegramID})

			if counter%3 == 0 && !seen[[2]int64{target.TelegramID, actor.TelegramID}] {
				seen[[2]int64{target.TelegramID, actor.TelegramID}] = true
				set.Likes = append(set.Likes, SeedLike{From: target.TelegramID, To: actor.TelegramID})
			}
			counter++
		}
	}
	return set
}

func pickTags(r *rand.Rand, n int) []string {
	idx := r.Perm(len(demoTags))[:n]
	out := make([]string, 0, n)
	for _, i := range idx {
		out = append(out, demoTags[i])
	}
	return out
}
