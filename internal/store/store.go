// Package store persists per-user settings, usage, reference images and
// studio channels in SQLite through gorm.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/diamondburned/arikawa/v3/discord"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MaxReferences is the number of reference slots per user.
const MaxReferences = 5

const dateLayout = "2006-01-02"

var (
	// ErrInvalidSlot is returned for reference slots outside 1..MaxReferences.
	ErrInvalidSlot = errors.New("reference slot out of range")
	// ErrReferencesFull is returned when every reference slot is taken.
	ErrReferencesFull = errors.New("all reference slots are in use")
)

// Store is the persistence collaborator used by the command layer.
type Store struct {
	db       *gorm.DB
	logger   *zap.Logger
	clock    clockwork.Clock
	defaults UserSettings
	settings *lru.Cache[discord.UserID, UserSettings]
}

// New wraps db. defaults fills settings for users that never saved any.
func New(db *gorm.DB, logger *zap.Logger, clock clockwork.Clock, defaults UserSettings) (*Store, error) {
	cache, err := lru.New[discord.UserID, UserSettings](1024)
	if err != nil {
		return nil, fmt.Errorf("failed to create settings cache: %w", err)
	}
	return &Store{
		db:       db,
		logger:   logger.Named("store"),
		clock:    clock,
		defaults: defaults,
		settings: cache,
	}, nil
}

// Settings returns the user's settings, or the defaults if none are stored.
func (s *Store) Settings(ctx context.Context, user discord.UserID) (UserSettings, error) {
	if cached, ok := s.settings.Get(user); ok {
		return cached, nil
	}

	var row UserSettings
	err := s.db.WithContext(ctx).First(&row, "user_id = ?", uint64(user)).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		row = s.defaults
		row.UserID = uint64(user)
	case err != nil:
		return UserSettings{}, fmt.Errorf("load settings for %s: %w", user, err)
	}

	s.settings.Add(user, row)
	return row, nil
}

// SaveSettings upserts the whole row.
func (s *Store) SaveSettings(ctx context.Context, settings UserSettings) error {
	settings.UpdatedAt = s.clock.Now()
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&settings).Error
	if err != nil {
		s.settings.Remove(discord.UserID(settings.UserID))
		return fmt.Errorf("save settings for %d: %w", settings.UserID, err)
	}

	s.settings.Add(discord.UserID(settings.UserID), settings)
	return nil
}

// Today is the current UTC day key.
func (s *Store) Today() string {
	return s.clock.Now().UTC().Format(dateLayout)
}

// DailyUsage returns how many images the user generated today (UTC).
func (s *Store) DailyUsage(ctx context.Context, user discord.UserID) (int, error) {
	var row DailyUsage
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND date = ?", uint64(user), s.Today()).
		Limit(1).
		Find(&row).Error
	if err != nil {
		return 0, fmt.Errorf("load usage for %s: %w", user, err)
	}
	return row.Count, nil
}

// IncrementUsage adds one generation to today's counter and to the user's
// lifetime total, returning today's new count.
func (s *Store) IncrementUsage(ctx context.Context, user discord.UserID) (int, error) {
	uid := uint64(user)
	today := s.Today()

	var count int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "date"}},
			DoUpdates: clause.Assignments(map[string]any{"count": gorm.Expr("count + 1")}),
		}).Create(&DailyUsage{UserID: uid, Date: today, Count: 1}).Error
		if err != nil {
			return err
		}

		err = tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]any{"total_generations": gorm.Expr("total_generations + 1")}),
		}).Create(&User{UserID: uid, TotalGenerations: 1, CreatedAt: s.clock.Now()}).Error
		if err != nil {
			return err
		}

		var row DailyUsage
		if err := tx.Where("user_id = ? AND date = ?", uid, today).First(&row).Error; err != nil {
			return err
		}
		count = row.Count
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("increment usage for %s: %w", user, err)
	}

	s.logger.Debug("Usage incremented",
		zap.String("user_id", user.String()),
		zap.String("date", today),
		zap.Int("count", count))
	return count, nil
}

// TotalGenerations returns the user's lifetime count.
func (s *Store) TotalGenerations(ctx context.Context, user discord.UserID) (int, error) {
	var row User
	err := s.db.WithContext(ctx).Where("user_id = ?", uint64(user)).Limit(1).Find(&row).Error
	if err != nil {
		return 0, fmt.Errorf("load user %s: %w", user, err)
	}
	return row.TotalGenerations, nil
}

// SaveReference stores an image in slot, replacing what was there.
func (s *Store) SaveReference(ctx context.Context, user discord.UserID, slot int, data []byte, mimeType, filename string) error {
	if slot < 1 || slot > MaxReferences {
		return fmt.Errorf("%w: %d", ErrInvalidSlot, slot)
	}

	ref := ReferenceImage{
		UserID:    uint64(user),
		Slot:      slot,
		Data:      data,
		MIMEType:  mimeType,
		Filename:  filename,
		CreatedAt: s.clock.Now(),
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "slot"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "mime_type", "filename", "created_at"}),
	}).Create(&ref).Error
	if err != nil {
		return fmt.Errorf("save reference %d for %s: %w", slot, user, err)
	}
	return nil
}

// AddReference stores an image in the lowest free slot.
func (s *Store) AddReference(ctx context.Context, user discord.UserID, data []byte, mimeType, filename string) (int, error) {
	refs, err := s.References(ctx, user)
	if err != nil {
		return 0, err
	}

	used := make(map[int]bool, len(refs))
	for _, r := range refs {
		used[r.Slot] = true
	}
	for slot := 1; slot <= MaxReferences; slot++ {
		if !used[slot] {
			return slot, s.SaveReference(ctx, user, slot, data, mimeType, filename)
		}
	}
	return 0, ErrReferencesFull
}

// References lists the user's images ordered by slot.
func (s *Store) References(ctx context.Context, user discord.UserID) ([]ReferenceImage, error) {
	var refs []ReferenceImage
	err := s.db.WithContext(ctx).
		Where("user_id = ?", uint64(user)).
		Order("slot").
		Find(&refs).Error
	if err != nil {
		return nil, fmt.Errorf("list references for %s: %w", user, err)
	}
	return refs, nil
}

// DeleteReference removes one slot. Deleting an empty slot is not an error.
func (s *Store) DeleteReference(ctx context.Context, user discord.UserID, slot int) error {
	if slot < 1 || slot > MaxReferences {
		return fmt.Errorf("%w: %d", ErrInvalidSlot, slot)
	}
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND slot = ?", uint64(user), slot).
		Delete(&ReferenceImage{}).Error
	if err != nil {
		return fmt.Errorf("delete reference %d for %s: %w", slot, user, err)
	}
	return nil
}

// ClearReferences removes every slot and reports how many were removed.
func (s *Store) ClearReferences(ctx context.Context, user discord.UserID) (int64, error) {
	res := s.db.WithContext(ctx).Where("user_id = ?", uint64(user)).Delete(&ReferenceImage{})
	if res.Error != nil {
		return 0, fmt.Errorf("clear references for %s: %w", user, res.Error)
	}
	return res.RowsAffected, nil
}

// SaveUserChannel records the user's studio channel in guild.
func (s *Store) SaveUserChannel(ctx context.Context, user discord.UserID, guild discord.GuildID, channel discord.ChannelID) error {
	row := UserChannel{
		UserID:    uint64(user),
		GuildID:   uint64(guild),
		ChannelID: uint64(channel),
		CreatedAt: s.clock.Now(),
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "guild_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"channel_id"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("save channel for %s in %s: %w", user, guild, err)
	}
	return nil
}

// UserChannel returns the user's studio channel in guild, if any.
func (s *Store) UserChannel(ctx context.Context, user discord.UserID, guild discord.GuildID) (discord.ChannelID, bool, error) {
	var rows []UserChannel
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND guild_id = ?", uint64(user), uint64(guild)).
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return 0, false, fmt.Errorf("load channel for %s in %s: %w", user, guild, err)
	}
	if len(rows) == 0 {
		return 0, false, nil
	}
	return discord.ChannelID(rows[0].ChannelID), true, nil
}
