package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UpsertUser creates the user or refreshes its profile fields.
func (s *Store) UpsertUser(ctx context.Context, u User) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "sub"}},
		DoUpdates: clause.AssignmentColumns([]string{"email", "name", "picture"}),
	}).Create(&u).Error
	if err != nil {
		return fmt.Errorf("store: upsert user: %w", err)
	}
	return nil
}

func (s *Store) UserBySub(ctx context.Context, sub string) (*User, error) {
	var u User
	if err := s.db.WithContext(ctx).First(&u, "sub = ?", sub).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func paperExists(tx *gorm.DB, paperID uint) error {
	var n int64
	if err := tx.Model(&Paper{}).Where("id = ?", paperID).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// AddBookmark bookmarks a paper for sub. Bookmarking twice is a no-op.
func (s *Store) AddBookmark(ctx context.Context, sub string, paperID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := paperExists(tx, paperID); err != nil {
			return err
		}
		if err := ensureUser(tx, sub); err != nil {
			return fmt.Errorf("store: ensure user: %w", err)
		}
		b := Bookmark{UserSub: sub, PaperID: paperID}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&b).Error; err != nil {
			return fmt.Errorf("store: add bookmark: %w", err)
		}
		return nil
	})
}

func (s *Store) RemoveBookmark(ctx context.Context, sub string, paperID uint) error {
	err := s.db.WithContext(ctx).
		Where("user_sub = ? AND paper_id = ?", sub, paperID).
		Delete(&Bookmark{}).Error
	if err != nil {
		return fmt.Errorf("store: remove bookmark: %w", err)
	}
	return nil
}

// BookmarkCount reports how many times sub bookmarked the paper (0 or 1).
func (s *Store) BookmarkCount(ctx context.Context, sub string, paperID uint) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&Bookmark{}).
		Where("user_sub = ? AND paper_id = ?", sub, paperID).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("store: bookmark count: %w", err)
	}
	return n, nil
}

// BookmarkedPapers lists the papers sub bookmarked, latest bookmark first.
func (s *Store) BookmarkedPapers(ctx context.Context, sub string) ([]Paper, error) {
	var papers []Paper
	err := s.db.WithContext(ctx).
		Preload("Categories").
		Joins("JOIN bookmarks ON bookmarks.paper_id = papers.id").
		Where("bookmarks.user_sub = ?", sub).
		Order("bookmarks.created_at DESC").Order("bookmarks.id DESC").
		Find(&papers).Error
	if err != nil {
		return nil, fmt.Errorf("store: bookmarked papers: %w", err)
	}
	return papers, nil
}

// Vote records sub's vote on a paper, replacing any earlier one, and returns
// the paper's new score.
func (s *Store) Vote(ctx context.Context, sub string, paperID uint, value int) (int64, error) {
	if value < -1 || value > 1 {
		return 0, ErrInvalidVote
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := paperExists(tx, paperID); err != nil {
			return err
		}
		if err := ensureUser(tx, sub); err != nil {
			return fmt.Errorf("store: ensure user: %w", err)
		}
		v := Vote{UserSub: sub, PaperID: paperID, Value: value}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_sub"}, {Name: "paper_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).Create(&v).Error
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return 0, err
		}
		return 0, fmt.Errorf("store: vote: %w", err)
	}
	return s.Score(ctx, paperID)
}

// Score is the sum of all votes on a paper.
func (s *Store) Score(ctx context.Context, paperID uint) (int64, error) {
	var score int64
	row := s.db.WithContext(ctx).Model(&Vote{}).
		Select("COALESCE(SUM(value), 0)").
		Where("paper_id = ?", paperID).
		Row()
	if err := row.Scan(&score); err != nil {
		return 0, fmt.Errorf("store: score: %w", err)
	}
	return score, nil
}

// Settings returns sub's preferences, or an empty map when none are saved.
func (s *Store) Settings(ctx context.Context, sub string) (map[string]any, error) {
	var us UserSettings
	err := s.db.WithContext(ctx).Where("user_sub = ?", sub).Limit(1).Find(&us).Error
	if err != nil {
		return nil, fmt.Errorf("store: settings: %w", err)
	}
	if us.Prefs == nil {
		return map[string]any{}, nil
	}
	return us.Prefs, nil
}

// SaveSettings replaces sub's preferences.
func (s *Store) SaveSettings(ctx context.Context, sub string, prefs map[string]any) error {
	if prefs == nil {
		prefs = map[string]any{}
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureUser(tx, sub); err != nil {
			return fmt.Errorf("store: ensure user: %w", err)
		}
		us := UserSettings{UserSub: sub, Prefs: prefs, UpdatedAt: time.Now().UTC()}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_sub"}},
			DoUpdates: clause.AssignmentColumns([]string{"prefs", "updated_at"}),
		}).Create(&us).Error
		if err != nil {
			return fmt.Errorf("store: save settings: %w", err)
		}
		return nil
	})
}
