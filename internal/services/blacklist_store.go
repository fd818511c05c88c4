package services

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"crudadmin/internal/models"
)

// gormBlacklistStore keeps revoked token digests in the admin store.
type gormBlacklistStore struct {
	db *gorm.DB
}

// NewBlacklistStore creates a BlacklistStore backed by the admin_token_blacklist table.
func NewBlacklistStore(db *gorm.DB) BlacklistStore {
	return &gormBlacklistStore{db: db}
}

func (s *gormBlacklistStore) Add(ctx context.Context, tokenHash string, expiresAt time.Time) error {
	entry := &models.AdminTokenBlacklist{
		TokenHash: tokenHash,
		RevokedAt: time.Now().UTC(),
		ExpiresAt: expiresAt.UTC(),
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "token_hash"}}, DoNothing: true}).
		Create(entry).Error
}

func (s *gormBlacklistStore) Contains(ctx context.Context, tokenHash string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.AdminTokenBlacklist{}).
		Where("token_hash = ?", tokenHash).
		Count(&count).Error
	return count > 0, err
}

func (s *gormBlacklistStore) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("expires_at < ?", before.UTC()).
		Delete(&models.AdminTokenBlacklist{})
	return res.RowsAffected, res.Error
}
