package modelcfg

import (
	"context"

	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) Create(ctx context.Context, mc *ModelConfig) error {
	return r.db.WithContext(ctx).Create(mc).Error
}

func (r *Repo) GetByID(ctx context.Context, id uint64) (*ModelConfig, error) {
	var mc ModelConfig
	if err := r.db.WithContext(ctx).First(&mc, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &mc, nil
}

// ListForUser returns the user's own configs plus global ones.
func (r *Repo) ListForUser(ctx context.Context, userID uint64) ([]ModelConfig, error) {
	var list []ModelConfig
	if err := r.db.WithContext(ctx).
		Where("user_id = ? OR user_id IS NULL", userID).
		Order("id ASC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *Repo) Save(ctx context.Context, mc *ModelConfig) error {
	return r.db.WithContext(ctx).Save(mc).Error
}

func (r *Repo) Delete(ctx context.Context, id uint64) error {
	return r.db.WithContext(ctx).Delete(&ModelConfig{}, "id = ?", id).Error
}
