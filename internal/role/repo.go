package role

import (
	"context"
	"encoding/json"

	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) Create(ctx context.Context, role *Role) error {
	return r.db.WithContext(ctx).Create(role).Error
}

func (r *Repo) GetByID(ctx context.Context, id uint64) (*Role, error) {
	var role Role
	if err := r.db.WithContext(ctx).First(&role, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &role, nil
}

func (r *Repo) ListByUser(ctx context.Context, userID uint64) ([]Role, error) {
	var roles []Role
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id ASC").
		Find(&roles).Error; err != nil {
		return nil, err
	}
	return roles, nil
}

func (r *Repo) SearchByName(ctx context.Context, userID uint64, query string) ([]Role, error) {
	var roles []Role
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND name LIKE ?", userID, "%"+query+"%").
		Order("id ASC").
		Find(&roles).Error; err != nil {
		return nil, err
	}
	return roles, nil
}

func (r *Repo) Save(ctx context.Context, role *Role) error {
	return r.db.WithContext(ctx).Save(role).Error
}

func (r *Repo) Delete(ctx context.Context, id uint64) error {
	return r.db.WithContext(ctx).Delete(&Role{}, "id = ?", id).Error
}

// UpdateEmbedding stores the vector without touching the rest of the row, so
// a slow worker never clobbers a concurrent user edit.
func (r *Repo) UpdateEmbedding(ctx context.Context, id uint64, vector []float64) error {
	b, err := json.Marshal(vector)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Model(&Role{}).
		Where("id = ?", id).
		Update("embedding", string(b)).Error
}
