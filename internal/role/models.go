package role

import (
	"encoding/json"
	"time"
)

type Role struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID      uint64    `gorm:"index;not null" json:"userId"`
	Name        string    `gorm:"type:varchar(128);not null" json:"name"`
	Description string    `gorm:"type:text;not null" json:"description"`
	// JSON-encoded []float64, filled asynchronously by the embed worker.
	Embedding *string   `gorm:"type:text" json:"-"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Role) TableName() string { return "roles" }

func (r *Role) EmbeddingVector() ([]float64, bool) {
	if r.Embedding == nil || *r.Embedding == "" {
		return nil, false
	}
	var v []float64
	if err := json.Unmarshal([]byte(*r.Embedding), &v); err != nil || len(v) == 0 {
		return nil, false
	}
	return v, true
}

func (r *Role) SetEmbeddingVector(v []float64) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s := string(b)
	r.Embedding = &s
	return nil
}
