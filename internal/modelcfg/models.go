package modelcfg

import "time"

type ModelConfig struct {
	ID       uint64  `gorm:"primaryKey;autoIncrement"`
	UserID   *uint64 `gorm:"index"` // nil = global config visible to everyone
	Provider string  `gorm:"type:varchar(32);not null"`
	ModelID  string  `gorm:"type:varchar(128);not null"`
	Label    *string `gorm:"type:varchar(128)"`
	// AES-GCM ciphertext, never exposed by the API.
	EncryptedAPIKey string    `gorm:"type:varchar(4096);not null"`
	CreatedAt       time.Time
}

func (ModelConfig) TableName() string { return "model_configs" }

// Sanitized is the read shape: everything except the credential.
type Sanitized struct {
	ID        uint64    `json:"id"`
	Provider  string    `json:"provider"`
	ModelID   string    `json:"modelId"`
	Label     *string   `json:"label"`
	UserID    *uint64   `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}

func (m *ModelConfig) Sanitize() Sanitized {
	return Sanitized{
		ID:        m.ID,
		Provider:  m.Provider,
		ModelID:   m.ModelID,
		Label:     m.Label,
		UserID:    m.UserID,
		CreatedAt: m.CreatedAt,
	}
}

// DisplayName falls back to the raw model id when no label was set.
func (m *ModelConfig) DisplayName() string {
	if m.Label != nil && *m.Label != "" {
		return *m.Label
	}
	return m.ModelID
}
