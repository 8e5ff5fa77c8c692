package modelcfg

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/roleai-app/roleai/internal/keybox"
)

var (
	ErrNotFound     = gorm.ErrRecordNotFound
	ErrNotOwner     = errors.New("modelcfg: config belongs to another user")
	ErrMissingField = errors.New("modelcfg: modelId and apiKey are required")
)

const defaultProvider = "GEMINI"

type Service struct {
	repo *Repo
	box  *keybox.Box
}

func NewService(repo *Repo, box *keybox.Box) *Service {
	return &Service{repo: repo, box: box}
}

func (s *Service) Create(ctx context.Context, userID *uint64, provider, modelID, label, apiKey string) (*ModelConfig, error) {
	if strings.TrimSpace(modelID) == "" || strings.TrimSpace(apiKey) == "" {
		return nil, ErrMissingField
	}
	if strings.TrimSpace(provider) == "" {
		provider = defaultProvider
	}
	encrypted, err := s.box.Encrypt(apiKey)
	if err != nil {
		return nil, err
	}
	mc := &ModelConfig{
		UserID:          userID,
		Provider:        provider,
		ModelID:         modelID,
		EncryptedAPIKey: encrypted,
	}
	if label != "" {
		mc.Label = &label
	}
	if err := s.repo.Create(ctx, mc); err != nil {
		return nil, err
	}
	return mc, nil
}

func (s *Service) List(ctx context.Context, userID uint64) ([]ModelConfig, error) {
	return s.repo.ListForUser(ctx, userID)
}

func (s *Service) Get(ctx context.Context, id uint64) (*ModelConfig, error) {
	return s.repo.GetByID(ctx, id)
}

// Update applies a partial update. A blank apiKey keeps the stored credential;
// it is never overwritten with empty.
func (s *Service) Update(ctx context.Context, userID, id uint64, provider, modelID, label, apiKey string) (*ModelConfig, error) {
	mc, err := s.ownedBy(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if provider != "" {
		mc.Provider = provider
	}
	if modelID != "" {
		mc.ModelID = modelID
	}
	if label != "" {
		mc.Label = &label
	}
	if strings.TrimSpace(apiKey) != "" {
		encrypted, err := s.box.Encrypt(apiKey)
		if err != nil {
			return nil, err
		}
		mc.EncryptedAPIKey = encrypted
	}
	if err := s.repo.Save(ctx, mc); err != nil {
		return nil, err
	}
	return mc, nil
}

func (s *Service) Delete(ctx context.Context, userID, id uint64) error {
	if _, err := s.ownedBy(ctx, userID, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

// APIKeyPlain decrypts the stored credential for generation-time use.
func (s *Service) APIKeyPlain(mc *ModelConfig) (string, error) {
	return s.box.Decrypt(mc.EncryptedAPIKey)
}

func (s *Service) ownedBy(ctx context.Context, userID, id uint64) (*ModelConfig, error) {
	mc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if mc.UserID != nil && *mc.UserID != userID {
		return nil, ErrNotOwner
	}
	return mc, nil
}
