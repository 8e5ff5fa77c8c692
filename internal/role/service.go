package role

import (
	"context"
	"errors"
	"log"
	"math"
	"sort"
	"strings"

	"gorm.io/gorm"

	"github.com/roleai-app/roleai/internal/ai"
)

var (
	ErrNotFound    = gorm.ErrRecordNotFound
	ErrInvalidRole = errors.New("role: name and description are required")
)

// IndexPublisher enqueues a role for background embedding. Implemented by the
// rabbitmq publisher; nil disables indexing.
type IndexPublisher interface {
	PublishRoleIndex(ctx context.Context, roleID uint64) error
}

type Service struct {
	repo      *Repo
	publisher IndexPublisher
	embedder  ai.Embedder
}

func NewService(repo *Repo, publisher IndexPublisher, embedder ai.Embedder) *Service {
	return &Service{repo: repo, publisher: publisher, embedder: embedder}
}

func (s *Service) Create(ctx context.Context, userID uint64, name, description string) (*Role, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.TrimSpace(description) == "" {
		return nil, ErrInvalidRole
	}
	role := &Role{UserID: userID, Name: name, Description: description}
	if err := s.repo.Create(ctx, role); err != nil {
		return nil, err
	}
	s.enqueueIndex(ctx, role.ID)
	return role, nil
}

func (s *Service) Get(ctx context.Context, userID, id uint64) (*Role, error) {
	role, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if role.UserID != userID {
		return nil, ErrNotFound
	}
	return role, nil
}

// Lookup fetches a role without an ownership check. Generation uses it so a
// role referenced by an old message still resolves for its owner.
func (s *Service) Lookup(ctx context.Context, id uint64) (*Role, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, userID uint64) ([]Role, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *Service) Search(ctx context.Context, userID uint64, query string) ([]Role, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return s.repo.ListByUser(ctx, userID)
	}
	return s.repo.SearchByName(ctx, userID, query)
}

func (s *Service) Update(ctx context.Context, userID, id uint64, name, description string) (*Role, error) {
	role, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(name) != "" {
		role.Name = strings.TrimSpace(name)
	}
	if strings.TrimSpace(description) != "" {
		role.Description = description
	}
	// stale after edit; worker refills it
	role.Embedding = nil
	if err := s.repo.Save(ctx, role); err != nil {
		return nil, err
	}
	s.enqueueIndex(ctx, role.ID)
	return role, nil
}

func (s *Service) Delete(ctx context.Context, userID, id uint64) error {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

type Match struct {
	Role  Role    `json:"role"`
	Score float64 `json:"score"`
}

// FindSimilar ranks the user's roles against a free-text description by
// cosine similarity over stored embeddings. Roles not yet indexed are skipped.
func (s *Service) FindSimilar(ctx context.Context, userID uint64, description string, limit int) ([]Match, error) {
	if limit <= 0 || limit > 20 {
		limit = 5
	}
	if s.embedder == nil {
		return nil, errors.New("role: similarity search is not configured")
	}

	query, err := s.embedder.Embed(ctx, description)
	if err != nil {
		return nil, err
	}

	roles, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	matches := make([]Match, 0, len(roles))
	for _, r := range roles {
		vec, ok := r.EmbeddingVector()
		if !ok {
			continue
		}
		score := cosine(query, vec)
		if math.IsNaN(score) {
			continue
		}
		matches = append(matches, Match{Role: r, Score: score})
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// IndexRole computes and stores the embedding for one role. Called by the
// worker, not the request path.
func (s *Service) IndexRole(ctx context.Context, roleID uint64) error {
	if s.embedder == nil {
		return errors.New("role: embedder not configured")
	}
	role, err := s.repo.GetByID(ctx, roleID)
	if err != nil {
		return err
	}
	vec, err := s.embedder.Embed(ctx, role.Name+": "+role.Description)
	if err != nil {
		return err
	}
	return s.repo.UpdateEmbedding(ctx, roleID, vec)
}

func (s *Service) enqueueIndex(ctx context.Context, roleID uint64) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishRoleIndex(ctx, roleID); err != nil {
		// CRUD outcome must not depend on the broker
		log.Printf("role: enqueue index role_id=%d err=%v", roleID, err)
	}
}

func cosine(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return math.NaN()
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return math.NaN()
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
