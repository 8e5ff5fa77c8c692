package role

import (
	"context"
	"fmt"
	"strings"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type fakeEmbedder struct {
	vectors map[string][]float64
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return []float64{1, 0, 0}, nil
}

type recordingPublisher struct {
	roleIDs []uint64
}

func (p *recordingPublisher) PublishRoleIndex(_ context.Context, roleID uint64) error {
	p.roleIDs = append(p.roleIDs, roleID)
	return nil
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", "#", "_").Replace(t.Name())
	db, err := gorm.Open(gormsqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Role{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func TestCreateAndOwnership(t *testing.T) {
	db := openTestDB(t)
	pub := &recordingPublisher{}
	svc := NewService(NewRepo(db), pub, nil)

	r, err := svc.Create(context.Background(), 1, "Skeptic", "Questions every claim")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if r.ID == 0 {
		t.Fatalf("expected id to be assigned")
	}
	if len(pub.roleIDs) != 1 || pub.roleIDs[0] != r.ID {
		t.Fatalf("expected one index job for role %d, got %v", r.ID, pub.roleIDs)
	}

	// another user must not see it
	if _, err := svc.Get(context.Background(), 2, r.ID); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound for foreign user, got %v", err)
	}
	got, err := svc.Get(context.Background(), 1, r.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Skeptic" {
		t.Fatalf("unexpected name %q", got.Name)
	}
}

func TestCreate_Invalid(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(NewRepo(db), nil, nil)

	if _, err := svc.Create(context.Background(), 1, "  ", "desc"); err != ErrInvalidRole {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
	if _, err := svc.Create(context.Background(), 1, "name", ""); err != ErrInvalidRole {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
}

func TestUpdate_ClearsEmbeddingAndReindexes(t *testing.T) {
	db := openTestDB(t)
	pub := &recordingPublisher{}
	svc := NewService(NewRepo(db), pub, nil)

	r, err := svc.Create(context.Background(), 1, "Coach", "Motivates")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := NewRepo(db).UpdateEmbedding(context.Background(), r.ID, []float64{1, 2}); err != nil {
		t.Fatalf("seed embedding: %v", err)
	}

	updated, err := svc.Update(context.Background(), 1, r.ID, "Coach v2", "")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "Coach v2" || updated.Description != "Motivates" {
		t.Fatalf("partial update wrong: %+v", updated)
	}
	if _, ok := updated.EmbeddingVector(); ok {
		t.Fatalf("expected embedding cleared after edit")
	}
	if len(pub.roleIDs) != 2 {
		t.Fatalf("expected reindex job, got %v", pub.roleIDs)
	}
}

func TestSearchByName(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(NewRepo(db), nil, nil)

	for _, name := range []string{"Pirate Captain", "Calm Therapist", "Pirate Cook"} {
		if _, err := svc.Create(context.Background(), 1, name, "d"); err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
	}

	got, err := svc.Search(context.Background(), 1, "Pirate")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(got))
	}
}

func TestFindSimilar_RanksByCosine(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db)
	emb := &fakeEmbedder{vectors: map[string][]float64{
		"ship stories": {1, 0, 0},
	}}
	svc := NewService(repo, nil, emb)

	a, _ := svc.Create(context.Background(), 1, "Pirate", "sails")
	b, _ := svc.Create(context.Background(), 1, "Therapist", "listens")
	c, _ := svc.Create(context.Background(), 1, "Unindexed", "no vector yet")
	_ = c

	if err := repo.UpdateEmbedding(context.Background(), a.ID, []float64{0.9, 0.1, 0}); err != nil {
		t.Fatalf("embed a: %v", err)
	}
	if err := repo.UpdateEmbedding(context.Background(), b.ID, []float64{0, 1, 0}); err != nil {
		t.Fatalf("embed b: %v", err)
	}

	matches, err := svc.FindSimilar(context.Background(), 1, "ship stories", 5)
	if err != nil {
		t.Fatalf("find similar: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 indexed matches, got %d", len(matches))
	}
	if matches[0].Role.ID != a.ID {
		t.Fatalf("expected Pirate first, got %q", matches[0].Role.Name)
	}
	if matches[0].Score <= matches[1].Score {
		t.Fatalf("expected descending scores: %v", matches)
	}
}

func TestIndexRole_StoresVector(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db)
	emb := &fakeEmbedder{vectors: map[string][]float64{}}
	svc := NewService(repo, nil, emb)

	r, err := svc.Create(context.Background(), 1, "Bard", "sings")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.IndexRole(context.Background(), r.ID); err != nil {
		t.Fatalf("index: %v", err)
	}

	got, err := repo.GetByID(context.Background(), r.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if _, ok := got.EmbeddingVector(); !ok {
		t.Fatalf("expected stored embedding")
	}
}
