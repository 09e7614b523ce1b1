package document

import (
	"context"
	"sync"
	"time"

	"github.com/okatech-org/digitalium-archive/internal/archive/models"
	id "github.com/okatech-org/digitalium-archive/pkg/domain"
	"github.com/okatech-org/digitalium-archive/pkg/platform/sentinel"
)

// InMemory keeps documents in a map guarded by one mutex. Callbacks run on a
// clone and the clone is swapped in only after both succeed, so a validate
// rejection leaves the stored aggregate untouched.
type InMemory struct {
	mu        sync.RWMutex
	documents map[id.DocumentID]*models.Document
}

func NewInMemory() *InMemory {
	return &InMemory{documents: make(map[id.DocumentID]*models.Document)}
}

func (s *InMemory) Create(_ context.Context, doc *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.documents[doc.ID]; exists {
		return sentinel.ErrConflict
	}
	s.documents[doc.ID] = doc.Clone()
	return nil
}

func (s *InMemory) FindByID(_ context.Context, docID id.DocumentID) (*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[docID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return doc.Clone(), nil
}

func (s *InMemory) Execute(_ context.Context, docID id.DocumentID,
	validate func(*models.Document) error,
	mutate func(*models.Document)) (*models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.documents[docID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}

	working := stored.Clone()
	if err := validate(working); err != nil {
		return nil, err
	}
	mutate(working)
	working.Revision++

	s.documents[docID] = working
	return working.Clone(), nil
}

func (s *InMemory) ListRetentionDue(_ context.Context, now time.Time) ([]id.DocumentID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var due []id.DocumentID
	for docID, doc := range s.documents {
		if doc.Status.IsTerminal() {
			continue
		}
		if doc.RetentionEndDate != nil && !doc.RetentionEndDate.After(now) {
			due = append(due, docID)
		}
	}
	return due, nil
}
