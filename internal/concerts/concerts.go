// Package concerts implements concert CRUD. Deletion cascades through the
// ledger so no photo, comment or like survives its concert.
package concerts

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"concert-media/internal/apperr"
	"concert-media/internal/docstore"
	"concert-media/internal/ledger"
	"concert-media/internal/models"
)

type Service struct {
	store     docstore.Store
	ledger    *ledger.Ledger
	opTimeout time.Duration
}

func NewService(store docstore.Store, led *ledger.Ledger, opTimeout time.Duration) *Service {
	if opTimeout <= 0 {
		opTimeout = 10 * time.Second
	}
	return &Service{store: store, ledger: led, opTimeout: opTimeout}
}

type CreateParams struct {
	Title       string
	Date        time.Time
	Venue       string
	Description string
	CreatedBy   string
}

func (s *Service) Create(ctx context.Context, p CreateParams) (*models.Concert, error) {
	if p.Title == "" || p.Venue == "" || p.Date.IsZero() {
		return nil, apperr.New(apperr.Validation, "title, date, and venue are required")
	}
	concert := &models.Concert{
		ID:          uuid.NewString(),
		Title:       p.Title,
		Date:        p.Date.UTC(),
		Venue:       p.Venue,
		Description: p.Description,
		CreatedBy:   p.CreatedBy,
		CreatedAt:   time.Now().UTC(),
	}
	opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	if err := s.store.Create(opCtx, models.ConcertsCollection, concert.ID, concert.Doc()); err != nil {
		return nil, apperr.Wrap(apperr.PersistenceFailure, "concert insert failed", err)
	}
	return concert, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.Concert, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	doc, err := s.store.Get(opCtx, models.ConcertsCollection, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, apperr.New(apperr.NotFound, "concert not found")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.PersistenceFailure, "concert lookup failed", err)
	}
	return models.ConcertFromDoc(doc.ID, doc.Data), nil
}

// List returns all concerts, most recent date first.
func (s *Service) List(ctx context.Context) ([]*models.Concert, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	docs, err := s.store.Query(opCtx, models.ConcertsCollection, docstore.Query{
		OrderBy: "date",
		Desc:    true,
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.PersistenceFailure, "concert query failed", err)
	}
	out := make([]*models.Concert, 0, len(docs))
	for _, d := range docs {
		out = append(out, models.ConcertFromDoc(d.ID, d.Data))
	}
	return out, nil
}

type UpdateParams struct {
	Title       *string
	Date        *time.Time
	Venue       *string
	Description *string
}

func (s *Service) Update(ctx context.Context, id string, p UpdateParams) error {
	fields := map[string]any{"updated_at": time.Now().UTC()}
	if p.Title != nil {
		fields["title"] = *p.Title
	}
	if p.Date != nil {
		fields["date"] = p.Date.UTC()
	}
	if p.Venue != nil {
		fields["venue"] = *p.Venue
	}
	if p.Description != nil {
		fields["description"] = *p.Description
	}

	opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	err := s.store.Update(opCtx, models.ConcertsCollection, id, fields)
	if errors.Is(err, docstore.ErrNotFound) {
		return apperr.New(apperr.NotFound, "concert not found")
	}
	if err != nil {
		return apperr.Wrap(apperr.PersistenceFailure, "concert update failed", err)
	}
	return nil
}

// Delete removes the concert and everything under it.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.ledger.DeleteConcert(ctx, id)
}
