package notes

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/DarkSmileee/BlockShelf/pkg/db/models"
	pkgerrors "github.com/DarkSmileee/BlockShelf/pkg/errors"
	"github.com/DarkSmileee/BlockShelf/pkg/sanitize"
)

// NoteDTO is the API shape of one notepad entry.
type NoteDTO struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreateNoteRequest creates a note; UpdateNoteRequest patches one.
type CreateNoteRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type UpdateNoteRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

func fromModel(note *models.Note) NoteDTO {
	return NoteDTO{
		ID:          note.ID,
		Title:       note.Title,
		Description: note.Description,
		CreatedAt:   note.CreatedAt,
		UpdatedAt:   note.UpdatedAt,
	}
}

// Service is the per-user notepad.
type Service interface {
	List(ctx context.Context, userID uuid.UUID) ([]NoteDTO, error)
	Create(ctx context.Context, userID uuid.UUID, req CreateNoteRequest) (NoteDTO, error)
	Update(ctx context.Context, userID, id uuid.UUID, req UpdateNoteRequest) (NoteDTO, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
}

type service struct {
	repo *Repository
}

func NewService(repo *Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "notes repo is required")
	}
	return &service{repo: repo}, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID) ([]NoteDTO, error) {
	notes, err := s.repo.List(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list notes")
	}
	dtos := make([]NoteDTO, 0, len(notes))
	for i := range notes {
		dtos = append(dtos, fromModel(&notes[i]))
	}
	return dtos, nil
}

func (s *service) Create(ctx context.Context, userID uuid.UUID, req CreateNoteRequest) (NoteDTO, error) {
	title := sanitize.Text(req.Title)
	if title == "" {
		return NoteDTO{}, pkgerrors.New(pkgerrors.CodeValidation, "title is required")
	}
	note := models.Note{
		UserID:      userID,
		Title:       title,
		Description: sanitize.Text(req.Description),
	}
	if err := s.repo.Create(ctx, &note); err != nil {
		return NoteDTO{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create note")
	}
	return fromModel(&note), nil
}

func (s *service) Update(ctx context.Context, userID, id uuid.UUID, req UpdateNoteRequest) (NoteDTO, error) {
	note, err := s.repo.Get(ctx, userID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return NoteDTO{}, pkgerrors.New(pkgerrors.CodeNotFound, "note not found")
		}
		return NoteDTO{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load note")
	}

	if req.Title != nil {
		if title := sanitize.Text(*req.Title); title != "" {
			note.Title = title
		}
	}
	if req.Description != nil {
		note.Description = sanitize.Text(*req.Description)
	}

	if err := s.repo.Save(ctx, note); err != nil {
		return NoteDTO{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update note")
	}
	return fromModel(note), nil
}

func (s *service) Delete(ctx context.Context, userID, id uuid.UUID) error {
	deleted, err := s.repo.Delete(ctx, userID, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete note")
	}
	if !deleted {
		return pkgerrors.New(pkgerrors.CodeNotFound, "note not found")
	}
	return nil
}
