package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/DarkSmileee/BlockShelf/internal/notes"
	pkgerrors "github.com/DarkSmileee/BlockShelf/pkg/errors"
)

type testNotesService struct {
	listFn   func(ctx context.Context, userID uuid.UUID) ([]notes.NoteDTO, error)
	createFn func(ctx context.Context, userID uuid.UUID, req notes.CreateNoteRequest) (notes.NoteDTO, error)
	updateFn func(ctx context.Context, userID, id uuid.UUID, req notes.UpdateNoteRequest) (notes.NoteDTO, error)
	deleteFn func(ctx context.Context, userID, id uuid.UUID) error
}

func (s *testNotesService) List(ctx context.Context, userID uuid.UUID) ([]notes.NoteDTO, error) {
	if s.listFn != nil {
		return s.listFn(ctx, userID)
	}
	return nil, nil
}

func (s *testNotesService) Create(ctx context.Context, userID uuid.UUID, req notes.CreateNoteRequest) (notes.NoteDTO, error) {
	if s.createFn != nil {
		return s.createFn(ctx, userID, req)
	}
	return notes.NoteDTO{}, nil
}

func (s *testNotesService) Update(ctx context.Context, userID, id uuid.UUID, req notes.UpdateNoteRequest) (notes.NoteDTO, error) {
	if s.updateFn != nil {
		return s.updateFn(ctx, userID, id, req)
	}
	return notes.NoteDTO{}, nil
}

func (s *testNotesService) Delete(ctx context.Context, userID, id uuid.UUID) error {
	if s.deleteFn != nil {
		return s.deleteFn(ctx, userID, id)
	}
	return nil
}

func TestNoteCreateSuccess(t *testing.T) {
	viewerID := uuid.New()
	svc := &testNotesService{
		createFn: func(ctx context.Context, uid uuid.UUID, req notes.CreateNoteRequest) (notes.NoteDTO, error) {
			if uid != viewerID {
				t.Fatalf("unexpected user %s", uid)
			}
			if req.Title != "Wanted list" {
				t.Fatalf("unexpected payload %+v", req)
			}
			return notes.NoteDTO{ID: uuid.New(), Title: req.Title}, nil
		},
	}

	body := `{"title":"Wanted list","description":"minifig torsos"}`
	req := authedRequest(http.MethodPost, "/api/v1/notes", strings.NewReader(body), viewerID)
	resp := httptest.NewRecorder()
	NoteCreate(svc, testLogger())(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", resp.Code)
	}
}

func TestNoteCreateTitleRequired(t *testing.T) {
	svc := &testNotesService{
		createFn: func(ctx context.Context, uid uuid.UUID, req notes.CreateNoteRequest) (notes.NoteDTO, error) {
			return notes.NoteDTO{}, pkgerrors.New(pkgerrors.CodeValidation, "note title is required")
		},
	}

	body := `{"title":"","description":"x"}`
	req := authedRequest(http.MethodPost, "/api/v1/notes", strings.NewReader(body), uuid.New())
	resp := httptest.NewRecorder()
	NoteCreate(svc, testLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestNoteUpdateNotFound(t *testing.T) {
	svc := &testNotesService{
		updateFn: func(ctx context.Context, userID, id uuid.UUID, req notes.UpdateNoteRequest) (notes.NoteDTO, error) {
			return notes.NoteDTO{}, pkgerrors.New(pkgerrors.CodeNotFound, "note not found")
		},
	}

	noteID := uuid.NewString()
	req := authedRequest(http.MethodPatch, "/api/v1/notes/"+noteID, strings.NewReader(`{"title":"x"}`), uuid.New())
	req = addRouteParam(req, "noteID", noteID)
	resp := httptest.NewRecorder()
	NoteUpdate(svc, testLogger())(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}

func TestNoteDeleteSuccess(t *testing.T) {
	noteID := uuid.New()
	called := false
	svc := &testNotesService{
		deleteFn: func(ctx context.Context, userID, id uuid.UUID) error {
			if id != noteID {
				t.Fatalf("unexpected note %s", id)
			}
			called = true
			return nil
		},
	}

	req := authedRequest(http.MethodDelete, "/api/v1/notes/"+noteID.String(), nil, uuid.New())
	req = addRouteParam(req, "noteID", noteID.String())
	resp := httptest.NewRecorder()
	NoteDelete(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if !called {
		t.Fatal("expected delete called")
	}
}

func TestNotesList(t *testing.T) {
	svc := &testNotesService{
		listFn: func(ctx context.Context, userID uuid.UUID) ([]notes.NoteDTO, error) {
			return []notes.NoteDTO{{Title: "first"}, {Title: "second"}}, nil
		},
	}

	req := authedRequest(http.MethodGet, "/api/v1/notes", nil, uuid.New())
	resp := httptest.NewRecorder()
	NotesList(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	var list []notes.NoteDTO
	decodeEnvelope(t, resp, &list)
	if len(list) != 2 {
		t.Fatalf("unexpected list %+v", list)
	}
}
