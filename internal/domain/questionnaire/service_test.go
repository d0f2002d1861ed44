package questionnaire

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/lasercare/clinic/internal/platform/apperr"
	"github.com/lasercare/clinic/internal/platform/db"
)

type mockRepo struct {
	items map[uuid.UUID]*Question
}

func newMockRepo() *mockRepo {
	return &mockRepo{items: make(map[uuid.UUID]*Question)}
}

func (m *mockRepo) Create(_ context.Context, q *Question) error {
	q.ID = uuid.New()
	cp := *q
	m.items[q.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Question, error) {
	q, ok := m.items[id]
	if !ok {
		return nil, apperr.NotFound(apperr.CodeQuestionNotFound, "question not found")
	}
	cp := *q
	return &cp, nil
}

func (m *mockRepo) Update(_ context.Context, q *Question) error {
	cp := *q
	m.items[q.ID] = &cp
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.items[id]; !ok {
		return apperr.NotFound(apperr.CodeQuestionNotFound, "question not found")
	}
	delete(m.items, id)
	return nil
}

func (m *mockRepo) List(_ context.Context, activeOnly bool) ([]*Question, error) {
	var out []*Question
	for _, q := range m.items {
		if !activeOnly || q.IsActive {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ordre < out[j].Ordre })
	return out, nil
}

func (m *mockRepo) MaxOrdre(context.Context) (int, error) {
	n := 0
	for _, q := range m.items {
		if q.Ordre > n {
			n = q.Ordre
		}
	}
	return n, nil
}

func (m *mockRepo) SetOrdre(_ context.Context, id uuid.UUID, ordre int) error {
	q, ok := m.items[id]
	if !ok {
		return apperr.NotFound(apperr.CodeQuestionNotFound, "question not found")
	}
	q.Ordre = ordre
	return nil
}

func newTestService() (*Service, *mockRepo) {
	repo := newMockRepo()
	return NewService(repo, db.NoTx{}), repo
}

func TestService_Create_AppendsOrdre(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	a, err := svc.Create(ctx, CreateRequest{Texte: "Allergies ?", TypeReponse: TypeBoolean, IsRequired: true})
	if err != nil {
		t.Fatal(err)
	}
	b, err := svc.Create(ctx, CreateRequest{Texte: "Méthode", TypeReponse: TypeChoice, Options: []string{"cire", "rasoir"}})
	if err != nil {
		t.Fatal(err)
	}
	if a.Ordre != 1 || b.Ordre != 2 {
		t.Errorf("expected ordre 1 and 2, got %d and %d", a.Ordre, b.Ordre)
	}
	if a.Options == nil || len(a.Options) != 0 {
		t.Errorf("expected empty options for boolean, got %v", a.Options)
	}
}

func TestService_Create_Validation(t *testing.T) {
	svc, _ := newTestService()
	cases := []CreateRequest{
		{TypeReponse: TypeText},
		{Texte: "x", TypeReponse: "date"},
		{Texte: "x", TypeReponse: TypeMultipleChoice},
	}
	for i, req := range cases {
		if _, err := svc.Create(context.Background(), req); !apperr.Is(err, apperr.KindValidation) {
			t.Errorf("case %d: expected validation error, got %v", i, err)
		}
	}
}

func TestService_UpdateAndDeactivate(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	q, _ := svc.Create(ctx, CreateRequest{Texte: "Traitement en cours ?", TypeReponse: TypeText})
	off := false
	if _, err := svc.Update(ctx, q.ID, UpdateRequest{IsActive: &off}); err != nil {
		t.Fatal(err)
	}
	active, _ := svc.Active(ctx)
	all, _ := svc.List(ctx, false)
	if len(active) != 0 || len(all) != 1 {
		t.Errorf("expected 0 active and 1 total, got %d and %d", len(active), len(all))
	}
}

func TestService_Reorder(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	a, _ := svc.Create(ctx, CreateRequest{Texte: "A", TypeReponse: TypeText})
	b, _ := svc.Create(ctx, CreateRequest{Texte: "B", TypeReponse: TypeText})
	c, _ := svc.Create(ctx, CreateRequest{Texte: "C", TypeReponse: TypeText})

	if err := svc.Reorder(ctx, []uuid.UUID{c.ID, a.ID, b.ID}); err != nil {
		t.Fatal(err)
	}
	if repo.items[c.ID].Ordre != 1 || repo.items[a.ID].Ordre != 2 || repo.items[b.ID].Ordre != 3 {
		t.Error("unexpected order after reorder")
	}
	if err := svc.Reorder(ctx, []uuid.UUID{a.ID, a.ID}); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("expected validation error for duplicates, got %v", err)
	}
	if err := svc.Reorder(ctx, []uuid.UUID{uuid.New()}); !apperr.HasCode(err, apperr.CodeQuestionNotFound) {
		t.Errorf("expected QUESTION_NOT_FOUND, got %v", err)
	}
}

func TestHandler_CreateAndReorder(t *testing.T) {
	svc, _ := newTestService()
	h := NewHandler(svc)
	e := echo.New()

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"texte":"Enceinte ?","type_reponse":"boolean","is_required":true}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	if err := h.Create(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPut, "/order", strings.NewReader(`{"ids":[]}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if err := h.Reorder(e.NewContext(req, httptest.NewRecorder())); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}
