package questionnaire

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"

	"github.com/lasercare/clinic/internal/platform/apperr"
)

func TestRepo_List_Active(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	now := time.Now()
	mock.ExpectQuery(`FROM questions WHERE is_active ORDER BY ordre, created_at`).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "texte", "type_reponse", "options", "ordre", "is_required", "is_active", "created_at", "updated_at",
		}).AddRow(uuid.New(), "Méthode ?", TypeChoice, []string{"cire", "rasoir"}, 1, true, true, now, now))

	items, err := NewRepo(mock).List(context.Background(), true)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 1 || len(items[0].Options) != 2 {
		t.Errorf("unexpected items %+v", items)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestRepo_SetOrdre_Missing(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	id := uuid.New()
	mock.ExpectExec(`UPDATE questions SET ordre = \$2`).WithArgs(id, 3).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	if err := NewRepo(mock).SetOrdre(context.Background(), id, 3); !apperr.HasCode(err, apperr.CodeQuestionNotFound) {
		t.Errorf("expected QUESTION_NOT_FOUND, got %v", err)
	}
}
