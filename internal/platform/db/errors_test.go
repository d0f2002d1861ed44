package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/lasercare/clinic/internal/platform/apperr"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind apperr.Kind
		code string
	}{
		{"no rows", pgx.ErrNoRows, apperr.KindNotFound, "NOT_FOUND"},
		{"card code", &pgconn.PgError{Code: "23505", ConstraintName: "patients_code_carte_key"}, apperr.KindDuplicate, apperr.CodeDuplicateCode},
		{"username", &pgconn.PgError{Code: "23505", ConstraintName: "users_username_key"}, apperr.KindDuplicate, apperr.CodeDuplicateUsername},
		{"unknown unique", &pgconn.PgError{Code: "23505", ConstraintName: "other_key"}, apperr.KindDuplicate, "DUPLICATE"},
		{"quota", &pgconn.PgError{Code: "23514", ConstraintName: "patient_zones_seances_check"}, apperr.KindQuotaExceeded, "QUOTA_EXCEEDED"},
		{"other check", &pgconn.PgError{Code: "23514", ConstraintName: "patients_sexe_check"}, apperr.KindValidation, "VALIDATION"},
		{"fk", &pgconn.PgError{Code: "23503"}, apperr.KindValidation, "VALIDATION"},
		{"wrapped", fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: "boxes_numero_key"}), apperr.KindDuplicate, apperr.CodeDuplicateBox},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			if apperr.KindOf(got) != tt.kind {
				t.Errorf("expected kind %s, got %s", tt.kind, apperr.KindOf(got))
			}
			if apperr.CodeOf(got) != tt.code {
				t.Errorf("expected code %s, got %s", tt.code, apperr.CodeOf(got))
			}
		})
	}
}

func TestClassify_PassThrough(t *testing.T) {
	if Classify(nil) != nil {
		t.Error("expected nil")
	}
	typed := apperr.Forbidden("no")
	if Classify(typed) != error(typed) {
		t.Error("expected typed error to pass through")
	}
	plain := errors.New("conn reset")
	if Classify(plain) != plain {
		t.Error("expected untyped error to pass through")
	}
}

func TestNotFoundAs(t *testing.T) {
	err := NotFoundAs(pgx.ErrNoRows, apperr.CodeBoxNotFound)
	if !apperr.HasCode(err, apperr.CodeBoxNotFound) {
		t.Errorf("expected BOX_NOT_FOUND, got %v", err)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		t.Error("expected cause to be kept")
	}
}
