package db

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/lasercare/clinic/internal/platform/apperr"
)

const (
	pgUniqueViolation     = "23505"
	pgCheckViolation      = "23514"
	pgForeignKeyViolation = "23503"
	pgNotNullViolation    = "23502"
	pgInvalidText         = "22P02"
)

// uniqueCodes maps unique constraint names to specific duplicate codes.
var uniqueCodes = map[string]string{
	"patients_code_carte_key":        apperr.CodeDuplicateCode,
	"users_username_key":             apperr.CodeDuplicateUsername,
	"zone_definitions_code_key":      apperr.CodeDuplicateZone,
	"boxes_numero_key":               apperr.CodeDuplicateBox,
	"roles_name_key":                 apperr.CodeDuplicateRole,
	"box_assignments_box_id_key":     apperr.CodeBoxBusy,
	"pre_consultation_zones_pc_zone": apperr.CodeDuplicateZone,
	"patient_zones_patient_zone":     apperr.CodeDuplicateZone,
}

// quotaConstraint guards 0 <= seances_used <= seances_total.
const quotaConstraint = "patient_zones_seances_check"

// Classify converts driver errors into typed application errors. Errors that
// are already typed, and nil, pass through.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("", "not found").Wrap(err)
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgUniqueViolation:
		code := uniqueCodes[pgErr.ConstraintName]
		return apperr.Duplicate(code, pgErr.Detail).Wrap(err)
	case pgCheckViolation:
		if pgErr.ConstraintName == quotaConstraint {
			return apperr.QuotaExceeded("seances_used exceeds seances_total").Wrap(err)
		}
		return apperr.Validation(pgErr.Message).Wrap(err)
	case pgForeignKeyViolation, pgNotNullViolation, pgInvalidText:
		return apperr.Validation(pgErr.Message).Wrap(err)
	}
	return err
}

// NotFoundAs classifies err, reporting missing rows with the given code.
func NotFoundAs(err error, code string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound(code, "not found").Wrap(err)
	}
	return Classify(err)
}
