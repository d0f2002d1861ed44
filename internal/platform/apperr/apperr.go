// Package apperr defines the typed errors raised by services and the single
// place where they are translated into HTTP responses.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is the machine-readable category of a failure.
type Kind string

const (
	KindNotFound        Kind = "NOT_FOUND"
	KindDuplicate       Kind = "DUPLICATE"
	KindInvalidState    Kind = "INVALID_STATE"
	KindValidation      Kind = "VALIDATION"
	KindQuotaExceeded   Kind = "QUOTA_EXCEEDED"
	KindAuthInvalid     Kind = "AUTH_INVALID"
	KindAuthDisabled    Kind = "AUTH_DISABLED"
	KindForbidden       Kind = "FORBIDDEN"
	KindRateLimited     Kind = "RATE_LIMITED"
	KindPayloadTooLarge Kind = "PAYLOAD_TOO_LARGE"
	KindInternal        Kind = "INTERNAL"
)

// Specific codes carried alongside a Kind.
const (
	CodePatientNotFound         = "PATIENT_NOT_FOUND"
	CodePractitionerNotFound    = "PRACTITIONER_NOT_FOUND"
	CodePatientZoneNotFound     = "PATIENT_ZONE_NOT_FOUND"
	CodeZoneNotFound            = "ZONE_NOT_FOUND"
	CodePreConsultationNotFound = "PRE_CONSULTATION_NOT_FOUND"
	CodeSessionNotFound         = "SESSION_NOT_FOUND"
	CodeScheduleNotFound        = "SCHEDULE_NOT_FOUND"
	CodeQueueEntryNotFound      = "QUEUE_ENTRY_NOT_FOUND"
	CodeBoxNotFound             = "BOX_NOT_FOUND"
	CodeUserNotFound            = "USER_NOT_FOUND"
	CodeRoleNotFound            = "ROLE_NOT_FOUND"
	CodePackNotFound            = "PACK_NOT_FOUND"
	CodeSubscriptionNotFound    = "SUBSCRIPTION_NOT_FOUND"
	CodePaymentNotFound         = "PAYMENT_NOT_FOUND"
	CodePromotionNotFound       = "PROMOTION_NOT_FOUND"
	CodeQuestionNotFound        = "QUESTION_NOT_FOUND"
	CodeDocumentNotFound        = "DOCUMENT_NOT_FOUND"
	CodePhotoNotFound           = "PHOTO_NOT_FOUND"

	CodeDuplicateCode     = "DUPLICATE_CODE"
	CodeDuplicateUsername = "DUPLICATE_USERNAME"
	CodeDuplicateZone     = "DUPLICATE_ZONE"
	CodeDuplicateBox      = "DUPLICATE_BOX"
	CodeDuplicateRole     = "DUPLICATE_ROLE"
	CodeBoxBusy           = "BOX_BUSY"

	CodeNotSubmittable    = "NOT_SUBMITTABLE"
	CodeAlreadyPromoted   = "ALREADY_PROMOTED"
	CodeBoxInactive       = "BOX_INACTIVE"
	CodeSystemRole        = "SYSTEM_ROLE"
	CodeSelfDelete        = "SELF_DELETE"
	CodeDirectCreate      = "DIRECT_CREATE_REJECTED"
	CodeWrongPassword     = "WRONG_PASSWORD"
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeRoleInUse         = "ROLE_IN_USE"
)

// Error is a service failure with a kind, a specific code, and an optional
// detail payload.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Code != "" && e.Code != string(e.Kind) {
		msg = e.Code + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// WithDetails attaches a detail entry and returns the same error.
func (e *Error) WithDetails(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// Wrap records the underlying cause.
func (e *Error) Wrap(err error) *Error {
	e.Err = err
	return e
}

func newErr(kind Kind, code, msg string) *Error {
	if code == "" {
		code = string(kind)
	}
	return &Error{Kind: kind, Code: code, Message: msg}
}

func NotFound(code, msg string) *Error     { return newErr(KindNotFound, code, msg) }
func Duplicate(code, msg string) *Error    { return newErr(KindDuplicate, code, msg) }
func InvalidState(code, msg string) *Error { return newErr(KindInvalidState, code, msg) }
func Validation(msg string) *Error         { return newErr(KindValidation, "", msg) }
func QuotaExceeded(msg string) *Error      { return newErr(KindQuotaExceeded, "", msg) }
func AuthInvalid(msg string) *Error        { return newErr(KindAuthInvalid, "", msg) }
func AuthDisabled(msg string) *Error       { return newErr(KindAuthDisabled, "", msg) }
func Forbidden(msg string) *Error          { return newErr(KindForbidden, "", msg) }
func RateLimited(msg string) *Error        { return newErr(KindRateLimited, "", msg) }
func PayloadTooLarge(msg string) *Error    { return newErr(KindPayloadTooLarge, "", msg) }
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Code: string(KindInternal), Err: err}
}

// ValidationCode is Validation with a specific code.
func ValidationCode(code, msg string) *Error { return newErr(KindValidation, code, msg) }

// Validationf formats a validation message.
func Validationf(format string, args ...any) *Error {
	return Validation(fmt.Sprintf(format, args...))
}

// KindOf returns the kind of err, or KindInternal when err is not typed.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// CodeOf returns the specific code of err, or "" when err is not typed.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Is reports whether err is a typed error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// HasCode reports whether err carries the given specific code.
func HasCode(err error, code string) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}
