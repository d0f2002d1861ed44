package apperr

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

var kindStatus = map[Kind]int{
	KindNotFound:        http.StatusNotFound,
	KindDuplicate:       http.StatusConflict,
	KindInvalidState:    http.StatusBadRequest,
	KindValidation:      http.StatusBadRequest,
	KindQuotaExceeded:   http.StatusConflict,
	KindAuthInvalid:     http.StatusUnauthorized,
	KindAuthDisabled:    http.StatusUnauthorized,
	KindForbidden:       http.StatusForbidden,
	KindRateLimited:     http.StatusTooManyRequests,
	KindPayloadTooLarge: http.StatusRequestEntityTooLarge,
	KindInternal:        http.StatusInternalServerError,
}

var kindMessage = map[Kind]string{
	KindNotFound:        "Ressource introuvable",
	KindDuplicate:       "Cette ressource existe déjà",
	KindInvalidState:    "Opération impossible dans l'état actuel",
	KindValidation:      "Données invalides",
	KindQuotaExceeded:   "Nombre de séances épuisé pour cette zone",
	KindAuthInvalid:     "Authentification requise",
	KindAuthDisabled:    "Compte désactivé",
	KindForbidden:       "Permission refusée",
	KindRateLimited:     "Trop de requêtes, réessayez plus tard",
	KindPayloadTooLarge: "Fichier trop volumineux",
	KindInternal:        "Erreur interne du serveur",
}

var codeMessage = map[string]string{
	CodePatientNotFound:         "Patient introuvable",
	CodePractitionerNotFound:    "Praticien introuvable",
	CodePatientZoneNotFound:     "Zone du patient introuvable",
	CodeZoneNotFound:            "Zone introuvable",
	CodePreConsultationNotFound: "Pré-consultation introuvable",
	CodeSessionNotFound:         "Séance introuvable",
	CodeScheduleNotFound:        "Rendez-vous introuvable",
	CodeQueueEntryNotFound:      "Entrée de file d'attente introuvable",
	CodeBoxNotFound:             "Box introuvable",
	CodeUserNotFound:            "Utilisateur introuvable",
	CodeRoleNotFound:            "Rôle introuvable",
	CodePackNotFound:            "Pack introuvable",
	CodeSubscriptionNotFound:    "Abonnement introuvable",
	CodePaymentNotFound:         "Paiement introuvable",
	CodePromotionNotFound:       "Promotion introuvable",
	CodeQuestionNotFound:        "Question introuvable",
	CodeDocumentNotFound:        "Document introuvable",
	CodePhotoNotFound:           "Photo introuvable",
	CodeDuplicateCode:           "Ce code carte existe déjà",
	CodeDuplicateUsername:       "Ce nom d'utilisateur existe déjà",
	CodeDuplicateZone:           "Cette zone existe déjà",
	CodeDuplicateBox:            "Ce numéro de box existe déjà",
	CodeDuplicateRole:           "Ce rôle existe déjà",
	CodeBoxBusy:                 "Ce box est déjà occupé par un autre praticien",
	CodeNotSubmittable:          "La pré-consultation ne peut pas être soumise",
	CodeAlreadyPromoted:         "Un patient a déjà été créé pour cette pré-consultation",
	CodeBoxInactive:             "Ce box est désactivé",
	CodeSystemRole:              "Les rôles système ne peuvent pas être modifiés",
	CodeSelfDelete:              "Vous ne pouvez pas supprimer votre propre compte",
	CodeDirectCreate:            "Les patients sont créés depuis une pré-consultation validée",
	CodeWrongPassword:           "Mot de passe actuel incorrect",
	CodeRoleInUse:               "Ce rôle est attribué à des utilisateurs",
}

// Status returns the HTTP status code for a kind.
func Status(kind Kind) int {
	if s, ok := kindStatus[kind]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// Message returns the French user-facing message for a typed error. Service
// messages are kept for validation errors, where they name the offending field.
func Message(e *Error) string {
	if e.Kind == KindValidation && e.Message != "" {
		if m, ok := codeMessage[e.Code]; ok {
			return m
		}
		return e.Message
	}
	if m, ok := codeMessage[e.Code]; ok {
		return m
	}
	if m, ok := kindMessage[e.Kind]; ok {
		return m
	}
	return kindMessage[KindInternal]
}

// Body is the JSON error envelope.
type Body struct {
	Detail  string         `json:"detail"`
	Code    string         `json:"code"`
	Details map[string]any `json:"details,omitempty"`
}

// HTTPErrorHandler translates typed errors into status codes and bodies.
// echo.HTTPErrors raised by middleware or binding pass through unchanged.
func HTTPErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var status int
		var body Body

		var he *echo.HTTPError
		var ae *Error
		switch {
		case errors.As(err, &ae):
			status = Status(ae.Kind)
			body = Body{Detail: Message(ae), Code: ae.Code, Details: ae.Details}
		case errors.As(err, &he):
			status = he.Code
			msg, ok := he.Message.(string)
			if !ok {
				msg = http.StatusText(he.Code)
			}
			body = Body{Detail: msg, Code: httpCode(he.Code)}
		default:
			status = http.StatusInternalServerError
			body = Body{Detail: kindMessage[KindInternal], Code: string(KindInternal)}
		}

		if status >= http.StatusInternalServerError {
			logger.Error().Err(err).
				Str("method", c.Request().Method).
				Str("path", c.Path()).
				Msg("request failed")
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, body)
		}
		if err != nil {
			logger.Error().Err(err).Msg("write error response")
		}
	}
}

func httpCode(status int) string {
	switch status {
	case http.StatusUnauthorized:
		return string(KindAuthInvalid)
	case http.StatusForbidden:
		return string(KindForbidden)
	case http.StatusNotFound:
		return string(KindNotFound)
	case http.StatusTooManyRequests:
		return string(KindRateLimited)
	case http.StatusRequestEntityTooLarge:
		return string(KindPayloadTooLarge)
	case http.StatusConflict:
		return string(KindDuplicate)
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return string(KindValidation)
	}
	if status >= http.StatusInternalServerError {
		return string(KindInternal)
	}
	return http.StatusText(status)
}
