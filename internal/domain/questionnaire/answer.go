package questionnaire

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/lasercare/clinic/internal/platform/apperr"
)

// ValidateAnswer checks that a raw answer has the shape the question's type
// expects. Null is always accepted.
func ValidateAnswer(q *Question, raw json.RawMessage) error {
	if isNull(raw) {
		return nil
	}
	invalid := func() error {
		return apperr.Validationf("invalid answer for %s question", q.TypeReponse).
			WithDetails("question_id", q.ID.String())
	}
	switch q.TypeReponse {
	case TypeBoolean:
		var b bool
		if json.Unmarshal(raw, &b) != nil {
			return invalid()
		}
	case TypeText:
		var s string
		if json.Unmarshal(raw, &s) != nil {
			return invalid()
		}
	case TypeNumber:
		var f float64
		if json.Unmarshal(raw, &f) != nil {
			return invalid()
		}
	case TypeChoice:
		var s string
		if json.Unmarshal(raw, &s) != nil || !contains(q.Options, s) {
			return invalid()
		}
	case TypeMultipleChoice:
		var list []string
		if json.Unmarshal(raw, &list) != nil {
			return invalid()
		}
		for _, s := range list {
			if !contains(q.Options, s) {
				return invalid()
			}
		}
	default:
		return invalid()
	}
	return nil
}

// IsAnswered reports whether raw holds a non-empty answer: not null, not a
// blank string, not an empty list.
func IsAnswered(raw json.RawMessage) bool {
	if isNull(raw) {
		return false
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return strings.TrimSpace(s) != ""
	}
	var list []json.RawMessage
	if json.Unmarshal(raw, &list) == nil {
		return len(list) > 0
	}
	return true
}

func isNull(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
