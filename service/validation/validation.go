// Package validation carries the field-scoped error taxonomy shared by the
// schedule and booking domain checks, and the HTTP shape those errors take.
package validation

import (
	"encoding/json"
	"net/http"
)

// Codes for every rule the domain checks enforce. Handlers and tests match on
// these, messages are for humans.
const (
	CodeNotAClient                 = "not_a_client"
	CodePastDate                   = "past_date"
	CodeWeekdayMismatch            = "weekday_mismatch"
	CodeTimeOutOfWindow            = "time_out_of_window"
	CodeSlotAlreadyTaken           = "slot_already_taken"
	CodeDuplicateRequest           = "duplicate_request"
	CodeInvalidTimeRange           = "invalid_time_range"
	CodeTooShort                   = "too_short"
	CodeTooLong                    = "too_long"
	CodeTrainerNotInClub           = "trainer_not_in_club"
	CodeDuplicateSlot              = "duplicate_slot"
	CodeTerminalStateViolation     = "terminal_state_violation"
	CodeCannotCancelFinalized      = "cannot_cancel_finalized"
	CodeClientUpdateScopeViolation = "client_update_scope_violation"
	CodeInvalidValue               = "invalid"
)

// Error is a single violated rule, attributed to the offending field.
type Error struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Field + ": " + e.Message
}

func New(field, code, message string) *Error {
	return &Error{Field: field, Code: code, Message: message}
}

// WriteHTTP renders a validation failure as a 400 with a field→message map,
// the shape every validation error in the API shares.
func WriteHTTP(w http.ResponseWriter, errs ...*Error) {
	fields := make(map[string]string, len(errs))
	for _, e := range errs {
		fields[e.Field] = e.Message
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"errors": fields,
	})
}

// AsError returns err as a *Error when it is one, else nil.
func AsError(err error) *Error {
	if e, ok := err.(*Error); ok {
		return e
	}
	return nil
}
