package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Kind discriminates the error variants rendered by the HTTP error translator.
type Kind int

const (
	KindApplication Kind = iota
	KindAPI
	KindDocumentNotFound
	KindDocumentWithoutIdentifier
	KindValidation
	KindCredential
)

func (k Kind) String() string {
	switch k {
	case KindAPI:
		return "api"
	case KindDocumentNotFound:
		return "document-not-found"
	case KindDocumentWithoutIdentifier:
		return "document-without-identifier"
	case KindValidation:
		return "validation"
	case KindCredential:
		return "credential"
	}
	return "application"
}

const (
	CodeDocumentNotFound          = "application/document-not-found"
	CodeDocumentWithoutIdentifier = "application/document-without-identifier"
	CodeValidationsFail           = "application/validations-fail"
	CodeInternalError             = "application/internal-error"
	CodeWithoutPermission         = "application/without-permission"
)

// Error is the single error type raised by the domain layers. Status is only
// meaningful for API and credential errors; Collection and ID only for the
// document kinds.
type Error struct {
	Kind       Kind
	Code       string
	Message    string
	Status     int
	Collection string
	ID         string
	// Details is rendered verbatim under "errors" for validation failures.
	Details any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Kind == KindAPI {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// HTTPStatus returns the status the error translator renders for e.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindAPI:
		if e.Status == 0 {
			return http.StatusBadRequest
		}
		return e.Status
	case KindValidation:
		return http.StatusBadRequest
	case KindCredential:
		if e.Status == 0 {
			return http.StatusBadRequest
		}
		return e.Status
	}
	return http.StatusUnprocessableEntity
}

// Info is the {code, message} payload shared by every rendered error.
func (e *Error) Info() map[string]any {
	return map[string]any{"code": e.Code, "message": e.Message}
}

// New returns a plain application error.
func New(message, code string) *Error {
	return &Error{Kind: KindApplication, Code: code, Message: message}
}

// API returns an error carrying its own HTTP status; zero means 400.
func API(message, code string, status int) *Error {
	if status == 0 {
		status = http.StatusBadRequest
	}
	return &Error{Kind: KindAPI, Code: code, Message: message, Status: status}
}

// Wrap attaches cause to e and returns e.
func Wrap(cause error, e *Error) *Error {
	e.Err = cause
	return e
}

func DocumentNotFound(collection, id string) *Error {
	return &Error{
		Kind:       KindDocumentNotFound,
		Code:       CodeDocumentNotFound,
		Message:    fmt.Sprintf("Document '%s/%s' was not found.", collection, id),
		Collection: collection,
		ID:         id,
	}
}

func DocumentWithoutIdentifier() *Error {
	return &Error{
		Kind:    KindDocumentWithoutIdentifier,
		Code:    CodeDocumentWithoutIdentifier,
		Message: "Document without identifier.",
	}
}

// Credential returns an error raised by a credential provider. The status
// defaults to 400 like every other credential failure.
func Credential(code, message string, status int) *Error {
	return &Error{Kind: KindCredential, Code: code, Message: message, Status: status}
}

// Validation converts a binding or validator error into the validation variant.
// Details follow the {"_errors": [...], "<field>": {"_errors": [...]}} layout.
func Validation(err error) *Error {
	details := map[string]any{"_errors": []string{}}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			field := fe.Field()
			entry, ok := details[field].(map[string]any)
			if !ok {
				entry = map[string]any{"_errors": []string{}}
				details[field] = entry
			}
			entry["_errors"] = append(entry["_errors"].([]string), fieldMessage(fe))
		}
	} else if err != nil {
		details["_errors"] = []string{err.Error()}
	}
	return &Error{
		Kind:    KindValidation,
		Code:    CodeValidationsFail,
		Message: "Validation fails.",
		Details: details,
		Err:     err,
	}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "Required"
	case "min":
		return fmt.Sprintf("Must contain at least %s character(s)", fe.Param())
	case "max":
		return fmt.Sprintf("Must contain at most %s character(s)", fe.Param())
	case "email":
		return "Invalid email"
	case "oneof":
		opts := strings.Fields(fe.Param())
		for i, o := range opts {
			opts[i] = "'" + o + "'"
		}
		return "Invalid enum value. Expected " + strings.Join(opts, " | ")
	}
	return fe.Error()
}

// As reports whether err holds an *Error and returns it.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsKind reports whether err holds an *Error of kind k.
func IsKind(err error, k Kind) bool {
	e, ok := As(err)
	return ok && e.Kind == k
}
