package transaction

import (
	"errors"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

// Input is the raw transaction data supplied by a caller.
type Input struct {
	Date    time.Time    `json:"date" validate:"required"`
	Payee   string       `json:"payee" validate:"required"`
	Notes   string       `json:"notes"`
	Entries []EntryInput `json:"entries" validate:"required,min=2,dive"`
}

// EntryInput is one raw entry. A nil Amount marks the balancing entry whose
// value is inferred from the others.
type EntryInput struct {
	Account string       `json:"account" validate:"required"`
	Amount  *AmountInput `json:"amount"`
}

// AmountInput is a raw monetary value in minor units of the named currency.
type AmountInput struct {
	Currency string `json:"currency" validate:"required"`
	Value    int64  `json:"value"`
}

var (
	inputValidator *validator.Validate
	validatorOnce  sync.Once
)

func initInputValidator() {
	inputValidator = validator.New(validator.WithRequiredStructEnabled())

	// Report field paths by JSON name so errors address the caller's own
	// representation: "entries[1].account", not "Entries[1].Account".
	inputValidator.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}

		return name
	})
}

// validateStruct runs the structural rules and translates validator failures
// into field errors.
func validateStruct(input Input) []FieldError {
	validatorOnce.Do(initInputValidator)

	err := inputValidator.Struct(input)
	if err == nil {
		return nil
	}

	var violations validator.ValidationErrors
	if !errors.As(err, &violations) {
		return []FieldError{{Field: "input", Code: CodeInvalid}}
	}

	fields := make([]FieldError, 0, len(violations))
	for _, violation := range violations {
		fields = append(fields, FieldError{
			Field: fieldPath(violation.Namespace()),
			Code:  codeForTag(violation.Tag()),
		})
	}

	return fields
}

// fieldPath strips the root struct segment from a validator namespace:
// "Input.entries[1].account" becomes "entries[1].account".
func fieldPath(namespace string) string {
	if i := strings.Index(namespace, "."); i >= 0 {
		return namespace[i+1:]
	}

	return namespace
}

func codeForTag(tag string) string {
	switch tag {
	case "required":
		return CodeRequired
	case "min":
		return CodeMin
	default:
		return tag
	}
}
