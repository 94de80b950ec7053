package core

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"floodcast/internal/types"
)

// catalogCodePattern matches sensor, model and basin codes such as
// "WL-01" or "DHOMPO_GRU".
var catalogCodePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.\-]{0,63}$`)

// ValidationError describes one rejected field, named by its JSON key.
type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationResult collects the failures of one struct.
type ValidationResult struct {
	Errors []ValidationError
}

// IsValid reports whether no field failed.
func (r ValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}

// Validator wraps go-playground/validator with the catalog_code tag and
// JSON field naming.
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator builds a Validator. Tag registration failures are logged and
// leave the tag unavailable.
func NewValidator(logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonFieldName)
	if err := v.RegisterValidation("catalog_code", validateCatalogCode); err != nil {
		logger.Error("failed to register catalog_code validation", "error", err)
	}
	return &Validator{validate: v, logger: logger}
}

// Check validates s and returns every failing field.
func (v *Validator) Check(s any) ValidationResult {
	err := v.validate.Struct(s)
	if err == nil {
		return ValidationResult{}
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		v.logger.Error("validator misuse", "error", err)
		return ValidationResult{Errors: []ValidationError{{Field: "", Code: "invalid", Message: err.Error()}}}
	}

	out := make([]ValidationError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, ValidationError{
			Field:   fe.Field(),
			Code:    fe.Tag(),
			Message: describe(fe),
		})
	}
	return ValidationResult{Errors: out}
}

// ValidateStruct validates s and converts failures into an AppError. A
// missing required field takes precedence over other failures in the code.
func (v *Validator) ValidateStruct(s any) error {
	res := v.Check(s)
	if res.IsValid() {
		return nil
	}

	code := types.ErrCodeValidationInvalidField
	for _, e := range res.Errors {
		if e.Code == "required" {
			code = types.ErrCodeValidationMissingField
			break
		}
	}

	return types.NewAppErrorWithDetails(code, res.Errors[0].Message, nil,
		map[string]any{"validation_errors": res.Errors})
}

func validateCatalogCode(fl validator.FieldLevel) bool {
	return catalogCodePattern.MatchString(fl.Field().String())
}

func jsonFieldName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	switch name {
	case "-":
		return ""
	case "":
		return f.Name
	}
	return name
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "catalog_code":
		return fmt.Sprintf("%s must be a catalog code", fe.Field())
	case "gte", "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "lte", "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param())
	case "lt":
		return fmt.Sprintf("%s must be less than %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}
