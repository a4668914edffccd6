package middleware

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	apierrors "salesdash/internal/errors"
)

// QueryRules maps a query parameter to a validator tag, for example
// "omitempty,oneof=sales_desc".
type QueryRules map[string]string

var queryValidator = validator.New()

// ValidateQuery rejects requests whose query parameters break rules with a
// 400 problem listing every offending parameter. Unlisted parameters pass.
func ValidateQuery(rules QueryRules, errorHandler *apierrors.ErrorHandler) func(next http.Handler) http.Handler {
	params := make([]string, 0, len(rules))
	for p := range rules {
		params = append(params, p)
	}
	sort.Strings(params)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			query := r.URL.Query()

			var failures []apierrors.ValidationError
			for _, param := range params {
				err := queryValidator.Var(query.Get(param), rules[param])
				if err == nil {
					continue
				}
				fieldErrs, ok := err.(validator.ValidationErrors)
				if !ok {
					failures = append(failures, apierrors.ValidationError{Field: param, Message: err.Error()})
					continue
				}
				for _, fe := range fieldErrs {
					failures = append(failures, apierrors.ValidationError{
						Field:   param,
						Message: formatValidationError(param, fe),
					})
				}
			}

			if len(failures) > 0 {
				errorHandler.HandleError(w, r, apierrors.NewWithDetails(
					http.StatusBadRequest,
					apierrors.CodeValidationFailed,
					"Request validation failed",
					failures,
				))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// formatValidationError formats validation error messages
func formatValidationError(field string, err validator.FieldError) string {
	param := err.Param()

	switch err.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(param, " ", ", "))
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, param)
	case "number", "numeric":
		return fmt.Sprintf("%s must be a number", field)
	default:
		return fmt.Sprintf("%s failed %s validation", field, err.Tag())
	}
}
