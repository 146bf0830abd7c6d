package web

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
)

var errTrailingData = errors.New("unexpected data after JSON body")

// ParamValidator is a function type that validates a parameter.
type ParamValidator func(valueToTest int64) bool

func newComparisonValidator(valueInClosure int64, compareFn func(argValue, closedValue int64) bool) ParamValidator {
	return func(argValue int64) bool {
		return compareFn(argValue, valueInClosure)
	}
}

// gte returns a ParamValidator that checks if the argument is greater than or equal to the value captured in the closure.
func gte(valToCompareAgainst int64) ParamValidator {
	return newComparisonValidator(valToCompareAgainst, func(argValue, closedValue int64) bool {
		return argValue >= closedValue
	})
}

// ParseID extracts the positive integer "id" path value. On failure it writes a 400 and returns false.
func ParseID(w http.ResponseWriter, r *http.Request, logger *slog.Logger) (int64, bool) {
	return parsePathValue(w, r, logger, "id", gte(1))
}

func parsePathValue(w http.ResponseWriter, r *http.Request, logger *slog.Logger, key string, pValidator ParamValidator) (int64, bool) {
	value := r.PathValue(key)
	intValue, err := strconv.ParseInt(value, 10, 64)
	if err != nil || !pValidator(intValue) {
		RespondError(w, logger, http.StatusBadRequest, fmt.Sprintf("Invalid ID: %s", value))
		return 0, false
	}
	return intValue, true
}
