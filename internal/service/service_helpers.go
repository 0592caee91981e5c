package service

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"

	appErrors "github.com/meemli/meemli-api/pkg/errors"
	"github.com/meemli/meemli-api/pkg/validation"
)

const pqUniqueViolation = "23505"

// lookupError maps sql.ErrNoRows to a 404 and anything else to a 500.
func lookupError(err error, notFound, failed string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.NotFound(notFound)
	}
	return appErrors.Internal(err, failed)
}

func validationError(err error) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, validation.Message(err))
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}

// missing returns the requested ids absent from found, in request order.
func missing(requested, found []string) []string {
	present := make(map[string]struct{}, len(found))
	for _, id := range found {
		present[id] = struct{}{}
	}
	var out []string
	for _, id := range requested {
		if _, ok := present[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

// missingRefError builds the 404 for unresolved references, or nil.
func missingRefError(kind string, requested, found []string) error {
	absent := missing(requested, found)
	if len(absent) == 0 {
		return nil
	}
	return appErrors.NotFound(fmt.Sprintf("%s not found: %s", kind, strings.Join(absent, ", ")))
}

// unique drops duplicates and blanks while keeping first-seen order.
func unique(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func defaultValidator(v *validator.Validate) *validator.Validate {
	if v == nil {
		return validation.New()
	}
	return v
}
