package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/meemli/meemli-api/internal/models"
)

var hhmmPattern = regexp.MustCompile(`^(?:[01]\d|2[0-3]):[0-5]\d$`)

// New returns a validator with the domain rules registered and json field names in messages.
func New() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
	_ = v.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
		return IsHHMM(fl.Field().String())
	})
	_ = v.RegisterValidation("weekday", func(fl validator.FieldLevel) bool {
		return IsWeekday(fl.Field().String())
	})
	_ = v.RegisterValidation("attendance_status", func(fl validator.FieldLevel) bool {
		return models.AttendanceStatus(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("isodate", func(fl validator.FieldLevel) bool {
		_, err := models.ParseDate(fl.Field().String())
		return err == nil
	})
	return v
}

// IsHHMM reports whether raw is a 24h HH:mm time.
func IsHHMM(raw string) bool {
	return hhmmPattern.MatchString(raw)
}

// IsWeekday reports whether raw is an English weekday name, Monday through Sunday.
func IsWeekday(raw string) bool {
	for _, day := range models.Weekdays {
		if raw == day {
			return true
		}
	}
	return false
}

// Minutes converts an HH:mm string into minutes after midnight.
func Minutes(hhmm string) (int, error) {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: %w", hhmm, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// EndAfterStart checks that end is strictly later than start on the same day.
func EndAfterStart(start, end string) error {
	s, err := Minutes(start)
	if err != nil {
		return err
	}
	e, err := Minutes(end)
	if err != nil {
		return err
	}
	if e <= s {
		return errors.New("endTime must be later than startTime")
	}
	return nil
}

// Message renders the first failing rule of a validator error as a readable sentence.
func Message(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	field := fieldPath(fe.Namespace())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
		}
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s must contain at least %s item(s)", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "email":
		return fmt.Sprintf("%s must be a valid email", field)
	case "hhmm":
		return fmt.Sprintf("%s must be in HH:mm format", field)
	case "weekday":
		return fmt.Sprintf("%s must be a weekday name", field)
	case "attendance_status":
		return fmt.Sprintf("%s must be one of PRESENT, ABSENT, LATE", field)
	case "isodate":
		return fmt.Sprintf("%s must be an ISO date", field)
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}

// fieldPath drops the top-level struct name from a validator namespace.
func fieldPath(namespace string) string {
	if idx := strings.Index(namespace, "."); idx >= 0 {
		return namespace[idx+1:]
	}
	return namespace
}
