// Package validate checks a candidate reminder before it is submitted.
// It is a pure function of its inputs and the supplied instant; the server
// re-validates independently and remains the authority on acceptance.
package validate

import (
	"fmt"
	"regexp"
	"time"
)

// GraceBuffer is the minimum lead a schedule must have at submission time.
// The five minutes keep a schedule from landing in the past while the
// request is in flight and the call is being dispatched.
const GraceBuffer = 5 * time.Minute

const maxTitleLength = 200

// Error codes, one vocabulary across all fields.
const (
	CodeEmptyField      = "empty_field"
	CodeTooLong         = "too_long"
	CodeInvalidFormat   = "invalid_format"
	CodeNotInFuture     = "not_in_future"
	CodeInvalidSchedule = "invalid_schedule"
)

// phoneRE is the E.164 shape: leading +, nonzero first digit, 11-15 digits.
var phoneRE = regexp.MustCompile(`^\+[1-9][0-9]{10,14}$`)

// scheduleLayouts are the accepted wall-clock formats. No offset: the
// timestamp is interpreted in the reminder's timezone, never UTC.
var scheduleLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// FieldError is a single field-scoped violation.
type FieldError struct {
	Field   string
	Code    string
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Input holds the candidate fields. ScheduledTime is the wall-clock string
// as it will travel on the wire.
type Input struct {
	Title         string
	Message       string
	PhoneNumber   string
	ScheduledTime string
	Timezone      string
}

// Validate evaluates every rule independently and returns all violations.
// A nil result means the input is valid. It never panics; resolution
// failures come back as structured errors.
func Validate(in Input, now time.Time) []FieldError {
	var errs []FieldError

	if len([]rune(in.Title)) == 0 {
		errs = append(errs, FieldError{Field: "title", Code: CodeEmptyField, Message: "title is required"})
	} else if len([]rune(in.Title)) > maxTitleLength {
		errs = append(errs, FieldError{Field: "title", Code: CodeTooLong, Message: fmt.Sprintf("title must be at most %d characters", maxTitleLength)})
	}

	if in.Message == "" {
		errs = append(errs, FieldError{Field: "message", Code: CodeEmptyField, Message: "message is required"})
	}

	if !phoneRE.MatchString(in.PhoneNumber) {
		errs = append(errs, FieldError{Field: "phone_number", Code: CodeInvalidFormat, Message: "phone number must be in E.164 format (e.g. +14155552671)"})
	}

	loc, tzErr := resolveZone(in.Timezone)
	if tzErr != nil {
		errs = append(errs, FieldError{Field: "timezone", Code: CodeEmptyField, Message: "timezone must be a valid IANA identifier"})
	}

	// The schedule check needs a resolvable zone; with an unknown zone the
	// timezone error above already covers the pair.
	if tzErr == nil {
		if err := checkFuture(in.ScheduledTime, loc, now); err != nil {
			errs = append(errs, *err)
		}
	}

	return errs
}

func resolveZone(name string) (*time.Location, error) {
	if name == "" {
		return nil, fmt.Errorf("empty timezone")
	}
	return time.LoadLocation(name)
}

func checkFuture(value string, loc *time.Location, now time.Time) *FieldError {
	if value == "" {
		return &FieldError{Field: "scheduled_time", Code: CodeEmptyField, Message: "scheduled time is required"}
	}
	var at time.Time
	var err error
	for _, layout := range scheduleLayouts {
		at, err = time.ParseInLocation(layout, value, loc)
		if err == nil {
			break
		}
	}
	if err != nil {
		return &FieldError{Field: "scheduled_time", Code: CodeInvalidSchedule, Message: "scheduled time must look like 2006-01-02T15:04"}
	}
	if !at.After(now.Add(GraceBuffer)) {
		return &FieldError{Field: "scheduled_time", Code: CodeNotInFuture, Message: "scheduled time must be in the future"}
	}
	return nil
}
