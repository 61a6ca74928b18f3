package domain

import (
	"errors"
	"slices"
	"strings"
)

// Error is one business-rule failure: a machine readable code and a
// human readable description.
type Error struct {
	Code        ErrorCode
	Description string
}

func (e Error) Error() string { return string(e.Code) + ": " + e.Description }

// Result is the outcome of a manager operation that can fail for business
// reasons. The zero value is a failure without errors; use Success.
type Result struct {
	succeeded bool
	errors    []Error
}

var success = Result{succeeded: true}

// Success returns the successful result.
func Success() Result { return success }

// Failed returns a failed result carrying errs.
func Failed(errs ...Error) Result {
	return Result{errors: slices.Clone(errs)}
}

func (r Result) Succeeded() bool { return r.succeeded }

// Errors returns a copy of the failure list.
func (r Result) Errors() []Error { return slices.Clone(r.errors) }

// Has reports whether the result carries an error with code.
func (r Result) Has(code ErrorCode) bool {
	return slices.ContainsFunc(r.errors, func(e Error) bool { return e.Code == code })
}

// Err returns nil for a successful result, or the failures joined into one
// error. Each failure matches errors.As(&domain.Error{}).
func (r Result) Err() error {
	if r.succeeded {
		return nil
	}
	if len(r.errors) == 0 {
		return errors.New("identity: failed")
	}
	errs := make([]error, len(r.errors))
	for i, e := range r.errors {
		errs[i] = e
	}
	return errors.Join(errs...)
}

func (r Result) String() string {
	if r.succeeded {
		return "Succeeded"
	}
	codes := make([]string, len(r.errors))
	for i, e := range r.errors {
		codes[i] = string(e.Code)
	}
	return "Failed: " + strings.Join(codes, ",")
}
