// Package check provides small assertion helpers used for configuration validation and for
// guarding internal invariants.
package check

import (
	"fmt"

	"github.com/pkg/errors"
)

// message renders the optional message of a check: either a plain value or a format string
// followed by its arguments.
func message(msgAndArgs []interface{}) string {
	if len(msgAndArgs) == 0 {
		return ""
	}
	format, ok := msgAndArgs[0].(string)
	if !ok {
		return fmt.Sprintf("%+v", msgAndArgs[0])
	}
	if len(msgAndArgs) == 1 {
		return format
	}
	return fmt.Sprintf(format, msgAndArgs[1:]...)
}

func check(condition bool, msgAndArgs []interface{}, format string, args ...interface{}) error {
	if condition {
		return nil
	}
	err := errors.Errorf(format, args...)
	if msg := message(msgAndArgs); msg != "" {
		return errors.Wrap(err, msg)
	}
	return err
}

// True checks whether the condition is true. This method returns an error with the provided
// message if the check fails.
func True(condition bool, msgAndArgs ...interface{}) error {
	return check(condition, msgAndArgs, "expected true, got false")
}

// False checks whether the condition is false.
func False(condition bool, msgAndArgs ...interface{}) error {
	return check(!condition, msgAndArgs, "expected false, got true")
}

// GreaterThan checks whether actual is strictly greater than expected.
func GreaterThan(actual, expected float64, msgAndArgs ...interface{}) error {
	return check(actual > expected, msgAndArgs, "%v is not greater than %v", actual, expected)
}

// GreaterThanOrEqualTo checks whether actual is greater than or equal to expected.
func GreaterThanOrEqualTo(actual, expected float64, msgAndArgs ...interface{}) error {
	return check(actual >= expected, msgAndArgs, "%v is not greater than or equal to %v",
		actual, expected)
}

// NotEmpty checks that the string is not empty.
func NotEmpty(actual string, msgAndArgs ...interface{}) error {
	return check(actual != "", msgAndArgs, "expected a non-empty string")
}

// Contains checks that actual is one of the allowed values.
func Contains(actual interface{}, allowed []interface{}, msgAndArgs ...interface{}) error {
	for _, value := range allowed {
		if value == actual {
			return nil
		}
	}
	return check(false, msgAndArgs, "%v not in %v", actual, allowed)
}

// Panic panics if the provided error is non-nil. It is used to guard programming errors that
// must never be observed at runtime.
func Panic(err error) {
	if err != nil {
		panic(fmt.Sprintf("check failed: %v", err))
	}
}
