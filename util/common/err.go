// Package common holds small helpers shared across the panel.
package common

import (
	"errors"

	"github.com/antarex-ai/dashboard/logger"
)

// Combine joins the non-nil errors, returning nil when there are none.
func Combine(errs ...error) error {
	return errors.Join(errs...)
}

// Recover is meant to be deferred; it logs and returns a recovered panic.
func Recover(msg string) any {
	panicErr := recover()
	if panicErr != nil && msg != "" {
		logger.Error(msg, " panic: ", panicErr)
	}
	return panicErr
}
