// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"net"

	"github.com/jeranaias/tradedesk/internal/api"
	"github.com/jeranaias/tradedesk/internal/config"
)

// Exit codes.
const (
	ExitSuccess      = 0
	ExitGeneralError = 1
	ExitUsageError   = 2
	ExitConfigError  = 3
	ExitAuthError    = 4
	ExitNetworkError = 5
	ExitNotFound     = 7
	ExitTimeoutError = 8
)

// errQuiet marks an error that was already reported to the user.
var errQuiet = errors.New("already reported")

// ErrNoCredentials means neither a password nor a token was supplied.
var ErrNoCredentials = errors.New("no credentials: set TRADEDESK_PASSWORD or TRADEDESK_TOKEN")

// ExitError carries an explicit exit code.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }

func (e *ExitError) Unwrap() error { return e.Err }

// ExitCode maps an error to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	var validation config.ValidateErrors
	if errors.As(err, &validation) {
		return ExitConfigError
	}
	switch {
	case errors.Is(err, ErrNoCredentials),
		errors.Is(err, api.ErrInvalidCredentials),
		errors.Is(err, api.ErrUnauthorized),
		errors.Is(err, api.ErrNotAuthenticated):
		return ExitAuthError
	case errors.Is(err, api.ErrNotFound):
		return ExitNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return ExitTimeoutError
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return ExitNetworkError
	}
	return ExitGeneralError
}
