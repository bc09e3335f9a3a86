// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package sse

import (
	"errors"
	"fmt"
)

// ErrNoBody is returned by Run when there is no stream to read.
var ErrNoBody = errors.New("response has no body")

// maxLoggedBody bounds how much of a rejected payload ends up in logs.
const maxLoggedBody = 256

// PayloadError reports a structured frame whose body was rejected. It is
// never fatal to the stream.
type PayloadError struct {
	Channel string
	Body    string
	Err     error
}

func (e *PayloadError) Error() string {
	return fmt.Sprintf("%s payload rejected: %v", e.Channel, e.Err)
}

func (e *PayloadError) Unwrap() error {
	return e.Err
}

// Excerpt returns the start of the rejected body for logging.
func (e *PayloadError) Excerpt() string {
	if len(e.Body) <= maxLoggedBody {
		return e.Body
	}
	return e.Body[:maxLoggedBody] + "..."
}

// TransportError reports a failure reading the stream itself. Everything
// dispatched before the failure stays applied.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("stream read failed: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
