// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"fmt"
	"strings"
)

// FailurePolicy decides what FailReply does with the optimistic user
// message and the open assistant message of a failed turn.
type FailurePolicy string

const (
	// PolicyRetain leaves both messages as they are.
	PolicyRetain FailurePolicy = "retain"
	// PolicyMarkFailed keeps both messages and flags them as failed.
	PolicyMarkFailed FailurePolicy = "mark-failed"
	// PolicyRemove deletes both messages.
	PolicyRemove FailurePolicy = "remove"
)

// DefaultFailurePolicy matches how the web client behaved.
const DefaultFailurePolicy = PolicyRetain

// ParseFailurePolicy validates a policy name. Empty means the default.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch p := FailurePolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return DefaultFailurePolicy, nil
	case PolicyRetain, PolicyMarkFailed, PolicyRemove:
		return p, nil
	default:
		return "", fmt.Errorf("unknown failure policy %q (want retain, mark-failed or remove)", s)
	}
}
