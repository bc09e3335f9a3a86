// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	controller "github.com/jeranaias/tradedesk/internal/chat"
)

// controllerMsg carries one controller update into the program.
type controllerMsg struct {
	update controller.Update
}

// sendDoneMsg ends a Send started by submit.
type sendDoneMsg struct {
	result controller.Result
	err    error
}

// loadedMsg ends the initial conversation load.
type loadedMsg struct {
	err error
}

// actionDoneMsg ends any other controller call. API failures were already
// notified by the controller; local errors are reported by the model.
type actionDoneMsg struct {
	action string
	err    error
}
