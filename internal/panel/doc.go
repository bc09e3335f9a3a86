// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package panel holds the side-panel state: the most recent market payload
// and, for single quotes, the chart window shown beside it.
//
// Every payload replaces the previous one wholesale. Dismissing the panel
// hides it but keeps the data, so Show brings the same payload back. The
// chart window starts from the quote's embedded intraday series and is
// swapped out by LoadSeries when the user picks another period.
//
// LoadSeries results are only applied while they are still wanted: a
// cancelled context, a newer payload or a newer load all turn a late
// result into a no-op.
package panel
