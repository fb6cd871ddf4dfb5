// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package idle implements the per-tab idle state machine.
//
// A full-mode Timer moves Active -> Warning -> LoggedOut as idle time
// passes, returns to Active on local or remote activity, and follows a
// peer's logout immediately. An activity-only Timer contributes and
// absorbs activity but never warns or logs out.
//
// Scheduled delays are estimates. Every timer callback re-derives the
// elapsed idle time from the stored baseline and reschedules itself for
// the remainder when it fires early.
package idle
