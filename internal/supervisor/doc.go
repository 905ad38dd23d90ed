// Trailhook - Event Tracking and Provenance Backend
// Copyright 2026 Trailhook Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trailhook/trailhook

// Package supervisor builds the suture supervision tree for the
// Trailhook server.
//
// The tree has two layers: audit (the decision audit emitter) and api
// (the HTTP server). A crash in the audit layer restarts the emitter
// without interrupting request serving, and vice versa. Supervisor
// events are logged through sutureslog into the process-wide zerolog
// output.
package supervisor
