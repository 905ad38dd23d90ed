// Trailhook - Event Tracking and Provenance Backend
// Copyright 2026 Trailhook Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trailhook/trailhook

package authz

// ResourceType tags the three resource families Trailhook manages.
type ResourceType string

const (
	// ResourceEvent is a tracked event.
	ResourceEvent ResourceType = "event"

	// ResourceReceiver is an event receiver.
	ResourceReceiver ResourceType = "receiver"

	// ResourceGroup is a receiver group.
	ResourceGroup ResourceType = "group"
)

// IsValidResourceType reports whether t is a known resource type.
func IsValidResourceType(t ResourceType) bool {
	switch t {
	case ResourceEvent, ResourceReceiver, ResourceGroup:
		return true
	default:
		return false
	}
}

// Action is a permission identifier from the fixed taxonomy, of the form
// "{resource}:{verb}" (e.g. "event:create", "group:delete").
type Action string

// The complete permission taxonomy. Tokens declaring permissions outside
// this set fail credential validation; adding a permission here is a
// versioned taxonomy change.
const (
	ActionEventCreate    Action = "event:create"
	ActionEventRead      Action = "event:read"
	ActionEventUpdate    Action = "event:update"
	ActionEventDelete    Action = "event:delete"
	ActionReceiverCreate Action = "receiver:create"
	ActionReceiverRead   Action = "receiver:read"
	ActionReceiverUpdate Action = "receiver:update"
	ActionReceiverDelete Action = "receiver:delete"
	ActionGroupCreate    Action = "group:create"
	ActionGroupRead      Action = "group:read"
	ActionGroupUpdate    Action = "group:update"
	ActionGroupDelete    Action = "group:delete"
)

// actionTaxonomy is the closed set of valid actions.
var actionTaxonomy = map[Action]struct{}{
	ActionEventCreate:    {},
	ActionEventRead:      {},
	ActionEventUpdate:    {},
	ActionEventDelete:    {},
	ActionReceiverCreate: {},
	ActionReceiverRead:   {},
	ActionReceiverUpdate: {},
	ActionReceiverDelete: {},
	ActionGroupCreate:    {},
	ActionGroupRead:      {},
	ActionGroupUpdate:    {},
	ActionGroupDelete:    {},
}

// IsValidAction reports whether a belongs to the permission taxonomy.
func IsValidAction(a Action) bool {
	_, ok := actionTaxonomy[a]
	return ok
}

// ValidPermission reports whether the permission string belongs to the
// taxonomy. It is the parse-time check the credential validator applies
// to permission claims.
func ValidPermission(permission string) bool {
	return IsValidAction(Action(permission))
}

// Actions returns the full taxonomy in stable order, for the policy
// introspection endpoint.
func Actions() []Action {
	return []Action{
		ActionEventCreate, ActionEventRead, ActionEventUpdate, ActionEventDelete,
		ActionReceiverCreate, ActionReceiverRead, ActionReceiverUpdate, ActionReceiverDelete,
		ActionGroupCreate, ActionGroupRead, ActionGroupUpdate, ActionGroupDelete,
	}
}
