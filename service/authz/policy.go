// Package authz is the role- and ownership-scoped access policy. The policy
// is a single table keyed by (resource, role, action) so the full surface can
// be walked in tests; handlers ask it whether an actor may attempt an action
// and separately validate the attempt itself.
package authz

import (
	"github.com/fitbook/fitbook-server/cmd/models"
)

type Resource string

const (
	ResourceUser     Resource = "users"
	ResourceClub     Resource = "clubs"
	ResourceTrainer  Resource = "trainers"
	ResourceSchedule Resource = "schedules"
	ResourceBooking  Resource = "bookings"
)

type Action string

const (
	ActionList     Action = "list"
	ActionRetrieve Action = "retrieve"
	ActionCreate   Action = "create"
	ActionUpdate   Action = "update"
	ActionDestroy  Action = "destroy"
)

// Decision is what the table grants for a (resource, role, action) cell.
type Decision uint8

const (
	// Deny is the zero value: anything not present in the table.
	Deny Decision = iota
	// Allow grants the action on any record.
	Allow
	// AllowOwn grants the action only on records the actor owns. Ownership is
	// resource-specific: the booking's client, the schedule's trainer, the
	// trainer profile's user, records a trainer's schedules are booked against.
	AllowOwn
)

// roleAnonymous stands in for an unauthenticated caller in the table.
const roleAnonymous models.Role = ""

// policy is the whole authorization surface. Staff actors bypass it entirely.
// Notable cells:
//   - clients create bookings only for themselves (the handler forces
//     client_id to the requester);
//   - a client "destroy" on a booking is a cancellation, never a hard delete;
//   - trainers read bookings referencing their schedules but never mutate
//     bookings;
//   - trainers update, but never destroy, their own schedules and profile;
//   - anonymous callers read the public catalog (clubs, trainer listing).
var policy = map[Resource]map[models.Role]map[Action]Decision{
	ResourceUser: {
		// Self access goes through /me; the /users collection is staff-only
		// and therefore has no non-staff grants here.
	},
	ResourceClub: {
		roleAnonymous:      {ActionList: Allow, ActionRetrieve: Allow},
		models.RoleClient:  {ActionList: Allow, ActionRetrieve: Allow},
		models.RoleTrainer: {ActionList: Allow, ActionRetrieve: Allow},
	},
	ResourceTrainer: {
		roleAnonymous:     {ActionList: Allow, ActionRetrieve: Allow},
		models.RoleClient: {ActionList: Allow, ActionRetrieve: Allow},
		models.RoleTrainer: {
			ActionList:     Allow,
			ActionRetrieve: Allow,
			ActionCreate:   AllowOwn,
			ActionUpdate:   AllowOwn,
		},
	},
	ResourceSchedule: {
		models.RoleClient: {ActionList: Allow, ActionRetrieve: Allow},
		models.RoleTrainer: {
			ActionList:     Allow,
			ActionRetrieve: Allow,
			ActionCreate:   AllowOwn,
			ActionUpdate:   AllowOwn,
		},
	},
	ResourceBooking: {
		models.RoleClient: {
			ActionList:     AllowOwn,
			ActionRetrieve: AllowOwn,
			ActionCreate:   AllowOwn,
			ActionUpdate:   AllowOwn,
			ActionDestroy:  AllowOwn,
		},
		models.RoleTrainer: {
			ActionList:     AllowOwn,
			ActionRetrieve: AllowOwn,
		},
	},
}

func lookup(actor *models.User, resource Resource, action Action) Decision {
	role := roleAnonymous
	if actor != nil {
		role = actor.Role
	}
	return policy[resource][role][action]
}

// Can is the collection-level check: may this actor attempt the action at
// all. Ownership of a concrete record is not known yet; AllowOwn cells pass
// here and are narrowed by CanObject once the record is loaded.
func Can(actor *models.User, resource Resource, action Action) bool {
	if actor != nil && actor.Staff() {
		return true
	}
	return lookup(actor, resource, action) != Deny
}

// CanObject is the record-level check. owned reports whether the actor owns
// the record under the resource's ownership rule.
func CanObject(actor *models.User, resource Resource, action Action, owned bool) bool {
	if actor != nil && actor.Staff() {
		return true
	}
	switch lookup(actor, resource, action) {
	case Allow:
		return true
	case AllowOwn:
		return owned
	default:
		return false
	}
}
