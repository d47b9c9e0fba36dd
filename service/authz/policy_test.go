package authz

import (
	"testing"

	"github.com/fitbook/fitbook-server/cmd/models"
)

func user(role models.Role) *models.User {
	return &models.User{Role: role}
}

func TestAnonymousAccess(t *testing.T) {
	// Anonymous callers read the public catalog and nothing else.
	if !Can(nil, ResourceClub, ActionList) {
		t.Error("anonymous should list clubs")
	}
	if !Can(nil, ResourceTrainer, ActionRetrieve) {
		t.Error("anonymous should retrieve trainers")
	}
	if Can(nil, ResourceClub, ActionCreate) {
		t.Error("anonymous must not create clubs")
	}
	if Can(nil, ResourceSchedule, ActionList) {
		t.Error("anonymous must not list schedules")
	}
	if Can(nil, ResourceBooking, ActionList) {
		t.Error("anonymous must not list bookings")
	}
	if Can(nil, ResourceUser, ActionList) {
		t.Error("anonymous must not list users")
	}
}

func TestClientAccess(t *testing.T) {
	client := user(models.RoleClient)

	if !Can(client, ResourceBooking, ActionCreate) {
		t.Error("client should create bookings")
	}
	if !CanObject(client, ResourceBooking, ActionDestroy, true) {
		t.Error("client should cancel an own booking")
	}
	if CanObject(client, ResourceBooking, ActionRetrieve, false) {
		t.Error("client must not see someone else's booking")
	}
	if Can(client, ResourceSchedule, ActionCreate) {
		t.Error("client must not create schedules")
	}
	if Can(client, ResourceClub, ActionUpdate) {
		t.Error("client must not update clubs")
	}
	if Can(client, ResourceTrainer, ActionCreate) {
		t.Error("client must not create trainer profiles")
	}
}

func TestTrainerAccess(t *testing.T) {
	trainer := user(models.RoleTrainer)

	if !CanObject(trainer, ResourceSchedule, ActionCreate, true) {
		t.Error("trainer should create own schedules")
	}
	if CanObject(trainer, ResourceSchedule, ActionUpdate, false) {
		t.Error("trainer must not update another trainer's schedule")
	}
	if Can(trainer, ResourceSchedule, ActionDestroy) {
		t.Error("trainer must not hard delete schedules")
	}
	if !CanObject(trainer, ResourceBooking, ActionRetrieve, true) {
		t.Error("trainer should see bookings against own schedules")
	}
	if Can(trainer, ResourceBooking, ActionUpdate) {
		t.Error("trainer must not mutate bookings")
	}
	if Can(trainer, ResourceBooking, ActionCreate) {
		t.Error("trainer must not create bookings")
	}
	if !CanObject(trainer, ResourceTrainer, ActionUpdate, true) {
		t.Error("trainer should update own profile")
	}
	if CanObject(trainer, ResourceTrainer, ActionUpdate, false) {
		t.Error("trainer must not update someone else's profile")
	}
}

func TestStaffBypass(t *testing.T) {
	// Staff skips the table entirely, regardless of role or ownership.
	staff := &models.User{Role: models.RoleClient, IsStaff: true}
	admin := user(models.RoleAdmin)

	for _, actor := range []*models.User{staff, admin} {
		for _, res := range []Resource{ResourceUser, ResourceClub, ResourceTrainer, ResourceSchedule, ResourceBooking} {
			for _, act := range []Action{ActionList, ActionRetrieve, ActionCreate, ActionUpdate, ActionDestroy} {
				if !Can(actor, res, act) {
					t.Errorf("staff denied %s on %s", act, res)
				}
				if !CanObject(actor, res, act, false) {
					t.Errorf("staff denied %s on unowned %s record", act, res)
				}
			}
		}
	}
}

func TestAdminRoleWithoutStaffFlag(t *testing.T) {
	// The admin role implies staff even if the flag was never set.
	admin := &models.User{Role: models.RoleAdmin, IsStaff: false}
	if !Can(admin, ResourceUser, ActionDestroy) {
		t.Error("admin role should bypass the table")
	}
}
