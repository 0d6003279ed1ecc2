package directory

import (
	"testing"
	"time"

	"backoffice/internal/platform/models"
)

func seedMembershipFixture(t *testing.T, env *testEnv) {
	t.Helper()
	env.seedOrg(t, "org1")
	env.seedRole(t, "org1", "role_backend", "backend", false)
	env.seedRole(t, "org1", "role_admin", "admin", false)

	now := time.Now().Unix()
	if err := env.users.Create(&models.User{
		ID: "usr_1", OrganizationID: "org1", Email: "alice@example.com",
		Status: models.UserStatusActive, ScimProvisioned: true, CreatedAt: now, UpdatedAt: now,
	}); err != nil {
		t.Fatal(err)
	}
	if err := env.groups.Create(&models.ScimGroup{
		ID: "grp_1", OrganizationID: "org1", ExternalID: "g1", DisplayName: "Eng-Backend",
		CreatedAt: now, UpdatedAt: now,
	}); err != nil {
		t.Fatal(err)
	}
}

func TestSyncMembership_GrantsAndIsIdempotent(t *testing.T) {
	env := setupTestEnv(t)
	seedMembershipFixture(t, env)
	roleID := "role_backend"

	added, assigned, err := env.svc.syncMembership("usr_1", "grp_1", &roleID)
	if err != nil {
		t.Fatal(err)
	}
	if !added || !assigned {
		t.Errorf("Expected first call to add membership and role, got %v/%v", added, assigned)
	}

	added, assigned, err = env.svc.syncMembership("usr_1", "grp_1", &roleID)
	if err != nil {
		t.Fatal(err)
	}
	if added || assigned {
		t.Errorf("Expected second call to be a no-op, got %v/%v", added, assigned)
	}
}

func TestSyncMembership_UpgradesManualGrant(t *testing.T) {
	env := setupTestEnv(t)
	seedMembershipFixture(t, env)
	roleID := "role_backend"

	if err := env.grants.Insert("usr_1", roleID, models.SourceManual, nil); err != nil {
		t.Fatal(err)
	}

	_, assigned, err := env.svc.syncMembership("usr_1", "grp_1", &roleID)
	if err != nil {
		t.Fatal(err)
	}
	if assigned {
		t.Error("Upgrading provenance must not count as a new assignment")
	}

	grant, _ := env.grants.Get("usr_1", roleID)
	if grant.Source != models.SourceSync || grant.GroupID == nil || *grant.GroupID != "grp_1" {
		t.Errorf("Expected sync provenance pointing at grp_1, got %+v", grant)
	}
}

func TestSyncMembership_NoRoleMapped(t *testing.T) {
	env := setupTestEnv(t)
	seedMembershipFixture(t, env)

	added, assigned, err := env.svc.syncMembership("usr_1", "grp_1", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !added || assigned {
		t.Errorf("Expected membership only, got %v/%v", added, assigned)
	}
	if grants, _ := env.grants.ListByUser("usr_1"); len(grants) != 0 {
		t.Errorf("Expected no grants, got %d", len(grants))
	}
}

func TestCleanupStaleMemberships_PreservesManualGrants(t *testing.T) {
	env := setupTestEnv(t)
	seedMembershipFixture(t, env)

	now := time.Now().Unix()
	if err := env.users.Create(&models.User{
		ID: "usr_2", OrganizationID: "org1", Email: "bob@example.com",
		Status: models.UserStatusActive, ScimProvisioned: true, CreatedAt: now, UpdatedAt: now,
	}); err != nil {
		t.Fatal(err)
	}

	groupID := "grp_1"
	for _, userID := range []string{"usr_1", "usr_2"} {
		if _, err := env.groups.AddMembership(userID, groupID); err != nil {
			t.Fatal(err)
		}
	}
	// usr_1 left the group upstream. Their sync grant came from this
	// group; the admin grant is manual and must survive.
	if err := env.grants.Insert("usr_1", "role_backend", models.SourceSync, &groupID); err != nil {
		t.Fatal(err)
	}
	if err := env.grants.Insert("usr_1", "role_admin", models.SourceManual, nil); err != nil {
		t.Fatal(err)
	}

	removed, rolesRemoved, err := env.svc.cleanupStaleMemberships(groupID, []string{"usr_2"})
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 || rolesRemoved != 1 {
		t.Errorf("Expected 1 membership and 1 role removed, got %d/%d", removed, rolesRemoved)
	}

	grants, _ := env.grants.ListByUser("usr_1")
	if len(grants) != 1 || grants[0].RoleID != "role_admin" || grants[0].Source != models.SourceManual {
		t.Errorf("Expected only the manual admin grant to survive, got %+v", grants)
	}

	ids, _ := env.groups.ListMemberUserIDs(groupID)
	if len(ids) != 1 || ids[0] != "usr_2" {
		t.Errorf("Expected only usr_2 to remain, got %v", ids)
	}
}
