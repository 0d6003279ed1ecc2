package directory

import (
	"testing"
	"time"

	"backoffice/internal/platform/models"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"simple", "Alice Smith", "alice-smith"},
		{"punctuation", "O'Brien, Jr.", "o-brien-jr"},
		{"unicode dropped", "Zoë  Müller", "zo-m-ller"},
		{"empty fallback", "!!!", "person"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := slugify(tt.in); got != tt.want {
				t.Errorf("slugify(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestUniqueSlug(t *testing.T) {
	env := setupTestEnv(t)
	env.seedOrg(t, "org1")

	now := time.Now().Unix()
	for _, p := range []*models.Person{
		{ID: "p1", OrganizationID: "org1", Email: "a@example.com", Slug: "alice-smith", CreatedAt: now, UpdatedAt: now},
		{ID: "p2", OrganizationID: "org1", Email: "b@example.com", Slug: "alice-smith-2", CreatedAt: now, UpdatedAt: now},
	} {
		if err := env.people.Create(p); err != nil {
			t.Fatal(err)
		}
	}

	slug, err := env.svc.uniqueSlug("alice-smith")
	if err != nil {
		t.Fatal(err)
	}
	if slug != "alice-smith-3" {
		t.Errorf("Expected alice-smith-3, got %s", slug)
	}
}

func TestGetOrCreateUser_AugmentsExistingManualUser(t *testing.T) {
	env := setupTestEnv(t)
	env.seedOrg(t, "org1")

	now := time.Now().Unix()
	existing := &models.User{
		ID: "usr_manual", OrganizationID: "org1", Email: "alice@example.com",
		Name: "A. Smith", Status: models.UserStatusActive, CreatedAt: now, UpdatedAt: now,
	}
	if err := env.users.Create(existing); err != nil {
		t.Fatal(err)
	}

	res, err := env.svc.getOrCreateUser("org1", RemoteUser{
		ExternalID: "u1", DisplayName: "Alice Smith", Email: "Alice@Example.com",
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.created {
		t.Error("Expected existing user to be matched by email, not recreated")
	}
	if !res.updated {
		t.Error("Expected the match to be reported as updated")
	}
	if res.user.ID != "usr_manual" {
		t.Errorf("Expected usr_manual, got %s", res.user.ID)
	}
	if !res.user.ScimProvisioned || res.user.ExternalID != "u1" || res.user.Name != "Alice Smith" {
		t.Errorf("Expected provenance backfilled, got %+v", res.user)
	}
}

func TestGetOrCreatePerson_EmailMatchLinksAndRefreshes(t *testing.T) {
	env := setupTestEnv(t)
	env.seedOrg(t, "org1")

	now := time.Now().Unix()
	person := &models.Person{
		ID: "per_manual", OrganizationID: "org1", Email: "alice@example.com",
		Slug: "alice", Name: "Alice", Source: models.SourceManual,
		StartDate: "2020-01-01", CreatedAt: now, UpdatedAt: now,
	}
	if err := env.people.Create(person); err != nil {
		t.Fatal(err)
	}
	user := &models.User{
		ID: "usr_1", OrganizationID: "org1", Email: "alice@example.com",
		Status: models.UserStatusActive, CreatedAt: now, UpdatedAt: now,
	}
	if err := env.users.Create(user); err != nil {
		t.Fatal(err)
	}

	res, err := env.svc.getOrCreatePerson("org1", user, RemoteUser{
		ExternalID: "u1", DisplayName: "Alice Smith", Email: "alice@example.com",
		JobTitle: "Engineer", HireDate: "2021-06-01", LeaveDate: "2024-12-31",
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.created {
		t.Error("Expected email match, not a new person")
	}
	if res.person.ID != "per_manual" {
		t.Errorf("Expected per_manual, got %s", res.person.ID)
	}

	stored, _ := env.people.GetByID("per_manual")
	if stored.Source != models.SourceSync || stored.ExternalID != "u1" {
		t.Errorf("Expected sync provenance, got %s/%s", stored.Source, stored.ExternalID)
	}
	if stored.Role != "Engineer" || stored.HireDate != "2021-06-01" {
		t.Errorf("Expected profile fields applied, got %s/%s", stored.Role, stored.HireDate)
	}
	if stored.LeaveDate != "2024-12-31" {
		t.Errorf("Expected leave date applied, got %s", stored.LeaveDate)
	}
	if stored.StartDate != "2020-01-01" {
		t.Errorf("Existing start date must never be overwritten, got %s", stored.StartDate)
	}

	linked, _ := env.users.GetByID("usr_1")
	if linked.PersonID == nil || *linked.PersonID != "per_manual" {
		t.Errorf("Expected user linked to person, got %v", linked.PersonID)
	}
}

func TestGetOrCreatePerson_SlugCollisionGetsSuffix(t *testing.T) {
	env := setupTestEnv(t)
	env.seedOrg(t, "org1")

	now := time.Now().Unix()
	if err := env.people.Create(&models.Person{
		ID: "p1", OrganizationID: "org1", Email: "other@example.com",
		Slug: "alice-smith", CreatedAt: now, UpdatedAt: now,
	}); err != nil {
		t.Fatal(err)
	}

	res, err := env.svc.getOrCreatePerson("org1", nil, RemoteUser{
		ExternalID: "u1", DisplayName: "Alice Smith", Email: "alice@example.com",
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !res.created {
		t.Fatal("Expected a new person")
	}
	if res.person.Slug != "alice-smith-2" {
		t.Errorf("Expected suffixed slug, got %s", res.person.Slug)
	}
}

func TestGetOrCreateGroup_RefreshesMapping(t *testing.T) {
	env := setupTestEnv(t)
	env.seedOrg(t, "org1")
	env.seedRole(t, "org1", "role_backend", "backend", false)

	rg := RemoteGroup{ExternalID: "g1", DisplayName: "Eng-Backend"}
	first, err := env.svc.getOrCreateGroup("org1", rg, nil)
	if err != nil {
		t.Fatal(err)
	}

	roleID := "role_backend"
	rg.DisplayName = "Eng-Backend-Renamed"
	second, err := env.svc.getOrCreateGroup("org1", rg, &roleID)
	if err != nil {
		t.Fatal(err)
	}
	if second.ID != first.ID {
		t.Errorf("Expected same local group row, got %s vs %s", second.ID, first.ID)
	}
	if second.DisplayName != "Eng-Backend-Renamed" || second.MappedRoleID == nil || *second.MappedRoleID != roleID {
		t.Errorf("Expected refreshed name and mapping, got %+v", second)
	}
}
