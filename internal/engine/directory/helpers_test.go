package directory

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"backoffice/internal/platform/config"
	"backoffice/internal/platform/models"
	"backoffice/internal/platform/repositories"
	"backoffice/internal/platform/secrets"
)

const testKey = "abababababababababababababababababababababababababababababababab"

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open db: %v", err)
	}
	// A second pool connection would see a different empty :memory: db.
	db.SetMaxOpenConns(1)

	schema, err := os.ReadFile("../../../migrations/001_init.sql")
	if err != nil {
		t.Fatalf("Failed to read schema: %v", err)
	}
	if _, err := db.Exec(string(schema)); err != nil {
		t.Fatalf("Failed to apply schema: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

// fakeProvider is an in-process identity provider: a token endpoint plus
// the directory read endpoints the client uses.
type fakeProvider struct {
	srv *httptest.Server

	groups   []graphGroup
	members  map[string][]graphMember
	managers map[string]graphManager

	rejectToken tokenErrorResponse
	rejectAuth  bool
	tokenCalls  int64
}

func newFakeProvider() *fakeProvider {
	f := &fakeProvider{
		members:  map[string][]graphMember{},
		managers: map[string]graphManager{},
	}
	f.srv = httptest.NewServer(http.HandlerFunc(f.handle))
	return f
}

func (f *fakeProvider) Close() { f.srv.Close() }

func (f *fakeProvider) handle(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/token":
		atomic.AddInt64(&f.tokenCalls, 1)
		if f.rejectAuth {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(f.rejectToken)
			return
		}
		json.NewEncoder(w).Encode(tokenResponse{AccessToken: "test-token", ExpiresIn: 3600})

	case r.URL.Path == "/groups":
		json.NewEncoder(w).Encode(graphGroupList{Value: f.groups})

	case strings.HasPrefix(r.URL.Path, "/groups/") && strings.HasSuffix(r.URL.Path, "/members"):
		groupID := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/groups/"), "/members")
		json.NewEncoder(w).Encode(graphMemberList{Value: f.members[groupID]})

	case strings.HasPrefix(r.URL.Path, "/users/") && strings.HasSuffix(r.URL.Path, "/manager"):
		userID := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/users/"), "/manager")
		mgr, ok := f.managers[userID]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(mgr)

	case strings.HasPrefix(r.URL.Path, "/users/"):
		json.NewEncoder(w).Encode(graphUserSecurity{})

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type testEnv struct {
	db       *sql.DB
	provider *fakeProvider
	svc      *Service
	codec    *secrets.Codec

	orgs         *repositories.OrganizationRepository
	users        *repositories.UserRepository
	people       *repositories.PersonRepository
	groups       *repositories.ScimGroupRepository
	roles        *repositories.RoleRepository
	grants       *repositories.RoleGrantRepository
	integrations *repositories.IntegrationRepository
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := setupTestDB(t)
	provider := newFakeProvider()
	t.Cleanup(provider.Close)

	codec, err := secrets.NewCodec(testKey)
	if err != nil {
		t.Fatalf("Failed to build codec: %v", err)
	}

	env := &testEnv{
		db:           db,
		provider:     provider,
		codec:        codec,
		orgs:         repositories.NewOrganizationRepository(db),
		users:        repositories.NewUserRepository(db),
		people:       repositories.NewPersonRepository(db),
		groups:       repositories.NewScimGroupRepository(db),
		roles:        repositories.NewRoleRepository(db),
		grants:       repositories.NewRoleGrantRepository(db),
		integrations: repositories.NewIntegrationRepository(db),
	}

	cfg := config.DirectoryConfig{
		GraphURL:      provider.srv.URL,
		TokenURL:      provider.srv.URL + "/token",
		GroupPageSize: 100,
		HTTPTimeout:   5 * time.Second,
		SyncLease:     15 * time.Minute,
	}

	env.svc = NewService(env.orgs, env.users, env.people, env.groups, env.roles,
		env.grants, env.integrations, codec, cfg)
	return env
}

func (env *testEnv) seedOrg(t *testing.T, id string) {
	t.Helper()
	now := time.Now().Unix()
	err := env.orgs.Create(&models.Organization{
		ID: id, Slug: id, Name: "Test Org", CreatedAt: now, UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("Failed to seed org: %v", err)
	}
}

func (env *testEnv) seedRole(t *testing.T, orgID, id, slug string, isDefault bool) {
	t.Helper()
	now := time.Now().Unix()
	err := env.roles.Create(&models.Role{
		ID: id, OrganizationID: orgID, Slug: slug, Name: slug,
		IsDefault: isDefault, CreatedAt: now, UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("Failed to seed role: %v", err)
	}
}

func (env *testEnv) seedIntegration(t *testing.T, integ *models.DirectoryIntegration) {
	t.Helper()
	if integ.TenantID == "" {
		integ.TenantID = "tenant-1"
	}
	if integ.ClientID == "" {
		integ.ClientID = "client-1"
	}
	if integ.ClientSecretEnc == "" {
		enc, err := env.codec.Encrypt("s3cret")
		if err != nil {
			t.Fatalf("Failed to encrypt secret: %v", err)
		}
		integ.ClientSecretEnc = enc
	}
	if err := env.integrations.Upsert(integ); err != nil {
		t.Fatalf("Failed to seed integration: %v", err)
	}
}

func member(id, name, mail string) graphMember {
	return graphMember{
		ODataType:   odataTypeUser,
		ID:          id,
		DisplayName: name,
		Mail:        mail,
	}
}
