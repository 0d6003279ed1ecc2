package handlers

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/julienschmidt/httprouter"
	_ "github.com/mattn/go-sqlite3"

	apiContext "backoffice/internal/api/context"
	"backoffice/internal/api/middleware"
	"backoffice/internal/engine/directory"
	"backoffice/internal/platform/audit"
	"backoffice/internal/platform/config"
	"backoffice/internal/platform/models"
	"backoffice/internal/platform/repositories"
	"backoffice/internal/platform/secrets"
)

const handlerTestKey = "cdcdcdcdcdcdcdcdcdcdcdcdcdcdcdcdcdcdcdcdcdcdcdcdcdcdcdcdcdcdcdcd"

type handlerEnv struct {
	db           *sql.DB
	handler      *DirectoryHandler
	codec        *secrets.Codec
	orgs         *repositories.OrganizationRepository
	integrations *repositories.IntegrationRepository
}

func setupHandlerEnv(t *testing.T) *handlerEnv {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open db: %v", err)
	}
	// A second pool connection would see a different empty :memory: db.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	schema, err := os.ReadFile("../../../migrations/001_init.sql")
	if err != nil {
		t.Fatalf("Failed to read schema: %v", err)
	}
	if _, err := db.Exec(string(schema)); err != nil {
		t.Fatalf("Failed to apply schema: %v", err)
	}

	// Minimal provider: tokens always succeed and the directory is empty,
	// so a background run triggered by a callback finishes harmlessly.
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/token" {
			w.Write([]byte(`{"access_token":"test-token","expires_in":3600}`))
			return
		}
		w.Write([]byte(`{"value":[]}`))
	}))
	t.Cleanup(provider.Close)

	codec, err := secrets.NewCodec(handlerTestKey)
	if err != nil {
		t.Fatalf("Failed to build codec: %v", err)
	}

	orgs := repositories.NewOrganizationRepository(db)
	integrations := repositories.NewIntegrationRepository(db)

	cfg := config.DirectoryConfig{
		GraphURL:      provider.URL,
		TokenURL:      provider.URL + "/token",
		GroupPageSize: 100,
		HTTPTimeout:   5 * time.Second,
		SyncLease:     15 * time.Minute,
	}
	svc := directory.NewService(orgs, repositories.NewUserRepository(db),
		repositories.NewPersonRepository(db), repositories.NewScimGroupRepository(db),
		repositories.NewRoleRepository(db), repositories.NewRoleGrantRepository(db),
		integrations, codec, cfg)

	return &handlerEnv{
		db:           db,
		codec:        codec,
		orgs:         orgs,
		integrations: integrations,
		handler:      NewDirectoryHandler(integrations, orgs, svc, codec, audit.NewLogger(db), cfg),
	}
}

func (env *handlerEnv) seedOrg(t *testing.T, id string) {
	t.Helper()
	now := time.Now().Unix()
	err := env.orgs.Create(&models.Organization{
		ID: id, Slug: id, Name: "Test Org", CreatedAt: now, UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("Failed to seed org: %v", err)
	}
}

// seedIntegration stores a sync-enabled integration; a non-empty
// callbackToken is encrypted the way UpdateSettings stores it.
func (env *handlerEnv) seedIntegration(t *testing.T, orgID, callbackToken string) {
	t.Helper()
	secretEnc, err := env.codec.Encrypt("s3cret")
	if err != nil {
		t.Fatalf("Failed to encrypt secret: %v", err)
	}
	tokenEnc := ""
	if callbackToken != "" {
		tokenEnc, err = env.codec.Encrypt(callbackToken)
		if err != nil {
			t.Fatalf("Failed to encrypt callback token: %v", err)
		}
	}
	err = env.integrations.Upsert(&models.DirectoryIntegration{
		OrganizationID:   orgID,
		TenantID:         "tenant-1",
		ClientID:         "client-1",
		ClientSecretEnc:  secretEnc,
		CallbackTokenEnc: tokenEnc,
		SyncEnabled:      true,
	})
	if err != nil {
		t.Fatalf("Failed to seed integration: %v", err)
	}
}

func callbackRequest(orgID string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/directory/callback/"+orgID, nil)
	ps := httprouter.Params{{Key: "org_id", Value: orgID}}
	return req.WithContext(context.WithValue(req.Context(), apiContext.Params, ps))
}

func TestCallback_RejectsMissingToken(t *testing.T) {
	env := setupHandlerEnv(t)
	env.seedOrg(t, "org1")
	env.seedIntegration(t, "org1", "cbk_valid")

	rec := httptest.NewRecorder()
	env.handler.Callback(rec, callbackRequest("org1"))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401 without token, got %d", rec.Code)
	}
}

func TestCallback_RejectsWrongToken(t *testing.T) {
	env := setupHandlerEnv(t)
	env.seedOrg(t, "org1")
	env.seedIntegration(t, "org1", "cbk_valid")

	req := callbackRequest("org1")
	req.Header.Set("Authorization", "Bearer cbk_wrong")
	rec := httptest.NewRecorder()
	env.handler.Callback(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401 for wrong token, got %d", rec.Code)
	}
}

func TestCallback_RejectsWhenNoTokenStored(t *testing.T) {
	env := setupHandlerEnv(t)
	env.seedOrg(t, "org1")
	env.seedIntegration(t, "org1", "")

	req := callbackRequest("org1")
	req.Header.Set("Authorization", "Bearer cbk_anything")
	rec := httptest.NewRecorder()
	env.handler.Callback(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401 with no stored token, got %d", rec.Code)
	}
}

func TestCallback_AcceptsValidToken(t *testing.T) {
	env := setupHandlerEnv(t)
	env.seedOrg(t, "org1")
	env.seedIntegration(t, "org1", "cbk_valid")

	present := map[string]func(*http.Request){
		"bearer header": func(r *http.Request) { r.Header.Set("Authorization", "Bearer cbk_valid") },
		"token header":  func(r *http.Request) { r.Header.Set("X-Callback-Token", "cbk_valid") },
		"query param":   func(r *http.Request) { r.URL.RawQuery = "token=cbk_valid" },
	}
	for name, apply := range present {
		t.Run(name, func(t *testing.T) {
			req := callbackRequest("org1")
			apply(req)
			rec := httptest.NewRecorder()
			env.handler.Callback(rec, req)

			if rec.Code != http.StatusAccepted {
				t.Fatalf("Expected 202, got %d: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func updateSettingsRequest(t *testing.T, orgID string, body UpdateSettingsRequest) *http.Request {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("Failed to marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPut, "/api/v1/directory/settings", bytes.NewReader(payload))
	tenant := &middleware.TenantContext{OrgID: orgID, OrgSlug: orgID}
	return req.WithContext(context.WithValue(req.Context(), apiContext.Tenant, tenant))
}

func TestUpdateSettings_IssuesCallbackToken(t *testing.T) {
	env := setupHandlerEnv(t)
	env.seedOrg(t, "org1")

	body := UpdateSettingsRequest{
		TenantID:     "tenant-1",
		ClientID:     "client-1",
		ClientSecret: "s3cret",
		SyncEnabled:  true,
	}
	rec := httptest.NewRecorder()
	env.handler.UpdateSettings(rec, updateSettingsRequest(t, "org1", body))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp SettingsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if !strings.HasPrefix(resp.CallbackToken, "cbk_") {
		t.Fatalf("Expected a cbk_ callback token, got %q", resp.CallbackToken)
	}

	stored, err := env.integrations.GetByOrg("org1")
	if err != nil || stored == nil {
		t.Fatalf("Failed to load integration: %v", err)
	}
	if env.codec.Decrypt(stored.CallbackTokenEnc) != resp.CallbackToken {
		t.Error("Expected stored token to decrypt to the issued value")
	}

	// A later save must not rotate the token.
	rec = httptest.NewRecorder()
	env.handler.UpdateSettings(rec, updateSettingsRequest(t, "org1", body))
	var second SettingsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &second); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if second.CallbackToken != resp.CallbackToken {
		t.Errorf("Expected token to survive a second save, got %q then %q",
			resp.CallbackToken, second.CallbackToken)
	}
}

func TestGetSettings_OmitsCallbackToken(t *testing.T) {
	env := setupHandlerEnv(t)
	env.seedOrg(t, "org1")
	env.seedIntegration(t, "org1", "cbk_valid")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/directory/settings", nil)
	tenant := &middleware.TenantContext{OrgID: "org1", OrgSlug: "org1"}
	req = req.WithContext(context.WithValue(req.Context(), apiContext.Tenant, tenant))
	rec := httptest.NewRecorder()
	env.handler.GetSettings(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &raw); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if _, ok := raw["callback_token"]; ok {
		t.Error("Expected callback_token to be absent from a read")
	}
}
