package handlers

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"

	apiContext "backoffice/internal/api/context"
	"backoffice/internal/api/middleware"
	"backoffice/internal/engine/directory"
	"backoffice/internal/pkg/errors"
	"backoffice/internal/platform/audit"
	"backoffice/internal/platform/config"
	"backoffice/internal/platform/models"
	"backoffice/internal/platform/repositories"
	"backoffice/internal/platform/secrets"
)

type DirectoryHandler struct {
	integrations *repositories.IntegrationRepository
	orgRepo      *repositories.OrganizationRepository
	syncSvc      *directory.Service
	codec        *secrets.Codec
	auditLog     *audit.Logger
	cfg          config.DirectoryConfig
}

func NewDirectoryHandler(
	integrations *repositories.IntegrationRepository,
	orgRepo *repositories.OrganizationRepository,
	syncSvc *directory.Service,
	codec *secrets.Codec,
	auditLog *audit.Logger,
	cfg config.DirectoryConfig,
) *DirectoryHandler {
	return &DirectoryHandler{
		integrations: integrations,
		orgRepo:      orgRepo,
		syncSvc:      syncSvc,
		codec:        codec,
		auditLog:     auditLog,
		cfg:          cfg,
	}
}

// SettingsResponse never carries the secret itself, only whether one is
// stored. The callback token is the exception: it is echoed back on a
// save so the scheduler can be configured, and omitted everywhere else.
type SettingsResponse struct {
	TenantID                 string `json:"tenant_id"`
	ClientID                 string `json:"client_id"`
	ClientSecretSet          bool   `json:"client_secret_set"`
	CallbackToken            string `json:"callback_token,omitempty"`
	GroupPattern             string `json:"group_pattern"`
	SyncEnabled              bool   `json:"sync_enabled"`
	PeopleSyncEnabled        bool   `json:"people_sync_enabled"`
	PeopleGroupPattern       string `json:"people_group_pattern"`
	DeletePeopleOnUserDelete bool   `json:"delete_people_on_user_delete"`
	PeopleAutoDelete         bool   `json:"people_auto_delete"`
	SyncedUserCount          int    `json:"synced_user_count"`
	SyncedGroupCount         int    `json:"synced_group_count"`
	LastSyncAt               *int64 `json:"last_sync_at,omitempty"`
	LastError                string `json:"last_error,omitempty"`
	SyncInProgress           bool   `json:"sync_in_progress"`
}

func settingsResponse(i *models.DirectoryIntegration) *SettingsResponse {
	if i == nil {
		return &SettingsResponse{}
	}
	return &SettingsResponse{
		TenantID:                 i.TenantID,
		ClientID:                 i.ClientID,
		ClientSecretSet:          i.ClientSecretEnc != "",
		GroupPattern:             i.GroupPattern,
		SyncEnabled:              i.SyncEnabled,
		PeopleSyncEnabled:        i.PeopleSyncEnabled,
		PeopleGroupPattern:       i.PeopleGroupPattern,
		DeletePeopleOnUserDelete: i.DeletePeopleOnUserDelete,
		PeopleAutoDelete:         i.PeopleAutoDelete,
		SyncedUserCount:          i.SyncedUserCount,
		SyncedGroupCount:         i.SyncedGroupCount,
		LastSyncAt:               i.LastSyncAt,
		LastError:                i.LastError,
		SyncInProgress:           i.SyncInProgress,
	}
}

func (h *DirectoryHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	tenant := r.Context().Value(apiContext.Tenant).(*middleware.TenantContext)

	integ, err := h.integrations.GetByOrg(tenant.OrgID)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(settingsResponse(integ))
}

type UpdateSettingsRequest struct {
	TenantID                 string `json:"tenant_id"`
	ClientID                 string `json:"client_id"`
	ClientSecret             string `json:"client_secret"`
	GroupPattern             string `json:"group_pattern"`
	SyncEnabled              bool   `json:"sync_enabled"`
	PeopleSyncEnabled        bool   `json:"people_sync_enabled"`
	PeopleGroupPattern       string `json:"people_group_pattern"`
	DeletePeopleOnUserDelete bool   `json:"delete_people_on_user_delete"`
	PeopleAutoDelete         bool   `json:"people_auto_delete"`
}

func (h *DirectoryHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	tenant := r.Context().Value(apiContext.Tenant).(*middleware.TenantContext)

	var req UpdateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}
	if req.SyncEnabled && (req.TenantID == "" || req.ClientID == "") {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Tenant ID and client ID are required to enable sync", nil)
		return
	}

	existing, err := h.integrations.GetByOrg(tenant.OrgID)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}

	// An omitted secret means "keep the stored one"; the UI never sees
	// the plaintext back.
	secretEnc := ""
	if existing != nil {
		secretEnc = existing.ClientSecretEnc
	}
	if req.ClientSecret != "" {
		secretEnc, err = h.codec.Encrypt(req.ClientSecret)
		if err != nil {
			errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to encrypt secret", nil)
			return
		}
	}
	if req.SyncEnabled && secretEnc == "" {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "A client secret is required to enable sync", nil)
		return
	}

	// The callback token is minted once per integration and survives
	// later saves, so a configured scheduler keeps working.
	callbackToken := ""
	callbackTokenEnc := ""
	if existing != nil && existing.CallbackTokenEnc != "" {
		callbackTokenEnc = existing.CallbackTokenEnc
		callbackToken = h.codec.Decrypt(callbackTokenEnc)
	}
	if callbackToken == "" {
		callbackToken = "cbk_" + uuid.NewString()
		callbackTokenEnc, err = h.codec.Encrypt(callbackToken)
		if err != nil {
			errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to encrypt callback token", nil)
			return
		}
	}

	integ := &models.DirectoryIntegration{
		OrganizationID:           tenant.OrgID,
		TenantID:                 req.TenantID,
		ClientID:                 req.ClientID,
		ClientSecretEnc:          secretEnc,
		CallbackTokenEnc:         callbackTokenEnc,
		GroupPattern:             req.GroupPattern,
		SyncEnabled:              req.SyncEnabled,
		PeopleSyncEnabled:        req.PeopleSyncEnabled,
		PeopleGroupPattern:       req.PeopleGroupPattern,
		DeletePeopleOnUserDelete: req.DeletePeopleOnUserDelete,
		PeopleAutoDelete:         req.PeopleAutoDelete,
	}
	if existing != nil {
		integ.CreatedAt = existing.CreatedAt
	}

	if err := h.integrations.Upsert(integ); err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to save settings", nil)
		return
	}

	h.auditLog.Log(r.Context(), "directory.settings.update", "directory_integration", tenant.OrgID, map[string]interface{}{
		"sync_enabled":  req.SyncEnabled,
		"group_pattern": req.GroupPattern,
	})

	stored, _ := h.integrations.GetByOrg(tenant.OrgID)
	resp := settingsResponse(stored)
	resp.CallbackToken = callbackToken
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (h *DirectoryHandler) Sync(w http.ResponseWriter, r *http.Request) {
	tenant := r.Context().Value(apiContext.Tenant).(*middleware.TenantContext)

	result := h.syncSvc.FullSync(r.Context(), tenant.OrgID)

	h.auditLog.Log(r.Context(), "directory.sync", "directory_integration", tenant.OrgID, map[string]interface{}{
		"success": result.Success,
		"message": result.Message,
	})

	writeSyncResult(w, result)
}

func (h *DirectoryHandler) SyncPeople(w http.ResponseWriter, r *http.Request) {
	tenant := r.Context().Value(apiContext.Tenant).(*middleware.TenantContext)

	result := h.syncSvc.PeopleSync(r.Context(), tenant.OrgID)

	h.auditLog.Log(r.Context(), "directory.sync.people", "directory_integration", tenant.OrgID, map[string]interface{}{
		"success": result.Success,
		"message": result.Message,
	})

	writeSyncResult(w, result)
}

// Callback lets an external scheduler kick off a run for one org. There
// is no session; the caller authenticates with the token issued when the
// integration was saved. The run happens in the background; the caller
// only learns it was accepted.
func (h *DirectoryHandler) Callback(w http.ResponseWriter, r *http.Request) {
	ps := r.Context().Value(apiContext.Params).(httprouter.Params)
	orgID := ps.ByName("org_id")

	org, err := h.orgRepo.GetByID(orgID)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}
	if org == nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Organization not found", nil)
		return
	}

	integ, err := h.integrations.GetByOrg(orgID)
	if err != nil || integ == nil || !integ.SyncEnabled {
		errors.WriteError(w, http.StatusConflict, errors.ErrCodeConflict, "Directory sync is not enabled for this organization", nil)
		return
	}

	if !h.verifyCallbackToken(r, integ) {
		errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "Invalid callback token", nil)
		return
	}

	go func() {
		// Detached from the request context; the run outlives the 202.
		result := h.syncSvc.FullSync(context.Background(), orgID)
		log.Info().Str("org_id", orgID).Bool("success", result.Success).
			Str("message", result.Message).Msg("callback-triggered sync finished")
	}()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"status": "accepted"})
}

// verifyCallbackToken compares the presented token against the one
// stored at settings save. An integration without a token rejects every
// call.
func (h *DirectoryHandler) verifyCallbackToken(r *http.Request, integ *models.DirectoryIntegration) bool {
	presented := callbackToken(r)
	if presented == "" || integ.CallbackTokenEnc == "" {
		return false
	}
	stored := h.codec.Decrypt(integ.CallbackTokenEnc)
	if stored == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(stored)) == 1
}

// callbackToken pulls the token from the Authorization header, the
// X-Callback-Token header, or a token query parameter, in that order.
func callbackToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	if tok := r.Header.Get("X-Callback-Token"); tok != "" {
		return tok
	}
	return r.URL.Query().Get("token")
}

type TestConnectionRequest struct {
	TenantID     string `json:"tenant_id"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

type TestConnectionResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// TestConnection exchanges a token with the candidate credentials so the
// settings page can validate before saving. Stored values fill in any
// field the request omits.
func (h *DirectoryHandler) TestConnection(w http.ResponseWriter, r *http.Request) {
	tenant := r.Context().Value(apiContext.Tenant).(*middleware.TenantContext)

	var req TestConnectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	if req.TenantID == "" || req.ClientID == "" || req.ClientSecret == "" {
		stored, err := h.integrations.GetByOrg(tenant.OrgID)
		if err != nil {
			errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
			return
		}
		if stored != nil {
			if req.TenantID == "" {
				req.TenantID = stored.TenantID
			}
			if req.ClientID == "" {
				req.ClientID = stored.ClientID
			}
			if req.ClientSecret == "" {
				req.ClientSecret = h.codec.Decrypt(stored.ClientSecretEnc)
			}
		}
	}
	if req.TenantID == "" || req.ClientID == "" || req.ClientSecret == "" {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Tenant ID, client ID and client secret are required", nil)
		return
	}

	tokenURL := formatTokenURL(h.cfg.TokenURL, req.TenantID)
	client := directory.NewGraphClient(tokenURL, h.cfg.GraphURL, req.ClientID, req.ClientSecret,
		h.cfg.GroupPageSize, directory.NewMemoryTokenCache(), h.cfg.HTTPTimeout)

	resp := TestConnectionResponse{Success: true, Message: "Connection successful"}
	if _, err := client.GetAccessToken(r.Context()); err != nil {
		resp = TestConnectionResponse{Success: false, Message: err.Error()}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func formatTokenURL(template, tenantID string) string {
	if strings.Contains(template, "%s") {
		return fmt.Sprintf(template, tenantID)
	}
	return template
}

func writeSyncResult(w http.ResponseWriter, result *directory.SyncResult) {
	status := http.StatusOK
	if !result.Success {
		status = http.StatusConflict
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(result)
}
