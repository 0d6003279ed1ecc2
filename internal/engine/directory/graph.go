package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// GraphClient talks to the identity provider's directory API using
// client-credentials auth. Every fetch method degrades to an empty
// result instead of failing, so one provider hiccup cannot unwind a
// whole reconciliation run; callers accumulate returned errors instead.
type GraphClient struct {
	TokenURL     string
	BaseURL      string
	ClientID     string
	ClientSecret string
	PageSize     int

	cache      TokenCache
	httpClient *http.Client
}

func NewGraphClient(tokenURL, baseURL, clientID, clientSecret string, pageSize int, cache TokenCache, timeout time.Duration) *GraphClient {
	if pageSize <= 0 {
		pageSize = 100
	}
	return &GraphClient{
		TokenURL:     tokenURL,
		BaseURL:      strings.TrimRight(baseURL, "/"),
		ClientID:     clientID,
		ClientSecret: clientSecret,
		PageSize:     pageSize,
		cache:        cache,
		httpClient:   &http.Client{Timeout: timeout},
	}
}

// GetAccessToken returns a cached or freshly exchanged token, or "" on
// any failure. Provider error codes for bad credentials are translated
// into actionable messages.
func (c *GraphClient) GetAccessToken(ctx context.Context) (string, error) {
	if tok := c.cache.Get(); tok != "" {
		return tok, nil
	}

	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {c.ClientID},
		"client_secret": {c.ClientSecret},
		"scope":         {"https://graph.microsoft.com/.default"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Warn().Err(err).Msg("token endpoint unreachable")
		return "", fmt.Errorf("token endpoint unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var tokenErr tokenErrorResponse
		json.NewDecoder(resp.Body).Decode(&tokenErr)
		msg := translateTokenError(tokenErr)
		log.Warn().Int("status", resp.StatusCode).Str("provider_error", tokenErr.Error).Msg("token exchange failed")
		return "", fmt.Errorf("%s", msg)
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("malformed token response: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("token response missing access_token")
	}

	c.cache.Set(tok.AccessToken, time.Duration(tok.ExpiresIn)*time.Second)
	return tok.AccessToken, nil
}

func translateTokenError(e tokenErrorResponse) string {
	for _, code := range e.ErrorCodes {
		switch code {
		case 700016:
			return "invalid client id: check the application (client) ID in the directory settings"
		case 7000215:
			return "invalid client secret: the secret is wrong or has expired"
		case 90002:
			return "invalid tenant: the directory (tenant) ID was not found"
		}
	}
	if e.ErrorDescription != "" {
		return "token exchange failed: " + e.ErrorDescription
	}
	if e.Error != "" {
		return "token exchange failed: " + e.Error
	}
	return "token exchange failed"
}

// FetchGroups lists groups in scope of the pattern. When the pattern has
// a literal prefix the provider filters server-side; otherwise a bounded
// page is fetched and filtered locally. A fully literal pattern is
// matched server-side by equality with a client-side re-check.
func (c *GraphClient) FetchGroups(ctx context.Context, pattern string) ([]RemoteGroup, error) {
	q := url.Values{}
	q.Set("$select", "id,displayName,description")
	q.Set("$top", fmt.Sprintf("%d", c.PageSize))

	prefix := literalPrefix(pattern)
	switch {
	case pattern != "" && !strings.Contains(pattern, "*"):
		q.Set("$filter", fmt.Sprintf("displayName eq '%s'", escapeODataLiteral(pattern)))
	case prefix != "":
		q.Set("$filter", fmt.Sprintf("startswith(displayName,'%s')", escapeODataLiteral(prefix)))
	}

	var list graphGroupList
	if err := c.getJSON(ctx, "/groups?"+q.Encode(), &list); err != nil {
		return nil, err
	}

	groups := make([]RemoteGroup, 0, len(list.Value))
	for _, g := range list.Value {
		if !MatchPattern(pattern, g.DisplayName) {
			continue
		}
		groups = append(groups, RemoteGroup{
			ExternalID:  g.ID,
			DisplayName: g.DisplayName,
			Description: g.Description,
		})
	}
	return groups, nil
}

// FetchGroupMembers lists the user-typed members of a group and enriches
// each with manager and security-activity data. Enrichment lookups are
// independent reads with no ordering dependency, so they run
// concurrently; individual failures leave the field absent.
func (c *GraphClient) FetchGroupMembers(ctx context.Context, groupID string) ([]RemoteUser, error) {
	q := url.Values{}
	q.Set("$select", "id,displayName,mail,userPrincipalName,givenName,surname,accountEnabled,jobTitle,department,officeLocation,mobilePhone,employeeHireDate,employeeLeaveDateTime,createdDateTime")
	q.Set("$top", "999")

	var list graphMemberList
	if err := c.getJSON(ctx, "/groups/"+url.PathEscape(groupID)+"/members?"+q.Encode(), &list); err != nil {
		return nil, err
	}

	var users []RemoteUser
	for _, m := range list.Value {
		if m.ODataType != "" && m.ODataType != odataTypeUser {
			continue // nested groups and devices are out of scope
		}
		if m.email() == "" {
			log.Warn().Str("external_id", m.ID).Msg("skipping member without email")
			continue
		}
		users = append(users, m.toRemoteUser())
	}

	var wg sync.WaitGroup
	for i := range users {
		wg.Add(1)
		go func(u *RemoteUser) {
			defer wg.Done()
			c.enrichUser(ctx, u)
		}(&users[i])
	}
	wg.Wait()

	return users, nil
}

// enrichUser attaches manager and security activity, best-effort.
func (c *GraphClient) enrichUser(ctx context.Context, u *RemoteUser) {
	var mgr graphManager
	if err := c.getJSON(ctx, "/users/"+url.PathEscape(u.ExternalID)+"/manager?$select=id,displayName,mail,userPrincipalName", &mgr); err == nil && mgr.ID != "" {
		u.Manager = &RemoteManager{
			ExternalID:  mgr.ID,
			DisplayName: mgr.DisplayName,
			Email:       mgr.email(),
		}
	}

	var sec graphUserSecurity
	if err := c.getJSON(ctx, "/users/"+url.PathEscape(u.ExternalID)+"?$select=signInActivity,lastPasswordChangeDateTime", &sec); err == nil {
		if sec.SignInActivity != nil {
			u.LastSignInAt = parseRemoteTimestamp(sec.SignInActivity.LastSignInDateTime)
		}
		u.LastPasswordChangeAt = parseRemoteTimestamp(sec.LastPasswordChangeDateTime)
	}
}

func (c *GraphClient) getJSON(ctx context.Context, path string, out interface{}) error {
	token, err := c.GetAccessToken(ctx)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("graph request %s returned HTTP %d", path, resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func escapeODataLiteral(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
