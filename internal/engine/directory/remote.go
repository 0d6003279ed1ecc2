package directory

import (
	"time"
)

const odataTypeUser = "#microsoft.graph.user"

// RemoteGroup is a per-run snapshot of a provider group. It is never
// persisted as-is, only projected into a local ScimGroup.
type RemoteGroup struct {
	ExternalID  string
	DisplayName string
	Description string
}

type RemoteManager struct {
	ExternalID  string
	DisplayName string
	Email       string
}

// RemoteUser is a per-run snapshot of a provider user, narrowed from the
// provider's JSON at the client boundary. Optional fields stay empty/nil
// when the provider omits them or a best-effort lookup failed.
type RemoteUser struct {
	ExternalID           string
	DisplayName          string
	Email                string
	GivenName            string
	Surname              string
	AccountEnabled       *bool
	JobTitle             string
	Department           string
	OfficeLocation       string
	MobilePhone          string
	HireDate             string
	LeaveDate            string
	CreatedAt            *int64
	Manager              *RemoteManager
	LastSignInAt         *int64
	LastPasswordChangeAt *int64
}

// graph wire shapes

type graphGroup struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Description string `json:"description"`
}

type graphGroupList struct {
	Value []graphGroup `json:"value"`
}

type graphMember struct {
	ODataType             string `json:"@odata.type"`
	ID                    string `json:"id"`
	DisplayName           string `json:"displayName"`
	Mail                  string `json:"mail"`
	UserPrincipalName     string `json:"userPrincipalName"`
	GivenName             string `json:"givenName"`
	Surname               string `json:"surname"`
	AccountEnabled        *bool  `json:"accountEnabled"`
	JobTitle              string `json:"jobTitle"`
	Department            string `json:"department"`
	OfficeLocation        string `json:"officeLocation"`
	MobilePhone           string `json:"mobilePhone"`
	EmployeeHireDate      string `json:"employeeHireDate"`
	EmployeeLeaveDateTime string `json:"employeeLeaveDateTime"`
	CreatedDateTime       string `json:"createdDateTime"`
}

type graphMemberList struct {
	Value []graphMember `json:"value"`
}

type graphManager struct {
	ID                string `json:"id"`
	DisplayName       string `json:"displayName"`
	Mail              string `json:"mail"`
	UserPrincipalName string `json:"userPrincipalName"`
}

type graphUserSecurity struct {
	SignInActivity *struct {
		LastSignInDateTime string `json:"lastSignInDateTime"`
	} `json:"signInActivity"`
	LastPasswordChangeDateTime string `json:"lastPasswordChangeDateTime"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

type tokenErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	ErrorCodes       []int  `json:"error_codes"`
}

func (m graphMember) email() string {
	if m.Mail != "" {
		return m.Mail
	}
	return m.UserPrincipalName
}

func (m graphManager) email() string {
	if m.Mail != "" {
		return m.Mail
	}
	return m.UserPrincipalName
}

// parseRemoteDate normalizes a provider date to YYYY-MM-DD. Directory
// data is outside our control, so anything malformed is dropped rather
// than stored.
func parseRemoteDate(raw string) string {
	if raw == "" {
		return ""
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05Z", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			formatted := t.Format("2006-01-02")
			if _, err := time.Parse("2006-01-02", formatted); err == nil {
				return formatted
			}
		}
	}
	return ""
}

// parseRemoteTimestamp converts an RFC3339 provider timestamp to unix
// seconds, nil when absent or malformed.
func parseRemoteTimestamp(raw string) *int64 {
	if raw == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil
	}
	ts := t.Unix()
	return &ts
}

func (m graphMember) toRemoteUser() RemoteUser {
	return RemoteUser{
		ExternalID:     m.ID,
		DisplayName:    m.DisplayName,
		Email:          m.email(),
		GivenName:      m.GivenName,
		Surname:        m.Surname,
		AccountEnabled: m.AccountEnabled,
		JobTitle:       m.JobTitle,
		Department:     m.Department,
		OfficeLocation: m.OfficeLocation,
		MobilePhone:    m.MobilePhone,
		HireDate:       parseRemoteDate(m.EmployeeHireDate),
		LeaveDate:      parseRemoteDate(m.EmployeeLeaveDateTime),
		CreatedAt:      parseRemoteTimestamp(m.CreatedDateTime),
	}
}
