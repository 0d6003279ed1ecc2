package handlers

import (
	"database/sql"
	"fmt"
	"net/http"
)

type MetricsHandler struct {
	db *sql.DB
}

func NewMetricsHandler(db *sql.DB) *MetricsHandler {
	return &MetricsHandler{db: db}
}

// Export writes a minimal text exposition of the sync counters already
// tracked on the integration rows.
func (h *MetricsHandler) Export(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintf(w, "# HELP backoffice_up Is the server up\n")
	fmt.Fprintf(w, "# TYPE backoffice_up gauge\n")
	fmt.Fprintf(w, "backoffice_up 1\n")

	var users, groups, inProgress int
	err := h.db.QueryRow(`
		SELECT COALESCE(SUM(synced_user_count), 0), COALESCE(SUM(synced_group_count), 0), COALESCE(SUM(sync_in_progress), 0)
		FROM directory_integrations
	`).Scan(&users, &groups, &inProgress)
	if err != nil {
		return
	}

	fmt.Fprintf(w, "# HELP backoffice_synced_users Users under directory sync across all orgs\n")
	fmt.Fprintf(w, "# TYPE backoffice_synced_users gauge\n")
	fmt.Fprintf(w, "backoffice_synced_users %d\n", users)
	fmt.Fprintf(w, "# HELP backoffice_synced_groups Groups under directory sync across all orgs\n")
	fmt.Fprintf(w, "# TYPE backoffice_synced_groups gauge\n")
	fmt.Fprintf(w, "backoffice_synced_groups %d\n", groups)
	fmt.Fprintf(w, "# HELP backoffice_syncs_in_progress Sync runs currently holding an org guard\n")
	fmt.Fprintf(w, "# TYPE backoffice_syncs_in_progress gauge\n")
	fmt.Fprintf(w, "backoffice_syncs_in_progress %d\n", inProgress)
}
