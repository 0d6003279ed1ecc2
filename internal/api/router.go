package api

import (
	"context"
	"net/http"

	"github.com/julienschmidt/httprouter"

	apiContext "backoffice/internal/api/context"
	"backoffice/internal/api/handlers"
	"backoffice/internal/api/middleware"
	"backoffice/internal/pkg/errors"
	"backoffice/internal/platform/auth"
)

type Dependencies struct {
	DirectoryHandler *handlers.DirectoryHandler
	PersonHandler    *handlers.PersonHandler
	UserHandler      *handlers.UserHandler
	HealthHandler    *handlers.HealthHandler
	MetricsHandler   *handlers.MetricsHandler
	AuthMiddleware   *middleware.AuthMiddleware
	TenantMiddleware *middleware.TenantMiddleware
}

func NewRouter(deps *Dependencies) *httprouter.Router {
	router := httprouter.New()

	router.GET("/api/v1/health", wrap(deps.HealthHandler.Check))
	router.GET("/api/v1/metrics", wrap(deps.MetricsHandler.Export))

	authMid := deps.AuthMiddleware
	tenantMid := deps.TenantMiddleware

	// Directory integration settings and sync triggers
	router.GET("/api/v1/directory/settings",
		chain(deps.DirectoryHandler.GetSettings, authMid.Handle, tenantMid.Handle,
			requireRole("admin", "owner"), middleware.RateLimit("api_read")))
	router.PUT("/api/v1/directory/settings",
		chain(deps.DirectoryHandler.UpdateSettings, authMid.Handle, tenantMid.Handle,
			requireRole("admin", "owner"), middleware.RateLimit("api_write")))
	router.POST("/api/v1/directory/test",
		chain(deps.DirectoryHandler.TestConnection, authMid.Handle, tenantMid.Handle,
			requireRole("admin", "owner"), middleware.RateLimit("api_write")))
	router.POST("/api/v1/directory/sync",
		chain(deps.DirectoryHandler.Sync, authMid.Handle, tenantMid.Handle,
			requireRole("admin", "owner"), middleware.RateLimit("sync")))
	router.POST("/api/v1/directory/sync/people",
		chain(deps.DirectoryHandler.SyncPeople, authMid.Handle, tenantMid.Handle,
			requireRole("admin", "owner"), middleware.RateLimit("sync")))

	// Scheduler callback; no session, authenticated by the per-org
	// callback token issued at settings save.
	router.POST("/api/v1/directory/callback/:org_id",
		chain(deps.DirectoryHandler.Callback, middleware.RateLimit("sync")))

	// Synced entities
	router.GET("/api/v1/people",
		chain(deps.PersonHandler.List, authMid.Handle, tenantMid.Handle, middleware.RateLimit("api_read")))
	router.GET("/api/v1/people/:person_id",
		chain(deps.PersonHandler.Get, authMid.Handle, tenantMid.Handle, middleware.RateLimit("api_read")))
	router.GET("/api/v1/users",
		chain(deps.UserHandler.List, authMid.Handle, tenantMid.Handle, middleware.RateLimit("api_read")))
	router.GET("/api/v1/users/:user_id",
		chain(deps.UserHandler.Get, authMid.Handle, tenantMid.Handle, middleware.RateLimit("api_read")))

	return router
}

// Helper function to chain middlewares
func chain(handler http.HandlerFunc, middlewares ...func(http.HandlerFunc) http.HandlerFunc) httprouter.Handle {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return wrap(handler)
}

// Convert http.HandlerFunc to httprouter.Handle
func wrap(handler http.HandlerFunc) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		ctx := context.WithValue(r.Context(), apiContext.Params, ps)
		handler(w, r.WithContext(ctx))
	}
}

func requireRole(roles ...string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			claims := r.Context().Value(apiContext.Claims).(*auth.Claims)

			allowed := false
			for _, role := range roles {
				if claims.Role == role {
					allowed = true
					break
				}
			}

			if !allowed {
				errors.WriteError(w, http.StatusForbidden, errors.ErrCodeForbidden, "Insufficient permissions", nil)
				return
			}

			next(w, r)
		}
	}
}
