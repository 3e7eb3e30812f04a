package rest

import (
	"database/sql"
	"log/slog"
	"net/http"
	"net/netip"

	"github.com/frahmantamala/equipment-approvals/internal/auth"
	"github.com/frahmantamala/equipment-approvals/internal/equipment"
	"github.com/frahmantamala/equipment-approvals/internal/permission"
	"github.com/frahmantamala/equipment-approvals/internal/request"
	"github.com/frahmantamala/equipment-approvals/internal/transport/middleware"
	"github.com/frahmantamala/equipment-approvals/internal/transport/swagger"
	"github.com/frahmantamala/equipment-approvals/internal/user"
	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"
)

// Handlers bundles everything the router mounts. Nil handlers leave their routes out.
type Handlers struct {
	Auth       *auth.Handler
	User       *user.Handler
	Permission *permission.Handler
	Equipment  *equipment.Handler
	Request    *request.Handler

	Authz          *permission.RBACAuthorization
	LoginLimiter   *middleware.IPRateLimiter
	Validator      *middleware.OpenAPIValidator
	OpenAPI        []byte
	AllowedOrigins string
	// TrustedProxies may rewrite the client address; everyone else is keyed on the socket peer.
	TrustedProxies []netip.Prefix
}

func RegisterAllRoutes(router *chi.Mux, db *sql.DB, h Handlers, logger *slog.Logger) {
	healthHandler := NewHealthHandler(db)

	router.Use(middleware.CORS(h.AllowedOrigins))
	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.TrustedRealIP(h.TrustedProxies))
	router.Use(middleware.TraceID)
	router.Use(middleware.AccessLog)
	router.Use(middleware.RecoveryMiddleware(logger))

	if len(h.OpenAPI) > 0 {
		spec := h.OpenAPI
		router.Get("/openapi.yml", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/yaml")
			_, _ = w.Write(spec)
		})
		router.Handle("/swagger/*", swagger.Handler())
	}

	router.Route("/api/v1", func(r chi.Router) {
		if h.Validator != nil {
			r.Use(h.Validator.Handler)
		}

		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		if h.Auth == nil {
			return
		}

		r.Route("/auth", func(ar chi.Router) {
			if h.LoginLimiter != nil {
				ar.With(h.LoginLimiter.Handler).Post("/login", h.Auth.Login)
			} else {
				ar.Post("/login", h.Auth.Login)
			}
			ar.Post("/refresh", h.Auth.RefreshToken)
			ar.Post("/logout", h.Auth.Logout)
		})

		r.Group(func(pr chi.Router) {
			pr.Use(h.Auth.AuthMiddleware)
			authz := h.Authz

			if h.User != nil {
				pr.Get("/users/me", h.User.GetCurrentUser)
				pr.With(authz.Require(permission.ResourceUsers, permission.ActionView)).Get("/users/team", h.User.GetTeam)
				pr.With(authz.Require(permission.ResourceUsers, permission.ActionView)).Get("/users/{id}", h.User.GetUser)
			}

			if h.Permission != nil {
				pr.Get("/permissions/check", h.Permission.CheckMine)
				pr.Route("/admin", func(ad chi.Router) {
					ad.With(authz.Require(permission.ResourceAdminPanel, permission.ActionView)).Get("/permissions/structure", h.Permission.GetStructure)
					ad.With(authz.Require(permission.ResourceAdminPanel, permission.ActionManage)).Post("/permissions/backfill", h.Permission.Backfill)
					ad.With(authz.Require(permission.ResourceUsers, permission.ActionManage)).Get("/users/{id}/permissions", h.Permission.GetUserPermissions)
					ad.With(authz.Require(permission.ResourceUsers, permission.ActionManage)).Put("/users/{id}/permissions", h.Permission.UpdateUserPermissions)
				})
			}

			if h.Equipment != nil {
				registerEquipmentRoutes(pr, h.Equipment, authz)
			}

			if h.Request != nil {
				registerRequestRoutes(pr, h.Request, authz)
			}
		})
	})
}

// Reference-data reads are answered from the token's role; writes hit the resolver.
func registerEquipmentRoutes(r chi.Router, h *equipment.Handler, authz *permission.RBACAuthorization) {
	r.With(authz.RequireLegacy(permission.ResourceEquipment, permission.ActionView)).Get("/categories", h.GetCategories)

	r.Route("/equipment", func(er chi.Router) {
		er.With(authz.RequireLegacy(permission.ResourceEquipment, permission.ActionView)).Get("/", h.GetEquipmentList)
		er.With(authz.RequireLegacy(permission.ResourceEquipment, permission.ActionView)).Get("/{id}", h.GetEquipment)
		er.With(authz.Require(permission.ResourceEquipment, permission.ActionCreate)).Post("/", h.CreateEquipment)
		er.With(authz.Require(permission.ResourceEquipment, permission.ActionEdit)).Patch("/{id}", h.UpdateEquipment)
		er.With(authz.Require(permission.ResourceEquipment, permission.ActionDelete)).Delete("/{id}", h.DeleteEquipment)
	})

	r.Route("/warehouses", func(wr chi.Router) {
		wr.With(authz.RequireLegacy(permission.ResourceWarehouses, permission.ActionView)).Get("/", h.GetWarehouses)
		wr.With(authz.RequireLegacy(permission.ResourceWarehouses, permission.ActionView)).Get("/{id}", h.GetWarehouse)
		wr.With(authz.Require(permission.ResourceWarehouses, permission.ActionCreate)).Post("/", h.CreateWarehouse)
		wr.With(authz.Require(permission.ResourceWarehouses, permission.ActionEdit)).Patch("/{id}", h.UpdateWarehouse)
		wr.With(authz.Require(permission.ResourceWarehouses, permission.ActionDelete)).Delete("/{id}", h.DeleteWarehouse)
	})
}

// Ownership, approver identity and canDeliver are checked by the workflow service itself.
func registerRequestRoutes(r chi.Router, h *request.Handler, authz *permission.RBACAuthorization) {
	r.Route("/requests", func(rr chi.Router) {
		rr.With(authz.Require(permission.ResourceRequests, permission.ActionCreate)).Post("/", h.CreateRequest)
		rr.With(authz.Require(permission.ResourceRequests, permission.ActionViewAll)).Get("/", h.ListAll)
		rr.With(authz.Require(permission.ResourceRequests, permission.ActionView)).Get("/mine", h.ListMine)
		rr.With(authz.Require(permission.ResourceRequests, permission.ActionApprove)).Get("/team", h.ListTeam)
		rr.With(authz.Require(permission.ResourceRequests, permission.ActionView)).Get("/{id}", h.GetRequest)
		rr.With(authz.Require(permission.ResourceRequests, permission.ActionEdit)).Put("/{id}", h.EditRequest)
		rr.With(authz.Require(permission.ResourceRequests, permission.ActionDelete)).Delete("/{id}", h.DeleteRequest)
		rr.With(authz.Require(permission.ResourceRequests, permission.ActionApprove)).Post("/{id}/approve", h.ApproveRequest)
		rr.With(authz.Require(permission.ResourceRequests, permission.ActionReject)).Post("/{id}/reject", h.RejectRequest)
		rr.Post("/{id}/deliver", h.DeliverRequest)
	})
}
