package permission_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"

	"github.com/frahmantamala/equipment-approvals/internal"
	"github.com/frahmantamala/equipment-approvals/internal/permission"
	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("HTTP surface", func() {
	var (
		router http.Handler
		roles  *permission.RoleDefaults
	)

	withPrincipal := func(p *internal.Principal) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if p != nil {
					r = r.WithContext(internal.ContextWithPrincipal(r.Context(), p))
				}
				next.ServeHTTP(w, r)
			})
		}
	}

	build := func(p *internal.Principal) http.Handler {
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
		catalog := permission.DefaultCatalog()
		roles = permission.NewRoleDefaults(catalog, permission.DefaultGrants())
		subjects := NewMockSubjects(
			permission.Subject{UserID: 1, Role: permission.RoleAdmin},
			permission.Subject{UserID: 4, Role: permission.RoleUser},
		)
		resolver := permission.NewResolver(subjects, roles, NewMockRepository(), logger)
		svc := permission.NewService(resolver, catalog, nil, logger)
		handler := permission.NewHandler(svc)
		authz := permission.NewRBACAuthorization(resolver, logger)

		r := chi.NewRouter()
		r.Use(withPrincipal(p))
		r.With(authz.Require(permission.ResourceAdminPanel, permission.ActionManage)).Get("/admin/permissions/structure", handler.GetStructure)
		r.With(authz.Require(permission.ResourceUsers, permission.ActionManage)).Put("/admin/users/{id}/permissions", handler.UpdateUserPermissions)
		r.With(authz.RequireLegacy(permission.ResourceReports, permission.ActionView)).Get("/reports", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})
		r.Get("/permissions/check", handler.CheckMine)
		return r
	}

	do := func(method, path string, body interface{}) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		if body != nil {
			Expect(json.NewEncoder(&buf).Encode(body)).To(Succeed())
		}
		req := httptest.NewRequest(method, path, &buf).WithContext(context.Background())
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	decodeError := func(rec *httptest.ResponseRecorder) map[string]interface{} {
		var body map[string]map[string]interface{}
		Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
		return body["error"]
	}

	Context("as an admin", func() {
		BeforeEach(func() {
			router = build(&internal.Principal{UserID: 1, Role: permission.RoleAdmin})
		})

		It("serves the permission structure", func() {
			rec := do(http.MethodGet, "/admin/permissions/structure", nil)
			Expect(rec.Code).To(Equal(http.StatusOK))

			var body permission.StructureResponse
			Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
			Expect(body.Sections).NotTo(BeEmpty())
		})

		It("updates a user's override", func() {
			m := roles.MatrixFor(permission.RoleUser)
			m.Set(permission.ResourceReports, permission.ActionView, true)

			rec := do(http.MethodPut, "/admin/users/4/permissions", permission.UpdateOverrideDTO{Permissions: m})
			Expect(rec.Code).To(Equal(http.StatusOK))

			rec = do(http.MethodGet, "/permissions/check?resource=reports&action=canView", nil)
			Expect(rec.Code).To(Equal(http.StatusOK))
		})

		It("answers 400 with field detail for unknown keys", func() {
			rec := do(http.MethodPut, "/admin/users/4/permissions", map[string]interface{}{
				"permissions": map[string]map[string]bool{"billing": {"canView": true}},
			})
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
			Expect(decodeError(rec)["type"]).To(Equal(string(internal.ErrorTypeValidation)))
		})

		It("answers 404 for unknown users", func() {
			rec := do(http.MethodPut, "/admin/users/99/permissions", permission.UpdateOverrideDTO{Permissions: permission.Matrix{}})
			Expect(rec.Code).To(Equal(http.StatusNotFound))
		})

		It("rejects malformed ids", func() {
			rec := do(http.MethodPut, "/admin/users/abc/permissions", permission.UpdateOverrideDTO{Permissions: permission.Matrix{}})
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Context("as a regular user", func() {
		BeforeEach(func() {
			router = build(&internal.Principal{UserID: 4, Role: permission.RoleUser})
		})

		It("is refused the admin surface with the missing capability named", func() {
			rec := do(http.MethodGet, "/admin/permissions/structure", nil)
			Expect(rec.Code).To(Equal(http.StatusForbidden))

			e := decodeError(rec)
			Expect(e["code"]).To(Equal(string(internal.ErrCodeMissingPermission)))
			details := e["details"].(map[string]interface{})
			Expect(details["resource"]).To(Equal("adminPanel"))
			Expect(details["action"]).To(Equal("canManage"))
		})

		It("is refused legacy-gated routes the role lacks", func() {
			rec := do(http.MethodGet, "/reports", nil)
			Expect(rec.Code).To(Equal(http.StatusForbidden))
		})

		It("can check its own capabilities", func() {
			rec := do(http.MethodGet, "/permissions/check?resource=requests&action=canCreate", nil)
			Expect(rec.Code).To(Equal(http.StatusOK))

			var body permission.CheckResponse
			Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
			Expect(body.Decision.Allowed).To(BeTrue())
		})
	})

	Context("without a principal", func() {
		BeforeEach(func() {
			router = build(nil)
		})

		It("answers 401", func() {
			rec := do(http.MethodGet, "/admin/permissions/structure", nil)
			Expect(rec.Code).To(Equal(http.StatusUnauthorized))
		})
	})
})
