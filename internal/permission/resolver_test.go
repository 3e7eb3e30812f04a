package permission_test

import (
	"context"
	"log/slog"
	"os"
	"sync"

	"github.com/frahmantamala/equipment-approvals/internal"
	"github.com/frahmantamala/equipment-approvals/internal/permission"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Resolver", func() {
	var (
		ctx      context.Context
		catalog  *permission.Catalog
		roles    *permission.RoleDefaults
		repo     *MockRepository
		subjects *MockSubjects
		resolver *permission.Resolver
		logger   *slog.Logger
	)

	BeforeEach(func() {
		ctx = context.Background()
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
		catalog = permission.DefaultCatalog()
		roles = permission.NewRoleDefaults(catalog, permission.DefaultGrants())
		repo = NewMockRepository()
		subjects = NewMockSubjects(
			permission.Subject{UserID: 1, Role: permission.RoleAdmin},
			permission.Subject{UserID: 2, Role: permission.RoleApprover},
			permission.Subject{UserID: 3, Role: permission.RoleSupervisor},
			permission.Subject{UserID: 4, Role: permission.RoleUser},
			permission.Subject{UserID: 5, Role: permission.RoleApprover, Disabled: true},
		)
		resolver = permission.NewResolver(subjects, roles, repo, logger)
	})

	Describe("role and override agreement", func() {
		It("answers every catalog pair the same way for a freshly seeded user", func() {
			for id, role := range map[int64]string{1: permission.RoleAdmin, 2: permission.RoleApprover, 3: permission.RoleSupervisor, 4: permission.RoleUser} {
				for _, p := range catalog.Pairs() {
					Expect(resolver.Resolve(ctx, id, p.Resource, p.Action)).To(
						Equal(resolver.ResolveLegacy(role, p.Resource, p.Action)),
						"role %s pair %s", role, p)
				}
			}
		})

		It("grants admins every pair", func() {
			for _, p := range catalog.Pairs() {
				Expect(resolver.ResolveLegacy(permission.RoleAdmin, p.Resource, p.Action)).To(BeTrue(), p.String())
			}
		})

		It("denies unknown roles everything", func() {
			for _, p := range catalog.Pairs() {
				Expect(resolver.ResolveLegacy("auditor", p.Resource, p.Action)).To(BeFalse())
			}
		})
	})

	Describe("HasPermission", func() {
		It("grants what the role default grants", func() {
			d := resolver.HasPermission(ctx, 2, permission.ResourceRequests, permission.ActionApprove)
			Expect(d.Allowed).To(BeTrue())
			Expect(d.Reason).To(Equal(permission.ReasonGranted))
			Expect(d.Role).To(Equal(permission.RoleApprover))
		})

		It("denies pairs outside the catalog", func() {
			d := resolver.HasPermission(ctx, 1, "payroll", permission.ActionView)
			Expect(d.Allowed).To(BeFalse())
			Expect(d.Reason).To(Equal(permission.ReasonCapabilityNotGranted))
		})

		It("reports unknown users", func() {
			d := resolver.HasPermission(ctx, 99, permission.ResourceRequests, permission.ActionView)
			Expect(d.Allowed).To(BeFalse())
			Expect(d.Reason).To(Equal(permission.ReasonUserNotFound))
			Expect(internal.IsErrorType(d.Err(), internal.ErrorTypeForbidden)).To(BeTrue())
		})

		It("denies disabled users regardless of role", func() {
			d := resolver.HasPermission(ctx, 5, permission.ResourceRequests, permission.ActionView)
			Expect(d.Allowed).To(BeFalse())
			Expect(d.Reason).To(Equal(permission.ReasonUserDisabled))
		})

		It("fails closed when the user store is unavailable", func() {
			subjects.failError = internal.NewStoreUnavailableError(errStoreDown)
			d := resolver.HasPermission(ctx, 2, permission.ResourceRequests, permission.ActionView)
			Expect(d.Allowed).To(BeFalse())
			Expect(d.Reason).To(Equal(permission.ReasonLookupFailed))
			Expect(internal.IsErrorType(d.Err(), internal.ErrorTypeStoreUnavailable)).To(BeTrue())
		})

		It("fails closed when the override store is unavailable", func() {
			repo.failError = errStoreDown
			Expect(resolver.Resolve(ctx, 1, permission.ResourceRequests, permission.ActionView)).To(BeFalse())
		})

		It("follows the stored override once it diverges from the role", func() {
			m := roles.MatrixFor(permission.RoleUser)
			m.Set(permission.ResourceReports, permission.ActionView, true)
			m.Set(permission.ResourceRequests, permission.ActionDelete, false)
			_, err := resolver.Update(ctx, 4, m, 1, "extra reporting")
			Expect(err).NotTo(HaveOccurred())

			Expect(resolver.Resolve(ctx, 4, permission.ResourceReports, permission.ActionView)).To(BeTrue())
			Expect(resolver.Resolve(ctx, 4, permission.ResourceRequests, permission.ActionDelete)).To(BeFalse())
			Expect(resolver.ResolveLegacy(permission.RoleUser, permission.ResourceReports, permission.ActionView)).To(BeFalse())
		})
	})

	Describe("Materialize", func() {
		It("creates the override on first access only", func() {
			o, created, err := resolver.Materialize(ctx, 3)
			Expect(err).NotTo(HaveOccurred())
			Expect(created).To(BeTrue())
			Expect(o.IsActive).To(BeTrue())
			Expect(o.Notes).To(ContainSubstring(permission.RoleSupervisor))

			again, created, err := resolver.Materialize(ctx, 3)
			Expect(err).NotTo(HaveOccurred())
			Expect(created).To(BeFalse())
			Expect(again.ID).To(Equal(o.ID))
		})

		It("converges under concurrent first access", func() {
			var wg sync.WaitGroup
			for i := 0; i < 16; i++ {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					Expect(resolver.Resolve(ctx, 2, permission.ResourceRequests, permission.ActionApprove)).To(BeTrue())
				}()
			}
			wg.Wait()
			Expect(repo.inserts).To(Equal(1))
		})

		It("returns the not found error for unknown users", func() {
			_, _, err := resolver.Materialize(ctx, 99)
			Expect(internal.IsErrorType(err, internal.ErrorTypeNotFound)).To(BeTrue())
		})
	})

	Describe("MaterializeAll", func() {
		BeforeEach(func() {
			repo.users = []permission.Subject{
				{UserID: 1, Role: permission.RoleAdmin},
				{UserID: 2, Role: permission.RoleApprover},
				{UserID: 3, Role: permission.RoleSupervisor},
				{UserID: 4, Role: permission.RoleUser},
				{UserID: 5, Role: permission.RoleApprover, Disabled: true},
			}
		})

		It("seeds every user lacking an override across batches", func() {
			result, err := resolver.MaterializeAll(ctx, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Scanned).To(Equal(5))
			Expect(result.Created).To(Equal(5))
		})

		It("is idempotent", func() {
			_, err := resolver.MaterializeAll(ctx, 2)
			Expect(err).NotTo(HaveOccurred())

			result, err := resolver.MaterializeAll(ctx, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Created).To(Equal(0))
			Expect(repo.inserts).To(Equal(5))
		})

		It("leaves customized overrides untouched", func() {
			m := roles.MatrixFor(permission.RoleUser)
			m.Set(permission.ResourceSettings, permission.ActionEdit, true)
			_, err := resolver.Update(ctx, 4, m, 1, "")
			Expect(err).NotTo(HaveOccurred())

			result, err := resolver.MaterializeAll(ctx, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Created).To(Equal(4))
			Expect(resolver.Resolve(ctx, 4, permission.ResourceSettings, permission.ActionEdit)).To(BeTrue())
		})
	})

	Describe("Update", func() {
		It("rejects unknown users", func() {
			_, err := resolver.Update(ctx, 99, permission.Matrix{}, 1, "")
			Expect(internal.IsErrorType(err, internal.ErrorTypeNotFound)).To(BeTrue())
		})

		It("records who changed the override", func() {
			o, err := resolver.Update(ctx, 2, roles.MatrixFor(permission.RoleApprover), 1, "reviewed")
			Expect(err).NotTo(HaveOccurred())
			Expect(o.LastModifiedBy).NotTo(BeNil())
			Expect(*o.LastModifiedBy).To(Equal(int64(1)))
			Expect(o.Notes).To(Equal("reviewed"))
		})
	})
})
