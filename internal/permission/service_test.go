package permission_test

import (
	"context"
	"log/slog"
	"os"
	"sync"

	"github.com/frahmantamala/equipment-approvals/internal"
	"github.com/frahmantamala/equipment-approvals/internal/core/events"
	"github.com/frahmantamala/equipment-approvals/internal/permission"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

var _ = Describe("Service", func() {
	var (
		ctx     context.Context
		service *permission.Service
		bus     *recordingPublisher
		roles   *permission.RoleDefaults
	)

	BeforeEach(func() {
		ctx = context.Background()
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
		catalog := permission.DefaultCatalog()
		roles = permission.NewRoleDefaults(catalog, permission.DefaultGrants())
		subjects := NewMockSubjects(
			permission.Subject{UserID: 1, Role: permission.RoleAdmin},
			permission.Subject{UserID: 4, Role: permission.RoleUser},
		)
		resolver := permission.NewResolver(subjects, roles, NewMockRepository(), logger)
		bus = &recordingPublisher{}
		service = permission.NewService(resolver, catalog, bus, logger)
	})

	Describe("Structure", func() {
		It("lists every section and role", func() {
			s := service.Structure()
			Expect(s.Sections).To(HaveLen(7))
			Expect(s.Roles).To(ConsistOf(permission.RoleAdmin, permission.RoleApprover, permission.RoleSupervisor, permission.RoleUser))
		})
	})

	Describe("UpdateOverride", func() {
		It("requires a permissions document", func() {
			_, err := service.UpdateOverride(ctx, 4, permission.UpdateOverrideDTO{}, 1)
			Expect(internal.IsErrorType(err, internal.ErrorTypeValidation)).To(BeTrue())
		})

		It("rejects unknown sections without storing anything", func() {
			m := roles.MatrixFor(permission.RoleUser)
			m.Set("payroll", permission.ActionView, true)

			_, err := service.UpdateOverride(ctx, 4, permission.UpdateOverrideDTO{Permissions: m}, 1)
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(internal.ErrorTypeValidation))
			details := appErr.Details.(internal.ValidationErrors)
			Expect(details.Errors).To(HaveLen(1))
			Expect(details.Errors[0].Field).To(Equal("payroll"))
			Expect(details.Errors[0].Code).To(Equal(string(internal.ErrCodeUnknownSection)))

			Expect(service.Check(ctx, 4, permission.ResourceRequests, permission.ActionCreate).Allowed).To(BeTrue())
			Expect(bus.events).To(BeEmpty())
		})

		It("rejects unknown actions inside known sections", func() {
			m := permission.Matrix{}
			m.Set(permission.ResourceRequests, "canTeleport", true)

			_, err := service.UpdateOverride(ctx, 4, permission.UpdateOverrideDTO{Permissions: m}, 1)
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			details := appErr.Details.(internal.ValidationErrors)
			Expect(details.Errors[0].Field).To(Equal("requests.canTeleport"))
			Expect(details.Errors[0].Code).To(Equal(string(internal.ErrCodeUnknownAction)))
		})

		It("stores the matrix and publishes an event", func() {
			m := roles.MatrixFor(permission.RoleUser)
			m.Set(permission.ResourceReports, permission.ActionExport, true)

			o, err := service.UpdateOverride(ctx, 4, permission.UpdateOverrideDTO{Permissions: m, Notes: "quarterly close"}, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(o.Matrix.Allows(permission.ResourceReports, permission.ActionExport)).To(BeTrue())
			Expect(service.Check(ctx, 4, permission.ResourceReports, permission.ActionExport).Allowed).To(BeTrue())

			Expect(bus.events).To(HaveLen(1))
			Expect(bus.events[0].EventType()).To(Equal(events.EventTypeOverrideUpdated))
		})
	})

	Describe("GetOverride", func() {
		It("materializes the override for a user who has none", func() {
			o, err := service.GetOverride(ctx, 4)
			Expect(err).NotTo(HaveOccurred())
			Expect(o.Matrix).To(Equal(roles.MatrixFor(permission.RoleUser)))
		})
	})
})
