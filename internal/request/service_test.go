package request_test

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/frahmantamala/equipment-approvals/internal"
	"github.com/frahmantamala/equipment-approvals/internal/core/events"
	"github.com/frahmantamala/equipment-approvals/internal/request"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Request Service", func() {
	var (
		f   *fixture
		ctx context.Context
	)

	BeforeEach(func() {
		f = newFixture(request.DefaultPolicy())
		ctx = context.Background()
	})

	pendingFor := func(employeeID, approverID int64) *request.Request {
		approver := approverID
		r := &request.Request{
			Code:        100 + employeeID,
			Reason:      request.ReasonReplacement,
			Status:      request.StatusPending,
			WarehouseID: centralID,
			EmployeeID:  employeeID,
			ApproverID:  &approver,
			Items:       []request.LineItem{{EquipmentID: helmetID, Quantity: 1}},
		}
		f.repo.set(r)
		return r
	}

	Describe("Create", func() {
		It("stores a pending request routed to the first approver", func() {
			// Given an employee whose approvers are Ana then Bo
			// When they create a request
			r, err := f.service.Create(ctx, eveID, validCreate())

			// Then it is pending, coded, and assigned to Ana
			Expect(err).NotTo(HaveOccurred())
			Expect(r.Status).To(Equal(request.StatusPending))
			Expect(r.Code).To(Equal(int64(1)))
			Expect(r.ApproverID).NotTo(BeNil())
			Expect(*r.ApproverID).To(Equal(anaID))
			Expect(r.StockAvailable).To(BeTrue())
			Expect(r.CreatedAt).To(Equal(fixedNow))
			Expect(f.bus.types()).To(ConsistOf(events.EventTypeRequestCreated))
		})

		It("skips disabled approvers", func() {
			r, err := f.service.Create(ctx, halID, validCreate())
			Expect(err).NotTo(HaveOccurred())
			Expect(*r.ApproverID).To(Equal(anaID))
		})

		It("flags the stock hint when a quantity exceeds stock", func() {
			dto := validCreate()
			dto.Items[0].Quantity = 6

			r, err := f.service.Create(ctx, eveID, dto)
			Expect(err).NotTo(HaveOccurred())
			Expect(r.StockAvailable).To(BeFalse())
		})

		It("keeps the approver fixed when the employee's list changes later", func() {
			r, err := f.service.Create(ctx, eveID, validCreate())
			Expect(err).NotTo(HaveOccurred())

			f.directory.users[eveID].Approvers = []int64{boID}

			stored, err := f.service.Get(ctx, r.ID, eveID)
			Expect(err).NotTo(HaveOccurred())
			Expect(*stored.ApproverID).To(Equal(anaID))
		})

		DescribeTable("rejects invalid payloads field by field",
			func(mutate func(*request.CreateRequestDTO), field string, code internal.ErrorCode) {
				dto := validCreate()
				mutate(&dto)

				_, err := f.service.Create(ctx, eveID, dto)
				appErr := expectAppError(err, internal.ErrorTypeValidation, internal.ErrCodeValidationFailed)
				details := appErr.Details.(internal.ValidationErrors)
				Expect(details.Errors).To(ContainElement(And(
					HaveField("Field", field),
					HaveField("Code", string(code)),
				)))
			},
			Entry("unknown reason", func(d *request.CreateRequestDTO) { d.Reason = "boredom" }, "reason", internal.ErrCodeInvalidReason),
			Entry("no items", func(d *request.CreateRequestDTO) { d.Items = nil }, "items", internal.ErrCodeValidationFailed),
			Entry("zero quantity", func(d *request.CreateRequestDTO) { d.Items[1].Quantity = 0 }, "items[1].quantity", internal.ErrCodeInvalidQuantity),
			Entry("duplicate equipment", func(d *request.CreateRequestDTO) { d.Items[1].EquipmentID = helmetID }, "items[1].equipment_id", internal.ErrCodeValidationFailed),
			Entry("unknown warehouse", func(d *request.CreateRequestDTO) { d.WarehouseID = 999 }, "warehouse_id", internal.ErrCodeInvalidReference),
			Entry("closed warehouse", func(d *request.CreateRequestDTO) { d.WarehouseID = closedID }, "warehouse_id", internal.ErrCodeInvalidReference),
			Entry("unknown equipment", func(d *request.CreateRequestDTO) { d.Items[0].EquipmentID = 404 }, "items[0].equipment_id", internal.ErrCodeInvalidReference),
			Entry("retired equipment", func(d *request.CreateRequestDTO) { d.Items[0].EquipmentID = retiredItemID }, "items[0].equipment_id", internal.ErrCodeInvalidReference),
		)

		It("hands out distinct codes to concurrent creators", func() {
			const n = 25
			codes := make(chan int64, n)
			var wg sync.WaitGroup
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					r, err := f.service.Create(ctx, eveID, validCreate())
					Expect(err).NotTo(HaveOccurred())
					codes <- r.Code
				}()
			}
			wg.Wait()
			close(codes)

			seen := map[int64]bool{}
			for c := range codes {
				Expect(seen).NotTo(HaveKey(c))
				seen[c] = true
			}
			Expect(seen).To(HaveLen(n))
		})

		It("surfaces store failures untouched", func() {
			f.repo.failError = internal.NewStoreUnavailableError(errors.New("connection reset"))
			_, err := f.service.Create(ctx, eveID, validCreate())
			appErr := expectAppError(err, internal.ErrorTypeStoreUnavailable, internal.ErrCodeStoreUnavailable)
			Expect(appErr.Retryable()).To(BeTrue())
		})
	})

	Describe("missing approver policy", func() {
		It("refuses creation by default", func() {
			_, err := f.service.Create(ctx, finnID, validCreate())
			appErr := expectAppError(err, internal.ErrorTypeValidation, internal.ErrCodeValidationFailed)
			details := appErr.Details.(internal.ValidationErrors)
			Expect(details.Errors[0].Code).To(Equal(string(internal.ErrCodeNoApprover)))
			Expect(f.bus.types()).To(BeEmpty())
		})

		It("falls back to the first enabled admin", func() {
			f = newFixture(request.Policy{MissingApprover: request.MissingApproverFallbackAdmin})
			r, err := f.service.Create(ctx, finnID, validCreate())
			Expect(err).NotTo(HaveOccurred())
			Expect(*r.ApproverID).To(Equal(adminID))
		})

		It("refuses when no admin is enabled either", func() {
			f = newFixture(request.Policy{MissingApprover: request.MissingApproverFallbackAdmin})
			f.directory.users[adminID].Disabled = true
			_, err := f.service.Create(ctx, finnID, validCreate())
			Expect(internal.IsErrorType(err, internal.ErrorTypeValidation)).To(BeTrue())
		})

		It("stores the request without approver when allowed", func() {
			f = newFixture(request.Policy{MissingApprover: request.MissingApproverAllow})
			r, err := f.service.Create(ctx, finnID, validCreate())
			Expect(err).NotTo(HaveOccurred())
			Expect(r.ApproverID).To(BeNil())

			_, err = f.service.Approve(ctx, r.ID, adminID)
			expectAppError(err, internal.ErrorTypeForbidden, internal.ErrCodeNotRequestApprover)
		})
	})

	Describe("owner-only edit window", func() {
		statuses := []request.Status{request.StatusPending, request.StatusApproved, request.StatusRejected, request.StatusDelivered}

		for _, status := range statuses {
			status := status
			for _, owner := range []bool{true, false} {
				owner := owner

				It(fmt.Sprintf("edit by owner=%v on %s", owner, status), func() {
					r := pendingFor(eveID, anaID)
					r.Status = status
					f.repo.set(r)

					actor := eveID
					if !owner {
						actor = gusID
					}
					observation := "size L"
					updated, err := f.service.Edit(ctx, r.ID, actor, request.EditRequestDTO{Observation: &observation})

					switch {
					case owner && status == request.StatusPending:
						Expect(err).NotTo(HaveOccurred())
						Expect(updated.Observation).To(Equal("size L"))
					case !owner:
						expectAppError(err, internal.ErrorTypeForbidden, internal.ErrCodeNotRequestOwner)
					default:
						appErr := expectAppError(err, internal.ErrorTypeInvalidStateTransition, internal.ErrCodeInvalidTransition)
						Expect(appErr.Details).To(Equal(internal.TransitionDetails{From: string(status), Attempted: "edited"}))
					}
				})

				It(fmt.Sprintf("delete by owner=%v on %s", owner, status), func() {
					r := pendingFor(eveID, anaID)
					r.Status = status
					f.repo.set(r)

					actor := eveID
					if !owner {
						actor = anaID
					}
					err := f.service.Delete(ctx, r.ID, actor)

					switch {
					case owner && status == request.StatusPending:
						Expect(err).NotTo(HaveOccurred())
						_, err = f.repo.GetByID(ctx, r.ID)
						Expect(internal.IsErrorType(err, internal.ErrorTypeNotFound)).To(BeTrue())
						Expect(f.bus.types()).To(ConsistOf(events.EventTypeRequestDeleted))
					case !owner:
						expectAppError(err, internal.ErrorTypeForbidden, internal.ErrCodeNotRequestOwner)
					default:
						expectAppError(err, internal.ErrorTypeInvalidStateTransition, internal.ErrCodeInvalidTransition)
					}
				})
			}
		}

		It("replaces line items and recomputes the stock hint", func() {
			r := pendingFor(eveID, anaID)
			updated, err := f.service.Edit(ctx, r.ID, eveID, request.EditRequestDTO{
				Items: []request.LineItemDTO{{EquipmentID: glovesID, Quantity: 500}},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(updated.Items).To(Equal([]request.LineItem{{EquipmentID: glovesID, Quantity: 500}}))
			Expect(updated.StockAvailable).To(BeFalse())
		})

		It("rejects an explicitly empty item list", func() {
			r := pendingFor(eveID, anaID)
			_, err := f.service.Edit(ctx, r.ID, eveID, request.EditRequestDTO{Items: []request.LineItemDTO{}})
			Expect(internal.IsErrorType(err, internal.ErrorTypeValidation)).To(BeTrue())
		})

		It("returns NotFound for a missing request", func() {
			err := f.service.Delete(ctx, 4040, eveID)
			expectAppError(err, internal.ErrorTypeNotFound, internal.ErrCodeNotFound)
		})
	})

	Describe("Approve and Reject", func() {
		It("lets the assigned approver approve exactly once", func() {
			// Given a pending request assigned to Ana
			r := pendingFor(eveID, anaID)

			// When Ana approves it
			approved, err := f.service.Approve(ctx, r.ID, anaID)

			// Then it is approved and stamped
			Expect(err).NotTo(HaveOccurred())
			Expect(approved.Status).To(Equal(request.StatusApproved))
			Expect(approved.ApprovedAt).NotTo(BeNil())
			Expect(*approved.ApprovedAt).To(Equal(fixedNow))

			// And a second approval reports the current status
			_, err = f.service.Approve(ctx, r.ID, anaID)
			appErr := expectAppError(err, internal.ErrorTypeInvalidStateTransition, internal.ErrCodeInvalidTransition)
			Expect(appErr.Details).To(Equal(internal.TransitionDetails{
				From:      string(request.StatusApproved),
				Attempted: string(request.StatusApproved),
			}))
			Expect(f.bus.types()).To(ConsistOf(events.EventTypeRequestApproved))
		})

		It("refuses other approvers even from the same team", func() {
			r := pendingFor(eveID, anaID)
			_, err := f.service.Approve(ctx, r.ID, boID)
			expectAppError(err, internal.ErrorTypeForbidden, internal.ErrCodeNotRequestApprover)

			_, err = f.service.Reject(ctx, r.ID, eveID, request.RejectRequestDTO{})
			expectAppError(err, internal.ErrorTypeForbidden, internal.ErrCodeNotRequestApprover)
		})

		It("overwrites the observation only when a note is given", func() {
			r := pendingFor(eveID, anaID)
			r.Observation = "original"
			f.repo.set(r)

			note := "use the spare stock"
			rejected, err := f.service.Reject(ctx, r.ID, anaID, request.RejectRequestDTO{Observation: &note})
			Expect(err).NotTo(HaveOccurred())
			Expect(rejected.Status).To(Equal(request.StatusRejected))
			Expect(rejected.Observation).To(Equal(note))
			Expect(rejected.RejectedAt).NotTo(BeNil())

			other := pendingFor(gusID, boID)
			other.Observation = "keep me"
			f.repo.set(other)
			rejected, err = f.service.Reject(ctx, other.ID, boID, request.RejectRequestDTO{})
			Expect(err).NotTo(HaveOccurred())
			Expect(rejected.Observation).To(Equal("keep me"))
		})

		It("never moves a rejected request", func() {
			r := pendingFor(eveID, anaID)
			_, err := f.service.Reject(ctx, r.ID, anaID, request.RejectRequestDTO{})
			Expect(err).NotTo(HaveOccurred())

			_, err = f.service.Approve(ctx, r.ID, anaID)
			expectAppError(err, internal.ErrorTypeInvalidStateTransition, internal.ErrCodeInvalidTransition)
		})

		It("resolves a concurrent approve and reject to exactly one winner", func() {
			for round := 0; round < 20; round++ {
				r := pendingFor(eveID, anaID)

				var wg sync.WaitGroup
				results := make([]error, 2)
				start := make(chan struct{})
				wg.Add(2)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					<-start
					_, results[0] = f.service.Approve(ctx, r.ID, anaID)
				}()
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					<-start
					_, results[1] = f.service.Reject(ctx, r.ID, anaID, request.RejectRequestDTO{})
				}()
				close(start)
				wg.Wait()

				successes := 0
				for _, err := range results {
					if err == nil {
						successes++
						continue
					}
					Expect(internal.IsErrorType(err, internal.ErrorTypeInvalidStateTransition)).To(BeTrue())
				}
				Expect(successes).To(Equal(1))

				final, err := f.repo.GetByID(ctx, r.ID)
				Expect(err).NotTo(HaveOccurred())
				if results[0] == nil {
					Expect(final.Status).To(Equal(request.StatusApproved))
				} else {
					Expect(final.Status).To(Equal(request.StatusRejected))
				}
			}
		})
	})

	Describe("Deliver", func() {
		It("requires the deliver capability", func() {
			r := pendingFor(eveID, anaID)
			_, err := f.service.Approve(ctx, r.ID, anaID)
			Expect(err).NotTo(HaveOccurred())

			_, err = f.service.Deliver(ctx, r.ID, anaID)
			appErr := expectAppError(err, internal.ErrorTypeForbidden, internal.ErrCodeMissingPermission)
			Expect(appErr.Details).To(HaveField("Action", "canDeliver"))
		})

		It("moves approved requests to delivered once", func() {
			r := pendingFor(eveID, anaID)
			_, err := f.service.Deliver(ctx, r.ID, storekeeperID)
			expectAppError(err, internal.ErrorTypeInvalidStateTransition, internal.ErrCodeInvalidTransition)

			_, err = f.service.Approve(ctx, r.ID, anaID)
			Expect(err).NotTo(HaveOccurred())

			delivered, err := f.service.Deliver(ctx, r.ID, storekeeperID)
			Expect(err).NotTo(HaveOccurred())
			Expect(delivered.Status).To(Equal(request.StatusDelivered))
			Expect(delivered.DeliveredAt).NotTo(BeNil())

			_, err = f.service.Deliver(ctx, r.ID, storekeeperID)
			expectAppError(err, internal.ErrorTypeInvalidStateTransition, internal.ErrCodeInvalidTransition)
			Expect(f.bus.types()).To(ConsistOf(events.EventTypeRequestApproved, events.EventTypeRequestDelivered))
		})
	})

	Describe("Get", func() {
		var r *request.Request

		BeforeEach(func() {
			r = pendingFor(eveID, anaID)
		})

		DescribeTable("visibility",
			func(actor int64, visible bool) {
				got, err := f.service.Get(ctx, r.ID, actor)
				if visible {
					Expect(err).NotTo(HaveOccurred())
					Expect(got.ID).To(Equal(r.ID))
					return
				}
				expectAppError(err, internal.ErrorTypeNotFound, internal.ErrCodeNotFound)
			},
			Entry("owner", eveID, true),
			Entry("assigned approver", anaID, true),
			Entry("another approver of the owner", boID, true),
			Entry("holder of canViewAll", adminID, true),
			Entry("unrelated user", gusID, false),
			Entry("delivery staff without canViewAll", storekeeperID, false),
		)

		It("reports a failed permission lookup as retryable", func() {
			f.authz.failed[gusID] = true
			_, err := f.service.Get(ctx, r.ID, gusID)
			expectAppError(err, internal.ErrorTypeStoreUnavailable, internal.ErrCodeStoreUnavailable)
		})
	})

	Describe("listings", func() {
		BeforeEach(func() {
			pendingFor(eveID, anaID)
			pendingFor(gusID, boID)
			approved := pendingFor(halID, anaID)
			approved.Status = request.StatusApproved
			f.repo.set(approved)
		})

		It("scopes mine to the employee", func() {
			reqs, total, err := f.service.ListMine(ctx, gusID, request.Filter{})
			Expect(err).NotTo(HaveOccurred())
			Expect(total).To(Equal(int64(1)))
			Expect(reqs[0].EmployeeID).To(Equal(gusID))
		})

		It("scopes team to the assigned approver and honours the status filter", func() {
			reqs, total, err := f.service.ListTeam(ctx, anaID, request.Filter{})
			Expect(err).NotTo(HaveOccurred())
			Expect(total).To(Equal(int64(2)))

			pending := request.StatusPending
			reqs, _, err = f.service.ListTeam(ctx, anaID, request.Filter{Status: &pending})
			Expect(err).NotTo(HaveOccurred())
			Expect(reqs).To(HaveLen(1))
			Expect(reqs[0].EmployeeID).To(Equal(eveID))
		})

		It("ignores caller supplied scoping", func() {
			other := gusID
			reqs, _, err := f.service.ListMine(ctx, eveID, request.Filter{EmployeeID: &other})
			Expect(err).NotTo(HaveOccurred())
			Expect(reqs).To(HaveLen(1))
			Expect(reqs[0].EmployeeID).To(Equal(eveID))
		})

		It("lists everything only for canViewAll", func() {
			reqs, total, err := f.service.ListAll(ctx, adminID, request.Filter{})
			Expect(err).NotTo(HaveOccurred())
			Expect(total).To(Equal(int64(3)))
			Expect(reqs).To(HaveLen(3))

			_, _, err = f.service.ListAll(ctx, eveID, request.Filter{})
			expectAppError(err, internal.ErrorTypeForbidden, internal.ErrCodeMissingPermission)
		})
	})

	Describe("Expand", func() {
		It("resolves every reference for display", func() {
			r, err := f.service.Create(ctx, eveID, validCreate())
			Expect(err).NotTo(HaveOccurred())

			resp, err := f.service.ExpandOne(ctx, r)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Employee.Name).To(Equal("Eve"))
			Expect(resp.Approver).NotTo(BeNil())
			Expect(resp.Approver.Name).To(Equal("Ana"))
			Expect(resp.Warehouse.Name).To(Equal("Central"))
			Expect(resp.Items).To(HaveLen(2))
			Expect(resp.Items[0].Equipment.Code).To(Equal("HLM"))
			Expect(resp.Items[1].Quantity).To(Equal(2))
		})

		It("falls back to bare ids for vanished references", func() {
			r := pendingFor(eveID, anaID)
			delete(f.directory.users, anaID)
			delete(f.inventory.items, helmetID)

			resp, err := f.service.ExpandOne(ctx, r)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Approver.ID).To(Equal(anaID))
			Expect(resp.Approver.Name).To(BeEmpty())
			Expect(resp.Items[0].Equipment.ID).To(Equal(helmetID))
		})
	})
})
