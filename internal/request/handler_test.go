package request_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"

	"github.com/frahmantamala/equipment-approvals/internal"
	"github.com/frahmantamala/equipment-approvals/internal/permission"
	"github.com/frahmantamala/equipment-approvals/internal/request"
	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Request Handler", func() {
	var (
		f      *fixture
		router http.Handler
	)

	BeforeEach(func() {
		f = newFixture(request.DefaultPolicy())
		h := request.NewHandler(f.service)

		r := chi.NewRouter()
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				if raw := req.Header.Get("X-Test-User"); raw != "" {
					id, _ := strconv.ParseInt(raw, 10, 64)
					p := &internal.Principal{UserID: id, Role: permission.RoleUser}
					req = req.WithContext(internal.ContextWithPrincipal(req.Context(), p))
				}
				next.ServeHTTP(w, req)
			})
		})
		r.Post("/requests", h.CreateRequest)
		r.Get("/requests", h.ListAll)
		r.Get("/requests/mine", h.ListMine)
		r.Get("/requests/team", h.ListTeam)
		r.Get("/requests/{id}", h.GetRequest)
		r.Put("/requests/{id}", h.EditRequest)
		r.Delete("/requests/{id}", h.DeleteRequest)
		r.Post("/requests/{id}/approve", h.ApproveRequest)
		r.Post("/requests/{id}/reject", h.RejectRequest)
		r.Post("/requests/{id}/deliver", h.DeliverRequest)
		router = r
	})

	do := func(method, path string, actor int64, body interface{}) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		if body != nil {
			Expect(json.NewEncoder(&buf).Encode(body)).To(Succeed())
		}
		req := httptest.NewRequest(method, path, &buf)
		if actor != 0 {
			req.Header.Set("X-Test-User", strconv.FormatInt(actor, 10))
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	decodeError := func(rec *httptest.ResponseRecorder) map[string]interface{} {
		var body map[string]map[string]interface{}
		Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
		return body["error"]
	}

	create := func() request.Response {
		rec := do(http.MethodPost, "/requests", eveID, validCreate())
		Expect(rec.Code).To(Equal(http.StatusCreated))
		var resp request.Response
		Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
		return resp
	}

	It("creates a request and returns it expanded", func() {
		resp := create()
		Expect(resp.Code).To(Equal(int64(1)))
		Expect(resp.Status).To(Equal(request.StatusPending))
		Expect(resp.Employee.Name).To(Equal("Eve"))
		Expect(resp.Approver.Name).To(Equal("Ana"))
		Expect(resp.Warehouse.Name).To(Equal("Central"))
	})

	It("requires a principal", func() {
		rec := do(http.MethodPost, "/requests", 0, validCreate())
		Expect(rec.Code).To(Equal(http.StatusUnauthorized))
	})

	It("returns field-scoped validation errors", func() {
		dto := validCreate()
		dto.Items = nil
		rec := do(http.MethodPost, "/requests", eveID, dto)
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
		details := decodeError(rec)["details"].(map[string]interface{})
		errs := details["errors"].([]interface{})
		Expect(errs[0].(map[string]interface{})["field"]).To(Equal("items"))
	})

	It("runs the approval scenario end to end", func() {
		resp := create()
		path := "/requests/" + strconv.FormatInt(resp.ID, 10)

		rec := do(http.MethodPost, path+"/approve", anaID, nil)
		Expect(rec.Code).To(Equal(http.StatusOK))
		var approved request.Response
		Expect(json.Unmarshal(rec.Body.Bytes(), &approved)).To(Succeed())
		Expect(approved.Status).To(Equal(request.StatusApproved))
		Expect(approved.ApprovedAt).NotTo(BeNil())

		rec = do(http.MethodPost, path+"/approve", anaID, nil)
		Expect(rec.Code).To(Equal(http.StatusConflict))
		body := decodeError(rec)
		Expect(body["code"]).To(Equal(string(internal.ErrCodeInvalidTransition)))
		Expect(body["details"]).To(HaveKeyWithValue("from", "approved"))

		rec = do(http.MethodPut, path, eveID, map[string]interface{}{"observation": "too late"})
		Expect(rec.Code).To(Equal(http.StatusConflict))
	})

	It("rejects with an optional note and an empty body", func() {
		first := create()
		rec := do(http.MethodPost, "/requests/"+strconv.FormatInt(first.ID, 10)+"/reject", anaID, map[string]string{"observation": "no budget"})
		Expect(rec.Code).To(Equal(http.StatusOK))
		var rejected request.Response
		Expect(json.Unmarshal(rec.Body.Bytes(), &rejected)).To(Succeed())
		Expect(rejected.Observation).To(Equal("no budget"))

		second := create()
		rec = do(http.MethodPost, "/requests/"+strconv.FormatInt(second.ID, 10)+"/reject", anaID, nil)
		Expect(rec.Code).To(Equal(http.StatusOK))
	})

	It("tells a non-approver which rule failed", func() {
		resp := create()
		rec := do(http.MethodPost, "/requests/"+strconv.FormatInt(resp.ID, 10)+"/approve", gusID, nil)
		Expect(rec.Code).To(Equal(http.StatusForbidden))
		Expect(decodeError(rec)["code"]).To(Equal(string(internal.ErrCodeNotRequestApprover)))
	})

	It("hides requests from unrelated users", func() {
		resp := create()
		rec := do(http.MethodGet, "/requests/"+strconv.FormatInt(resp.ID, 10), gusID, nil)
		Expect(rec.Code).To(Equal(http.StatusNotFound))
	})

	It("deletes pending requests for their owner", func() {
		resp := create()
		rec := do(http.MethodDelete, "/requests/"+strconv.FormatInt(resp.ID, 10), eveID, nil)
		Expect(rec.Code).To(Equal(http.StatusNoContent))
	})

	It("lists mine and team with totals", func() {
		create()
		create()

		rec := do(http.MethodGet, "/requests/mine?limit=1", eveID, nil)
		Expect(rec.Code).To(Equal(http.StatusOK))
		var list request.ListResponse
		Expect(json.Unmarshal(rec.Body.Bytes(), &list)).To(Succeed())
		Expect(list.Total).To(Equal(int64(2)))
		Expect(list.Limit).To(Equal(1))

		rec = do(http.MethodGet, "/requests/team?status=pending", anaID, nil)
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(json.Unmarshal(rec.Body.Bytes(), &list)).To(Succeed())
		Expect(list.Requests).To(HaveLen(2))
		Expect(list.Requests[0].Employee.Name).To(Equal("Eve"))

		rec = do(http.MethodGet, "/requests/team?status=shipped", anaID, nil)
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
	})

	It("rejects malformed ids", func() {
		rec := do(http.MethodGet, "/requests/abc", eveID, nil)
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
	})
})
