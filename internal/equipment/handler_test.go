package equipment_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/frahmantamala/equipment-approvals/internal"
	equipmentDatamodel "github.com/frahmantamala/equipment-approvals/internal/core/datamodel/equipment"
	"github.com/frahmantamala/equipment-approvals/internal/equipment"
	equipmentPostgres "github.com/frahmantamala/equipment-approvals/internal/equipment/postgres"
	"github.com/frahmantamala/equipment-approvals/internal/transport"
	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var _ = Describe("Equipment Handler Integration", func() {
	var (
		db      *gorm.DB
		repo    *equipmentPostgres.EquipmentRepository
		handler *equipment.Handler
		router  chi.Router
	)

	BeforeEach(func() {
		var err error
		slogger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		Expect(err).NotTo(HaveOccurred())
		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		sqlDB.SetMaxOpenConns(1)

		err = db.AutoMigrate(&equipmentDatamodel.Category{}, &equipmentDatamodel.Equipment{}, &equipmentDatamodel.Warehouse{})
		Expect(err).NotTo(HaveOccurred())

		repo = equipmentPostgres.NewEquipmentRepository(db, 5*time.Second)
		service := equipment.NewService(repo, slogger)
		handler = equipment.NewHandler(&transport.BaseHandler{Logger: slogger}, service)

		Expect(db.Create(&equipmentDatamodel.Category{Name: "Helmets", IsActive: true}).Error).To(Succeed())
		Expect(db.Create(&equipmentDatamodel.Category{Name: "Retired", IsActive: false}).Error).To(Succeed())

		ctx := context.Background()
		Expect(repo.CreateEquipment(ctx, &equipment.Equipment{Code: "HLM-01", Name: "Hard hat", Stock: 5, IsActive: true})).To(Succeed())
		Expect(repo.CreateEquipment(ctx, &equipment.Equipment{Code: "OLD-01", Name: "Asbestos suit", Stock: 0, IsActive: false})).To(Succeed())
		Expect(repo.CreateWarehouse(ctx, &equipment.Warehouse{Name: "Central", Location: "HQ", IsActive: true})).To(Succeed())

		router = chi.NewRouter()
		router.Get("/categories", handler.GetCategories)
		router.Get("/equipment", handler.GetEquipmentList)
		router.Post("/equipment", handler.CreateEquipment)
		router.Get("/equipment/{id}", handler.GetEquipment)
		router.Patch("/equipment/{id}", handler.UpdateEquipment)
		router.Delete("/equipment/{id}", handler.DeleteEquipment)
		router.Get("/warehouses", handler.GetWarehouses)
		router.Post("/warehouses", handler.CreateWarehouse)
		router.Get("/warehouses/{id}", handler.GetWarehouse)
		router.Patch("/warehouses/{id}", handler.UpdateWarehouse)
		router.Delete("/warehouses/{id}", handler.DeleteWarehouse)
	})

	serve := func(method, path, body string) *httptest.ResponseRecorder {
		var req *http.Request
		if body == "" {
			req = httptest.NewRequest(method, path, nil)
		} else {
			req = httptest.NewRequest(method, path, strings.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	errorCode := func(w *httptest.ResponseRecorder) string {
		var body struct {
			Error struct {
				Code string `json:"code"`
			} `json:"error"`
		}
		Expect(json.NewDecoder(w.Body).Decode(&body)).To(Succeed())
		return body.Error.Code
	}

	It("lists only active categories", func() {
		w := serve(http.MethodGet, "/categories", "")
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Header().Get("Content-Type")).To(ContainSubstring("application/json"))

		var response equipment.CategoriesResponse
		Expect(json.NewDecoder(w.Body).Decode(&response)).To(Succeed())
		Expect(response.Categories).To(HaveLen(1))
		Expect(response.Categories[0].Name).To(Equal("Helmets"))
	})

	It("lists active equipment unless inactive rows are requested", func() {
		w := serve(http.MethodGet, "/equipment", "")
		Expect(w.Code).To(Equal(http.StatusOK))
		var response equipment.EquipmentListResponse
		Expect(json.NewDecoder(w.Body).Decode(&response)).To(Succeed())
		Expect(response.Equipment).To(HaveLen(1))
		Expect(response.Equipment[0].Code).To(Equal("HLM-01"))

		w = serve(http.MethodGet, "/equipment?include_inactive=true", "")
		Expect(json.NewDecoder(w.Body).Decode(&response)).To(Succeed())
		Expect(response.Equipment).To(HaveLen(2))
	})

	It("creates equipment and reports duplicate codes", func() {
		w := serve(http.MethodPost, "/equipment", `{"code":"GLV-01","name":"Gloves","stock":20}`)
		Expect(w.Code).To(Equal(http.StatusCreated))
		var created equipment.Equipment
		Expect(json.NewDecoder(w.Body).Decode(&created)).To(Succeed())
		Expect(created.ID).To(BeNumerically(">", 0))
		Expect(created.IsActive).To(BeTrue())

		w = serve(http.MethodPost, "/equipment", `{"code":"GLV-01","name":"Other gloves"}`)
		Expect(w.Code).To(Equal(http.StatusConflict))
		Expect(errorCode(w)).To(Equal(string(internal.ErrCodeDuplicate)))
	})

	It("rejects unknown body fields", func() {
		w := serve(http.MethodPost, "/equipment", `{"code":"A","name":"B","colour":"red"}`)
		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})

	It("patches stock and returns 404 for unknown ids", func() {
		items, err := repo.ListEquipment(context.Background(), false)
		Expect(err).NotTo(HaveOccurred())
		id := items[0].ID

		w := serve(http.MethodPatch, "/equipment/"+itoa(id), `{"stock":42}`)
		Expect(w.Code).To(Equal(http.StatusOK))
		var updated equipment.Equipment
		Expect(json.NewDecoder(w.Body).Decode(&updated)).To(Succeed())
		Expect(updated.Stock).To(Equal(42))

		w = serve(http.MethodPatch, "/equipment/999", `{"stock":1}`)
		Expect(w.Code).To(Equal(http.StatusNotFound))

		w = serve(http.MethodGet, "/equipment/abc", "")
		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})

	It("deactivates equipment with 204", func() {
		items, err := repo.ListEquipment(context.Background(), false)
		Expect(err).NotTo(HaveOccurred())

		w := serve(http.MethodDelete, "/equipment/"+itoa(items[0].ID), "")
		Expect(w.Code).To(Equal(http.StatusNoContent))

		remaining, err := repo.ListEquipment(context.Background(), false)
		Expect(err).NotTo(HaveOccurred())
		Expect(remaining).To(BeEmpty())
	})

	It("fetches equipment by ids regardless of active flag", func() {
		all, err := repo.ListEquipment(context.Background(), true)
		Expect(err).NotTo(HaveOccurred())
		ids := []int64{all[0].ID, all[1].ID, 999}

		found, err := repo.GetEquipmentByIDs(context.Background(), ids)
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(HaveLen(2))
	})

	It("manages warehouses", func() {
		w := serve(http.MethodPost, "/warehouses", `{"name":"East","location":"Gate 2"}`)
		Expect(w.Code).To(Equal(http.StatusCreated))
		var created equipment.Warehouse
		Expect(json.NewDecoder(w.Body).Decode(&created)).To(Succeed())

		w = serve(http.MethodGet, "/warehouses", "")
		Expect(w.Code).To(Equal(http.StatusOK))
		var list equipment.WarehousesResponse
		Expect(json.NewDecoder(w.Body).Decode(&list)).To(Succeed())
		Expect(list.Warehouses).To(HaveLen(2))

		w = serve(http.MethodPatch, "/warehouses/"+itoa(created.ID), `{"name":"East Annex"}`)
		Expect(w.Code).To(Equal(http.StatusOK))
		var patched equipment.Warehouse
		Expect(json.NewDecoder(w.Body).Decode(&patched)).To(Succeed())
		Expect(patched.Name).To(Equal("East Annex"))
		Expect(patched.Location).To(Equal("Gate 2"))

		w = serve(http.MethodPatch, "/warehouses/12345", `{"name":"Nowhere"}`)
		Expect(w.Code).To(Equal(http.StatusNotFound))

		w = serve(http.MethodDelete, "/warehouses/"+itoa(created.ID), "")
		Expect(w.Code).To(Equal(http.StatusNoContent))

		w = serve(http.MethodGet, "/warehouses/"+itoa(created.ID), "")
		Expect(w.Code).To(Equal(http.StatusOK))
		var got equipment.Warehouse
		Expect(json.NewDecoder(w.Body).Decode(&got)).To(Succeed())
		Expect(got.IsActive).To(BeFalse())

		w = serve(http.MethodGet, "/warehouses/12345", "")
		Expect(w.Code).To(Equal(http.StatusNotFound))
		Expect(errorCode(w)).To(Equal(string(internal.ErrCodeNotFound)))
	})
})

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
