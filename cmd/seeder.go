package cmd

import (
	"fmt"

	"github.com/frahmantamala/equipment-approvals/internal/core/common/validation"
	equipmentDatamodel "github.com/frahmantamala/equipment-approvals/internal/core/datamodel/equipment"
	userDatamodel "github.com/frahmantamala/equipment-approvals/internal/core/datamodel/user"
	"github.com/frahmantamala/equipment-approvals/internal/permission"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const seedPassword = "password"

type seedUser struct {
	Email     string
	Name      string
	Role      string
	Approvers []string
}

var seedUsers = []seedUser{
	{Email: "admin@mail.com", Name: "Padil Admin", Role: permission.RoleAdmin},
	{Email: "ana@mail.com", Name: "Ana Approver", Role: permission.RoleApprover},
	{Email: "bo@mail.com", Name: "Bo Approver", Role: permission.RoleApprover},
	{Email: "sam@mail.com", Name: "Sam Storekeeper", Role: permission.RoleSupervisor},
	{Email: "fadhil@mail.com", Name: "Fadhil", Role: permission.RoleUser, Approvers: []string{"ana@mail.com", "bo@mail.com"}},
	{Email: "eve@mail.com", Name: "Eve", Role: permission.RoleUser, Approvers: []string{"bo@mail.com"}},
}

var seedCategories = []equipmentDatamodel.Category{
	{Name: "safety", Description: "Protective equipment", IsActive: true},
	{Name: "tools", Description: "Hand and power tools", IsActive: true},
	{Name: "it", Description: "Laptops, phones and peripherals", IsActive: true},
}

var seedEquipment = []struct {
	Code     string
	Name     string
	Category string
	Stock    int
}{
	{"HLM-001", "Safety helmet", "safety", 25},
	{"GLV-001", "Work gloves", "safety", 200},
	{"DRL-010", "Cordless drill", "tools", 4},
	{"LAP-100", "Laptop 14\"", "it", 0},
}

var seedWarehouses = []equipmentDatamodel.Warehouse{
	{Name: "Central", Location: "Jakarta", IsActive: true},
	{Name: "North", Location: "Medan", IsActive: true},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed the database with sample data for development and testing purposes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := initializeDependencies()
		if err != nil {
			return err
		}
		defer deps.Close()

		ctx := cmd.Context()
		db := deps.Gorm.WithContext(ctx)

		if clearData {
			if err := clearSeedData(db); err != nil {
				return err
			}
			deps.Logger.Info("cleared existing data")
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(seedPassword), deps.Config.Security.BCryptCost)
		if err != nil {
			return fmt.Errorf("failed to hash seed password: %w", err)
		}

		if err := seedUserRows(db, string(hash)); err != nil {
			return err
		}
		if err := seedReferenceData(db); err != nil {
			return err
		}

		result, err := deps.Resolver.MaterializeAll(ctx, 0)
		if err != nil {
			return fmt.Errorf("failed to seed permission overrides: %w", err)
		}

		deps.Logger.Info("seed finished",
			"users", len(seedUsers),
			"overrides_created", result.Created,
			"password", seedPassword)
		return nil
	},
}

func clearSeedData(db *gorm.DB) error {
	for _, table := range []string{
		"request_items", "requests", "sequences", "permission_overrides", "login_attempts",
		"user_approvers", "users", "equipment", "equipment_categories", "warehouses",
	} {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	return db.Exec("INSERT INTO sequences (name, value) VALUES ('request_code', 0)").Error
}

func seedUserRows(db *gorm.DB, hash string) error {
	ids := make(map[string]int64, len(seedUsers))

	for _, su := range seedUsers {
		email := validation.NormalizeEmail(su.Email)
		row := userDatamodel.User{Email: email, Name: su.Name, PasswordHash: hash, Role: su.Role}
		if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
			return fmt.Errorf("failed to insert user %s: %w", su.Email, err)
		}
		if err := db.Where("email = ?", email).Take(&row).Error; err != nil {
			return fmt.Errorf("failed to look up user %s: %w", su.Email, err)
		}
		ids[su.Email] = row.ID
	}

	for _, su := range seedUsers {
		for pos, approverEmail := range su.Approvers {
			link := userDatamodel.UserApprover{UserID: ids[su.Email], ApproverID: ids[approverEmail], Position: pos}
			if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&link).Error; err != nil {
				return fmt.Errorf("failed to link approver for %s: %w", su.Email, err)
			}
		}
	}
	return nil
}

func seedReferenceData(db *gorm.DB) error {
	categoryIDs := make(map[string]int64, len(seedCategories))
	for _, c := range seedCategories {
		row := c
		if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
			return fmt.Errorf("failed to insert category %s: %w", c.Name, err)
		}
		if err := db.Where("name = ?", c.Name).Take(&row).Error; err != nil {
			return fmt.Errorf("failed to look up category %s: %w", c.Name, err)
		}
		categoryIDs[c.Name] = row.ID
	}

	for _, e := range seedEquipment {
		categoryID := categoryIDs[e.Category]
		row := equipmentDatamodel.Equipment{Code: e.Code, Name: e.Name, CategoryID: &categoryID, Stock: e.Stock, IsActive: true}
		if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
			return fmt.Errorf("failed to insert equipment %s: %w", e.Code, err)
		}
	}

	for _, w := range seedWarehouses {
		row := w
		if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
			return fmt.Errorf("failed to insert warehouse %s: %w", w.Name, err)
		}
	}
	return nil
}
