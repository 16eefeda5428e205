// seed-dev creates a small company for local development: an admin, a project
// leader and two workers, one construction object with a project, a few work
// items and their price tiers. It prints a bearer token per user.
//
// Usage (from backend directory):
//
//	DB_DRIVER=sqlite SQLITE_PATH=shifts.db go run ./cmd/seed-dev -company dev-co
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/mmdatafocus/shifts_backend/config"
	"github.com/mmdatafocus/shifts_backend/models"
	"github.com/mmdatafocus/shifts_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type seedUser struct {
	username string
	name     string
	role     models.UserRole
	category *int
}

func intPtr(v int) *int { return &v }

func main() {
	companyId := flag.String("company", "dev-co", "company id to seed")
	flag.Parse()
	if strings.TrimSpace(*companyId) == "" {
		fmt.Fprintln(os.Stderr, "-company is required")
		os.Exit(2)
	}

	if err := config.ConnectDatabase(); err != nil {
		fmt.Fprintf(os.Stderr, "connect database: %v\n", err)
		os.Exit(1)
	}
	if err := models.MigrateTable(); err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		os.Exit(1)
	}
	db := config.GetDB()

	ctx := utils.SetCompanyIdInContext(context.Background(), *companyId)
	ctx = utils.SetUserNameInContext(ctx, "Seed")

	users := []seedUser{
		{username: "admin", name: "Dev Admin", role: models.UserRoleAdmin},
		{username: "leader", name: "Dev Leader", role: models.UserRoleProjectLeader},
		{username: "worker1", name: "Dev Worker One", role: models.UserRoleWorker, category: intPtr(1)},
		{username: "worker2", name: "Dev Worker Two", role: models.UserRoleWorker, category: intPtr(2)},
	}
	ids := map[string]int{}
	for _, su := range users {
		u, err := upsertUser(ctx, db, *companyId, su)
		if err != nil {
			fmt.Fprintf(os.Stderr, "seed user %s: %v\n", su.username, err)
			os.Exit(1)
		}
		ids[su.username] = u.ID
	}

	object := models.ConstructionObject{CompanyId: *companyId, Name: "Dev Site", Address: "1 Main St", ManagerId: ids["admin"]}
	if err := db.WithContext(ctx).Where("company_id = ? AND name = ?", *companyId, object.Name).FirstOrCreate(&object).Error; err != nil {
		fmt.Fprintf(os.Stderr, "seed object: %v\n", err)
		os.Exit(1)
	}
	project := models.Project{CompanyId: *companyId, ObjectId: object.ID, LeaderId: ids["leader"], Name: "Dev Project"}
	if err := db.WithContext(ctx).Where("company_id = ? AND name = ?", *companyId, project.Name).FirstOrCreate(&project).Error; err != nil {
		fmt.Fprintf(os.Stderr, "seed project: %v\n", err)
		os.Exit(1)
	}

	admin := models.NewActor(*companyId, ids["admin"], models.UserRoleAdmin)
	works := []struct {
		name   string
		unit   string
		prices []string
	}{
		{name: "Bricklaying", unit: "m2", prices: []string{"10", "12", "15", "18", "20"}},
		{name: "Plastering", unit: "m2", prices: []string{"6", "7", "8", "9", "10"}},
		{name: "Rebar tying", unit: "t", prices: []string{"80", "90", "100", "110", "120"}},
	}
	for _, w := range works {
		item := models.WorkItem{CompanyId: *companyId, Name: w.name, Unit: w.unit}
		if err := db.WithContext(ctx).Where("company_id = ? AND name = ?", *companyId, item.Name).FirstOrCreate(&item).Error; err != nil {
			fmt.Fprintf(os.Stderr, "seed work item %s: %v\n", w.name, err)
			os.Exit(1)
		}
		for category, p := range w.prices {
			input := models.NewPriceTier{WorkId: item.ID, Category: category, Price: decimal.RequireFromString(p)}
			if _, err := models.SetPriceTier(ctx, &input, admin); err != nil {
				fmt.Fprintf(os.Stderr, "seed price tier %s/%d: %v\n", w.name, category, err)
				os.Exit(1)
			}
		}
	}

	fmt.Printf("Seeded company %q (object=%d project=%d)\n", *companyId, object.ID, project.ID)
	for _, su := range users {
		token, err := utils.JwtGenerate(ids[su.username], string(su.role), *companyId, su.name)
		if err != nil {
			fmt.Fprintf(os.Stderr, "token for %s: %v\n", su.username, err)
			os.Exit(1)
		}
		fmt.Printf("%-8s id=%d role=%s token=%s\n", su.username, ids[su.username], su.role, token)
	}
}

func upsertUser(ctx context.Context, db *gorm.DB, companyId string, su seedUser) (*models.User, error) {
	var existing models.User
	err := db.WithContext(ctx).Where("company_id = ? AND username = ?", companyId, su.username).First(&existing).Error
	if err == nil {
		if err := db.WithContext(ctx).Model(&models.User{ID: existing.ID}).Updates(map[string]any{
			"name":         su.name,
			"role":         su.role,
			"pay_category": su.category,
			"is_active":    true,
		}).Error; err != nil {
			return nil, err
		}
		return &existing, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}
	u := models.User{
		CompanyId:   companyId,
		Username:    su.username,
		Name:        su.name,
		Role:        su.role,
		PayCategory: su.category,
		IsActive:    true,
	}
	if err := db.WithContext(ctx).Create(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}
