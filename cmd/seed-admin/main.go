// seed-admin creates or updates the platform admin user and tops up its
// credit balance.
//
// Usage (from backend directory):
//   DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/seed-admin
//
// Env overrides: ADMIN_EMAIL, ADMIN_PASSWORD, ADMIN_NAME, ADMIN_CREDITS.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"bitbucket.org/mmdatafocus/ocr_backend/config"
	"bitbucket.org/mmdatafocus/ocr_backend/models"
	"bitbucket.org/mmdatafocus/ocr_backend/utils"
	"gorm.io/gorm"
)

const (
	defaultAdminEmail    = "admin@ocr-platform.local"
	defaultAdminPassword = "0cr@dminP4ss"
	defaultAdminName     = "Platform Admin"
	defaultAdminCredits  = 1000
)

func main() {
	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}
	models.MigrateTable()

	email := envOr("ADMIN_EMAIL", defaultAdminEmail)
	password := envOr("ADMIN_PASSWORD", defaultAdminPassword)
	name := envOr("ADMIN_NAME", defaultAdminName)
	credits := defaultAdminCredits
	if v := os.Getenv("ADMIN_CREDITS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			fmt.Fprintf(os.Stderr, "invalid ADMIN_CREDITS: %q\n", v)
			os.Exit(1)
		}
		credits = n
	}

	seedDemo := os.Getenv("SEED_DEMO_TEMPLATE") == "true"

	hashed, err := utils.HashPassword(password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to hash password: %v\n", err)
		os.Exit(1)
	}
	hashedStr := string(hashed)

	var existing models.User
	err = db.WithContext(ctx).Where("email = ?", email).First(&existing).Error
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			fmt.Fprintf(os.Stderr, "failed to lookup user: %v\n", err)
			os.Exit(1)
		}
		u := models.User{
			Name:             name,
			Email:            email,
			PasswordHash:     hashedStr,
			Role:             "admin",
			PlanType:         "enterprise",
			CreditsRemaining: credits,
		}
		if err := db.WithContext(ctx).Create(&u).Error; err != nil {
			fmt.Fprintf(os.Stderr, "failed to create admin user: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Created admin user: email=%q (credits=%d)\n", email, credits)
		if seedDemo {
			seedDemoTemplate(ctx, db, u.ID)
		}
		return
	}

	// Update existing user: ensure password and admin role.
	if err := db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Updates(map[string]any{
		"password_hash":     hashedStr,
		"name":              name,
		"role":              "admin",
		"credits_remaining": credits,
	}).Error; err != nil {
		fmt.Fprintf(os.Stderr, "failed to update admin user: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Updated admin user: email=%q (credits=%d)\n", email, credits)
	if seedDemo {
		seedDemoTemplate(ctx, db, existing.ID)
	}
}

// seedDemoTemplate creates the standard invoice template if the user has no
// templates yet.
func seedDemoTemplate(ctx context.Context, db *gorm.DB, userId int) {
	var count int64
	if err := db.WithContext(ctx).Model(&models.Template{}).Where("user_id = ?", userId).Count(&count).Error; err != nil {
		fmt.Fprintf(os.Stderr, "failed to count templates: %v\n", err)
		return
	}
	if count > 0 {
		return
	}

	input := models.NewTemplate{
		Name:           "Invoice Template",
		Description:    "Standard invoice extraction template",
		AiInstructions: "Extract invoice number, date, vendor, amounts, and line items",
		Fields: []models.NewTemplateField{
			{FieldName: "invoice_number", FieldType: "text"},
			{FieldName: "invoice_date", FieldType: "date"},
			{FieldName: "vendor_name", FieldType: "text"},
			{FieldName: "total_amount", FieldType: "currency"},
			{FieldName: "item_description", FieldType: "table", SubFields: []models.NewSubTemplateField{
				{FieldName: "description", DataType: "string"},
				{FieldName: "quantity", DataType: "integer"},
				{FieldName: "unit_price", DataType: "float"},
			}},
		},
	}
	template, err := input.MapInput(userId)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build demo template: %v\n", err)
		return
	}
	if err := template.Store(db, ctx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create demo template: %v\n", err)
		return
	}
	fmt.Printf("Created demo template %q (id=%d)\n", template.Name, template.ID)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
