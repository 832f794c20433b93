package database

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const migrationsDir = "../../migrations"

func readMigration(t *testing.T, name string) string {
	t.Helper()
	content, err := os.ReadFile(filepath.Join(migrationsDir, name))
	if err != nil {
		t.Fatalf("Failed to read migration %s: %v", name, err)
	}
	return string(content)
}

func TestMigrationFilesExist(t *testing.T) {
	if _, err := os.Stat(migrationsDir); os.IsNotExist(err) {
		t.Fatal("Migrations directory does not exist")
	}

	expectedMigrations := []string{
		"00001_create_users_table.sql",
		"00002_create_refresh_tokens_table.sql",
		"00003_create_categories_table.sql",
		"00004_create_products_table.sql",
		"00005_create_product_images_table.sql",
		"00006_create_product_categories_table.sql",
		"00007_create_product_reviews_table.sql",
	}

	for _, migration := range expectedMigrations {
		path := filepath.Join(migrationsDir, migration)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			t.Errorf("Migration file %s does not exist", migration)
		}
	}
}

func TestMigrationFilesHaveUpAndDown(t *testing.T) {
	files, err := os.ReadDir(migrationsDir)
	if err != nil {
		t.Fatalf("Failed to read migrations directory: %v", err)
	}

	sqlFileCount := 0
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".sql") {
			continue
		}
		sqlFileCount++
		content := readMigration(t, file.Name())

		for _, directive := range []string{
			"-- +goose Up",
			"-- +goose Down",
			"-- +goose StatementBegin",
			"-- +goose StatementEnd",
		} {
			if !strings.Contains(content, directive) {
				t.Errorf("Migration file %s missing '%s' directive", file.Name(), directive)
			}
		}
	}

	if sqlFileCount == 0 {
		t.Error("No SQL migration files found")
	}
}

func TestMigrationFilesCreateExpectedTables(t *testing.T) {
	expectedTables := map[string]string{
		"users":              "00001_create_users_table.sql",
		"user_roles":         "00001_create_users_table.sql",
		"refresh_tokens":     "00002_create_refresh_tokens_table.sql",
		"categories":         "00003_create_categories_table.sql",
		"products":           "00004_create_products_table.sql",
		"product_details":    "00004_create_products_table.sql",
		"product_images":     "00005_create_product_images_table.sql",
		"product_categories": "00006_create_product_categories_table.sql",
		"product_reviews":    "00007_create_product_reviews_table.sql",
	}

	for tableName, migrationFile := range expectedTables {
		content := readMigration(t, migrationFile)

		if !strings.Contains(content, "CREATE TABLE IF NOT EXISTS "+tableName+" (") {
			t.Errorf("Migration file %s does not create table %s", migrationFile, tableName)
		}
		if !strings.Contains(content, "DROP TABLE IF EXISTS "+tableName+";") {
			t.Errorf("Migration file %s does not drop table %s in down section", migrationFile, tableName)
		}
	}
}

func TestProductChildrenCascadeWithProduct(t *testing.T) {
	children := map[string]string{
		"fk_product_details_product":    "00004_create_products_table.sql",
		"fk_product_images_product":     "00005_create_product_images_table.sql",
		"fk_product_categories_product": "00006_create_product_categories_table.sql",
		"fk_product_reviews_product":    "00007_create_product_reviews_table.sql",
	}

	for constraint, file := range children {
		content := readMigration(t, file)
		idx := strings.Index(content, constraint)
		if idx < 0 {
			t.Errorf("%s missing constraint %s", file, constraint)
			continue
		}
		line := content[idx:]
		line = line[:strings.Index(line, "\n")]
		if !strings.Contains(line, "REFERENCES products(id) ON DELETE CASCADE") {
			t.Errorf("constraint %s does not cascade from products: %s", constraint, line)
		}
	}
}

func TestCategoryDeleteOnlyRemovesLinks(t *testing.T) {
	content := readMigration(t, "00006_create_product_categories_table.sql")
	if !strings.Contains(content, "REFERENCES categories(id) ON DELETE CASCADE") {
		t.Error("product_categories must cascade from categories")
	}

	products := readMigration(t, "00004_create_products_table.sql")
	if strings.Contains(products, "category_id") {
		t.Error("products must not reference categories directly")
	}
}

func TestProductImagesHavePrimaryIndex(t *testing.T) {
	content := readMigration(t, "00005_create_product_images_table.sql")
	if !strings.Contains(content, "ON product_images(product_id) WHERE is_primary") {
		t.Error("product_images missing partial unique index on primary image")
	}
}

func TestReviewsAreUniquePerUserAndProduct(t *testing.T) {
	content := readMigration(t, "00007_create_product_reviews_table.sql")
	if !strings.Contains(content, "UNIQUE (user_id, product_id)") {
		t.Error("product_reviews missing unique constraint on (user_id, product_id)")
	}
	if !strings.Contains(content, "CHECK (rating BETWEEN 1 AND 5)") {
		t.Error("product_reviews missing rating range check")
	}
}
