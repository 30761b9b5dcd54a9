package main

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/foodgram-app/backend/internal/models"
)

// Bulk loader for reference data. Reads CSV or JSON files and inserts
// rows one by one; rows that already exist are skipped, not fatal.
func main() {
	kind := flag.String("kind", "", "What to import: ingredients, tags or users")
	file := flag.String("file", "", "Path to a .csv or .json file")
	flag.Parse()

	if *kind == "" || *file == "" {
		flag.Usage()
		os.Exit(2)
	}

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable is not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	f, err := os.Open(*file)
	if err != nil {
		log.Fatalf("failed to open %s: %v", *file, err)
	}
	defer f.Close()

	var created, skipped int
	switch *kind {
	case "ingredients":
		created, skipped, err = importIngredients(db, f, filepath.Ext(*file))
	case "tags":
		created, skipped, err = importTags(db, f, filepath.Ext(*file))
	case "users":
		created, skipped, err = importUsers(db, f, filepath.Ext(*file))
	default:
		log.Fatalf("unknown kind %q (want ingredients, tags or users)", *kind)
	}
	if err != nil {
		log.Fatalf("import failed: %v", err)
	}

	fmt.Printf("Imported %d rows, skipped %d duplicates\n", created, skipped)
}

func importIngredients(db *gorm.DB, r io.Reader, ext string) (created, skipped int, err error) {
	type row struct {
		Name            string `json:"name"`
		MeasurementUnit string `json:"measurement_unit"`
	}

	var rows []row
	switch ext {
	case ".json":
		if err := json.NewDecoder(r).Decode(&rows); err != nil {
			return 0, 0, fmt.Errorf("failed to decode JSON: %w", err)
		}
	case ".csv":
		records, err := csv.NewReader(r).ReadAll()
		if err != nil {
			return 0, 0, fmt.Errorf("failed to read CSV: %w", err)
		}
		for _, rec := range records {
			if len(rec) < 2 {
				return 0, 0, fmt.Errorf("expected 2 columns (name, measurement unit), got %d", len(rec))
			}
			rows = append(rows, row{Name: rec[0], MeasurementUnit: rec[1]})
		}
	default:
		return 0, 0, fmt.Errorf("unsupported file extension %q", ext)
	}

	for _, r := range rows {
		ingredient := models.Ingredient{
			Name:            strings.TrimSpace(r.Name),
			MeasurementUnit: strings.TrimSpace(r.MeasurementUnit),
		}
		if ingredient.Name == "" {
			continue
		}
		switch err := db.Create(&ingredient).Error; {
		case err == nil:
			created++
		case errors.Is(err, gorm.ErrDuplicatedKey):
			skipped++
		default:
			return created, skipped, err
		}
	}
	return created, skipped, nil
}

func importTags(db *gorm.DB, r io.Reader, ext string) (created, skipped int, err error) {
	type row struct {
		Name  string `json:"name"`
		Color string `json:"color"`
		Slug  string `json:"slug"`
	}

	var rows []row
	switch ext {
	case ".json":
		if err := json.NewDecoder(r).Decode(&rows); err != nil {
			return 0, 0, fmt.Errorf("failed to decode JSON: %w", err)
		}
	case ".csv":
		records, err := csv.NewReader(r).ReadAll()
		if err != nil {
			return 0, 0, fmt.Errorf("failed to read CSV: %w", err)
		}
		for _, rec := range records {
			if len(rec) < 3 {
				return 0, 0, fmt.Errorf("expected 3 columns (name, color, slug), got %d", len(rec))
			}
			rows = append(rows, row{Name: rec[0], Color: rec[1], Slug: rec[2]})
		}
	default:
		return 0, 0, fmt.Errorf("unsupported file extension %q", ext)
	}

	for _, r := range rows {
		tag := models.Tag{
			Name:  strings.TrimSpace(r.Name),
			Color: strings.TrimSpace(r.Color),
			Slug:  strings.TrimSpace(r.Slug),
		}
		if tag.Name == "" {
			continue
		}
		switch err := db.Create(&tag).Error; {
		case err == nil:
			created++
		case errors.Is(err, gorm.ErrDuplicatedKey):
			skipped++
		default:
			return created, skipped, err
		}
	}
	return created, skipped, nil
}

func importUsers(db *gorm.DB, r io.Reader, ext string) (created, skipped int, err error) {
	type row struct {
		Email     string `json:"email"`
		Username  string `json:"username"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Password  string `json:"password"`
	}

	var rows []row
	switch ext {
	case ".json":
		if err := json.NewDecoder(r).Decode(&rows); err != nil {
			return 0, 0, fmt.Errorf("failed to decode JSON: %w", err)
		}
	case ".csv":
		records, err := csv.NewReader(r).ReadAll()
		if err != nil {
			return 0, 0, fmt.Errorf("failed to read CSV: %w", err)
		}
		for _, rec := range records {
			if len(rec) < 5 {
				return 0, 0, fmt.Errorf("expected 5 columns (email, username, first name, last name, password), got %d", len(rec))
			}
			rows = append(rows, row{
				Email:     rec[0],
				Username:  rec[1],
				FirstName: rec[2],
				LastName:  rec[3],
				Password:  rec[4],
			})
		}
	default:
		return 0, 0, fmt.Errorf("unsupported file extension %q", ext)
	}

	for _, r := range rows {
		hash, err := bcrypt.GenerateFromPassword([]byte(r.Password), bcrypt.DefaultCost)
		if err != nil {
			return created, skipped, fmt.Errorf("failed to hash password for %s: %w", r.Email, err)
		}
		user := models.User{
			Email:        strings.ToLower(strings.TrimSpace(r.Email)),
			Username:     strings.TrimSpace(r.Username),
			FirstName:    strings.TrimSpace(r.FirstName),
			LastName:     strings.TrimSpace(r.LastName),
			PasswordHash: string(hash),
		}
		if user.Email == "" {
			continue
		}
		switch err := db.Create(&user).Error; {
		case err == nil:
			created++
		case errors.Is(err, gorm.ErrDuplicatedKey):
			skipped++
		default:
			return created, skipped, err
		}
	}
	return created, skipped, nil
}
