package store

import (
	"context"
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

//go:embed seed/reference.yaml
var defaultReference []byte

// ReferenceData is the categories and units a fresh database starts with.
type ReferenceData struct {
	Categories []categoryRow `yaml:"categories"`
	Units      []unitRow     `yaml:"units"`
}

// DefaultReference returns the reference data shipped with the binary.
func DefaultReference() (ReferenceData, error) {
	return parseReference(defaultReference)
}

// LoadReferenceFile reads reference data from a YAML file on disk.
func LoadReferenceFile(path string) (ReferenceData, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return ReferenceData{}, err
	}
	return parseReference(b)
}

func parseReference(b []byte) (ReferenceData, error) {
	var data ReferenceData
	if err := yaml.Unmarshal(b, &data); err != nil {
		return ReferenceData{}, fmt.Errorf("parse reference data: %w", err)
	}
	for _, c := range data.Categories {
		if _, err := c.toDomain(); err != nil {
			return ReferenceData{}, fmt.Errorf("category %q: %w", c.ID, err)
		}
	}
	for _, u := range data.Units {
		if _, err := u.toDomain(); err != nil {
			return ReferenceData{}, fmt.Errorf("unit %q: %w", u.ID, err)
		}
	}
	return data, nil
}

// Seed inserts data, leaving rows that already exist untouched.
func Seed(ctx context.Context, db *gorm.DB, data ReferenceData) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ignore := clause.OnConflict{DoNothing: true}
		if len(data.Categories) > 0 {
			if err := tx.Clauses(ignore).Create(&data.Categories).Error; err != nil {
				return fmt.Errorf("seed categories: %w", err)
			}
		}
		if len(data.Units) > 0 {
			if err := tx.Clauses(ignore).Create(&data.Units).Error; err != nil {
				return fmt.Errorf("seed units: %w", err)
			}
		}
		return nil
	})
}
