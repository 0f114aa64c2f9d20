package database

import (
	"context"
	"fmt"
	"strings"

	"shareit/internal/models"
)

// SeedData is the fixture format read by scripts/seed.go.
type SeedData struct {
	Users []SeedUser `yaml:"users"`
}

type SeedUser struct {
	Name  string     `yaml:"name"`
	Email string     `yaml:"email"`
	Items []SeedItem `yaml:"items"`
}

type SeedItem struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Available   bool   `yaml:"available"`
}

// SeedResult counts what a Seed call inserted.
type SeedResult struct {
	UsersCreated int
	ItemsCreated int
}

// Seed inserts fixture users and their items. Users are matched by email and
// items by owner and name, so repeated runs only add what is missing.
func (db *DB) Seed(ctx context.Context, data SeedData) (SeedResult, error) {
	var result SeedResult

	existing, err := db.GetAllUsers(ctx)
	if err != nil {
		return result, err
	}
	byEmail := make(map[string]*models.User, len(existing))
	for _, u := range existing {
		byEmail[strings.ToLower(u.Email)] = u
	}

	for _, su := range data.Users {
		if strings.TrimSpace(su.Email) == "" {
			continue
		}
		owner, ok := byEmail[strings.ToLower(su.Email)]
		if !ok {
			owner = &models.User{Name: su.Name, Email: su.Email}
			if err := db.CreateUser(ctx, owner); err != nil {
				return result, fmt.Errorf("seed user %s: %w", su.Email, err)
			}
			byEmail[strings.ToLower(su.Email)] = owner
			result.UsersCreated++
		}

		for _, si := range su.Items {
			if strings.TrimSpace(si.Name) == "" {
				continue
			}
			var count int
			err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM items WHERE owner_id = ? AND name = ?`, owner.ID, si.Name).Scan(&count)
			if err != nil {
				return result, fmt.Errorf("seed item %s: %w", si.Name, err)
			}
			if count > 0 {
				continue
			}
			item := &models.Item{Name: si.Name, Description: si.Description, Available: si.Available, OwnerID: owner.ID}
			if err := db.CreateItem(ctx, item); err != nil {
				return result, fmt.Errorf("seed item %s: %w", si.Name, err)
			}
			result.ItemsCreated++
		}
	}

	db.logger.Info().Int("users", result.UsersCreated).Int("items", result.ItemsCreated).Msg("Seed applied")
	return result, nil
}
