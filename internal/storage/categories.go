package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Veraticus/tally/internal/common"
	"github.com/Veraticus/tally/internal/model"
)

func (s *SQLiteStorage) getCategories(ctx context.Context, q queryable, ownerID int64) ([]model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateOwner(ownerID); err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, `
		SELECT id, owner_id, name, created_at
		FROM categories
		WHERE owner_id = ?
		ORDER BY name`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}

	var categories []model.Category
	index := make(map[int64]int)
	for rows.Next() {
		var cat model.Category
		if err := rows.Scan(&cat.ID, &cat.OwnerID, &cat.Name, &cat.CreatedAt); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		index[cat.ID] = len(categories)
		categories = append(categories, cat)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}
	_ = rows.Close()

	// Rules are read after the category cursor is closed; the store has one connection.
	rules, err := s.queryRules(ctx, q, `WHERE r.owner_id = ? ORDER BY r.category_id, r.keyword_pattern`, ownerID)
	if err != nil {
		return nil, err
	}
	for _, rule := range rules {
		if i, ok := index[rule.CategoryID]; ok {
			categories[i].Rules = append(categories[i].Rules, rule)
		}
	}

	slog.Debug("retrieved categories", "owner_id", ownerID, "count", len(categories))
	return categories, nil
}

func (s *SQLiteStorage) getCategoryByName(ctx context.Context, q queryable, ownerID int64, name string) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateOwner(ownerID); err != nil {
		return nil, err
	}
	if err := validateString(name, "name"); err != nil {
		return nil, err
	}

	var cat model.Category
	err := q.QueryRowContext(ctx, `
		SELECT id, owner_id, name, created_at
		FROM categories
		WHERE owner_id = ? AND name = ?`, ownerID, strings.TrimSpace(name)).Scan(
		&cat.ID, &cat.OwnerID, &cat.Name, &cat.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // Category not found
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query category: %w", err)
	}

	return &cat, nil
}

func (s *SQLiteStorage) getCategoryByID(ctx context.Context, q queryable, ownerID, id int64) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateOwner(ownerID); err != nil {
		return nil, err
	}

	var cat model.Category
	err := q.QueryRowContext(ctx, `
		SELECT id, owner_id, name, created_at
		FROM categories
		WHERE id = ?`, id).Scan(&cat.ID, &cat.OwnerID, &cat.Name, &cat.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("category %d: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query category: %w", err)
	}
	if cat.OwnerID != ownerID {
		return nil, fmt.Errorf("category %d: %w", id, common.ErrForbidden)
	}

	rules, err := s.queryRules(ctx, q, `WHERE r.category_id = ? ORDER BY r.keyword_pattern`, id)
	if err != nil {
		return nil, err
	}
	cat.Rules = rules

	return &cat, nil
}

func (s *SQLiteStorage) createCategory(ctx context.Context, q queryable, ownerID int64, name string) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateOwner(ownerID); err != nil {
		return nil, err
	}
	if err := validateString(name, "name"); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)

	result, err := q.ExecContext(ctx, `INSERT INTO categories (owner_id, name) VALUES (?, ?)`, ownerID, name)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("category %q: %w", name, common.ErrDuplicateEntry)
		}
		return nil, fmt.Errorf("failed to create category: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get category ID: %w", err)
	}

	slog.Info("created category", "owner_id", ownerID, "id", id, "name", name)
	return s.getCategoryByID(ctx, q, ownerID, id)
}

func (s *SQLiteStorage) renameCategory(ctx context.Context, q queryable, ownerID, id int64, name string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateOwner(ownerID); err != nil {
		return err
	}
	if err := validateString(name, "name"); err != nil {
		return err
	}

	result, err := q.ExecContext(ctx, `
		UPDATE categories SET name = ?
		WHERE id = ? AND owner_id = ?`, strings.TrimSpace(name), id, ownerID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("category %q: %w", name, common.ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to rename category: %w", err)
	}
	return checkAffected(result, fmt.Sprintf("category %d", id))
}

func (s *SQLiteStorage) deleteCategory(ctx context.Context, q queryable, ownerID, id int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateOwner(ownerID); err != nil {
		return err
	}

	result, err := q.ExecContext(ctx, `DELETE FROM categories WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}
	if err := checkAffected(result, fmt.Sprintf("category %d", id)); err != nil {
		return err
	}

	slog.Info("deleted category", "owner_id", ownerID, "id", id)
	return nil
}
