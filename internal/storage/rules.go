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

const ruleColumns = `
	SELECT r.id, r.owner_id, r.category_id, c.name, r.keyword_pattern, r.created_at
	FROM rules r
	JOIN categories c ON c.id = r.category_id
	`

func (s *SQLiteStorage) listRules(ctx context.Context, q queryable, ownerID int64) ([]model.Rule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateOwner(ownerID); err != nil {
		return nil, err
	}

	rules, err := s.queryRules(ctx, q, `
		WHERE r.owner_id = ?
		ORDER BY length(r.keyword_pattern) DESC, r.id ASC`, ownerID)
	if err != nil {
		return nil, err
	}

	slog.Debug("retrieved rules", "owner_id", ownerID, "count", len(rules))
	return rules, nil
}

func (s *SQLiteStorage) getRulesByCategory(ctx context.Context, q queryable, ownerID, categoryID int64) ([]model.Rule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateOwner(ownerID); err != nil {
		return nil, err
	}

	return s.queryRules(ctx, q, `
		WHERE r.owner_id = ? AND r.category_id = ?
		ORDER BY r.keyword_pattern`, ownerID, categoryID)
}

func (s *SQLiteStorage) createRule(ctx context.Context, q queryable, ownerID, categoryID int64, keyword string) (*model.Rule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateOwner(ownerID); err != nil {
		return nil, err
	}
	if err := validateString(keyword, "keyword"); err != nil {
		return nil, err
	}
	keyword = strings.TrimSpace(keyword)

	if err := s.checkCategoryOwner(ctx, q, ownerID, categoryID); err != nil {
		return nil, err
	}

	result, err := q.ExecContext(ctx, `
		INSERT INTO rules (owner_id, category_id, keyword_pattern)
		VALUES (?, ?, ?)`, ownerID, categoryID, keyword)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("rule %q: %w", keyword, common.ErrDuplicateEntry)
		}
		return nil, fmt.Errorf("failed to create rule: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get rule ID: %w", err)
	}

	rules, err := s.queryRules(ctx, q, `WHERE r.id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(rules) == 0 {
		return nil, fmt.Errorf("rule %d: %w", id, common.ErrNotFound)
	}

	slog.Info("created rule", "owner_id", ownerID, "category_id", categoryID, "keyword", keyword)
	return &rules[0], nil
}

func (s *SQLiteStorage) updateRule(ctx context.Context, q queryable, ownerID, ruleID int64, keyword string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateOwner(ownerID); err != nil {
		return err
	}
	if err := validateString(keyword, "keyword"); err != nil {
		return err
	}

	result, err := q.ExecContext(ctx, `
		UPDATE rules SET keyword_pattern = ?
		WHERE id = ? AND owner_id = ?`, strings.TrimSpace(keyword), ruleID, ownerID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("rule %q: %w", keyword, common.ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to update rule: %w", err)
	}
	return checkAffected(result, fmt.Sprintf("rule %d", ruleID))
}

func (s *SQLiteStorage) deleteRule(ctx context.Context, q queryable, ownerID, ruleID int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateOwner(ownerID); err != nil {
		return err
	}

	result, err := q.ExecContext(ctx, `DELETE FROM rules WHERE id = ? AND owner_id = ?`, ruleID, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}
	return checkAffected(result, fmt.Sprintf("rule %d", ruleID))
}

// checkCategoryOwner distinguishes a missing category from another owner's.
func (s *SQLiteStorage) checkCategoryOwner(ctx context.Context, q queryable, ownerID, categoryID int64) error {
	var owner int64
	err := q.QueryRowContext(ctx, `SELECT owner_id FROM categories WHERE id = ?`, categoryID).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("category %d: %w", categoryID, common.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to query category: %w", err)
	}
	if owner != ownerID {
		return fmt.Errorf("category %d: %w", categoryID, common.ErrForbidden)
	}
	return nil
}

func (s *SQLiteStorage) queryRules(ctx context.Context, q queryable, clause string, args ...any) ([]model.Rule, error) {
	rows, err := q.QueryContext(ctx, ruleColumns+clause, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var rules []model.Rule
	for rows.Next() {
		var rule model.Rule
		if err := rows.Scan(
			&rule.ID, &rule.OwnerID, &rule.CategoryID, &rule.CategoryName,
			&rule.KeywordPattern, &rule.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rules = append(rules, rule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rules: %w", err)
	}
	return rules, nil
}
