package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/tally/internal/common"
	"github.com/Veraticus/tally/internal/model"
	"github.com/Veraticus/tally/internal/service"
)

const transactionColumns = `
	SELECT t.id, t.owner_id, t.date, t.description, t.amount, t.account_source,
	       t.category_id, COALESCE(c.name, ''), t.created_at
	FROM transactions t
	LEFT JOIN categories c ON c.id = t.category_id
	`

func (s *SQLiteStorage) findTransaction(ctx context.Context, q queryable, ownerID int64, date time.Time, description string, amount decimal.Decimal) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateOwner(ownerID); err != nil {
		return nil, err
	}

	key := model.NewDuplicateKey(date, description, amount)
	txn, err := scanTransaction(q.QueryRowContext(ctx, transactionColumns+`
		WHERE t.owner_id = ? AND t.date = ? AND t.description = ? AND t.amount = ?`,
		ownerID, key.Date, key.Description, key.Amount))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // Transaction not found
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query transaction: %w", err)
	}
	return txn, nil
}

func (s *SQLiteStorage) insertTransactions(ctx context.Context, q queryable, transactions []model.Transaction) error {
	if err := validateTransactions(transactions); err != nil {
		return err
	}
	if len(transactions) == 0 {
		return nil
	}

	stmt, err := q.PrepareContext(ctx, `
		INSERT INTO transactions (
			id, owner_id, date, description, amount, account_source, category_id, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, txn := range transactions {
		key := txn.DuplicateKey()
		createdAt := txn.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}

		_, err = stmt.ExecContext(ctx,
			txn.ID,
			txn.OwnerID,
			key.Date,
			key.Description,
			key.Amount,
			txn.AccountSource,
			nullableID(txn.CategoryID),
			createdAt.UTC(),
		)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("transaction %s on %s: %w", txn.Description, key.Date, common.ErrDuplicateEntry)
			}
			return fmt.Errorf("failed to insert transaction %s: %w", txn.ID, err)
		}
	}

	slog.Debug("inserted transactions", "count", len(transactions))
	return nil
}

func (s *SQLiteStorage) getTransaction(ctx context.Context, q queryable, ownerID int64, id string) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateOwner(ownerID); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	txn, err := scanTransaction(q.QueryRowContext(ctx, transactionColumns+`
		WHERE t.id = ? AND t.owner_id = ?`, id, ownerID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transaction %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query transaction: %w", err)
	}
	return txn, nil
}

func (s *SQLiteStorage) createTransaction(ctx context.Context, q queryable, txn model.Transaction) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateTransaction(&txn); err != nil {
		return nil, err
	}
	if txn.CategoryID != nil {
		if err := s.checkCategoryOwner(ctx, q, txn.OwnerID, *txn.CategoryID); err != nil {
			return nil, err
		}
	}

	if err := s.insertTransactions(ctx, q, []model.Transaction{txn}); err != nil {
		return nil, err
	}

	slog.Info("created transaction", "owner_id", txn.OwnerID, "id", txn.ID)
	return s.getTransaction(ctx, q, txn.OwnerID, txn.ID)
}

func (s *SQLiteStorage) updateTransaction(ctx context.Context, q queryable, txn model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTransaction(&txn); err != nil {
		return err
	}
	if txn.CategoryID != nil {
		if err := s.checkCategoryOwner(ctx, q, txn.OwnerID, *txn.CategoryID); err != nil {
			return err
		}
	}

	key := txn.DuplicateKey()
	result, err := q.ExecContext(ctx, `
		UPDATE transactions
		SET date = ?, description = ?, amount = ?, account_source = ?, category_id = ?
		WHERE id = ? AND owner_id = ?`,
		key.Date, key.Description, key.Amount, txn.AccountSource, nullableID(txn.CategoryID),
		txn.ID, txn.OwnerID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("transaction %s on %s: %w", txn.Description, key.Date, common.ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to update transaction: %w", err)
	}
	return checkAffected(result, "transaction "+txn.ID)
}

func (s *SQLiteStorage) listTransactions(ctx context.Context, q queryable, ownerID int64, filter service.TransactionFilter) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateOwner(ownerID); err != nil {
		return nil, err
	}

	var (
		clauses = []string{"t.owner_id = ?"}
		args    = []any{ownerID}
	)

	start, end, err := filterRange(filter)
	if err != nil {
		return nil, err
	}
	if start != "" {
		clauses = append(clauses, "t.date >= ?", "t.date < ?")
		args = append(args, start, end)
	}

	switch {
	case filter.Uncategorized && filter.CategoryID != nil:
		return nil, fmt.Errorf("%w: category and uncategorized are exclusive", ErrInvalidFilter)
	case filter.Uncategorized:
		clauses = append(clauses, "t.category_id IS NULL")
	case filter.CategoryID != nil:
		clauses = append(clauses, "t.category_id = ?")
		args = append(args, *filter.CategoryID)
	}

	query := transactionColumns + "WHERE " + strings.Join(clauses, " AND ") +
		" ORDER BY t.date DESC, t.created_at DESC, t.id"
	if filter.Limit > 0 || filter.Offset > 0 {
		limit := filter.Limit
		if limit <= 0 {
			limit = -1
		}
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, filter.Offset)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var transactions []model.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, *txn)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return transactions, nil
}

func (s *SQLiteStorage) setTransactionCategory(ctx context.Context, q queryable, ownerID int64, id string, categoryID *int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateOwner(ownerID); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}
	if categoryID != nil {
		if err := s.checkCategoryOwner(ctx, q, ownerID, *categoryID); err != nil {
			return err
		}
	}

	result, err := q.ExecContext(ctx, `
		UPDATE transactions SET category_id = ?
		WHERE id = ? AND owner_id = ?`, nullableID(categoryID), id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to update transaction category: %w", err)
	}
	return checkAffected(result, "transaction "+id)
}

func (s *SQLiteStorage) deleteTransaction(ctx context.Context, q queryable, ownerID int64, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateOwner(ownerID); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	result, err := q.ExecContext(ctx, `DELETE FROM transactions WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	return checkAffected(result, "transaction "+id)
}

func (s *SQLiteStorage) deleteAllTransactions(ctx context.Context, q queryable, ownerID int64) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateOwner(ownerID); err != nil {
		return 0, err
	}

	result, err := q.ExecContext(ctx, `DELETE FROM transactions WHERE owner_id = ?`, ownerID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete transactions: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	slog.Info("deleted transactions", "owner_id", ownerID, "count", n)
	return n, nil
}

// filterRange converts a year/month filter into a half-open date range.
func filterRange(filter service.TransactionFilter) (string, string, error) {
	switch {
	case filter.Year == 0 && filter.Month == 0:
		return "", "", nil
	case filter.Year == 0:
		return "", "", fmt.Errorf("%w: month requires a year", ErrInvalidFilter)
	case filter.Month < 0 || filter.Month > 12:
		return "", "", fmt.Errorf("%w: month %d", ErrInvalidFilter, filter.Month)
	}

	var start, end time.Time
	if filter.Month == 0 {
		start = time.Date(filter.Year, time.January, 1, 0, 0, 0, 0, time.UTC)
		end = start.AddDate(1, 0, 0)
	} else {
		start = time.Date(filter.Year, time.Month(filter.Month), 1, 0, 0, 0, 0, time.UTC)
		end = start.AddDate(0, 1, 0)
	}
	return start.Format(model.DateLayout), end.Format(model.DateLayout), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*model.Transaction, error) {
	var (
		txn        model.Transaction
		date       string
		amount     string
		categoryID sql.NullInt64
	)

	if err := row.Scan(
		&txn.ID, &txn.OwnerID, &date, &txn.Description, &amount, &txn.AccountSource,
		&categoryID, &txn.CategoryName, &txn.CreatedAt,
	); err != nil {
		return nil, err
	}

	parsed, err := time.Parse(model.DateLayout, date)
	if err != nil {
		return nil, fmt.Errorf("invalid stored date %q: %w", date, err)
	}
	txn.Date = parsed

	txn.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid stored amount %q: %w", amount, err)
	}

	if categoryID.Valid {
		id := categoryID.Int64
		txn.CategoryID = &id
	}
	return &txn, nil
}

func nullableID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}
