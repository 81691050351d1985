package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/Veraticus/tally/internal/cli"
	"github.com/Veraticus/tally/internal/common"
	"github.com/Veraticus/tally/internal/model"
	"github.com/Veraticus/tally/internal/parser"
	"github.com/Veraticus/tally/internal/pattern"
	"github.com/Veraticus/tally/internal/service"
	"github.com/Veraticus/tally/internal/storage"
)

func transactionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "transactions",
		Aliases: []string{"txn", "tx"},
		Short:   "Browse and maintain imported transactions",
	}

	cmd.AddCommand(listTransactionsCmd())
	cmd.AddCommand(addTransactionCmd())
	cmd.AddCommand(editTransactionCmd())
	cmd.AddCommand(deleteTransactionCmd())
	cmd.AddCommand(recategorizeCmd())

	return cmd
}

func listTransactionsCmd() *cobra.Command {
	var (
		year, month   int
		limit, offset int
		category      string
		uncategorized bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List transactions, newest first",
		Example: `  tally transactions list --year 2025 --month 3
  tally transactions list --category Groceries
  tally transactions list --uncategorized --limit 0`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withOwner(cmd, func(ctx context.Context, store *storage.SQLiteStorage, owner *model.User) error {
				filter := service.TransactionFilter{
					Year:          year,
					Month:         month,
					Limit:         limit,
					Offset:        offset,
					Uncategorized: uncategorized,
				}
				if category != "" {
					cat, err := findCategory(ctx, store, owner.ID, category)
					if err != nil {
						return err
					}
					filter.CategoryID = &cat.ID
				}

				txns, err := store.ListTransactions(ctx, owner.ID, filter)
				if err != nil {
					return fmt.Errorf("failed to list transactions: %w", err)
				}

				out := cmd.OutOrStdout()
				if len(txns) == 0 {
					writeLine(out, cli.InfoStyle.Render("No transactions found."))
					return nil
				}

				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t\n",
					cli.BoldStyle.Render("Date"),
					cli.BoldStyle.Render("Amount"),
					cli.BoldStyle.Render("Description"),
					cli.BoldStyle.Render("Category"),
					cli.BoldStyle.Render("ID"))
				for _, txn := range txns {
					categoryName := txn.CategoryName
					if txn.CategoryID == nil {
						categoryName = cli.SubtleStyle.Render("uncategorized")
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t\n",
						txn.Date.Format(model.DateLayout),
						cli.FormatAmount(txn.Amount),
						txn.Description,
						categoryName,
						cli.SubtleStyle.Render(txn.ID))
				}
				if err := w.Flush(); err != nil {
					return err
				}

				if limit > 0 && len(txns) == limit {
					writeLine(out, cli.SubtleStyle.Render(fmt.Sprintf(
						"Showing %d; use --offset %d for more.", len(txns), offset+len(txns))))
				}
				return nil
			})
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&year, "year", 0, "only show transactions from this year")
	flags.IntVar(&month, "month", 0, "only show transactions from this month (1-12, needs --year)")
	flags.StringVarP(&category, "category", "c", "", "only show transactions in this category")
	flags.BoolVar(&uncategorized, "uncategorized", false, "only show uncategorized transactions")
	flags.IntVar(&limit, "limit", 50, "maximum rows to show (0 for all)")
	flags.IntVar(&offset, "offset", 0, "rows to skip")
	cmd.MarkFlagsMutuallyExclusive("category", "uncategorized")

	return cmd
}

// transactionFields holds the flags shared by add and edit.
type transactionFields struct {
	date        string
	description string
	amount      string
	account     string
	category    string
}

func (f *transactionFields) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&f.date, "date", "", "transaction date (YYYY-MM-DD)")
	flags.StringVar(&f.description, "description", "", "description as it appears on the statement")
	flags.StringVar(&f.amount, "amount", "", "amount; negative for expenses")
	flags.StringVar(&f.account, "account", "", "account the transaction belongs to")
	flags.StringVarP(&f.category, "category", "c", "", "category name (default: resolved from your rules)")
}

func addTransactionCmd() *cobra.Command {
	var fields transactionFields

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a transaction by hand",
		Long: `Add a transaction that did not come from an imported file.

Without --category the description is run through your keyword rules, the
same way imported lines are. A transaction with the same date, description
and amount as an existing one is refused.`,
		Example: `  tally transactions add --date 2025-05-17 --description "FARMERS MARKET" --amount -23.00 --account Cash
  tally transactions add --date 2025-05-18 --description "GIFT" --amount 50 --account Cash -c Income`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			date, err := parseDateFlag(fields.date)
			if err != nil {
				return err
			}
			amount, err := parseAmountFlag(fields.amount)
			if err != nil {
				return err
			}
			description := strings.TrimSpace(fields.description)
			account := strings.TrimSpace(fields.account)
			if description == "" || account == "" {
				return common.NewUserError("--description and --account can't be empty", common.ErrInvalidInput)
			}

			return withOwner(cmd, func(ctx context.Context, store *storage.SQLiteStorage, owner *model.User) error {
				var created *model.Transaction
				err := inTransaction(ctx, store, func(tx service.Transaction) error {
					categoryID, err := resolveCategoryID(ctx, tx, owner.ID, fields.category, description)
					if err != nil {
						return err
					}

					created, err = tx.CreateTransaction(ctx, model.Transaction{
						ID:            uuid.NewString(),
						OwnerID:       owner.ID,
						Date:          date,
						Description:   description,
						Amount:        amount,
						AccountSource: account,
						CategoryID:    categoryID,
						CreatedAt:     time.Now(),
					})
					return err
				})
				if err != nil {
					return transactionWriteError("add", err)
				}

				writeLine(cmd.OutOrStdout(), cli.FormatSuccess("Added "+describeTransaction(created)))
				return nil
			})
		},
	}

	fields.register(cmd)
	for _, name := range []string{"date", "description", "amount", "account"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func editTransactionCmd() *cobra.Command {
	var fields transactionFields

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change a stored transaction",
		Long: `Change the date, description, amount or account of a transaction.
Fields without a flag keep their current value.

Without --category the category is resolved again from your keyword rules
and cleared when no rule matches. Pass --category to pin one.`,
		Example: `  tally transactions edit 0b6f... --amount -4.75
  tally transactions edit 0b6f... --description "STARBUCKS #123" -c Coffee`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			return withOwner(cmd, func(ctx context.Context, store *storage.SQLiteStorage, owner *model.User) error {
				var updated *model.Transaction
				err := inTransaction(ctx, store, func(tx service.Transaction) error {
					txn, err := tx.GetTransaction(ctx, owner.ID, args[0])
					if err != nil {
						return err
					}

					if flags.Changed("date") {
						if txn.Date, err = parseDateFlag(fields.date); err != nil {
							return err
						}
					}
					if flags.Changed("amount") {
						if txn.Amount, err = parseAmountFlag(fields.amount); err != nil {
							return err
						}
					}
					if flags.Changed("description") {
						txn.Description = strings.TrimSpace(fields.description)
					}
					if flags.Changed("account") {
						txn.AccountSource = strings.TrimSpace(fields.account)
					}
					if txn.Description == "" || txn.AccountSource == "" {
						return common.NewUserError("--description and --account can't be empty", common.ErrInvalidInput)
					}

					if txn.CategoryID, err = resolveCategoryID(ctx, tx, owner.ID, fields.category, txn.Description); err != nil {
						return err
					}
					if err := tx.UpdateTransaction(ctx, *txn); err != nil {
						return err
					}
					updated, err = tx.GetTransaction(ctx, owner.ID, txn.ID)
					return err
				})
				if err != nil {
					return transactionWriteError("update", err)
				}

				writeLine(cmd.OutOrStdout(), cli.FormatSuccess("Updated "+describeTransaction(updated)))
				return nil
			})
		},
	}

	fields.register(cmd)
	return cmd
}

// resolveCategoryID returns the named category, or the one the owner's rules
// pick for description when name is empty.
func resolveCategoryID(ctx context.Context, tx service.Storage, ownerID int64, name, description string) (*int64, error) {
	if name = strings.TrimSpace(name); name != "" {
		cat, err := findCategory(ctx, tx, ownerID, name)
		if err != nil {
			return nil, err
		}
		return &cat.ID, nil
	}

	res, err := pattern.NewResolver(tx).Resolve(ctx, description, ownerID)
	if err != nil || !res.Matched {
		return nil, err
	}
	cat, err := tx.GetCategoryByName(ctx, ownerID, res.CategoryName)
	if err != nil {
		return nil, fmt.Errorf("failed to look up category: %w", err)
	}
	if cat == nil {
		slog.Warn("rule points at a missing category, leaving uncategorized",
			"rule_id", res.RuleID, "category", res.CategoryName)
		return nil, nil
	}
	return &cat.ID, nil
}

func transactionWriteError(verb string, err error) error {
	if errors.Is(err, common.ErrDuplicateEntry) {
		return common.NewUserError("a transaction with the same date, description and amount already exists", err)
	}
	return fmt.Errorf("failed to %s transaction: %w", verb, err)
}

func parseDateFlag(s string) (time.Time, error) {
	date, err := time.Parse(model.DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, common.NewUserError(fmt.Sprintf("date %q is not in YYYY-MM-DD form", s), common.ErrInvalidInput)
	}
	return date, nil
}

func parseAmountFlag(s string) (decimal.Decimal, error) {
	amount, err := parser.ParseMoney(s)
	if err != nil || strings.TrimSpace(s) == "" {
		return decimal.Zero, common.NewUserError(fmt.Sprintf("amount %q is not a number", s), common.ErrInvalidInput)
	}
	return amount, nil
}

func describeTransaction(txn *model.Transaction) string {
	category := txn.CategoryName
	if txn.CategoryID == nil {
		category = "uncategorized"
	}
	return fmt.Sprintf("%s %s %s [%s] (id %s)",
		txn.Date.Format(model.DateLayout), txn.Description, txn.Amount.StringFixed(2), category, txn.ID)
}

func deleteTransactionCmd() *cobra.Command {
	var all, yes bool

	cmd := &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete one transaction, or all of them with --all",
		Args: func(_ *cobra.Command, args []string) error {
			if all && len(args) > 0 {
				return fmt.Errorf("--all does not take an id")
			}
			if !all && len(args) != 1 {
				return fmt.Errorf("expected a transaction id or --all")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOwner(cmd, func(ctx context.Context, store *storage.SQLiteStorage, owner *model.User) error {
				out := cmd.OutOrStdout()
				if !all {
					if err := store.DeleteTransaction(ctx, owner.ID, args[0]); err != nil {
						return fmt.Errorf("failed to delete transaction: %w", err)
					}
					writeLine(out, cli.FormatSuccess("Deleted transaction "+args[0]))
					return nil
				}

				if !yes {
					ok, err := cli.Confirm(ctx, cmd.InOrStdin(), out,
						fmt.Sprintf("Delete every transaction belonging to %s?", owner.Email))
					if err != nil || !ok {
						return err
					}
				}

				n, err := store.DeleteAllTransactions(ctx, owner.ID)
				if err != nil {
					return fmt.Errorf("failed to delete transactions: %w", err)
				}
				slog.Info("deleted all transactions", "owner", owner.Email, "count", n)
				writeLine(out, cli.FormatSuccess(fmt.Sprintf("Deleted %d transactions", n)))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "delete every transaction for the user")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "don't ask for confirmation")
	return cmd
}

func recategorizeCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "recategorize",
		Short: "Run the current rules over stored transactions",
		Long: `Resolve stored transactions against the current keyword rules.

By default only uncategorized transactions are considered, so categories you
set earlier are kept. With --all every transaction is re-resolved and ones
no rule matches any more become uncategorized.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withOwner(cmd, func(ctx context.Context, store *storage.SQLiteStorage, owner *model.User) error {
				var stats recategorizeStats
				err := inTransaction(ctx, store, func(tx service.Transaction) error {
					var err error
					stats, err = recategorize(ctx, tx, owner.ID, all)
					return err
				})
				if err != nil {
					return err
				}

				writeLine(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf(
					"Checked %d transactions: %d changed, %d uncategorized",
					stats.Checked, stats.Changed, stats.Uncategorized)))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "re-resolve categorized transactions too")
	return cmd
}

type recategorizeStats struct {
	Checked       int
	Changed       int
	Uncategorized int
}

// recategorize re-resolves the owner's transactions through tx.
func recategorize(ctx context.Context, tx service.Storage, ownerID int64, all bool) (recategorizeStats, error) {
	var stats recategorizeStats

	txns, err := tx.ListTransactions(ctx, ownerID, service.TransactionFilter{Uncategorized: !all})
	if err != nil {
		return stats, fmt.Errorf("failed to list transactions: %w", err)
	}

	matcher, err := pattern.NewResolver(tx).MatcherFor(ctx, ownerID)
	if err != nil {
		return stats, err
	}

	categoryIDs := make(map[string]*int64)
	for _, txn := range txns {
		stats.Checked++

		var target *int64
		if res := matcher.Match(txn.Description); res.Matched {
			id, ok := categoryIDs[res.CategoryName]
			if !ok {
				cat, err := tx.GetCategoryByName(ctx, ownerID, res.CategoryName)
				if err != nil {
					return stats, fmt.Errorf("failed to look up category: %w", err)
				}
				if cat != nil {
					id = &cat.ID
				}
				categoryIDs[res.CategoryName] = id
			}
			target = id
		}

		if target == nil {
			stats.Uncategorized++
		}
		if sameCategory(txn.CategoryID, target) {
			continue
		}
		if err := tx.SetTransactionCategory(ctx, ownerID, txn.ID, target); err != nil {
			return stats, fmt.Errorf("failed to update transaction %s: %w", txn.ID, err)
		}
		stats.Changed++
	}
	return stats, nil
}

func sameCategory(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
