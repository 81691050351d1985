package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Veraticus/tally/internal/cli"
	"github.com/Veraticus/tally/internal/common"
	"github.com/Veraticus/tally/internal/config"
	"github.com/Veraticus/tally/internal/model"
	"github.com/Veraticus/tally/internal/service"
	"github.com/Veraticus/tally/internal/storage"
)

func categoriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "categories",
		Aliases: []string{"category", "cat"},
		Short:   "Manage spending categories",
		Long:    `List, add, rename and delete the categories your rules file transactions under.`,
	}

	cmd.AddCommand(listCategoriesCmd())
	cmd.AddCommand(addCategoryCmd())
	cmd.AddCommand(renameCategoryCmd())
	cmd.AddCommand(deleteCategoryCmd())
	cmd.AddCommand(defaultCategoriesCmd())

	return cmd
}

func listCategoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List categories and their rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withOwner(cmd, func(ctx context.Context, store *storage.SQLiteStorage, owner *model.User) error {
				categories, err := store.GetCategories(ctx, owner.ID)
				if err != nil {
					return fmt.Errorf("failed to get categories: %w", err)
				}

				out := cmd.OutOrStdout()
				if len(categories) == 0 {
					writeLine(out, cli.InfoStyle.Render("No categories found. Use 'tally categories add' or 'tally categories defaults' to create some."))
					return nil
				}

				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				defer func() { _ = w.Flush() }()

				fmt.Fprintf(w, "%s\t%s\t%s\n",
					cli.BoldStyle.Render("ID"),
					cli.BoldStyle.Render("Name"),
					cli.BoldStyle.Render("Keywords"))
				fmt.Fprintf(w, "%s\t%s\t%s\n",
					strings.Repeat("-", 4),
					strings.Repeat("-", 20),
					strings.Repeat("-", 40))

				for _, cat := range categories {
					keywords := make([]string, 0, len(cat.Rules))
					for _, rule := range cat.Rules {
						keywords = append(keywords, rule.KeywordPattern)
					}
					list := strings.Join(keywords, ", ")
					if list == "" {
						list = cli.SubtleStyle.Render("(no rules)")
					}
					fmt.Fprintf(w, "%d\t%s\t%s\n", cat.ID, cat.Name, list)
				}
				return nil
			})
		},
	}
}

func addCategoryCmd() *cobra.Command {
	var keywords []string

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a new category",
		Long: `Create a new category. Names are unique per user, ignoring case.

Examples:
  tally categories add Groceries
  tally categories add "Dining Out" --keyword starbucks --keyword "tim hortons"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOwner(cmd, func(ctx context.Context, store *storage.SQLiteStorage, owner *model.User) error {
				var cat *model.Category
				err := inTransaction(ctx, store, func(tx service.Transaction) error {
					var err error
					cat, err = tx.CreateCategory(ctx, owner.ID, args[0])
					if err != nil {
						return fmt.Errorf("failed to create category: %w", err)
					}
					for _, keyword := range keywords {
						keyword = strings.ToLower(strings.TrimSpace(keyword))
						if _, err := tx.CreateRule(ctx, owner.ID, cat.ID, keyword); err != nil {
							return fmt.Errorf("failed to add keyword %q: %w", keyword, err)
						}
					}
					return nil
				})
				if err != nil {
					return err
				}

				writeLine(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Created category %q (id %d) with %d keywords",
					cat.Name, cat.ID, len(keywords))))
				return nil
			})
		},
	}

	cmd.Flags().StringArrayVarP(&keywords, "keyword", "k", nil, "keyword rule to add (repeatable)")
	return cmd
}

func renameCategoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <name> <new-name>",
		Short: "Rename a category",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOwner(cmd, func(ctx context.Context, store *storage.SQLiteStorage, owner *model.User) error {
				cat, err := findCategory(ctx, store, owner.ID, args[0])
				if err != nil {
					return err
				}
				if err := store.RenameCategory(ctx, owner.ID, cat.ID, args[1]); err != nil {
					return fmt.Errorf("failed to rename category: %w", err)
				}
				writeLine(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Renamed %q to %q", cat.Name, args[1])))
				return nil
			})
		},
	}
}

func deleteCategoryCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a category and its rules",
		Long: `Delete a category together with its keyword rules.
Transactions filed under it become uncategorized.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOwner(cmd, func(ctx context.Context, store *storage.SQLiteStorage, owner *model.User) error {
				cat, err := findCategory(ctx, store, owner.ID, args[0])
				if err != nil {
					return err
				}

				if !yes {
					ok, err := cli.Confirm(ctx, cmd.InOrStdin(), cmd.OutOrStdout(),
						fmt.Sprintf("Delete %q and its rules?", cat.Name))
					if err != nil || !ok {
						return err
					}
				}

				if err := store.DeleteCategory(ctx, owner.ID, cat.ID); err != nil {
					return fmt.Errorf("failed to delete category: %w", err)
				}
				writeLine(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Deleted category %q", cat.Name)))
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "don't ask for confirmation")
	return cmd
}

func defaultCategoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "defaults",
		Short: "Seed the starter categories and keywords",
		Long: `Create a starter set of categories with keyword rules.
Only allowed while the user has no categories yet.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withOwner(cmd, func(ctx context.Context, store *storage.SQLiteStorage, owner *model.User) error {
				var stats config.ApplyStats
				err := inTransaction(ctx, store, func(tx service.Transaction) error {
					existing, err := tx.GetCategories(ctx, owner.ID)
					if err != nil {
						return fmt.Errorf("failed to get categories: %w", err)
					}
					if len(existing) > 0 {
						return common.NewUserError(
							fmt.Sprintf("%s already has %d categories; defaults are only seeded into an empty account", owner.Email, len(existing)),
							common.ErrDuplicateEntry)
					}

					stats, err = config.ApplyRuleSet(ctx, tx, owner.ID, config.DefaultRuleSet())
					return err
				})
				if err != nil {
					return err
				}

				writeLine(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Created %d categories with %d keywords",
					stats.CategoriesCreated, stats.RulesCreated)))
				return nil
			})
		},
	}
}
