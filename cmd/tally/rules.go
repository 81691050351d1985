package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Veraticus/tally/internal/cli"
	"github.com/Veraticus/tally/internal/common"
	"github.com/Veraticus/tally/internal/config"
	"github.com/Veraticus/tally/internal/model"
	"github.com/Veraticus/tally/internal/pattern"
	"github.com/Veraticus/tally/internal/service"
	"github.com/Veraticus/tally/internal/storage"
)

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "rules",
		Aliases: []string{"rule"},
		Short:   "Manage keyword rules",
		Long: `Keyword rules file transactions under categories. A rule matches when its
keyword appears anywhere in the description, ignoring case. A "*" in the
keyword stands for any run of characters, so "hp *instant ink" matches
"HP *INSTANT INK 123" as well as "HP INSTANT INK".

When several rules match, the longest keyword wins.`,
	}

	cmd.AddCommand(listRulesCmd())
	cmd.AddCommand(addRuleCmd())
	cmd.AddCommand(updateRuleCmd())
	cmd.AddCommand(deleteRuleCmd())
	cmd.AddCommand(importRulesCmd())
	cmd.AddCommand(testRulesCmd())

	return cmd
}

func listRulesCmd() *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List rules in the order they are tried",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withOwner(cmd, func(ctx context.Context, store *storage.SQLiteStorage, owner *model.User) error {
				var (
					rules []model.Rule
					err   error
				)
				if category != "" {
					cat, findErr := findCategory(ctx, store, owner.ID, category)
					if findErr != nil {
						return findErr
					}
					rules, err = store.GetRulesByCategory(ctx, owner.ID, cat.ID)
				} else {
					rules, err = store.ListRules(ctx, owner.ID)
				}
				if err != nil {
					return fmt.Errorf("failed to list rules: %w", err)
				}

				out := cmd.OutOrStdout()
				if len(rules) == 0 {
					writeLine(out, cli.InfoStyle.Render("No rules found. Use 'tally rules add <category> <keyword>' to create one."))
					return nil
				}

				matcher := pattern.NewMatcher(owner.ID, rules)
				invalid := make(map[int64]error, len(matcher.Invalid()))
				for _, bad := range matcher.Invalid() {
					invalid[bad.Rule.ID] = bad.Err
				}

				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				defer func() { _ = w.Flush() }()
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					cli.BoldStyle.Render("ID"),
					cli.BoldStyle.Render("Keyword"),
					cli.BoldStyle.Render("Category"),
					cli.BoldStyle.Render("Note"))
				for _, rule := range rules {
					note := ""
					if reason, ok := invalid[rule.ID]; ok {
						note = cli.WarningStyle.Render("ignored: " + reason.Error())
					}
					fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", rule.ID, rule.KeywordPattern, rule.CategoryName, note)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&category, "category", "c", "", "only show rules for this category")
	return cmd
}

func addRuleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <category> <keyword>",
		Short: "Add a keyword rule to a category",
		Long: `Add a keyword rule to a category.

Keywords are stored lower-cased with leading and trailing spaces removed, so
" in " is saved as "in" and matches anywhere in a description. Use "*" to
bridge variable text instead.`,
		Example: `  tally rules add Groceries "valley supermarket"
  tally rules add Subscriptions "hp *instant ink"`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			keyword := strings.ToLower(strings.TrimSpace(args[1]))
			if _, err := pattern.Compile(keyword); err != nil {
				return common.NewUserError(fmt.Sprintf("keyword %q can't be used", args[1]), err)
			}

			return withOwner(cmd, func(ctx context.Context, store *storage.SQLiteStorage, owner *model.User) error {
				cat, err := findCategory(ctx, store, owner.ID, args[0])
				if err != nil {
					return err
				}
				rule, err := store.CreateRule(ctx, owner.ID, cat.ID, keyword)
				if err != nil {
					return fmt.Errorf("failed to add rule: %w", err)
				}
				writeLine(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Rule %d: %q → %s", rule.ID, rule.KeywordPattern, rule.CategoryName)))
				return nil
			})
		},
	}
}

func updateRuleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update <id> <keyword>",
		Short: "Change a rule's keyword",
		Long: `Change a rule's keyword. As with 'rules add', the keyword is lower-cased
and leading and trailing spaces are removed.`,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			keyword := strings.ToLower(strings.TrimSpace(args[1]))
			if _, err := pattern.Compile(keyword); err != nil {
				return common.NewUserError(fmt.Sprintf("keyword %q can't be used", args[1]), err)
			}

			return withOwner(cmd, func(ctx context.Context, store *storage.SQLiteStorage, owner *model.User) error {
				if err := store.UpdateRule(ctx, owner.ID, id, keyword); err != nil {
					return fmt.Errorf("failed to update rule: %w", err)
				}
				writeLine(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Rule %d now matches %q", id, keyword)))
				return nil
			})
		},
	}
}

func deleteRuleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withOwner(cmd, func(ctx context.Context, store *storage.SQLiteStorage, owner *model.User) error {
				if err := store.DeleteRule(ctx, owner.ID, id); err != nil {
					return fmt.Errorf("failed to delete rule: %w", err)
				}
				writeLine(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Deleted rule %d", id)))
				return nil
			})
		},
	}
}

func importRulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <rules.yaml>",
		Short: "Create categories and rules from a YAML file",
		Long: `Create categories and keyword rules from a YAML rule set:

  categories:
    - name: Groceries
      keywords: ["valley supermarket", "save on foods"]
    - name: Subscriptions
      keywords: ["netflix.com", "hp *instant ink"]

Existing categories are reused and keywords already present are skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			set, err := config.LoadRuleSet(args[0])
			if err != nil {
				return err
			}

			return withOwner(cmd, func(ctx context.Context, store *storage.SQLiteStorage, owner *model.User) error {
				var stats config.ApplyStats
				err := inTransaction(ctx, store, func(tx service.Transaction) error {
					var err error
					stats, err = config.ApplyRuleSet(ctx, tx, owner.ID, set)
					return err
				})
				if err != nil {
					return err
				}

				writeLine(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf(
					"Imported %s: %d categories created, %d rules created, %d already present",
					args[0], stats.CategoriesCreated, stats.RulesCreated, stats.RulesSkipped)))
				return nil
			})
		},
	}
}

func testRulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test <description>",
		Short: "Show which rules match a description",
		Example: `  tally rules test "RED SWAN PIZZA #12 CHILLIWACK"`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOwner(cmd, func(ctx context.Context, store *storage.SQLiteStorage, owner *model.User) error {
				matcher, err := pattern.NewResolver(store).MatcherFor(ctx, owner.ID)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				suggestions := matcher.Explain(args[0])
				if len(suggestions) == 0 {
					writeLine(out, cli.FormatWarning("No rule matches; the transaction would stay uncategorized."))
					return nil
				}

				for _, s := range suggestions {
					line := fmt.Sprintf("%d. %s (rule %d: %s)", s.Rank, s.Category, s.RuleID, s.Reason)
					if s.Rank == 1 {
						writeLine(out, cli.FormatSuccess(line))
					} else {
						writeLine(out, "  "+cli.SubtleStyle.Render(line))
					}
				}
				return nil
			})
		},
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, common.NewUserError(fmt.Sprintf("%q is not a valid id", s), common.ErrInvalidInput)
	}
	return id, nil
}
