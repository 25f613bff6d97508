package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/bensave/wallet/finance"
	"github.com/bensave/wallet/mobilemoney"
	"github.com/bensave/wallet/rates"
)

var (
	flagProvider string
	flagPhone    string
	flagApply    bool
	flagLimit    int
)

func init() {
	budgetCmd := &cobra.Command{Use: "budget", Short: "Manage the weekly budget"}
	budgetCmd.AddCommand(&cobra.Command{
		Use:   "set AMOUNT",
		Short: "Start a new budget week with AMOUNT to spend",
		Args:  cobra.ExactArgs(1),
		RunE:  runBudgetSet,
	})

	expenseCmd := &cobra.Command{Use: "expense", Short: "Log expenses"}
	expenseCmd.AddCommand(&cobra.Command{
		Use:   "add AMOUNT DESCRIPTION...",
		Short: "Log an expense against the weekly budget",
		Args:  cobra.MinimumNArgs(2),
		RunE:  runExpenseAdd,
	})

	goalCmd := &cobra.Command{Use: "goal", Short: "Manage the savings goal"}
	goalCmd.AddCommand(&cobra.Command{
		Use:   "set AMOUNT DEADLINE",
		Short: "Set a savings goal due on DEADLINE (YYYY-MM-DD)",
		Args:  cobra.ExactArgs(2),
		RunE:  runGoalSet,
	})

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show balance, budget and savings",
		Args:  cobra.NoArgs,
		RunE:  runStatus,
	}

	depositCmd := transferCommand(finance.Deposit, "Deposit to your wallet via mobile money")
	withdrawCmd := transferCommand(finance.Withdraw, "Withdraw from your wallet via mobile money")

	convertCmd := &cobra.Command{
		Use:   "convert AMOUNT CURRENCY",
		Short: "Convert foreign currency into cedis",
		Args:  cobra.ExactArgs(2),
		RunE:  runConvert,
	}
	convertCmd.Flags().BoolVar(&flagApply, "apply", false, "Add the converted amount to the balance without asking")

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent activity",
		Args:  cobra.NoArgs,
		RunE:  runHistory,
	}
	historyCmd.Flags().IntVarP(&flagLimit, "limit", "l", 20, "Number of entries, 0 for all")

	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Wipe the wallet and its activity",
		Args:  cobra.NoArgs,
		RunE:  runReset,
	}

	rootCmd.AddCommand(budgetCmd, expenseCmd, goalCmd, statusCmd, depositCmd, withdrawCmd, convertCmd, historyCmd, resetCmd)
}

func transferCommand(kind finance.TransferKind, short string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   kind.String() + " AMOUNT",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTransfer(cmd, kind, args[0])
		},
	}
	cmd.Flags().StringVar(&flagProvider, "provider", string(mobilemoney.MTN), "Provider: mtn, telecel or airtel-tigo")
	cmd.Flags().StringVar(&flagPhone, "phone", "", "Mobile money number (0xxxxxxxxx)")
	_ = cmd.MarkFlagRequired("phone")
	return cmd
}

// =============================================================================
// COMMANDS
// =============================================================================

func runStatus(cmd *cobra.Command, _ []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		view, err := a.session.View(ctx)
		if err != nil {
			return err
		}
		fmt.Print(renderView(view))
		return nil
	})
}

func runBudgetSet(cmd *cobra.Command, args []string) error {
	amount, err := finance.ParseAmount(args[0])
	if err != nil {
		return err
	}
	return withApp(cmd, func(ctx context.Context, a *app) error {
		view, err := a.session.SetWeeklyBudget(ctx, amount)
		if err != nil {
			return err
		}
		printNotice(finance.BudgetSetNotice(amount))
		fmt.Print(renderView(view))
		return nil
	})
}

func runExpenseAdd(cmd *cobra.Command, args []string) error {
	amount, err := finance.ParseAmount(args[0])
	if err != nil {
		return err
	}
	description := strings.Join(args[1:], " ")

	return withApp(cmd, func(ctx context.Context, a *app) error {
		result, err := a.session.AddExpense(ctx, amount, description, nil)

		var gate *finance.ConfirmationRequiredError
		if errors.As(err, &gate) {
			n := finance.NoticeFor(gate)
			ok, cerr := confirm(n.Title, n.Message)
			if cerr != nil {
				return cerr
			}
			if !ok {
				return finance.ErrExpenseDeclined
			}
			result, err = a.session.AddExpense(ctx, amount, description, finance.AlwaysConfirm)
		}
		if err != nil {
			return err
		}

		printNotice(finance.ExpenseAddedNotice(result))
		view, err := a.session.View(ctx)
		if err != nil {
			return err
		}
		fmt.Print(renderView(view))
		return nil
	})
}

func runGoalSet(cmd *cobra.Command, args []string) error {
	goal, err := finance.ParseAmount(args[0])
	if err != nil {
		return err
	}
	deadline, err := finance.ParseDeadline(args[1], time.Local)
	if err != nil {
		return err
	}
	return withApp(cmd, func(ctx context.Context, a *app) error {
		view, err := a.session.SetSavingsGoal(ctx, goal, deadline)
		if err != nil {
			return err
		}
		printNotice(finance.GoalSetNotice(goal))
		fmt.Print(renderView(view))
		return nil
	})
}

// runTransfer sends the prompt and waits for the simulated approval.
func runTransfer(cmd *cobra.Command, kind finance.TransferKind, rawAmount string) error {
	amount, err := finance.ParseAmount(rawAmount)
	if err != nil {
		return err
	}
	provider, err := mobilemoney.ParseProvider(flagProvider)
	if err != nil {
		return err
	}

	return withApp(cmd, func(ctx context.Context, a *app) error {
		t, err := a.session.StartTransfer(ctx, mobilemoney.Request{
			Provider:    provider,
			Kind:        kind,
			PhoneNumber: flagPhone,
			Amount:      amount,
		})
		if err != nil {
			return err
		}
		printNotice(t.Notice)
		fmt.Println()

		t, err = a.session.WaitTransfer(ctx, t.ID)
		if err != nil {
			return err
		}
		printNotice(t.Notice)
		return nil
	})
}

func runConvert(cmd *cobra.Command, args []string) error {
	amount, err := finance.ParseAmount(args[0])
	if err != nil {
		return err
	}
	currency := args[1]

	return withApp(cmd, func(ctx context.Context, a *app) error {
		conv, err := a.session.Convert(ctx, currency, amount)
		if err != nil {
			return err
		}

		fmt.Println(titleStyle.Render("Conversion") + "  " + labelStyle.Render(conv.Rate.SourceLabel()))
		fmt.Println(row("Amount", finance.FormatCurrency(conv.Amount)+" "+conv.Rate.Currency))
		fmt.Println(row("Rate", "1 "+conv.Rate.Currency+" = "+finance.FormatCedi(conv.Rate.Value)))
		fmt.Println(row("You get", finance.FormatCedi(conv.Converted)))
		fmt.Println()

		apply := flagApply
		if !apply {
			apply, err = confirm("Add to balance?", finance.FormatCedi(conv.Converted)+" will be added to your balance and savings.")
			if err != nil {
				return err
			}
		}
		if !apply {
			a.session.DiscardConversion()
			return nil
		}

		applied, err := a.session.ApplyConversion(ctx)
		if err != nil {
			return err
		}
		printNotice(rates.AppliedNotice(applied))
		return nil
	})
}

func runHistory(cmd *cobra.Command, _ []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		entries, err := a.session.Activity(ctx, flagLimit)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No activity yet.")
			return nil
		}
		for _, e := range entries {
			fmt.Println(row(e.At.Local().Format("Jan 02 15:04"), fmt.Sprintf("%-18s %12s  %-30s balance %s",
				e.Kind, finance.FormatCurrency(e.Amount), e.Description, finance.FormatCedi(e.BalanceAfter))))
		}
		fmt.Println(labelStyle.Render(strconv.Itoa(len(entries)) + " entries"))
		return nil
	})
}

func runReset(cmd *cobra.Command, _ []string) error {
	ok, err := confirm("Reset wallet?", "Balance, budget, savings and history will be erased.")
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	return withApp(cmd, func(ctx context.Context, a *app) error {
		if err := a.session.Reset(ctx); err != nil {
			return err
		}
		fmt.Println("Wallet reset.")
		return nil
	})
}
