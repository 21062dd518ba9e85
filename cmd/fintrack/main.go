// ABOUTME: CLI for the fintrack personal-finance client
// ABOUTME: Lists and mutates accounts, expenses and incomes against the remote API

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/shopspring/decimal"

	"github.com/2389/fintrack/internal/client"
	"github.com/2389/fintrack/internal/config"
	"github.com/2389/fintrack/internal/entity"
	"github.com/2389/fintrack/internal/gateway"
	"github.com/2389/fintrack/internal/subscribe"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	configPath := os.Getenv("FINTRACK_CONFIG")
	if configPath == "" {
		configPath = "fintrack.yaml"
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	if cmd == "help" || cmd == "-h" || cmd == "--help" {
		printUsage()
		return
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
	logger := setupLogger(cfg.Logging)

	c, err := client.New(client.Config{
		BaseURL: cfg.API.BaseURL,
		Credentials: gateway.Credentials{
			Bearer:  cfg.API.Token,
			Refresh: cfg.API.RefreshToken,
		},
		Timeout:   cfg.API.Timeout,
		Retention: cfg.Cache.Retention,
		Retry: gateway.Policy{
			Attempts:  cfg.Retry.Attempts,
			BaseDelay: cfg.Retry.BaseDelay,
			MaxDelay:  cfg.Retry.MaxDelay,
		},
		Logger: logger,
	})
	if err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
	defer c.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case "accounts":
		err = cmdAccounts(ctx, c)
	case "expenses":
		err = cmdExpenses(ctx, c, args)
	case "add-expense":
		err = cmdAddExpense(ctx, c, args)
	case "delete":
		err = cmdDelete(ctx, c, args)
	case "restore":
		err = cmdRestore(ctx, c, args)
	case "watch":
		err = cmdWatch(ctx, c, args)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Usage: fintrack <command> [args]

Commands:
  accounts                      List bank accounts with balances
  expenses [account-id]         List expenses, optionally for one account
  add-expense <account-id> <amount> <description>
                                Create an expense
  delete <type> <id>            Soft-delete a record (e.g. delete expense e1)
  restore <type> <id>           Restore a soft-deleted record
  watch <type>                  Stream cache updates for a type's list
  help                          Show this help

Config is read from fintrack.yaml or $FINTRACK_CONFIG.`)
}

func cmdAccounts(ctx context.Context, c *client.Client) error {
	col, err := c.List(ctx, entity.TypeBankAccount, nil)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tBANK\tBALANCE\tREAL\tSTATUS")
	for _, rec := range col.Records {
		a, ok := rec.(*entity.BankAccount)
		if !ok {
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			a.ID, a.Name, a.Bank, a.Balance.StringFixed(2), a.RealBalance.StringFixed(2), statusString(a.Status))
	}
	return w.Flush()
}

func cmdExpenses(ctx context.Context, c *client.Client, args []string) error {
	params := url.Values{}
	if len(args) > 0 {
		params.Set("bank_account_id", args[0])
	}

	col, err := c.List(ctx, entity.TypeExpense, params)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDATE\tAMOUNT\tDESCRIPTION\tSTATUS")
	for _, rec := range col.Records {
		e, ok := rec.(*entity.Expense)
		if !ok {
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			e.ID, e.Date.Format("2006-01-02"), e.Amount.StringFixed(2), e.Description, statusString(e.Status))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("%d total\n", col.Count)
	return nil
}

func cmdAddExpense(ctx context.Context, c *client.Client, args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: add-expense <account-id> <amount> <description>")
	}
	amount, err := decimal.NewFromString(args[1])
	if err != nil {
		return fmt.Errorf("parsing amount %q: %w", args[1], err)
	}

	rec, err := c.Create(ctx, &entity.Expense{
		Description:   args[2],
		Amount:        amount,
		Date:          time.Now(),
		BankAccountID: args[0],
	})
	if err != nil {
		return err
	}
	color.Green("created expense %s", rec.RecordID())
	return nil
}

func cmdDelete(ctx context.Context, c *client.Client, args []string) error {
	t, id, err := parseTypeID(args)
	if err != nil {
		return err
	}
	if _, err := c.Delete(ctx, t, id); err != nil {
		return err
	}
	color.Yellow("deleted %s %s (restorable)", t, id)
	return nil
}

func cmdRestore(ctx context.Context, c *client.Client, args []string) error {
	t, id, err := parseTypeID(args)
	if err != nil {
		return err
	}
	if _, err := c.Restore(ctx, t, id); err != nil {
		return err
	}
	color.Green("restored %s %s", t, id)
	return nil
}

func cmdWatch(ctx context.Context, c *client.Client, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: watch <type>")
	}
	t := entity.Type(args[0])
	if !t.Valid() {
		return fmt.Errorf("%w: %q", entity.ErrUnknownType, args[0])
	}

	unsubscribe := c.Subscribe(ctx, t, nil, func(u subscribe.Update) {
		marker := color.GreenString("fresh")
		if u.Stale {
			marker = color.YellowString("stale")
		}
		if col, ok := u.Value.(*entity.Collection); ok {
			fmt.Printf("[%s] %s v%d: %d records\n", marker, u.Key, u.Version, len(col.Records))
		}
	})
	defer unsubscribe()

	<-ctx.Done()
	return nil
}

func parseTypeID(args []string) (entity.Type, string, error) {
	if len(args) < 2 {
		return "", "", fmt.Errorf("usage: <type> <id>")
	}
	t := entity.Type(args[0])
	if !t.Valid() {
		return "", "", fmt.Errorf("%w: %q", entity.ErrUnknownType, args[0])
	}
	return t, args[1], nil
}

func statusString(s entity.Status) string {
	switch s {
	case entity.StatusActive:
		return color.GreenString(string(s))
	case entity.StatusDeleted:
		return color.RedString(string(s))
	case entity.StatusPending:
		return color.YellowString(string(s))
	default:
		return string(s)
	}
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelWarn
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
