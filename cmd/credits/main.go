package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"productshot/internal/adapter/repo"
	"productshot/internal/domain"
	"productshot/internal/infra"
	"productshot/internal/ledger"
)

func main() {
	var (
		userFlag    string
		amountFlag  int64
		reasonFlag  string
		refTypeFlag string
		refIDFlag   string
		historyFlag int
	)

	flag.StringVar(&userFlag, "user", "", "user ID to credit or inspect")
	flag.Int64Var(&amountFlag, "amount", 0, "credits to grant (omit to only print the balance)")
	flag.StringVar(&reasonFlag, "reason", string(domain.ReasonAdminAdjustment), "grant reason (subscription_reset, bonus, admin_adjustment, overage_purchase)")
	flag.StringVar(&refTypeFlag, "ref-type", "", "optional reference type, e.g. invoice")
	flag.StringVar(&refIDFlag, "ref-id", "", "optional reference id")
	flag.IntVar(&historyFlag, "history", 10, "number of recent entries to print")
	flag.Parse()

	_ = godotenv.Load()

	userID := strings.TrimSpace(userFlag)
	if userID == "" {
		exitWithError(errors.New("-user is required"))
	}
	reason, ok := domain.ParseLedgerReason(strings.TrimSpace(strings.ToLower(reasonFlag)))
	if !ok || reason == domain.ReasonGenerationSpend {
		exitWithError(fmt.Errorf("unsupported reason %q", reasonFlag))
	}
	if amountFlag < 0 {
		exitWithError(errors.New("-amount must be positive; debits only happen through generations"))
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		exitWithError(errors.New("DATABASE_URL is required"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		exitWithError(fmt.Errorf("failed to connect database: %w", err))
	}
	defer pool.Close()

	logger := infra.NewLogger("cli").With().Str("cmd", "credits").Logger()
	l := ledger.New(repo.NewLedgerRepository(infra.NewSQLRunner(pool, logger)), logger)

	if amountFlag > 0 {
		entry, err := l.Grant(ctx, userID, amountFlag, reason, strings.TrimSpace(refTypeFlag), strings.TrimSpace(refIDFlag))
		if err != nil {
			exitWithError(fmt.Errorf("failed to grant credits: %w", err))
		}
		fmt.Printf("Granted %d credits to %s (%s, entry %s)\n", entry.Delta, userID, entry.Reason, entry.ID)
	}

	balance, err := l.Balance(ctx, userID)
	if err != nil {
		exitWithError(fmt.Errorf("failed to load balance: %w", err))
	}
	fmt.Printf("balance=%d\n", balance)

	if historyFlag <= 0 {
		return
	}
	entries, err := l.Entries(ctx, userID, historyFlag)
	if err != nil {
		exitWithError(fmt.Errorf("failed to load entries: %w", err))
	}
	for _, e := range entries {
		ref := ""
		if e.RefType != "" || e.RefID != "" {
			ref = " " + e.RefType + ":" + e.RefID
		}
		fmt.Printf("%s %+d %s%s\n", e.CreatedAt.Format(time.RFC3339), e.Delta, e.Reason, ref)
	}
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
