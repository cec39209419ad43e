package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/lib/pq"

	"productshot/internal/infra"
	"productshot/internal/sqlinline"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "print the schema instead of applying it")
	flag.Parse()

	_ = godotenv.Load()

	if *dryRun {
		fmt.Print(sqlinline.Schema)
		return
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		exitWithError(errors.New("DATABASE_URL is required"))
	}
	logger := infra.NewLogger("cli").With().Str("cmd", "migrate").Logger()

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		exitWithError(fmt.Errorf("open database: %w", err))
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	start := time.Now()
	if _, err := db.ExecContext(ctx, sqlinline.Schema); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			logger.Error().
				Str("code", string(pqErr.Code)).
				Str("detail", pqErr.Detail).
				Str("where", pqErr.Where).
				Msg("schema statement failed")
		}
		exitWithError(fmt.Errorf("apply schema: %w", err))
	}
	logger.Info().Dur("took", time.Since(start)).Msg("schema applied")
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
