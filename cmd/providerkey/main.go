package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"posterstudio/internal/infra"
	"posterstudio/internal/infra/credentials"
)

func main() {
	_ = godotenv.Load()

	var (
		keyFlag   string
		labelFlag string
	)
	flag.StringVar(&keyFlag, "key", "", "image provider API key (falls back to PROVIDER_API_KEY)")
	flag.StringVar(&labelFlag, "label", "", "optional note stored next to the key")
	flag.Parse()

	key := strings.TrimSpace(keyFlag)
	if key == "" {
		key = strings.TrimSpace(os.Getenv("PROVIDER_API_KEY"))
	}
	if key == "" {
		fmt.Fprintln(os.Stderr, "provider API key is required via -key or PROVIDER_API_KEY")
		os.Exit(1)
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create pool: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	logger := infra.NewLogger("cli", false).With().Str("cmd", "providerkey").Logger()
	store := credentials.NewStore(infra.NewSQLRunner(pool, logger))

	props := map[string]any{
		"rotated_at": time.Now().UTC().Format(time.RFC3339),
	}
	if label := strings.TrimSpace(labelFlag); label != "" {
		props["label"] = label
	}

	ctxExec, cancelExec := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelExec()
	if err := store.SetProviderAPIKey(ctxExec, key, props); err != nil {
		fmt.Fprintf(os.Stderr, "failed to persist provider api key: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("image provider API key stored successfully")
}
