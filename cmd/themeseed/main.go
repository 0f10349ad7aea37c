package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"posterstudio/internal/domain"
	"posterstudio/internal/infra"
	"posterstudio/internal/sqlinline"
)

// seedTheme is one entry of the seed file. Fields follow the admin API.
type seedTheme struct {
	Slug           string  `json:"slug"`
	Name           string  `json:"name"`
	PromptTemplate string  `json:"prompt_template"`
	IsActive       *bool   `json:"is_active"`
	AccessTier     *string `json:"access_tier"`
	SortOrder      *int    `json:"sort_order"`
}

func main() {
	_ = godotenv.Load()

	var (
		fileFlag   string
		dryRunFlag bool
	)
	flag.StringVar(&fileFlag, "file", "", "JSON file with an array of themes (- for stdin)")
	flag.BoolVar(&dryRunFlag, "dry-run", false, "validate the file without writing")
	flag.Parse()

	if strings.TrimSpace(fileFlag) == "" {
		exitWithError(errors.New("-file is required"))
	}

	themes, err := readSeedFile(fileFlag)
	if err != nil {
		exitWithError(err)
	}
	inputs, err := toInputs(themes)
	if err != nil {
		exitWithError(err)
	}
	if dryRunFlag {
		fmt.Printf("%d themes valid\n", len(inputs))
		return
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		exitWithError(errors.New("DATABASE_URL is required"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		exitWithError(fmt.Errorf("failed to connect database: %w", err))
	}
	defer pool.Close()

	logger := infra.NewLogger("cli", false).With().Str("cmd", "themeseed").Logger()
	runner := infra.NewSQLRunner(pool, logger)

	inserted, updated, err := seed(ctx, runner, inputs)
	if err != nil {
		exitWithError(err)
	}
	fmt.Printf("themes seeded: %d inserted, %d updated\n", inserted, updated)
}

func readSeedFile(path string) ([]seedTheme, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open seed file: %w", err)
		}
		defer f.Close()
		r = f
	}
	var themes []seedTheme
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&themes); err != nil {
		return nil, fmt.Errorf("failed to decode seed file: %w", err)
	}
	if len(themes) == 0 {
		return nil, errors.New("seed file has no themes")
	}
	return themes, nil
}

// toInputs applies the same validation and defaults as the admin create
// endpoint and rejects duplicate slugs within the file.
func toInputs(themes []seedTheme) ([]domain.ThemeInput, error) {
	seen := make(map[string]bool, len(themes))
	inputs := make([]domain.ThemeInput, 0, len(themes))
	for i, t := range themes {
		slug, name, tpl := strings.TrimSpace(t.Slug), strings.TrimSpace(t.Name), t.PromptTemplate
		in := domain.ThemeInput{
			Slug:           &slug,
			Name:           &name,
			PromptTemplate: &tpl,
			IsActive:       t.IsActive,
			SortOrder:      t.SortOrder,
		}
		if t.AccessTier != nil {
			tier := domain.AccessTier(strings.TrimSpace(*t.AccessTier))
			in.AccessTier = &tier
		}
		if err := in.ValidateForCreate(); err != nil {
			return nil, fmt.Errorf("theme #%d (%s): %w", i+1, slug, err)
		}
		if seen[slug] {
			return nil, fmt.Errorf("theme #%d: duplicate slug %q", i+1, slug)
		}
		seen[slug] = true
		inputs = append(inputs, in)
	}
	return inputs, nil
}

func seed(ctx context.Context, sql infra.SQLExecutor, inputs []domain.ThemeInput) (inserted, updated int, err error) {
	for _, in := range inputs {
		var wasInserted bool
		row := sql.QueryRow(ctx, sqlinline.QUpsertThemeBySlug,
			*in.Slug, *in.Name, *in.PromptTemplate, *in.IsActive, string(*in.AccessTier), *in.SortOrder)
		if err := row.Scan(&wasInserted); err != nil {
			return inserted, updated, fmt.Errorf("failed to upsert theme %s: %w", *in.Slug, err)
		}
		if wasInserted {
			inserted++
		} else {
			updated++
		}
	}
	return inserted, updated, nil
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
