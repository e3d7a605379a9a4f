// Command seeder signs in as a user and loads demo leads, clients, deals and
// tasks from a YAML fixtures file into that user's account.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/unclebandit/aidplug-crm/internal/backend/postgres"
	"github.com/unclebandit/aidplug-crm/internal/backend/supabase"
	"github.com/unclebandit/aidplug-crm/internal/config"
	"github.com/unclebandit/aidplug-crm/internal/db"
	"github.com/unclebandit/aidplug-crm/internal/logging"
	"github.com/unclebandit/aidplug-crm/internal/model"
	"github.com/unclebandit/aidplug-crm/internal/repository"
)

// Fixtures is the layout of the seed file. Each record is a column map.
// A task may give due_in_days instead of due_date, counted from today.
type Fixtures struct {
	Leads   []map[string]any `yaml:"leads"`
	Clients []map[string]any `yaml:"clients"`
	Deals   []map[string]any `yaml:"deals"`
	Tasks   []map[string]any `yaml:"tasks"`
}

var (
	seedFile string
	email    string
	password string
)

var rootCmd = &cobra.Command{
	Use:   "seeder",
	Short: "Load demo CRM records for a user",
	Long: `Signs in with the given credentials and inserts the records listed in the
fixtures file. With DATABASE_URL set the rows are written directly to Postgres.`,
	RunE: runSeed,
}

func init() {
	rootCmd.Flags().StringVarP(&seedFile, "file", "f", "seed/fixtures.yaml", "fixtures file")
	rootCmd.Flags().StringVar(&email, "email", os.Getenv("CRM_SEED_EMAIL"), "account email (default $CRM_SEED_EMAIL)")
	rootCmd.Flags().StringVar(&password, "password", os.Getenv("CRM_SEED_PASSWORD"), "account password (default $CRM_SEED_PASSWORD)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runSeed(cmd *cobra.Command, _ []string) error {
	if email == "" || password == "" {
		return fmt.Errorf("--email and --password are required")
	}
	fx, err := loadFixtures(seedFile, time.Now())
	if err != nil {
		return err
	}

	cfg, _, err := config.Load()
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	client := supabase.New(cfg.SupabaseURL, cfg.SupabaseAnonKey, supabase.WithTimeout(cfg.RequestTimeout))
	auth := supabase.NewAuth(client, nil, nil, logger)
	sess, err := auth.SignIn(ctx, email, password)
	if err != nil {
		return fmt.Errorf("sign in: %w", err)
	}
	defer auth.SignOut(ctx)

	tables := supabase.NewTables(client, auth)
	if cfg.DatabaseURL != "" {
		conn, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer conn.Close()
		tables = postgres.NewTables(conn, repository.StaticPrincipal(sess.User.ID))
	}

	n, err := seed(ctx, tables, fx)
	if err != nil {
		return err
	}
	logger.Info("seeding completed", zap.String("user_id", sess.User.ID), zap.Int("records", n))
	fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d records for %s\n", n, email)
	return nil
}

// loadFixtures reads path and normalises dates relative to now.
func loadFixtures(path string, now time.Time) (Fixtures, error) {
	var fx Fixtures
	data, err := os.ReadFile(path)
	if err != nil {
		return fx, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &fx); err != nil {
		return fx, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	today := model.DateOf(now)
	for _, rows := range [][]map[string]any{fx.Leads, fx.Clients, fx.Deals, fx.Tasks} {
		for _, row := range rows {
			for k, v := range row {
				// explicit !!timestamp values decode as time.Time
				if t, ok := v.(time.Time); ok {
					row[k] = model.DateOf(t).String()
				}
			}
		}
	}
	for _, row := range fx.Tasks {
		if days, ok := row["due_in_days"].(int); ok {
			row["due_date"] = today.AddDays(days).String()
			delete(row, "due_in_days")
		}
	}
	return fx, nil
}

// seed inserts every fixture and returns how many records were created.
func seed(ctx context.Context, t repository.Tables, fx Fixtures) (int, error) {
	n := 0
	steps := []struct {
		table string
		rows  []map[string]any
		ins   func(ctx context.Context, values any) error
	}{
		{repository.TableLeads, fx.Leads, func(ctx context.Context, v any) error { _, err := t.Leads.Insert(ctx, v); return err }},
		{repository.TableClients, fx.Clients, func(ctx context.Context, v any) error { _, err := t.Clients.Insert(ctx, v); return err }},
		{repository.TableDeals, fx.Deals, func(ctx context.Context, v any) error { _, err := t.Deals.Insert(ctx, v); return err }},
		{repository.TableTasks, fx.Tasks, func(ctx context.Context, v any) error { _, err := t.Tasks.Insert(ctx, v); return err }},
	}
	for _, s := range steps {
		for i, row := range s.rows {
			if err := s.ins(ctx, row); err != nil {
				return n, fmt.Errorf("insert %s #%d: %w", s.table, i+1, err)
			}
			n++
		}
	}
	return n, nil
}
