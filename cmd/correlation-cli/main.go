package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nourish-clinic/platform/pkg/common/config"
	"github.com/nourish-clinic/platform/pkg/common/database"
	"github.com/nourish-clinic/platform/pkg/common/logger"
	"github.com/nourish-clinic/platform/pkg/common/tenant"
	"github.com/nourish-clinic/platform/pkg/correlation"
	"github.com/nourish-clinic/platform/pkg/gateway/auth"
	"github.com/spf13/cobra"
)

var (
	openPostgres  = database.GetPostgres
	closePostgres = database.ClosePostgres
)

func main() {
	logger.Init()

	rootCmd := &cobra.Command{
		Use:          "correlation-cli",
		Short:        "Run the food-symptom correlation engine against the clinic database",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String("tenant", "", "Tenant identifier (defaults to DEFAULT_TENANT)")

	rootCmd.AddCommand(reportCmd())
	rootCmd.AddCommand(correlateCmd())
	rootCmd.AddCommand(backfillCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(tokenCmd())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print the correlation report of a patient",
		RunE: func(cmd *cobra.Command, args []string) error {
			patientID, _ := cmd.Flags().GetString("patient")
			svc, scope, cleanup, err := setup(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			report, err := svc.GetCorrelationReport(cmd.Context(), scope, patientID)
			if err != nil {
				return err
			}
			return printJSON(report)
		},
	}
	cmd.Flags().String("patient", "", "Patient id")
	_ = cmd.MarkFlagRequired("patient")
	return cmd
}

func correlateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "correlate",
		Short: "Score the meals preceding a symptom event and store the correlations",
		RunE: func(cmd *cobra.Command, args []string) error {
			symptomID, _ := cmd.Flags().GetString("symptom")
			svc, scope, cleanup, err := setup(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			result, err := svc.RunCorrelation(cmd.Context(), scope, symptomID)
			if err != nil {
				return fmt.Errorf("%d correlations written before failure: %w", result.CorrelationsCreated, err)
			}
			return printJSON(result)
		},
	}
	cmd.Flags().String("symptom", "", "Symptom event id")
	_ = cmd.MarkFlagRequired("symptom")
	return cmd
}

func backfillCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Re-run the event correlator for a patient's recent symptom events",
		RunE: func(cmd *cobra.Command, args []string) error {
			patientID, _ := cmd.Flags().GetString("patient")
			svc, scope, cleanup, err := setup(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			result, err := svc.Backfill(cmd.Context(), scope, patientID)
			if err != nil {
				return fmt.Errorf("backfill stopped after %d events: %w", result.SymptomEvents, err)
			}
			return printJSON(result)
		},
	}
	cmd.Flags().String("patient", "", "Patient id")
	_ = cmd.MarkFlagRequired("patient")
	return cmd
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the correlation table",
		RunE: func(cmd *cobra.Command, args []string) error {
			withReadModels, _ := cmd.Flags().GetBool("read-models")
			db, err := openPostgres(config.Load())
			if err != nil {
				return err
			}
			defer closePostgres()

			repo := correlation.NewGormRepository(db)
			if err := repo.AutoMigrate(); err != nil {
				return err
			}
			if withReadModels {
				if err := repo.AutoMigrateReadModels(); err != nil {
					return err
				}
			}
			logger.Log.Info("migrations applied")
			return nil
		},
	}
	cmd.Flags().Bool("read-models", false, "Also create patients, symptom_logs, meals, meal_items and foods (local development)")
	return cmd
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed API token for local development",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			subject, _ := cmd.Flags().GetString("subject")
			role, _ := cmd.Flags().GetString("role")
			scope, err := resolveScope(cmd, cfg)
			if err != nil {
				return err
			}

			manager, err := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTTTL)
			if err != nil {
				return err
			}
			token, err := manager.IssueToken(auth.Principal{Subject: subject, TenantID: scope.TenantID, Role: role})
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().String("subject", "local-dev", "Token subject")
	cmd.Flags().String("role", "practitioner", "Role claim")
	return cmd
}

// setup opens the database and builds the service. The returned cleanup
// closes the connection pool and must be deferred by the caller.
func setup(cmd *cobra.Command) (*correlation.Service, tenant.Scope, func(), error) {
	cfg := config.Load()
	scope, err := resolveScope(cmd, cfg)
	if err != nil {
		return nil, tenant.Scope{}, nil, err
	}

	db, err := openPostgres(cfg)
	if err != nil {
		return nil, tenant.Scope{}, nil, err
	}
	cleanup := func() {
		if err := closePostgres(); err != nil {
			logger.Log.WithError(err).Warn("failed to close postgres")
		}
	}

	catalog, err := correlation.LoadSensitivityCatalog(cfg.SensitivityCatalogPath)
	if err != nil {
		cleanup()
		return nil, tenant.Scope{}, nil, fmt.Errorf("loading sensitivity catalog: %w", err)
	}

	repo := correlation.NewGormRepository(db)
	return correlation.NewService(repo, correlation.NewAggregator(catalog, cfg.Location())), scope, cleanup, nil
}

func resolveScope(cmd *cobra.Command, cfg *config.Config) (tenant.Scope, error) {
	tenantID, _ := cmd.Flags().GetString("tenant")
	if tenantID == "" {
		tenantID = cfg.DefaultTenant
	}
	return tenant.New(tenantID)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
