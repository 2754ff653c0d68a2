package apps

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	appUsecases "github.com/opencat-io/opencat/internal/application/app/usecases"
	"github.com/opencat-io/opencat/internal/infrastructure/config"
	"github.com/opencat-io/opencat/internal/infrastructure/database"
	"github.com/opencat-io/opencat/internal/infrastructure/repository"
	"github.com/opencat-io/opencat/internal/shared/logger"
	"github.com/opencat-io/opencat/internal/shared/utils"
)

// createAppInput carries the flag values through validation. The CLI has no
// request binding layer, so validation tags are checked explicitly.
type createAppInput struct {
	Name              string `json:"name" validate:"required,min=1,max=100"`
	AppleBundleID     string `json:"apple_bundle_id" validate:"omitempty,max=255"`
	GooglePackageName string `json:"google_package_name" validate:"omitempty,max=255"`
}

var (
	env               string
	appName           string
	appleBundleID     string
	googlePackageName string
	appSID            string
	keyName           string
)

// NewCommand returns app administration commands. The HTTP app surface
// requires an API key, so the very first app and key have to come from here.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apps",
		Short: "App administration",
		Long:  `Create apps and issue API keys from the command line. Use this to bootstrap the first app; after that the HTTP API can do the same with a valid key.`,
	}

	cmd.PersistentFlags().StringVarP(&env, "env", "e", "development", "Environment (development, test, production)")

	cmd.AddCommand(
		newCreateCommand(),
		newIssueKeyCommand(),
	)

	return cmd
}

func newCreateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an app and issue its first API key",
		RunE:  runCreate,
	}

	cmd.Flags().StringVar(&appName, "name", "", "App display name (required)")
	cmd.Flags().StringVar(&appleBundleID, "apple-bundle-id", "", "Apple bundle ID for notification intake")
	cmd.Flags().StringVar(&googlePackageName, "google-package-name", "", "Google package name for notification intake")
	cmd.MarkFlagRequired("name")

	return cmd
}

func newIssueKeyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "issue-key",
		Short: "Issue a new API key for an existing app",
		RunE:  runIssueKey,
	}

	cmd.Flags().StringVar(&appSID, "app", "", "App ID (required)")
	cmd.Flags().StringVar(&keyName, "name", "default", "Key name")
	cmd.MarkFlagRequired("app")

	return cmd
}

func initEnv() (logger.Interface, error) {
	cfg, err := config.Load(env)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(&cfg.Logger); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	if err := database.Init(&cfg.Database); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return logger.NewLogger(), nil
}

func runCreate(cmd *cobra.Command, args []string) error {
	input := createAppInput{
		Name:              appName,
		AppleBundleID:     appleBundleID,
		GooglePackageName: googlePackageName,
	}
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}

	log, err := initEnv()
	if err != nil {
		return err
	}
	defer logger.Sync()
	defer database.Close()

	appRepo := repository.NewAppRepository(database.Get(), log)
	apiKeyRepo := repository.NewAPIKeyRepository(database.Get(), log)

	ctx := context.Background()

	created, err := appUsecases.NewCreateAppUseCase(appRepo, log).Execute(ctx, appUsecases.CreateAppCommand{
		Name:              appName,
		AppleBundleID:     appleBundleID,
		GooglePackageName: googlePackageName,
	})
	if err != nil {
		return fmt.Errorf("failed to create app: %w", err)
	}

	key, err := appUsecases.NewCreateAPIKeyUseCase(appRepo, apiKeyRepo, log).Execute(ctx, appUsecases.CreateAPIKeyCommand{
		AppSID: created.SID,
		Name:   "default",
	})
	if err != nil {
		return fmt.Errorf("failed to issue API key: %w", err)
	}

	fmt.Printf("\nApp created:\n")
	fmt.Printf("  ID:      %s\n", created.SID)
	fmt.Printf("  Name:    %s\n", created.Name)
	fmt.Printf("\nAPI key (shown once, store it now):\n")
	fmt.Printf("  %s\n", key.Key)

	return nil
}

func runIssueKey(cmd *cobra.Command, args []string) error {
	log, err := initEnv()
	if err != nil {
		return err
	}
	defer logger.Sync()
	defer database.Close()

	appRepo := repository.NewAppRepository(database.Get(), log)
	apiKeyRepo := repository.NewAPIKeyRepository(database.Get(), log)

	key, err := appUsecases.NewCreateAPIKeyUseCase(appRepo, apiKeyRepo, log).Execute(context.Background(), appUsecases.CreateAPIKeyCommand{
		AppSID: appSID,
		Name:   keyName,
	})
	if err != nil {
		return fmt.Errorf("failed to issue API key: %w", err)
	}

	fmt.Printf("\nAPI key for %s (shown once, store it now):\n", appSID)
	fmt.Printf("  %s\n", key.Key)

	return nil
}
