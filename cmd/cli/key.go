package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	appservice "github.com/wrensec/keygate/internal/application/service"
	"github.com/wrensec/keygate/internal/config"
	"github.com/wrensec/keygate/internal/domain/repository"
	domainservice "github.com/wrensec/keygate/internal/domain/service"
	"github.com/wrensec/keygate/internal/infrastructure/persistence/postgres"
	persistredis "github.com/wrensec/keygate/internal/infrastructure/persistence/redis"
	storeredis "github.com/wrensec/keygate/internal/infrastructure/redis"
	"github.com/wrensec/keygate/pkg/constants"
	"github.com/wrensec/keygate/pkg/logger"
)

// adminContext bundles the stores the key commands operate on.
type adminContext struct {
	simple domainservice.KeyStore
	signed domainservice.KeyStore
	repo   repository.AccessKeyRepository
	close  func()
}

func newAdminContext() (*adminContext, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	log := logger.NewDefaultLogger()

	db, err := postgres.NewDBConnection(&cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	redisConn, err := persistredis.NewConnection(&cfg.Redis, log)
	if err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	repo := postgres.NewAccessKeyRepository(db)
	keyCache := storeredis.NewKeyCache(redisConn.Client, cfg.Signing.StoreTimeout())
	nonceStore := storeredis.NewNonceStore(redisConn.Client, cfg.Signing.StoreTimeout())
	guard := domainservice.NewReplayGuard(nonceStore, cfg.Signing.TimestampDisparity(), cfg.Signing.NonceTTL(), log)

	return &adminContext{
		simple: appservice.NewSimpleKeyStore(repo, keyCache, time.Minute, log),
		signed: appservice.NewSignedKeyStore(repo, keyCache, guard, nil, time.Minute, log),
		repo:   repo,
		close:  func() { _ = redisConn.Close() },
	}, nil
}

func (a *adminContext) storeFor(strategy string) (domainservice.KeyStore, error) {
	switch constants.AuthStrategy(strategy) {
	case constants.StrategySimple:
		return a.simple, nil
	case constants.StrategySigned:
		return a.signed, nil
	}
	return nil, fmt.Errorf("unknown strategy %q (want simple or signed)", strategy)
}

func init() {
	keyCmd := &cobra.Command{
		Use:   "key",
		Short: "Manage api keys",
	}

	addCmd := &cobra.Command{
		Use:   "add <key>",
		Short: "Register a new api key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			strategy, _ := cmd.Flags().GetString("strategy")
			secret, _ := cmd.Flags().GetString("secret")

			admin, err := newAdminContext()
			if err != nil {
				return err
			}
			defer admin.close()

			store, err := admin.storeFor(strategy)
			if err != nil {
				return err
			}
			if err := store.AddKey(cmd.Context(), args[0], secret); err != nil {
				return err
			}
			fmt.Printf("added %s key %s\n", strategy, args[0])
			return nil
		},
	}
	addCmd.Flags().String("strategy", string(constants.StrategySigned), "key strategy: simple or signed")
	addCmd.Flags().String("secret", "", "signing secret (signed strategy only)")

	removeCmd := &cobra.Command{
		Use:   "remove <key>",
		Short: "Revoke an api key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			strategy, _ := cmd.Flags().GetString("strategy")

			admin, err := newAdminContext()
			if err != nil {
				return err
			}
			defer admin.close()

			store, err := admin.storeFor(strategy)
			if err != nil {
				return err
			}
			if err := store.RemoveKey(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("removed key %s\n", args[0])
			return nil
		},
	}
	removeCmd.Flags().String("strategy", string(constants.StrategySigned), "key strategy: simple or signed")

	rotateCmd := &cobra.Command{
		Use:   "rotate <key>",
		Short: "Rotate the secret of a signed key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, _ := cmd.Flags().GetString("secret")
			if secret == "" {
				return fmt.Errorf("--secret is required")
			}

			admin, err := newAdminContext()
			if err != nil {
				return err
			}
			defer admin.close()

			if err := admin.signed.UpdateKey(cmd.Context(), args[0], secret); err != nil {
				return err
			}
			fmt.Printf("rotated secret for key %s\n", args[0])
			return nil
		},
	}
	rotateCmd.Flags().String("secret", "", "new signing secret")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List registered api keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			admin, err := newAdminContext()
			if err != nil {
				return err
			}
			defer admin.close()

			for _, strategy := range []constants.AuthStrategy{constants.StrategySimple, constants.StrategySigned} {
				records, err := admin.repo.ListByStrategy(cmd.Context(), strategy)
				if err != nil {
					return err
				}
				for _, record := range records {
					fmt.Printf("%-8s %s", record.Strategy, record.Key)
					if record.Remark != "" {
						fmt.Printf("  # %s", record.Remark)
					}
					fmt.Println()
				}
			}
			return nil
		},
	}

	keyCmd.AddCommand(addCmd, removeCmd, rotateCmd, listCmd)
	rootCmd.AddCommand(keyCmd)
}
