package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/redmonkez12/propertyhub-identity/cmd/identityctl/ui"
	"github.com/redmonkez12/propertyhub-identity/internal/auth"
	"github.com/redmonkez12/propertyhub-identity/internal/config"
	"github.com/redmonkez12/propertyhub-identity/internal/database"
)

const minPasswordLength = 8

func main() {
	rootCmd := &cobra.Command{
		Use:          "identityctl",
		Short:        "Operator tooling for the PropertyHub identity service",
		SilenceUsage: true,
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the identities table or Mongo indexes for the configured store",
		RunE:  runMigrate,
	}

	hashCmd := &cobra.Command{
		Use:   "hash-password",
		Short: "Print an argon2id hash for seeding an account",
		RunE:  runHashPassword,
	}
	// Flags for non-interactive mode (CI/scripting)
	hashCmd.Flags().String("password", "", "Password to hash (prompted when omitted)")

	inspectCmd := &cobra.Command{
		Use:   "inspect-token <token>",
		Short: "Validate a session token with the configured key and print its claims",
		Args:  cobra.ExactArgs(1),
		RunE:  runInspectToken,
	}

	rootCmd.AddCommand(migrateCmd, hashCmd, inspectCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		ui.PrintError(err.Error())
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	switch cfg.Store.Driver {
	case config.StoreDriverPostgres:
		db, err := database.OpenPostgres(ctx, cfg.Database.ConnectionString())
		if err != nil {
			ui.PrintError(err.Error())
			return err
		}
		defer db.Close()

		if err := database.CreateSchema(ctx, db); err != nil {
			ui.PrintError(err.Error())
			return err
		}

	case config.StoreDriverMongo:
		client, err := database.OpenMongo(ctx, cfg.Mongo.URI)
		if err != nil {
			ui.PrintError(err.Error())
			return err
		}
		defer client.Disconnect(context.Background())

		if err := database.EnsureMongoIndexes(ctx, client.Database(cfg.Mongo.Database)); err != nil {
			ui.PrintError(err.Error())
			return err
		}

	default:
		fmt.Println("Memory store has no schema, nothing to do.")
		return nil
	}

	ui.PrintSuccess(fmt.Sprintf("Schema ready for %s store.", cfg.Store.Driver))
	return nil
}

func runHashPassword(cmd *cobra.Command, args []string) error {
	password, _ := cmd.Flags().GetString("password")

	if password == "" {
		prompted, err := ui.PromptPassword(minPasswordLength)
		if err != nil {
			return err
		}
		password = prompted
	}
	if len(password) < minPasswordLength {
		err := fmt.Errorf("password must be at least %d characters", minPasswordLength)
		ui.PrintError(err.Error())
		return err
	}

	hash, err := auth.NewArgon2Hasher(auth.DefaultArgon2Params).Hash(password)
	if err != nil {
		ui.PrintError(err.Error())
		return err
	}

	fmt.Println(hash)
	return nil
}

func runInspectToken(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		ui.PrintError(err.Error())
		return err
	}

	tokens, err := auth.NewTokenService(cfg.Auth.SessionFormat, cfg.Auth.SessionSecret, cfg.Auth.PasetoKey, cfg.Auth.SessionTTL)
	if err != nil {
		ui.PrintError(err.Error())
		return err
	}

	claims, err := tokens.VerifyToken(args[0])
	if err != nil {
		ui.PrintError(err.Error())
		return err
	}

	ui.PrintFields("Session claims", []ui.Field{
		{Label: "Format", Value: cfg.Auth.SessionFormat},
		{Label: "ID", Value: claims.ID.String()},
		{Label: "Email", Value: claims.Email},
		{Label: "Seller", Value: strconv.FormatBool(claims.IsSeller)},
		{Label: "Issued", Value: ui.FormatTime(claims.IssuedAt)},
		{Label: "Expires", Value: ui.FormatTime(claims.ExpiresAt)},
	})
	return nil
}
