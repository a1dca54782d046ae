package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/entreepos/entree-web/internal/database"
)

var seedPassword string

var seedUsersCmd = &cobra.Command{
	Use:   "seed-users",
	Short: "Recreate the root admin user in the entree and entree_test realms",
	Long: `Drops and recreates user "root" with the userAdmin role in the entree
and entree_test realms. Safe to run repeatedly.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		password := seedPassword
		if password == "" {
			password = os.Getenv("ENTREE_SEED_PASSWORD")
		}
		if password == "" {
			return errors.New("a password is required (--password or ENTREE_SEED_PASSWORD)")
		}

		path := cfg.DatabasePath
		if path == "" {
			p, err := defaultDatabasePath()
			if err != nil {
				return err
			}
			path = p
		}

		db, err := database.NewDatabase(path)
		if err != nil {
			return err
		}
		defer db.Close()

		users, err := db.SeedUsers(cmd.Context(), database.DefaultSeedSpecs(password))
		if err != nil {
			return err
		}
		for _, u := range users {
			logger.Info("Seeded user",
				zap.String("realm", u.Realm),
				zap.String("user", u.Username),
				zap.String("id", u.ID))
			fmt.Fprintf(cmd.OutOrStdout(), "%s/%s\t%s\n", u.Realm, u.Username, u.ID)
		}
		return nil
	},
}

func init() {
	seedUsersCmd.Flags().StringVar(&seedPassword, "password", "", "password for the seeded users")
}
