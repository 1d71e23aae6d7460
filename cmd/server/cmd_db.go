package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/orderdesk/internal/services"
)

// orderdesk migrate: create tables (SQL) or indexes (Mongo) and exit.
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Prepare the database schema and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.close()
		fmt.Println("✅  Schema is up to date")
		return nil
	},
}

// orderdesk sweep: finalize stale processing orders once.
var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one auto-finalize sweep and print how many orders moved",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.close()

		orders := services.NewOrderService(rt.store, nil, rt.log)
		moved, err := orders.AutoFinalizeSweep(cmd.Context())
		fmt.Printf("finalized %d order(s)\n", moved)
		return err
	},
}

var adminName, adminEmail, adminPassword string

// orderdesk create-admin: create an admin account or promote an existing one.
var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create an admin account, or promote the account with that email",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.close()

		users := services.NewUserService(rt.store, rt.authConfig(), rt.log)
		user, created, err := users.EnsureAdmin(cmd.Context(), adminName, adminEmail, adminPassword)
		if err != nil {
			return err
		}
		if created {
			fmt.Printf("✅  Created admin %s (%s)\n", user.Email, user.ID)
		} else {
			fmt.Printf("✅  %s (%s) is an admin\n", user.Email, user.ID)
		}
		return nil
	},
}

func init() {
	createAdminCmd.Flags().StringVar(&adminName, "name", "Administrator", "display name for a new account")
	createAdminCmd.Flags().StringVar(&adminEmail, "email", "", "account email")
	createAdminCmd.Flags().StringVar(&adminPassword, "password", "", "password for a new account")
	_ = createAdminCmd.MarkFlagRequired("email")
}
