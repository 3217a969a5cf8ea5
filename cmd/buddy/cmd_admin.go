package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/buddyengineerz/storefront/app/cart"
	"github.com/buddyengineerz/storefront/app/services"
	"github.com/buddyengineerz/storefront/pkg/apperr"
	"github.com/buddyengineerz/storefront/pkg/auth"
	"github.com/buddyengineerz/storefront/pkg/cache"
	"github.com/buddyengineerz/storefront/pkg/database"
)

var adminRoleFlag string

// buddy admin:grant <email>
var adminGrantCmd = &cobra.Command{
	Use:   "admin:grant <email>",
	Short: "Give a registered user an admin role",
	Long:  "admin:grant bootstraps the first super admin. Later grants can go through /admin/admins.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := bootDB(); err != nil {
			return err
		}
		defer database.Close()

		svc := services.New(database.DB, cache.NewMemory(), cart.NewMemoryStore(), services.DefaultPricingRules())
		grant, err := svc.Auth.Grant(cmd.Context(), services.GrantInput{Email: args[0], Role: adminRoleFlag})
		if err != nil {
			msg, fields := apperr.Public(err)
			for f, m := range fields {
				msg += fmt.Sprintf("\n  %s: %s", f, m)
			}
			return fmt.Errorf("grant failed: %s", msg)
		}
		fmt.Printf("%s is now %s (user %d).\n", args[0], grant.Role, grant.UserID)
		return nil
	},
}

func init() {
	adminGrantCmd.Flags().StringVar(&adminRoleFlag, "role", auth.RoleSuperAdmin, "admin or super_admin")
}
