package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"courier-dashboard/internal/domain"
	"courier-dashboard/internal/seed"
	"courier-dashboard/internal/service"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the built-in directory users and compliance records",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		return seed.Apply(cmd.Context(), a.users, a.records, a.logger)
	},
}

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Administer the credential directory",
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List directory users",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		users, err := service.NewUserService(a.users).List(cmd.Context())
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "LOGIN\tNAME\tROLE\tCOURIER")
		for _, u := range users {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", u.LoginID, u.DisplayName, u.Role, u.CourierID)
		}
		return w.Flush()
	},
}

var usersAddCmd = &cobra.Command{
	Use:   "add <login-id>",
	Short: "Add a directory user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		secret, _ := flags.GetString("secret")
		name, _ := flags.GetString("name")
		role, _ := flags.GetString("role")
		courierID, _ := flags.GetString("courier-id")
		if secret == "" {
			secret = os.Getenv("COURIER_NEW_USER_SECRET")
		}

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		user, err := service.NewUserService(a.users).Register(cmd.Context(), service.NewUser{
			LoginID:     args[0],
			Secret:      secret,
			DisplayName: name,
			Role:        domain.Role(role),
			CourierID:   courierID,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "added %s (%s)\n", user.LoginID, user.Role)
		return nil
	},
}

func init() {
	usersAddCmd.Flags().String("secret", "", "login secret (or COURIER_NEW_USER_SECRET)")
	usersAddCmd.Flags().String("name", "", "display name")
	usersAddCmd.Flags().String("role", string(domain.RoleCourier), "admin, manager, supervisor or courier")
	usersAddCmd.Flags().String("courier-id", "", "courier id, required for couriers")

	usersCmd.AddCommand(usersListCmd, usersAddCmd)
}
