package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/sells-group/sample-labeler/internal/admin"
	"github.com/sells-group/sample-labeler/internal/model"
)

var (
	userName       string
	userPassword   string
	userRole       string
	userRealName   string
	userCategories []string
	userBrands     []string
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage user accounts",
}

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a user (bootstraps the first admin)",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx, "store")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		u, err := admin.NewUsers(st, bcrypt.DefaultCost).Bootstrap(ctx, admin.NewUser{
			Username:   userName,
			Password:   userPassword,
			RealName:   userRealName,
			Role:       model.Role(userRole),
			Categories: userCategories,
			Brands:     userBrands,
		})
		if err != nil {
			return err
		}

		zap.L().Info("user created",
			zap.Int64("id", u.ID),
			zap.String("username", u.Username),
			zap.String("role", string(u.Role)),
		)
		return nil
	},
}

func init() {
	f := userCreateCmd.Flags()
	f.StringVar(&userName, "username", "", "login name (required)")
	f.StringVar(&userPassword, "password", "", "password (required)")
	f.StringVar(&userRole, "role", string(model.RoleDataAdmin), "Data_admin, BU_admin or Labeller")
	f.StringVar(&userRealName, "name", "", "display name")
	f.StringSliceVar(&userCategories, "category", nil, "allowed category (repeatable; omit for all)")
	f.StringSliceVar(&userBrands, "brand", nil, "allowed brand (repeatable; omit for all)")
	_ = userCreateCmd.MarkFlagRequired("username")
	_ = userCreateCmd.MarkFlagRequired("password")

	userCmd.AddCommand(userCreateCmd)
	rootCmd.AddCommand(userCmd)
}
