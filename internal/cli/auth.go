package cli

import (
	"fmt"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/hitoshi/roomfinder/internal/authstate"
	"github.com/hitoshi/roomfinder/internal/guard"
	"github.com/hitoshi/roomfinder/internal/model"
)

func newRegisterCommand(app *App) *cobra.Command {
	var email, role string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account as a room owner or a room finder",
		Long: `Request a sign-in link for a new account. The role is recorded when the account
is first created and becomes your role after you verify the link.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := model.ParseRole(role)
			if err != nil {
				return fmt.Errorf("--role must be room_owner or room_finder")
			}
			if err := app.Client().RequestMagicLink(cmd.Context(), email, r); err != nil {
				return fmt.Errorf("failed to request sign-in link: %w", err)
			}
			pterm.Success.Printf("A sign-in link was sent to %s\n", email)
			pterm.Info.Println("Run `roomctl verify <token>` with the token from the link.")
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&role, "role", "", "room_owner or room_finder")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("role")
	return cmd
}

func newLoginCommand(app *App) *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Request a sign-in link for an existing account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Client().RequestMagicLink(cmd.Context(), email, model.RoleNone); err != nil {
				return fmt.Errorf("failed to request sign-in link: %w", err)
			}
			pterm.Success.Printf("A sign-in link was sent to %s\n", email)
			pterm.Info.Println("Run `roomctl verify <token>` with the token from the link.")
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "email address")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newVerifyCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <token|link>",
		Short: "Sign in with the token from a sign-in link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := app.Provider()
			if err != nil {
				return err
			}
			// 購読を先に始めて、サインインのイベントでロールを解決させる
			if _, err := app.Store(cmd.Context()); err != nil {
				return err
			}
			if _, err := provider.VerifyMagicLink(cmd.Context(), extractToken(args[0])); err != nil {
				return fmt.Errorf("sign-in failed: %w", err)
			}

			st, err := app.Ready(cmd.Context())
			if err != nil {
				return err
			}
			printState(st)
			return nil
		},
	}
}

// extractToken はリンク全体が渡された場合にtokenパラメータを取り出す。
func extractToken(arg string) string {
	if i := strings.Index(arg, "token="); i >= 0 {
		token := arg[i+len("token="):]
		if j := strings.IndexByte(token, '&'); j >= 0 {
			token = token[:j]
		}
		return token
	}
	return arg
}

func newLogoutCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and remove stored credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := app.Store(cmd.Context())
			if err != nil {
				return err
			}
			if err := store.SignOut(cmd.Context()); err != nil {
				return err
			}
			pterm.Success.Println("Signed out")
			return nil
		},
	}
}

func newWhoamiCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user and role",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := app.Ready(cmd.Context())
			if err != nil {
				return err
			}
			if st.User == nil {
				return errSignInRequired
			}
			printState(st)
			return nil
		},
	}
}

func newSelectRoleCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:       "select-role <room_owner|room_finder>",
		Short:     "Choose your role when it is not set yet",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(model.RoleOwner), string(model.RoleFinder)},
		RunE: func(cmd *cobra.Command, args []string) error {
			role, err := model.ParseRole(args[0])
			if err != nil {
				return fmt.Errorf("role must be room_owner or room_finder")
			}

			st, err := app.Authorize(cmd.Context(), guard.RoleSelectionPath)
			if err != nil {
				return err
			}
			if st.Role.Valid() {
				pterm.Warning.Printf("Your role is already %s\n", st.Role)
				return nil
			}

			store, err := app.Store(cmd.Context())
			if err != nil {
				return err
			}
			res, err := store.SelectRole(cmd.Context(), role)
			if err != nil {
				return err
			}
			pterm.Success.Printf("Role set to %s\n", res.Role)
			return nil
		},
	}
}

func newWithdrawCommand(app *App) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "withdraw",
		Short: "Delete your account, role and listed rooms",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("this deletes your account permanently; re-run with --yes to confirm")
			}
			token, err := app.AccessToken(cmd.Context())
			if err != nil {
				return err
			}
			if err := app.Client().Withdraw(cmd.Context(), token); err != nil {
				return fmt.Errorf("failed to delete account: %w", err)
			}

			provider, err := app.Provider()
			if err != nil {
				return err
			}
			// サーバー側のセッションは削除済みのため、ローカルの資格情報だけを消す
			if err := provider.Forget(); err != nil {
				return err
			}
			pterm.Success.Println("Your account was deleted")
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "confirm account deletion")
	return cmd
}

// printState はサインイン中のユーザーとロールを表示する。
func printState(st authstate.State) {
	if st.User == nil {
		pterm.Info.Println("Not signed in")
		return
	}

	role := st.Role.String()
	switch {
	case st.LastError != nil:
		role = "unknown (" + st.LastError.Error() + ")"
	case st.Role == model.RoleNone:
		role = "not selected (run `roomctl select-role`)"
	}

	pterm.DefaultSection.Println("Signed in")
	pterm.Info.Printf("User:  %s\n", st.User.ID)
	pterm.Info.Printf("Email: %s\n", st.User.Email)
	pterm.Info.Printf("Role:  %s\n", role)
}
