// Package cli はroomctlのコマンドを提供する。
//
// サインインが必要なコマンドは、authstate.Storeが解決した状態を
// guard.Tableで判定してから実行する。
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/hitoshi/roomfinder/internal/authstate"
	"github.com/hitoshi/roomfinder/internal/logger"
)

// Options はroomctl全体のフラグ。
type Options struct {
	Server         string
	Home           string
	Debug          bool
	ResolveTimeout time.Duration
}

// defaultOptions は環境変数を反映したフラグの初期値を返す。
// 値を解釈できない環境変数はすべてエラーにまとめて返し、該当する項目は初期値のままにする。
func defaultOptions() (Options, error) {
	var errs []error
	opts := Options{
		Server:         "http://localhost:8080",
		ResolveTimeout: authstate.DefaultResolveTimeout,
	}
	if v := os.Getenv("ROOMCTL_SERVER"); v != "" {
		opts.Server = v
	}
	if v := os.Getenv("ROOMCTL_HOME"); v != "" {
		opts.Home = v
	}
	if v := os.Getenv("ROOMCTL_RESOLVE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("ROOMCTL_RESOLVE_TIMEOUT: %q is not a duration", v))
		} else {
			opts.ResolveTimeout = d
		}
	}
	if v := os.Getenv("ROOMCTL_DEBUG"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("ROOMCTL_DEBUG: %q is not a boolean", v))
		} else {
			opts.Debug = b
		}
	}
	return opts, errors.Join(errs...)
}

// validate はフラグ反映後のOptionsを検証する。
func (o Options) validate() error {
	if o.ResolveTimeout <= 0 {
		return fmt.Errorf("--resolve-timeout must be positive, got %s", o.ResolveTimeout)
	}
	return nil
}

// NewRootCommand はroomctlのコマンドツリーを組み立てる。
// 実行後はApp.Closeを呼ぶこと。
func NewRootCommand() (*cobra.Command, *App) {
	opts, err := defaultOptions()
	app := &App{Options: opts, envErr: err}
	return newRootCommand(app), app
}

func newRootCommand(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:           "roomctl",
		Short:         "roomfinder CLI - find rooms or list your own",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if app.envErr != nil {
				return fmt.Errorf("invalid environment: %w", app.envErr)
			}
			if err := app.Options.validate(); err != nil {
				return err
			}
			logger.SetupCLI(cmd.ErrOrStderr(), app.Options.Debug)
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&app.Options.Server, "server", app.Options.Server, "roomfinder API server URL (ROOMCTL_SERVER)")
	flags.StringVar(&app.Options.Home, "home", app.Options.Home, "credential directory, default ~/.roomctl (ROOMCTL_HOME)")
	flags.BoolVar(&app.Options.Debug, "debug", app.Options.Debug, "enable debug logging (ROOMCTL_DEBUG)")
	flags.DurationVar(&app.Options.ResolveTimeout, "resolve-timeout", app.Options.ResolveTimeout, "maximum time to resolve the signed-in role (ROOMCTL_RESOLVE_TIMEOUT)")

	root.AddCommand(
		newRegisterCommand(app),
		newLoginCommand(app),
		newVerifyCommand(app),
		newLogoutCommand(app),
		newWhoamiCommand(app),
		newSelectRoleCommand(app),
		newWithdrawCommand(app),
		newRoomsCommand(app),
	)

	return root
}

// Execute はroomctlを実行し、失敗した場合は終了コード1で終了する。
func Execute(ctx context.Context) {
	root, app := NewRootCommand()
	err := root.ExecuteContext(ctx)
	app.Close()
	if err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}
