package app

import (
	"fmt"
	"net/url"
)

// Command はroomfinderのサブコマンド。
type Command string

const (
	CommandServe       Command = "serve"
	CommandWorker      Command = "worker"
	CommandMigrate     Command = "migrate"
	CommandHealthcheck Command = "healthcheck" // distrolessイメージのHEALTHCHECK用
)

// MigrateDirection はmigrateサブコマンドの操作を表す。
type MigrateDirection string

const (
	// MigrateUp は未適用のマイグレーションをすべて適用する。
	MigrateUp MigrateDirection = "up"
	// MigrateDown は直近のマイグレーションを1つ戻す。
	MigrateDown MigrateDirection = "down"
	// MigrateVersion は現在のバージョンを表示する。
	MigrateVersion MigrateDirection = "version"
)

// Invocation は解析済みのコマンドライン。
type Invocation struct {
	Command   Command
	Direction MigrateDirection // CommandMigrateの場合のみ
}

// ParseArgs はos.Args[1:]を解析する。引数なしはserveとして扱う。
// タイプミスでサーバーが起動しないよう、未知のサブコマンドはエラーにする。
func ParseArgs(args []string) (Invocation, error) {
	if len(args) == 0 {
		return Invocation{Command: CommandServe}, nil
	}

	switch cmd := Command(args[0]); cmd {
	case CommandServe, CommandWorker, CommandHealthcheck:
		if len(args) > 1 {
			return Invocation{}, fmt.Errorf("%s takes no arguments, got %q", cmd, args[1:])
		}
		return Invocation{Command: cmd}, nil
	case CommandMigrate:
		dir, err := parseMigrateDirection(args[1:])
		if err != nil {
			return Invocation{}, err
		}
		return Invocation{Command: cmd, Direction: dir}, nil
	default:
		return Invocation{}, fmt.Errorf("unknown command %q (want serve, worker, migrate or healthcheck)", args[0])
	}
}

func parseMigrateDirection(args []string) (MigrateDirection, error) {
	if len(args) == 0 {
		return MigrateUp, nil
	}
	if len(args) > 1 {
		return "", fmt.Errorf("migrate takes at most one argument, got %q", args)
	}
	switch dir := MigrateDirection(args[0]); dir {
	case MigrateUp, MigrateDown, MigrateVersion:
		return dir, nil
	default:
		return "", fmt.Errorf("unknown migrate direction %q (want up, down or version)", args[0])
	}
}

// maskDatabaseURL はログ出力用にパスワードを伏せたURLを返す。
// 解析できない場合は全体を伏せる。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
