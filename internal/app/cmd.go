package app

import "fmt"

// Command はサブコマンドの種別。
type Command string

const (
	// CommandServe はHTTPサーバーを起動する。
	CommandServe Command = "serve"
	// CommandMigrate はデータベースマイグレーションを適用する。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はデータベース疎通を確認して終了する。
	CommandHealthcheck Command = "healthcheck"
)

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数なしの場合はserveを返す。
func ParseCommand(args []string) (Command, error) {
	if len(args) == 0 {
		return CommandServe, nil
	}

	switch Command(args[0]) {
	case CommandServe:
		return CommandServe, nil
	case CommandMigrate:
		return CommandMigrate, nil
	case CommandHealthcheck:
		return CommandHealthcheck, nil
	default:
		return "", fmt.Errorf("unknown command: %s (available: serve, migrate, healthcheck)", args[0])
	}
}
