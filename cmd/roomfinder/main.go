// roomfinder はAPIサーバー、クリーンアップワーカー、マイグレーションを起動する。
//
//	roomfinder [serve]        APIサーバー
//	roomfinder worker         期限切れセッションの定期削除
//	roomfinder migrate [up|down|version]
//	roomfinder healthcheck    コンテナのヘルスチェック
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/roomfinder/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
