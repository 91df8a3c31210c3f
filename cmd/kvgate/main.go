// kvgateのエントリポイント。
// 呼び出し元の認証・流入制御・ペイロード検証を行い、許可された操作だけを
// リモートKVストアに転送するゲートウェイサービス。
package main

import (
	"context"
	"log"

	"github.com/nao1215/kvgate/internal/config"
	"github.com/nao1215/kvgate/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("設定の読み込みに失敗: %v", err)
	}

	srv, err := server.NewServer(context.Background(), cfg)
	if err != nil {
		log.Fatalf("kvgateサーバーの初期化に失敗: %v", err)
	}
	defer srv.Close()

	log.Printf("kvgateを起動します: :%s", cfg.Port)
	if err := srv.Run(); err != nil {
		log.Fatalf("kvgateの起動に失敗: %v", err)
	}
}
