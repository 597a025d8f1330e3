package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/betbot/gohyper/exchange/client"
	"github.com/betbot/gohyper/exchange/types"
	"github.com/betbot/gohyper/internal/app"
)

func main() {
	configPath := flag.String("config", "", "配置文件路径（.yaml/.yml/.json，可选）")
	envFile := flag.String("env", ".env", ".env 文件路径")
	weight := flag.Uint64("weight", 1, "购买的请求权重")
	viaREST := flag.Bool("rest", false, "走 HTTP /exchange 而不是 WS post")
	timeout := flag.Duration("timeout", 30*time.Second, "整体超时")
	flag.Parse()

	if *weight == 0 {
		fmt.Fprintln(os.Stderr, "error: -weight 必须大于 0")
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	a, err := app.Bootstrap(ctx, app.Options{ConfigPath: *configPath, EnvFile: *envFile, RequireWallet: true})
	if err != nil {
		fmt.Fprintln(os.Stderr, "启动失败:", err)
		os.Exit(1)
	}
	defer a.Close(5 * time.Second)

	var opts []client.SubmitOption
	if *viaREST {
		opts = append(opts, client.ViaREST())
	}

	resp, err := a.Session.ReserveRequestWeight(ctx, *weight, opts...)
	if err != nil {
		var exErr *types.ExchangeError
		if errors.As(err, &exErr) && exErr.IsNonceError() {
			a.Log.Errorf("nonce 被拒绝（检查本机时钟）: %v", err)
		} else {
			a.Log.Errorf("购买权重失败: %v", err)
		}
		a.Close(5 * time.Second)
		os.Exit(1)
	}
	a.Log.Infof("已购买 %d 权重: status=%s type=%s", *weight, resp.Status, resp.Type)
}
