package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/betbot/gohyper/exchange/types"
	"github.com/betbot/gohyper/exchange/ws"
	"github.com/betbot/gohyper/internal/app"
	"github.com/betbot/gohyper/pkg/shutdown"
)

func main() {
	configPath := flag.String("config", "", "配置文件路径（.yaml/.yml/.json，可选）")
	envFile := flag.String("env", ".env", ".env 文件路径")
	coins := flag.String("coins", "BTC,ETH", "订阅的 coin（逗号分隔）")
	withTrades := flag.Bool("trades", false, "同时订阅成交")
	metricsAddr := flag.String("metrics", "", "debug 服务监听地址，例如 127.0.0.1:6060")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.Bootstrap(ctx, app.Options{ConfigPath: *configPath, EnvFile: *envFile, MetricsAddr: *metricsAddr})
	if err != nil {
		fmt.Fprintln(os.Stderr, "启动失败:", err)
		os.Exit(1)
	}
	defer a.Close(5 * time.Second)

	a.Session.Transport().OnStateChange(func(s ws.State) {
		a.Log.Infof("连接状态: %s", s)
	})
	if err := a.Session.Start(ctx); err != nil {
		a.Log.Errorf("启动连接失败: %v", err)
		return
	}

	for _, coin := range strings.Split(*coins, ",") {
		coin = strings.TrimSpace(coin)
		if coin == "" {
			continue
		}
		book, err := a.Session.Subscribe(types.L2BookSubscription(coin))
		if err != nil {
			a.Log.Errorf("订阅 %s 订单簿失败: %v", coin, err)
			return
		}
		go watchBook(a.Log.WithField("coin", coin), book)

		if *withTrades {
			trades, err := a.Session.Subscribe(types.TradesSubscription(coin))
			if err != nil {
				a.Log.Errorf("订阅 %s 成交失败: %v", coin, err)
				return
			}
			go watchTrades(a.Log.WithField("coin", coin), trades)
		}
	}

	sig := shutdown.WaitForSignal(ctx)
	a.Log.Infof("退出 (%v)", sig)
}

func watchBook(log *logrus.Entry, s *ws.Stream) {
	var last string
	for msg := range s.C() {
		book, err := types.DecodeData[types.L2Book](msg)
		if err != nil {
			log.Warnf("解析订单簿失败: %v", err)
			continue
		}
		line := topOfBook(book)
		if line != last {
			log.Info(line)
			last = line
		}
	}
}

func watchTrades(log *logrus.Entry, s *ws.Stream) {
	for msg := range s.C() {
		trades, err := types.DecodeData[[]types.Trade](msg)
		if err != nil {
			log.Warnf("解析成交失败: %v", err)
			continue
		}
		for _, tr := range trades {
			log.Debugf("成交 %s %s @ %s", tr.Side, tr.Sz, tr.Px)
		}
	}
}

// topOfBook 一行摘要：买一/卖一/价差（基点）
func topOfBook(book types.L2Book) string {
	if len(book.Levels[0]) == 0 || len(book.Levels[1]) == 0 {
		return "单边或空订单簿"
	}
	bid, errB := decimal.NewFromString(book.Levels[0][0].Px)
	ask, errA := decimal.NewFromString(book.Levels[1][0].Px)
	if errB != nil || errA != nil {
		return fmt.Sprintf("bid=%s ask=%s", book.Levels[0][0].Px, book.Levels[1][0].Px)
	}
	mid := bid.Add(ask).Div(decimal.NewFromInt(2))
	spreadBps := decimal.Zero
	if mid.IsPositive() {
		spreadBps = ask.Sub(bid).Div(mid).Mul(decimal.NewFromInt(10000))
	}
	return fmt.Sprintf("bid=%s(%s) ask=%s(%s) spread=%sbps",
		bid, book.Levels[0][0].Sz, ask, book.Levels[1][0].Sz, spreadBps.StringFixed(2))
}
