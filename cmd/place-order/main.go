package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/betbot/gohyper/exchange/client"
	"github.com/betbot/gohyper/exchange/types"
	"github.com/betbot/gohyper/internal/app"
	"github.com/betbot/gohyper/pkg/orderbook"
)

func main() {
	configPath := flag.String("config", "", "配置文件路径（.yaml/.yml/.json，可选）")
	envFile := flag.String("env", ".env", ".env 文件路径")
	coin := flag.String("coin", "", "coin 名称，例如 BTC、PURR/USDC、dex:ABC")
	side := flag.String("side", "buy", "buy / sell")
	px := flag.Float64("px", 0, "限价")
	sz := flag.Float64("sz", 0, "数量")
	tif := flag.String("tif", "Gtc", "Gtc / Ioc / Alo")
	reduceOnly := flag.Bool("reduce-only", false, "只减仓")
	cancelAfter := flag.Duration("cancel-after", 0, "挂单后等待多久撤单（0 表示不撤）")
	viaREST := flag.Bool("rest", false, "走 HTTP /exchange 而不是 WS post")
	flag.Parse()

	if err := run(*configPath, *envFile, *coin, *side, *px, *sz, *tif, *reduceOnly, *cancelAfter, *viaREST); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func parseTif(s string) (types.Tif, error) {
	switch strings.ToLower(s) {
	case "gtc":
		return types.TifGtc, nil
	case "ioc":
		return types.TifIoc, nil
	case "alo":
		return types.TifAlo, nil
	}
	return "", fmt.Errorf("未知 tif: %s", s)
}

func run(configPath, envFile, coin, side string, px, sz float64, tifName string, reduceOnly bool, cancelAfter time.Duration, viaREST bool) error {
	if coin == "" {
		return errors.New("-coin 必填")
	}
	tif, err := parseTif(tifName)
	if err != nil {
		return err
	}
	isBuy := strings.EqualFold(side, "buy")
	if !isBuy && !strings.EqualFold(side, "sell") {
		return fmt.Errorf("-side 必须是 buy 或 sell: %s", side)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute+cancelAfter)
	defer cancel()

	a, err := app.Bootstrap(ctx, app.Options{ConfigPath: configPath, EnvFile: envFile, RequireWallet: true})
	if err != nil {
		return err
	}
	defer a.Close(5 * time.Second)

	var opts []client.SubmitOption
	if viaREST {
		opts = append(opts, client.ViaREST())
	}

	if _, err := a.Session.LoadAssets(ctx, opts...); err != nil {
		return err
	}

	// 需要撤单时先订阅 orderUpdates，用推送确认订单离开订单簿
	var book *orderbook.ActiveOrderBook
	if cancelAfter > 0 {
		stream, err := a.Session.Subscribe(types.OrderUpdatesSubscription(a.Session.Address().Hex()))
		if err != nil {
			return err
		}
		book = orderbook.NewActiveOrderBook(coin)
		go book.Run(ctx, stream)
	}

	cloid := types.NewCloid()
	resp, err := a.Session.PlaceOrder(ctx, types.OrderRequest{
		Coin:       coin,
		IsBuy:      isBuy,
		Price:      px,
		Size:       sz,
		ReduceOnly: reduceOnly,
		OrderType:  types.LimitOrder(tif),
		Cloid:      cloid,
	}, opts...)
	if err != nil {
		return err
	}
	if len(resp.Statuses) == 0 {
		return fmt.Errorf("响应没有 statuses: %s", string(resp.Raw))
	}

	st := resp.Statuses[0]
	switch {
	case st.Error != "":
		return fmt.Errorf("下单被拒绝: %s", st.Error)
	case st.Filled != nil:
		a.Log.Infof("已成交 oid=%d sz=%s avgPx=%s", st.Filled.Oid, st.Filled.TotalSz, st.Filled.AvgPx)
		return nil
	case st.Resting != nil:
		a.Log.Infof("已挂单 oid=%d cloid=%s", st.Resting.Oid, cloid)
	default:
		a.Log.Infof("下单结果: %s", st.Status)
	}

	if book == nil || st.Resting == nil {
		return nil
	}
	book.Add(types.BasicOrder{Coin: coin, Oid: st.Resting.Oid, Cloid: cloid})
	select {
	case <-time.After(cancelAfter):
	case <-ctx.Done():
		return ctx.Err()
	}
	err = book.GracefulCancel(ctx, func(ctx context.Context, coin string, oids []uint64) error {
		cresp, err := a.Session.Cancel(ctx, coin, oids, opts...)
		if err != nil {
			return err
		}
		if errs := cresp.StatusErrors(); len(errs) > 0 {
			return errs[0]
		}
		return nil
	})
	if err != nil {
		return err
	}
	a.Log.Infof("已撤单 cloid=%s", cloid)
	return nil
}
