// Package app 命令行工具共用的启动流程：.env → 配置 → 日志 → 签名身份 → 会话
package app

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/joho/godotenv"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/betbot/gohyper/exchange/client"
	"github.com/betbot/gohyper/exchange/signing"
	"github.com/betbot/gohyper/internal/metrics"
	"github.com/betbot/gohyper/pkg/config"
	"github.com/betbot/gohyper/pkg/logger"
	"github.com/betbot/gohyper/pkg/shutdown"
	"github.com/betbot/gohyper/pkg/wallet"
)

// Options 启动参数
type Options struct {
	ConfigPath    string
	EnvFile       string // 默认 .env，不存在时忽略
	RequireWallet bool
	MetricsAddr   string // 非空时启动 debug 服务
}

// App 启动完成的运行环境
type App struct {
	Config   *config.Config
	Session  *client.Session
	Identity *signing.Identity
	Shutdown *shutdown.Manager
	Log      *logrus.Entry
}

// Bootstrap 加载配置并创建会话（不建立连接）
func Bootstrap(ctx context.Context, opts Options, sessionOpts ...client.Option) (*App, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, pkgerrors.Wrapf(err, "加载 %s", envFile)
	}

	cfg, err := config.LoadFromFile(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(opts.RequireWallet); err != nil {
		return nil, pkgerrors.Wrap(err, "配置无效")
	}

	if err := logger.Init(logger.Config{
		Level:      cfg.Log.Level,
		OutputFile: cfg.Log.File,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
		JSON:       cfg.Log.JSON,
	}); err != nil {
		return nil, pkgerrors.Wrap(err, "初始化日志失败")
	}

	var identity *signing.Identity
	if cfg.Wallet.HasSource() {
		identity, err = wallet.Resolve(cfg.Wallet)
		if err != nil {
			return nil, err
		}
	}

	sessCfg, err := client.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	sess, err := client.NewSession(sessCfg, identity, sessionOpts...)
	if err != nil {
		return nil, err
	}

	a := &App{
		Config:   cfg,
		Session:  sess,
		Identity: identity,
		Shutdown: shutdown.NewManager(),
		Log:      logger.WithFields(logrus.Fields{"network": cfg.Network, "address": sess.Address().Hex()}),
	}
	a.Shutdown.OnShutdown("session", func(ctx context.Context) {
		if err := sess.Close(); err != nil {
			a.Log.Warnf("关闭会话失败: %v", err)
		}
	})

	metrics.Publish("hl_session", func() any { return sess.Transport().Stats() })
	if opts.MetricsAddr != "" {
		snapshot := func() any {
			return map[string]any{
				"transport":           sess.Transport().Stats(),
				"restWeightRemaining": sess.RemainingRESTWeight(),
			}
		}
		if _, err := metrics.StartAsync(ctx, opts.MetricsAddr, snapshot); err != nil {
			return nil, pkgerrors.Wrap(err, "启动 debug 服务失败")
		}
	}

	a.Log.Infof("会话已创建: transport=%s vault=%q", cfg.Transport, cfg.VaultAddress)
	return a, nil
}

// Close 执行所有关闭回调，最多等待 timeout
func (a *App) Close(timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	a.Shutdown.Shutdown(ctx)
}
