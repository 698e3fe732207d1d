package api

import (
	"context"
	"fmt"

	"novaflow/conf"
	"novaflow/internal/exchange"
	"novaflow/internal/exchange/kraken"
	"novaflow/internal/exchange/okx"
	"novaflow/internal/execution"
	"novaflow/internal/handler/webhook"
	"novaflow/internal/notify"
	"novaflow/internal/router"
	"novaflow/internal/strategy"
	"novaflow/pkg/cache"
	"novaflow/pkg/kafka"
	"novaflow/pkg/logger"
	"novaflow/pkg/recorder"

	"go.uber.org/multierr"
)

// App 组装好的路由和需要在关闭时处理的资源
type App struct {
	Router     Router
	Dispatcher *strategy.Dispatcher
	closers    []func() error
}

// Close 释放 redis、kafka、journal
func (a *App) Close() error {
	var err error
	for i := len(a.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, a.closers[i]())
	}
	return err
}

func InitApp(cfg *conf.Config) (*App, error) {
	app := &App{}

	gw, err := newGateway(cfg)
	if err != nil {
		return nil, err
	}

	orch, err := strategy.NewOrchestrator(gw, strategy.Config{
		Symbol:          cfg.Trading.Symbol,
		Leverage:        conf.Dec(cfg.Trading.Leverage),
		SizeIncrement:   conf.Dec(cfg.Trading.SizeIncrement),
		MinSize:         conf.Dec(cfg.Trading.MinSize),
		ReleaseDelay:    cfg.Workflow.ReleaseDelay.Std(),
		MinReleaseDelta: conf.Dec(cfg.Workflow.MinReleaseDelta),
		Confirm: execution.Config{
			Attempts:  cfg.Workflow.ConfirmAttempts,
			Delay:     cfg.Workflow.ConfirmDelay.Std(),
			Threshold: conf.Dec(cfg.Workflow.ConfirmThreshold),
		},
	})
	if err != nil {
		return nil, err
	}

	if cfg.Journal.Path != "" {
		journal := recorder.NewJSONFileRecorder(cfg.Journal.Path)
		orch.WithJournal(journal)
		app.closers = append(app.closers, journal.Close)
	}
	orch.WithNotifier(newNotifier(cfg, app))

	locker, err := newLocker(cfg, app)
	if err != nil {
		_ = app.Close()
		return nil, err
	}

	// 策略分发器：同一币种的信号串行执行
	app.Dispatcher = strategy.NewDispatcher(orch, locker, cfg.Workflow.LockWait.Std())
	wh := webhook.NewHandler(app.Dispatcher, cfg.Workflow.ResponseWait.Std())
	app.Router = router.NewApiRouter(cfg, wh)

	logger.Info("workflow ready",
		logger.Pair("exchange", cfg.Exchange.Name),
		logger.Pair("symbol", cfg.Trading.Symbol),
		logger.Pair("leverage", cfg.Trading.Leverage))
	return app, nil
}

func newGateway(cfg *conf.Config) (exchange.Gateway, error) {
	ex := cfg.Exchange
	switch ex.Name {
	case "kraken":
		client, err := kraken.NewClient(ex.Kraken.BaseURL, ex.Kraken.ApiKey, ex.Kraken.SecretKey,
			kraken.WithRateLimit(ex.RateLimit),
			kraken.WithTimeout(ex.Timeout.Std()))
		if err != nil {
			return nil, err
		}
		return kraken.NewGateway(client, conf.Dec(ex.Kraken.ContractSize)), nil
	case "okx":
		if ex.Okx.Simulated {
			// 设置为模拟环境
			okx.EnableSimulatedTrading()
		}
		return okx.NewSwap(okx.Config{
			ApiKey:     ex.Okx.ApiKey,
			SecretKey:  ex.Okx.SecretKey,
			Passphrase: ex.Okx.Password,
			MgnMode:    ex.Okx.MgnMode,
			MarginCoin: cfg.Trading.MarginCoin,
			LotSize:    conf.Dec(ex.Okx.LotSize),
			Timeout:    ex.Timeout.Std(),
			RateLimit:  ex.RateLimit,
		}), nil
	case "simulated":
		logger.Warn("using simulated exchange, no real orders will be sent")
		return exchange.NewSimulatedExchange(conf.Dec(ex.Simulated.Margin),
			exchange.WithMarkPrice(conf.Dec(ex.Simulated.MarkPrice)),
			exchange.WithLeverage(conf.Dec(cfg.Trading.Leverage)),
			exchange.WithFillRatio(conf.Dec(ex.Simulated.FillRatio))), nil
	}
	return nil, fmt.Errorf("unsupported exchange: %s", ex.Name)
}

// 通知通道按配置启用，单个通道初始化失败不影响启动
func newNotifier(cfg *conf.Config, app *App) notify.Notifier {
	var ns notify.Multi
	if cfg.Telegram.Token != "" && cfg.Telegram.ChatID != 0 {
		tg, err := notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID)
		if err != nil {
			logger.Warn("telegram notifier disabled", logger.Pair("error", err.Error()))
		} else {
			ns = append(ns, tg)
		}
	}
	if cfg.Kafka.Broker != "" {
		producer := kafka.NewKafkaProducer(cfg.Kafka.Broker, cfg.Kafka.Topic)
		app.closers = append(app.closers, func() error {
			producer.Close()
			return nil
		})
		ns = append(ns, notify.NewKafka(producer))
	}
	if len(ns) == 0 {
		return notify.Nop{}
	}
	return ns
}

// 配置了 redis 时使用分布式锁，多实例部署时同一币种仍然串行
func newLocker(cfg *conf.Config, app *App) (strategy.Locker, error) {
	if cfg.Redis.Addr == "" {
		return strategy.NewMemoryLocker(), nil
	}
	client, err := cache.InitRedis(cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("init redis: %w", err)
	}
	app.closers = append(app.closers, func() error {
		cache.CloseRedis()
		return nil
	})
	return strategy.NewRedisLocker(client, cfg.Redis.LockTTL.Std()), nil
}

// Drain 关闭前等待进行中的流程
func (a *App) Drain(ctx context.Context) error {
	return a.Dispatcher.Drain(ctx)
}

// Shutdown 等待进行中的流程，超时也要释放 journal、kafka、redis
func (a *App) Shutdown(ctx context.Context) error {
	return multierr.Append(a.Drain(ctx), a.Close())
}
