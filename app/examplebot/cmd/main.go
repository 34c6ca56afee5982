package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/lk2023060901/gatecord/app/examplebot/internal/commands"
	"github.com/lk2023060901/gatecord/app/examplebot/internal/ops"
	"github.com/lk2023060901/gatecord/app/examplebot/internal/rest"
	"github.com/lk2023060901/gatecord/pkg/app"
	"github.com/lk2023060901/gatecord/pkg/bot"
	"github.com/lk2023060901/gatecord/pkg/config"
	"github.com/lk2023060901/gatecord/pkg/dispatch"
	"github.com/lk2023060901/gatecord/pkg/gateway"
	"github.com/lk2023060901/gatecord/pkg/gateway/redisstore"
	"github.com/lk2023060901/gatecord/pkg/logger"
	"github.com/lk2023060901/gatecord/pkg/otel"
	"github.com/lk2023060901/gatecord/pkg/prometheus"
	"github.com/lk2023060901/gatecord/pkg/sentry"
	"github.com/lk2023060901/gatecord/pkg/web"
	"github.com/spf13/pflag"
)

// Config 示例机器人配置
type Config struct {
	Log     logger.Config             `mapstructure:"log"`
	Loggers map[string]*logger.Config `mapstructure:"loggers"`

	Bot      bot.Config        `mapstructure:"bot"`
	Commands commands.Config   `mapstructure:"commands"`
	REST     rest.Config       `mapstructure:"rest"`
	Metrics  prometheus.Config `mapstructure:"metrics"`
	Sentry   sentry.Config     `mapstructure:"sentry"`
	Ops      web.Config        `mapstructure:"ops"`
	Tracing  otel.Config       `mapstructure:"tracing"`

	// Store 恢复信息存储，memory 或 redis
	Store StoreConfig `mapstructure:"store"`
}

// StoreConfig 会话存储配置
type StoreConfig struct {
	Backend string            `mapstructure:"backend"`
	Redis   redisstore.Config `mapstructure:"redis"`
}

func defaultConfig() Config {
	return Config{
		Log:      *logger.DefaultConfig(),
		Bot:      *bot.DefaultConfig(),
		Commands: *commands.DefaultConfig(),
		REST:     *rest.DefaultConfig(),
		Metrics:  *prometheus.DefaultConfig(),
		Sentry:   *sentry.DefaultConfig(),
		Ops:      *web.DefaultConfig(),
		Tracing:  *otel.DefaultConfig(),
		Store: StoreConfig{
			Backend: "memory",
			Redis:   *redisstore.DefaultConfig(),
		},
	}
}

// botServer 让客户端接入应用生命周期
type botServer struct {
	client *bot.Client
	ctx    context.Context
}

func (s *botServer) Start() error { return s.client.Connect(s.ctx) }
func (s *botServer) Stop() error  { return s.client.Close() }

func main() {
	metricsAddr := pflag.String("metrics-addr", "", "metrics listen address, overrides metrics.http_server.addr")
	opsAddr := pflag.String("ops-addr", "", "ops http listen address, overrides ops.addr")

	// 1. 加载配置
	cfg := defaultConfig()
	mgr, err := app.LoadConfig(&cfg)
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}
	if pflag.CommandLine.Changed("metrics-addr") {
		cfg.Metrics.HTTPServer.Addr = *metricsAddr
	}
	if pflag.CommandLine.Changed("ops-addr") {
		cfg.Ops.Addr = *opsAddr
	}

	// 2. 初始化日志
	cfg.Log.RedactKeys = append(cfg.Log.RedactKeys, "token")
	l, err := logger.New(&cfg.Log)
	if err != nil {
		panic(err)
	}
	logger.SetDefault(l)

	application := app.NewBaseApp(
		app.WithName("examplebot"),
		app.WithLogger(l),
		app.WithNamedLoggers(cfg.Loggers),
		app.WithStopTimeout(cfg.Bot.ShutdownTimeout+time.Second),
	)

	if err := run(application, mgr, &cfg, l); err != nil {
		l.Error("examplebot exited with error", "error", err)
		_ = l.Sync()
		os.Exit(1)
	}
}

func run(application *app.BaseApp, mgr config.Manager, cfg *Config, l logger.Logger) error {
	// 3. 指标
	metrics, err := prometheus.New(&cfg.Metrics, l)
	if err != nil {
		return err
	}
	invoked := metrics.MustNewCounter("commands_total", "Commands invoked by name.", []string{"command"})
	guilds, err := metrics.NewGauge("guilds", "Guilds seen in GUILD_CREATE.", nil)
	if err != nil {
		return err
	}

	opts := []bot.Option{
		bot.WithLogger(application.Logger("bot")),
		bot.WithRegisterer(metrics.Registry()),
		bot.WithResourceClient(rest.New(&cfg.REST, cfg.Bot.Gateway.Token, l)),
	}

	// 4. 错误上报，未配置 DSN 时关闭
	if cfg.Sentry.DSN != "" {
		reporter, err := sentry.New(&cfg.Sentry)
		if err != nil {
			return err
		}
		application.AppendCloser(reporter)
		opts = append(opts, bot.WithErrorReporter(reporter))
	}

	// 追踪，默认关闭
	if cfg.Tracing.Enabled {
		tp, err := otel.New(&cfg.Tracing, otel.WithGlobal())
		if err != nil {
			return err
		}
		application.AppendCloser(tp)
		opts = append(opts, bot.WithTracerProvider(tp.Provider()))
	}

	// 5. 会话存储
	if cfg.Store.Backend == "redis" {
		store, err := redisstore.New(&cfg.Store.Redis)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		err = store.Ping(ctx)
		cancel()
		if err != nil {
			_ = store.Close()
			return err
		}
		application.AppendCloser(store)
		opts = append(opts, bot.WithSessionStore(store))
	}

	// 6. 客户端与命令
	client, err := bot.New(&cfg.Bot, opts...)
	if err != nil {
		return err
	}
	cmds := commands.New(&cfg.Commands, invoked)
	if err := cmds.Register(client); err != nil {
		return err
	}

	client.On(bot.EventReady, func(_ context.Context, ev *dispatch.Event) error {
		var ready gateway.Ready
		if err := ev.Decode(&ready); err != nil {
			return err
		}
		l.Info("logged in", "user", ready.User.Username, "session_id", ready.SessionID)
		guilds.WithLabelValues().Set(0)
		return nil
	})
	client.On(bot.EventGuildCreate, func(context.Context, *dispatch.Event) error {
		guilds.WithLabelValues().Inc()
		return nil
	})

	// 7. 配置热更新：问候语和在线状态
	if err := mgr.Watch(func() { reload(mgr, client, cmds, l) }); err != nil {
		l.Warn("config watch disabled", "error", err)
	}

	// 8. 运维接口
	opsServer, err := web.NewServer(&cfg.Ops, l, metrics.Registry())
	if err != nil {
		return err
	}
	ops.Register(opsServer.Router(), client.Session(), metrics.Handler())

	application.AppendServer(metrics, opsServer, &botServer{client: client, ctx: application.Context()})
	application.Go(func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			return nil
		case <-client.Session().Done():
			return client.Session().Err()
		}
	})

	return application.Run()
}

func reload(mgr config.Manager, client *bot.Client, cmds *commands.Set, l logger.Logger) {
	var cc commands.Config
	if err := mgr.UnmarshalKey("commands", &cc); err != nil {
		l.Warn("reload commands config failed", "error", err)
	} else {
		cmds.SetGreeting(cc.Greeting)
	}

	if !mgr.IsSet("bot.gateway.presence") {
		return
	}
	var presence bot.Presence
	if err := mgr.UnmarshalKey("bot.gateway.presence", &presence); err != nil {
		l.Warn("reload presence failed", "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.UpdatePresence(ctx, presence); err != nil {
		l.Warn("update presence failed", "error", err)
		return
	}
	raw, _ := json.Marshal(presence)
	l.Info("presence updated", "presence", string(raw))
}
