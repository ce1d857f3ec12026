package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap"

	"github.com/mikey-austin/tsmusic/internal/adapters/feed"
	"github.com/mikey-austin/tsmusic/internal/adapters/ffplay"
	"github.com/mikey-austin/tsmusic/internal/adapters/idgen"
	"github.com/mikey-austin/tsmusic/internal/adapters/metrics"
	"github.com/mikey-austin/tsmusic/internal/adapters/mqttserver"
	"github.com/mikey-austin/tsmusic/internal/adapters/tlsconf"
	"github.com/mikey-austin/tsmusic/internal/adapters/ytdlp"
	"github.com/mikey-austin/tsmusic/internal/bot"
	"github.com/mikey-austin/tsmusic/internal/modules/control"
	embeddedmqtt "github.com/mikey-austin/tsmusic/internal/modules/embedded_mqtt"
	statushttp "github.com/mikey-austin/tsmusic/internal/modules/status_http"
	"github.com/mikey-austin/tsmusic/internal/player"
	"github.com/mikey-austin/tsmusic/internal/tsmd"
	"github.com/mikey-austin/tsmusic/pkg/serverquery"
	"github.com/mikey-austin/tsmusic/pkg/tsm"
)

const (
	moduleBot          = "bot"
	moduleControl      = "control"
	moduleEmbeddedMQTT = "embedded_mqtt"
	moduleStatusHTTP   = "status_http"

	feedTimeout   = 15 * time.Second
	closeTimeout  = 5 * time.Second
	brokerTimeout = 3 * time.Second
)

// deps are the shared components modules are built from.
type deps struct {
	player  *player.Player
	query   *serverquery.Client
	mqtt    *mqttserver.Client
	metrics *metrics.Metrics
}

func main() {
	var (
		configPath  string
		broker      string
		identity    string
		logLevel    string
		logFormat   string
		printConfig bool
		dryRun      bool
		moduleOnly  string
	)

	defaultConfig, err := tsmd.DefaultConfigPath()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	flag.StringVar(&configPath, "config", defaultConfig, "config file path")
	flag.StringVar(&broker, "broker", "", "MQTT broker URL override")
	flag.StringVar(&identity, "identity", "", "node identity override")
	flag.StringVar(&logLevel, "log-level", "", "log level override")
	flag.StringVar(&logFormat, "log-format", "", "log format override (text|json)")
	flag.StringVar(&moduleOnly, "module", "", "limit to a single module")
	flag.BoolVar(&printConfig, "print-config", false, "print resolved config and exit")
	flag.BoolVar(&dryRun, "dry-run", false, "validate config and exit")
	flag.Parse()

	cfg, err := tsmd.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := tsmd.LoadEnv(&cfg, configPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	applyOverrides(&cfg, broker, identity, logLevel, logFormat)

	if printConfig {
		if err := printResolvedConfig(os.Stdout, cfg); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if dryRun {
		return
	}

	logger := tsmd.NewLogger(tsmd.LogConfig{
		Level:  cfg.Server.LogLevel,
		Format: cfg.Server.LogFormat,
		Output: cfg.Server.LogOutput,
		UTC:    cfg.Server.LogUTC,
	})
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger, moduleOnly); err != nil {
		logger.Error("tsmd failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg tsmd.Config, logger *zap.Logger, moduleOnly string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	lock, err := tsmd.AcquireLock(cfg.Player.CacheDir)
	if err != nil {
		return err
	}
	defer func() { _ = lock.Release() }()

	needsPlayer := wants(moduleOnly, moduleBot, cfg.Modules.Bot.Enabled) ||
		wants(moduleOnly, moduleControl, cfg.Modules.Control.Enabled) ||
		wants(moduleOnly, moduleStatusHTTP, cfg.Modules.StatusHTTP.Enabled)
	if needsPlayer {
		if err := tsmd.CheckBinaries(cfg.Player.YtDlp, cfg.Player.FFPlay); err != nil {
			return err
		}
	}

	skipEmbedded := false
	if moduleOnly != moduleEmbeddedMQTT && cfg.Modules.EmbeddedMQTT.Enabled && cfg.Server.Broker == embeddedBrokerURL(cfg) {
		if err := startEmbeddedBroker(ctx, cfg, logger, cancel); err != nil {
			return fmt.Errorf("embedded mqtt: %w", err)
		}
		skipEmbedded = true
	}

	logger.Info("tsmd starting",
		zap.String("broker", cfg.Server.Broker),
		zap.String("identity", cfg.Server.Identity),
		zap.String("query_addr", cfg.Query.Addr),
		zap.String("cache_dir", cfg.Player.CacheDir),
		zap.Strings("modules", enabledModules(cfg)),
	)

	var d deps
	if wants(moduleOnly, moduleStatusHTTP, cfg.Modules.StatusHTTP.Enabled) {
		d.metrics = metrics.New()
	}
	if needsPlayer {
		d.player, err = newPlayer(cfg, logger)
		if err != nil {
			return err
		}
		if d.metrics != nil {
			d.player.Subscribe(d.metrics.ObservePlayer)
		}
		defer func() {
			closeCtx, closeCancel := context.WithTimeout(context.Background(), closeTimeout)
			defer closeCancel()
			if err := d.player.Close(closeCtx); err != nil {
				logger.Warn("player close", zap.Error(err))
			}
		}()
	}
	if wants(moduleOnly, moduleBot, cfg.Modules.Bot.Enabled) {
		d.query = newQueryClient(cfg, logger, d.metrics)
	}
	if wants(moduleOnly, moduleControl, cfg.Modules.Control.Enabled) {
		if cfg.Server.Broker == "" {
			return errors.New("broker is required for the control module")
		}
		d.mqtt, err = mqttserver.NewClient(mqttserver.Options{
			BrokerURL:   cfg.Server.Broker,
			ClientID:    "tsmd-" + idgen.Short(),
			Username:    cfg.Server.Auth.User,
			Password:    cfg.Server.Auth.Pass,
			TLSCA:       cfg.Server.TLS.CA,
			TLSCert:     cfg.Server.TLS.Cert,
			TLSKey:      cfg.Server.TLS.Key,
			Timeout:     2 * time.Second,
			Logger:      logger.With(zap.String("component", "mqtt")),
			WillTopic:   tsm.TopicPresence(cfg.Server.TopicBase, cfg.Modules.Control.NodeID),
			WillPayload: control.OfflinePresence(controlConfig(cfg)),
		})
		if err != nil {
			return fmt.Errorf("mqtt connection failed: %w", err)
		}
		defer d.mqtt.Close(250 * time.Millisecond)
	}

	modules, err := buildModules(cfg, d, logger, moduleOnly, skipEmbedded)
	if err != nil {
		return err
	}

	supervisor := tsmd.Supervisor{Logger: logger}
	return supervisor.Run(ctx, modules)
}

func newPlayer(cfg tsmd.Config, logger *zap.Logger) (*player.Player, error) {
	tool := ytdlp.New(cfg.Player.YtDlp)
	return player.New(logger.With(zap.String("component", "player")), tool, tool, ffplay.New(cfg.Player.FFPlay), player.Config{
		CacheDir:        cfg.Player.CacheDir,
		MetadataTimeout: cfg.MetadataTimeout(),
		DownloadTimeout: cfg.DownloadTimeout(),
		Volume:          cfg.Player.Volume,
	})
}

func newQueryClient(cfg tsmd.Config, logger *zap.Logger, met *metrics.Metrics) *serverquery.Client {
	opts := serverquery.Options{
		Addr:           cfg.Query.Addr,
		Username:       cfg.Query.Username,
		Password:       cfg.Query.Password,
		ServerID:       cfg.Query.ServerID,
		CommandTimeout: cfg.CommandTimeout(),
		Logger:         logger.With(zap.String("component", "serverquery")),
	}
	if met != nil {
		opts.OnCommand = met.ObserveCommand
	}
	return serverquery.NewClient(opts)
}

func controlConfig(cfg tsmd.Config) control.Config {
	return control.Config{
		NodeID:    cfg.Modules.Control.NodeID,
		TopicBase: cfg.Server.TopicBase,
		Name:      cfg.Query.Nickname,
	}
}

func wants(moduleOnly string, name string, enabled bool) bool {
	return enabled && (moduleOnly == "" || moduleOnly == name)
}

func applyOverrides(cfg *tsmd.Config, broker string, identity string, logLevel string, logFormat string) {
	if broker != "" {
		cfg.Server.Broker = broker
	}
	if identity != "" {
		cfg.Server.Identity = identity
		cfg.Modules.Control.NodeID = identity
	}
	if logLevel != "" {
		cfg.Server.LogLevel = logLevel
	}
	if logFormat != "" {
		cfg.Server.LogFormat = logFormat
	}
	if cfg.Server.TopicBase == "" {
		cfg.Server.TopicBase = tsm.BaseTopic
	}
	if cfg.Server.Broker == "" && cfg.Modules.EmbeddedMQTT.Enabled {
		cfg.Server.Broker = embeddedBrokerURL(*cfg)
	}
}

func buildModules(cfg tsmd.Config, d deps, logger *zap.Logger, moduleOnly string, skipEmbedded bool) ([]tsmd.ModuleRunner, error) {
	modules := []tsmd.ModuleRunner{}

	if wants(moduleOnly, moduleEmbeddedMQTT, cfg.Modules.EmbeddedMQTT.Enabled) && !skipEmbedded {
		mod, err := embeddedmqtt.NewModule(logger.With(zap.String("module", moduleEmbeddedMQTT)), embeddedConfig(cfg))
		if err != nil {
			return nil, err
		}
		modules = append(modules, tsmd.ModuleRunner{Name: moduleEmbeddedMQTT, Run: mod.Run})
	}

	if wants(moduleOnly, moduleBot, cfg.Modules.Bot.Enabled) {
		if d.player == nil || d.query == nil {
			return nil, errors.New("bot module needs a player and a query client")
		}
		log := logger.With(zap.String("module", moduleBot))
		router := bot.NewRouter(log, d.player, feed.New(feedTimeout), cfg.Modules.Bot.Prefix)
		mod, err := bot.NewModule(log, d.query, router, d.player, bot.Config{
			Nickname:       cfg.Query.Nickname,
			DefaultChannel: cfg.Query.DefaultChannel,
			RelayEvents:    cfg.Modules.Bot.RelayEvents,
		})
		if err != nil {
			return nil, err
		}
		modules = append(modules, tsmd.ModuleRunner{Name: moduleBot, Run: mod.Run})
	}

	if wants(moduleOnly, moduleControl, cfg.Modules.Control.Enabled) {
		if d.player == nil || d.mqtt == nil {
			return nil, errors.New("control module needs a player and an mqtt client")
		}
		mod, err := control.NewModule(logger.With(zap.String("module", moduleControl)), d.mqtt, d.player, controlConfig(cfg))
		if err != nil {
			return nil, err
		}
		modules = append(modules, tsmd.ModuleRunner{Name: moduleControl, Run: mod.Run})
	}

	if wants(moduleOnly, moduleStatusHTTP, cfg.Modules.StatusHTTP.Enabled) {
		if d.player == nil {
			return nil, errors.New("status_http module needs a player")
		}
		mod, err := statushttp.NewModule(logger.With(zap.String("module", moduleStatusHTTP)), d.player, d.metrics, statushttp.Config{
			Listen: cfg.Modules.StatusHTTP.Listen,
		})
		if err != nil {
			return nil, err
		}
		modules = append(modules, tsmd.ModuleRunner{Name: moduleStatusHTTP, Run: mod.Run})
	}

	if len(modules) == 0 {
		return nil, errors.New("no modules enabled")
	}
	return modules, nil
}

func enabledModules(cfg tsmd.Config) []string {
	out := []string{}
	if cfg.Modules.EmbeddedMQTT.Enabled {
		out = append(out, moduleEmbeddedMQTT)
	}
	if cfg.Modules.Bot.Enabled {
		out = append(out, moduleBot)
	}
	if cfg.Modules.Control.Enabled {
		out = append(out, moduleControl)
	}
	if cfg.Modules.StatusHTTP.Enabled {
		out = append(out, moduleStatusHTTP)
	}
	return out
}

// printResolvedConfig writes the effective config as TOML with secrets masked.
func printResolvedConfig(w io.Writer, cfg tsmd.Config) error {
	mask := func(s *string) {
		if *s != "" {
			*s = "********"
		}
	}
	mask(&cfg.Query.Password)
	mask(&cfg.Server.Auth.Pass)
	mask(&cfg.Modules.EmbeddedMQTT.Password)
	return toml.NewEncoder(w).Encode(cfg)
}

func embeddedConfig(cfg tsmd.Config) embeddedmqtt.Config {
	e := cfg.Modules.EmbeddedMQTT
	return embeddedmqtt.Config{
		Listen:         e.Listen,
		AllowAnonymous: e.AllowAnonymous,
		Username:       e.Username,
		Password:       e.Password,
		TopicBase:      cfg.Server.TopicBase,
		TLSCA:          e.TLSCA,
		TLSCert:        e.TLSCert,
		TLSKey:         e.TLSKey,
	}
}

func embeddedBrokerURL(cfg tsmd.Config) string {
	e := cfg.Modules.EmbeddedMQTT
	listen := e.Listen
	if listen == "" {
		listen = embeddedmqtt.DefaultListen
	}
	return embeddedmqtt.BrokerURL(listen, tlsconf.Enabled(e.TLSCA, e.TLSCert, e.TLSKey))
}

func startEmbeddedBroker(ctx context.Context, cfg tsmd.Config, logger *zap.Logger, cancel context.CancelFunc) error {
	mod, err := embeddedmqtt.NewModule(logger.With(zap.String("module", moduleEmbeddedMQTT)), embeddedConfig(cfg))
	if err != nil {
		return err
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- mod.Run(ctx)
	}()
	go func() {
		if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("embedded mqtt exited", zap.Error(err))
			cancel()
		}
	}()

	select {
	case <-mod.Ready():
	case <-time.After(brokerTimeout):
		return errors.New("embedded mqtt did not start")
	}
	return waitForListen(cfg.Modules.EmbeddedMQTT.Listen, brokerTimeout)
}

func waitForListen(listen string, timeout time.Duration) error {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return err
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	addr := net.JoinHostPort(host, port)
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 200*time.Millisecond)
		if err == nil {
			_ = conn.Close()
			return nil
		}
		time.Sleep(50 * time.Millisecond)
	}
	return fmt.Errorf("embedded mqtt not ready at %s", addr)
}
