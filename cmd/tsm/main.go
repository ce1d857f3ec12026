package main

import (
	"context"
	"fmt"
	"os"
	"os/user"
	"time"

	"github.com/spf13/cobra"

	"github.com/mikey-austin/tsmusic/internal/adapters/clock"
	"github.com/mikey-austin/tsmusic/internal/adapters/config"
	"github.com/mikey-austin/tsmusic/internal/adapters/idgen"
	"github.com/mikey-austin/tsmusic/internal/adapters/mqtt"
	"github.com/mikey-austin/tsmusic/internal/adapters/output"
	"github.com/mikey-austin/tsmusic/internal/core"
	"github.com/mikey-austin/tsmusic/pkg/tsm"
)

type app struct {
	service core.Service
	printer output.Printer
	client  *mqtt.Client
	timeout time.Duration
}

func main() {
	root := rootCommand()
	if err := root.Execute(); err != nil {
		os.Exit(core.ExitCode(err))
	}
}

func rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "tsm",
		Short:        "TeamSpeak music bot CLI",
		SilenceUsage: true,
	}

	var (
		broker    string
		topicBase string
		identity  string
		timeout   time.Duration
		jsonOut   bool
		tlsCA     string
		tlsCert   string
		tlsKey    string
		userOpt   string
		passOpt   string
	)

	root.PersistentFlags().StringVarP(&broker, "broker", "b", "", "MQTT broker URL")
	root.PersistentFlags().StringVar(&topicBase, "topic-base", tsm.BaseTopic, "MQTT topic base")
	root.PersistentFlags().StringVarP(&identity, "identity", "i", "", "controller identity")
	root.PersistentFlags().DurationVarP(&timeout, "timeout", "t", 2*time.Second, "command timeout")
	root.PersistentFlags().BoolVarP(&jsonOut, "json", "j", false, "output json")
	root.PersistentFlags().StringVar(&tlsCA, "tls-ca", "", "TLS CA path")
	root.PersistentFlags().StringVar(&tlsCert, "tls-cert", "", "TLS cert path")
	root.PersistentFlags().StringVar(&tlsKey, "tls-key", "", "TLS key path")
	root.PersistentFlags().StringVar(&userOpt, "user", "", "MQTT username")
	root.PersistentFlags().StringVar(&passOpt, "pass", "", "MQTT password")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		identity = defaultIdentity(identity, cfg.Identity)
		if broker == "" {
			broker = cfg.Broker
		}
		if topicBase == tsm.BaseTopic && cfg.TopicBase != "" {
			topicBase = cfg.TopicBase
		}
		if broker == "" {
			return &core.CLIError{Code: core.ExitUsage, Msg: "broker is required (set --broker or config)"}
		}
		if userOpt == "" {
			userOpt, passOpt = cfg.Username, cfg.Password
		}
		tlsCA = firstNonEmpty(tlsCA, cfg.TLSCA)
		tlsCert = firstNonEmpty(tlsCert, cfg.TLSCert)
		tlsKey = firstNonEmpty(tlsKey, cfg.TLSKey)

		mqttClient, err := mqtt.NewClient(mqtt.Options{
			BrokerURL: broker,
			ClientID:  "tsm-" + idgen.Short(),
			Username:  userOpt,
			Password:  passOpt,
			TLSCA:     tlsCA,
			TLSCert:   tlsCert,
			TLSKey:    tlsKey,
			TopicBase: topicBase,
			Timeout:   timeout,
		})
		if err != nil {
			return core.WrapError(core.ExitRuntime, "connect broker", err)
		}

		coreCfg := core.Config{
			Broker:    broker,
			Identity:  identity,
			TopicBase: topicBase,
			Aliases:   cfg.Aliases,
			Defaults:  core.Defaults{Bot: cfg.Defaults.Bot},
		}

		var printer output.Printer = output.HumanPrinter{}
		if jsonOut {
			printer = output.JSONPrinter{}
		}

		cmd.SetContext(context.WithValue(cmd.Context(), appKey{}, &app{
			service: core.Service{
				Broker:   mqttClient,
				Resolver: core.Resolver{Presence: mqttClient, Config: coreCfg},
				Clock:    clock.Clock{},
				IDGen:    idgen.Generator{},
				Config:   coreCfg,
			},
			printer: printer,
			client:  mqttClient,
			timeout: timeout,
		}))
		return nil
	}
	root.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		if app := fromContext(cmd); app != nil {
			app.client.Close()
		}
	}

	root.AddCommand(lsCommand())
	root.AddCommand(statusCommand())
	root.AddCommand(queueCommand())
	root.AddCommand(addCommand())
	root.AddCommand(clearCommand())
	root.AddCommand(simpleCommand("skip", "Skip the current track", (core.Service).Skip))
	root.AddCommand(simpleCommand("stop", "Stop playback and clear the queue", (core.Service).Stop))
	root.AddCommand(simpleCommand("pause", "Pause playback", (core.Service).Pause))
	root.AddCommand(simpleCommand("resume", "Resume playback", (core.Service).Resume))
	root.AddCommand(volumeCommand())
	return root
}

type appKey struct{}

func fromContext(cmd *cobra.Command) *app {
	ctx := cmd.Context()
	if ctx == nil {
		return nil
	}
	val, _ := ctx.Value(appKey{}).(*app)
	return val
}

func (a *app) withTimeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), a.timeout)
}

func selectorArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

func defaultIdentity(flagVal string, cfgVal string) string {
	if flagVal != "" {
		return flagVal
	}
	if cfgVal != "" {
		return cfgVal
	}
	usr, _ := user.Current()
	host, _ := os.Hostname()
	if usr != nil && host != "" {
		return fmt.Sprintf("%s@%s", usr.Username, host)
	}
	if host != "" {
		return host
	}
	return "tsm-unknown"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
