// Package app implements the mqttie command line tool.
package app

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/alfrunes/mqttie/v5/client"
	"github.com/alfrunes/mqttie/v5/mqtt"
	"github.com/mattn/go-colorable"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// app carries the state shared by the commands of one invocation.
type app struct {
	opts       *Options
	configFile string
	v          *viper.Viper
	logger     *log.Logger

	registry *prometheus.Registry
	metrics  *client.Metrics
}

// NewRootCommand returns the mqttie command tree.
func NewRootCommand() *cobra.Command {
	a := &app{
		opts:   NewOptions(),
		v:      viper.New(),
		logger: log.New(),
	}
	cmd := &cobra.Command{
		Use:   "mqttie",
		Short: "MQTT v5 command line client",
		Long: "mqttie connects to an MQTT v5 server over TLS or secure " +
			"websockets to publish and subscribe to application messages.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}
	fs := cmd.PersistentFlags()
	a.opts.AddFlags(fs)
	fs.StringVar(&a.configFile, "config", "",
		"Path to a configuration file (yaml, json or toml).")

	cmd.AddCommand(
		newConnectCommand(a),
		newPublishCommand(a),
		newSubscribeCommand(a),
		newConfigCommand(a),
	)
	return cmd
}

func (a *app) init(cmd *cobra.Command) error {
	if err := a.v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	if err := a.opts.Load(a.v, a.configFile); err != nil {
		return err
	}
	a.setupLogger(cmd.ErrOrStderr())
	if a.opts.MetricsAddr != "" {
		a.registry = prometheus.NewRegistry()
		a.metrics = client.NewMetrics(a.registry)
	}
	return nil
}

func (a *app) setupLogger(w io.Writer) {
	if w == os.Stderr {
		w = colorable.NewColorableStderr()
	}
	a.logger.SetOutput(w)
	if a.opts.Log.JSON {
		a.logger.SetFormatter(&log.JSONFormatter{})
	} else {
		a.logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	a.setLogLevel(a.opts.Log.Level)
}

func (a *app) setLogLevel(level string) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		a.logger.Warnf("ignoring log level: %s", err)
		return
	}
	a.logger.SetLevel(lvl)
}

// connect creates a client and establishes the session within the
// configured connect timeout.
func (a *app) connect(
	ctx context.Context,
	extra ...*client.ClientOptions,
) (*client.Client, error) {
	c, err := a.opts.NewClient(a.logger, a.metrics, extra...)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, a.opts.ConnectTimeout)
	defer cancel()
	if err = c.Connect(ctx, a.opts.ConnectOptions()); err != nil {
		_ = c.Close()
		return nil, err
	}
	a.logger.Infof("connected as %q", c.ClientID())
	return c, nil
}

// disconnect ends the session; a session the server already closed is not
// an error.
func (a *app) disconnect(c *client.Client) {
	ctx, cancel := context.WithTimeout(context.Background(),
		a.opts.ConnectTimeout)
	defer cancel()
	err := c.Disconnect(ctx)
	if err != nil &&
		!errors.Is(err, mqtt.ErrNotConnected) &&
		!errors.Is(err, mqtt.ErrReceivedDisconnect) {
		a.logger.Warnf("failed to disconnect: %s", err)
	}
}
