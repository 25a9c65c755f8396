package app

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"
	"unicode/utf8"

	"github.com/alfrunes/mqttie/v5/client"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"
)

const messageQueueSize = 256

var errCountReached = errors.New("message count reached")

type subscribeOptions struct {
	Topics  []string
	Extract string
	Record  string
	Count   int
}

func newSubscribeCommand(a *app) *cobra.Command {
	o := &subscribeOptions{}
	cmd := &cobra.Command{
		Use:   "subscribe",
		Short: "Subscribe to topic filters and print received messages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.subscribe(cmd, o)
		},
	}
	fs := cmd.Flags()
	fs.StringSliceVarP(&o.Topics, "topic", "t", o.Topics,
		"Topic filter to subscribe to (repeatable).")
	fs.StringVar(&o.Extract, "extract", o.Extract,
		"Print only the value at this JSON path of each payload.")
	fs.StringVar(&o.Record, "record", o.Record,
		"Record received messages into this SQLite database.")
	fs.IntVar(&o.Count, "count", o.Count,
		"Exit after receiving this many messages (0 is unlimited).")
	_ = cmd.MarkFlagRequired("topic")
	return cmd
}

func (a *app) subscribe(cmd *cobra.Command, o *subscribeOptions) error {
	ctx := cmd.Context()
	a.watchConfig()

	var recorder *Recorder
	if o.Record != "" {
		var err error
		recorder, err = OpenRecorder(ctx, o.Record)
		if err != nil {
			return err
		}
		defer recorder.Close()
	}

	messages := make(chan client.Message, messageQueueSize)
	lost := make(chan error, 1)
	opts := client.NewClientOptions()
	opts.SetMessageHandler(func(msg client.Message) {
		select {
		case messages <- msg:
		default:
			a.logger.Warnf("message queue full, dropping message on %q",
				msg.Topic)
		}
	})
	opts.SetConnectionLostHandler(func(err error) {
		if err == nil {
			err = errors.New("closed by server")
		}
		select {
		case lost <- err:
		default:
		}
	})

	g, ctx := errgroup.WithContext(ctx)
	a.serveMetrics(ctx)
	c, err := a.connect(ctx, opts)
	if err != nil {
		return err
	}
	defer a.disconnect(c)
	for _, topic := range o.Topics {
		if err = c.Subscribe(ctx, topic); err != nil {
			return err
		}
		a.logger.Infof("subscribed to %q", topic)
	}

	g.Go(func() error {
		select {
		case <-ctx.Done():
			return nil
		case err := <-lost:
			return fmt.Errorf("connection lost: %w", err)
		}
	})
	g.Go(func() error {
		out := cmd.OutOrStdout()
		received := 0
		for {
			select {
			case <-ctx.Done():
				return nil
			case msg := <-messages:
				if err := a.handleMessage(ctx, out, recorder, o, msg); err != nil {
					return err
				}
				received++
				if o.Count > 0 && received >= o.Count {
					return errCountReached
				}
			}
		}
	})
	err = g.Wait()
	if errors.Is(err, errCountReached) {
		return nil
	}
	return err
}

func (a *app) handleMessage(
	ctx context.Context,
	out io.Writer,
	recorder *Recorder,
	o *subscribeOptions,
	msg client.Message,
) error {
	if recorder != nil {
		if err := recorder.Record(ctx, msg, time.Now()); err != nil {
			return err
		}
	}
	value, ok := formatPayload(msg, o.Extract)
	if !ok {
		a.logger.Debugf("no value at %q in message on %q",
			o.Extract, msg.Topic)
		return nil
	}
	_, err := fmt.Fprintf(out, "%s %s\n", msg.Topic, value)
	return err
}

// formatPayload renders the payload for printing. With a JSON path, only the
// extracted value is returned and ok is false if there is none.
func formatPayload(msg client.Message, path string) (value string, ok bool) {
	if path != "" {
		res := gjson.GetBytes(msg.Payload, path)
		if !res.Exists() {
			return "", false
		}
		return res.String(), true
	}
	if msg.UTF8 || utf8.Valid(msg.Payload) {
		return msg.Text(), true
	}
	return hex.EncodeToString(msg.Payload), true
}

// watchConfig reloads the log level when the config file changes.
func (a *app) watchConfig() {
	if a.configFile == "" {
		return
	}
	a.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		a.logger.Infof("config file %s changed", e.Name)
		a.setLogLevel(a.v.GetString("log.level"))
	})
	a.v.WatchConfig()
}
