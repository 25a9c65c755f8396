package app

import (
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"github.com/alfrunes/mqttie/v5/client"
	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/cobra"
)

type publishOptions struct {
	Topic       string
	Message     string
	File        string
	ContentType string
	Retain      bool
	Count       int
}

func newPublishCommand(a *app) *cobra.Command {
	o := &publishOptions{Count: 1}
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish an application message",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.publish(cmd, o)
		},
	}
	fs := cmd.Flags()
	fs.StringVarP(&o.Topic, "topic", "t", o.Topic, "Topic to publish to.")
	fs.StringVarP(&o.Message, "message", "m", o.Message, "Message payload.")
	fs.StringVarP(&o.File, "file", "f", o.File,
		"Read the payload from a file (\"-\" for stdin).")
	fs.StringVar(&o.ContentType, "content-type", o.ContentType,
		"Content type of the payload (detected for --file if empty).")
	fs.BoolVar(&o.Retain, "retain", o.Retain,
		"Ask the server to retain the message.")
	fs.IntVar(&o.Count, "count", o.Count,
		"Number of times to publish the message.")
	_ = cmd.MarkFlagRequired("topic")
	cmd.MarkFlagsMutuallyExclusive("message", "file")
	return cmd
}

func (a *app) publish(cmd *cobra.Command, o *publishOptions) error {
	payload, err := o.payload(cmd.InOrStdin())
	if err != nil {
		return err
	}
	opts := client.NewPublishOptions()
	opts.SetRetain(o.Retain)
	contentType, text := o.ContentType, utf8.Valid(payload)
	if o.File != "" {
		detected, isText := detectContentType(payload)
		if contentType == "" {
			contentType = detected
		}
		text = isText
	}
	if contentType != "" {
		opts.SetContentType(contentType)
	}
	opts.SetUTF8(text)

	ctx := cmd.Context()
	a.serveMetrics(ctx)
	c, err := a.connect(ctx)
	if err != nil {
		return err
	}
	defer a.disconnect(c)
	for i := 0; i < o.Count; i++ {
		if err = c.Publish(ctx, o.Topic, payload, opts); err != nil {
			return err
		}
	}
	a.logger.Infof("published %d message(s) to %q", o.Count, o.Topic)
	return nil
}

func (o *publishOptions) payload(stdin io.Reader) ([]byte, error) {
	switch o.File {
	case "":
		return []byte(o.Message), nil
	case "-":
		return io.ReadAll(stdin)
	default:
		b, err := os.ReadFile(o.File)
		if err != nil {
			return nil, fmt.Errorf("failed to read payload: %w", err)
		}
		return b, nil
	}
}

// detectContentType sniffs the MIME type of payload and reports whether it
// is UTF-8 encoded text.
func detectContentType(payload []byte) (string, bool) {
	mime := mimetype.Detect(payload)
	text := false
	for m := mime; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			text = utf8.Valid(payload)
			break
		}
	}
	return mime.String(), text
}
