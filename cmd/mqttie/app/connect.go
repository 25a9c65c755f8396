package app

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/alfrunes/mqttie/v5/packets"
	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"
)

func newConnectCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "connect",
		Short: "Connect to the server and print the session properties",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer a.disconnect(c)
			printServerProperties(cmd.OutOrStdout(),
				c.ClientID(), c.KeepAlive(), c.ServerProperties())
			return nil
		},
	}
}

func printServerProperties(
	w io.Writer,
	clientID string,
	keepAlive time.Duration,
	connAck *packets.ConnAck,
) {
	table := uitable.New()
	table.MaxColWidth = 60
	table.AddRow("PROPERTY", "VALUE")
	table.AddRow("Client ID", clientID)
	table.AddRow("Keep alive", keepAlive.String())
	if connAck != nil {
		table.AddRow("Session present", strconv.FormatBool(connAck.SessionPresent))
		table.AddRow("Session expiry interval", formatUint32(connAck.SessionExpiryInterval))
		table.AddRow("Maximum QoS", formatUint8(connAck.MaximumQoS, "2"))
		table.AddRow("Retain available", formatBool(connAck.RetainAvailable))
		table.AddRow("Maximum packet size", formatUint32(connAck.MaximumPacketSize))
		table.AddRow("Topic alias maximum", formatUint16(connAck.TopicAliasMaximum))
		table.AddRow("Wildcard subscriptions", formatBool(connAck.WildcardSubscriptionAvailable))
		table.AddRow("Subscription identifiers", formatBool(connAck.SubscriptionIdentifiersAvailable))
		table.AddRow("Shared subscriptions", formatBool(connAck.SharedSubscriptionAvailable))
	}
	fmt.Fprintln(w, table)
}

// Absent properties print the default the server implies by omitting them.

func formatBool(b *bool) string {
	if b == nil {
		return "true"
	}
	return strconv.FormatBool(*b)
}

func formatUint8(v *uint8, absent string) string {
	if v == nil {
		return absent
	}
	return strconv.FormatUint(uint64(*v), 10)
}

func formatUint16(v *uint16) string {
	if v == nil {
		return "0"
	}
	return strconv.FormatUint(uint64(*v), 10)
}

func formatUint32(v *uint32) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatUint(uint64(*v), 10)
}
