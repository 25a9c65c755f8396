package client

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
)

func TestStateMachine(t *testing.T) {
	testCases := []struct {
		Name string

		Events []string

		State     State
		Connected float64
	}{
		{
			Name: "Accepted",

			Events:    []string{eventConnect, eventConnAck},
			State:     StateConnected,
			Connected: 1,
		},
		{
			Name: "Rejected",

			Events: []string{eventConnect, eventReject},
			State:  StateDisconnected,
		},
		{
			Name: "Closed while connecting",

			Events: []string{eventConnect, eventClose},
			State:  StateDisconnected,
		},
		{
			Name: "Reconnect",

			Events: []string{
				eventConnect, eventConnAck, eventClose,
				eventConnect, eventConnAck,
			},
			State:     StateConnected,
			Connected: 1,
		},
		{
			Name: "Invalid events are ignored",

			Events: []string{eventConnAck, eventClose, eventReject},
			State:  StateDisconnected,
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.Name, func(t *testing.T) {
			logger, _ := test.NewNullLogger()
			metrics := NewMetrics(nil)
			client := &Client{
				log:   logger,
				state: newStateMachine(logger, metrics),
			}
			for _, event := range testCase.Events {
				client.transition(event)
			}
			assert.Equal(t, testCase.State, client.State())
			assert.Equal(t, testCase.Connected,
				testutil.ToFloat64(metrics.Connected))
		})
	}

	t.Run("Nil metrics", func(t *testing.T) {
		logger, _ := test.NewNullLogger()
		client := &Client{
			log:   logger,
			state: newStateMachine(logger, nil),
		}
		client.transition(eventConnect)
		client.transition(eventConnAck)
		assert.Equal(t, StateConnected, client.State())
	})
}
