package client

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alfrunes/mqttie/v5/transport"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testScheme = "fake"

// FakeConn is a transport.Connection driven by the test: Write goes through
// the mock, inbound bytes are pushed with Feed.
type FakeConn struct {
	mock.Mock

	// Written receives a copy of every successful write.
	Written chan []byte

	mu      sync.Mutex
	handler func([]byte)

	done chan struct{}
	once sync.Once
	err  error
}

func NewFakeConn() *FakeConn {
	return &FakeConn{
		Written: make(chan []byte, 64),
		done:    make(chan struct{}),
	}
}

func (f *FakeConn) Write(ctx context.Context, b []byte) (int, error) {
	args := f.Called(b)

	var r0 int
	if rf, ok := args.Get(0).(func([]byte) int); ok {
		r0 = rf(b)
	} else {
		r0 = args.Int(0)
	}

	var r1 error
	if rf, ok := args.Get(1).(func([]byte) error); ok {
		r1 = rf(b)
	} else {
		r1 = args.Error(1)
	}
	if r1 == nil {
		select {
		case f.Written <- append([]byte(nil), b...):
		default:
		}
	}
	return r0, r1
}

func (f *FakeConn) OnRead(handler func([]byte)) {
	f.mu.Lock()
	f.handler = handler
	f.mu.Unlock()
}

// Feed delivers b to the read handler on the calling goroutine.
func (f *FakeConn) Feed(b []byte) {
	f.mu.Lock()
	handler := f.handler
	f.mu.Unlock()
	if handler != nil {
		handler(b)
	}
}

func (f *FakeConn) Done() <-chan struct{} {
	return f.done
}

func (f *FakeConn) Err() error {
	<-f.done
	return f.err
}

func (f *FakeConn) Close() error {
	f.finish(nil)
	return nil
}

// Fail ends the stream with err.
func (f *FakeConn) Fail(err error) {
	f.finish(err)
}

func (f *FakeConn) finish(err error) {
	f.once.Do(func() {
		f.err = err
		close(f.done)
	})
}

// NextWrite waits for the next successful write.
func (f *FakeConn) NextWrite(t *testing.T) []byte {
	t.Helper()
	select {
	case b := <-f.Written:
		return b
	case <-time.After(time.Second * 3):
		require.FailNow(t, "timeout waiting for write")
	}
	return nil
}

// newTestClient returns a client dialing conn through the "fake" scheme. The
// write expectation accepts every write.
func newTestClient(
	t *testing.T,
	conn *FakeConn,
	opts ...*ClientOptions,
) (*Client, *test.Hook) {
	t.Helper()
	conn.On("Write", mock.Anything).
		Return(func(b []byte) int { return len(b) }, nil)

	logger, hook := test.NewNullLogger()
	logger.SetLevel(log.DebugLevel)

	registry := transport.NewRegistry()
	registry.Register(testScheme, func(
		context.Context, string, int, *transport.Config,
	) (transport.Connection, error) {
		return conn, nil
	})
	base := NewClientOptions()
	base.SetRegistry(registry)
	base.SetLogger(logger)
	return NewClient("localhost", 1883, testScheme,
		append([]*ClientOptions{base}, opts...)...), hook
}

// connectClient runs Connect answering with connAck. It returns the bytes
// written for the connect request and the result of Connect.
func connectClient(
	t *testing.T,
	client *Client,
	conn *FakeConn,
	connAck []byte,
	opts ...*ConnectOptions,
) ([]byte, error) {
	t.Helper()
	errChan := make(chan error, 1)
	go func() {
		errChan <- client.Connect(context.Background(), opts...)
	}()
	connect := conn.NextWrite(t)
	conn.Feed(connAck)
	select {
	case err := <-errChan:
		return connect, err
	case <-time.After(time.Second * 3):
		require.FailNow(t, "timeout waiting for Connect")
	}
	return nil, nil
}

// connAckAccepted is a CONNACK accepting the connection without properties.
var connAckAccepted = []byte{0x20, 3, 0, 0, 0}
