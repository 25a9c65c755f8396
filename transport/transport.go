// Package transport provides the byte stream connections the MQTT client
// runs on top of. A Connection is selected by URL scheme through a Registry.
package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"sync"

	log "github.com/sirupsen/logrus"
	"golang.org/x/net/proxy"
)

const (
	SchemeTLS       = "mqtts"
	SchemeWebSocket = "wss"

	DefaultPortTLS       = 8883
	DefaultPortWebSocket = 443

	// DefaultPath is the HTTP path used by the websocket transport if none
	// is configured.
	DefaultPath = "/mqtt"

	readBufferSize = 4096
)

var (
	ErrUnknownScheme = fmt.Errorf("transport: unknown scheme")
	ErrClosed        = fmt.Errorf("transport: connection closed")
)

// Connection is a duplex byte stream.
type Connection interface {
	// Write writes b to the stream. It honors the deadline of ctx.
	Write(ctx context.Context, b []byte) (int, error)
	// OnRead registers handler and starts reading from the stream. The
	// handler is invoked sequentially from a single goroutine; the slice
	// passed is only valid for the duration of the call.
	OnRead(handler func([]byte))
	// Done is closed when the stream has ended.
	Done() <-chan struct{}
	// Err returns nil if the stream ended cleanly or was closed locally,
	// and the I/O error otherwise. It must only be called after Done is
	// closed.
	Err() error
	// Close closes the stream. It is safe to call multiple times.
	Close() error
}

// Dialer opens a Connection to host:port.
type Dialer func(
	ctx context.Context,
	host string,
	port int,
	cfg *Config,
) (Connection, error)

// Config holds the options shared by all transports.
type Config struct {
	// TLSConfig is cloned for every connection. If nil, a default
	// configuration verifying the server name is used.
	TLSConfig *tls.Config
	// InsecureSkipVerify disables certificate verification.
	InsecureSkipVerify bool
	// Path is the HTTP path of the websocket endpoint.
	Path string
	// Proxy dials the underlying TCP connection. If nil, the proxy
	// configured in the environment (ALL_PROXY) is used.
	Proxy proxy.ContextDialer
	// Logger defaults to the logrus standard logger.
	Logger log.FieldLogger
}

func (c *Config) logger() log.FieldLogger {
	if c == nil || c.Logger == nil {
		return log.StandardLogger()
	}
	return c.Logger
}

func (c *Config) path() string {
	if c == nil || c.Path == "" {
		return DefaultPath
	}
	return c.Path
}

func (c *Config) dialer() proxy.ContextDialer {
	if c != nil && c.Proxy != nil {
		return c.Proxy
	}
	if d, ok := proxy.FromEnvironment().(proxy.ContextDialer); ok {
		return d
	}
	return &net.Dialer{}
}

func (c *Config) tlsConfig(host string) *tls.Config {
	var tlsConfig *tls.Config
	if c != nil && c.TLSConfig != nil {
		tlsConfig = c.TLSConfig.Clone()
	} else {
		tlsConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	if tlsConfig.ServerName == "" {
		tlsConfig.ServerName = host
	}
	if c != nil && c.InsecureSkipVerify {
		tlsConfig.InsecureSkipVerify = true
	}
	return tlsConfig
}

// Registry maps URL schemes to Dialers. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	dialers map[string]Dialer
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{dialers: make(map[string]Dialer)}
}

// DefaultRegistry returns a registry holding the TLS socket ("mqtts") and
// websocket ("wss") transports.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(SchemeTLS, DialTLS)
	r.Register(SchemeWebSocket, DialWebSocket)
	return r
}

// Register adds or replaces the dialer for scheme.
func (r *Registry) Register(scheme string, dial Dialer) {
	r.mu.Lock()
	r.dialers[scheme] = dial
	r.mu.Unlock()
}

func (r *Registry) Lookup(scheme string) (Dialer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	dial, ok := r.dialers[scheme]
	return dial, ok
}

// Dial opens a connection using the dialer registered for scheme.
func (r *Registry) Dial(
	ctx context.Context,
	scheme, host string,
	port int,
	cfg *Config,
) (Connection, error) {
	dial, ok := r.Lookup(scheme)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownScheme, scheme)
	}
	return dial(ctx, host, port, cfg)
}

// Endpoint is a broker address parsed from a URL.
type Endpoint struct {
	Scheme string
	Host   string
	Port   int
	Path   string
}

// ParseURL parses a broker URL such as "mqtts://broker:8883" or
// "wss://broker/mqtt". A missing port defaults to the scheme's well-known
// port.
func ParseURL(rawURL string) (*Endpoint, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	ep := &Endpoint{
		Scheme: u.Scheme,
		Host:   u.Hostname(),
		Path:   u.Path,
	}
	if ep.Host == "" {
		return nil, fmt.Errorf("transport: missing host in %q", rawURL)
	}
	if p := u.Port(); p != "" {
		ep.Port, err = strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("transport: invalid port %q", p)
		}
		return ep, nil
	}
	switch ep.Scheme {
	case SchemeTLS:
		ep.Port = DefaultPortTLS
	case SchemeWebSocket:
		ep.Port = DefaultPortWebSocket
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownScheme, ep.Scheme)
	}
	return ep, nil
}

// completion tracks the end of a stream.
type completion struct {
	done chan struct{}
	once sync.Once
	err  error
}

func (c *completion) finish(err error) {
	c.once.Do(func() {
		c.err = err
		close(c.done)
	})
}

func (c *completion) Done() <-chan struct{} {
	return c.done
}

func (c *completion) Err() error {
	<-c.done
	return c.err
}

func address(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}
