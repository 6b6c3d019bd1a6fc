// Package listener provides the TCP listener used by the connection server.
// It caps concurrent connections and reports them to prometheus.
package listener

import (
	"net"
	"strconv"
	"sync"

	"github.com/xavierroma/vala/app/metrics"

	"golang.org/x/net/netutil"
)

// Listener wraps a net.Listener so that every accepted connection is
// counted until it is closed
type Listener struct {
	net.Listener
}

type observedConnection struct {
	net.Conn
	once sync.Once
}

func (o *observedConnection) Close() error {
	err := o.Conn.Close()
	o.once.Do(func() {
		metrics.ActiveConnections.Dec()
		metrics.ConnectionsClosed.Inc()
	})
	return err
}

// Accept implements net.Listener.Accept
func (l *Listener) Accept() (net.Conn, error) {
	c, err := l.Listener.Accept()
	if err != nil {
		metrics.ConnectionsFailed.Inc()
		return c, err
	}
	metrics.ActiveConnections.Inc()
	metrics.ConnectionsAccepted.Inc()
	return &observedConnection{Conn: c}, nil
}

// New creates a TCP listener on address:port. When connectionsLimit > 0 the
// listener is wrapped with a netutil.LimitListener, which blocks Accept
// until a slot is free.
func New(address string, port, connectionsLimit int) (*Listener, error) {
	l, err := net.Listen("tcp", net.JoinHostPort(address, strconv.Itoa(port)))
	if err != nil {
		return nil, err
	}
	return Wrap(l, connectionsLimit), nil
}

// Wrap applies the connection limit and observation to an existing listener
func Wrap(l net.Listener, connectionsLimit int) *Listener {
	if connectionsLimit > 0 {
		l = netutil.LimitListener(l, connectionsLimit)
		metrics.MaxConnections.Set(float64(connectionsLimit))
	}
	return &Listener{Listener: l}
}

// Port returns the TCP port the listener is bound to, or 0
func (l *Listener) Port() int {
	if a, ok := l.Addr().(*net.TCPAddr); ok {
		return a.Port
	}
	return 0
}
