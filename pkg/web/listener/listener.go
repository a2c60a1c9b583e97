/*
 * Copyright 2018 The Trickster Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package listener runs the HTTP servers of the wiki server on observed,
// optionally connection-limited, network listeners
package listener

import (
	"context"
	"crypto/tls"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/wikiserv/wikiserv/pkg/observability/logging"
	"github.com/wikiserv/wikiserv/pkg/observability/logging/logger"
	"github.com/wikiserv/wikiserv/pkg/observability/metrics"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/net/netutil"
)

// ErrNoSuchListener is returned by Group lookups for unknown names
var ErrNoSuchListener = stderrors.New("no such listener")

// DefaultReadHeaderTimeout bounds the time to read request headers
const DefaultReadHeaderTimeout = 10 * time.Second

// Options configures a Listener
type Options struct {
	Name    string
	Address string
	Port    int
	// ConnectionsLimit caps concurrent connections. 0 is unlimited.
	ConnectionsLimit int
	// TLSConfig enables https when it carries certificates
	TLSConfig *tls.Config
	// H2C serves HTTP/2 over cleartext connections
	H2C               bool
	ReadHeaderTimeout time.Duration
	Logger            logging.Logger
}

// Listener is a net.Listener paired with the http.Server that serves it
type Listener struct {
	net.Listener
	name   string
	scheme string
	server *http.Server
	log    logging.Logger
}

type observedConnection struct {
	net.Conn
	once sync.Once
}

func (o *observedConnection) Close() error {
	err := o.Conn.Close()
	o.once.Do(func() {
		metrics.FrontendActiveConnections.Dec()
	})
	return err
}

// Accept implements net.Listener.Accept
func (l *Listener) Accept() (net.Conn, error) {
	c, err := l.Listener.Accept()
	if err != nil {
		metrics.FrontendConnectionFailed.Inc()
		return c, err
	}
	metrics.FrontendActiveConnections.Inc()
	metrics.FrontendConnectionAccepted.Inc()
	return &observedConnection{Conn: c}, nil
}

// New opens the network listener described by o and prepares a server for h.
//
// The listener is wrapped, innermost first, by a netutil.LimitListener when
// a connection limit is set, which blocks Accept while the limit is
// reached; by the connection observer that feeds the connection metrics;
// and by TLS when configured.
func New(o Options, h http.Handler) (*Listener, error) {
	lg := o.Logger
	if lg == nil {
		lg = logger.Logger()
	}
	rht := o.ReadHeaderTimeout
	if rht <= 0 {
		rht = DefaultReadHeaderTimeout
	}
	h2s := &http2.Server{}
	l := &Listener{name: o.Name, scheme: "http", log: lg}
	svr := &http.Server{Handler: h, ReadHeaderTimeout: rht}
	if o.H2C {
		svr.Handler = h2c.NewHandler(h, h2s)
	}

	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", o.Address, o.Port))
	if err != nil {
		return nil, err
	}
	if o.ConnectionsLimit > 0 {
		ln = netutil.LimitListener(ln, o.ConnectionsLimit)
		metrics.FrontendMaxConnections.Set(float64(o.ConnectionsLimit))
	}
	l.Listener = ln

	if o.TLSConfig != nil && (len(o.TLSConfig.Certificates) > 0 || o.TLSConfig.GetCertificate != nil) {
		l.scheme = "https"
		svr.TLSConfig = o.TLSConfig.Clone()
		if err := http2.ConfigureServer(svr, h2s); err != nil {
			ln.Close()
			return nil, err
		}
	}
	l.server = svr

	lg.Debug("starting listener", logging.Pairs{
		"listenerName":     o.Name,
		"connectionsLimit": o.ConnectionsLimit,
		"scheme":           l.scheme,
		"address":          ln.Addr().String(),
	})
	return l, nil
}

// Name returns the listener name
func (l *Listener) Name() string {
	return l.name
}

// Scheme returns http or https
func (l *Listener) Scheme() string {
	return l.scheme
}

// Serve accepts connections until the listener is shut down. A graceful
// shutdown returns nil.
func (l *Listener) Serve() error {
	var ln net.Listener = l
	if l.scheme == "https" {
		ln = tls.NewListener(l, l.server.TLSConfig)
	}
	l.log.Info("listener serving", logging.Pairs{
		"listenerName": l.name, "address": l.Addr().String(), "scheme": l.scheme})
	err := l.server.Serve(ln)
	if stderrors.Is(err, http.ErrServerClosed) {
		return nil
	}
	l.log.Error("listener stopping", logging.Pairs{"listenerName": l.name, "detail": err})
	return err
}

// Shutdown stops accepting connections and waits for active requests until
// ctx is done
func (l *Listener) Shutdown(ctx context.Context) error {
	return l.server.Shutdown(ctx)
}

// Group is a named collection of listeners
type Group struct {
	mtx     sync.Mutex
	members map[string]*Listener
	order   []string
}

// NewGroup returns an empty Group
func NewGroup() *Group {
	return &Group{members: make(map[string]*Listener)}
}

// Add places l in the group, replacing any listener of the same name
func (g *Group) Add(l *Listener) {
	g.mtx.Lock()
	defer g.mtx.Unlock()
	if _, ok := g.members[l.name]; !ok {
		g.order = append(g.order, l.name)
	}
	g.members[l.name] = l
}

// Get returns the named listener
func (g *Group) Get(name string) (*Listener, error) {
	g.mtx.Lock()
	defer g.mtx.Unlock()
	l, ok := g.members[name]
	if !ok {
		return nil, ErrNoSuchListener
	}
	return l, nil
}

// Listeners returns the members in the order they were added
func (g *Group) Listeners() []*Listener {
	g.mtx.Lock()
	defer g.mtx.Unlock()
	out := make([]*Listener, 0, len(g.order))
	for _, n := range g.order {
		out = append(out, g.members[n])
	}
	return out
}

// Shutdown gracefully stops every member
func (g *Group) Shutdown(ctx context.Context) error {
	var result *multierror.Error
	for _, l := range g.Listeners() {
		if err := l.Shutdown(ctx); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", l.name, err))
		}
	}
	return result.ErrorOrNil()
}
