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

// Package daemon builds the wiki server from its configuration and runs it
// until it is told to stop
package daemon

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/wikiserv/wikiserv/cmd/wikiserv/config"
	"github.com/wikiserv/wikiserv/pkg/appinfo"
	"github.com/wikiserv/wikiserv/pkg/auth/credentials"
	"github.com/wikiserv/wikiserv/pkg/auth/login"
	"github.com/wikiserv/wikiserv/pkg/auth/sessions"
	"github.com/wikiserv/wikiserv/pkg/daemon/signaling"
	"github.com/wikiserv/wikiserv/pkg/encoding/profile"
	"github.com/wikiserv/wikiserv/pkg/errors"
	"github.com/wikiserv/wikiserv/pkg/events"
	"github.com/wikiserv/wikiserv/pkg/observability/logging"
	"github.com/wikiserv/wikiserv/pkg/observability/logging/level"
	"github.com/wikiserv/wikiserv/pkg/observability/logging/logger"
	"github.com/wikiserv/wikiserv/pkg/observability/metrics"
	"github.com/wikiserv/wikiserv/pkg/observability/pprof"
	"github.com/wikiserv/wikiserv/pkg/observability/tracing"
	tr "github.com/wikiserv/wikiserv/pkg/observability/tracing/registration"
	"github.com/wikiserv/wikiserv/pkg/router"
	"github.com/wikiserv/wikiserv/pkg/store"
	sr "github.com/wikiserv/wikiserv/pkg/store/registration"
	"github.com/wikiserv/wikiserv/pkg/web/handlers"
	"github.com/wikiserv/wikiserv/pkg/web/listener"
	"github.com/wikiserv/wikiserv/pkg/web/sse"
	"github.com/wikiserv/wikiserv/pkg/web/streamer"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultShutdownTimeout bounds the graceful shutdown of the listeners
	DefaultShutdownTimeout = 10 * time.Second

	mainListener    = "main"
	metricsListener = "metrics"
)

// Daemon is a built, ready to run wiki server
type Daemon struct {
	conf      *config.Config
	logger    logging.Logger
	tracer    *tracing.Tracer
	store     store.Store
	logins    *login.Manager
	bus       *events.Bus
	router    *router.Router
	listeners *listener.Group

	// ShutdownTimeout bounds the shutdown once Run's context is done
	ShutdownTimeout time.Duration
	shutdownOnce    sync.Once
	shutdownErr     error
}

// New builds the Daemon described by conf. The returned Daemon owns open
// sockets and a store connection; call Run to serve and release them.
func New(conf *config.Config) (*Daemon, error) {
	lg := logging.New(conf.Logging, conf.Main.InstanceID)
	logger.SetLogger(lg)
	for _, w := range conf.LoaderWarnings {
		lg.Warn(w, nil)
	}
	appinfo.SetServer(conf.Main.ServerName)
	metrics.BuildInfo.WithLabelValues(appinfo.GoVersion(),
		appinfo.GitCommitID, appinfo.Version).Set(1)

	d := &Daemon{
		conf:            conf,
		logger:          lg,
		bus:             events.New(),
		listeners:       listener.NewGroup(),
		ShutdownTimeout: DefaultShutdownTimeout,
	}
	if err := d.build(); err != nil {
		d.release()
		return nil, err
	}
	return d, nil
}

func (d *Daemon) build() error {
	conf := d.conf
	var err error

	d.tracer, err = tr.GetTracer(conf.Tracing, d.logger)
	if err != nil {
		return err
	}
	d.store, err = sr.New(conf.Auth.Store)
	if err != nil {
		return err
	}
	creds, err := credentials.New(d.store, []byte(conf.Auth.FakeRecordSecret))
	if err != nil {
		return err
	}
	if err := creds.Seed(conf.Auth.Users); err != nil {
		return err
	}
	sess := sessions.New(d.store, sessions.Options{
		TTL:        conf.Auth.SessionTTL,
		CookieName: conf.Auth.CookieName,
		CookiePath: conf.Main.PathPrefix + "/",
	})
	d.logins = login.NewManager(conf.Auth.LoginWindow, d.logger)

	h := handlers.New(handlers.Options{
		Logins:      d.logins,
		Credentials: creds,
		Sessions:    sess,
		SSE: sse.Options{
			KeepAlive:    conf.SSE.KeepAliveInterval,
			WriteTimeout: conf.SSE.WriteTimeout,
		},
		StaticRoot:  conf.Static.Root,
		StaticIndex: conf.Static.Index,
	})
	d.router = router.New(router.Options{
		Streamer: streamer.Options{
			PathPrefix:   conf.Main.PathPrefix,
			ExpectSecure: conf.Main.ExpectSecure,
			Compression:  profile.New(conf.Compression),
			Logger:       d.logger,
		},
		RequestedWith: conf.Security.RequestedWith,
		MaxBodySize:   int64(conf.Request.MaxBodySize.Bytes()),
		Bus:           d.bus,
		Tracer:        d.tracer,
		Logger:        d.logger,
	}, h.Session)
	if err := h.Register(d.router); err != nil {
		return err
	}
	d.router.Freeze()

	return d.buildListeners()
}

func (d *Daemon) buildListeners() error {
	fo := d.conf.Frontend
	tlsConfig, err := fo.TLSConfig()
	if err != nil {
		return err
	}
	l, err := listener.New(listener.Options{
		Name:              mainListener,
		Address:           fo.ListenAddress,
		Port:              fo.ListenPort,
		ConnectionsLimit:  fo.ConnectionsLimit,
		TLSConfig:         tlsConfig,
		H2C:               fo.H2C,
		ReadHeaderTimeout: fo.ReadHeaderTimeout,
		Logger:            d.logger,
	}, d.router)
	if err != nil {
		return err
	}
	d.listeners.Add(l)

	mo := d.conf.Metrics
	if mo == nil || mo.ListenPort <= 0 {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	if mo.Pprof {
		pprof.RegisterRoutes(metricsListener, mux, d.logger)
	}
	l, err = listener.New(listener.Options{
		Name:    metricsListener,
		Address: mo.ListenAddress,
		Port:    mo.ListenPort,
		Logger:  d.logger,
	}, mux)
	if err != nil {
		return err
	}
	d.listeners.Add(l)
	return nil
}

// Router returns the Daemon's frozen route tree
func (d *Daemon) Router() *router.Router {
	return d.router
}

// Bus returns the Daemon's event bus
func (d *Daemon) Bus() *events.Bus {
	return d.bus
}

// Addr returns the bound address of the named listener
func (d *Daemon) Addr(name string) (net.Addr, error) {
	l, err := d.listeners.Get(name)
	if err != nil {
		return nil, err
	}
	return l.Addr(), nil
}

// Run serves until ctx is done or a listener fails, then shuts down. The
// exit event is emitted before the listeners close so that long-lived
// event streams end first.
func (d *Daemon) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, l := range d.listeners.Listeners() {
		g.Go(func() error {
			d.logger.Info("listener starting", logging.Pairs{
				"name":    l.Name(),
				"scheme":  l.Scheme(),
				"address": l.Addr().String(),
			})
			if err := l.Serve(); err != nil {
				d.logger.Error("listener stopped",
					logging.Pairs{"name": l.Name(), "detail": err.Error()})
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		d.logins.Run(gctx)
		return nil
	})
	g.Go(func() error {
		sr.RunReaper(gctx, d.store, d.conf.Auth.Store.ReapInterval, d.logger)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return d.Shutdown()
	})
	return g.Wait()
}

// Shutdown stops the Daemon. Only the first call does any work.
func (d *Daemon) Shutdown() error {
	d.shutdownOnce.Do(func() {
		d.logger.Info("shutting down", nil)
		ctx, cancel := context.WithTimeout(context.Background(), d.ShutdownTimeout)
		defer cancel()
		var result *multierror.Error
		if err := d.bus.Emit(ctx, events.Exit, nil); err != nil {
			result = multierror.Append(result, err)
		}
		if err := d.listeners.Shutdown(ctx); err != nil {
			result = multierror.Append(result, err)
		}
		if err := d.release(); err != nil {
			result = multierror.Append(result, err)
		}
		d.shutdownErr = result.ErrorOrNil()
	})
	return d.shutdownErr
}

// release closes everything but the listeners
func (d *Daemon) release() error {
	var result *multierror.Error
	if d.store != nil {
		if err := d.store.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), d.ShutdownTimeout)
	defer cancel()
	if err := d.tracer.Shutdown(ctx); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

// reload applies the parts of a changed configuration that do not need a
// restart, which is currently only the log level
func (d *Daemon) reload(args []string) {
	conf, err := config.Load(args)
	if err != nil {
		d.logger.Warn("config reload failed", logging.Pairs{"detail": err.Error()})
		return
	}
	lvl := level.Level(conf.Logging.LogLevel)
	d.logger.SetLogLevel(lvl)
	d.logger.Info("config reloaded", logging.Pairs{"logLevel": lvl})
}

var mtx sync.Mutex
var wasStarted bool

// Start loads the configuration from args and runs the wiki server until
// SIGINT or SIGTERM. The informational flags print to stdout and return.
func Start(args []string, stdin io.Reader, stdout io.Writer) error {
	conf, err := config.Load(args)
	if err != nil {
		return err
	}

	switch {
	case conf.Flags.PrintVersion:
		_, err := fmt.Fprintln(stdout, versionString())
		return err
	case conf.Flags.MakeRecord != "":
		return MakeRecord(conf.Flags.MakeRecord, stdin, stdout)
	case conf.Flags.ValidateConfig:
		_, err := fmt.Fprintln(stdout, appinfo.Name+" configuration validation succeeded.")
		return err
	}

	mtx.Lock()
	if wasStarted {
		mtx.Unlock()
		return errors.ErrServerAlreadyStarted
	}
	wasStarted = true
	mtx.Unlock()

	d, err := New(conf)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		signaling.Wait(ctx, func() { d.reload(args) })
		cancel()
	}()
	err = d.Run(ctx)
	d.logger.Info("exiting", nil)
	d.logger.Close()
	return err
}

func versionString() string {
	s := appinfo.Name + " version: " + appinfo.Version
	if appinfo.BuildTime != "" {
		s += ", buildInfo: " + appinfo.BuildTime
	}
	if appinfo.GitCommitID != "" {
		s += ", gitCommitID: " + appinfo.GitCommitID
	}
	return s + ", goVersion: " + appinfo.GoVersion()
}
