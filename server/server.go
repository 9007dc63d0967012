// Copyright 2024 Probeworks
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"strconv"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/charmbracelet/wish/activeterm"
	"github.com/charmbracelet/wish/bubbletea"
	"github.com/charmbracelet/wish/logging"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	probelog "github.com/probeworks/auxpin/pkg/logging"
	"github.com/probeworks/auxpin/service/auxpin"
	"github.com/probeworks/auxpin/service/util"
)

// Config for the HTTP and SSH servers.
type Config struct {
	// Host interface to listen on
	Host string
	// Port to listen on for HTTP requests
	HTTPPort int
	// Port to listen on for SSH requests.
	// Zero disables the SSH UI.
	SSHPort int
	// HostKeyPath is where the SSH host key is stored.
	HostKeyPath string
}

// UI serves a terminal interface on incoming SSH sessions.
type UI interface {
	// Handler builds a fresh UI model for the given SSH session.
	Handler(s ssh.Session) (tea.Model, []tea.ProgramOption)
}

// Server runs the HTTP API and the SSH terminal UI of the probe.
type Server struct {
	Config
	log      zerolog.Logger
	auxMgr   *auxpin.Manager
	ui       UI
	logLines *probelog.RingWriter
}

// New configures a new Server. The ui and logLines may be nil.
func New(cfg Config, log zerolog.Logger, auxMgr *auxpin.Manager, ui UI, logLines *probelog.RingWriter) (*Server, error) {
	if cfg.HostKeyPath == "" {
		cfg.HostKeyPath = ".ssh/id_ed25519"
	}
	return &Server{
		Config:   cfg,
		log:      log.With().Str("component", "server").Logger(),
		auxMgr:   auxMgr,
		ui:       ui,
		logLines: logLines,
	}, nil
}

// Run the server until the given context is canceled.
func (s *Server) Run(ctx context.Context) error {
	log := s.log
	httpAddr := net.JoinHostPort(s.Host, strconv.Itoa(s.HTTPPort))
	httpLis, err := net.Listen("tcp", httpAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on address %s: %w", httpAddr, err)
	}

	httpRouter := echo.New()
	httpRouter.HideBanner = true
	s.registerHandlers(httpRouter)
	httpRouter.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	httpRouter.GET("/debug/pprof/*", echo.WrapHandler(http.HandlerFunc(pprof.Index)))
	httpSrv := http.Server{
		Handler: httpRouter,
	}

	var sshServer *ssh.Server
	if s.SSHPort > 0 && s.ui != nil {
		sshAddr := net.JoinHostPort(s.Host, strconv.Itoa(s.SSHPort))
		sshServer, err = wish.NewServer(
			wish.WithAddress(sshAddr),
			wish.WithHostKeyPath(s.HostKeyPath),
			wish.WithMiddleware(
				bubbletea.Middleware(s.ui.Handler),
				// The last item in the chain is the first to be called.
				activeterm.Middleware(),
				logging.Middleware(),
			),
		)
		if err != nil {
			httpLis.Close()
			return fmt.Errorf("could not start SSH server: %w", err)
		}
	}

	log.Debug().Str("address", httpAddr).Msg("Serving HTTP")
	go func() {
		if err := httpSrv.Serve(httpLis); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("failed to serve HTTP server")
		}
	}()
	if sshServer != nil {
		log.Debug().Int("port", s.SSHPort).Msg("Serving SSH")
		go func() {
			if err := sshServer.ListenAndServe(); err != nil && err != ssh.ErrServerClosed {
				log.Error().Err(err).Msg("failed to serve SSH server")
			}
		}()
	}

	// Wait until context closed
	<-ctx.Done()

	log.Info().Msg("Closing servers")
	var closeErr util.SyncError
	closeErr.Add(httpSrv.Shutdown(context.Background()))
	if sshServer != nil {
		closeErr.Add(sshServer.Shutdown(context.Background()))
	}
	return closeErr.AsError()
}
