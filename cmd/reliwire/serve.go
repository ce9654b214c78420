package main

import (
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/olahol/melody"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/reliwire-dev/reliwire/pkg/middleware"
	"github.com/reliwire-dev/reliwire/pkg/processor"
	"github.com/reliwire-dev/reliwire/pkg/transport"
)

const engineKey = "reliwire-engine"

func serveCmd() *cobra.Command {
	var (
		listen     string
		configPath string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run an echo peer server",
		Long: `Serve an echo peer over WebSocket: inbound notes are echoed back
as notes and inbound requests are answered with their own payload.
Exposes /ws for connections, /metrics for Prometheus and /healthz.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := defaultServeConfig()
			if configPath != "" {
				var err error
				cfg, err = loadServeConfig(configPath)
				if err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("listen") {
				cfg.Listen = listen
			}
			return runServe(cfg)
		},
	}

	cmd.Flags().StringVarP(&listen, "listen", "l", ":8080", "Listen address")
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "TOML config file")

	return cmd
}

func runServe(cfg serveConfig) error {
	log := zerolog.New(os.Stdout).With().Timestamp().Logger()
	hooks := middleware.Prometheus()

	m := melody.New()
	m.Config.MaxMessageSize = 0
	m.Config.WriteWait = 5 * time.Second

	m.HandleConnect(func(s *melody.Session) {
		slog := log.With().Str("remote", s.Request.RemoteAddr).Logger()
		slog.Info().Msg("new connection")

		p := newEchoEngine(s, cfg, slog, hooks)
		s.Set(engineKey, p)
		p.Open()
	})

	m.HandleMessage(func(s *melody.Session, msg []byte) {
		if p := engineOf(s); p != nil {
			p.HandleRaw(msg)
		}
	})

	m.HandleDisconnect(func(s *melody.Session) {
		log.Info().Str("remote", s.Request.RemoteAddr).Msg("connection closed")
		if p := engineOf(s); p != nil {
			p.HandleTransportClosed()
		}
	})

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws", func(w http.ResponseWriter, req *http.Request) {
		if err := m.HandleRequest(w, req); err != nil {
			log.Error().Err(err).Msg("websocket upgrade failed")
		}
	})

	log.Info().Str("listen", cfg.Listen).Msg("server listening")
	srv := &http.Server{Addr: cfg.Listen, Handler: r}
	return srv.ListenAndServe()
}

// newEchoEngine builds the per-session engine: notes come back as
// notes, requests are answered with their own payload.
func newEchoEngine(s *melody.Session, cfg serveConfig, log zerolog.Logger, hooks processor.Hooks) *processor.Processor {
	pcfg := processor.DefaultConfig()
	pcfg.Heartbeat = cfg.Heartbeat
	pcfg.StrictDecode = cfg.StrictDecode
	pcfg.Logger = processor.NewZerologLogger(log)
	pcfg.Hooks = hooks

	var p *processor.Processor
	pcfg.OnNote = func(payload json.RawMessage) {
		if err := p.SendNote(payload, processor.NoteOptions{}, nil); err != nil {
			log.Warn().Err(err).Msg("echo note failed")
		}
	}
	pcfg.OnRequest = func(payload json.RawMessage, respond processor.RespondFunc) {
		if err := respond(payload, 0, processor.ResponseOptions{}, nil); err != nil {
			log.Warn().Err(err).Msg("echo response failed")
		}
	}

	p = processor.New(transport.NewSession(s), pcfg)
	return p
}

func engineOf(s *melody.Session) *processor.Processor {
	v, ok := s.Get(engineKey)
	if !ok {
		return nil
	}
	p, ok := v.(*processor.Processor)
	if !ok {
		return nil
	}
	return p
}
