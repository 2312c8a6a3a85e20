package cmd

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"

	"github.com/lepinkainen/tankobon/internal/api"
)

// ServeCmd runs the HTTP API
type ServeCmd struct {
	Addr string `help:"Listen address (defaults to server.addr)"`
}

// PingCmd checks every configured provider
type PingCmd struct{}

var serveHTTP = api.Serve

func (s *ServeCmd) Run(ctx context.Context) error {
	exporter := viper.GetString("metrics.exporter")
	a, err := newApp(ctx, exporter)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if !viper.GetBool("debug") {
		gin.SetMode(gin.ReleaseMode)
	}

	opts := []api.Option{api.WithCORSOrigins(a.cfg.CORSOrigins)}
	if a.metrics.Handler != nil {
		opts = append(opts, api.WithMetricsHandler(a.metrics.Handler))
	}
	router := api.NewRouter(a.optimizer, a.mapper, opts...)

	addr := s.Addr
	if addr == "" {
		addr = a.cfg.ServerAddr
	}
	return serveHTTP(ctx, addr, router)
}

func (p *PingCmd) Run(ctx context.Context) error {
	a, err := newApp(ctx, cliExporter())
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	failed := 0
	for _, r := range a.chain.Ping(ctx) {
		if r.Err != nil {
			failed++
			fmt.Fprintf(output, "%-12s FAIL  %v\n", r.Name, r.Err)
			continue
		}
		fmt.Fprintf(output, "%-12s ok\n", r.Name)
	}
	if failed > 0 {
		return fmt.Errorf("%d provider(s) unreachable", failed)
	}
	return nil
}
