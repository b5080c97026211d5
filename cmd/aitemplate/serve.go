package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	// Packages
	httphandler "github.com/mutablelogic/go-aitemplate/pkg/httphandler"
	version "github.com/mutablelogic/go-aitemplate/pkg/version"
	httpresponse "github.com/mutablelogic/go-server/pkg/httpresponse"
	openapi "github.com/mutablelogic/go-server/pkg/openapi/schema"
	types "github.com/mutablelogic/go-server/pkg/types"
	prometheus "github.com/prometheus/client_golang/prometheus"
	collectors "github.com/prometheus/client_golang/prometheus/collectors"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

type ServeCommands struct {
	Serve ServeCommand `cmd:"" name:"serve" help:"Run a local stand-in backend." group:"SERVER"`
}

type ServeCommand struct {
	Addr    string        `name:"addr" env:"AITEMPLATE_ADDR" help:"Listen address" default:"localhost:8080"`
	Prefix  string        `name:"prefix" help:"Path prefix of the API" default:"/api"`
	Fixture string        `name:"fixture" help:"YAML fixture with models, tools, skills and users"`
	Auth    bool          `name:"auth" help:"Require a bearer token, overriding the fixture"`
	User    []string      `name:"user" help:"Add a user as name:password[:ROLE,...] (repeatable)"`
	Delay   time.Duration `name:"delay" help:"Pause between stream frames"`
}

///////////////////////////////////////////////////////////////////////////////
// GLOBALS

const (
	shutdownTimeout   = 5 * time.Second
	readHeaderTimeout = 10 * time.Second
)

///////////////////////////////////////////////////////////////////////////////
// COMMANDS

func (cmd *ServeCommand) Run(ctx *Globals) error {
	opts, err := cmd.backendOpts(ctx)
	if err != nil {
		return err
	}
	backend, err := httphandler.NewBackend(opts...)
	if err != nil {
		return err
	}

	// Metrics
	reg := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aitemplate",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Requests handled by the stand-in backend",
	}, []string{"code", "method"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "aitemplate",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Time to handle a request, including streams",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method"})
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		requests, duration,
	)

	// Routes
	prefix := strings.TrimSuffix(types.NormalisePath(cmd.Prefix), "/")
	mux := http.NewServeMux()
	paths := httphandler.RegisterHandlers(mux, prefix, backend)
	mux.HandleFunc("GET "+prefix+"/openapi.json", func(w http.ResponseWriter, r *http.Request) {
		_ = httpresponse.JSON(w, http.StatusOK, 2, document(ctx.execName, paths))
	})
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	server := &http.Server{
		Addr:              cmd.Addr,
		Handler:           promhttp.InstrumentHandlerDuration(duration, promhttp.InstrumentHandlerCounter(requests, mux)),
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx.ctx },
	}

	// Shut down when the context is cancelled
	errs := make(chan error, 1)
	go func() {
		<-ctx.ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		errs <- server.Shutdown(shutdownCtx)
	}()

	ctx.logger.Info("serving", "addr", cmd.Addr, "prefix", prefix, "auth", backend.AuthEnabled(), "version", version.Version())
	fmt.Fprintf(os.Stderr, "listening on http://%s%s\n", cmd.Addr, prefix)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return <-errs
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func (cmd *ServeCommand) backendOpts(ctx *Globals) ([]httphandler.BackendOpt, error) {
	opts := []httphandler.BackendOpt{httphandler.WithLogger(ctx.logger)}
	if cmd.Fixture != "" {
		f, err := os.Open(cmd.Fixture)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		opt, err := httphandler.LoadFixture(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", cmd.Fixture, err)
		}
		opts = append(opts, opt)
	}
	for _, spec := range cmd.User {
		parts := strings.SplitN(spec, ":", 3)
		if len(parts) < 2 {
			return nil, fmt.Errorf("user %q: expected name:password[:ROLE,...]", spec)
		}
		roles := []string{httphandler.RoleUser}
		if len(parts) == 3 && parts[2] != "" {
			roles = strings.Split(parts[2], ",")
		}
		opts = append(opts, httphandler.WithUser(parts[0], parts[1], roles...))
	}
	if cmd.Auth {
		opts = append(opts, httphandler.WithAuth(true))
	}
	if cmd.Delay > 0 {
		opts = append(opts, httphandler.WithFrameDelay(cmd.Delay))
	}
	return opts, nil
}

// document wraps the registered paths in an OpenAPI document
func document(name string, paths map[string]*openapi.PathItem) map[string]any {
	return map[string]any{
		"openapi": "3.1.0",
		"info": map[string]any{
			"title":   name,
			"version": version.Version(),
		},
		"paths": paths,
	}
}
