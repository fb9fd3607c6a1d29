// Package services hosts the three network-facing servers (client,
// consensus, mining), each wrapping the shared protocol state plus a
// transport listener, and the lifecycle/metrics/HTTP scaffolding common to
// all three.
package services

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/looplab/fsm"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	utils "github.com/ordishs/go-utils"
)

// Lifecycle drives a server's idle -> running -> stopped transitions
// through looplab/fsm, the same state-machine library the blockchain
// service uses for its FSM.
type Lifecycle struct {
	FSM    *fsm.FSM
	health prometheus.Gauge
	logger utils.Logger
}

func NewLifecycle(name string, logger utils.Logger) *Lifecycle {
	health := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "avalanche_node_" + name + "_health",
		Help: "1 when the " + name + " server's FSM is in the running state",
	})
	prometheus.MustRegister(health)

	l := &Lifecycle{health: health, logger: logger}

	l.FSM = fsm.NewFSM(
		"idle",
		fsm.Events{
			{Name: "start", Src: []string{"idle", "stopped"}, Dst: "running"},
			{Name: "stop", Src: []string{"running"}, Dst: "stopped"},
		},
		fsm.Callbacks{
			"enter_running": func(_ context.Context, _ *fsm.Event) { health.Set(1) },
			"enter_stopped": func(_ context.Context, _ *fsm.Event) { health.Set(0) },
		},
	)

	return l
}

func (l *Lifecycle) Start(ctx context.Context) error {
	return l.FSM.Event(ctx, "start")
}

func (l *Lifecycle) Stop(ctx context.Context) error {
	return l.FSM.Event(ctx, "stop")
}

// ServeHTTP starts an echo server exposing /health and /metrics on addr,
// mirroring the blockchain service's echo-based admin endpoints.
func ServeHTTP(addr string) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	go func() {
		_ = e.Start(addr)
	}()

	return e
}
