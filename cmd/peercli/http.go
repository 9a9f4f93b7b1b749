package main

import (
	"net/http"

	"github.com/bsv-blockchain/cfpeer/util/health"
	"github.com/bsv-blockchain/cfpeer/util/servicemanager"
	"github.com/felixge/fgprof"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type peerInfo struct {
	ID          int32  `json:"id"`
	Address     string `json:"address"`
	Inbound     bool   `json:"inbound"`
	State       string `json:"state"`
	UserAgent   string `json:"userAgent"`
	Services    string `json:"services"`
	Protocol    uint32 `json:"protocolVersion"`
	StartHeight int32  `json:"startHeight"`
	LastBlock   int32  `json:"lastBlock"`
	PingMicros  int64  `json:"pingMicros"`
}

// newHTTP returns the node's http endpoint: metrics, health, the listener
// list, a profiler and read only views of the peers and sync progress.
func newHTTP(n *node, sm *servicemanager.ServiceManager) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{echo.GET},
	}))

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/services", echo.WrapHandler(http.HandlerFunc(servicemanager.ServicesHandler)))
	e.GET("/health", echo.WrapHandler(health.Handler(sm.HealthHandler, false)))
	e.GET("/health/readiness", echo.WrapHandler(health.Handler(sm.HealthHandler, false)))
	e.GET("/health/liveness", echo.WrapHandler(health.Handler(sm.HealthHandler, true)))
	e.GET("/debug/fgprof", echo.WrapHandler(fgprof.Handler()))

	e.GET("/progress", func(c echo.Context) error {
		return c.JSON(http.StatusOK, n.progress())
	})

	e.GET("/peers", func(c echo.Context) error {
		peers := n.server.PeerManager().Peers()
		infos := make([]peerInfo, 0, len(peers))

		for _, p := range peers {
			infos = append(infos, peerInfo{
				ID:          p.ID(),
				Address:     p.Address(),
				Inbound:     p.Inbound(),
				State:       p.State().String(),
				UserAgent:   p.UserAgent(),
				Services:    p.Services().String(),
				Protocol:    p.ProtocolVersion(),
				StartHeight: p.StartHeight(),
				LastBlock:   p.LastBlock(),
				PingMicros:  p.PingMicros(),
			})
		}

		return c.JSON(http.StatusOK, infos)
	})

	return e
}
