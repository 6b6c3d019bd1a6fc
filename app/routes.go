package main

import (
	"context"
	"errors"
	"io"

	"github.com/xavierroma/vala/app/config"
	"github.com/xavierroma/vala/app/events"
	"github.com/xavierroma/vala/app/logging"
	"github.com/xavierroma/vala/app/middleware"
	"github.com/xavierroma/vala/app/server"
	"github.com/xavierroma/vala/app/types"
)

const echoReceived = "echo.received"

type routeInfo struct {
	Method     string `json:"method"`
	Path       string `json:"path"`
	Controller string `json:"controller,omitempty"`
}

// registerRoutes wires the built-in controllers and global middleware
func registerRoutes(s *server.Server, cfg *config.Config, logger *logging.Logger) error {
	if err := s.Use(
		middleware.CORS(middleware.CORSOptions{}),
		middleware.Headers("X-Powered-By: "+applicationName),
		middleware.SizeLimit(cfg.Frontend.MaxBodyBytes),
	); err != nil {
		return err
	}

	s.Events().Subscribe(echoReceived, func(_ context.Context, p any) {
		logger.Debug("echo received", logging.Pairs{"bytes": p})
	})

	health := s.Controller("health", "/health").
		Get("/", func(context.Context, *types.Request) *types.Response {
			return types.Text(types.StatusOK, "OK")
		})

	routes := s.Controller("routes", "/_routes").
		Get("/", func(context.Context, *types.Request) *types.Response {
			bindings := s.Routes().Bindings()
			out := make([]routeInfo, 0, len(bindings))
			for _, b := range bindings {
				out = append(out, routeInfo{
					Method:     string(b.Method),
					Path:       b.EffectivePath(),
					Controller: b.Controller,
				})
			}
			return types.JSON(types.StatusOK, out)
		})

	echo := s.Controller("echo", "/echo").
		Post("/", func(ctx context.Context, req *types.Request) *types.Response {
			b, err := io.ReadAll(req.Body)
			if err != nil {
				return types.Text(types.StatusBadRequest, err.Error())
			}
			events.FromContext(ctx).Publish(ctx, echoReceived, len(b))
			res := types.NewResponse(types.StatusOK)
			ct := req.Headers.Get("Content-Type")
			if ct == "" {
				ct = "application/octet-stream"
			}
			res.Headers.Set("Content-Type", ct)
			res.Body = b
			return res
		}, middleware.Throttle(64))

	return errors.Join(health.Err(), routes.Err(), echo.Err())
}
