// Package server runs the directory's HTTP surface: a Gin engine served over
// HTTP/1.1 and h2c, wrapped in the transport middleware of
// server/middleware, with the probe endpoints of server/endpoint.
//
// Server implements component.Component so it starts and stops with the
// rest of the process:
//
//	srv := server.New(cfg.Server, log)
//	srv.RegisterProbes("capdir", registry)
//	api.NewHandler(dir, log).Register(srv.GinEngine(), authMiddleware)
//	registry.Register(srv)
package server
