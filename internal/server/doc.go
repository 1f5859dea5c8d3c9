// Package server provides the HTTP server for the asyncqueue agent.
//
// The server uses the Gin web framework. Handlers are registered through a
// callback that receives the /api/v1 router group.
//
// # Architecture Overview
//
//	┌───────────────────────────────────────────────────────────────┐
//	│                         HTTP Server :8000                     │
//	├───────────────────────────────────────────────────────────────┤
//	│                       Middleware Stack                        │
//	│  ┌─────────────────────────────────────────────────────────┐  │
//	│  │  ginzap.Ginzap (request logging, "http" logger)         │  │
//	│  │  ginzap.RecoveryWithZap (panic recovery, stack trace)   │  │
//	│  │  JWTAuth (only when auth is enabled, /api/v1 only)      │  │
//	│  └─────────────────────────────────────────────────────────┘  │
//	├───────────────────────────────────────────────────────────────┤
//	│                       Router (/api/v1)                        │
//	│  ┌─────────────────────────────────────────────────────────┐  │
//	│  │  Handlers (registered via callback)                     │  │
//	│  └─────────────────────────────────────────────────────────┘  │
//	└───────────────────────────────────────────────────────────────┘
//
// # Server Modes
//
// Gin runs in debug mode when Server.Mode is "dev" and in release mode when
// it is "prod". Unknown routes return a JSON 404 in both.
//
// # Authentication
//
// With Auth.Enabled, every /api/v1 request needs
//
//	Authorization: Bearer <jwt>
//
// where the token is signed with HS256 using Auth.Secret and carries an exp
// claim. Anything else is answered with 401 and an UnauthorizedError message.
//
// # Usage Example
//
//	srv, err := server.NewServer(cfg, handlers.New(taskSrv).RegisterRoutes)
//	if err != nil {
//	    return err
//	}
//
//	go func() {
//	    if err := srv.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
//	        zap.S().Errorw("server error", "error", err)
//	    }
//	}()
//
//	<-ctx.Done()
//	srv.Stop(shutdownCtx)
package server
