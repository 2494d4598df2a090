package gateway

import (
	"context"
	"fmt"

	"github.com/skillsenselab/gatekit/component"
)

// ServerComponent adapts a Server to the component lifecycle so it can be
// registered with bootstrap and show up in the startup summary.
type ServerComponent struct {
	srv *Server
}

// Component wraps the server for registration with a bootstrap app.
func (s *Server) Component() *ServerComponent {
	return &ServerComponent{srv: s}
}

func (sc *ServerComponent) Name() string {
	return "http-server"
}

func (sc *ServerComponent) Start(ctx context.Context) error {
	return sc.srv.Start(ctx)
}

func (sc *ServerComponent) Stop(ctx context.Context) error {
	return sc.srv.Stop(ctx)
}

func (sc *ServerComponent) Health(ctx context.Context) component.Health {
	sc.srv.mu.Lock()
	started := sc.srv.started
	routes := len(sc.srv.routes)
	sc.srv.mu.Unlock()

	if !started {
		return component.Unhealthy(sc.Name(), "not started")
	}
	return component.Healthy(sc.Name(), fmt.Sprintf("%d routes on %s", routes, sc.srv.Addr()))
}

// Describe reports the server for the bootstrap infrastructure summary.
func (sc *ServerComponent) Describe() component.Description {
	return component.Description{
		Name:    "HTTP Server",
		Type:    "server",
		Details: sc.srv.cfg.ServiceID,
		Port:    sc.srv.cfg.Port,
	}
}

// Routes lists the registered routes for the bootstrap summary.
func (sc *ServerComponent) Routes() []component.Route {
	sc.srv.mu.Lock()
	defer sc.srv.mu.Unlock()

	out := make([]component.Route, 0, len(sc.srv.routes))
	for _, br := range sc.srv.routes {
		out = append(out, component.Route{
			Method:  br.meta.Method,
			Path:    br.meta.Path,
			Handler: br.meta.OperationID,
		})
	}
	return out
}
