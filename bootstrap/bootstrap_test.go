package bootstrap

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/skillsenselab/gatekit/component"
	"github.com/skillsenselab/gatekit/config"
	"github.com/skillsenselab/gatekit/logger"
)

// testConfig is a minimal config that satisfies the Config interface.
type testConfig struct {
	config.ServiceConfig
}

// mockComponent implements component.Component for testing.
type mockComponent struct {
	name     string
	startErr error
	stopErr  error
	health   component.Health
	started  bool
	stopped  bool
}

func (m *mockComponent) Name() string { return m.name }
func (m *mockComponent) Start(ctx context.Context) error {
	m.started = true
	return m.startErr
}
func (m *mockComponent) Stop(ctx context.Context) error {
	m.stopped = true
	return m.stopErr
}
func (m *mockComponent) Health(ctx context.Context) component.Health {
	return m.health
}

func newTestConfig(name, version string) *testConfig {
	return &testConfig{
		ServiceConfig: config.ServiceConfig{
			Name:        name,
			Version:     version,
			Environment: "test",
		},
	}
}

func newTestApp(t *testing.T, name, version string) *App[*testConfig] {
	t.Helper()
	app, err := NewApp(newTestConfig(name, version), WithLogger(logger.Nop()))
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	return app
}

func TestNewApp(t *testing.T) {
	app := newTestApp(t, "test-svc", "1.0.0")
	if app.Name != "test-svc" {
		t.Errorf("expected name 'test-svc', got %q", app.Name)
	}
	if app.Version != "1.0.0" {
		t.Errorf("expected version '1.0.0', got %q", app.Version)
	}
	if app.Components == nil {
		t.Error("expected non-nil components registry")
	}
	if app.Logger == nil {
		t.Error("expected non-nil logger")
	}
	if app.Cfg.Name != "test-svc" {
		t.Errorf("expected cfg.Name 'test-svc', got %q", app.Cfg.Name)
	}
}

func TestNewAppValidation(t *testing.T) {
	cfg := &testConfig{
		ServiceConfig: config.ServiceConfig{
			// Name is empty, validation must fail.
			Environment: "test",
		},
	}
	if _, err := NewApp(cfg); err == nil {
		t.Error("expected error for missing name")
	}
}

func TestRegisterComponent(t *testing.T) {
	app := newTestApp(t, "test", "1.0")
	c := &mockComponent{
		name:   "server",
		health: component.Health{Name: "server", Status: component.StatusHealthy},
	}

	if err := app.RegisterComponent(c); err != nil {
		t.Fatalf("RegisterComponent failed: %v", err)
	}
	if app.Components.Get("server") == nil {
		t.Error("expected component to be registered")
	}

	if err := app.RegisterComponent(&mockComponent{name: "server"}); err == nil {
		t.Error("expected error for duplicate component registration")
	}
}

func TestHooks(t *testing.T) {
	app := newTestApp(t, "test", "1.0")
	order := []string{}
	app.OnStart(
		func(ctx context.Context) error { order = append(order, "first"); return nil },
		func(ctx context.Context) error { order = append(order, "second"); return nil },
	)
	app.OnReady(func(ctx context.Context) error { order = append(order, "ready"); return nil })
	app.OnStop(func(ctx context.Context) error { order = append(order, "stop"); return nil })

	if err := runHooks(context.Background(), app.onStart); err != nil {
		t.Fatalf("hooks failed: %v", err)
	}
	runHooks(context.Background(), app.onReady)
	runHooks(context.Background(), app.onStop)

	want := []string{"first", "second", "ready", "stop"}
	if len(order) != len(want) {
		t.Fatalf("expected %v, got %v", want, order)
	}
}

func TestHookErrorStopsExecution(t *testing.T) {
	secondCalled := false
	hooks := []Hook{
		func(ctx context.Context) error { return fmt.Errorf("fail") },
		func(ctx context.Context) error { secondCalled = true; return nil },
	}
	if err := runHooks(context.Background(), hooks); err == nil {
		t.Error("expected error from failing hook")
	}
	if secondCalled {
		t.Error("expected second hook not to run after first fails")
	}
}

func TestReadyCheck(t *testing.T) {
	t.Run("all healthy", func(t *testing.T) {
		app := newTestApp(t, "test", "1.0")
		app.RegisterComponent(&mockComponent{
			name:   "server",
			health: component.Health{Name: "server", Status: component.StatusHealthy},
		})
		if err := app.ReadyCheck(context.Background()); err != nil {
			t.Errorf("expected no error for healthy components, got %v", err)
		}
	})

	t.Run("unhealthy", func(t *testing.T) {
		app := newTestApp(t, "test", "1.0")
		app.RegisterComponent(&mockComponent{
			name:   "verifier",
			health: component.Health{Name: "verifier", Status: component.StatusUnhealthy, Message: "timeout"},
		})
		if err := app.ReadyCheck(context.Background()); err == nil {
			t.Error("expected error for unhealthy component")
		}
	})

	t.Run("degraded", func(t *testing.T) {
		app := newTestApp(t, "test", "1.0")
		app.RegisterComponent(&mockComponent{
			name:   "svc",
			health: component.Health{Name: "svc", Status: component.StatusDegraded, Message: "slow"},
		})
		if err := app.ReadyCheck(context.Background()); err == nil {
			t.Error("expected error for degraded component")
		}
	})

	t.Run("empty registry", func(t *testing.T) {
		app := newTestApp(t, "test", "1.0")
		if err := app.ReadyCheck(context.Background()); err != nil {
			t.Errorf("expected no error for empty registry, got %v", err)
		}
	})
}

func TestGracefulTimeout(t *testing.T) {
	app := newTestApp(t, "test", "1.0")
	if app.gracefulTimeout != 15*time.Second {
		t.Errorf("expected default 15s, got %v", app.gracefulTimeout)
	}

	custom, err := NewApp(newTestConfig("test", "1.0"),
		WithLogger(logger.Nop()), WithGracefulTimeout(30*time.Second))
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	if custom.gracefulTimeout != 30*time.Second {
		t.Errorf("expected 30s timeout, got %v", custom.gracefulTimeout)
	}
}

func TestRunTask(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		app := newTestApp(t, "test", "1.0")
		executed := false
		err := app.RunTask(context.Background(), func(ctx context.Context) error {
			executed = true
			return nil
		})
		if err != nil {
			t.Fatalf("RunTask failed: %v", err)
		}
		if !executed {
			t.Error("expected task to run")
		}
	})

	t.Run("task error", func(t *testing.T) {
		app := newTestApp(t, "test", "1.0")
		err := app.RunTask(context.Background(), func(ctx context.Context) error {
			return fmt.Errorf("task error")
		})
		if err == nil || err.Error() != "task error" {
			t.Errorf("expected 'task error', got %v", err)
		}
	})

	t.Run("cancellation", func(t *testing.T) {
		app := newTestApp(t, "test", "1.0")
		ctx, cancel := context.WithCancel(context.Background())
		err := app.RunTask(ctx, func(taskCtx context.Context) error {
			cancel()
			<-taskCtx.Done()
			return taskCtx.Err()
		})
		if err == nil {
			t.Error("expected error from canceled task")
		}
	})
}

func TestRunTaskLifecycleOrder(t *testing.T) {
	app := newTestApp(t, "test", "1.0")

	order := []string{}
	app.OnStart(func(ctx context.Context) error { order = append(order, "start"); return nil })
	app.OnConfigure(func(ctx context.Context, a *App[*testConfig]) error {
		order = append(order, "configure")
		return nil
	})
	app.OnReady(func(ctx context.Context) error { order = append(order, "ready"); return nil })
	app.OnStop(func(ctx context.Context) error { order = append(order, "stop"); return nil })

	app.RunTask(context.Background(), func(ctx context.Context) error {
		order = append(order, "task")
		return nil
	})

	expected := []string{"start", "configure", "ready", "task", "stop"}
	if len(order) != len(expected) {
		t.Fatalf("expected %v, got %v", expected, order)
	}
	for i, v := range expected {
		if order[i] != v {
			t.Errorf("order[%d] = %q, expected %q", i, order[i], v)
		}
	}
}

func TestRunTaskComponentLifecycle(t *testing.T) {
	app := newTestApp(t, "test", "1.0")
	comp := &mockComponent{
		name:   "server",
		health: component.Health{Name: "server", Status: component.StatusHealthy},
	}
	app.RegisterComponent(comp)

	app.RunTask(context.Background(), func(ctx context.Context) error { return nil })

	if !comp.started {
		t.Error("expected component to be started")
	}
	if !comp.stopped {
		t.Error("expected component to be stopped after task")
	}
}

func TestRunTaskFailures(t *testing.T) {
	t.Run("start hook error", func(t *testing.T) {
		app := newTestApp(t, "test", "1.0")
		app.OnStart(func(ctx context.Context) error { return fmt.Errorf("start hook failed") })
		if err := app.RunTask(context.Background(), func(ctx context.Context) error { return nil }); err == nil {
			t.Error("expected error from failing start hook")
		}
	})

	t.Run("configure error", func(t *testing.T) {
		app := newTestApp(t, "test", "1.0")
		app.OnConfigure(func(ctx context.Context, a *App[*testConfig]) error {
			return fmt.Errorf("configure failed")
		})
		if err := app.RunTask(context.Background(), func(ctx context.Context) error { return nil }); err == nil {
			t.Error("expected error from failing configure callback")
		}
	})

	t.Run("stop hook error", func(t *testing.T) {
		app := newTestApp(t, "test", "1.0")
		app.OnStop(func(ctx context.Context) error { return fmt.Errorf("stop hook failed") })
		if err := app.RunTask(context.Background(), func(ctx context.Context) error { return nil }); err == nil {
			t.Error("expected error from failing stop hook")
		}
	})

	t.Run("component start error", func(t *testing.T) {
		app := newTestApp(t, "test", "1.0")
		app.RegisterComponent(&mockComponent{name: "bad", startErr: fmt.Errorf("start failed")})
		if err := app.RunTask(context.Background(), func(ctx context.Context) error { return nil }); err == nil {
			t.Error("expected error from component start failure")
		}
	})

	t.Run("component stop error", func(t *testing.T) {
		app := newTestApp(t, "test", "1.0")
		app.RegisterComponent(&mockComponent{
			name:    "server",
			stopErr: fmt.Errorf("stop failed"),
			health:  component.Health{Name: "server", Status: component.StatusHealthy},
		})
		if err := app.RunTask(context.Background(), func(ctx context.Context) error { return nil }); err == nil {
			t.Error("expected error from component stop failure")
		}
	})
}

func TestWaitForSignalContextCancellation(t *testing.T) {
	app := newTestApp(t, "test", "1.0")

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	if sig := app.WaitForSignal(ctx); sig != nil {
		t.Errorf("expected nil signal for context cancellation, got %v", sig)
	}
}

func TestSummaryTracking(t *testing.T) {
	s := NewSummary("my-service", "2.0.0")
	if s.serviceName != "my-service" || s.version != "2.0.0" {
		t.Fatalf("unexpected summary identity: %s v%s", s.serviceName, s.version)
	}

	s.SetStartupDuration(500 * time.Millisecond)
	if s.startupDuration != 500*time.Millisecond {
		t.Errorf("expected 500ms, got %v", s.startupDuration)
	}

	s.TrackComponent("server", "active", true)
	s.TrackComponent("verifier", "error", false)
	if len(s.components) != 2 || s.components[1].Healthy {
		t.Errorf("unexpected components: %+v", s.components)
	}

	s.TrackInfrastructure("HTTP Server", "server", "active", "listening", 8080, true)
	if len(s.infrastructure) != 1 || s.infrastructure[0].Port != 8080 {
		t.Errorf("unexpected infrastructure: %+v", s.infrastructure)
	}

	s.TrackRoute("GET", "/users", "ListUsers")
	s.TrackRoute("POST", "/users", "CreateUser")
	if len(s.routes) != 2 {
		t.Errorf("expected 2 routes, got %d", len(s.routes))
	}
}

// describableComponent implements Component + Describable + RouteProvider.
type describableComponent struct {
	mockComponent
	desc   component.Description
	routes []component.Route
}

func (m *describableComponent) Describe() component.Description { return m.desc }
func (m *describableComponent) Routes() []component.Route       { return m.routes }

func TestSummaryCollectFromRegistry(t *testing.T) {
	s := NewSummary("test-svc", "1.0.0")
	s.SetStartupDuration(100 * time.Millisecond)

	registry := component.NewRegistry(logger.Nop())
	registry.Register(&describableComponent{
		mockComponent: mockComponent{
			name:   "http-server",
			health: component.Health{Name: "http-server", Status: component.StatusHealthy},
		},
		desc: component.Description{
			Name:    "HTTP Server",
			Type:    "server",
			Details: "localhost:8080",
			Port:    8080,
		},
		routes: []component.Route{
			{Method: "GET", Path: "/users", Handler: "ListUsers"},
			{Method: "POST", Path: "/users", Handler: "CreateUser"},
		},
	})

	s.DisplaySummary(registry, logger.Nop())

	if len(s.infrastructure) != 1 {
		t.Errorf("expected 1 auto-discovered infrastructure entry, got %d", len(s.infrastructure))
	}
	if len(s.routes) != 2 {
		t.Errorf("expected 2 auto-discovered routes, got %d", len(s.routes))
	}
}

func TestSummaryDisplayDoesNotPanic(t *testing.T) {
	s := NewSummary("test-svc", "1.0.0")
	s.SetStartupDuration(100 * time.Millisecond)
	s.DisplaySummary(nil, nil)

	registry := component.NewRegistry(logger.Nop())
	registry.Register(&mockComponent{
		name:   "verifier",
		health: component.Health{Name: "verifier", Status: component.StatusUnhealthy, Message: "connection refused"},
	})
	s.DisplaySummary(registry, logger.Nop())
}

func TestTreePrefix(t *testing.T) {
	if p := treePrefix(2, 3); p != "└──" {
		t.Errorf("expected last-item prefix, got %q", p)
	}
	if p := treePrefix(0, 3); p != "├──" {
		t.Errorf("expected mid-item prefix, got %q", p)
	}
}

func TestStatusIcon(t *testing.T) {
	tests := []struct {
		status  string
		healthy bool
		icon    string
	}{
		{"active", true, "✅"},
		{"lazy", true, "⚡"},
		{"inactive", true, "⏸️"},
		{"error", true, "❌"},
		{"unknown", true, "⚠️"},
		{"active", false, "❌"},
	}
	for _, tc := range tests {
		if got := statusIcon(tc.status, tc.healthy); got != tc.icon {
			t.Errorf("statusIcon(%q, %v) = %q, expected %q", tc.status, tc.healthy, got, tc.icon)
		}
	}
}

func TestHealthStatusIcon(t *testing.T) {
	tests := []struct {
		status component.HealthStatus
		icon   string
	}{
		{component.StatusHealthy, "✅"},
		{component.StatusDegraded, "⚠️"},
		{component.StatusUnhealthy, "❌"},
		{"unknown", "❓"},
	}
	for _, tc := range tests {
		if got := healthStatusIcon(tc.status); got != tc.icon {
			t.Errorf("healthStatusIcon(%q) = %q, expected %q", tc.status, got, tc.icon)
		}
	}
}

func TestMethodColor(t *testing.T) {
	for _, m := range []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"} {
		if methodColor(m) == "" {
			t.Errorf("expected non-empty color for %s", m)
		}
	}
}
