// Package health keeps the grpc.health.v1 serving status in line with the reachability of the
// stores the server depends on.
package health

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// PingFunc reports whether a dependency is reachable.
type PingFunc func(ctx context.Context) error

// Checker pings registered dependencies and publishes the aggregate status for the overall server ("")
// and for each named service.
type Checker struct {
	server   *grpchealth.Server
	services []string
	timeout  time.Duration

	mu    sync.Mutex
	deps  map[string]PingFunc
	state map[string]error
}

// NewChecker returns a Checker writing to server. services are the gRPC service names whose status follows
// the aggregate. timeout bounds each ping.
func NewChecker(server *grpchealth.Server, timeout time.Duration, services ...string) *Checker {
	return &Checker{
		server:   server,
		services: services,
		timeout:  timeout,
		deps:     make(map[string]PingFunc),
		state:    make(map[string]error),
	}
}

// Add registers a dependency. Not safe to call concurrently with Run.
func (c *Checker) Add(name string, ping PingFunc) {
	if ping == nil {
		return
	}
	c.deps[name] = ping
}

// Check pings every dependency once and updates the serving status. Returns the failing dependencies, sorted.
func (c *Checker) Check(ctx context.Context) []string {
	names := make([]string, 0, len(c.deps))
	for name := range c.deps {
		names = append(names, name)
	}
	sort.Strings(names)

	var failing []string
	for _, name := range names {
		pingCtx, cancel := context.WithTimeout(ctx, c.timeout)
		err := c.deps[name](pingCtx)
		cancel()
		c.record(name, err)
		if err != nil {
			failing = append(failing, name)
		}
	}

	status := healthpb.HealthCheckResponse_SERVING
	if len(failing) > 0 {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	c.server.SetServingStatus("", status)
	for _, svc := range c.services {
		c.server.SetServingStatus(svc, status)
	}
	return failing
}

// Run calls Check every interval until ctx is done.
func (c *Checker) Run(ctx context.Context, interval time.Duration) {
	c.Check(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Check(ctx)
		}
	}
}

// record logs state changes only, so a flapping dependency does not flood the log.
func (c *Checker) record(name string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev, seen := c.state[name]
	c.state[name] = err
	switch {
	case err != nil && (!seen || prev == nil):
		log.Printf("health: %s unreachable: %v", name, err)
	case err == nil && seen && prev != nil:
		log.Printf("health: %s reachable again", name)
	}
}
