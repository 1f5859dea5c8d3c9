package infra

import "time"

// InfraManager abstracts agent lifecycle for e2e tests.
// Process-based: runs the agent in the test binary.
// External: no-op, the agent is already running at a known URL.
type InfraManager interface {
	StartAgent(cfg AgentConfig) (string, error)
	StopAgent() error
	GenerateToken(subject string) (string, error)
}

// AgentConfig holds configuration for starting an agent instance.
type AgentConfig struct {
	QueueName   string
	Parallelism int
	Latency     time.Duration // delay added by the digest processor
	AuthSecret  string        // empty disables auth
}
