/*
Package main provides end-to-end tests for the asyncqueue agent.

# Package Structure

	test/e2e/
	├── main.go          Entry point: flags, config, InfraManager setup, Ginkgo runner
	├── tests.go         Ginkgo specs (dedup, parallelism, forget, list, auth)
	├── doc.go           This file
	├── infra/
	│   ├── infra.go     InfraManager interface + AgentConfig
	│   ├── process.go   ProcessInfraManager (agent inside the test binary)
	│   ├── external.go  ExternalInfraManager (agent already running)
	│   └── token.go     HS256 token signer
	└── service/
	    └── service.go   AgentSvc, HTTP client for the agent API

# InfraManager

	type InfraManager interface {
	    StartAgent(cfg) (url, error)
	    StopAgent() error
	    GenerateToken(subject) (string, error)
	}

Two implementations:
  - ProcessInfraManager: builds store, queue, service and server in-process
    on a free port with an in-memory DuckDB (default).
  - ExternalInfraManager: no-op; points at -agent-api-url.

Selected via the -infra-mode flag ("process" or "external").

# Authentication

When -auth-secret is set, the agent is started with auth enabled and every
request carries a token signed with the same secret. The unauthenticated check
is skipped otherwise.

# Running

	go run ./test/e2e
	go run ./test/e2e -auth-secret=s3cr3t
	go run ./test/e2e -infra-mode=external -agent-api-url=http://agent:8000 -auth-secret=s3cr3t
*/
package main
