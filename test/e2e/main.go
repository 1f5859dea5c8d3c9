package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/kubev2v/asyncqueue/test/e2e/infra"
)

type configuration struct {
	InfraMode   string // "process" or "external"
	AgentAPIUrl string
	AuthSecret  string
}

var (
	cfg          configuration
	infraManager infra.InfraManager
)

func (c configuration) Validate() error {
	if c.InfraMode != "process" && c.InfraMode != "external" {
		return fmt.Errorf("invalid infra-mode %q: must be 'process' or 'external'", c.InfraMode)
	}
	if c.InfraMode == "external" {
		if c.AgentAPIUrl == "" {
			return errors.New("agent api url is empty")
		}
		if _, err := url.Parse(c.AgentAPIUrl); err != nil {
			return fmt.Errorf("failed to parse agent api url: %v", err)
		}
	}
	return nil
}

func main() {
	flag.StringVar(&cfg.InfraMode, "infra-mode", "process", "Infrastructure mode: 'process' (in-process agent) or 'external' (already running)")
	flag.StringVar(&cfg.AgentAPIUrl, "agent-api-url", "http://localhost:8000", "Agent API url (external mode)")
	flag.StringVar(&cfg.AuthSecret, "auth-secret", "", "JWT secret shared with the agent")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	zap.ReplaceGlobals(logger)
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		log.Fatalf("failed to validate configuration: %v", err)
	}

	switch cfg.InfraMode {
	case "process":
		infraManager = infra.NewProcessInfraManager()
	case "external":
		infraManager = infra.NewExternalInfraManager(cfg.AgentAPIUrl, cfg.AuthSecret)
	}

	RegisterFailHandler(Fail)
	if !RunSpecs(&testing.T{}, "E2E Suite") {
		os.Exit(1)
	}
}
