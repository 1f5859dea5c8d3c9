package infra

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/kubev2v/asyncqueue/internal/config"
	"github.com/kubev2v/asyncqueue/internal/handlers"
	"github.com/kubev2v/asyncqueue/internal/processor"
	"github.com/kubev2v/asyncqueue/internal/server"
	"github.com/kubev2v/asyncqueue/internal/services"
	"github.com/kubev2v/asyncqueue/internal/store"
	"github.com/kubev2v/asyncqueue/internal/store/migrations"
)

const readyTimeout = 10 * time.Second

// ProcessInfraManager runs the agent inside the test binary with an
// in-memory store.
type ProcessInfraManager struct {
	db      *sql.DB
	taskSrv *services.TaskService
	srv     *server.Server
	done    chan error
	signer  *Signer
}

func NewProcessInfraManager() *ProcessInfraManager {
	return &ProcessInfraManager{signer: NewSigner("")}
}

func (p *ProcessInfraManager) StartAgent(agentCfg AgentConfig) (string, error) {
	if p.srv != nil {
		return "", errors.New("agent already running")
	}

	port, err := freePort()
	if err != nil {
		return "", err
	}

	cfg := config.NewConfigurationWithDefaults()
	cfg.Server.HTTPPort = port
	cfg.Processor.Latency = agentCfg.Latency
	if agentCfg.QueueName != "" {
		cfg.Queue.Name = agentCfg.QueueName
	}
	if agentCfg.Parallelism > 0 {
		cfg.Queue.Parallelism = agentCfg.Parallelism
	}
	if agentCfg.AuthSecret != "" {
		cfg.Auth.Enabled = true
		cfg.Auth.Secret = agentCfg.AuthSecret
	}
	if err := cfg.Validate(); err != nil {
		return "", err
	}
	p.signer = NewSigner(agentCfg.AuthSecret)

	db, err := store.NewDB(":memory:")
	if err != nil {
		return "", err
	}
	if err := migrations.Run(context.Background(), db); err != nil {
		db.Close()
		return "", err
	}

	proc, err := processor.New(cfg.Processor)
	if err != nil {
		db.Close()
		return "", err
	}
	taskSrv, err := services.NewTaskService(cfg.Queue, proc, store.NewStore(db))
	if err != nil {
		db.Close()
		return "", err
	}
	srv, err := server.NewServer(cfg, handlers.New(taskSrv).RegisterRoutes)
	if err != nil {
		taskSrv.Close()
		db.Close()
		return "", err
	}

	p.db, p.taskSrv, p.srv = db, taskSrv, srv
	p.done = make(chan error, 1)
	go func() {
		p.done <- srv.Start(context.Background())
	}()

	url := fmt.Sprintf("http://127.0.0.1:%d", port)
	if err := waitReady(url); err != nil {
		_ = p.StopAgent()
		return "", err
	}

	zap.S().Infow("agent started", "url", url)
	return url, nil
}

func (p *ProcessInfraManager) StopAgent() error {
	if p.srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	p.taskSrv.Stop()
	err := p.srv.Stop(ctx)
	p.taskSrv.Close()
	if serveErr := <-p.done; serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
		err = errors.Join(err, serveErr)
	}
	err = errors.Join(err, p.db.Close())

	p.db, p.taskSrv, p.srv = nil, nil, nil
	return err
}

func (p *ProcessInfraManager) GenerateToken(subject string) (string, error) {
	return p.signer.GenerateToken(subject)
}

func freePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// waitReady polls until the agent accepts connections. Any HTTP answer,
// including 401, counts as ready.
func waitReady(url string) error {
	deadline := time.Now().Add(readyTimeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url + "/api/v1/queue")
		if err == nil {
			resp.Body.Close()
			return nil
		}
		time.Sleep(50 * time.Millisecond)
	}
	return fmt.Errorf("agent at %s not ready after %s", url, readyTimeout)
}
