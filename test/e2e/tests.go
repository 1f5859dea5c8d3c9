package main

import (
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	v1 "github.com/kubev2v/asyncqueue/api/v1"
	"github.com/kubev2v/asyncqueue/test/e2e/infra"
	"github.com/kubev2v/asyncqueue/test/e2e/service"
)

var _ = Describe("Agent", Ordered, func() {
	var agent *service.AgentSvc

	BeforeAll(func() {
		agentURL, err := infraManager.StartAgent(infra.AgentConfig{
			QueueName:   "e2e",
			Parallelism: 2,
			Latency:     300 * time.Millisecond,
			AuthSecret:  cfg.AuthSecret,
		})
		Expect(err).NotTo(HaveOccurred())

		agent = service.NewAgentService(agentURL, infraManager.GenerateToken)
		if cfg.AuthSecret != "" {
			agent = agent.WithAuthUser("e2e")
		}
	})

	AfterAll(func() {
		Expect(infraManager.StopAgent()).To(Succeed())
	})

	// Given several clients submitting the same key at once
	// When every request returns
	// Then they all got the same digest and one record was stored
	It("should run a key once for concurrent submissions", func() {
		key := fmt.Sprintf("dup-%d", time.Now().UnixNano())

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			digests []string
		)
		for range 5 {
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()

				resp, err := agent.Submit(key, "shared payload")
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusOK))

				var result v1.TaskResult
				Expect(resp.Decode(&result)).To(Succeed())
				mu.Lock()
				digests = append(digests, result.Digest)
				mu.Unlock()
			}()
		}
		wg.Wait()

		Expect(digests).To(HaveLen(5))
		for _, d := range digests {
			Expect(d).To(Equal(digests[0]))
		}

		resp, err := agent.GetTask(key)
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
	})

	It("should never exceed the configured parallelism", func() {
		var wg sync.WaitGroup
		for i := range 6 {
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				_, err := agent.Submit(fmt.Sprintf("par-%d-%d", time.Now().UnixNano(), i), "x")
				Expect(err).NotTo(HaveOccurred())
			}()
		}

		Consistently(func(g Gomega) {
			status, err := agent.QueueStatus()
			g.Expect(err).NotTo(HaveOccurred())
			g.Expect(status.Active).To(BeNumerically("<=", status.Parallelism))
		}, 500*time.Millisecond, 50*time.Millisecond).Should(Succeed())

		wg.Wait()
	})

	It("should run a forgotten key again", func() {
		key := fmt.Sprintf("forget-%d", time.Now().UnixNano())

		resp, err := agent.Submit(key, "v1")
		Expect(err).NotTo(HaveOccurred())
		var first v1.TaskResult
		Expect(resp.Decode(&first)).To(Succeed())

		resp, err = agent.ForgetTask(key)
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(http.StatusNoContent))

		resp, err = agent.Submit(key, "v2")
		Expect(err).NotTo(HaveOccurred())
		var second v1.TaskResult
		Expect(resp.Decode(&second)).To(Succeed())
		Expect(second.Digest).NotTo(Equal(first.Digest))
	})

	It("should list stored executions", func() {
		list, err := agent.ListTasks(url.Values{"failed": {"false"}, "pageSize": {"100"}})

		Expect(err).NotTo(HaveOccurred())
		Expect(list.Total).To(BeNumerically(">=", 1))
		for _, t := range list.Tasks {
			Expect(t.Status).To(Equal(v1.TaskRecordStatusSucceeded))
		}
	})

	It("should reject requests without a token when auth is on", func() {
		if cfg.AuthSecret == "" {
			Skip("auth disabled")
		}

		resp, err := service.NewAgentService(agent.BaseURL(), nil).Submit("anon", "x")

		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
	})
})

