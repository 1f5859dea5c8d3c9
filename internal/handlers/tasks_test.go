package handlers_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	v1 "github.com/kubev2v/asyncqueue/api/v1"
	"github.com/kubev2v/asyncqueue/internal/config"
	"github.com/kubev2v/asyncqueue/internal/handlers"
	"github.com/kubev2v/asyncqueue/internal/models"
	"github.com/kubev2v/asyncqueue/internal/processor"
	"github.com/kubev2v/asyncqueue/internal/services"
	"github.com/kubev2v/asyncqueue/internal/store"
	"github.com/kubev2v/asyncqueue/internal/store/migrations"
	"github.com/kubev2v/asyncqueue/pkg/asyncqueue"
)

var _ = Describe("Task handlers", func() {
	var (
		db     *sql.DB
		svc    *services.TaskService
		router *gin.Engine
	)

	// failOn makes every key starting with "bad" fail.
	failOn := func(ctx context.Context, t models.Task, done asyncqueue.Callback[models.TaskResult]) {
		if strings.HasPrefix(t.Key, "bad") {
			done(models.TaskResult{}, errors.New("payload rejected"))
			return
		}
		if strings.HasPrefix(t.Key, "slow") {
			processor.Digest(300*time.Millisecond)(ctx, t, done)
			return
		}
		processor.Digest(0)(ctx, t, done)
	}

	doCtx := func(ctx context.Context, method, path string, body any) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		if body != nil {
			Expect(json.NewEncoder(&buf).Encode(body)).To(Succeed())
		}
		req := httptest.NewRequestWithContext(ctx, method, path, &buf)
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	do := func(method, path string, body any) *httptest.ResponseRecorder {
		return doCtx(context.Background(), method, path, body)
	}

	BeforeEach(func() {
		var err error
		db, err = store.NewDB(":memory:")
		Expect(err).NotTo(HaveOccurred())
		Expect(migrations.Run(context.Background(), db)).To(Succeed())

		svc, err = services.NewTaskService(config.Queue{Name: "http", Parallelism: 4}, failOn, store.NewStore(db))
		Expect(err).NotTo(HaveOccurred())

		router = gin.New()
		handlers.New(svc).RegisterRoutes(router.Group("/api/v1"))
	})

	AfterEach(func() {
		svc.Close()
		db.Close()
	})

	Context("POST /tasks", func() {
		It("should return the result", func() {
			w := do(http.MethodPost, "/api/v1/tasks", v1.TaskRequest{Key: "a", Payload: "hello"})

			Expect(w.Code).To(Equal(http.StatusOK))
			var result v1.TaskResult
			Expect(json.Unmarshal(w.Body.Bytes(), &result)).To(Succeed())
			Expect(result.Key).To(Equal("a"))
			Expect(result.Size).To(BeNumerically("==", 5))
			Expect(result.Source).To(Equal(v1.TaskResultSourcePayload))
		})

		It("should reject a missing key", func() {
			w := do(http.MethodPost, "/api/v1/tasks", map[string]string{"payload": "x"})

			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})

		It("should return 500 with the processor error", func() {
			w := do(http.MethodPost, "/api/v1/tasks", v1.TaskRequest{Key: "bad-1"})

			Expect(w.Code).To(Equal(http.StatusInternalServerError))
			Expect(w.Body.String()).To(ContainSubstring("payload rejected"))
		})

		It("should return 503 once the queue is stopped", func() {
			svc.Stop()

			w := do(http.MethodPost, "/api/v1/tasks", v1.TaskRequest{Key: "a"})

			Expect(w.Code).To(Equal(http.StatusServiceUnavailable))
		})
	})

	Context("POST /tasks when the caller gives up", func() {
		It("should not report a server error for a disconnected client", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			w := doCtx(ctx, http.MethodPost, "/api/v1/tasks", v1.TaskRequest{Key: "slow-cancel"})

			Expect(w.Code).To(Equal(499))
		})

		It("should return 504 when the request deadline passes", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
			defer cancel()

			w := doCtx(ctx, http.MethodPost, "/api/v1/tasks", v1.TaskRequest{Key: "slow-deadline"})

			Expect(w.Code).To(Equal(http.StatusGatewayTimeout))
		})
	})

	Context("GET /tasks", func() {
		BeforeEach(func() {
			Expect(do(http.MethodPost, "/api/v1/tasks", v1.TaskRequest{Key: "a", Payload: "1"}).Code).To(Equal(http.StatusOK))
			Expect(do(http.MethodPost, "/api/v1/tasks", v1.TaskRequest{Key: "b", Payload: "2"}).Code).To(Equal(http.StatusOK))
			Expect(do(http.MethodPost, "/api/v1/tasks", v1.TaskRequest{Key: "bad-x"}).Code).To(Equal(http.StatusInternalServerError))
		})

		It("should list every record", func() {
			w := do(http.MethodGet, "/api/v1/tasks", nil)

			Expect(w.Code).To(Equal(http.StatusOK))
			var resp v1.TaskListResponse
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp.Total).To(Equal(3))
			Expect(resp.Tasks).To(HaveLen(3))
			Expect(resp.PageCount).To(Equal(1))
		})

		It("should filter failed records", func() {
			w := do(http.MethodGet, "/api/v1/tasks?failed=true", nil)

			var resp v1.TaskListResponse
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp.Total).To(Equal(1))
			Expect(resp.Tasks[0].Key).To(Equal("bad-x"))
			Expect(resp.Tasks[0].Status).To(Equal(v1.TaskRecordStatusFailed))
			Expect(resp.Tasks[0].Digest).To(BeNil())
		})

		It("should paginate", func() {
			w := do(http.MethodGet, "/api/v1/tasks?page=2&pageSize=2", nil)

			var resp v1.TaskListResponse
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp.Page).To(Equal(2))
			Expect(resp.PageCount).To(Equal(2))
			Expect(resp.Tasks).To(HaveLen(1))
		})
	})

	Context("GET /tasks/:key", func() {
		It("should return 404 for an unknown key", func() {
			w := do(http.MethodGet, "/api/v1/tasks/missing", nil)

			Expect(w.Code).To(Equal(http.StatusNotFound))
		})

		It("should return the stored record", func() {
			do(http.MethodPost, "/api/v1/tasks", v1.TaskRequest{Key: "a", Payload: "1"})

			w := do(http.MethodGet, "/api/v1/tasks/a", nil)

			Expect(w.Code).To(Equal(http.StatusOK))
			var rec v1.TaskRecord
			Expect(json.Unmarshal(w.Body.Bytes(), &rec)).To(Succeed())
			Expect(rec.Status).To(Equal(v1.TaskRecordStatusSucceeded))
			Expect(rec.Digest).NotTo(BeNil())
		})
	})

	Context("DELETE /tasks/:key", func() {
		It("should forget the key", func() {
			do(http.MethodPost, "/api/v1/tasks", v1.TaskRequest{Key: "a", Payload: "1"})

			w := do(http.MethodDelete, "/api/v1/tasks/a", nil)

			Expect(w.Code).To(Equal(http.StatusNoContent))
			Expect(do(http.MethodGet, "/api/v1/tasks/a", nil).Code).To(Equal(http.StatusNotFound))
		})
	})

	Context("GET /queue", func() {
		It("should return the counters", func() {
			w := do(http.MethodGet, "/api/v1/queue", nil)

			Expect(w.Code).To(Equal(http.StatusOK))
			var status v1.QueueStatus
			Expect(json.Unmarshal(w.Body.Bytes(), &status)).To(Succeed())
			Expect(status.Name).To(Equal("http"))
			Expect(status.Parallelism).To(Equal(4))
		})
	})
})
