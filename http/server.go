// Package http provides the HTTP surface of the task-payment service.
//
// The server exposes task CRUD with optimistic concurrency control and
// payment submission behind the idempotency middleware. All error responses
// carry the generic shape {"message": "..."}.
package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	taskpay "github.com/taskpay-foundation/taskpay/go"
	"github.com/taskpay-foundation/taskpay/go/ledger"
	ginmw "github.com/taskpay-foundation/taskpay/go/pkg/gin"
)

// Server wires the task store, payment service and idempotency ledger into a
// Gin engine.
type Server struct {
	store    taskpay.TaskStore
	payments *taskpay.PaymentService
	records  ledger.Store
	engine   *gin.Engine
}

// NewServer creates a fully routed server.
func NewServer(store taskpay.TaskStore, payments *taskpay.PaymentService, records ledger.Store) *Server {
	s := &Server{
		store:    store,
		payments: payments,
		records:  records,
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.POST("/tasks", s.createTask)
	engine.GET("/tasks", s.listTasks)
	engine.GET("/tasks/:id", s.getTask)
	engine.PUT("/tasks/:id", s.updateTask)

	engine.POST("/payments", ginmw.IdempotencyMiddleware(records), s.createPayment)
	engine.GET("/payments/idempotency", s.listIdempotencyRecords)

	s.engine = engine
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.engine.ServeHTTP(w, r)
}

// Engine exposes the underlying Gin engine, e.g. to mount extra routes or
// middleware before serving.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) createTask(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		abortMessage(c, http.StatusBadRequest, "failed to read request body")
		return
	}
	if err := validateTaskRequest(body); err != nil {
		abortMessage(c, http.StatusBadRequest, err.Error())
		return
	}

	var req taskpay.TaskRequest
	if err := bindJSON(body, &req); err != nil {
		abortMessage(c, http.StatusBadRequest, err.Error())
		return
	}

	task, err := s.store.Create(c.Request.Context(), req.Title, req.Description)
	if err != nil {
		s.abortError(c, err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

func (s *Server) listTasks(c *gin.Context) {
	tasks, err := s.store.List(c.Request.Context())
	if err != nil {
		s.abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, tasks)
}

func (s *Server) getTask(c *gin.Context) {
	task, err := s.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// updateTask applies an optimistic-concurrency update. A version in the body
// is the explicit precondition; without one the store still resolves the
// precondition atomically inside the task's critical section.
func (s *Server) updateTask(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		abortMessage(c, http.StatusBadRequest, "failed to read request body")
		return
	}
	if err := validateTaskRequest(body); err != nil {
		abortMessage(c, http.StatusBadRequest, err.Error())
		return
	}

	var req taskpay.TaskRequest
	if err := bindJSON(body, &req); err != nil {
		abortMessage(c, http.StatusBadRequest, err.Error())
		return
	}

	mutate := func(t *taskpay.Task) {
		t.Title = req.Title
		t.Description = req.Description
	}

	var task *taskpay.Task
	if req.Version != nil {
		task, err = s.store.CompareAndSwap(c.Request.Context(), c.Param("id"), *req.Version, mutate)
	} else {
		task, err = s.store.Update(c.Request.Context(), c.Param("id"), mutate)
	}
	if err != nil {
		s.abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (s *Server) createPayment(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		abortMessage(c, http.StatusBadRequest, "failed to read request body")
		return
	}
	if err := validatePaymentRequest(body); err != nil {
		abortMessage(c, http.StatusBadRequest, err.Error())
		return
	}

	var req taskpay.PaymentRequest
	if err := bindJSON(body, &req); err != nil {
		abortMessage(c, http.StatusBadRequest, err.Error())
		return
	}

	payment, err := s.payments.ProcessPayment(c.Request.Context(), req)
	if err != nil {
		s.abortError(c, err)
		return
	}
	c.JSON(http.StatusCreated, payment)
}

func (s *Server) listIdempotencyRecords(c *gin.Context) {
	c.JSON(http.StatusOK, s.records.List())
}

// abortError maps service errors onto the HTTP status taxonomy:
// not-found 404, version conflict 409, duplicate reference 422, validation
// 400, anything else (infra/processing) 502.
func (s *Server) abortError(c *gin.Context, err error) {
	var se *taskpay.ServiceError
	if errors.As(err, &se) {
		switch se.Code {
		case taskpay.ErrCodeTaskNotFound:
			abortMessage(c, http.StatusNotFound, se.Message)
		case taskpay.ErrCodeVersionConflict:
			abortMessage(c, http.StatusConflict, se.Message)
		case taskpay.ErrCodeDuplicateReference:
			abortMessage(c, http.StatusUnprocessableEntity, se.Message)
		case taskpay.ErrCodeValidation:
			abortMessage(c, http.StatusBadRequest, se.Message)
		default:
			abortMessage(c, http.StatusBadGateway, se.Message)
		}
		return
	}
	abortMessage(c, http.StatusBadGateway, "payment processing failed: "+err.Error())
}

func abortMessage(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"message": message})
}
