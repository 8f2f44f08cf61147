// Package httpapi exposes the navigation server over HTTP: REST endpoints for
// route queries, actor control and block edits, and a websocket stream of
// executor status.
package httpapi

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"voxelnav/internal/journal"
	"voxelnav/internal/network"
)

// Service is the navigation surface served over HTTP.
type Service interface {
	Hello() network.Hello
	FindRoute(ctx context.Context, req network.RouteRequest) (network.RouteResponse, error)
	Spawn(req network.SpawnRequest) (network.SpawnReply, error)
	Despawn(actorID string) error
	Execute(ctx context.Context, req network.ExecuteRequest) (network.ExecuteReply, error)
	Stop(actorID string) (network.ActorStatus, error)
	Status(actorID string) (network.ActorStatus, error)
	Statuses() []network.ActorStatus
	EditBlock(ctx context.Context, req network.BlockEdit) (network.BlockEditAck, error)
	RecentRoutes(ctx context.Context, actorID string, limit int) ([]journal.RouteRecord, error)
	RecentEvents(ctx context.Context, actorID string, limit int) ([]journal.EventRecord, error)
}

type API struct {
	svc      Service
	logger   *log.Logger
	rate     time.Duration
	upgrader websocket.Upgrader
	router   *gin.Engine

	done      chan struct{}
	closeOnce sync.Once
}

// New builds the router. rate is the interval between status frames on the
// websocket stream.
func New(svc Service, rate time.Duration, logger *log.Logger) *API {
	if logger == nil {
		logger = log.New(log.Writer(), "http ", log.LstdFlags|log.Lmicroseconds)
	}
	if rate <= 0 {
		rate = 250 * time.Millisecond
	}
	a := &API{
		svc:    svc,
		logger: logger,
		rate:   rate,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		done: make(chan struct{}),
	}
	a.router = a.routes()
	return a
}

func (a *API) Handler() http.Handler {
	return a.router
}

// Close ends open status streams.
func (a *API) Close() {
	a.closeOnce.Do(func() { close(a.done) })
}

func (a *API) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithWriter(a.logger.Writer()))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/v1")
	v1.GET("/region", a.region)
	v1.POST("/routes", a.findRoute)
	v1.GET("/actors", a.listActors)
	v1.POST("/actors", a.spawn)
	v1.GET("/actors/:id", a.status)
	v1.DELETE("/actors/:id", a.despawn)
	v1.POST("/actors/:id/execute", a.execute)
	v1.POST("/actors/:id/stop", a.stop)
	v1.PUT("/blocks", a.editBlock)
	v1.GET("/journal/routes", a.journalRoutes)
	v1.GET("/journal/events", a.journalEvents)
	v1.GET("/stream", a.stream)
	return r
}

func (a *API) region(c *gin.Context) {
	c.JSON(http.StatusOK, a.svc.Hello())
}

func (a *API) findRoute(c *gin.Context) {
	var req network.RouteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}
	resp, err := a.svc.FindRoute(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (a *API) listActors(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"actors": a.svc.Statuses()})
}

func (a *API) spawn(c *gin.Context) {
	var req network.SpawnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}
	reply, err := a.svc.Spawn(req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, reply)
}

func (a *API) status(c *gin.Context) {
	status, err := a.svc.Status(c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (a *API) despawn(c *gin.Context) {
	if err := a.svc.Despawn(c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *API) execute(c *gin.Context) {
	var req network.ExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}
	req.ActorID = c.Param("id")
	reply, err := a.svc.Execute(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, reply)
}

func (a *API) stop(c *gin.Context) {
	status, err := a.svc.Stop(c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (a *API) editBlock(c *gin.Context) {
	var req network.BlockEdit
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}
	ack, err := a.svc.EditBlock(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ack)
}

func (a *API) journalRoutes(c *gin.Context) {
	limit, err := queryLimit(c)
	if err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}
	routes, err := a.svc.RecentRoutes(c.Request.Context(), c.Query("actor"), limit)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"routes": routes})
}

func (a *API) journalEvents(c *gin.Context) {
	limit, err := queryLimit(c)
	if err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}
	events, err := a.svc.RecentEvents(c.Request.Context(), c.Query("actor"), limit)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func queryLimit(c *gin.Context) (int, error) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, errors.New("limit must be a non-negative integer")
	}
	return limit, nil
}

// statusCode maps service errors onto HTTP status codes.
func statusCode(err error) int {
	switch {
	case errors.Is(err, network.ErrUnknownActor):
		return http.StatusNotFound
	case errors.Is(err, network.ErrActorExists):
		return http.StatusConflict
	case errors.Is(err, network.ErrInvalidRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func fail(c *gin.Context, err error) {
	abort(c, statusCode(err), err)
}

func abort(c *gin.Context, code int, err error) {
	c.AbortWithStatusJSON(code, gin.H{"error": err.Error()})
}
