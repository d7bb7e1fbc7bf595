package main

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/btmorr/raftkit/internal/statemachine"
	"github.com/btmorr/raftkit/node"
)

// newRouter builds the HTTP admin/status surface fronting n, mirroring the
// teacher's gin+cors+swagger go.mod wiring: a submit/read path backed by the
// engine's Completions (spec §4.10) plus a status endpoint for operators.
func newRouter(n *node.Node) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(corsMiddleware())

	r.GET("/status", statusHandler(n))
	r.PUT("/kv/:key", putHandler(n))
	r.DELETE("/kv/:key", deleteHandler(n))
	r.GET("/kv/:key", getHandler(n))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}

func corsMiddleware() gin.HandlerFunc {
	c := cors.New(cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodPut, http.MethodDelete},
	})
	return func(ctx *gin.Context) {
		c.HandlerFunc(ctx.Writer, ctx.Request)
		ctx.Next()
	}
}

// statusHandler reports this node's role, term, and leader hint.
//
//	@Summary	Node status
//	@Success	200	{object}	statusResponse
//	@Router		/status [get]
func statusHandler(n *node.Node) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, statusResponse{
			Running:    n.IsRunning(),
			Leader:     n.IsLeader(),
			Term:       uint64(n.CurrentTerm()),
			LeaderHint: string(n.LeaderHint()),
		})
	}
}

type statusResponse struct {
	Running    bool   `json:"running"`
	Leader     bool   `json:"leader"`
	Term       uint64 `json:"term"`
	LeaderHint string `json:"leader_hint"`
}

// putHandler submits a Set command through the replicated log.
//
//	@Summary	Set a key
//	@Param		key		path	string	true	"key"
//	@Param		value	body	string	true	"value"
//	@Success	200
//	@Failure	409	{object}	errorResponse	"not leader"
//	@Router		/kv/{key} [put]
func putHandler(n *node.Node) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		key := ctx.Param("key")
		value, err := ctx.GetRawData()
		if err != nil {
			ctx.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		cmd := statemachine.EncodeCommand(statemachine.ActionSet, key, string(value))
		submit(ctx, n, cmd)
	}
}

// deleteHandler submits a Delete command through the replicated log.
//
//	@Summary	Delete a key
//	@Param		key	path	string	true	"key"
//	@Success	200
//	@Router		/kv/{key} [delete]
func deleteHandler(n *node.Node) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		key := ctx.Param("key")
		cmd := statemachine.EncodeCommand(statemachine.ActionDelete, key, "")
		submit(ctx, n, cmd)
	}
}

func submit(ctx *gin.Context, n *node.Node, cmd []byte) {
	result := n.SubmitCommand(cmd, 2*time.Second).Get()
	if !result.Ok() {
		writeEngineError(ctx, result.Err)
		return
	}
	ctx.Data(http.StatusOK, "application/octet-stream", result.Value)
}

// getHandler serves a linearizable read via read-index (spec §4.6.8). When
// the state machine is the reference KVStore, the returned state bytes are
// decoded into a scratch KVStore and the single key is looked up (404 if
// absent); for any other state machine the raw state bytes are returned.
//
//	@Summary	Read a key
//	@Param		key	path	string	true	"key"
//	@Success	200	{string}	string
//	@Failure	404
//	@Router		/kv/{key} [get]
func getHandler(n *node.Node) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		key := ctx.Param("key")
		result := n.ReadState(2 * time.Second).Get()
		if !result.Ok() {
			writeEngineError(ctx, result.Err)
			return
		}
		if _, ok := n.StateMachine().(*statemachine.KVStore); ok {
			// Decode into a scratch instance: the snapshot bytes are a point-in-time
			// copy, restoring them into the live KVStore would clobber state the
			// apply loop has added since ReadState captured it.
			scratch := statemachine.NewKVStore()
			if err := scratch.Restore(result.Value, 0); err != nil {
				ctx.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
				return
			}
			if v, found := scratch.Get(key); found {
				ctx.String(http.StatusOK, v)
				return
			}
			ctx.Status(http.StatusNotFound)
			return
		}
		ctx.Data(http.StatusOK, "application/octet-stream", result.Value)
	}
}

type errorResponse struct {
	Error      string `json:"error"`
	LeaderHint string `json:"leader_hint,omitempty"`
}

func writeEngineError(ctx *gin.Context, err error) {
	ctx.JSON(http.StatusConflict, errorResponse{Error: err.Error()})
}
