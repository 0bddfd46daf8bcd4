package server

import (
	"github.com/gin-gonic/gin"

	apperrors "github.com/skillsenselab/streamkit/errors"
)

// RunHandler handles POST /v1/runs: execute a run and return its envelope
// with all produced chunks collected.
func RunHandler(runner *Runner) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RunRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			RespondWithError(c, apperrors.InvalidArgument("body", "must be a valid JSON run request").WithCause(err))
			return
		}
		resp, err := runner.Execute(c.Request.Context(), req)
		if err != nil {
			RespondWithError(c, err)
			return
		}
		RespondOK(c, resp)
	}
}

// RunStreamHandler handles POST /v1/runs/stream: execute a run and emit each
// chunk as an SSE "chunk" event the moment it is produced, then a terminal
// "done" or "error" event carrying the envelope. Faults detected before the
// stream starts are returned as plain JSON error responses.
func RunStreamHandler(runner *Runner) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RunRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			RespondWithError(c, apperrors.InvalidArgument("body", "must be a valid JSON run request").WithCause(err))
			return
		}

		streaming := false
		start := func() {
			if streaming {
				return
			}
			streaming = true
			c.Header("Content-Type", "text/event-stream")
			c.Header("Cache-Control", "no-cache")
			c.Header("Connection", "keep-alive")
		}

		resp, err := runner.ExecuteStream(c.Request.Context(), req, func(p ChunkPayload) error {
			start()
			c.SSEvent("chunk", p)
			c.Writer.Flush()
			return nil
		})
		if err != nil {
			// Nothing streamed yet: validation, path security, and the
			// run limit all fail before the first chunk.
			RespondWithError(c, err)
			return
		}

		start()
		if resp.Error != nil {
			c.SSEvent("error", resp)
		} else {
			c.SSEvent("done", resp)
		}
		c.Writer.Flush()
	}
}
