package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/playmatatu/bumper/internal/game"
)

// maxSimulateBody bounds the request; a full match state is a few KiB.
const maxSimulateBody = 64 << 10

type simulateRequest struct {
	// State is optional; a fresh match on the server's arena is used when it
	// has no balls.
	State game.GameState      `json:"state"`
	Shot  game.ShotDescriptor `json:"shot"`
}

// Simulate replays one shot against a supplied state without touching any
// match, so clients can check their local replay against the server's.
func Simulate(mm *game.MatchManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSimulateBody)

		var req simulateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		state := req.State
		if len(state.Balls) > game.NumBalls {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("at most %d balls", game.NumBalls)})
			return
		}
		if len(state.Balls) == 0 {
			state = mm.Engine().InitializeMatch()
			state.Status = game.StatusPlaying
		}
		if err := state.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		result, err := game.Replay(state, req.Shot)
		switch {
		case errors.Is(err, game.ErrInvalidPower), errors.Is(err, game.ErrInvalidShot), errors.Is(err, game.ErrShotRejected):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		case err != nil:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "simulation failed"})
			return
		}
		c.JSON(http.StatusOK, result)
	}
}
