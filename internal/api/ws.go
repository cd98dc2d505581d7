package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/bloodcell-ai-server/internal/domain"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// CORS is handled at the HTTP layer; the socket accepts any origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// progressPollInterval is how often the stream re-reads the tracker.
const progressPollInterval = 500 * time.Millisecond

// handleProgressStream upgrades to a websocket and pushes progress
// updates until the analysis completes or fails, then closes.
func (s *Server) handleProgressStream(c *gin.Context) {
	analysisID := c.Param("id")

	_, found, err := s.tracker.Get(c.Request.Context(), analysisID)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, domain.ErrInternalServer, "Failed to read progress")
		return
	}
	if !found {
		abortWithError(c, http.StatusNotFound, domain.ErrNotFound, "Analysis not found")
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.WithError(err).Warn("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(progressPollInterval)
	defer ticker.Stop()

	var last domain.Progress
	sent := false
	for {
		p, found, err := s.tracker.Get(c.Request.Context(), analysisID)
		if err != nil || !found {
			return
		}

		if !sent || p != last {
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteJSON(p); err != nil {
				return
			}
			last = p
			sent = true
		}

		if p.Status == domain.StatusCompleted || p.Status == domain.StatusError {
			return
		}

		select {
		case <-ticker.C:
		case <-c.Request.Context().Done():
			return
		}
	}
}
