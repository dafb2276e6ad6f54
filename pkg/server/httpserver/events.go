package httpserver

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mpapenbr/lapviewer-go/log"
)

// names of the server-sent events
const (
	eventViewport = "viewport"
	eventCache    = "cache"
	eventPing     = "ping"
)

// handleEvents streams the viewport states and cache events of a session.
// The current viewport state is sent first. Unknown sessions are not created.
func (s *Server) handleEvents(c *gin.Context) {
	sess, ok := s.lookupSession(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "unknown session"})
		return
	}
	l := log.GetFromContext(c.Request.Context())

	zoomCh := sess.Viewport.Subscribe()
	defer sess.Viewport.CancelSubscription(zoomCh)
	cacheCh := sess.Cache.Subscribe()
	defer sess.Cache.CancelSubscription(cacheCh)

	ticker := time.NewTicker(s.keepAlive)
	defer ticker.Stop()

	l.Debug("event stream opened", log.String("session", sess.ID))
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent(eventViewport, sess.Viewport.State())
	c.Writer.Flush()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case st, ok := <-zoomCh:
			if !ok {
				return false
			}
			c.SSEvent(eventViewport, st)
		case e, ok := <-cacheCh:
			if !ok {
				return false
			}
			c.SSEvent(eventCache, e)
		case t := <-ticker.C:
			c.SSEvent(eventPing, t.Unix())
		}
		return true
	})
	l.Debug("event stream closed", log.String("session", sess.ID))
}
