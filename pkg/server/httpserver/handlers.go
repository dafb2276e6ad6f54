package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"github.com/mpapenbr/lapviewer-go/log"
	"github.com/mpapenbr/lapviewer-go/pkg/chart"
	"github.com/mpapenbr/lapviewer-go/pkg/chart/render"
	"github.com/mpapenbr/lapviewer-go/pkg/model"
	"github.com/mpapenbr/lapviewer-go/pkg/session"
	"github.com/mpapenbr/lapviewer-go/pkg/telemetry"
	"github.com/mpapenbr/lapviewer-go/pkg/utils/laptime"
	"github.com/mpapenbr/lapviewer-go/pkg/viewport"
)

var errBadRequest = errors.New("bad request")

// statusClientClosedRequest is used when the client went away before the
// response was ready.
const statusClientClosedRequest = 499

type (
	//nolint:tagliatelle // json api
	telemetryResponse struct {
		LapID     int                 `json:"lapId"`
		LapTime   string              `json:"lapTime"`
		Length    float64             `json:"length"`
		Telemetry *model.LapTelemetry `json:"telemetry"`
	}
	annotationsRequest struct {
		Annotations []string `json:"annotations"`
		Toggle      string   `json:"toggle"`
	}
	landmarkRequest struct {
		Track string             `json:"track" binding:"required"`
		Kind  model.LandmarkKind `json:"kind" binding:"required"`
		Index int                `json:"index"`
	}
)

// statusFor maps domain errors to http status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, viewport.ErrInvalidRange):
		return http.StatusBadRequest
	case errors.Is(err, telemetry.ErrLapNotFound),
		errors.Is(err, viewport.ErrLandmarkNotFound),
		errors.Is(err, session.ErrUnknownGraph):
		return http.StatusNotFound
	case errors.Is(err, telemetry.ErrFetchFailed):
		return http.StatusBadGateway
	case errors.Is(err, session.ErrTooManySessions):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled):
		return statusClientClosedRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func abortWithError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.GetFromContext(c.Request.Context()).Error("request failed",
			log.String("path", c.FullPath()), log.ErrorField(err))
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"sessions": len(s.registry.IDs()),
	})
}

func (s *Server) handleGraphs(c *gin.Context) {
	ret := make([]chart.Graph, 0)
	for _, name := range chart.GraphNames() {
		g, _ := chart.GraphByName(name)
		ret = append(ret, g)
	}
	c.JSON(http.StatusOK, ret)
}

// openSession returns the session of the request, creating it if needed.
// Only routes that load or change data create sessions.
func (s *Server) openSession(c *gin.Context) (*session.Session, error) {
	return s.registry.Open(c.Param("session"))
}

func (s *Server) lookupSession(c *gin.Context) (*session.Session, bool) {
	return s.registry.Lookup(c.Param("session"))
}

// viewport state of a session that does not exist yet
func defaultViewportState() viewport.State {
	return viewport.State{Zoom: viewport.Unbounded, Annotations: []string{}}
}

func (s *Server) handleRemoveSession(c *gin.Context) {
	if !s.registry.Remove(c.Param("session")) {
		c.Status(http.StatusNotFound)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleCachedLaps(c *gin.Context) {
	sess, ok := s.lookupSession(c)
	if !ok {
		c.JSON(http.StatusOK, []int{})
		return
	}
	c.JSON(http.StatusOK, sess.Cache.Cached())
}

func (s *Server) handleGetTelemetry(c *gin.Context) {
	lapID, err := lapParam(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	sess, err := s.openSession(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	data, err := sess.Cache.GetTelemetryForLap(c.Request.Context(), sess.ID, lapID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	lt := laptime.NotAvailable
	if len(data.Points) > 0 {
		lt = laptime.Format(data.LastLapTime())
	}
	c.JSON(http.StatusOK, telemetryResponse{
		LapID:     lapID,
		LapTime:   lt,
		Length:    data.Length(),
		Telemetry: data,
	})
}

func (s *Server) handleInvalidate(c *gin.Context) {
	lapID, err := lapParam(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if sess, ok := s.lookupSession(c); ok {
		sess.Cache.Invalidate(c.Request.Context(), lapID)
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleClearAll(c *gin.Context) {
	if sess, ok := s.lookupSession(c); ok {
		sess.Cache.ClearAll(c.Request.Context())
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleGetZoom(c *gin.Context) {
	sess, ok := s.lookupSession(c)
	if !ok {
		c.JSON(http.StatusOK, defaultViewportState())
		return
	}
	c.JSON(http.StatusOK, sess.Viewport.State())
}

func (s *Server) handleSetZoom(c *gin.Context) {
	var z viewport.ZoomState
	if err := c.ShouldBindJSON(&z); err != nil {
		abortWithError(c, badRequest("%v", err))
		return
	}
	sess, err := s.openSession(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	vp := sess.Viewport
	if err = vp.SetZoom(z); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, vp.State())
}

func (s *Server) handleResetZoom(c *gin.Context) {
	sess, ok := s.lookupSession(c)
	if !ok {
		c.JSON(http.StatusOK, defaultViewportState())
		return
	}
	sess.Viewport.Reset()
	c.JSON(http.StatusOK, sess.Viewport.State())
}

func (s *Server) handleAnnotations(c *gin.Context) {
	var req annotationsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, badRequest("%v", err))
		return
	}
	sess, err := s.openSession(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	vp := sess.Viewport
	if req.Toggle != "" {
		vp.ToggleAnnotation(req.Toggle)
	} else {
		vp.SetAnnotations(req.Annotations)
	}
	c.JSON(http.StatusOK, vp.State())
}

func (s *Server) handleGetLandmarks(c *gin.Context) {
	tl, err := s.trackLandmarks(c, c.Param("track"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	if tl == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, tl)
}

func (s *Server) handleSelectLandmark(c *gin.Context) {
	var req landmarkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, badRequest("%v", err))
		return
	}
	if !req.Kind.Valid() {
		abortWithError(c, badRequest("unknown landmark kind %q", req.Kind))
		return
	}
	tl, err := s.trackLandmarks(c, req.Track)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if tl == nil {
		// nothing to select from, zoom stays as it is
		c.Status(http.StatusNoContent)
		return
	}
	sess, err := s.openSession(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	vp := sess.Viewport
	if err := viewport.SelectByIndex(vp, tl, req.Kind, req.Index); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, vp.State())
}

func (s *Server) trackLandmarks(c *gin.Context, track string) (*model.TrackLandmarks, error) {
	if s.landmarks == nil {
		return nil, nil
	}
	return s.landmarks.Get(c.Request.Context(), track)
}

func (s *Server) chartData(c *gin.Context) (*session.ChartData, error) {
	laps, err := lapsQuery(c)
	if err != nil {
		return nil, err
	}
	clip, _ := strconv.ParseBool(c.DefaultQuery("clip", "false"))
	sess, err := s.openSession(c)
	if err != nil {
		return nil, err
	}
	return sess.Chart(c.Request.Context(), c.Param("graph"), laps,
		session.WithClip(clip))
}

func (s *Server) handleChart(c *gin.Context) {
	data, err := s.chartData(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, data)
}

func (s *Server) handlePreview(c *gin.Context) {
	data, err := s.chartData(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := render.Line(c.Writer, data.Graph, data.Series, data.MinX, data.MaxX,
		render.WithTitle(data.Graph.Unit, "session "+c.Param("session"))); err != nil {
		log.GetFromContext(c.Request.Context()).Error("could not render preview",
			log.ErrorField(err))
	}
}

func lapParam(c *gin.Context) (int, error) {
	lapID, err := strconv.Atoi(c.Param("lap"))
	if err != nil {
		return 0, badRequest("invalid lap %q", c.Param("lap"))
	}
	return lapID, nil
}

// lapsQuery parses laps=1,2,3. Repeated ids are dropped.
func lapsQuery(c *gin.Context) ([]int, error) {
	raw := c.Query("laps")
	if raw == "" {
		return nil, badRequest("missing laps")
	}
	parts := strings.Split(raw, ",")
	ret := make([]int, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, badRequest("invalid lap %q", p)
		}
		ret = append(ret, id)
	}
	return lo.Uniq(ret), nil
}
