package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/seatplan/internal/arrangement"
	"github.com/zulandar/seatplan/internal/emergency"
	"github.com/zulandar/seatplan/internal/grid"
	"github.com/zulandar/seatplan/internal/recommend"
	"github.com/zulandar/seatplan/internal/service"
	"github.com/zulandar/seatplan/internal/store"
	"go.uber.org/zap"
)

type handlers struct {
	svc    *service.Service
	health HealthChecker
	log    *zap.Logger
	// poll is the change-stream polling interval.
	poll time.Duration
}

// registerRoutes sets up all API routes on the Gin router.
func registerRoutes(router *gin.Engine, h *handlers) {
	router.GET("/api/health", h.handleHealth)

	arr := router.Group("/api/arrangements")
	arr.GET("", h.handleList)
	arr.POST("", h.handleCreate)
	arr.GET("/:id", h.handleGet)
	arr.POST("/:id/seats", h.handleEditSeats)
	arr.PUT("/:id/layout", h.handleSetLayout)
	arr.POST("/:id/workflow", h.handleWorkflow)
	arr.POST("/:id/recommend", h.handleRecommend)
	arr.POST("/:id/apply-past", h.handleApplyPast)
	arr.POST("/:id/emergency/unavailable", h.handleUnavailable)
	arr.POST("/:id/emergency/available", h.handleAvailable)
	arr.GET("/:id/changes", h.handleChanges)
	arr.GET("/:id/events", h.handleEvents)
	arr.POST("/:id/leaders", h.handleLeaders)
	arr.POST("/:id/status", h.handleStatus)
}

// arrangementJSON is the full view of an arrangement.
type arrangementJSON struct {
	ID         uint                     `json:"id"`
	Date       string                   `json:"date"`
	Title      string                   `json:"title"`
	Status     arrangement.Status       `json:"status"`
	Version    int                      `json:"version"`
	GridLayout grid.Layout              `json:"gridLayout"`
	Seats      []arrangement.SeatRecord `json:"seats"`
	Workflow   *arrangement.Workflow    `json:"workflow"`
}

type summaryJSON struct {
	ID      uint               `json:"id"`
	Date    string             `json:"date"`
	Title   string             `json:"title"`
	Status  arrangement.Status `json:"status"`
	Version int                `json:"version"`
}

func (h *handlers) handleHealth(c *gin.Context) {
	out := gin.H{"status": "ok", "recommender": "local"}
	if h.health != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()
		rh, err := h.health.Health(ctx)
		switch {
		case err != nil:
			out["recommender"] = "unavailable"
		case rh.Ready():
			out["recommender"] = "remote"
			out["recommenderVersion"] = rh.Version
		default:
			out["recommender"] = "degraded"
		}
	}
	c.JSON(http.StatusOK, out)
}

func (h *handlers) handleList(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	metas, err := h.svc.List(c.Request.Context(), limit)
	if err != nil {
		h.writeError(c, err)
		return
	}
	out := make([]summaryJSON, 0, len(metas))
	for _, m := range metas {
		out = append(out, summaryJSON{ID: m.ID, Date: m.Date.Format("2006-01-02"), Title: m.Title, Status: m.Status, Version: m.Version})
	}
	c.JSON(http.StatusOK, out)
}

func (h *handlers) handleCreate(c *gin.Context) {
	var body struct {
		Date       string       `json:"date" binding:"required"`
		Title      string       `json:"title"`
		GridLayout *grid.Layout `json:"gridLayout"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}
	date, err := time.Parse("2006-01-02", body.Date)
	if err != nil {
		badRequest(c, "date must be YYYY-MM-DD")
		return
	}
	layout := grid.DefaultLayout()
	if body.GridLayout != nil {
		layout = *body.GridLayout
	}
	meta, err := h.svc.Create(c.Request.Context(), date, body.Title, layout)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, summaryJSON{ID: meta.ID, Date: meta.Date.Format("2006-01-02"), Title: meta.Title, Status: meta.Status, Version: meta.Version})
}

func (h *handlers) handleGet(c *gin.Context) {
	id, ok := arrangementID(c)
	if !ok {
		return
	}
	view, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toArrangementJSON(view))
}

func toArrangementJSON(v service.View) arrangementJSON {
	return arrangementJSON{
		ID:         v.ID,
		Date:       v.Date.Format("2006-01-02"),
		Title:      v.Title,
		Status:     v.Status,
		Version:    v.Version,
		GridLayout: v.State.Layout,
		Seats:      seatRecords(v.State.Assignments()),
		Workflow:   v.Workflow,
	}
}

func seatRecords(as []arrangement.Assignment) []arrangement.SeatRecord {
	out := make([]arrangement.SeatRecord, 0, len(as))
	for _, a := range as {
		out = append(out, a.Record())
	}
	return out
}

// editJSON is one manual edit. Seats are 1-based "row-col" keys.
type editJSON struct {
	Op       string `json:"op" binding:"required"`
	MemberID string `json:"memberId"`
	Seat     string `json:"seat"`
	To       string `json:"to"`
}

func (e editJSON) edit() (service.Edit, error) {
	op, err := service.ParseEditOp(e.Op)
	if err != nil {
		return service.Edit{}, err
	}
	out := service.Edit{Op: op, MemberID: e.MemberID}
	if op == service.EditUndo || op == service.EditRedo {
		return out, nil
	}
	if out.Pos, err = grid.ParseKey(e.Seat); err != nil {
		return service.Edit{}, err
	}
	switch op {
	case service.EditPlace:
		if e.MemberID == "" {
			return service.Edit{}, errors.New("place needs a memberId")
		}
	case service.EditMove:
		if out.To, err = grid.ParseKey(e.To); err != nil {
			return service.Edit{}, err
		}
	}
	return out, nil
}

func (h *handlers) handleEditSeats(c *gin.Context) {
	id, ok := arrangementID(c)
	if !ok {
		return
	}
	var body struct {
		Version int        `json:"version"`
		Edits   []editJSON `json:"edits" binding:"required,min=1,dive"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}
	edits := make([]service.Edit, 0, len(body.Edits))
	for i, e := range body.Edits {
		ed, err := e.edit()
		if err != nil {
			badRequest(c, fmt.Sprintf("edit %d: %v", i+1, err))
			return
		}
		edits = append(edits, ed)
	}
	view, err := h.svc.EditSeats(c.Request.Context(), id, body.Version, edits)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toArrangementJSON(view))
}

func (h *handlers) handleSetLayout(c *gin.Context) {
	id, ok := arrangementID(c)
	if !ok {
		return
	}
	var body struct {
		Version    int          `json:"version"`
		GridLayout *grid.Layout `json:"gridLayout" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}
	view, dropped, err := h.svc.SetLayout(c.Request.Context(), id, body.Version, *body.GridLayout)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"arrangement": toArrangementJSON(view), "dropped": seatRecords(dropped)})
}

func (h *handlers) handleWorkflow(c *gin.Context) {
	id, ok := arrangementID(c)
	if !ok {
		return
	}
	var body struct {
		Version int    `json:"version"`
		Action  string `json:"action" binding:"required"`
		Step    int    `json:"step"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}
	action, err := service.ParseWorkflowAction(body.Action)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	view, err := h.svc.Workflow(c.Request.Context(), id, body.Version, action, body.Step)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"workflow": view.Workflow, "version": view.Version})
}

func (h *handlers) handleRecommend(c *gin.Context) {
	id, ok := arrangementID(c)
	if !ok {
		return
	}
	var body struct {
		GridLayout *grid.Layout `json:"gridLayout"`
	}
	if !bindOptional(c, &body) {
		return
	}
	res, err := h.svc.Recommend(c.Request.Context(), id, body.GridLayout)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *handlers) handleApplyPast(c *gin.Context) {
	id, ok := arrangementID(c)
	if !ok {
		return
	}
	var body struct {
		SourceArrangementID uint         `json:"sourceArrangementId" binding:"required"`
		GridLayout          *grid.Layout `json:"gridLayout"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}
	res, err := h.svc.ApplyPast(c.Request.Context(), id, body.SourceArrangementID, body.GridLayout)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *handlers) handleUnavailable(c *gin.Context) {
	id, ok := arrangementID(c)
	if !ok {
		return
	}
	var body struct {
		MemberID string `json:"memberId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}
	preview, ok := previewParam(c)
	if !ok {
		return
	}
	if preview {
		res, err := h.svc.PreviewUnavailable(c.Request.Context(), id, body.MemberID)
		h.writePreview(c, res, err)
		return
	}
	rec, err := h.svc.MarkUnavailable(c.Request.Context(), id, body.MemberID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *handlers) handleAvailable(c *gin.Context) {
	id, ok := arrangementID(c)
	if !ok {
		return
	}
	var body struct {
		MemberID string `json:"memberId" binding:"required"`
		Mode     string `json:"mode"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}
	mode, err := emergency.ParsePlaceMode(body.Mode)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	preview, ok := previewParam(c)
	if !ok {
		return
	}
	if preview {
		res, err := h.svc.PreviewAvailable(c.Request.Context(), id, body.MemberID, mode)
		h.writePreview(c, res, err)
		return
	}
	rec, err := h.svc.MarkAvailable(c.Request.Context(), id, body.MemberID, mode)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// previewParam reads the optional ?preview= flag.
func previewParam(c *gin.Context) (bool, bool) {
	raw := c.Query("preview")
	if raw == "" {
		return false, true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		badRequest(c, "preview must be true or false")
		return false, false
	}
	return v, true
}

// writePreview answers with the change an emergency operation would make
// and the seating it would leave, without anything being saved.
func (h *handlers) writePreview(c *gin.Context, res emergency.Result, err error) {
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"record": res.Record, "seats": seatRecords(res.State.Assignments())})
}

func (h *handlers) handleChanges(c *gin.Context) {
	id, ok := arrangementID(c)
	if !ok {
		return
	}
	recs, err := h.svc.Changes(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if recs == nil {
		recs = []emergency.Record{}
	}
	c.JSON(http.StatusOK, recs)
}

func (h *handlers) handleLeaders(c *gin.Context) {
	id, ok := arrangementID(c)
	if !ok {
		return
	}
	cands, err := h.svc.AssignLeaders(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"leaders": cands})
}

func (h *handlers) handleStatus(c *gin.Context) {
	id, ok := arrangementID(c)
	if !ok {
		return
	}
	var body struct {
		Status arrangement.Status `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}
	version, err := h.svc.SetStatus(c.Request.Context(), id, body.Status)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": body.Status, "version": version})
}

// arrangementID parses the :id path parameter, answering 400 when it is
// not a positive integer.
func arrangementID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		badRequest(c, "arrangement id must be a positive integer")
		return 0, false
	}
	return uint(id), true
}

// bindOptional decodes an optional JSON body. An empty body leaves v as is.
func bindOptional(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, err.Error())
		return false
	}
	return true
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

// statusOf maps a service error to an HTTP status.
func statusOf(err error) int {
	switch {
	case errors.Is(err, grid.ErrInvalidPosition),
		errors.Is(err, grid.ErrInvalidLayout),
		errors.Is(err, arrangement.ErrInvalidStep),
		errors.Is(err, service.ErrInvalidEdit):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound), errors.Is(err, arrangement.ErrUnknownMember):
		return http.StatusNotFound
	case errors.Is(err, store.ErrVersionConflict),
		errors.Is(err, store.ErrLocked),
		errors.Is(err, arrangement.ErrInvalidTransition),
		errors.Is(err, service.ErrNotPublished),
		errors.Is(err, emergency.ErrAlreadySeated),
		errors.Is(err, arrangement.ErrNotAssigned),
		errors.Is(err, arrangement.ErrStepLocked),
		errors.Is(err, service.ErrNoHistory):
		return http.StatusConflict
	case errors.Is(err, emergency.ErrNoAdmissibleSeat):
		return http.StatusUnprocessableEntity
	case errors.Is(err, recommend.ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (h *handlers) writeError(c *gin.Context, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
