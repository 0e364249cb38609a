package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/mes-backend/internal/data/repos"
	domainagg "github.com/yungbote/mes-backend/internal/domain/aggregates"
	"github.com/yungbote/mes-backend/internal/http/response"
	"github.com/yungbote/mes-backend/internal/pkg/logger"
	"github.com/yungbote/mes-backend/internal/services"
)

type TraceRecordHandler struct {
	log    *logger.Logger
	traces services.TraceService
}

func NewTraceRecordHandler(log *logger.Logger, traces services.TraceService) *TraceRecordHandler {
	if log == nil {
		log = logger.NewNop()
	}
	return &TraceRecordHandler{log: log.With("handler", "TraceRecordHandler"), traces: traces}
}

type createTraceRecordRequest struct {
	WorkOrderID     string `json:"work_order_id" binding:"required"`
	ProductLineCode string `json:"product_line_code"`
}

type bindPinRequest struct {
	Pin string `json:"pin" binding:"required"`
}

type addBomItemRequest struct {
	ItemCode    string  `json:"item_code" binding:"required"`
	Sku         string  `json:"sku"`
	Consumption float64 `json:"consumption"`
}

type addProcItemRequest struct {
	Station        string          `json:"station" binding:"required"`
	Key            string          `json:"key" binding:"required"`
	Value          json.RawMessage `json:"value"`
	DeleteExisting bool            `json:"delete_existing"`
}

type forceNgRequest struct {
	IsNg     *bool  `json:"is_ng"`
	NgReason string `json:"ng_reason"`
}

type forceDestroyedRequest struct {
	Destroyed *bool `json:"destroyed"`
}

// POST /api/trace-records
func (h *TraceRecordHandler) Create(c *gin.Context) {
	var req createTraceRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	woID, err := uuid.Parse(strings.TrimSpace(req.WorkOrderID))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_work_order_id", err)
		return
	}
	rec, err := h.traces.Create(c.Request.Context(), domainagg.CreateTraceRecordInput{
		WorkOrderID:     woID,
		ProductLineCode: strings.TrimSpace(req.ProductLineCode),
	})
	if err != nil {
		response.RespondAggregateError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"trace_record": rec})
}

// GET /api/trace-records
func (h *TraceRecordHandler) List(c *gin.Context) {
	filter, err := parseTraceFilter(c)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_filter", err)
		return
	}
	page, err := h.traces.List(c.Request.Context(), filter)
	if err != nil {
		response.RespondAggregateError(c, err)
		return
	}
	response.RespondOK(c, gin.H{
		"items":     page.Items,
		"total":     page.Total,
		"page":      page.Page,
		"page_size": page.PageSize,
	})
}

// GET /api/trace-records/:id
func (h *TraceRecordHandler) Get(c *gin.Context) {
	id, ok := traceIDParam(c)
	if !ok {
		return
	}
	rec, err := h.traces.Get(c.Request.Context(), id)
	if err != nil {
		response.RespondAggregateError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"trace_record": rec})
}

// GET /api/trace-records/by-pin/:pin
func (h *TraceRecordHandler) GetByPin(c *gin.Context) {
	rec, err := h.traces.GetByPin(c.Request.Context(), c.Param("pin"))
	if err != nil {
		response.RespondAggregateError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"trace_record": rec})
}

// GET /api/trace-records/by-sequence/:product_code/:sequence
func (h *TraceRecordHandler) GetBySequence(c *gin.Context) {
	seq, err := strconv.ParseInt(c.Param("sequence"), 10, 64)
	if err != nil || seq < 1 {
		response.RespondError(c, http.StatusBadRequest, "invalid_sequence", fmt.Errorf("sequence must be a positive integer"))
		return
	}
	rec, err := h.traces.GetBySequence(c.Request.Context(), c.Param("product_code"), seq)
	if err != nil {
		response.RespondAggregateError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"trace_record": rec})
}

// POST /api/trace-records/:id/pin
func (h *TraceRecordHandler) BindPin(c *gin.Context) {
	id, ok := traceIDParam(c)
	if !ok {
		return
	}
	var req bindPinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	rec, err := h.traces.BindPin(c.Request.Context(), domainagg.BindPinInput{TraceInfoID: id, Pin: req.Pin})
	if err != nil {
		response.RespondAggregateError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"trace_record": rec})
}

// POST /api/trace-records/:id/bom-items
func (h *TraceRecordHandler) AddBomItem(c *gin.Context) {
	id, ok := traceIDParam(c)
	if !ok {
		return
	}
	var req addBomItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	rec, err := h.traces.AddBomItem(c.Request.Context(), domainagg.AddBomItemInput{
		TraceInfoID: id,
		ItemCode:    req.ItemCode,
		Sku:         strings.TrimSpace(req.Sku),
		Consumption: req.Consumption,
	})
	if err != nil {
		response.RespondAggregateError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"trace_record": rec})
}

// DELETE /api/trace-records/:id/bom-items/:item_id
func (h *TraceRecordHandler) RemoveBomItem(c *gin.Context) {
	id, ok := traceIDParam(c)
	if !ok {
		return
	}
	itemID, ok := itemIDParam(c)
	if !ok {
		return
	}
	rec, err := h.traces.RemoveBomItem(c.Request.Context(), domainagg.RemoveBomItemInput{TraceInfoID: id, ItemID: itemID})
	if err != nil {
		response.RespondAggregateError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"trace_record": rec})
}

// POST /api/trace-records/by-pin/:pin/proc-items
func (h *TraceRecordHandler) AddProcItem(c *gin.Context) {
	var req addProcItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	rec, err := h.traces.AddProcItem(c.Request.Context(), domainagg.AddProcItemInput{
		Pin:            c.Param("pin"),
		Station:        req.Station,
		Key:            req.Key,
		Value:          req.Value,
		DeleteExisting: req.DeleteExisting,
	})
	if err != nil {
		response.RespondAggregateError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"trace_record": rec})
}

// DELETE /api/trace-records/:id/proc-items/:item_id
func (h *TraceRecordHandler) RemoveProcItem(c *gin.Context) {
	id, ok := traceIDParam(c)
	if !ok {
		return
	}
	itemID, ok := itemIDParam(c)
	if !ok {
		return
	}
	rec, err := h.traces.RemoveProcItem(c.Request.Context(), domainagg.RemoveProcItemInput{TraceInfoID: id, ItemID: itemID})
	if err != nil {
		response.RespondAggregateError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"trace_record": rec})
}

// POST /api/trace-records/:id/force-ng
func (h *TraceRecordHandler) ForceNg(c *gin.Context) {
	id, ok := traceIDParam(c)
	if !ok {
		return
	}
	var req forceNgRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if req.IsNg == nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", fmt.Errorf("is_ng is required"))
		return
	}
	rec, err := h.traces.ForceNg(c.Request.Context(), domainagg.ForceNgInput{TraceInfoID: id, IsNg: *req.IsNg, NgReason: req.NgReason})
	if err != nil {
		response.RespondAggregateError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"trace_record": rec})
}

// POST /api/trace-records/:id/force-destroyed
func (h *TraceRecordHandler) ForceDestroyed(c *gin.Context) {
	id, ok := traceIDParam(c)
	if !ok {
		return
	}
	var req forceDestroyedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if req.Destroyed == nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", fmt.Errorf("destroyed is required"))
		return
	}
	rec, err := h.traces.ForceDestroyed(c.Request.Context(), domainagg.ForceDestroyedInput{TraceInfoID: id, Destroyed: *req.Destroyed})
	if err != nil {
		response.RespondAggregateError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"trace_record": rec})
}

func traceIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_trace_info_id", err)
		return uuid.Nil, false
	}
	return id, true
}

func itemIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("item_id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_item_id", err)
		return uuid.Nil, false
	}
	return id, true
}

func parseTraceFilter(c *gin.Context) (repos.TraceFilter, error) {
	f := repos.TraceFilter{
		ProductCode:     strings.TrimSpace(c.Query("product_code")),
		ProductLineCode: strings.TrimSpace(c.Query("product_line_code")),
		Pin:             strings.TrimSpace(c.Query("pin")),
	}
	if raw := strings.TrimSpace(c.Query("work_order_id")); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return f, fmt.Errorf("work_order_id: %w", err)
		}
		f.WorkOrderID = id
	}
	for name, dst := range map[string]**bool{"is_ng": &f.IsNg, "destroyed": &f.Destroyed} {
		raw := strings.TrimSpace(c.Query(name))
		if raw == "" {
			continue
		}
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return f, fmt.Errorf("%s: %w", name, err)
		}
		*dst = &v
	}
	for name, dst := range map[string]**time.Time{"created_from": &f.CreatedFrom, "created_to": &f.CreatedTo} {
		raw := strings.TrimSpace(c.Query(name))
		if raw == "" {
			continue
		}
		v, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return f, fmt.Errorf("%s: %w", name, err)
		}
		*dst = &v
	}
	for name, dst := range map[string]*int{"page": &f.Page, "page_size": &f.PageSize} {
		raw := strings.TrimSpace(c.Query(name))
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			return f, fmt.Errorf("%s must be a non-negative integer", name)
		}
		*dst = v
	}
	return f, nil
}
