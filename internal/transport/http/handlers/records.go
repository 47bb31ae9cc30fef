package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pollak-belso-projektek/indicator-backend/internal/usecase"
)

// RecordHandler serves generic row access to the registered statistics
// tables. Authorization happens in the endpoint access middleware; the
// handler only enforces registry state (locked, unavailable).
type RecordHandler struct {
	records *usecase.RecordService
}

// NewRecordHandler builds a new record handler instance.
func NewRecordHandler(records *usecase.RecordService) *RecordHandler {
	return &RecordHandler{records: records}
}

var recordErrorCases = []ErrorCase{
	{Err: usecase.ErrTableNotFound, Status: http.StatusNotFound, Message: "Table not found"},
	{Err: usecase.ErrTableUnavailable, Status: http.StatusNotFound, Message: "Table not found"},
	{Err: usecase.ErrTableLocked, Status: http.StatusConflict, Message: "Table is locked"},
	{Err: usecase.ErrRecordNotFound, Status: http.StatusNotFound, Message: "Record not found"},
}

// List returns all rows of the named table.
func (h *RecordHandler) List(c *gin.Context) {
	rows, err := h.records.List(c.Request.Context(), c.Param("table"))
	if err != nil {
		RespondWithMappedError(c, err, recordErrorCases, http.StatusInternalServerError, "Failed to list records")
		return
	}
	if rows == nil {
		rows = []map[string]any{}
	}
	c.JSON(http.StatusOK, rows)
}

// Get returns one row by id.
func (h *RecordHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	row, err := h.records.Get(c.Request.Context(), c.Param("table"), id)
	if err != nil {
		RespondWithMappedError(c, err, recordErrorCases, http.StatusInternalServerError, "Failed to load record")
		return
	}
	c.JSON(http.StatusOK, row)
}

// Create inserts a row built from the JSON payload.
func (h *RecordHandler) Create(c *gin.Context) {
	var values map[string]any
	if err := c.ShouldBindJSON(&values); err != nil || len(values) == 0 {
		c.JSON(http.StatusBadRequest, NewErrorResponse("Bad Request", "Record payload is required"))
		return
	}

	id, err := h.records.Create(c.Request.Context(), c.Param("table"), values)
	if err != nil {
		RespondWithMappedError(c, err, recordErrorCases, http.StatusInternalServerError, "Failed to create record")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

// Update rewrites the supplied columns of an existing row.
func (h *RecordHandler) Update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var values map[string]any
	if err := c.ShouldBindJSON(&values); err != nil || len(values) == 0 {
		c.JSON(http.StatusBadRequest, NewErrorResponse("Bad Request", "Record payload is required"))
		return
	}

	if err := h.records.Update(c.Request.Context(), c.Param("table"), id, values); err != nil {
		RespondWithMappedError(c, err, recordErrorCases, http.StatusInternalServerError, "Failed to update record")
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "Record updated"})
}

// Delete removes a row by id.
func (h *RecordHandler) Delete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.records.Delete(c.Request.Context(), c.Param("table"), id); err != nil {
		RespondWithMappedError(c, err, recordErrorCases, http.StatusInternalServerError, "Failed to delete record")
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "Record deleted"})
}
