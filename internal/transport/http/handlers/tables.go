package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pollak-belso-projektek/indicator-backend/internal/core/domain"
	"github.com/pollak-belso-projektek/indicator-backend/internal/usecase"
)

// TableHandler serves the table registry endpoints.
type TableHandler struct {
	tables *usecase.TableService
}

// NewTableHandler builds a new table handler instance.
func NewTableHandler(tables *usecase.TableService) *TableHandler {
	return &TableHandler{tables: tables}
}

var tableErrorCases = []ErrorCase{
	{Err: usecase.ErrTableNotFound, Status: http.StatusNotFound, Message: "Table not found"},
	{Err: usecase.ErrTableExists, Status: http.StatusConflict, Message: "Table already registered"},
}

// List returns every registered table.
func (h *TableHandler) List(c *gin.Context) {
	descriptors, err := h.tables.List(c.Request.Context())
	if err != nil {
		RespondWithMappedError(c, err, tableErrorCases, http.StatusInternalServerError, "Failed to list tables")
		return
	}

	summaries := make([]TableSummary, 0, len(descriptors))
	for _, desc := range descriptors {
		summaries = append(summaries, NewTableSummary(desc))
	}
	c.JSON(http.StatusOK, summaries)
}

// Get returns one table descriptor by name.
func (h *TableHandler) Get(c *gin.Context) {
	desc, err := h.tables.Get(c.Request.Context(), c.Param("name"))
	if err != nil {
		RespondWithMappedError(c, err, tableErrorCases, http.StatusInternalServerError, "Failed to load table")
		return
	}
	c.JSON(http.StatusOK, NewTableSummary(*desc))
}

// Create registers a new table.
func (h *TableHandler) Create(c *gin.Context) {
	var req TableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse("Bad Request", "Table name is required"))
		return
	}

	desc, err := h.tables.Register(c.Request.Context(), domain.TableDescriptor{
		Name:        req.Name,
		Alias:       req.Alias,
		IsAvailable: req.IsAvailable,
		IsLocked:    req.IsLocked,
	})
	if err != nil {
		RespondWithMappedError(c, err, tableErrorCases, http.StatusInternalServerError, "Failed to register table")
		return
	}

	c.JSON(http.StatusCreated, NewTableSummary(*desc))
}

// Update rewrites a table's alias and flags.
func (h *TableHandler) Update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req TableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse("Bad Request", "Table name is required"))
		return
	}

	err := h.tables.Update(c.Request.Context(), domain.TableDescriptor{
		ID:          id,
		Name:        req.Name,
		Alias:       req.Alias,
		IsAvailable: req.IsAvailable,
		IsLocked:    req.IsLocked,
	})
	if err != nil {
		RespondWithMappedError(c, err, tableErrorCases, http.StatusInternalServerError, "Failed to update table")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "Table updated"})
}
