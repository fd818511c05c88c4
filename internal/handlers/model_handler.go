package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"crudadmin/internal/crud"
	apperrors "crudadmin/internal/errors"
	"crudadmin/internal/middleware"
	"crudadmin/internal/registry"
	"crudadmin/internal/validator"
)

// ModelHandler serves the CRUD views of registered models
type ModelHandler struct {
	registry *registry.Registry
}

// NewModelHandler creates a new ModelHandler
func NewModelHandler(reg *registry.Registry) *ModelHandler {
	return &ModelHandler{registry: reg}
}

// BulkDeleteRequest lists the primary keys to delete
type BulkDeleteRequest struct {
	IDs []any `json:"ids" binding:"required,min=1"`
}

// ModelInfo describes one registered model
type ModelInfo struct {
	Name        string               `json:"name"`
	Permissions registry.Permissions `json:"permissions"`
}

// ResourceType resolves the action logger resource type from the route.
func (h *ModelHandler) ResourceType(c *gin.Context) string {
	return c.Param("model")
}

// ResourceID resolves the action logger resource id from the route.
func (h *ModelHandler) ResourceID(c *gin.Context) string {
	return c.Param("id")
}

// Fetch loads the projected state of a row for audit snapshots.
func (h *ModelHandler) Fetch(c *gin.Context, id string) (map[string]any, error) {
	view, err := h.registry.Get(c.Param("model"))
	if err != nil {
		return nil, err
	}
	return view.Get(c.Request.Context(), id)
}

func (h *ModelHandler) view(c *gin.Context) (registry.View, bool) {
	view, err := h.registry.Get(c.Param("model"))
	if err != nil {
		respondWithError(c, err)
		return nil, false
	}
	return view, true
}

// ListModels lists the registered models
// @Summary     List models
// @Tags        models
// @Produce     json
// @Success     200 {array} ModelInfo
// @Router      /models [get]
func (h *ModelHandler) ListModels(c *gin.Context) {
	views := h.registry.Views()
	out := make([]ModelInfo, 0, len(views))
	for _, v := range views {
		out = append(out, ModelInfo{Name: v.Name(), Permissions: v.Permissions()})
	}
	c.JSON(http.StatusOK, gin.H{"models": out})
}

// List returns one page of rows
// @Summary     List rows
// @Tags        models
// @Produce     json
// @Param       model     path  string true  "Model name"
// @Param       page      query int    false "Page number"
// @Param       page_size query int    false "Page size"
// @Param       sort      query string false "Sort column"
// @Param       order     query string false "asc or desc"
// @Success     200 {object} map[string]interface{}
// @Failure     404 {object} ErrorResponse "Model not registered"
// @Router      /models/{model} [get]
func (h *ModelHandler) List(c *gin.Context) {
	view, ok := h.view(c)
	if !ok {
		return
	}
	var params crud.ListParams
	if err := c.ShouldBindQuery(&params); err != nil {
		respondWithError(c, validator.AsValidationError(err))
		return
	}

	page, err := view.List(c.Request.Context(), params)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// Get returns one row
// @Summary     Get row
// @Tags        models
// @Produce     json
// @Param       model path string true "Model name"
// @Param       id    path string true "Primary key"
// @Success     200 {object} map[string]interface{}
// @Failure     404 {object} ErrorResponse "Not found"
// @Router      /models/{model}/{id} [get]
func (h *ModelHandler) Get(c *gin.Context) {
	view, ok := h.view(c)
	if !ok {
		return
	}
	state, err := view.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": state})
}

// Create inserts a row from the model's create schema
// @Summary     Create row
// @Tags        models
// @Accept      json,x-www-form-urlencoded
// @Produce     json
// @Param       model path string true "Model name"
// @Success     201 {object} map[string]interface{}
// @Failure     422 {object} ErrorResponse "Validation failed"
// @Router      /models/{model} [post]
func (h *ModelHandler) Create(c *gin.Context) {
	view, ok := h.view(c)
	if !ok {
		return
	}
	id, state, err := view.Create(c.Request.Context(), c.ShouldBind)
	if err != nil {
		respondWithError(c, err)
		return
	}
	middleware.AddActionResource(c, id, nil, state)
	c.JSON(http.StatusCreated, gin.H{"data": state})
}

// Update applies the model's update schema to a row
// @Summary     Update row
// @Tags        models
// @Accept      json,x-www-form-urlencoded
// @Produce     json
// @Param       model path string true "Model name"
// @Param       id    path string true "Primary key"
// @Success     200 {object} map[string]interface{}
// @Failure     404 {object} ErrorResponse "Not found"
// @Failure     422 {object} ErrorResponse "Validation failed"
// @Router      /models/{model}/{id} [patch]
func (h *ModelHandler) Update(c *gin.Context) {
	view, ok := h.view(c)
	if !ok {
		return
	}
	id := c.Param("id")
	state, err := view.Update(c.Request.Context(), id, c.ShouldBind)
	if err != nil {
		respondWithError(c, err)
		return
	}
	middleware.AddActionResource(c, id, nil, state)
	c.JSON(http.StatusOK, gin.H{"data": state})
}

// Delete removes a row
// @Summary     Delete row
// @Tags        models
// @Produce     json
// @Param       model path string true "Model name"
// @Param       id    path string true "Primary key"
// @Success     200 {object} MessageResponse
// @Failure     404 {object} ErrorResponse "Not found"
// @Router      /models/{model}/{id} [delete]
func (h *ModelHandler) Delete(c *gin.Context) {
	view, ok := h.view(c)
	if !ok {
		return
	}
	if err := view.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "Deleted"})
}

// BulkDelete removes several rows in one transaction. Ids that do not exist
// are reported back. A failure deletes nothing.
// @Summary     Bulk delete rows
// @Tags        models
// @Accept      json
// @Produce     json
// @Param       model   path string            true "Model name"
// @Param       request body BulkDeleteRequest true "Ids to delete"
// @Success     200 {object} map[string]interface{}
// @Router      /models/{model}/bulk-delete [post]
func (h *ModelHandler) BulkDelete(c *gin.Context) {
	view, ok := h.view(c)
	if !ok {
		return
	}
	if !view.Permissions().Delete {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrForbidden, "Delete is not allowed for "+view.Name()))
		return
	}

	var req BulkDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, validator.AsValidationError(err))
		return
	}

	ids := make([]string, 0, len(req.IDs))
	for _, raw := range req.IDs {
		ids = append(ids, idString(raw))
	}
	result, err := view.BulkDelete(c.Request.Context(), ids)
	if err != nil {
		respondWithError(c, err)
		return
	}

	deleted := make([]string, 0, len(result.Deleted))
	for _, row := range result.Deleted {
		middleware.AddActionResource(c, row.ID, row.State, nil)
		deleted = append(deleted, row.ID)
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted, "missing": result.Missing})
}

// idString formats a decoded JSON id without exponent notation.
func idString(raw any) string {
	switch v := raw.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}
