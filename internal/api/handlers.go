package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/lepinkainen/tankobon/internal/batch"
	"github.com/lepinkainen/tankobon/internal/metadata"
)

type volumesResponse struct {
	Series  string             `json:"series"`
	Volumes []*metadata.Volume `json:"volumes"`
	batch.Summary
}

type batchRequest struct {
	Requests []batch.Request `json:"requests" binding:"required"`
}

func errorJSON(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"error": msg, "request_id": c.GetString("request_id")})
}

func (h *handler) getSeries(c *gin.Context) {
	name := strings.TrimSpace(c.Param("name"))
	if name == "" {
		errorJSON(c, http.StatusBadRequest, "series name is required")
		return
	}

	res := h.optimizer.GetSeries(c.Request.Context(), name)
	switch {
	case res.Found():
		c.JSON(http.StatusOK, gin.H{"series": res.Series})
	case len(res.Candidates) > 0:
		c.JSON(http.StatusOK, gin.H{"series": nil, "candidates": res.Candidates})
	default:
		errorJSON(c, http.StatusNotFound, "series not found")
	}
}

func (h *handler) getVolumes(c *gin.Context) {
	name := strings.TrimSpace(c.Param("name"))
	numbers, err := batch.ParseVolumeSpec(c.Query("v"))
	if err != nil {
		errorJSON(c, http.StatusBadRequest, err.Error())
		return
	}

	vols := h.optimizer.GetVolumes(c.Request.Context(), name, numbers)
	c.JSON(http.StatusOK, volumesResponse{
		Series:  name,
		Volumes: vols,
		Summary: batch.Summarize(vols),
	})
}

func (h *handler) postVolumes(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Requests) > maxBatchRequests {
		errorJSON(c, http.StatusRequestEntityTooLarge, "too many requests in batch")
		return
	}

	vols := h.optimizer.GetMany(c.Request.Context(), req.Requests)
	c.JSON(http.StatusOK, gin.H{
		"volumes":   vols,
		"requested": len(vols),
		"resolved":  batch.Summarize(vols).Resolved,
	})
}

func (h *handler) listEditions(c *gin.Context) {
	names := []string{}
	if h.mapper != nil {
		names = h.mapper.Names()
	}
	c.JSON(http.StatusOK, gin.H{"editions": names})
}

func (h *handler) getEdition(c *gin.Context) {
	name := c.Param("name")
	if !h.mapper.IsAlternateEdition(name) {
		errorJSON(c, http.StatusNotFound, "unknown alternate edition")
		return
	}
	c.JSON(http.StatusOK, h.mapper.Info(name))
}

func (h *handler) getEditionBook(c *gin.Context) {
	name, book := c.Param("name"), c.Param("book")
	if !h.mapper.IsAlternateEdition(name) {
		errorJSON(c, http.StatusNotFound, "unknown alternate edition")
		return
	}
	r, ok := h.mapper.Range(name, book)
	if !ok {
		errorJSON(c, http.StatusNotFound, "book outside edition")
		return
	}
	standard, _ := h.mapper.StandardSeriesName(name)
	c.JSON(http.StatusOK, gin.H{
		"edition":           h.mapper.Info(name).Name,
		"standard_series":   standard,
		"book":              book,
		"canonical_range":   r.String(),
		"canonical_volumes": r.Volumes(),
	})
}
