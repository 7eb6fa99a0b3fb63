// Driver HTTP handlers.
//
// This file exposes REST endpoints for driver resources:
//   - POST /drivers                      (register)
//   - GET  /drivers/{id}                 (profile)
//   - PUT  /drivers/{id}/location        (report position)
//   - GET  /drivers/{id}/location        (last known position)
//   - PUT  /drivers/{id}/availability    (flip availability)
//   - GET  /drivers/{id}/availability    (availability view)
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mealhub/go-delivery-backend/internal/domain"
	"github.com/mealhub/go-delivery-backend/internal/services"
)

// DriverAPI defines the driver operations consumed by HTTP handlers.
type DriverAPI interface {
	Create(ctx context.Context, in services.DriverInput) (*domain.Driver, error)
	Get(ctx context.Context, id string) (*domain.Driver, error)
	UpdateLocation(ctx context.Context, driverID string, lat, lon float64) (*services.DriverLocation, error)
	Location(ctx context.Context, driverID string) (*services.DriverLocation, error)
	SetAvailability(ctx context.Context, driverID string, available bool) error
	Available(ctx context.Context, driverID string) (bool, error)
}

// UpdateLocationRequest is the JSON payload for position reports.
type UpdateLocationRequest struct {
	Latitude  *float64 `json:"latitude" binding:"required"`
	Longitude *float64 `json:"longitude" binding:"required"`
}

// SetAvailabilityRequest is the JSON payload for availability changes.
type SetAvailabilityRequest struct {
	Available *bool `json:"available" binding:"required"`
}

// CreateDriver registers a new driver.
func (h *Handlers) CreateDriver(c *gin.Context) {
	var req services.DriverInput
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	d, err := h.drivers.Create(c.Request.Context(), req)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusCreated, d)
}

// GetDriver fetches a driver profile.
func (h *Handlers) GetDriver(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "driver id must be a UUID")
		return
	}

	d, err := h.drivers.Get(c.Request.Context(), id)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, d)
}

// UpdateDriverLocation records the driver's current position.
func (h *Handlers) UpdateDriverLocation(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "driver id must be a UUID")
		return
	}

	var req UpdateLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "latitude and longitude required")
		return
	}

	loc, err := h.drivers.UpdateLocation(c.Request.Context(), id, *req.Latitude, *req.Longitude)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, loc)
}

// GetDriverLocation returns the driver's last known position. An expired or
// never-reported position yields 404.
func (h *Handlers) GetDriverLocation(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "driver id must be a UUID")
		return
	}

	loc, err := h.drivers.Location(c.Request.Context(), id)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, loc)
}

// SetDriverAvailability flips the driver's availability flag.
func (h *Handlers) SetDriverAvailability(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "driver id must be a UUID")
		return
	}

	var req SetAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "available required")
		return
	}

	if err := h.drivers.SetAvailability(c.Request.Context(), id, *req.Available); err != nil {
		failService(c, err)
		return
	}
	noContent(c)
}

// GetDriverAvailability reports the driver's availability view.
func (h *Handlers) GetDriverAvailability(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "driver id must be a UUID")
		return
	}

	avail, err := h.drivers.Available(c.Request.Context(), id)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"driver_id": id, "available": avail})
}
