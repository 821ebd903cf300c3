// Package handler provides HTTP handlers for the push gateway API.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pushgate/pushgate/internal/api/models"
	"github.com/pushgate/pushgate/internal/api/response"
	"github.com/pushgate/pushgate/internal/device"
	"github.com/pushgate/pushgate/internal/subscriber"
)

// DeviceHandler handles device registry endpoints.
type DeviceHandler struct {
	devices *device.Service
}

// NewDeviceHandler creates a new DeviceHandler.
func NewDeviceHandler(devices *device.Service) *DeviceHandler {
	return &DeviceHandler{devices: devices}
}

// Register handles POST /api/device/register.
func (h *DeviceHandler) Register(w http.ResponseWriter, r *http.Request) {
	var input models.RegisterDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body")
		return
	}

	result, err := h.devices.Register(r.Context(), device.RegisterInput{
		UserID:     input.UserID,
		Token:      input.Token,
		DeviceType: device.Type(input.DeviceType),
		DeviceName: input.DeviceName,
	})
	if err != nil {
		var vErr *device.ValidationError
		switch {
		case errors.As(err, &vErr):
			response.BadRequest(w, r, vErr.Error())
		case errors.Is(err, subscriber.ErrNotFound):
			response.NotFound(w, r, "user not found")
		default:
			response.InternalError(w, r, "registration failed")
		}
		return
	}

	data := models.RegisterDeviceData{
		DeviceID: result.DeviceID,
		Action:   string(result.Action),
	}

	if result.Action == device.ActionCreated {
		response.Success(w, r, http.StatusCreated, "device registered", data)
		return
	}
	response.Success(w, r, http.StatusOK, "device updated", data)
}

// List handles GET /api/device/list/{userID}.
func (h *DeviceHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	devices, err := h.devices.ActiveDevices(r.Context(), userID)
	if err != nil {
		var vErr *device.ValidationError
		switch {
		case errors.As(err, &vErr):
			response.BadRequest(w, r, vErr.Error())
		case errors.Is(err, subscriber.ErrNotFound):
			response.NotFound(w, r, "user not found")
		default:
			response.InternalError(w, r, "device lookup failed")
		}
		return
	}

	data := models.DeviceListData{
		UserID:  userID,
		Devices: make([]models.DeviceSummary, 0, len(devices)),
	}
	for _, d := range devices {
		data.Devices = append(data.Devices, models.DeviceSummary{
			DeviceID:   d.ID,
			DeviceType: string(d.Type),
			DeviceName: d.Name,
			TokenLast4: d.TokenLast4(),
			LastUsed:   d.LastUsed,
		})
	}

	response.Success(w, r, http.StatusOK, "active devices", data)
}
