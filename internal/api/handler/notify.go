package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pushgate/pushgate/internal/api/models"
	"github.com/pushgate/pushgate/internal/api/response"
	"github.com/pushgate/pushgate/internal/device"
	"github.com/pushgate/pushgate/internal/dispatch"
	"github.com/pushgate/pushgate/internal/push"
	"github.com/pushgate/pushgate/internal/push/googleoauth"
	"github.com/pushgate/pushgate/internal/subscriber"
)

// NotifyHandler handles notification dispatch endpoints.
type NotifyHandler struct {
	dispatcher *dispatch.Service
}

// NewNotifyHandler creates a new NotifyHandler.
func NewNotifyHandler(dispatcher *dispatch.Service) *NotifyHandler {
	return &NotifyHandler{dispatcher: dispatcher}
}

// NotifyUser handles POST /api/notify/user - send a notification to every
// active device a user has.
func (h *NotifyHandler) NotifyUser(w http.ResponseWriter, r *http.Request) {
	var input models.NotifyUserRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body")
		return
	}

	if input.UserID == "" {
		response.BadRequest(w, r, "user_id must not be empty")
		return
	}
	if input.Title == "" {
		response.BadRequest(w, r, "title must not be empty")
		return
	}
	if input.Body == "" {
		response.BadRequest(w, r, "body must not be empty")
		return
	}

	result, err := h.dispatcher.NotifyUser(r.Context(), input.UserID, input.Title, input.Body, input.Data)
	if err != nil {
		var (
			vErr        *device.ValidationError
			signErr     *googleoauth.SigningError
			exchangeErr *googleoauth.TokenExchangeError
			netErr      *push.NetworkError
		)
		switch {
		case errors.As(err, &vErr):
			response.BadRequest(w, r, vErr.Error())
		case errors.Is(err, subscriber.ErrNotFound):
			response.NotFound(w, r, "user not found")
		case errors.As(err, &signErr), errors.As(err, &exchangeErr), errors.As(err, &netErr):
			response.BadGateway(w, r, "push credential minting failed")
		default:
			response.InternalError(w, r, "notification dispatch failed")
		}
		return
	}

	data := models.NotifyUserData{
		Total:      result.Total,
		Successful: result.Successful,
		Failed:     result.Failed,
	}
	for _, sendErr := range result.Errors {
		data.Errors = append(data.Errors, sendErr.Error())
	}

	response.Success(w, r, http.StatusOK, "notification dispatched", data)
}
