package models

import "time"

// RegisterDeviceRequest is the body of POST /api/device/register.
type RegisterDeviceRequest struct {
	UserID     string  `json:"user_id"`
	Token      string  `json:"fcm_token"`
	DeviceType string  `json:"device_type,omitempty"`
	DeviceName *string `json:"device_name,omitempty"`
}

// RegisterDeviceData is the data payload of a successful registration.
type RegisterDeviceData struct {
	DeviceID string `json:"device_id"`
	Action   string `json:"action"`
}

// DeviceSummary describes one registered device in list responses. The raw
// token never leaves the service; only its last 4 characters do.
type DeviceSummary struct {
	DeviceID   string    `json:"device_id"`
	DeviceType string    `json:"device_type"`
	DeviceName *string   `json:"device_name,omitempty"`
	TokenLast4 string    `json:"token_last4"`
	LastUsed   time.Time `json:"last_used"`
}

// DeviceListData is the data payload of a device list response.
type DeviceListData struct {
	UserID  string          `json:"user_id"`
	Devices []DeviceSummary `json:"devices"`
}
