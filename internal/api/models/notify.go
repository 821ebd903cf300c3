package models

// NotifyUserRequest is the body of POST /api/notify/user.
type NotifyUserRequest struct {
	UserID string         `json:"user_id"`
	Title  string         `json:"title"`
	Body   string         `json:"body"`
	Data   map[string]any `json:"data,omitempty"`
}

// NotifyUserData is the data payload of a dispatch response: per-batch
// counts with one entry per failed device.
type NotifyUserData struct {
	Total      int      `json:"total"`
	Successful int      `json:"successful"`
	Failed     int      `json:"failed"`
	Errors     []string `json:"errors,omitempty"`
}
