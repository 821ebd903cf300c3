// Package push defines the notification message model shared by the
// credential-minting, dispatch, and registry subsystems.
package push

import "fmt"

// Message is the notification payload for a single target device.
type Message struct {
	// Token is the FCM registration token of the target device.
	Token string

	// Title is the notification title shown to the user.
	Title string

	// Body is the notification body text.
	Body string

	// Data carries custom key/value pairs. FCM requires string-typed
	// values, so callers should build it via NewMessage.
	Data map[string]string
}

// NewMessage builds a Message for one device, coercing arbitrary data
// values to strings as required by the FCM v1 API.
func NewMessage(token, title, body string, data map[string]any) Message {
	msg := Message{
		Token: token,
		Title: title,
		Body:  body,
	}

	if len(data) > 0 {
		msg.Data = make(map[string]string, len(data))
		for k, v := range data {
			msg.Data[k] = fmt.Sprintf("%v", v)
		}
	}

	return msg
}

// TokenLast4 returns the last 4 characters of the target token for logging.
func (m Message) TokenLast4() string {
	if len(m.Token) < 4 {
		return m.Token
	}
	return m.Token[len(m.Token)-4:]
}
