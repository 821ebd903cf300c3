package push

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewMessage_CoercesDataValues(t *testing.T) {
	msg := NewMessage("tok", "title", "body", map[string]any{
		"count":  3,
		"ratio":  1.5,
		"flag":   true,
		"street": "main",
	})

	assert.Equal(t, map[string]string{
		"count":  "3",
		"ratio":  "1.5",
		"flag":   "true",
		"street": "main",
	}, msg.Data)
}

func TestNewMessage_NilData(t *testing.T) {
	msg := NewMessage("tok", "title", "body", nil)
	assert.Nil(t, msg.Data)
}

func TestMessage_TokenLast4(t *testing.T) {
	assert.Equal(t, "6789", Message{Token: "123456789"}.TokenLast4())
	assert.Equal(t, "ab", Message{Token: "ab"}.TokenLast4())
}
