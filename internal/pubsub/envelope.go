package pubsub

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// PushEnvelope is the JSON body Google Pub/Sub POSTs to the webhook.
type PushEnvelope struct {
	Message struct {
		Data      string `json:"data"`
		MessageID string `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// Notification is the Gmail payload inside a push message.
type Notification struct {
	EmailAddress string `json:"emailAddress"`
	HistoryID    uint64 `json:"historyId"`
}

// DecodeNotification unwraps the base64 data field into the Gmail
// notification.
func DecodeNotification(env *PushEnvelope) (*Notification, error) {
	raw, err := base64.StdEncoding.DecodeString(env.Message.Data)
	if err != nil {
		return nil, fmt.Errorf("pubsub: decode message data: %w", err)
	}

	var n Notification
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil, fmt.Errorf("pubsub: unmarshal notification: %w", err)
	}
	if n.EmailAddress == "" || n.HistoryID == 0 {
		return nil, fmt.Errorf("pubsub: incomplete notification")
	}
	return &n, nil
}
