package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// IngestRequest asks the worker to fetch and store a user's transactions
// for an existing session. Token is the card service credential and must
// never be logged.
type IngestRequest struct {
	MessageID  string    `json:"messageId"`
	SessionKey string    `json:"sessionKey"`
	UserID     string    `json:"userId"`
	Token      string    `json:"token"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewIngestRequest creates a request stamped with a fresh message id.
func NewIngestRequest(sessionKey, userID, token string) *IngestRequest {
	return &IngestRequest{
		MessageID:  uuid.NewString(),
		SessionKey: sessionKey,
		UserID:     userID,
		Token:      token,
		Timestamp:  time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *IngestRequest) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// IngestRequestFromJSON decodes a message and checks its required fields.
func IngestRequestFromJSON(data []byte) (*IngestRequest, error) {
	var msg IngestRequest
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.SessionKey == "" || msg.UserID == "" {
		return nil, errors.New("ingest request without session key or user id")
	}
	return &msg, nil
}
