package notify

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"portal-agent/internal/domain"

	"github.com/gorilla/websocket"
)

// MaxPayloadBytes is the largest frame the client will look at
const MaxPayloadBytes = 10000

var (
	ErrNotText        = errors.New("notification frame is not text")
	ErrOversized      = errors.New("notification frame exceeds size limit")
	ErrMalformed      = errors.New("notification frame is not valid JSON")
	ErrForbiddenKey   = errors.New("notification carries a forbidden key")
	ErrUnknownType    = errors.New("unknown notification type")
	ErrInvalidPayload = errors.New("notification payload is invalid")
)

// forbiddenKeys are rejected at any depth of a payload
var forbiddenKeys = map[string]struct{}{
	"__proto__":   {},
	"constructor": {},
	"prototype":   {},
}

// ParseNotification validates one inbound frame and returns the sanitized
// notification. Any problem rejects the whole frame.
func ParseNotification(messageType int, payload []byte) (*domain.Notification, error) {
	if messageType != websocket.TextMessage {
		return nil, ErrNotText
	}
	if len(payload) > MaxPayloadBytes {
		return nil, ErrOversized
	}

	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, ErrMalformed
	}
	if dec.More() {
		return nil, ErrMalformed
	}
	if err := checkKeys(raw); err != nil {
		return nil, err
	}

	root, ok := raw.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: not an object", ErrInvalidPayload)
	}
	kind, ok := root["type"].(string)
	if !ok {
		return nil, fmt.Errorf("%w: type", ErrInvalidPayload)
	}
	data, ok := root["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: data", ErrInvalidPayload)
	}

	switch domain.NotificationType(kind) {
	case domain.NotificationChatMessage:
		chat, err := parseChat(data)
		if err != nil {
			return nil, err
		}
		return &domain.Notification{Type: domain.NotificationChatMessage, Chat: chat}, nil
	case domain.NotificationSystem:
		system, err := parseSystem(data)
		if err != nil {
			return nil, err
		}
		return &domain.Notification{Type: domain.NotificationSystem, System: system}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, kind)
	}
}

func parseChat(data map[string]interface{}) (*domain.ChatMessage, error) {
	roomID, err := requiredInt(data, "chat_room_id")
	if err != nil {
		return nil, err
	}
	message, err := requiredString(data, "message")
	if err != nil {
		return nil, err
	}
	timestamp, err := requiredString(data, "timestamp")
	if err != nil {
		return nil, err
	}
	roomName, err := optionalString(data, "chat_room_name")
	if err != nil {
		return nil, err
	}
	sender, err := optionalString(data, "sender_name")
	if err != nil {
		return nil, err
	}

	return &domain.ChatMessage{
		ChatRoomID:   roomID,
		ChatRoomName: sanitize(roomName),
		SenderName:   sanitize(sender),
		Message:      sanitize(message),
		Timestamp:    timestamp,
	}, nil
}

func parseSystem(data map[string]interface{}) (*domain.SystemNotification, error) {
	title, err := requiredString(data, "title")
	if err != nil {
		return nil, err
	}
	body, err := requiredString(data, "body")
	if err != nil {
		return nil, err
	}
	timestamp, err := optionalString(data, "timestamp")
	if err != nil {
		return nil, err
	}

	return &domain.SystemNotification{
		Title:     sanitize(title),
		Body:      sanitize(body),
		Timestamp: timestamp,
	}, nil
}

func checkKeys(v interface{}) error {
	switch node := v.(type) {
	case map[string]interface{}:
		for key, child := range node {
			if _, bad := forbiddenKeys[key]; bad {
				return fmt.Errorf("%w: %q", ErrForbiddenKey, key)
			}
			if err := checkKeys(child); err != nil {
				return err
			}
		}
	case []interface{}:
		for _, child := range node {
			if err := checkKeys(child); err != nil {
				return err
			}
		}
	}
	return nil
}

func requiredString(data map[string]interface{}, field string) (string, error) {
	s, ok := data[field].(string)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrInvalidPayload, field)
	}
	return s, nil
}

// optionalString accepts a missing or null field
func optionalString(data map[string]interface{}, field string) (string, error) {
	v, present := data[field]
	if !present || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrInvalidPayload, field)
	}
	return s, nil
}

func requiredInt(data map[string]interface{}, field string) (int64, error) {
	n, ok := data[field].(json.Number)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrInvalidPayload, field)
	}
	i, err := n.Int64()
	if err != nil || i < 0 {
		return 0, fmt.Errorf("%w: %s", ErrInvalidPayload, field)
	}
	return i, nil
}
