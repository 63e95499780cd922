package domain

import "time"

// NotificationType discriminates inbound socket messages
type NotificationType string

const (
	NotificationChatMessage NotificationType = "chat_message"
	NotificationSystem      NotificationType = "system_notification"
)

// Notification is a validated, sanitized socket message. Exactly one of Chat
// and System is set, matching Type.
type Notification struct {
	Type   NotificationType
	Chat   *ChatMessage
	System *SystemNotification
}

// ChatMessage is the payload of a chat_message notification
type ChatMessage struct {
	ChatRoomID   int64  `json:"chat_room_id"`
	ChatRoomName string `json:"chat_room_name,omitempty"`
	SenderName   string `json:"sender_name,omitempty"`
	Message      string `json:"message"`
	Timestamp    string `json:"timestamp"`
}

// SystemNotification is the payload of a system_notification
type SystemNotification struct {
	Title     string `json:"title"`
	Body      string `json:"body"`
	Timestamp string `json:"timestamp,omitempty"`
}

// ToastLevel is the severity of a toast
type ToastLevel string

const (
	ToastSuccess ToastLevel = "success"
	ToastError   ToastLevel = "error"
	ToastInfo    ToastLevel = "info"
)

// Toast is a transient, user facing message
type Toast struct {
	ID        string     `json:"id"`
	Level     ToastLevel `json:"level"`
	Title     string     `json:"title"`
	Message   string     `json:"message"`
	CreatedAt time.Time  `json:"created_at"`
}

// NotificationPermission mirrors the browser permission tri-state
type NotificationPermission string

const (
	PermissionDefault NotificationPermission = "default"
	PermissionGranted NotificationPermission = "granted"
	PermissionDenied  NotificationPermission = "denied"
)

// DesktopNotification is a native notification. Notifications sharing a Tag
// replace each other.
type DesktopNotification struct {
	Tag       string    `json:"tag"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// ConnectionState is the lifecycle state of the notification socket
type ConnectionState string

const (
	ConnDisconnected ConnectionState = "disconnected"
	ConnConnecting   ConnectionState = "connecting"
	ConnOpen         ConnectionState = "open"
)
