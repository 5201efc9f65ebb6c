// internal/models/notification.go
package models

import "time"

type NotificationChannel string

const (
	ChannelEmail NotificationChannel = "email"
	ChannelSMS   NotificationChannel = "sms"
)

// Notification is one outbound message queued after a committed transition.
type Notification struct {
	ID            string              `json:"id"`
	ApplicationID string              `json:"applicationId"`
	Status        Status              `json:"status"`
	Channel       NotificationChannel `json:"channel"`
	Recipient     string              `json:"recipient"`
	Subject       string              `json:"subject,omitempty"`
	Body          string              `json:"body"`
	Attempts      int                 `json:"attempts"`
	LastError     string              `json:"lastError,omitempty"`
	CreatedAt     time.Time           `json:"createdAt"`
}

// NotificationTemplate renders the message for a status an application
// reached.
type NotificationTemplate struct {
	Status  Status `json:"status"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	SMS     string `json:"sms"`
}
