// internal/models/application.go
package models

import "time"

// Application is an admissions record. Status is a cached projection of the
// record's state change events and is only written together with one.
type Application struct {
	ID              string                 `json:"id"`
	Type            RecordType             `json:"application_type"`
	OwnerID         string                 `json:"owner_id"`
	Status          Status                 `json:"status"`
	StatusUpdatedAt time.Time              `json:"status_updated_at"`
	Intake          map[string]interface{} `json:"intake,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
}

// ApplicationFilter selects a page of the admin queue.
type ApplicationFilter struct {
	Status *Status
	Type   *RecordType
	Page   int
}

// QueuePageSize is the admin queue page length.
const QueuePageSize = 25

// ApplicationPage is one page of the admin queue with the counts shown in the
// queue's filter tabs.
type ApplicationPage struct {
	Applications []Application      `json:"applications"`
	Total        int                `json:"total"`
	Page         int                `json:"page"`
	PageSize     int                `json:"page_size"`
	ByStatus     map[Status]int     `json:"by_status"`
	ByType       map[RecordType]int `json:"by_type"`
}
