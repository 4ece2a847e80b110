package events

// Notification is the JSON object pushed to connected clients when a ticket
// or task mutates somewhere in the intake platform.
type Notification struct {
	Type             string `json:"type"`
	Message          string `json:"message"`
	NotificationType string `json:"notificationType"`
	TaskID           string `json:"taskId,omitempty"`
	TicketID         string `json:"ticketId,omitempty"`
	// UserID is the intended recipient when the event targets a single
	// user. Delivery is still a broadcast to every authenticated
	// connection; callers must not rely on user-scoped isolation.
	UserID string `json:"userId,omitempty"`
}

const (
	TypeNotification = "NOTIFICATION"

	NotifyTicketCreated = "TICKET_CREATED"
	NotifyTicketUpdated = "TICKET_UPDATED"
	NotifyTaskAssigned  = "TASK_ASSIGNED"
	NotifyTaskUpdated   = "TASK_UPDATED"
)
