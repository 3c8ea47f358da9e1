package worker

import (
	"github.com/spec-kit/team-tickets/internal/service"
)

// StartNotificationWorker subscribes the notification handlers to ticket events.
// Handlers run synchronously on the publishing goroutine after each commit.
func StartNotificationWorker(notificationService *service.NotificationService) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
}
