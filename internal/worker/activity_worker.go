package worker

import (
	"github.com/spec-kit/ticket-desk/internal/service"
)

// StartActivityWorker registers the activity feed's event handlers.
func StartActivityWorker(activity *service.ActivityService) {
	if activity == nil {
		return
	}
	activity.RegisterHandlers()
}
