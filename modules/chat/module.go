package chat

import (
	"classroom-api/core/config"
	"classroom-api/core/logger"
	"classroom-api/core/queue"
	"classroom-api/modules/chat/service"
	"classroom-api/modules/chat/worker"
	"time"
)

// Init wires the chat notifier and registers its task handlers on w. Without
// a homeserver every call on the returned service fails with
// service.ErrChatDisabled.
func Init(cfg config.MatrixConfig, q queue.Enqueuer, w *queue.Worker, users worker.UserLookup, loc *time.Location) *service.ChatService {
	var rooms service.RoomClient
	if cfg.Enabled() {
		client, err := service.NewMatrixClient(cfg)
		if err != nil {
			logger.Error("Chat:Init:NewMatrixClient:Error", "error", err)
		} else {
			rooms = client
		}
	} else {
		logger.Warn("Chat:Init:Disabled", "reason", "matrix homeserver not configured")
	}

	if rooms != nil && w != nil {
		worker.NewHandlers(rooms, users, cfg.Domain, loc).Register(w)
	}
	return service.NewChatService(rooms, q)
}
