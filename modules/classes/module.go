package classes

import (
	"classroom-api/core/cache"
	"classroom-api/core/config"
	"classroom-api/core/database"
	"classroom-api/core/middleware"
	"classroom-api/core/queue"
	"classroom-api/core/storage"
	calendarService "classroom-api/modules/calendar/service"
	"classroom-api/modules/classes/controller"
	"classroom-api/modules/classes/repository"
	"classroom-api/modules/classes/router"
	"classroom-api/modules/classes/service"
	"classroom-api/modules/classes/worker"
	"time"

	"github.com/labstack/echo/v4"
)

type Deps struct {
	DB        database.Database
	Cache     cache.Cache
	Gateway   calendarService.GatewayInterface
	Expander  calendarService.ExpanderInterface
	Identity  service.IdentityResolver
	Chat      service.ChatNotifier
	Queue     queue.Enqueuer
	Worker    *queue.Worker
	Storage   config.StorageConfig
	Scheduler config.SchedulerConfig
	Location  *time.Location
}

// Init mounts the class routes and returns the reminder scheduler, which the
// caller starts and stops.
func Init(e *echo.Echo, mw *middleware.Middleware, deps Deps) *service.ReminderScheduler {
	repo := repository.NewClassRepository(deps.DB)
	exporter := service.NewICSExporter(deps.Location)

	var publisher service.SeriesPublisher
	if deps.Storage.Enabled() && deps.Queue != nil {
		publisher = service.NewQueuePublisher(deps.Queue)
		if deps.Worker != nil {
			worker.NewHandlers(repo, exporter, storage.NewS3Store(deps.Storage)).Register(deps.Worker)
		}
	}

	svc := service.NewClassService(service.Dependencies{
		Store:     repo,
		Gateway:   deps.Gateway,
		Expander:  deps.Expander,
		Identity:  deps.Identity,
		Chat:      deps.Chat,
		Publisher: publisher,
		Exporter:  exporter,
	})
	router.NewClassRouter(controller.NewClassController(svc)).Setup(e, mw)

	return service.NewReminderScheduler(repo, deps.Chat, deps.Cache, deps.Scheduler, deps.Location)
}
