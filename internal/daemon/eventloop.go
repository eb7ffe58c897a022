package daemon

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultMaintenanceInterval is how often the event loop runs housekeeping.
// The scheduler rounds anything below a second up to one second.
const DefaultMaintenanceInterval = 30 * time.Second

// EventLoop runs periodic maintenance until its context is cancelled.
type EventLoop struct {
	daemon   *Daemon
	interval time.Duration
}

// NewEventLoop creates a new event loop
func NewEventLoop(d *Daemon, interval time.Duration) *EventLoop {
	if interval <= 0 {
		interval = DefaultMaintenanceInterval
	}
	return &EventLoop{
		daemon:   d,
		interval: interval,
	}
}

// Run schedules the maintenance job and blocks until ctx is done. A job
// still running at that point is allowed to finish.
func (e *EventLoop) Run(ctx context.Context) {
	scheduler := cron.New()
	scheduler.Schedule(cron.Every(e.interval), cron.FuncJob(e.processTasks))
	scheduler.Start()
	e.daemon.log.Info().Dur("interval", e.interval).Msg("Event loop started")

	<-ctx.Done()
	e.daemon.log.Info().Msg("Event loop stopping")
	<-scheduler.Stop().Done()
}

// processTasks prunes old log files and reports bus and client stats.
func (e *EventLoop) processTasks() {
	e.daemon.logger.Cleanup()

	pending := e.daemon.bus.PendingCount()
	subscribers := e.daemon.bus.SubscriberCount()
	e.daemon.metrics.SetPending(pending)
	e.daemon.metrics.SetSubscribers(subscribers)

	clients := e.daemon.gateway.GetConnectedClients()
	if pending > 0 || subscribers > 0 || len(clients) > 0 {
		e.daemon.log.Debug().
			Int("pending", pending).
			Int("subscribers", subscribers).
			Int("ws_clients", len(clients)).
			Msg("Command bus stats")
	}
}
