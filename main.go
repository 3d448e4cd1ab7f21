package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/pprof"
	"os"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/qmdx00/lifecycle"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"gatherly/core"
	"gatherly/pkg/notify"
	"gatherly/pkg/resources"
	"gatherly/pkg/servers"
)

func main() {
	var err error

	name, version := "gatherly", "1.0"

	// 1. Logger + config
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().
		Str("service", name).Str("version", version).Logger()
	ctx := log.Logger.WithContext(context.Background())

	startupLogger := log.Ctx(ctx).With().Str("stage", "startup").Str("component", "main").Logger()
	shutdownLogger := log.Ctx(ctx).With().Str("stage", "shut down").Str("component", "main").Logger()

	startupLogger.Info().Msg("application starting up")
	defer shutdownLogger.Info().Msg("application stopped")

	resources.LoadConfig()

	// 2. Telemetry (traces/metrics)
	stopTracerFn, err := resources.CreateTracer(ctx)
	if err != nil {
		shutdownLogger.Fatal().Err(err).Msg(fmt.Sprintf("unable to setup tracer: %v", err))
	}

	defer func() { _ = stopTracerFn(ctx) }()

	stopMeterFn, err := resources.CreateMeter(ctx)
	if err != nil {
		shutdownLogger.Fatal().Err(err).Msg(fmt.Sprintf("unable to setup meter: %v", err))
	}

	defer func() { _ = stopMeterFn(ctx) }()

	// 3. Database
	err = resources.RunMigrations()
	if err != nil {
		shutdownLogger.Fatal().Err(err).Msg(fmt.Sprintf("unable to run migrations: %v", err))
	}

	pool, err := resources.CreateDatabaseConnectionPool(ctx)
	if err != nil {
		shutdownLogger.Fatal().Err(err).Msg(fmt.Sprintf("unable to create database connection pool: %v", err))
	}

	// 4. Wiring
	window := time.Duration(viper.GetInt("CANCEL_WINDOW_HOURS")) * time.Hour

	store := core.NewStore(pool)
	controller := core.NewAttendanceController(store, window, time.Now)
	notifier := notify.NewClient(viper.GetString("NOTIFY_BASE_URL"))
	scheduler := core.NewReminderScheduler(notifier, time.Now)
	handlers := core.NewHandlers(store, controller, scheduler, window, time.Now)
	watcher := core.NewRosterWatcher(store, time.Now)

	// 5. HTTP surface

	gin.SetMode(gin.ReleaseMode)

	restHandler := gin.Default()
	restHandler.Use(resources.NewHTTPMetrics(name).Middleware())

	restHandler.POST("/events", handlers.PostEvents)
	restHandler.GET("/events", handlers.GetEvents)
	restHandler.GET("/events/:id", handlers.GetEvent)
	restHandler.DELETE("/events/:id", handlers.DeleteEvent)
	restHandler.GET("/users/:id/events", handlers.GetUserEvents)
	restHandler.POST("/events/:id/attendees", handlers.PostAttendees)
	restHandler.DELETE("/events/:id/attendees/:userId", handlers.DeleteAttendee)
	restHandler.GET("/events/:id/attendees/:userId/role", handlers.GetRole)
	restHandler.POST("/events/:id/reminders", handlers.PostReminders)
	restHandler.GET("/events/:id/reminders", handlers.GetReminders)
	restHandler.POST("/events/:id/reminders/schedule", handlers.PostScheduleReminders)

	debugHandler := http.NewServeMux()
	debugHandler.HandleFunc("/debug/pprof/", pprof.Index)
	debugHandler.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	debugHandler.HandleFunc("/debug/pprof/profile", pprof.Profile)
	debugHandler.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	debugHandler.HandleFunc("/debug/pprof/trace", pprof.Trace)

	// 6. Daemons/servers lifecycle

	app := lifecycle.NewApp(
		lifecycle.WithName(name),
		lifecycle.WithVersion(version),
		lifecycle.WithSignal(syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT),
	)

	app.Attach(servers.BuildBaseServer(pool))

	app.Attach(servers.BuildHttpServer(&http.Server{
		Addr:              viper.GetString("SERVER_HOST") + ":" + viper.GetString("SERVER_PORT"),
		Handler:           restHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}))

	app.Attach("debug-server", servers.NewHttpServer(&http.Server{
		Addr:              "localhost:6060",
		Handler:           debugHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}))

	// Attendance polling is a presentation concern: a timer that
	// re-reads the roster so concurrent RSVP changes show up.
	pollSchedule := fmt.Sprintf("@every %s", viper.GetString("POLL_INTERVAL"))

	pollName, pollServer, err := servers.BuildCronServer("attendance-poller", pollSchedule, func() {
		err := watcher.Refresh(ctx)
		if err != nil {
			log.Ctx(ctx).Error().Err(err).Str("component", "attendance-poller").Msg("roster refresh failed")
		}
	})
	if err != nil {
		shutdownLogger.Fatal().Err(err).Msg("unable to build attendance poller")
	}

	app.Attach(pollName, pollServer)

	startupLogger.Info().Msg("application running")

	err = app.Run()
	if err != nil {
		shutdownLogger.Error().Err(err).Msg("runtime error")
	}
}
