package servers

import (
	"context"
	"fmt"

	"github.com/qmdx00/lifecycle"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// cronServer runs a single recurring job on a fixed schedule, e.g. the
// attendance poll that keeps the roster view fresh. The job owns its
// own error handling; a failing run is logged by the job, not retried
// out of schedule.
type cronServer struct {
	ctx          context.Context //nolint:containedctx
	name         string
	internal     *cron.Cron
	closeChannel chan struct{}
}

func BuildCronServer(name string, schedule string, job func()) (string, Server, error) {
	server, err := NewCronServer(name, schedule, job)
	if err != nil {
		return name, nil, err
	}

	return name, server, nil
}

func NewCronServer(name string, schedule string, job func()) (lifecycle.Server, error) {
	internal := cron.New()

	_, err := internal.AddFunc(schedule, job)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}

	return &cronServer{
		name:         name,
		internal:     internal,
		closeChannel: make(chan struct{}),
	}, nil
}

func (server *cronServer) Run(ctx context.Context) error {
	log.Ctx(ctx).Info().Str("stage", "startup").Str("component", server.name).Msg("starting up")

	server.ctx = ctx
	server.internal.Start()
	<-server.closeChannel

	return nil
}

func (server *cronServer) Stop(ctx context.Context) error {
	log.Ctx(ctx).Info().Str("stage", "shut down").Str("component", server.name).Msg("stopping")
	defer log.Ctx(ctx).Info().Str("stage", "shut down").Str("component", server.name).Msg("stopped")

	stopCtx := server.internal.Stop()

	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
		close(server.closeChannel)
		return ErrServerFailedToStop(server.name, ctx.Err())
	}

	close(server.closeChannel)

	return nil
}
