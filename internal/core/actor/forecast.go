package actor

import (
	"fmt"
	"time"

	"github.com/cybergolem/bessbid/internal/config"
	"github.com/cybergolem/bessbid/internal/core/domain"
	"github.com/cybergolem/bessbid/internal/core/events"
	"github.com/cybergolem/bessbid/internal/core/strategy"
	. "github.com/cybergolem/bessbid/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/asynkron/protoactor-go/scheduler"
	"go.uber.org/zap"
)

// ForecastActor keeps the hourly forecast snapshot fresh. Failed refreshes
// keep the previous snapshot in force; a snapshot older than the refresh
// interval raises a staleness warning.
type ForecastActor struct {
	behavior  actor.Behavior
	scheduler *scheduler.TimerScheduler

	strategy    *strategy.Strategy
	marketActor *actor.PID
	config      *config.Config
	eventStream *eventstream.EventStream

	lastRefresh time.Time
	warnedStale bool

	logger *zap.Logger
}

type forecastTick struct {
}

func NewForecastActor(cfg *config.Config, strat *strategy.Strategy, marketActor *actor.PID, es *eventstream.EventStream, logger *zap.Logger) *ForecastActor {
	act := &ForecastActor{
		config:      cfg,
		strategy:    strat,
		marketActor: marketActor,
		behavior:    actor.NewBehavior(),
		eventStream: es,
		logger:      ActorLogger(domain.ACTOR_ID_FORECAST, logger),
	}
	act.behavior.Become(act.DefaultReceive)
	return act
}

func (state *ForecastActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *ForecastActor) checkInterval() time.Duration {
	secs := state.config.Tasks.ForecastCheckSeconds
	if secs == 0 {
		secs = 60
	}
	return time.Duration(secs) * time.Second
}

func (state *ForecastActor) maxAge() time.Duration {
	secs := state.config.Tasks.ForecastMaxAgeSeconds
	if secs == 0 {
		secs = 3600
	}
	return time.Duration(secs) * time.Second
}

func (state *ForecastActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("forecast@default started")
		state.scheduler = scheduler.NewTimerScheduler(ctx)
		// first refresh right away, then on the periodic check
		state.refresh(ctx)
		state.scheduler.RequestOnce(state.checkInterval(), ctx.Self(), forecastTick{})
	case domain.ActorHealthRequest:
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_FORECAST,
			Healthy: true,
			State:   "idle",
		})
	case forecastTick:
		state.scheduler.RequestOnce(state.checkInterval(), ctx.Self(), forecastTick{})
		if time.Since(state.lastRefresh) >= state.maxAge() {
			state.refresh(ctx)
		}
	case domain.RefreshForecastResponse:
		if msg.HasResponseError() || msg.Snapshot == nil {
			state.logger.Warn("forecast@default refresh failed, keeping previous snapshot",
				zap.Error(msg.GetResponseError()))
			state.warnIfStale()
			return
		}
		state.lastRefresh = time.Now()
		state.warnedStale = false
		state.strategy.InstallForecast(msg.Snapshot)
		state.eventStream.Publish(events.CategoryEvent(domain.EVENT_FORECAST_UPDATE,
			fmt.Sprintf("competitors=%d", msg.Snapshot.Competitors)))
		state.logger.Info("forecast@default snapshot installed",
			zap.Int("competitors", msg.Snapshot.Competitors))
	default:
		state.logger.Debug("forecast@default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *ForecastActor) refresh(ctx actor.Context) {
	PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.marketActor, domain.RefreshForecastRequest{}, 10*time.Second), func(err error) any {
		return domain.RefreshForecastResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{
				ResponseError: err,
			},
		}
	})
}

func (state *ForecastActor) warnIfStale() {
	snap := state.strategy.Forecast()
	if snap == nil {
		return
	}
	if time.Since(snap.RetrievedAt) > state.maxAge() && !state.warnedStale {
		state.warnedStale = true
		state.logger.Warn("forecast@default snapshot is stale",
			zap.Time("retrieved_at", snap.RetrievedAt))
	}
}
