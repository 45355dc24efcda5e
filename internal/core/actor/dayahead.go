package actor

import (
	"context"
	"fmt"
	"time"

	"github.com/cybergolem/bessbid/internal/config"
	"github.com/cybergolem/bessbid/internal/core/domain"
	"github.com/cybergolem/bessbid/internal/core/events"
	"github.com/cybergolem/bessbid/internal/core/strategy"
	. "github.com/cybergolem/bessbid/internal/util/actorutil"
	"github.com/cybergolem/bessbid/pkg/ephemeris"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/asynkron/protoactor-go/scheduler"
	"github.com/reugn/go-quartz/job"
	"github.com/reugn/go-quartz/quartz"
	"go.uber.org/zap"
)

// DayAheadActor runs the capacity bidding program: once per day, in the
// configured action-window hour, it refreshes the forecast, derives the peak
// mask, allocates the energy budget across the next day's hours and submits
// every non-zero bid. A done-today latch (not an exact minute match) keeps
// scheduler jitter from double-firing or skipping a day.
type DayAheadActor struct {
	behavior  actor.Behavior
	scheduler *scheduler.TimerScheduler
	cron      quartz.Scheduler

	strategy    *strategy.Strategy
	marketActor *actor.PID
	config      *config.Config
	eventStream *eventstream.EventStream
	sunlight    *ephemeris.Table

	doneDay string

	logger *zap.Logger
}

type dayAheadTick struct {
}

func NewDayAheadActor(cfg *config.Config, strat *strategy.Strategy, marketActor *actor.PID, es *eventstream.EventStream, sunlight *ephemeris.Table, logger *zap.Logger) *DayAheadActor {
	act := &DayAheadActor{
		config:      cfg,
		strategy:    strat,
		marketActor: marketActor,
		behavior:    actor.NewBehavior(),
		eventStream: es,
		sunlight:    sunlight,
		logger:      ActorLogger(domain.ACTOR_ID_DAY_AHEAD, logger),
	}
	act.behavior.Become(act.DefaultReceive)
	return act
}

func (state *DayAheadActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *DayAheadActor) checkInterval() time.Duration {
	secs := state.config.Tasks.DayAheadCheckSeconds
	if secs == 0 {
		secs = 60
	}
	return time.Duration(secs) * time.Second
}

func (state *DayAheadActor) actionHour() int {
	return state.config.Tasks.DayAheadHour
}

func (state *DayAheadActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("day_ahead@default started")
		state.scheduler = scheduler.NewTimerScheduler(ctx)
		state.scheduler.RequestOnce(state.checkInterval(), ctx.Self(), dayAheadTick{})
		state.startCron(ctx)
	case *actor.Stopping:
		if state.cron != nil {
			state.cron.Stop()
		}
	case domain.ActorHealthRequest:
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_DAY_AHEAD,
			Healthy: true,
			State:   "idle",
		})
	case dayAheadTick:
		state.scheduler.RequestOnce(state.checkInterval(), ctx.Self(), dayAheadTick{})
		state.maybeRun(ctx, time.Now())
	case domain.RefreshForecastResponse:
		state.handleForecast(ctx, msg)
	case domain.SubmitDayAheadBidsResponse:
		if msg.HasResponseError() {
			state.logger.Error("day_ahead@default bid submission failed", zap.Error(msg.GetResponseError()))
			return
		}
		state.logger.Info("day_ahead@default bids submitted", zap.Int("count", msg.Submitted))
	default:
		state.logger.Debug("day_ahead@default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

// startCron registers a quartz trigger for the exact action-window minute.
// The 60 s tick is the fallback; the latch makes both paths idempotent.
func (state *DayAheadActor) startCron(ctx actor.Context) {
	self := ctx.Self()
	system := ctx.ActorSystem()

	expr := fmt.Sprintf("0 0 %d * * *", state.actionHour())
	trigger, err := quartz.NewCronTrigger(expr)
	if err != nil {
		state.logger.Error("day_ahead@default invalid cron trigger", zap.Error(err))
		return
	}
	state.cron = quartz.NewStdScheduler()
	state.cron.Start(context.Background())
	fire := job.NewFunctionJob(func(context.Context) (int, error) {
		system.Root.Send(self, dayAheadTick{})
		return 0, nil
	})
	err = state.cron.ScheduleJob(quartz.NewJobDetail(fire, quartz.NewJobKey("day_ahead_window")), trigger)
	if err != nil {
		state.logger.Error("day_ahead@default cron schedule failed", zap.Error(err))
	}
}

func (state *DayAheadActor) maybeRun(ctx actor.Context, now time.Time) {
	if now.Hour() != state.actionHour() {
		return
	}
	day := now.Format(time.DateOnly)
	if state.doneDay == day {
		return
	}
	state.doneDay = day

	state.logger.Info("day_ahead@default action window open", zap.String("day", day))
	if state.sunlight != nil {
		sunrise, sunset := state.sunlight.SunlightHours(now)
		state.logger.Info("day_ahead@default solar window",
			zap.Float64("sunrise", sunrise), zap.Float64("sunset", sunset))
	}

	PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.marketActor, domain.RefreshForecastRequest{}, 10*time.Second), func(err error) any {
		return domain.RefreshForecastResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{
				ResponseError: err,
			},
		}
	})
}

func (state *DayAheadActor) handleForecast(ctx actor.Context, msg domain.RefreshForecastResponse) {
	snap := msg.Snapshot
	if msg.HasResponseError() || snap == nil {
		// fall back to the last installed snapshot
		state.logger.Warn("day_ahead@default forecast refresh failed, using previous snapshot",
			zap.Error(msg.GetResponseError()))
		snap = state.strategy.Forecast()
		if snap == nil {
			state.logger.Error("day_ahead@default no forecast available, skipping today's allocation")
			return
		}
	} else {
		state.strategy.InstallForecast(snap)
		state.eventStream.Publish(events.CategoryEvent(domain.EVENT_FORECAST_UPDATE, "day-ahead refresh"))
	}

	mask := strategy.DerivePeakMask(snap.Prices)
	bids := state.strategy.DayAheadAllocation(snap.Prices, mask)

	ctx.Request(state.marketActor, domain.SubmitDayAheadBidsRequest{Bids: bids})
}
