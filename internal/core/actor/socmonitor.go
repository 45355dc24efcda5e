package actor

import (
	"fmt"
	"math"
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

const socFilterWindow = 5

// socFilter is a moving average over the last few raw SOC samples. It is
// seeded at 0.5 so early readings converge instead of jumping.
type socFilter struct {
	window [socFilterWindow]float64
	next   int
}

func newSOCFilter() *socFilter {
	f := &socFilter{}
	for i := range f.window {
		f.window[i] = 0.5
	}
	return f
}

func (f *socFilter) Push(raw float64) float64 {
	f.window[f.next] = raw
	f.next = (f.next + 1) % socFilterWindow
	sum := 0.0
	for _, v := range f.window {
		sum += v
	}
	return sum / socFilterWindow
}

// SOCMonitorActor is the 1 s telemetry loop: it filters raw SOC, records
// charge/discharge swings in the cycle ledger, enforces the SOC safety latch
// and keeps the anti-flutter gate.
type SOCMonitorActor struct {
	behavior  actor.Behavior
	scheduler *scheduler.TimerScheduler

	strategy     *strategy.Strategy
	batteryActor *actor.PID
	config       *config.Config
	eventStream  *eventstream.EventStream

	filter      *socFilter
	previousSOC float64
	latched     bool
	gateWasShut bool

	logger *zap.Logger
}

type socMonitorTick struct {
}

func NewSOCMonitorActor(cfg *config.Config, strat *strategy.Strategy, batteryActor *actor.PID, es *eventstream.EventStream, logger *zap.Logger) *SOCMonitorActor {
	act := &SOCMonitorActor{
		config:       cfg,
		strategy:     strat,
		batteryActor: batteryActor,
		behavior:     actor.NewBehavior(),
		eventStream:  es,
		filter:       newSOCFilter(),
		previousSOC:  0.5,
		logger:       ActorLogger(domain.ACTOR_ID_SOC_MONITOR, logger),
	}
	act.behavior.Become(act.DefaultReceive)
	return act
}

func (state *SOCMonitorActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *SOCMonitorActor) pollInterval() time.Duration {
	millis := state.config.Tasks.SOCPollIntervalMillis
	if millis == 0 {
		millis = 1000
	}
	return time.Duration(millis) * time.Millisecond
}

func (state *SOCMonitorActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("soc_monitor@default started")
		state.scheduler = scheduler.NewTimerScheduler(ctx)
		state.scheduler.RequestOnce(state.pollInterval(), ctx.Self(), socMonitorTick{})
	case domain.ActorHealthRequest:
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_SOC_MONITOR,
			Healthy: true,
			State:   "idle",
		})
	case socMonitorTick:
		state.logger.Debug("soc_monitor@default tick")
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.batteryActor, domain.GetBatteryStateRequest{}, time.Second), func(err error) any {
			return domain.GetBatteryStateResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{
					ResponseError: err,
				},
			}
		})
	case domain.GetBatteryStateResponse:
		state.handleReading(ctx, msg)
		state.scheduler.RequestOnce(state.pollInterval(), ctx.Self(), socMonitorTick{})
	case domain.SetDREnableResponse:
		if msg.HasResponseError() {
			// latch write failed: stay latched, next tick retries
			state.logger.Error("soc_monitor@default SetDREnableResponse error", zap.Error(msg.GetResponseError()))
		}
	default:
		state.logger.Debug("soc_monitor@default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *SOCMonitorActor) handleReading(ctx actor.Context, msg domain.GetBatteryStateResponse) {
	if msg.HasResponseError() {
		// transient bus failure: skip the tick, state unchanged
		state.logger.Warn("soc_monitor@default battery read failed", zap.Error(msg.GetResponseError()))
		return
	}
	raw := msg.Reading.SOC
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		state.logger.Warn("soc_monitor@default non-finite SOC reading dropped")
		return
	}

	filtered := state.filter.Push(raw)
	state.strategy.SetSOC(filtered)

	for _, ev := range events.SOCUpdateEvents(filtered, msg.Reading.TemperatureC) {
		state.eventStream.Publish(ev)
	}

	delta := math.Abs(filtered - state.previousSOC)
	if delta > strategy.MinCycleDepth {
		state.strategy.AppendCycle(delta, (state.previousSOC+filtered)/2, msg.Reading.TemperatureC, time.Now())
		state.previousSOC = filtered
		state.eventStream.Publish(events.FullCyclesUpdateEvent(state.strategy.EquivalentFullCycles()))
	}

	// safety latch overrides everything below it
	if filtered < state.strategy.Params().MinSOC {
		if !state.latched {
			state.latched = true
			state.logger.Warn("soc_monitor@default SOC below floor, disabling DR",
				zap.Float64("soc", filtered))
			state.eventStream.Publish(events.CategoryEvent(domain.EVENT_SOC_LATCH,
				fmt.Sprintf("soc=%.3f floor=%.3f", filtered, state.strategy.Params().MinSOC)))
		}
		ctx.Request(state.batteryActor, domain.SetDREnableRequest{Enable: false})
		return
	}
	if state.latched {
		state.latched = false
		state.logger.Info("soc_monitor@default SOC recovered, re-enabling DR",
			zap.Float64("soc", filtered))
		ctx.Request(state.batteryActor, domain.SetDREnableRequest{Enable: true})
	}

	// anti-flutter gate bookkeeping: announce the gate reopening once
	now := time.Now()
	if state.strategy.DispatchPermitted(now) {
		if state.gateWasShut {
			state.gateWasShut = false
			state.eventStream.Publish(events.CategoryEvent(domain.EVENT_ANTIFLUTTER_RESET, "gate open"))
		}
	} else {
		state.gateWasShut = true
	}
}
