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

// FastDispatchActor is the 1 s fast-DR loop. Per dispatch opportunity it
// walks idle -> armed -> dispatching -> cooldown, falling back to idle
// whenever the SOC floor is violated or the planner declines.
type FastDispatchActor struct {
	ActorWithStates
	scheduler *scheduler.TimerScheduler

	strategy     *strategy.Strategy
	batteryActor *actor.PID
	marketActor  *actor.PID
	config       *config.Config
	eventStream  *eventstream.EventStream

	pendingBid domain.Bid
	stateName  string

	logger *zap.Logger
}

type fastDispatchTick struct {
}

func NewFastDispatchActor(cfg *config.Config, strat *strategy.Strategy, batteryActor, marketActor *actor.PID, es *eventstream.EventStream, logger *zap.Logger) *FastDispatchActor {
	act := &FastDispatchActor{
		config:       cfg,
		strategy:     strat,
		batteryActor: batteryActor,
		marketActor:  marketActor,
		eventStream:  es,
		logger:       ActorLogger(domain.ACTOR_ID_FAST_DR, logger),
		ActorWithStates: ActorWithStates{
			Behavior: actor.NewBehavior(),
		},
	}
	act.Become(FDIdleState{actor: act})
	return act
}

func (state *FastDispatchActor) Receive(context actor.Context) {
	state.Behavior.Receive(context)
}

func (state *FastDispatchActor) pollInterval() time.Duration {
	millis := state.config.Tasks.DispatchPollIntervalMillis
	if millis == 0 {
		millis = 1000
	}
	return time.Duration(millis) * time.Millisecond
}

func (state *FastDispatchActor) scheduleTick(ctx actor.Context) {
	state.scheduler.RequestOnce(state.pollInterval(), ctx.Self(), fastDispatchTick{})
}

func (state *FastDispatchActor) enter(name string) {
	if state.stateName != name {
		state.stateName = name
		state.eventStream.Publish(events.DispatchStateUpdateEvent(name))
	}
}

func (state *FastDispatchActor) belowFloor() bool {
	return state.strategy.SOC() < state.strategy.Params().MinSOC
}

func (state *FastDispatchActor) respondHealth(ctx actor.Context, name string) {
	ctx.Respond(domain.ActorHealthResponse{
		Id:      domain.ACTOR_ID_FAST_DR,
		Healthy: true,
		State:   name,
	})
}

// Idle state

type FDIdleState struct {
	ActorState
	actor *FastDispatchActor
}

func (state FDIdleState) Name() string {
	return "idle"
}

func (state FDIdleState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.actor.logger.Debug("fast_dr@idle started")
		state.actor.scheduler = scheduler.NewTimerScheduler(ctx)
		state.actor.enter(state.Name())
		state.actor.scheduleTick(ctx)
	case domain.ActorHealthRequest:
		state.actor.respondHealth(ctx, state.Name())
	case fastDispatchTick:
		state.actor.scheduleTick(ctx)
		// below the floor nothing is read; the monitor owns the latch
		if state.actor.belowFloor() {
			return
		}
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.actor.batteryActor, domain.GetDRStatusRequest{}, time.Second), func(err error) any {
			return domain.GetDRStatusResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{
					ResponseError: err,
				},
			}
		})
	case domain.GetDRStatusResponse:
		if msg.HasResponseError() {
			state.actor.logger.Warn("fast_dr@idle DR status read failed", zap.Error(msg.GetResponseError()))
			return
		}
		state.actor.eventStream.Publish(events.DRActiveUpdateEvent(msg.Active))
		if !msg.Active || state.actor.belowFloor() {
			return
		}
		if !state.actor.strategy.DispatchPermitted(time.Now()) {
			state.actor.logger.Debug("fast_dr@idle gated")
			return
		}
		armed := FDArmedState{actor: state.actor}
		state.actor.Become(armed)
		state.actor.enter(armed.Name())
		armed.evaluate(ctx)
	default:
		state.actor.logger.Debug("fast_dr@idle recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

// Armed state: a DR event is active and the gate is open; ask the planner.

type FDArmedState struct {
	ActorState
	actor *FastDispatchActor
}

func (state FDArmedState) Name() string {
	return "armed"
}

func (state FDArmedState) evaluate(ctx actor.Context) {
	a := state.actor

	snap := a.strategy.Forecast()
	if snap == nil {
		a.logger.Warn("fast_dr@armed no forecast yet, declining")
		a.toIdle()
		return
	}
	hour := time.Now().Hour()
	bid := a.strategy.FastDispatchBid(snap.Prices[hour], snap.Demand[hour], 1,
		snap.Competitors, hour, snap.PricesFrom(hour))
	if bid.Declined() {
		a.logger.Info("fast_dr@armed planner declined")
		a.toIdle()
		return
	}
	a.pendingBid = bid
	dispatching := FDDispatchingState{actor: a}
	a.Become(dispatching)
	a.enter(dispatching.Name())
	PipeToSelfWithRecover(ctx, ctx.RequestFuture(a.batteryActor,
		domain.WriteDischargeRateRequest{CapacityKWh: bid.CapacityKWh}, 2*time.Second),
		func(err error) any {
			return domain.WriteDischargeRateResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{
					ResponseError: err,
				},
			}
		})
}

func (state FDArmedState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.actor.respondHealth(ctx, state.Name())
	case fastDispatchTick:
		state.actor.scheduleTick(ctx)
	default:
		state.actor.logger.Debug("fast_dr@armed recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

// Dispatching state: waiting for the discharge register write.

type FDDispatchingState struct {
	ActorState
	actor *FastDispatchActor
}

func (state FDDispatchingState) Name() string {
	return "dispatching"
}

func (state FDDispatchingState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.actor.respondHealth(ctx, state.Name())
	case fastDispatchTick:
		state.actor.scheduleTick(ctx)
		if state.actor.belowFloor() {
			state.actor.toIdle()
		}
	case domain.WriteDischargeRateResponse:
		a := state.actor
		if msg.HasResponseError() {
			a.logger.Error("fast_dr@dispatching discharge write failed", zap.Error(msg.GetResponseError()))
			a.toIdle()
			return
		}
		a.strategy.MarkDispatch(time.Now())
		a.logger.Info("fast_dr@dispatching dispatched",
			zap.Float64("capacity_kwh", a.pendingBid.CapacityKWh),
			zap.Float64("price", a.pendingBid.Price))
		a.eventStream.Publish(events.DispatchEvent(a.pendingBid))
		for _, ev := range events.BidUpdateEvents(a.pendingBid) {
			a.eventStream.Publish(ev)
		}
		ctx.Request(a.marketActor, domain.SubmitFastBidRequest{Bid: a.pendingBid})
		cooldown := FDCooldownState{actor: a}
		a.Become(cooldown)
		a.enter(cooldown.Name())
	default:
		state.actor.logger.Debug("fast_dr@dispatching recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

// Cooldown state: holds until the anti-flutter gate reopens.

type FDCooldownState struct {
	ActorState
	actor *FastDispatchActor
}

func (state FDCooldownState) Name() string {
	return "cooldown"
}

func (state FDCooldownState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.actor.respondHealth(ctx, state.Name())
	case fastDispatchTick:
		state.actor.scheduleTick(ctx)
		if state.actor.belowFloor() || state.actor.strategy.DispatchPermitted(time.Now()) {
			state.actor.toIdle()
		}
	case domain.SubmitFastBidResponse:
		if msg.HasResponseError() {
			// submission failure is non-fatal; the dispatch already happened
			state.actor.logger.Error("fast_dr@cooldown bid submission failed", zap.Error(msg.GetResponseError()))
		}
	default:
		state.actor.logger.Debug("fast_dr@cooldown recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (a *FastDispatchActor) toIdle() {
	idle := FDIdleState{actor: a}
	a.Become(idle)
	a.enter(idle.Name())
}
