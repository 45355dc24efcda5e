package actor

import (
	"fmt"
	"time"

	adactor "github.com/cybergolem/bessbid/internal/adapter/actor"
	"github.com/cybergolem/bessbid/internal/config"
	"github.com/cybergolem/bessbid/internal/core/domain"
	"github.com/cybergolem/bessbid/internal/core/events"
	"github.com/cybergolem/bessbid/internal/core/strategy"
	. "github.com/cybergolem/bessbid/internal/util/actorutil"
	"github.com/cybergolem/bessbid/pkg/ephemeris"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"go.uber.org/zap"
)

type BatteryActorProvider func() *adactor.BatteryActor

type MarketActorProvider func() *adactor.MarketActor

type MQTTActorProvider func() *adactor.MQTTActor

// MasterActor owns the whole controller tree: the bus-facing adapter actors
// and the four periodic tasks. It bridges the telemetry event stream to MQTT
// and answers health and status requests.
type MasterActor struct {
	config   config.Config
	behavior actor.Behavior
	stash    *Stash

	strategy    *strategy.Strategy
	sunlight    *ephemeris.Table
	eventStream *eventstream.EventStream

	batteryActorProvider BatteryActorProvider
	marketActorProvider  MarketActorProvider
	mqttActorProvider    MQTTActorProvider

	batteryActor *actor.PID
	marketActor  *actor.PID
	mqttActor    *actor.PID
	taskActors   []*actor.PID

	currentHealthCheck healthCheckResult
	dispatchState      string

	logger *zap.Logger
}

type healthCheckResult struct {
	healthy        bool
	checksReceived int
	checksExpected int
	respondTo      *actor.PID
}

func (h *healthCheckResult) reset() {
	h.healthy = true
	h.checksReceived = 0
	h.checksExpected = 0
	h.respondTo = nil
}

func NewMasterActor(cfg config.Config, strat *strategy.Strategy, sunlight *ephemeris.Table,
	batteryActorProvider BatteryActorProvider, marketActorProvider MarketActorProvider,
	mqttActorProvider MQTTActorProvider, logger *zap.Logger) *MasterActor {
	act := &MasterActor{
		config:               cfg,
		strategy:             strat,
		sunlight:             sunlight,
		behavior:             actor.NewBehavior(),
		stash:                &Stash{},
		logger:               ActorLogger(domain.ACTOR_ID_MASTER, logger),
		eventStream:          &eventstream.EventStream{},
		batteryActorProvider: batteryActorProvider,
		marketActorProvider:  marketActorProvider,
		mqttActorProvider:    mqttActorProvider,
		dispatchState:        "idle",
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *MasterActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *MasterActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("master@starting started")

		state.currentHealthCheck.reset()

		batteryPID, err := ctx.SpawnNamed(actor.PropsFromProducer(func() actor.Actor {
			return state.batteryActorProvider()
		}), domain.ACTOR_ID_BATTERY)
		if err != nil {
			panic(err)
		}
		state.batteryActor = batteryPID

		marketPID, err := ctx.SpawnNamed(actor.PropsFromProducer(func() actor.Actor {
			return state.marketActorProvider()
		}), domain.ACTOR_ID_MARKET)
		if err != nil {
			panic(err)
		}
		state.marketActor = marketPID

		if state.mqttActorProvider != nil {
			mqttPID, err := ctx.SpawnNamed(actor.PropsFromProducer(func() actor.Actor {
				return state.mqttActorProvider()
			}), domain.ACTOR_ID_MQTT)
			if err != nil {
				panic(err)
			}
			state.mqttActor = mqttPID
		}

		// bridge telemetry events through the master mailbox before the
		// tasks start publishing
		self := ctx.Self()
		system := ctx.ActorSystem()
		state.eventStream.Subscribe(func(evt interface{}) {
			system.Root.Send(self, evt)
		})

		state.spawnTasks(ctx)

		if state.sunlight != nil {
			sunrise, sunset := state.sunlight.SunlightHours(time.Now())
			state.logger.Sugar().Infof("solar window today: %.2fh - %.2fh", sunrise, sunset)
		}

		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("master@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterActor) spawnTasks(ctx actor.Context) {
	type task struct {
		id       string
		producer func() actor.Actor
	}
	tasks := []task{
		{domain.ACTOR_ID_SOC_MONITOR, func() actor.Actor {
			return NewSOCMonitorActor(&state.config, state.strategy, state.batteryActor, state.eventStream, state.logger)
		}},
		{domain.ACTOR_ID_FAST_DR, func() actor.Actor {
			return NewFastDispatchActor(&state.config, state.strategy, state.batteryActor, state.marketActor, state.eventStream, state.logger)
		}},
		{domain.ACTOR_ID_DAY_AHEAD, func() actor.Actor {
			return NewDayAheadActor(&state.config, state.strategy, state.marketActor, state.eventStream, state.sunlight, state.logger)
		}},
		{domain.ACTOR_ID_FORECAST, func() actor.Actor {
			return NewForecastActor(&state.config, state.strategy, state.marketActor, state.eventStream, state.logger)
		}},
	}
	for _, tk := range tasks {
		pid, err := ctx.SpawnNamed(actor.PropsFromProducer(tk.producer), tk.id)
		if err != nil {
			panic(err)
		}
		state.taskActors = append(state.taskActors, pid)
	}
}

func (state *MasterActor) children() []*actor.PID {
	children := []*actor.PID{state.batteryActor, state.marketActor}
	if state.mqttActor != nil {
		children = append(children, state.mqttActor)
	}
	return append(children, state.taskActors...)
}

func (state *MasterActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("master@default ActorHealthRequest")
		state.startHealthCheck(ctx)
	case domain.ActorHealthResponse:
		state.handleHealthResponse(ctx, msg)
	case domain.StatusRequest:
		state.logger.Debug("master@default StatusRequest")
		ctx.Respond(state.statusResponse())
	case domain.SensorUpdateEvent:
		if text, ok := msg.(domain.TextSensorUpdateEvent); ok && text.Id == events.SENSOR_ID_DISPATCH_STATE {
			state.dispatchState = text.Value
		}
		if state.mqttActor != nil {
			ctx.Send(state.mqttActor, msg)
		}
	default:
		state.logger.Debug("master@default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *MasterActor) startHealthCheck(ctx actor.Context) {
	children := state.children()

	state.currentHealthCheck.reset()
	state.currentHealthCheck.respondTo = ctx.Sender()
	state.currentHealthCheck.checksExpected = len(children)

	for _, child := range children {
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(child, domain.ActorHealthRequest{}, 2*time.Second), func(err error) any {
			return domain.ActorHealthResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{
					ResponseError: err,
				},
				Healthy: false,
			}
		})
	}
}

func (state *MasterActor) handleHealthResponse(ctx actor.Context, msg domain.ActorHealthResponse) {
	hc := &state.currentHealthCheck
	if hc.respondTo == nil {
		return
	}
	hc.checksReceived++
	if msg.HasResponseError() || !msg.Healthy {
		hc.healthy = false
	}
	if hc.checksReceived >= hc.checksExpected {
		ctx.Send(hc.respondTo, domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_MASTER,
			Healthy: hc.healthy,
			State:   state.dispatchState,
		})
		hc.reset()
	}
}

func (state *MasterActor) statusResponse() domain.StatusResponse {
	resp := domain.StatusResponse{
		SOC:                  state.strategy.SOC(),
		EquivalentFullCycles: state.strategy.EquivalentFullCycles(),
		DispatchState:        state.dispatchState,
	}
	if last := state.strategy.LastDispatch(); !last.IsZero() {
		resp.LastDispatchUnix = last.Unix()
	}
	if snap := state.strategy.Forecast(); snap != nil {
		resp.ForecastAgeSeconds = time.Since(snap.RetrievedAt).Seconds()
	}
	if state.sunlight != nil {
		resp.SunriseHour, resp.SunsetHour = state.sunlight.SunlightHours(time.Now())
	}
	return resp
}
