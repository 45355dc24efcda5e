package actor

import (
	"fmt"
	"time"

	"github.com/cybergolem/bessbid/internal/core/domain"
	"github.com/cybergolem/bessbid/internal/core/port"
	"github.com/cybergolem/bessbid/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/reugn/go-quartz/logger"
	"go.uber.org/zap"
)

// BatteryActor serializes access to the battery bus. Register I/O runs in
// bounded background tasks; requests arriving mid-transaction are stashed.
type BatteryActor struct {
	behavior actor.Behavior
	stash    *actorutil.Stash
	bus      port.BatteryBus
	logger   *zap.Logger
}

type backgroundTaskResult struct {
	message any
	replyTo *actor.PID
}

func NewBatteryActor(bus port.BatteryBus, log *zap.Logger) *BatteryActor {
	act := &BatteryActor{
		bus:      bus,
		behavior: actor.NewBehavior(),
		stash:    &actorutil.Stash{},
		logger:   actorutil.ActorLogger(domain.ACTOR_ID_BATTERY, log),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *BatteryActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *BatteryActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("battery@starting started")
		if err := state.bus.Open(); err != nil {
			panic(err)
		}
		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	case *actor.Restarting:
		state.bus.Close()
	default:
		state.logger.Debug("battery@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *BatteryActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("battery@default: ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_BATTERY,
			Healthy: true,
			State:   "idle",
		})
	case domain.GetBatteryStateRequest:
		state.logger.Debug("battery@default: GetBatteryStateRequest")
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)
		actorutil.MapBackgroundTask(actorutil.NewBackgroundTask(ctx, state.getBatteryState),
			mapTaskResult[domain.GetBatteryStateResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.GetBatteryStateResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				},
				replyTo: sender,
			}
		}).WithTimeout(2 * time.Second).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingBus)
	case domain.GetDRStatusRequest:
		state.logger.Debug("battery@default: GetDRStatusRequest")
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)
		actorutil.MapBackgroundTask(actorutil.NewBackgroundTask(ctx, state.getDRStatus),
			mapTaskResult[domain.GetDRStatusResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.GetDRStatusResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				},
				replyTo: sender,
			}
		}).WithTimeout(2 * time.Second).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingBus)
	case domain.SetDREnableRequest:
		state.logger.Debug("battery@default: SetDREnableRequest")
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)
		enable := msg.Enable
		actorutil.MapBackgroundTask(actorutil.NewBackgroundTaskNoError(ctx, func() *domain.SetDREnableResponse {
			a := state.setDREnable(enable)
			return &a
		}), mapTaskResult[domain.SetDREnableResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.SetDREnableResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				},
				replyTo: sender,
			}
		}).WithTimeout(2 * time.Second).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingBus)
	case domain.WriteDischargeRateRequest:
		state.logger.Debug("battery@default: WriteDischargeRateRequest")
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)
		capacity := msg.CapacityKWh
		actorutil.MapBackgroundTask(actorutil.NewBackgroundTaskNoError(ctx, func() *domain.WriteDischargeRateResponse {
			a := state.writeDischargeRate(capacity)
			return &a
		}), mapTaskResult[domain.WriteDischargeRateResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.WriteDischargeRateResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				},
				replyTo: sender,
			}
		}).WithTimeout(2 * time.Second).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingBus)
	case *actor.Stopping:
		state.bus.Close()
	default:
		state.logger.Debug("battery@default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *BatteryActor) WaitingBus(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case backgroundTaskResult:
		state.logger.Debug("battery@waitingBus backgroundTaskResult", zap.String("type", fmt.Sprintf("%T", msg.message)))
		ctx.Send(msg.replyTo, msg.message)
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case *actor.Stopping:
		state.bus.Close()
	default:
		state.logger.Debug("battery@waitingBus stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (a *BatteryActor) getBatteryState() (*domain.GetBatteryStateResponse, error) {
	soc, err := a.bus.ReadSOC()
	if err != nil {
		logger.Error(err)
		return nil, err
	}
	temp, err := a.bus.ReadTemperature()
	if err != nil {
		// a failed temperature read does not invalidate the sample
		logger.Error(err)
		temp = 25.0
	}
	return &domain.GetBatteryStateResponse{
		Reading: domain.BatteryReading{
			SOC:          soc,
			TemperatureC: temp,
		},
	}, nil
}

func (a *BatteryActor) getDRStatus() (*domain.GetDRStatusResponse, error) {
	active, err := a.bus.ReadDRStatus()
	if err != nil {
		logger.Error(err)
		return nil, err
	}
	return &domain.GetDRStatusResponse{
		Active: active,
	}, nil
}

func (a *BatteryActor) setDREnable(enable bool) domain.SetDREnableResponse {
	if err := a.bus.WriteDREnable(enable); err != nil {
		logger.Error(err)
		return domain.SetDREnableResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{
				ResponseError: err,
			},
		}
	}
	return domain.SetDREnableResponse{}
}

func (a *BatteryActor) writeDischargeRate(capacityKWh float64) domain.WriteDischargeRateResponse {
	if err := a.bus.WriteDischargeRate(capacityKWh); err != nil {
		logger.Error(err)
		return domain.WriteDischargeRateResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{
				ResponseError: err,
			},
		}
	}
	return domain.WriteDischargeRateResponse{}
}

func mapTaskResult[T any](sender *actor.PID) func(t *T) *backgroundTaskResult {
	return func(t *T) *backgroundTaskResult {
		return &backgroundTaskResult{
			message: *t,
			replyTo: sender,
		}
	}
}
