package actor

import (
	"context"
	"fmt"
	"time"

	"github.com/cybergolem/bessbid/internal/core/domain"
	"github.com/cybergolem/bessbid/internal/core/port"
	"github.com/cybergolem/bessbid/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/reugn/go-quartz/logger"
	"go.uber.org/zap"
)

const marketIOTimeout = 5 * time.Second

// MarketActor owns the utility-facing HTTP surfaces: forecast refresh and
// bid submission. Calls run in bounded background tasks so a slow endpoint
// never blocks the mailbox for longer than the deadline.
type MarketActor struct {
	behavior  actor.Behavior
	stash     *actorutil.Stash
	source    port.MarketData
	transport port.BidTransport
	logger    *zap.Logger
}

func NewMarketActor(source port.MarketData, transport port.BidTransport, log *zap.Logger) *MarketActor {
	act := &MarketActor{
		source:    source,
		transport: transport,
		behavior:  actor.NewBehavior(),
		stash:     &actorutil.Stash{},
		logger:    actorutil.ActorLogger(domain.ACTOR_ID_MARKET, log),
	}
	act.behavior.Become(act.DefaultReceive)
	return act
}

func (state *MarketActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *MarketActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("market@default: ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_MARKET,
			Healthy: true,
			State:   "idle",
		})
	case domain.RefreshForecastRequest:
		state.logger.Debug("market@default: RefreshForecastRequest")
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)
		actorutil.MapBackgroundTask(actorutil.NewBackgroundTask(ctx, state.refreshForecast),
			mapTaskResult[domain.RefreshForecastResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.RefreshForecastResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				},
				replyTo: sender,
			}
		}).WithTimeout(marketIOTimeout + time.Second).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingIO)
	case domain.SubmitFastBidRequest:
		state.logger.Debug("market@default: SubmitFastBidRequest")
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)
		bid := msg.Bid
		actorutil.MapBackgroundTask(actorutil.NewBackgroundTaskNoError(ctx, func() *domain.SubmitFastBidResponse {
			a := state.submitFastBid(bid)
			return &a
		}), mapTaskResult[domain.SubmitFastBidResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.SubmitFastBidResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				},
				replyTo: sender,
			}
		}).WithTimeout(marketIOTimeout + time.Second).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingIO)
	case domain.SubmitDayAheadBidsRequest:
		state.logger.Debug("market@default: SubmitDayAheadBidsRequest")
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)
		bids := msg.Bids
		actorutil.MapBackgroundTask(actorutil.NewBackgroundTaskNoError(ctx, func() *domain.SubmitDayAheadBidsResponse {
			a := state.submitDayAheadBids(bids)
			return &a
		}), mapTaskResult[domain.SubmitDayAheadBidsResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.SubmitDayAheadBidsResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				},
				replyTo: sender,
			}
		}).WithTimeout(30 * time.Second).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingIO)
	default:
		state.logger.Debug("market@default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *MarketActor) WaitingIO(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case backgroundTaskResult:
		state.logger.Debug("market@waitingIO backgroundTaskResult", zap.String("type", fmt.Sprintf("%T", msg.message)))
		ctx.Send(msg.replyTo, msg.message)
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("market@waitingIO stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (a *MarketActor) refreshForecast() (*domain.RefreshForecastResponse, error) {
	ctx, cancel := context.WithTimeout(context.Background(), marketIOTimeout)
	defer cancel()
	snap, err := a.source.Refresh(ctx)
	if err != nil {
		logger.Error(err)
		return nil, err
	}
	return &domain.RefreshForecastResponse{
		Snapshot: snap,
	}, nil
}

func (a *MarketActor) submitFastBid(bid domain.Bid) domain.SubmitFastBidResponse {
	ctx, cancel := context.WithTimeout(context.Background(), marketIOTimeout)
	defer cancel()
	if err := a.transport.SubmitFastBid(ctx, bid); err != nil {
		logger.Error(err)
		return domain.SubmitFastBidResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{
				ResponseError: err,
			},
		}
	}
	return domain.SubmitFastBidResponse{}
}

func (a *MarketActor) submitDayAheadBids(bids []domain.HourlyBid) domain.SubmitDayAheadBidsResponse {
	submitted := 0
	for _, bid := range bids {
		if bid.CapacityKWh <= 0 {
			continue
		}
		err := func() error {
			ctx, cancel := context.WithTimeout(context.Background(), marketIOTimeout)
			defer cancel()
			return a.transport.SubmitDayAheadBid(ctx, bid)
		}()
		if err != nil {
			// non-200s and timeouts are logged and skipped, not fatal
			logger.Error(err)
			continue
		}
		submitted++
	}
	return domain.SubmitDayAheadBidsResponse{
		Submitted: submitted,
	}
}
