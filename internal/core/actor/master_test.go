package actor

import (
	"testing"
	"time"

	adactor "github.com/cybergolem/bessbid/internal/adapter/actor"
	"github.com/cybergolem/bessbid/internal/adapter/market"
	"github.com/cybergolem/bessbid/internal/config"
	"github.com/cybergolem/bessbid/internal/core/domain"
	"github.com/cybergolem/bessbid/internal/core/strategy"
	"github.com/cybergolem/bessbid/pkg/drbus"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig() config.Config {
	return config.Config{
		Battery: config.BatteryConfig{
			CapacityKWh:         6.5,
			RoundTripEfficiency: 0.95,
			MinSOC:              0.10,
			MaxSOC:              0.90,
		},
		Tasks: config.TasksConfig{
			SOCPollIntervalMillis:      50,
			DispatchPollIntervalMillis: 50,
			// keep the daily window out of the way unless a test wants it
			DayAheadCheckSeconds:  3600,
			DayAheadHour:          25,
			ForecastCheckSeconds:  3600,
			ForecastMaxAgeSeconds: 3600,
		},
	}
}

func testSnapshot(price, demand float64, competitors int) *domain.ForecastSnapshot {
	snap := &domain.ForecastSnapshot{
		Competitors: competitors,
		RetrievedAt: time.Now(),
	}
	for i := range snap.Prices {
		snap.Prices[i] = price
		snap.Demand[i] = demand
	}
	return snap
}

type rig struct {
	system    *actor.ActorSystem
	root      *actor.RootContext
	master    *actor.PID
	strategy  *strategy.Strategy
	bus       *drbus.TestBMSClient
	source    *market.TestMarketData
	transport *market.TestBidTransport
}

func startRig(t *testing.T, cfg config.Config, bus *drbus.TestBMSClient, source *market.TestMarketData) *rig {
	t.Helper()

	logCfg := zap.NewDevelopmentConfig()
	logCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	logger := zap.Must(logCfg.Build())

	strat, err := strategy.New(strategy.DefaultParams(cfg.Battery.CapacityKWh, cfg.Battery.RoundTripEfficiency))
	require.NoError(t, err)

	transport := &market.TestBidTransport{}

	as := actor.NewActorSystem()
	props := actor.PropsFromProducer(func() actor.Actor {
		return NewMasterActor(cfg, strat, nil, func() *adactor.BatteryActor {
			return adactor.NewBatteryActor(bus, logger)
		}, func() *adactor.MarketActor {
			return adactor.NewMarketActor(source, transport, logger)
		}, nil, logger)
	})
	pid, err := as.Root.SpawnNamed(props, "master")
	require.NoError(t, err)

	r := &rig{
		system:    as,
		root:      as.Root,
		master:    pid,
		strategy:  strat,
		bus:       bus,
		source:    source,
		transport: transport,
	}
	t.Cleanup(func() {
		as.Root.Stop(pid)
		as.Shutdown()
	})
	return r
}

func TestMasterHealthCheck(t *testing.T) {
	bus := drbus.CreateTestBMSClient()
	source := &market.TestMarketData{Snapshot: testSnapshot(0.20, 20000, 10)}

	r := startRig(t, testConfig(), bus, source)

	time.Sleep(1 * time.Second)

	res, err := r.root.RequestFuture(r.master, domain.ActorHealthRequest{}, 10*time.Second).Result()
	require.NoError(t, err)

	healthResp, ok := res.(domain.ActorHealthResponse)
	require.True(t, ok)
	assert.True(t, healthResp.Healthy, "healthy is true")
}

func TestProfitableDispatchOncePerHoldoff(t *testing.T) {
	bus := drbus.CreateTestBMSClient()
	bus.Set(0.8, 25, true)
	// high prices so the planner clears the marginal cost floor
	source := &market.TestMarketData{Snapshot: testSnapshot(2.00, 20000, 10)}

	r := startRig(t, testConfig(), bus, source)

	time.Sleep(2 * time.Second)

	// exactly one dispatch: the gate suppresses every later opportunity
	assert.Equal(t, 1, bus.DispatchCount())

	bids := r.transport.SubmittedFastBids()
	require.Len(t, bids, 1)
	assert.Greater(t, bids[0].CapacityKWh, 0.0)
	// price is the Nash price for p_m=2.00, D/maxD=0.4, N=10
	assert.InDelta(t, 2.00*1.04, bids[0].Price, 1e-9)
	// the register write carries the bid capacity
	assert.InDelta(t, bids[0].CapacityKWh, bus.DischargeRateWrites[0], 1e-9)

	// the filter ramp from the 0.5 seed to 0.8 is real SOC motion
	assert.Greater(t, r.strategy.EquivalentFullCycles(), 0.0)
	assert.False(t, r.strategy.DispatchPermitted(time.Now()))
}

func TestSafetyLatchBlocksDispatch(t *testing.T) {
	bus := drbus.CreateTestBMSClient()
	bus.Set(0.09, 25, false)
	source := &market.TestMarketData{Snapshot: testSnapshot(2.00, 20000, 10)}

	r := startRig(t, testConfig(), bus, source)

	// let the SOC filter converge below the floor and the latch trip
	time.Sleep(1 * time.Second)

	enable, ok := bus.LastDREnable()
	require.True(t, ok, "latch must write DR-enable")
	assert.False(t, enable)

	// now a DR event arrives; price is irrelevant, nothing may dispatch
	bus.Set(0.09, 25, true)
	time.Sleep(1 * time.Second)

	assert.Equal(t, 0, bus.DispatchCount())
	assert.Empty(t, r.transport.SubmittedFastBids())
	enable, _ = bus.LastDREnable()
	assert.False(t, enable)
}

func TestUnprofitableRefusal(t *testing.T) {
	bus := drbus.CreateTestBMSClient()
	bus.Set(0.8, 25, true)
	source := &market.TestMarketData{Snapshot: testSnapshot(0.05, 20000, 10)}

	r := startRig(t, testConfig(), bus, source)

	time.Sleep(1 * time.Second)

	assert.Equal(t, 0, bus.DispatchCount())
	assert.Empty(t, r.transport.SubmittedFastBids())
}

func TestDayAheadAllocationSubmitted(t *testing.T) {
	cfg := testConfig()
	cfg.Tasks.DayAheadCheckSeconds = 1
	// aim at the hour a moment from now so an hour rollover mid-test still
	// lands inside the action window
	cfg.Tasks.DayAheadHour = time.Now().Add(2 * time.Second).Hour()

	bus := drbus.CreateTestBMSClient()
	bus.Set(0.8, 25, false)
	source := &market.TestMarketData{Snapshot: testSnapshot(0.20, 20000, 10)}

	r := startRig(t, cfg, bus, source)

	time.Sleep(3 * time.Second)

	bids := r.transport.SubmittedDayAheadBids()
	// the done-today latch allows exactly one submission round
	require.Len(t, bids, 24)

	total := 0.0
	for _, b := range bids {
		total += b.CapacityKWh
	}
	assert.InDelta(t, 6.5*0.8, total, 1e-9)
}

func TestBusFailuresAreSkippedTicks(t *testing.T) {
	bus := drbus.CreateTestBMSClient()
	bus.Set(0.8, 25, true)
	bus.FailReads = true
	source := &market.TestMarketData{Snapshot: testSnapshot(2.00, 20000, 10)}

	r := startRig(t, testConfig(), bus, source)

	time.Sleep(1 * time.Second)

	// no reading ever lands, so the strategy keeps its initial SOC and no
	// dispatch can happen
	assert.Equal(t, 0, bus.DispatchCount())
	assert.InDelta(t, 0.5, r.strategy.SOC(), 1e-9)
	assert.Zero(t, r.strategy.EquivalentFullCycles())
}
