package actor

import (
	"testing"
	"time"

	"github.com/cybergolem/bessbid/internal/core/domain"
	"github.com/cybergolem/bessbid/internal/util/actorutil"
	"github.com/cybergolem/bessbid/pkg/drbus"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func spawnBatteryActor(t *testing.T, bus *drbus.TestBMSClient) (*actor.ActorSystem, *actor.RootContext, *actor.PID) {
	t.Helper()

	logger := zap.Must(zap.NewDevelopment())
	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	props := actor.PropsFromProducer(func() actor.Actor { return NewBatteryActor(bus, logger) })
	pid := context.Spawn(props)

	t.Cleanup(func() {
		context.Stop(pid)
		as.Shutdown()
	})
	return as, context, pid
}

func TestGetBatteryState(t *testing.T) {

	bus := drbus.CreateTestBMSClient()
	bus.Set(0.73, 31.5, true)

	_, context, pid := spawnBatteryActor(t, bus)

	result, err := context.RequestFuture(pid, domain.GetBatteryStateRequest{}, 5*time.Second).Result()
	require.NoError(t, err)

	resp := result.(domain.GetBatteryStateResponse)
	require.False(t, resp.HasResponseError())
	assert.Equal(t, 0.73, resp.Reading.SOC)
	assert.Equal(t, 31.5, resp.Reading.TemperatureC)
}

func TestGetDRStatus(t *testing.T) {

	bus := drbus.CreateTestBMSClient()
	bus.Set(0.5, 25, true)

	_, context, pid := spawnBatteryActor(t, bus)

	result, err := context.RequestFuture(pid, domain.GetDRStatusRequest{}, 5*time.Second).Result()
	require.NoError(t, err)

	resp := result.(domain.GetDRStatusResponse)
	require.False(t, resp.HasResponseError())
	assert.True(t, resp.Active)
}

func TestWriteDischargeRate(t *testing.T) {

	bus := drbus.CreateTestBMSClient()

	_, context, pid := spawnBatteryActor(t, bus)

	result, err := context.RequestFuture(pid, domain.WriteDischargeRateRequest{CapacityKWh: 4.55}, 5*time.Second).Result()
	require.NoError(t, err)

	resp := result.(domain.WriteDischargeRateResponse)
	require.False(t, resp.HasResponseError())
	require.Equal(t, 1, bus.DispatchCount())
	assert.Equal(t, 4.55, bus.DischargeRateWrites[0])
}

func TestReadFailureIsReported(t *testing.T) {

	bus := drbus.CreateTestBMSClient()
	bus.FailReads = true

	_, context, pid := spawnBatteryActor(t, bus)

	result, err := context.RequestFuture(pid, domain.GetBatteryStateRequest{}, 5*time.Second).Result()
	require.NoError(t, err)

	resp := result.(domain.GetBatteryStateResponse)
	assert.True(t, resp.HasResponseError())
}
