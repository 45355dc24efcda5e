package drbus

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateBMSClientRequiresDevice(t *testing.T) {
	_, err := CreateBMSClient(ClientConfig{}, nil)
	assert.Error(t, err)
}

func TestCreateBMSClientAcceptsDevicePathAndURL(t *testing.T) {
	c, err := CreateBMSClient(ClientConfig{
		Device:  "/dev/ttyUSB0",
		Baud:    9600,
		UnitId:  1,
		Timeout: time.Second,
	}, nil)
	require.NoError(t, err)
	require.NotNil(t, c)

	c, err = CreateBMSClient(ClientConfig{
		Device: "tcp://localhost:1502",
		UnitId: 1,
	}, nil)
	require.NoError(t, err)
	require.NotNil(t, c)
}

func TestWriteDischargeRateRejectsInvalidCapacity(t *testing.T) {
	c, err := CreateBMSClient(ClientConfig{Device: "tcp://localhost:1502"}, nil)
	require.NoError(t, err)

	assert.Error(t, c.WriteDischargeRate(math.NaN()))
	assert.Error(t, c.WriteDischargeRate(math.Inf(1)))
	assert.Error(t, c.WriteDischargeRate(-1))
}

func TestTestClientRecordsWrites(t *testing.T) {
	c := CreateTestBMSClient()

	require.NoError(t, c.WriteDREnable(false))
	require.NoError(t, c.WriteDischargeRate(3.25))

	enable, ok := c.LastDREnable()
	require.True(t, ok)
	assert.False(t, enable)
	assert.Equal(t, 1, c.DispatchCount())
	assert.Equal(t, 3.25, c.DischargeRateWrites[0])
}
