package drbus

import (
	"errors"
	"sync"
)

// TestBMSClient is an in-memory battery bus for tests and bench setups.
// Fields can be scripted between ticks; every write is recorded.
type TestBMSClient struct {
	mu sync.Mutex

	SOC          float64
	TemperatureC float64
	DRActive     bool

	FailReads  bool
	FailWrites bool

	DREnableWrites      []bool
	DischargeRateWrites []float64
}

func CreateTestBMSClient() *TestBMSClient {
	return &TestBMSClient{
		SOC:          0.5,
		TemperatureC: 25,
	}
}

func (c *TestBMSClient) Open() error {
	return nil
}

func (c *TestBMSClient) Close() error {
	return nil
}

func (c *TestBMSClient) Set(soc, temperatureC float64, drActive bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.SOC = soc
	c.TemperatureC = temperatureC
	c.DRActive = drActive
}

func (c *TestBMSClient) ReadSOC() (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailReads {
		return 0, errors.New("test bus: read failure")
	}
	return c.SOC, nil
}

func (c *TestBMSClient) ReadTemperature() (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailReads {
		return 0, errors.New("test bus: read failure")
	}
	return c.TemperatureC, nil
}

func (c *TestBMSClient) ReadDRStatus() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailReads {
		return false, errors.New("test bus: read failure")
	}
	return c.DRActive, nil
}

func (c *TestBMSClient) WriteDREnable(enable bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailWrites {
		return errors.New("test bus: write failure")
	}
	c.DREnableWrites = append(c.DREnableWrites, enable)
	return nil
}

func (c *TestBMSClient) WriteDischargeRate(capacityKWh float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailWrites {
		return errors.New("test bus: write failure")
	}
	c.DischargeRateWrites = append(c.DischargeRateWrites, capacityKWh)
	return nil
}

// LastDREnable returns the most recent DR-enable write, or ok=false.
func (c *TestBMSClient) LastDREnable() (value bool, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.DREnableWrites) == 0 {
		return false, false
	}
	return c.DREnableWrites[len(c.DREnableWrites)-1], true
}

// DispatchCount returns the number of discharge-rate writes.
func (c *TestBMSClient) DispatchCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.DischargeRateWrites)
}
