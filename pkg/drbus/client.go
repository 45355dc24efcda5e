// Package drbus implements the register-level Modbus interface of the
// battery management system used for demand-response control.
package drbus

import (
	"errors"
	"math"
	"time"

	"github.com/simonvetter/modbus"
	log "github.com/sirupsen/logrus"
)

// BMS register map. SOC and temperature are input registers; the discharge
// rate and DR-enable flag are holding registers.
const (
	RegSOC           = 0x208 // raw SOC in percent (0-100)
	RegTemperature   = 0x209 // temperature in 0.1 degC
	RegDischargeRate = 0x210 // discharge rate (capacity x 100)
	RegDREnable      = 0x220 // DR-enable boolean (0 or 1)
)

// rate register scale: kWh capacity is carried as centiunits on the wire
const dischargeRateScale = 100

type ClientConfig struct {
	// Device is a serial device path (e.g. /dev/ttyUSB0) or a full modbus
	// URL (rtu:///dev/ttyUSB0, tcp://host:502).
	Device  string
	Baud    uint
	UnitId  uint8
	Timeout time.Duration
}

// BMSClient reads and writes the demand-response registers of the battery
// management system.
type BMSClient struct {
	client *modbus.ModbusClient
	logger *log.Logger
}

func CreateBMSClient(cfg ClientConfig, logger *log.Logger) (*BMSClient, error) {
	if cfg.Device == "" {
		return nil, errors.New("drbus: serial device not configured")
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	url := cfg.Device
	if url[0] == '/' {
		url = "rtu://" + url
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 1 * time.Second
	}
	mc, err := modbus.NewClient(&modbus.ClientConfiguration{
		URL:      url,
		Speed:    cfg.Baud,
		DataBits: 8,
		Parity:   modbus.PARITY_NONE,
		StopBits: 1,
		Timeout:  timeout,
	})
	if err != nil {
		return nil, err
	}
	if err := mc.SetUnitId(cfg.UnitId); err != nil {
		return nil, err
	}
	return &BMSClient{
		client: mc,
		logger: logger,
	}, nil
}

func (c *BMSClient) Open() error {
	return c.client.Open()
}

func (c *BMSClient) Close() error {
	return c.client.Close()
}

// ReadSOC returns the state of charge as a fraction in [0,1].
func (c *BMSClient) ReadSOC() (float64, error) {
	raw, err := c.client.ReadRegister(RegSOC, modbus.INPUT_REGISTER)
	if err != nil {
		c.logger.WithError(err).Error("drbus: SOC read failed")
		return 0, err
	}
	if raw > 100 {
		return 0, errors.New("drbus: SOC register out of range")
	}
	return float64(raw) / 100, nil
}

// ReadTemperature returns the pack temperature in degrees Celsius.
func (c *BMSClient) ReadTemperature() (float64, error) {
	raw, err := c.client.ReadRegister(RegTemperature, modbus.INPUT_REGISTER)
	if err != nil {
		c.logger.WithError(err).Error("drbus: temperature read failed")
		return 0, err
	}
	return float64(int16(raw)) / 10, nil
}

func (c *BMSClient) ReadDRStatus() (bool, error) {
	raw, err := c.client.ReadRegister(RegDREnable, modbus.HOLDING_REGISTER)
	if err != nil {
		c.logger.WithError(err).Error("drbus: DR status read failed")
		return false, err
	}
	return raw != 0, nil
}

func (c *BMSClient) WriteDREnable(enable bool) error {
	var value uint16
	if enable {
		value = 1
	}
	err := c.client.WriteRegister(RegDREnable, value)
	if err != nil {
		c.logger.WithError(err).Error("drbus: DR enable write failed")
	}
	return err
}

// WriteDischargeRate commits a discharge command. The register carries the
// committed capacity scaled by 100.
func (c *BMSClient) WriteDischargeRate(capacityKWh float64) error {
	if math.IsNaN(capacityKWh) || math.IsInf(capacityKWh, 0) || capacityKWh < 0 {
		return errors.New("drbus: invalid discharge capacity")
	}
	scaled := math.Round(capacityKWh * dischargeRateScale)
	if scaled > math.MaxUint16 {
		scaled = math.MaxUint16
	}
	err := c.client.WriteRegister(RegDischargeRate, uint16(scaled))
	if err != nil {
		c.logger.WithError(err).Error("drbus: discharge rate write failed")
	}
	return err
}
