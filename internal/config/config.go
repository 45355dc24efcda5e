package config

import (
	"errors"
	"regexp"
	"strings"

	"go.uber.org/zap/zapcore"
)

type Config struct {
	LogLevel zapcore.Level

	Battery  BatteryConfig  `mapstructure:"battery"`
	Strategy StrategyConfig `mapstructure:"strategy"`
	Serial   SerialConfig   `mapstructure:"serial"`
	Market   MarketConfig   `mapstructure:"market"`
	MQTT     MQTTConfig     `mapstructure:"mqtt"`
	Site     SiteConfig     `mapstructure:"site"`
	Tasks    TasksConfig    `mapstructure:"tasks"`

	Port    uint `mapstructure:"port"`
	HttpLog bool `mapstructure:"http_log"`
}

type BatteryConfig struct {
	CapacityKWh         float64 `mapstructure:"capacity_kwh"`
	RoundTripEfficiency float64 `mapstructure:"round_trip_efficiency"`
	MinSOC              float64 `mapstructure:"min_soc"`
	MaxSOC              float64 `mapstructure:"max_soc"`
}

type StrategyConfig struct {
	ReplacementCost        float64 `mapstructure:"replacement_cost"`
	KDeltaE1               float64 `mapstructure:"k_delta_e1"`
	KDeltaE2               float64 `mapstructure:"k_delta_e2"`
	CyclesToEOL            float64 `mapstructure:"cycles_to_eol"`
	RiskPremium            float64 `mapstructure:"risk_premium"`
	Alpha                  float64 `mapstructure:"alpha"`
	Beta                   float64 `mapstructure:"beta"`
	MaxGridDemand          float64 `mapstructure:"max_grid_demand"`
	DispatchHoldoffSeconds uint32  `mapstructure:"dispatch_holdoff_seconds"`
}

type SerialConfig struct {
	Device string `mapstructure:"device"`
	Baud   uint   `mapstructure:"baud"`
	UnitId uint   `mapstructure:"unit_id"`
}

type MarketConfig struct {
	ForecastURL          string `mapstructure:"forecast_url"`
	BidURL               string `mapstructure:"bid_url"`
	RequestTimeoutMillis uint32 `mapstructure:"request_timeout_millis"`
}

type MQTTConfig struct {
	Enable    bool   `mapstructure:"enable"`
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	BaseTopic string `mapstructure:"base_topic"`
}

type SiteConfig struct {
	Latitude        float64 `mapstructure:"latitude"`
	Longitude       float64 `mapstructure:"longitude"`
	TimezoneOffsetH float64 `mapstructure:"timezone_offset_hours"`
}

type TasksConfig struct {
	SOCPollIntervalMillis      uint32 `mapstructure:"soc_poll_interval_millis"`
	DispatchPollIntervalMillis uint32 `mapstructure:"dispatch_poll_interval_millis"`
	DayAheadCheckSeconds       uint32 `mapstructure:"day_ahead_check_seconds"`
	DayAheadHour               int    `mapstructure:"day_ahead_hour"`
	ForecastCheckSeconds       uint32 `mapstructure:"forecast_check_seconds"`
	ForecastMaxAgeSeconds      uint32 `mapstructure:"forecast_max_age_seconds"`
}

func CheckMQTTTopic(baseTopic string) (string, error) {
	lowerBaseTopic := strings.ToLower(baseTopic)
	baseTopicRegexp := regexp.MustCompile("^[a-z0-9_]+$")
	matches := baseTopicRegexp.FindAllStringSubmatch(lowerBaseTopic, 1)
	if len(matches) <= 0 {
		return "", errors.New("invalid topic. can only contain letters, numbers and underscores")
	}
	return lowerBaseTopic, nil
}
