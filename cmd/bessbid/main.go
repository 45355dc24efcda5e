package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	adactor "github.com/cybergolem/bessbid/internal/adapter/actor"
	"github.com/cybergolem/bessbid/internal/adapter/market"
	"github.com/cybergolem/bessbid/internal/config"
	coreactor "github.com/cybergolem/bessbid/internal/core/actor"
	"github.com/cybergolem/bessbid/internal/core/strategy"
	"github.com/cybergolem/bessbid/internal/server"
	"github.com/cybergolem/bessbid/internal/util/actorutil"
	"github.com/cybergolem/bessbid/pkg/drbus"
	"github.com/cybergolem/bessbid/pkg/ephemeris"

	pactor "github.com/asynkron/protoactor-go/actor"
	"github.com/carlmjohnson/versioninfo"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func gracefulShutdown(apiServer *http.Server, done chan bool) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	log.Println("shutting down gracefully, press Ctrl+C again to force")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown with error: %v", err)
	}

	log.Println("Server exiting")

	done <- true
}

func main() {

	slog.Info("bessbid", "version", versioninfo.Short())

	cfg, err := initConfig()
	if err != nil {
		slog.Error("config errors", "error", err)
		os.Exit(1)
	}
	safePrintConfig(*cfg)

	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)

	logger := zap.Must(zapCfg.Build())
	defer logger.Sync()

	strat, err := strategyFromConfig(cfg)
	if err != nil {
		slog.Error("strategy errors", "error", err)
		os.Exit(1)
	}

	sunlight := ephemeris.Generate(cfg.Site.Latitude, cfg.Site.Longitude, cfg.Site.TimezoneOffsetH)

	as := actorutil.NewActorSystemWithZapLogger(logger)
	ctx := as.Root

	batteryProv, err := batteryActorProvider(cfg, logger)
	if err != nil {
		slog.Error("battery bus errors", "error", err)
		os.Exit(1)
	}

	props := pactor.PropsFromProducer(func() pactor.Actor {
		return coreactor.NewMasterActor(*cfg, strat, sunlight, batteryProv,
			marketActorProvider(cfg, logger), mqttActorProvider(cfg, logger), logger)
	})
	pid, err := ctx.SpawnNamed(props, "master")
	if err != nil {
		return
	}

	server := server.NewServer(*cfg, ctx, pid)
	done := make(chan bool, 1)

	go gracefulShutdown(server, done)

	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		panic(fmt.Sprintf("http server error: %s", err))
	}

	<-done
	log.Println("Graceful shutdown complete.")

	ctx.Stop(pid)
	as.Shutdown()
}

func initConfig() (*config.Config, error) {

	// alias PORT => BESSBID_PORT
	if port := os.Getenv("PORT"); port != "" {
		os.Setenv("BESSBID_PORT", port)
	}

	setConfigDefaults()

	viper.SetEnvPrefix("bessbid")
	viper.AutomaticEnv()

	// if defined, try to load config from yaml file
	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		if _, err := os.Stat(cfgFile); err == nil {
			slog.Info("Using config", "file", cfgFile)
			viper.SetConfigFile(cfgFile)

			err = viper.ReadInConfig()
			if err != nil {
				slog.Error("Error reading config file", "error", err)
			}
		}
	}

	var cfg config.Config

	err := viper.Unmarshal(&cfg)
	if err != nil {
		return nil, err
	}

	switch viper.GetString("log_level") {
	case "trace":
		cfg.LogLevel = zap.DebugLevel
	case "debug":
		cfg.LogLevel = zap.DebugLevel
	case "info":
		cfg.LogLevel = zap.InfoLevel
	case "error":
		cfg.LogLevel = zap.ErrorLevel
	case "warn":
		cfg.LogLevel = zap.WarnLevel
	case "fatal":
		cfg.LogLevel = zap.FatalLevel
	default:
		cfg.LogLevel = zap.InfoLevel
	}

	if cfg.MQTT.Enable {
		baseTopic, err := config.CheckMQTTTopic(cfg.MQTT.BaseTopic)
		if err != nil {
			return nil, errors.New("invalid base topic. can only contain letters, numbers and underscores")
		}
		cfg.MQTT.BaseTopic = baseTopic
	}

	// check bounds
	if cfg.Serial.Device == "" {
		return nil, errors.New("config param serial.device is required")
	}
	if cfg.Battery.CapacityKWh <= 0 {
		return nil, errors.New("config param battery.capacity_kwh should be > 0")
	}
	if cfg.Battery.RoundTripEfficiency <= 0 || cfg.Battery.RoundTripEfficiency > 1 {
		return nil, errors.New("config param battery.round_trip_efficiency should be in (0,1]")
	}
	if cfg.Battery.MinSOC >= cfg.Battery.MaxSOC {
		return nil, errors.New("config param battery.min_soc should be < battery.max_soc")
	}
	if cfg.Market.ForecastURL == "" || cfg.Market.BidURL == "" {
		return nil, errors.New("config params market.forecast_url and market.bid_url are required")
	}
	if cfg.Tasks.SOCPollIntervalMillis < 100 {
		return nil, errors.New("config param tasks.soc_poll_interval_millis should be >= 100")
	}
	if cfg.Tasks.DayAheadHour < 0 || cfg.Tasks.DayAheadHour > 23 {
		return nil, errors.New("config param tasks.day_ahead_hour should be in [0,23]")
	}

	return &cfg, nil
}

func strategyFromConfig(cfg *config.Config) (*strategy.Strategy, error) {
	params := strategy.DefaultParams(cfg.Battery.CapacityKWh, cfg.Battery.RoundTripEfficiency)
	params.MinSOC = cfg.Battery.MinSOC
	params.MaxSOC = cfg.Battery.MaxSOC
	if cfg.Strategy.ReplacementCost > 0 {
		params.ReplacementCost = cfg.Strategy.ReplacementCost
	}
	if cfg.Strategy.KDeltaE1 > 0 {
		params.KDeltaE1 = cfg.Strategy.KDeltaE1
	}
	if cfg.Strategy.KDeltaE2 > 0 {
		params.KDeltaE2 = cfg.Strategy.KDeltaE2
	}
	if cfg.Strategy.CyclesToEOL > 0 {
		params.CyclesToEOL = cfg.Strategy.CyclesToEOL
	}
	if cfg.Strategy.RiskPremium >= 0 {
		params.RiskPremium = cfg.Strategy.RiskPremium
	}
	if cfg.Strategy.Alpha > 0 {
		params.Alpha = cfg.Strategy.Alpha
	}
	if cfg.Strategy.Beta > 0 {
		params.Beta = cfg.Strategy.Beta
	}
	if cfg.Strategy.MaxGridDemand > 0 {
		params.MaxGridDemand = cfg.Strategy.MaxGridDemand
	}
	if cfg.Strategy.DispatchHoldoffSeconds > 0 {
		params.DispatchHoldoff = time.Duration(cfg.Strategy.DispatchHoldoffSeconds) * time.Second
	}
	return strategy.New(params)
}

func batteryActorProvider(cfg *config.Config, logger *zap.Logger) (coreactor.BatteryActorProvider, error) {

	bus, err := drbus.CreateBMSClient(drbus.ClientConfig{
		Device:  cfg.Serial.Device,
		Baud:    cfg.Serial.Baud,
		UnitId:  uint8(cfg.Serial.UnitId),
		Timeout: 1 * time.Second,
	}, nil)

	if err != nil {
		return nil, err
	}

	return func() *adactor.BatteryActor {
		return adactor.NewBatteryActor(bus, logger)
	}, nil
}

func marketActorProvider(cfg *config.Config, logger *zap.Logger) coreactor.MarketActorProvider {
	timeout := time.Duration(cfg.Market.RequestTimeoutMillis) * time.Millisecond
	return func() *adactor.MarketActor {
		return adactor.NewMarketActor(
			market.NewForecastClient(cfg.Market.ForecastURL, timeout, logger),
			market.NewBidClient(cfg.Market.BidURL, timeout, logger),
			logger)
	}
}

func mqttActorProvider(cfg *config.Config, logger *zap.Logger) coreactor.MQTTActorProvider {
	if !cfg.MQTT.Enable {
		return nil
	}
	return func() *adactor.MQTTActor {
		return adactor.NewMQTTActor(cfg, logger)
	}
}

func setConfigDefaults() {
	viper.SetDefault("log_level", "info")
	viper.SetDefault("battery.capacity_kwh", 6.5)
	viper.SetDefault("battery.round_trip_efficiency", 0.95)
	viper.SetDefault("battery.min_soc", 0.10)
	viper.SetDefault("battery.max_soc", 0.90)
	viper.SetDefault("strategy.replacement_cost", 4000)
	viper.SetDefault("strategy.k_delta_e1", 0.693)
	viper.SetDefault("strategy.k_delta_e2", 3.31)
	viper.SetDefault("strategy.cycles_to_eol", 5000)
	viper.SetDefault("strategy.risk_premium", 0.05)
	viper.SetDefault("strategy.alpha", 0.3)
	viper.SetDefault("strategy.beta", 0.2)
	viper.SetDefault("strategy.max_grid_demand", 50000)
	viper.SetDefault("strategy.dispatch_holdoff_seconds", 3600)
	viper.SetDefault("serial.baud", 9600)
	viper.SetDefault("serial.unit_id", 1)
	viper.SetDefault("market.request_timeout_millis", 5000)
	viper.SetDefault("mqtt.enable", false)
	viper.SetDefault("mqtt.base_topic", "bessbid")
	viper.SetDefault("site.latitude", 37.7749)
	viper.SetDefault("site.longitude", -122.4194)
	viper.SetDefault("site.timezone_offset_hours", -8)
	viper.SetDefault("tasks.soc_poll_interval_millis", 1000)
	viper.SetDefault("tasks.dispatch_poll_interval_millis", 1000)
	viper.SetDefault("tasks.day_ahead_check_seconds", 60)
	viper.SetDefault("tasks.day_ahead_hour", 2)
	viper.SetDefault("tasks.forecast_check_seconds", 60)
	viper.SetDefault("tasks.forecast_max_age_seconds", 3600)
	viper.SetDefault("port", 8080)
}

func safePrintConfig(cfg config.Config) {
	cfg.MQTT.Username = "*redacted*"
	cfg.MQTT.Password = "*redacted*"
	slog.Info("Using", "config", cfg)
}
