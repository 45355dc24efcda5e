package domain

const (
	ACTOR_ID_MASTER      = "master"
	ACTOR_ID_BATTERY     = "battery"
	ACTOR_ID_MARKET      = "market"
	ACTOR_ID_MQTT        = "mqtt"
	ACTOR_ID_SOC_MONITOR = "soc_monitor"
	ACTOR_ID_FAST_DR     = "fast_dr"
	ACTOR_ID_DAY_AHEAD   = "day_ahead"
	ACTOR_ID_FORECAST    = "forecast"
)

// Battery bus messages

type GetBatteryStateRequest struct {
	ActorRequestMixIn
}

type GetBatteryStateResponse struct {
	ActorResponseMixIn
	Reading BatteryReading
}

type GetDRStatusRequest struct {
	ActorRequestMixIn
}

type GetDRStatusResponse struct {
	ActorResponseMixIn
	Active bool
}

type SetDREnableRequest struct {
	ActorRequestMixIn
	Enable bool
}

type SetDREnableResponse struct {
	ActorResponseMixIn
}

type WriteDischargeRateRequest struct {
	ActorRequestMixIn
	CapacityKWh float64
}

type WriteDischargeRateResponse struct {
	ActorResponseMixIn
}

// Market data / bid transport messages

type RefreshForecastRequest struct {
	ActorRequestMixIn
}

type RefreshForecastResponse struct {
	ActorResponseMixIn
	Snapshot *ForecastSnapshot
}

type SubmitFastBidRequest struct {
	ActorRequestMixIn
	Bid Bid
}

type SubmitFastBidResponse struct {
	ActorResponseMixIn
}

type SubmitDayAheadBidsRequest struct {
	ActorRequestMixIn
	Bids []HourlyBid
}

type SubmitDayAheadBidsResponse struct {
	ActorResponseMixIn
	Submitted int
}

// MQTT messages

type PublishMessageRequest struct {
	ActorRequestMixIn
	Topic   string
	Payload string
	Retain  bool
}

type PublishMessageResponse struct {
	ActorResponseMixIn
}

// Health

type ActorHealthRequest struct {
	ActorRequestMixIn
}

type ActorHealthResponse struct {
	ActorResponseMixIn
	Id      string
	Healthy bool
	State   string
}

// StatusRequest asks the master for an operational summary.
type StatusRequest struct {
	ActorRequestMixIn
}

type StatusResponse struct {
	ActorResponseMixIn
	SOC                  float64
	EquivalentFullCycles float64
	DispatchState        string
	LastDispatchUnix     int64
	ForecastAgeSeconds   float64
	SunriseHour          float64
	SunsetHour           float64
}
