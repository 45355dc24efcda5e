// Package events maps controller telemetry onto sensor update events.
package events

import (
	"fmt"

	"github.com/cybergolem/bessbid/internal/core/domain"
)

const (
	SENSOR_ID_BATTERY_SOC         = "battery_soc"
	SENSOR_ID_BATTERY_TEMPERATURE = "battery_temperature"
	SENSOR_ID_FULL_CYCLES         = "equivalent_full_cycles"
	SENSOR_ID_DISPATCH_STATE      = "dispatch_state"
	SENSOR_ID_DR_ACTIVE           = "dr_active"
	SENSOR_ID_LAST_BID_PRICE      = "last_bid_price"
	SENSOR_ID_LAST_BID_CAPACITY   = "last_bid_capacity"
)

func SOCUpdateEvents(soc, temperatureC float64) []any {
	return []any{
		domain.FloatSensorUpdateEvent{
			SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{
				Id: SENSOR_ID_BATTERY_SOC,
			},
			Value:    soc * 100,
			Decimals: 1,
		},
		domain.FloatSensorUpdateEvent{
			SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{
				Id: SENSOR_ID_BATTERY_TEMPERATURE,
			},
			Value:    temperatureC,
			Decimals: 1,
		},
	}
}

func FullCyclesUpdateEvent(cycles float64) any {
	return domain.FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{
			Id: SENSOR_ID_FULL_CYCLES,
		},
		Value:    cycles,
		Decimals: 3,
	}
}

func DispatchStateUpdateEvent(stateName string) any {
	return domain.TextSensorUpdateEvent{
		SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{
			Id: SENSOR_ID_DISPATCH_STATE,
		},
		Value: stateName,
	}
}

func DRActiveUpdateEvent(active bool) any {
	return domain.BinarySensorUpdateEvent{
		SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{
			Id: SENSOR_ID_DR_ACTIVE,
		},
		Value: active,
	}
}

func BidUpdateEvents(bid domain.Bid) []any {
	return []any{
		domain.FloatSensorUpdateEvent{
			SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{
				Id: SENSOR_ID_LAST_BID_CAPACITY,
			},
			Value:    bid.CapacityKWh,
			Decimals: 3,
		},
		domain.FloatSensorUpdateEvent{
			SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{
				Id: SENSOR_ID_LAST_BID_PRICE,
			},
			Value:    bid.Price,
			Decimals: 4,
		},
	}
}

// CategoryEvent is a log-style event line for the persistent event stream.
func CategoryEvent(category, detail string) any {
	return domain.TextSensorUpdateEvent{
		SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{
			Id: category,
		},
		Value: detail,
	}
}

func DispatchEvent(bid domain.Bid) any {
	return CategoryEvent(domain.EVENT_DISPATCH,
		fmt.Sprintf("capacity=%.3f price=%.4f", bid.CapacityKWh, bid.Price))
}
