package domain

import (
	"time"
)

// Name identifies a sensor reading produced by the normalizer. One entity is
// published per Name per station.
type Name string

// Readings delivered directly by the station.
const (
	AirTemperature       Name = "air_temperature"
	RelativeHumidity     Name = "relative_humidity"
	StationPressure      Name = "station_pressure"
	SeaLevelPressure     Name = "sea_level_pressure"
	WindSpeed            Name = "wind_speed"
	WindAverage          Name = "wind_average"
	WindLull             Name = "wind_lull"
	WindGust             Name = "wind_gust"
	WindDirection        Name = "wind_direction"
	Illuminance          Name = "illuminance"
	UVIndex              Name = "uv"
	SolarRadiation       Name = "solar_radiation"
	RainAccumulation     Name = "rain_accumulation"
	RainRate             Name = "rain_rate"
	PrecipitationType    Name = "precipitation_type"
	LightningCount       Name = "lightning_strike_count"
	LightningAvgDistance Name = "lightning_average_distance"
	LightningDistance    Name = "lightning_strike_distance"
	PressureTrend        Name = "pressure_trend"
	Battery              Name = "battery_voltage"
	RSSI                 Name = "rssi"
	HubRSSI              Name = "hub_rssi"
	Uptime               Name = "uptime"
	HubUptime            Name = "hub_uptime"
)

// Readings computed by the normalizer from other readings in the same packet.
const (
	DewPointTemperature     Name = "dew_point"
	WetBulbTemperature      Name = "wet_bulb_temperature"
	WetBulbGlobeTemperature Name = "wet_bulb_globe_temperature"
	FeelsLikeTemperature    Name = "feels_like"
	HeatIndexTemperature    Name = "heat_index"
	WindChillTemperature    Name = "wind_chill"
	VaporPressureReading    Name = "vapor_pressure"
	AirDensityReading       Name = "air_density"
	DeltaT                  Name = "delta_t"
	WindDirectionCardinal   Name = "wind_direction_cardinal"
)

// Reading is a named, typed, timestamped scalar observed by (or derived from)
// a station. Numeric readings carry Value and Unit; enum-like readings such
// as precipitation_type carry Text instead.
type Reading struct {
	Name       Name      `json:"name"`
	Value      float64   `json:"value"`
	Text       string    `json:"text,omitempty"`
	Unit       string    `json:"unit,omitempty"`
	Station    string    `json:"station"`
	ObservedAt time.Time `json:"observed_at"`
}

// IsText reports whether the reading carries an enum/text value rather than
// a numeric one.
func (r Reading) IsText() bool {
	return r.Text != ""
}

// UnitSystem selects the unit family readings are normalized into.
type UnitSystem string

const (
	Metric   UnitSystem = "metric"
	Imperial UnitSystem = "imperial"
)

// Valid reports whether u is a recognized unit system.
func (u UnitSystem) Valid() bool {
	return u == Metric || u == Imperial
}

// Device-native units are always metric (°C, m/s, mbar, mm, km). Each
// converter maps a native value into the configured system and returns the
// value with its unit label.

func (u UnitSystem) Temperature(celsius float64) (float64, string) {
	if u == Imperial {
		return celsius*9/5 + 32, "°F"
	}
	return celsius, "°C"
}

func (u UnitSystem) Speed(metersPerSecond float64) (float64, string) {
	if u == Imperial {
		return metersPerSecond * 2.236936, "mph"
	}
	return metersPerSecond, "m/s"
}

func (u UnitSystem) Pressure(millibars float64) (float64, string) {
	if u == Imperial {
		return millibars * 0.029529983, "inHg"
	}
	return millibars, "mbar"
}

func (u UnitSystem) Precipitation(millimeters float64) (float64, string) {
	if u == Imperial {
		return millimeters / 25.4, "in"
	}
	return millimeters, "mm"
}

func (u UnitSystem) PrecipitationRate(mmPerHour float64) (float64, string) {
	if u == Imperial {
		return mmPerHour / 25.4, "in/h"
	}
	return mmPerHour, "mm/h"
}

func (u UnitSystem) Distance(kilometers float64) (float64, string) {
	if u == Imperial {
		return kilometers * 0.621371, "mi"
	}
	return kilometers, "km"
}
