package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// PacketSource identifies the transport a raw packet arrived on.
type PacketSource string

const (
	SourceUDP   PacketSource = "udp"
	SourceCloud PacketSource = "cloud"
)

// RawPacket is an unprocessed payload from the UDP listener or the cloud
// poller. It is discarded after normalization.
type RawPacket struct {
	Source     PacketSource
	Payload    []byte
	ReceivedAt time.Time
}

// UDP message types broadcast by the hub.
const (
	typeObsTempest   = "obs_st"
	typeObsAir       = "obs_air"
	typeObsSky       = "obs_sky"
	typeRapidWind    = "rapid_wind"
	typeStrikeEvent  = "evt_strike"
	typePrecipEvent  = "evt_precip"
	typeDeviceStatus = "device_status"
	typeHubStatus    = "hub_status"
)

// udpEnvelope carries the fields common to every hub broadcast.
type udpEnvelope struct {
	Type         string `json:"type"`
	SerialNumber string `json:"serial_number"`
	HubSN        string `json:"hub_sn"`
}

// obsMessage is the shape of obs_st / obs_air / obs_sky broadcasts. Each obs
// entry is a positional array; individual slots may be null when a sensor is
// offline, so they decode into pointers.
type obsMessage struct {
	udpEnvelope
	Obs [][]*float64 `json:"obs"`
}

// eventMessage is the shape of rapid_wind / evt_strike / evt_precip
// broadcasts, which carry a single positional array.
type eventMessage struct {
	udpEnvelope
	Ob  []*float64 `json:"ob"`
	Evt []*float64 `json:"evt"`
}

// deviceStatusMessage reports sensor-unit diagnostics.
type deviceStatusMessage struct {
	udpEnvelope
	Timestamp *int64   `json:"timestamp"`
	Uptime    *float64 `json:"uptime"`
	Voltage   *float64 `json:"voltage"`
	RSSI      *float64 `json:"rssi"`
	HubRSSI   *float64 `json:"hub_rssi"`
}

// hubStatusMessage reports hub diagnostics.
type hubStatusMessage struct {
	udpEnvelope
	Timestamp *int64   `json:"timestamp"`
	Uptime    *float64 `json:"uptime"`
	RSSI      *float64 `json:"rssi"`
}

// ParsePacket validates a raw packet and produces the reading set it carries,
// including derived metrics, with values converted into the given unit
// system. Malformed payloads return an error wrapping ErrParse.
func ParsePacket(raw RawPacket, units UnitSystem) ([]Reading, error) {
	if raw.Source == SourceCloud {
		return parseCloudObservation(raw.Payload, units)
	}

	var env udpEnvelope
	if err := json.Unmarshal(raw.Payload, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	switch env.Type {
	case typeObsTempest:
		return parseObsTempest(raw.Payload, units)
	case typeObsAir:
		return parseObsAir(raw.Payload, units)
	case typeObsSky:
		return parseObsSky(raw.Payload, units)
	case typeRapidWind:
		return parseRapidWind(raw.Payload, units)
	case typeStrikeEvent:
		return parseStrikeEvent(raw.Payload, units)
	case typePrecipEvent:
		return parsePrecipEvent(raw.Payload)
	case typeDeviceStatus:
		return parseDeviceStatus(raw.Payload)
	case typeHubStatus:
		return parseHubStatus(raw.Payload)
	case "":
		return nil, fmt.Errorf("%w: missing type field", ErrParse)
	default:
		return nil, fmt.Errorf("%w: unsupported packet type %q", ErrParse, env.Type)
	}
}

// builder accumulates readings for one packet, skipping absent (null) slots.
type builder struct {
	station    string
	observedAt time.Time
	readings   []Reading
}

func newBuilder(station string, epoch *float64) *builder {
	b := &builder{station: station}
	if epoch != nil {
		b.observedAt = time.Unix(int64(*epoch), 0).UTC()
	} else {
		b.observedAt = clock.Now().UTC()
	}
	return b
}

func (b *builder) add(name Name, value *float64, convert func(float64) (float64, string)) {
	if value == nil {
		return
	}
	v, unit := convert(*value)
	b.readings = append(b.readings, Reading{
		Name:       name,
		Value:      v,
		Unit:       unit,
		Station:    b.station,
		ObservedAt: b.observedAt,
	})
}

func (b *builder) addText(name Name, text string) {
	if text == "" {
		return
	}
	b.readings = append(b.readings, Reading{
		Name:       name,
		Text:       text,
		Station:    b.station,
		ObservedAt: b.observedAt,
	})
}

// raw passes a value through unconverted with a fixed unit label ("" for
// unitless readings such as UV index).
func raw(unit string) func(float64) (float64, string) {
	return func(v float64) (float64, string) { return v, unit }
}

func at(obs []*float64, i int) *float64 {
	if i < 0 || i >= len(obs) {
		return nil
	}
	return obs[i]
}

// obs_st positional layout (Tempest combined sensor).
const (
	stEpoch = iota
	stWindLull
	stWindAvg
	stWindGust
	stWindDirection
	stWindSampleInterval
	stStationPressure
	stAirTemperature
	stRelativeHumidity
	stIlluminance
	stUV
	stSolarRadiation
	stRainLastMinute
	stPrecipType
	stLightningAvgDistance
	stLightningCount
	stBattery
	stReportInterval
)

func parseObsTempest(payload []byte, units UnitSystem) ([]Reading, error) {
	var msg obsMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if len(msg.Obs) == 0 || len(msg.Obs[0]) == 0 {
		return nil, fmt.Errorf("%w: obs_st without observation array", ErrParse)
	}

	obs := msg.Obs[0]
	b := newBuilder(msg.SerialNumber, at(obs, stEpoch))

	b.add(WindLull, at(obs, stWindLull), units.Speed)
	b.add(WindAverage, at(obs, stWindAvg), units.Speed)
	b.add(WindGust, at(obs, stWindGust), units.Speed)
	b.add(WindDirection, at(obs, stWindDirection), raw("°"))
	b.add(StationPressure, at(obs, stStationPressure), units.Pressure)
	b.add(AirTemperature, at(obs, stAirTemperature), units.Temperature)
	b.add(RelativeHumidity, at(obs, stRelativeHumidity), raw("%"))
	b.add(Illuminance, at(obs, stIlluminance), raw("lx"))
	b.add(UVIndex, at(obs, stUV), raw(""))
	b.add(SolarRadiation, at(obs, stSolarRadiation), raw("W/m²"))
	b.add(RainAccumulation, at(obs, stRainLastMinute), units.Precipitation)
	if rain := at(obs, stRainLastMinute); rain != nil {
		// The accumulation slot covers the previous minute, so mm × 60 = mm/h.
		rate := *rain * 60
		b.add(RainRate, &rate, units.PrecipitationRate)
	}
	if pt := at(obs, stPrecipType); pt != nil {
		b.addText(PrecipitationType, precipTypeLabel(int(*pt)))
	}
	b.add(LightningAvgDistance, at(obs, stLightningAvgDistance), units.Distance)
	b.add(LightningCount, at(obs, stLightningCount), raw(""))
	b.add(Battery, at(obs, stBattery), raw("V"))

	appendDerived(b, at(obs, stAirTemperature), at(obs, stRelativeHumidity),
		at(obs, stStationPressure), at(obs, stWindAvg), units)
	appendCardinal(b, at(obs, stWindDirection))

	return b.readings, nil
}

// obs_air positional layout (legacy AIR sensor).
const (
	airEpoch = iota
	airStationPressure
	airTemperature
	airRelativeHumidity
	airLightningCount
	airLightningAvgDistance
	airBattery
)

func parseObsAir(payload []byte, units UnitSystem) ([]Reading, error) {
	var msg obsMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if len(msg.Obs) == 0 || len(msg.Obs[0]) == 0 {
		return nil, fmt.Errorf("%w: obs_air without observation array", ErrParse)
	}

	obs := msg.Obs[0]
	b := newBuilder(msg.SerialNumber, at(obs, airEpoch))

	b.add(StationPressure, at(obs, airStationPressure), units.Pressure)
	b.add(AirTemperature, at(obs, airTemperature), units.Temperature)
	b.add(RelativeHumidity, at(obs, airRelativeHumidity), raw("%"))
	b.add(LightningCount, at(obs, airLightningCount), raw(""))
	b.add(LightningAvgDistance, at(obs, airLightningAvgDistance), units.Distance)
	b.add(Battery, at(obs, airBattery), raw("V"))

	appendDerived(b, at(obs, airTemperature), at(obs, airRelativeHumidity),
		at(obs, airStationPressure), nil, units)

	return b.readings, nil
}

// obs_sky positional layout (legacy SKY sensor).
const (
	skyEpoch = iota
	skyIlluminance
	skyUV
	skyRainLastMinute
	skyWindLull
	skyWindAvg
	skyWindGust
	skyWindDirection
	skyBattery
	skyReportInterval
	skySolarRadiation
	skyLocalDayRain
	skyPrecipType
)

func parseObsSky(payload []byte, units UnitSystem) ([]Reading, error) {
	var msg obsMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if len(msg.Obs) == 0 || len(msg.Obs[0]) == 0 {
		return nil, fmt.Errorf("%w: obs_sky without observation array", ErrParse)
	}

	obs := msg.Obs[0]
	b := newBuilder(msg.SerialNumber, at(obs, skyEpoch))

	b.add(Illuminance, at(obs, skyIlluminance), raw("lx"))
	b.add(UVIndex, at(obs, skyUV), raw(""))
	b.add(RainAccumulation, at(obs, skyRainLastMinute), units.Precipitation)
	b.add(WindLull, at(obs, skyWindLull), units.Speed)
	b.add(WindAverage, at(obs, skyWindAvg), units.Speed)
	b.add(WindGust, at(obs, skyWindGust), units.Speed)
	b.add(WindDirection, at(obs, skyWindDirection), raw("°"))
	b.add(Battery, at(obs, skyBattery), raw("V"))
	b.add(SolarRadiation, at(obs, skySolarRadiation), raw("W/m²"))
	if pt := at(obs, skyPrecipType); pt != nil {
		b.addText(PrecipitationType, precipTypeLabel(int(*pt)))
	}
	appendCardinal(b, at(obs, skyWindDirection))

	return b.readings, nil
}

func parseRapidWind(payload []byte, units UnitSystem) ([]Reading, error) {
	var msg eventMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if len(msg.Ob) < 3 {
		return nil, fmt.Errorf("%w: rapid_wind with %d fields", ErrParse, len(msg.Ob))
	}

	b := newBuilder(msg.SerialNumber, msg.Ob[0])
	b.add(WindSpeed, msg.Ob[1], units.Speed)
	b.add(WindDirection, msg.Ob[2], raw("°"))
	appendCardinal(b, msg.Ob[2])

	return b.readings, nil
}

func parseStrikeEvent(payload []byte, units UnitSystem) ([]Reading, error) {
	var msg eventMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if len(msg.Evt) < 2 {
		return nil, fmt.Errorf("%w: evt_strike with %d fields", ErrParse, len(msg.Evt))
	}

	b := newBuilder(msg.SerialNumber, msg.Evt[0])
	b.add(LightningDistance, msg.Evt[1], units.Distance)

	return b.readings, nil
}

// parsePrecipEvent handles the rain-start event, which carries only an
// epoch. It is mapped to a precipitation_type reading so the entity flips
// from "none" the instant rain begins, ahead of the next minute observation.
func parsePrecipEvent(payload []byte) ([]Reading, error) {
	var msg eventMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if len(msg.Evt) < 1 {
		return nil, fmt.Errorf("%w: evt_precip without epoch", ErrParse)
	}

	b := newBuilder(msg.SerialNumber, msg.Evt[0])
	b.addText(PrecipitationType, "rain")

	return b.readings, nil
}

func parseDeviceStatus(payload []byte) ([]Reading, error) {
	var msg deviceStatusMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	b := newBuilder(msg.SerialNumber, epochPtr(msg.Timestamp))
	b.add(Uptime, msg.Uptime, raw("s"))
	b.add(Battery, msg.Voltage, raw("V"))
	b.add(RSSI, msg.RSSI, raw("dBm"))
	b.add(HubRSSI, msg.HubRSSI, raw("dBm"))

	return b.readings, nil
}

func parseHubStatus(payload []byte) ([]Reading, error) {
	var msg hubStatusMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	station := msg.SerialNumber
	if station == "" {
		station = msg.HubSN
	}
	b := newBuilder(station, epochPtr(msg.Timestamp))
	b.add(HubUptime, msg.Uptime, raw("s"))
	b.add(HubRSSI, msg.RSSI, raw("dBm"))

	return b.readings, nil
}

// appendDerived computes the metrics the device does not deliver directly.
// Each derivation is skipped when its inputs are absent rather than failing
// the packet.
func appendDerived(b *builder, tempC, humidity, pressureMB, windMS *float64, units UnitSystem) {
	if tempC == nil || humidity == nil {
		return
	}

	dew := DewPoint(*tempC, *humidity)
	b.add(DewPointTemperature, &dew, units.Temperature)

	wb := WetBulb(*tempC, *humidity)
	b.add(WetBulbTemperature, &wb, units.Temperature)

	wbgt := WetBulbGlobe(*tempC, *humidity)
	b.add(WetBulbGlobeTemperature, &wbgt, units.Temperature)

	dt := *tempC - wb
	b.add(DeltaT, &dt, units.Temperature)

	vp := VaporPressure(*tempC, *humidity)
	b.add(VaporPressureReading, &vp, units.Pressure)

	wind := 0.0
	if windMS != nil {
		wind = *windMS
	}
	fl := FeelsLike(*tempC, *humidity, wind)
	b.add(FeelsLikeTemperature, &fl, units.Temperature)

	// Heat index and wind chill are only physically meaningful inside the
	// same ranges FeelsLike switches on.
	if *tempC >= heatIndexMinTempC && *humidity >= heatIndexMinHumidity {
		hi := HeatIndex(*tempC, *humidity)
		b.add(HeatIndexTemperature, &hi, units.Temperature)
	}
	if windMS != nil && *tempC <= windChillMaxTempC && *windMS > windChillMinWindMS {
		wc := WindChill(*tempC, *windMS)
		b.add(WindChillTemperature, &wc, units.Temperature)
	}

	if pressureMB != nil {
		density := AirDensity(*tempC, *humidity, *pressureMB)
		b.add(AirDensityReading, &density, raw("kg/m³"))
	}
}

func appendCardinal(b *builder, degrees *float64) {
	if degrees == nil {
		return
	}
	b.addText(WindDirectionCardinal, Cardinal(*degrees))
}

func precipTypeLabel(code int) string {
	switch code {
	case 0:
		return "none"
	case 1:
		return "rain"
	case 2:
		return "hail"
	case 3:
		return "rain_hail"
	default:
		return "unknown"
	}
}

func epochPtr(ts *int64) *float64 {
	if ts == nil {
		return nil
	}
	f := float64(*ts)
	return &f
}
