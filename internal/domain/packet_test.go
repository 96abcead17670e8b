package domain_test

import (
	"testing"
	"time"

	"github.com/couchcryptid/tempest-station-bridge/internal/domain"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const obsTempestPayload = `{
	"serial_number": "ST-00000512",
	"type": "obs_st",
	"hub_sn": "HB-00013030",
	"obs": [[1588948614, 0.18, 0.22, 0.27, 144, 6, 1017.57, 22.37, 50.26,
	         328, 0.03, 3, 0.000000, 0, 0, 0, 2.410, 1]],
	"firmware_revision": 129
}`

func parse(t *testing.T, payload string, units domain.UnitSystem) []domain.Reading {
	t.Helper()
	readings, err := domain.ParsePacket(domain.RawPacket{
		Source:     domain.SourceUDP,
		Payload:    []byte(payload),
		ReceivedAt: time.Now(),
	}, units)
	require.NoError(t, err)
	return readings
}

func byName(readings []domain.Reading) map[domain.Name]domain.Reading {
	m := make(map[domain.Name]domain.Reading, len(readings))
	for _, r := range readings {
		m[r.Name] = r
	}
	return m
}

func TestParsePacket_ObsTempest(t *testing.T) {
	readings := parse(t, obsTempestPayload, domain.Metric)
	m := byName(readings)

	assert.Len(t, readings, len(m), "one reading per name")

	air, ok := m[domain.AirTemperature]
	require.True(t, ok)
	assert.InDelta(t, 22.37, air.Value, 0.001)
	assert.Equal(t, "°C", air.Unit)
	assert.Equal(t, "ST-00000512", air.Station)
	assert.Equal(t, time.Unix(1588948614, 0).UTC(), air.ObservedAt)

	assert.InDelta(t, 50.26, m[domain.RelativeHumidity].Value, 0.001)
	assert.InDelta(t, 1017.57, m[domain.StationPressure].Value, 0.001)
	assert.InDelta(t, 0.22, m[domain.WindAverage].Value, 0.001)
	assert.InDelta(t, 144, m[domain.WindDirection].Value, 0.001)
	assert.Equal(t, "SE", m[domain.WindDirectionCardinal].Text)
	assert.Equal(t, "none", m[domain.PrecipitationType].Text)
	assert.InDelta(t, 2.410, m[domain.Battery].Value, 0.001)
	assert.InDelta(t, 328, m[domain.Illuminance].Value, 0.001)
	assert.InDelta(t, 0.03, m[domain.UVIndex].Value, 0.001)
	assert.InDelta(t, 3, m[domain.SolarRadiation].Value, 0.001)
	assert.InDelta(t, 0, m[domain.LightningCount].Value, 0.001)

	// Derived metrics are present because temperature + humidity are.
	assert.InDelta(t, domain.DewPoint(22.37, 50.26), m[domain.DewPointTemperature].Value, 1e-9)
	assert.InDelta(t, domain.WetBulb(22.37, 50.26), m[domain.WetBulbTemperature].Value, 1e-9)
	assert.InDelta(t, domain.WetBulbGlobe(22.37, 50.26), m[domain.WetBulbGlobeTemperature].Value, 1e-9)
	assert.InDelta(t, 22.37, m[domain.FeelsLikeTemperature].Value, 0.001,
		"mild conditions: feels-like equals air temperature")
	assert.Contains(t, m, domain.AirDensityReading)
	assert.Contains(t, m, domain.VaporPressureReading)
	assert.Contains(t, m, domain.DeltaT)

	// Mild conditions sit outside both apparent-temperature regimes.
	assert.NotContains(t, m, domain.HeatIndexTemperature)
	assert.NotContains(t, m, domain.WindChillTemperature)
}

func TestParsePacket_ObsTempest_HotEmitsHeatIndex(t *testing.T) {
	payload := `{
		"serial_number": "ST-00000512",
		"type": "obs_st",
		"obs": [[1588948614, 1.0, 2.0, 3.0, 90, 3, 1010.0, 32.0, 70, 80000, 5, 800,
		         0.0, 0, 0, 0, 2.6, 1]]
	}`
	m := byName(parse(t, payload, domain.Metric))

	hi, ok := m[domain.HeatIndexTemperature]
	require.True(t, ok)
	assert.InDelta(t, domain.HeatIndex(32.0, 70.0), hi.Value, 1e-9)
	assert.InDelta(t, hi.Value, m[domain.FeelsLikeTemperature].Value, 1e-9,
		"hot and humid: feels-like is the heat index")
	assert.NotContains(t, m, domain.WindChillTemperature)
}

func TestParsePacket_ObsTempest_ColdWindEmitsWindChill(t *testing.T) {
	payload := `{
		"serial_number": "ST-00000512",
		"type": "obs_st",
		"obs": [[1588948614, 6.0, 8.0, 10.0, 350, 3, 1020.0, -5.0, 60, 0, 0, 0,
		         0.0, 0, 0, 0, 2.6, 1]]
	}`
	m := byName(parse(t, payload, domain.Metric))

	wc, ok := m[domain.WindChillTemperature]
	require.True(t, ok)
	assert.InDelta(t, domain.WindChill(-5.0, 8.0), wc.Value, 1e-9)
	assert.InDelta(t, wc.Value, m[domain.FeelsLikeTemperature].Value, 1e-9,
		"cold and windy: feels-like is the wind chill")
	assert.NotContains(t, m, domain.HeatIndexTemperature)
}

func TestParsePacket_ObsTempest_Imperial(t *testing.T) {
	m := byName(parse(t, obsTempestPayload, domain.Imperial))

	air := m[domain.AirTemperature]
	assert.InDelta(t, 72.266, air.Value, 0.001)
	assert.Equal(t, "°F", air.Unit)

	pressure := m[domain.StationPressure]
	assert.InDelta(t, 30.048, pressure.Value, 0.01)
	assert.Equal(t, "inHg", pressure.Unit)

	wind := m[domain.WindAverage]
	assert.Equal(t, "mph", wind.Unit)
	assert.InDelta(t, 0.492, wind.Value, 0.001)
}

func TestParsePacket_ObsTempest_NullSlots(t *testing.T) {
	// Temperature and humidity sensors offline: their slots are null, so no
	// base readings and no derived metrics may be emitted for them.
	payload := `{
		"serial_number": "ST-00000512",
		"type": "obs_st",
		"obs": [[1588948614, 0.18, 0.22, 0.27, 144, 6, 1017.57, null, null,
		         328, 0.03, 3, 0.0, 0, 0, 0, 2.410, 1]]
	}`
	m := byName(parse(t, payload, domain.Metric))

	assert.NotContains(t, m, domain.AirTemperature)
	assert.NotContains(t, m, domain.RelativeHumidity)
	assert.NotContains(t, m, domain.DewPointTemperature)
	assert.NotContains(t, m, domain.WetBulbTemperature)
	assert.NotContains(t, m, domain.FeelsLikeTemperature)
	assert.NotContains(t, m, domain.AirDensityReading)

	// Unaffected fields still produce readings.
	assert.Contains(t, m, domain.StationPressure)
	assert.Contains(t, m, domain.WindAverage)
}

func TestParsePacket_RapidWind(t *testing.T) {
	payload := `{
		"serial_number": "ST-00000512",
		"type": "rapid_wind",
		"hub_sn": "HB-00013030",
		"ob": [1588948614, 2.3, 128]
	}`
	m := byName(parse(t, payload, domain.Metric))

	assert.InDelta(t, 2.3, m[domain.WindSpeed].Value, 0.001)
	assert.InDelta(t, 128, m[domain.WindDirection].Value, 0.001)
	assert.Equal(t, "SE", m[domain.WindDirectionCardinal].Text)
}

func TestParsePacket_StrikeEvent(t *testing.T) {
	payload := `{
		"serial_number": "ST-00000512",
		"type": "evt_strike",
		"evt": [1588948614, 27, 3848]
	}`
	m := byName(parse(t, payload, domain.Metric))

	strike := m[domain.LightningDistance]
	assert.InDelta(t, 27, strike.Value, 0.001)
	assert.Equal(t, "km", strike.Unit)
}

func TestParsePacket_PrecipEvent(t *testing.T) {
	payload := `{
		"serial_number": "ST-00000512",
		"type": "evt_precip",
		"evt": [1588948614]
	}`
	m := byName(parse(t, payload, domain.Metric))
	assert.Equal(t, "rain", m[domain.PrecipitationType].Text)
}

func TestParsePacket_ObsAir(t *testing.T) {
	payload := `{
		"serial_number": "AR-00004049",
		"type": "obs_air",
		"obs": [[1588948614, 835.0, 10.0, 45, 0, 0, 3.46, 1]]
	}`
	m := byName(parse(t, payload, domain.Metric))

	assert.InDelta(t, 835.0, m[domain.StationPressure].Value, 0.001)
	assert.InDelta(t, 10.0, m[domain.AirTemperature].Value, 0.001)
	assert.InDelta(t, 45, m[domain.RelativeHumidity].Value, 0.001)
	assert.Contains(t, m, domain.DewPointTemperature)
	assert.Equal(t, "AR-00004049", m[domain.AirTemperature].Station)
}

func TestParsePacket_ObsSky(t *testing.T) {
	payload := `{
		"serial_number": "SK-00008453",
		"type": "obs_sky",
		"obs": [[1588948614, 9000, 10, 0.0, 2.6, 4.6, 7.4, 187, 3.12, 1, 130, null, 0, 3]]
	}`
	m := byName(parse(t, payload, domain.Metric))

	assert.InDelta(t, 9000, m[domain.Illuminance].Value, 0.001)
	assert.InDelta(t, 4.6, m[domain.WindAverage].Value, 0.001)
	assert.Equal(t, "S", m[domain.WindDirectionCardinal].Text)
	assert.Equal(t, "none", m[domain.PrecipitationType].Text)
	assert.NotContains(t, m, domain.AirTemperature)
}

func TestParsePacket_DeviceStatus(t *testing.T) {
	payload := `{
		"serial_number": "ST-00000512",
		"type": "device_status",
		"hub_sn": "HB-00013030",
		"timestamp": 1510855923,
		"uptime": 2189,
		"voltage": 3.50,
		"rssi": -17,
		"hub_rssi": -87
	}`
	m := byName(parse(t, payload, domain.Metric))

	assert.InDelta(t, 2189, m[domain.Uptime].Value, 0.001)
	assert.InDelta(t, 3.50, m[domain.Battery].Value, 0.001)
	assert.InDelta(t, -17, m[domain.RSSI].Value, 0.001)
	assert.InDelta(t, -87, m[domain.HubRSSI].Value, 0.001)
}

func TestParsePacket_HubStatus(t *testing.T) {
	payload := `{
		"serial_number": "HB-00013030",
		"type": "hub_status",
		"timestamp": 1495724691,
		"uptime": 1670133,
		"rssi": -62
	}`
	m := byName(parse(t, payload, domain.Metric))

	assert.InDelta(t, 1670133, m[domain.HubUptime].Value, 0.001)
	assert.InDelta(t, -62, m[domain.HubRSSI].Value, 0.001)
	assert.Equal(t, "HB-00013030", m[domain.HubUptime].Station)
}

func TestParsePacket_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{name: "not json", payload: "not-json{{{"},
		{name: "missing type", payload: `{"serial_number":"ST-1"}`},
		{name: "unknown type", payload: `{"type":"obs_unknown"}`},
		{name: "obs_st without obs", payload: `{"type":"obs_st","serial_number":"ST-1"}`},
		{name: "rapid_wind too short", payload: `{"type":"rapid_wind","ob":[1588948614]}`},
		{name: "evt_strike too short", payload: `{"type":"evt_strike","evt":[]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := domain.ParsePacket(domain.RawPacket{
				Source:  domain.SourceUDP,
				Payload: []byte(tt.payload),
			}, domain.Metric)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrParse)
		})
	}
}

func TestParsePacket_Deterministic(t *testing.T) {
	first := parse(t, obsTempestPayload, domain.Metric)
	second := parse(t, obsTempestPayload, domain.Metric)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("parse not deterministic (-first +second):\n%s", diff)
	}
}

func TestParsePacket_CloudObservation(t *testing.T) {
	payload := `{
		"station_id": 41299,
		"obs": [{
			"timestamp": 1588948614,
			"air_temperature": 20.5,
			"barometric_pressure": 1014.2,
			"sea_level_pressure": 1016.8,
			"relative_humidity": 61,
			"precip": 0.4,
			"wind_avg": 3.1,
			"wind_direction": 270,
			"wind_gust": 5.2,
			"uv": 4.3,
			"brightness": 43000,
			"lightning_strike_count": 2,
			"feels_like": 20.5,
			"heat_index": 20.5,
			"dew_point": 12.8,
			"wet_bulb_temperature": 15.6,
			"wet_bulb_globe_temperature": 17.1,
			"air_density": 1.19,
			"pressure_trend": "steady"
		}]
	}`
	readings, err := domain.ParsePacket(domain.RawPacket{
		Source:  domain.SourceCloud,
		Payload: []byte(payload),
	}, domain.Metric)
	require.NoError(t, err)
	m := byName(readings)

	assert.Equal(t, "41299", m[domain.AirTemperature].Station)
	assert.InDelta(t, 20.5, m[domain.AirTemperature].Value, 0.001)
	assert.InDelta(t, 1014.2, m[domain.StationPressure].Value, 0.001)
	assert.InDelta(t, 1016.8, m[domain.SeaLevelPressure].Value, 0.001)
	assert.InDelta(t, 12.8, m[domain.DewPointTemperature].Value, 0.001)
	assert.InDelta(t, 20.5, m[domain.HeatIndexTemperature].Value, 0.001)
	assert.InDelta(t, 17.1, m[domain.WetBulbGlobeTemperature].Value, 0.001)
	assert.Equal(t, "steady", m[domain.PressureTrend].Text)
	assert.Equal(t, "W", m[domain.WindDirectionCardinal].Text)

	// Fields absent from the response must not produce readings.
	assert.NotContains(t, m, domain.WindLull)
	assert.NotContains(t, m, domain.WindChillTemperature)
	assert.NotContains(t, m, domain.LightningDistance)
	assert.NotContains(t, m, domain.RainAccumulation)
}

func TestParsePacket_CloudEmptyObs(t *testing.T) {
	_, err := domain.ParsePacket(domain.RawPacket{
		Source:  domain.SourceCloud,
		Payload: []byte(`{"station_id": 41299, "obs": []}`),
	}, domain.Metric)
	assert.ErrorIs(t, err, domain.ErrParse)
}
