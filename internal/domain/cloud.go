package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// cloudResponse is the body of GET /observations/station/{id}. The cloud API
// computes the derived metrics server-side, so they are consumed directly
// instead of recomputed.
type cloudResponse struct {
	StationID int                `json:"station_id"`
	Obs       []cloudObservation `json:"obs"`
}

type cloudObservation struct {
	Timestamp                int64    `json:"timestamp"`
	AirTemperature           *float64 `json:"air_temperature"`
	BarometricPressure       *float64 `json:"barometric_pressure"`
	SeaLevelPressure         *float64 `json:"sea_level_pressure"`
	RelativeHumidity         *float64 `json:"relative_humidity"`
	Precip                   *float64 `json:"precip"`
	PrecipAccumLocalDay      *float64 `json:"precip_accum_local_day"`
	WindAvg                  *float64 `json:"wind_avg"`
	WindDirection            *float64 `json:"wind_direction"`
	WindGust                 *float64 `json:"wind_gust"`
	WindLull                 *float64 `json:"wind_lull"`
	SolarRadiation           *float64 `json:"solar_radiation"`
	UV                       *float64 `json:"uv"`
	Brightness               *float64 `json:"brightness"`
	LightningStrikeCount     *float64 `json:"lightning_strike_count"`
	LightningStrikeLastDist  *float64 `json:"lightning_strike_last_distance"`
	FeelsLike                *float64 `json:"feels_like"`
	HeatIndex                *float64 `json:"heat_index"`
	WindChill                *float64 `json:"wind_chill"`
	DewPoint                 *float64 `json:"dew_point"`
	WetBulbTemperature       *float64 `json:"wet_bulb_temperature"`
	WetBulbGlobeTemperature  *float64 `json:"wet_bulb_globe_temperature"`
	DeltaT                   *float64 `json:"delta_t"`
	AirDensity               *float64 `json:"air_density"`
	PressureTrend            *string  `json:"pressure_trend"`
}

func parseCloudObservation(payload []byte, units UnitSystem) ([]Reading, error) {
	var resp cloudResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if len(resp.Obs) == 0 {
		return nil, fmt.Errorf("%w: station response without observations", ErrParse)
	}

	obs := resp.Obs[0]
	b := &builder{
		station:    strconv.Itoa(resp.StationID),
		observedAt: time.Unix(obs.Timestamp, 0).UTC(),
	}
	if obs.Timestamp == 0 {
		b.observedAt = clock.Now().UTC()
	}

	b.add(AirTemperature, obs.AirTemperature, units.Temperature)
	b.add(StationPressure, obs.BarometricPressure, units.Pressure)
	b.add(SeaLevelPressure, obs.SeaLevelPressure, units.Pressure)
	b.add(RelativeHumidity, obs.RelativeHumidity, raw("%"))
	b.add(RainRate, obs.Precip, units.PrecipitationRate)
	b.add(RainAccumulation, obs.PrecipAccumLocalDay, units.Precipitation)
	b.add(WindAverage, obs.WindAvg, units.Speed)
	b.add(WindDirection, obs.WindDirection, raw("°"))
	b.add(WindGust, obs.WindGust, units.Speed)
	b.add(WindLull, obs.WindLull, units.Speed)
	b.add(SolarRadiation, obs.SolarRadiation, raw("W/m²"))
	b.add(UVIndex, obs.UV, raw(""))
	b.add(Illuminance, obs.Brightness, raw("lx"))
	b.add(LightningCount, obs.LightningStrikeCount, raw(""))
	b.add(LightningDistance, obs.LightningStrikeLastDist, units.Distance)
	b.add(FeelsLikeTemperature, obs.FeelsLike, units.Temperature)
	b.add(HeatIndexTemperature, obs.HeatIndex, units.Temperature)
	b.add(WindChillTemperature, obs.WindChill, units.Temperature)
	b.add(DewPointTemperature, obs.DewPoint, units.Temperature)
	b.add(WetBulbTemperature, obs.WetBulbTemperature, units.Temperature)
	b.add(WetBulbGlobeTemperature, obs.WetBulbGlobeTemperature, units.Temperature)
	b.add(DeltaT, obs.DeltaT, units.Temperature)
	b.add(AirDensityReading, obs.AirDensity, raw("kg/m³"))
	if obs.PressureTrend != nil {
		b.addText(PressureTrend, *obs.PressureTrend)
	}
	appendCardinal(b, obs.WindDirection)

	return b.readings, nil
}
