package domain

import "math"

// Magnus formula constants (Alduchov-Eskridge fit).
const (
	magnusA = 17.625
	magnusB = 243.04 // °C
)

// DewPoint computes the dew point in °C from air temperature (°C) and
// relative humidity (%) using the Magnus formula. 20°C at 50% RH ≈ 9.26°C.
func DewPoint(tempC, humidity float64) float64 {
	gamma := math.Log(humidity/100) + magnusA*tempC/(magnusB+tempC)
	return magnusB * gamma / (magnusA - gamma)
}

// WetBulb computes the wet-bulb temperature in °C using the Stull (2011)
// empirical fit, valid for RH between 5% and 99% at standard pressure.
func WetBulb(tempC, humidity float64) float64 {
	return tempC*math.Atan(0.151977*math.Sqrt(humidity+8.313659)) +
		math.Atan(tempC+humidity) -
		math.Atan(humidity-1.676331) +
		0.00391838*math.Pow(humidity, 1.5)*math.Atan(0.023101*humidity) -
		4.686035
}

// WetBulbGlobe estimates the wet-bulb globe temperature in °C without a globe
// thermometer, using the shade approximation 0.7·Tw + 0.3·Ta.
func WetBulbGlobe(tempC, humidity float64) float64 {
	return 0.7*WetBulb(tempC, humidity) + 0.3*tempC
}

// HeatIndex computes the NWS heat index in °C (Rothfusz regression, which is
// defined in °F). Only meaningful for warm, humid conditions; FeelsLike
// applies the threshold checks.
func HeatIndex(tempC, humidity float64) float64 {
	t := tempC*9/5 + 32
	r := humidity
	hi := -42.379 +
		2.04901523*t +
		10.14333127*r -
		0.22475541*t*r -
		6.83783e-3*t*t -
		5.481717e-2*r*r +
		1.22874e-3*t*t*r +
		8.5282e-4*t*r*r -
		1.99e-6*t*t*r*r
	return (hi - 32) * 5 / 9
}

// WindChill computes the NWS wind chill in °C from air temperature (°C) and
// wind speed (m/s). The formula operates on km/h.
func WindChill(tempC, windMS float64) float64 {
	v := math.Pow(windMS*3.6, 0.16)
	return 13.12 + 0.6215*tempC - 11.37*v + 0.3965*tempC*v
}

// Thresholds used by FeelsLike, matching the WeatherFlow apparent-temperature
// behavior: heat index above 80°F with RH ≥ 40%, wind chill below 50°F with
// wind above 3 mph.
const (
	heatIndexMinTempC    = 26.67
	heatIndexMinHumidity = 40.0
	windChillMaxTempC    = 10.0
	windChillMinWindMS   = 1.34
)

// FeelsLike selects the apparent temperature in °C: heat index in hot humid
// conditions, wind chill in cold windy conditions, otherwise the air
// temperature itself.
func FeelsLike(tempC, humidity, windMS float64) float64 {
	switch {
	case tempC >= heatIndexMinTempC && humidity >= heatIndexMinHumidity:
		return HeatIndex(tempC, humidity)
	case tempC <= windChillMaxTempC && windMS > windChillMinWindMS:
		return WindChill(tempC, windMS)
	default:
		return tempC
	}
}

// VaporPressure computes the partial pressure of water vapor in mbar from air
// temperature (°C) and relative humidity (%), using the Magnus saturation
// vapor pressure.
func VaporPressure(tempC, humidity float64) float64 {
	saturation := 6.112 * math.Exp(17.67*tempC/(tempC+243.5))
	return humidity / 100 * saturation
}

// AirDensity computes moist air density in kg/m³ from air temperature (°C),
// relative humidity (%), and station pressure (mbar).
func AirDensity(tempC, humidity, pressureMB float64) float64 {
	kelvin := tempC + 273.15
	vapor := VaporPressure(tempC, humidity)
	// 0.378 accounts for the lower molar mass of water vapor; 287.05 is the
	// specific gas constant for dry air.
	return (pressureMB - 0.378*vapor) * 100 / (287.05 * kelvin)
}

var compassPoints = [16]string{
	"N", "NNE", "NE", "ENE", "E", "ESE", "SE", "SSE",
	"S", "SSW", "SW", "WSW", "W", "WNW", "NW", "NNW",
}

// Cardinal maps a wind direction in degrees to a 16-point compass label.
// Degrees outside [0, 360) are normalized first.
func Cardinal(degrees float64) string {
	degrees = math.Mod(degrees, 360)
	if degrees < 0 {
		degrees += 360
	}
	idx := int(math.Round(degrees/22.5)) % 16
	return compassPoints[idx]
}
