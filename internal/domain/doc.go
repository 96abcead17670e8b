// Package domain models WeatherFlow Tempest station observations.
//
// # Data Sources
//
// A Tempest hub broadcasts JSON packets over UDP port 50222 on the local
// network. The same observations (plus server-computed derived values) are
// available from the WeatherFlow cloud REST API at
// https://swd.weatherflow.com/swd/rest/observations/station/{id}. Packet
// layouts follow the published UDP reference
// (https://weatherflow.github.io/Tempest/api/udp/).
//
// # UDP Packet Conventions
//
// Observation packets ("obs_st", "obs_air", "obs_sky") carry positional
// arrays; a slot is null when the sensor had no sample, so slots decode into
// pointers and absent slots produce no reading.
//
// obs_st layout (Tempest combined sensor):
//
//	[epoch, wind lull m/s, wind avg m/s, wind gust m/s, wind direction °,
//	 wind sample interval s, station pressure mbar, air temperature °C,
//	 relative humidity %, illuminance lx, UV index, solar radiation W/m²,
//	 rain over previous minute mm, precipitation type, lightning average
//	 distance km, lightning strike count, battery V, report interval min]
//
// Precipitation type codes: 0 none, 1 rain, 2 hail, 3 rain + hail.
//
// Event packets: "rapid_wind" carries [epoch, speed m/s, direction °] every
// ~3 seconds; "evt_strike" carries [epoch, distance km, energy];
// "evt_precip" carries [epoch] at rain start. Status packets
// ("device_status", "hub_status") are flat JSON objects with diagnostics.
//
// Device-native units are always metric. Normalization converts into the
// configured unit system (°F, mph, inHg, in, mi for imperial).
//
// # Derived Metrics
//
// Local packets do not include the comfort metrics the cloud API computes,
// so the normalizer derives them with fixed formulas:
//
//   - Dew point: Magnus formula, a=17.625, b=243.04°C (Alduchov-Eskridge).
//   - Wet bulb: Stull (2011) empirical fit, valid RH 5–99%.
//   - Feels like: NWS heat index (Rothfusz) when T ≥ 80°F and RH ≥ 40%, NWS
//     wind chill when T ≤ 50°F and wind > 3 mph, otherwise air temperature.
//   - Vapor pressure: Magnus saturation pressure scaled by RH.
//   - Air density: ideal gas with the 0.378 vapor-pressure correction.
//   - Delta-T: air temperature minus wet bulb (spray-drift metric).
//
// All derivations are pure functions of the same packet's readings: given
// fixed inputs the output is bit-reproducible, and a derivation is skipped
// (never errors) when an input is absent.
package domain
