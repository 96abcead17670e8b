// Command simulate broadcasts synthetic station datagrams so the bridge can
// be exercised without hardware on the network. It emits a rapid_wind packet
// every interval and a full obs_st observation every minute, with lightly
// jittered values.
//
// Usage:
//
//	go run ./cmd/simulate -addr 127.0.0.1:50222 -interval 3s
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net"
	"time"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:50222", "destination address for datagrams")
	interval := flag.Duration("interval", 3*time.Second, "delay between rapid_wind packets")
	serial := flag.String("serial", "ST-00000512", "device serial number")
	hub := flag.String("hub", "HB-00013030", "hub serial number")
	count := flag.Int("count", 0, "number of packets to send, 0 for unlimited")
	flag.Parse()

	conn, err := net.Dial("udp", *addr)
	if err != nil {
		log.Fatalf("dial %s: %v", *addr, err)
	}
	defer conn.Close()

	log.Printf("broadcasting to %s every %s", *addr, *interval)

	s := &simulator{serial: *serial, hub: *hub}
	sent := 0
	lastObs := time.Time{}

	for {
		now := time.Now()

		payload := s.rapidWind(now)
		if now.Sub(lastObs) >= time.Minute {
			payload = s.observation(now)
			lastObs = now
		}

		if _, err := conn.Write(payload); err != nil {
			log.Fatalf("send: %v", err)
		}
		sent++
		log.Printf("sent %d bytes", len(payload))

		if *count > 0 && sent >= *count {
			return
		}
		time.Sleep(*interval)
	}
}

type simulator struct {
	serial string
	hub    string
}

// rapidWind builds a rapid_wind packet with a wandering wind vector.
func (s *simulator) rapidWind(now time.Time) []byte {
	msg := map[string]any{
		"serial_number": s.serial,
		"type":          "rapid_wind",
		"hub_sn":        s.hub,
		"ob": []any{
			now.Unix(),
			round1(1.5 + rand.Float64()*3),
			float64(rand.Intn(360)),
		},
	}
	return mustMarshal(msg)
}

// observation builds a full obs_st packet around plausible spring conditions.
func (s *simulator) observation(now time.Time) []byte {
	temp := round1(14 + rand.Float64()*8)
	humidity := float64(45 + rand.Intn(35))
	windAvg := round1(1 + rand.Float64()*4)

	pressure := round1(1008 + rand.Float64()*12)
	battery := round1(2.5 + rand.Float64()*0.3)

	obs := []any{
		now.Unix(),                 // epoch
		round1(windAvg * 0.6),      // wind lull
		windAvg,                    // wind avg
		round1(windAvg * 1.8),      // wind gust
		float64(rand.Intn(360)),    // wind direction
		3,                          // sample interval
		pressure,                   // station pressure mbar
		temp,                       // air temperature C
		humidity,                   // relative humidity %
		float64(rand.Intn(80000)),  // illuminance lx
		round1(rand.Float64() * 6), // UV index
		float64(rand.Intn(900)),    // solar radiation W/m2
		0.0,                        // rain last minute mm
		0,                          // precip type
		0.0,                        // lightning avg distance km
		0,                          // lightning count
		battery,                    // battery V
		1,                          // report interval min
	}

	msg := map[string]any{
		"serial_number":     s.serial,
		"type":              "obs_st",
		"hub_sn":            s.hub,
		"obs":               []any{obs},
		"firmware_revision": 176,
	}
	return mustMarshal(msg)
}

func mustMarshal(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("marshal packet: %v", err))
	}
	return data
}

func round1(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}
