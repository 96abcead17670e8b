// Command decode parses station packets from a file or stdin and prints the
// readings they normalize into, including derived metrics. Useful for
// inspecting captured broadcasts.
//
// Usage:
//
//	go run ./cmd/decode -units imperial < packet.json
//	go run ./cmd/decode -file captures.jsonl
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/couchcryptid/tempest-station-bridge/internal/domain"
)

func main() {
	file := flag.String("file", "", "file with one JSON packet per line, defaults to stdin")
	units := flag.String("units", "metric", "unit system: metric or imperial")
	flag.Parse()

	system := domain.UnitSystem(*units)
	if !system.Valid() {
		fmt.Fprintf(os.Stderr, "invalid -units %q\n", *units)
		os.Exit(1)
	}

	var in io.Reader = os.Stdin
	if *file != "" {
		f, err := os.Open(*file)
		if err != nil {
			fmt.Fprintf(os.Stderr, "open %s: %v\n", *file, err)
			os.Exit(1)
		}
		defer f.Close()
		in = f
	}

	if code := decodeAll(in, system); code != 0 {
		os.Exit(code)
	}
}

func decodeAll(in io.Reader, units domain.UnitSystem) int {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 64*1024)

	failures := 0
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		readings, err := domain.ParsePacket(domain.RawPacket{
			Source:     domain.SourceUDP,
			Payload:    line,
			ReceivedAt: time.Now().UTC(),
		}, units)
		if err != nil {
			fmt.Fprintf(os.Stderr, "line %d: %v\n", lineNum, err)
			failures++
			continue
		}

		printReadings(lineNum, readings)
	}
	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "read input: %v\n", err)
		return 1
	}
	if failures > 0 {
		return 1
	}
	return 0
}

func printReadings(lineNum int, readings []domain.Reading) {
	if len(readings) == 0 {
		fmt.Printf("line %d: no readings\n", lineNum)
		return
	}

	fmt.Printf("line %d: station %s, %s (%d readings)\n",
		lineNum, readings[0].Station, readings[0].ObservedAt.Format(time.RFC3339), len(readings))
	for _, r := range readings {
		if r.IsText() {
			fmt.Printf("  %-28s %s\n", r.Name, r.Text)
			continue
		}
		fmt.Printf("  %-28s %.2f %s\n", r.Name, r.Value, r.Unit)
	}
}
