package platform

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/homedash/presenced/sensor"
)

// The time-of-flight driver exposes each ranging frame as a single sysfs
// attribute: a sequence number followed by distance/status pairs for all
// 64 zones. Target status codes follow the ST convention where 6 is a
// valid target and 13 a valid target with low signal.
const (
	frameAttr       = "ranging_frame"
	statusValid     = 6
	statusLowSig    = 13
	zoneThresholdMM = 2000
	minRangeMM      = 50
	maxRangeMM      = 4000
)

// centerZones are the inner 4x4 of the 8x8 grid. The edge zones mostly
// see walls and furniture, so only the center block feeds detection.
var centerZones = []int{18, 19, 20, 21, 26, 27, 28, 29, 34, 35, 36, 37, 42, 43, 44, 45}

// tofSource reads ranging frames from the time-of-flight device's sysfs
// attribute. An optional dataReady gate (the interrupt pin on the Pi)
// skips the file read entirely when no new frame has arrived.
type tofSource struct {
	framePath string
	dataReady func() bool
	lastSeq   uint64
	haveSeq   bool
}

func newTofSource(devicePath string, dataReady func() bool) *tofSource {
	return &tofSource{
		framePath: filepath.Join(devicePath, frameAttr),
		dataReady: dataReady,
	}
}

func (t *tofSource) Init() error {
	if _, err := os.Stat(t.framePath); err != nil {
		return fmt.Errorf("ranging frame attribute not readable: %w", err)
	}
	return nil
}

func (t *tofSource) Close() {}

func (t *tofSource) Read() sensor.Result[sensor.ProximityReading] {
	if t.dataReady != nil && !t.dataReady() {
		return sensor.Stale[sensor.ProximityReading]()
	}

	raw, err := os.ReadFile(t.framePath)
	if err != nil {
		return sensor.Failed[sensor.ProximityReading](err)
	}

	seq, reading, err := parseRangingFrame(string(raw))
	if err != nil {
		return sensor.Failed[sensor.ProximityReading](err)
	}
	if t.haveSeq && seq == t.lastSeq {
		return sensor.Stale[sensor.ProximityReading]()
	}
	t.lastSeq = seq
	t.haveSeq = true

	return sensor.Ok(reading)
}

// parseRangingFrame turns "<seq> <dist>/<status> ..." into a reading over
// the center zones: closest valid distance, count of zones with a valid
// target within two meters. A frame with no valid zone yields an invalid
// reading at maximum range.
func parseRangingFrame(raw string) (uint64, sensor.ProximityReading, error) {
	fields := strings.Fields(raw)
	if len(fields) < 2 {
		return 0, sensor.ProximityReading{}, fmt.Errorf("short ranging frame: %d fields", len(fields))
	}
	seq, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		return 0, sensor.ProximityReading{}, fmt.Errorf("bad frame sequence %q: %w", fields[0], err)
	}
	zones := fields[1:]

	minDist := maxRangeMM
	inRange := 0
	anyValid := false
	for _, zi := range centerZones {
		if zi >= len(zones) {
			continue
		}
		distStr, statusStr, found := strings.Cut(zones[zi], "/")
		if !found {
			continue
		}
		dist, err1 := strconv.Atoi(distStr)
		status, err2 := strconv.Atoi(statusStr)
		if err1 != nil || err2 != nil {
			continue
		}
		if status != statusValid && status != statusLowSig {
			continue
		}
		if dist < minRangeMM || dist > maxRangeMM {
			continue
		}
		anyValid = true
		if dist < minDist {
			minDist = dist
		}
		if dist <= zoneThresholdMM {
			inRange++
		}
	}

	return seq, sensor.ProximityReading{
		DistanceMM:   minDist,
		ZonesInRange: inRange,
		Valid:        anyValid,
		Timestamp:    time.Now(),
	}, nil
}

// iioLight reads the standard IIO illuminance attribute.
type iioLight struct {
	path string
}

func newIIOLight(devicePath string) *iioLight {
	return &iioLight{path: filepath.Join(devicePath, "in_illuminance_input")}
}

func (l *iioLight) Init() error {
	if _, err := os.Stat(l.path); err != nil {
		return fmt.Errorf("illuminance attribute not readable: %w", err)
	}
	return nil
}

func (l *iioLight) Close() {}

func (l *iioLight) Read() sensor.Result[sensor.LightReading] {
	lux, err := readSysfsFloat(l.path)
	if err != nil {
		return sensor.Failed[sensor.LightReading](err)
	}
	return sensor.Ok(sensor.LightReading{Lux: lux, Valid: true, Timestamp: time.Now()})
}

// iioEnvironment reads the standard IIO attributes of a combined
// temperature/humidity/pressure/gas sensor. Units per the IIO ABI:
// millidegrees, milli-percent, kilopascal, ohms.
type iioEnvironment struct {
	devicePath string
}

func newIIOEnvironment(devicePath string) *iioEnvironment {
	return &iioEnvironment{devicePath: devicePath}
}

func (e *iioEnvironment) Init() error {
	if _, err := os.Stat(filepath.Join(e.devicePath, "in_temp_input")); err != nil {
		return fmt.Errorf("temperature attribute not readable: %w", err)
	}
	return nil
}

func (e *iioEnvironment) Close() {}

func (e *iioEnvironment) Read() sensor.Result[sensor.EnvironmentalReading] {
	temp, err := readSysfsFloat(filepath.Join(e.devicePath, "in_temp_input"))
	if err != nil {
		return sensor.Failed[sensor.EnvironmentalReading](err)
	}
	hum, err := readSysfsFloat(filepath.Join(e.devicePath, "in_humidityrelative_input"))
	if err != nil {
		return sensor.Failed[sensor.EnvironmentalReading](err)
	}
	pres, err := readSysfsFloat(filepath.Join(e.devicePath, "in_pressure_input"))
	if err != nil {
		return sensor.Failed[sensor.EnvironmentalReading](err)
	}
	// Gas resistance is optional; not every board variant has the element.
	gas, err := readSysfsFloat(filepath.Join(e.devicePath, "in_resistance_raw"))
	if err != nil {
		gas = 0
	}

	return sensor.Ok(sensor.EnvironmentalReading{
		TemperatureC:      temp / 1000.0,
		HumidityPercent:   hum / 1000.0,
		PressureHPa:       pres * 10.0,
		GasResistanceOhms: gas,
		Valid:             true,
		Timestamp:         time.Now(),
	})
}

func readSysfsFloat(path string) (float64, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(strings.TrimSpace(string(raw)), 64)
}
