package display

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Channel is the byte-oriented brightness control the fade engine writes
// to. Implementations must reject values outside [0, Max].
type Channel interface {
	ReadCurrent() (int, error)
	Write(value int) error
	Max() int
}

// SysfsBacklight drives a kernel backlight device through its sysfs
// brightness file.
type SysfsBacklight struct {
	brightnessPath string
	max            int
}

// NewSysfsBacklight resolves the given glob pattern (typically
// /sys/class/backlight/*/brightness) to the first matching device and
// reads its max_brightness.
func NewSysfsBacklight(pattern string) (*SysfsBacklight, error) {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("bad backlight pattern %q: %w", pattern, err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no backlight device matches %q", pattern)
	}
	path := matches[0]

	max, err := readSysfsInt(filepath.Join(filepath.Dir(path), "max_brightness"))
	if err != nil {
		return nil, fmt.Errorf("can't read max brightness for %s: %w", path, err)
	}

	return &SysfsBacklight{brightnessPath: path, max: max}, nil
}

func (b *SysfsBacklight) ReadCurrent() (int, error) {
	return readSysfsInt(b.brightnessPath)
}

func (b *SysfsBacklight) Write(value int) error {
	if value < 0 || value > b.max {
		return fmt.Errorf("brightness %d outside [0,%d]", value, b.max)
	}
	return os.WriteFile(b.brightnessPath, []byte(strconv.Itoa(value)), 0o644)
}

func (b *SysfsBacklight) Max() int {
	return b.max
}

func readSysfsInt(path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(raw)))
}
