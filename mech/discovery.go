//go:build linux

package mech

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jochenvg/go-udev"
)

// DiscoverGPIOChip enumerates GPIO character devices on the host via
// udev, ranks them with score (Config.DeviceSelectionScore), and returns
// the device node of the best-ranked candidate. It mirrors the reference
// analyser's openDwfDevice(score_func=maximize_digital_in_buffer_size):
// pick the candidate that maximises whatever the caller cares about, here
// typically line count.
func DiscoverGPIOChip(score func(DeviceInfo) int) (string, error) {
	u := udev.Udev{}
	enum := u.NewEnumerate()
	if err := enum.AddMatchSubsystem("gpio"); err != nil {
		return "", fmt.Errorf("%w: matching gpio subsystem: %v", ErrDeviceError, err)
	}

	devices, err := enum.Devices()
	if err != nil {
		return "", fmt.Errorf("%w: enumerating gpio devices: %v", ErrDeviceError, err)
	}

	var candidates []DeviceInfo
	for _, d := range devices {
		if d == nil {
			continue
		}
		if !strings.HasPrefix(d.Sysname(), "gpiochip") {
			continue
		}
		node := d.Devnode()
		if node == "" {
			continue
		}

		lines := 0
		if v := d.PropertyValue("GPIO_NGPIO"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				lines = n
			}
		}

		candidates = append(candidates, DeviceInfo{
			Path:  node,
			Label: d.PropertyValue("GPIO_NAME"),
			Lines: lines,
		})
	}

	if len(candidates) == 0 {
		return "", ErrDeviceNotFound
	}

	best := candidates[0]
	bestScore := score(best)
	for _, c := range candidates[1:] {
		if s := score(c); s > bestScore {
			best, bestScore = c, s
		}
	}
	return best.Path, nil
}
