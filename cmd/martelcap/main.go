//go:build linux

// Command martelcap is a thin CLI wrapper around the mech package: it
// drives a real capture to CSV, or renders a previously captured CSV to
// a PNG printout. Neither operation is mandated by the core (spec.md
// section 6); this is scaffolding for manual use and smoke-testing.
package main

import (
	"context"
	"fmt"
	"image/png"
	"os"
	"time"

	"github.com/lestrrat-go/strftime"
	"github.com/spf13/pflag"

	"github.com/sullyy9/martel-integration-testing/mech"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "martelcap:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := pflag.NewFlagSet("martelcap", pflag.ContinueOnError)

	capture := fs.Bool("capture", false, "capture live printer signals to a CSV file")
	duration := fs.Duration("duration", 10*time.Second, "how long to wait for the capture to complete")
	render := fs.String("render", "", "render a previously captured CSV file to a PNG printout")
	out := fs.String("out", "", "output file path (default: timestamped name in the current directory)")
	chip := fs.String("gpiochip", "", "GPIO chip device to use for --capture (default: auto-discover)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	switch {
	case *capture:
		return runCapture(*duration, *chip, *out)
	case *render != "":
		return runRender(*render, *out)
	default:
		fs.Usage()
		return fmt.Errorf("one of --capture or --render is required")
	}
}

func runCapture(duration time.Duration, chip, out string) error {
	cfg := mech.DefaultConfig()

	if chip == "" {
		var err error
		chip, err = mech.DiscoverGPIOChip(cfg.DeviceSelectionScore)
		if err != nil {
			return fmt.Errorf("discovering analyser: %w", err)
		}
	}

	source := mech.NewGPIOSource(chip, defaultSignalOffsets(), defaultCounterInOffsets(), defaultCounterOutOffsets())
	orch := mech.NewOrchestrator(source, source, cfg, mech.NewLogger(os.Stderr))
	defer orch.Close()

	ctx, cancel := context.WithTimeout(context.Background(), duration+time.Second)
	defer cancel()

	if err := orch.StartCapture(ctx); err != nil {
		return fmt.Errorf("starting capture: %w", err)
	}
	if err := orch.AwaitCaptureCompletion(ctx, duration); err != nil {
		return fmt.Errorf("awaiting capture: %w", err)
	}

	if out == "" {
		out = timestampedName("capture-%Y%m%dT%H%M%S.csv")
	}
	if err := orch.ExportRawData(out); err != nil {
		return fmt.Errorf("exporting raw data: %w", err)
	}
	fmt.Println(out)
	return nil
}

func runRender(csvPath, out string) error {
	reader, err := mech.NewCSVReader(csvPath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", csvPath, err)
	}
	defer reader.Close()

	records, err := mech.ReadAllRecords(reader)
	if err != nil {
		return fmt.Errorf("reading %s: %w", csvPath, err)
	}
	if len(records) == 0 {
		return fmt.Errorf("%s contains no sample records", csvPath)
	}

	emulator := mech.NewEmulator(records[0])
	for _, r := range records[1:] {
		emulator.Update(r)
	}
	printout := mech.Rasterise(emulator, mech.DefaultBurnGainK)

	if out == "" {
		out = timestampedName("printout-%Y%m%dT%H%M%S.png")
	}
	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("creating %s: %w", out, err)
	}
	defer f.Close()

	if err := png.Encode(f, printout.Gray); err != nil {
		return fmt.Errorf("encoding %s: %w", out, err)
	}
	fmt.Println(out)
	return nil
}

func timestampedName(pattern string) string {
	f, err := strftime.New(pattern)
	if err != nil {
		return "output"
	}
	return f.FormatString(time.Now())
}

// defaultSignalOffsets, defaultCounterInOffsets and defaultCounterOutOffsets
// describe a typical lab wiring: signals on GPIO 0-5, counter inputs on
// 8-15, counter outputs on 16-23. Rigs wired differently should construct
// a mech.GPIOSource directly instead of using this CLI.
func defaultSignalOffsets() [6]int     { return [6]int{0, 1, 2, 3, 4, 5} }
func defaultCounterInOffsets() [8]int  { return [8]int{8, 9, 10, 11, 12, 13, 14, 15} }
func defaultCounterOutOffsets() [8]int { return [8]int{16, 17, 18, 19, 20, 21, 22, 23} }
