//go:build linux

// Command magtest configures an RM3100 on a Linux SPI port and streams its
// readings as comma separated lines to stdout or a serial port.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/fang"
	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
	"github.com/mbalug7/go-rm3100/pkg/dac121"
	"github.com/mbalug7/go-rm3100/pkg/hal"
	"github.com/mbalug7/go-rm3100/pkg/rm3100"
	"github.com/mbalug7/go-rm3100/pkg/rpi"
	"github.com/mbalug7/go-rm3100/pkg/sampler"
	"github.com/spf13/cobra"
	"github.com/tarm/serial"
)

var version = "dev"

type options struct {
	spiDev     string
	dacSPIDev  string
	gpioChip   string
	magCS      int
	dacCS      int
	rate       int
	cycleCount uint16
	single     bool
	count      int
	interval   time.Duration
	serialPort string
	baud       int
	dacValue   int
	verbosity  int
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := fang.Execute(ctx, newRootCmd(run), fang.WithVersion(version)); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(runFn func(context.Context, *options) error) *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "magtest",
		Short: "Stream RM3100 magnetometer readings",
		Long: "magtest configures an RM3100 magnetometer on a Linux SPI port, reads it " +
			"periodically and writes x,y,z lines to stdout or a serial port. " +
			"Optionally sets a DAC121S101 sharing the board to a fixed output code.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFn(cmd.Context(), opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.spiDev, "spi", "/dev/spidev0.0", "spidev port of the magnetometer")
	f.StringVar(&opts.dacSPIDev, "dac-spi", "/dev/spidev0.1", "spidev port of the DAC")
	f.StringVar(&opts.gpioChip, "gpiochip", "gpiochip0", "GPIO chip holding the chip-select lines")
	f.IntVar(&opts.magCS, "mag-cs", 8, "GPIO offset of the magnetometer chip-select")
	f.IntVar(&opts.dacCS, "dac-cs", 7, "GPIO offset of the DAC chip-select")
	f.IntVar(&opts.rate, "rate", int(rm3100.DefaultUpdateRate), "continuous mode update rate index (0-14)")
	f.Uint16Var(&opts.cycleCount, "cycle-count", rm3100.DefaultCycleCount, "cycle count for all axes")
	f.BoolVar(&opts.single, "single", false, "trigger every reading instead of running in continuous mode")
	f.IntVar(&opts.count, "count", 0, "number of readings, 0 runs until interrupted")
	f.DurationVar(&opts.interval, "interval", 100*time.Millisecond, "time between readings")
	f.StringVar(&opts.serialPort, "serial", "", "write readings to this serial port instead of stdout")
	f.IntVar(&opts.baud, "baud", 115200, "serial port baud rate")
	f.IntVar(&opts.dacValue, "dac", -1, "DAC output code (0-4095), negative leaves the DAC alone")
	f.IntVarP(&opts.verbosity, "verbose", "v", 0, "log verbosity")
	return cmd
}

func run(ctx context.Context, opts *options) error {
	stdr.SetVerbosity(opts.verbosity)
	logger := stdr.New(log.New(os.Stderr, "", log.LstdFlags))

	bus := hal.NewBus(logger.WithName("bus"))

	magSPI, err := rpi.NewTransport(opts.spiDev)
	if err != nil {
		return err
	}
	defer magSPI.Close()
	magCS, err := rpi.NewChipSelect(opts.gpioChip, opts.magCS)
	if err != nil {
		return err
	}
	defer magCS.Close()

	mag, err := rm3100.New(magSPI, magCS, rm3100.WithBus(bus), rm3100.WithLogger(logger))
	if err != nil {
		return err
	}

	if opts.dacValue >= 0 {
		// the DAC port and select line stay open while sampling so the
		// line keeps driving high
		closeDAC, err := setDAC(opts, bus, logger, openRPiDAC)
		if err != nil {
			return err
		}
		defer closeDAC()
	}

	builder := rm3100.NewConfigBuilder(mag).CycleCount(opts.cycleCount)
	if opts.single {
		builder.Polled()
	} else {
		builder.Continuous(rm3100.UpdateRate(opts.rate))
	}
	rate, err := builder.Apply()
	if err != nil {
		return err
	}

	var src sampler.Source = sampler.Polled{Dev: mag}
	if !opts.single {
		logger.Info("continuous mode", "rate", rate.String())
		src = sampler.Continuous{Dev: mag}
		defer func() {
			if err := mag.StopContinuous(); err != nil {
				logger.Error(err, "failed to stop continuous mode")
			}
		}()
	}

	out, closeOut, err := openOutput(opts)
	if err != nil {
		return err
	}
	defer closeOut()

	s := &sampler.Sampler{
		Source:   src,
		Out:      out,
		Interval: opts.interval,
		Count:    opts.count,
		Log:      logger.WithName("sampler"),
	}
	return s.Run(ctx)
}

// dacOpener returns the DAC transport and chip-select line and the function
// that releases both.
type dacOpener func(opts *options) (hal.Transport, hal.ChipSelect, func(), error)

func openRPiDAC(opts *options) (hal.Transport, hal.ChipSelect, func(), error) {
	dacSPI, err := rpi.NewTransport(opts.dacSPIDev)
	if err != nil {
		return nil, nil, nil, err
	}
	dacCS, err := rpi.NewChipSelect(opts.gpioChip, opts.dacCS)
	if err != nil {
		dacSPI.Close()
		return nil, nil, nil, err
	}
	release := func() {
		dacCS.Close()
		dacSPI.Close()
	}
	return dacSPI, dacCS, release, nil
}

// setDAC writes the requested code and returns the function that releases
// the DAC port and chip-select line. Until then the line stays driven high.
func setDAC(opts *options, bus *hal.Bus, logger logr.Logger, open dacOpener) (func(), error) {
	t, cs, release, err := open(opts)
	if err != nil {
		return nil, err
	}
	dac, err := dac121.New(t, cs, dac121.WithBus(bus), dac121.WithLogger(logger))
	if err != nil {
		release()
		return nil, err
	}
	if opts.dacValue > int(dac121.Max) {
		logger.Info("dac code above full scale, upper bits dropped", "code", opts.dacValue)
	}
	if err := dac.Write(uint16(opts.dacValue)); err != nil {
		release()
		return nil, err
	}
	return release, nil
}

func openOutput(opts *options) (io.Writer, func(), error) {
	if opts.serialPort == "" {
		return os.Stdout, func() {}, nil
	}
	port, err := serial.OpenPort(&serial.Config{
		Name:        opts.serialPort,
		Baud:        opts.baud,
		Size:        8,
		ReadTimeout: 2 * time.Second,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open serial port, err: %w", err)
	}
	return port, func() { port.Close() }, nil
}
