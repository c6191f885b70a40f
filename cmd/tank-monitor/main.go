// Command tank-monitor measures water flow and tank fill level on GPIO
// hardware, arbitrates the alert LEDs and buzzer, persists usage state,
// and serves status and configuration over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sweeney/tank-monitor/internal/config"
	"github.com/sweeney/tank-monitor/internal/gpio"
	"github.com/sweeney/tank-monitor/internal/meter"
	"github.com/sweeney/tank-monitor/internal/nvram"
	"github.com/sweeney/tank-monitor/internal/status"
	"github.com/sweeney/tank-monitor/internal/web"
)

// blinkInterval is how often the current alert decision is re-applied to
// the indicator lines between ticks, so the leak overlay actually blinks.
const blinkInterval = 500 * time.Millisecond

func main() {
	def := config.Default()

	configPath := flag.String("config", "", "YAML config file (explicit flags win over file values)")
	tick := flag.Duration("tick", def.Tick.Std(), "Measurement interval")
	samples := flag.Int("samples", def.Samples, "Ranging samples per tick")
	sampleGap := flag.Duration("sample-gap", def.SampleGap.Std(), "Delay between ranging samples")
	leakAfter := flag.Duration("leak-after", def.LeakAfter.Std(), "Continuous flow duration that flags a leak")
	httpAddr := flag.String("http", def.HTTPAddr, "HTTP status address")
	nvramPath := flag.String("nvram", def.NVRAMPath, "State image path")
	pinPulse := flag.Int("pin-pulse", def.Pins.Pulse, "BCM pin number for the flow sensor")
	pinTrigger := flag.Int("pin-trigger", def.Pins.Trigger, "BCM pin number for the ultrasonic trigger")
	pinEcho := flag.Int("pin-echo", def.Pins.Echo, "BCM pin number for the ultrasonic echo")
	pinLEDGreen := flag.Int("pin-led-green", def.Pins.LEDGreen, "BCM pin number for the green LED")
	pinLEDYellow := flag.Int("pin-led-yellow", def.Pins.LEDYellow, "BCM pin number for the yellow LED")
	pinLEDRed := flag.Int("pin-led-red", def.Pins.LEDRed, "BCM pin number for the red LED")
	pinBuzzer := flag.Int("pin-buzzer", def.Pins.Buzzer, "BCM pin number for the buzzer")
	printState := flag.Bool("print-state", false, "Print current distance and level, then exit")

	flag.Parse()

	cfg := def
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("fatal: %v", err)
		}
		cfg = loaded
	}

	// Explicitly set flags override file values. Unset flags carry the
	// stock defaults, which the file (if any) already replaced.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "tick":
			cfg.Tick = config.Duration(*tick)
		case "samples":
			cfg.Samples = *samples
		case "sample-gap":
			cfg.SampleGap = config.Duration(*sampleGap)
		case "leak-after":
			cfg.LeakAfter = config.Duration(*leakAfter)
		case "http":
			cfg.HTTPAddr = *httpAddr
		case "nvram":
			cfg.NVRAMPath = *nvramPath
		case "pin-pulse":
			cfg.Pins.Pulse = *pinPulse
		case "pin-trigger":
			cfg.Pins.Trigger = *pinTrigger
		case "pin-echo":
			cfg.Pins.Echo = *pinEcho
		case "pin-led-green":
			cfg.Pins.LEDGreen = *pinLEDGreen
		case "pin-led-yellow":
			cfg.Pins.LEDYellow = *pinLEDYellow
		case "pin-led-red":
			cfg.Pins.LEDRed = *pinLEDRed
		case "pin-buzzer":
			cfg.Pins.Buzzer = *pinBuzzer
		}
	})

	if err := cfg.Validate(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
	if err := run(cfg, *printState); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(cfg config.Config, printState bool) error {
	// Initialize GPIO
	ranger, err := gpio.NewRealRanger(cfg.Pins.Trigger, cfg.Pins.Echo)
	if err != nil {
		return fmt.Errorf("init ranger: %w", err)
	}
	defer ranger.Close()

	// Print state mode
	if printState {
		dist, err := gpio.AverageDistance(ranger, cfg.Samples, cfg.SampleGap.Std(), time.Sleep)
		if err != nil {
			return fmt.Errorf("read ranger: %w", err)
		}
		fmt.Printf("distance: %.1f cm, level: %.1f%%\n", dist, meter.LevelPercent(dist))
		return nil
	}

	pulses, err := gpio.NewRealPulseSource(cfg.Pins.Pulse)
	if err != nil {
		return fmt.Errorf("init pulse source: %w", err)
	}
	defer pulses.Close()

	indicators, err := gpio.NewRealIndicators(cfg.Pins.LEDGreen, cfg.Pins.LEDYellow, cfg.Pins.LEDRed, cfg.Pins.Buzzer)
	if err != nil {
		return fmt.Errorf("init indicators: %w", err)
	}
	defer indicators.Close()

	// Restore persisted state, defaulting whatever fails its range check
	dev, err := nvram.OpenFile(cfg.NVRAMPath)
	if err != nil {
		return fmt.Errorf("open state image: %w", err)
	}
	defer dev.Close()

	rec, defaulted, err := nvram.Load(dev)
	if err != nil {
		log.Printf("state load error, continuing on defaults: %v", err)
	}
	log.Printf("state loaded: total=%.1fL daily=%.1fL calibration=%.1f capacity=%d thresholds=%d/%d/%d day=%d alerts=%v",
		rec.TotalLiters, rec.DailyLiters, rec.Settings.CalibrationPPL, rec.Settings.CapacityLiters,
		rec.Settings.AlertLow, rec.Settings.AlertMid, rec.Settings.AlertHigh, rec.DayMarker, rec.Settings.AlertsEnabled)
	if len(defaulted) > 0 {
		log.Printf("state fields defaulted: %s", strings.Join(defaulted, ", "))
		if err := nvram.Save(dev, rec); err != nil {
			log.Printf("state write-back error: %v", err)
		}
	}

	startTime := time.Now()
	engine := meter.NewEngine(meter.EngineConfig{
		Settings:        rec.Settings,
		TotalLiters:     rec.TotalLiters,
		DailyLiters:     rec.DailyLiters,
		DayMarker:       rec.DayMarker,
		NominalInterval: cfg.Tick.Std(),
		LeakAfter:       cfg.LeakAfter.Std(),
		StartTime:       startTime,
	})

	tracker := status.NewTracker(startTime, status.Config{
		TickMs:      cfg.Tick.Std().Milliseconds(),
		Samples:     cfg.Samples,
		SampleGapMs: cfg.SampleGap.Std().Milliseconds(),
		LeakAfterMs: cfg.LeakAfter.Std().Milliseconds(),
		HTTPPort:    cfg.HTTPAddr,
		NVRAMPath:   cfg.NVRAMPath,
		Pins:        formatPins(cfg.Pins),
	})
	tracker.SetMeter(engine.Snapshot())
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	// Start HTTP status server
	commands := make(chan meter.CommandRequest)
	srv := web.New(cfg.HTTPAddr, tracker, commands)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("http server error: %v", err)
		}
	}()
	defer srv.Shutdown(context.Background())
	log.Printf("http status server listening on %s", cfg.HTTPAddr)

	log.Printf("started: tick=%v samples=%d leak-after=%v", cfg.Tick.Std(), cfg.Samples, cfg.LeakAfter.Std())

	ticker := time.NewTicker(cfg.Tick.Std())
	defer ticker.Stop()
	blinker := time.NewTicker(blinkInterval)
	defer blinker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sample := func() (float64, error) {
		return gpio.AverageDistance(ranger, cfg.Samples, cfg.SampleGap.Std(), time.Sleep)
	}

	return runLoop(pulses, sample, indicators, dev, engine, tracker, commands, time.Now, ticker.C, blinker.C, sigCh)
}

func runLoop(pulses gpio.PulseSource, sample func() (float64, error), indicators gpio.Indicators, dev nvram.Device, engine *meter.Engine, tracker *status.Tracker, commands <-chan meter.CommandRequest, now func() time.Time, tick, blink <-chan time.Time, sig <-chan os.Signal) error {
	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			if err := saveState(dev, engine); err != nil {
				log.Printf("final state save error: %v", err)
				if tracker != nil {
					tracker.CountSaveFailure()
				}
			} else {
				engine.MarkSaved()
				if tracker != nil {
					tracker.CountSave()
				}
			}
			if err := indicators.SetLines(false, false, false); err != nil {
				log.Printf("indicator error: %v", err)
			}
			return nil

		case <-tick:
			t := now()
			count := pulses.Take()
			dist, err := sample()
			failed := err != nil
			if failed {
				log.Printf("ranger read error: %v", err)
				if tracker != nil {
					tracker.CountSensorFault()
				}
			}

			rep := engine.Tick(meter.Input{
				Pulses:      count,
				DistanceCM:  dist,
				RangeFailed: failed,
				Time:        t,
			})

			for _, ev := range rep.Events {
				log.Printf("event: %s", ev.Type)
			}

			applyDecision(indicators, rep.Decision)

			if rep.Persist {
				if err := saveState(dev, engine); err != nil {
					log.Printf("state save error: %v", err)
					if tracker != nil {
						tracker.CountSaveFailure()
					}
				} else {
					engine.MarkSaved()
					if tracker != nil {
						tracker.CountSave()
					}
				}
			}

			if tracker != nil {
				tracker.Update(engine.Snapshot())
				tracker.AddEvents(rep.Events)
			}

		case <-blink:
			// Re-apply the decision at the half-second cadence so the
			// leak overlay physically blinks. Only the leak tone sounds
			// here; the critical tone stays at tick cadence.
			d := engine.Decide(now())
			if err := indicators.SetLines(d.Green, d.Yellow, d.Red); err != nil {
				log.Printf("indicator error: %v", err)
			}
			if d.Buzzer == meter.BuzzerLeak {
				if err := indicators.Tone(meter.ToneLeakHz, meter.ToneLeakLength); err != nil {
					log.Printf("buzzer error: %v", err)
				}
			}
			if tracker != nil {
				tracker.SetDecision(d)
			}

		case req := <-commands:
			persist, err := engine.Apply(req.Cmd)
			if err == nil && persist {
				if saveErr := saveState(dev, engine); saveErr != nil {
					log.Printf("state save error: %v", saveErr)
					if tracker != nil {
						tracker.CountSaveFailure()
					}
				} else {
					engine.MarkSaved()
					if tracker != nil {
						tracker.CountSave()
					}
				}
			}
			if tracker != nil {
				tracker.SetMeter(engine.Snapshot())
			}
			req.Reply <- err
		}
	}
}

// applyDecision drives the indicator hardware from one alert decision.
func applyDecision(indicators gpio.Indicators, d meter.Decision) {
	if err := indicators.SetLines(d.Green, d.Yellow, d.Red); err != nil {
		log.Printf("indicator error: %v", err)
	}
	var freq int
	var length time.Duration
	switch d.Buzzer {
	case meter.BuzzerCritical:
		freq, length = meter.ToneCriticalHz, meter.ToneCriticalLength
	case meter.BuzzerLeak:
		freq, length = meter.ToneLeakHz, meter.ToneLeakLength
	default:
		return
	}
	if err := indicators.Tone(freq, length); err != nil {
		log.Printf("buzzer error: %v", err)
	}
}

// saveState writes the engine's durable fields to the state image.
func saveState(dev nvram.Device, engine *meter.Engine) error {
	snap := engine.Snapshot()
	return nvram.Save(dev, nvram.Record{
		Settings:    snap.Settings,
		TotalLiters: snap.TotalLiters,
		DailyLiters: snap.DailyLiters,
		DayMarker:   snap.DayIndex,
	})
}

func formatPins(p config.Pins) string {
	return fmt.Sprintf("pulse=%d trigger=%d echo=%d green=%d yellow=%d red=%d buzzer=%d",
		p.Pulse, p.Trigger, p.Echo, p.LEDGreen, p.LEDYellow, p.LEDRed, p.Buzzer)
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
