// ABOUTME: CLI controller for a running engine
// ABOUTME: Discovers or dials an engine and schedules events over WebSocket

package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/Tonewheel-Audio/tonewheel-go/internal/discovery"
	"github.com/Tonewheel-Audio/tonewheel-go/internal/remote"
)

var (
	engineAddr = flag.String("engine", "", "Engine address host:port (default: discover via mDNS)")
	eventType  = flag.String("type", "note-on", "Event type to schedule")
	when       = flag.Int64("time", -1, "Absolute sample time (default: one second ahead of the engine clock)")
	priority   = flag.Int("priority", 0, "Event priority (higher pops first at equal time)")
	freq       = flag.Float64("freq", 440, "Note frequency in Hz")
	amp        = flag.Float64("amp", 0.5, "Note amplitude 0..1")
	durationMs = flag.Float64("duration-ms", 500, "Note duration in milliseconds")
	cancelID   = flag.String("cancel", "", "Cancel a pending event by ID instead of scheduling")
	seekTo     = flag.Int64("seek", -1, "Seek the engine clock instead of scheduling")
	watch      = flag.Bool("watch", false, "Stay connected and print engine stats")
)

func main() {
	flag.Parse()
	log.SetFlags(0)

	addr := *engineAddr
	if addr == "" {
		found, err := discoverEngine()
		if err != nil {
			log.Fatalf("Discovery failed: %v", err)
		}
		addr = found
	}

	client := remote.NewClient(remote.ClientConfig{EngineAddr: addr})
	if err := client.Connect(); err != nil {
		log.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	switch {
	case *cancelID != "":
		runCancel(client)
	case *seekTo >= 0:
		runSeek(client)
	default:
		runSchedule(client)
	}

	if *watch {
		watchStats(client)
	}
}

func discoverEngine() (string, error) {
	log.Printf("Browsing for engines...")

	disc := discovery.NewManager(discovery.Config{})
	if err := disc.Browse(); err != nil {
		return "", err
	}
	defer disc.Stop()

	select {
	case engine := <-disc.Engines():
		return fmt.Sprintf("%s:%d", engine.Host, engine.Port), nil
	case <-time.After(10 * time.Second):
		return "", fmt.Errorf("no engine found after 10 seconds")
	}
}

func runSchedule(client *remote.Client) {
	at := *when
	if at < 0 {
		// No clock query in the protocol; stats carry the position.
		at = waitForPosition(client) + int64(client.Engine.SampleRate)
	}

	params := map[string]float64{
		"freq":        *freq,
		"amp":         *amp,
		"duration_ms": *durationMs,
	}

	if err := client.ScheduleEvent(*eventType, at, *priority, params); err != nil {
		log.Fatalf("Schedule failed: %v", err)
	}

	select {
	case ack := <-client.Acks:
		fmt.Printf("scheduled %s at sample %d (event %s)\n", *eventType, ack.Time, ack.EventID)
	case <-time.After(5 * time.Second):
		log.Fatalf("No ack from engine")
	}
}

func runCancel(client *remote.Client) {
	if err := client.CancelEvent(*cancelID); err != nil {
		log.Fatalf("Cancel failed: %v", err)
	}

	select {
	case ack := <-client.CancelAcks:
		if ack.Cancelled {
			fmt.Printf("cancel accepted for event %s\n", ack.EventID)
		} else {
			fmt.Printf("cancel rejected for event %s\n", ack.EventID)
			os.Exit(1)
		}
	case <-time.After(5 * time.Second):
		log.Fatalf("No cancel ack from engine")
	}
}

func runSeek(client *remote.Client) {
	if err := client.Seek(*seekTo); err != nil {
		log.Fatalf("Seek failed: %v", err)
	}
	fmt.Printf("seek to sample %d sent\n", *seekTo)
}

// waitForPosition blocks for the next stats push and returns the engine's
// current sample position.
func waitForPosition(client *remote.Client) int64 {
	select {
	case stats := <-client.Stats:
		return stats.CurrentSample
	case <-time.After(5 * time.Second):
		log.Fatalf("No stats from engine; pass -time explicitly")
		return 0
	}
}

func watchStats(client *remote.Client) {
	log.Printf("Watching engine stats (ctrl+c to stop)")
	for stats := range client.Stats {
		fmt.Printf("sample=%d block=%d load=%.2f/%.2f underruns=%d pending=%d missed=%d\n",
			stats.CurrentSample, stats.BufferSize,
			stats.AverageLoad, stats.PeakLoad,
			stats.Underruns, stats.Pending, stats.Missed)
	}
}
