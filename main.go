// ABOUTME: Entry point for the Tonewheel engine
// ABOUTME: Parses CLI flags, wires the host, and runs the dashboard

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Tonewheel-Audio/tonewheel-go/internal/clip"
	"github.com/Tonewheel-Audio/tonewheel-go/internal/discovery"
	"github.com/Tonewheel-Audio/tonewheel-go/internal/host"
	"github.com/Tonewheel-Audio/tonewheel-go/internal/remote"
	"github.com/Tonewheel-Audio/tonewheel-go/internal/ui"
	"github.com/Tonewheel-Audio/tonewheel-go/internal/version"
	"github.com/Tonewheel-Audio/tonewheel-go/pkg/engine"
)

var (
	port        = flag.Int("port", 8937, "Control server port")
	name        = flag.String("name", "", "Engine friendly name (default: hostname-tonewheel)")
	sampleRate  = flag.Int("sample-rate", 44100, "Sample rate in Hz")
	lookaheadMs = flag.Float64("lookahead-ms", 10, "Scheduler lookahead in milliseconds")
	clipPath    = flag.String("clip", "", "MP3 clip to play at sample 0")
	logFile     = flag.String("log-file", "tonewheel.log", "Log file path")
	noTUI       = flag.Bool("no-tui", false, "Disable TUI, use streaming logs instead")
	streamLogs  = flag.Bool("stream-logs", false, "Alias for -no-tui")
	noMDNS      = flag.Bool("no-mdns", false, "Disable mDNS advertisement")
	noControl   = flag.Bool("no-control", false, "Disable the WebSocket control server")
)

func main() {
	flag.Parse()

	useTUI := !(*noTUI || *streamLogs)

	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer func() { _ = f.Close() }()

	if useTUI {
		log.SetOutput(f)
	} else {
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	}

	engineName := *name
	if engineName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		engineName = fmt.Sprintf("%s-tonewheel", hostname)
	}

	log.Printf("Starting %s %s: %s", version.Product, version.Version, engineName)

	// Build and compile the render graph.
	graph := defaultGraph()
	compiler := engine.NewGraphCompiler()
	plan, err := compiler.Compile(graph)
	if err != nil {
		log.Fatalf("Graph compilation failed: %v", err)
	}
	log.Printf("Graph compiled: order=[%s]", strings.Join(plan.ExecutionOrder, " "))
	for _, opt := range plan.Optimizations {
		log.Printf("Graph optimization: %s", opt)
	}

	h, err := host.New(host.Config{
		SampleRate:  *sampleRate,
		LookaheadMs: *lookaheadMs,
	})
	if err != nil {
		log.Fatalf("Failed to create host: %v", err)
	}
	h.SetPlan(graph, plan)

	// Queue the startup clip before the device starts pulling.
	if *clipPath != "" {
		if err := scheduleClip(h, *clipPath); err != nil {
			log.Fatalf("Failed to load clip: %v", err)
		}
	}

	output := host.NewOutput()
	if err := output.Open(h.SampleRate()); err != nil {
		log.Fatalf("Failed to open audio output: %v", err)
	}
	defer output.Close()

	if err := output.Play(h); err != nil {
		log.Fatalf("Failed to start playback: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go h.Governor(ctx, 250*time.Millisecond)

	var controlServer *remote.Server
	if !*noControl {
		controlServer = remote.New(remote.Config{
			Port:          *port,
			Name:          engineName,
			StatsInterval: time.Second,
		}, h)
		go func() {
			if err := controlServer.Start(); err != nil {
				log.Printf("Control server stopped: %v", err)
			}
		}()
	}

	var mdnsManager *discovery.Manager
	if !*noMDNS && !*noControl {
		mdnsManager = discovery.NewManager(discovery.Config{
			InstanceName: engineName,
			Port:         *port,
		})
		if err := mdnsManager.Advertise(); err != nil {
			log.Printf("Failed to start mDNS advertisement: %v", err)
		}
	}

	var tuiProg *tea.Program
	var control *ui.Control

	if useTUI {
		control = ui.NewControl()
		tuiProg, err = ui.Run(engineName, h.SampleRate(), control)
		if err != nil {
			log.Fatalf("Failed to start TUI: %v", err)
		}
		go tuiProg.Run()
		go gainLoop(h, control)
		go statsLoop(ctx, h, tuiProg)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if control != nil {
		select {
		case <-control.Quit:
			log.Printf("Quit requested from TUI")
		case <-sigChan:
			log.Printf("Shutdown signal received")
		}
	} else {
		<-sigChan
		log.Printf("Shutdown signal received")
	}

	if tuiProg != nil {
		tuiProg.Quit()
	}
	if mdnsManager != nil {
		mdnsManager.Stop()
	}
	if controlServer != nil {
		controlServer.Stop()
	}

	log.Printf("Engine stopped")
}

// defaultGraph is the built-in source -> gain -> destination chain.
func defaultGraph() *engine.Graph {
	g := engine.NewGraph()
	g.AddNode(engine.Node{
		ID:          "input",
		Type:        engine.NodeSource,
		Connections: []string{"master-gain"},
	})
	g.AddNode(engine.Node{
		ID:          "master-gain",
		Type:        engine.NodeEffect,
		Connections: []string{"out"},
		Parameters:  map[string]float64{"gain": 1.0},
	})
	g.AddNode(engine.Node{
		ID:   "out",
		Type: engine.NodeDestination,
	})
	return g
}

// scheduleClip decodes, resamples, and queues an MP3 clip at sample 0.
func scheduleClip(h *host.Host, path string) error {
	c, err := clip.LoadMP3(path)
	if err != nil {
		return err
	}
	c = c.Resample(h.SampleRate())

	event, err := engine.NewEvent(host.EventClipStart, 0, 0, host.ClipData{
		Samples: c.Samples,
		Gain:    1.0,
	})
	if err != nil {
		return err
	}
	return h.ScheduleEvent(event)
}

// gainLoop forwards dashboard gain changes to the host.
func gainLoop(h *host.Host, control *ui.Control) {
	for gain := range control.Gain {
		log.Printf("Gain change: %.2f", gain)
		h.SetGain(gain)
	}
}

// statsLoop feeds engine snapshots to the dashboard.
func statsLoop(ctx context.Context, h *host.Host, prog *tea.Program) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := h.Stats()
			prog.Send(ui.StatsMsg{
				CurrentSample: stats.CurrentSample,
				BlockSize:     stats.BlockSize,
				AverageLoad:   stats.AverageLoad,
				PeakLoad:      stats.PeakLoad,
				Underruns:     stats.Underruns,
				Adjustments:   stats.Adjustments,
				Scheduled:     stats.Scheduled,
				Delivered:     stats.Delivered,
				Missed:        stats.Missed,
				Pending:       stats.Pending,
				Dropped:       stats.DroppedControl,
			})
		}
	}
}
