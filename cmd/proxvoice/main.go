// proxvoice: CLI entry point.
//
// This tool joins the proximity voice chat of a game session. It listens on
// the game plugin's websocket for voice packets, opens one WebRTC receive link
// per audible player through the voice relay, renders each one positionally,
// and streams the local microphone back to the relay.
//
// Settings come from a .env file, PROXVOICE_* environment variables and
// flags; a missing player name is asked for interactively.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pterm/pterm"

	"github.com/1ureka/proxvoice/internal/audio"
	"github.com/1ureka/proxvoice/internal/codec"
	"github.com/1ureka/proxvoice/internal/config"
	"github.com/1ureka/proxvoice/internal/device"
	"github.com/1ureka/proxvoice/internal/prefs"
	"github.com/1ureka/proxvoice/internal/signaling"
	"github.com/1ureka/proxvoice/internal/util"
	"github.com/1ureka/proxvoice/internal/voice"
	rtc "github.com/1ureka/proxvoice/internal/webrtc"
)

var version = "dev"

// errRestart marks a session torn down by a fatal link failure.
var errRestart = errors.New("voice session restart")

// restartDelay paces session restarts.
const restartDelay = time.Second

func main() {
	// Root context, cancelled on Ctrl+C.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx, os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		util.LogError("%v", err)
		os.Exit(2)
	}

	if cfg.Debug {
		util.EnableDebug()
	}

	pterm.Info.Println(fmt.Sprintf("proxvoice v%s", version))
	pterm.Println()

	if cfg.PlayerName == "" {
		cfg.PlayerName = askName()
	}
	if err := cfg.Validate(); err != nil {
		util.LogError("%v", err)
		os.Exit(2)
	}

	if err := run(ctx, cfg); err != nil {
		util.LogError("%v", err)
		os.Exit(1)
	}

	util.LogInfo("voice chat closed")
}

// ---------------------------------------------------------------------------
// Run
// ---------------------------------------------------------------------------

// host holds what outlives a single voice session.
type host struct {
	cfg     *config.Config
	prefs   *prefs.Store
	devices *device.Devices
	audio   *audio.Context
	factory *rtc.Factory
	client  *signaling.Client
}

// run opens the devices and runs voice sessions until ctx is cancelled,
// restarting a session whenever a link fails fatally.
func run(ctx context.Context, cfg *config.Config) error {
	path := cfg.PrefsPath
	if path == "" {
		p, err := prefs.DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}
	store, err := prefs.Open(path)
	if err != nil {
		return err
	}

	devices, err := device.Open()
	if err != nil {
		return err
	}
	defer devices.Close()

	var output audio.Output = audio.Discard
	if player, err := devices.OpenPlayer(); err != nil {
		util.LogWarning("no playback device, peers will not be heard: %v", err)
	} else {
		defer player.Close()
		output = player
	}

	factory, err := rtc.NewFactory(cfg.ICEServers)
	if err != nil {
		return err
	}

	h := &host{
		cfg:     cfg,
		prefs:   store,
		devices: devices,
		audio:   audio.NewContext(output),
		factory: factory,
		client:  signaling.NewClient(nil),
	}

	if cfg.MetricsAddr != "" {
		go serveMetrics(ctx, cfg.MetricsAddr)
	}
	util.StartStatsReporter(ctx)

	for {
		err := h.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if !errors.Is(err, errRestart) {
			return err
		}

		util.LogWarning("%v", err)
		select {
		case <-time.After(restartDelay):
		case <-ctx.Done():
			return nil
		}
		util.LogInfo("rejoining voice chat")
	}
}

// session connects to the plugin and routes its packets into a fresh voice
// module. It returns an errRestart error when a link fails fatally.
func (h *host) session(ctx context.Context) error {
	sctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	ch, err := signaling.Dial(sctx, h.cfg.SocketURL)
	if err != nil {
		return err
	}
	defer ch.Close()
	util.LogSuccess("connected to game plugin")

	ui := newTerminalUI(sctx)
	m := voice.NewModule(voice.Deps{
		Session:     h.cfg.Session(),
		UI:          ui,
		Devices:     h.devices,
		Channel:     ch,
		Prefs:       h.prefs,
		Signaler:    h.client,
		Connector:   h.factory,
		Audio:       h.audio,
		NewDecoder:  codec.NewDecoder,
		NewEncoder:  codec.NewEncoder,
		SwitchDelay: h.cfg.SwitchDelay,
		OnFatal: func(err error) {
			cancel(fmt.Errorf("%w: %w", errRestart, err))
		},
	})
	ui.bindMute(m.SetMute)
	defer func() {
		if err := m.Shutdown(); err != nil {
			util.LogWarning("error closing voice links: %v", err)
		}
	}()

	if h.cfg.Standalone() {
		m.Enable(h.cfg.RelayURL, h.cfg.StreamKey, h.cfg.Radius)
	}

	router := voice.NewRouter(m)
	err = ch.Listen(sctx, func(pkt signaling.Packet) {
		if err := router.Handle(sctx, pkt); err != nil {
			util.LogWarning("%v", err)
		}
	})

	if cause := context.Cause(sctx); errors.Is(cause, errRestart) {
		return cause
	}
	return err
}

// serveMetrics exposes the voice counters until ctx is cancelled.
func serveMetrics(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", util.MetricsHandler(util.NewMetricsRegistry()))

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	context.AfterFunc(ctx, func() { srv.Close() })

	util.LogInfo("serving metrics on http://%s/metrics", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		util.LogWarning("metrics server stopped: %v", err)
	}
}

// ---------------------------------------------------------------------------
// Helper Functions
// ---------------------------------------------------------------------------

// askName prompts for the player name until a non-empty one is entered.
func askName() string {
	for {
		raw, _ := pterm.DefaultInteractiveTextInput.
			WithDefaultText("Player name").
			Show()

		if name := strings.TrimSpace(raw); name != "" {
			pterm.Println()
			return name
		}

		pterm.Println()
		util.LogWarning("invalid input: the player name cannot be empty")
	}
}
