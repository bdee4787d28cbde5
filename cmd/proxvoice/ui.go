package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pterm/pterm"

	"github.com/1ureka/proxvoice/internal/audio"
	"github.com/1ureka/proxvoice/internal/util"
	"github.com/1ureka/proxvoice/internal/voice"
)

const (
	muteOption   = "Mute microphone"
	unmuteOption = "Unmute microphone"
)

// terminalUI renders the voice panels with pterm. Prompts run on their own
// goroutines so packet handling never waits on the keyboard; promptMu keeps
// two prompts from sharing the terminal.
type terminalUI struct {
	ctx context.Context

	promptMu sync.Mutex

	mu      sync.Mutex
	consent func(ctx context.Context)
	asking  bool
	mute    func(ctx context.Context, muted bool) bool
	muted   bool
}

func newTerminalUI(ctx context.Context) *terminalUI {
	return &terminalUI{ctx: ctx}
}

func (u *terminalUI) bindMute(fn func(ctx context.Context, muted bool) bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.mute = fn
}

func (u *terminalUI) ShowControls(visible bool) {
	if visible {
		pterm.Info.Println("voice chat controls enabled")
	} else {
		pterm.Info.Println("voice chat controls hidden")
	}
}

func (u *terminalUI) SetRangeLabel(label string) {
	pterm.Info.Printfln("audible range: %s", label)
}

func (u *terminalUI) ShowCard(card voice.Card) {
	switch card {
	case voice.CardOnboarding:
		pterm.DefaultBox.WithTitle("Voice chat").Println(
			"Voice chat is available on this server.\nAllow microphone access to talk to nearby players.")
		u.promptConsent()
	case voice.CardHome:
		pterm.DefaultBox.WithTitle("Voice chat").Println("Microphone connected. Nearby players can hear you.")
	}
}

func (u *terminalUI) OnConsent(fn func(ctx context.Context)) {
	u.mu.Lock()
	u.consent = fn
	u.mu.Unlock()
	u.promptConsent()
}

// promptConsent asks for microphone access unless a question is already
// pending or no consent action is wired.
func (u *terminalUI) promptConsent() {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.consent == nil || u.asking {
		return
	}
	u.asking = true
	go u.askConsent(u.consent)
}

func (u *terminalUI) askConsent(fn func(ctx context.Context)) {
	u.promptMu.Lock()
	ok, _ := pterm.DefaultInteractiveConfirm.
		WithDefaultText("Allow microphone access?").
		Show()
	u.promptMu.Unlock()

	u.mu.Lock()
	u.asking = false
	u.mu.Unlock()

	if ok && u.ctx.Err() == nil {
		fn(u.ctx)
	}
}

// PopulateDevices lists the inputs and starts the control prompt. Choosing
// another device switches to it; the mute entries toggle the microphone.
func (u *terminalUI) PopulateDevices(devices []audio.DeviceInfo, selected string, onChange func(ctx context.Context, deviceID string)) {
	data := pterm.TableData{{"", "Microphone"}}
	names := make([]string, 0, len(devices))
	ids := make(map[string]string, len(devices))
	current := ""
	for _, d := range devices {
		mark := ""
		if d.ID == selected {
			mark = "*"
			current = d.Name
		}
		data = append(data, []string{mark, d.Name})
		names = append(names, d.Name)
		ids[d.Name] = d.ID
	}
	pterm.DefaultTable.WithHasHeader().WithData(data).Render()

	go u.controlLoop(names, ids, current, onChange)
}

func (u *terminalUI) controlLoop(names []string, ids map[string]string, current string, onChange func(ctx context.Context, deviceID string)) {
	for u.ctx.Err() == nil {
		u.mu.Lock()
		toggle := muteOption
		if u.muted {
			toggle = unmuteOption
		}
		u.mu.Unlock()

		options := append([]string{toggle}, names...)
		prompt := pterm.DefaultInteractiveSelect.
			WithOptions(options).
			WithDefaultText("Voice controls")
		if current != "" {
			prompt = prompt.WithDefaultOption(current)
		}

		u.promptMu.Lock()
		choice, err := prompt.Show()
		u.promptMu.Unlock()
		if err != nil || u.ctx.Err() != nil {
			return
		}

		switch choice {
		case muteOption, unmuteOption:
			u.toggleMute(choice == muteOption)
		case current:
		default:
			current = choice
			onChange(u.ctx, ids[choice])
		}
	}
}

func (u *terminalUI) toggleMute(muted bool) {
	u.mu.Lock()
	fn := u.mute
	u.mu.Unlock()
	if fn == nil || !fn(u.ctx, muted) {
		util.LogWarning("microphone is not connected")
		return
	}

	u.mu.Lock()
	u.muted = muted
	u.mu.Unlock()
	if muted {
		pterm.Warning.Println("microphone muted")
	} else {
		pterm.Success.Println("microphone unmuted")
	}
}

func (u *terminalUI) ShowWaiting(title, body string, d time.Duration) {
	spinner, err := pterm.DefaultSpinner.Start(fmt.Sprintf("%s: %s", title, body))
	if err != nil {
		return
	}
	time.AfterFunc(d, func() { spinner.Success(title) })
}

func (u *terminalUI) ShowError(title, body, footer string) {
	pterm.DefaultBox.
		WithTitle(pterm.Red(title)).
		Println(body + "\n\n" + pterm.Gray(footer))
}

func (u *terminalUI) PeerConnected(name string) {
	pterm.Success.Printfln("%s joined voice chat", name)
}
