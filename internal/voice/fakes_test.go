package voice

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"

	"github.com/1ureka/proxvoice/internal/audio"
)

// eventLog records the order of side effects across fakes.
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(e string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

type fakeUI struct {
	mu        sync.Mutex
	controls  bool
	label     string
	cards     []Card
	consent   func(ctx context.Context)
	populated int
	devices   []audio.DeviceInfo
	selected  string
	onChange  func(ctx context.Context, deviceID string)
	waiting   []time.Duration
	errors    []string
	connected []string
}

func (u *fakeUI) ShowControls(visible bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.controls = visible
}

func (u *fakeUI) SetRangeLabel(label string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.label = label
}

func (u *fakeUI) ShowCard(card Card) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.cards = append(u.cards, card)
}

func (u *fakeUI) OnConsent(fn func(ctx context.Context)) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.consent = fn
}

func (u *fakeUI) PopulateDevices(devices []audio.DeviceInfo, selected string, onChange func(ctx context.Context, deviceID string)) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.populated++
	u.devices, u.selected, u.onChange = devices, selected, onChange
}

func (u *fakeUI) ShowWaiting(_, _ string, d time.Duration) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.waiting = append(u.waiting, d)
}

func (u *fakeUI) ShowError(title, _, _ string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.errors = append(u.errors, title)
}

func (u *fakeUI) PeerConnected(name string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.connected = append(u.connected, name)
}

func (u *fakeUI) lastCard() Card {
	u.mu.Lock()
	defer u.mu.Unlock()
	if len(u.cards) == 0 {
		return ""
	}
	return u.cards[len(u.cards)-1]
}

type fakeStream struct {
	id     string
	frames chan []int16

	mu      sync.Mutex
	stopped int
}

func newFakeStream(id string) *fakeStream {
	return &fakeStream{id: id, frames: make(chan []int16, 4)}
}

func (s *fakeStream) DeviceID() string       { return s.id }
func (s *fakeStream) Frames() <-chan []int16 { return s.frames }

func (s *fakeStream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped++
	if s.stopped == 1 {
		close(s.frames)
	}
	return nil
}

func (s *fakeStream) stopCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

type fakeDevices struct {
	log     *eventLog
	inputs  []audio.DeviceInfo
	openErr error

	mu      sync.Mutex
	opened  []string
	streams []*fakeStream
}

func (d *fakeDevices) AudioInputs(context.Context) ([]audio.DeviceInfo, error) {
	return d.inputs, nil
}

func (d *fakeDevices) GetUserMedia(_ context.Context, deviceID string) (audio.MediaStream, error) {
	d.log.add("open:" + deviceID)
	d.mu.Lock()
	defer d.mu.Unlock()
	d.opened = append(d.opened, deviceID)
	if d.openErr != nil {
		return nil, d.openErr
	}
	s := newFakeStream(deviceID)
	d.streams = append(d.streams, s)
	return s, nil
}

type sentPacket struct {
	channel string
	payload any
}

type fakeChannel struct {
	log *eventLog

	mu   sync.Mutex
	sent []sentPacket
}

func (c *fakeChannel) Send(_ context.Context, channel string, payload any) error {
	c.log.add("send:" + channel)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, sentPacket{channel: channel, payload: payload})
	return nil
}

func (c *fakeChannel) packets() []sentPacket {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]sentPacket(nil), c.sent...)
}

type fakePrefs struct {
	mu  sync.Mutex
	mic string
}

func (p *fakePrefs) PreferredMic() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mic
}

func (p *fakePrefs) SetPreferredMic(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mic = id
	return nil
}

type fakeLink struct {
	cfg IncomingConfig

	mu          sync.Mutex
	started     bool
	stopped     int
	loc         [3]float64
	updates     int
	volume      float64
	onConnected func()
	state       LinkState
}

func (l *fakeLink) Start(_ context.Context, onConnected func()) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.started = true
	l.onConnected = onConnected
	l.state = LinkNegotiating
	return nil
}

func (l *fakeLink) SetLocation(x, y, z float64, update bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.loc = [3]float64{x, y, z}
	if update {
		l.updates++
	}
}

func (l *fakeLink) SetVolume(v float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.volume = v
}

func (l *fakeLink) State() LinkState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *fakeLink) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopped++
	l.state = LinkClosed
	return nil
}

func (l *fakeLink) stopCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stopped
}

type fakeBroadcast struct {
	cfg OutgoingConfig

	mu          sync.Mutex
	started     bool
	stopped     int
	muted       bool
	onConnected func()
}

func (b *fakeBroadcast) Start(_ context.Context, onConnected func()) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.started = true
	b.onConnected = onConnected
	return nil
}

func (b *fakeBroadcast) SetMute(muted bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.muted = muted
}

func (b *fakeBroadcast) Muted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.muted
}

func (b *fakeBroadcast) State() LinkState { return LinkNegotiating }

func (b *fakeBroadcast) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopped++
	return b.cfg.Stream.Stop()
}

func (b *fakeBroadcast) stopCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stopped
}

// fakeSignaler records offers and answers with err, or blocks until ctx is
// done when block is set.
type fakeSignaler struct {
	err   error
	block bool

	offers chan exchangeCall
}

type exchangeCall struct {
	endpoint string
	offer    webrtc.SessionDescription
}

func newFakeSignaler(err error) *fakeSignaler {
	return &fakeSignaler{err: err, offers: make(chan exchangeCall, 4)}
}

func (s *fakeSignaler) Exchange(ctx context.Context, endpoint string, local webrtc.SessionDescription) (webrtc.SessionDescription, error) {
	s.offers <- exchangeCall{endpoint: endpoint, offer: local}
	if s.block {
		<-ctx.Done()
		return webrtc.SessionDescription{}, ctx.Err()
	}
	if s.err != nil {
		return webrtc.SessionDescription{}, s.err
	}
	return webrtc.SessionDescription{}, errors.New("no answer configured")
}

// constDecoder fills n samples with v for every packet.
type constDecoder struct {
	n int
	v float32
}

func (d constDecoder) Decode(payload []byte, pcm []float32) (int, error) {
	if payload[0] == 0xff {
		return 0, errors.New("corrupt packet")
	}
	for i := range d.n {
		pcm[i] = d.v
	}
	return d.n, nil
}

func newConstDecoder() (audio.Decoder, error) { return constDecoder{n: 4, v: 0.5}, nil }

// firstSampleEncoder emits one byte: the first sample of the frame.
type firstSampleEncoder struct{}

func (firstSampleEncoder) Encode(pcm []int16, data []byte) (int, error) {
	data[0] = byte(pcm[0])
	return 1, nil
}

func newFirstSampleEncoder() (audio.Encoder, error) { return firstSampleEncoder{}, nil }

// packetReader replays payloads, then returns io.EOF.
type packetReader struct {
	payloads [][]byte
}

func (r *packetReader) ReadRTP() (*rtp.Packet, interceptor.Attributes, error) {
	if len(r.payloads) == 0 {
		return nil, nil, io.EOF
	}
	p := r.payloads[0]
	r.payloads = r.payloads[1:]
	return &rtp.Packet{Payload: p}, nil, nil
}

type sampleRecorder struct {
	mu      sync.Mutex
	samples []media.Sample
}

func (r *sampleRecorder) WriteSample(s media.Sample) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s.Data = append([]byte(nil), s.Data...)
	r.samples = append(r.samples, s)
	return nil
}

func (r *sampleRecorder) list() []media.Sample {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]media.Sample(nil), r.samples...)
}

type recordingOutput struct {
	mu     sync.Mutex
	frames map[string][][]float32
	closed map[string]bool
}

func newRecordingOutput() *recordingOutput {
	return &recordingOutput{frames: map[string][][]float32{}, closed: map[string]bool{}}
}

func (o *recordingOutput) Open(id string) audio.Destination { return &recordingInput{o: o, id: id} }

func (o *recordingOutput) snapshot(id string) ([][]float32, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.frames[id], o.closed[id]
}

type recordingInput struct {
	o  *recordingOutput
	id string
}

func (i *recordingInput) Write(stereo []float32) error {
	i.o.mu.Lock()
	defer i.o.mu.Unlock()
	i.o.frames[i.id] = append(i.o.frames[i.id], append([]float32(nil), stereo...))
	return nil
}

func (i *recordingInput) Close() error {
	i.o.mu.Lock()
	defer i.o.mu.Unlock()
	i.o.closed[i.id] = true
	return nil
}

// eventually polls cond until it holds or d elapses.
func eventually(d time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}
