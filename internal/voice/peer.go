package voice

import (
	"sync"

	"github.com/1ureka/proxvoice/internal/spatial"
)

// Peer is one audible remote player and its receive link.
type Peer struct {
	Name string
	UUID string
	Key  string

	link Link

	mu       sync.Mutex
	location spatial.Vector3
}

func newPeer(uuid, name, key string, loc spatial.Vector3, link Link) *Peer {
	link.SetLocation(loc.X, loc.Y, loc.Z, false)
	return &Peer{Name: name, UUID: uuid, Key: key, link: link, location: loc}
}

// Location returns the last known position.
func (p *Peer) Location() spatial.Vector3 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.location
}

// UpdateLocation moves the peer and its panner.
func (p *Peer) UpdateLocation(x, y, z float64) {
	p.mu.Lock()
	p.location = spatial.Vector3{X: x, Y: y, Z: z}
	p.mu.Unlock()
	p.link.SetLocation(x, y, z, true)
}

// Link returns the peer's receive link.
func (p *Peer) Link() Link { return p.link }

// Stop closes the receive link.
func (p *Peer) Stop() error { return p.link.Stop() }
