package util

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pterm/pterm"
)

// ──────────────────────────────────────────────────────────────────────────────
// Global stats singleton
// ──────────────────────────────────────────────────────────────────────────────

// Stats is the process-wide voice link counter.
var Stats = &stats{}

type stats struct {
	PeersAdded     atomic.Int64 // cumulative peers added since process start
	PeersRemoved   atomic.Int64 // cumulative peers removed since process start
	LinksConnected atomic.Int64 // links (incoming or outgoing) that reached connected
	SignalFailures atomic.Int64 // SDP exchanges that failed
	BytesSent      atomic.Int64 // encoded audio bytes written to the outgoing track
	BytesRecv      atomic.Int64 // encoded audio bytes read from incoming tracks
}

func (s *stats) AddPeer()           { s.PeersAdded.Add(1) }
func (s *stats) RemovePeer()        { s.PeersRemoved.Add(1) }
func (s *stats) AddConnected()      { s.LinksConnected.Add(1) }
func (s *stats) AddSignalFailure()  { s.SignalFailures.Add(1) }
func (s *stats) AddSent(n int)      { s.BytesSent.Add(int64(n)) }
func (s *stats) AddRecv(n int)      { s.BytesRecv.Add(int64(n)) }
func (s *stats) ActivePeers() int64 { return s.PeersAdded.Load() - s.PeersRemoved.Load() }

// ──────────────────────────────────────────────────────────────────────────────
// Periodic reporter
// ──────────────────────────────────────────────────────────────────────────────

// StartStatsReporter launches a goroutine that logs voice statistics
// every 10 seconds. It stops when ctx is cancelled.
func StartStatsReporter(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()

		var prevSent, prevRecv, prevAdded, prevRemoved int64
		for {
			select {
			case <-ticker.C:
				added := Stats.PeersAdded.Load()
				removed := Stats.PeersRemoved.Load()
				sent := Stats.BytesSent.Load()
				recv := Stats.BytesRecv.Load()

				outS := float64(sent-prevSent) / 10.0
				inS := float64(recv-prevRecv) / 10.0
				joined := added - prevAdded
				left := removed - prevRemoved

				if joined > 0 || left > 0 || inS > 10 || outS > 10 {
					pterm.DefaultLogger.Info(formatStats(inS, outS, joined, left, added-removed))
				}

				prevSent = sent
				prevRecv = recv
				prevAdded = added
				prevRemoved = removed

			case <-ctx.Done():
				return
			}
		}
	}()
}

// byteUnits defines the units for formatting byte counts in a human-readable way.
var byteUnits = []string{"B", "KiB", "MiB", "GiB", "TiB", "PiB"}

// formatBytes formats a byte count into a fixed-width (8 chars) string,
// for example: "99.0   B", " 1.5 KiB", " 0.1 MiB".
func formatBytes(b float64) string {
	unitIdx := 0

	// to prevent "100.0 KiB", which is 9 chars
	for b > 99 && unitIdx < 5 {
		b /= 1024
		unitIdx++
	}

	return fmt.Sprintf("%4.1f %3s", b, byteUnits[unitIdx])
}

// formatStats returns a formatted string of the current stats for display in the logger.
func formatStats(inS, outS float64, joined, left, active int64) string {
	return fmt.Sprintf("Voice In: %s/s | Out: %s/s | Peers: %2d↑ %2d↓ (%d active)",
		formatBytes(inS),
		formatBytes(outS),
		joined,
		left,
		active,
	)
}
