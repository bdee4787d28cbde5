package audio

import "fmt"

// Chain is one source → gain → panner → destination path.
type Chain struct {
	gain   *GainNode
	panner *PannerNode
	dest   Destination
}

// NewChain connects gain and panner to a fresh input of ctx's output.
func NewChain(ctx *Context, id string, gain *GainNode, panner *PannerNode) *Chain {
	return &Chain{gain: gain, panner: panner, dest: ctx.Connect(id)}
}

// Push renders one mono frame through the chain. mono is modified in place.
func (c *Chain) Push(mono []float32) error {
	c.gain.Process(mono)
	if err := c.dest.Write(c.panner.Process(mono)); err != nil {
		return fmt.Errorf("write destination: %w", err)
	}
	return nil
}

// Close disconnects the chain from the output.
func (c *Chain) Close() error {
	return c.dest.Close()
}
