package audio

// Discard is an Output that drops everything. It is used when no playback
// device is available.
var Discard Output = discardOutput{}

type discardOutput struct{}

func (discardOutput) Open(string) Destination { return discardOutput{} }
func (discardOutput) Write([]float32) error   { return nil }
func (discardOutput) Close() error            { return nil }
