// Package audio implements the small audio graph each voice link renders
// through: a decoded mono source feeds a gain node, the gain node feeds a
// panner, and the panner writes interleaved stereo into a per-link input of
// the context's output.
//
// The panner follows the Web Audio PannerNode formulas (equal-power panning,
// linear/inverse/exponential distance models) so positional behaviour matches
// browser clients talking to the same relay.
package audio
