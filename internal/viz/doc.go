// Package viz renders a running rig in the terminal with Bubble Tea.
//
// The live view draws a side view of the arm and a heading compass on a
// Braille [Canvas], next to a panel listing supervisor phases, resource
// holders and controller state. Keys push supervisor events or nudge the
// operator axes; press ? for the full map.
package viz
