// Package command defines the schedulable unit of behavior and the
// composites built from it.
//
// A [Command] declares the [Resource] set it drives and follows the
// lifecycle Initialize → Execute* → End. Leaves:
//
//   - [Func] / [NewRun]: closure bundles, typically default commands
//   - [Instant]: one action, zero execution ticks
//   - [Wait], [WaitUntil]: delays expressed as IsFinished over many ticks
//   - [MoveToSetpoint], [Snap]: closed-loop moves built on [control.PID]
//
// [Sequential] owns its children and runs them strictly in order.
package command
