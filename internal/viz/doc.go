// Package viz renders glide runs in the terminal.
//
// [RenderSummary] formats the end-of-run table and [PlotEnergy] draws energy
// series with asciigraph. [Model] is a Bubble Tea live view that steps a
// simulator, draws the tether on a Braille [Canvas] and lets the operator
// offset the winch and EDT current commands.
//
// # Key Bindings
//
//	Space     - Pause/Resume simulation
//	R         - Reset to initial state
//	Up/Down   - Winch speed offset
//	Left/Right- EDT current offset
//	+/-       - Steps per frame
//	[ ]       - Rewind/forward through recent steps
//	T         - Cycle color themes
//	?         - Show help overlay
package viz
