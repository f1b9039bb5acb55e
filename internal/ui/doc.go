// Package ui implements an interactive terminal wrap browser using bubbletea's Elm architecture.
//
// The TUI provides a multi-view workflow:
//  1. [WrapListView] : Browse a profile's wraps, newest first
//  2. [SlideView] : Page through the slides of the selected wrap
//  3. [TimeframeView] : Pick a timeframe for a new wrap
//  4. [CreateView] : Monitor progress updates while the wrap is built
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Progress updates flow through a channel from the WrapEngine, providing non-blocking status reporting during creation.
//
// Keyboard navigation uses vim-style bindings (j/k, h/l, enter, esc, n, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
