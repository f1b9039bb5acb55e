package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/wrapped/internal/models"
	"github.com/desertthunder/wrapped/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgWrapsFetched MsgKind = iota
	MsgProgressUpdate
	MsgWrapCreated
)

type wrapsFetched struct {
	wraps []*models.Wrap
	err   error
}

type wrapCreated struct {
	wrap *models.Wrap
	err  error
}

// wrapsFetchedMsg is the constructor for [MsgWrapsFetched]
func wrapsFetchedMsg(wraps []*models.Wrap, err error) Msg {
	return Msg{kind: MsgWrapsFetched, data: wrapsFetched{wraps, err}}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// wrapCreatedMsg is the constructor for [MsgWrapCreated]
func wrapCreatedMsg(w *models.Wrap, err error) Msg {
	return Msg{kind: MsgWrapCreated, data: wrapCreated{w, err}}
}
