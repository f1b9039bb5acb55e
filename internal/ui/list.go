package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/wrapped/internal/models"
)

var (
	_ list.Item = wrapItem{}
	_ list.Item = timeframeItem("")
)

// wrapItem wraps [models.Wrap] to implement [list.Item].
type wrapItem struct {
	wrap *models.Wrap
}

func (i wrapItem) FilterValue() string { return i.wrap.Length() }
func (i wrapItem) Title() string {
	return fmt.Sprintf("#%d • %s", i.wrap.Sequence(), i.wrap.Length())
}
func (i wrapItem) Description() string {
	desc := i.wrap.CreatedAt().Local().Format("Jan 2, 2006 15:04")
	if songs := i.wrap.Stats().TopSongs; len(songs) > 0 {
		desc = fmt.Sprintf("%s • %s", desc, songs[0])
	}
	return desc
}

// timeframeItem is one of [models.Timeframes].
type timeframeItem string

func (i timeframeItem) FilterValue() string { return string(i) }
func (i timeframeItem) Title() string       { return string(i) }
func (i timeframeItem) Description() string {
	return fmt.Sprintf("Spotify range %s", models.RangeFor(string(i)))
}
