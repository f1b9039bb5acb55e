package ui

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/wrapped/internal/models"
	"github.com/desertthunder/wrapped/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	WrapListView ViewState = iota
	SlideView
	TimeframeView
	CreateView
)

// WrapLister loads stored wraps. [repositories.WrapRepository] satisfies it.
type WrapLister interface {
	List(ctx context.Context, criteria map[string]any) ([]*models.Wrap, error)
}

// CreateFunc builds and stores a wrap for timeframe, reporting progress on the channel.
type CreateFunc func(ctx context.Context, progress chan<- tasks.ProgressUpdate, timeframe string) (*models.Wrap, error)

// ModelOpts configures [NewModel]. A nil Create hides wrap creation.
type ModelOpts struct {
	Wraps     WrapLister
	ProfileID string
	Create    CreateFunc
	Language  models.Language
}

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	view         ViewState
	wraps        WrapLister
	profileID    string
	create       CreateFunc
	lang         models.Language
	width        int
	height       int
	wrapList     list.Model
	timeframes   list.Model
	presentation *models.Presentation
	page         int
	progressChan chan tasks.ProgressUpdate
	progress     tasks.ProgressUpdate
	pending      wrapCreated
	err          error
	help         help.Model
	keys         keyMap
}

// NewModel creates a new TUI model with the provided dependencies.
func NewModel(ctx context.Context, opts ModelOpts) *Model {
	lang := opts.Language
	if lang == "" {
		lang = models.English
	}

	items := make([]list.Item, len(models.Timeframes))
	for i, tf := range models.Timeframes {
		items[i] = timeframeItem(tf)
	}
	timeframes := list.New(items, list.NewDefaultDelegate(), 0, 0)
	timeframes.Title = "New wrap: pick a timeframe"
	timeframes.SetFilteringEnabled(false)

	wrapList := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	wrapList.Title = "Your Wraps"

	return &Model{
		ctx:        ctx,
		view:       WrapListView,
		wraps:      opts.Wraps,
		profileID:  opts.ProfileID,
		create:     opts.Create,
		lang:       lang,
		wrapList:   wrapList,
		timeframes: timeframes,
		help:       help.New(),
		keys:       newKeyMap(),
	}
}

// Init initializes the TUI by loading the profile's wraps.
func (m *Model) Init() tea.Cmd {
	return m.fetchWraps()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.wrapList.SetSize(msg.Width-4, msg.Height-8)
		m.timeframes.SetSize(msg.Width-4, msg.Height-8)
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case WrapListView:
			return m.handleWrapListKeys(msg)
		case SlideView:
			return m.handleSlideKeys(msg)
		case TimeframeView:
			return m.handleTimeframeKeys(msg)
		case CreateView:
			if key.Matches(msg, m.keys.quit) {
				return m, tea.Quit
			}
			return m, nil
		}

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateLists(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgWrapsFetched:
		data := msg.data.(wrapsFetched)
		if data.err != nil {
			m.err = data.err
			return m, nil
		}
		items := make([]list.Item, len(data.wraps))
		for i, w := range data.wraps {
			items[i] = wrapItem{wrap: w}
		}
		return m, m.wrapList.SetItems(items)

	case MsgProgressUpdate:
		m.progress = msg.data.(tasks.ProgressUpdate)
		return m, m.waitForProgress()

	case MsgWrapCreated:
		data := msg.data.(wrapCreated)
		m.progressChan = nil
		if data.err != nil {
			m.err = data.err
			m.view = WrapListView
			return m, nil
		}
		m.openWrap(data.wrap)
		return m, m.fetchWraps()
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	var body string
	switch m.view {
	case WrapListView:
		body = m.renderWrapList()
	case SlideView:
		body = m.renderSlide()
	case TimeframeView:
		body = m.renderTimeframes()
	case CreateView:
		body = m.renderCreate()
	}

	if m.err != nil {
		body = fmt.Sprintf("%s\n\n%s", styles.err.Render(fmt.Sprintf("Error: %v", m.err)), body)
	}
	return body
}

func (m *Model) handleWrapListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.wrapList.FilterState() == list.Filtering {
		return m.updateLists(msg)
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.enter):
		if item, ok := m.wrapList.SelectedItem().(wrapItem); ok {
			m.err = nil
			m.openWrap(item.wrap)
		}
		return m, nil
	case key.Matches(msg, m.keys.create) && m.create != nil:
		m.err = nil
		m.view = TimeframeView
		return m, nil
	}
	return m.updateLists(msg)
}

func (m *Model) handleSlideKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.view = WrapListView
		m.presentation = nil
	case key.Matches(msg, m.keys.prev):
		if m.page > 0 {
			m.page--
		}
	case key.Matches(msg, m.keys.next):
		if m.page < m.presentation.Len()-1 {
			m.page++
		}
	case key.Matches(msg, m.keys.lang):
		m.lang = nextLanguage(m.lang)
		m.presentation = models.NewPresentation(m.presentation.Wrap, m.lang)
	}
	return m, nil
}

func (m *Model) handleTimeframeKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.view = WrapListView
		return m, nil
	case key.Matches(msg, m.keys.enter):
		if tf, ok := m.timeframes.SelectedItem().(timeframeItem); ok {
			m.view = CreateView
			return m, m.startCreate(string(tf))
		}
		return m, nil
	}
	return m.updateLists(msg)
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case WrapListView:
		m.wrapList, cmd = m.wrapList.Update(msg)
	case TimeframeView:
		m.timeframes, cmd = m.timeframes.Update(msg)
	}
	return m, cmd
}

func (m *Model) openWrap(w *models.Wrap) {
	m.presentation = models.NewPresentation(w, m.lang)
	m.page = 0
	m.view = SlideView
}

func nextLanguage(current models.Language) models.Language {
	i := slices.Index(models.Languages, current)
	return models.Languages[(i+1)%len(models.Languages)]
}

func (m *Model) fetchWraps() tea.Cmd {
	return func() tea.Msg {
		wraps, err := m.wraps.List(m.ctx, map[string]any{"profile_id": m.profileID})
		return wrapsFetchedMsg(wraps, err)
	}
}

func (m *Model) startCreate(timeframe string) tea.Cmd {
	m.progressChan = make(chan tasks.ProgressUpdate, 50)
	m.progress = tasks.ProgressUpdate{Message: "Starting..."}
	progress := m.progressChan

	go func() {
		w, err := m.create(m.ctx, progress, timeframe)
		m.pending = wrapCreated{wrap: w, err: err}
		close(progress)
	}()

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	progress := m.progressChan
	return func() tea.Msg {
		if progress == nil {
			return wrapCreatedMsg(m.pending.wrap, m.pending.err)
		}

		update, ok := <-progress
		if !ok {
			return wrapCreatedMsg(m.pending.wrap, m.pending.err)
		}
		return progressUpdateMsg(update)
	}
}

func (m *Model) renderWrapList() string {
	helpKeys := []key.Binding{m.keys.enter}
	if m.create != nil {
		helpKeys = append(helpKeys, m.keys.create)
	}
	helpKeys = append(helpKeys, m.keys.quit)

	var empty string
	if len(m.wrapList.Items()) == 0 {
		empty = styles.warn.Render("No wraps yet.") + "\n"
	}
	return fmt.Sprintf("%s\n%s\n%s", m.wrapList.View(), empty, m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderTimeframes() string {
	helpKeys := []key.Binding{m.keys.enter, m.keys.back, m.keys.quit}
	return fmt.Sprintf("%s\n\n%s", m.timeframes.View(), m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderCreate() string {
	title := styles.title.Render("Creating Wrap")

	var phase string
	switch m.progress.Phase {
	case tasks.FetchTopTracks, tasks.FetchTopArtists, tasks.FetchRecent:
		phase = "Fetching your listening history..."
	case tasks.FetchGenres, tasks.RankGenres:
		phase = "Ranking genres..."
	case tasks.Describe:
		phase = fmt.Sprintf("Writing descriptions (%d/%d)", m.progress.Step, m.progress.Total)
	case tasks.SaveWrap:
		phase = "Saving wrap..."
	default:
		phase = "Processing..."
	}

	return fmt.Sprintf("%s\n\n%s\n%s", title, phase, styles.help.Render(m.progress.Message))
}

func (m *Model) renderSlide() string {
	slide, err := m.presentation.Slide(m.page)
	if err != nil {
		return styles.err.Render(err.Error())
	}

	var b strings.Builder
	b.WriteString(styles.title.Render(slide.Title))
	b.WriteString("\n")

	switch slide.Kind {
	case models.SlideIntro:
		b.WriteString(m.presentation.Wrap.CreatedAt().Local().Format("Jan 2, 2006"))
	case models.SlideTopSongs, models.SlideTopArtists, models.SlideTopGenres:
		for i, item := range slide.Items {
			fmt.Fprintf(&b, "%d. %s\n", i+1, item)
		}
	case models.SlideDistinctArtists, models.SlideGenreCount:
		b.WriteString(styles.count.Render(fmt.Sprintf("%d", slide.Count)))
	case models.SlideCommentary:
		fmt.Fprintf(&b, "%s\n\n%s", slide.Text, styles.ok.Render(m.lang.Name()))
	case models.SlideSummary:
		for _, item := range slide.Items {
			fmt.Fprintf(&b, "• %s\n", item)
		}
	}

	footer := styles.help.Render(fmt.Sprintf("%d / %d", m.page+1, m.presentation.Len()))
	helpKeys := []key.Binding{m.keys.prev, m.keys.next, m.keys.lang, m.keys.back, m.keys.quit}

	return fmt.Sprintf("%s\n%s\n\n%s",
		styles.slide.Render(strings.TrimRight(b.String(), "\n")),
		footer,
		m.help.ShortHelpView(helpKeys),
	)
}
