package ui

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"chat_timelines/pkg/history"
	"chat_timelines/pkg/interaction"
	"chat_timelines/pkg/legend"
	"chat_timelines/pkg/model"
	"chat_timelines/pkg/settings"
	"chat_timelines/pkg/state"
)

const SplitViewThreshold = 100

type focus int

const (
	focusList focus = iota
	focusCanvas
	focusLegend
	focusDetail
)

// NavigateMsg is sent when the controller navigates to a message.
type NavigateMsg struct {
	SessionID string
	Depth     int
}

// previewSettledMsg fires once the list selection has rested for the
// tooltip delay, so scrolling through nodes does not re-render the detail
// pane on every step.
type previewSettledMsg struct {
	index int
}

// ProgramNavigator forwards navigation requests into the running bubbletea
// program and records them in the history store. The program pointer is set
// after tea.NewProgram, so access is guarded.
type ProgramNavigator struct {
	mu        sync.Mutex
	program   *tea.Program
	store     *state.Store
	hist      *history.Store
	contextID string
}

// NewProgramNavigator creates a navigator over the given store and optional
// history database.
func NewProgramNavigator(store *state.Store, hist *history.Store, contextID string) *ProgramNavigator {
	return &ProgramNavigator{store: store, hist: hist, contextID: contextID}
}

// SetProgram installs the running program. Safe to call once the program
// exists; navigation requests before that are history-recorded but not
// delivered.
func (n *ProgramNavigator) SetProgram(p *tea.Program) {
	n.mu.Lock()
	n.program = p
	n.mu.Unlock()
}

// Navigate implements interaction.Navigator.
func (n *ProgramNavigator) Navigate(sessionID string, depth int) {
	if n.hist != nil {
		nodeID := ""
		g := n.store.Snapshot()
		for i := range g.Nodes {
			if g.Nodes[i].Depth != depth {
				continue
			}
			for _, s := range g.Nodes[i].ChatSessions {
				if s == sessionID {
					nodeID = g.Nodes[i].ID
					break
				}
			}
			if nodeID != "" {
				break
			}
		}
		err := n.hist.Record(context.Background(), history.Visit{
			ContextID: n.contextID,
			SessionID: sessionID,
			NodeID:    nodeID,
			Depth:     depth,
		})
		if err != nil {
			log.Printf("history: %v", err)
		}
	}

	n.mu.Lock()
	p := n.program
	n.mu.Unlock()
	if p != nil {
		p.Send(NavigateMsg{SessionID: sessionID, Depth: depth})
	}
}

// Model is the root TUI model: node list on the left, timeline canvas on
// the right, with search, legend, detail drawer, and session picker
// overlays.
type Model struct {
	store      *state.Store
	controller *interaction.Controller
	canvas     *Canvas
	worker     *BackgroundWorker
	hist       *history.Store
	opts       settings.Settings
	contextID  string

	list        list.Model
	viewport    viewport.Model
	renderer    *glamour.TermRenderer
	searchInput textinput.Model

	legendEntries []legend.Entry
	legendIndex   int

	hoverTimer *interaction.HoverTimer
	previewCh  chan previewSettledMsg

	sessionPicker *SessionPickerModel

	focused      focus
	isSplitView  bool
	searchActive bool
	ready        bool
	width        int
	height       int

	statusMsg   string
	statusUntil time.Time
	lastErr     error
}

// ModelConfig wires the TUI to its collaborators.
type ModelConfig struct {
	Store      *state.Store
	Controller *interaction.Controller
	Canvas     *Canvas
	History    *history.Store // optional; nil disables the recent-jumps panel
	Options    settings.Settings
	ContextID  string
}

// NewModel creates the root model around an already-built state store.
func NewModel(cfg ModelConfig) Model {
	g := cfg.Store.Snapshot()

	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.Foreground(ColorPrimary).BorderForeground(ColorPrimary)
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.Foreground(ColorSubtext).BorderForeground(ColorPrimary)

	l := list.New(nodeItems(g), delegate, 0, 0)
	l.Title = "Messages"
	l.SetShowHelp(false)
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false) // search goes through the highlight slot instead
	l.DisableQuitKeybindings()

	r, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)

	ti := textinput.New()
	ti.Placeholder = "Search name or message..."
	ti.CharLimit = 200
	ti.Width = 40

	m := Model{
		store:         cfg.Store,
		controller:    cfg.Controller,
		canvas:        cfg.Canvas,
		hist:          cfg.History,
		opts:          cfg.Options,
		contextID:     cfg.ContextID,
		list:          l,
		renderer:      r,
		searchInput:   ti,
		legendEntries: legend.Build(g),
		focused:       focusList,
		hoverTimer:    &interaction.HoverTimer{},
		previewCh:     make(chan previewSettledMsg, 1),
	}

	m.canvas.Redraw(g, interaction.LayoutFor(cfg.Store.Orientation(), cfg.Options))
	m.controller.ApplyLockOnLoad()
	return m
}

// SetWorker attaches the background worker so the model can trigger manual
// refreshes.
func (m *Model) SetWorker(w *BackgroundWorker) {
	m.worker = w
}

func (m Model) Init() tea.Cmd {
	return m.waitPreview()
}

// waitPreview is the subscription that delivers settled-selection events
// back into Update.
func (m Model) waitPreview() tea.Cmd {
	ch := m.previewCh
	return func() tea.Msg { return <-ch }
}

// schedulePreview defers the detail-pane render until the selection has
// rested for tooltip_delay_ms. Rescheduling replaces the pending preview,
// so a stale node never appears after the selection has moved on.
func (m *Model) schedulePreview() {
	idx := m.list.Index()
	ch := m.previewCh
	m.hoverTimer.Schedule(time.Duration(m.opts.TooltipDelayMs)*time.Millisecond, func() {
		select {
		case ch <- previewSettledMsg{index: idx}:
		default:
		}
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case SnapshotReadyMsg:
		m.installSnapshot(msg.Snapshot)
		m.toast("timeline rebuilt")

	case SnapshotErrorMsg:
		// Previous graph stays on screen.
		m.lastErr = msg.Err
		m.toast(fmt.Sprintf("rebuild failed: %v", msg.Err))

	case previewSettledMsg:
		if msg.index == m.list.Index() {
			m.updateViewportContent()
		}
		return m, m.waitPreview()

	case NavigateMsg:
		m.selectNode(msg.SessionID, msg.Depth)
		m.canvas.OpenDrawer()
		m.updateViewportContent()
		m.toast(fmt.Sprintf("opened %s @ message %d", msg.SessionID, msg.Depth))

	case tea.KeyMsg:
		if handled, c := m.handleKey(msg); handled {
			if c != nil {
				cmds = append(cmds, c)
			}
			return m, tea.Batch(cmds...)
		}

	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
	}

	if m.searchActive {
		prev := m.searchInput.Value()
		m.searchInput, cmd = m.searchInput.Update(msg)
		cmds = append(cmds, cmd)
		if v := m.searchInput.Value(); v != prev {
			m.controller.SearchChanged(v)
		}
		return m, tea.Batch(cmds...)
	}

	if m.focused == focusList && m.sessionPicker == nil {
		prevIdx := m.list.Index()
		m.list, cmd = m.list.Update(msg)
		cmds = append(cmds, cmd)
		if m.isSplitView && m.list.Index() != prevIdx {
			m.schedulePreview()
		}
	} else if m.focused == focusDetail {
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// handleKey routes key presses. Returns true when the key was consumed.
func (m *Model) handleKey(msg tea.KeyMsg) (bool, tea.Cmd) {
	key := msg.String()

	// Session picker modal swallows everything while open.
	if m.sessionPicker != nil {
		switch key {
		case "j", "down":
			m.sessionPicker.MoveDown()
		case "k", "up":
			m.sessionPicker.MoveUp()
		case "enter":
			session := m.sessionPicker.SelectedSession()
			node := m.sessionPicker.Node()
			m.sessionPicker = nil
			m.controller.ContextSessionSelected(session, node)
		case "esc", "q":
			m.sessionPicker = nil
		}
		return true, nil
	}

	if m.searchActive {
		switch key {
		case "esc":
			m.searchActive = false
			m.searchInput.Blur()
			m.searchInput.SetValue("")
			m.controller.SearchChanged("")
			return true, nil
		case "enter":
			m.searchActive = false
			m.searchInput.Blur()
			return true, nil
		}
		return false, nil // let the textinput consume it
	}

	switch key {
	case "ctrl+c", "q":
		if m.canvas.DrawerOpen() && !m.isSplitView {
			m.canvas.CloseDrawer()
			return true, nil
		}
		return true, tea.Quit

	case "esc":
		if m.canvas.DrawerOpen() {
			m.canvas.CloseDrawer()
			return true, nil
		}
		if m.focused == focusLegend {
			m.legendLeave()
			m.focused = focusList
			return true, nil
		}

	case "/":
		m.searchActive = true
		m.searchInput.Focus()
		return true, nil

	case "r":
		o := m.controller.RotateRequested()
		m.toast(fmt.Sprintf("orientation %s", o))
		return true, nil

	case "g":
		if m.worker != nil {
			m.worker.TriggerRefresh()
			m.toast("refresh requested")
		}
		return true, nil

	case "tab":
		m.cycleFocus()
		return true, nil

	case "L":
		if m.focused == focusLegend {
			m.legendLeave()
			m.focused = focusList
		} else {
			m.focused = focusLegend
			m.legendHover()
		}
		return true, nil

	case "enter":
		if m.focused == focusLegend {
			if e := m.currentLegendEntry(); e != nil {
				m.controller.LegendClicked(e.Selector)
			}
			return true, nil
		}
		if m.focused == focusList {
			if node, ok := m.selectedNode(); ok {
				if _, single := node.SingleSession(); single {
					m.controller.NodeActivated(node)
				} else {
					// Shared node: open the disambiguation picker.
					picker := NewSessionPickerModel(node)
					picker.SetSize(m.width, m.height)
					m.sessionPicker = &picker
				}
			}
			return true, nil
		}

	case "j", "down":
		if m.focused == focusLegend {
			m.legendUnhover()
			if m.legendIndex < len(m.legendEntries)-1 {
				m.legendIndex++
			}
			m.legendHover()
			return true, nil
		}
		if m.focused == focusCanvas {
			m.canvas.Scroll(1)
			return true, nil
		}

	case "k", "up":
		if m.focused == focusLegend {
			m.legendUnhover()
			if m.legendIndex > 0 {
				m.legendIndex--
			}
			m.legendHover()
			return true, nil
		}
		if m.focused == focusCanvas {
			m.canvas.Scroll(-1)
			return true, nil
		}

	case "p":
		if node, ok := m.selectedNode(); ok {
			locked := m.controller.ToggleNodeLock(node.ID)
			if locked {
				m.toast("node pinned")
			} else {
				m.toast("node released")
			}
		}
		return true, nil

	case "y":
		if node, ok := m.selectedNode(); ok {
			if err := clipboard.WriteAll(node.Msg); err != nil {
				m.toast(fmt.Sprintf("copy failed: %v", err))
			} else {
				m.toast("message copied")
			}
		}
		return true, nil

	case "H":
		m.showRecentJumps()
		return true, nil
	}

	return false, nil
}

func (m *Model) cycleFocus() {
	if m.focused == focusLegend {
		m.legendLeave()
	}
	switch m.focused {
	case focusList:
		m.focused = focusCanvas
	case focusCanvas:
		if m.isSplitView && m.canvas.DrawerOpen() {
			m.focused = focusDetail
		} else {
			m.focused = focusList
		}
	default:
		m.focused = focusList
	}
}

func (m *Model) legendHover() {
	if e := m.currentLegendEntry(); e != nil {
		m.controller.LegendHover(e.Selector)
	}
}

func (m *Model) legendUnhover() {
	if e := m.currentLegendEntry(); e != nil {
		m.controller.LegendUnhover(e.Selector)
	}
}

// legendLeave clears any preview highlight when legend focus ends. A locked
// selector keeps its highlight.
func (m *Model) legendLeave() {
	m.legendUnhover()
}

func (m *Model) currentLegendEntry() *legend.Entry {
	if m.legendIndex >= 0 && m.legendIndex < len(m.legendEntries) {
		return &m.legendEntries[m.legendIndex]
	}
	return nil
}

func (m *Model) selectedNode() (model.Node, bool) {
	item := m.list.SelectedItem()
	if item == nil {
		return model.Node{}, false
	}
	return item.(NodeItem).Node, true
}

// installSnapshot swaps in a rebuilt graph: the store is invalidated so the
// rebuild decision fires, ephemeral interaction state resets, and every
// surface regenerates from the new snapshot.
func (m *Model) installSnapshot(snap *GraphSnapshot) {
	if snap == nil {
		return
	}
	m.store.Invalidate()
	_, err := m.store.EnsureBuilt(m.contextID, func() (model.Graph, error) {
		return snap.Graph, nil
	})
	if err != nil {
		m.lastErr = err
		return
	}

	g := m.store.Snapshot()
	m.list.SetItems(nodeItems(g))
	m.legendEntries = legend.Build(g)
	m.legendIndex = 0
	m.canvas.Redraw(g, interaction.LayoutFor(m.store.Orientation(), m.opts))
	m.controller.ApplyLockOnLoad()
	m.searchInput.SetValue("")
	m.searchActive = false
	m.updateViewportContent()
}

// selectNode moves the list selection to the node owned by the session at
// the given depth.
func (m *Model) selectNode(sessionID string, depth int) {
	for i, item := range m.list.Items() {
		n := item.(NodeItem).Node
		if n.Depth != depth {
			continue
		}
		for _, s := range n.ChatSessions {
			if s == sessionID {
				m.list.Select(i)
				m.updateViewportContent()
				return
			}
		}
	}
}

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height
	m.isSplitView = width > SplitViewThreshold
	m.ready = true

	footerHeight := 1
	available := height - footerHeight

	if m.isSplitView {
		listWidth := int(float64(width) * 0.35)
		canvasWidth := width - listWidth - 4
		m.list.SetSize(listWidth, available)
		m.canvas.SetSize(canvasWidth-2, available-2)
		m.viewport = viewport.New(canvasWidth, available-2)
		m.renderer, _ = glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(canvasWidth-4),
		)
	} else {
		m.list.SetSize(width, available)
		m.canvas.SetSize(width-2, available-2)
		m.viewport = viewport.New(width, available-2)
	}
	if m.sessionPicker != nil {
		m.sessionPicker.SetSize(width, height)
	}
	m.updateViewportContent()
}

func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	if m.sessionPicker != nil {
		return m.sessionPicker.View()
	}

	var body string
	if m.isSplitView {
		listStyle, canvasStyle := PanelStyle, PanelStyle
		switch m.focused {
		case focusList:
			listStyle = FocusedPanelStyle
		case focusCanvas, focusDetail, focusLegend:
			canvasStyle = FocusedPanelStyle
		}

		right := m.canvas.View()
		if m.canvas.DrawerOpen() {
			right = m.viewport.View()
		}
		right = lipgloss.JoinVertical(lipgloss.Left, right, m.renderLegend())

		listView := listStyle.Width(m.list.Width()).Height(m.height - 2).Render(m.list.View())
		rightView := canvasStyle.Height(m.height - 2).Render(right)
		body = lipgloss.JoinHorizontal(lipgloss.Top, listView, rightView)
	} else {
		if m.canvas.DrawerOpen() {
			body = m.viewport.View()
		} else if m.focused == focusCanvas {
			body = m.canvas.View()
		} else {
			body = m.list.View()
		}
	}

	return lipgloss.JoinVertical(lipgloss.Left, body, m.renderFooter())
}

func (m Model) renderLegend() string {
	if len(m.legendEntries) == 0 {
		return ""
	}
	locked := m.store.LockedSelector()

	var parts []string
	for i, e := range m.legendEntries {
		swatch := lipgloss.NewStyle().Foreground(lipgloss.Color(e.Color)).Render("■")
		label := e.Label
		style := lipgloss.NewStyle().Foreground(ColorSubtext)
		if e.Selector == locked {
			style = LockedStyle
		}
		if m.focused == focusLegend && i == m.legendIndex {
			label = "▸" + label
			style = style.Bold(true).Foreground(ColorText)
		}
		parts = append(parts, swatch+" "+style.Render(label))
	}
	return DimStyle.Render("legend: ") + strings.Join(parts, "  ")
}

func (m *Model) renderFooter() string {
	helpStyle := lipgloss.NewStyle().Foreground(ColorSubtext)
	countStyle := lipgloss.NewStyle().Foreground(ColorSecondary).Padding(0, 1)

	orientation := fmt.Sprintf(" %s ", m.store.Orientation())
	count := fmt.Sprintf("%d messages", len(m.list.Items()))

	var left string
	if m.searchActive {
		left = m.searchInput.View()
	} else if m.statusMsg != "" && time.Now().Before(m.statusUntil) {
		left = m.statusMsg
	} else if m.lastErr != nil {
		left = lipgloss.NewStyle().Foreground(ColorAccent).Render(fmt.Sprintf("error: %v", m.lastErr))
	}

	var keys string
	switch {
	case m.searchActive:
		keys = "esc: clear • enter: keep highlight"
	case m.focused == focusLegend:
		keys = "j/k: entries • enter: lock • esc: back"
	default:
		keys = "/: search • r: rotate • L: legend • p: pin • H: recent • y: copy • q: quit"
	}

	orientSection := lipgloss.NewStyle().Background(ColorPrimary).Foreground(ColorBgDark).Bold(true).Render(orientation)
	leftSection := lipgloss.NewStyle().Padding(0, 1).Render(left)
	countSection := countStyle.Render(count)
	keysSection := helpStyle.Padding(0, 1).Render(keys)

	used := lipgloss.Width(orientSection) + lipgloss.Width(leftSection) + lipgloss.Width(countSection) + lipgloss.Width(keysSection)
	remaining := m.width - used
	if remaining < 0 {
		remaining = 0
	}
	filler := lipgloss.NewStyle().Width(remaining).Render("")

	return lipgloss.JoinHorizontal(lipgloss.Bottom, orientSection, leftSection, filler, countSection, keysSection)
}

// showRecentJumps renders the navigation history for this context into the
// detail drawer, newest first.
func (m *Model) showRecentJumps() {
	if m.hist == nil {
		m.toast("no history database")
		return
	}
	visits, err := m.hist.Recent(context.Background(), m.contextID, 20)
	if err != nil {
		m.toast(fmt.Sprintf("history: %v", err))
		return
	}
	if len(visits) == 0 {
		m.toast("no recent jumps")
		return
	}

	var sb strings.Builder
	sb.WriteString("# Recent jumps\n\n")
	sb.WriteString("| When | Session | Message |\n|---|---|---|\n")
	for _, v := range visits {
		sb.WriteString(fmt.Sprintf("| %s | %s | %d |\n",
			v.VisitedAt.Format("Jan 2 15:04"), v.SessionID, v.Depth))
	}

	rendered, rerr := m.renderer.Render(sb.String())
	if rerr != nil {
		m.viewport.SetContent(sb.String())
	} else {
		m.viewport.SetContent(rendered)
	}
	m.canvas.OpenDrawer()
}

func (m *Model) toast(msg string) {
	m.statusMsg = msg
	m.statusUntil = time.Now().Add(3 * time.Second)
}

func (m *Model) updateViewportContent() {
	node, ok := m.selectedNode()
	if !ok {
		m.viewport.SetContent("No message selected")
		return
	}

	var sb strings.Builder
	name := node.Name
	if name == "" {
		name = node.FileName
	}
	sb.WriteString(fmt.Sprintf("# %s\n\n", name))

	sb.WriteString("| Depth | Sessions | Bookmark |\n|---|---|---|\n")
	bookmark := "-"
	if node.IsBookmark {
		bookmark = "yes"
	}
	sb.WriteString(fmt.Sprintf("| %d | %d | %s |\n\n", node.Depth, len(node.ChatSessions), bookmark))

	if node.Msg != "" {
		sb.WriteString(node.Msg + "\n\n")
	}

	if len(node.ChatSessions) > 0 {
		sb.WriteString("### Sessions\n\n")
		for _, s := range node.ChatSessions {
			sb.WriteString("- " + s + "\n")
		}
	}

	rendered, err := m.renderer.Render(sb.String())
	if err != nil {
		m.viewport.SetContent(fmt.Sprintf("Error rendering markdown: %v", err))
	} else {
		m.viewport.SetContent(rendered)
	}
}
