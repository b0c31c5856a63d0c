package main

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/jwebster45206/storyforge/pkg/state"
	"github.com/jwebster45206/storyforge/pkg/story"
)

const PlaceHolderText = "Choice number, or /help"

var htmlTag = regexp.MustCompile(`</?[a-zA-Z][^>]*>`)

// aiEntry is the story list entry that starts a generated adventure.
const aiEntry = "AI Adventure"

// ConsoleUI is the BubbleTea model that runs the UI.
// https://github.com/charmbracelet/bubbletea
type ConsoleUI struct {
	api           *apiClient
	game          *GameView
	ended         bool
	storyViewport viewport.Model
	metaViewport  viewport.Model
	textarea      textarea.Model
	ready         bool
	width         int
	height        int
	err           error
	notice        string
	loading       bool

	// Story selection state
	showStoryModal bool
	stories        []StorySummary
	selectedStory  int
	enhanced       bool
	loadingStories bool
	resumeID       string

	// Quit confirmation state
	showQuitModal bool

	// Progress bar state
	progressTick int
}

type storiesLoadedMsg struct {
	stories []StorySummary
	err     error
}

type gameLoadedMsg struct {
	game *GameView
	err  error
}

type choiceMsg struct {
	outcome *ChoiceOutcome
	err     error
}

type savedMsg struct {
	saveID   string
	exported bool
	err      error
}

type progressTickMsg struct{}

var (
	storyPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(1).
			PaddingLeft(3).
			PaddingRight(0)

	metaPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(0).
			PaddingLeft(0).
			PaddingRight(2)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")). // pink
			Bold(true)

	sceneTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212")). // purple
			Bold(true)

	choiceStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")) // teal

	noticeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")) // green

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	loadingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // yellow

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2).
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("255"))

	modalTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			Align(lipgloss.Center)

	modalItemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	modalSelectedItemStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("0")).
				Background(lipgloss.Color("205")).
				Bold(true)
)

var separatorStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("240")) // dark grey

// NewConsoleUI starts on the story picker, or resumes resumeID when set.
func NewConsoleUI(api *apiClient, resumeID string) ConsoleUI {
	ta := textarea.New()
	ta.Placeholder = PlaceHolderText
	ta.Focus()
	ta.Prompt = promptStyle.Render(":: ")
	ta.CharLimit = 200
	ta.SetWidth(50)
	ta.SetHeight(1)
	ta.ShowLineNumbers = false

	storyVp := viewport.New(50, 20)
	storyVp.MouseWheelEnabled = true

	metaVp := viewport.New(20, 20)

	return ConsoleUI{
		api:            api,
		textarea:       ta,
		storyViewport:  storyVp,
		metaViewport:   metaVp,
		showStoryModal: resumeID == "",
		loadingStories: resumeID == "",
		resumeID:       resumeID,
		loading:        resumeID != "",
	}
}

func writeScene(scene *story.Scene, ended bool, width int) string {
	var content strings.Builder
	content.WriteString(titleStyle.Render("STORYFORGE") + "\n\n")
	content.WriteString(separatorStyle.Render(strings.Repeat("─", max(width-6, 1))) + "\n\n")

	if scene == nil {
		return content.String()
	}

	content.WriteString(sceneTitleStyle.Render(scene.Title) + "\n\n")
	text := htmlTag.ReplaceAllString(scene.Content, "\n")
	for _, para := range strings.Split(strings.TrimSpace(text), "\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		content.WriteString(wordwrap.String(para, width) + "\n\n")
	}

	if ended {
		content.WriteString(titleStyle.Render("The End") + "\n")
		content.WriteString(promptStyle.Render("Type /new to start another story.") + "\n")
		return content.String()
	}

	for i, c := range scene.Choices {
		line := fmt.Sprintf("%d. %s", i+1, c.Text)
		content.WriteString(choiceStyle.Render(wordwrap.String(line, width)) + "\n")
	}
	return content.String()
}

func writeMetadata(g *GameView) string {
	var content strings.Builder
	content.WriteString(titleStyle.Render("GAME") + "\n\n")

	gs := g.State
	content.WriteString(gs.Name + "\n")
	content.WriteString(promptStyle.Render(shortID(gs.ID)) + "\n\n")

	content.WriteString(fmt.Sprintf("Mode: %s\n", g.Mode))
	content.WriteString(fmt.Sprintf("Difficulty: %s\n\n", gs.Difficulty))

	if g.Mode != state.ModeAI {
		content.WriteString(fmt.Sprintf("Progress: %d%%\n", g.Progress))
		content.WriteString(progressBar(g.Progress, 16) + "\n")
		content.WriteString(fmt.Sprintf("~%d min left\n\n", g.RemainingMinutes))
	}

	content.WriteString(fmt.Sprintf("Scenes: %d\n", gs.GameProgress.ScenesVisited))
	content.WriteString(fmt.Sprintf("Choices: %d\n", gs.GameProgress.ChoicesMade))
	content.WriteString(fmt.Sprintf("Played: %d min\n", g.PlaytimeMinutes))

	content.WriteString("\n")
	content.WriteString("Commands:\n")
	content.WriteString("• 1-9: Choose\n")
	content.WriteString("• /save: Save\n")
	content.WriteString("• /export: Copy save\n")
	content.WriteString("• /new: New story\n")
	content.WriteString("• Ctrl+C: Quit\n")

	return content.String()
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8] + "..."
}

func progressBar(percent, width int) string {
	percent = min(max(percent, 0), 100)
	filled := percent * width / 100
	return separatorStyle.Render(strings.Repeat("█", filled) + strings.Repeat("░", width-filled))
}

// refresh re-renders both panels for the current size.
func (m *ConsoleUI) refresh() {
	width := m.storyViewport.Width - 6 // Account for left(3) + right(3) padding
	var scene *story.Scene
	if m.game != nil && m.game.State != nil {
		scene = m.game.State.CurrentScene
		m.metaViewport.SetContent(writeMetadata(m.game))
	}

	var content strings.Builder
	content.WriteString(writeScene(scene, m.ended, width))
	if m.loading {
		content.WriteString("\n" + m.renderProgressBar())
	}
	if m.notice != "" {
		content.WriteString("\n" + noticeStyle.Render(m.notice) + "\n")
	}
	if m.err != nil {
		content.WriteString("\n" + errorStyle.Render("Error: "+m.err.Error()) + "\n")
	}
	m.storyViewport.SetContent(content.String())
}

func (m *ConsoleUI) resize() {
	storyWidth := int(float64(m.width)*0.75) - 4
	metaWidth := m.width - storyWidth - 6

	m.storyViewport.Width = storyWidth - 2
	m.storyViewport.Height = m.height - 5
	m.metaViewport.Width = metaWidth - 2
	m.metaViewport.Height = m.height - 4
	m.textarea.SetWidth(storyWidth - 4)
}

func (m ConsoleUI) Init() tea.Cmd {
	if m.resumeID != "" {
		return tea.Batch(m.loadSave(m.resumeID), progressTick())
	}
	return m.loadStories()
}

func (m ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.showQuitModal {
		return m.updateQuitModal(msg)
	}
	if m.showStoryModal {
		return m.updateStoryModal(msg)
	}

	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.MouseMsg:
		m.storyViewport, vpCmd = m.storyViewport.Update(msg)
		return m, vpCmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		m.ready = true
		m.refresh()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.showQuitModal = true
			return m, nil
		case tea.KeyEnter:
			if m.loading {
				return m, nil
			}
			input := strings.TrimSpace(m.textarea.Value())
			m.textarea.Reset()
			if input == "" {
				return m, nil
			}
			if strings.HasPrefix(input, "/") {
				return m.handleCommand(input)
			}
			return m.handleChoice(input)
		}

	case gameLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.game = msg.game
			m.ended = false
			m.err = nil
		}
		m.refresh()
		return m, textarea.Blink

	case choiceMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			m.refresh()
			return m, nil
		}
		m.err = nil
		m.ended = msg.outcome.Ended
		if msg.outcome.Restarted {
			m.notice = "A new adventure begins."
		}
		// The outcome carries the state; fetch the view for progress details.
		m.game.State = msg.outcome.State
		m.game.Progress = msg.outcome.Progress
		m.refresh()
		m.storyViewport.GotoTop()
		return m, m.reloadGame(msg.outcome.State.ID)

	case savedMsg:
		m.loading = false
		switch {
		case msg.err != nil:
			m.err = msg.err
		case msg.exported:
			m.notice = "Save copied to clipboard."
		default:
			m.notice = "Game saved."
		}
		m.refresh()
		m.storyViewport.GotoBottom()

	case progressTickMsg:
		if m.loading {
			m.progressTick++
			m.refresh()
			return m, progressTick()
		}
	}

	m.textarea, tiCmd = m.textarea.Update(msg)
	m.storyViewport, vpCmd = m.storyViewport.Update(msg)

	return m, tea.Batch(tiCmd, vpCmd)
}

func (m ConsoleUI) handleChoice(input string) (tea.Model, tea.Cmd) {
	if m.game == nil || m.game.State == nil || m.game.State.CurrentScene == nil || m.ended {
		m.notice = "Type /new to start a story."
		m.refresh()
		return m, nil
	}

	choices := m.game.State.CurrentScene.Choices
	choiceID := input
	if n, err := strconv.Atoi(input); err == nil {
		if n < 1 || n > len(choices) {
			m.err = fmt.Errorf("choose a number from 1 to %d", len(choices))
			m.refresh()
			return m, nil
		}
		choiceID = choices[n-1].ID
	}

	m.loading = true
	m.progressTick = 0
	m.notice = ""
	m.err = nil
	m.refresh()
	return m, tea.Batch(m.sendChoice(m.game.State.ID, choiceID), progressTick())
}

func (m ConsoleUI) handleCommand(input string) (tea.Model, tea.Cmd) {
	fields := strings.Fields(input)
	cmd := strings.ToLower(fields[0])
	arg := strings.TrimSpace(strings.TrimPrefix(input, fields[0]))

	m.err = nil
	m.notice = ""

	switch cmd {
	case "/help":
		m.notice = `Commands:
• 1-9 - Make a choice
• /save [name] - Save the game
• /export - Save and copy the save to the clipboard
• /new - Pick another story
• Ctrl+C - Quit`
	case "/save", "/export":
		if m.game == nil {
			return m, nil
		}
		m.loading = true
		m.refresh()
		return m, tea.Batch(m.saveGame(m.game.State.ID, arg, cmd == "/export"), progressTick())
	case "/new":
		m.showStoryModal = true
		m.loadingStories = true
		return m, m.loadStories()
	case "/quit":
		m.showQuitModal = true
		return m, nil
	default:
		m.err = fmt.Errorf("unknown command %s", cmd)
	}

	m.refresh()
	m.storyViewport.GotoBottom()
	return m, nil
}

func (m ConsoleUI) sendChoice(gameID, choiceID string) tea.Cmd {
	return func() tea.Msg {
		out, err := m.api.choose(gameID, choiceID)
		return choiceMsg{out, err}
	}
}

func (m ConsoleUI) reloadGame(gameID string) tea.Cmd {
	return func() tea.Msg {
		g, err := m.api.getGame(gameID)
		return gameLoadedMsg{g, err}
	}
}

func (m ConsoleUI) saveGame(gameID, name string, export bool) tea.Cmd {
	return func() tea.Msg {
		id, err := m.api.save(gameID, name)
		if err != nil || !export {
			return savedMsg{saveID: id, err: err}
		}
		text, err := m.api.export(id)
		if err != nil {
			return savedMsg{saveID: id, err: err}
		}
		if err := clipboard.WriteAll(text); err != nil {
			return savedMsg{saveID: id, err: fmt.Errorf("failed to copy to clipboard: %w", err)}
		}
		return savedMsg{saveID: id, exported: true}
	}
}

func (m ConsoleUI) loadStories() tea.Cmd {
	return func() tea.Msg {
		stories, err := m.api.listStories()
		return storiesLoadedMsg{stories, err}
	}
}

func (m ConsoleUI) loadSave(saveID string) tea.Cmd {
	return func() tea.Msg {
		g, err := m.api.loadSave(saveID)
		return gameLoadedMsg{g, err}
	}
}

func (m ConsoleUI) startGame(storyID string, mode state.Mode) tea.Cmd {
	return func() tea.Msg {
		g, err := m.api.createGame(storyID, mode)
		return gameLoadedMsg{g, err}
	}
}

// storyEntries lists the picker rows: every story, then the AI adventure.
func (m ConsoleUI) storyEntries() []string {
	title := cases.Title(language.English)
	entries := make([]string, 0, len(m.stories)+1)
	for _, s := range m.stories {
		entries = append(entries, fmt.Sprintf("%s (%s, %d scenes)", s.Name, title.String(s.Genre), s.TotalScenes))
	}
	return append(entries, aiEntry)
}

func (m ConsoleUI) updateStoryModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case storiesLoadedMsg:
		m.loadingStories = false
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.stories = msg.stories
			m.err = nil
		}

	case gameLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.game = msg.game
		m.ended = false
		m.notice = ""
		m.showStoryModal = false
		if m.width > 0 && m.height > 0 {
			m.resize()
		}
		m.ready = true
		m.refresh()
		m.textarea.Focus()
		return m, textarea.Blink

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyEsc {
			if m.loadingStories {
				return m, tea.Quit
			}
			m.showQuitModal = true
			return m, nil
		}
		if m.loadingStories || m.loading {
			return m, nil
		}

		entries := m.storyEntries()
		switch msg.Type {
		case tea.KeyUp:
			if m.selectedStory > 0 {
				m.selectedStory--
			}
		case tea.KeyDown:
			if m.selectedStory < len(entries)-1 {
				m.selectedStory++
			}
		case tea.KeyTab:
			m.enhanced = !m.enhanced
		case tea.KeyEnter:
			m.loading = true
			m.err = nil
			if m.selectedStory >= len(m.stories) {
				return m, m.startGame("", state.ModeAI)
			}
			mode := state.ModeTemplate
			if m.enhanced {
				mode = state.ModeAIEnhanced
			}
			return m, m.startGame(m.stories[m.selectedStory].ID, mode)
		}
	}

	return m, nil
}

func (m ConsoleUI) updateQuitModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc, tea.KeyEnter:
			return m, tea.Quit
		default:
			switch msg.String() {
			case "y", "Y":
				return m, tea.Quit
			case "n", "N":
				m.showQuitModal = false
				if m.showStoryModal {
					return m, nil
				}
				m.textarea.Focus()
				return m, textarea.Blink
			}
		}
	}

	return m, nil
}

func (m ConsoleUI) renderQuitModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder
	content.WriteString(modalTitleStyle.Render("Quit Game?"))
	content.WriteString("\n\n")
	content.WriteString("Unsaved progress will be lost.")
	content.WriteString("\n\n")
	content.WriteString(promptStyle.Render("Press Y to quit, N to continue, or Ctrl+C to force quit"))

	modal := modalStyle.Width(50).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) renderStoryModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder

	switch {
	case m.loadingStories:
		content.WriteString(modalTitleStyle.Render("Loading Stories..."))
		content.WriteString("\n\n")
		content.WriteString(loadingStyle.Render("Please wait while we fetch available stories..."))
	case m.loading:
		content.WriteString(modalTitleStyle.Render("Creating Game..."))
		content.WriteString("\n\n")
		content.WriteString(loadingStyle.Render("Setting up your adventure..."))
	default:
		content.WriteString(modalTitleStyle.Render("Select a Story"))
		content.WriteString("\n\n")

		for i, entry := range m.storyEntries() {
			if i == m.selectedStory {
				content.WriteString(modalSelectedItemStyle.Render("▶ " + entry))
			} else {
				content.WriteString(modalItemStyle.Render("  " + entry))
			}
			content.WriteString("\n")
		}

		content.WriteString("\n")
		mode := "authored"
		if m.enhanced {
			mode = "AI enhanced"
		}
		content.WriteString(fmt.Sprintf("Story mode: %s\n\n", mode))
		if m.err != nil {
			content.WriteString(errorStyle.Render(m.err.Error()) + "\n\n")
		}
		content.WriteString(promptStyle.Render("↑/↓ to navigate, Tab to toggle mode, Enter to select, Ctrl+C to exit"))
	}

	modal := modalStyle.Width(64).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) View() string {
	if m.showQuitModal {
		return m.renderQuitModal()
	}
	if m.showStoryModal {
		return m.renderStoryModal()
	}
	if !m.ready {
		return "\n  Initializing..."
	}

	storyWidth := int(float64(m.width)*0.75) - 4
	metaWidth := m.width - storyWidth - 6

	storyPanel := storyPanelStyle.Width(storyWidth).Height(m.height - 3).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			m.storyViewport.View(),
			"",
			separatorStyle.Render(strings.Repeat("─", max(storyWidth-4, 1))),
			m.textarea.View(),
		),
	)

	metaPanel := metaPanelStyle.Width(metaWidth).Height(m.height - 2).Render(
		m.metaViewport.View(),
	)

	return lipgloss.JoinHorizontal(lipgloss.Top, storyPanel, metaPanel)
}

// renderProgressBar creates an animated progress bar while a scene is on its way
func (m ConsoleUI) renderProgressBar() string {
	usable := m.storyViewport.Width - 6
	if usable <= 0 {
		usable = 30 // fallback before sizing
	}
	if usable > 80 {
		usable = 80
	} else if usable < 10 {
		usable = 10
	}

	const totalFrames = 40
	frame := m.progressTick % totalFrames
	filled := (frame * usable) / totalFrames

	var bar strings.Builder
	for i := 0; i < usable; i++ {
		if i < filled {
			bar.WriteString("█")
		} else if i == filled && frame%4 < 2 {
			bar.WriteString("▓") // Blinking effect at the progress point
		} else {
			bar.WriteString("░")
		}
	}
	return separatorStyle.Render(bar.String())
}

// progressTick creates a command that sends a progress tick message
func progressTick() tea.Cmd {
	return tea.Tick(time.Millisecond*200, func(time.Time) tea.Msg {
		return progressTickMsg{}
	})
}
