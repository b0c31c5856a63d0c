// Package game runs playthroughs: it ties the story catalog, the scene
// walker, the language model and the save adapter to one game state store
// per session.
package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jwebster45206/storyforge/internal/events"
	"github.com/jwebster45206/storyforge/internal/llm"
	"github.com/jwebster45206/storyforge/internal/metrics"
	"github.com/jwebster45206/storyforge/pkg/catalog"
	"github.com/jwebster45206/storyforge/pkg/narrative"
	"github.com/jwebster45206/storyforge/pkg/saves"
	"github.com/jwebster45206/storyforge/pkg/state"
	"github.com/jwebster45206/storyforge/pkg/story"
	"github.com/jwebster45206/storyforge/pkg/textfilter"
	"github.com/jwebster45206/storyforge/pkg/walker"
)

var (
	ErrChoiceNotFound  = errors.New("choice not found in current scene")
	ErrStoryNotFound   = errors.New("story not found")
	ErrSessionNotFound = errors.New("game not found")
	ErrInvalidMode     = errors.New("invalid game mode")
)

// Game names for generated adventures.
const (
	AIGameName         = "AI Adventure"
	AIEnhancedNameTmpl = "AI Enhanced: %s"
)

// Deps are the services a session uses. Generator, Events, Filter and
// Metrics may be nil.
type Deps struct {
	Catalog   *catalog.Catalog
	Generator llm.Generator
	Saves     *saves.Manager
	Events    events.Bus
	Filter    *textfilter.Filter
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

// Outcome is the result of a choice.
type Outcome struct {
	Scene     *story.Scene     `json:"scene,omitempty"`
	State     *state.GameState `json:"state"`
	Generated bool             `json:"generated"`
	Restarted bool             `json:"restarted"`
	Ended     bool             `json:"ended"`
	Progress  int              `json:"progress"`
}

// View is a read-only summary of a session.
type View struct {
	State            *state.GameState      `json:"state"`
	Mode             state.Mode            `json:"mode"`
	Progress         int                   `json:"progress"`
	RemainingMinutes int                   `json:"remainingMinutes"`
	PlaytimeMinutes  int                   `json:"playtimeMinutes"`
	Story            *walker.StoryMetadata `json:"story,omitempty"`
	Ending           bool                  `json:"ending"`
}

// Session is one player's playthrough. It is safe for concurrent use; calls
// are serialised.
type Session struct {
	mu       sync.Mutex
	deps     Deps
	store    *state.Store
	walker   *walker.Walker
	parser   *narrative.Parser
	mode     state.Mode
	entities narrative.EntitySet
	now      func() time.Time
}

// NewSession creates an idle session. Call StartStory, StartAI or Load
// before Choose.
func NewSession(deps Deps) *Session {
	if deps.Events == nil {
		deps.Events = events.Nop{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Session{
		deps:   deps,
		store:  state.NewStore(),
		walker: walker.New(deps.Catalog),
		parser: narrative.NewParser(),
		mode:   state.ModeTemplate,
		now:    time.Now,
	}
}

// Subscribe observes every state change of the session.
func (s *Session) Subscribe(fn state.Observer) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Subscribe(fn)
}

func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Current().ID
}

func (s *Session) State() *state.GameState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Current()
}

func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	gs := s.store.Current()
	v := View{
		State:           gs,
		Mode:            s.mode,
		PlaytimeMinutes: s.store.TotalPlaytimeMinutes(),
		Ending:          gs.CurrentScene != nil && gs.CurrentScene.IsEnding(),
	}
	if s.walker.StoryID() != "" {
		v.Progress = s.walker.ProgressPercent()
		v.RemainingMinutes = s.walker.EstimatedRemainingMinutes()
		v.Story = s.walker.Metadata()
	}
	return v
}

// Profile returns the impact profile of the choices made so far.
func (s *Session) Profile() (state.ProfileView, error) {
	gs := s.State()
	actor, err := state.ImpactProfile(gs)
	if err != nil {
		return state.ProfileView{}, err
	}
	return state.NewProfileView(gs.ID, actor), nil
}

// StartStory begins an authored story in template or ai-enhanced mode.
func (s *Session) StartStory(ctx context.Context, storyID string, mode state.Mode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startStory(ctx, storyID, mode)
}

func (s *Session) startStory(ctx context.Context, storyID string, mode state.Mode) error {
	if mode == "" {
		mode = state.ModeTemplate
	}
	if mode != state.ModeTemplate && mode != state.ModeAIEnhanced {
		return fmt.Errorf("%w: %s cannot start an authored story", ErrInvalidMode, mode)
	}
	st, ok := s.deps.Catalog.Get(storyID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrStoryNotFound, storyID)
	}
	scene, ok := s.walker.Start(storyID)
	if !ok {
		return fmt.Errorf("%w: %s has no start scene", ErrStoryNotFound, storyID)
	}

	name := st.Name
	if mode == state.ModeAIEnhanced {
		name = fmt.Sprintf(AIEnhancedNameTmpl, st.Name)
	}

	s.applyDefaultDifficulty(ctx)
	s.mode = mode
	s.entities = narrative.ExtractEntities(scene)
	s.store.CreateNewGame(name)
	s.store.SetCurrentScene(scene)
	s.store.UpdateProgress(state.ProgressUpdate{ScenesVisited: state.Int(1)})
	s.syncEngine()
	s.countScene("template")

	s.deps.Logger.Info("Story started", "game_id", s.store.Current().ID, "story_id", storyID, "mode", mode)
	return nil
}

// StartAI begins a fully generated adventure. It fails with
// llm.ErrUnavailable when no model is loaded.
func (s *Session) StartAI(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startAI(ctx)
}

func (s *Session) startAI(ctx context.Context) error {
	if !s.generatorReady() {
		return llm.ErrUnavailable
	}
	scene, err := s.generate(ctx, narrative.OpeningPrompt)
	if err != nil {
		return err
	}

	s.applyDefaultDifficulty(ctx)
	s.mode = state.ModeAI
	s.walker.Restore(walker.Snapshot{})
	s.entities = narrative.ExtractEntities(scene)
	s.store.CreateNewGame(AIGameName)
	s.store.SetCurrentScene(scene)
	s.store.UpdateProgress(state.ProgressUpdate{ScenesVisited: state.Int(1)})
	s.syncEngine()

	gameID := s.store.Current().ID
	s.publish(events.SceneGenerated(gameID, scene, s.now()))
	s.deps.Logger.Info("AI adventure started", "game_id", gameID, "scene_id", scene.ID)
	return nil
}

// Load replaces the session state with a saved game and restores the walker
// and entity memory recorded with it.
func (s *Session) Load(gs *state.GameState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.LoadGame(gs); err != nil {
		return err
	}

	cur := s.store.Current()
	s.mode = cur.Mode
	if s.mode == "" {
		s.mode = state.ModeTemplate
	}

	switch {
	case cur.Walker != nil:
		s.walker.Restore(*cur.Walker)
	case cur.StoryID != "":
		s.walker.Restore(walker.Snapshot{StoryID: cur.StoryID})
	default:
		// Saves without engine data: find the story that owns the scene.
		s.walker.Restore(walker.Snapshot{StoryID: s.storyOwning(cur.CurrentScene)})
	}
	if cur.CurrentScene != nil && s.walker.StoryID() != "" {
		if _, ok := s.walker.SceneByID(cur.CurrentScene.ID); ok && !s.walker.HasVisited(cur.CurrentScene.ID) {
			snap := s.walker.Snapshot()
			snap.VisitedScenes = append(snap.VisitedScenes, cur.CurrentScene.ID)
			s.walker.Restore(snap)
		}
	}

	s.entities = narrative.EntitySet{Characters: []string{}, Locations: []string{}, Themes: []string{}}
	if cur.Entities != nil {
		s.entities = s.entities.Union(*cur.Entities)
	}
	s.syncEngine()
	return nil
}

func (s *Session) storyOwning(scene *story.Scene) string {
	if scene == nil {
		return ""
	}
	for _, st := range s.deps.Catalog.List() {
		if _, ok := st.Scenes[scene.ID]; ok {
			return st.ID
		}
	}
	return ""
}

// Choose applies the player's choice. The next scene is produced before any
// state changes, so a failed generation leaves the game exactly as it was.
func (s *Session) Choose(ctx context.Context, choiceID string) (*Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.store.Current()
	if cur.CurrentScene == nil {
		return nil, ErrChoiceNotFound
	}
	choice, ok := cur.CurrentScene.Choice(choiceID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrChoiceNotFound, choiceID)
	}

	if choice.ID == story.RestartChoiceID && choice.NextSceneID == "" {
		return s.restart(ctx)
	}

	next, generated, err := s.nextScene(ctx, cur, choice)
	if err != nil {
		return nil, err
	}

	s.store.RecordChoice(choice)
	out := &Outcome{Generated: generated}
	if next == nil {
		out.Ended = true
	} else {
		s.store.SetCurrentScene(next)
		s.store.UpdateProgress(state.ProgressUpdate{
			ScenesVisited: state.Int(cur.GameProgress.ScenesVisited + 1),
		})
		if generated {
			s.entities = s.entities.Union(narrative.ExtractEntities(next))
			s.countScene("ai")
		} else {
			s.countScene("template")
		}
		out.Scene = next
	}
	s.syncEngine()

	gs := s.store.Current()
	if generated {
		s.publish(events.SceneGenerated(gs.ID, next, s.now()))
	}
	if next != nil {
		s.autosave(ctx, gs)
	}

	out.State = gs
	out.Progress = s.progress()
	return out, nil
}

func (s *Session) restart(ctx context.Context) (*Outcome, error) {
	var err error
	if s.mode == state.ModeAI || s.walker.StoryID() == "" {
		err = s.startAI(ctx)
	} else {
		err = s.startStory(ctx, s.walker.StoryID(), s.mode)
	}
	if err != nil {
		return nil, err
	}
	gs := s.store.Current()
	return &Outcome{
		Scene:     gs.CurrentScene,
		State:     gs,
		Restarted: true,
		Generated: s.mode == state.ModeAI,
		Progress:  s.progress(),
	}, nil
}

// nextScene returns the scene that follows choice, or nil when the story
// ends there. Generated scenes are used in ai and ai-enhanced modes; an
// ai-enhanced game falls back to the authored graph when no model is ready.
func (s *Session) nextScene(ctx context.Context, cur *state.GameState, choice story.Choice) (*story.Scene, bool, error) {
	useAI := s.mode != state.ModeTemplate && s.generatorReady()
	if s.mode == state.ModeAI && !useAI {
		return nil, false, llm.ErrUnavailable
	}

	if useAI {
		prompt, err := narrative.NewPromptBuilder().
			WithChoice(choice).
			WithCurrentScene(cur.CurrentScene).
			WithHistory(cur.PlayerChoices).
			WithEntities(s.entities).
			WithScenesVisited(cur.GameProgress.ScenesVisited).
			Build()
		if err != nil {
			return nil, false, err
		}
		scene, err := s.generate(ctx, prompt)
		if err != nil {
			return nil, false, err
		}
		return scene, true, nil
	}

	scene, ok := s.walker.Advance(choice)
	if !ok {
		if choice.NextSceneID != "" {
			s.deps.Logger.Warn("Choice points at a missing scene",
				"story_id", s.walker.StoryID(), "choice_id", choice.ID, "next_scene_id", choice.NextSceneID)
		}
		return nil, false, nil
	}
	return scene, false, nil
}

func (s *Session) generatorReady() bool {
	return s.deps.Generator != nil && s.deps.Generator.Ready()
}

func (s *Session) generate(ctx context.Context, prompt string) (*story.Scene, error) {
	text, err := s.deps.Generator.Generate(ctx, prompt)
	if err != nil {
		s.deps.Logger.Error("Scene generation failed", "error", err)
		return nil, err
	}
	scene := s.parser.Parse(text)
	if s.deps.Filter != nil && s.deps.Saves != nil {
		on, err := saves.Setting(ctx, s.deps.Saves, saves.SettingContentFilter, false)
		if err != nil {
			s.deps.Logger.Warn("Failed to read content filter setting", "error", err)
		}
		if on {
			scene = s.deps.Filter.Scene(scene)
		}
	}
	return scene, nil
}

// Save persists the current game and returns the save id.
func (s *Session) Save(ctx context.Context, name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(ctx, name, "save")
}

func (s *Session) save(ctx context.Context, name, op string) (string, error) {
	if s.deps.Saves == nil {
		return "", errors.New("saving is not configured")
	}
	s.store.CommitPlaytime()
	gs := s.store.Current()

	id, err := s.deps.Saves.Save(ctx, gs, name)
	if s.deps.Metrics != nil {
		s.deps.Metrics.SavesTotal.WithLabelValues(op, metrics.Status(err)).Inc()
	}
	if err != nil {
		return "", err
	}

	saved, err := s.deps.Saves.Get(ctx, id)
	if err != nil {
		s.deps.Logger.Warn("Failed to read back save", "save_id", id, "error", err)
	}
	savedName := name
	if saved != nil {
		savedName = saved.Name
	}
	s.publish(events.Saved(gs.ID, id, savedName, s.now()))
	return id, nil
}

func (s *Session) autosave(ctx context.Context, gs *state.GameState) {
	if s.deps.Saves == nil {
		return
	}
	on, err := saves.Setting(ctx, s.deps.Saves, saves.SettingAutosave, false)
	if err != nil {
		s.deps.Logger.Warn("Failed to read autosave setting", "error", err)
		return
	}
	if !on {
		return
	}
	if _, err := s.save(ctx, "Autosave: "+gs.Name, "autosave"); err != nil {
		s.deps.Logger.Warn("Autosave failed", "game_id", gs.ID, "error", err)
	}
}

func (s *Session) applyDefaultDifficulty(ctx context.Context) {
	if s.deps.Saves == nil {
		return
	}
	raw, err := saves.Setting(ctx, s.deps.Saves, saves.SettingDifficulty, string(state.DifficultyNormal))
	if err != nil {
		s.deps.Logger.Warn("Failed to read difficulty setting", "error", err)
		return
	}
	d, err := state.ParseDifficulty(raw)
	if err != nil {
		s.deps.Logger.Warn("Ignoring invalid difficulty setting", "value", raw)
		return
	}
	s.store.SetDefaultDifficulty(d)
}

// syncEngine records the walker and entity memory on the game state so a
// save carries everything needed to resume.
func (s *Session) syncEngine() {
	var snap *walker.Snapshot
	if s.walker.StoryID() != "" {
		sn := s.walker.Snapshot()
		snap = &sn
	}
	entities := s.entities.Union(narrative.EntitySet{})
	s.store.SetEngine(s.walker.StoryID(), s.mode, snap, &entities)
}

func (s *Session) progress() int {
	if s.walker.StoryID() == "" {
		return 0
	}
	return s.walker.ProgressPercent()
}

func (s *Session) countScene(source string) {
	if s.deps.Metrics != nil {
		s.deps.Metrics.ScenesServed.WithLabelValues(source).Inc()
	}
}

func (s *Session) publish(ev events.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.deps.Events.Publish(ctx, ev); err != nil {
		s.deps.Logger.Warn("Failed to publish event", "event_type", ev.Type, "game_id", ev.GameID, "error", err)
	}
}
