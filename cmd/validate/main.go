package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/jwebster45206/storyforge/pkg/catalog"
	"github.com/jwebster45206/storyforge/pkg/story"
)

func main() {
	strict := flag.Bool("strict", false, "treat broken links and unreachable scenes as errors")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [-strict] <story.yaml>...\n", os.Args[0])
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(1)
	}

	failed := false
	for _, filename := range flag.Args() {
		validator := &StoryValidator{strict: *strict}
		if err := validator.validateFile(filename); err != nil {
			fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
			failed = true
			continue
		}
		for _, w := range validator.warnings {
			fmt.Println(w)
		}
		fmt.Printf("%s is valid!\n", filename)
	}
	if failed {
		os.Exit(1)
	}
}

type StoryValidator struct {
	strict   bool
	errors   []string
	warnings []string
}

func (v *StoryValidator) validateFile(filename string) error {
	fmt.Printf("Validating %s...\n", filename)

	baseName := filepath.Base(filename)
	ext := filepath.Ext(baseName)
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("story file must have .yaml extension: %s", baseName)
	}

	nameWithoutExt := strings.TrimSuffix(baseName, ext)
	if !isValidID(nameWithoutExt) {
		return fmt.Errorf("story filename '%s' must be lowercase kebab-case (e.g., lost-heir.yaml)", baseName)
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read file %s: %w", filename, err)
	}

	s, err := catalog.Decode(data)
	if err != nil {
		return fmt.Errorf("file %s failed strict YAML unmarshaling: %w", filename, err)
	}
	if s.ID != nameWithoutExt {
		return fmt.Errorf("story id %q does not match filename %s", s.ID, baseName)
	}

	v.validateStory(s)

	if len(v.errors) > 0 {
		return fmt.Errorf("validation errors in %s:\n%s", filename, strings.Join(v.errors, "\n"))
	}
	return nil
}

func (v *StoryValidator) validateStory(s *story.Story) {
	if err := catalog.Check(s); err != nil {
		v.addError(err.Error())
		return
	}
	if strings.TrimSpace(s.Name) == "" {
		v.addError("story name is required")
	}

	sceneIDs := make([]string, 0, len(s.Scenes))
	for id := range s.Scenes {
		sceneIDs = append(sceneIDs, id)
	}
	sort.Strings(sceneIDs)

	endings := 0
	for _, id := range sceneIDs {
		scene := s.Scenes[id]
		v.validateIDFormat("scene ID", id)
		if strings.TrimSpace(scene.Title) == "" {
			v.addError(fmt.Sprintf("scene %s has no title", id))
		}
		if strings.TrimSpace(scene.Content) == "" {
			v.addError(fmt.Sprintf("scene %s has no content", id))
		}
		if scene.IsEnding() {
			endings++
		}
		for _, ch := range scene.Choices {
			v.validateIDFormat("choice ID", ch.ID)
			if strings.TrimSpace(ch.Text) == "" {
				v.addError(fmt.Sprintf("choice %s in scene %s has no text", ch.ID, id))
			}
		}
	}
	if endings == 0 {
		v.addWarning("story has no ending scene")
	}

	for _, link := range catalog.BrokenLinks(s) {
		v.addProblem(fmt.Sprintf("choice %s in scene %s points at missing scene %s", link.ChoiceID, link.SceneID, link.Target))
	}
	for _, id := range unreachable(s) {
		v.addProblem(fmt.Sprintf("scene %s cannot be reached from %s", id, s.StartSceneID))
	}
}

// unreachable lists scenes no path from the start scene leads to.
func unreachable(s *story.Story) []string {
	seen := map[string]bool{s.StartSceneID: true}
	queue := []string{s.StartSceneID}
	for len(queue) > 0 {
		scene := s.Scenes[queue[0]]
		queue = queue[1:]
		for _, ch := range scene.Choices {
			if _, ok := s.Scenes[ch.NextSceneID]; ok && !seen[ch.NextSceneID] {
				seen[ch.NextSceneID] = true
				queue = append(queue, ch.NextSceneID)
			}
		}
	}

	var out []string
	for id := range s.Scenes {
		if !seen[id] {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

func (v *StoryValidator) validateIDFormat(fieldName, id string) {
	if !isValidID(id) {
		v.addError(fmt.Sprintf("%s '%s' should be lowercase kebab-case", fieldName, id))
	}
}

// addProblem records an error in strict mode and a warning otherwise.
func (v *StoryValidator) addProblem(msg string) {
	if v.strict {
		v.addError(msg)
		return
	}
	v.addWarning(msg)
}

func (v *StoryValidator) addError(msg string) {
	v.errors = append(v.errors, "  - "+msg)
}

func (v *StoryValidator) addWarning(msg string) {
	v.warnings = append(v.warnings, "  warning: "+msg)
}

var validIDRegex = regexp.MustCompile(`^[a-z][a-z0-9-]*[a-z0-9]$|^[a-z]$`)

func isValidID(id string) bool {
	return validIDRegex.MatchString(id)
}
