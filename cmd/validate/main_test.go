package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const validStory = `id: tiny-tale
name: A Tiny Tale
description: Two scenes.
genre: fantasy
start_scene_id: start
scenes:
  start:
    id: start
    title: The Start
    content: You stand at a crossroads.
    choices:
      - id: go-on
        text: Go on
        consequence: You walk.
        next_scene_id: finish
      - id: wander
        text: Wander off
        consequence: You get lost.
        next_scene_id: nowhere
    entities: []
    metadata:
      genre: fantasy
      tone: calm
      themes: [choice]
      estimated_read_time: 1
  finish:
    id: finish
    title: The End
    content: You arrive.
    choices:
      - id: new-game
        text: Begin again
        consequence: A fresh start.
    entities: []
    metadata:
      genre: fantasy
      tone: calm
      themes: [rest]
      estimated_read_time: 1
`

func writeStory(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestValidateFile(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		body     string
		strict   bool
		wantErr  string
		warnings int
	}{
		{
			name:     "valid with broken link warning",
			filename: "tiny-tale.yaml",
			body:     validStory,
			warnings: 1,
		},
		{
			name:     "broken link fails strict",
			filename: "tiny-tale.yaml",
			body:     validStory,
			strict:   true,
			wantErr:  "points at missing scene nowhere",
		},
		{
			name:     "wrong extension",
			filename: "tiny-tale.json",
			body:     validStory,
			wantErr:  ".yaml extension",
		},
		{
			name:     "bad filename",
			filename: "Tiny_Tale.yaml",
			body:     validStory,
			wantErr:  "kebab-case",
		},
		{
			name:     "id does not match filename",
			filename: "other-tale.yaml",
			body:     validStory,
			wantErr:  "does not match filename",
		},
		{
			name:     "unknown field",
			filename: "tiny-tale.yaml",
			body:     validStory + "author: someone\n",
			wantErr:  "strict YAML",
		},
		{
			name:     "bad choice id",
			filename: "tiny-tale.yaml",
			body:     strings.Replace(validStory, "id: go-on", "id: Go_On", 1),
			wantErr:  "choice ID 'Go_On'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &StoryValidator{strict: tt.strict}
			err := v.validateFile(writeStory(t, tt.filename, tt.body))
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(v.warnings) != tt.warnings {
				t.Errorf("expected %d warnings, got %v", tt.warnings, v.warnings)
			}
		})
	}
}

func TestBundledStoriesAreValid(t *testing.T) {
	files, err := filepath.Glob("../../pkg/catalog/stories/*.yaml")
	if err != nil || len(files) == 0 {
		t.Fatalf("no bundled stories found: %v", err)
	}
	for _, f := range files {
		v := &StoryValidator{}
		if err := v.validateFile(f); err != nil {
			t.Errorf("%s: %v", f, err)
		}
	}
}

func TestUnreachable(t *testing.T) {
	v := &StoryValidator{}
	body := strings.Replace(validStory, "next_scene_id: finish", "next_scene_id: start", 1)
	if err := v.validateFile(writeStory(t, "tiny-tale.yaml", body)); err != nil {
		t.Fatal(err)
	}
	found := false
	for _, w := range v.warnings {
		if strings.Contains(w, "scene finish cannot be reached") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected unreachable warning, got %v", v.warnings)
	}
}
