package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type ConsoleConfig struct {
	APIBaseURL string `envconfig:"API_BASE_URL" default:"http://localhost:8080"`
	// Scene generation on small local models can take a while.
	Timeout time.Duration `envconfig:"CONSOLE_TIMEOUT" default:"3m"`
}

func main() {
	resume := flag.String("resume", "", "save id to resume instead of starting a new game")
	flag.Parse()

	_ = godotenv.Load()

	var cfg ConsoleConfig
	if err := envconfig.Process("", &cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	api := &apiClient{
		http:    &http.Client{Timeout: cfg.Timeout},
		baseURL: cfg.APIBaseURL,
	}

	if !api.testConnection() {
		fmt.Fprintf(os.Stderr, "Could not reach StoryForge at %s. Start it with: go run ./cmd/api\n", cfg.APIBaseURL)
		os.Exit(1)
	}

	p := tea.NewProgram(NewConsoleUI(api, *resume), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		os.Exit(1)
	}
}
