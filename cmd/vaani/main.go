package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/bdobrica/vaani/common/version"
	"github.com/bdobrica/vaani/internal/vaani/app"
	"github.com/bdobrica/vaani/internal/vaani/backend"
	"github.com/bdobrica/vaani/internal/vaani/nlp"
	"github.com/bdobrica/vaani/internal/vaani/observability"
	"github.com/bdobrica/vaani/internal/vaani/speech"
)

func main() {
	fmt.Printf("Vaani Voice Banking Assistant\n")
	fmt.Printf("Version: %s\n", version.Version)
	fmt.Printf("Commit: %s\n", version.GitCommit)
	fmt.Printf("Build Time: %s\n", version.BuildTime)
	fmt.Println()

	config, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	observability.Setup(config.LogLevel, config.LogFormat)

	if config.OpenAIKey == "" {
		fmt.Fprintf(os.Stderr, "Error: VAANI_OPENAI_API_KEY is required\n")
		os.Exit(1)
	}
	if config.BackendURL == "" {
		fmt.Fprintf(os.Stderr, "Error: VAANI_BACKEND_URL is required\n")
		os.Exit(1)
	}

	userID := resolveUserID(config)
	if userID == "" {
		fmt.Fprintf(os.Stderr, "Error: a user ID is required (argument, VAANI_USER_ID, or prompt)\n")
		os.Exit(1)
	}

	provider := nlp.New(nlp.Config{
		APIKey:  config.OpenAIKey,
		BaseURL: config.OpenAIBaseURL,
		Model:   config.Model,
	})
	speechCfg := speech.APIConfig{
		APIKey:  config.OpenAIKey,
		BaseURL: config.OpenAIBaseURL,
	}

	vaani, err := app.New(app.Config{
		DatabasePath: config.DatabasePath,
		Store:        config.Store,
	}, app.Deps{
		Recorder:    &speech.ExecRecorder{MaxSeconds: config.MaxRecordSeconds},
		Transcriber: speech.NewTranscriber(speechCfg),
		Classifier:  nlp.NewClassifier(provider),
		Translator:  nlp.NewTranslator(provider),
		Speaker: &speech.Speaker{
			Synth:            speech.NewSynthesizer(speechCfg),
			Player:           &speech.ExecPlayer{},
			FallbackLanguage: config.Store.DefaultLanguage,
		},
		Backend: backend.New(backend.Config{BaseURL: config.BackendURL}),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize Vaani: %v\n", err)
		os.Exit(1)
	}
	defer vaani.Close()

	if err := vaani.Run(context.Background(), userID); err != nil {
		fmt.Fprintf(os.Stderr, "Error running Vaani: %v\n", err)
		os.Exit(1)
	}
}

// resolveUserID takes the user ID from the first argument, then the
// environment, then an interactive prompt.
func resolveUserID(config *Config) string {
	if len(os.Args) > 1 {
		return strings.TrimSpace(os.Args[1])
	}
	if config.UserID != "" {
		return config.UserID
	}

	fmt.Print("User ID: ")
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return ""
	}
	return strings.TrimSpace(line)
}
