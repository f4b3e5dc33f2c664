package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"webdash/internal/domain"
	"webdash/internal/domain/jsoncfg"
	"webdash/internal/generation"
	"webdash/internal/i18n"
	"webdash/internal/infra"
	"webdash/internal/storage"
)

func main() {
	_ = godotenv.Load()

	var (
		promptFlag      string
		nameFlag        string
		typeFlag        string
		descriptionFlag string
		localeFlag      string
		consoleFlag     string
		outFlag         string
		pollFlag        time.Duration
	)
	flag.StringVar(&promptFlag, "prompt", "", "What the website should be about")
	flag.StringVar(&nameFlag, "name", "", "Business name")
	flag.StringVar(&typeFlag, "type", "", "Business type (defaults to agency)")
	flag.StringVar(&descriptionFlag, "description", "", "Business description")
	flag.StringVar(&localeFlag, "locale", "en", "Locale for progress messages")
	flag.StringVar(&consoleFlag, "console", strings.TrimSpace(os.Getenv("CONSOLE_BASE_URL")), "Console API base URL")
	flag.StringVar(&outFlag, "out", "./sites", "Directory for generated site records")
	flag.DurationVar(&pollFlag, "poll", 0, "Status poll interval (defaults to 2s)")
	flag.Parse()

	logger := infra.NewLogger("cli").With().Str("cmd", "generate").Logger()

	params := jsoncfg.ParamsJSON{
		Prompt:              strings.TrimSpace(promptFlag),
		BusinessName:        strings.TrimSpace(nameFlag),
		BusinessType:        strings.TrimSpace(typeFlag),
		BusinessDescription: strings.TrimSpace(descriptionFlag),
	}
	params.Normalize(localeFlag)
	if err := params.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid request: %v\n", err)
		os.Exit(1)
	}

	bag := paramsBag(params)
	locale := params.Locale

	store, err := storage.NewSiteStore(outFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to prepare output directory: %v\n", err)
		os.Exit(1)
	}

	client := generation.NewClient(generation.ClientOptions{
		BaseURL: consoleFlag,
		Logger:  &logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	jobID := generation.NewJobID()
	if err := client.StartJob(ctx, jobID, bag); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start job: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Started job %s\n", jobID)

	lastStep := -1
	sup, err := generation.NewSupervisor(jobID, generation.Options{
		Client:       client,
		Sink:         store,
		Starter:      client,
		Logger:       &logger,
		PollInterval: pollFlag,
		OnProgress: func(p generation.Progress) {
			if p.StepIndex == lastStep {
				return
			}
			lastStep = p.StepIndex
			fmt.Printf("[%d/%d] %s\n", p.StepIndex+1, p.TotalSteps, i18n.StepMessage(locale, p.CurrentStep))
		},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to supervise job: %v\n", err)
		os.Exit(1)
	}

	// A second interrupt kills the process; the first one cancels the job
	// cooperatively and tells the console to stop the builder.
	go func() {
		<-ctx.Done()
		sup.Cancel()
		notifyCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.NotifyCancelled(notifyCtx, jobID, "cancelled by user")
	}()

	state, err := sup.Run(context.Background())
	switch state {
	case generation.StateComplete:
		site := sup.Website()
		fmt.Println(i18n.Message(locale, i18n.KeyComplete))
		if site != nil {
			fmt.Printf("  %s\n", site.SiteURL)
		}
	case generation.StateCancelled:
		fmt.Println(i18n.Message(locale, i18n.KeyCancelled))
	default:
		fmt.Println(i18n.Message(locale, i18n.KeyFailed))
		if err != nil {
			fmt.Fprintf(os.Stderr, "  %v\n", err)
		}
		os.Exit(1)
	}
}

func paramsBag(p jsoncfg.ParamsJSON) domain.GenerationParams {
	raw := jsoncfg.MustMarshal(p)
	var bag domain.GenerationParams
	if err := json.Unmarshal(raw, &bag); err != nil {
		panic(err)
	}
	return bag
}
