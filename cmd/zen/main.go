// Command zen runs a companion session in the terminal.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"mindful-be/internal/config"
	"mindful-be/internal/dto"
	"mindful-be/internal/model"
	"mindful-be/internal/pkg/logger"
	"mindful-be/internal/repository/memory"
	"mindful-be/internal/repository/unitofwork"
	"mindful-be/internal/service"
	"mindful-be/pkg/companion"
	"mindful-be/pkg/database"
	"mindful-be/pkg/effects"
	"mindful-be/pkg/events"
	"mindful-be/pkg/llm/factory"
	"mindful-be/pkg/locale"
	"mindful-be/pkg/rolling"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

type options struct {
	provider string
	language string
	sqlite   string
	resume   string
}

func main() {
	opts := options{}
	rootCmd := &cobra.Command{
		Use:          "zen",
		Short:        "Talk to the meditation companion from the terminal",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}
	rootCmd.Flags().StringVar(&opts.provider, "provider", "mock", "LLM provider (mock or gemini)")
	rootCmd.Flags().StringVar(&opts.language, "lang", "en", "session language")
	rootCmd.Flags().StringVar(&opts.sqlite, "sqlite", "", "SQLite file for transcripts and the realm journal")
	rootCmd.Flags().StringVar(&opts.resume, "resume", "", "resume a stored session id (requires --sqlite)")

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	cfg := config.Load()
	log := logger.NewNopLogger()
	catalog := locale.Default()

	providers, err := factory.NewProviders(ctx, factory.Settings{
		Provider:      opts.provider,
		APIKey:        cfg.Keys.GoogleGemini,
		GuidanceModel: cfg.Ai.GuidanceModel,
		ChatModel:     cfg.Ai.ChatModel,
		SearchModel:   cfg.Ai.SearchModel,
		SpeechModel:   cfg.Ai.SpeechModel,
		SpeechVoice:   cfg.Ai.SpeechVoice,
		LiveModel:     cfg.Ai.LiveModel,
		LiveVoice:     cfg.Ai.LiveVoice,
		LiveURL:       cfg.Ai.LiveURL,
		Fallback:      cfg.Ai.FallbackEnabled,
	}, catalog, log)
	if err != nil {
		return err
	}

	var (
		uowFactory unitofwork.RepositoryFactory
		journal    service.IJournalService
	)
	if opts.sqlite != "" {
		db, err := database.NewSQLite(opts.sqlite)
		if err != nil {
			return err
		}
		if err := database.Migrate(db, model.All()...); err != nil {
			return err
		}
		uowFactory = unitofwork.NewRepositoryFactory(db)
		journal = service.NewJournalService(uowFactory, log)
	}

	sessions := memory.NewSessionRepository(24 * time.Hour)
	out := &printer{}
	router := effects.NewRouter(cfg.Companion.TimeUnit, out, log, service.TrackResolver(sessions))

	sinks := []events.Emitter{out, events.EmitterFunc(router.Handle)}
	if journal != nil {
		sinks = append(sinks, events.EmitterFunc(func(e events.Event) {
			if e.EventType() != events.TypeTurnResolved {
				return
			}
			go func() {
				if err := journal.Record(context.Background(), e); err != nil {
					color.Red("journal: %v", err)
				}
			}()
		}))
	}

	svc := service.NewCompanionService(sessions, uowFactory, companion.Deps{
		Guide:   providers.Guide,
		Chat:    providers.Chat,
		Live:    providers.Live,
		Store:   rolling.NewMemoryStore(),
		Emitter: fanOut(sinks),
		Catalog: catalog,
	}, service.CompanionOptions{
		Session: companion.Config{
			TimeUnit:        cfg.Companion.TimeUnit,
			RequestTimeout:  cfg.Ai.RequestTimeout,
			RollingCapacity: cfg.Companion.RollingCapacity,
		},
		DefaultLanguage: opts.language,
		JwtSecret:       cfg.App.JwtSecret,
	}, log)
	defer svc.Shutdown()

	sessionID := opts.resume
	if sessionID == "" {
		res, err := svc.Create(ctx, &dto.CreateSessionRequest{Language: opts.language})
		if err != nil {
			return err
		}
		sessionID = res.SessionId
	} else if _, err := svc.Resume(ctx, sessionID); err != nil {
		return err
	}

	color.Cyan("🧘 Session %s. Type to talk, /help for commands.", sessionID)
	return repl(ctx, svc, journal, sessionID)
}

func repl(ctx context.Context, svc service.ICompanionService, journal service.IJournalService, sessionID string) error {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if !strings.HasPrefix(line, "/") {
			res, err := svc.Submit(ctx, sessionID, &dto.InputRequest{Text: line, Grounded: true})
			if err != nil {
				color.Red("%v", err)
				continue
			}
			if !res.Accepted {
				color.Yellow("(live voice is active, typed input ignored)")
			}
			continue
		}

		cmd, arg, _ := strings.Cut(strings.TrimPrefix(line, "/"), " ")
		switch cmd {
		case "quit", "exit":
			return nil
		case "help":
			color.White("/mode guidance|chat|live  /lang <code>  /tts on|off  /track <id>  /state  /journal  /quit")
		case "mode":
			res, err := svc.SetMode(ctx, sessionID, &dto.SetModeRequest{Mode: arg})
			if err != nil {
				color.Red("%v", err)
				continue
			}
			if res.Reverted {
				color.Yellow("live voice unavailable, back to guidance")
			}
		case "lang", "tts", "track":
			req := &dto.UpdatePreferencesRequest{}
			switch cmd {
			case "lang":
				req.Language = &arg
			case "tts":
				on := arg == "on"
				req.TtsEnabled = &on
			case "track":
				req.Track = &arg
			}
			prefs, err := svc.UpdatePreferences(ctx, sessionID, req)
			if err != nil {
				color.Red("%v", err)
				continue
			}
			color.Green("language=%s tts=%t track=%s", prefs.Language, prefs.TtsEnabled, prefs.Track)
		case "state":
			res, err := svc.Get(ctx, sessionID)
			if err != nil {
				color.Red("%v", err)
				continue
			}
			color.Green("mode=%s state=%s context=%v live=%s", res.Mode, res.State, res.RollingContext, res.LiveState)
		case "journal":
			if journal == nil {
				color.Yellow("journal needs --sqlite")
				continue
			}
			entries, err := journal.List(ctx, sessionID, dto.JournalQuery{Limit: 20})
			if err != nil {
				color.Red("%v", err)
				continue
			}
			for _, e := range entries {
				color.Magenta("%s  %-12s %s", e.CreatedAt.Format(time.Kitchen), e.Realm, e.Advice)
			}
		default:
			color.Red("unknown command /%s", cmd)
		}
	}
}

func fanOut(sinks []events.Emitter) events.Emitter {
	return events.EmitterFunc(func(e events.Event) {
		for _, s := range sinks {
			s.Emit(e)
		}
	})
}

// printer renders session events as terminal lines.
type printer struct{}

func (p *printer) Emit(e events.Event) {
	data := e.Payload()
	switch e.EventType() {
	case events.TypeThoughtUpdated:
		color.HiBlack("  … %v", data["thought"])
	case events.TypeTurnResolved:
		color.Cyan("  [%v] %v", data["realm"], data["advice"])
	case events.TypeTurnFailed:
		color.Red("  %v", data["message"])
	case events.TypeEffectTriggered:
		color.Blue("  ~ %v", data["effect"])
	case events.TypeChatMessageAppended:
		if data["role"] == "model" {
			color.Green("  %v", data["text"])
		}
	case events.TypeModeChanged:
		color.Yellow("  mode: %v", data["mode"])
	case events.TypeLiveStateChanged:
		color.Yellow("  live: %v", data["state"])
	}
}
