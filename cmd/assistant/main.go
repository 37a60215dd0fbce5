package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/edwindpineda/bitel-portabilidad-sub000/internal/adapter/llm"
	"github.com/edwindpineda/bitel-portabilidad-sub000/internal/adapter/memory"
	"github.com/edwindpineda/bitel-portabilidad-sub000/internal/adapter/tool"
	"github.com/edwindpineda/bitel-portabilidad-sub000/internal/domain"
	"github.com/edwindpineda/bitel-portabilidad-sub000/internal/infra/config"
	"github.com/edwindpineda/bitel-portabilidad-sub000/internal/infra/logger"
	"github.com/edwindpineda/bitel-portabilidad-sub000/internal/infra/tracer"
	"github.com/edwindpineda/bitel-portabilidad-sub000/internal/usecase"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	leadPath := flag.String("lead", "", "path to a JSON file with the lead snapshot")
	conversationID := flag.String("conversation", "", "conversation ID to resume (default: new)")
	flag.Parse()

	if err := run(*configPath, *leadPath, *conversationID); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, leadPath, conversationID string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log, closeLog, err := logger.New(cfg.Logger)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		shutdownTracer(shutdownCtx)
	}()

	store, err := memory.New(cfg.Memory.Path, log)
	if err != nil {
		return err
	}
	defer store.Close()

	_, provider, err := llm.Build(cfg.LLM, log)
	if err != nil {
		return err
	}

	snap, err := loadSnapshot(leadPath)
	if err != nil {
		return err
	}

	executor, err := buildTools(cfg.Tools, snap, log)
	if err != nil {
		return err
	}

	prompt := usecase.NewPromptRenderer(cfg.Prompt.TemplatePath)
	if err := prompt.Load(); err != nil {
		return err
	}

	assistant := usecase.NewAssistant(usecase.AssistantDeps{
		LLM:           provider,
		Tools:         executor,
		History:       store,
		Prompt:        prompt,
		Logger:        log,
		Model:         cfg.Assistant.Model,
		Temperature:   cfg.Assistant.Temperature,
		MaxToolRounds: cfg.Assistant.MaxToolRounds,
		HistoryWindow: cfg.Assistant.HistoryWindow,
		Pricing:       cfg.LLM.Pricing,
	})

	if conversationID == "" {
		conversationID = ulid.Make().String()
	}
	log.Info("assistant ready",
		"provider", provider.Name(),
		"model", cfg.Assistant.Model,
		"conversation_id", conversationID,
	)

	return chatLoop(ctx, assistant, conversationID, snap)
}

// buildTools registers the sales tools and wraps them in the
// rate-limited executor. The catalog tool reads from the lead snapshot
// so the model and the system prompt see the same plans.
func buildTools(cfg config.ToolsConfig, snap domain.ContextSnapshot, log *slog.Logger) (*tool.Executor, error) {
	client := &http.Client{Timeout: cfg.Timeout}

	registry := tool.NewRegistry()
	tools := []domain.Tool{
		tool.NewCatalogTool(func() []domain.Plan { return snap.Catalog }),
		tool.NewPaymentLinkTool(cfg.PaymentsURL, cfg.APIKey, client, log),
		tool.NewFollowUpTool(cfg.CRMBaseURL, cfg.APIKey, client, log),
	}
	for _, t := range tools {
		if err := registry.Register(t); err != nil {
			return nil, err
		}
	}

	limiter := tool.NewRateLimiter(cfg.RateLimit.PerMinute, cfg.RateLimit.Burst)
	return tool.NewExecutor(registry, limiter, cfg.Timeout, log), nil
}

// loadSnapshot reads the lead context from a JSON file, or returns an
// empty snapshot when no path is given.
func loadSnapshot(path string) (domain.ContextSnapshot, error) {
	var snap domain.ContextSnapshot
	if path == "" {
		return snap, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return snap, fmt.Errorf("read lead file: %w", err)
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		return snap, fmt.Errorf("parse lead file: %w", err)
	}
	return snap, nil
}

// chatLoop reads user messages line by line until EOF or interrupt.
func chatLoop(ctx context.Context, assistant *usecase.Assistant, conversationID string, snap domain.ContextSnapshot) error {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println("Escribe tu mensaje (Ctrl+D para salir):")

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		message := strings.TrimSpace(scanner.Text())
		if message == "" {
			continue
		}

		answer, err := assistant.Reply(ctx, conversationID, message, snap)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		fmt.Println(answer)
	}
	return scanner.Err()
}
