// voicedesk is the print-shop voice assistant server. Clients connect over
// websockets, stream microphone audio, and get transcripts, assistant
// replies and synthesized speech back on the same connection.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/printworks/voicedesk/internal/config"
	"github.com/printworks/voicedesk/internal/log"
	"github.com/printworks/voicedesk/internal/server"
	"github.com/printworks/voicedesk/pkg/dialogue"
	"github.com/printworks/voicedesk/pkg/llm"
	"github.com/printworks/voicedesk/pkg/session"
	"github.com/printworks/voicedesk/pkg/shop"
	"github.com/printworks/voicedesk/pkg/stt"
	"github.com/printworks/voicedesk/pkg/tts"
	"github.com/printworks/voicedesk/pkg/voice"
)

const systemPrompt = `You are the front-desk assistant of a custom print shop. You help staff create quotes and invoices, look up customers and read back documents, all by voice. Keep replies short and speakable: no markdown, no lists, no URLs. Prices are in dollars. When the user asks for a quote or invoice, collect the customer name, the items with quantities, and any print or embroidery work before calling a tool. Use the tools for every shop operation; never invent document numbers or prices.`

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	debug := flag.Bool("debug", false, "Enable verbose debug logging")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}
	if *debug {
		cfg.LogLevel = "debug"
	}
	log.Init(cfg.LogLevel)
	logger := log.With("component", "main")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := shop.Open(ctx, cfg.Shop.DBPath)
	if err != nil {
		logger.Error("shop store failed to open", "path", cfg.Shop.DBPath, "error", err)
		os.Exit(1)
	}
	defer store.Close()
	if err := seedCatalog(ctx, store); err != nil {
		logger.Warn("catalog seed failed", "error", err)
	}

	sttProvider, err := newSTT(&cfg)
	if err != nil {
		logger.Error("speech-to-text init failed", "error", err)
		os.Exit(1)
	}
	defer sttProvider.Close()

	llmProvider, err := newLLM(&cfg)
	if err != nil {
		logger.Error("language model init failed", "error", err)
		os.Exit(1)
	}
	defer llmProvider.Close()

	ttsProvider, err := newTTS(&cfg)
	if err != nil {
		logger.Error("text-to-speech init failed", "error", err)
		os.Exit(1)
	}
	defer ttsProvider.Close()

	registry := dialogue.NewRegistry()
	for _, tool := range shop.Tools(shop.ToolsConfig{Store: store}) {
		registry.Register(dialogue.Tool{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  tool.Parameters,
			Handler:     tool.Handler,
		})
	}
	logger.Info("tools registered", "tools", registry.Names())

	pipeline := voice.NewPipeline(sttProvider, ttsProvider,
		time.Duration(cfg.Session.ProcessingTimeoutSeconds)*time.Second)

	srv := server.New(server.Config{
		Bind:           cfg.Server.Bind,
		Port:           cfg.Server.Port,
		IdleTimeout:    time.Duration(cfg.Session.IdleTimeoutMinutes) * time.Minute,
		MaxAudioChunks: cfg.Session.MaxAudioChunks,
		Pipeline:       pipeline,
		Sessions:       session.NewStore(),
		NewOrchestrator: func() *dialogue.Orchestrator {
			return dialogue.New(llmProvider, registry, dialogue.Config{
				SystemPrompt:    systemPrompt,
				MaxHistoryTurns: cfg.Session.MaxHistoryTurns,
				RetainPrefix:    cfg.Session.HistoryRetainPrefix,
			})
		},
	})

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		if err := srv.Shutdown(); err != nil {
			logger.Warn("shutdown", "error", err)
		}
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}
}

func newSTT(cfg *config.Config) (stt.Provider, error) {
	switch cfg.STT.Mode {
	case "mock":
		return stt.NewMock(), nil
	default:
		return stt.NewOpenAI(
			stt.WithBaseURL(cfg.STT.BaseURL),
			stt.WithAPIKey(cfg.STT.APIKey),
			stt.WithModel(cfg.STT.Model),
			stt.WithLanguage(cfg.STT.Language),
		)
	}
}

func newLLM(cfg *config.Config) (llm.Provider, error) {
	switch cfg.LLM.Mode {
	case "mock":
		return llm.NewMock(), nil
	default:
		return llm.NewClient(
			llm.WithBaseURL(cfg.LLM.BaseURL),
			llm.WithAPIKey(cfg.LLM.APIKey),
			llm.WithModel(cfg.LLM.Model),
			llm.WithMaxTokens(cfg.LLM.MaxTokens),
			llm.WithTemperature(cfg.LLM.Temperature),
		)
	}
}

// newTTS builds the synthesis chain: the websocket streaming provider
// first for latency, the HTTP provider as fallback.
func newTTS(cfg *config.Config) (tts.Provider, error) {
	if cfg.TTS.Mode == "mock" {
		return tts.NewMock(), nil
	}

	opts := []tts.Option{
		tts.WithAPIKey(cfg.TTS.APIKey),
		tts.WithVoice(tts.ResolveVoice(cfg.TTS.VoiceID)),
		tts.WithModel(cfg.TTS.ModelID),
		tts.WithOutputFormat(tts.Encoding(cfg.TTS.OutputFormat)),
	}
	ws, err := tts.NewElevenLabsWS(opts...)
	if err != nil {
		return nil, err
	}
	httpProvider, err := tts.NewElevenLabs(opts...)
	if err != nil {
		return nil, err
	}
	return tts.NewChain(ws, httpProvider)
}

// seedCatalog loads a starter catalog on first run so quoting works out of
// the box. An already-populated catalog is left alone.
func seedCatalog(ctx context.Context, store *shop.Store) error {
	existing, err := store.ListProducts(ctx)
	if err != nil || len(existing) > 0 {
		return err
	}
	for _, p := range []shop.Product{
		{SKU: "TEE-BASIC", Name: "Basic cotton tee", UnitPriceCents: 850},
		{SKU: "TEE-PREM", Name: "Premium ringspun tee", UnitPriceCents: 1250},
		{SKU: "HOOD-PULL", Name: "Pullover hoodie", UnitPriceCents: 2800},
		{SKU: "CAP-SNAP", Name: "Snapback cap", UnitPriceCents: 1400},
		{SKU: "FEE-SETUP", Name: "Screen setup fee", UnitPriceCents: 2500},
		{SKU: "FEE-ART", Name: "Artwork digitization", UnitPriceCents: 4000},
	} {
		if err := store.UpsertProduct(ctx, p); err != nil {
			return err
		}
	}
	return nil
}
