package main

import (
	"log"
	"os"
	"strconv"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/SafwanAhmed08/DeplAI/internal/config"
	"github.com/SafwanAhmed08/DeplAI/internal/notify"
	"github.com/SafwanAhmed08/DeplAI/internal/sandbox"
	"github.com/SafwanAhmed08/DeplAI/internal/store"
	wf "github.com/SafwanAhmed08/DeplAI/internal/workflow"
)

func main() {
	logger := log.New(os.Stdout, "scan-worker ", log.LstdFlags|log.LUTC)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}

	c, err := client.Dial(client.Options{
		HostPort:  cfg.TemporalHostPort,
		Namespace: cfg.TemporalNamespace,
	})
	if err != nil {
		logger.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	sandboxClient, err := sandbox.NewClient(cfg.DockerHost)
	if err != nil {
		logger.Fatalf("sandbox client: %v", err)
	}

	st, err := store.Open(cfg.ScanDBPath)
	if err != nil {
		logger.Fatalf("scan store: %v", err)
	}
	defer st.Close()

	hook, err := buildNotifyHook(cfg)
	if err != nil {
		logger.Fatalf("notify hook: %v", err)
	}

	w := worker.New(c, cfg.TemporalTaskQueue, worker.Options{})
	w.RegisterWorkflow(wf.ScanWorkflow)
	w.RegisterActivity(wf.NewActivities(sandboxClient, st, hook))

	logger.Printf("worker started (task queue: %s)", cfg.TemporalTaskQueue)
	if err := w.Run(worker.InterruptCh()); err != nil {
		logger.Fatalf("worker error: %v", err)
	}
}

func buildNotifyHook(cfg config.Config) (notify.Hook, error) {
	if cfg.TelegramBotToken == "" || cfg.TelegramChatID == "" {
		return notify.NoopHook{}, nil
	}
	chatID, err := strconv.ParseInt(cfg.TelegramChatID, 10, 64)
	if err != nil {
		return nil, err
	}
	return notify.NewTelegramHook(cfg.TelegramBotToken, chatID)
}
