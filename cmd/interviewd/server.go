package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/venturekit/interviewd/internal/api"
	"github.com/venturekit/interviewd/internal/config"
	"github.com/venturekit/interviewd/internal/interview"
	"github.com/venturekit/interviewd/internal/narrative"
	"github.com/venturekit/interviewd/internal/ratelimit"
	"github.com/venturekit/interviewd/internal/storage"
	"github.com/venturekit/interviewd/internal/sweeper"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the interviewd server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running interviewd server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show interviewd status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "interviewd.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "interviewd version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logLevel := slog.LevelInfo
	if strings.EqualFold(os.Getenv("INTERVIEWD_LOG_LEVEL"), "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	// Refuse to start twice: probe the health endpoint before writing a PID.
	pidPath := pidFilePath(cfg.Store.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("interviewd is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("interviewd is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(cfg.Store.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	// Shared Redis counter when configured, in-process limiter otherwise.
	var limiter ratelimit.Limiter
	if cfg.Limiter.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Limiter.RedisAddr,
			Password: cfg.Limiter.RedisPassword,
			DB:       cfg.Limiter.RedisDB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connecting to redis at %s: %w", cfg.Limiter.RedisAddr, err)
		}
		limiter = ratelimit.NewRedis(rdb, cfg.Limiter.Ceiling)
		slog.Info("using redis call limiter", "addr", cfg.Limiter.RedisAddr)
	} else {
		limiter = ratelimit.NewMemory(cfg.Limiter.Ceiling)
	}

	narrator := narrative.New(narrative.Config{
		BaseURL: cfg.Narrative.BaseURL,
		APIKey:  cfg.Narrative.APIKey,
		Model:   cfg.Narrative.Model,
		Timeout: cfg.Narrative.Timeout,
		RPS:     cfg.Narrative.RPS,
		Burst:   cfg.Narrative.Burst,
	})

	var topics []interview.Topic
	if cfg.Interview.TopicsFile != "" {
		topics, err = interview.LoadTopics(cfg.Interview.TopicsFile)
		if err != nil {
			return fmt.Errorf("loading topics: %w", err)
		}
		slog.Info("loaded coverage topics", "file", cfg.Interview.TopicsFile, "count", len(topics))
	}

	svc := interview.NewService(store, limiter, narrator, interview.Options{
		Topics: topics,
		Budgets: interview.Budgets{
			Guided:    cfg.Interview.GuidedQuestions,
			ColdStart: cfg.Interview.ColdStartQuestions,
		},
	})

	if cfg.Sweeper.Enabled {
		sw := sweeper.New(store, svc, sweeper.Options{
			Interval:  cfg.Sweeper.Interval,
			IdleAfter: cfg.Sweeper.IdleAfter,
		})
		go sw.Run(ctx)
		slog.Info("sweeper started", "interval", cfg.Sweeper.Interval, "idle_after", cfg.Sweeper.IdleAfter)
	}

	if cfg.Server.MCP {
		mcpSrv := api.NewMCPServer(api.MCPDeps{Service: svc})
		stdioSrv := server.NewStdioServer(mcpSrv)
		go func() {
			if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("MCP stdio server error", "error", err)
			}
		}()
		slog.Info("MCP server started (stdio transport)")
	}

	handler := api.NewHandler(api.Deps{
		Service: svc,
		Store:   store,
		Token:   cfg.Server.Token,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "interviewd listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Store.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("interviewd is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop interviewd (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to interviewd (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(serverURL + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == 200 {
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	printStatus("Narrative model", "%s", cfg.Narrative.Model)
	printStatus("Question budgets", "guided %d, cold start %d", cfg.Interview.GuidedQuestions, cfg.Interview.ColdStartQuestions)
	printStatus("Call ceiling", "%d per session", cfg.Limiter.Ceiling)
	if cfg.Limiter.RedisAddr != "" {
		printStatus("Limiter", "redis (%s)", cfg.Limiter.RedisAddr)
	} else {
		printStatus("Limiter", "in-process")
	}
	printStatus("Data dir", "%s", cfg.Store.DataDir)
	return nil
}
