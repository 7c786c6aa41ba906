package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"

	"github.com/cactusdynamics/stencil"
	"github.com/jessevdk/go-flags"
	"nhooyr.io/websocket"
)

// Config holds the configuration for the frame fetcher.
type Config struct {
	ServerURL string
	// OutputDir receives frame-<revision>.png for every frame.
	OutputDir string
	// Once stops after the first frame.
	Once   bool
	Logger *slog.Logger
}

// FrameFetcher reads renders from a stencil preview server and writes them
// to disk.
type FrameFetcher struct {
	config   Config
	metadata stencil.Metadata
	written  []string
}

func NewFrameFetcher(config Config) *FrameFetcher {
	return &FrameFetcher{config: config}
}

// Written returns the files written so far.
func (f *FrameFetcher) Written() []string {
	return f.written
}

func (f *FrameFetcher) Connect(ctx context.Context) error {
	u, err := url.Parse(f.config.ServerURL)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = "/ws"

	f.config.Logger.Info("Connecting to websocket", "url", u.String())

	conn, _, err := websocket.Dial(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to connect to websocket: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")
	conn.SetReadLimit(64 << 20)

	for {
		_, messageData, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				f.config.Logger.Info("Connection closed normally")
				return nil
			}
			return fmt.Errorf("error reading message: %w", err)
		}

		if err := f.processMessage(messageData); err != nil {
			if err == io.EOF {
				f.config.Logger.Info("Stream ended")
				return nil
			}
			f.config.Logger.Error("Error processing message", "error", err)
		}
	}
}

func (f *FrameFetcher) processMessage(messageData []byte) error {
	msg, err := stencil.DecodeWSMessage(messageData)
	if err != nil {
		return fmt.Errorf("failed to decode message: %w", err)
	}

	switch payload := msg.Payload.(type) {
	case stencil.FrameMessage:
		if err := f.writeFrame(payload); err != nil {
			return err
		}
		if f.config.Once {
			return io.EOF
		}
	case stencil.Metadata:
		f.metadata = payload
		f.config.Logger.Debug("Received metadata", "title", payload.Title, "objects", payload.Objects)
	case stencil.StreamEndMessage:
		if payload.Error {
			f.config.Logger.Error("Stream ended with error", "message", payload.Msg)
		} else {
			f.config.Logger.Info("Stream ended successfully", "message", payload.Msg)
		}
		return io.EOF
	default:
		f.config.Logger.Warn("Unknown message type", "type", fmt.Sprintf("0x%02x", msg.Header.Type))
	}
	return nil
}

func (f *FrameFetcher) writeFrame(frame stencil.FrameMessage) error {
	name := filepath.Join(f.config.OutputDir, fmt.Sprintf("frame-%04d.png", frame.Revision))
	if err := os.WriteFile(name, frame.PNG, 0o644); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	f.written = append(f.written, name)
	f.config.Logger.Info("Wrote frame", "file", name, "revision", frame.Revision, "title", f.metadata.Title)
	return nil
}

type options struct {
	URL     string `long:"url" default:"http://localhost:5274" description:"URL of the stencil preview server"`
	Out     string `long:"out" short:"o" default:"." description:"Directory to write frames to"`
	Once    bool   `long:"once" description:"Exit after the first frame"`
	Verbose bool   `long:"verbose" short:"v" description:"Debug logging"`
}

func main() {
	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		if flags.WroteHelp(err) {
			os.Exit(0)
		}
		os.Exit(1)
	}

	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))

	fetcher := NewFrameFetcher(Config{
		ServerURL: opts.URL,
		OutputDir: opts.Out,
		Once:      opts.Once,
		Logger:    logger,
	})
	if err := fetcher.Connect(context.Background()); err != nil {
		logger.Error("Failed to fetch frames", "error", err)
		os.Exit(1)
	}
}
