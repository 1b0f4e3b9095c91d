package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/teslashibe/go-vigil/internal/log"
	"github.com/teslashibe/go-vigil/pkg/protocol"
)

func newReplayCmd() *cobra.Command {
	var (
		url      string
		file     string
		realtime bool
		preset   string
		linger   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay recorded observations against an ingest endpoint",
		Long: `Replay reads newline-delimited JSON from --file (or stdin) and sends it to a
vigil ingest endpoint. Each line is either a full protocol message
({"type": ..., "data": ...}) or a bare observation. State, hazard and alert
replies are printed as they arrive.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log.Init(logLevelOr("info"))

			in := io.Reader(os.Stdin)
			if file != "" && file != "-" {
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return replay(ctx, replayOptions{
				URL:      url,
				Preset:   preset,
				Realtime: realtime,
				Linger:   linger,
				In:       in,
				Out:      cmd.OutOrStdout(),
			})
		},
	}

	cmd.Flags().StringVar(&url, "url", "ws://localhost:8080/ws/ingest", "ingest endpoint")
	cmd.Flags().StringVarP(&file, "file", "f", "", "JSONL recording (default stdin)")
	cmd.Flags().BoolVar(&realtime, "realtime", false, "pace messages by their t_ms timestamps")
	cmd.Flags().StringVar(&preset, "preset", "", "analyzer preset to select before replaying")
	cmd.Flags().DurationVar(&linger, "linger", time.Second, "wait for replies after the last message")
	return cmd
}

func logLevelOr(def string) string {
	if debugMode {
		return "debug"
	}
	if logLevel != "" {
		return logLevel
	}
	return def
}

type replayOptions struct {
	URL      string
	Preset   string
	Realtime bool
	Linger   time.Duration
	In       io.Reader
	Out      io.Writer
}

func replay(ctx context.Context, opts replayOptions) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, opts.URL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", opts.URL, err)
	}
	defer conn.Close()
	log.Info("connected", "url", opts.URL)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			printReply(opts.Out, data)
		}
	}()

	send := func(msg *protocol.Message) error {
		data, err := msg.Bytes()
		if err != nil {
			return err
		}
		return conn.WriteMessage(websocket.TextMessage, data)
	}

	if opts.Preset != "" {
		msg, err := protocol.NewMessage(protocol.TypeConfig, protocol.ConfigData{Preset: opts.Preset})
		if err != nil {
			return err
		}
		if err := send(msg); err != nil {
			return err
		}
	}

	var (
		sent    int
		started time.Time
		firstMs int64 = -1
	)
	scanner := bufio.NewScanner(opts.In)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for line := 1; scanner.Scan(); line++ {
		raw := scanner.Bytes()
		if len(raw) == 0 || raw[0] == '#' {
			continue
		}
		msg, tMs, err := parseReplayLine(raw)
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}

		if opts.Realtime && tMs >= 0 {
			if firstMs < 0 {
				firstMs, started = tMs, time.Now()
			}
			wait := time.Until(started.Add(time.Duration(tMs-firstMs) * time.Millisecond))
			if wait > 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(wait):
				}
			}
		}

		if err := send(msg); err != nil {
			return fmt.Errorf("send line %d: %w", line, err)
		}
		sent++
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	log.Info("replay finished", "messages", sent)

	select {
	case <-ctx.Done():
	case <-done:
	case <-time.After(opts.Linger):
	}
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return nil
}

// parseReplayLine decodes one recording line. Lines with a "type" field are
// protocol messages; anything else is an observation. The returned t_ms is
// -1 when the line carries no timestamp.
func parseReplayLine(raw []byte) (*protocol.Message, int64, error) {
	var head struct {
		Type protocol.MessageType `json:"type"`
		Data struct {
			TimeMs *int64 `json:"t_ms"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, 0, err
	}

	if head.Type != "" {
		msg, err := protocol.ParseMessage(raw)
		if err != nil {
			return nil, 0, err
		}
		tMs := int64(-1)
		if head.Data.TimeMs != nil {
			tMs = *head.Data.TimeMs
		}
		return msg, tMs, nil
	}

	var obs protocol.ObservationData
	if err := json.Unmarshal(raw, &obs); err != nil {
		return nil, 0, err
	}
	msg, err := protocol.NewObservationMessage(obs)
	if err != nil {
		return nil, 0, err
	}
	return msg, obs.TimeMs, nil
}

func printReply(w io.Writer, data []byte) {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		log.Warn("bad reply", "error", err)
		return
	}

	switch msg.Type {
	case protocol.TypeState:
		if d, err := msg.GetStateData(); err == nil {
			fmt.Fprintf(w, "state   frame=%-6d %s\n", d.FrameID, d.State)
		}
	case protocol.TypeHazard:
		if d, err := msg.GetHazardData(); err == nil {
			fmt.Fprintf(w, "hazard  frame=%-6d %s\n", d.FrameID, d.State.Kind)
		}
	case protocol.TypeAlert:
		if d, err := msg.GetAlertData(); err == nil {
			fmt.Fprintf(w, "alert   %s %s\n", d.Kind, d.Detail)
		}
	case protocol.TypeError:
		if d, err := msg.GetErrorData(); err == nil {
			fmt.Fprintf(w, "error   %s\n", d.Message)
		}
	}
}
