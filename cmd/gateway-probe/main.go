// gateway-probe is a small smoke-test client for a running gateway in SSE
// mode: it opens an event stream, drives the initialize handshake, creates a
// memory and prints every server event as it arrives.
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
)

var (
	infoColor  = color.New(color.FgCyan, color.Bold)
	eventColor = color.New(color.FgGreen)
	errColor   = color.New(color.FgRed)
)

func main() {
	var (
		baseURL = flag.String("url", "http://localhost:8080", "gateway base URL")
		tenant  = flag.String("tenant", "probe", "tenant id for the test memory")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := probe(ctx, *baseURL, *tenant); err != nil {
		errColor.Fprintf(os.Stderr, "probe failed: %v\n", err)
		os.Exit(1)
	}
}

func probe(ctx context.Context, baseURL, tenant string) error {
	sessionID := uuid.New().String()
	infoColor.Printf("session %s\n", sessionID)

	streamReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/stream/%s", baseURL, sessionID), nil)
	if err != nil {
		return err
	}
	stream, err := http.DefaultClient.Do(streamReq)
	if err != nil {
		return fmt.Errorf("opening stream: %w", err)
	}
	defer func() { _ = stream.Body.Close() }()
	if stream.StatusCode != http.StatusOK {
		return fmt.Errorf("stream returned %s", stream.Status)
	}

	events := make(chan string)
	go readEvents(stream, events)

	// First event must be session.connected.
	select {
	case event := <-events:
		eventColor.Printf("<< %s\n", event)
	case <-time.After(5 * time.Second):
		return fmt.Errorf("no session.connected event within 5s")
	}

	calls := []struct {
		label   string
		payload map[string]any
	}{
		{
			label: "initialize",
			payload: map[string]any{
				"jsonrpc": "2.0", "id": 1, "method": "initialize",
				"params": map[string]any{
					"protocolVersion": "2024-11-05",
					"clientInfo":      map[string]any{"name": "gateway-probe", "version": "1.0.0"},
				},
			},
		},
		{
			label: "tools/list",
			payload: map[string]any{
				"jsonrpc": "2.0", "id": 2, "method": "tools/list",
			},
		},
		{
			label: "memory_create",
			payload: map[string]any{
				"jsonrpc": "2.0", "id": 3, "method": "tools/call",
				"params": map[string]any{
					"name": "memory_create",
					"arguments": map[string]any{
						"content":   "Smoke run touching [[Gateway]] health",
						"tenant_id": tenant,
						"user_id":   "smoke",
					},
				},
			},
		},
		{
			label: "memory/stats",
			payload: map[string]any{
				"jsonrpc": "2.0", "id": 4, "method": "memory/stats",
			},
		},
	}

	for _, call := range calls {
		infoColor.Printf(">> %s\n", call.label)
		if err := post(ctx, baseURL, sessionID, call.payload); err != nil {
			return fmt.Errorf("%s: %w", call.label, err)
		}
	}

	infoColor.Println("watching events, Ctrl-C to exit")
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-events:
			if !ok {
				return fmt.Errorf("stream closed by server")
			}
			eventColor.Printf("<< %s\n", event)
		}
	}
}

func post(ctx context.Context, baseURL, sessionID string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/request/%s", baseURL, sessionID), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	if errObj, ok := decoded["error"]; ok && errObj != nil {
		return fmt.Errorf("server error: %v", errObj)
	}

	pretty, _ := json.Marshal(decoded["result"])
	fmt.Printf("   %s\n", pretty)
	return nil
}

func readEvents(resp *http.Response, out chan<- string) {
	defer close(out)
	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		if payload, ok := strings.CutPrefix(line, "data: "); ok {
			out <- strings.TrimSpace(payload)
		}
	}
}
