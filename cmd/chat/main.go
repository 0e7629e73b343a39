package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
)

var (
	gatewayURL = flag.String("url", "http://127.0.0.1:8000", "chat relay base URL")
	authUser   = flag.String("user", "giga", "basic auth username")
	authPass   = flag.String("pass", "top", "basic auth password")
	stream     = flag.Bool("stream", true, "stream the answer token by token")
)

func main() {
	flag.Parse()

	httpClient := &http.Client{Timeout: 5 * time.Minute}

	boldGreen := color.New(color.FgGreen, color.Bold).SprintFunc()
	boldCyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()

	fmt.Println(boldGreen("chat-relay terminal client"))
	fmt.Printf("Gateway: %s\n", boldCyan(*gatewayURL))
	fmt.Println("Type your message and press Enter. Type 'exit' to quit, '/reset' to clear the conversation.")
	fmt.Println()

	conversationID := ""
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(boldGreen("You: "))
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		switch {
		case input == "":
			continue
		case input == "exit" || input == "quit":
			return
		case input == "/reset":
			if err := reset(httpClient, conversationID); err != nil {
				fmt.Fprintf(os.Stderr, "reset failed: %v\n", err)
				continue
			}
			conversationID = ""
			fmt.Println(dim("conversation cleared"))
			continue
		}

		fmt.Print(boldCyan("Assistant: "))
		id, err := send(httpClient, conversationID, input, *stream)
		if err != nil {
			fmt.Fprintf(os.Stderr, "\nrequest failed: %v\n", err)
			continue
		}
		if id != "" {
			conversationID = id
		}
		fmt.Println()
	}
}

func send(client *http.Client, conversationID, message string, streaming bool) (string, error) {
	payload, err := json.Marshal(map[string]any{
		"message":         message,
		"stream":          streaming,
		"conversation_id": conversationID,
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequest(http.MethodPost, *gatewayURL+"/api/v1/request", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(*authUser, *authPass)

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if !streaming {
		var parsed struct {
			Content        string `json:"content"`
			ConversationID string `json:"conversation_id"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
			return "", err
		}
		fmt.Print(parsed.Content)
		return parsed.ConversationID, nil
	}

	id := resp.Header.Get("Conversation-Id")
	if err := relayEvents(resp.Body); err != nil {
		return id, err
	}
	return id, nil
}

// relayEvents prints content fragments from an SSE body until the done event.
func relayEvents(body io.Reader) error {
	scanner := bufio.NewScanner(body)
	event := "message"
	var data []string
	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")
		switch {
		case line == "":
			switch event {
			case "content":
				fmt.Print(strings.Join(data, "\n"))
			case "error":
				return fmt.Errorf("upstream error: %s", strings.Join(data, "\n"))
			case "done":
				return nil
			}
			event, data = "message", nil
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return fmt.Errorf("stream ended without done event")
}

func reset(client *http.Client, conversationID string) error {
	if conversationID == "" {
		return nil
	}
	payload, _ := json.Marshal(map[string]string{"conversation_id": conversationID})
	req, err := http.NewRequest(http.MethodPost, *gatewayURL+"/api/v1/request/reset", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(*authUser, *authPass)
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}
