// Package aichat serves the AI assistant: a line-oriented chat against an
// OpenAI-compatible completion endpoint, keeping conversation context for
// the session.
package aichat

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/TheDeepLogic/RetroSerialHub/hub"
)

const (
	// DefaultRequestTimeout bounds one completion call.
	DefaultRequestTimeout = 60 * time.Second

	// maxResponseTokens keeps answers short enough for a serial line.
	maxResponseTokens = 500

	systemPrompt = "You are a helpful AI assistant in a retro BBS system. " +
		"Keep responses concise and informative. Use ASCII art sparingly " +
		"and only when specifically requested."
)

// Module serves AI chat. The HTTP client is shared across sessions.
type Module struct {
	client *http.Client
}

// New creates an AI chat module. A nil client gets a default with the
// request timeout applied.
func New(client *http.Client) *Module {
	if client == nil {
		client = &http.Client{Timeout: DefaultRequestTimeout}
	}

	return &Module{client: client}
}

// Factory returns a module factory for registration.
func Factory() hub.Factory {
	return func() (hub.Module, error) {
		return New(nil), nil
	}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type session struct {
	disabled bool
	history  []message
}

func (m *Module) NewSession(env *hub.Env) (hub.ModuleState, error) {
	if env.Services.Config().AI.APIKey == "" {
		if err := env.Screen.Print("\r\n*** Error: AI API key not configured ***\r\n"); err != nil {
			return nil, err
		}
		if err := env.Screen.Print("Set OPENAI_API_KEY or add an ai key to the hub configuration.\r\n"); err != nil {
			return nil, err
		}
		if err := env.Screen.Print("\r\nPress Enter to return to the main menu.\r\n"); err != nil {
			return nil, err
		}

		return &session{disabled: true}, nil
	}

	st := &session{history: []message{{Role: "system", Content: systemPrompt}}}

	if err := writeHeader(env); err != nil {
		return nil, err
	}

	return st, nil
}

func (m *Module) HandleInput(state hub.ModuleState, line string, env *hub.Env) (bool, hub.Command, error) {
	st := state.(*session)

	if st.disabled {
		return true, hub.Command{Action: hub.ActionReturnToMenu}, nil
	}

	switch strings.ToUpper(strings.TrimSpace(line)) {
	case "":
		return true, hub.Command{}, writeHelp(env)
	case "Q":
		return true, hub.Command{Action: hub.ActionReturnToMenu}, nil
	case "N":
		st.history = []message{{Role: "system", Content: systemPrompt}}
		return true, hub.Command{}, writeHeader(env)
	}

	return true, hub.Command{}, m.ask(st, line, env)
}

// ask sends the conversation to the endpoint and prints the reply. A failed
// call leaves the history as it was before the question.
func (m *Module) ask(st *session, question string, env *hub.Env) error {
	if err := env.Screen.Print("\r\n"); err != nil {
		return err
	}

	cfg := env.Services.Config().AI
	st.history = append(st.history, message{Role: "user", Content: question})

	reply, err := m.complete(cfg.Endpoint, cfg.APIKey, cfg.Model, st.history)
	if err != nil {
		env.Logger.Warn("aichat: completion failed", "error", err)
		st.history = st.history[:len(st.history)-1]
		if perr := env.Screen.Printf("*** API Error: %v ***\r\n", err); perr != nil {
			return perr
		}
		return writePrompt(env)
	}

	st.history = append(st.history, message{Role: "assistant", Content: reply})

	for _, l := range strings.Split(reply, "\n") {
		if err := env.Screen.Print(strings.TrimRight(l, "\r") + "\r\n"); err != nil {
			return err
		}
	}

	return writePrompt(env)
}

func (m *Module) complete(endpoint, key, model string, history []message) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model:       model,
		Messages:    history,
		MaxTokens:   maxResponseTokens,
		Temperature: 0.7,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequest(http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+key)

	resp, err := m.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	if parsed.Error != nil {
		return "", fmt.Errorf("%s", parsed.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("endpoint returned %s", resp.Status)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("empty completion")
	}

	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

func writeHeader(env *hub.Env) error {
	if err := env.Screen.Clear(); err != nil {
		return err
	}
	if err := env.Screen.Print("\r\nLogicNet AI Assistant\r\n"); err != nil {
		return err
	}
	if err := env.Screen.Print("--------------------------------------\r\n\r\n"); err != nil {
		return err
	}

	return writeHelp(env)
}

func writeHelp(env *hub.Env) error {
	lines := []string{
		"Commands:\r\n",
		"  N = Start new conversation\r\n",
		"  Q = Return to main menu\r\n",
		"\r\nAsk any question or type a command. The AI will maintain\r\n",
		"context of your conversation until you start a new one.\r\n",
		"\r\nEnter your message: ",
	}
	for _, l := range lines {
		if err := env.Screen.Print(l); err != nil {
			return err
		}
	}

	return nil
}

func writePrompt(env *hub.Env) error {
	return env.Screen.Print("\r\nEnter your message (N=New conversation, Q=Quit): ")
}
