// Package urlreader serves the URL reader: fetch a page, strip it down to
// plain text a vintage terminal can show, and paginate it.
package urlreader

import (
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/TheDeepLogic/RetroSerialHub/hub"
	"github.com/TheDeepLogic/RetroSerialHub/internal/term"
)

const (
	// DefaultFetchTimeout bounds one page fetch.
	DefaultFetchTimeout = 10 * time.Second

	// maxBodyBytes caps how much of a page is read; vintage terminals
	// have no use for more.
	maxBodyBytes = 1 << 20
)

// Module serves URL fetching. The HTTP client is shared across sessions.
type Module struct {
	client *http.Client
}

// New creates a URL reader module. A nil client gets a default with the
// fetch timeout applied.
func New(client *http.Client) *Module {
	if client == nil {
		client = &http.Client{Timeout: DefaultFetchTimeout}
	}

	return &Module{client: client}
}

// Factory returns a module factory for registration.
func Factory() hub.Factory {
	return func() (hub.Module, error) {
		return New(nil), nil
	}
}

type session struct{}

func (m *Module) NewSession(env *hub.Env) (hub.ModuleState, error) {
	if err := renderPrompt(env); err != nil {
		return nil, err
	}

	return &session{}, nil
}

func (m *Module) HandleInput(state hub.ModuleState, line string, env *hub.Env) (bool, hub.Command, error) {
	txt := strings.TrimSpace(line)

	if strings.EqualFold(txt, "Q") {
		return true, hub.Command{Action: hub.ActionReturnToMenu}, nil
	}
	if txt == "" {
		return true, hub.Command{}, renderPrompt(env)
	}

	return true, hub.Command{}, m.fetch(txt, env)
}

func (m *Module) fetch(target string, env *hub.Env) error {
	if !strings.Contains(target, "://") {
		target = "http://" + target
	}

	resp, err := m.client.Get(target)
	if err != nil {
		env.Logger.Info("urlreader: fetch failed", "url", target, "error", err)
		if perr := env.Screen.Printf("\r\n*** Fetch failed: %v ***\r\n", err); perr != nil {
			return perr
		}
		return renderPrompt(env)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if perr := env.Screen.Printf("\r\n*** Fetch failed: %v ***\r\n", err); perr != nil {
			return perr
		}
		return renderPrompt(env)
	}

	lines := StripHTML(string(body))
	if _, err := env.Screen.Paginate(lines, term.DefaultPageLines, env.ReadKey, false); err != nil {
		return err
	}

	return renderPrompt(env)
}

func renderPrompt(env *hub.Env) error {
	if err := env.Screen.Print("\r\nURL Reader: enter a URL to fetch and display text.\r\n"); err != nil {
		return err
	}
	if err := env.Screen.Print("Enter Q to return to the main menu.\r\n\r\n"); err != nil {
		return err
	}

	return env.Screen.Print("URL: ")
}

// StripHTML reduces a page to display lines: scripts and styles dropped,
// br and paragraph ends become line breaks, entities decoded, blank runs
// collapsed to a single empty line.
func StripHTML(page string) []string {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		// Malformed markup still renders as whatever text survived.
		return collapse(strings.Split(page, "\n"))
	}

	var sb strings.Builder
	emit(&sb, doc)

	return collapse(strings.Split(sb.String(), "\n"))
}

func emit(sb *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.ElementNode:
		switch n.Data {
		case "script", "style", "head", "noscript":
			return
		case "br":
			sb.WriteString("\n")
		case "p", "div", "tr", "li", "h1", "h2", "h3", "h4", "h5", "h6":
			sb.WriteString("\n")
		}
	case html.TextNode:
		sb.WriteString(n.Data)
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		emit(sb, c)
	}

	if n.Type == html.ElementNode && n.Data == "p" {
		sb.WriteString("\n\n")
	}
}

// collapse trims trailing space and squeezes runs of blank lines down to one.
func collapse(raw []string) []string {
	out := make([]string, 0, len(raw))
	blanks := 0

	for _, l := range raw {
		l = strings.TrimRight(strings.ReplaceAll(l, "\r", ""), " \t")
		if strings.TrimSpace(l) == "" {
			blanks++
			if blanks <= 1 {
				out = append(out, "")
			}
			continue
		}

		blanks = 0
		out = append(out, l)
	}

	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	for len(out) > 0 && out[0] == "" {
		out = out[1:]
	}

	return out
}
