package narrative

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"coinpulse/internal/models"
)

type annotation struct {
	Type  string `json:"type"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

type contentPart struct {
	Type        string       `json:"type"`
	Text        string       `json:"text"`
	Annotations []annotation `json:"annotations"`
}

type outputItem struct {
	Type    string        `json:"type"`
	Content []contentPart `json:"content"`
}

type responsesResponse struct {
	Output []outputItem `json:"output"`
}

// parseResponse joins the output_text parts of the first message item and
// collects its URL citations, first appearance wins.
func parseResponse(body []byte) (string, []models.Source, error) {
	var resp responsesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	var message *outputItem
	for i := range resp.Output {
		if resp.Output[i].Type == "message" {
			message = &resp.Output[i]
			break
		}
	}
	if message == nil {
		return "", nil, fmt.Errorf("%w: no message in %d output items", ErrMalformedResponse, len(resp.Output))
	}

	var text strings.Builder
	sources := []models.Source{}
	seen := make(map[string]bool)
	for _, part := range message.Content {
		if part.Type != "output_text" {
			continue
		}
		text.WriteString(part.Text)

		for _, a := range part.Annotations {
			if a.Type != "url_citation" || a.URL == "" || seen[a.URL] {
				continue
			}
			host, ok := originHost(a.URL)
			if !ok {
				continue
			}
			seen[a.URL] = true
			title := a.Title
			if title == "" {
				title = host
			}
			sources = append(sources, models.Source{Title: title, URL: a.URL, Host: host})
		}
	}

	out := strings.TrimSpace(text.String())
	if out == "" {
		return "", nil, ErrEmptyContent
	}
	return out, sources, nil
}

func originHost(raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return "", false
	}
	return strings.TrimPrefix(u.Hostname(), "www."), true
}
