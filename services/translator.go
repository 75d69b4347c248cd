package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/text/language"
)

// TranslatorConfig configures the HTTP translation client. When TokenURL is
// set, requests are authenticated with the OAuth2 client credentials grant.
type TranslatorConfig struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	TokenURL     string
}

// HTTPTranslator calls a JSON translation endpoint at BaseURL + "/translate".
type HTTPTranslator struct {
	baseURL string
	http    *http.Client
}

// NewHTTPTranslator creates a translator. base is used for token and API
// calls; nil means a default client.
func NewHTTPTranslator(cfg TranslatorConfig, base *http.Client) *HTTPTranslator {
	client := defaultClient(base, 0)
	if cfg.TokenURL != "" {
		cc := &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
		}
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, client)
		authed := cc.Client(ctx)
		authed.Timeout = client.Timeout
		client = authed
	}
	return &HTTPTranslator{baseURL: strings.TrimRight(cfg.BaseURL, "/"), http: client}
}

// Translate translates text from source to target.
func (t *HTTPTranslator) Translate(ctx context.Context, text string, source, target language.Tag) (string, error) {
	if t.baseURL == "" {
		return "", fmt.Errorf("translator: %w", ErrNotConfigured)
	}
	payload, err := json.Marshal(map[string]string{
		"q":      text,
		"source": source.String(),
		"target": target.String(),
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/translate", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := t.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("translate to %s: %w", target, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("translate to %s: %w", target, upstreamError("translator", resp))
	}
	var out struct {
		Translation string `json:"translation"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("translator decode: %w", err)
	}
	return out.Translation, nil
}

// Translator is the single-text translation call TranslateAll fans out over.
type Translator interface {
	Translate(ctx context.Context, text string, source, target language.Tag) (string, error)
}

// TranslateAll translates text into every target of langs and keys the
// results by caption key. The first failure aborts.
func TranslateAll(ctx context.Context, tr Translator, langs *Languages, text string) (map[string]string, error) {
	out := make(map[string]string, len(langs.Targets()))
	for _, target := range langs.Targets() {
		s, err := tr.Translate(ctx, text, langs.Source(), target)
		if err != nil {
			return nil, err
		}
		out[CaptionKey(target)] = s
	}
	return out, nil
}
