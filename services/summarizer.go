package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	// NoTitle is returned when the transcript has no chapters.
	NoTitle = "No title generated"
	// NoDescription is used when the first chapter has no summary.
	NoDescription = "No short description available"

	defaultPollInterval = 3 * time.Second
)

// AudioTitle is a generated headline and short description for a recording.
type AudioTitle struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// AssemblyAI generates chapter headlines for audio.
type AssemblyAI struct {
	baseURL      string
	apiKey       string
	http         *http.Client
	pollInterval time.Duration
}

// NewAssemblyAI creates a summarizer. pollInterval <= 0 uses three seconds.
func NewAssemblyAI(baseURL, apiKey string, client *http.Client, pollInterval time.Duration) *AssemblyAI {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	return &AssemblyAI{
		baseURL:      strings.TrimRight(baseURL, "/"),
		apiKey:       apiKey,
		http:         defaultClient(client, 0),
		pollInterval: pollInterval,
	}
}

type transcriptStatus struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Error    string `json:"error"`
	Chapters []struct {
		Headline string `json:"headline"`
		Summary  string `json:"summary"`
	} `json:"chapters"`
}

// Title uploads audio, requests a transcript with auto chapters and polls
// until it completes or ctx is done.
func (a *AssemblyAI) Title(ctx context.Context, audio []byte) (AudioTitle, error) {
	if a.baseURL == "" || a.apiKey == "" {
		return AudioTitle{}, fmt.Errorf("assemblyai: %w", ErrNotConfigured)
	}

	var up struct {
		UploadURL string `json:"upload_url"`
	}
	if err := a.do(ctx, http.MethodPost, "/upload", "application/octet-stream", bytes.NewReader(audio), &up); err != nil {
		return AudioTitle{}, fmt.Errorf("assemblyai upload: %w", err)
	}

	payload, _ := json.Marshal(map[string]interface{}{"audio_url": up.UploadURL, "auto_chapters": true})
	var job transcriptStatus
	if err := a.do(ctx, http.MethodPost, "/transcript", "application/json", bytes.NewReader(payload), &job); err != nil {
		return AudioTitle{}, fmt.Errorf("assemblyai transcript: %w", err)
	}

	ticker := time.NewTicker(a.pollInterval)
	defer ticker.Stop()
	for {
		var st transcriptStatus
		if err := a.do(ctx, http.MethodGet, "/transcript/"+job.ID, "", nil, &st); err != nil {
			return AudioTitle{}, fmt.Errorf("assemblyai poll: %w", err)
		}
		switch st.Status {
		case "completed":
			return titleFrom(st), nil
		case "error":
			return AudioTitle{}, fmt.Errorf("%w: %s", ErrTranscriptionFailed, st.Error)
		}
		select {
		case <-ctx.Done():
			return AudioTitle{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (a *AssemblyAI) do(ctx context.Context, method, path, contentType string, body *bytes.Reader, out interface{}) error {
	var req *http.Request
	var err error
	if body != nil {
		req, err = http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, a.baseURL+path, nil)
	}
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", a.apiKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := a.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return upstreamError("assemblyai", resp)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func titleFrom(st transcriptStatus) AudioTitle {
	title, summary := NoTitle, NoDescription
	if len(st.Chapters) > 0 {
		if h := strings.TrimSpace(st.Chapters[0].Headline); h != "" {
			title = h
		}
		if s := strings.TrimSpace(st.Chapters[0].Summary); s != "" {
			summary = s
		}
	}
	return AudioTitle{Title: title, Description: firstSentences(summary, 2)}
}

// firstSentences keeps the first n period-terminated sentences of s and
// ends the result with a period.
func firstSentences(s string, n int) string {
	parts := []string{}
	for _, p := range strings.Split(s, ".") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
		if len(parts) == n {
			break
		}
	}
	out := strings.Join(parts, ". ")
	if out != "" && !strings.HasSuffix(out, ".") {
		out += "."
	}
	return out
}
