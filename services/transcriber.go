package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
)

// Whisper posts MP3 audio to a local transcription service.
type Whisper struct {
	baseURL string
	http    *http.Client
}

// NewWhisper creates a transcriber for the service at baseURL.
func NewWhisper(baseURL string, client *http.Client) *Whisper {
	return &Whisper{baseURL: strings.TrimRight(baseURL, "/"), http: defaultClient(client, 0)}
}

// Transcribe uploads mp3 as the "audio" form field and returns the trimmed text.
func (w *Whisper) Transcribe(ctx context.Context, mp3 []byte) (string, error) {
	if w.baseURL == "" {
		return "", fmt.Errorf("transcriber: %w", ErrNotConfigured)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="audio"; filename="audio.mp3"`)
	h.Set("Content-Type", "audio/mpeg")
	part, err := mw.CreatePart(h)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(mp3); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.baseURL+"/transcribe", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := w.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTranscriptionFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: %w", ErrTranscriptionFailed, upstreamError("transcriber", resp))
	}

	var out struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("transcriber decode: %w", err)
	}
	return strings.TrimSpace(out.Text), nil
}
