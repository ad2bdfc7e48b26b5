package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"time"

	"voxd/encoder"
)

// Remote calls an OpenAI-compatible /audio/transcriptions endpoint.
// Segments upload as FLAC, roughly half the bytes of raw WAV.
type Remote struct {
	client   *TracedClient
	apiURL   string
	apiKey   string
	model    string
	language string
	timeout  time.Duration
}

type RemoteConfig struct {
	URL      string
	APIKey   string
	Model    string
	Language string
	Timeout  time.Duration
}

func NewRemote(cfg RemoteConfig) *Remote {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Remote{
		client:   NewTracedClient(),
		apiURL:   cfg.URL,
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		language: cfg.Language,
		timeout:  cfg.Timeout,
	}
}

func (r *Remote) Name() string { return "remote" }

// Warm pre-establishes the TLS connection, best effort.
func (r *Remote) Warm() { go r.client.Warm(r.apiURL) }

type remoteResponse struct {
	Text     string  `json:"text"`
	Duration float64 `json:"duration"`
}

func (r *Remote) Transcribe(ctx context.Context, pcm []byte, sampleRate int) (Result, error) {
	audio, err := encoder.EncodeFLAC(pcm, sampleRate)
	if err != nil {
		return Result{}, fmt.Errorf("encoding segment: %w", err)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "audio.flac")
	if err != nil {
		return Result{}, err
	}
	if _, err := part.Write(audio); err != nil {
		return Result{}, err
	}
	writer.WriteField("model", r.model)
	writer.WriteField("response_format", "verbose_json")
	if r.language != "" {
		writer.WriteField("language", r.language)
	}
	writer.Close()

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "POST", r.apiURL, &body)
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Authorization", "Bearer "+r.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := r.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("transcription request: %w", err)
	}
	if resp.StatusCode != 200 {
		return Result{}, fmt.Errorf("transcription API error %d: %s", resp.StatusCode, string(resp.Body))
	}

	var rResp remoteResponse
	if err := json.Unmarshal(resp.Body, &rResp); err != nil {
		return Result{}, fmt.Errorf("transcription response parse error: %w", err)
	}

	remaining := resp.Header.Get("x-ratelimit-remaining-requests")
	limit := resp.Header.Get("x-ratelimit-limit-requests")
	var rateLimit string
	if remaining != "" || limit != "" {
		rateLimit = remaining + "/" + limit
	}

	return Result{
		Text:      rResp.Text,
		AudioS:    rResp.Duration,
		APITime:   resp.Total,
		RateLimit: rateLimit,
	}, nil
}
