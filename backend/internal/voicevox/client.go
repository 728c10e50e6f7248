// Package voicevox talks to a VOICEVOX engine over its HTTP API.
package voicevox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const maxErrorRunes = 200

// Speaker is one entry of the engine's speaker catalog
type Speaker struct {
	Name        string  `json:"name"`
	SpeakerUUID string  `json:"speaker_uuid"`
	Styles      []Style `json:"styles"`
	Version     string  `json:"version"`
}

// Style is a selectable voice of a speaker. Its ID is the speaker ID used
// everywhere else in the bot.
type Style struct {
	Name string `json:"name"`
	ID   int    `json:"id"`
}

// Client is a VOICEVOX engine client
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a client for the engine at baseURL
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// IsModelLoaded reports whether the engine has initialized the speaker's model
func (c *Client) IsModelLoaded(ctx context.Context, speakerID int) (bool, error) {
	body, err := c.do(ctx, http.MethodGet, "/is_initialized_speaker", speakerQuery(speakerID), nil)
	if err != nil {
		return false, err
	}

	var loaded bool
	if err := json.Unmarshal(body, &loaded); err != nil {
		return false, fmt.Errorf("decode is_initialized_speaker: %w", err)
	}
	return loaded, nil
}

// LoadModel initializes the speaker's model in the engine
func (c *Client) LoadModel(ctx context.Context, speakerID int) error {
	q := speakerQuery(speakerID)
	q.Set("skip_reinit", "true")

	start := time.Now()
	if _, err := c.do(ctx, http.MethodPost, "/initialize_speaker", q, nil); err != nil {
		return err
	}
	c.logger.Info("Speaker model loaded",
		zap.Int("speaker_id", speakerID),
		zap.Duration("took", time.Since(start)),
	)
	return nil
}

// Synthesize renders text with the given speaker and returns WAV bytes
func (c *Client) Synthesize(ctx context.Context, text string, speakerID int) ([]byte, error) {
	q := speakerQuery(speakerID)
	q.Set("text", text)

	query, err := c.do(ctx, http.MethodPost, "/audio_query", q, nil)
	if err != nil {
		return nil, fmt.Errorf("audio_query: %w", err)
	}

	wav, err := c.do(ctx, http.MethodPost, "/synthesis", speakerQuery(speakerID), query)
	if err != nil {
		return nil, fmt.Errorf("synthesis: %w", err)
	}
	return wav, nil
}

// Speakers fetches the engine's speaker catalog
func (c *Client) Speakers(ctx context.Context) ([]Speaker, error) {
	body, err := c.do(ctx, http.MethodGet, "/speakers", nil, nil)
	if err != nil {
		return nil, err
	}

	var speakers []Speaker
	if err := json.Unmarshal(body, &speakers); err != nil {
		return nil, fmt.Errorf("decode speakers: %w", err)
	}
	return speakers, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, jsonBody []byte) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var body io.Reader
	if jsonBody != nil {
		body = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	if jsonBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("VOICEVOX %s returned status %d: %s", path, resp.StatusCode, errorSnippet(data))
	}

	return data, nil
}

// errorSnippet keeps the first maxErrorRunes characters of an error body
func errorSnippet(data []byte) string {
	runes := []rune(string(data))
	if len(runes) > maxErrorRunes {
		runes = runes[:maxErrorRunes]
	}
	return string(runes)
}

func speakerQuery(speakerID int) url.Values {
	return url.Values{"speaker": []string{strconv.Itoa(speakerID)}}
}
