package video

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const dailyName = "daily"

// DailyProvider talks to the Daily.co REST API.
type DailyProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewDailyProvider(baseURL, apiKey string, client *http.Client) (*DailyProvider, error) {
	if apiKey == "" {
		return nil, errors.New("video: daily api key is required")
	}
	if baseURL == "" {
		return nil, errors.New("video: daily base url is required")
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &DailyProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  client,
	}, nil
}

func (p *DailyProvider) Name() string { return dailyName }

type dailyRoomProperties struct {
	MaxParticipants int   `json:"max_participants"`
	EnableChat      bool  `json:"enable_chat"`
	StartVideoOff   bool  `json:"start_video_off"`
	StartAudioOff   bool  `json:"start_audio_off"`
	Exp             int64 `json:"exp"`
}

type dailyCreateRoomRequest struct {
	Name       string              `json:"name"`
	Properties dailyRoomProperties `json:"properties"`
}

type dailyRoomResponse struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type dailyErrorResponse struct {
	Error string `json:"error"`
	Info  string `json:"info"`
}

func (p *DailyProvider) CreateRoom(ctx context.Context, spec RoomSpec) (Room, error) {
	const op = "create room"
	if spec.Name == "" {
		return Room{}, &ProviderError{Provider: dailyName, Op: op, Message: "room name is required"}
	}

	body := dailyCreateRoomRequest{
		Name: spec.Name,
		Properties: dailyRoomProperties{
			MaxParticipants: spec.MaxParticipants,
			EnableChat:      spec.EnableChat,
			StartVideoOff:   spec.StartVideoOff,
			StartAudioOff:   spec.StartAudioOff,
			Exp:             spec.ExpiresAt.Unix(),
		},
	}

	var out dailyRoomResponse
	if err := p.do(ctx, op, http.MethodPost, "/rooms", body, &out); err != nil {
		return Room{}, err
	}
	if out.URL == "" {
		return Room{}, &ProviderError{Provider: dailyName, Op: op, Message: "response missing room url"}
	}
	if out.Name == "" {
		out.Name = spec.Name
	}
	return Room{Name: out.Name, URL: out.URL}, nil
}

func (p *DailyProvider) EndRoom(ctx context.Context, name string) error {
	const op = "end room"
	if name == "" {
		return &ProviderError{Provider: dailyName, Op: op, Message: "room name is required"}
	}
	return p.do(ctx, op, http.MethodPost, "/rooms/"+url.PathEscape(name)+"/end", nil, nil)
}

func (p *DailyProvider) do(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return &ProviderError{Provider: dailyName, Op: op, Err: err}
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, body)
	if err != nil {
		return &ProviderError{Provider: dailyName, Op: op, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return &ProviderError{Provider: dailyName, Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &ProviderError{Provider: dailyName, Op: op, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		pe := &ProviderError{Provider: dailyName, Op: op, StatusCode: resp.StatusCode}
		var de dailyErrorResponse
		if json.Unmarshal(raw, &de) == nil && (de.Error != "" || de.Info != "") {
			pe.Code = de.Error
			pe.Message = de.Info
		} else {
			pe.Message = strings.TrimSpace(string(raw))
		}
		return pe
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &ProviderError{Provider: dailyName, Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
