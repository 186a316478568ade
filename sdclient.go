package picker

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// SDConfig controls how prompts are built and how the Stable Diffusion web
// UI API is called.
type SDConfig struct {
	BaseURL        string
	Steps          int
	Width          int
	Height         int
	CFGScale       float64
	SamplerName    string
	PromptPrefix   string
	PromptSuffix   string
	NegativePrompt string
	Timeout        time.Duration
}

// SDClient generates images through the SD web UI txt2img endpoint.
type SDClient struct {
	cfg    SDConfig
	client *http.Client
}

// NewSDClient builds a client, applying conservative defaults.
func NewSDClient(cfg SDConfig) (*SDClient, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("sd client: base URL cannot be empty")
	}
	if cfg.Steps <= 0 {
		cfg.Steps = 7
	}
	if cfg.Width <= 0 {
		cfg.Width = 512
	}
	if cfg.Height <= 0 {
		cfg.Height = 512
	}
	if cfg.CFGScale <= 0 {
		cfg.CFGScale = 1.5
	}
	if cfg.SamplerName == "" {
		cfg.SamplerName = "DPM++ 2M Karras"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &SDClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type txt2imgRequest struct {
	Prompt         string  `json:"prompt"`
	NegativePrompt string  `json:"negative_prompt"`
	Seed           int     `json:"seed"`
	Steps          int     `json:"steps"`
	Width          int     `json:"width"`
	Height         int     `json:"height"`
	CFGScale       float64 `json:"cfg_scale"`
	SamplerName    string  `json:"sampler_name"`
	NIter          int     `json:"n_iter"`
	BatchSize      int     `json:"batch_size"`
}

type txt2imgResponse struct {
	Images []string `json:"images"`
}

// BuildPrompt assembles the generation prompt from the current knob
// selections: prefix, then every non-empty selected label, then suffix.
func (c *SDClient) BuildPrompt(texts Texts, positions map[int]int) string {
	parts := make([]string, 0, len(positions)+2)
	if c.cfg.PromptPrefix != "" {
		parts = append(parts, strings.TrimSpace(c.cfg.PromptPrefix))
	}
	for _, ch := range texts.Channels() {
		knob, _ := texts.Knob(ch)
		pos, ok := positions[ch]
		if !ok || pos < 0 || pos >= len(knob.Values) {
			continue
		}
		if v := strings.TrimSpace(knob.Values[pos]); v != "" {
			parts = append(parts, v)
		}
	}
	if c.cfg.PromptSuffix != "" {
		parts = append(parts, strings.TrimSpace(c.cfg.PromptSuffix))
	}
	return strings.Join(parts, ", ")
}

// Txt2Img generates one image for prompt and returns the decoded result.
func (c *SDClient) Txt2Img(ctx context.Context, prompt string) (image.Image, error) {
	payload := txt2imgRequest{
		Prompt:         prompt,
		NegativePrompt: c.cfg.NegativePrompt,
		Seed:           -1,
		Steps:          c.cfg.Steps,
		Width:          c.cfg.Width,
		Height:         c.cfg.Height,
		CFGScale:       c.cfg.CFGScale,
		SamplerName:    c.cfg.SamplerName,
		NIter:          1,
		BatchSize:      1,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "encode txt2img request")
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/sdapi/v1/txt2img"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "build txt2img request")
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "call txt2img")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, errors.Errorf("txt2img returned %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
	}

	var decoded txt2imgResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, errors.Wrap(err, "decode txt2img response")
	}
	if len(decoded.Images) == 0 {
		return nil, errors.New("txt2img returned no images")
	}

	raw, err := base64.StdEncoding.DecodeString(decoded.Images[0])
	if err != nil {
		return nil, errors.Wrap(err, "decode generated image payload")
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, errors.Wrap(err, "decode generated image")
	}
	log.Info().
		Dur("elapsed", time.Since(start)).
		Int("bytes", len(raw)).
		Msg("image generated")
	return img, nil
}
