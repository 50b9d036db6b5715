package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	config "github.com/maheshrc27/autopost/configs"
	"github.com/maheshrc27/autopost/internal/models"
)

// ContentGenerator produces the text and images that get published. The
// generation itself happens in an external service.
type ContentGenerator interface {
	GenerateText(ctx context.Context, c *models.Category) (string, error)
	GenerateImage(ctx context.Context, c *models.Category, text string) ([]byte, error)
	CollectKeywords(ctx context.Context, c *models.Category) ([]string, error)
}

type contentService struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewContentService(cfg config.Config) ContentGenerator {
	return &contentService{
		baseURL: strings.TrimRight(cfg.GeneratorURL, "/"),
		apiKey:  cfg.GeneratorAPIKey,
		client:  &http.Client{Timeout: 2 * time.Minute},
	}
}

type generationRequest struct {
	Category    string `json:"category"`
	Description string `json:"description"`
	Keywords    string `json:"keywords"`
	Text        string `json:"text,omitempty"`
}

type generationResponse struct {
	Text     string   `json:"text"`
	Image    string   `json:"image"`
	Keywords []string `json:"keywords"`
	Error    string   `json:"error"`
}

func (s *contentService) GenerateText(ctx context.Context, c *models.Category) (string, error) {
	resp, err := s.call(ctx, "/text", c, "")
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(resp.Text) == "" {
		return "", errors.New("generator returned empty text")
	}
	return resp.Text, nil
}

func (s *contentService) GenerateImage(ctx context.Context, c *models.Category, text string) ([]byte, error) {
	resp, err := s.call(ctx, "/image", c, text)
	if err != nil {
		return nil, err
	}
	img, err := base64.StdEncoding.DecodeString(resp.Image)
	if err != nil || len(img) == 0 {
		return nil, errors.New("generator returned no image")
	}
	return img, nil
}

func (s *contentService) CollectKeywords(ctx context.Context, c *models.Category) ([]string, error) {
	resp, err := s.call(ctx, "/keywords", c, "")
	if err != nil {
		return nil, err
	}
	return resp.Keywords, nil
}

func (s *contentService) call(ctx context.Context, path string, c *models.Category, text string) (*generationResponse, error) {
	if s.baseURL == "" {
		return nil, errors.New("content generator is not configured")
	}

	body, err := json.Marshal(generationRequest{
		Category:    c.Name,
		Description: c.Description,
		Keywords:    c.Keywords,
		Text:        text,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("generator request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}

	var out generationResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("generator status %d: undecodable response", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("generator status %d: %s", resp.StatusCode, out.Error)
	}
	return &out, nil
}
