package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino/components/model"
	"google.golang.org/genai"
)

type Config struct {
	APIKey      string  `envconfig:"API_KEY" split_words:"true"`
	BaseURL     string  `envconfig:"BASE_URL" split_words:"true"`
	Model       string  `envconfig:"MODEL" split_words:"true" default:"gemini-2.0-flash"`
	MaxTokens   int     `envconfig:"MAX_TOKENS" split_words:"true" default:"600"`
	Temperature float32 `envconfig:"TEMPERATURE" split_words:"true" default:"0.4"`
}

// New builds an eino chat model backed by the Gemini API.
func (c *Config) New(ctx context.Context) (model.BaseChatModel, error) {
	apiKey := strings.TrimSpace(c.APIKey)
	if apiKey == "" {
		return nil, errors.New("gemini: api key is required")
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if c.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = c.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}

	temperature := c.Temperature
	maxTokens := c.MaxTokens
	m, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       strings.TrimSpace(c.Model),
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create chat model: %w", err)
	}
	return m, nil
}
