package qstash

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidSignature = errors.New("qstash: invalid signature")
	ErrPublishFailed    = errors.New("qstash: publish failed")
)

type Config struct {
	URL               string        `split_words:"true" default:"https://qstash.upstash.io"`
	Token             string        `split_words:"true"`
	CurrentSigningKey string        `split_words:"true"`
	NextSigningKey    string        `split_words:"true"`
	Timeout           time.Duration `split_words:"true" default:"10s"`
}

type Client struct {
	baseURL           string
	token             string
	currentSigningKey string
	nextSigningKey    string
	httpClient        *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.URL)
	if baseURL == "" {
		return nil, errors.New("qstash url is required")
	}

	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := &Client{
		baseURL:           strings.TrimRight(baseURL, "/"),
		token:             strings.TrimSpace(cfg.Token),
		currentSigningKey: strings.TrimSpace(cfg.CurrentSigningKey),
		nextSigningKey:    strings.TrimSpace(cfg.NextSigningKey),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}

	return client, nil
}

func MustNew(cfg Config) *Client {
	client, err := NewClient(cfg)
	if err != nil {
		panic(err)
	}
	return client
}

// PublishRequest is one message for QStash to deliver to Destination after Delay.
type PublishRequest struct {
	Destination     string
	Body            []byte
	Delay           time.Duration
	DeduplicationID string
	Retries         *int
}

type publishResponse struct {
	MessageID string `json:"messageId"`
}

// Publish enqueues a message and returns its QStash message id.
func (c *Client) Publish(ctx context.Context, req PublishRequest) (string, error) {
	destination := strings.TrimSpace(req.Destination)
	if destination == "" {
		return "", fmt.Errorf("%w: destination is required", ErrPublishFailed)
	}
	if c.token == "" {
		return "", fmt.Errorf("%w: token is required", ErrPublishFailed)
	}

	endpoint := c.baseURL + "/v2/publish/" + destination
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(req.Body))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPublishFailed, err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.token)
	httpReq.Header.Set("Content-Type", "application/json")
	if req.Delay > 0 {
		httpReq.Header.Set("Upstash-Delay", strconv.FormatInt(int64(req.Delay/time.Second), 10)+"s")
	}
	if req.DeduplicationID != "" {
		httpReq.Header.Set("Upstash-Deduplication-Id", req.DeduplicationID)
	}
	if req.Retries != nil {
		httpReq.Header.Set("Upstash-Retries", strconv.Itoa(*req.Retries))
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPublishFailed, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", ErrPublishFailed, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: status %d: %s", ErrPublishFailed, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var out publishResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrPublishFailed, err)
	}
	return out.MessageID, nil
}

type signatureClaims struct {
	Body string `json:"body"`
	jwt.RegisteredClaims
}

// Verify checks the Upstash-Signature of a delivered message against the
// current signing key, then the next one. destination may be empty to skip
// the subject check.
func (c *Client) Verify(signature string, body []byte, destination string) error {
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return fmt.Errorf("%w: signature header is empty", ErrInvalidSignature)
	}

	var lastErr error
	for _, key := range []string{c.currentSigningKey, c.nextSigningKey} {
		if key == "" {
			continue
		}
		if err := verifyWithKey(signature, body, destination, key); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	if lastErr == nil {
		lastErr = errors.New("no signing key configured")
	}
	return fmt.Errorf("%w: %v", ErrInvalidSignature, lastErr)
}

func verifyWithKey(signature string, body []byte, destination, key string) error {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer("Upstash"),
		jwt.WithLeeway(time.Second),
	}
	if destination != "" {
		opts = append(opts, jwt.WithSubject(destination))
	}

	var claims signatureClaims
	if _, err := jwt.ParseWithClaims(signature, &claims, func(*jwt.Token) (any, error) {
		return []byte(key), nil
	}, opts...); err != nil {
		return err
	}

	sum := sha256.Sum256(body)
	if strings.TrimRight(claims.Body, "=") != base64.RawURLEncoding.EncodeToString(sum[:]) {
		return errors.New("body hash mismatch")
	}
	return nil
}
