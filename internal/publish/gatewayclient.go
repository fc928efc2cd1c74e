package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// uploadTimeout bounds one upload round trip to the storage gateway.
const uploadTimeout = 30 * time.Second

// GatewayClient uploads documents to a decentralized storage gateway that
// pins content and returns its content identifier.
type GatewayClient struct {
	baseURL string
	client  *http.Client
}

// NewGatewayClient builds an upload client for the gateway at baseURL.
func NewGatewayClient(baseURL string) *GatewayClient {
	return &GatewayClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: uploadTimeout},
	}
}

type uploadRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Author  string `json:"author"`
}

type uploadResponse struct {
	CID string `json:"cid"`
	URL string `json:"url"`
}

// Upload posts the document to the gateway and returns the pinned artifact.
func (c *GatewayClient) Upload(ctx context.Context, title, content, author string) (Artifact, error) {
	body, err := json.Marshal(uploadRequest{Title: title, Content: content, Author: author})
	if err != nil {
		return Artifact{}, fmt.Errorf("encode upload request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload", bytes.NewReader(body))
	if err != nil {
		return Artifact{}, fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Artifact{}, fmt.Errorf("call storage gateway: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Artifact{}, fmt.Errorf("storage gateway returned status %d", resp.StatusCode)
	}

	var decoded uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Artifact{}, fmt.Errorf("decode upload response: %w", err)
	}
	return Artifact{CID: decoded.CID, URL: decoded.URL}, nil
}
