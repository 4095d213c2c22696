// Package embedding computes face embeddings with a DeepFace REST service.
package embedding

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

	"github.com/kozaktomas/face-vector/internal/imaging"
)

const (
	defaultEmbeddingURL   = "http://localhost:5005"
	defaultEmbeddingModel = "Facenet"

	// skipDetector makes DeepFace embed the image as given.
	skipDetector = "skip"
)

// ErrNoEmbedding is returned when the model produced nothing for the input.
var ErrNoEmbedding = errors.New("unable to extract face vector")

// Extractor maps a cropped face to an embedding vector.
type Extractor interface {
	Extract(ctx context.Context, face *imaging.Image) ([]float64, error)
}

// Client calls POST /represent on a DeepFace API server.
type Client struct {
	baseURL string
	model   string
	dim     int
	client  *http.Client
}

// NewClient creates a new DeepFace client. A dim of zero disables the
// vector length check.
func NewClient(baseURL, model string, dim int, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = defaultEmbeddingURL
	}
	if model == "" {
		model = defaultEmbeddingModel
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		model:   model,
		dim:     dim,
		client:  &http.Client{Timeout: timeout},
	}
}

// representRequest is the body of POST /represent.
type representRequest struct {
	Img              string `json:"img"`
	ModelName        string `json:"model_name"`
	DetectorBackend  string `json:"detector_backend"`
	EnforceDetection bool   `json:"enforce_detection"`
	Align            bool   `json:"align"`
}

// representResponse is the response of POST /represent.
type representResponse struct {
	Results []RepresentResult `json:"results"`
}

// RepresentResult is one embedding DeepFace produced for the input.
type RepresentResult struct {
	Embedding      []float64  `json:"embedding"`
	FacialArea     FacialArea `json:"facial_area"`
	FaceConfidence float64    `json:"face_confidence"`
}

// FacialArea is the region DeepFace embedded, relative to its input.
type FacialArea struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Model returns the model name being used
func (c *Client) Model() string {
	return c.model
}

// Represent posts a PNG-encoded image and returns every result DeepFace reported.
func (c *Client) Represent(ctx context.Context, pngData []byte) ([]RepresentResult, error) {
	reqBody, err := json.Marshal(representRequest{
		Img:              pngDataURI(pngData),
		ModelName:        c.model,
		DetectorBackend:  skipDetector,
		EnforceDetection: false,
		Align:            false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/represent", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp errorResponse
		if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
			return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, errResp.Error)
		}
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	var repResp representResponse
	if err := json.Unmarshal(body, &repResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return repResp.Results, nil
}

// Extract embeds an already cropped face. Only the first result is used.
func (c *Client) Extract(ctx context.Context, face *imaging.Image) ([]float64, error) {
	imageData, err := imaging.EncodePNG(face)
	if err != nil {
		return nil, err
	}

	results, err := c.Represent(ctx, imageData)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 || len(results[0].Embedding) == 0 {
		return nil, ErrNoEmbedding
	}

	vector := results[0].Embedding
	if c.dim > 0 && len(vector) != c.dim {
		return nil, fmt.Errorf("model %s returned %d values, expected %d", c.model, len(vector), c.dim)
	}
	return vector, nil
}

// pngDataURI wraps EncodePNG output for the "img" field.
func pngDataURI(imageData []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(imageData)
}
