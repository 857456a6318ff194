// Package gemini talks to the Gemini file and generation APIs to pull
// structured syllabus records out of a PDF. It implements extract.Extractor;
// everything here is transport, the record semantics live in pkg/syllabus.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/malay-max/syllabus-scraper/pkg/syllabus/extract"
	"github.com/malay-max/syllabus-scraper/pkg/syllabus/internalerr"
)

const defaultPrompt = `Extract all literary texts and course details from this syllabus PDF into a JSON list.

CRITICAL: Look for the University Name on the first page and apply it to every object.

JSON Schema per item:
` + extract.SchemaDescription + `

Rules:
1. If a course has multiple texts, create a separate object for EACH text.
2. Normalize author names (e.g., use 'William Shakespeare' not 'Shakespeare').`

// Client calls the Gemini REST API.
type Client struct {
	BaseURL string
	APIKey  string
	Model   string

	// Prompt overrides the built-in extraction prompt when non-empty.
	Prompt string

	// PollInterval is the wait between file-state polls. Defaults to 2s.
	PollInterval time.Duration

	HTTPClient *http.Client
	Logger     *zap.Logger
}

type filePayload struct {
	File fileInfo `json:"file"`
}

type fileInfo struct {
	Name  string `json:"name"`
	URI   string `json:"uri"`
	State string `json:"state"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text     string    `json:"text,omitempty"`
	FileData *fileData `json:"file_data,omitempty"`
}

type fileData struct {
	MimeType string `json:"mime_type"`
	FileURI  string `json:"file_uri"`
}

type generationConfig struct {
	ResponseMimeType string `json:"response_mime_type"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Extract uploads the document, waits for the service to finish processing
// it, asks the model for JSON records and decodes them. The remote file is
// deleted afterwards on a best-effort basis.
func (c *Client) Extract(ctx context.Context, documentPath string) ([]extract.Record, error) {
	if c.BaseURL == "" || c.APIKey == "" || c.Model == "" {
		return nil, fmt.Errorf("%w: gemini: base URL, API key and model required", internalerr.ErrExtraction)
	}
	logger := c.logger()

	f, err := c.uploadFile(ctx, documentPath)
	if err != nil {
		return nil, fmt.Errorf("%w: upload %s: %v", internalerr.ErrExtraction, documentPath, err)
	}
	defer c.deleteFile(f.Name)

	f, err = c.awaitProcessing(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", internalerr.ErrExtraction, err)
	}
	logger.Info("document analyzed", zap.String("uri", f.URI))

	raw, err := c.generate(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("%w: generate: %v", internalerr.ErrExtraction, err)
	}

	return extract.DecodeRecords(raw, logger)
}

// uploadFile performs the resumable upload handshake: a start request
// carrying metadata, then the file bytes against the returned upload URL.
func (c *Client) uploadFile(ctx context.Context, path string) (fileInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return fileInfo{}, err
	}

	meta, err := json.Marshal(map[string]any{
		"file": map[string]any{"display_name": filepath.Base(path)},
	})
	if err != nil {
		return fileInfo{}, err
	}

	startURL := fmt.Sprintf("%s/upload/v1beta/files?key=%s", c.BaseURL, c.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, startURL, bytes.NewReader(meta))
	if err != nil {
		return fileInfo{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Upload-Protocol", "resumable")
	req.Header.Set("X-Goog-Upload-Command", "start")
	req.Header.Set("X-Goog-Upload-Header-Content-Length", strconv.Itoa(len(data)))
	req.Header.Set("X-Goog-Upload-Header-Content-Type", "application/pdf")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return fileInfo{}, err
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fileInfo{}, fmt.Errorf("upload start: unexpected status %s", resp.Status)
	}
	uploadURL := resp.Header.Get("X-Goog-Upload-URL")
	if uploadURL == "" {
		return fileInfo{}, fmt.Errorf("upload start: no upload URL in response")
	}

	req, err = http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, bytes.NewReader(data))
	if err != nil {
		return fileInfo{}, err
	}
	req.Header.Set("X-Goog-Upload-Command", "upload, finalize")
	req.Header.Set("X-Goog-Upload-Offset", "0")

	resp, err = c.httpClient().Do(req)
	if err != nil {
		return fileInfo{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fileInfo{}, fmt.Errorf("upload finalize: unexpected status %s", resp.Status)
	}

	var payload filePayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return fileInfo{}, err
	}
	return payload.File, nil
}

// awaitProcessing polls the file until it leaves the PROCESSING state.
func (c *Client) awaitProcessing(ctx context.Context, f fileInfo) (fileInfo, error) {
	interval := c.PollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}

	for f.State == "PROCESSING" {
		select {
		case <-ctx.Done():
			return fileInfo{}, ctx.Err()
		case <-time.After(interval):
		}

		url := fmt.Sprintf("%s/v1beta/%s?key=%s", c.BaseURL, f.Name, c.APIKey)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fileInfo{}, err
		}
		resp, err := c.httpClient().Do(req)
		if err != nil {
			return fileInfo{}, err
		}
		var next fileInfo
		err = json.NewDecoder(resp.Body).Decode(&next)
		resp.Body.Close()
		if err != nil {
			return fileInfo{}, err
		}
		// The get endpoint returns the file object bare, without the upload
		// endpoint's wrapper.
		f = next
	}

	if f.State == "FAILED" {
		if f.Error != nil {
			return fileInfo{}, fmt.Errorf("file processing failed: %s", f.Error.Message)
		}
		return fileInfo{}, fmt.Errorf("file processing failed")
	}
	return f, nil
}

// generate asks the model for the extraction output in JSON mode.
func (c *Client) generate(ctx context.Context, f fileInfo) ([]byte, error) {
	prompt := c.Prompt
	if prompt == "" {
		prompt = defaultPrompt
	}

	body, err := json.Marshal(generateRequest{
		Contents: []content{{
			Parts: []part{
				{FileData: &fileData{MimeType: "application/pdf", FileURI: f.URI}},
				{Text: prompt},
			},
		}},
		GenerationConfig: generationConfig{ResponseMimeType: "application/json"},
	})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.BaseURL, c.Model, c.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	if payload.Error != nil {
		return nil, fmt.Errorf("gemini error: %s", payload.Error.Message)
	}
	if len(payload.Candidates) == 0 || len(payload.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("empty response")
	}

	var out bytes.Buffer
	for _, p := range payload.Candidates[0].Content.Parts {
		out.WriteString(p.Text)
	}
	return out.Bytes(), nil
}

// deleteFile removes the uploaded file from the service. Failures are logged
// and otherwise ignored; the service expires files on its own eventually.
func (c *Client) deleteFile(name string) {
	if name == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	url := fmt.Sprintf("%s/v1beta/%s?key=%s", c.BaseURL, name, c.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		c.logger().Warn("failed to delete remote file", zap.String("name", name), zap.Error(err))
		return
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 2 * time.Minute}
}

func (c *Client) logger() *zap.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return zap.NewNop()
}
