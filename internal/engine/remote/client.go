// Package remote binds flash.Engine to an engine service speaking JSON
// over HTTP. Requests are signed with a SHA-256 token over their sorted
// fields and a shared secret.
package remote

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"Flashgrid/internal/flash"
	"Flashgrid/internal/fluid"
)

type Client struct {
	BaseURL    string
	Secret     string
	HTTPClient *http.Client
}

type FlashRequest struct {
	Kind        string            `json:"Kind"`
	X           float64           `json:"X"`
	Y           float64           `json:"Y"`
	Composition fluid.Composition `json:"Composition"`
}

type FlashResponse struct {
	Success bool            `json:"Success"`
	State   json.RawMessage `json:"State"`
	Message string          `json:"Message,omitempty"`
	Details string          `json:"Details,omitempty"`
}

type MolarMassRequest struct {
	Composition fluid.Composition `json:"Composition"`
}

type MolarMassResponse struct {
	Success   bool    `json:"Success"`
	MolarMass float64 `json:"MolarMass"`
	Message   string  `json:"Message,omitempty"`
	Details   string  `json:"Details,omitempty"`
}

// EngineError is a rejection reported by the engine service itself.
type EngineError struct {
	Op      string
	Message string
	Details string
}

func (e *EngineError) Error() string {
	return strings.TrimSpace(fmt.Sprintf("remote: %s failed: %s %s", e.Op, e.Message, e.Details))
}

// StatusError is a non-2xx reply.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("remote: engine service returned %d: %s", e.Code, e.Body)
}

func NewClient(baseURL, secret string, timeout time.Duration) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Secret:     secret,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) Flash(ctx context.Context, kind flash.Kind, x, y float64, comp fluid.Composition) (*flash.State, error) {
	req := FlashRequest{Kind: string(kind), X: x, Y: y, Composition: comp}
	payload, err := signRequest(c.Secret, req)
	if err != nil {
		return nil, err
	}
	var resp FlashResponse
	if err := c.postJSON(ctx, "/flash", payload, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, &EngineError{Op: "flash", Message: resp.Message, Details: resp.Details}
	}
	return flash.DecodeState(resp.State, kind)
}

func (c *Client) MolarMass(ctx context.Context, comp fluid.Composition) (float64, error) {
	payload, err := signRequest(c.Secret, MolarMassRequest{Composition: comp})
	if err != nil {
		return 0, err
	}
	var resp MolarMassResponse
	if err := c.postJSON(ctx, "/molar_mass", payload, &resp); err != nil {
		return 0, err
	}
	if !resp.Success {
		return 0, &EngineError{Op: "molar mass", Message: resp.Message, Details: resp.Details}
	}
	if resp.MolarMass <= 0 {
		return 0, &EngineError{Op: "molar mass", Message: fmt.Sprintf("non-positive molar mass %g", resp.MolarMass)}
	}
	return resp.MolarMass, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload map[string]any, out any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return &StatusError{Code: res.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return json.NewDecoder(res.Body).Decode(out)
}

func signRequest(secret string, req any) (map[string]any, error) {
	b, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	m["Token"] = makeToken(secret, m)
	return m, nil
}

// makeToken hashes the scalar fields in key order with the secret slotted
// in under "Secret". Nested values are hashed in their JSON form.
func makeToken(secret string, m map[string]any) string {
	keys := make([]string, 0, len(m)+1)
	for k := range m {
		if strings.EqualFold(k, "Token") {
			continue
		}
		keys = append(keys, k)
	}
	keys = append(keys, "Secret")
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		if k == "Secret" {
			b.WriteString(secret)
			continue
		}
		switch t := m[k].(type) {
		case string:
			b.WriteString(t)
		case float64:
			b.WriteString(fmt.Sprintf("%g", t))
		case bool:
			if t {
				b.WriteString("true")
			} else {
				b.WriteString("false")
			}
		default:
			js, _ := json.Marshal(t)
			b.Write(js)
		}
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
