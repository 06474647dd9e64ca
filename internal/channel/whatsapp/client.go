// Package whatsapp talks to the WhatsApp Business Cloud API. One client
// covers every template arity: the body variables are a slice, not fixed
// parameters. Credentials arrive per call from the resolver.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	commonhttp "github.com/cosimani/rua-api-sub001/internal/common/http"
	"github.com/cosimani/rua-api-sub001/internal/common/logger"
	"github.com/cosimani/rua-api-sub001/internal/models"
)

type Client struct {
	baseURL    string
	locale     string
	httpClient *commonhttp.Client
	logger     logger.Logger
}

func NewClient(baseURL, locale string, httpClient *commonhttp.Client, log logger.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		locale:     locale,
		httpClient: httpClient,
		logger:     log.WithFields(map[string]interface{}{"canal": "whatsapp"}),
	}
}

type templateLanguage struct {
	Code string `json:"code"`
}

type templateParameter struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type templateComponent struct {
	Type       string              `json:"type"`
	Parameters []templateParameter `json:"parameters"`
}

type templatePayload struct {
	Name       string              `json:"name"`
	Language   templateLanguage    `json:"language"`
	Components []templateComponent `json:"components,omitempty"`
}

type sendRequest struct {
	MessagingProduct string          `json:"messaging_product"`
	To               string          `json:"to"`
	Type             string          `json:"type"`
	Template         templatePayload `json:"template"`
}

// SendTemplate posts a template message with 0..n positional body variables
// and returns the provider's raw decoded response. The Cloud API can report
// failures inside an HTTP 200 body, so callers must check IsErrorResponse.
func (c *Client) SendTemplate(ctx context.Context, to, templateName string, vars []string, creds *models.WhatsAppCredentials) (map[string]interface{}, error) {
	reqBody := sendRequest{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "template",
		Template: templatePayload{
			Name:     templateName,
			Language: templateLanguage{Code: c.locale},
		},
	}
	if len(vars) > 0 {
		params := make([]templateParameter, 0, len(vars))
		for _, v := range vars {
			params = append(params, templateParameter{Type: "text", Text: v})
		}
		reqBody.Template.Components = []templateComponent{
			{Type: "body", Parameters: params},
		}
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal template message: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s/messages", c.baseURL, creds.PhoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+creds.Token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response (status %d): %s", resp.StatusCode, string(body))
	}

	if IsErrorResponse(raw) {
		c.logger.Warn("provider reported send error", map[string]interface{}{
			"destino":  to,
			"template": templateName,
			"status":   resp.StatusCode,
		})
	}

	return raw, nil
}

// IsErrorResponse reports whether the provider embedded an error object in
// the response, regardless of HTTP status.
func IsErrorResponse(resp map[string]interface{}) bool {
	if resp == nil {
		return true
	}
	_, has := resp["error"]
	return has
}

// MessageID extracts the externally-assigned message identifier from a send
// response, or "" when none is present.
func MessageID(resp map[string]interface{}) string {
	msgs, ok := resp["messages"].([]interface{})
	if !ok || len(msgs) == 0 {
		return ""
	}
	first, ok := msgs[0].(map[string]interface{})
	if !ok {
		return ""
	}
	id, _ := first["id"].(string)
	return id
}

type templateCatalogResponse struct {
	Data []struct {
		Name       string `json:"name"`
		Components []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"components"`
	} `json:"data"`
}

// GetTemplateContent queries the template catalog and returns the literal
// BODY text of templateName. Any transport or parsing failure yields "" so a
// preview never aborts the operation that asked for it.
func (c *Client) GetTemplateContent(ctx context.Context, templateName string, creds *models.WhatsAppCredentials) string {
	endpoint := fmt.Sprintf("%s/%s/message_templates?name=%s&limit=1",
		c.baseURL, creds.WabaID, url.QueryEscape(templateName))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return ""
	}
	req.Header.Set("Authorization", "Bearer "+creds.Token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("template catalog lookup failed", map[string]interface{}{
			"template": templateName,
			"error":    err.Error(),
		})
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ""
	}

	var catalog templateCatalogResponse
	if err := json.NewDecoder(resp.Body).Decode(&catalog); err != nil {
		return ""
	}

	for _, tpl := range catalog.Data {
		if tpl.Name != templateName {
			continue
		}
		for _, comp := range tpl.Components {
			if comp.Type == "BODY" {
				return comp.Text
			}
		}
	}
	return ""
}
