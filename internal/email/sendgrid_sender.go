package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// SendGridSender envía el código con la API v3 de SendGrid usando una
// plantilla dinámica; la plantilla recibe code y expires_at.
type SendGridSender struct {
	baseURL    string
	apiKey     string
	from       string
	templateID string
	client     *http.Client
}

func NewSendGridSender(baseURL, apiKey, from, templateID string) (*SendGridSender, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("sendgrid api key is required")
	}
	if strings.TrimSpace(from) == "" {
		return nil, fmt.Errorf("sendgrid sender is required")
	}
	if strings.TrimSpace(templateID) == "" {
		return nil, fmt.Errorf("sendgrid template id is required")
	}
	if baseURL == "" {
		baseURL = "https://api.sendgrid.com"
	}
	return &SendGridSender{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		from:       from,
		templateID: templateID,
		client:     &http.Client{Timeout: 15 * time.Second},
	}, nil
}

type sendGridAddress struct {
	Email string `json:"email"`
}

type sendGridPersonalization struct {
	To                  []sendGridAddress `json:"to"`
	DynamicTemplateData map[string]string `json:"dynamic_template_data"`
}

type sendGridRequest struct {
	From             sendGridAddress           `json:"from"`
	TemplateID       string                    `json:"template_id"`
	Personalizations []sendGridPersonalization `json:"personalizations"`
}

type sendGridErrorResponse struct {
	Errors []struct {
		Message string `json:"message"`
		Field   string `json:"field"`
	} `json:"errors"`
}

func (s *SendGridSender) SendVerificationCode(ctx context.Context, toEmail string, code string, expiresAt time.Time) error {
	if strings.TrimSpace(toEmail) == "" {
		return fmt.Errorf("to email is required")
	}

	reqBody := sendGridRequest{
		From:       sendGridAddress{Email: s.from},
		TemplateID: s.templateID,
		Personalizations: []sendGridPersonalization{{
			To: []sendGridAddress{{Email: toEmail}},
			DynamicTemplateData: map[string]string{
				"code":       code,
				"expires_at": expiresAt.UTC().Format(time.RFC3339),
			},
		}},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v3/mail/send", bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var errResp sendGridErrorResponse
	if json.Unmarshal(respBody, &errResp) == nil && len(errResp.Errors) > 0 {
		return fmt.Errorf("sendgrid http error: status=%d: %s", resp.StatusCode, errResp.Errors[0].Message)
	}
	return fmt.Errorf("sendgrid http error: status=%d", resp.StatusCode)
}
