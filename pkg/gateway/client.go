// Package gateway adapts messages to the external SMS gateway's XML
// submit contract. The client is stateless and never retries; retry
// policy belongs to the dispatcher's caller-visible contract.
package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"time"

	"promosms/internal/errors"

	"github.com/sirupsen/logrus"
)

// AcceptedCode is the gateway's result code for an accepted submission.
const AcceptedCode = "00000"

type Client interface {
	Send(ctx context.Context, recipient, body string) (*SubmitResult, error)
}

// Config carries the gateway endpoint and the static system-identity
// fields attached to every submission.
type Config struct {
	URL           string
	SysID         string
	SrcAddress    string
	DRFlag        bool
	FirstFailFlag bool
	Timeout       time.Duration
}

// SubmitResult is the gateway's verdict on one submission.
type SubmitResult struct {
	Code      string
	Text      string
	MessageID string
}

// Accepted reports whether the gateway took responsibility for delivery.
func (r *SubmitResult) Accepted() bool {
	return r.Code == AcceptedCode
}

type submitRequest struct {
	XMLName       xml.Name `xml:"SmsSubmitReq"`
	SysID         string   `xml:"SysId"`
	SrcAddress    string   `xml:"SrcAddress"`
	DestAddress   []string `xml:"DestAddress"`
	SmsBody       string   `xml:"SmsBody"`
	DrFlag        bool     `xml:"DrFlag"`
	FirstFailFlag bool     `xml:"FirstFailFlag"`
}

type submitResponse struct {
	XMLName    xml.Name `xml:"SmsSubmitRsp"`
	ResultCode string   `xml:"ResultCode"`
	ResultText string   `xml:"ResultText"`
	MessageID  string   `xml:"MessageId"`
}

type HTTPClient struct {
	cfg    Config
	client *http.Client
	logger *logrus.Logger
}

func NewClient(cfg Config, httpClient *http.Client, logger *logrus.Logger) Client {
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.WarnLevel)
	}

	return &HTTPClient{cfg: cfg, client: httpClient, logger: logger}
}

// Send submits one message. Any non-2xx status or malformed response
// body yields a GATEWAY_ERROR with the raw status preserved for
// diagnostics. The body travels base64-encoded per the wire contract.
func (c *HTTPClient) Send(ctx context.Context, recipient, body string) (*SubmitResult, error) {
	payload := submitRequest{
		SysID:         c.cfg.SysID,
		SrcAddress:    c.cfg.SrcAddress,
		DestAddress:   []string{recipient},
		SmsBody:       base64.StdEncoding.EncodeToString([]byte(body)),
		DrFlag:        c.cfg.DRFlag,
		FirstFailFlag: c.cfg.FirstFailFlag,
	}

	xmlData, err := xml.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeGatewayError, "failed to marshal submit request")
	}
	xmlData = append([]byte(xml.Header), xmlData...)

	req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.URL, bytes.NewBuffer(xmlData))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeGatewayError, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/xml")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeGatewayError, "failed to reach gateway")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, errors.New(errors.ErrCodeGatewayError,
			fmt.Sprintf("gateway returned status %d", resp.StatusCode)).
			WithContext("status", resp.StatusCode).
			WithContext("body", string(bodyBytes))
	}

	var result submitResponse
	if err := xml.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeGatewayError, "malformed gateway response").
			WithContext("status", resp.StatusCode)
	}

	c.logger.WithFields(logrus.Fields{
		"result_code": result.ResultCode,
		"message_id":  result.MessageID,
	}).Debug("Gateway submit completed")

	return &SubmitResult{
		Code:      result.ResultCode,
		Text:      result.ResultText,
		MessageID: result.MessageID,
	}, nil
}
