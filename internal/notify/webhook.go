package notify

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-resty/resty/v2"

	"worklog/internal/model"
	"worklog/internal/service"
)

// Payload is the JSON body posted to the webhook.
type Payload struct {
	Day     model.Date `json:"day"`
	Text    string     `json:"text"`
	Format  string     `json:"format"`
	Overdue int        `json:"overdue"`
	DueSoon int        `json:"due_soon"`
	Review  int        `json:"review"`
}

// Webhook posts reminder digests to an HTTP endpoint.
type Webhook struct {
	url  string
	http *resty.Client
}

// NewWebhook builds a notifier for url. Empty url yields nil.
func NewWebhook(url string) *Webhook {
	if url == "" {
		return nil
	}
	return &Webhook{
		url: url,
		http: resty.New().
			SetHeader("User-Agent", "worklog-notifier/1").
			SetTimeout(15 * time.Second).
			SetRetryCount(3).
			SetRetryWaitTime(500 * time.Millisecond).
			SetRetryMaxWaitTime(2 * time.Second).
			AddRetryCondition(func(r *resty.Response, err error) bool {
				if r == nil {
					return err != nil
				}
				// 429 and 5xx
				return r.StatusCode() == 429 || (r.StatusCode() >= 500 && r.StatusCode() <= 504)
			}),
	}
}

// Send posts digest for day. Non-2xx responses after retries are errors.
func (w *Webhook) Send(ctx context.Context, day model.Date, digest service.Digest) error {
	resp, err := w.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(Payload{
			Day:     day,
			Text:    digest.Text,
			Format:  "html",
			Overdue: digest.Overdue,
			DueSoon: digest.DueSoon,
			Review:  digest.Review,
		}).
		Post(w.url)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("post webhook: unexpected status %d", resp.StatusCode())
	}
	log.Printf("[info] webhook digest delivered day=%s overdue=%d", day, digest.Overdue)
	return nil
}
