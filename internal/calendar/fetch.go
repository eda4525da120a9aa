package calendar

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultFetchTimeout таймаут загрузки ICS, если в конфиге не задан
const DefaultFetchTimeout = 15 * time.Second

const maxICSBody = 10 << 20

// Fetcher загружает ICS-ленты по HTTP
type Fetcher struct {
	client *http.Client
	logger *zap.Logger
}

func NewFetcher(timeout time.Duration, logger *zap.Logger) *Fetcher {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	return &Fetcher{
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Fetch возвращает тело документа; сетевые ошибки, таймаут и статус не 2xx считаются ошибкой
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if url == "" {
		return nil, errors.New("ics url is empty")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build ics request: %w", err)
	}
	req.Header.Set("Accept", "text/calendar")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch ics %s: %w", redactURL(url), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch ics %s: unexpected status %s", redactURL(url), resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxICSBody))
	if err != nil {
		return nil, fmt.Errorf("read ics body: %w", err)
	}

	f.logger.Debug("ics fetched",
		zap.String("url", redactURL(url)),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(body)))

	return body, nil
}

// redactURL оставляет только схему и хост: в пути приватных лент лежит токен
func redactURL(u string) string {
	i := strings.Index(u, "://")
	if i < 0 {
		return "ics://...(redacted)"
	}
	rest := u[i+3:]
	if j := strings.IndexByte(rest, '/'); j >= 0 {
		rest = rest[:j]
	}
	return u[:i+3] + rest + "/...(redacted)"
}
