package contact

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPDirectory 通过 HTTP 访问外部通讯录服务
// GET {baseURL}/contacts/{id}
type HTTPDirectory struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPDirectory 创建 HTTP 联系人目录
func NewHTTPDirectory(baseURL string, timeout time.Duration) *HTTPDirectory {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPDirectory{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Resolve 查询联系人
func (d *HTTPDirectory) Resolve(ctx context.Context, id string) (*Contact, error) {
	endpoint := fmt.Sprintf("%s/contacts/%s", d.baseURL, url.PathEscape(id))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build contact request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch contact %s: %w", id, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, ErrNotFound
	default:
		return nil, fmt.Errorf("contact directory returned status %d", resp.StatusCode)
	}

	var c Contact
	if err := json.NewDecoder(resp.Body).Decode(&c); err != nil {
		return nil, fmt.Errorf("failed to decode contact: %w", err)
	}
	if c.ID == "" {
		c.ID = id
	}
	return &c, nil
}
