package grafana

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const defaultTimeout = 10 * time.Second

// maxErrBody caps how much of an error response body is kept for diagnostics.
const maxErrBody = 4096

// Options configures a Client.
type Options struct {
	// BaseURL is the API base including the /api prefix.
	BaseURL string

	// Username/Password enable basic auth; Token enables bearer auth.
	// When the basic pair is complete it takes precedence.
	Username string
	Password string
	Token    string

	Timeout time.Duration

	// RateLimit caps outgoing requests per second (0 disables limiting);
	// RateBurst is the accompanying burst size.
	RateLimit float64
	RateBurst int
}

// Client performs the HTTP calls against the Grafana API. All fetches
// require a 200; all mutations treat {200, 202, 409, 412} as success.
// Client is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient builds a Client from opts.
func NewClient(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		http: &http.Client{
			Transport: &sessionRoundTripper{base: http.DefaultTransport, opts: opts},
			Timeout:   timeout,
		},
		limiter: limiter,
	}
}

// sessionRoundTripper injects authentication and the provenance opt-out
// header into every outgoing request. Provisioned objects must stay
// editable from the Grafana UI, hence x-disable-provenance.
type sessionRoundTripper struct {
	base http.RoundTripper
	opts Options
}

func (t *sessionRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("x-disable-provenance", "true")
	switch {
	case t.opts.Username != "" && t.opts.Password != "":
		req.SetBasicAuth(t.opts.Username, t.opts.Password)
	case t.opts.Token != "":
		req.Header.Set("Authorization", "Bearer "+t.opts.Token)
	}
	return t.base.RoundTrip(req)
}

// do performs one request, optionally JSON-encoding body and decoding the
// response into out. Status acceptance is the caller's job — do only fails
// on transport and encoding errors.
func (c *Client) do(ctx context.Context, method, endpoint string, body, out any) (int, string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return 0, "", err
		}
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return 0, "", fmt.Errorf("grafana: encode %s body: %w", endpoint, err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return 0, "", fmt.Errorf("grafana: build request %s: %w", endpoint, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("grafana: %s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, "", fmt.Errorf("grafana: read %s response: %w", endpoint, err)
	}

	if out != nil && resp.StatusCode == statusOK {
		if err := json.Unmarshal(raw, out); err != nil {
			return resp.StatusCode, "", fmt.Errorf("grafana: decode %s response: %w", endpoint, err)
		}
	}

	return resp.StatusCode, errBody(raw), nil
}

// errBody trims a response body down to a diagnostics-sized string.
func errBody(raw []byte) string {
	s := strings.TrimSpace(string(raw))
	if len(s) > maxErrBody {
		s = s[:maxErrBody]
	}
	return s
}

// fetch GETs endpoint into out, requiring a 200.
func (c *Client) fetch(ctx context.Context, endpoint string, out any) error {
	status, body, err := c.do(ctx, http.MethodGet, endpoint, nil, out)
	if err != nil {
		return err
	}
	if status != statusOK {
		return &FetchError{Endpoint: endpoint, Status: status, Body: body}
	}
	return nil
}

// push sends a mutating call, folding soft conflicts into success.
func (c *Client) push(ctx context.Context, method, endpoint string, doc any) error {
	status, body, err := c.do(ctx, method, endpoint, doc, nil)
	if err != nil {
		return err
	}
	if !acceptable(status) {
		return &PushError{Endpoint: endpoint, Status: status, Body: body}
	}
	return nil
}

// --- folders ----------------------------------------------------------------

// FetchFolders returns the remote folder list with server-assigned UIDs.
func (c *Client) FetchFolders(ctx context.Context) (FolderList, error) {
	var out FolderList
	if err := c.fetch(ctx, "/folders/", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateFolder creates a folder by title. A folder that already exists is a
// soft conflict and therefore a success — callers may create unconditionally.
func (c *Client) CreateFolder(ctx context.Context, f Folder) error {
	return c.push(ctx, http.MethodPost, "/folders/", f)
}

// --- ruler rule groups ------------------------------------------------------

const rulerPath = "/ruler/grafana/api/v1/rules"

// FetchRuleGroups returns the full ruler document: every folder's rule groups.
func (c *Client) FetchRuleGroups(ctx context.Context) (RulerDocument, error) {
	out := make(RulerDocument)
	if err := c.fetch(ctx, rulerPath, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// PushRuleGroup replaces the named group's whole document under folder.
// The ruler endpoint is document-level: one POST per rule group.
func (c *Client) PushRuleGroup(ctx context.Context, folder string, g RuleGroup) error {
	return c.push(ctx, http.MethodPost, rulerPath+"/"+url.PathEscape(folder), g)
}

// DeleteRuleGroups deletes every rule group under folder. A folder with no
// rule configuration yields a 404, which for a delete is already the goal.
func (c *Client) DeleteRuleGroups(ctx context.Context, folder string) error {
	endpoint := rulerPath + "/" + url.PathEscape(folder)
	status, body, err := c.do(ctx, http.MethodDelete, endpoint, nil, nil)
	if err != nil {
		return err
	}
	if !acceptable(status) && status != http.StatusNotFound {
		return &PushError{Endpoint: endpoint, Status: status, Body: body}
	}
	return nil
}

// --- alertmanager configuration ---------------------------------------------

const alertmanagerPath = "/alertmanager/grafana/config/api/v1/alerts"

// FetchAlertmanager returns the current alertmanager configuration document.
func (c *Client) FetchAlertmanager(ctx context.Context) (*AlertmanagerDocument, error) {
	var out AlertmanagerDocument
	if err := c.fetch(ctx, alertmanagerPath, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PushAlertmanager posts the whole alertmanager configuration document.
// A 400 means Grafana rejected the document's content — almost always a
// route naming a receiver that does not exist — and is surfaced as a
// ReferenceError so callers can tell it apart from transport trouble.
func (c *Client) PushAlertmanager(ctx context.Context, doc *AlertmanagerDocument) error {
	err := c.push(ctx, http.MethodPost, alertmanagerPath, doc)
	var pushErr *PushError
	if errors.As(err, &pushErr) && pushErr.Status == http.StatusBadRequest {
		return &ReferenceError{Key: unknownReceiver(pushErr.Body), Push: pushErr}
	}
	return err
}

// unknownReceiver extracts the offending receiver name from Grafana's 400
// body when it has the well-known "undefined receiver" shape.
func unknownReceiver(body string) string {
	const marker = `undefined receiver "`
	i := strings.Index(body, marker)
	if i < 0 {
		return ""
	}
	rest := body[i+len(marker):]
	if j := strings.IndexByte(rest, '"'); j >= 0 {
		return rest[:j]
	}
	return ""
}

// --- dashboards -------------------------------------------------------------

// SearchDashboards returns the remote dashboard list.
func (c *Client) SearchDashboards(ctx context.Context) ([]DashboardHit, error) {
	var out []DashboardHit
	if err := c.fetch(ctx, "/search?type=dash-db", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// PushDashboard creates or overwrites one dashboard.
func (c *Client) PushDashboard(ctx context.Context, p DashboardPush) error {
	return c.push(ctx, http.MethodPost, "/dashboards/db/", p)
}
