// internal/lightspeed/client.go
//
// Paginated Lightspeed eCom API client.
//
// Context
// -------
// Each shop gets its own Client, authenticated with that shop's Basic-auth
// key pair.  Collections are fetched page by page (limit/page/fields query
// parameters, 1-indexed pages) until a page comes back empty or shorter than
// the page limit.  Every page request carries a bounded retry budget with an
// exponential backoff schedule of 1s then 2s; when the budget is exhausted
// the whole collection fetch fails with a *FetchError — no partial
// collection is ever returned.
//
// Workflow
// --------
//
//	cli := lightspeed.New(creds)
//	products, err := cli.Products(ctx, "nl")
//	variants, err := cli.Variants(ctx, "nl")
//
// Notes
// -----
// • Images are normalized in place before a page's records are returned.
// • The backoff factory is injectable so tests do not sleep for real.
// • Oxford commas, two spaces after periods.
package lightspeed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

const (
	// DefaultBaseURL is the production API host.  Override with WithBaseURL
	// in tests.
	DefaultBaseURL = "https://api.webshopapp.com"

	// PageLimit is the fixed page size.  A page shorter than this is the
	// last page.
	PageLimit = 250

	requestTimeout = 30 * time.Second
	maxAttempts    = 3
)

// Field projections requested per collection.  Fetching the full records
// would drag megabytes of unused relations across the wire.
const (
	ProductFields = "id,visibility,url,title,fulltitle,description,content,image,createdAt,updatedAt"
	VariantFields = "id,isDefault,sku,priceExcl,title,image,product"
)

// Credentials is one shop's Basic-auth key pair.
type Credentials struct {
	Key    string
	Secret string
}

// FetchError is the terminal error of a collection fetch: the page request's
// retry budget is exhausted and the last attempt's error is wrapped.
type FetchError struct {
	Collection string
	Language   string
	Page       int
	Err        error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s (%s) page %d: %v", e.Collection, e.Language, e.Page, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Client talks to the API for one shop.  Safe for concurrent use; the
// product and variant fetches of one language run on it in parallel.
type Client struct {
	baseURL    string
	creds      Credentials
	httpc      *http.Client
	newBackOff func() backoff.BackOff
	log        *zap.SugaredLogger
}

// Option tweaks a Client.
type Option func(*Client)

// WithBaseURL points the client at a different host.  Tests use it with
// httptest servers.
func WithBaseURL(u string) Option { return func(c *Client) { c.baseURL = u } }

// WithHTTPClient swaps the underlying *http.Client.
func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.httpc = h } }

// WithBackOff swaps the per-page retry schedule factory.
func WithBackOff(f func() backoff.BackOff) Option { return func(c *Client) { c.newBackOff = f } }

// WithLogger attaches a logger scoped by the caller (typically with the shop
// name already bound).
func WithLogger(l *zap.SugaredLogger) Option { return func(c *Client) { c.log = l } }

// New constructs a Client with the fixed production timeouts.
func New(creds Credentials, opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		creds:      creds,
		httpc:      &http.Client{Timeout: requestTimeout},
		newBackOff: defaultBackOff,
		log:        zap.S(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// defaultBackOff yields the deterministic 1s, 2s schedule: maxAttempts tries
// total, doubling waits, no jitter.
func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.RandomizationFactor = 0
	b.Multiplier = 2
	b.MaxInterval = 4 * time.Second
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithMaxRetries(b, maxAttempts-1)
}

//
// ── Collection fetches ──────────────────────────────────────────────────
//

// Products retrieves the full product collection for one language.
func (c *Client) Products(ctx context.Context, lang string) ([]Product, error) {
	var all []Product
	for page := 1; ; page++ {
		var envl struct {
			Products []Product `json:"products"`
		}
		if err := c.getPage(ctx, lang, "products", ProductFields, page, &envl); err != nil {
			return nil, err
		}

		batch := envl.Products
		if len(batch) == 0 {
			break
		}
		for i := range batch {
			batch[i].Image = normalizeImage(batch[i].RawImage)
			batch[i].RawImage = nil
		}
		all = append(all, batch...)

		if len(batch) < PageLimit {
			break
		}
	}
	return all, nil
}

// Variants retrieves the full variant collection for one language.
func (c *Client) Variants(ctx context.Context, lang string) ([]Variant, error) {
	var all []Variant
	for page := 1; ; page++ {
		var envl struct {
			Variants []Variant `json:"variants"`
		}
		if err := c.getPage(ctx, lang, "variants", VariantFields, page, &envl); err != nil {
			return nil, err
		}

		batch := envl.Variants
		if len(batch) == 0 {
			break
		}
		for i := range batch {
			batch[i].Image = normalizeImage(batch[i].RawImage)
			batch[i].RawImage = nil
		}
		all = append(all, batch...)

		if len(batch) < PageLimit {
			break
		}
	}
	return all, nil
}

// getPage requests one page under the retry budget and decodes the envelope
// into out.  Transport failures, timeouts, and non-2xx statuses all count as
// retryable; the last attempt's error surfaces as a *FetchError.
func (c *Client) getPage(ctx context.Context, lang, collection, fields string, page int, out any) error {
	u := fmt.Sprintf("%s/%s/%s.json", c.baseURL, lang, collection)

	q := url.Values{}
	q.Set("limit", strconv.Itoa(PageLimit))
	q.Set("page", strconv.Itoa(page))
	q.Set("fields", fields)

	attempt := 0
	op := func() error {
		attempt++
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u+"?"+q.Encode(), nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.SetBasicAuth(c.creds.Key, c.creds.Secret)

		resp, err := c.httpc.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			io.Copy(io.Discard, resp.Body)
			return fmt.Errorf("unexpected status %s", resp.Status)
		}
		return json.NewDecoder(resp.Body).Decode(out)
	}

	notify := func(err error, wait time.Duration) {
		c.log.Warnw("page fetch failed, retrying",
			"collection", collection, "lang", lang, "page", page,
			"attempt", attempt, "wait", wait, "err", err)
	}

	if err := backoff.RetryNotify(op, backoff.WithContext(c.newBackOff(), ctx), notify); err != nil {
		return &FetchError{Collection: collection, Language: lang, Page: page, Err: err}
	}
	return nil
}

//
// ── Single-variant operations (operational tooling) ─────────────────────
//

// Variant fetches one variant by id for one language.  Used by variantctl,
// not by the sync pipeline.
func (c *Client) Variant(ctx context.Context, lang string, id int64) (*Variant, error) {
	var envl struct {
		Variant Variant `json:"variant"`
	}
	if err := c.doJSON(ctx, http.MethodGet, c.variantURL(lang, id), nil, &envl); err != nil {
		return nil, err
	}
	envl.Variant.Image = normalizeImage(envl.Variant.RawImage)
	envl.Variant.RawImage = nil
	return &envl.Variant, nil
}

// UpdateVariant PUTs a partial variant body, e.g. {"title": "..."} or
// {"image": null}, and returns the record the API echoes back.
func (c *Client) UpdateVariant(ctx context.Context, lang string, id int64, fields map[string]any) (*Variant, error) {
	body, err := json.Marshal(map[string]any{"variant": fields})
	if err != nil {
		return nil, err
	}

	var envl struct {
		Variant Variant `json:"variant"`
	}
	if err := c.doJSON(ctx, http.MethodPut, c.variantURL(lang, id), body, &envl); err != nil {
		return nil, err
	}
	envl.Variant.Image = normalizeImage(envl.Variant.RawImage)
	envl.Variant.RawImage = nil
	return &envl.Variant, nil
}

func (c *Client) variantURL(lang string, id int64) string {
	return fmt.Sprintf("%s/%s/variants/%d.json", c.baseURL, lang, id)
}

// doJSON performs one request without the paging retry budget; the one-off
// tooling paths fail straight back to the operator.
func (c *Client) doJSON(ctx context.Context, method, u string, body []byte, out any) error {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.creds.Key, c.creds.Secret)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%s %s: unexpected status %s", method, u, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
