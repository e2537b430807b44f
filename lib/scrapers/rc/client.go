// Package rc drives the Research Catalogue web editor on behalf of a
// script: one authenticated session bound to one exposition, with typed
// methods for pages ("weaves"), media sets ("works"), media and the items
// placed on pages.
//
// The catalogue has no documented API. Everything here goes through the
// same form endpoints the browser editor uses, and identifiers are scraped
// back out of the returned HTML. The upstream markup can change without
// notice, so the parsing lives in parse.go where it can be fixed in one
// place.
package rc

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"rcedit/lib/restyutil"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("scrapers/rc")

const DefaultBaseUrl = "https://www.researchcatalogue.net"

var ErrLoginFailed = fmt.Errorf("the research catalogue rejected your credentials")

// StatusError is returned when the service answers with anything other
// than 200, which it normally never does, even for failed operations.
type StatusError struct {
	Method string
	Path   string
	Code   int
}

func (e StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status code %d", e.Method, e.Path, e.Code)
}

// RequestError is a failure reported by the service itself. Most editor
// endpoints answer a blank body on success and an error message otherwise;
// Body carries that message verbatim.
type RequestError struct {
	Op   string
	Body string
}

func (e RequestError) Error() string {
	return fmt.Sprintf("%s: the service reported a failure: %s", e.Op, e.Body)
}

// Client is a single logged-in editor session bound to one exposition.
// It is not safe for concurrent use, the catalogue session itself isn't
// either.
type Client struct {
	BaseUrl    *url.URL
	Http       *resty.Client
	Exposition string
}

type ClientOptions struct {
	// defaults to DefaultBaseUrl
	BaseUrl string
	// the id of the exposition all operations act on
	Exposition string
	// if non-nil, every request/response pair is dumped here
	Debug restyutil.InstrumentOutput
}

func NewClient(ctx context.Context, opts ClientOptions) (*Client, error) {
	if opts.BaseUrl == "" {
		opts.BaseUrl = DefaultBaseUrl
	}
	if opts.Exposition == "" {
		return nil, fmt.Errorf("you must specify the exposition to operate on")
	}
	baseUrl, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, err
	}

	client := resty.New()
	client.SetBaseURL(opts.BaseUrl)
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	client.SetHeader("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36")
	client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(baseUrl.Hostname()))
	client.SetTimeout(time.Second * 30)

	restyutil.InstrumentClient(client, otel.Tracer("scrapers/rc/http"), opts.Debug)

	c := &Client{
		BaseUrl:    baseUrl,
		Http:       client,
		Exposition: opts.Exposition,
	}
	return c, nil
}

// postForm submits a form-encoded POST and fails on any non-200 status.
func (c *Client) postForm(ctx context.Context, path string, form url.Values) (*resty.Response, error) {
	res, err := c.Http.R().
		SetContext(ctx).
		SetFormDataFromValues(form).
		Post(path)
	if err != nil {
		return nil, err
	}
	if res.StatusCode() != http.StatusOK {
		return nil, StatusError{Method: http.MethodPost, Path: path, Code: res.StatusCode()}
	}
	return res, nil
}

// postConfirm is postForm against endpoints where a blank body signals
// success and anything else is an error message.
func (c *Client) postConfirm(ctx context.Context, op, path string, form url.Values) error {
	res, err := c.postForm(ctx, path, form)
	if err != nil {
		return err
	}
	if body := strings.TrimSpace(res.String()); body != "" {
		return RequestError{Op: op, Body: body}
	}
	return nil
}

func (c *Client) getPage(ctx context.Context, path string, query url.Values) (*resty.Response, error) {
	res, err := c.Http.R().
		SetContext(ctx).
		SetQueryParamsFromValues(query).
		Get(path)
	if err != nil {
		return nil, err
	}
	if res.StatusCode() != http.StatusOK {
		return nil, StatusError{Method: http.MethodGet, Path: path, Code: res.StatusCode()}
	}
	return res, nil
}

// Login authenticates the session. The login endpoint answers a blank page
// on success and renders the login form again when the credentials are
// rejected.
func (c *Client) Login(ctx context.Context, username, password string) error {
	ctx, span := tracer.Start(ctx, "client:Login")
	defer span.End()

	res, err := c.postForm(ctx, "/session/login", url.Values{
		"username": {username},
		"password": {password},
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to make login request")
		return err
	}
	if strings.TrimSpace(res.String()) != "" {
		span.SetStatus(codes.Error, ErrLoginFailed.Error())
		return ErrLoginFailed
	}
	return nil
}

// Logout invalidates the session on the server side. The client can be
// logged in again afterwards.
func (c *Client) Logout(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "client:Logout")
	defer span.End()

	_, err := c.getPage(ctx, "/session/logout", nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to make logout request")
		return err
	}
	return nil
}
