package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
	"golang.org/x/net/idna"
	"golang.org/x/net/publicsuffix"

	"github.com/wadjakorntonsri/tinylinks/pkg/core/domain"
)

const (
	msgNotFound      = "Not found."
	msgNotAccessible = "URL not accessible."
)

// hostProfile maps hosts the way a resolver would, without rejecting underscores.
var hostProfile = idna.New(idna.MapForLookup(), idna.BidiRule(), idna.StrictDomainName(false))

// ValidatorConfig bounds the network work of one validation pass.
type ValidatorConfig struct {
	// Timeout applies to every single request attempt.
	Timeout time.Duration
	// Retries is how many times a failed request is repeated.
	Retries      int
	RetryBackoff time.Duration
	// MaxCookieRedirects limits the cookie-accepting retry.
	MaxCookieRedirects int
	UserAgent          string
}

func DefaultValidatorConfig() ValidatorConfig {
	return ValidatorConfig{
		Timeout:            8 * time.Second,
		Retries:            2,
		RetryBackoff:       500 * time.Millisecond,
		MaxCookieRedirects: 10,
		UserAgent:          "tinylinks-validator/1.0",
	}
}

// Doer sends one HTTP request.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Outcome is the health status found by one validation pass.
type Outcome struct {
	Healthy          bool
	Error            string
	RedirectLocation string
}

type ValidatorOption func(v *Validator)

// WithHTTPClient replaces the client used for plain requests. It must not follow redirects.
func WithHTTPClient(client Doer) ValidatorOption {
	return func(v *Validator) {
		v.client = client
	}
}

// WithCookieClientFactory replaces the constructor of the cookie-accepting client.
func WithCookieClientFactory(factory func() (Doer, error)) ValidatorOption {
	return func(v *Validator) {
		v.cookieClient = factory
	}
}

func WithClock(now func() time.Time) ValidatorOption {
	return func(v *Validator) {
		v.now = now
	}
}

func WithValidatorLogger(log zerolog.Logger) ValidatorOption {
	return func(v *Validator) {
		v.log = log
	}
}

// Validator checks that link targets are reachable and stores the result on the link.
type Validator struct {
	repo         linkUpdater
	cfg          ValidatorConfig
	client       Doer
	cookieClient func() (Doer, error)
	now          func() time.Time
	log          zerolog.Logger
}

type linkUpdater interface {
	Update(ctx context.Context, link *domain.Link) error
}

func NewValidator(repo linkUpdater, cfg ValidatorConfig, opts ...ValidatorOption) *Validator {
	def := DefaultValidatorConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = def.RetryBackoff
	}
	if cfg.MaxCookieRedirects < 1 {
		cfg.MaxCookieRedirects = def.MaxCookieRedirects
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}

	v := &Validator{
		repo: repo,
		cfg:  cfg,
		client: &http.Client{
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		now: time.Now,
		log: zerolog.Nop(),
	}
	v.cookieClient = v.newCookieClient

	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate runs one validation pass on link and saves it.
// Reachability failures are recorded on the link; only storage errors and
// cancellation of ctx are returned.
func (v *Validator) Validate(ctx context.Context, link *domain.Link) error {
	out := v.Check(ctx, link.LongURL)
	if err := ctx.Err(); err != nil {
		return err
	}

	if out.Healthy {
		link.MarkHealthy()
	} else {
		link.MarkBroken(out.Error)
	}
	link.RedirectLocation = out.RedirectLocation
	link.LastChecked = v.now()

	ev := v.log.Info()
	if link.IsBroken {
		ev = v.log.Warn().Str("error", link.ValidationError)
	}
	ev.Int64("id", link.ID).
		Str("short_url", link.ShortURL).
		Str("long_url", link.LongURL).
		Str("redirect_location", link.RedirectLocation).
		Msg("link validated")

	if err := v.repo.Update(ctx, link); err != nil {
		return fmt.Errorf("failed to save validation result: %w", err)
	}
	return nil
}

// Check runs the validation state machine against longURL without touching storage.
func (v *Validator) Check(ctx context.Context, longURL string) Outcome {
	first, err := v.fetch(ctx, v.client, longURL)
	if err != nil {
		return Outcome{Error: v.describe(err)}
	}

	switch {
	case first.status == http.StatusOK:
		return Outcome{Healthy: true}

	case isRedirect(first.status):
		// pdf servers often answer with relative redirects that cannot be followed reliably.
		if strings.HasSuffix(longURL, ".pdf") {
			return Outcome{Healthy: true}
		}
		if first.location == "" {
			return Outcome{Error: msgNotAccessible}
		}

		out := Outcome{RedirectLocation: first.location}
		second, err := v.fetch(ctx, v.client, first.location)
		if err != nil {
			out.Error = v.describe(err)
			return out
		}
		if second.status == http.StatusOK {
			out.Healthy = true
			return out
		}
		if isRedirect(second.status) && v.cookieRetry(ctx, first.location) {
			out.Healthy = true
			return out
		}
		out.Error = msgNotAccessible
		return out

	case first.status == http.StatusBadGateway:
		again, err := v.fetch(ctx, v.client, longURL)
		if err == nil && again.status == http.StatusOK {
			return Outcome{Healthy: true}
		}
		return Outcome{Error: msgNotAccessible}

	default:
		return Outcome{Error: msgNotAccessible}
	}
}

// cookieRetry requests target once more with a client that keeps cookies and
// follows redirects, which resolves most session-cookie redirect loops.
func (v *Validator) cookieRetry(ctx context.Context, target string) bool {
	client, err := v.cookieClient()
	if err != nil {
		v.log.Error().Err(err).Msg("failed to create cookie client")
		return false
	}
	res, err := v.fetch(ctx, client, target)
	return err == nil && res.status == http.StatusOK
}

func (v *Validator) newCookieClient() (Doer, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}
	limit := v.cfg.MaxCookieRedirects
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= limit {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}, nil
}

type fetchResult struct {
	status   int
	location string
}

// fetch GETs rawURL, retrying connection failures and timeouts.
func (v *Validator) fetch(ctx context.Context, client Doer, rawURL string) (fetchResult, error) {
	target, err := encodeURL(rawURL)
	if err != nil {
		return fetchResult{}, err
	}

	var res fetchResult
	backoff := retry.WithMaxRetries(uint64(v.cfg.Retries), retry.NewConstant(v.cfg.RetryBackoff))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		reqCtx, cancel := context.WithTimeout(ctx, v.cfg.Timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, target, nil)
		if err != nil {
			return err
		}
		req.Header.Set("User-Agent", v.cfg.UserAgent)

		resp, err := client.Do(req)
		if err != nil {
			var dnsErr *net.DNSError
			if errors.As(err, &dnsErr) || ctx.Err() != nil {
				return err
			}
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

		res = fetchResult{status: resp.StatusCode}
		if loc, err := resp.Location(); err == nil {
			res.location = loc.String()
		}
		return nil
	})
	return res, err
}

// describe turns a fetch failure into the reason stored on the link.
func (v *Validator) describe(err error) string {
	var dnsErr *net.DNSError
	var netErr net.Error
	switch {
	case errors.Is(err, domain.ErrUnicodeURL):
		return domain.ErrUnicodeURL.Error()
	case errors.Is(err, domain.ErrInvalidURL):
		return domain.ErrInvalidURL.Error()
	case errors.As(err, &dnsErr):
		return msgNotFound
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return fmt.Sprintf("Timeout after %s.", humanDuration(v.cfg.Timeout))
	case v.cfg.Retries == 0:
		return "Connection failed."
	default:
		return "Failed after retrying " + times(v.cfg.Retries) + "."
	}
}

// encodeURL converts rawURL to its ASCII form, punycoding the host.
func encodeURL(rawURL string) (string, error) {
	if !utf8.ValidString(rawURL) {
		return "", domain.ErrUnicodeURL
	}
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", domain.ErrUnicodeURL
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Hostname() == "" {
		return "", domain.ErrInvalidURL
	}

	host := u.Hostname()
	if net.ParseIP(host) == nil {
		ascii, err := hostProfile.ToASCII(host)
		if err != nil {
			return "", domain.ErrUnicodeURL
		}
		if port := u.Port(); port != "" {
			u.Host = net.JoinHostPort(ascii, port)
		} else {
			u.Host = ascii
		}
	}
	return u.String(), nil
}

func isRedirect(status int) bool {
	switch status {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}

func humanDuration(d time.Duration) string {
	if d%time.Second == 0 {
		return fmt.Sprintf("%d seconds", int(d/time.Second))
	}
	return d.String()
}

func times(n int) string {
	switch n {
	case 1:
		return "once"
	case 2:
		return "twice"
	}
	return fmt.Sprintf("%d times", n)
}
