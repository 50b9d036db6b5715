package platform

import (
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

type Options struct {
	Timeout          time.Duration
	RatePerSecond    float64
	TelegramAPIURL   string
	TelegramBotToken string
	VKAPIURL         string
	VKAPIVersion     string
	PinterestAPIURL  string
	BloggerEndpoint  string
}

// limitedTransport waits on a token bucket before every outbound request.
type limitedTransport struct {
	base    http.RoundTripper
	limiter *rate.Limiter
}

func (t *limitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return t.base.RoundTrip(req)
}

func newHTTPClient(timeout time.Duration, perSecond float64) *http.Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &limitedTransport{
			base:    http.DefaultTransport,
			limiter: rate.NewLimiter(limit, 1),
		},
	}
}

// withBearer layers a static OAuth2 token over base's transport, so every
// per-user client shares base's limiter.
func withBearer(base *http.Client, accessToken string) *http.Client {
	return &http.Client{
		Timeout: base.Timeout,
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}),
			Base:   base.Transport,
		},
	}
}

func readBody(resp *http.Response) string {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	return string(b)
}
