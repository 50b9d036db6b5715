// Package platform holds one Publisher per external publishing target. Every
// adapter reports failures as a *PublishError; transport errors never leak.
package platform

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/maheshrc27/autopost/internal/models"
)

type ErrorKind string

const (
	ErrNetwork  ErrorKind = "network"
	ErrAuth     ErrorKind = "auth"
	ErrRejected ErrorKind = "rejected"
	ErrInvalid  ErrorKind = "invalid"
)

type PublishError struct {
	Kind       ErrorKind
	Platform   models.PlatformType
	StatusCode int
	Message    string
}

func (e *PublishError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s error (%d): %s", e.Platform, e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s %s error: %s", e.Platform, e.Kind, e.Message)
}

// Routing tells an adapter where to publish: ExternalID is the connection's
// site, blog, chat, board or community; SubTarget is an optional topic,
// section or category inside it.
type Routing struct {
	ExternalID string
	SubTarget  string
}

type Request struct {
	Text        string
	Image       []byte
	ImageURL    string
	Routing     Routing
	Credentials *models.Credentials
}

type Result struct {
	Success bool
	URL     string
	Err     *PublishError
}

type Publisher interface {
	Type() models.PlatformType
	Publish(ctx context.Context, req *Request) *Result
}

func success(url string) *Result {
	return &Result{Success: true, URL: url}
}

func failure(p models.PlatformType, kind ErrorKind, format string, args ...any) *Result {
	return &Result{Err: &PublishError{Kind: kind, Platform: p, Message: fmt.Sprintf(format, args...)}}
}

func failWith(err *PublishError) *Result {
	return &Result{Err: err}
}

// transportError wraps anything that went wrong before a response arrived.
func transportError(p models.PlatformType, err error) *PublishError {
	if errors.Is(err, context.DeadlineExceeded) {
		return &PublishError{Kind: ErrNetwork, Platform: p, Message: "request timed out"}
	}
	return &PublishError{Kind: ErrNetwork, Platform: p, Message: err.Error()}
}

// statusError maps an unexpected HTTP status onto an error kind.
func statusError(p models.PlatformType, status int, body string) *PublishError {
	kind := ErrRejected
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = ErrAuth
	case status == http.StatusTooManyRequests || status >= 500:
		kind = ErrNetwork
	}
	return &PublishError{Kind: kind, Platform: p, StatusCode: status, Message: truncate(strings.TrimSpace(body), 300)}
}

// Registry resolves the Publisher for a platform type.
type Registry struct {
	publishers map[models.PlatformType]Publisher
}

func NewRegistry(publishers ...Publisher) *Registry {
	r := &Registry{publishers: make(map[models.PlatformType]Publisher, len(publishers))}
	for _, p := range publishers {
		r.publishers[p.Type()] = p
	}
	return r
}

func (r *Registry) Get(t models.PlatformType) (Publisher, bool) {
	p, ok := r.publishers[t]
	return p, ok
}

// Publish runs the adapter for t, turning a missing adapter into an invalid
// request failure.
func (r *Registry) Publish(ctx context.Context, t models.PlatformType, req *Request) *Result {
	p, ok := r.Get(t)
	if !ok {
		return failure(t, ErrInvalid, "no publisher registered")
	}
	res := p.Publish(ctx, req)
	if res == nil {
		return failure(t, ErrRejected, "publisher returned no result")
	}
	return res
}
