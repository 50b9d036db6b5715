package platform

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"

	"github.com/maheshrc27/autopost/internal/models"
	"google.golang.org/api/blogger/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// Blogger publishes to the blog id in Routing.ExternalID. The API has no
// media upload, so images are embedded by URL. SubTarget becomes a label.
type Blogger struct {
	client   *http.Client
	endpoint string
}

func NewBlogger(opts Options) *Blogger {
	return &Blogger{
		client:   newHTTPClient(opts.Timeout, opts.RatePerSecond),
		endpoint: opts.BloggerEndpoint,
	}
}

func (b *Blogger) Type() models.PlatformType { return models.PlatformBlogger }

func (b *Blogger) Publish(ctx context.Context, req *Request) *Result {
	if req.Routing.ExternalID == "" {
		return failure(b.Type(), ErrInvalid, "blog id is missing")
	}
	if req.Credentials.Empty() || req.Credentials.AccessToken == "" {
		return failure(b.Type(), ErrAuth, "access token is missing")
	}

	clientOpts := []option.ClientOption{option.WithHTTPClient(withBearer(b.client, req.Credentials.AccessToken))}
	if b.endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(b.endpoint))
	}

	service, err := blogger.NewService(ctx, clientOpts...)
	if err != nil {
		return failure(b.Type(), ErrInvalid, "create blogger service: %v", err)
	}

	title, content := splitTitle(req.Text)
	if req.ImageURL != "" {
		content = fmt.Sprintf("<p><img src=\"%s\" alt=\"\"></p>\n%s", html.EscapeString(req.ImageURL), content)
	}

	post := &blogger.Post{Title: title, Content: content}
	if req.Routing.SubTarget != "" {
		post.Labels = []string{req.Routing.SubTarget}
	}

	created, err := service.Posts.Insert(req.Routing.ExternalID, post).Context(ctx).Do()
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) {
			return failWith(statusError(b.Type(), gerr.Code, gerr.Message))
		}
		return failWith(transportError(b.Type(), err))
	}
	if created.Url == "" {
		return failure(b.Type(), ErrRejected, "no url returned for post %s", created.Id)
	}
	return success(created.Url)
}
