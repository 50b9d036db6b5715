package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"strconv"
	"strings"

	"github.com/maheshrc27/autopost/internal/models"
)

// WordPress publishes articles through the WP REST API of the site in
// Routing.ExternalID, authenticating with an application password or a
// bearer token. A numeric SubTarget is used as the post category.
type WordPress struct {
	client *http.Client
}

func NewWordPress(opts Options) *WordPress {
	return &WordPress{client: newHTTPClient(opts.Timeout, opts.RatePerSecond)}
}

func (w *WordPress) Type() models.PlatformType { return models.PlatformWordPress }

type wpMedia struct {
	ID        int64  `json:"id"`
	SourceURL string `json:"source_url"`
}

type wpPost struct {
	ID   int64  `json:"id"`
	Link string `json:"link"`
}

func (w *WordPress) Publish(ctx context.Context, req *Request) *Result {
	site := strings.TrimRight(req.Routing.ExternalID, "/")
	if site == "" {
		return failure(w.Type(), ErrInvalid, "site url is missing")
	}
	if req.Credentials.Empty() {
		return failure(w.Type(), ErrAuth, "credentials are missing")
	}

	title, content := splitTitle(req.Text)

	var featured int64
	if len(req.Image) > 0 {
		media, perr := w.uploadMedia(ctx, site, req)
		if perr != nil {
			return failWith(perr)
		}
		featured = media.ID
	} else if req.ImageURL != "" {
		content = fmt.Sprintf("<p><img src=\"%s\" alt=\"\"></p>\n%s", html.EscapeString(req.ImageURL), content)
	}

	payload := map[string]any{
		"title":   title,
		"content": content,
		"status":  "publish",
	}
	if featured > 0 {
		payload["featured_media"] = featured
	}
	if cat, err := strconv.ParseInt(req.Routing.SubTarget, 10, 64); err == nil && cat > 0 {
		payload["categories"] = []int64{cat}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return failure(w.Type(), ErrInvalid, "encode post: %v", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, site+"/wp-json/wp/v2/posts", bytes.NewReader(body))
	if err != nil {
		return failure(w.Type(), ErrInvalid, "build request: %v", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	w.authorize(httpReq, req.Credentials)

	var post wpPost
	if perr := w.do(httpReq, http.StatusCreated, &post); perr != nil {
		return failWith(perr)
	}
	if post.Link == "" {
		return failure(w.Type(), ErrRejected, "no link returned for post %d", post.ID)
	}
	return success(post.Link)
}

func (w *WordPress) uploadMedia(ctx context.Context, site string, req *Request) (*wpMedia, *PublishError) {
	mime, ext, ok := sniffImage(req.Image)
	if !ok {
		return nil, &PublishError{Kind: ErrInvalid, Platform: w.Type(), Message: "image format not recognized"}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, site+"/wp-json/wp/v2/media", bytes.NewReader(req.Image))
	if err != nil {
		return nil, &PublishError{Kind: ErrInvalid, Platform: w.Type(), Message: err.Error()}
	}
	httpReq.Header.Set("Content-Type", mime)
	httpReq.Header.Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"image.%s\"", ext))
	w.authorize(httpReq, req.Credentials)

	var media wpMedia
	if perr := w.do(httpReq, http.StatusCreated, &media); perr != nil {
		return nil, perr
	}
	return &media, nil
}

func (w *WordPress) authorize(req *http.Request, c *models.Credentials) {
	if c.Password != "" {
		req.SetBasicAuth(c.Username, c.Password)
		return
	}
	req.Header.Set("Authorization", "Bearer "+c.AccessToken)
}

func (w *WordPress) do(req *http.Request, want int, out any) *PublishError {
	resp, err := w.client.Do(req)
	if err != nil {
		return transportError(w.Type(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want && resp.StatusCode != http.StatusOK {
		return statusError(w.Type(), resp.StatusCode, readBody(resp))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &PublishError{Kind: ErrRejected, Platform: w.Type(), Message: "decode response: " + err.Error()}
	}
	return nil
}
