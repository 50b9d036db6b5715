package platform

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/maheshrc27/autopost/internal/models"
)

// Pinterest creates a pin on the board in Routing.ExternalID. SubTarget is an
// optional board section. Pins need an image.
type Pinterest struct {
	client *http.Client
	apiURL string
}

func NewPinterest(opts Options) *Pinterest {
	apiURL := opts.PinterestAPIURL
	if apiURL == "" {
		apiURL = "https://api.pinterest.com/v5"
	}
	return &Pinterest{
		client: newHTTPClient(opts.Timeout, opts.RatePerSecond),
		apiURL: strings.TrimRight(apiURL, "/"),
	}
}

func (p *Pinterest) Type() models.PlatformType { return models.PlatformPinterest }

type pinMediaSource struct {
	SourceType  string `json:"source_type"`
	ContentType string `json:"content_type"`
	Data        string `json:"data"`
}

type pinCreate struct {
	BoardID        string         `json:"board_id"`
	BoardSectionID string         `json:"board_section_id,omitempty"`
	Title          string         `json:"title"`
	Description    string         `json:"description"`
	MediaSource    pinMediaSource `json:"media_source"`
}

func (p *Pinterest) Publish(ctx context.Context, req *Request) *Result {
	boardID := req.Routing.ExternalID
	if boardID == "" {
		return failure(p.Type(), ErrInvalid, "board id is missing")
	}
	if len(req.Image) == 0 {
		return failure(p.Type(), ErrInvalid, "pins require an image")
	}
	if req.Credentials.Empty() || req.Credentials.AccessToken == "" {
		return failure(p.Type(), ErrAuth, "access token is missing")
	}
	mime, _, ok := sniffImage(req.Image)
	if !ok {
		return failure(p.Type(), ErrInvalid, "image format not recognized")
	}

	client := withBearer(p.client, req.Credentials.AccessToken)

	// the board must exist and be writable before we upload the image
	lookup, err := http.NewRequestWithContext(ctx, http.MethodGet, p.apiURL+"/boards/"+url.PathEscape(boardID), nil)
	if err != nil {
		return failure(p.Type(), ErrInvalid, "build request: %v", err)
	}
	var board struct {
		ID string `json:"id"`
	}
	if perr := p.do(client, lookup, &board); perr != nil {
		return failWith(perr)
	}

	title, _ := splitTitle(req.Text)
	pin := pinCreate{
		BoardID:        boardID,
		BoardSectionID: req.Routing.SubTarget,
		Title:          truncate(title, 100),
		Description:    truncate(plainText(req.Text), 500),
		MediaSource: pinMediaSource{
			SourceType:  "image_base64",
			ContentType: mime,
			Data:        base64.StdEncoding.EncodeToString(req.Image),
		},
	}
	body, err := json.Marshal(pin)
	if err != nil {
		return failure(p.Type(), ErrInvalid, "encode pin: %v", err)
	}

	create, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL+"/pins", bytes.NewReader(body))
	if err != nil {
		return failure(p.Type(), ErrInvalid, "build request: %v", err)
	}
	create.Header.Set("Content-Type", "application/json")

	var created struct {
		ID string `json:"id"`
	}
	if perr := p.do(client, create, &created); perr != nil {
		return failWith(perr)
	}
	if created.ID == "" {
		return failure(p.Type(), ErrRejected, "no pin id returned")
	}
	return success(fmt.Sprintf("https://www.pinterest.com/pin/%s/", created.ID))
}

func (p *Pinterest) do(client *http.Client, req *http.Request, out any) *PublishError {
	resp, err := client.Do(req)
	if err != nil {
		return transportError(p.Type(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(p.Type(), resp.StatusCode, readBody(resp))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &PublishError{Kind: ErrRejected, Platform: p.Type(), Message: "decode response: " + err.Error()}
	}
	return nil
}
