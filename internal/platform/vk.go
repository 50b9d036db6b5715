package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/maheshrc27/autopost/internal/models"
)

// VK posts to the wall of the community whose id is in Routing.ExternalID.
// Images go through the three-step wall upload flow first.
type VK struct {
	client  *http.Client
	apiURL  string
	version string
}

func NewVK(opts Options) *VK {
	apiURL := opts.VKAPIURL
	if apiURL == "" {
		apiURL = "https://api.vk.com/method"
	}
	version := opts.VKAPIVersion
	if version == "" {
		version = "5.199"
	}
	return &VK{
		client:  newHTTPClient(opts.Timeout, opts.RatePerSecond),
		apiURL:  strings.TrimRight(apiURL, "/"),
		version: version,
	}
}

func (v *VK) Type() models.PlatformType { return models.PlatformVK }

type vkError struct {
	Code    int    `json:"error_code"`
	Message string `json:"error_msg"`
}

type vkEnvelope struct {
	Response json.RawMessage `json:"response"`
	Error    *vkError        `json:"error"`
}

func (v *VK) Publish(ctx context.Context, req *Request) *Result {
	groupID := strings.TrimPrefix(req.Routing.ExternalID, "-")
	if _, err := strconv.ParseInt(groupID, 10, 64); err != nil {
		return failure(v.Type(), ErrInvalid, "community id %q is not numeric", req.Routing.ExternalID)
	}
	if req.Credentials.Empty() || req.Credentials.AccessToken == "" {
		return failure(v.Type(), ErrAuth, "access token is missing")
	}
	token := req.Credentials.AccessToken

	params := url.Values{}
	params.Set("owner_id", "-"+groupID)
	params.Set("from_group", "1")
	params.Set("message", plainText(req.Text))

	if len(req.Image) > 0 {
		attachment, perr := v.uploadPhoto(ctx, token, groupID, req.Image)
		if perr != nil {
			return failWith(perr)
		}
		params.Set("attachments", attachment)
	}

	var post struct {
		PostID int64 `json:"post_id"`
	}
	if perr := v.call(ctx, token, "wall.post", params, &post); perr != nil {
		return failWith(perr)
	}
	return success(fmt.Sprintf("https://vk.com/wall-%s_%d", groupID, post.PostID))
}

func (v *VK) uploadPhoto(ctx context.Context, token, groupID string, image []byte) (string, *PublishError) {
	_, ext, ok := sniffImage(image)
	if !ok {
		return "", &PublishError{Kind: ErrInvalid, Platform: v.Type(), Message: "image format not recognized"}
	}

	var server struct {
		UploadURL string `json:"upload_url"`
	}
	if perr := v.call(ctx, token, "photos.getWallUploadServer", url.Values{"group_id": {groupID}}, &server); perr != nil {
		return "", perr
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("photo", "image."+ext)
	if err != nil {
		return "", &PublishError{Kind: ErrInvalid, Platform: v.Type(), Message: err.Error()}
	}
	part.Write(image)
	mw.Close()

	uploadReq, err := http.NewRequestWithContext(ctx, http.MethodPost, server.UploadURL, &body)
	if err != nil {
		return "", &PublishError{Kind: ErrRejected, Platform: v.Type(), Message: "bad upload url"}
	}
	uploadReq.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := v.client.Do(uploadReq)
	if err != nil {
		return "", transportError(v.Type(), err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", statusError(v.Type(), resp.StatusCode, readBody(resp))
	}

	var uploaded struct {
		Server int64  `json:"server"`
		Photo  string `json:"photo"`
		Hash   string `json:"hash"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&uploaded); err != nil || uploaded.Photo == "" || uploaded.Photo == "[]" {
		return "", &PublishError{Kind: ErrRejected, Platform: v.Type(), Message: "photo upload was not accepted"}
	}

	save := url.Values{}
	save.Set("group_id", groupID)
	save.Set("server", strconv.FormatInt(uploaded.Server, 10))
	save.Set("photo", uploaded.Photo)
	save.Set("hash", uploaded.Hash)

	var photos []struct {
		ID      int64 `json:"id"`
		OwnerID int64 `json:"owner_id"`
	}
	if perr := v.call(ctx, token, "photos.saveWallPhoto", save, &photos); perr != nil {
		return "", perr
	}
	if len(photos) == 0 {
		return "", &PublishError{Kind: ErrRejected, Platform: v.Type(), Message: "saveWallPhoto returned no photo"}
	}
	return fmt.Sprintf("photo%d_%d", photos[0].OwnerID, photos[0].ID), nil
}

func (v *VK) call(ctx context.Context, token, method string, params url.Values, out any) *PublishError {
	form := url.Values{}
	for k, vals := range params {
		form[k] = vals
	}
	form.Set("access_token", token)
	form.Set("v", v.version)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.apiURL+"/"+method, strings.NewReader(form.Encode()))
	if err != nil {
		return &PublishError{Kind: ErrInvalid, Platform: v.Type(), Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		return transportError(v.Type(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(v.Type(), resp.StatusCode, readBody(resp))
	}

	var env vkEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return &PublishError{Kind: ErrRejected, Platform: v.Type(), Message: "decode response: " + err.Error()}
	}
	if env.Error != nil {
		return vkFailure(env.Error)
	}
	if err := json.Unmarshal(env.Response, out); err != nil {
		return &PublishError{Kind: ErrRejected, Platform: v.Type(), Message: fmt.Sprintf("%s: unexpected response", method)}
	}
	return nil
}

func vkFailure(e *vkError) *PublishError {
	kind := ErrRejected
	switch e.Code {
	case 5, 27, 28:
		kind = ErrAuth
	case 6, 9, 10:
		kind = ErrNetwork
	}
	return &PublishError{Kind: kind, Platform: models.PlatformVK, Message: fmt.Sprintf("%d: %s", e.Code, e.Message)}
}
