package rc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Licenses is the license vocabulary the catalogue accepts for media.
var Licenses = map[string]bool{
	"all-rights-reserved": true,
	"cc-by":               true,
	"cc-by-sa":            true,
	"cc-by-nc":            true,
	"cc-by-nc-sa":         true,
	"cc-by-nc-nd":         true,
	"public-domain":       true,
}

// MediaTypes is the set of media kinds the editor can place.
var MediaTypes = map[string]bool{
	"image": true,
	"audio": true,
}

// Media is one entry of a media listing.
type Media struct {
	Tool string
	Name string
}

// MediaOptions describes a media record to register. The binary content is
// uploaded separately with MediaUpload.
type MediaOptions struct {
	Name            string
	CopyrightHolder string
	// "image" or "audio"
	Type        string
	License     string
	Description string
	// id of the media set to add to; blank registers simple media
	// directly under the exposition
	MediaSet string
}

// after registering media, the service answers a script snippet pointing
// the browser at the edit form of the new record, carrying the id
var mediaEditAction = regexp.MustCompile(`parent\.window\.formAction\s*=\s*'/?(?:file|simple-media)/edit\?file=(\d+)';`)

// MediaList returns {media id: media} for the given media set, or for the
// exposition's simple media when mediasetId is blank.
func (c *Client) MediaList(ctx context.Context, mediasetId string) (map[string]Media, error) {
	ctx, span := tracer.Start(ctx, "client:MediaList")
	defer span.End()

	if mediasetId == "" {
		res, err := c.postForm(ctx, "/simple-media/list", url.Values{
			"research": {c.Exposition},
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to fetch simple media listing")
			return nil, err
		}
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body()))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to parse html")
			return nil, err
		}
		media := parseSimpleMediaRows(doc)
		span.SetAttributes(attribute.Int("count", len(media)))
		return media, nil
	}

	// set contents come back as json rather than markup
	res, err := c.postForm(ctx, "/editor/work-children", url.Values{
		"research": {c.Exposition},
		"work":     {mediasetId},
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch work children")
		return nil, err
	}

	var listing struct {
		Files []struct {
			Id    json.Number `json:"id"`
			Tool  string      `json:"tool"`
			Title string      `json:"title"`
		} `json:"files"`
	}
	err = json.Unmarshal(res.Body(), &listing)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse work children json")
		return nil, err
	}

	media := map[string]Media{}
	for _, f := range listing.Files {
		media[f.Id.String()] = Media{Tool: f.Tool, Name: f.Title}
	}
	span.SetAttributes(attribute.Int("count", len(media)))
	return media, nil
}

// MediaAdd registers a media record without binary content and returns its
// id. The endpoint only accepts multipart submissions, so an empty file
// part is sent along with the fields.
func (c *Client) MediaAdd(ctx context.Context, opts MediaOptions) (string, error) {
	ctx, span := tracer.Start(ctx, "client:MediaAdd")
	defer span.End()

	if !MediaTypes[opts.Type] {
		err := fmt.Errorf("media type %q is not valid", opts.Type)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	if !Licenses[opts.License] {
		err := fmt.Errorf("license %q is not valid", opts.License)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	prefix := opts.Type
	form := map[string]string{
		"research":                    c.Exposition,
		prefix + "[mediatype]":        opts.Type,
		prefix + "[name]":             opts.Name,
		prefix + "[copyrightholder]":  opts.CopyrightHolder,
		prefix + "[license]":          opts.License,
		prefix + "[description]":      opts.Description,
		prefix + "[submitbutton]":     prefix + "[submitbutton]",
		"iframe-submit":               "true",
	}
	path := "/simple-media/add"
	if opts.MediaSet != "" {
		form["work"] = opts.MediaSet
		path = "/work/upload-file"
	}

	res, err := c.Http.R().
		SetContext(ctx).
		SetMultipartFormData(form).
		SetMultipartField("media", "", "application/octet-stream", strings.NewReader("")).
		Post(path)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to make request")
		return "", err
	}
	if res.StatusCode() != http.StatusOK {
		err := StatusError{Method: http.MethodPost, Path: path, Code: res.StatusCode()}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	m := mediaEditAction.FindStringSubmatch(res.String())
	if m == nil {
		err := fmt.Errorf("could not find the new media id in the service response")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	span.SetAttributes(attribute.String("media_id", m[1]))
	return m[1], nil
}

var uploadKinds = map[string]struct{ mime, tool string }{
	".png":  {"image/png", "image"},
	".gif":  {"image/gif", "image"},
	".svg":  {"image/svg+xml", "image"},
	".tif":  {"image/tiff", "image"},
	".tiff": {"image/tiff", "image"},
	".jpg":  {"image/jpeg", "image"},
	".jpeg": {"image/jpeg", "image"},
	".mp3":  {"audio/mpeg", "audio"},
}

// MediaUpload uploads file content for a previously registered media
// record. The MIME type and media kind are inferred from the file
// extension; unknown extensions are an error.
func (c *Client) MediaUpload(ctx context.Context, mediaId, filename string) error {
	ctx, span := tracer.Start(ctx, "client:MediaUpload")
	defer span.End()

	kind, ok := uploadKinds[strings.ToLower(filepath.Ext(filename))]
	if !ok {
		err := fmt.Errorf("cannot infer a media type from %q", filename)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	file, err := os.Open(filename)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to open file")
		return err
	}
	defer file.Close()

	res, err := c.Http.R().
		SetContext(ctx).
		SetMultipartFormData(map[string]string{
			"file":                       mediaId,
			"submit-async-file":          "false",
			"iframe-submit":              "true",
			kind.tool + "[submitbutton]": kind.tool + "[submitbutton]",
		}).
		SetMultipartField("media", filepath.Base(filename), kind.mime, file).
		Post("/file/edit")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to make upload request")
		return err
	}
	if res.StatusCode() != http.StatusOK {
		err := StatusError{Method: http.MethodPost, Path: "/file/edit", Code: res.StatusCode()}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// MediaRemove deletes a media record, from a media set when mediasetId is
// given and from the exposition's simple media otherwise. The service
// refuses while the media is still placed on any page, which surfaces as
// a RequestError.
func (c *Client) MediaRemove(ctx context.Context, mediaId, mediasetId string) error {
	ctx, span := tracer.Start(ctx, "client:MediaRemove")
	defer span.End()

	var err error
	if mediasetId == "" {
		err = c.postConfirm(ctx, "MediaRemove", "/simple-media/remove", url.Values{
			"file[]":       {mediaId},
			"confirmation": {"confirmation"},
		})
	} else {
		err = c.postConfirm(ctx, "MediaRemove", "/work/remove-file", url.Values{
			"research":     {c.Exposition},
			"work":         {mediasetId},
			"file":         {mediaId},
			"confirmation": {"confirmation"},
		})
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to remove media")
		return err
	}
	return nil
}
