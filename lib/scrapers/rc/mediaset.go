package rc

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// MediaSetGenres is the genre vocabulary the catalogue accepts for a media
// set ("work").
var MediaSetGenres = map[string]bool{
	// publication
	"publication": true, "paper": true, "catalogue": true, "article": true,
	"book": true, "broadcast": true, "cd": true, "dvd": true,
	// event
	"event": true, "exhibition": true, "screening": true, "concert": true,
	"performance": true, "festival": true, "seminar": true,
	"conference": true, "presentation": true, "workshop": true,
	// art object
	"art object": true, "installation": true, "scenery": true, "piece": true,
	"design": true, "screenplay": true, "sound": true,
	"photograph": true, "painting": true, "scale model": true,
	"digital artwork": true, "visualisation": true, "illustration": true,
	"ceramic": true, "print": true, "construction": true, "drawing": true,
	"video": true, "composition": true, "movie": true,
}

// MediaSetOptions describes a media set to create. Date is in dd/mm/yyyy
// form and defaults to today.
type MediaSetOptions struct {
	Name      string
	Genre     string
	Authors   []string
	Copyright string
	Date      string
}

// MediaSetList returns {set id: set name}. Media sets are shared across
// expositions, so the listing is not scoped to one.
func (c *Client) MediaSetList(ctx context.Context) (map[string]string, error) {
	ctx, span := tracer.Start(ctx, "client:MediaSetList")
	defer span.End()

	res, err := c.postForm(ctx, "/editor/works", url.Values{
		"research": {c.Exposition},
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch work listing")
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse html")
		return nil, err
	}

	sets := parseWorkRows(doc)
	span.SetAttributes(attribute.Int("count", len(sets)))
	return sets, nil
}

// MediaSetAdd creates a media set and returns its id.
func (c *Client) MediaSetAdd(ctx context.Context, opts MediaSetOptions) (string, error) {
	ctx, span := tracer.Start(ctx, "client:MediaSetAdd")
	defer span.End()

	if !MediaSetGenres[opts.Genre] {
		err := fmt.Errorf("media set genre %q is not valid", opts.Genre)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	date := opts.Date
	if date == "" {
		date = time.Now().Format("02/01/2006")
	}

	form := url.Values{
		"meta[title][en]":       {opts.Name},
		"meta[genre]":           {opts.Genre},
		"meta[date]":            {date},
		"meta[rcauthors][]":     opts.Authors,
		"meta[copyrightholder]": {opts.Copyright},
		"submitbutton":          {"submitbutton"},
	}
	res, err := c.postForm(ctx, "/work/add", form)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to add work")
		return "", err
	}

	setId := strings.TrimSpace(res.String())
	if setId == "" {
		err := fmt.Errorf("the service did not answer a media set id")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	span.SetAttributes(attribute.String("mediaset_id", setId))
	return setId, nil
}

// MediaSetRemove deletes a media set. The service refuses while any of the
// contained media is still referenced by an exposition, which surfaces as
// a RequestError.
func (c *Client) MediaSetRemove(ctx context.Context, setId string) error {
	ctx, span := tracer.Start(ctx, "client:MediaSetRemove")
	defer span.End()

	err := c.postConfirm(ctx, "MediaSetRemove", "/work/remove", url.Values{
		"research":     {c.Exposition},
		"work[]":       {setId},
		"confirmation": {"confirmation"},
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to remove work")
		return err
	}
	return nil
}
