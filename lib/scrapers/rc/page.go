package rc

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// PageFilter narrows a page listing by name. The zero value selects
// everything. With Regexp set, Pattern is compiled as a regular
// expression, otherwise it is a literal substring.
type PageFilter struct {
	Pattern string
	Regexp  bool
}

// PageOptions carries the optional fields of a new page. Meta and Style
// forward free-form "meta[...]" and "style[...]" form fields (margins,
// iframe url, ...) that the editor accepts on creation.
type PageOptions struct {
	Description string
	Meta        map[string]string
	Style       map[string]string
}

// PageList returns {page id: page name} for the exposition, optionally
// narrowed by filter.
func (c *Client) PageList(ctx context.Context, filter PageFilter) (map[string]string, error) {
	ctx, span := tracer.Start(ctx, "client:PageList")
	defer span.End()

	res, err := c.postForm(ctx, "/editor/weaves", url.Values{
		"research": {c.Exposition},
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch weave listing")
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse html")
		return nil, err
	}

	pages := parseWeaveRows(doc)
	span.SetAttributes(attribute.Int("count", len(pages)))

	if filter.Pattern == "" {
		return pages, nil
	}

	match := func(name string) bool {
		return strings.Contains(name, filter.Pattern)
	}
	if filter.Regexp {
		re, err := regexp.Compile(filter.Pattern)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "invalid filter pattern")
			return nil, fmt.Errorf("invalid page filter pattern: %w", err)
		}
		match = re.MatchString
	}
	for id, name := range pages {
		if !match(name) {
			delete(pages, id)
		}
	}
	return pages, nil
}

// PageAdd creates a page and returns its id, which the service answers as
// the literal response body.
func (c *Client) PageAdd(ctx context.Context, name string, opts PageOptions) (string, error) {
	ctx, span := tracer.Start(ctx, "client:PageAdd")
	defer span.End()

	form := url.Values{
		"research":        {c.Exposition},
		"meta[title][en]": {name},
	}
	if opts.Description != "" {
		form.Set("meta[description][en]", opts.Description)
	}
	for k, v := range opts.Meta {
		form.Set(fmt.Sprintf("meta[%s]", k), v)
	}
	for k, v := range opts.Style {
		form.Set(fmt.Sprintf("style[%s]", k), v)
	}

	res, err := c.postForm(ctx, "/weave/add", form)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to add weave")
		return "", err
	}

	pageId := strings.TrimSpace(res.String())
	if pageId == "" {
		err := fmt.Errorf("the service did not answer a page id")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	span.SetAttributes(attribute.String("page_id", pageId))
	return pageId, nil
}

// PageRemove deletes a page. Removing a page the service doesn't know
// about fails with a RequestError.
func (c *Client) PageRemove(ctx context.Context, pageId string) error {
	ctx, span := tracer.Start(ctx, "client:PageRemove")
	defer span.End()

	err := c.postConfirm(ctx, "PageRemove", "/weave/remove", url.Values{
		"weave":        {pageId},
		"confirmation": {"confirmation"},
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to remove weave")
		return err
	}
	return nil
}

// PageOptionsGet resolves a page by its exact name and reads its
// configuration back out of the weave edit form, grouped the way the form
// names its fields (meta, style, ...).
func (c *Client) PageOptionsGet(ctx context.Context, pageName string) (map[string]map[string]string, error) {
	ctx, span := tracer.Start(ctx, "client:PageOptionsGet")
	defer span.End()

	pages, err := c.PageList(ctx, PageFilter{})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list weaves")
		return nil, err
	}
	pageId := ""
	for id, name := range pages {
		if name == pageName {
			pageId = id
			break
		}
	}
	if pageId == "" {
		err := fmt.Errorf("there is no page named %q", pageName)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	res, err := c.getPage(ctx, "/weave/edit", url.Values{
		"research": {c.Exposition},
		"weave":    {pageId},
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch weave edit form")
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse html")
		return nil, err
	}

	_, groups := parseEditForm(doc)
	return groups, nil
}
