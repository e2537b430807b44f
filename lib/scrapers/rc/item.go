package rc

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Item is one entry of a page's item listing.
type Item struct {
	Tool  string
	Title string
}

// ItemFields carries a partial update for the three field groups of an
// item's edit form. Nil groups are left untouched. The shape of Options
// depends on the item's tool.
type ItemFields struct {
	Common  map[string]string
	Style   map[string]string
	Options map[string]string
}

// ItemData is the current state of an item's edit form.
type ItemData struct {
	Tool    string
	Common  map[string]string
	Style   map[string]string
	Options map[string]string
}

// Geometry is a partial position update. Nil fields are left unchanged.
// R is the rotation in degrees.
type Geometry struct {
	X, Y, W, H, R *int
}

func (g Geometry) empty() bool {
	return g.X == nil && g.Y == nil && g.W == nil && g.H == nil && g.R == nil
}

// Int returns a pointer to v, for filling in Geometry fields.
func Int(v int) *int {
	return &v
}

var itemIdAttr = regexp.MustCompile(`data-id="(\d+)"`)

// ItemList returns {item id: item} for the items placed on a page.
func (c *Client) ItemList(ctx context.Context, pageId string) (map[string]Item, error) {
	ctx, span := tracer.Start(ctx, "client:ItemList")
	defer span.End()

	res, err := c.postForm(ctx, "/editor/content", url.Values{
		"research": {c.Exposition},
		"weave":    {pageId},
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch weave content")
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse html")
		return nil, err
	}

	items := parseItemDivs(doc)
	span.SetAttributes(attribute.Int("count", len(items)))
	return items, nil
}

// ItemAdd places a media reference on a page at the given geometry and
// returns the new item id. The tool names the rendering type and has to
// match the media's type; the client does not infer or check it.
func (c *Client) ItemAdd(ctx context.Context, pageId, mediaId, tool string, x, y, w, h int) (string, error) {
	ctx, span := tracer.Start(ctx, "client:ItemAdd")
	defer span.End()

	res, err := c.postForm(ctx, "/item/add", url.Values{
		"research": {c.Exposition},
		"weave":    {pageId},
		"tool":     {tool},
		"file":     {mediaId},
		"left":     {strconv.Itoa(x)},
		"top":      {strconv.Itoa(y)},
		"width":    {strconv.Itoa(w)},
		"height":   {strconv.Itoa(h)},
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to add item")
		return "", err
	}

	m := itemIdAttr.FindStringSubmatch(res.String())
	if m == nil {
		err := fmt.Errorf("could not find the new item id in the service response")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	span.SetAttributes(attribute.String("item_id", m[1]))
	return m[1], nil
}

// ItemRemove removes a placement from its page. The media itself stays.
func (c *Client) ItemRemove(ctx context.Context, itemId string) error {
	ctx, span := tracer.Start(ctx, "client:ItemRemove")
	defer span.End()

	err := c.postConfirm(ctx, "ItemRemove", "/item/remove", url.Values{
		"research":     {c.Exposition},
		"item[]":       {itemId},
		"confirmation": {"confirmation"},
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to remove item")
		return err
	}
	return nil
}

// ItemGet reads an item's edit form back into its field groups. Groups
// other than common and style belong to the tool-specific options.
func (c *Client) ItemGet(ctx context.Context, itemId string) (ItemData, error) {
	ctx, span := tracer.Start(ctx, "client:ItemGet")
	defer span.End()

	res, err := c.getPage(ctx, "/item/edit", url.Values{
		"research": {c.Exposition},
		"item":     {itemId},
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch item edit form")
		return ItemData{}, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse html")
		return ItemData{}, err
	}

	tool, groups := parseEditForm(doc)
	data := ItemData{
		Tool:   tool,
		Common: groups["common"],
		Style:  groups["style"],
	}
	for name, group := range groups {
		if name == "common" || name == "style" {
			continue
		}
		if data.Options == nil {
			data.Options = map[string]string{}
		}
		for k, v := range group {
			data.Options[k] = v
		}
	}
	span.SetAttributes(attribute.String("tool", tool))
	return data, nil
}

// ItemSet partially updates an item's field groups; groups left nil are
// not sent and stay as they are.
func (c *Client) ItemSet(ctx context.Context, itemId string, fields ItemFields) error {
	ctx, span := tracer.Start(ctx, "client:ItemSet")
	defer span.End()

	form := url.Values{
		"research":     {c.Exposition},
		"item":         {itemId},
		"submitbutton": {"submitbutton"},
	}
	for k, v := range fields.Common {
		form.Set(fmt.Sprintf("common[%s]", k), v)
	}
	for k, v := range fields.Style {
		form.Set(fmt.Sprintf("style[%s]", k), v)
	}
	for k, v := range fields.Options {
		form.Set(fmt.Sprintf("options[%s]", k), v)
	}

	err := c.postConfirm(ctx, "ItemSet", "/item/edit", form)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to update item")
		return err
	}
	return nil
}

// ItemUpdate is the fast path for moving and resizing an item without
// touching the rest of its fields. Unset geometry fields are not sent and
// stay unchanged; a fully unset geometry performs no request at all.
func (c *Client) ItemUpdate(ctx context.Context, itemId string, geom Geometry) error {
	if geom.empty() {
		return nil
	}

	ctx, span := tracer.Start(ctx, "client:ItemUpdate")
	defer span.End()

	form := url.Values{
		"research":                      {c.Exposition},
		fmt.Sprintf("item[%s]", itemId): {itemId},
	}
	set := func(field string, v *int) {
		if v != nil {
			form.Set(fmt.Sprintf("%s[%s]", field, itemId), strconv.Itoa(*v))
		}
	}
	set("left", geom.X)
	set("top", geom.Y)
	set("width", geom.W)
	set("height", geom.H)
	set("rotate", geom.R)

	err := c.postConfirm(ctx, "ItemUpdate", "/item/update", form)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to update item geometry")
		return err
	}
	return nil
}

// ItemLock toggles the edit lock on an item.
func (c *Client) ItemLock(ctx context.Context, itemId string, lock bool) error {
	ctx, span := tracer.Start(ctx, "client:ItemLock")
	defer span.End()

	lockValue := "0"
	if lock {
		lockValue = "1"
	}
	err := c.postConfirm(ctx, "ItemLock", "/item/update-lock", url.Values{
		fmt.Sprintf("lock[%s]", itemId): {lockValue},
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to update item lock")
		return err
	}
	return nil
}
