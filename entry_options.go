package gositemapgenerator

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ParseEntryOptions converts a decoded option map (from YAML, TOML or JSON) into
// EntryOptions. Unknown keys fail with *ErrConfiguration.
func ParseEntryOptions(raw map[string]any) (EntryOptions, error) {
	var opts EntryOptions
	if err := checkKeys("entry", raw, "host", "lastmod", "expires", "changefreq", "priority",
		"images", "videos", "news", "alternates", "alternate", "geo", "mobile", "pagemap"); err != nil {
		return opts, err
	}
	var err error
	if opts.Host, err = optString(raw, "host"); err != nil {
		return opts, err
	}
	if opts.LastMod, err = optTimestamp(raw, "lastmod"); err != nil {
		return opts, err
	}
	if opts.Expires, err = optTimestamp(raw, "expires"); err != nil {
		return opts, err
	}
	freq, err := optString(raw, "changefreq")
	if err != nil {
		return opts, err
	}
	opts.ChangeFreq = ChangeFreq(strings.ToLower(freq))
	if opts.Priority, err = optFloat(raw, "priority"); err != nil {
		return opts, err
	}
	if opts.Mobile, err = optBool(raw, "mobile"); err != nil {
		return opts, err
	}

	images, err := optMaps(raw, "images")
	if err != nil {
		return opts, err
	}
	for _, m := range images {
		img, err := parseImage(m)
		if err != nil {
			return opts, err
		}
		opts.Images = append(opts.Images, img)
	}

	videos, err := optMaps(raw, "videos")
	if err != nil {
		return opts, err
	}
	for _, m := range videos {
		v, err := parseVideo(m)
		if err != nil {
			return opts, err
		}
		opts.Videos = append(opts.Videos, v)
	}

	alternates, err := optMaps(raw, "alternates")
	if err != nil {
		return opts, err
	}
	single, err := optMaps(raw, "alternate")
	if err != nil {
		return opts, err
	}
	for _, m := range append(alternates, single...) {
		alt, err := parseAlternate(m)
		if err != nil {
			return opts, err
		}
		opts.Alternates = append(opts.Alternates, alt)
	}

	if m, ok, err := optMap(raw, "news"); err != nil {
		return opts, err
	} else if ok {
		news, err := parseNews(m)
		if err != nil {
			return opts, err
		}
		opts.News = &news
	}
	if m, ok, err := optMap(raw, "geo"); err != nil {
		return opts, err
	} else if ok {
		if err := checkKeys("geo", m, "format"); err != nil {
			return opts, err
		}
		format, err := optString(m, "format")
		if err != nil {
			return opts, err
		}
		opts.Geo = &Geo{Format: format}
	}
	if m, ok, err := optMap(raw, "pagemap"); err != nil {
		return opts, err
	} else if ok {
		pm, err := parsePageMap(m)
		if err != nil {
			return opts, err
		}
		opts.PageMap = &pm
	}
	return opts, nil
}

// ParseIndexEntryOptions converts a decoded option map for AddToIndex.
func ParseIndexEntryOptions(raw map[string]any) (IndexEntryOptions, error) {
	var opts IndexEntryOptions
	if err := checkKeys("index entry", raw, "host", "lastmod"); err != nil {
		return opts, err
	}
	var err error
	if opts.Host, err = optString(raw, "host"); err != nil {
		return opts, err
	}
	if opts.LastMod, err = optTimestamp(raw, "lastmod"); err != nil {
		return opts, err
	}
	return opts, nil
}

func parseImage(m map[string]any) (Image, error) {
	var img Image
	if err := checkKeys("image", m, "loc", "caption", "geo_location", "title", "license"); err != nil {
		return img, err
	}
	fields := map[string]*string{
		"loc":          &img.Loc,
		"caption":      &img.Caption,
		"geo_location": &img.GeoLocation,
		"title":        &img.Title,
		"license":      &img.License,
	}
	return img, assignStrings(m, fields)
}

func parseVideo(m map[string]any) (Video, error) {
	var v Video
	if err := checkKeys("video", m, "thumbnail_loc", "title", "description", "content_loc", "player_loc",
		"allow_embed", "autoplay", "duration", "expiration_date", "rating", "view_count", "publication_date",
		"family_friendly", "tags", "tag", "category", "gallery_loc", "gallery_title", "price", "price_currency",
		"uploader", "uploader_info", "live", "requires_subscription"); err != nil {
		return v, err
	}
	fields := map[string]*string{
		"thumbnail_loc":  &v.ThumbnailLoc,
		"title":          &v.Title,
		"description":    &v.Description,
		"content_loc":    &v.ContentLoc,
		"player_loc":     &v.PlayerLoc,
		"autoplay":       &v.Autoplay,
		"category":       &v.Category,
		"gallery_loc":    &v.GalleryLoc,
		"gallery_title":  &v.GalleryTitle,
		"price_currency": &v.PriceCurrency,
		"uploader":       &v.Uploader,
		"uploader_info":  &v.UploaderInfo,
	}
	if err := assignStrings(m, fields); err != nil {
		return v, err
	}
	var err error
	if v.AllowEmbed, err = optBoolPtr(m, "allow_embed"); err != nil {
		return v, err
	}
	if v.FamilyFriendly, err = optBoolPtr(m, "family_friendly"); err != nil {
		return v, err
	}
	if v.Live, err = optBoolPtr(m, "live"); err != nil {
		return v, err
	}
	if v.RequiresSubscription, err = optBoolPtr(m, "requires_subscription"); err != nil {
		return v, err
	}
	if v.Duration, err = optInt(m, "duration"); err != nil {
		return v, err
	}
	if v.ViewCount, err = optInt(m, "view_count"); err != nil {
		return v, err
	}
	if v.Rating, err = optFloat(m, "rating"); err != nil {
		return v, err
	}
	if v.Price, err = optFloat(m, "price"); err != nil {
		return v, err
	}
	if v.ExpirationDate, err = optTimestamp(m, "expiration_date"); err != nil {
		return v, err
	}
	if v.PublicationDate, err = optTimestamp(m, "publication_date"); err != nil {
		return v, err
	}
	if v.Tags, err = optStrings(m, "tags"); err != nil {
		return v, err
	}
	tag, err := optString(m, "tag")
	if err != nil {
		return v, err
	}
	if tag != "" {
		v.Tags = append(v.Tags, tag)
	}
	return v, nil
}

func parseNews(m map[string]any) (News, error) {
	var n News
	if err := checkKeys("news", m, "publication_name", "publication_language", "title", "publication_date",
		"keywords", "stock_tickers", "access", "genres"); err != nil {
		return n, err
	}
	fields := map[string]*string{
		"publication_name":     &n.PublicationName,
		"publication_language": &n.PublicationLanguage,
		"title":                &n.Title,
		"keywords":             &n.Keywords,
		"stock_tickers":        &n.StockTickers,
		"access":               &n.Access,
		"genres":               &n.Genres,
	}
	if err := assignStrings(m, fields); err != nil {
		return n, err
	}
	var err error
	n.PublicationDate, err = optTimestamp(m, "publication_date")
	return n, err
}

func parseAlternate(m map[string]any) (Alternate, error) {
	var alt Alternate
	if err := checkKeys("alternate", m, "href", "lang", "nofollow", "media"); err != nil {
		return alt, err
	}
	fields := map[string]*string{
		"href":  &alt.Href,
		"lang":  &alt.Lang,
		"media": &alt.Media,
	}
	if err := assignStrings(m, fields); err != nil {
		return alt, err
	}
	var err error
	alt.Nofollow, err = optBool(m, "nofollow")
	return alt, err
}

func parsePageMap(m map[string]any) (PageMap, error) {
	var pm PageMap
	if err := checkKeys("pagemap", m, "dataobjects"); err != nil {
		return pm, err
	}
	objects, err := optMaps(m, "dataobjects")
	if err != nil {
		return pm, err
	}
	for _, om := range objects {
		if err := checkKeys("dataobject", om, "type", "id", "attributes"); err != nil {
			return pm, err
		}
		var obj DataObject
		if err := assignStrings(om, map[string]*string{"type": &obj.Type, "id": &obj.ID}); err != nil {
			return pm, err
		}
		attrs, err := optMaps(om, "attributes")
		if err != nil {
			return pm, err
		}
		for _, am := range attrs {
			if err := checkKeys("attribute", am, "name", "value"); err != nil {
				return pm, err
			}
			var attr Attribute
			if err := assignStrings(am, map[string]*string{"name": &attr.Name, "value": &attr.Value}); err != nil {
				return pm, err
			}
			obj.Attributes = append(obj.Attributes, attr)
		}
		pm.DataObjects = append(pm.DataObjects, obj)
	}
	return pm, nil
}

// ===================== Decoding helpers =====================

func checkKeys(scope string, m map[string]any, allowed ...string) error {
	valid := make(map[string]struct{}, len(allowed))
	for _, key := range allowed {
		valid[key] = struct{}{}
	}
	var unknown []string
	for key := range m {
		if _, ok := valid[key]; !ok {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)
	return &ErrConfiguration{Field: scope, Reason: "unknown option keys: " + strings.Join(unknown, ", ")}
}

func assignStrings(m map[string]any, fields map[string]*string) error {
	for key, dst := range fields {
		value, err := optString(m, key)
		if err != nil {
			return err
		}
		*dst = value
	}
	return nil
}

func optString(m map[string]any, key string) (string, error) {
	value, ok := m[key]
	if !ok || value == nil {
		return "", nil
	}
	switch v := value.(type) {
	case string:
		return v, nil
	case fmt.Stringer:
		return v.String(), nil
	case int, int64, float64, bool:
		return fmt.Sprint(v), nil
	}
	return "", typeError(key, "a string", value)
}

func optStrings(m map[string]any, key string) ([]string, error) {
	value, ok := m[key]
	if !ok || value == nil {
		return nil, nil
	}
	switch v := value.(type) {
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, typeError(key, "a list of strings", value)
			}
			out = append(out, s)
		}
		return out, nil
	case string:
		return []string{v}, nil
	}
	return nil, typeError(key, "a list of strings", value)
}

func optFloat(m map[string]any, key string) (*float64, error) {
	value, ok := m[key]
	if !ok || value == nil {
		return nil, nil
	}
	var f float64
	switch v := value.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, typeError(key, "a number", value)
		}
		f = parsed
	default:
		return nil, typeError(key, "a number", value)
	}
	return &f, nil
}

func optInt(m map[string]any, key string) (int, error) {
	f, err := optFloat(m, key)
	if err != nil || f == nil {
		return 0, err
	}
	return int(*f), nil
}

func optBool(m map[string]any, key string) (bool, error) {
	b, err := optBoolPtr(m, key)
	if err != nil || b == nil {
		return false, err
	}
	return *b, nil
}

func optBoolPtr(m map[string]any, key string) (*bool, error) {
	value, ok := m[key]
	if !ok || value == nil {
		return nil, nil
	}
	var b bool
	switch v := value.(type) {
	case bool:
		b = v
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "yes", "true":
			b = true
		case "no", "false":
			b = false
		default:
			return nil, typeError(key, "a boolean", value)
		}
	default:
		return nil, typeError(key, "a boolean", value)
	}
	return &b, nil
}

func optTimestamp(m map[string]any, key string) (*Timestamp, error) {
	value, ok := m[key]
	if !ok || value == nil {
		return nil, nil
	}
	if t, ok := value.(time.Time); ok {
		if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 && t.Location() == time.UTC {
			return &Timestamp{Time: t, DateOnly: true}, nil
		}
		return &Timestamp{Time: t}, nil
	}
	s, err := optString(m, key)
	if err != nil {
		return nil, err
	}
	ts, err := ParseTimestamp(s)
	if err != nil {
		return nil, &ErrConfiguration{Field: key, Reason: err.Error()}
	}
	return ts, nil
}

func optMap(m map[string]any, key string) (map[string]any, bool, error) {
	value, ok := m[key]
	if !ok || value == nil {
		return nil, false, nil
	}
	if mm, ok := value.(map[string]any); ok {
		return mm, true, nil
	}
	return nil, false, typeError(key, "a mapping", value)
}

func optMaps(m map[string]any, key string) ([]map[string]any, error) {
	value, ok := m[key]
	if !ok || value == nil {
		return nil, nil
	}
	switch v := value.(type) {
	case map[string]any:
		return []map[string]any{v}, nil
	case []map[string]any:
		return v, nil
	case []any:
		out := make([]map[string]any, 0, len(v))
		for _, item := range v {
			mm, ok := item.(map[string]any)
			if !ok {
				return nil, typeError(key, "a list of mappings", value)
			}
			out = append(out, mm)
		}
		return out, nil
	}
	return nil, typeError(key, "a list of mappings", value)
}

func typeError(key, want string, got any) error {
	return &ErrConfiguration{Field: key, Reason: fmt.Sprintf("expected %s, got %T", want, got)}
}
