package gositemapgenerator

import (
	"bytes"
	"encoding/xml"
	"strconv"
)

const (
	xmlHeader = `<?xml version="1.0" encoding="UTF-8"?>` + "\n"

	urlsetOpen = xmlHeader + `<urlset xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance"` +
		` xsi:schemaLocation="http://www.sitemaps.org/schemas/sitemap/0.9 http://www.sitemaps.org/schemas/sitemap/0.9/sitemap.xsd"` +
		` xmlns="http://www.sitemaps.org/schemas/sitemap/0.9"` +
		` xmlns:image="http://www.google.com/schemas/sitemap-image/1.1"` +
		` xmlns:video="http://www.google.com/schemas/sitemap-video/1.1"` +
		` xmlns:news="http://www.google.com/schemas/sitemap-news/0.9"` +
		` xmlns:mobile="http://www.google.com/schemas/sitemap-mobile/1.0"` +
		` xmlns:geo="http://www.google.com/geo/schemas/sitemap/1.0"` +
		` xmlns:pagemap="http://www.google.com/schemas/sitemap-pagemap/1.0"` +
		` xmlns:xhtml="http://www.w3.org/1999/xhtml">` + "\n"
	urlsetClose = "</urlset>\n"

	sitemapindexOpen = xmlHeader + `<sitemapindex xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance"` +
		` xsi:schemaLocation="http://www.sitemaps.org/schemas/sitemap/0.9 http://www.sitemaps.org/schemas/sitemap/0.9/siteindex.xsd"` +
		` xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">` + "\n"
	sitemapindexClose = "</sitemapindex>\n"
)

func appendURLXML(dst []byte, e *URLEntry) []byte {
	buf := bytes.NewBuffer(dst)
	buf.WriteString("<url>")
	writeElement(buf, "loc", e.Loc)
	if e.LastMod != nil {
		writeElement(buf, "lastmod", e.LastMod.W3C())
	}
	if e.Expires != nil {
		writeElement(buf, "expires", e.Expires.W3C())
	}
	writeElement(buf, "changefreq", string(e.ChangeFreq))
	if e.Priority != nil {
		writeElement(buf, "priority", formatFloat(*e.Priority))
	}
	if e.News != nil {
		writeNews(buf, e.News)
	}
	for _, img := range e.Images {
		writeImage(buf, img)
	}
	for _, v := range e.Videos {
		writeVideo(buf, v)
	}
	for _, alt := range e.Alternates {
		writeAlternate(buf, alt)
	}
	if e.Geo != nil {
		buf.WriteString("<geo:geo>")
		writeElement(buf, "geo:format", e.Geo.Format)
		buf.WriteString("</geo:geo>")
	}
	if e.Mobile {
		buf.WriteString("<mobile:mobile/>")
	}
	if e.PageMap != nil {
		writePageMap(buf, e.PageMap)
	}
	buf.WriteString("</url>\n")
	return buf.Bytes()
}

func appendIndexEntryXML(dst []byte, loc string, lastmod *Timestamp) []byte {
	buf := bytes.NewBuffer(dst)
	buf.WriteString("<sitemap>")
	writeElement(buf, "loc", loc)
	if lastmod != nil {
		writeElement(buf, "lastmod", lastmod.W3C())
	}
	buf.WriteString("</sitemap>\n")
	return buf.Bytes()
}

func writeNews(buf *bytes.Buffer, n *News) {
	buf.WriteString("<news:news><news:publication>")
	writeElement(buf, "news:name", n.PublicationName)
	writeElement(buf, "news:language", n.PublicationLanguage)
	buf.WriteString("</news:publication>")
	writeElement(buf, "news:access", n.Access)
	writeElement(buf, "news:genres", n.Genres)
	if n.PublicationDate != nil {
		writeElement(buf, "news:publication_date", n.PublicationDate.W3C())
	}
	writeElement(buf, "news:title", n.Title)
	writeElement(buf, "news:keywords", n.Keywords)
	writeElement(buf, "news:stock_tickers", n.StockTickers)
	buf.WriteString("</news:news>")
}

func writeImage(buf *bytes.Buffer, img Image) {
	buf.WriteString("<image:image>")
	writeElement(buf, "image:loc", img.Loc)
	writeElement(buf, "image:caption", img.Caption)
	writeElement(buf, "image:geo_location", img.GeoLocation)
	writeElement(buf, "image:title", img.Title)
	writeElement(buf, "image:license", img.License)
	buf.WriteString("</image:image>")
}

func writeVideo(buf *bytes.Buffer, v Video) {
	buf.WriteString("<video:video>")
	writeElement(buf, "video:thumbnail_loc", v.ThumbnailLoc)
	writeElement(buf, "video:title", v.Title)
	writeElement(buf, "video:description", v.Description)
	writeElement(buf, "video:content_loc", v.ContentLoc)
	if v.PlayerLoc != "" {
		buf.WriteString("<video:player_loc")
		if v.AllowEmbed != nil {
			writeAttr(buf, "allow_embed", yesNo(*v.AllowEmbed))
		}
		writeAttr(buf, "autoplay", v.Autoplay)
		buf.WriteString(">")
		escape(buf, v.PlayerLoc)
		buf.WriteString("</video:player_loc>")
	}
	if v.Duration > 0 {
		writeElement(buf, "video:duration", strconv.Itoa(v.Duration))
	}
	if v.ExpirationDate != nil {
		writeElement(buf, "video:expiration_date", v.ExpirationDate.W3C())
	}
	if v.Rating != nil {
		writeElement(buf, "video:rating", formatFloat(*v.Rating))
	}
	if v.ViewCount > 0 {
		writeElement(buf, "video:view_count", strconv.Itoa(v.ViewCount))
	}
	if v.PublicationDate != nil {
		writeElement(buf, "video:publication_date", v.PublicationDate.W3C())
	}
	if v.FamilyFriendly != nil {
		writeElement(buf, "video:family_friendly", yesNo(*v.FamilyFriendly))
	}
	for _, tag := range v.Tags {
		writeElement(buf, "video:tag", tag)
	}
	writeElement(buf, "video:category", v.Category)
	if v.GalleryLoc != "" {
		buf.WriteString("<video:gallery_loc")
		writeAttr(buf, "title", v.GalleryTitle)
		buf.WriteString(">")
		escape(buf, v.GalleryLoc)
		buf.WriteString("</video:gallery_loc>")
	}
	if v.Price != nil {
		buf.WriteString("<video:price")
		writeAttr(buf, "currency", v.PriceCurrency)
		buf.WriteString(">")
		buf.WriteString(strconv.FormatFloat(*v.Price, 'f', 2, 64))
		buf.WriteString("</video:price>")
	}
	if v.Uploader != "" {
		buf.WriteString("<video:uploader")
		writeAttr(buf, "info", v.UploaderInfo)
		buf.WriteString(">")
		escape(buf, v.Uploader)
		buf.WriteString("</video:uploader>")
	}
	if v.Live != nil {
		writeElement(buf, "video:live", yesNo(*v.Live))
	}
	if v.RequiresSubscription != nil {
		writeElement(buf, "video:requires_subscription", yesNo(*v.RequiresSubscription))
	}
	buf.WriteString("</video:video>")
}

func writeAlternate(buf *bytes.Buffer, alt Alternate) {
	rel := "alternate"
	if alt.Nofollow {
		rel = "alternate nofollow"
	}
	buf.WriteString("<xhtml:link")
	writeAttr(buf, "rel", rel)
	writeAttr(buf, "hreflang", alt.Lang)
	writeAttr(buf, "href", alt.Href)
	writeAttr(buf, "media", alt.Media)
	buf.WriteString("/>")
}

func writePageMap(buf *bytes.Buffer, pm *PageMap) {
	buf.WriteString("<pagemap:PageMap>")
	for _, obj := range pm.DataObjects {
		buf.WriteString("<pagemap:DataObject")
		writeAttr(buf, "type", obj.Type)
		writeAttr(buf, "id", obj.ID)
		buf.WriteString(">")
		for _, attr := range obj.Attributes {
			buf.WriteString("<pagemap:Attribute")
			writeAttr(buf, "name", attr.Name)
			buf.WriteString(">")
			escape(buf, attr.Value)
			buf.WriteString("</pagemap:Attribute>")
		}
		buf.WriteString("</pagemap:DataObject>")
	}
	buf.WriteString("</pagemap:PageMap>")
}

// writeElement writes <tag>content</tag>, skipping empty content.
func writeElement(buf *bytes.Buffer, tag, content string) {
	if content == "" {
		return
	}
	buf.WriteString("<")
	buf.WriteString(tag)
	buf.WriteString(">")
	escape(buf, content)
	buf.WriteString("</")
	buf.WriteString(tag)
	buf.WriteString(">")
}

func writeAttr(buf *bytes.Buffer, name, value string) {
	if value == "" {
		return
	}
	buf.WriteString(" ")
	buf.WriteString(name)
	buf.WriteString(`="`)
	escape(buf, value)
	buf.WriteString(`"`)
}

func escape(buf *bytes.Buffer, s string) {
	// EscapeText only fails when the writer does; bytes.Buffer never does.
	_ = xml.EscapeText(buf, []byte(s))
}

// formatFloat renders priorities and ratings with exactly one decimal place.
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 1, 64)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
