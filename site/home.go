package site

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/GScarabel/djvirtu/content"
	"github.com/GScarabel/djvirtu/renderer"
	"github.com/GScarabel/djvirtu/templatex"
)

// Settings keys read by the home page. Anything missing renders with a
// sensible default.
const (
	keyHeroTitle    = "hero_title"
	keyHeroSubtitle = "hero_subtitle"
	keyHeroImage    = "hero_image"
	keyAboutText    = "about_text"
	keyAboutImage   = "about_image"
	keyContactEmail = "contact_email"
	keyContactPhone = "contact_phone"
	keyInstagram    = "social_instagram"
	keyYouTube      = "social_youtube"
	keySoundCloud   = "social_soundcloud"
	keySpotify      = "social_spotify"
	keyPressKit     = "press_kit_url"
)

// HomeData assembles the full home page model. Every section degrades to its
// empty value; assembly itself never fails.
func (s *Service) HomeData(ctx context.Context) *templatex.PageData {
	data, _ := s.homeData(ctx)
	return data
}

// RenderHome returns the minified home page. The rendered bytes are cached
// once a snapshot-backed render happens; callers must not modify them.
func (s *Service) RenderHome(ctx context.Context) ([]byte, error) {
	if body, ok := s.pages.Home(); ok {
		return body, nil
	}
	data, cacheable := s.homeData(ctx)
	body, err := s.renderPage(data)
	if err != nil {
		return nil, err
	}
	if cacheable {
		s.pages.UpdateHome(body)
	}
	return body, nil
}

// RenderNotFound renders a themed 404 page.
func (s *Service) RenderNotFound(ctx context.Context, requestedPath string) ([]byte, error) {
	data := s.basePageData("404 - Página não encontrada", templatex.NotFoundContentTemplate)
	sanitized := strings.TrimSpace(requestedPath)
	if sanitized != "" {
		sanitized = sanitizeRequestedPath(sanitized)
	}
	data.RequestedPath = sanitized
	description := "A página que você procura não foi encontrada."
	if sanitized != "" && sanitized != "/" {
		description = fmt.Sprintf("O caminho %s não foi encontrado.", sanitized)
	}
	data.Meta.Description = metaDescription(description, s.cfg.SiteName)
	return s.renderPage(data)
}

// RenderAdmin renders the admin shell for a signed-in user.
func (s *Service) RenderAdmin(email string) ([]byte, error) {
	data := s.basePageData("Painel", templatex.AdminContentTemplate)
	data.Admin = templatex.AdminData{Email: email}
	return s.renderPage(data)
}

// RenderLogin renders the admin login page.
func (s *Service) RenderLogin() ([]byte, error) {
	return s.renderPage(s.basePageData("Entrar", templatex.LoginContentTemplate))
}

func (s *Service) homeData(ctx context.Context) (data *templatex.PageData, cacheable bool) {
	settings, _ := s.sectionSettings(ctx)
	photos, _ := s.sectionPhotos(ctx)
	videos, _ := s.sectionVideos(ctx)
	events, _ := s.sectionEvents(ctx)
	_, cacheable = s.snapshots.Snapshot()
	return s.assembleHome(settings, photos, videos, events), cacheable
}

// assembleHome builds the home page model from already-fetched content.
func (s *Service) assembleHome(settings content.Settings, photos []content.Photo, videos []content.Video, events []content.Event) *templatex.PageData {
	about, aboutMeta, aboutPlain := s.renderAbout(settings.Get(keyAboutText, ""))

	data := s.basePageData("", templatex.HomeContentTemplate)
	data.Hero = templatex.Hero{
		Title:    settings.Get(keyHeroTitle, s.cfg.SiteName),
		Subtitle: settings.Get(keyHeroSubtitle, ""),
		ImageURL: settings.Get(keyHeroImage, ""),
	}
	data.About = templatex.About{
		HTML:     about,
		ImageURL: settings.Get(keyAboutImage, ""),
	}
	data.Photos = galleryPhotos(photos)
	data.Videos = s.videoCards(videos)
	data.Events = s.eventGroups(events, time.Now())
	data.Contact = templatex.Contact{
		Email:       settings.Get(keyContactEmail, ""),
		Phone:       settings.Get(keyContactPhone, ""),
		Instagram:   settings.Get(keyInstagram, ""),
		YouTube:     settings.Get(keyYouTube, ""),
		SoundCloud:  settings.Get(keySoundCloud, ""),
		Spotify:     settings.Get(keySpotify, ""),
		PressKitURL: settings.Get(keyPressKit, ""),
	}

	description := renderer.MetaString(aboutMeta, "description")
	if description == "" {
		description = metaDescription(aboutPlain, data.Hero.Subtitle)
	}
	if description == "" {
		description = s.cfg.SiteName
	}
	ogImage := renderer.MetaString(aboutMeta, "og_image")
	if ogImage == "" {
		ogImage = data.Hero.ImageURL
	}
	data.Meta = templatex.Meta{
		Description:    description,
		OpenGraphType:  "website",
		OpenGraphSite:  s.cfg.SiteName,
		OpenGraphImage: ogImage,
	}
	return data
}

// renderAbout converts the bio markdown, splitting off its front matter for
// SEO fields. A render failure logs and leaves the section empty.
func (s *Service) renderAbout(src string) (template.HTML, map[string]any, string) {
	if strings.TrimSpace(src) == "" {
		return "", nil, ""
	}
	res, err := s.renderer.Render([]byte(src))
	if err != nil {
		s.logger.Warn("about markdown render failed, rendering empty section", "error", err)
		return "", nil, ""
	}
	return template.HTML(res.HTML), res.Meta, res.PlainText
}

func galleryPhotos(photos []content.Photo) []templatex.GalleryPhoto {
	out := make([]templatex.GalleryPhoto, 0, len(photos))
	for _, p := range photos {
		if p.URL == "" {
			continue
		}
		out = append(out, templatex.GalleryPhoto{URL: p.URL, Caption: p.Caption})
	}
	return out
}

func (s *Service) videoCards(videos []content.Video) []templatex.VideoCard {
	out := make([]templatex.VideoCard, 0, len(videos))
	for _, v := range videos {
		card := templatex.VideoCard{
			Title:    v.Title,
			ThumbURL: content.ThumbnailURL(v),
			Featured: v.Featured,
		}
		if embed := content.EmbedURL(v.Kind, v.ExternalID); embed != "" {
			card.EmbedURL = embed
		} else {
			card.FileURL = v.URL
		}
		out = append(out, card)
	}
	return out
}

// eventGroups splits the agenda around today. The input arrives in ascending
// date order; past events flip to most-recent-first.
func (s *Service) eventGroups(events []content.Event, now time.Time) templatex.EventGroups {
	var groups templatex.EventGroups
	for _, ev := range events {
		item := s.eventItem(ev)
		if ev.Upcoming(now) {
			groups.Upcoming = append(groups.Upcoming, item)
		} else {
			groups.Past = append(groups.Past, item)
		}
	}
	slices.Reverse(groups.Past)
	return groups
}

func (s *Service) eventItem(ev content.Event) templatex.EventItem {
	item := templatex.EventItem{
		Title:     ev.Title,
		Date:      ev.Date,
		StartTime: ev.StartTime,
		EndTime:   ev.EndTime,
		Venue:     ev.Venue,
		City:      ev.City,
		State:     ev.State,
	}
	if strings.TrimSpace(ev.Description) != "" {
		if res, err := s.renderer.Render([]byte(ev.Description)); err == nil {
			item.Description = template.HTML(res.HTML)
		}
	}
	return item
}

func (s *Service) basePageData(title, contentTemplate string) *templatex.PageData {
	return &templatex.PageData{
		Title:           s.pageTitle(title),
		SiteName:        s.cfg.SiteName,
		ContentTemplate: contentTemplate,
		Live:            s.cfg.Live,
		BaseURL:         s.cfg.BaseURL,
		Year:            time.Now().Year(),
		Meta: templatex.Meta{
			Description:   s.cfg.SiteName,
			OpenGraphType: "website",
			OpenGraphSite: s.cfg.SiteName,
		},
	}
}

func (s *Service) renderPage(data *templatex.PageData) ([]byte, error) {
	var buf bytes.Buffer
	if err := s.templates.Render(&buf, data); err != nil {
		return nil, err
	}
	return s.renderer.MinifyHTML(buf.Bytes())
}

func (s *Service) pageTitle(raw string) string {
	title := strings.TrimSpace(raw)
	site := strings.TrimSpace(s.cfg.SiteName)
	if title == "" {
		return site
	}
	if site == "" {
		return title
	}
	return fmt.Sprintf("%s - %s", title, site)
}

func sanitizeRequestedPath(raw string) string {
	trimmed := strings.TrimSpace(raw)
	trimmed = strings.TrimPrefix(trimmed, "/")
	cleaned := path.Clean("/" + trimmed)
	if cleaned == "." || cleaned == "" {
		return "/"
	}
	if !strings.HasPrefix(cleaned, "/") {
		cleaned = "/" + cleaned
	}
	return cleaned
}
