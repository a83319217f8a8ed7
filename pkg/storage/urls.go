package storage

import (
	"strings"

	"github.com/siva27neelam/story-telling/pkg/config"
	"github.com/siva27neelam/story-telling/pkg/enums"
)

// URLResolver builds public CDN URLs for stored images. An empty result means
// no CDN is configured and the image must be served through the app.
type URLResolver struct {
	coversURL string
	pagesURL  string
	publicURL string
}

func NewURLResolver(cfg config.StorageConfig) URLResolver {
	return URLResolver{
		coversURL: strings.TrimRight(cfg.CoversURL, "/"),
		pagesURL:  strings.TrimRight(cfg.PagesURL, "/"),
		publicURL: strings.TrimRight(cfg.PublicURL, "/"),
	}
}

func (r URLResolver) PublicURL(collection enums.ImageCollection, key string) string {
	if key == "" {
		return ""
	}
	dedicated := r.coversURL
	if collection == enums.ImageCollectionPages {
		dedicated = r.pagesURL
	}
	switch {
	case dedicated != "":
		return dedicated + "/" + key
	case r.publicURL != "":
		return r.publicURL + "/" + collection.String() + "/" + key
	default:
		return ""
	}
}
