package api

import (
	"path"
	"regexp"

	"github.com/klazomenai/provider-static-server/pkg/assets"
)

const (
	cacheNoCache   = "no-cache"
	cacheImmutable = "public, max-age=31536000, immutable"
	cacheDefault   = "public, max-age=0"

	// remoteEntryName is the module federation manifest loaded by consumers.
	remoteEntryName = "remoteEntry.js"
)

// contentHashed matches the build's [name].[contenthash:8].(js|css) output.
var contentHashed = regexp.MustCompile(`\.[0-9a-f]{8}\.(js|css)$`)

// cacheControl picks the Cache-Control value for an asset. The entry
// document and the federation manifest are always revalidated; hashed
// bundles never change under the same name.
func cacheControl(a *assets.Asset) string {
	if a.Outcome == assets.OutcomeFallback {
		return cacheNoCache
	}

	base := path.Base(a.Name)
	switch {
	case base == remoteEntryName:
		return cacheNoCache
	case path.Ext(base) == ".html":
		return cacheNoCache
	case contentHashed.MatchString(base):
		return cacheImmutable
	default:
		return cacheDefault
	}
}
