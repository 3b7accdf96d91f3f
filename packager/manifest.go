package packager

import (
	"fmt"
	"strings"

	"vidshape/models"
)

// DefaultMasterName is the top-level manifest file name.
const DefaultMasterName = "master.m3u8"

// BuildMasterManifest renders the top-level playlist, one stream entry per
// rendition in the given order.
func BuildMasterManifest(renditions []models.RenditionOutput) (string, error) {
	if len(renditions) == 0 {
		return "", fmt.Errorf("%w: no renditions", ErrManifestAssembly)
	}

	var b strings.Builder
	b.WriteString("#EXTM3U\n#EXT-X-VERSION:3\n")

	seen := make(map[string]bool, len(renditions))
	for _, r := range renditions {
		if r.ManifestFile == "" {
			return "", fmt.Errorf("%w: rendition %q has no manifest", ErrManifestAssembly, r.Level.Name)
		}
		if seen[r.ManifestFile] {
			return "", fmt.Errorf("%w: manifest %s referenced twice", ErrManifestAssembly, r.ManifestFile)
		}
		seen[r.ManifestFile] = true

		fmt.Fprintf(&b, "#EXT-X-STREAM-INF:BANDWIDTH=%d", r.Level.Bandwidth())
		if r.Width > 0 && r.Height > 0 {
			fmt.Fprintf(&b, ",RESOLUTION=%dx%d", r.Width, r.Height)
		}
		fmt.Fprintf(&b, ",NAME=\"%s\"\n", strings.ReplaceAll(r.Level.Name, `"`, `'`))
		b.WriteString(r.ManifestFile)
		b.WriteByte('\n')
	}
	return b.String(), nil
}
