package models

// RenditionOutput is the product of one completed segmented encode job.
type RenditionOutput struct {
	Level        QualityLevel      `json:"level"`
	ManifestFile string            `json:"manifestFile"`
	SegmentFiles []string          `json:"segmentFiles"`
	ManifestText string            `json:"-"`
	Segments     map[string][]byte `json:"-"`
	// Declared output resolution; zero when unknown.
	Width  int `json:"width,omitempty"`
	Height int `json:"height,omitempty"`
}

// PackageManifest is the result of a multi-quality orchestration. Renditions
// are in ladder order regardless of completion order.
type PackageManifest struct {
	Renditions           []RenditionOutput `json:"renditions"`
	TopLevelManifestFile string            `json:"topLevelManifestFile"`
	TopLevelManifestText string            `json:"-"`
}

// Files returns every file of the package keyed by its relative path.
func (p *PackageManifest) Files() map[string][]byte {
	files := make(map[string][]byte)
	if p == nil {
		return files
	}
	if p.TopLevelManifestFile != "" {
		files[p.TopLevelManifestFile] = []byte(p.TopLevelManifestText)
	}
	for _, r := range p.Renditions {
		files[r.ManifestFile] = []byte(r.ManifestText)
		for _, name := range r.SegmentFiles {
			files[name] = r.Segments[name]
		}
	}
	return files
}
