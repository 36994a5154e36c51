package verify

import "strings"

const aiLabelThreshold = 0.8

// aiLabels are label-detection descriptions that point at generated or
// rendered imagery rather than a photo of a real room.
var aiLabels = map[string]struct{}{
	"ai art":            {},
	"generative art":    {},
	"digital art":       {},
	"cg artwork":        {},
	"computer graphics": {},
	"3d rendering":      {},
	"3d modeling":       {},
	"fractal art":       {},
	"visual effects":    {},
}

type Label struct {
	Description string
	Score       float64
}

// Report is what the vision service found for one image.
type Report struct {
	FullMatches    []string
	PartialMatches []string
	Labels         []Label
}

// Decide applies the verification policy: any web match means the image was
// taken from elsewhere, otherwise a confident AI-art label means it was
// generated, otherwise it is original.
func Decide(r Report) Result {
	if len(r.FullMatches) > 0 || len(r.PartialMatches) > 0 {
		source := ""
		if len(r.FullMatches) > 0 {
			source = r.FullMatches[0]
		} else {
			source = r.PartialMatches[0]
		}
		return Result{
			IsOriginal:   false,
			Reason:       "image already appears on the web",
			StolenCheck:  true,
			StolenSource: source,
		}
	}

	for _, l := range r.Labels {
		if _, ok := aiLabels[strings.ToLower(strings.TrimSpace(l.Description))]; ok && l.Score > aiLabelThreshold {
			return Result{
				IsOriginal: false,
				Reason:     "image looks AI-generated (" + l.Description + ")",
				AICheck:    true,
			}
		}
	}

	return Result{IsOriginal: true, Reason: "no web matches or AI markers found"}
}
