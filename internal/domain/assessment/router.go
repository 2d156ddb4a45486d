package assessment

import "math"

// Modality routing. Route returns the route tag from presence flags alone;
// quality only influences the primary-basis choice downstream, never which
// prompt sections are included.

// DefaultTieDelta is the quality gap below which two modalities are treated
// as equivalent when choosing a primary basis. The exact value is a tuning
// knob, not load-bearing; it is overridable via configuration.
const DefaultTieDelta = 0.05

// minBasisQuality is the floor below which a lone modality is not trusted
// as the primary basis.
const minBasisQuality = 0.35

// Route classifies the supplied modalities. Pure function of the presence
// flags.
func Route(hasAudio, hasImage bool) RouteTag {
	switch {
	case hasAudio && hasImage:
		return RouteAudioImage
	case hasAudio:
		return RouteAudioOnly
	case hasImage:
		return RouteImageOnly
	default:
		return RouteNone
	}
}

// BasisInput bundles the signals that drive primary-basis selection.
type BasisInput struct {
	Hint     Basis
	HasAudio bool
	HasImage bool
	AudioQ   float64
	ImageQ   float64
	RagUsed  bool
	TieDelta float64
}

// PrimaryBasis picks the modality the diagnosis should declare as its
// basis. An explicit hint wins when it is consistent with the available
// modalities. Otherwise the highest-quality available modality wins, with
// ties breaking toward clinical, and "mixed" when both non-text modalities
// are close in quality and both usable.
func PrimaryBasis(in BasisInput) Basis {
	delta := in.TieDelta
	if delta <= 0 {
		delta = DefaultTieDelta
	}

	if in.Hint != "" && hintConsistent(in.Hint, in) {
		return in.Hint
	}

	fallback := BasisClinical
	if in.RagUsed {
		fallback = BasisRAG
	}

	switch {
	case in.HasAudio && in.HasImage:
		if math.Abs(in.AudioQ-in.ImageQ) <= delta && in.AudioQ > 0.4 && in.ImageQ > 0.4 {
			return BasisMixed
		}
		best, q := BasisAudio, in.AudioQ
		if in.ImageQ > in.AudioQ {
			best, q = BasisImage, in.ImageQ
		}
		if q < minBasisQuality {
			return fallback
		}
		return best
	case in.HasAudio:
		if in.AudioQ >= minBasisQuality {
			return BasisAudio
		}
		return fallback
	case in.HasImage:
		if in.ImageQ >= minBasisQuality {
			return BasisImage
		}
		return fallback
	default:
		return fallback
	}
}

func hintConsistent(hint Basis, in BasisInput) bool {
	switch hint {
	case BasisAudio:
		return in.HasAudio
	case BasisImage:
		return in.HasImage
	case BasisRAG:
		return in.RagUsed
	case BasisMixed:
		return in.HasAudio && in.HasImage
	case BasisClinical:
		return true
	default:
		return false
	}
}
