package fusion

import "math"

// FusedFeatures is Stage E's priority-weighted feature summation output,
// one flattened vector per registered cycle.
type FusedFeatures struct {
	Thermal    []float64
	EM         []float64
	Geometric  []float64
	Spectral   []float64
}

// Signature is a known target feature profile to match fused features
// against.
type Signature struct {
	Name     string
	Features FusedFeatures
}

const (
	spectralAngleWeight      = 0.4
	featureCorrelationWeight = 0.3
	absorptionMatchWeight    = 0.3

	// SignatureMatchThreshold is the minimum combined similarity score
	// required to accept a signature match.
	SignatureMatchThreshold = 0.85
)

// CombineFeatures implements Stage E's priority-weighted feature
// summation: every registered sample's feature vectors are scaled by its
// Stage C priority and summed componentwise.
func CombineFeatures(samples []RegisteredSample, priorities map[SensorKind]float64) FusedFeatures {
	var out FusedFeatures
	for _, s := range samples {
		w := priorities[s.Kind]
		out.Thermal = addScaled(out.Thermal, s.Features.ThermalProfile, w)
		out.EM = addScaled(out.EM, s.Features.EMEmissions, w)
		out.Geometric = addScaled(out.Geometric, s.Features.GeometricDescriptors, w)
		out.Spectral = addScaled(out.Spectral, s.Features.SpectralIndices, w)
	}
	return out
}

func addScaled(acc, v []float64, w float64) []float64 {
	if len(v) == 0 {
		return acc
	}
	if acc == nil {
		acc = make([]float64, len(v))
	}
	for i := 0; i < len(v) && i < len(acc); i++ {
		acc[i] += v[i] * w
	}
	for i := len(acc); i < len(v); i++ {
		acc = append(acc, v[i]*w)
	}
	return acc
}

func cosineSimilarity(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}
	return clamp(dot/denom, 0.0, 1.0)
}

// MatchSignature scores fused against sig using three similarity metrics
// (no spectral-analysis or signature-matching library exists anywhere in
// the corpus, so each metric is approximated as a cosine similarity over
// a distinct feature-vector slice, matching the original's intent of
// "three independent corroborating comparisons"):
//
//   - spectral angle:       cosine similarity of SpectralIndices
//   - feature correlation:  cosine similarity of the concatenated
//     Thermal+EM+Geometric vectors
//   - absorption match:     cosine similarity of EMEmissions alone
//
// combined 0.4/0.3/0.3. A score >= SignatureMatchThreshold is an accepted
// match.
func MatchSignature(fused FusedFeatures, sig Signature) (score float64, matched bool) {
	spectralAngle := cosineSimilarity(fused.Spectral, sig.Features.Spectral)

	fusedCombined := append(append(append([]float64{}, fused.Thermal...), fused.EM...), fused.Geometric...)
	sigCombined := append(append(append([]float64{}, sig.Features.Thermal...), sig.Features.EM...), sig.Features.Geometric...)
	featureCorrelation := cosineSimilarity(fusedCombined, sigCombined)

	absorptionMatch := cosineSimilarity(fused.EM, sig.Features.EM)

	score = spectralAngleWeight*spectralAngle +
		featureCorrelationWeight*featureCorrelation +
		absorptionMatchWeight*absorptionMatch

	return score, score >= SignatureMatchThreshold
}

// BestMatch scans candidates and returns the highest-scoring signature
// name and its score. If none match, matched is false and name is "".
func BestMatch(fused FusedFeatures, candidates []Signature) (name string, score float64, matched bool) {
	best := 0.0
	bestName := ""
	for _, sig := range candidates {
		s, ok := MatchSignature(fused, sig)
		if ok && s > best {
			best = s
			bestName = sig.Name
		}
	}
	return bestName, best, bestName != ""
}
