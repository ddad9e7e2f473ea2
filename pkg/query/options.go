package query

import pkgerrors "github.com/knowpack-dev/knowpack/internal/errors"

// SemanticMode controls whether Query attempts a semantic rerank pass.
type SemanticMode string

const (
	// SemanticAuto reranks the top candidates with the semantic section
	// when the pack has one and the lexical confidence of the ranking is
	// below Options.MinLexConfidence; it silently skips the pass otherwise.
	SemanticAuto SemanticMode = "auto"
	// SemanticForce requires a semantic section; Query returns
	// errors.KindSemanticMissing if the mounted pack lacks one.
	SemanticForce SemanticMode = "force"
	// SemanticOff never attempts a semantic rerank.
	SemanticOff SemanticMode = "off"
)

// Options configures one Query call.
type Options struct {
	// TopK bounds the number of hits returned after diversification.
	TopK int

	// MinScore drops candidates whose pre-diversification score falls below
	// this value.
	MinScore float64

	// Namespaces, if non-empty, restricts candidates to blocks whose
	// (normalized) Namespace matches one of these.
	Namespaces []string

	// Source, if non-empty, restricts candidates to blocks whose
	// (normalized) DocID matches one of these.
	Source []string

	// RequirePhrases are additional phrases (tokenized the same way as the
	// query text) that must contiguously match a block, combined with any
	// quoted phrases already present in the query text.
	RequirePhrases []string

	// Expand enables deterministic pseudo-relevance query expansion when
	// the initial candidate set is non-empty.
	Expand bool

	// ExpansionDocs is the number of top-ranked blocks pooled for term
	// candidates; 0 defaults to 3.
	ExpansionDocs int

	// ExpansionTerms is the number of expansion terms kept after ranking by
	// accumulated weight; 0 defaults to 4.
	ExpansionTerms int

	// ExpansionWeight dampens every expansion term's contribution relative
	// to a literal query term match; 0 defaults to 0.35.
	ExpansionWeight float64

	// ExpansionMinTermLength is the minimum normalized term length eligible
	// for expansion; 0 defaults to 3.
	ExpansionMinTermLength int

	// Semantic controls the optional semantic rerank pass.
	Semantic SemanticMode

	// SemanticTopN bounds how many top-scoring candidates are eligible for
	// semantic rerank; 0 defaults to 50.
	SemanticTopN int

	// MinLexConfidence gates SemanticAuto: the rerank only fires when the
	// lexical confidence of the current ranking falls below this value.
	// 0 defaults to 0.35. Ignored when Semantic is SemanticForce.
	MinLexConfidence float64

	// BlendEnabled selects whether the semantic rerank blends lexical and
	// semantic scores (the default) or replaces the score with semantic
	// similarity alone. nil defaults to true.
	BlendEnabled *bool

	// BlendWLex and BlendWSem weight the lexical and semantic components of
	// the blend; both zero defaults to 0.75/0.25.
	BlendWLex float64
	BlendWSem float64

	// QueryEmbedding is the caller-computed embedding of the query text,
	// required whenever the rerank runs (under SemanticForce, and under
	// SemanticAuto when the confidence gate fires); Query returns a
	// validation error if it is empty then. Computing it is the caller's concern;
	// this package never calls out to an embedding model.
	QueryEmbedding []float32

	// Diversify enables the MMR diversification pass (C7). When false,
	// Query returns hits in plain score order.
	Diversify bool

	// MMRLambda trades relevance against diversity during diversification;
	// 0 defaults to 0.8.
	MMRLambda float64

	// SimThreshold is the jaccard5 similarity above which a candidate is
	// skipped as a near-duplicate during diversification; 0 defaults to 0.92.
	SimThreshold float64
}

const (
	defaultTopK                   = 10
	defaultMMRLambda              = 0.8
	defaultSimThreshold           = 0.92
	defaultExpansionDocs          = 3
	defaultExpansionTerms         = 4
	defaultExpansionWeight        = 0.35
	defaultExpansionMinTermLength = 3
	defaultSemanticTopN           = 50
	defaultMinLexConfidence       = 0.35
	defaultBlendWLex              = 0.75
	defaultBlendWSem              = 0.25
)

// withDefaults returns a copy of opts with zero-valued knobs replaced by
// their documented defaults.
func (o Options) withDefaults() Options {
	if o.TopK <= 0 {
		o.TopK = defaultTopK
	}
	if o.Semantic == "" {
		o.Semantic = SemanticAuto
	}
	if o.MMRLambda <= 0 {
		o.MMRLambda = defaultMMRLambda
	}
	if o.SimThreshold <= 0 {
		o.SimThreshold = defaultSimThreshold
	}
	if o.ExpansionDocs <= 0 {
		o.ExpansionDocs = defaultExpansionDocs
	}
	if o.ExpansionTerms <= 0 {
		o.ExpansionTerms = defaultExpansionTerms
	}
	if o.ExpansionWeight <= 0 {
		o.ExpansionWeight = defaultExpansionWeight
	}
	if o.ExpansionMinTermLength <= 0 {
		o.ExpansionMinTermLength = defaultExpansionMinTermLength
	}
	if o.SemanticTopN <= 0 {
		o.SemanticTopN = defaultSemanticTopN
	}
	if o.MinLexConfidence <= 0 {
		o.MinLexConfidence = defaultMinLexConfidence
	}
	if o.BlendWLex <= 0 && o.BlendWSem <= 0 {
		o.BlendWLex = defaultBlendWLex
		o.BlendWSem = defaultBlendWSem
	}
	return o
}

// blendEnabled reports whether the semantic rerank should blend lexical and
// semantic scores (true) or replace the score with similarity alone.
func (o Options) blendEnabled() bool {
	if o.BlendEnabled == nil {
		return true
	}
	return *o.BlendEnabled
}

// ValidateOptions checks opts for internal consistency, independent of any
// particular pack. Query calls this itself; callers may call it earlier to
// surface a bad request before mounting a pack.
func ValidateOptions(opts Options) error {
	if opts.TopK < 0 {
		return pkgerrors.Invalid("top_k", "must not be negative")
	}
	switch opts.Semantic {
	case "", SemanticAuto, SemanticForce, SemanticOff:
	default:
		return pkgerrors.Invalid("semantic", "must be one of \"auto\", \"force\", \"off\"")
	}
	if opts.MMRLambda < 0 || opts.MMRLambda > 1 {
		return pkgerrors.Invalid("mmr_lambda", "must be between 0 and 1")
	}
	if opts.SimThreshold < 0 || opts.SimThreshold > 1 {
		return pkgerrors.Invalid("sim_threshold", "must be between 0 and 1")
	}
	if opts.MinLexConfidence < 0 || opts.MinLexConfidence > 1 {
		return pkgerrors.Invalid("min_lex_confidence", "must be between 0 and 1")
	}
	if opts.ExpansionDocs < 0 {
		return pkgerrors.Invalid("query_expansion.docs", "must not be negative")
	}
	if opts.ExpansionTerms < 0 {
		return pkgerrors.Invalid("query_expansion.terms", "must not be negative")
	}
	if opts.SemanticTopN < 0 {
		return pkgerrors.Invalid("semantic.top_n", "must not be negative")
	}
	return nil
}
