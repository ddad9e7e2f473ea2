package pack

// Metadata is the persisted header describing a pack's shape and the corpus
// statistics BM25L scoring needs at query time.
type Metadata struct {
	Version      uint32  `json:"version"`
	BlockCount   uint32  `json:"blockCount"`
	TermCount    uint32  `json:"termCount"`
	AvgBlockLen  float64 `json:"avgBlockLen"`
	HasSemantic  bool    `json:"hasSemantic"`
	SemanticDims uint32  `json:"semanticDims,omitempty"`
	BuildTag     string  `json:"buildTag,omitempty"`
}

// semanticDescriptor is the persisted header for the optional semantic
// section: quantization parameters and the byte layout of the blob that
// follows it (vectors first, then per-row float16 scales).
type semanticDescriptor struct {
	Version        int                 `json:"version"`
	ModelID        string              `json:"modelId,omitempty"`
	Dims           uint32              `json:"dims"`
	Encoding       string              `json:"encoding"`
	PerVectorScale bool                `json:"perVectorScale"`
	Blocks         semanticBlockLayout `json:"blocks"`
}

// semanticBlockLayout describes the two byte ranges inside the semantic
// blob: the int8 vector matrix and the float16 per-row scales.
type semanticBlockLayout struct {
	Vectors semanticRegion `json:"vectors"`
	Scales  semanticRegion `json:"scales"`
}

// semanticRegion is a byte range within the semantic blob.
type semanticRegion struct {
	ByteOffset uint32 `json:"byteOffset"`
	Length     uint32 `json:"length"`
	Encoding   string `json:"encoding,omitempty"`
}
