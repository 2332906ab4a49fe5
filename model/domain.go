package model

// Domain records are persisted via the version store and treated as opaque
// payloads by the core (spec §3) — only resource_id and inter-record
// references by id are visible here. Cross-references are always by id,
// never cyclic object graphs, generalizing the Word<->Definition<->Example
// cycle flagged in spec §9.

// Word is a headword entry in a dictionary-typed resource chain.
type Word struct {
	ResourceID      string   `json:"resource_id"`
	Term            string   `json:"term"`
	Language        string   `json:"language"`
	DefinitionIDs   []string `json:"definition_ids,omitempty"`
	PronunciationID string   `json:"pronunciation_id,omitempty"`
}

// Definition is a sense of a Word, referencing its owner and examples by id.
type Definition struct {
	ResourceID string   `json:"resource_id"`
	WordID     string   `json:"word_id"`
	Gloss      string   `json:"gloss"`
	PartOfSpeech string `json:"part_of_speech,omitempty"`
	ExampleIDs []string `json:"example_ids,omitempty"`
}

// Example is a usage example for a Definition.
type Example struct {
	ResourceID   string `json:"resource_id"`
	DefinitionID string `json:"definition_id"`
	Text         string `json:"text"`
	Source       string `json:"source,omitempty"`
}

// Pronunciation is a phonetic transcription for a Word.
type Pronunciation struct {
	ResourceID string `json:"resource_id"`
	WordID     string `json:"word_id"`
	IPA        string `json:"ipa"`
	AudioURL   string `json:"audio_url,omitempty"`
}

// CorpusType is a closed enum naming a corpus's category (spec §3).
type CorpusType string

const (
	CorpusLanguage   CorpusType = "language"
	CorpusLiterature CorpusType = "literature"
	CorpusLexicon    CorpusType = "lexicon"
	CorpusCustom     CorpusType = "custom"
)

// Corpus is a versioned vocabulary with parent/child tree edges (spec §3).
type Corpus struct {
	CorpusID             string         `json:"corpus_id"`
	CorpusName           string         `json:"corpus_name"`
	CorpusType           CorpusType     `json:"corpus_type"`
	Language             string         `json:"language"`
	Vocabulary           []string       `json:"vocabulary"`
	OriginalVocabulary   []string       `json:"original_vocabulary"`
	VocabularyHash       string         `json:"vocabulary_hash"`
	ParentCorpusID       string         `json:"parent_corpus_id,omitempty"`
	ChildCorpusIDs       []string       `json:"child_corpus_ids,omitempty"`
	IsMaster             bool           `json:"is_master"`
	WordFrequencies      map[string]int `json:"word_frequencies,omitempty"`
	LemmatizedVocabulary []string       `json:"lemmatized_vocabulary,omitempty"`
}

// Validate checks the corpus invariants from spec §3.
func (c *Corpus) Validate() error {
	if len(c.Vocabulary) != len(c.OriginalVocabulary) {
		return ErrCorpusVocabularyMismatch
	}
	if len(c.LemmatizedVocabulary) > 0 && len(c.LemmatizedVocabulary) != len(c.Vocabulary) {
		return ErrCorpusVocabularyMismatch
	}
	return nil
}

// TrieIndex is the persisted layout of the trie/prefix index (spec §3).
type TrieIndex struct {
	CorpusID             string         `json:"corpus_id"`
	VocabularyHash       string         `json:"vocabulary_hash"`
	TrieData             []string       `json:"trie_data"`
	WordFrequencies      map[string]int `json:"word_frequencies,omitempty"`
	NormalizedToOriginal map[string]string `json:"normalized_to_original,omitempty"`
	MaxFrequency         int            `json:"max_frequency"`
	WordCount            int            `json:"word_count"`
	BuildTimeSeconds     float64        `json:"build_time_seconds"`
}

// SemanticIndex is the persisted layout of the semantic/ANN index (spec §3).
// The embedding matrix is stored as an external blob named by
// EmbeddingBlobKey. The ANN graph is not persisted: it is rebuilt from the
// embedding matrix on load, and ANNBlobKey holds the same key as
// EmbeddingBlobKey.
type SemanticIndex struct {
	CorpusID             string  `json:"corpus_id"`
	ModelName            string  `json:"model_name"`
	VocabularyHash       string  `json:"vocabulary_hash"`
	Vocabulary           []string `json:"vocabulary"`
	LemmatizedVocabulary []string `json:"lemmatized_vocabulary,omitempty"`
	Dimension            int     `json:"dimension"`
	QuantizationTier     string  `json:"quantization_tier"`
	EmbeddingBlobKey     string  `json:"embedding_blob_key"`
	ANNBlobKey           string  `json:"ann_blob_key"`
	VariantMapping       map[int]int   `json:"variant_mapping,omitempty"`
	LemmaToEmbeddings    map[int][]int `json:"lemma_to_embeddings,omitempty"`
	BuildTimeSeconds     float64 `json:"build_time_seconds"`
}

// SearchIndex is the persisted layout referencing the tier sub-indices
// (spec §3).
type SearchIndex struct {
	CorpusID       string  `json:"corpus_id"`
	VocabularyHash string  `json:"vocabulary_hash"`
	TrieRef        string  `json:"trie_ref,omitempty"`
	SemanticRef    string  `json:"semantic_ref,omitempty"`
	HasTrie        bool    `json:"has_trie"`
	HasFuzzy       bool    `json:"has_fuzzy"`
	HasSemantic    bool    `json:"has_semantic"`
	SemanticModel  string  `json:"semantic_model,omitempty"`
	MinScore       float64 `json:"min_score"`
	VocabularySize int     `json:"vocabulary_size"`
}

// PipelineStage names a named step in a progress-tracked pipeline (spec §3).
type PipelineStage string

const (
	StageStart               PipelineStage = "START"
	StageSearchStart          PipelineStage = "SEARCH_START"
	StageProviderFetchStart   PipelineStage = "PROVIDER_FETCH_START"
	StageSynthesizeStart      PipelineStage = "SYNTHESIZE_START"
	StageComplete             PipelineStage = "COMPLETE"
	StageError                PipelineStage = "ERROR"
)

// PipelineState is a single progress snapshot (spec §3).
type PipelineState struct {
	Stage      PipelineStage  `json:"stage"`
	Progress   int            `json:"progress"`
	Message    string         `json:"message,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	IsComplete bool           `json:"is_complete"`
	Error      string         `json:"error,omitempty"`
}
