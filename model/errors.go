package model

import "errors"

// ErrCorpusVocabularyMismatch is returned when a Corpus violates the
// len(vocabulary) == len(original_vocabulary) invariant (spec §3).
var ErrCorpusVocabularyMismatch = errors.New("model: vocabulary and original_vocabulary length mismatch")
