package registry

import "lexicore/model"

// Default builds a Registry pre-populated with the constructors for
// every resource_type this module defines (spec §3). Callers that add
// their own resource types register them alongside these at startup.
func Default() *Registry {
	r := New()
	r.MustRegister(model.ResourceDictionary, func() any { return &model.Word{} })
	r.MustRegister(model.ResourceCorpus, func() any { return &model.Corpus{} })
	r.MustRegister(model.ResourceTrie, func() any { return &model.TrieIndex{} })
	r.MustRegister(model.ResourceSemantic, func() any { return &model.SemanticIndex{} })
	r.MustRegister(model.ResourceSearch, func() any { return &model.SearchIndex{} })
	return r
}
