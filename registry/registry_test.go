package registry_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"lexicore/model"
	"lexicore/registry"
)

func TestRegisterThenNewBuildsFreshValue(t *testing.T) {
	r := registry.New()
	require.NoError(t, r.Register(model.ResourceDictionary, func() any { return &model.Word{} }))

	v, err := r.New(model.ResourceDictionary)
	require.NoError(t, err)
	_, ok := v.(*model.Word)
	require.True(t, ok)
}

func TestDuplicateRegistrationIsAnError(t *testing.T) {
	r := registry.New()
	require.NoError(t, r.Register(model.ResourceDictionary, func() any { return &model.Word{} }))

	err := r.Register(model.ResourceDictionary, func() any { return &model.Word{} })
	require.ErrorIs(t, err, registry.ErrAlreadyRegistered)
}

func TestNewOnUnregisteredTypeReturnsUnknownResourceType(t *testing.T) {
	r := registry.New()
	_, err := r.New(model.ResourceLanguage)
	require.True(t, errors.Is(err, registry.ErrUnknownResourceType))
}

func TestMustRegisterPanicsOnDuplicate(t *testing.T) {
	r := registry.New()
	r.MustRegister(model.ResourceCorpus, func() any { return &model.Corpus{} })
	require.Panics(t, func() {
		r.MustRegister(model.ResourceCorpus, func() any { return &model.Corpus{} })
	})
}

func TestHasAndTypesReflectRegistrations(t *testing.T) {
	r := registry.New()
	require.False(t, r.Has(model.ResourceTrie))
	require.NoError(t, r.Register(model.ResourceTrie, func() any { return &model.TrieIndex{} }))
	require.NoError(t, r.Register(model.ResourceSemantic, func() any { return &model.SemanticIndex{} }))
	require.True(t, r.Has(model.ResourceTrie))

	require.Equal(t, []model.ResourceType{model.ResourceSemantic, model.ResourceTrie}, r.Types())
}

func TestDefaultRegistersAllBuiltinTypes(t *testing.T) {
	r := registry.Default()
	for _, rt := range []model.ResourceType{
		model.ResourceDictionary, model.ResourceCorpus, model.ResourceTrie,
		model.ResourceSemantic, model.ResourceSearch,
	} {
		require.True(t, r.Has(rt), "expected %s to be registered by default", rt)
	}
}
