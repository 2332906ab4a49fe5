// Package corpus implements the corpus tree from spec §4.6: a versioned
// vocabulary resource with parent/child tree edges stored inside each
// corpus record, cycle detection, order-preserving vocabulary aggregation,
// and cascade deletion wired through the version store's DependentsFunc
// hook. Grounded on teacher's repository.go tree-walk idiom (its
// collection/Commit graph traversal), generalized from a DAG of content-
// addressed commits to a parent/child tree of named vocabularies.
package corpus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"lexicore/codec"
	"lexicore/model"
	"lexicore/version"
)

// ErrCycleDetected is returned when adding a parent/child edge would create
// a cycle in the corpus tree (spec §7).
var ErrCycleDetected = errors.New("corpus: cycle detected")

// ErrHasChildren is returned by Delete when cascade=false and the corpus
// still has children.
var ErrHasChildren = errors.New("corpus: corpus has children")

// Store manages Corpus resources over a version.Store.
type Store struct {
	versions *version.Store
}

// New wires a corpus Store to the shared version store, and registers the
// corpus DependentsFunc so DeleteResource(cascade=true) on a corpus chain
// also removes its SearchIndex/TrieIndex/SemanticIndex records (spec §4.5
// "Cascade", §4.6 delete_corpus).
func New(versions *version.Store, dependents version.DependentsFunc) *Store {
	versions.RegisterDependents(model.ResourceCorpus, dependents)
	return &Store{versions: versions}
}

func key(id string) model.ResourceKey {
	return model.ResourceKey{Type: model.ResourceCorpus, ID: id}
}

// Save persists corpus, assigning an id if new and recomputing
// vocabulary_hash from the normalized vocabulary (spec §4.6 save_corpus).
func (s *Store) Save(ctx context.Context, c *model.Corpus) (*model.Corpus, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if c.CorpusID == "" {
		c.CorpusID = uuid.NewString()
	}

	hash, err := vocabularyHash(c.Vocabulary)
	if err != nil {
		return nil, err
	}
	c.VocabularyHash = hash

	rec, err := s.versions.Save(ctx, key(c.CorpusID), c, version.SaveOptions{})
	if err != nil {
		return nil, err
	}
	var saved model.Corpus
	if err := decodeCorpus(rec, &saved); err != nil {
		return nil, err
	}
	return &saved, nil
}

// Get loads the latest version of corpus_id, or nil if absent.
func (s *Store) Get(ctx context.Context, corpusID string) (*model.Corpus, error) {
	rec, err := s.versions.GetLatest(ctx, key(corpusID))
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}
	var c model.Corpus
	if err := decodeCorpus(rec, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// AddChild links childID under parentID. Both endpoints are re-saved under
// their own per-resource locks; per spec §4.6/§9 there is no cross-chain
// transaction, so a concurrent edit to both endpoints resolves
// last-writer-wins per endpoint.
func (s *Store) AddChild(ctx context.Context, parentID, childID string) error {
	if parentID == childID {
		return fmt.Errorf("%w: %s cannot be its own child", ErrCycleDetected, parentID)
	}

	wouldCycle, err := s.descendsFrom(ctx, childID, parentID)
	if err != nil {
		return err
	}
	if wouldCycle {
		return fmt.Errorf("%w: %s is an ancestor of %s", ErrCycleDetected, childID, parentID)
	}

	parent, err := s.Get(ctx, parentID)
	if err != nil {
		return err
	}
	if parent == nil {
		return fmt.Errorf("corpus: parent %s not found", parentID)
	}
	child, err := s.Get(ctx, childID)
	if err != nil {
		return err
	}
	if child == nil {
		return fmt.Errorf("corpus: child %s not found", childID)
	}

	if !containsString(parent.ChildCorpusIDs, childID) {
		parent.ChildCorpusIDs = append(parent.ChildCorpusIDs, childID)
	}
	child.ParentCorpusID = parentID

	if _, err := s.Save(ctx, parent); err != nil {
		return err
	}
	if _, err := s.Save(ctx, child); err != nil {
		return err
	}
	return nil
}

// descendsFrom reports whether candidateAncestor is already a descendant of
// root — i.e. whether linking root as a child of candidateAncestor would
// close a cycle.
func (s *Store) descendsFrom(ctx context.Context, root, candidateAncestor string) (bool, error) {
	visited := map[string]bool{}
	var walk func(id string) (bool, error)
	walk = func(id string) (bool, error) {
		if id == candidateAncestor {
			return true, nil
		}
		if visited[id] {
			return false, nil
		}
		visited[id] = true
		c, err := s.Get(ctx, id)
		if err != nil || c == nil {
			return false, err
		}
		for _, child := range c.ChildCorpusIDs {
			found, err := walk(child)
			if err != nil || found {
				return found, err
			}
		}
		return false, nil
	}
	return walk(root)
}

// Tree is the materialized parent/child structure returned by GetTree.
type Tree struct {
	Corpus   *model.Corpus
	Children []*Tree
}

// GetTree recursively traverses the corpus tree rooted at rootID.
func (s *Store) GetTree(ctx context.Context, rootID string) (*Tree, error) {
	c, err := s.Get(ctx, rootID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, nil
	}
	t := &Tree{Corpus: c}
	for _, childID := range c.ChildCorpusIDs {
		childTree, err := s.GetTree(ctx, childID)
		if err != nil {
			return nil, err
		}
		if childTree != nil {
			t.Children = append(t.Children, childTree)
		}
	}
	return t, nil
}

// AggregateVocabularies unions all descendant vocabularies into rootID,
// order-preserving by first occurrence (spec §4.6, R3), and writes the
// result back as a new version of the root with a recomputed
// vocabulary_hash.
func (s *Store) AggregateVocabularies(ctx context.Context, rootID string) (*model.Corpus, error) {
	tree, err := s.GetTree(ctx, rootID)
	if err != nil {
		return nil, err
	}
	if tree == nil {
		return nil, fmt.Errorf("corpus: %s not found", rootID)
	}

	seen := map[string]bool{}
	var vocab, original []string
	var collect func(t *Tree)
	collect = func(t *Tree) {
		for i, term := range t.Corpus.Vocabulary {
			norm := Normalize(term)
			if seen[norm] {
				continue
			}
			seen[norm] = true
			vocab = append(vocab, norm)
			if i < len(t.Corpus.OriginalVocabulary) {
				original = append(original, t.Corpus.OriginalVocabulary[i])
			} else {
				original = append(original, term)
			}
		}
		for _, child := range t.Children {
			collect(child)
		}
	}
	collect(tree)

	root := tree.Corpus
	root.Vocabulary = vocab
	root.OriginalVocabulary = original
	return s.Save(ctx, root)
}

// Delete removes corpusID. With cascade=false, it is rejected if the corpus
// still has children; with cascade=true, descendants and dependent indices
// are removed first (spec §4.6 delete_corpus).
func (s *Store) Delete(ctx context.Context, corpusID string, cascade bool) error {
	c, err := s.Get(ctx, corpusID)
	if err != nil {
		return err
	}
	if c == nil {
		return nil
	}
	if !cascade && len(c.ChildCorpusIDs) > 0 {
		return fmt.Errorf("%w: %s", ErrHasChildren, corpusID)
	}
	if cascade {
		for _, childID := range c.ChildCorpusIDs {
			if err := s.Delete(ctx, childID, cascade); err != nil {
				return err
			}
		}
	}
	return s.versions.DeleteResource(ctx, key(corpusID), cascade)
}

// IsStale reports whether an index's stored vocabulary hash no longer
// matches corpusID's current hash (spec §4.6 "Change detection", P8).
func (s *Store) IsStale(ctx context.Context, corpusID, indexVocabularyHash string) (bool, error) {
	c, err := s.Get(ctx, corpusID)
	if err != nil {
		return false, err
	}
	if c == nil {
		return true, nil
	}
	return c.VocabularyHash != indexVocabularyHash, nil
}

func vocabularyHash(vocabulary []string) (string, error) {
	sorted := append([]string(nil), vocabulary...)
	sort.Strings(sorted)
	return codec.Hash(sorted)
}

func containsString(items []string, target string) bool {
	for _, item := range items {
		if item == target {
			return true
		}
	}
	return false
}

func decodeCorpus(rec *model.VersionRecord, out *model.Corpus) error {
	return json.Unmarshal(rec.Content(), out)
}
