package providers

import "context"

// Static is an illustrative stub Provider backed by an in-memory map,
// standing in for a real scraper/API/bulk-import connector in tests and
// examples (spec §6: "The core does not care how it is implemented").
type Static struct {
	name    string
	entries map[string]*Entry
}

// NewStatic builds a Static provider named name, serving entries from the
// given word -> Entry map.
func NewStatic(name string, entries map[string]*Entry) *Static {
	return &Static{name: name, entries: entries}
}

func (s *Static) Name() string { return s.name }

func (s *Static) Fetch(_ context.Context, word string) (*Entry, error) {
	entry, ok := s.entries[word]
	if !ok {
		return nil, nil
	}
	return entry, nil
}
