package model

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/cases"
)

var registry = map[string]func() Model{
	"catalysis":      func() Model { return NewCatalysis() },
	"catalysis-full": func() Model { return NewCatalysisFull() },
}

// Lookup returns a new instance of the named model. Names are matched
// case-insensitively.
func Lookup(name string) (Model, error) {
	key := cases.Fold().String(strings.TrimSpace(name))
	ctor, ok := registry[key]
	if !ok {
		return nil, fmt.Errorf("%q (known: %s): %w", name, strings.Join(Names(), ", "), ErrUnknownModel)
	}
	return ctor(), nil
}

// Names lists the registered model names.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
