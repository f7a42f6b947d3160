// Package catalog loads unit tables: named units with their prefixed
// variants, equivalency sets, aliases and physical-type labels. An SI-style
// table is embedded and used by default.
package catalog

import (
	_ "embed"
	"sync"
)

//go:embed builtin.yaml
var builtinTable []byte

// BuiltinTable returns a copy of the embedded table source.
func BuiltinTable() []byte {
	return append([]byte(nil), builtinTable...)
}

// Builtin decodes the embedded table.
func Builtin() (*Table, error) {
	return Parse(builtinTable)
}

var (
	defaultCatalog     *Catalog
	defaultCatalogErr  error
	defaultCatalogOnce sync.Once
)

// Default returns the process-wide catalog built from the embedded table.
func Default() (*Catalog, error) {
	defaultCatalogOnce.Do(func() {
		t, err := Builtin()
		if err != nil {
			defaultCatalogErr = err
			return
		}
		defaultCatalog, defaultCatalogErr = Build(t)
	})
	return defaultCatalog, defaultCatalogErr
}
