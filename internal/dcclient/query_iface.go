package dcclient

import "github.com/tplgy/tgl-go/internal/query"

// Client implements internal/query's DCClient interface; asserted here so
// a signature drift on either side fails at compile time instead of at
// the first runtime type assertion.
var _ query.DCClient = (*Client)(nil)
