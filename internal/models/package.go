package models

// Package identifies a package exported by a dump. Dumps providing the same
// package identity can answer cross-repository definition requests.
type Package struct {
	Scheme  string `json:"scheme"`
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Reference identifies a package that a dump depends on.
type Reference struct {
	Scheme  string `json:"scheme"`
	Name    string `json:"name"`
	Version string `json:"version"`
}
