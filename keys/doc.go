// Package keys defines keyword dictionaries: named, versioned
// collections of Keys that map a keyword name onto its ordered value
// type signature. Dictionaries drive both reply validation (the KeyVar
// cache) and command validation (CmdSpec format templates).
//
// Dictionaries are declarative TOML documents loaded through a
// Registry, which caches them process-wide by name; reloads are
// explicit. A SHA-256 checksum of the source file is recorded on each
// loaded dictionary so callers can detect changes independently of the
// declared version.
package keys
