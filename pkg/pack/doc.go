// Package pack implements the build and load halves of the knowpack binary
// pack format: a self-contained artifact combining metadata, a lexicon, a
// positional inverted index, block payloads, and an optional int8-quantized
// semantic section.
//
// A pack is built once by Build and treated as immutable afterward. Mount
// parses a byte source into a read-only *Pack that can be queried concurrently
// without synchronization. Nothing in this package blocks except the single
// byte-acquisition step inside Mount and, when BuildOptions.SinkPath is set,
// Build's write of the output file.
package pack
