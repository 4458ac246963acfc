// Package metadata provides the device metadata and configuration schema
// model used by protocol supports, plus codecs that convert device metadata
// to and from its serialised form.
//
// The model is descriptive only: it is exchanged between the registry,
// configuration UIs and the device catalogue, and is never validated here.
//
// # Codecs
//
// Every protocol support has exactly one mandatory Codec (JSON by default)
// and any number of auxiliary codecs (for example YAML, for hand-written
// product definitions).
//
//	codec := metadata.NewJSONCodec()
//	md, err := codec.Decode(ctx, raw)
package metadata
