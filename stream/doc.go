// Package stream validates oversized TISS documents with bounded memory.
//
// The input is read in fixed-size windows through a charset decoder and
// appended to a rolling buffer. After each window the buffer is scanned for
// complete guide elements (<guiaConsulta>...</guiaConsulta>, optionally
// namespace-prefixed); each guide is parsed and run through the pipeline on
// its own, in the guide pass. Text outside guides is kept as the envelope,
// which is validated once at the end in the envelope pass so that
// structural and version findings match those of a whole-document run.
//
// Basic usage:
//
//	proc := stream.NewProcessor(pipe, opts)
//	result := proc.Process(ctx, file, size, pctx, func(f float64) {
//	    fmt.Printf("%.0f%%\n", f*100)
//	})
//
// Guides that grow beyond twice the window size are dropped with a
// CHUNK_PARSE_ERROR finding and the buffer is trimmed to a short tail.
// Only one boundary pattern (elements named guia followed by an upper case
// letter) is recognised; documents mixing other top-level kinds are
// validated as part of the envelope.
package stream
