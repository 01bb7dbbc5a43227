// Package tissvalidator validates TISS healthcare-billing documents.
//
// TISS is the XML exchange standard mandated by ANS for claims sent from
// healthcare providers to health insurers. Documents are deeply nested,
// carry the "ans:" namespace prefix and can reach tens of megabytes when a
// provider batches thousands of guides in a single lot.
//
// # Quick Start
//
//	import (
//	    tv "github.com/tissguard/validator"
//	    "github.com/tissguard/validator/engine"
//	    "github.com/tissguard/validator/terminology"
//	)
//
//	store := terminology.NewMemoryStore()
//	v := engine.New(store, tv.WithLookupConcurrency(16))
//
//	result := v.ValidateBytes(ctx, data, tv.DefaultSettings())
//	if !result.Valid {
//	    for _, f := range result.Findings {
//	        fmt.Println(f)
//	    }
//	}
//
// # Rules
//
// Rules run in stages, each stage covering one aspect of a TISS document:
//
//   - Structure: root, header, mandatory header fields and message body
//   - Format: 8-digit TUSS procedure codes, TISS protocol version
//   - Reference: TUSS codes exist in the imported reference table
//   - Business: guide number, future dates, negative amounts, clinical indication
//
// # Large files
//
// Inputs larger than Options.LargeFileThreshold are validated guide by guide
// by the stream package, which keeps peak memory bounded by a few windows
// regardless of file size.
package tissvalidator
