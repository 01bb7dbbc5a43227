// Package walker locates fields in a normalized TISS document tree.
//
// TISS rules are written against field names rather than absolute paths:
// a procedure code may sit under guiaSP-SADT, guiaConsulta or a nested
// procedimentosExecutados block depending on the guide type and version.
// The walker therefore searches the whole tree and reports every match
// together with a human readable location.
//
// # Traversal Order
//
// Walk visits fields in document pre-order. A repeated element is visited
// once per item, with a 1-based index on the segment:
//
//	mensagemTISS > prestadorParaOperadora > loteGuias > guiasTISS > guiaSP-SADT[2] > numeroGuiaPrestador
//
// The same tree always yields the same hits in the same order.
//
// # Usage
//
//	for _, hit := range walker.Find(root, "codigoProcedimento") {
//	    fmt.Println(hit.Value, hit.Location())
//	}
//
//	if hit, ok := walker.First(root, "padrao"); ok {
//	    version = hit.Value
//	}
//
// # Thread Safety
//
// Trees are immutable, so any number of goroutines may walk the same tree.
package walker
