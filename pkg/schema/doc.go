// Package schema defines document types, their typed field schemas and the
// registry that resolves field paths against them.
//
// A field path names one field of one document type using the form
// "<doccode>.<fieldname>", for example "devis.prime_cee". Document codes are
// case-insensitive and always rendered lower-cased in paths.
//
// # Basic Usage
//
//	reg, err := schema.NewRegistry(devis, facture)
//	if err != nil {
//	    return err
//	}
//
//	field, err := reg.ResolveField("devis.prime_cee")
//	if errors.Is(err, schema.ErrInvalidFieldPath) {
//	    // unknown document type or field
//	}
//
// The registry is read-only once built and safe for concurrent use.
package schema
