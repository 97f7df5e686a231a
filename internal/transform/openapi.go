package transform

import (
	"fmt"
	"strings"

	"github.com/dnswlt/apicsync/internal/api"
	"github.com/getkin/kin-openapi/openapi3"
)

// AttachDefinition sets the definition of a to the given document and
// fills its description and OpenAPI version from the parsed document.
// The definition is kept even if the document cannot be parsed; the parse
// error is returned for logging.
func AttachDefinition(a *api.API, document []byte) error {
	a.Spec.Definition = string(document)
	return enrichFromOpenAPI(a, document)
}

func enrichFromOpenAPI(a *api.API, document []byte) error {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(document)
	if err != nil {
		return fmt.Errorf("parse OpenAPI document of %s: %w", a.GetRef(), err)
	}
	if doc.OpenAPI != "" {
		a.Metadata.SetAnnotation(api.AnnotOpenAPIVersion, doc.OpenAPI)
	}
	if doc.Info != nil {
		if d := strings.TrimSpace(doc.Info.Description); d != "" {
			a.Metadata.Description = firstLine(d)
		}
	}
	return nil
}

// firstLine returns s up to the first line break.
func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return strings.TrimSpace(line)
}
