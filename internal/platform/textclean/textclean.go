// Package textclean limpia texto libre ingresado por el operador
// (notas, resultados, descripciones) antes de persistirlo.
package textclean

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// bluemonday.Policy es seguro para uso concurrente una vez construido.
var strict = bluemonday.StrictPolicy()

// Clean quita todo markup y espacios sobrantes. El resultado es texto plano.
func Clean(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	// StrictPolicy escapa entidades; las devolvemos a texto plano.
	return strings.TrimSpace(html.UnescapeString(strict.Sanitize(s)))
}

// CleanPtr aplica Clean conservando nil.
func CleanPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := Clean(*s)
	return &v
}
