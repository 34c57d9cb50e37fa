package utils

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"

	"github.com/edisonguo/jet"
)

// RenderTemplate executes the jet template templatePath with data.
func RenderTemplate(w io.Writer, templatePath string, data interface{}) error {
	view := jet.NewSet(jet.SafeWriter(func(w io.Writer, b []byte) {
		w.Write(b)
	}), filepath.Dir(templatePath), "/")

	template, err := view.GetTemplate(filepath.Base(templatePath))
	if err != nil {
		return fmt.Errorf("Error trying to parse template %s: %v", templatePath, err)
	}

	var buf bytes.Buffer
	vars := make(jet.VarMap)
	if err = template.Execute(&buf, vars, data); err != nil {
		return fmt.Errorf("Error executing template: %v", err)
	}
	_, err = w.Write(buf.Bytes())
	return err
}
