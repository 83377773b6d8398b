package main

import (
	"fmt"
	"io"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// textRenderer is implemented by results with a human readable form
type textRenderer interface {
	renderText(w io.Writer) error
}

func render(w io.Writer, format string, v any) error {
	switch format {
	case "json":
		out, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling json: %w", err)
		}
		_, err = fmt.Fprintln(w, string(out))
		return err
	case "yaml":
		out, err := yaml.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshaling yaml: %w", err)
		}
		_, err = w.Write(out)
		return err
	case "text", "":
		if tr, ok := v.(textRenderer); ok {
			return tr.renderText(w)
		}
		_, err := fmt.Fprintf(w, "%+v\n", v)
		return err
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
