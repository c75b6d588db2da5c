package analyze

import (
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// MarshalReport serializes a report to YAML.
func MarshalReport(r *Report) ([]byte, error) {
	data, err := yaml.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}

	return data, nil
}

// WriteTable prints one line per stored field: type, collection, key.
func WriteTable(w io.Writer, r *Report) error {
	for _, t := range r.Types {
		where := string(t.Role)
		if t.Collection != "" {
			where = t.Collection
		}

		if _, err := fmt.Fprintf(w, "%s (%s, %s)\n", t.Type, where, t.Discriminator); err != nil {
			return err
		}

		for _, f := range t.Fields {
			extra := f.Options
			if len(f.AlsoLoad) > 0 {
				extra = append(append([]string(nil), extra...), "alsoload="+strings.Join(f.AlsoLoad, "|"))
			}

			line := fmt.Sprintf("  %-20s %-20s %s", f.Key, f.Name, f.Type)
			if len(extra) > 0 {
				line += " [" + strings.Join(extra, ",") + "]"
			}

			if _, err := fmt.Fprintln(w, line); err != nil {
				return err
			}
		}
	}

	return nil
}
