package metadata

import (
	"bytes"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// DescriptorFile is the per-package metadata file name
const DescriptorFile = "info.toml"

// Descriptor is the content of info.toml
type Descriptor struct {
	DisplayName string `toml:"display_name" json:"display_name,omitempty" yaml:"display_name,omitempty"`
	Authors     string `toml:"authors" json:"authors,omitempty" yaml:"authors,omitempty"`
	Version     string `toml:"version" json:"version,omitempty" yaml:"version,omitempty"`
	Category    string `toml:"category" json:"category,omitempty" yaml:"category,omitempty"`
	URL         string `toml:"url" json:"url,omitempty" yaml:"url,omitempty"`
	Description string `toml:"description" json:"description,omitempty" yaml:"description,omitempty"`
}

// Encode renders the descriptor as key = "value" lines, skipping empty
// fields. The description is written as a triple-quoted block.
func (d *Descriptor) Encode() []byte {
	var buf bytes.Buffer
	for _, kv := range []struct{ key, value string }{
		{"display_name", d.DisplayName},
		{"authors", d.Authors},
		{"version", d.Version},
		{"category", d.Category},
		{"url", d.URL},
	} {
		if kv.value == "" {
			continue
		}
		buf.WriteString(kv.key)
		buf.WriteString(` = "`)
		buf.WriteString(escapeBasic(kv.value))
		buf.WriteString("\"\n")
	}
	if d.Description != "" {
		buf.WriteString("description = \"\"\"\n")
		buf.WriteString(escapeMultiline(d.Description))
		buf.WriteString("\"\"\"\n")
	}
	return buf.Bytes()
}

// Empty reports whether no field is set
func (d *Descriptor) Empty() bool {
	return *d == Descriptor{}
}

var basicEscaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	"\n", `\n`,
	"\r", `\r`,
	"\t", `\t`,
)

func escapeBasic(s string) string {
	return basicEscaper.Replace(s)
}

func escapeMultiline(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"""`, `""\"`)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	if !strings.HasSuffix(s, "\n") {
		s += "\n"
	}
	return s
}

// WriteDescriptor writes d to path
func WriteDescriptor(path string, d *Descriptor) error {
	return os.WriteFile(path, d.Encode(), 0644)
}

// ReadDescriptor parses an info.toml file
func ReadDescriptor(path string) (*Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var d Descriptor
	if err := toml.Unmarshal(data, &d); err != nil {
		return nil, err
	}
	d.Description = strings.TrimRight(d.Description, "\n")
	return &d, nil
}
