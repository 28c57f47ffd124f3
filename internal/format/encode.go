package format

import (
	"fmt"
	"io"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/goccy/go-yaml"
)

// Encoding names accepted by Encode.
const (
	EncodingJSON = "json"
	EncodingYAML = "yaml"
)

// Encode writes v as indented JSON or as YAML, followed by a newline.
func Encode(w io.Writer, encoding string, v any) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(encoding) {
	case "", EncodingJSON:
		data, err = sonic.ConfigStd.MarshalIndent(v, "", "    ")
	case EncodingYAML, "yml":
		data, err = yaml.Marshal(v)
	default:
		return fmt.Errorf("unknown format %q: use json or yaml", encoding)
	}
	if err != nil {
		return fmt.Errorf("encode %s: %w", encoding, err)
	}

	if len(data) == 0 || data[len(data)-1] != '\n' {
		data = append(data, '\n')
	}
	_, err = w.Write(data)
	return err
}
