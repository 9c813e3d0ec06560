package render

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"

	"interviewer/internal/resume"
)

const schemaHeader = "# yaml-language-server: $schema=https://raw.githubusercontent.com/rendercv/rendercv/refs/tags/v2.3/schema.json\n"

// MarshalYAML 把分区编码为保持插入顺序的映射。
func (s Sections) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, section := range s {
		var entries yaml.Node
		if err := entries.Encode(section.Entries); err != nil {
			return nil, fmt.Errorf("encode section %s: %w", section.Title, err)
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: section.Title},
			&entries,
		)
	}
	return node, nil
}

// EncodeYAML 把渲染描述编码为 RenderCV 输入文件。
func EncodeYAML(d Description) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(schemaHeader)
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(d); err != nil {
		return nil, fmt.Errorf("encode render description: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("flush render description: %w", err)
	}
	return buf.Bytes(), nil
}

// Describe 等价于 EncodeYAML(ToDescription(c))。
func Describe(c resume.Content) ([]byte, error) {
	return EncodeYAML(ToDescription(c))
}
