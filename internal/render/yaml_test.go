package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestEncodeYAMLKeepsSectionOrder(t *testing.T) {
	data, err := Describe(sampleContent())
	require.NoError(t, err)

	text := string(data)
	assert.True(t, strings.HasPrefix(text, "# yaml-language-server: $schema="))

	last := -1
	for _, title := range []string{
		SectionSummary, SectionEducation, SectionExperience,
		SectionProjects, SectionSkills, SectionCertifications,
	} {
		idx := strings.Index(text, title+":")
		require.GreaterOrEqual(t, idx, 0, title)
		assert.Greater(t, idx, last, title)
		last = idx
	}
}

func TestEncodeYAMLIsValidDocument(t *testing.T) {
	data, err := Describe(sampleContent())
	require.NoError(t, err)

	var doc struct {
		CV struct {
			Name     string                 `yaml:"name"`
			Phone    string                 `yaml:"phone"`
			Sections map[string][]yaml.Node `yaml:"sections"`
		} `yaml:"cv"`
		Design struct {
			Theme string `yaml:"theme"`
		} `yaml:"design"`
	}
	require.NoError(t, yaml.Unmarshal(data, &doc))
	assert.Equal(t, "李雷", doc.CV.Name)
	assert.Equal(t, "+86 138 0013 8000", doc.CV.Phone)
	assert.Equal(t, "classic", doc.Design.Theme)
	assert.Len(t, doc.CV.Sections, 6)
	assert.Len(t, doc.CV.Sections[SectionCertifications], 2)

	var exp struct {
		Company string `yaml:"company"`
		EndDate string `yaml:"end_date"`
	}
	require.NoError(t, doc.CV.Sections[SectionExperience][0].Decode(&exp))
	assert.Equal(t, "ACME", exp.Company)
	assert.Equal(t, "present", exp.EndDate)
}

func TestDescribeIsStable(t *testing.T) {
	a, err := Describe(sampleContent())
	require.NoError(t, err)
	b, err := Describe(sampleContent())
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
