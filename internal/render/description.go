// Package render 把简历内容转换为 RenderCV 的渲染描述，并通过外部流水线生成 PDF。
package render

import (
	"strings"
	"unicode"

	"interviewer/internal/resume"
)

// 分区标题，输出顺序即下面的声明顺序。
const (
	SectionSummary        = "个人简介"
	SectionEducation      = "教育经历"
	SectionExperience     = "工作经历"
	SectionProjects       = "项目经历"
	SectionSkills         = "技能特长"
	SectionCertifications = "证书资质"
)

const (
	placeholderName  = "未命名"
	defaultSkillName = "技能"
	ongoing          = "present"
	defaultTheme     = "classic"
	defaultPageSize  = "a4"
)

// ongoingMarkers 是表示“至今”的取值，统一输出为 present。
var ongoingMarkers = map[string]struct{}{
	"present": {},
	"now":     {},
	"ongoing": {},
	"至今":      {},
}

// Description 是交给 RenderCV 的文档结构。
type Description struct {
	CV     CV     `yaml:"cv"`
	Design Design `yaml:"design"`
}

// CV 是联系信息与有序分区。
type CV struct {
	Name     string   `yaml:"name"`
	Location string   `yaml:"location,omitempty"`
	Email    string   `yaml:"email,omitempty"`
	Phone    string   `yaml:"phone,omitempty"`
	Website  string   `yaml:"website,omitempty"`
	Sections Sections `yaml:"sections,omitempty"`
}

// Section 是一个带标题的条目列表，Entries 的元素类型由分区决定。
type Section struct {
	Title   string
	Entries []any
}

// Sections 按插入顺序编码为 YAML 映射。
type Sections []Section

// EducationEntry 对应 RenderCV 的 EducationEntry。
type EducationEntry struct {
	Institution string   `yaml:"institution"`
	Area        string   `yaml:"area,omitempty"`
	Degree      string   `yaml:"degree,omitempty"`
	StartDate   string   `yaml:"start_date,omitempty"`
	EndDate     string   `yaml:"end_date"`
	Highlights  []string `yaml:"highlights,omitempty"`
}

// ExperienceEntry 对应 RenderCV 的 ExperienceEntry。
type ExperienceEntry struct {
	Company    string   `yaml:"company"`
	Position   string   `yaml:"position,omitempty"`
	StartDate  string   `yaml:"start_date,omitempty"`
	EndDate    string   `yaml:"end_date"`
	Highlights []string `yaml:"highlights,omitempty"`
}

// ProjectEntry 对应 RenderCV 的 NormalEntry。
type ProjectEntry struct {
	Name       string   `yaml:"name"`
	Summary    string   `yaml:"summary,omitempty"`
	Highlights []string `yaml:"highlights,omitempty"`
}

// SkillEntry 对应 RenderCV 的 OneLineEntry。
type SkillEntry struct {
	Label   string `yaml:"label"`
	Details string `yaml:"details"`
}

// BulletEntry 对应 RenderCV 的 BulletEntry。
type BulletEntry struct {
	Bullet string `yaml:"bullet"`
}

// Design 只控制主题与纸张。
type Design struct {
	Theme string `yaml:"theme"`
	Page  Page   `yaml:"page"`
}

type Page struct {
	Size string `yaml:"size"`
}

// ToDescription 是纯函数：相同输入总是得到相同输出，不做任何 I/O。
// 缺少关键字段的条目被跳过，空分区不输出。
func ToDescription(c resume.Content) Description {
	cv := CV{
		Name:     orDefault(c.FullName, placeholderName),
		Location: strings.TrimSpace(c.Location),
		Email:    normalizeEmail(c.Email),
		Phone:    NormalizePhone(c.Phone),
		Website:  strings.TrimSpace(c.Website),
	}

	if summary := strings.TrimSpace(c.Summary); summary != "" {
		cv.Sections = append(cv.Sections, Section{Title: SectionSummary, Entries: []any{summary}})
	}
	cv.Sections = appendSection(cv.Sections, SectionEducation, educationEntries(c.Education))
	cv.Sections = appendSection(cv.Sections, SectionExperience, experienceEntries(c.Experience))
	cv.Sections = appendSection(cv.Sections, SectionProjects, projectEntries(c.Projects))
	cv.Sections = appendSection(cv.Sections, SectionSkills, skillEntries(c.Skills))
	cv.Sections = appendSection(cv.Sections, SectionCertifications, certificationEntries(c.Certifications))

	return Description{
		CV:     cv,
		Design: Design{Theme: defaultTheme, Page: Page{Size: defaultPageSize}},
	}
}

func appendSection(sections Sections, title string, entries []any) Sections {
	if len(entries) == 0 {
		return sections
	}
	return append(sections, Section{Title: title, Entries: entries})
}

func educationEntries(in []resume.Education) []any {
	out := make([]any, 0, len(in))
	for _, e := range in {
		school := strings.TrimSpace(e.School)
		if school == "" {
			continue
		}
		entry := EducationEntry{
			Institution: school,
			Area:        strings.TrimSpace(e.Major),
			Degree:      strings.TrimSpace(e.Degree),
			StartDate:   strings.TrimSpace(e.Start),
			EndDate:     endDate(e.End),
		}
		if gpa := strings.TrimSpace(e.GPA); gpa != "" {
			entry.Highlights = []string{"GPA: " + gpa}
		}
		out = append(out, entry)
	}
	return out
}

func experienceEntries(in []resume.Experience) []any {
	out := make([]any, 0, len(in))
	for _, e := range in {
		company := strings.TrimSpace(e.Company)
		if company == "" {
			continue
		}
		out = append(out, ExperienceEntry{
			Company:    company,
			Position:   strings.TrimSpace(e.Title),
			StartDate:  strings.TrimSpace(e.Start),
			EndDate:    endDate(e.End),
			Highlights: nonEmpty(e.Highlights),
		})
	}
	return out
}

func projectEntries(in []resume.Project) []any {
	out := make([]any, 0, len(in))
	for _, p := range in {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			continue
		}
		var highlights []string
		if tech := nonEmpty(p.Tech); len(tech) > 0 {
			highlights = append(highlights, "技术栈: "+strings.Join(tech, ", "))
		}
		highlights = append(highlights, nonEmpty(p.Highlights)...)
		out = append(out, ProjectEntry{
			Name:       name,
			Summary:    strings.TrimSpace(p.Description),
			Highlights: highlights,
		})
	}
	return out
}

func skillEntries(in []resume.SkillGroup) []any {
	out := make([]any, 0, len(in))
	for _, s := range in {
		items := nonEmpty(s.Items)
		if len(items) == 0 {
			continue
		}
		out = append(out, SkillEntry{
			Label:   orDefault(s.Category, defaultSkillName),
			Details: strings.Join(items, ", "),
		})
	}
	return out
}

func certificationEntries(in []resume.Certification) []any {
	out := make([]any, 0, len(in))
	for _, c := range in {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			continue
		}
		bullet := name
		if issuer := strings.TrimSpace(c.Issuer); issuer != "" {
			bullet += " - " + issuer
		}
		if date := strings.TrimSpace(c.Date); date != "" {
			bullet += " (" + date + ")"
		}
		out = append(out, BulletEntry{Bullet: bullet})
	}
	return out
}

// endDate 把空值和各种“至今”写法统一成 present。
func endDate(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ongoing
	}
	if _, ok := ongoingMarkers[strings.ToLower(v)]; ok {
		return ongoing
	}
	return v
}

func normalizeEmail(v string) string {
	v = strings.TrimSpace(v)
	if !strings.Contains(v, "@") {
		return ""
	}
	return v
}

// NormalizePhone 只保留数字；11 位 1 开头的手机号（可带 86 前缀）格式化为 +86 XXX XXXX XXXX，
// 其他号码返回空串（RenderCV 会拒绝无法识别的号码）。
func NormalizePhone(v string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, v)
	if len(digits) == 13 && strings.HasPrefix(digits, "86") {
		digits = digits[2:]
	}
	if len(digits) != 11 || digits[0] != '1' {
		return ""
	}
	return "+86 " + digits[:3] + " " + digits[3:7] + " " + digits[7:]
}

func orDefault(v, fallback string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return fallback
}

func nonEmpty(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimFunc(s, unicode.IsSpace); s != "" {
			out = append(out, s)
		}
	}
	return out
}
