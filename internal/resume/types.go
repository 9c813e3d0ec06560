package resume

import "time"

// MaxDepth 是树的最大深度（根为 0，共 5 层）。
const MaxDepth = 4

// Status 表示简历节点的状态。
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusDeleted   Status = "deleted"
)

// Valid 判断状态值是否合法。
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPublished, StatusDeleted:
		return true
	}
	return false
}

// Content 表示一份简历节点的结构化表单数据。
type Content struct {
	FullName       string          `json:"full_name"`
	Email          string          `json:"email"`
	Phone          string          `json:"phone"`
	Location       string          `json:"location"`
	Website        string          `json:"website"`
	Summary        string          `json:"summary"`
	Education      []Education     `json:"education"`
	Experience     []Experience    `json:"experience"`
	Projects       []Project       `json:"projects"`
	Skills         []SkillGroup    `json:"skills"`
	Certifications []Certification `json:"certifications"`
}

// Education 描述一条教育经历，GPA 可选。
type Education struct {
	School string `json:"school"`
	Degree string `json:"degree"`
	Major  string `json:"major"`
	Start  string `json:"start"`
	End    string `json:"end"`
	GPA    string `json:"gpa,omitempty"`
}

// Experience 描述一条工作经历；End 可以是表示“至今”的哨兵值。
type Experience struct {
	Company    string   `json:"company"`
	Title      string   `json:"title"`
	Start      string   `json:"start"`
	End        string   `json:"end"`
	Highlights []string `json:"highlights"`
}

// Project 描述一条项目经历。
type Project struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tech        []string `json:"tech"`
	Highlights  []string `json:"highlights"`
}

// SkillGroup 是按类别分组的技能列表。
type SkillGroup struct {
	Category string   `json:"category"`
	Items    []string `json:"items"`
}

// Certification 描述一项证书。
type Certification struct {
	Name   string `json:"name"`
	Issuer string `json:"issuer"`
	Date   string `json:"date"`
}

// Clone 返回内容的深拷贝，fork 之后父子节点的编辑互不影响。
func (c Content) Clone() Content {
	out := c
	out.Education = append([]Education(nil), c.Education...)
	out.Certifications = append([]Certification(nil), c.Certifications...)

	if c.Experience != nil {
		out.Experience = make([]Experience, len(c.Experience))
		for i, e := range c.Experience {
			e.Highlights = cloneStrings(e.Highlights)
			out.Experience[i] = e
		}
	}
	if c.Projects != nil {
		out.Projects = make([]Project, len(c.Projects))
		for i, p := range c.Projects {
			p.Tech = cloneStrings(p.Tech)
			p.Highlights = cloneStrings(p.Highlights)
			out.Projects[i] = p
		}
	}
	if c.Skills != nil {
		out.Skills = make([]SkillGroup, len(c.Skills))
		for i, s := range c.Skills {
			s.Items = cloneStrings(s.Items)
			out.Skills[i] = s
		}
	}
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}

// forkNameLayout 对应 MMddHHmm，允许重名。
const forkNameLayout = "01021504"

// ForkName 生成 fork 出的子版本名称。
func ForkName(at time.Time) string {
	return at.Format(forkNameLayout)
}
