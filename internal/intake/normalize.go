package intake

import (
	"strings"

	"interviewer/internal/resume"
)

const defaultSkillCategory = "其他"

// Normalize 清理抽取结果：去掉首尾空白，丢弃缺少关键字段的条目与空的要点。
// 教育、工作、项目、证书分别以学校、公司、项目名、证书名为必填；技能组至少要有一项技能。
func Normalize(c resume.Content) resume.Content {
	out := resume.Content{
		FullName: strings.TrimSpace(c.FullName),
		Email:    strings.TrimSpace(c.Email),
		Phone:    strings.TrimSpace(c.Phone),
		Location: strings.TrimSpace(c.Location),
		Website:  strings.TrimSpace(c.Website),
		Summary:  strings.TrimSpace(c.Summary),
	}

	for _, e := range c.Education {
		e = resume.Education{
			School: strings.TrimSpace(e.School),
			Degree: strings.TrimSpace(e.Degree),
			Major:  strings.TrimSpace(e.Major),
			Start:  strings.TrimSpace(e.Start),
			End:    strings.TrimSpace(e.End),
			GPA:    strings.TrimSpace(e.GPA),
		}
		if e.School != "" {
			out.Education = append(out.Education, e)
		}
	}
	for _, e := range c.Experience {
		e = resume.Experience{
			Company:    strings.TrimSpace(e.Company),
			Title:      strings.TrimSpace(e.Title),
			Start:      strings.TrimSpace(e.Start),
			End:        strings.TrimSpace(e.End),
			Highlights: compact(e.Highlights),
		}
		if e.Company != "" {
			out.Experience = append(out.Experience, e)
		}
	}
	for _, p := range c.Projects {
		p = resume.Project{
			Name:        strings.TrimSpace(p.Name),
			Description: strings.TrimSpace(p.Description),
			Tech:        compact(p.Tech),
			Highlights:  compact(p.Highlights),
		}
		if p.Name != "" {
			out.Projects = append(out.Projects, p)
		}
	}
	for _, s := range c.Skills {
		items := compact(s.Items)
		if len(items) == 0 {
			continue
		}
		category := strings.TrimSpace(s.Category)
		if category == "" {
			category = defaultSkillCategory
		}
		out.Skills = append(out.Skills, resume.SkillGroup{Category: category, Items: items})
	}
	for _, cert := range c.Certifications {
		cert = resume.Certification{
			Name:   strings.TrimSpace(cert.Name),
			Issuer: strings.TrimSpace(cert.Issuer),
			Date:   strings.TrimSpace(cert.Date),
		}
		if cert.Name != "" {
			out.Certifications = append(out.Certifications, cert)
		}
	}
	return out
}

// Empty 报告内容里是否一个字段都没有抽取到。
func Empty(c resume.Content) bool {
	return c.FullName == "" && c.Email == "" && c.Phone == "" && c.Summary == "" &&
		len(c.Education) == 0 && len(c.Experience) == 0 && len(c.Projects) == 0 &&
		len(c.Skills) == 0 && len(c.Certifications) == 0
}

func compact(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
