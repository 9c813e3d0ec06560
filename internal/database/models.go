package database

import (
	"time"

	"gorm.io/datatypes"

	"interviewer/internal/resume"
)

// ResumeNode 是简历版本树中的一个节点。
// ParentID/RootID 只是导航用的索引引用，节点本身由树存储统一持有。
type ResumeNode struct {
	ID             string        `gorm:"primaryKey;size:36" json:"id"`
	ParentID       *string       `gorm:"size:36;index" json:"parent_id"`
	RootID         string        `gorm:"size:36;index;not null" json:"root_id"`
	Depth          int           `gorm:"not null;default:0" json:"depth"`
	OwnerAddress   string        `gorm:"size:64;not null;index:idx_resume_owner_status,priority:1" json:"owner_address"`
	Status         resume.Status `gorm:"size:16;not null;default:draft;index:idx_resume_owner_status,priority:2" json:"status"`
	Name           string        `gorm:"size:255;not null" json:"name"`
	TargetCompany  *string       `gorm:"size:255" json:"target_company,omitempty"`
	TargetPosition *string       `gorm:"size:255" json:"target_position,omitempty"`
	Version        int64         `gorm:"not null;default:1" json:"version"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

func (ResumeNode) TableName() string { return "resumes" }

// IsRoot 判断节点是否为树根。
func (n ResumeNode) IsRoot() bool { return n.ParentID == nil }

// ResumeContent 与 ResumeNode 一对一，复杂字段以 JSON 整体存储。
type ResumeContent struct {
	ID             string                                    `gorm:"primaryKey;size:36"`
	ResumeID       string                                    `gorm:"size:36;uniqueIndex;not null"`
	FullName       string                                    `gorm:"size:255"`
	Email          string                                    `gorm:"size:255"`
	Phone          string                                    `gorm:"size:64"`
	Location       string                                    `gorm:"size:255"`
	Website        string                                    `gorm:"size:512"`
	Summary        string                                    `gorm:"type:text"`
	Education      datatypes.JSONSlice[resume.Education]     `gorm:"type:json"`
	Experience     datatypes.JSONSlice[resume.Experience]    `gorm:"type:json"`
	Projects       datatypes.JSONSlice[resume.Project]       `gorm:"type:json"`
	Skills         datatypes.JSONSlice[resume.SkillGroup]    `gorm:"type:json"`
	Certifications datatypes.JSONSlice[resume.Certification] `gorm:"type:json"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (ResumeContent) TableName() string { return "resume_contents" }

// ToContent 转换为领域层的内容结构。
func (c ResumeContent) ToContent() resume.Content {
	return resume.Content{
		FullName:       c.FullName,
		Email:          c.Email,
		Phone:          c.Phone,
		Location:       c.Location,
		Website:        c.Website,
		Summary:        c.Summary,
		Education:      []resume.Education(c.Education),
		Experience:     []resume.Experience(c.Experience),
		Projects:       []resume.Project(c.Projects),
		Skills:         []resume.SkillGroup(c.Skills),
		Certifications: []resume.Certification(c.Certifications),
	}
}

// ApplyContent 用领域内容整体覆盖记录字段（无部分更新语义）。
func (c *ResumeContent) ApplyContent(content resume.Content) {
	c.FullName = content.FullName
	c.Email = content.Email
	c.Phone = content.Phone
	c.Location = content.Location
	c.Website = content.Website
	c.Summary = content.Summary
	c.Education = datatypes.JSONSlice[resume.Education](content.Education)
	c.Experience = datatypes.JSONSlice[resume.Experience](content.Experience)
	c.Projects = datatypes.JSONSlice[resume.Project](content.Projects)
	c.Skills = datatypes.JSONSlice[resume.SkillGroup](content.Skills)
	c.Certifications = datatypes.JSONSlice[resume.Certification](content.Certifications)
}

// InterviewRoom 表示面试间，只通过 ResumeID 外键读取简历。
type InterviewRoom struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	Name         string    `gorm:"size:255;not null" json:"name"`
	OwnerAddress string    `gorm:"size:64;index;not null" json:"owner_address"`
	ResumeID     *string   `gorm:"size:36;index" json:"resume_id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (InterviewRoom) TableName() string { return "rooms" }
