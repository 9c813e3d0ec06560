package tree

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"interviewer/internal/database"
	"interviewer/internal/resume"
	"interviewer/internal/store"
)

// Violation 描述一个违反树结构约束的节点。
type Violation struct {
	NodeID string
	Rule   string
	Detail string
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s (%s)", v.NodeID, v.Rule, v.Detail)
}

// Audit 检查全部节点（含已删除）的结构约束：
// 根节点深度为 0 且 root 指向自身；子节点深度为父节点加一、root 与父节点一致、owner 与根一致；
// 深度不超过 MaxDepth；未删除节点的父节点未删除；每个节点都有内容记录。
// contents 为 nil 时跳过内容检查。结果按节点 id 排序。
func Audit(nodes []database.ResumeNode, contents map[string]struct{}) []Violation {
	index := make(map[string]*database.ResumeNode, len(nodes))
	for i := range nodes {
		index[nodes[i].ID] = &nodes[i]
	}

	var out []Violation
	report := func(id, rule, format string, args ...any) {
		out = append(out, Violation{NodeID: id, Rule: rule, Detail: fmt.Sprintf(format, args...)})
	}

	for i := range nodes {
		n := &nodes[i]
		if !n.Status.Valid() {
			report(n.ID, "status", "unknown status %q", n.Status)
		}
		if n.Depth < 0 || n.Depth > resume.MaxDepth {
			report(n.ID, "depth-range", "depth %d", n.Depth)
		}
		if contents != nil {
			if _, ok := contents[n.ID]; !ok {
				report(n.ID, "content", "no content record")
			}
		}

		if n.ParentID == nil {
			if n.Depth != 0 {
				report(n.ID, "root-depth", "root at depth %d", n.Depth)
			}
			if n.RootID != n.ID {
				report(n.ID, "root-self", "root_id %s", n.RootID)
			}
			continue
		}

		parent, ok := index[*n.ParentID]
		if !ok {
			report(n.ID, "parent", "missing parent %s", *n.ParentID)
			continue
		}
		if n.Depth != parent.Depth+1 {
			report(n.ID, "child-depth", "depth %d under parent depth %d", n.Depth, parent.Depth)
		}
		if n.RootID != parent.RootID {
			report(n.ID, "root-inherit", "root_id %s, parent root_id %s", n.RootID, parent.RootID)
		}
		if root, ok := index[n.RootID]; !ok {
			report(n.ID, "root", "missing root %s", n.RootID)
		} else if root.OwnerAddress != n.OwnerAddress {
			report(n.ID, "owner", "owner %s, root owner %s", n.OwnerAddress, root.OwnerAddress)
		}
		if n.Status != resume.StatusDeleted && parent.Status == resume.StatusDeleted {
			report(n.ID, "orphan", "active under deleted parent %s", parent.ID)
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].NodeID < out[j].NodeID })
	return out
}

// SnapshotLoader 读取节点的 content.json。
type SnapshotLoader interface {
	LoadContentSnapshot(ctx context.Context, nodeID string) (resume.Content, error)
}

// AuditSnapshots 比对未删除节点的 content.json 与数据库内容。
// 从未保存过的根节点没有快照，不算违规；存储故障直接返回。
func AuditSnapshots(ctx context.Context, st *store.Store, snapshots SnapshotLoader, nodes []database.ResumeNode) ([]Violation, error) {
	var out []Violation
	for i := range nodes {
		n := &nodes[i]
		if n.Status == resume.StatusDeleted {
			continue
		}
		want, err := st.GetContent(ctx, n.ID)
		if errors.Is(err, resume.ErrContentMissing) {
			continue
		}
		if err != nil {
			return nil, err
		}
		got, err := snapshots.LoadContentSnapshot(ctx, n.ID)
		if errors.Is(err, resume.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("audit snapshot of %s: %w", n.ID, err)
		}
		same, err := sameContent(want, got)
		if err != nil {
			return nil, err
		}
		if !same {
			out = append(out, Violation{NodeID: n.ID, Rule: "snapshot", Detail: "content.json differs from stored content"})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].NodeID < out[j].NodeID })
	return out, nil
}

// sameContent 按 JSON 编码比较，nil 与空切片视为相同。
func sameContent(a, b resume.Content) (bool, error) {
	ea, err := json.Marshal(normalizeEmpty(a))
	if err != nil {
		return false, err
	}
	eb, err := json.Marshal(normalizeEmpty(b))
	if err != nil {
		return false, err
	}
	return bytes.Equal(ea, eb), nil
}

func normalizeEmpty(c resume.Content) resume.Content {
	c = c.Clone()
	if len(c.Education) == 0 {
		c.Education = nil
	}
	if len(c.Experience) == 0 {
		c.Experience = nil
	}
	if len(c.Projects) == 0 {
		c.Projects = nil
	}
	if len(c.Skills) == 0 {
		c.Skills = nil
	}
	if len(c.Certifications) == 0 {
		c.Certifications = nil
	}
	return c
}
