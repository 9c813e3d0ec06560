package tree

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"interviewer/internal/database"
	"interviewer/internal/resume"
)

// Node 是树形视图中的一个节点。
type Node struct {
	database.ResumeNode
	Children []*Node `json:"children"`
}

// Stats 统计未删除节点，Total 恒等于 Published + Draft。
type Stats struct {
	Total     int `json:"total"`
	Published int `json:"published"`
	Draft     int `json:"draft"`
}

// Forest 是某个用户的全部树。
type Forest struct {
	Trees []*Node `json:"trees"`
	Stats Stats   `json:"stats"`
}

// Detail 是单个节点及引用它的面试间。
type Detail struct {
	database.ResumeNode
	RoomIDs []string `json:"room_ids"`
}

// ListTrees 返回 owner 的全部未删除节点组成的森林。
// 兄弟节点按创建顺序排列，树按根节点最近更新时间倒序排列。
func (e *Engine) ListTrees(ctx context.Context, owner string) (*Forest, error) {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return nil, fmt.Errorf("owner required: %w", resume.ErrInvalidArgument)
	}
	nodes, err := e.store.OwnerNodes(ctx, owner)
	if err != nil {
		return nil, err
	}

	index := link(nodes)
	forest := &Forest{Trees: make([]*Node, 0)}
	for i := range nodes {
		if nodes[i].ParentID == nil {
			forest.Trees = append(forest.Trees, index[nodes[i].ID])
		}
	}
	sort.SliceStable(forest.Trees, func(i, j int) bool {
		a, b := forest.Trees[i], forest.Trees[j]
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.UpdatedAt.After(b.UpdatedAt)
		}
		return a.ID < b.ID
	})
	for _, root := range forest.Trees {
		walk(root, func(n *Node) { forest.Stats.add(n.Status) })
	}
	return forest, nil
}

// GetSubtree 返回以 nodeID 为根的未删除子树，排序规则与 ListTrees 相同。
func (e *Engine) GetSubtree(ctx context.Context, nodeID, requester string) (*Node, error) {
	node, err := e.store.OwnedNode(ctx, nodeID, requester)
	if err != nil {
		return nil, err
	}
	nodes, err := e.store.TreeNodes(ctx, node.RootID)
	if err != nil {
		return nil, err
	}
	index := link(nodes)
	sub, ok := index[node.ID]
	if !ok {
		return nil, fmt.Errorf("resume %s: %w", node.ID, resume.ErrNotFound)
	}
	return sub, nil
}

// GetNode 返回节点详情及引用它的面试间 id。
func (e *Engine) GetNode(ctx context.Context, nodeID, requester string) (*Detail, error) {
	node, err := e.store.OwnedNode(ctx, nodeID, requester)
	if err != nil {
		return nil, err
	}
	rooms, err := e.store.RoomIDsByResume(ctx, node.ID)
	if err != nil {
		return nil, err
	}
	if rooms == nil {
		rooms = []string{}
	}
	return &Detail{ResumeNode: *node, RoomIDs: rooms}, nil
}

// link 按创建顺序把节点挂到父节点下。父节点不在集合中的非根节点不会出现在任何树里。
func link(nodes []database.ResumeNode) map[string]*Node {
	index := make(map[string]*Node, len(nodes))
	for i := range nodes {
		index[nodes[i].ID] = &Node{ResumeNode: nodes[i], Children: make([]*Node, 0)}
	}
	for i := range nodes {
		if nodes[i].ParentID == nil {
			continue
		}
		if parent, ok := index[*nodes[i].ParentID]; ok {
			parent.Children = append(parent.Children, index[nodes[i].ID])
		}
	}
	return index
}

func walk(n *Node, fn func(*Node)) {
	fn(n)
	for _, c := range n.Children {
		walk(c, fn)
	}
}

func (s *Stats) add(st resume.Status) {
	switch st {
	case resume.StatusPublished:
		s.Published++
	case resume.StatusDraft:
		s.Draft++
	default:
		return
	}
	s.Total++
}
