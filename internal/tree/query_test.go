package tree

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"interviewer/internal/database"
	"interviewer/internal/resume"
)

func TestListTrees(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	first := f.root(t, "first")
	second := f.root(t, "second")
	c1 := f.fork(t, first)
	c2 := f.fork(t, first)
	f.fork(t, c1)

	_, err := f.status.SaveContent(ctx, c2.ID, owner, resume.Content{FullName: "Li"})
	require.NoError(t, err)
	_, err = f.status.Publish(ctx, c2.ID, owner)
	require.NoError(t, err)

	// 更新 first 的元数据使其排到最前。
	f.clock.Advance(time.Hour)
	name := "first v2"
	_, err = f.tree.UpdateMetadata(ctx, first.ID, owner, UpdateMetadataInput{Name: &name})
	require.NoError(t, err)

	forest, err := f.tree.ListTrees(ctx, owner)
	require.NoError(t, err)
	require.Len(t, forest.Trees, 2)
	assert.Equal(t, first.ID, forest.Trees[0].ID)
	assert.Equal(t, second.ID, forest.Trees[1].ID)

	top := forest.Trees[0]
	require.Len(t, top.Children, 2)
	assert.Equal(t, c1.ID, top.Children[0].ID)
	assert.Equal(t, c2.ID, top.Children[1].ID)
	assert.Len(t, top.Children[0].Children, 1)

	assert.Equal(t, Stats{Total: 5, Published: 1, Draft: 4}, forest.Stats)

	empty, err := f.tree.ListTrees(ctx, "0xnobody")
	require.NoError(t, err)
	assert.Empty(t, empty.Trees)
	assert.Equal(t, Stats{}, empty.Stats)

	_, err = f.tree.ListTrees(ctx, " ")
	assert.ErrorIs(t, err, resume.ErrInvalidArgument)
}

func TestGetNodeListsRooms(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	root := f.root(t, "root")

	detail, err := f.tree.GetNode(ctx, root.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, []string{}, detail.RoomIDs)

	ref := root.ID
	require.NoError(t, f.store.CreateRoom(ctx, &database.InterviewRoom{ID: "r1", Name: "一面", OwnerAddress: owner, ResumeID: &ref}))
	detail, err = f.tree.GetNode(ctx, root.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, []string{"r1"}, detail.RoomIDs)

	_, err = f.tree.GetNode(ctx, root.ID, "0xother")
	assert.ErrorIs(t, err, resume.ErrPermissionDenied)
}

func TestAuditDetectsViolations(t *testing.T) {
	parent := "p"
	missing := "ghost"
	nodes := []database.ResumeNode{
		{ID: "p", RootID: "p", OwnerAddress: owner, Status: resume.StatusDeleted},
		{ID: "c", ParentID: &parent, RootID: "p", Depth: 2, OwnerAddress: "0xother", Status: resume.StatusDraft},
		{ID: "o", ParentID: &missing, RootID: "p", Depth: 1, OwnerAddress: owner, Status: resume.StatusDraft},
		{ID: "r", RootID: "x", Depth: 1, OwnerAddress: owner, Status: "archived"},
	}
	contents := map[string]struct{}{"p": {}, "c": {}, "o": {}}

	rules := map[string][]string{}
	for _, v := range Audit(nodes, contents) {
		rules[v.NodeID] = append(rules[v.NodeID], v.Rule)
	}
	assert.ElementsMatch(t, []string{"child-depth", "owner", "orphan"}, rules["c"])
	assert.ElementsMatch(t, []string{"parent"}, rules["o"])
	assert.ElementsMatch(t, []string{"status", "content", "root-depth", "root-self"}, rules["r"])
	assert.NotContains(t, rules, "p")
}

// 任意操作序列之后，树结构约束始终成立，统计与节点状态一致。
func TestTreeInvariantsHold(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		ctx := context.Background()
		f := newFixture(t)
		var active []string

		refresh := func() {
			nodes, err := f.store.OwnerNodes(ctx, owner)
			require.NoError(rt, err)
			active = active[:0]
			for _, n := range nodes {
				active = append(active, n.ID)
			}
		}

		steps := rapid.IntRange(1, 25).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			op := rapid.IntRange(0, 4).Draw(rt, "op")
			if op == 0 || len(active) == 0 {
				_, err := f.tree.CreateRoot(ctx, owner, CreateRootInput{Name: "root"})
				require.NoError(rt, err)
				refresh()
				continue
			}

			id := rapid.SampledFrom(active).Draw(rt, "node")
			var err error
			switch op {
			case 1:
				_, err = f.tree.Fork(ctx, id, owner)
				if err != nil {
					require.ErrorIs(rt, err, resume.ErrDepthLimitExceeded)
				}
			case 2:
				_, err = f.tree.DeleteSubtree(ctx, id, owner)
				require.NoError(rt, err)
			case 3:
				_, err = f.status.Publish(ctx, id, owner)
				require.NoError(rt, err)
			case 4:
				_, err = f.status.SaveContent(ctx, id, owner, resume.Content{FullName: "Li"})
				require.NoError(rt, err)
			}
			refresh()
		}

		all, err := f.store.AllNodes(ctx)
		require.NoError(rt, err)
		contents, err := f.store.ContentNodeIDs(ctx)
		require.NoError(rt, err)
		if violations := Audit(all, contents); len(violations) > 0 {
			rt.Fatalf("tree violations: %v", violations)
		}

		forest, err := f.tree.ListTrees(ctx, owner)
		require.NoError(rt, err)
		assert.Equal(rt, forest.Stats.Published+forest.Stats.Draft, forest.Stats.Total)
		assert.Equal(rt, len(active), forest.Stats.Total)

		seen := 0
		for _, tree := range forest.Trees {
			walk(tree, func(n *Node) {
				seen++
				assert.LessOrEqual(rt, n.Depth, resume.MaxDepth)
				for _, c := range n.Children {
					assert.Equal(rt, n.Depth+1, c.Depth)
				}
			})
		}
		assert.Equal(rt, len(active), seen)
	})
}

func TestAuditSnapshots(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	fresh := f.root(t, "fresh")
	saved := f.root(t, "saved")
	drifted := f.root(t, "drifted")
	gone := f.root(t, "gone")
	for _, n := range []*database.ResumeNode{saved, drifted, gone} {
		_, err := f.status.SaveContent(ctx, n.ID, owner, resume.Content{FullName: "Li"})
		require.NoError(t, err)
	}
	require.NoError(t, f.repo.SaveContentSnapshot(ctx, drifted.ID, resume.Content{FullName: "Stale"}))
	require.NoError(t, f.repo.SaveContentSnapshot(ctx, gone.ID, resume.Content{FullName: "Stale"}))
	_, err := f.tree.DeleteSubtree(ctx, gone.ID, owner)
	require.NoError(t, err)

	all, err := f.store.AllNodes(ctx)
	require.NoError(t, err)
	violations, err := AuditSnapshots(ctx, f.store, f.repo, all)
	require.NoError(t, err)
	require.Len(t, violations, 1)
	assert.Equal(t, drifted.ID, violations[0].NodeID)
	assert.Equal(t, "snapshot", violations[0].Rule)
	assert.NotEqual(t, fresh.ID, violations[0].NodeID)
}
