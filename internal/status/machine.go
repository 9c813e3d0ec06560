// Package status 实现简历节点的 draft/published/deleted 状态机以及依赖状态的操作。
package status

import (
	"fmt"

	"interviewer/internal/resume"
)

// Event 是触发状态变化的事件。
type Event string

const (
	EventPublish      Event = "publish"
	EventUnpublish    Event = "unpublish"
	EventContentSaved Event = "content_saved"
	EventDelete       Event = "delete"
)

type transition struct {
	from  resume.Status
	event Event
}

// transitions 是全部合法转换。内容保存在 draft 与 published 上都落到 draft。
var transitions = map[transition]resume.Status{
	{resume.StatusDraft, EventPublish}:          resume.StatusPublished,
	{resume.StatusPublished, EventPublish}:      resume.StatusPublished,
	{resume.StatusPublished, EventUnpublish}:    resume.StatusDraft,
	{resume.StatusDraft, EventContentSaved}:     resume.StatusDraft,
	{resume.StatusPublished, EventContentSaved}: resume.StatusDraft,
	{resume.StatusDraft, EventDelete}:           resume.StatusDeleted,
	{resume.StatusPublished, EventDelete}:       resume.StatusDeleted,
}

// Next 返回 from 在 event 下的目标状态。
// deleted 是终态，任何事件都会被拒绝为 ErrNotFound；其余非法转换返回 ErrConflict。
func Next(from resume.Status, event Event) (resume.Status, error) {
	if from == resume.StatusDeleted {
		return "", fmt.Errorf("%s on deleted resume: %w", event, resume.ErrNotFound)
	}
	to, ok := transitions[transition{from, event}]
	if !ok {
		return "", fmt.Errorf("%s not allowed in status %q: %w", event, from, resume.ErrConflict)
	}
	return to, nil
}

// CanAttach 报告该状态的简历能否挂到面试间。
func CanAttach(s resume.Status) bool {
	return s == resume.StatusPublished
}
