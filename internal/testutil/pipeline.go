package testutil

import (
	"context"
	"sync"
)

// Pipeline 是可编排结果的渲染流水线替身，记录收到的每份 YAML。
type Pipeline struct {
	mu     sync.Mutex
	inputs [][]byte

	// Err 非 nil 时渲染失败。
	Err error
	// Block 为 true 时一直等待到 ctx 结束。
	Block bool
	// OnRender 在每次渲染返回前调用，用来模拟渲染期间的并发修改。
	OnRender func()
}

// Render 返回 PDF 头加原始输入拼成的伪 PDF。
func (p *Pipeline) Render(ctx context.Context, description []byte) ([]byte, error) {
	p.mu.Lock()
	p.inputs = append(p.inputs, append([]byte(nil), description...))
	block, err, hook := p.Block, p.Err, p.OnRender
	p.mu.Unlock()

	if hook != nil {
		hook()
	}
	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	return append([]byte("%PDF-1.7\n"), description...), nil
}

// Calls 返回渲染调用次数。
func (p *Pipeline) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.inputs)
}

// Last 返回最近一次渲染的输入。
func (p *Pipeline) Last() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.inputs) == 0 {
		return nil
	}
	return p.inputs[len(p.inputs)-1]
}
