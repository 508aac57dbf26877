package hooking

import (
	"sync"
)

// TagCountTracer counts how many times each tag is attached to a task, in
// total and per location.
type TagCountTracer struct {
	lock sync.Mutex

	tagNames   []string
	tagCount   map[string]uint64
	whereCount map[string]map[string]uint64
}

// NewTagCountTracer creates a new TagCountTracer
func NewTagCountTracer() *TagCountTracer {
	t := &TagCountTracer{
		tagCount:   make(map[string]uint64),
		whereCount: make(map[string]map[string]uint64),
	}

	return t
}

// Func counts tags.
func (t *TagCountTracer) Func(ctx HookCtx) {
	if ctx.Pos != HookPosTaskTag {
		return
	}

	t.TagTask(ctx.Item.(TaskTag))
}

// GetTagNames returns all the tag names collected, in the order they were
// first seen.
func (t *TagCountTracer) GetTagNames() []string {
	t.lock.Lock()
	defer t.lock.Unlock()

	return append([]string(nil), t.tagNames...)
}

// GetTagCount returns the number of times a tag is recorded.
func (t *TagCountTracer) GetTagCount(tagName string) uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.tagCount[tagName]
}

// GetTagCountAt returns the number of times a tag is recorded at a location.
func (t *TagCountTracer) GetTagCountAt(tagName, where string) uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.whereCount[tagName][where]
}

// TagTask tags a task with a certain tag.
func (t *TagCountTracer) TagTask(taskTag TaskTag) {
	t.lock.Lock()
	defer t.lock.Unlock()

	_, ok := t.tagCount[taskTag.What]
	if !ok {
		t.tagNames = append(t.tagNames, taskTag.What)
		t.whereCount[taskTag.What] = make(map[string]uint64)
	}

	t.tagCount[taskTag.What]++
	t.whereCount[taskTag.What][taskTag.Where]++
}
