package testutil

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"interviewer/internal/storage"
)

type object struct {
	data         []byte
	contentType  string
	lastModified time.Time
}

// ObjectStore 是线程安全的内存对象存储。
// Fail 返回非 nil 时对应操作失败，用于模拟存储故障。
type ObjectStore struct {
	mu      sync.Mutex
	objects map[string]object
	now     func() time.Time

	Fail func(op, key string) error
}

// NewObjectStore 创建空的内存对象存储；now 为 nil 时使用 time.Now。
func NewObjectStore(now func() time.Time) *ObjectStore {
	if now == nil {
		now = time.Now
	}
	return &ObjectStore{objects: map[string]object{}, now: now}
}

func (s *ObjectStore) fail(op, key string) error {
	if s.Fail == nil {
		return nil
	}
	return s.Fail(op, key)
}

func (s *ObjectStore) PutObject(_ context.Context, key string, data []byte, contentType string) error {
	if err := s.fail("put", key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = object{data: append([]byte(nil), data...), contentType: contentType, lastModified: s.now()}
	return nil
}

func (s *ObjectStore) GetObject(_ context.Context, key string) ([]byte, error) {
	if err := s.fail("get", key); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("get %q: %w", key, storage.ErrObjectNotFound)
	}
	return append([]byte(nil), obj.data...), nil
}

func (s *ObjectStore) ObjectExists(_ context.Context, key string) (bool, error) {
	if err := s.fail("stat", key); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok, nil
}

func (s *ObjectStore) CopyObject(_ context.Context, srcKey, dstKey string) error {
	if err := s.fail("copy", dstKey); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[srcKey]
	if !ok {
		return fmt.Errorf("copy %q: %w", srcKey, storage.ErrObjectNotFound)
	}
	obj.lastModified = s.now()
	s.objects[dstKey] = obj
	return nil
}

func (s *ObjectStore) ListObjects(_ context.Context, prefix string) ([]storage.ObjectMeta, error) {
	if err := s.fail("list", prefix); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]storage.ObjectMeta, 0)
	for key, obj := range s.objects {
		if strings.HasPrefix(key, prefix) {
			out = append(out, storage.ObjectMeta{Key: key, Size: int64(len(obj.data)), LastModified: obj.lastModified})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *ObjectStore) DeleteObject(_ context.Context, key string) error {
	if err := s.fail("delete", key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *ObjectStore) DeletePrefix(ctx context.Context, prefix string) error {
	if err := s.fail("delete", prefix); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.objects {
		if strings.HasPrefix(key, prefix) {
			delete(s.objects, key)
		}
	}
	return nil
}

func (s *ObjectStore) PresignGetURL(_ context.Context, key string, ttl time.Duration, _ map[string]string) (string, error) {
	if err := s.fail("presign", key); err != nil {
		return "", err
	}
	return fmt.Sprintf("https://objects.test/%s?ttl=%d", key, int(ttl.Seconds())), nil
}

// Has 报告对象是否存在。
func (s *ObjectStore) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok
}

// Data 返回对象内容，不存在时返回 nil。
func (s *ObjectStore) Data(key string) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.objects[key].data
}

// Keys 返回指定前缀下的全部键（排序后）。
func (s *ObjectStore) Keys(prefix string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0)
	for key := range s.objects {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}
