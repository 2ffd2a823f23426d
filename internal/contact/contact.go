package contact

import (
	"context"
	"errors"
	"strings"
)

// ErrNotFound 通讯录中不存在该联系人
var ErrNotFound = errors.New("contact not found")

// Contact 通讯录联系人
type Contact struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Phone       string `json:"phone,omitempty"`
	Email       string `json:"email,omitempty"`
}

// Directory 联系人目录
// 维修服务只在分配责任人时解析一次联系人,不持续校验
type Directory interface {
	Resolve(ctx context.Context, id string) (*Contact, error)
}

// StaticDirectory 静态联系人目录,用于开发环境与测试
type StaticDirectory struct {
	contacts map[string]Contact
}

// NewStaticDirectory 创建静态联系人目录
func NewStaticDirectory(contacts []Contact) *StaticDirectory {
	d := &StaticDirectory{contacts: make(map[string]Contact, len(contacts))}
	for _, c := range contacts {
		if strings.TrimSpace(c.ID) == "" {
			continue
		}
		d.contacts[c.ID] = c
	}
	return d
}

// Resolve 查找联系人
func (d *StaticDirectory) Resolve(ctx context.Context, id string) (*Contact, error) {
	c, ok := d.contacts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}
