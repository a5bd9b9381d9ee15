package service

import (
	"context"
	"io"

	"github.com/bigkaa/capystore/internal/storage/filestore"
)

// Hasher вычисляет перцептивный отпечаток изображения.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// IDGenerator выдаёт новые идентификаторы капибар.
type IDGenerator interface {
	NewID() (string, error)
}

// NameGenerator выдаёт случайные имена.
type NameGenerator interface {
	Name() string
}

// ArtifactStore — хранилище изображений по id.
type ArtifactStore interface {
	Save(id string, data io.Reader) (*filestore.SaveResult, error)
	Read(id string) ([]byte, error)
	Delete(id string) error
	Exists(id string) (bool, error)
	List() ([]filestore.Entry, error)
}

// Notifier — внешние уведомления: WebSocket-рассылка и почта.
type Notifier interface {
	Broadcast(ctx context.Context, channel, event string, payload any) error
	SendEmail(ctx context.Context, to, subject, body string) error
	EmailEnabled() bool
}

// TaskQueue — очередь фоновых задач без ожидания результата.
type TaskQueue interface {
	Enqueue(name string, fn func(ctx context.Context) error) bool
}
