// Пакет filestore — хранилище изображений капибар на диске.
// Каждое изображение лежит в файле {id}.capy в директории данных.
// Запись атомарная: temp файл → fsync → rename.
package filestore

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Extension — расширение файлов изображений.
const Extension = ".capy"

// ErrNotExist — изображение отсутствует в хранилище.
var ErrNotExist = errors.New("изображение не найдено")

// ErrInvalidID — идентификатор не может быть именем файла.
var ErrInvalidID = errors.New("недопустимый идентификатор изображения")

// FileStore — управление файлами изображений на диске.
type FileStore struct {
	// dataDir — корневая директория хранения (CAPY_DATA_DIR)
	dataDir string
}

// SaveResult — результат сохранения изображения.
type SaveResult struct {
	// FullPath — абсолютный путь файла на диске
	FullPath string
	// Size — размер записанных данных в байтах
	Size int64
	// Checksum — SHA-256 содержимого
	Checksum string
}

// Entry — файл изображения в директории данных.
type Entry struct {
	ID      string
	ModTime time.Time
}

// New создаёт FileStore. Создаёт директорию, если она не существует.
func New(dataDir string) (*FileStore, error) {
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию данных %s: %w", dataDir, err)
	}

	return &FileStore{dataDir: dataDir}, nil
}

// Save записывает изображение под идентификатором id.
// Существующий файл с тем же id перезаписывается.
// При ошибке temp файл удаляется.
func (s *FileStore) Save(id string, data io.Reader) (*SaveResult, error) {
	fullPath, err := s.path(id)
	if err != nil {
		return nil, err
	}
	// Уникальный суффикс: параллельные записи не делят temp файл
	tmpPath := fullPath + ".tmp-" + uuid.New().String()[:8]

	f, err := os.Create(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	hasher := sha256.New()
	size, err := io.Copy(f, io.TeeReader(data, hasher))
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка записи данных: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	return &SaveResult{
		FullPath: fullPath,
		Size:     size,
		Checksum: hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}

// Read возвращает содержимое изображения.
func (s *FileStore) Read(id string) ([]byte, error) {
	fullPath, err := s.path(id)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(fullPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotExist, id)
		}
		return nil, fmt.Errorf("ошибка чтения изображения %s: %w", id, err)
	}
	return data, nil
}

// Delete удаляет изображение. Отсутствующий файл — не ошибка.
func (s *FileStore) Delete(id string) error {
	fullPath, err := s.path(id)
	if err != nil {
		return err
	}

	err = os.Remove(fullPath)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("ошибка удаления изображения %s: %w", id, err)
	}
	return nil
}

// Exists проверяет наличие изображения.
func (s *FileStore) Exists(id string) (bool, error) {
	fullPath, err := s.path(id)
	if err != nil {
		return false, err
	}

	_, err = os.Stat(fullPath)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("ошибка проверки изображения %s: %w", id, err)
	}
}

// List возвращает все изображения в директории данных.
// Временные и посторонние файлы пропускаются.
func (s *FileStore) List() ([]Entry, error) {
	dirEntries, err := os.ReadDir(s.dataDir)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения директории %s: %w", s.dataDir, err)
	}

	entries := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), Extension) {
			continue
		}
		info, err := de.Info()
		if err != nil {
			// Файл удалён между ReadDir и Info
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("ошибка получения информации о %s: %w", de.Name(), err)
		}
		entries = append(entries, Entry{
			ID:      strings.TrimSuffix(de.Name(), Extension),
			ModTime: info.ModTime(),
		})
	}
	return entries, nil
}

// CheckReady проверяет, что директория данных доступна для записи.
// Возвращает статус ("ok", "fail") и сообщение.
func (s *FileStore) CheckReady() (status string, message string) {
	testFile := filepath.Join(s.dataDir, ".health_check")
	if err := os.WriteFile(testFile, []byte("ok"), 0o600); err != nil {
		return "fail", "Директория данных недоступна для записи: " + err.Error()
	}
	_ = os.Remove(testFile)
	return "ok", "директория доступна"
}

// DataDir возвращает путь к директории данных.
func (s *FileStore) DataDir() string {
	return s.dataDir
}

// path строит путь к файлу изображения и проверяет id.
func (s *FileStore) path(id string) (string, error) {
	if !validID(id) {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return filepath.Join(s.dataDir, id+Extension), nil
}

// validID допускает только буквы, цифры, дефис и подчёркивание.
func validID(id string) bool {
	if id == "" || len(id) > 128 {
		return false
	}
	for _, r := range id {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '-' || r == '_' {
			continue
		}
		return false
	}
	return true
}
