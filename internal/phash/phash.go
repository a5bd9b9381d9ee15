// Пакет phash — перцептивный хэш изображений.
//
// Отпечаток — 64-битный difference hash (сетка 9×8 в оттенках серого),
// записанный как 16 шестнадцатеричных символов в нижнем регистре.
// Визуально одинаковые изображения в разных форматах и размерах
// дают одинаковый или близкий отпечаток.
package phash

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // декодер GIF
	_ "image/jpeg" // декодер JPEG
	_ "image/png"  // декодер PNG
	"strconv"

	"github.com/corona10/goimagehash"
	_ "golang.org/x/image/webp" // декодер WebP
)

// ErrDecode — данные не удалось декодировать как изображение.
var ErrDecode = errors.New("не удалось декодировать изображение")

// Hasher вычисляет отпечатки изображений.
// Нулевое значение готово к использованию.
type Hasher struct{}

// Hash вычисляет отпечаток изображения.
func (Hasher) Hash(data []byte) (string, error) {
	return Hash(data)
}

// Hash декодирует JPEG, PNG, GIF или WebP и возвращает difference hash.
func Hash(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: пустые данные", ErrDecode)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecode, err)
	}

	h, err := goimagehash.DifferenceHash(img)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return Format(h.GetHash()), nil
}

// Format записывает 64-битный хэш как 16 hex-символов.
func Format(h uint64) string {
	return fmt.Sprintf("%016x", h)
}

// Distance возвращает расстояние Хэмминга между двумя отпечатками.
func Distance(a, b string) (int, error) {
	ha, err := parse(a)
	if err != nil {
		return 0, err
	}
	hb, err := parse(b)
	if err != nil {
		return 0, err
	}
	return ha.Distance(hb)
}

func parse(s string) (*goimagehash.ImageHash, error) {
	if len(s) != 16 {
		return nil, fmt.Errorf("некорректная длина отпечатка %q", s)
	}
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return nil, fmt.Errorf("некорректный отпечаток %q: %w", s, err)
	}
	return goimagehash.NewImageHash(v, goimagehash.DHash), nil
}
