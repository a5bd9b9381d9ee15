// Пакет idgen — генерация непрозрачных идентификаторов капибар.
// Идентификатор — nanoid из [A-Za-z0-9] заданной длины.
package idgen

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// DefaultLength — длина идентификатора по умолчанию.
const DefaultLength = 21

// Generator выдаёт случайные идентификаторы фиксированной длины.
type Generator struct {
	length int
}

// New создаёт генератор. length < 1 заменяется на DefaultLength.
func New(length int) *Generator {
	if length < 1 {
		length = DefaultLength
	}
	return &Generator{length: length}
}

// Length возвращает длину генерируемых идентификаторов.
func (g *Generator) Length() int {
	return g.length
}

// NewID возвращает новый идентификатор.
func (g *Generator) NewID() (string, error) {
	id, err := gonanoid.Generate(alphabet, g.length)
	if err != nil {
		return "", fmt.Errorf("ошибка генерации идентификатора: %w", err)
	}
	return id, nil
}
