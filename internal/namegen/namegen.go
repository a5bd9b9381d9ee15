// Пакет namegen — генерация правдоподобных имён для капибар,
// если пользователь не указал имя или модератор его заменил.
package namegen

import (
	"sync"

	"github.com/brianvoe/gofakeit/v7"
)

// maxAttempts — сколько раз пробовать получить имя только из латиницы.
const maxAttempts = 10

// DefaultName возвращается, если генератор не выдал подходящего имени.
const DefaultName = "Capy"

// Generator выдаёт случайные имена. Безопасен для конкурентного использования.
type Generator struct {
	mu    sync.Mutex
	faker *gofakeit.Faker
}

// New создаёт генератор имён со случайным seed.
func New() *Generator {
	return &Generator{faker: gofakeit.New(0)}
}

// Name возвращает случайное имя из латинских букв.
func (g *Generator) Name() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	for range maxAttempts {
		if name := g.faker.FirstName(); isLatin(name) {
			return name
		}
	}
	return DefaultName
}

func isLatin(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if (r < 'A' || r > 'Z') && (r < 'a' || r > 'z') {
			return false
		}
	}
	return true
}
