// Пакет approval — конечный автомат модерации капибар.
//
// Жизненный цикл: pending → approved или pending → rejected.
// approved и rejected — конечные состояния, переходы из них запрещены.
// rejected не хранится: запись и изображение удаляются.
package approval

import (
	"fmt"

	"github.com/bigkaa/capystore/internal/domain/model"
)

// State — состояние модерации.
type State string

const (
	// StatePending — ожидает решения модератора
	StatePending State = "pending"
	// StateApproved — одобрена, входит в пул проверки
	StateApproved State = "approved"
	// StateRejected — отклонена и удалена
	StateRejected State = "rejected"
)

// validTransitions — матрица допустимых переходов.
var validTransitions = map[State]map[State]bool{
	StatePending:  {StateApproved: true, StateRejected: true},
	StateApproved: {},
	StateRejected: {},
}

// StateOf возвращает текущее состояние записи.
func StateOf(c *model.Capybara) State {
	if c.Approved {
		return StateApproved
	}
	return StatePending
}

// CanTransition проверяет, допустим ли переход from → to.
func CanTransition(from, to State) bool {
	return validTransitions[from][to]
}

// Check возвращает *TransitionError, если переход записи в target недопустим.
func Check(c *model.Capybara, target State) error {
	from := StateOf(c)
	if !isValidState(target) {
		return &TransitionError{
			From:    from,
			To:      target,
			Message: fmt.Sprintf("недопустимое целевое состояние: %q", target),
		}
	}
	if !CanTransition(from, target) {
		return &TransitionError{
			From:    from,
			To:      target,
			Message: fmt.Sprintf("переход %s → %s недопустим", from, target),
		}
	}
	return nil
}

// TransitionError — ошибка перехода между состояниями.
type TransitionError struct {
	From    State
	To      State
	Message string
}

func (e *TransitionError) Error() string {
	return "INVALID_TRANSITION: " + e.Message
}

func isValidState(s State) bool {
	switch s {
	case StatePending, StateApproved, StateRejected:
		return true
	default:
		return false
	}
}
