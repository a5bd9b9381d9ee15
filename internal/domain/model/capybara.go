package model

import "time"

// Capybara — запись о загруженной капибаре.
// Хранится в таблице capybaras; ID совпадает с именем артефакта в хранилище.
type Capybara struct {
	// ID — непрозрачный идентификатор, генерируется при отправке
	ID string
	// Created — время отправки
	Created time.Time
	// Used — время использования в проверке (nil — ещё не использована)
	Used *time.Time
	// Approved — одобрена модератором
	Approved bool
	// Name — отображаемое имя
	Name string
	// Fingerprint — перцептивный хэш изображения
	Fingerprint string
	// Email — адрес для уведомления; очищается после итогового письма
	Email *string
	// ContentType — MIME-тип сохранённого изображения
	ContentType string
	// UpdatedAt — время последнего изменения записи
	UpdatedAt time.Time
}

// Pending — ожидает решения модератора.
func (c *Capybara) Pending() bool {
	return !c.Approved
}

// Available — одобрена и ещё не использована в проверке.
func (c *Capybara) Available() bool {
	return c.Approved && c.Used == nil
}

// ModerationItem — элемент выборки на модерацию.
type ModerationItem struct {
	ID         string `json:"_id"`
	Name       string `json:"name"`
	PreviewURL string `json:"image"`
}

// Counts — остаток и общее число одобренных капибар.
type Counts struct {
	// Remaining — одобренные и не использованные
	Remaining int `json:"remaining"`
	// Total — все одобренные
	Total int `json:"total"`
}
