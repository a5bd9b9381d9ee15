// Пакет service — бизнес-логика: приём капибар, модерация,
// выдача изображений и очистка осиротевших данных.
package service

import "errors"

// Ошибки сервисного слоя. Обработчики сопоставляют их с HTTP-кодами.
var (
	// ErrMissingField — не передано обязательное поле (изображение).
	ErrMissingField = errors.New("отсутствует обязательное поле")
	// ErrDecode — изображение не удалось декодировать.
	ErrDecode = errors.New("не удалось декодировать изображение")
	// ErrDuplicateImage — изображение с таким отпечатком уже есть.
	ErrDuplicateImage = errors.New("изображение уже загружено")
	// ErrNotFound — капибара не найдена.
	ErrNotFound = errors.New("капибара не найдена")
	// ErrAlreadyProcessed — решение по капибаре уже принято.
	ErrAlreadyProcessed = errors.New("капибара уже обработана")
	// ErrArtifactWrite — запись создана, но изображение не сохранено.
	ErrArtifactWrite = errors.New("ошибка сохранения изображения")
)
