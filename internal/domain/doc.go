// Package domain описывает сущности ежедневной рассылки: элементы расписания,
// статьи, прогресс по теме и граничные записи пользователя, темы и записи на курс.
//
// Переходы статусов элемента расписания:
//
//	pending → sent → read
//	pending → skipped
//
// Из read и skipped выхода нет. Хранилища дублируют эти правила условными
// обновлениями, так что проверка CanTransition не единственная линия защиты.
package domain
