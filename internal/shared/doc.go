// Package shared содержит общую таксономию ошибок dailydev.
//
// # Классы ошибок
//
//   - ErrValidation: некорректные параметры записи на курс (неподдерживаемая длительность,
//     неизвестная тема). Отклоняется синхронно и никогда не повторяется.
//   - ErrNotFound: нет пользователя, элемента расписания или статьи.
//   - ErrConflict: повторная запись на ту же тему или проигранная условная запись
//     (элемент уже ушёл из ожидаемого статуса).
//   - ErrDependencyFailure: генератор контента, мессенджер или хранилище недоступны.
//   - ErrTimeout: внешний вызов не уложился в отведённое время.
//   - ErrInvariantViolated: недопустимый переход состояния.
//
// Неудачи генерации и доставки восстанавливаются на месте (заглушки, повтор на
// следующем проходе), поэтому наружу, как правило, доходят только ошибки хранилища.
//
// # Классификация
//
//	switch shared.KindOf(err) {
//	case shared.KindNotFound:
//	    return http.StatusNotFound
//	case shared.KindValidation:
//	    return http.StatusBadRequest
//	case shared.KindConflict:
//	    return http.StatusConflict
//	default:
//	    return http.StatusInternalServerError
//	}
//
// Ошибки сторонних библиотек помечаются через MarkKind, исходная ошибка при этом
// остаётся доступной через errors.Is / errors.As:
//
//	if errors.Is(err, pgx.ErrNoRows) {
//	    return shared.MarkKind(err, shared.KindNotFound)
//	}
//
// Соответствие Kind и HTTP-кодов задаётся в адаптерах, а не здесь.
package shared
