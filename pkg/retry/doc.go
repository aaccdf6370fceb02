// Package retry повторяет операции с экспоненциальной задержкой и джиттером.
//
// Используется вокруг вызовов генератора контента и при ожидании готовности БД.
// HTTP-уровень (коды 429/5xx, Retry-After) обрабатывает internal/platform/httpclient,
// поэтому здесь повторяются только ошибки уровня операции.
//
//	err := retry.DoWithRetryable(ctx, retry.DefaultConfig(), func(ctx context.Context) error {
//	    return gen.call(ctx)
//	}, content.IsTransient)
//
// Ошибку, которую повторять бессмысленно (например, ответ модели не разобрался),
// следует вернуть через retry.Permanent.
package retry
