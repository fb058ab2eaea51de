package types

// ContextKey - тип ключей значений, передаваемых командам через контекст.
type ContextKey string

const (
	// ClientAppKey - ключ, по которому в контексте лежит *client.App.
	ClientAppKey ContextKey = "app"
	// ConfigKey - ключ конфигурации клиента.
	ConfigKey ContextKey = "config"
)
