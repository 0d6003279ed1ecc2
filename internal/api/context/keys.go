package context

type contextKey string

const (
	Params contextKey = "params"
	Claims contextKey = "claims"
	Tenant contextKey = "tenant"
)
