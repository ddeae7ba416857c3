package logging

const (
	// Request
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"

	// Actor
	FieldUserID   = "user_id"
	FieldUsername = "username"

	// Domain
	FieldPostID   = "post_id"
	FieldAuthorID = "author_id"
	FieldGroup    = "group"

	FieldService = "service"
)
