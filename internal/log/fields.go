package log

// Attribute keys shared by every component, so log queries can rely on them.
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldQuery      = "query"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldUserAgent  = "user_agent"
	FieldError      = "error"
	FieldErrorType  = "error_type"
	FieldOperation  = "operation"
	FieldOwnerID    = "owner_id"
)

const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentRecords   = "records"
	ComponentAuth      = "auth"
	ComponentAMQP      = "amqp"
	ComponentRealtime  = "realtime"
	ComponentWorker    = "worker"
	ComponentRecurring = "recurring"
	ComponentSheets    = "sheets"
	ComponentCache     = "cache"
	ComponentTaxonomy  = "taxonomy"
	ComponentExport    = "export"
	ComponentTrace     = "trace"
	ComponentTemplate  = "template"
)

const ErrorTypeConfiguration = "configuration_error"
