package log

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldRequestID   = "request_id"
	FieldClientIP    = "client_ip"
	FieldMethod      = "method"
	FieldPath        = "path"
	FieldStatusCode  = "status_code"
	FieldDuration    = "duration_ms"
	FieldUserAgent   = "user_agent"
	FieldError       = "error"
	FieldOperation   = "operation"
	FieldFamilyID    = "family_id"
	FieldExpenseID   = "expense_id"
	FieldCollection  = "collection"
	FieldAmountCents = "amount_cents"
	FieldCategory    = "category"
	FieldKind        = "category_kind"
	FieldMember      = "member"
	FieldSyncStatus  = "sync_status"
	FieldSheetsRef   = "sheets_ref"
)

// Components defines standard component names
const (
	ComponentApp      = "app"
	ComponentHTTP     = "http"
	ComponentLedger   = "ledger"
	ComponentDocstore = "docstore"
	ComponentFeed     = "feed"
	ComponentAuth     = "auth"
	ComponentExport   = "export"
	ComponentOffline  = "offline"
	ComponentMirror   = "mirror"
)

// Operations defines standard operation names
const (
	OpCreate    = "create"
	OpUpdate    = "update"
	OpDelete    = "delete"
	OpList      = "list"
	OpReplace   = "replace"
	OpReconcile = "reconcile"
	OpExport    = "export"
	OpSignIn    = "sign_in"
	OpSignUp    = "sign_up"
	OpSignOut   = "sign_out"
)
