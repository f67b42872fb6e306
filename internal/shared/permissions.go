package shared

// Document platform permissions, in <category>.<action> form. The scope
// qualifier is resolved per user from role grants.
const (
	PermDocumentsView    = "documents.view"
	PermDocumentsEdit    = "documents.edit"
	PermDocumentsApprove = "documents.approve"
	PermDocumentsArchive = "documents.archive"

	PermAuthzDiagnostics = "authz.diagnostics"
)
